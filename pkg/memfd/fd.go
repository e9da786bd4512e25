//go:build linux || freebsd

package memfd

import (
	"os"
	"runtime"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// FD 独占一个原始文件描述符
// FD 只被关闭一次：显式 Close、Release 转移所有权，或者被垃圾回收时由 finalizer 关闭
type FD struct {
	raw atomic.Int64
}

// NewFD 接管 raw 的所有权
// 这里不做任何系统调用，描述符是否可用要到第一次使用时才知道，
// 届时不可用的描述符会返回 ErrInvalidDescriptor
func NewFD(raw int) *FD {
	f := &FD{}
	f.raw.Store(int64(raw))
	if raw >= 0 {
		runtime.SetFinalizer(f, (*FD).Close)
	}
	return f
}

// Raw 返回原始描述符但不转移所有权，已释放或已关闭时返回 -1
func (f *FD) Raw() int {
	if f == nil {
		return -1
	}
	return int(f.raw.Load())
}

// Release 转移所有权给调用者并返回原始描述符
// 之后 f 不再可用，Close 也不会再关闭该描述符
func (f *FD) Release() int {
	if f == nil {
		return -1
	}
	raw := f.raw.Swap(-1)
	runtime.SetFinalizer(f, nil)
	return int(raw)
}

// Close 关闭描述符，重复调用或 Release 之后调用不做任何事
func (f *FD) Close() error {
	raw := f.Release()
	if raw < 0 {
		return nil
	}
	if err := unix.Close(raw); err != nil {
		return ioError("close", err)
	}
	return nil
}

// File 将描述符的所有权转移给一个新的 *os.File
func (f *FD) File(name string) *os.File {
	raw := f.Release()
	if raw < 0 {
		return nil
	}
	return os.NewFile(uintptr(raw), name)
}

// use 返回可用于系统调用的描述符
func (f *FD) use(op string) (int, error) {
	raw := f.Raw()
	if raw < 0 {
		return -1, opError(op, ErrInvalidDescriptor, os.ErrClosed)
	}
	return raw, nil
}
