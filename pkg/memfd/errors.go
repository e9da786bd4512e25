//go:build linux || freebsd

package memfd

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// 错误分类，可以通过 errors.Is 判断
var (
	// ErrCreationFailed 表示内核拒绝创建 memfd（资源限制、平台不支持等）
	ErrCreationFailed = errors.New("memfd: creation failed")
	// ErrSealingNotAllowed 表示文件创建时没有允许密封
	ErrSealingNotAllowed = errors.New("memfd: sealing not allowed")
	// ErrSealedSealSet 表示 Seal 密封已存在，无法再添加新的密封
	ErrSealedSealSet = errors.New("memfd: seal set is sealed")
	// ErrUnknownSealBit 表示密封位图中包含未知的位
	ErrUnknownSealBit = errors.New("memfd: unknown seal bit")
	// ErrPermissionDenied 表示操作被已有的密封阻止
	ErrPermissionDenied = errors.New("memfd: permission denied")
	// ErrOperationFailed 表示其他系统调用失败
	ErrOperationFailed = errors.New("memfd: operation failed")
	// ErrInvalidDescriptor 表示文件描述符不是可用的 memfd
	ErrInvalidDescriptor = errors.New("memfd: invalid descriptor")
	// ErrNotImmutable 表示文件缺少 Write 和 Shrink 密封，不能安全映射
	ErrNotImmutable = errors.New("memfd: file is not sealed against write and shrink")
)

// OpError 记录失败的操作、错误分类以及底层错误（通常是 unix.Errno）
type OpError struct {
	Op   string // 操作名，例如 "write" 或 "add_seals"
	Kind error  // 上面定义的错误分类之一
	Err  error  // 底层错误
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v (%s)", e.Kind, e.Op)
	}
	return fmt.Sprintf("%v (%s): %v", e.Kind, e.Op, e.Err)
}

// Unwrap 同时暴露错误分类和底层错误，
// 因此 errors.Is(err, ErrPermissionDenied) 和 errors.Is(err, unix.EPERM) 都成立
func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Errno 返回底层的错误码，没有则返回 0
func (e *OpError) Errno() unix.Errno {
	var errno unix.Errno
	if errors.As(e.Err, &errno) {
		return errno
	}
	return 0
}

func opError(op string, kind, err error) error {
	return &OpError{Op: op, Kind: kind, Err: err}
}

// ioError 将读写类系统调用的错误映射到错误分类
// EPERM 说明被密封阻止；写入时的 EBADF 说明描述符没有以写方式打开
func ioError(op string, err error) error {
	switch err {
	case unix.EPERM:
		return opError(op, ErrPermissionDenied, err)
	case unix.EBADF:
		if op == "write" || op == "pwrite" {
			return opError(op, ErrPermissionDenied, err)
		}
		return opError(op, ErrInvalidDescriptor, err)
	}
	return opError(op, ErrOperationFailed, err)
}

// FromFDError 在 FromFD 失败时返回，其中保留了调用者传入的描述符，
// 所有权仍属于调用者
type FromFDError struct {
	Err error
	fd  *FD
}

func (e *FromFDError) Error() string {
	return fmt.Sprintf("memfd: descriptor %d is not a memfd: %v", e.fd.Raw(), e.Err)
}

func (e *FromFDError) Unwrap() error {
	return e.Err
}

// FD 返回原始的描述符
func (e *FromFDError) FD() *FD {
	return e.fd
}
