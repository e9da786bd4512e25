//go:build linux || freebsd

package memfd

import (
	"math"
	"sync"

	"golang.org/x/sys/unix"
)

// Mapping 是 MemFile 的共享内存映射（MAP_SHARED）
// 映射的内存不在 Go 堆上，Unmap 之后不能再访问 Bytes 返回的切片
type Mapping struct {
	mu       sync.Mutex
	data     []byte
	writable bool
	unmapped bool
}

// Map 映射文件中从 offset 开始的 length 字节，offset 必须按页对齐
// 文件带有 SealWrite 或 SealFutureWrite 时，可写映射会返回 ErrPermissionDenied
//
// 文件没有 SealShrink 时，其他持有者可能把文件截短，之后访问超出文件末尾的映射会触发 SIGBUS；
// 需要安全地读取共享内容时应使用 MapImmutable
func (m *MemFile) Map(offset int64, length int, writable bool) (*Mapping, error) {
	if offset < 0 || length < 0 {
		return nil, opError("mmap", ErrOperationFailed, unix.EINVAL)
	}
	if length == 0 {
		return &Mapping{data: []byte{}, writable: writable}, nil
	}
	prot := unix.PROT_READ
	if writable {
		prot |= unix.PROT_WRITE
	}
	var data []byte
	err := m.withFD("mmap", func(fd int) (err error) {
		data, err = unix.Mmap(fd, offset, length, prot, unix.MAP_SHARED)
		return err
	})
	if err != nil {
		return nil, wrapOp("mmap", err)
	}
	return &Mapping{data: data, writable: writable}, nil
}

// MapImmutable 只读映射整个文件
// 只有内核报告文件同时带有 SealWrite 和 SealShrink 时才会映射，否则返回 ErrNotImmutable：
// 此时内容不会再改变，文件也不会被截短，读取映射不会触发 SIGBUS
func (m *MemFile) MapImmutable() (*Mapping, error) {
	seals, err := m.Seals()
	if err != nil {
		return nil, err
	}
	if !seals.Contains(NewSeals(SealWrite, SealShrink)) {
		return nil, opError("map_immutable", ErrNotImmutable, nil)
	}
	size, err := m.Size()
	if err != nil {
		return nil, err
	}
	if size > math.MaxInt {
		return nil, opError("map_immutable", ErrOperationFailed, unix.EFBIG)
	}
	return m.Map(0, int(size), false)
}

// Bytes 返回映射的内存，Unmap 之后返回 nil
func (mp *Mapping) Bytes() []byte {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	return mp.data
}

// Len 返回映射的长度
func (mp *Mapping) Len() int {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	return len(mp.data)
}

// Writable 返回映射是否可写
func (mp *Mapping) Writable() bool {
	return mp.writable
}

// Unmap 解除映射，重复调用返回 nil
func (mp *Mapping) Unmap() error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.unmapped {
		return nil
	}
	mp.unmapped = true

	data := mp.data
	mp.data = nil
	if len(data) == 0 {
		return nil
	}
	if err := unix.Munmap(data); err != nil {
		return opError("munmap", ErrOperationFailed, err)
	}
	return nil
}
