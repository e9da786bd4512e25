//go:build linux || freebsd

package memfd

import (
	"errors"
	"io"
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

// MemFile 是由 memfd_create 创建的内存文件，可以添加密封
//
// MemFile 不做内部同步：同一个 MemFile 被多个 goroutine 同时写入或添加密封时，
// 需要调用者自行加锁。密封由内核维护，跨进程共享时无需额外同步。
type MemFile struct {
	fd       *FD
	name     string
	sealable bool
}

// Create 按 opts 创建新的 memfd，name 仅用于调试
// 创建的描述符带有 close-on-exec 标志，需要传给子进程时应在 fork 之后 dup
func Create(name string, opts CreateOptions) (*MemFile, error) {
	fd, err := memfdCreate(name, opts.flags())
	if err != nil {
		return nil, opError("memfd_create", ErrCreationFailed, err)
	}
	return &MemFile{
		fd:       NewFD(fd),
		name:     name,
		sealable: opts.allowSealing,
	}, nil
}

// CreateDefault 使用默认选项创建 memfd，不允许密封
func CreateDefault(name string) (*MemFile, error) {
	return Create(name, NewCreateOptions())
}

// CreateSealable 创建允许密封的 memfd，其余选项为默认值
func CreateSealable(name string) (*MemFile, error) {
	return Create(name, NewCreateOptions().WithAllowSealing(true))
}

// FromFD 将已有的描述符包装为 MemFile
// 描述符必须指向 memfd，这里通过 F_GET_SEALS 检查。
// 成功时 MemFile 接管 fd 的所有权；失败时返回 *FromFDError，fd 的所有权仍属于调用者
func FromFD(fd *FD) (*MemFile, error) {
	raw, err := fd.use("from_fd")
	if err != nil {
		return nil, &FromFDError{Err: err, fd: fd}
	}
	bits, err := getSeals(raw)
	runtime.KeepAlive(fd)
	if err != nil {
		kind := ErrInvalidDescriptor
		if err != unix.EINVAL && err != unix.EBADF {
			kind = ErrOperationFailed
		}
		return nil, &FromFDError{Err: opError("from_fd", kind, err), fd: fd}
	}
	seals := SealsFromBitsTruncate(uint32(bits))
	return &MemFile{
		fd: fd,
		// 不允许密封的文件在内核中只带有 F_SEAL_SEAL，
		// 这与只加了 SealSeal 的文件无法区分，两者都不能再添加密封
		sealable: seals != NewSeals(SealSeal),
	}, nil
}

// withFD 在描述符上执行系统调用，并保证调用期间描述符不会被 finalizer 关闭
func (m *MemFile) withFD(op string, fn func(fd int) error) error {
	raw, err := m.fd.use(op)
	if err != nil {
		return err
	}
	err = fn(raw)
	runtime.KeepAlive(m.fd)
	return err
}

// Name 返回创建时的名字，通过 FromFD 得到的文件返回空字符串
func (m *MemFile) Name() string {
	return m.name
}

// SealingAllowed 返回该文件是否允许添加密封
func (m *MemFile) SealingAllowed() bool {
	return m.sealable
}

// FD 返回底层描述符，所有权仍属于 MemFile
func (m *MemFile) FD() *FD {
	return m.fd
}

// Fd 返回原始描述符，用于传给其他系统调用
func (m *MemFile) Fd() uintptr {
	return uintptr(m.fd.Raw())
}

// IntoFD 将描述符的所有权转移给调用者，之后 m 不再可用
func (m *MemFile) IntoFD() *FD {
	return NewFD(m.fd.Release())
}

// IntoFile 将描述符的所有权转移给 *os.File，便于与只接受 *os.File 的代码交互
func (m *MemFile) IntoFile() *os.File {
	return m.IntoFD().File(m.name)
}

// Close 关闭文件，重复调用返回 nil
func (m *MemFile) Close() error {
	return m.fd.Close()
}

// TryClone 复制描述符得到新的 MemFile
// 两者共享文件偏移、内容和密封
func (m *MemFile) TryClone() (*MemFile, error) {
	var dup int
	err := m.withFD("dup", func(fd int) (err error) {
		dup, err = unix.FcntlInt(uintptr(fd), unix.F_DUPFD_CLOEXEC, 0)
		return err
	})
	if err != nil {
		return nil, wrapOp("dup", err)
	}
	return &MemFile{
		fd:       NewFD(dup),
		name:     m.name,
		sealable: m.sealable,
	}, nil
}

// Seals 向内核查询当前的密封
// 不允许密封的文件在内核中带有隐含的 F_SEAL_SEAL，这里不报告它，返回空集合
func (m *MemFile) Seals() (Seals, error) {
	var bits int
	err := m.withFD("get_seals", func(fd int) (err error) {
		bits, err = getSeals(fd)
		return err
	})
	if err != nil {
		return Seals{}, wrapOp("get_seals", err)
	}
	seals := SealsFromBitsTruncate(uint32(bits))
	if !m.sealable {
		seals.bits &^= uint32(SealSeal)
	}
	return seals, nil
}

// AddSeal 添加单个密封，需要添加多个密封时应使用 AddSeals 以减少系统调用
func (m *MemFile) AddSeal(seal Seal) error {
	return m.AddSeals(NewSeals(seal))
}

// AddSeals 添加一组密封，已存在的密封会被忽略
//
// 文件创建时不允许密封则返回 ErrSealingNotAllowed；已有 SealSeal 时返回 ErrSealedSealSet；
// 描述符不可写时返回 ErrPermissionDenied；
// 内核拒绝时（例如存在共享可写映射时添加 SealWrite，或平台不支持某个密封）返回 ErrOperationFailed
func (m *MemFile) AddSeals(seals Seals) error {
	if !m.sealable {
		return opError("add_seals", ErrSealingNotAllowed, unix.EPERM)
	}
	current, err := m.Seals()
	if err != nil {
		return err
	}
	if current.Has(SealSeal) {
		return opError("add_seals", ErrSealedSealSet, unix.EPERM)
	}
	err = m.withFD("add_seals", func(fd int) error {
		return addSeals(fd, int(seals.bits))
	})
	switch {
	case err == nil:
		return nil
	case err == unix.EPERM:
		// 描述符没有以写方式打开，或者在查询和添加之间被其他持有者加上了 SealSeal
		if current, qerr := m.Seals(); qerr == nil && current.Has(SealSeal) {
			return opError("add_seals", ErrSealedSealSet, err)
		}
		return opError("add_seals", ErrPermissionDenied, err)
	default:
		return wrapOp("add_seals", err)
	}
}

// Freeze 将文件设为只读：添加 Seal、Shrink、Grow 和 Write 密封
func (m *MemFile) Freeze() error {
	return m.AddSeals(NewSeals(SealSeal, SealShrink, SealGrow, SealWrite))
}

// Read 实现 io.Reader
func (m *MemFile) Read(b []byte) (n int, err error) {
	if len(b) == 0 {
		return 0, nil
	}
	err = m.withFD("read", func(fd int) (err error) {
		n, err = ignoringEINTRIO(unix.Read, fd, b)
		return err
	})
	if err != nil {
		return 0, wrapOp("read", err)
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// ReadAt 实现 io.ReaderAt
func (m *MemFile) ReadAt(b []byte, off int64) (n int, err error) {
	err = m.withFD("pread", func(fd int) error {
		for len(b) > 0 {
			c, err := ignoringEINTRAt(unix.Pread, fd, b, off)
			if err != nil {
				return err
			}
			if c == 0 {
				return io.EOF
			}
			n += c
			b = b[c:]
			off += int64(c)
		}
		return nil
	})
	if err != nil && err != io.EOF {
		err = wrapOp("pread", err)
	}
	return n, err
}

// Write 实现 io.Writer，存在 SealWrite 或 SealFutureWrite 时返回 ErrPermissionDenied
func (m *MemFile) Write(b []byte) (n int, err error) {
	err = m.withFD("write", func(fd int) error {
		for len(b) > 0 {
			c, err := ignoringEINTRIO(unix.Write, fd, b)
			if err != nil {
				return err
			}
			if c == 0 {
				return io.ErrShortWrite
			}
			n += c
			b = b[c:]
		}
		return nil
	})
	if err != nil {
		return n, wrapOp("write", err)
	}
	return n, nil
}

// WriteAt 实现 io.WriterAt
func (m *MemFile) WriteAt(b []byte, off int64) (n int, err error) {
	err = m.withFD("pwrite", func(fd int) error {
		for len(b) > 0 {
			c, err := ignoringEINTRAt(unix.Pwrite, fd, b, off)
			if err != nil {
				return err
			}
			if c == 0 {
				return io.ErrShortWrite
			}
			n += c
			b = b[c:]
			off += int64(c)
		}
		return nil
	})
	if err != nil {
		return n, wrapOp("pwrite", err)
	}
	return n, nil
}

// Seek 实现 io.Seeker
func (m *MemFile) Seek(offset int64, whence int) (ret int64, err error) {
	err = m.withFD("seek", func(fd int) (err error) {
		ret, err = unix.Seek(fd, offset, whence)
		return err
	})
	if err != nil {
		return 0, wrapOp("seek", err)
	}
	return ret, nil
}

// Truncate 改变文件大小，不改变文件偏移
// 变小时存在 SealShrink、变大时存在 SealGrow 会返回 ErrPermissionDenied
func (m *MemFile) Truncate(size int64) error {
	err := m.withFD("truncate", func(fd int) error {
		return ignoringEINTR(func() error { return unix.Ftruncate(fd, size) })
	})
	if err != nil {
		return wrapOp("truncate", err)
	}
	return nil
}

// Size 返回文件当前大小
func (m *MemFile) Size() (int64, error) {
	fi, err := m.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// wrapOp 将系统调用错误映射为 *OpError，已经是 *OpError 的保持不变
func wrapOp(op string, err error) error {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return err
	}
	return ioError(op, err)
}

func ignoringEINTR(fn func() error) error {
	for {
		err := fn()
		if err != unix.EINTR {
			return err
		}
	}
}

func ignoringEINTRIO(fn func(int, []byte) (int, error), fd int, b []byte) (int, error) {
	for {
		n, err := fn(fd, b)
		if err != unix.EINTR {
			return n, err
		}
	}
}

func ignoringEINTRAt(fn func(int, []byte, int64) (int, error), fd int, b []byte, off int64) (int, error) {
	for {
		n, err := fn(fd, b, off)
		if err != unix.EINTR {
			return n, err
		}
	}
}

var (
	_ io.ReadWriteSeeker = (*MemFile)(nil)
	_ io.ReaderAt        = (*MemFile)(nil)
	_ io.WriterAt        = (*MemFile)(nil)
	_ io.Closer          = (*MemFile)(nil)
)
