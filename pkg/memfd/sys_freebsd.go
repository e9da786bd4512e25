package memfd

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// FreeBSD 的 memfd_create 由 libc 基于 shm_open2(2) 实现，这里直接调用系统调用
// 取值见 sys/mman.h 与 sys/fcntl.h
const (
	sysShmOpen2 = 571

	shmAnon         = 1
	shmAllowSealing = 0x0001
	shmGrowOnWrite  = 0x0002

	fAddSeals = 19
	fGetSeals = 20

	memfdNamePrefix = "memfd:"
)

func memfdCreate(name string, flags int) (int, error) {
	if flags&mfdHugeTLB != 0 {
		return -1, unix.EOPNOTSUPP
	}
	namep, err := unix.BytePtrFromString(memfdNamePrefix + name)
	if err != nil {
		return -1, err
	}
	oflags := unix.O_RDWR
	if flags&mfdCloexec != 0 {
		oflags |= unix.O_CLOEXEC
	}
	shmflags := shmGrowOnWrite
	if flags&mfdAllowSealing != 0 {
		shmflags |= shmAllowSealing
	}
	fd, _, errno := unix.Syscall6(sysShmOpen2, shmAnon, uintptr(oflags), 0, uintptr(shmflags), uintptr(unsafe.Pointer(namep)), 0)
	if errno != 0 {
		return -1, errno
	}
	return int(fd), nil
}

func getSeals(fd int) (int, error) {
	return unix.FcntlInt(uintptr(fd), fGetSeals, 0)
}

func addSeals(fd int, seals int) error {
	_, err := unix.FcntlInt(uintptr(fd), fAddSeals, seals)
	return err
}
