package memfd

import (
	"golang.org/x/sys/unix"
)

func memfdCreate(name string, flags int) (int, error) {
	return unix.MemfdCreate(name, flags)
}

func getSeals(fd int) (int, error) {
	return unix.FcntlInt(uintptr(fd), unix.F_GET_SEALS, 0)
}

func addSeals(fd int, seals int) error {
	_, err := unix.FcntlInt(uintptr(fd), unix.F_ADD_SEALS, seals)
	return err
}
