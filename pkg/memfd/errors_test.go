//go:build linux || freebsd

package memfd

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestIOError(t *testing.T) {
	tests := []struct {
		op    string
		errno unix.Errno
		kind  error
	}{
		{"write", unix.EPERM, ErrPermissionDenied},
		{"truncate", unix.EPERM, ErrPermissionDenied},
		{"write", unix.EBADF, ErrPermissionDenied},
		{"pwrite", unix.EBADF, ErrPermissionDenied},
		{"stat", unix.EBADF, ErrInvalidDescriptor},
		{"read", unix.EBADF, ErrInvalidDescriptor},
		{"add_seals", unix.EBUSY, ErrOperationFailed},
		{"write", unix.ENOMEM, ErrOperationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.op+" "+tt.errno.Error(), func(t *testing.T) {
			err := ioError(tt.op, tt.errno)
			assert.ErrorIs(t, err, tt.kind)
			assert.ErrorIs(t, err, tt.errno)

			var opErr *OpError
			if assert.True(t, errors.As(err, &opErr)) {
				assert.Equal(t, tt.op, opErr.Op)
				assert.Equal(t, tt.errno, opErr.Errno())
			}
		})
	}
}

func TestOpErrorMessage(t *testing.T) {
	err := opError("add_seals", ErrSealedSealSet, unix.EPERM)
	assert.Equal(t, "memfd: seal set is sealed (add_seals): operation not permitted", err.Error())
	assert.ErrorIs(t, err, fs.ErrPermission)

	err = opError("map_immutable", ErrNotImmutable, nil)
	assert.Equal(t, "memfd: file is not sealed against write and shrink (map_immutable)", err.Error())
	assert.Equal(t, unix.Errno(0), err.(*OpError).Errno())
}

func TestWrapOpKeepsKind(t *testing.T) {
	inner := opError("add_seals", ErrSealingNotAllowed, unix.EPERM)
	err := wrapOp("add_seals", inner)
	assert.Same(t, inner, err)
	assert.False(t, errors.Is(err, ErrPermissionDenied))
}
