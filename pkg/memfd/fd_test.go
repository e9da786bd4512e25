//go:build linux || freebsd

package memfd

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFDRelease(t *testing.T) {
	f, err := CreateDefault("release")
	require.NoError(t, err)

	fd := f.IntoFD()
	raw := fd.Raw()
	assert.GreaterOrEqual(t, raw, 0)

	assert.Equal(t, raw, fd.Release())
	assert.Equal(t, -1, fd.Raw())
	assert.Equal(t, -1, fd.Release())
	assert.NoError(t, fd.Close())

	// 释放出来的描述符仍然可用
	f, err = FromFD(NewFD(raw))
	require.NoError(t, err)
	assert.NoError(t, f.Close())
	assert.NoError(t, f.Close())
}

func TestFDClosed(t *testing.T) {
	fd := NewFD(-1)
	assert.Equal(t, -1, fd.Raw())
	assert.NoError(t, fd.Close())
	assert.Nil(t, fd.File("closed"))

	_, err := FromFD(fd)
	assert.ErrorIs(t, err, ErrInvalidDescriptor)
	assert.ErrorIs(t, err, os.ErrClosed)

	var fromErr *FromFDError
	if assert.True(t, errors.As(err, &fromErr)) {
		assert.Same(t, fd, fromErr.FD())
	}

	var nilFD *FD
	assert.Equal(t, -1, nilFD.Raw())
}

func TestFromFDBadDescriptor(t *testing.T) {
	// 一个足够大的、没有被打开的描述符
	fd := NewFD(1 << 20)
	defer fd.Release()

	_, err := FromFD(fd)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidDescriptor)

	var fromErr *FromFDError
	require.True(t, errors.As(err, &fromErr))
	assert.Same(t, fd, fromErr.FD())
}
