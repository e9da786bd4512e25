package pipe

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zqzqsb/memfile/pkg/memfd"
)

func TestBufferSeal(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		max       memfd.Size
		want      string
		truncated bool
	}{
		{name: "empty", input: "", max: 16, want: ""},
		{name: "fits", input: "Hello world!", max: 16, want: "Hello world!"},
		{name: "exact", input: "Hello world!", max: 12, want: "Hello world!"},
		{name: "too long", input: "Hello world!", max: 5, want: "Hello", truncated: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBuffer("output", tt.max)
			require.NoError(t, err)
			defer b.Close()

			_, err = io.WriteString(b.W, tt.input)
			require.NoError(t, err)
			require.NoError(t, b.W.Close())

			f, truncated, err := b.Seal()
			require.NoError(t, err)
			assert.Equal(t, tt.truncated, truncated)

			data, err := io.ReadAll(f)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))

			seals, err := f.Seals()
			require.NoError(t, err)
			assert.True(t, seals.Has(memfd.SealWrite))
			assert.True(t, seals.Has(memfd.SealSeal))
		})
	}
}

func TestBufferString(t *testing.T) {
	b, err := NewBuffer("output", 1<<10)
	require.NoError(t, err)
	defer b.Close()

	_, err = io.WriteString(b.W, "abc")
	require.NoError(t, err)
	require.NoError(t, b.W.Close())
	<-b.Done
	assert.Equal(t, "Buffer[3/1024]", b.String())
}

func TestBufferSealCopyError(t *testing.T) {
	b, err := NewBuffer("output", 16)
	require.NoError(t, err)
	defer b.Close()

	// 内存文件先被关闭，读取端的写入会失败
	require.NoError(t, b.File.Close())
	_, err = io.WriteString(b.W, "Hello world!")
	require.NoError(t, err)
	require.NoError(t, b.W.Close())

	f, truncated, err := b.Seal()
	require.Error(t, err)
	assert.ErrorIs(t, err, memfd.ErrInvalidDescriptor)
	assert.Nil(t, f)
	assert.False(t, truncated)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestNewPipe(t *testing.T) {
	var sb strings.Builder
	done, w, err := NewPipe(&sb, 5)
	require.NoError(t, err)
	_, err = io.WriteString(w, "Hello world!")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.NoError(t, <-done)
	assert.Equal(t, "Hello", sb.String())

	done, w, err = NewPipe(failingWriter{}, 5)
	require.NoError(t, err)
	_, err = io.WriteString(w, "Hello")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.EqualError(t, <-done, "disk full")
}

func TestBufferClose(t *testing.T) {
	b, err := NewBuffer("output", 16)
	require.NoError(t, err)
	assert.NoError(t, b.Close())
	assert.NoError(t, b.Close())
}
