//go:build linux || freebsd

package memfd

import (
	"fmt"
	"io"

	"github.com/efficientgo/core/merrors"
)

// DupToMemfd 将 reader 中的内容复制到一个只读的 memfd 中
// 返回的文件已经带有 Seal、Shrink、Grow 和 Write 密封，并且文件偏移位于开头，
// 可以安全地交给不受信任的进程（例如沙箱中的程序）使用
func DupToMemfd(name string, reader io.Reader) (*MemFile, error) {
	file, err := CreateSealable(name)
	if err != nil {
		return nil, fmt.Errorf("DupToMemfd: %w", err)
	}
	if _, err = io.Copy(file, reader); err != nil {
		return nil, merrors.New(fmt.Errorf("DupToMemfd: read from %w", err), file.Close()).Err()
	}
	if err = file.Freeze(); err != nil {
		return nil, merrors.New(fmt.Errorf("DupToMemfd: memfd seal %w", err), file.Close()).Err()
	}
	if _, err = file.Seek(0, io.SeekStart); err != nil {
		return nil, merrors.New(fmt.Errorf("DupToMemfd: file seek %w", err), file.Close()).Err()
	}
	return file, nil
}
