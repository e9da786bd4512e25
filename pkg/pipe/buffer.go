//go:build linux || freebsd

// Package pipe 创建管道，并把读取端最多指定字节数的数据收集到 memfd 中
// 收集完成后可以把内存文件密封为只读，再交给其他进程
package pipe

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/efficientgo/core/merrors"
	"github.com/zqzqsb/memfile/pkg/memfd"
)

// Buffer 用于创建一个可写的管道，并将最多 Max 字节的数据读取到内存文件中
// 主要用于收集和限制程序的输出数据（如标准输出或标准错误）
type Buffer struct {
	W    *os.File        // 管道的写入端
	File *memfd.MemFile  // 存储读取数据的内存文件
	Done <-chan struct{} // 信号通道，当读取完成时关闭
	Max  memfd.Size      // 最大允许读取的字节数

	pc *pipeCopy
}

// pipeCopy 是管道读取端的复制过程，err 在 done 关闭之后才可以读取
type pipeCopy struct {
	done chan struct{}
	err  error
}

func newPipe(writer io.Writer, n int64) (*pipeCopy, *os.File, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, nil, err
	}
	c := &pipeCopy{done: make(chan struct{})}
	go func() {
		if _, err := io.CopyN(writer, r, n); err != io.EOF {
			c.err = err
		}
		close(c.done)
		// 丢弃剩余数据，写入端不会因为管道满而阻塞
		io.Copy(io.Discard, r)
		r.Close()
	}()
	return c, w, nil
}

// NewPipe 创建一个管道，并启动一个 goroutine 将其读取端最多 n 字节的数据复制到 writer
// 复制结束后返回的通道收到复制的错误（成功时为 nil）然后关闭，剩余数据被丢弃。
// 调用者需要负责关闭返回的写入端
func NewPipe(writer io.Writer, n int64) (<-chan error, *os.File, error) {
	c, w, err := newPipe(writer, n)
	if err != nil {
		return nil, nil, err
	}
	result := make(chan error, 1)
	go func() {
		<-c.done
		result <- c.err
		close(result)
	}()
	return result, w, nil
}

// NewBuffer 创建一个 Buffer，数据收集到名为 name 的可密封内存文件中
// 多读取一个字节，用于判断数据是否超出 max
func NewBuffer(name string, max memfd.Size) (*Buffer, error) {
	file, err := memfd.CreateSealable(name)
	if err != nil {
		return nil, fmt.Errorf("NewBuffer: %w", err)
	}
	c, w, err := newPipe(file, int64(max)+1)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("NewBuffer: %w", err)
	}
	return &Buffer{
		W:    w,
		File: file,
		Done: c.done,
		Max:  max,
		pc:   c,
	}, nil
}

// Seal 等待读取完成，把超出 Max 的部分截掉，加上只读密封并将偏移移回开头
// truncated 表示写入的数据是否超过了 Max；写入内存文件失败时返回该错误。
// 调用前需要关闭写入端（包括子进程持有的副本），否则会一直等待
func (b *Buffer) Seal() (file *memfd.MemFile, truncated bool, err error) {
	<-b.Done
	if b.pc.err != nil {
		return nil, false, fmt.Errorf("Seal: copy to memfd %w", b.pc.err)
	}

	size, err := b.File.Size()
	if err != nil {
		return nil, false, fmt.Errorf("Seal: %w", err)
	}
	if uint64(size) > b.Max.Byte() {
		truncated = true
		if err = b.File.Truncate(int64(b.Max)); err != nil {
			return nil, false, fmt.Errorf("Seal: %w", err)
		}
	}
	if err = b.File.Freeze(); err != nil {
		return nil, false, fmt.Errorf("Seal: %w", err)
	}
	if _, err = b.File.Seek(0, io.SeekStart); err != nil {
		return nil, false, fmt.Errorf("Seal: %w", err)
	}
	return b.File, truncated, nil
}

// Close 关闭写入端和内存文件，写入端已经关闭时忽略对应的错误
func (b *Buffer) Close() error {
	errs := merrors.New()
	if err := b.W.Close(); !errors.Is(err, os.ErrClosed) {
		errs.Add(err)
	}
	errs.Add(b.File.Close())
	return errs.Err()
}

// String 返回 Buffer 的当前状态，格式为 Buffer[当前字节数/最大字节数]
func (b *Buffer) String() string {
	size, err := b.File.Size()
	if err != nil {
		return fmt.Sprintf("Buffer[?/%v]", b.Max)
	}
	return fmt.Sprintf("Buffer[%d/%d]", size, b.Max.Byte())
}
