// Package unixsocket 通过 Unix domain socket 的 SCM_RIGHTS 在进程间传递 memfd。
// 接收方得到的是指向同一文件的新描述符，内容和密封与发送方共享。
package unixsocket

import (
	"errors"
	"fmt"
	"net"
	"os"
	"runtime"

	"github.com/efficientgo/core/merrors"
	"github.com/zqzqsb/memfile/pkg/memfd"
	"golang.org/x/sys/unix"
)

// OOB 缓冲区大小为一个内存页，足够容纳单条消息允许的全部描述符（SCM_MAX_FD = 253）
const oobSize = 4 << 10

// Socket 封装了 SOCK_SEQPACKET 类型的 Unix socket 连接
type Socket struct {
	*net.UnixConn
	sendBuff []byte // OOB 发送缓冲区
	recvBuff []byte // OOB 接收缓冲区
}

func newSocket(conn *net.UnixConn) *Socket {
	return &Socket{
		UnixConn: conn,
		sendBuff: make([]byte, 0, oobSize),
		recvBuff: make([]byte, oobSize),
	}
}

// NewSocket 使用已有的 Unix socket 描述符创建 Socket
// fd 总是被接管：成功时由 Socket 持有，失败时被关闭。
// 需要 SOCK_SEQPACKET 类型以保证消息边界和描述符一一对应
func NewSocket(fd int) (*Socket, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("NewSocket: set nonblock on %d: %w", fd, err)
	}
	unix.CloseOnExec(fd)

	file := os.NewFile(uintptr(fd), "unix-socket")
	if file == nil {
		return nil, fmt.Errorf("NewSocket: %d is not a valid fd", fd)
	}
	defer file.Close()

	conn, err := net.FileConn(file)
	if err != nil {
		return nil, fmt.Errorf("NewSocket: %w", err)
	}
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("NewSocket: %d is not a valid unix socket connection", fd)
	}
	return newSocket(unixConn), nil
}

// NewSocketPair 创建一对相连的 Socket
func NewSocketPair() (*Socket, *Socket, error) {
	fd, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_SEQPACKET|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("NewSocketPair: failed to call socketpair %w", err)
	}

	ins, err := NewSocket(fd[0])
	if err != nil {
		unix.Close(fd[1])
		return nil, nil, fmt.Errorf("NewSocketPair: failed to call NewSocket on sender %w", err)
	}

	outs, err := NewSocket(fd[1])
	if err != nil {
		ins.Close()
		return nil, nil, fmt.Errorf("NewSocketPair: failed to call NewSocket receiver %w", err)
	}
	return ins, outs, nil
}

// SendFiles 发送数据 b，并通过 SCM_RIGHTS 附带 files 的描述符
// 发送方仍然持有自己的描述符，需要自行关闭
func (s *Socket) SendFiles(b []byte, files ...*memfd.MemFile) error {
	oob := s.sendBuff[:0]
	if len(files) > 0 {
		fds := make([]int, 0, len(files))
		for _, f := range files {
			fds = append(fds, int(f.Fd()))
		}
		oob = append(oob, unix.UnixRights(fds...)...)
	}
	_, _, err := s.WriteMsgUnix(b, oob, nil)
	runtime.KeepAlive(files)
	if err != nil {
		return fmt.Errorf("SendFiles: %w", err)
	}
	return nil
}

// ErrControlTruncated 表示控制消息被截断，部分描述符已经丢失
var ErrControlTruncated = errors.New("unixsocket: control message truncated")

// RecvFiles 接收数据到 b，并把收到的描述符包装为 MemFile
// 任何一个描述符不是 memfd，或者控制消息被截断时，所有收到的描述符都会被关闭
func (s *Socket) RecvFiles(b []byte) (int, []*memfd.MemFile, error) {
	n, oobn, flags, _, err := s.ReadMsgUnix(b, s.recvBuff)
	if err != nil {
		return 0, nil, fmt.Errorf("RecvFiles: %w", err)
	}
	msgs, err := unix.ParseSocketControlMessage(s.recvBuff[:oobn])
	if err != nil {
		return 0, nil, fmt.Errorf("RecvFiles: %w", err)
	}
	fds, err := parseRights(msgs)
	if err != nil {
		return 0, nil, fmt.Errorf("RecvFiles: %w", err)
	}
	if flags&unix.MSG_CTRUNC != 0 {
		errs := merrors.New(ErrControlTruncated)
		for _, fd := range fds {
			errs.Add(unix.Close(fd))
		}
		return 0, nil, fmt.Errorf("RecvFiles: %w", errs.Err())
	}
	files, err := adopt(fds)
	if err != nil {
		return 0, nil, fmt.Errorf("RecvFiles: %w", err)
	}
	return n, files, nil
}

// parseRights 解析 SCM_RIGHTS 控制消息，出错时关闭已经解析出的描述符
func parseRights(msgs []unix.SocketControlMessage) (fds []int, err error) {
	defer func() {
		if err != nil {
			for _, fd := range fds {
				unix.Close(fd)
			}
			fds = nil
		}
	}()

	for i := range msgs {
		m := &msgs[i]
		if m.Header.Level != unix.SOL_SOCKET || m.Header.Type != unix.SCM_RIGHTS {
			continue
		}
		rights, err := unix.ParseUnixRights(m)
		if err != nil {
			return fds, err
		}
		fds = append(fds, rights...)
	}
	return fds, nil
}

// adopt 将描述符逐个包装为 MemFile，失败时关闭全部描述符
func adopt(raw []int) ([]*memfd.MemFile, error) {
	fds := make([]*memfd.FD, 0, len(raw))
	for _, fd := range raw {
		fds = append(fds, memfd.NewFD(fd))
	}
	files := make([]*memfd.MemFile, 0, len(fds))
	for _, fd := range fds {
		f, err := memfd.FromFD(fd)
		if err != nil {
			errs := merrors.New(err)
			for _, fd := range fds {
				errs.Add(fd.Close())
			}
			return nil, errs.Err()
		}
		files = append(files, f)
	}
	return files, nil
}
