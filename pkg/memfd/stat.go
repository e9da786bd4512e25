//go:build linux || freebsd

package memfd

import (
	"io/fs"
	"time"

	"golang.org/x/sys/unix"
)

// fileStat 实现 fs.FileInfo
// 对 memfd 而言文件类型总是普通文件，有意义的主要是大小
type fileStat struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	sys     unix.Stat_t
}

func (st *fileStat) Name() string       { return st.name }
func (st *fileStat) Size() int64        { return st.size }
func (st *fileStat) Mode() fs.FileMode  { return st.mode }
func (st *fileStat) ModTime() time.Time { return st.modTime }
func (st *fileStat) IsDir() bool        { return st.mode.IsDir() }
func (st *fileStat) Sys() any           { return &st.sys }

// Stat 返回文件的元数据，Sys 返回 *unix.Stat_t
func (m *MemFile) Stat() (fs.FileInfo, error) {
	st := &fileStat{name: m.name}
	err := m.withFD("stat", func(fd int) error {
		return ignoringEINTR(func() error { return unix.Fstat(fd, &st.sys) })
	})
	if err != nil {
		return nil, wrapOp("stat", err)
	}
	st.size = st.sys.Size
	st.modTime = time.Unix(st.sys.Mtim.Unix())
	st.mode = fileMode(uint32(st.sys.Mode))
	return st, nil
}

func fileMode(mode uint32) fs.FileMode {
	ret := fs.FileMode(mode & 0o777)
	switch mode & unix.S_IFMT {
	case unix.S_IFREG:
	case unix.S_IFDIR:
		ret |= fs.ModeDir
	default:
		ret |= fs.ModeIrregular
	}
	if mode&unix.S_ISUID != 0 {
		ret |= fs.ModeSetuid
	}
	if mode&unix.S_ISGID != 0 {
		ret |= fs.ModeSetgid
	}
	if mode&unix.S_ISVTX != 0 {
		ret |= fs.ModeSticky
	}
	return ret
}
