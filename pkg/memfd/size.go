//go:build linux || freebsd

package memfd

import (
	"fmt"
	"strconv"
)

// Size 表示字节数，用于描述大页尺寸
// Size 实现了 flag.Value，可以直接绑定到命令行参数
type Size uint64

// String 实现 stringer 接口用于打印
func (s Size) String() string {
	t := uint64(s)
	switch {
	case t < 1<<10:
		return fmt.Sprintf("%d B", t)
	case t < 1<<20:
		return formatUnit(t, 10, "KiB")
	case t < 1<<30:
		return formatUnit(t, 20, "MiB")
	default:
		return formatUnit(t, 30, "GiB")
	}
}

func formatUnit(t uint64, shift uint, unit string) string {
	if t&(1<<shift-1) == 0 {
		return fmt.Sprintf("%d %s", t>>shift, unit)
	}
	return fmt.Sprintf("%.1f %s", float64(t)/float64(uint64(1)<<shift), unit)
}

// Set 从字符串解析大小，例如 "64K"、"2M"、"1GB"
func (s *Size) Set(str string) error {
	if str == "" {
		return fmt.Errorf("memfd: empty size")
	}
	switch str[len(str)-1] {
	case 'b', 'B':
		str = str[:len(str)-1]
	}
	if str == "" {
		return fmt.Errorf("memfd: empty size")
	}

	factor := 0
	switch str[len(str)-1] {
	case 'k', 'K':
		factor = 10
		str = str[:len(str)-1]
	case 'm', 'M':
		factor = 20
		str = str[:len(str)-1]
	case 'g', 'G':
		factor = 30
		str = str[:len(str)-1]
	}

	t, err := strconv.ParseUint(str, 10, 64)
	if err != nil {
		return fmt.Errorf("memfd: invalid size %q: %w", str, err)
	}
	if t<<factor>>factor != t {
		return fmt.Errorf("memfd: size %q overflows", str)
	}
	*s = Size(t << factor)
	return nil
}

// Byte 返回字节大小
func (s Size) Byte() uint64 {
	return uint64(s)
}
