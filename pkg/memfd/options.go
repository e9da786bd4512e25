//go:build linux || freebsd

package memfd

import (
	"fmt"
	"math/bits"
	"strings"
)

// memfd_create 的标志位，取值与 Linux uapi/linux/memfd.h 和 FreeBSD sys/mman.h 一致
const (
	mfdCloexec      = 0x0001
	mfdAllowSealing = 0x0002
	mfdHugeTLB      = 0x0004

	mfdHugeShift = 26
	mfdHugeMask  = 0x3f
)

// HugeTLB 选择 memfd 的大页支持方式
// 编码方式与内核相同：MFD_HUGETLB 加上页大小的 log2 左移 26 位
type HugeTLB uint32

// 大页选项，具体支持的尺寸取决于 CPU 和内核配置
// 见 https://www.kernel.org/doc/html/latest/admin-guide/mm/hugetlbpage.html
const (
	HugeTLBNone    HugeTLB = 0           // 不使用大页（默认）
	HugeTLBDefault HugeTLB = mfdHugeTLB // 使用系统默认的大页尺寸

	HugeTLB64KB  HugeTLB = mfdHugeTLB | 16<<mfdHugeShift
	HugeTLB512KB HugeTLB = mfdHugeTLB | 19<<mfdHugeShift
	HugeTLB1MB   HugeTLB = mfdHugeTLB | 20<<mfdHugeShift
	HugeTLB2MB   HugeTLB = mfdHugeTLB | 21<<mfdHugeShift
	HugeTLB8MB   HugeTLB = mfdHugeTLB | 23<<mfdHugeShift
	HugeTLB16MB  HugeTLB = mfdHugeTLB | 24<<mfdHugeShift
	HugeTLB32MB  HugeTLB = mfdHugeTLB | 25<<mfdHugeShift
	HugeTLB256MB HugeTLB = mfdHugeTLB | 28<<mfdHugeShift
	HugeTLB512MB HugeTLB = mfdHugeTLB | 29<<mfdHugeShift
	HugeTLB1GB   HugeTLB = mfdHugeTLB | 30<<mfdHugeShift
	HugeTLB2GB   HugeTLB = mfdHugeTLB | 31<<mfdHugeShift
	HugeTLB16GB  HugeTLB = mfdHugeTLB | 34<<mfdHugeShift
)

// HugeTLBSize 根据明确的页大小构造 HugeTLB，页大小必须是 2 的幂
func HugeTLBSize(size Size) (HugeTLB, error) {
	s := uint64(size)
	if s == 0 || s&(s-1) != 0 {
		return HugeTLBNone, fmt.Errorf("memfd: huge page size %v is not a power of two", size)
	}
	shift := bits.TrailingZeros64(s)
	if shift == 0 {
		return HugeTLBNone, fmt.Errorf("memfd: huge page size %v is too small", size)
	}
	return HugeTLB(mfdHugeTLB | uint32(shift)<<mfdHugeShift), nil
}

// ParseHugeTLB 解析 "none"、"default" 或者 "2M" 这样的页大小
func ParseHugeTLB(str string) (HugeTLB, error) {
	switch strings.ToLower(str) {
	case "", "none":
		return HugeTLBNone, nil
	case "default":
		return HugeTLBDefault, nil
	}
	var size Size
	if err := size.Set(str); err != nil {
		return HugeTLBNone, err
	}
	return HugeTLBSize(size)
}

// Enabled 判断是否使用大页
func (h HugeTLB) Enabled() bool {
	return h&mfdHugeTLB != 0
}

// PageSize 返回明确指定的页大小，不使用大页或使用默认大小时返回 0
func (h HugeTLB) PageSize() Size {
	if !h.Enabled() {
		return 0
	}
	shift := uint32(h) >> mfdHugeShift & mfdHugeMask
	if shift == 0 {
		return 0
	}
	return Size(1) << shift
}

func (h HugeTLB) String() string {
	switch {
	case !h.Enabled():
		return "None"
	case h.PageSize() == 0:
		return "Default"
	default:
		return h.PageSize().String()
	}
}

// CreateOptions 描述如何创建 MemFile
// CreateOptions 是值类型，With 系列方法返回修改后的副本，不影响原值
type CreateOptions struct {
	name         string
	allowSealing bool
	hugeTLB      HugeTLB
}

// NewCreateOptions 返回默认选项：不允许密封，不使用大页
// 创建的描述符总是带有 close-on-exec 标志
func NewCreateOptions() CreateOptions {
	return CreateOptions{}
}

// WithName 设置文件名，仅用于调试（在 Linux 上出现在 /proc/self/fd 中），
// 多个文件可以使用相同的名字
func (o CreateOptions) WithName(name string) CreateOptions {
	o.name = name
	return o
}

// WithAllowSealing 设置是否允许对文件添加密封
func (o CreateOptions) WithAllowSealing(allow bool) CreateOptions {
	o.allowSealing = allow
	return o
}

// WithHugeTLB 设置大页选项
func (o CreateOptions) WithHugeTLB(h HugeTLB) CreateOptions {
	o.hugeTLB = h
	return o
}

// Name 返回设置的文件名
func (o CreateOptions) Name() string {
	return o.name
}

// SealingAllowed 返回是否允许密封
func (o CreateOptions) SealingAllowed() bool {
	return o.allowSealing
}

// HugeTLB 返回大页选项
func (o CreateOptions) HugeTLB() HugeTLB {
	return o.hugeTLB
}

// Create 使用当前选项创建 MemFile，等价于 Create(o.Name(), o)
func (o CreateOptions) Create() (*MemFile, error) {
	return Create(o.name, o)
}

// flags 返回 memfd_create 使用的标志位
func (o CreateOptions) flags() int {
	flags := mfdCloexec
	if o.allowSealing {
		flags |= mfdAllowSealing
	}
	return flags | int(o.hugeTLB)
}
