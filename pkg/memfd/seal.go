//go:build linux || freebsd

package memfd

import (
	"fmt"
	"math/bits"
	"strings"
)

// Seal 是可以加在 memfd 上的单个密封
// 密封作用于文件而不是描述符：指向同一文件的所有描述符共享同一组密封，
// 并且密封一旦添加就无法移除
type Seal uint32

// 密封取值与内核 F_SEAL_* 一致（Linux 与 FreeBSD 相同）
const (
	// SealSeal 禁止继续添加密封
	SealSeal Seal = 0x0001
	// SealShrink 禁止缩小文件
	SealShrink Seal = 0x0002
	// SealGrow 禁止增大文件
	SealGrow Seal = 0x0004
	// SealWrite 禁止所有写入，也禁止创建共享可写映射；
	// 已存在共享可写映射时添加该密封会失败
	SealWrite Seal = 0x0008
	// SealFutureWrite 与 SealWrite 类似，但已存在的共享可写映射仍可修改内容（仅 Linux）
	SealFutureWrite Seal = 0x0010
)

// allSeals 决定枚举顺序
var allSeals = [...]Seal{SealSeal, SealShrink, SealGrow, SealWrite, SealFutureWrite}

const sealMask = uint32(SealSeal | SealShrink | SealGrow | SealWrite | SealFutureWrite)

var sealNames = map[Seal]string{
	SealSeal:        "Seal",
	SealShrink:      "Shrink",
	SealGrow:        "Grow",
	SealWrite:       "Write",
	SealFutureWrite: "FutureWrite",
}

func (s Seal) String() string {
	if name, ok := sealNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Seal(%#x)", uint32(s))
}

// Seals 是一组密封
// 只提供并集操作，没有移除操作，与内核中密封只增不减的语义一致
type Seals struct {
	bits uint32
}

// NewSeals 由若干密封构成集合
func NewSeals(seals ...Seal) Seals {
	var s Seals
	for _, seal := range seals {
		s.bits |= uint32(seal)
	}
	s.bits &= sealMask
	return s
}

// SealsFromBits 从位图构造密封集合，包含未知位时返回 ErrUnknownSealBit
func SealsFromBits(b uint32) (Seals, error) {
	if unknown := b &^ sealMask; unknown != 0 {
		return Seals{}, fmt.Errorf("%w: %#x", ErrUnknownSealBit, unknown)
	}
	return Seals{bits: b}, nil
}

// SealsFromBitsTruncate 从位图构造密封集合，丢弃未知位
func SealsFromBitsTruncate(b uint32) Seals {
	return Seals{bits: b & sealMask}
}

// AllSeals 返回包含所有已知密封的集合
func AllSeals() Seals {
	return Seals{bits: sealMask}
}

// Bits 返回内核格式的位图
func (s Seals) Bits() uint32 {
	return s.bits
}

// Union 返回 s 与 other 的并集
func (s Seals) Union(other Seals) Seals {
	return Seals{bits: s.bits | other.bits}
}

// With 返回加入 seals 后的集合
func (s Seals) With(seals ...Seal) Seals {
	return s.Union(NewSeals(seals...))
}

// Contains 判断 other 中的密封是否全部在 s 中
func (s Seals) Contains(other Seals) bool {
	return s.bits&other.bits == other.bits
}

// Has 判断单个密封是否存在
func (s Seals) Has(seal Seal) bool {
	return s.Contains(NewSeals(seal))
}

// Intersects 判断 s 与 other 是否至少有一个共同的密封
func (s Seals) Intersects(other Seals) bool {
	return s.bits&other.bits != 0
}

// Len 返回集合中密封的数量
func (s Seals) Len() int {
	return bits.OnesCount32(s.bits)
}

// IsEmpty 判断集合是否为空
func (s Seals) IsEmpty() bool {
	return s.bits == 0
}

// IsAll 判断集合是否包含所有已知密封
func (s Seals) IsAll() bool {
	return s.bits == sealMask
}

// List 按 Seal, Shrink, Grow, Write, FutureWrite 的顺序列出集合中的密封
func (s Seals) List() []Seal {
	ret := make([]Seal, 0, s.Len())
	for _, seal := range allSeals {
		if s.Has(seal) {
			ret = append(ret, seal)
		}
	}
	return ret
}

// String 返回形如 Seals{Seal, Write} 的字符串
func (s Seals) String() string {
	names := make([]string, 0, s.Len())
	for _, seal := range s.List() {
		names = append(names, seal.String())
	}
	return fmt.Sprintf("Seals{%s}", strings.Join(names, ", "))
}
