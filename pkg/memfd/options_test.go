//go:build linux || freebsd

package memfd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOptionsValueSemantics(t *testing.T) {
	base := NewCreateOptions()
	sealable := base.WithAllowSealing(true).WithName("foo")
	huge := sealable.WithHugeTLB(HugeTLB2MB)

	assert.False(t, base.SealingAllowed())
	assert.Equal(t, "", base.Name())
	assert.Equal(t, HugeTLBNone, base.HugeTLB())

	assert.True(t, sealable.SealingAllowed())
	assert.Equal(t, "foo", sealable.Name())
	assert.Equal(t, HugeTLBNone, sealable.HugeTLB())

	assert.True(t, huge.SealingAllowed())
	assert.Equal(t, HugeTLB2MB, huge.HugeTLB())
}

func TestCreateOptionsFlags(t *testing.T) {
	tests := []struct {
		name string
		opts CreateOptions
		want int
	}{
		{
			name: "default",
			opts: NewCreateOptions(),
			want: mfdCloexec,
		},
		{
			name: "sealing",
			opts: NewCreateOptions().WithAllowSealing(true),
			want: mfdCloexec | mfdAllowSealing,
		},
		{
			name: "default huge pages",
			opts: NewCreateOptions().WithHugeTLB(HugeTLBDefault),
			want: mfdCloexec | mfdHugeTLB,
		},
		{
			name: "2MB huge pages",
			opts: NewCreateOptions().WithAllowSealing(true).WithHugeTLB(HugeTLB2MB),
			want: mfdCloexec | mfdAllowSealing | mfdHugeTLB | 21<<mfdHugeShift,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.opts.flags())
		})
	}
}

func TestHugeTLB(t *testing.T) {
	tests := []struct {
		h        HugeTLB
		pageSize Size
		str      string
	}{
		{HugeTLBNone, 0, "None"},
		{HugeTLBDefault, 0, "Default"},
		{HugeTLB64KB, 64 << 10, "64 KiB"},
		{HugeTLB2MB, 2 << 20, "2 MiB"},
		{HugeTLB1GB, 1 << 30, "1 GiB"},
		{HugeTLB16GB, 16 << 30, "16 GiB"},
	}

	for _, tt := range tests {
		t.Run(tt.str, func(t *testing.T) {
			assert.Equal(t, tt.pageSize, tt.h.PageSize())
			assert.Equal(t, tt.str, tt.h.String())
			assert.Equal(t, tt.h != HugeTLBNone, tt.h.Enabled())
		})
	}
}

func TestHugeTLBSize(t *testing.T) {
	h, err := HugeTLBSize(2 << 20)
	require.NoError(t, err)
	assert.Equal(t, HugeTLB2MB, h)

	h, err = HugeTLBSize(16 << 30)
	require.NoError(t, err)
	assert.Equal(t, HugeTLB16GB, h)

	_, err = HugeTLBSize(3 << 20)
	assert.Error(t, err)
	_, err = HugeTLBSize(0)
	assert.Error(t, err)
	_, err = HugeTLBSize(1)
	assert.Error(t, err)
}

func TestParseHugeTLB(t *testing.T) {
	tests := []struct {
		in      string
		want    HugeTLB
		wantErr bool
	}{
		{in: "", want: HugeTLBNone},
		{in: "none", want: HugeTLBNone},
		{in: "Default", want: HugeTLBDefault},
		{in: "64K", want: HugeTLB64KB},
		{in: "2M", want: HugeTLB2MB},
		{in: "2MB", want: HugeTLB2MB},
		{in: "1g", want: HugeTLB1GB},
		{in: "3M", wantErr: true},
		{in: "huge", wantErr: true},
		{in: "B", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHugeTLB(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSize(t *testing.T) {
	tests := []struct {
		in   string
		want Size
		str  string
	}{
		{"512", 512, "512 B"},
		{"1k", 1 << 10, "1 KiB"},
		{"1536", 1536, "1.5 KiB"},
		{"256M", 256 << 20, "256 MiB"},
		{"2GB", 2 << 30, "2 GiB"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var s Size
			require.NoError(t, s.Set(tt.in))
			assert.Equal(t, tt.want, s)
			assert.Equal(t, tt.want.Byte(), uint64(s))
			assert.Equal(t, tt.str, s.String())
		})
	}

	var s Size
	assert.Error(t, s.Set(""))
	assert.Error(t, s.Set("-1"))
	assert.Error(t, s.Set("99999999999999999999G"))
}
