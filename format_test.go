package texcache

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
)

func TestPixelFormatSizes(t *testing.T) {
	tests := []struct {
		format PixelFormat
		bits   uint32
		bytes  uint32
		typ    SurfaceType
	}{
		{FormatRGBA8, 32, 4, SurfaceTypeColor},
		{FormatRGB8, 24, 3, SurfaceTypeColor},
		{FormatRGB565, 16, 2, SurfaceTypeColor},
		{FormatIA8, 16, 2, SurfaceTypeTexture},
		{FormatI8, 8, 1, SurfaceTypeTexture},
		{FormatI4, 4, 0, SurfaceTypeTexture},
		{FormatETC1, 4, 0, SurfaceTypeTexture},
		{FormatETC1A4, 8, 0, SurfaceTypeTexture},
		{FormatD16, 16, 2, SurfaceTypeDepth},
		{FormatD24, 24, 3, SurfaceTypeDepth},
		{FormatD24S8, 32, 4, SurfaceTypeDepthStencil},
		{FormatInvalid, 0, 0, SurfaceTypeInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			if got := tt.format.BitsPerTexel(); got != tt.bits {
				t.Errorf("BitsPerTexel() = %d, want %d", got, tt.bits)
			}
			if got := tt.format.BytesPerTexel(); got != tt.bytes {
				t.Errorf("BytesPerTexel() = %d, want %d", got, tt.bytes)
			}
			if got := tt.format.Type(); got != tt.typ {
				t.Errorf("Type() = %v, want %v", got, tt.typ)
			}
		})
	}
}

func TestNativeFormat(t *testing.T) {
	tests := []struct {
		format PixelFormat
		want   gputypes.TextureFormat
		ok     bool
	}{
		{FormatRGBA8, gputypes.TextureFormatRGBA8Unorm, true},
		{FormatIA8, gputypes.TextureFormatRG8Unorm, true},
		{FormatA8, gputypes.TextureFormatR8Unorm, true},
		{FormatD16, gputypes.TextureFormatDepth16Unorm, true},
		{FormatRGB8, gputypes.TextureFormatUndefined, false},
		{FormatD24S8, gputypes.TextureFormatUndefined, false},
	}
	for _, tt := range tests {
		got, ok := tt.format.NativeFormat()
		if got != tt.want || ok != tt.ok {
			t.Errorf("%s.NativeFormat() = (%v, %v), want (%v, %v)", tt.format, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCopyCompatible(t *testing.T) {
	tests := []struct {
		src, dst PixelFormat
		want     bool
	}{
		{FormatRGBA8, FormatRGBA8, true},
		{FormatIA8, FormatRG8, true},
		{FormatRGB565, FormatRGBA4, true},
		{FormatRGB565, FormatIA8, false},
		{FormatD16, FormatRG8, false},
		{FormatRGBA8, FormatD24S8, false},
		{FormatRGB8, FormatD24, false},
		{FormatETC1, FormatI4, false},
	}
	for _, tt := range tests {
		if got := CopyCompatible(tt.src, tt.dst); got != tt.want {
			t.Errorf("CopyCompatible(%s, %s) = %v, want %v", tt.src, tt.dst, got, tt.want)
		}
	}
}

func TestIsDepth(t *testing.T) {
	for _, f := range []PixelFormat{FormatD16, FormatD24, FormatD24S8} {
		if !f.IsDepth() {
			t.Errorf("%s.IsDepth() = false", f)
		}
	}
	if FormatRGBA8.IsDepth() {
		t.Error("RGBA8.IsDepth() = true")
	}
}

func TestParsePixelFormat(t *testing.T) {
	for f, name := range formatNames {
		got, err := ParsePixelFormat(name)
		if err != nil || got != f {
			t.Errorf("ParsePixelFormat(%q) = %v, %v", name, got, err)
		}
	}
	if got, err := ParsePixelFormat("rgb565"); err != nil || got != FormatRGB565 {
		t.Errorf("ParsePixelFormat(rgb565) = %v, %v", got, err)
	}
	if _, err := ParsePixelFormat("RGBA16F"); !errors.Is(err, ErrUnsupportedConfiguration) {
		t.Errorf("ParsePixelFormat(RGBA16F) = %v", err)
	}
}
