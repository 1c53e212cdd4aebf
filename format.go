package texcache

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
)

// PixelFormat is the console's texture and framebuffer pixel format.
// Values follow the hardware encoding.
type PixelFormat uint8

// Pixel formats.
const (
	FormatRGBA8  PixelFormat = 0
	FormatRGB8   PixelFormat = 1
	FormatRGB5A1 PixelFormat = 2
	FormatRGB565 PixelFormat = 3
	FormatRGBA4  PixelFormat = 4
	FormatIA8    PixelFormat = 5
	FormatRG8    PixelFormat = 6
	FormatI8     PixelFormat = 7
	FormatA8     PixelFormat = 8
	FormatIA4    PixelFormat = 9
	FormatI4     PixelFormat = 10
	FormatA4     PixelFormat = 11
	FormatETC1   PixelFormat = 12
	FormatETC1A4 PixelFormat = 13
	FormatD16    PixelFormat = 14
	FormatD24    PixelFormat = 16
	FormatD24S8  PixelFormat = 17

	FormatInvalid PixelFormat = 0xFF
)

// SurfaceType groups pixel formats by what they can be bound as.
type SurfaceType uint8

// Surface types.
const (
	SurfaceTypeInvalid SurfaceType = iota
	SurfaceTypeColor
	SurfaceTypeTexture
	SurfaceTypeDepth
	SurfaceTypeDepthStencil
)

func (t SurfaceType) String() string {
	switch t {
	case SurfaceTypeColor:
		return "Color"
	case SurfaceTypeTexture:
		return "Texture"
	case SurfaceTypeDepth:
		return "Depth"
	case SurfaceTypeDepthStencil:
		return "DepthStencil"
	default:
		return "Invalid"
	}
}

var formatNames = map[PixelFormat]string{
	FormatRGBA8:  "RGBA8",
	FormatRGB8:   "RGB8",
	FormatRGB5A1: "RGB5A1",
	FormatRGB565: "RGB565",
	FormatRGBA4:  "RGBA4",
	FormatIA8:    "IA8",
	FormatRG8:    "RG8",
	FormatI8:     "I8",
	FormatA8:     "A8",
	FormatIA4:    "IA4",
	FormatI4:     "I4",
	FormatA4:     "A4",
	FormatETC1:   "ETC1",
	FormatETC1A4: "ETC1A4",
	FormatD16:    "D16",
	FormatD24:    "D24",
	FormatD24S8:  "D24S8",
}

func (f PixelFormat) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("PixelFormat(%d)", uint8(f))
}

// ParsePixelFormat returns the format named s, as printed by String.
func ParsePixelFormat(s string) (PixelFormat, error) {
	for f, name := range formatNames {
		if strings.EqualFold(name, s) {
			return f, nil
		}
	}
	return FormatInvalid, &UnsupportedConfigurationError{What: "pixel format", Detail: s}
}

// BitsPerTexel returns the storage size of one texel in bits,
// or 0 for unknown formats.
func (f PixelFormat) BitsPerTexel() uint32 {
	switch f {
	case FormatRGBA8, FormatD24S8:
		return 32
	case FormatRGB8, FormatD24:
		return 24
	case FormatRGB5A1, FormatRGB565, FormatRGBA4, FormatIA8, FormatRG8, FormatD16:
		return 16
	case FormatI8, FormatA8, FormatIA4, FormatETC1A4:
		return 8
	case FormatI4, FormatA4, FormatETC1:
		return 4
	default:
		return 0
	}
}

// BytesPerTexel returns the byte size of one texel. It is 0 for formats
// whose texels are not byte addressable (4-bit and block-compressed formats).
func (f PixelFormat) BytesPerTexel() uint32 {
	switch f {
	case FormatETC1, FormatETC1A4:
		return 0
	}
	return f.BitsPerTexel() / 8
}

// Type returns the surface type of f.
func (f PixelFormat) Type() SurfaceType {
	switch {
	case f <= FormatRGBA4:
		return SurfaceTypeColor
	case f <= FormatETC1A4:
		return SurfaceTypeTexture
	case f == FormatD16 || f == FormatD24:
		return SurfaceTypeDepth
	case f == FormatD24S8:
		return SurfaceTypeDepthStencil
	default:
		return SurfaceTypeInvalid
	}
}

// IsDepth reports whether f carries depth data.
func (f PixelFormat) IsDepth() bool {
	t := f.Type()
	return t == SurfaceTypeDepth || t == SurfaceTypeDepthStencil
}

// NativeFormat returns the host texture format that stores f without
// conversion. ok is false for formats that are kept in a raw buffer.
func (f PixelFormat) NativeFormat() (format gputypes.TextureFormat, ok bool) {
	switch f {
	case FormatRGBA8:
		return gputypes.TextureFormatRGBA8Unorm, true
	case FormatIA8, FormatRG8:
		return gputypes.TextureFormatRG8Unorm, true
	case FormatI8, FormatA8:
		return gputypes.TextureFormatR8Unorm, true
	case FormatD16:
		return gputypes.TextureFormatDepth16Unorm, true
	default:
		return gputypes.TextureFormatUndefined, false
	}
}

// aspect returns the texture aspect used for copies of f.
func (f PixelFormat) aspect() gputypes.TextureAspect {
	if f == FormatD16 {
		return gputypes.TextureAspectDepthOnly
	}
	return gputypes.TextureAspectAll
}

// aspectClass collapses color and texture formats into one class.
func (f PixelFormat) aspectClass() SurfaceType {
	if t := f.Type(); t != SurfaceTypeTexture {
		return t
	}
	return SurfaceTypeColor
}

// CopyCompatible reports whether texels of src can be copied into dst as
// raw bytes.
func CopyCompatible(src, dst PixelFormat) bool {
	if src == dst {
		return true
	}
	if src.BytesPerTexel() == 0 || src.BytesPerTexel() != dst.BytesPerTexel() {
		return false
	}
	_, srcNative := src.NativeFormat()
	_, dstNative := dst.NativeFormat()
	if srcNative != dstNative {
		return false
	}
	if srcNative {
		// Native textures only copy between identical host formats.
		a, _ := src.NativeFormat()
		b, _ := dst.NativeFormat()
		return a == b
	}
	return src.aspectClass() == dst.aspectClass()
}
