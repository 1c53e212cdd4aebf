package texcache

import (
	"fmt"
	"image"
	"math/bits"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/texcache/tiling"
)

// GPUAddr is an emulated GPU virtual address.
type GPUAddr uint64

// TargetKind is the dimensionality of a surface or view.
type TargetKind uint8

// Target kinds.
const (
	Target2D TargetKind = iota
	Target1D
	Target3D
	TargetCube
	Target2DArray
	TargetCubeArray
	TargetBuffer
)

func (k TargetKind) String() string {
	switch k {
	case Target1D:
		return "1D"
	case Target2D:
		return "2D"
	case Target3D:
		return "3D"
	case TargetCube:
		return "Cube"
	case Target2DArray:
		return "2DArray"
	case TargetCubeArray:
		return "CubeArray"
	case TargetBuffer:
		return "Buffer"
	default:
		return fmt.Sprintf("TargetKind(%d)", uint8(k))
	}
}

// SurfaceParams describes a cached surface. Together with the GPU address
// it forms the cache key, so it must stay comparable.
type SurfaceParams struct {
	Format    PixelFormat
	Target    TargetKind
	Width     uint32
	Height    uint32
	Depth     uint32
	NumLevels uint32
	NumLayers uint32
	Tiled     bool
}

// Validate checks that the parameters describe a surface texcache can back.
func (p SurfaceParams) Validate() error {
	if p.Format.BytesPerTexel() == 0 {
		return unsupported("format", "%s is not byte addressable", p.Format)
	}
	if p.Width == 0 || p.Height == 0 || p.Depth == 0 || p.NumLevels == 0 || p.NumLayers == 0 {
		return unsupported("surface size", "%dx%dx%d, %d levels, %d layers",
			p.Width, p.Height, p.Depth, p.NumLevels, p.NumLayers)
	}
	if p.NumLevels > maxLevels(p.Width, p.Height, p.Depth) {
		return unsupported("level count", "%d levels for %dx%dx%d", p.NumLevels, p.Width, p.Height, p.Depth)
	}
	switch p.Target {
	case Target1D:
		if p.Height != 1 || p.Depth != 1 || p.Tiled {
			return unsupported("1D surface", "must be untiled with height and depth 1")
		}
	case Target2D, Target2DArray:
		if p.Depth != 1 {
			return unsupported("2D surface", "depth %d", p.Depth)
		}
	case Target3D:
		if p.NumLayers != 1 {
			return unsupported("3D surface", "%d layers", p.NumLayers)
		}
	case TargetCube, TargetCubeArray:
		if p.Width != p.Height || p.Depth != 1 || p.NumLayers%6 != 0 {
			return unsupported("cube surface", "%dx%d with %d layers", p.Width, p.Height, p.NumLayers)
		}
	case TargetBuffer:
		if p.Height != 1 || p.Depth != 1 || p.NumLevels != 1 || p.NumLayers != 1 || p.Tiled {
			return unsupported("buffer surface", "must be a single untiled row")
		}
	default:
		return unsupported("target", "%s", p.Target)
	}
	if p.Tiled {
		for level := uint32(0); level < p.NumLevels; level++ {
			w, h := p.MipWidth(level), p.MipHeight(level)
			if w%tiling.TileSize != 0 || h%tiling.TileSize != 0 {
				return unsupported("tiled surface", "level %d is %dx%d, not a multiple of %d",
					level, w, h, tiling.TileSize)
			}
		}
	}
	return nil
}

func maxLevels(w, h, d uint32) uint32 {
	return uint32(bits.Len32(max(w, h, d))) //nolint:gosec // G115: Len32 is at most 32
}

// BytesPerTexel returns the byte size of one texel.
func (p SurfaceParams) BytesPerTexel() uint32 { return p.Format.BytesPerTexel() }

// MipWidth returns the width of the given level.
func (p SurfaceParams) MipWidth(level uint32) uint32 { return max(1, p.Width>>level) }

// MipHeight returns the height of the given level.
func (p SurfaceParams) MipHeight(level uint32) uint32 { return max(1, p.Height>>level) }

// MipDepth returns the depth of the given level. Only 3D surfaces shrink in depth.
func (p SurfaceParams) MipDepth(level uint32) uint32 {
	if p.Target != Target3D {
		return p.Depth
	}
	return max(1, p.Depth>>level)
}

// LevelSize returns the byte size of one level of one layer.
func (p SurfaceParams) LevelSize(level uint32) uint64 {
	return uint64(p.MipWidth(level)) * uint64(p.MipHeight(level)) *
		uint64(p.MipDepth(level)) * uint64(p.BytesPerTexel())
}

// LayerSize returns the byte size of all levels of one layer.
func (p SurfaceParams) LayerSize() uint64 {
	var n uint64
	for level := uint32(0); level < p.NumLevels; level++ {
		n += p.LevelSize(level)
	}
	return n
}

// SizeInBytes returns the size of the surface in linear staging form:
// every level of every layer, layer-major.
func (p SurfaceParams) SizeInBytes() uint64 {
	return p.LayerSize() * uint64(p.NumLayers)
}

// LevelOffset returns the staging offset of (layer, level).
func (p SurfaceParams) LevelOffset(layer, level uint32) uint64 {
	off := uint64(layer) * p.LayerSize()
	for l := uint32(0); l < level; l++ {
		off += p.LevelSize(l)
	}
	return off
}

// IsBuffer reports whether the surface is backed by a raw buffer instead of
// an image.
func (p SurfaceParams) IsBuffer() bool {
	if p.Target == TargetBuffer {
		return true
	}
	_, ok := p.Format.NativeFormat()
	return !ok
}

// MainView returns the view parameters covering the whole surface.
func (p SurfaceParams) MainView() ViewParams {
	return ViewParams{
		Target:    p.Target,
		NumLayers: p.NumLayers,
		NumLevels: p.NumLevels,
	}
}

func (p SurfaceParams) textureDimension() gputypes.TextureDimension {
	switch p.Target {
	case Target1D:
		return gputypes.TextureDimension1D
	case Target3D:
		return gputypes.TextureDimension3D
	default:
		return gputypes.TextureDimension2D
	}
}

// depthOrLayers returns the third texture extent: depth for 3D surfaces,
// the layer count otherwise.
func (p SurfaceParams) depthOrLayers() uint32 {
	if p.Target == Target3D {
		return p.Depth
	}
	return p.NumLayers
}

// ViewParams identifies one view of a surface.
type ViewParams struct {
	Target    TargetKind
	BaseLayer uint32
	NumLayers uint32
	BaseLevel uint32
	NumLevels uint32
}

func (v ViewParams) validate(p SurfaceParams) error {
	if v.NumLayers == 0 || v.NumLevels == 0 {
		return unsupported("view range", "empty range %+v", v)
	}
	if v.BaseLayer+v.NumLayers > p.NumLayers || v.BaseLevel+v.NumLevels > p.NumLevels {
		return unsupported("view range", "layers [%d,%d) levels [%d,%d) outside %d layers, %d levels",
			v.BaseLayer, v.BaseLayer+v.NumLayers, v.BaseLevel, v.BaseLevel+v.NumLevels,
			p.NumLayers, p.NumLevels)
	}
	if (v.Target == TargetBuffer) != (p.Target == TargetBuffer) {
		return unsupported("view target", "%s view of %s surface", v.Target, p.Target)
	}
	return nil
}

func (v ViewParams) viewDimension() gputypes.TextureViewDimension {
	switch v.Target {
	case Target1D:
		return gputypes.TextureViewDimension1D
	case Target3D:
		return gputypes.TextureViewDimension3D
	case TargetCube:
		return gputypes.TextureViewDimensionCube
	case TargetCubeArray:
		return gputypes.TextureViewDimensionCubeArray
	case Target2DArray:
		return gputypes.TextureViewDimension2DArray
	default:
		if v.NumLayers > 1 {
			return gputypes.TextureViewDimension2DArray
		}
		return gputypes.TextureViewDimension2D
	}
}

// CopyParams describes an image-to-image region copy. Z selects the layer
// for layered surfaces and the slice for 3D surfaces.
type CopyParams struct {
	SrcX, SrcY, SrcZ uint32
	DstX, DstY, DstZ uint32
	SrcLevel         uint32
	DstLevel         uint32
	Width            uint32
	Height           uint32
	Depth            uint32
}

// NewCopyParams returns a copy of a whole width x height x depth region
// at the same level in both surfaces.
func NewCopyParams(width, height, depth, level uint32) CopyParams {
	return CopyParams{
		SrcLevel: level,
		DstLevel: level,
		Width:    width,
		Height:   height,
		Depth:    depth,
	}
}

// Filter selects how a blit samples its source.
type Filter uint8

// Blit filters.
const (
	FilterNearest Filter = iota
	FilterLinear
)

func (f Filter) String() string {
	if f == FilterLinear {
		return "Linear"
	}
	return "Nearest"
}

func (f Filter) mode() gputypes.FilterMode {
	if f == FilterLinear {
		return gputypes.FilterModeLinear
	}
	return gputypes.FilterModeNearest
}

// BlitConfig describes a scaling blit between two views. Rectangles are in
// texels of the views' base levels.
type BlitConfig struct {
	SrcRect image.Rectangle
	DstRect image.Rectangle
	Filter  Filter
	Swizzle Swizzle
}
