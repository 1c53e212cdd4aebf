package memhal

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// Buffer is a byte slice.
type Buffer struct {
	noop.Resource
	dev       *Device
	label     string
	usage     gputypes.BufferUsage
	data      []byte
	mapped    bool
	destroyed bool
}

// Data returns the buffer contents. The slice aliases the buffer.
func (b *Buffer) Data() []byte { return b.data }

// Usage returns the usage the buffer was created with.
func (b *Buffer) Usage() gputypes.BufferUsage { return b.usage }

// Label returns the buffer label.
func (b *Buffer) Label() string { return b.label }

// Destroyed reports whether DestroyBuffer was called.
func (b *Buffer) Destroyed() bool { return b.destroyed }

// Texture stores one byte slice per (layer, level). For 3D textures the
// single layer holds every depth slice of a level back to back.
type Texture struct {
	noop.Texture
	dev       *Device
	desc      hal.TextureDescriptor
	bpp       uint32
	levels    [][]byte
	destroyed bool
}

func newTexture(d *Device, desc *hal.TextureDescriptor, bpp uint32) *Texture {
	t := &Texture{dev: d, desc: *desc, bpp: bpp}
	t.desc.MipLevelCount = max(t.desc.MipLevelCount, 1)
	t.desc.Size.DepthOrArrayLayers = max(t.desc.Size.DepthOrArrayLayers, 1)
	t.levels = make([][]byte, t.layers()*t.desc.MipLevelCount)
	for layer := uint32(0); layer < t.layers(); layer++ {
		for level := uint32(0); level < t.desc.MipLevelCount; level++ {
			w, h, depth := t.extent(level)
			t.levels[layer*t.desc.MipLevelCount+level] = make([]byte, w*h*depth*bpp)
		}
	}
	return t
}

// Desc returns the descriptor the texture was created with.
func (t *Texture) Desc() hal.TextureDescriptor { return t.desc }

// Destroyed reports whether DestroyTexture was called.
func (t *Texture) Destroyed() bool { return t.destroyed }

// Level returns the contents of one level of one layer, rows top to bottom.
// The slice aliases the texture.
func (t *Texture) Level(layer, level uint32) []byte {
	return t.levels[layer*t.desc.MipLevelCount+level]
}

func (t *Texture) layers() uint32 {
	if t.desc.Dimension == gputypes.TextureDimension3D {
		return 1
	}
	return t.desc.Size.DepthOrArrayLayers
}

func (t *Texture) extent(level uint32) (w, h, depth uint32) {
	w = max(t.desc.Size.Width>>level, 1)
	h = max(t.desc.Size.Height>>level, 1)
	depth = 1
	if t.desc.Dimension == gputypes.TextureDimension3D {
		depth = max(t.desc.Size.DepthOrArrayLayers>>level, 1)
	}
	return w, h, depth
}

func (t *Texture) size() uint64 {
	var n uint64
	for _, l := range t.levels {
		n += uint64(len(l))
	}
	return n
}

// row returns the bytes of a run of width texels starting at (x, y) in
// slice z of level, where z is a layer for layered textures and a depth
// slice for 3D textures.
func (t *Texture) row(level, x, y, z, width uint32) ([]byte, error) {
	w, h, depth := t.extent(level)
	layer, slice := z, uint32(0)
	if t.desc.Dimension == gputypes.TextureDimension3D {
		layer, slice = 0, z
	}
	if level >= t.desc.MipLevelCount || layer >= t.layers() || slice >= depth ||
		x+width > w || y >= h {
		return nil, fmt.Errorf("memhal: texel run (%d,%d,%d)+%d outside level %d", x, y, z, width, level)
	}
	off := ((slice*h+y)*w + x) * t.bpp
	return t.Level(layer, level)[off : off+width*t.bpp], nil
}

// TextureView remembers the range it was created for.
type TextureView struct {
	noop.Resource
	Texture   *Texture
	Desc      hal.TextureViewDescriptor
	destroyed bool
}

// Destroyed reports whether DestroyTextureView was called.
func (v *TextureView) Destroyed() bool { return v.destroyed }
