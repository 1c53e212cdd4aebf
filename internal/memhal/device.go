// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package memhal is an in-memory wgpu HAL backend for tests.
//
// Buffers and textures keep their contents in Go slices. Commands are
// recorded as closures and executed when the command buffer is submitted,
// so copies behave like a real queue: nothing moves until Submit. Render
// passes are counted but never rasterized.
//
// Types that need no state are borrowed from hal/noop.
package memhal

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// Stats counts device activity.
type Stats struct {
	BuffersCreated    int
	BuffersDestroyed  int
	TexturesCreated   int
	TexturesDestroyed int
	ViewsCreated      int
	ViewsDestroyed    int
	SamplersCreated   int
	PipelinesCreated  int
	ShaderModules     int
	TextureBarriers   int
	BufferBarriers    int
	Copies            int
	Draws             int
	Submits           int
}

// Device is an in-memory hal.Device.
type Device struct {
	noop.Device

	mu        sync.Mutex
	budget    uint64
	allocated uint64
	stats     Stats
	barriers  []hal.TextureBarrier
	labels    []string
}

var _ hal.Device = (*Device)(nil)

// New returns a device and its queue.
func New() (*Device, *Queue) {
	d := &Device{}
	return d, &Queue{dev: d, autoComplete: true}
}

// SetBudget limits the bytes of live buffers and textures. Allocations past
// the budget fail with hal.ErrDeviceOutOfMemory. Zero removes the limit.
func (d *Device) SetBudget(bytes uint64) {
	d.mu.Lock()
	d.budget = bytes
	d.mu.Unlock()
}

// Allocated returns the bytes held by live buffers and textures.
func (d *Device) Allocated() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.allocated
}

// Stats returns a snapshot of the device counters.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// TextureBarriers returns every texture barrier recorded so far.
func (d *Device) TextureBarriers() []hal.TextureBarrier {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]hal.TextureBarrier(nil), d.barriers...)
}

// Labels returns the labels of created buffers and textures in order.
func (d *Device) Labels() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.labels...)
}

func (d *Device) reserve(label string, size uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.budget != 0 && d.allocated+size > d.budget {
		return fmt.Errorf("memhal: %s needs %d bytes, %d of %d in use: %w",
			label, size, d.allocated, d.budget, hal.ErrDeviceOutOfMemory)
	}
	d.allocated += size
	d.labels = append(d.labels, label)
	return nil
}

func (d *Device) release(size uint64) {
	d.mu.Lock()
	d.allocated -= size
	d.mu.Unlock()
}

func (d *Device) count(fn func(*Stats)) {
	d.mu.Lock()
	fn(&d.stats)
	d.mu.Unlock()
}

// CreateBuffer allocates a zeroed buffer.
func (d *Device) CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error) {
	if desc == nil || desc.Size == 0 {
		return nil, fmt.Errorf("memhal: invalid buffer descriptor")
	}
	if err := d.reserve(desc.Label, desc.Size); err != nil {
		return nil, err
	}
	d.count(func(s *Stats) { s.BuffersCreated++ })
	return &Buffer{dev: d, label: desc.Label, usage: desc.Usage, data: make([]byte, desc.Size)}, nil
}

// DestroyBuffer frees the buffer's memory.
func (d *Device) DestroyBuffer(buffer hal.Buffer) {
	b, ok := buffer.(*Buffer)
	if !ok || b.destroyed {
		return
	}
	b.destroyed = true
	d.release(uint64(len(b.data)))
	d.count(func(s *Stats) { s.BuffersDestroyed++ })
}

// MapBuffer returns a pointer into the buffer contents.
func (d *Device) MapBuffer(buffer hal.Buffer, offset, size uint64) (hal.BufferMapping, error) {
	b, ok := buffer.(*Buffer)
	if !ok || b.destroyed || size == 0 || offset+size > uint64(len(b.data)) {
		return hal.BufferMapping{}, hal.ErrInvalidMapRange
	}
	b.mapped = true
	return hal.BufferMapping{Ptr: unsafe.Pointer(&b.data[offset]), IsCoherent: true}, nil
}

// UnmapBuffer ends a mapping.
func (d *Device) UnmapBuffer(buffer hal.Buffer) error {
	b, ok := buffer.(*Buffer)
	if !ok {
		return fmt.Errorf("memhal: unmap %T", buffer)
	}
	b.mapped = false
	return nil
}

// CreateTexture allocates zeroed storage for every layer and level.
func (d *Device) CreateTexture(desc *hal.TextureDescriptor) (hal.Texture, error) {
	if desc == nil {
		return nil, fmt.Errorf("memhal: nil texture descriptor")
	}
	bpp := formatSize(desc.Format)
	if bpp == 0 {
		return nil, fmt.Errorf("memhal: unsupported texture format %v", desc.Format)
	}
	t := newTexture(d, desc, bpp)
	if err := d.reserve(desc.Label, t.size()); err != nil {
		return nil, err
	}
	d.count(func(s *Stats) { s.TexturesCreated++ })
	return t, nil
}

// DestroyTexture frees the texture's memory.
func (d *Device) DestroyTexture(texture hal.Texture) {
	t, ok := texture.(*Texture)
	if !ok || t.destroyed {
		return
	}
	t.destroyed = true
	d.release(t.size())
	d.count(func(s *Stats) { s.TexturesDestroyed++ })
}

// CreateTextureView records the view descriptor.
func (d *Device) CreateTextureView(texture hal.Texture, desc *hal.TextureViewDescriptor) (hal.TextureView, error) {
	t, ok := texture.(*Texture)
	if !ok || t.destroyed {
		return nil, fmt.Errorf("memhal: view of invalid texture %T", texture)
	}
	v := &TextureView{Texture: t}
	if desc != nil {
		v.Desc = *desc
	}
	if v.Desc.BaseMipLevel+max(v.Desc.MipLevelCount, 1) > t.desc.MipLevelCount ||
		v.Desc.BaseArrayLayer+max(v.Desc.ArrayLayerCount, 1) > t.layers() {
		return nil, fmt.Errorf("memhal: view range outside texture")
	}
	d.count(func(s *Stats) { s.ViewsCreated++ })
	return v, nil
}

// DestroyTextureView counts the destruction.
func (d *Device) DestroyTextureView(view hal.TextureView) {
	v, ok := view.(*TextureView)
	if !ok || v.destroyed {
		return
	}
	v.destroyed = true
	d.count(func(s *Stats) { s.ViewsDestroyed++ })
}

// CreateSampler counts the sampler.
func (d *Device) CreateSampler(desc *hal.SamplerDescriptor) (hal.Sampler, error) {
	d.count(func(s *Stats) { s.SamplersCreated++ })
	return d.Device.CreateSampler(desc)
}

// CreateShaderModule counts the module.
func (d *Device) CreateShaderModule(desc *hal.ShaderModuleDescriptor) (hal.ShaderModule, error) {
	if desc == nil || (desc.Source.WGSL == "" && len(desc.Source.SPIRV) == 0) {
		return nil, fmt.Errorf("memhal: empty shader module")
	}
	d.count(func(s *Stats) { s.ShaderModules++ })
	return d.Device.CreateShaderModule(desc)
}

// CreateRenderPipeline counts the pipeline.
func (d *Device) CreateRenderPipeline(desc *hal.RenderPipelineDescriptor) (hal.RenderPipeline, error) {
	d.count(func(s *Stats) { s.PipelinesCreated++ })
	return d.Device.CreateRenderPipeline(desc)
}

// CreateCommandEncoder returns an encoder that records closures.
func (d *Device) CreateCommandEncoder(desc *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	enc := &CommandEncoder{dev: d}
	if desc != nil {
		enc.label = desc.Label
	}
	return enc, nil
}

// formatSize returns the texel size of the formats memhal can store.
func formatSize(f gputypes.TextureFormat) uint32 {
	switch f {
	case gputypes.TextureFormatR8Unorm:
		return 1
	case gputypes.TextureFormatRG8Unorm, gputypes.TextureFormatDepth16Unorm, gputypes.TextureFormatR16Float:
		return 2
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatBGRA8Unorm,
		gputypes.TextureFormatDepth24PlusStencil8, gputypes.TextureFormatDepth32Float:
		return 4
	case gputypes.TextureFormatRGBA16Float:
		return 8
	default:
		return 0
	}
}
