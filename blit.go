package texcache

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

//go:embed shaders/blit.wgsl
var blitShaderSource string

// blitUniformSize is the size of BlitUniforms: a mat4x4 and two vec4.
const blitUniformSize = 96

// compileBlitShader compiles the blit shader to SPIR-V words.
func compileBlitShader() ([]uint32, error) {
	spirv, err := naga.Compile(blitShaderSource)
	if err != nil {
		return nil, fmt.Errorf("texcache: compile blit shader: %w", err)
	}
	words := make([]uint32, len(spirv)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(spirv[i*4:])
	}
	return words, nil
}

// blitter owns the render pipelines used by Manager.ImageBlit. Resources
// are created on first use: the shader and layouts once, one pipeline per
// destination format and one sampler per filter.
type blitter struct {
	env *env

	shader      hal.ShaderModule
	groupLayout hal.BindGroupLayout
	pipeLayout  hal.PipelineLayout
	pipelines   map[gputypes.TextureFormat]hal.RenderPipeline
	samplers    [2]hal.Sampler
}

func newBlitter(e *env) *blitter {
	return &blitter{env: e, pipelines: make(map[gputypes.TextureFormat]hal.RenderPipeline)}
}

func (b *blitter) init() error {
	if b.shader != nil {
		return nil
	}
	device := b.env.device
	words, err := compileBlitShader()
	if err != nil {
		return err
	}
	shader, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "texcache_blit_shader",
		Source: hal.ShaderSource{SPIRV: words},
	})
	if err != nil {
		return fmt.Errorf("texcache: create blit shader module: %w", err)
	}

	// Bind group layout:
	//   Binding 0: BlitUniforms (uniform buffer, vertex+fragment)
	//   Binding 1: source texture (texture_2d, fragment)
	//   Binding 2: sampler (fragment)
	groupLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "texcache_blit_group_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    2,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		device.DestroyShaderModule(shader)
		return fmt.Errorf("texcache: create blit bind group layout: %w", err)
	}
	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "texcache_blit_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{groupLayout},
	})
	if err != nil {
		device.DestroyBindGroupLayout(groupLayout)
		device.DestroyShaderModule(shader)
		return fmt.Errorf("texcache: create blit pipeline layout: %w", err)
	}
	b.shader, b.groupLayout, b.pipeLayout = shader, groupLayout, pipeLayout
	return nil
}

func (b *blitter) pipeline(format gputypes.TextureFormat) (hal.RenderPipeline, error) {
	if p, ok := b.pipelines[format]; ok {
		return p, nil
	}
	p, err := b.env.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  fmt.Sprintf("texcache_blit_pipeline_%d", format),
		Layout: b.pipeLayout,
		Vertex: hal.VertexState{
			Module:     b.shader,
			EntryPoint: "vs_main",
		},
		Fragment: &hal.FragmentState{
			Module:     b.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{Format: format, WriteMask: gputypes.ColorWriteMaskAll},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("texcache: create blit pipeline: %w", err)
	}
	b.pipelines[format] = p
	return p, nil
}

func (b *blitter) sampler(f Filter) (hal.Sampler, error) {
	if s := b.samplers[f&1]; s != nil {
		return s, nil
	}
	s, err := b.env.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "texcache_blit_sampler_" + f.String(),
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    f.mode(),
		MinFilter:    f.mode(),
		MipmapFilter: gputypes.FilterModeNearest,
	})
	if err != nil {
		return nil, fmt.Errorf("texcache: create blit sampler: %w", err)
	}
	b.samplers[f&1] = s
	return s, nil
}

// blitUniforms encodes BlitUniforms. WGSL matrices are column-major, so
// column j holds row j of the transposed remap matrix.
func blitUniforms(swz Swizzle, srcRect [4]float32) []byte {
	m, k := swz.Matrix()
	buf := make([]byte, 0, blitUniformSize)
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(m[row][col]))
		}
	}
	for _, v := range k {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	for _, v := range srcRect {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return buf
}

// singleLevel returns the 2D view of one layer and level of v used as a
// sampling source or render target.
func singleLevel(v *View) (*View, error) {
	return v.surface.CreateView(ViewParams{
		Target:    Target2D,
		BaseLayer: v.params.BaseLayer,
		NumLayers: 1,
		BaseLevel: v.params.BaseLevel,
		NumLevels: 1,
	})
}

// draw records a render pass drawing src's rectangle into dst's.
func (b *blitter) draw(src, dst *View, cfg BlitConfig) error {
	if err := b.init(); err != nil {
		return err
	}
	device := b.env.device

	srcView, err := singleLevel(src)
	if err != nil {
		return err
	}
	dstView, err := singleLevel(dst)
	if err != nil {
		return err
	}
	swz := cfg.Swizzle
	srcHandle, err := srcView.GetHandle(swz.X, swz.Y, swz.Z, swz.W)
	if err != nil {
		return err
	}
	dstHandle, err := dstView.Handle()
	if err != nil {
		return err
	}
	pipeline, err := b.pipeline(dst.surface.format)
	if err != nil {
		return err
	}
	sampler, err := b.sampler(cfg.Filter)
	if err != nil {
		return err
	}

	sw, sh := float32(srcView.Width()), float32(srcView.Height())
	data := blitUniforms(swz, [4]float32{
		float32(cfg.SrcRect.Min.X) / sw, float32(cfg.SrcRect.Min.Y) / sh,
		float32(cfg.SrcRect.Max.X) / sw, float32(cfg.SrcRect.Max.Y) / sh,
	})
	uniform, err := b.uniformBuffer(data)
	if err != nil {
		return err
	}
	group, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "texcache_blit_group",
		Layout: b.groupLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: uniform.NativeHandle(), Size: blitUniformSize}},
			{Binding: 1, Resource: gputypes.TextureViewBinding{TextureView: srcHandle.View.NativeHandle()}},
			{Binding: 2, Resource: gputypes.SamplerBinding{Sampler: sampler.NativeHandle()}},
		},
	})
	if err != nil {
		device.DestroyBuffer(uniform)
		return fmt.Errorf("texcache: create blit bind group: %w", err)
	}

	srcView.Transition(StageFragmentShader, AccessShaderRead, LayoutShaderReadOnly)
	dstView.Transition(StageColorAttachmentOutput, AccessColorAttachmentWrite, LayoutColorAttachment)

	r := cfg.DstRect
	target := dstHandle.View
	b.env.sched.RecordCommand(func(enc hal.CommandEncoder) {
		pass := enc.BeginRenderPass(&hal.RenderPassDescriptor{
			Label: "texcache_blit",
			ColorAttachments: []hal.RenderPassColorAttachment{{
				View:    target,
				LoadOp:  gputypes.LoadOpLoad,
				StoreOp: gputypes.StoreOpStore,
			}},
		})
		pass.SetPipeline(pipeline)
		pass.SetBindGroup(0, group, nil)
		pass.SetViewport(float32(r.Min.X), float32(r.Min.Y), float32(r.Dx()), float32(r.Dy()), 0, 1)
		pass.SetScissorRect(uint32(r.Min.X), uint32(r.Min.Y), uint32(r.Dx()), uint32(r.Dy())) //nolint:gosec // G115: validated against bounds
		pass.Draw(3, 1, 0, 0)
		pass.End()
	})
	b.env.afterCurrentTick(func() {
		device.DestroyBindGroup(group)
		device.DestroyBuffer(uniform)
	})
	b.env.logger().Debug("texcache: blit recorded",
		"src", cfg.SrcRect, "dst", cfg.DstRect, "filter", cfg.Filter, "swizzle", swz)
	return nil
}

// queueProvider is implemented by schedulers that expose their HAL queue.
type queueProvider interface {
	Queue() hal.Queue
}

// uniformBuffer creates a uniform buffer holding data. The data goes through
// the scheduler's queue when it has one and through a buffer mapped at
// creation otherwise.
func (b *blitter) uniformBuffer(data []byte) (hal.Buffer, error) {
	device := b.env.device
	qp, viaQueue := b.env.sched.(queueProvider)
	buf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label:            "texcache_blit_uniforms",
		Size:             uint64(len(data)),
		Usage:            gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		MappedAtCreation: !viaQueue,
	})
	if err != nil {
		return nil, &ResourceAllocationError{Resource: "buffer", Size: uint64(len(data)), Err: err}
	}
	if viaQueue {
		err = qp.Queue().WriteBuffer(buf, 0, data)
	} else {
		err = b.writeMapped(buf, data)
	}
	if err != nil {
		device.DestroyBuffer(buf)
		return nil, fmt.Errorf("texcache: write blit uniforms: %w", err)
	}
	return buf, nil
}

func (b *blitter) writeMapped(buf hal.Buffer, data []byte) error {
	device := b.env.device
	m, err := device.MapBuffer(buf, 0, uint64(len(data)))
	if err != nil {
		return err
	}
	copy(unsafe.Slice((*byte)(m.Ptr), len(data)), data)
	return device.UnmapBuffer(buf)
}

func (b *blitter) destroy() {
	device := b.env.device
	pipelines := b.pipelines
	samplers := b.samplers
	shader, groupLayout, pipeLayout := b.shader, b.groupLayout, b.pipeLayout
	b.env.afterCurrentTick(func() {
		for _, p := range pipelines {
			device.DestroyRenderPipeline(p)
		}
		for _, s := range samplers {
			if s != nil {
				device.DestroySampler(s)
			}
		}
		if pipeLayout != nil {
			device.DestroyPipelineLayout(pipeLayout)
		}
		if groupLayout != nil {
			device.DestroyBindGroupLayout(groupLayout)
		}
		if shader != nil {
			device.DestroyShaderModule(shader)
		}
	})
	b.pipelines = nil
	b.samplers = [2]hal.Sampler{}
	b.shader, b.groupLayout, b.pipeLayout = nil, nil, nil
}
