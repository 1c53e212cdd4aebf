package memhal

import (
	"errors"
	"fmt"

	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// CommandBuffer holds recorded operations until Submit runs them.
type CommandBuffer struct {
	noop.Resource
	ops []func() error
}

// CommandEncoder records copies as closures over the destination storage.
type CommandEncoder struct {
	noop.CommandEncoder
	dev       *Device
	label     string
	ops       []func() error
	recording bool
}

// BeginEncoding starts a new recording.
func (e *CommandEncoder) BeginEncoding(label string) error {
	if e.recording {
		return errors.New("memhal: encoder already recording")
	}
	e.recording = true
	e.ops = nil
	return nil
}

// EndEncoding finishes the recording.
func (e *CommandEncoder) EndEncoding() (hal.CommandBuffer, error) {
	if !e.recording {
		return nil, errors.New("memhal: encoder not recording")
	}
	e.recording = false
	cb := &CommandBuffer{ops: e.ops}
	e.ops = nil
	return cb, nil
}

// DiscardEncoding drops the recording.
func (e *CommandEncoder) DiscardEncoding() {
	e.recording = false
	e.ops = nil
}

// TransitionTextures records the barriers on the device.
func (e *CommandEncoder) TransitionTextures(barriers []hal.TextureBarrier) {
	e.dev.mu.Lock()
	e.dev.stats.TextureBarriers += len(barriers)
	e.dev.barriers = append(e.dev.barriers, barriers...)
	e.dev.mu.Unlock()
}

// TransitionBuffers counts the barriers.
func (e *CommandEncoder) TransitionBuffers(barriers []hal.BufferBarrier) {
	e.dev.count(func(s *Stats) { s.BufferBarriers += len(barriers) })
}

func (e *CommandEncoder) record(op func() error) {
	e.dev.count(func(s *Stats) { s.Copies++ })
	e.ops = append(e.ops, op)
}

// ClearBuffer zeroes a byte range at submit.
func (e *CommandEncoder) ClearBuffer(buffer hal.Buffer, offset, size uint64) {
	e.ops = append(e.ops, func() error {
		b, ok := buffer.(*Buffer)
		if !ok || offset+size > uint64(len(b.data)) {
			return fmt.Errorf("memhal: clear outside buffer")
		}
		clear(b.data[offset : offset+size])
		return nil
	})
}

// CopyBufferToBuffer copies byte ranges at submit.
func (e *CommandEncoder) CopyBufferToBuffer(src, dst hal.Buffer, regions []hal.BufferCopy) {
	e.record(func() error {
		s, ok1 := src.(*Buffer)
		d, ok2 := dst.(*Buffer)
		if !ok1 || !ok2 {
			return fmt.Errorf("memhal: copy between %T and %T", src, dst)
		}
		for _, r := range regions {
			if r.SrcOffset+r.Size > uint64(len(s.data)) || r.DstOffset+r.Size > uint64(len(d.data)) {
				return fmt.Errorf("memhal: buffer copy %+v out of range", r)
			}
			copy(d.data[r.DstOffset:r.DstOffset+r.Size], s.data[r.SrcOffset:r.SrcOffset+r.Size])
		}
		return nil
	})
}

// CopyBufferToTexture copies rows into a texture at submit.
func (e *CommandEncoder) CopyBufferToTexture(src hal.Buffer, dst hal.Texture, regions []hal.BufferTextureCopy) {
	e.record(func() error {
		b, ok1 := src.(*Buffer)
		t, ok2 := dst.(*Texture)
		if !ok1 || !ok2 {
			return fmt.Errorf("memhal: copy between %T and %T", src, dst)
		}
		for _, r := range regions {
			if err := walkRows(b, t, r, func(buf, tex []byte) { copy(tex, buf) }); err != nil {
				return err
			}
		}
		return nil
	})
}

// CopyTextureToBuffer copies rows out of a texture at submit.
func (e *CommandEncoder) CopyTextureToBuffer(src hal.Texture, dst hal.Buffer, regions []hal.BufferTextureCopy) {
	e.record(func() error {
		t, ok1 := src.(*Texture)
		b, ok2 := dst.(*Buffer)
		if !ok1 || !ok2 {
			return fmt.Errorf("memhal: copy between %T and %T", src, dst)
		}
		for _, r := range regions {
			if err := walkRows(b, t, r, func(buf, tex []byte) { copy(buf, tex) }); err != nil {
				return err
			}
		}
		return nil
	})
}

// CopyTextureToTexture copies texel regions at submit.
func (e *CommandEncoder) CopyTextureToTexture(src, dst hal.Texture, regions []hal.TextureCopy) {
	e.record(func() error {
		s, ok1 := src.(*Texture)
		d, ok2 := dst.(*Texture)
		if !ok1 || !ok2 {
			return fmt.Errorf("memhal: copy between %T and %T", src, dst)
		}
		if s.bpp != d.bpp {
			return fmt.Errorf("memhal: texel size %d != %d", s.bpp, d.bpp)
		}
		for _, r := range regions {
			so, do := r.SrcBase.Origin, r.DstBase.Origin
			for z := uint32(0); z < max(r.Size.DepthOrArrayLayers, 1); z++ {
				for y := uint32(0); y < r.Size.Height; y++ {
					sr, err := s.row(r.SrcBase.MipLevel, so.X, so.Y+y, so.Z+z, r.Size.Width)
					if err != nil {
						return err
					}
					dr, err := d.row(r.DstBase.MipLevel, do.X, do.Y+y, do.Z+z, r.Size.Width)
					if err != nil {
						return err
					}
					copy(dr, sr)
				}
			}
		}
		return nil
	})
}

// walkRows pairs every row of a buffer-texture region with its texels.
func walkRows(b *Buffer, t *Texture, r hal.BufferTextureCopy, fn func(buf, tex []byte)) error {
	l := r.BufferLayout
	rowsPerImage := l.RowsPerImage
	if rowsPerImage == 0 {
		rowsPerImage = r.Size.Height
	}
	rowBytes := r.Size.Width * t.bpp
	bytesPerRow := l.BytesPerRow
	if bytesPerRow == 0 {
		bytesPerRow = rowBytes
	}
	if bytesPerRow < rowBytes {
		return fmt.Errorf("memhal: BytesPerRow %d < row size %d", bytesPerRow, rowBytes)
	}
	o := r.TextureBase.Origin
	for z := uint32(0); z < max(r.Size.DepthOrArrayLayers, 1); z++ {
		for y := uint32(0); y < r.Size.Height; y++ {
			off := l.Offset + uint64(z)*uint64(rowsPerImage)*uint64(bytesPerRow) + uint64(y)*uint64(bytesPerRow)
			if off+uint64(rowBytes) > uint64(len(b.data)) {
				return fmt.Errorf("memhal: row at %d outside %d-byte buffer", off, len(b.data))
			}
			tex, err := t.row(r.TextureBase.MipLevel, o.X, o.Y+y, o.Z+z, r.Size.Width)
			if err != nil {
				return err
			}
			fn(b.data[off:off+uint64(rowBytes)], tex)
		}
	}
	return nil
}

// BeginRenderPass returns a pass that counts draws.
func (e *CommandEncoder) BeginRenderPass(desc *hal.RenderPassDescriptor) hal.RenderPassEncoder {
	return &RenderPassEncoder{enc: e}
}

// RenderPassEncoder counts draws. Nothing is rasterized.
type RenderPassEncoder struct {
	noop.RenderPassEncoder
	enc      *CommandEncoder
	pipeline hal.RenderPipeline
}

// SetPipeline remembers the bound pipeline.
func (p *RenderPassEncoder) SetPipeline(pipeline hal.RenderPipeline) {
	p.pipeline = pipeline
}

// Draw counts the draw. A draw without a pipeline fails at submit.
func (p *RenderPassEncoder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	bound := p.pipeline != nil
	p.enc.dev.count(func(s *Stats) { s.Draws++ })
	p.enc.ops = append(p.enc.ops, func() error {
		if !bound {
			return errors.New("memhal: draw without pipeline")
		}
		return nil
	})
}
