package texcache

import (
	"context"
	"fmt"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/texcache/tiling"
)

// stagingRegion places one level of one layer inside a staging buffer.
type stagingRegion struct {
	layer, level         uint32
	offset               uint64
	bytesPerRow          uint32
	width, height, depth uint32
}

// stagingLayout returns where every (layer, level) lives in a transient
// staging buffer and the buffer's size. Buffer-backed surfaces mirror the
// native byte range. Texture rows are padded to the row alignment.
func (s *Surface) stagingLayout() ([]stagingRegion, uint64) {
	p := s.params
	bpp := p.BytesPerTexel()
	regions := make([]stagingRegion, 0, p.NumLayers*p.NumLevels)
	if s.IsBuffer() {
		for layer := uint32(0); layer < p.NumLayers; layer++ {
			for level := uint32(0); level < p.NumLevels; level++ {
				regions = append(regions, stagingRegion{
					layer: layer, level: level,
					offset:      p.LevelOffset(layer, level),
					bytesPerRow: p.MipWidth(level) * bpp,
					width:       p.MipWidth(level), height: p.MipHeight(level), depth: p.MipDepth(level),
				})
			}
		}
		return regions, s.bufferSize
	}

	align := uint64(s.env.opts.rowAlignment)
	var size uint64
	for layer := uint32(0); layer < p.NumLayers; layer++ {
		for level := uint32(0); level < p.NumLevels; level++ {
			w, h, d := p.MipWidth(level), p.MipHeight(level), p.MipDepth(level)
			stride := uint32(alignUp(uint64(w*bpp), align)) //nolint:gosec // G115: row sizes fit in uint32
			size = alignUp(size, align)
			regions = append(regions, stagingRegion{
				layer: layer, level: level,
				offset:      size,
				bytesPerRow: stride,
				width:       w, height: h, depth: d,
			})
			size += uint64(stride) * uint64(h) * uint64(d)
		}
	}
	return regions, alignUp(size, 4)
}

// transcode moves texels between the linear staging representation and
// the staging buffer contents, one job per depth slice of every region.
// Tiled buffer-backed surfaces go through the tiling codec; everything
// else is a row copy.
func (s *Surface) transcode(ctx context.Context, regions []stagingRegion, linear, native []byte, toNative bool) error {
	p := s.params
	bpp := p.BytesPerTexel()
	tiled := p.Tiled && s.IsBuffer()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.env.opts.retileWorkers)
	for _, r := range regions {
		sliceSize := uint64(r.width) * uint64(r.height) * uint64(bpp)
		for z := uint32(0); z < r.depth; z++ {
			lin := linear[p.LevelOffset(r.layer, r.level)+uint64(z)*sliceSize:][:sliceSize]
			nat := native[r.offset+uint64(z)*uint64(r.height)*uint64(r.bytesPerRow):]
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				if tiled {
					w, h, n := int(r.width), int(r.height), int(bpp)
					if toNative {
						return tiling.Tile(nat, lin, w, h, n)
					}
					return tiling.Untile(lin, nat, w, h, n)
				}
				rowBytes := uint64(r.width) * uint64(bpp)
				for y := uint64(0); y < uint64(r.height); y++ {
					row := nat[y*uint64(r.bytesPerRow):][:rowBytes]
					if toNative {
						copy(row, lin[y*rowBytes:][:rowBytes])
					} else {
						copy(lin[y*rowBytes:][:rowBytes], row)
					}
				}
				return nil
			})
		}
	}
	return g.Wait()
}

// bufferTextureCopies converts staging regions into HAL copy regions.
// A 3D level is one region; each layer of a layered texture is its own.
func (s *Surface) bufferTextureCopies(regions []stagingRegion) []hal.BufferTextureCopy {
	copies := make([]hal.BufferTextureCopy, 0, len(regions))
	for _, r := range regions {
		copies = append(copies, hal.BufferTextureCopy{
			BufferLayout: hal.ImageDataLayout{
				Offset:       r.offset,
				BytesPerRow:  r.bytesPerRow,
				RowsPerImage: r.height,
			},
			TextureBase: hal.ImageCopyTexture{
				Texture:  s.texture,
				MipLevel: r.level,
				Origin:   hal.Origin3D{Z: r.layer},
				Aspect:   s.aspect,
			},
			Size: hal.Extent3D{Width: r.width, Height: r.height, DepthOrArrayLayers: r.depth},
		})
	}
	return copies
}

// createStaging allocates a transient buffer. Upload buffers are mapped at
// creation.
func (s *Surface) createStaging(label string, size uint64, usage gputypes.BufferUsage, mapped bool) (hal.Buffer, error) {
	buf, err := s.env.device.CreateBuffer(&hal.BufferDescriptor{
		Label:            label,
		Size:             size,
		Usage:            usage,
		MappedAtCreation: mapped,
	})
	if err != nil {
		return nil, &ResourceAllocationError{Resource: "staging", Size: size, Err: err}
	}
	return buf, nil
}

func (s *Surface) mapStaging(buf hal.Buffer, size uint64) ([]byte, error) {
	m, err := s.env.device.MapBuffer(buf, 0, size)
	if err != nil {
		return nil, fmt.Errorf("texcache: map staging buffer: %w", err)
	}
	return unsafe.Slice((*byte)(m.Ptr), size), nil
}

func (s *Surface) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.env.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("texcache.addr", fmt.Sprintf("%#x", uint64(s.addr))),
		attribute.String("texcache.format", s.params.Format.String()),
		attribute.Int64("texcache.bytes", int64(s.params.SizeInBytes())), //nolint:gosec // G115: surface sizes fit in int64
		attribute.Bool("texcache.tiled", s.params.Tiled),
	))
}

// UploadTexture writes staging into the surface. staging holds every level
// of every layer in linear row-major order, layer-major then level, and must
// be exactly Params().SizeInBytes() long.
//
// The copy is recorded on the scheduler and executes with the current
// batch. The modification tick is not touched.
func (s *Surface) UploadTexture(ctx context.Context, staging []byte) (err error) {
	if s.destroyed {
		return ErrSurfaceDestroyed
	}
	if want := s.params.SizeInBytes(); uint64(len(staging)) != want {
		return fmt.Errorf("%w: upload of %d bytes, surface holds %d", ErrStagingSize, len(staging), want)
	}
	ctx, span := s.startSpan(ctx, "texcache.upload")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	regions, size := s.stagingLayout()
	buf, err := s.createStaging("texcache_upload", size,
		gputypes.BufferUsageMapWrite|gputypes.BufferUsageCopySrc, true)
	if err != nil {
		return err
	}
	release := func() { s.env.device.DestroyBuffer(buf) }

	native, err := s.mapStaging(buf, size)
	if err != nil {
		release()
		return err
	}
	err = s.transcode(ctx, regions, staging, native, true)
	if uerr := s.env.device.UnmapBuffer(buf); err == nil && uerr != nil {
		err = fmt.Errorf("texcache: unmap staging buffer: %w", uerr)
	}
	if err != nil {
		release()
		return err
	}

	s.FullTransition(StageTransfer, AccessTransferWrite, LayoutTransferDst)
	if s.IsBuffer() {
		dst := s.buffer
		s.env.sched.RecordCommand(func(enc hal.CommandEncoder) {
			enc.CopyBufferToBuffer(buf, dst, []hal.BufferCopy{{Size: size}})
		})
	} else {
		dst, copies := s.texture, s.bufferTextureCopies(regions)
		s.env.sched.RecordCommand(func(enc hal.CommandEncoder) {
			enc.CopyBufferToTexture(buf, dst, copies)
		})
	}
	s.env.afterCurrentTick(release)
	s.env.metrics.transfer(ctx, "upload", s.params.SizeInBytes())
	s.env.logger().Debug("texcache: upload recorded",
		"addr", fmt.Sprintf("%#x", uint64(s.addr)), "staging", size)
	return nil
}

// DownloadTexture reads the surface into out in the same linear layout
// UploadTexture accepts. It submits the current batch and waits for it,
// so the scheduler must implement Waiter.
func (s *Surface) DownloadTexture(ctx context.Context, out []byte) (err error) {
	if s.destroyed {
		return ErrSurfaceDestroyed
	}
	if want := s.params.SizeInBytes(); uint64(len(out)) != want {
		return fmt.Errorf("%w: download into %d bytes, surface holds %d", ErrStagingSize, len(out), want)
	}
	waiter, ok := s.env.sched.(Waiter)
	if !ok {
		return unsupported("download", "scheduler %T cannot wait for completion", s.env.sched)
	}
	ctx, span := s.startSpan(ctx, "texcache.download")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	regions, size := s.stagingLayout()
	buf, err := s.createStaging("texcache_download", size,
		gputypes.BufferUsageMapRead|gputypes.BufferUsageCopyDst, false)
	if err != nil {
		return err
	}
	device := s.env.device
	release := func() { device.DestroyBuffer(buf) }
	defer func() { release() }()

	s.FullTransition(StageTransfer, AccessTransferRead, LayoutTransferSrc)
	if s.IsBuffer() {
		src := s.buffer
		s.env.sched.RecordCommand(func(enc hal.CommandEncoder) {
			enc.CopyBufferToBuffer(src, buf, []hal.BufferCopy{{Size: size}})
		})
	} else {
		src, copies := s.texture, s.bufferTextureCopies(regions)
		s.env.sched.RecordCommand(func(enc hal.CommandEncoder) {
			enc.CopyTextureToBuffer(src, buf, copies)
		})
	}

	tick, err := waiter.Flush(ctx)
	if err != nil {
		return fmt.Errorf("texcache: download: %w", err)
	}
	if err := waiter.Wait(ctx, tick); err != nil {
		// The copy is still in flight and writes into buf.
		release = func() {
			s.env.afterTick(tick, func() { device.DestroyBuffer(buf) })
		}
		return fmt.Errorf("texcache: download: %w", err)
	}

	native, err := s.mapStaging(buf, size)
	if err != nil {
		return err
	}
	err = s.transcode(ctx, regions, out, native, false)
	if uerr := s.env.device.UnmapBuffer(buf); err == nil && uerr != nil {
		err = fmt.Errorf("texcache: unmap readback buffer: %w", uerr)
	}
	if err != nil {
		return err
	}
	s.env.metrics.transfer(ctx, "download", s.params.SizeInBytes())
	return nil
}
