package texcache

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/wgpu/hal"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/gogpu/texcache/internal/cache"
	"github.com/gogpu/texcache/tiling"
)

// surfaceKey identifies a cached surface.
type surfaceKey struct {
	addr   GPUAddr
	params SurfaceParams
}

// Manager maps (GPU address, parameters) to cached Surfaces and records
// copies and blits between them.
//
// Every operation records commands through the Scheduler and returns
// without waiting for them, except Surface.DownloadTexture.
//
// Manager is not safe for concurrent use. All calls must come from the
// thread that records rendering commands.
type Manager struct {
	env   *env
	store *cache.Cache[surfaceKey, *Surface]
	blit  *blitter

	owned  *HALScheduler
	closed bool
}

// NewManager creates a manager that allocates on device and records on sched.
func NewManager(device hal.Device, sched Scheduler, opts ...Option) (*Manager, error) {
	if device == nil {
		return nil, errors.New("texcache: nil device")
	}
	if sched == nil {
		return nil, errors.New("texcache: nil scheduler")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	metrics, err := newCacheMetrics(o.meterProvider)
	if err != nil {
		return nil, fmt.Errorf("texcache: create metrics: %w", err)
	}
	tp := o.tracerProvider
	if tp == nil {
		tp = tracenoop.NewTracerProvider()
	}

	e := &env{
		device:  device,
		sched:   sched,
		metrics: metrics,
		tracer:  tp.Tracer(instrumentationName),
		log:     o.logger,
		opts:    o,
	}
	m := &Manager{env: e}
	if d, ok := sched.(Discarder); ok {
		d.OnDiscard(e.batchDiscarded)
	}
	m.store = cache.New(o.surfaceLimit, func(k surfaceKey, s *Surface) {
		e.logger().Debug("texcache: surface evicted", "addr", fmt.Sprintf("%#x", uint64(k.addr)))
		s.Destroy()
	})
	e.logger().Info("texcache: manager created",
		"surface_limit", o.surfaceLimit, "retile_workers", o.retileWorkers, "row_alignment", o.rowAlignment)
	return m, nil
}

// Scheduler returns the scheduler commands are recorded on.
func (m *Manager) Scheduler() Scheduler { return m.env.sched }

// GetSurface returns the surface cached for (addr, params), creating it on
// a miss. A cached surface that was destroyed directly is replaced.
func (m *Manager) GetSurface(addr GPUAddr, params SurfaceParams) (*Surface, error) {
	if m.closed {
		return nil, ErrManagerClosed
	}
	ctx := context.Background()
	key := surfaceKey{addr, params}
	if old, ok := m.store.Peek(key); ok && old.destroyed {
		m.store.Delete(key)
	}
	s, hit, err := m.store.GetOrCreate(key, func() (*Surface, error) {
		return newSurface(m.env, addr, params)
	})
	m.env.metrics.lookup(ctx, hit)
	if err != nil {
		return nil, err
	}
	if !hit {
		m.env.metrics.surfaceCreated(ctx, s.IsBuffer())
	}
	return s, nil
}

// Invalidate destroys and forgets the surface cached for (addr, params).
// It reports whether one was cached.
func (m *Manager) Invalidate(addr GPUAddr, params SurfaceParams) bool {
	key := surfaceKey{addr, params}
	s, ok := m.store.Peek(key)
	if !ok {
		return false
	}
	m.store.Delete(key)
	s.Destroy()
	return true
}

// Len returns the number of cached surfaces.
func (m *Manager) Len() int { return m.store.Len() }

// ImageCopy copies a region between two surfaces without conversion.
// Copying a surface onto itself records nothing.
func (m *Manager) ImageCopy(src, dst *Surface, cp CopyParams) error {
	if err := m.check(src, dst); err != nil {
		return err
	}
	sp, dp := src.params, dst.params
	if !CopyCompatible(sp.Format, dp.Format) {
		return &FormatMismatchError{Op: "image copy", Src: sp.Format, Dst: dp.Format}
	}
	if src == dst {
		m.skip("image_copy", src)
		return nil
	}
	if src.IsBuffer() != dst.IsBuffer() {
		return unsupported("image copy", "between %s and %s backed surfaces", backing(src), backing(dst))
	}
	if err := checkRegion(sp, cp.SrcLevel, cp.SrcX, cp.SrcY, cp.SrcZ, cp); err != nil {
		return err
	}
	if err := checkRegion(dp, cp.DstLevel, cp.DstX, cp.DstY, cp.DstZ, cp); err != nil {
		return err
	}

	var regions []hal.BufferCopy
	if src.IsBuffer() {
		var err error
		if regions, err = bufferRegionCopies(sp, dp, cp); err != nil {
			return err
		}
	}

	srcLayer, srcLayers := layerRange(sp, cp.SrcZ, cp.Depth)
	dstLayer, dstLayers := layerRange(dp, cp.DstZ, cp.Depth)
	src.Transition(srcLayer, srcLayers, cp.SrcLevel, 1, StageTransfer, AccessTransferRead, LayoutTransferSrc)
	dst.Transition(dstLayer, dstLayers, cp.DstLevel, 1, StageTransfer, AccessTransferWrite, LayoutTransferDst)

	if src.IsBuffer() {
		sb, db := src.buffer, dst.buffer
		m.env.sched.RecordCommand(func(enc hal.CommandEncoder) {
			enc.CopyBufferToBuffer(sb, db, regions)
		})
	} else {
		region := hal.TextureCopy{
			SrcBase: hal.ImageCopyTexture{
				Texture:  src.texture,
				MipLevel: cp.SrcLevel,
				Origin:   hal.Origin3D{X: cp.SrcX, Y: cp.SrcY, Z: cp.SrcZ},
				Aspect:   src.aspect,
			},
			DstBase: hal.ImageCopyTexture{
				Texture:  dst.texture,
				MipLevel: cp.DstLevel,
				Origin:   hal.Origin3D{X: cp.DstX, Y: cp.DstY, Z: cp.DstZ},
				Aspect:   dst.aspect,
			},
			Size: hal.Extent3D{Width: cp.Width, Height: cp.Height, DepthOrArrayLayers: cp.Depth},
		}
		st, dt := src.texture, dst.texture
		m.env.sched.RecordCommand(func(enc hal.CommandEncoder) {
			enc.CopyTextureToTexture(st, dt, []hal.TextureCopy{region})
		})
	}
	dst.MarkAsModified(m.env.sched.CurrentTick())
	m.env.metrics.transfer(context.Background(), "image_copy",
		uint64(cp.Width)*uint64(cp.Height)*uint64(cp.Depth)*uint64(sp.BytesPerTexel()))
	return nil
}

// BufferCopy copies the raw bytes of one buffer-backed surface into
// another, up to the smaller of the two sizes.
func (m *Manager) BufferCopy(src, dst *Surface) error {
	if err := m.check(src, dst); err != nil {
		return err
	}
	if !src.IsBuffer() || !dst.IsBuffer() {
		return unsupported("buffer copy", "between %s and %s backed surfaces", backing(src), backing(dst))
	}
	if src == dst {
		m.skip("buffer_copy", src)
		return nil
	}
	size := min(src.bufferSize, dst.bufferSize)
	src.FullTransition(StageTransfer, AccessTransferRead, LayoutTransferSrc)
	dst.FullTransition(StageTransfer, AccessTransferWrite, LayoutTransferDst)
	sb, db := src.buffer, dst.buffer
	m.env.sched.RecordCommand(func(enc hal.CommandEncoder) {
		enc.CopyBufferToBuffer(sb, db, []hal.BufferCopy{{Size: size}})
	})
	dst.MarkAsModified(m.env.sched.CurrentTick())
	m.env.metrics.transfer(context.Background(), "buffer_copy", size)
	return nil
}

// ImageBlit copies cfg.SrcRect of src into cfg.DstRect of dst, scaling and
// converting formats as needed. Empty rectangles cover the whole base level
// of their view.
//
// Equal-size blits between views of the same format with no channel remap
// are recorded as copies. Everything else is drawn with the blit pipeline,
// which cannot target depth formats.
func (m *Manager) ImageBlit(src, dst *View, cfg BlitConfig) error {
	if src == nil || dst == nil {
		return unsupported("blit", "nil view")
	}
	if err := m.check(src.surface, dst.surface); err != nil {
		return err
	}
	if src.destroyed || dst.destroyed {
		return ErrSurfaceDestroyed
	}
	if src.IsBufferView() || dst.IsBufferView() {
		return unsupported("blit", "buffer views cannot be blitted")
	}
	sf, df := src.surface.params.Format, dst.surface.params.Format
	if (sf.IsDepth() || df.IsDepth()) && (sf != df || cfg.Filter != FilterNearest) {
		return &FormatMismatchError{Op: "depth blit", Src: sf, Dst: df}
	}
	if src.IsSameSurface(dst) {
		m.skip("blit", src.surface)
		return nil
	}
	if !cfg.Swizzle.valid() {
		return unsupported("swizzle", "%s", cfg.Swizzle)
	}

	srcBounds := image.Rect(0, 0, int(src.Width()), int(src.Height()))
	dstBounds := image.Rect(0, 0, int(dst.Width()), int(dst.Height()))
	if cfg.SrcRect.Empty() {
		cfg.SrcRect = srcBounds
	}
	if cfg.DstRect.Empty() {
		cfg.DstRect = dstBounds
	}
	if !cfg.SrcRect.In(srcBounds) || !cfg.DstRect.In(dstBounds) {
		return unsupported("blit rectangle", "%v in %v -> %v in %v",
			cfg.SrcRect, srcBounds, cfg.DstRect, dstBounds)
	}

	plainSwizzle := cfg.Swizzle == IdentitySwizzle || cfg.Swizzle == RGBASwizzle
	if cfg.SrcRect.Size() == cfg.DstRect.Size() && sf == df && plainSwizzle {
		layers := min(src.params.NumLayers, dst.params.NumLayers)
		cp := CopyParams{
			SrcX: uint32(cfg.SrcRect.Min.X), SrcY: uint32(cfg.SrcRect.Min.Y), SrcZ: src.params.BaseLayer, //nolint:gosec // G115: validated against bounds
			DstX: uint32(cfg.DstRect.Min.X), DstY: uint32(cfg.DstRect.Min.Y), DstZ: dst.params.BaseLayer, //nolint:gosec // G115: validated against bounds
			SrcLevel: src.params.BaseLevel,
			DstLevel: dst.params.BaseLevel,
			Width:    uint32(cfg.SrcRect.Dx()), //nolint:gosec // G115: validated against bounds
			Height:   uint32(cfg.SrcRect.Dy()), //nolint:gosec // G115: validated against bounds
			Depth:    layers,
		}
		return m.ImageCopy(src.surface, dst.surface, cp)
	}
	if df.IsDepth() {
		return unsupported("depth blit", "scaling %v -> %v", cfg.SrcRect.Size(), cfg.DstRect.Size())
	}
	for _, v := range [2]*View{src, dst} {
		if t := v.surface.params.Target; t == Target1D || t == Target3D {
			return unsupported("blit", "%s surfaces can only be copied at equal size", t)
		}
	}

	if m.blit == nil {
		m.blit = newBlitter(m.env)
	}
	if err := m.blit.draw(src, dst, cfg); err != nil {
		return err
	}
	dst.MarkAsModified(m.env.sched.CurrentTick())
	m.env.metrics.transfer(context.Background(), "blit",
		uint64(cfg.DstRect.Dx())*uint64(cfg.DstRect.Dy())*uint64(df.BytesPerTexel())) //nolint:gosec // G115: validated against bounds
	return nil
}

// Flush submits the recorded commands when the scheduler supports it and
// returns the submitted tick.
func (m *Manager) Flush(ctx context.Context) (uint64, error) {
	w, ok := m.env.sched.(Waiter)
	if !ok {
		return 0, unsupported("flush", "scheduler %T cannot submit", m.env.sched)
	}
	return w.Flush(ctx)
}

// Close destroys every cached surface and the blit pipeline. A scheduler
// created by NewManagerFromProvider is closed too.
func (m *Manager) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	m.store.Clear()
	if m.blit != nil {
		m.blit.destroy()
		m.blit = nil
	}
	var err error
	if m.owned != nil {
		err = m.owned.Close()
	}
	m.env.runPending()
	m.env.logger().Info("texcache: manager closed")
	return err
}

func (m *Manager) check(src, dst *Surface) error {
	if m.closed {
		return ErrManagerClosed
	}
	if src == nil || dst == nil {
		return unsupported("copy", "nil surface")
	}
	if src.destroyed || dst.destroyed {
		return ErrSurfaceDestroyed
	}
	return nil
}

func (m *Manager) skip(op string, s *Surface) {
	m.env.logger().Warn("texcache: self "+op+" skipped", "addr", fmt.Sprintf("%#x", uint64(s.addr)))
	m.env.metrics.skip(context.Background(), op)
}

func backing(s *Surface) string {
	if s.IsBuffer() {
		return "buffer"
	}
	return "texture"
}

// layerRange returns the layers a copy at depth offset z touches. 3D
// surfaces have a single layer.
func layerRange(p SurfaceParams, z, depth uint32) (base, count uint32) {
	if p.Target == Target3D {
		return 0, 1
	}
	return z, depth
}

func checkRegion(p SurfaceParams, level, x, y, z uint32, cp CopyParams) error {
	if cp.Width == 0 || cp.Height == 0 || cp.Depth == 0 {
		return unsupported("copy region", "empty %dx%dx%d", cp.Width, cp.Height, cp.Depth)
	}
	if level >= p.NumLevels {
		return unsupported("copy region", "level %d of %d", level, p.NumLevels)
	}
	zLimit := p.NumLayers
	if p.Target == Target3D {
		zLimit = p.MipDepth(level)
	}
	if x+cp.Width > p.MipWidth(level) || y+cp.Height > p.MipHeight(level) || z+cp.Depth > zLimit {
		return unsupported("copy region", "(%d,%d,%d)+%dx%dx%d outside level %d of %dx%dx%d",
			x, y, z, cp.Width, cp.Height, cp.Depth, level, p.MipWidth(level), p.MipHeight(level), zLimit)
	}
	return nil
}

// bufferRegionCopies translates a texel region into byte ranges of two
// buffer-backed surfaces. Linear surfaces copy one range per row. Tiled
// surfaces copy one range per row of tiles, so the region must be tile
// aligned.
func bufferRegionCopies(sp, dp SurfaceParams, cp CopyParams) ([]hal.BufferCopy, error) {
	if sp.Tiled != dp.Tiled {
		return nil, unsupported("image copy", "between tiled and linear buffers")
	}
	bpp := uint64(sp.BytesPerTexel())
	const ts = tiling.TileSize
	if sp.Tiled && (cp.SrcX%ts|cp.SrcY%ts|cp.DstX%ts|cp.DstY%ts|cp.Width%ts|cp.Height%ts) != 0 {
		return nil, unsupported("image copy", "tiled region (%d,%d)->(%d,%d) %dx%d is not tile aligned",
			cp.SrcX, cp.SrcY, cp.DstX, cp.DstY, cp.Width, cp.Height)
	}

	rowsPerRun, runBytes := uint32(1), uint64(cp.Width)*bpp
	if sp.Tiled {
		rowsPerRun = ts
		runBytes = uint64(cp.Width) * ts * bpp
	}
	var regions []hal.BufferCopy
	for z := uint32(0); z < cp.Depth; z++ {
		for y := uint32(0); y < cp.Height; y += rowsPerRun {
			regions = append(regions, hal.BufferCopy{
				SrcOffset: texelOffset(sp, cp.SrcLevel, cp.SrcX, cp.SrcY+y, cp.SrcZ+z),
				DstOffset: texelOffset(dp, cp.DstLevel, cp.DstX, cp.DstY+y, cp.DstZ+z),
				Size:      runBytes,
			})
		}
	}
	return regions, nil
}

// texelOffset returns the byte offset of texel (x, y) in depth slice or
// layer z of a buffer-backed surface. For tiled surfaces x and y must be
// tile aligned.
func texelOffset(p SurfaceParams, level, x, y, z uint32) uint64 {
	layer, slice := z, uint32(0)
	if p.Target == Target3D {
		layer, slice = 0, z
	}
	w, h := uint64(p.MipWidth(level)), uint64(p.MipHeight(level))
	bpp := uint64(p.BytesPerTexel())
	off := p.LevelOffset(layer, level) + uint64(slice)*w*h*bpp
	if p.Tiled {
		return off + uint64(tiling.Offset(x, y, uint32(w), uint32(bpp))) //nolint:gosec // G115: level sizes fit in uint32
	}
	return off + (uint64(y)*w+uint64(x))*bpp
}
