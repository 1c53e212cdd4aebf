// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package texcache

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"go.opentelemetry.io/otel/trace"
)

// env is the state a Manager shares with its surfaces and views.
type env struct {
	device  hal.Device
	sched   Scheduler
	metrics *cacheMetrics
	tracer  trace.Tracer
	log     *slog.Logger
	opts    options

	// pending holds releases deferred to Close when the scheduler cannot
	// report completion.
	pending []func()

	// touched lists the surfaces whose tracked state changed in the batch
	// with tick touchedTick.
	touched     []*Surface
	touchedTick uint64
}

// afterCurrentTick runs fn once the batch being recorded has completed.
func (e *env) afterCurrentTick(fn func()) {
	e.afterTick(e.sched.CurrentTick(), fn)
}

// afterTick runs fn once tick has completed, or at Close when the scheduler
// cannot report completion.
func (e *env) afterTick(tick uint64, fn func()) {
	if c, ok := e.sched.(Completer); ok {
		c.OnComplete(tick, fn)
		return
	}
	e.pending = append(e.pending, fn)
}

// touch notes that s recorded barriers into the current batch.
func (e *env) touch(s *Surface) {
	tick := e.sched.CurrentTick()
	if e.touchedTick != tick {
		clear(e.touched)
		e.touched = e.touched[:0]
		e.touchedTick = tick
	}
	if s.touchTick != tick {
		s.touchTick = tick
		e.touched = append(e.touched, s)
	}
}

// batchDiscarded forgets the state recorded for a batch that never reached
// the device. Affected surfaces fall back to the undefined layout.
func (e *env) batchDiscarded(tick uint64) {
	if tick != e.touchedTick {
		return
	}
	for _, s := range e.touched {
		if !s.destroyed {
			s.tracker.reset()
		}
		s.touchTick = 0
	}
	clear(e.touched)
	e.touched = e.touched[:0]
	e.touchedTick = 0
}

func (e *env) runPending() {
	for _, fn := range e.pending {
		fn()
	}
	e.pending = nil
}

func (e *env) logger() *slog.Logger {
	if e.log != nil {
		return e.log
	}
	return slogger()
}

// Surface owns the native resource backing one GPU-addressed texture or
// render target: a hal.Texture when the format has a host equivalent, a
// hal.Buffer holding raw bytes otherwise.
//
// A Surface is created by Manager.GetSurface and lives until the Manager
// evicts or invalidates it. Destroying a Surface invalidates its Views.
type Surface struct {
	env    *env
	addr   GPUAddr
	params SurfaceParams

	texture    hal.Texture
	format     gputypes.TextureFormat
	aspect     gputypes.TextureAspect
	buffer     hal.Buffer
	bufferSize uint64

	tracker *stateTracker
	views   map[ViewParams]*View

	modTick   uint64
	modified  bool
	destroyed bool
	touchTick uint64
}

func newSurface(e *env, addr GPUAddr, params SurfaceParams) (*Surface, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	s := &Surface{
		env:    e,
		addr:   addr,
		params: params,
		views:  make(map[ViewParams]*View),
	}
	label := fmt.Sprintf("texcache_surface_%#x", uint64(addr))

	if params.IsBuffer() {
		s.bufferSize = alignUp(params.SizeInBytes(), 4)
		buf, err := e.device.CreateBuffer(&hal.BufferDescriptor{
			Label: label,
			Size:  s.bufferSize,
			Usage: gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst | gputypes.BufferUsageStorage,
		})
		if err != nil {
			return nil, &ResourceAllocationError{Resource: "buffer", Size: s.bufferSize, Err: err}
		}
		s.buffer = buf
		s.tracker = newStateTracker(1, 1)
		e.logger().Debug("texcache: buffer surface created",
			"addr", fmt.Sprintf("%#x", uint64(addr)), "format", params.Format, "size", s.bufferSize)
		return s, nil
	}

	s.format, _ = params.Format.NativeFormat()
	s.aspect = params.Format.aspect()
	usage := gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst | gputypes.TextureUsageTextureBinding
	if params.Target != Target1D && params.Target != Target3D {
		usage |= gputypes.TextureUsageRenderAttachment
	}
	tex, err := e.device.CreateTexture(&hal.TextureDescriptor{
		Label: label,
		Size: hal.Extent3D{
			Width:              params.Width,
			Height:             params.Height,
			DepthOrArrayLayers: params.depthOrLayers(),
		},
		MipLevelCount: params.NumLevels,
		SampleCount:   1,
		Dimension:     params.textureDimension(),
		Format:        s.format,
		Usage:         usage,
	})
	if err != nil {
		return nil, &ResourceAllocationError{Resource: "texture", Size: params.SizeInBytes(), Err: err}
	}
	s.texture = tex
	s.tracker = newStateTracker(params.NumLayers, params.NumLevels)
	e.logger().Debug("texcache: texture surface created",
		"addr", fmt.Sprintf("%#x", uint64(addr)), "format", params.Format,
		"width", params.Width, "height", params.Height, "levels", params.NumLevels, "layers", params.NumLayers)
	return s, nil
}

// GPUAddr returns the address the surface was created for.
func (s *Surface) GPUAddr() GPUAddr { return s.addr }

// Params returns the surface parameters.
func (s *Surface) Params() SurfaceParams { return s.params }

// IsBuffer reports whether the surface is backed by a buffer.
func (s *Surface) IsBuffer() bool { return s.buffer != nil }

// Texture returns the native texture, or nil for buffer-backed surfaces.
func (s *Surface) Texture() hal.Texture { return s.texture }

// Buffer returns the native buffer, or nil for texture-backed surfaces.
func (s *Surface) Buffer() hal.Buffer { return s.buffer }

// Size returns the size of the native buffer in bytes, or 0 for
// texture-backed surfaces.
func (s *Surface) Size() uint64 { return s.bufferSize }

// State returns the tracked sync state of one subresource.
func (s *Surface) State(layer, level uint32) SyncState {
	if s.IsBuffer() {
		return s.tracker.state(0, 0)
	}
	return s.tracker.state(layer, level)
}

// Transition records barriers moving the given subresource range to the
// given state. Subresources already in that state are skipped. An out of
// range request is logged and ignored.
func (s *Surface) Transition(baseLayer, numLayers, baseLevel, numLevels uint32, stage Stage, access Access, layout Layout) {
	s.transition(baseLayer, numLayers, baseLevel, numLevels, SyncState{stage, access, layout})
}

// FullTransition transitions every layer and level.
func (s *Surface) FullTransition(stage Stage, access Access, layout Layout) {
	s.transition(0, s.params.NumLayers, 0, s.params.NumLevels, SyncState{stage, access, layout})
}

func (s *Surface) transition(baseLayer, numLayers, baseLevel, numLevels uint32, next SyncState) {
	if s.destroyed {
		return
	}
	if numLayers == 0 || numLevels == 0 ||
		baseLayer+numLayers > s.params.NumLayers || baseLevel+numLevels > s.params.NumLevels {
		s.env.logger().Warn("texcache: transition outside surface ignored",
			"addr", fmt.Sprintf("%#x", uint64(s.addr)),
			"layers", [2]uint32{baseLayer, numLayers}, "levels", [2]uint32{baseLevel, numLevels})
		return
	}

	if s.IsBuffer() {
		barrier, ok := s.tracker.bufferBarrier(s.buffer, next)
		if !ok {
			return
		}
		s.env.sched.RecordCommand(func(enc hal.CommandEncoder) {
			enc.TransitionBuffers([]hal.BufferBarrier{barrier})
		})
		s.env.touch(s)
		s.env.metrics.barrier(1)
		return
	}

	barriers := s.tracker.textureBarriers(s.texture, s.aspect, baseLayer, numLayers, baseLevel, numLevels, next)
	if len(barriers) == 0 {
		return
	}
	s.env.sched.RecordCommand(func(enc hal.CommandEncoder) {
		enc.TransitionTextures(barriers)
	})
	s.env.touch(s)
	s.env.metrics.barrier(len(barriers))
	s.env.logger().Debug("texcache: barriers recorded", "count", len(barriers), "layout", next.Layout)
}

// MarkAsModified records that the surface was written at tick. The stored
// tick never decreases.
func (s *Surface) MarkAsModified(tick uint64) {
	s.modTick = max(s.modTick, tick)
	s.modified = true
}

// ModificationTick returns the latest tick passed to MarkAsModified.
func (s *Surface) ModificationTick() uint64 { return s.modTick }

// IsModified reports whether the surface was written since creation or the
// last Unmark.
func (s *Surface) IsModified() bool { return s.modified }

// Unmark clears the modified flag. The modification tick is kept.
func (s *Surface) Unmark() { s.modified = false }

// Destroyed reports whether Destroy was called.
func (s *Surface) Destroyed() bool { return s.destroyed }

// Destroy releases the views and, once the current batch completes, the
// native resource. Destroy is idempotent.
func (s *Surface) Destroy() {
	if s.destroyed {
		return
	}
	s.destroyed = true
	for _, v := range s.views {
		v.destroy()
	}
	clear(s.views)

	device := s.env.device
	if tex := s.texture; tex != nil {
		s.env.afterCurrentTick(func() { device.DestroyTexture(tex) })
	}
	if buf := s.buffer; buf != nil {
		s.env.afterCurrentTick(func() { device.DestroyBuffer(buf) })
	}
	s.env.logger().Debug("texcache: surface destroyed", "addr", fmt.Sprintf("%#x", uint64(s.addr)))
}

func alignUp(n, align uint64) uint64 {
	return (n + align - 1) &^ (align - 1)
}
