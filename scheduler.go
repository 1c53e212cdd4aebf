// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package texcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/wgpu/hal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Scheduler accepts recorded backend commands and reports the tick that
// the commands recorded now will complete at.
type Scheduler interface {
	// RecordCommand calls fn with the encoder of the current batch.
	RecordCommand(fn func(enc hal.CommandEncoder))

	// CurrentTick returns the tick of the batch being recorded.
	CurrentTick() uint64
}

// Waiter is implemented by schedulers that can submit the current batch and
// block until a tick completes. Surface.DownloadTexture requires it.
type Waiter interface {
	Flush(ctx context.Context) (uint64, error)
	Wait(ctx context.Context, tick uint64) error
}

// Completer is implemented by schedulers that can run a callback once a
// tick has completed. It is used to release transient staging buffers.
type Completer interface {
	OnComplete(tick uint64, fn func())
}

// Discarder is implemented by schedulers that can drop a batch without
// submitting it. fn receives the tick the dropped batch would have had.
type Discarder interface {
	OnDiscard(fn func(tick uint64))
}

// ErrSchedulerClosed is returned by HALScheduler after Close.
var ErrSchedulerClosed = errors.New("texcache: scheduler closed")

// defaultPollInterval is how often Wait re-checks queue completion.
const defaultPollInterval = 100 * time.Microsecond

// HALScheduler records commands into one wgpu HAL command encoder per batch
// and submits batches to a HAL queue.
//
// HALScheduler is not safe for concurrent use.
type HALScheduler struct {
	device hal.Device
	queue  hal.Queue
	tracer trace.Tracer

	encoder  hal.CommandEncoder
	recorded int
	err      error

	lastSubmitted uint64
	inflight      []inflightBatch
	callbacks     []tickCallback
	discardHooks  []func(tick uint64)

	pollInterval time.Duration
	closed       bool
}

type inflightBatch struct {
	tick    uint64
	encoder hal.CommandEncoder
	cmd     hal.CommandBuffer
}

type tickCallback struct {
	tick uint64
	fn   func()
}

// SchedulerOption configures a HALScheduler.
type SchedulerOption func(*HALScheduler)

// WithSchedulerTracer records a span for every submitted batch.
func WithSchedulerTracer(tp trace.TracerProvider) SchedulerOption {
	return func(s *HALScheduler) {
		if tp != nil {
			s.tracer = tp.Tracer(instrumentationName)
		}
	}
}

// WithPollInterval sets how often Wait polls the queue.
func WithPollInterval(d time.Duration) SchedulerOption {
	return func(s *HALScheduler) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// NewHALScheduler creates a scheduler over the given device and queue.
func NewHALScheduler(device hal.Device, queue hal.Queue, opts ...SchedulerOption) *HALScheduler {
	s := &HALScheduler{
		device:       device,
		queue:        queue,
		tracer:       tracenoop.NewTracerProvider().Tracer(instrumentationName),
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordCommand calls fn with the current batch's encoder, beginning a new
// batch if needed. Encoder creation errors are reported by the next Flush.
func (s *HALScheduler) RecordCommand(fn func(enc hal.CommandEncoder)) {
	if s.closed || s.err != nil {
		return
	}
	if s.encoder == nil {
		enc, err := s.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "texcache_encoder"})
		if err != nil {
			s.err = fmt.Errorf("texcache: create command encoder: %w", err)
			return
		}
		if err := enc.BeginEncoding("texcache_batch"); err != nil {
			enc.Destroy()
			s.err = fmt.Errorf("texcache: begin encoding: %w", err)
			return
		}
		s.encoder = enc
	}
	fn(s.encoder)
	s.recorded++
}

// CurrentTick returns the submission index the current batch will receive.
func (s *HALScheduler) CurrentTick() uint64 {
	return s.lastSubmitted + 1
}

// Queue returns the queue batches are submitted to.
func (s *HALScheduler) Queue() hal.Queue { return s.queue }

// Recorded returns the number of commands in the current batch.
func (s *HALScheduler) Recorded() int {
	return s.recorded
}

// Flush submits the current batch and returns its tick. With nothing
// recorded it returns the last submitted tick.
func (s *HALScheduler) Flush(ctx context.Context) (uint64, error) {
	if s.closed {
		return 0, ErrSchedulerClosed
	}
	if err := s.err; err != nil {
		s.err = nil
		s.discard()
		s.notifyDiscard()
		return 0, err
	}
	if s.encoder == nil {
		s.reap()
		return s.lastSubmitted, nil
	}

	_, span := s.tracer.Start(ctx, "texcache.flush",
		trace.WithAttributes(attribute.Int("texcache.commands", s.recorded)))
	defer span.End()

	enc := s.encoder
	s.encoder = nil
	s.recorded = 0

	cmd, err := enc.EndEncoding()
	if err != nil {
		enc.Destroy()
		s.notifyDiscard()
		span.RecordError(err)
		return 0, fmt.Errorf("texcache: end encoding: %w", err)
	}
	tick, err := s.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		s.device.FreeCommandBuffer(cmd)
		enc.Destroy()
		s.notifyDiscard()
		span.RecordError(err)
		return 0, fmt.Errorf("texcache: submit: %w", err)
	}
	s.lastSubmitted = tick
	s.inflight = append(s.inflight, inflightBatch{tick: tick, encoder: enc, cmd: cmd})
	span.SetAttributes(attribute.Int64("texcache.tick", int64(tick))) //nolint:gosec // G115: ticks stay far below 2^63
	slogger().Debug("texcache: batch submitted", "tick", tick)

	s.reap()
	return tick, nil
}

// Wait blocks until tick has completed or ctx is done.
func (s *HALScheduler) Wait(ctx context.Context, tick uint64) error {
	if s.closed {
		return ErrSchedulerClosed
	}
	if s.queue.PollCompleted() >= tick {
		s.reap()
		return nil
	}
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("texcache: wait for tick %d: %w", tick, ctx.Err())
		case <-ticker.C:
			if s.queue.PollCompleted() >= tick {
				s.reap()
				return nil
			}
		}
	}
}

// OnComplete runs fn once tick has completed. Callbacks for ticks that are
// already complete run on the next Flush, Wait or Poll.
func (s *HALScheduler) OnComplete(tick uint64, fn func()) {
	s.callbacks = append(s.callbacks, tickCallback{tick: tick, fn: fn})
}

// OnDiscard registers fn to run whenever a recorded batch is dropped
// instead of submitted, so recorders can forget state that batch assumed.
func (s *HALScheduler) OnDiscard(fn func(tick uint64)) {
	s.discardHooks = append(s.discardHooks, fn)
}

func (s *HALScheduler) notifyDiscard() {
	tick := s.CurrentTick()
	slogger().Warn("texcache: batch discarded", "tick", tick)
	for _, fn := range s.discardHooks {
		fn(tick)
	}
}

// Poll releases finished batches and runs due callbacks. It returns the
// highest completed tick.
func (s *HALScheduler) Poll() uint64 {
	return s.reap()
}

func (s *HALScheduler) reap() uint64 {
	done := s.queue.PollCompleted()

	n := 0
	for _, b := range s.inflight {
		if b.tick <= done {
			s.device.FreeCommandBuffer(b.cmd)
			b.encoder.Destroy()
			continue
		}
		s.inflight[n] = b
		n++
	}
	clear(s.inflight[n:])
	s.inflight = s.inflight[:n]

	n = 0
	var due []func()
	for _, cb := range s.callbacks {
		if cb.tick <= done {
			due = append(due, cb.fn)
			continue
		}
		s.callbacks[n] = cb
		n++
	}
	clear(s.callbacks[n:])
	s.callbacks = s.callbacks[:n]
	for _, fn := range due {
		fn()
	}
	return done
}

func (s *HALScheduler) discard() {
	if s.encoder != nil {
		s.encoder.DiscardEncoding()
		s.encoder.Destroy()
		s.encoder = nil
	}
	s.recorded = 0
}

// Close waits for the device to go idle and releases every batch. Pending
// callbacks run before Close returns.
func (s *HALScheduler) Close() error {
	if s.closed {
		return nil
	}
	s.discard()
	err := s.device.WaitIdle()
	for _, b := range s.inflight {
		s.device.FreeCommandBuffer(b.cmd)
		b.encoder.Destroy()
	}
	s.inflight = nil
	for _, cb := range s.callbacks {
		cb.fn()
	}
	s.callbacks = nil
	s.closed = true
	if err != nil {
		return fmt.Errorf("texcache: wait idle: %w", err)
	}
	return nil
}
