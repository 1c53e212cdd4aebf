// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package regtrace records register writes of the emulated GPU between
// Start and Finish, for offline replay and diffing.
//
// A Tracer is safe for concurrent use. OnRegisterWrite is called on every
// register write of the emulated GPU, so its disabled path is a single
// atomic load.
package regtrace

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/texcache"
)

// Write is one recorded register write.
type Write struct {
	ID    uint32
	Value uint32
}

// Trace holds the register writes recorded between Start and Finish, in
// the order they were made.
type Trace struct {
	Writes []Write
}

// writeSize is the serialized size of one Write.
const writeSize = 8

// WriteTo writes the trace as little-endian (id, value) pairs.
func (t *Trace) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var buf [writeSize]byte
	var n int64
	for _, wr := range t.Writes {
		binary.LittleEndian.PutUint32(buf[0:], wr.ID)
		binary.LittleEndian.PutUint32(buf[4:], wr.Value)
		m, err := bw.Write(buf[:])
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}

// ReadTrace parses a trace written by Trace.WriteTo.
func ReadTrace(r io.Reader) (*Trace, error) {
	br := bufio.NewReader(r)
	t := &Trace{}
	var buf [writeSize]byte
	for {
		_, err := io.ReadFull(br, buf[:])
		if errors.Is(err, io.EOF) {
			return t, nil
		}
		if err != nil {
			return nil, fmt.Errorf("regtrace: read write %d: %w", len(t.Writes), err)
		}
		t.Writes = append(t.Writes, Write{
			ID:    binary.LittleEndian.Uint32(buf[0:]),
			Value: binary.LittleEndian.Uint32(buf[4:]),
		})
	}
}

// Tracer records register writes while tracing is active.
type Tracer struct {
	active atomic.Bool

	mu    sync.Mutex
	trace *Trace

	capacity int
	log      *slog.Logger
}

// Option configures a Tracer.
type Option func(*Tracer)

// WithLogger sets the logger misuse warnings go to. It defaults to
// texcache.Logger().
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracer) {
		t.log = l
	}
}

// WithCapacity preallocates room for n writes per trace.
func WithCapacity(n int) Option {
	return func(t *Tracer) {
		if n > 0 {
			t.capacity = n
		}
	}
}

// NewTracer returns an idle tracer.
func NewTracer(opts ...Option) *Tracer {
	t := &Tracer{}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracer) logger() *slog.Logger {
	if t.log != nil {
		return t.log
	}
	return texcache.Logger()
}

// Start begins a new trace. It reports false, logging a warning, if a
// trace is already running.
func (t *Tracer) Start() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active.Load() {
		t.logger().Warn("regtrace: Start called while tracing is running")
		return false
	}
	t.trace = &Trace{Writes: make([]Write, 0, t.capacity)}
	t.active.Store(true)
	return true
}

// IsTracing reports whether a trace is running.
func (t *Tracer) IsTracing() bool {
	return t.active.Load()
}

// OnRegisterWrite appends a write to the running trace. It does nothing
// when no trace is running.
func (t *Tracer) OnRegisterWrite(id, value uint32) {
	if !t.active.Load() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	// Finish may have run between the load and the lock.
	if !t.active.Load() {
		return
	}
	t.trace.Writes = append(t.trace.Writes, Write{ID: id, Value: value})
}

// Finish stops tracing and returns the recorded trace. Without a running
// trace it logs a warning and returns an empty trace.
func (t *Tracer) Finish() *Trace {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active.Load() {
		t.logger().Warn("regtrace: Finish called while tracing is not running")
		return &Trace{}
	}
	t.active.Store(false)
	tr := t.trace
	t.trace = nil
	return tr
}
