package regtrace

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func newTestTracer(t *testing.T, opts ...Option) (*Tracer, *bytes.Buffer) {
	t.Helper()
	var logs bytes.Buffer
	l := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewTracer(append([]Option{WithLogger(l)}, opts...)...), &logs
}

func TestTracerRecordsInOrder(t *testing.T) {
	tr, _ := newTestTracer(t, WithCapacity(8))
	tr.OnRegisterWrite(0x10, 1)
	if tr.IsTracing() {
		t.Fatal("new tracer is tracing")
	}
	if !tr.Start() {
		t.Fatal("Start() = false")
	}
	tr.OnRegisterWrite(0x10, 1)
	tr.OnRegisterWrite(0x20, 2)
	tr.OnRegisterWrite(0x10, 3)
	got := tr.Finish()
	tr.OnRegisterWrite(0x30, 4)

	want := []Write{{0x10, 1}, {0x20, 2}, {0x10, 3}}
	if len(got.Writes) != len(want) {
		t.Fatalf("recorded %d writes, want %d", len(got.Writes), len(want))
	}
	for i := range want {
		if got.Writes[i] != want[i] {
			t.Errorf("write %d = %+v, want %+v", i, got.Writes[i], want[i])
		}
	}
	if tr.IsTracing() {
		t.Error("still tracing after Finish")
	}
}

func TestTracerMisuse(t *testing.T) {
	tr, logs := newTestTracer(t)

	if got := tr.Finish(); got == nil || len(got.Writes) != 0 {
		t.Errorf("Finish() without Start = %+v, want empty trace", got)
	}
	if !strings.Contains(logs.String(), "Finish called while tracing is not running") {
		t.Errorf("missing warning, logs: %s", logs.String())
	}

	tr.Start()
	tr.OnRegisterWrite(1, 1)
	if tr.Start() {
		t.Error("second Start() = true")
	}
	if !strings.Contains(logs.String(), "Start called while tracing is running") {
		t.Errorf("missing warning, logs: %s", logs.String())
	}
	// The running trace is kept.
	if got := tr.Finish(); len(got.Writes) != 1 {
		t.Errorf("trace after double Start has %d writes, want 1", len(got.Writes))
	}
}

func TestTracerRestart(t *testing.T) {
	tr, _ := newTestTracer(t)
	tr.Start()
	tr.OnRegisterWrite(1, 1)
	tr.Finish()

	tr.Start()
	tr.OnRegisterWrite(2, 2)
	got := tr.Finish()
	if len(got.Writes) != 1 || got.Writes[0] != (Write{2, 2}) {
		t.Errorf("second trace = %+v", got.Writes)
	}
}

func TestTracerConcurrentWrites(t *testing.T) {
	tr, _ := newTestTracer(t)
	tr.Start()

	const writers, perWriter = 8, 500
	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWriter {
				tr.OnRegisterWrite(uint32(w), uint32(i))
			}
		}()
	}
	wg.Wait()
	got := tr.Finish()
	if len(got.Writes) != writers*perWriter {
		t.Fatalf("recorded %d writes, want %d", len(got.Writes), writers*perWriter)
	}

	// Writes from one goroutine keep their relative order.
	next := make(map[uint32]uint32)
	for _, w := range got.Writes {
		if w.Value != next[w.ID] {
			t.Fatalf("writer %d: value %d out of order, want %d", w.ID, w.Value, next[w.ID])
		}
		next[w.ID]++
	}
}

func TestTracerFinishDuringWrites(t *testing.T) {
	tr, _ := newTestTracer(t)
	tr.Start()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				tr.OnRegisterWrite(1, 1)
			}
		}
	}()
	got := tr.Finish()
	n := len(got.Writes)
	close(stop)
	wg.Wait()
	if len(got.Writes) != n {
		t.Error("trace modified after Finish returned")
	}
}

func TestTracerStartFinishInterleaved(t *testing.T) {
	tr, _ := newTestTracer(t)

	stop := make(chan struct{})
	var writers sync.WaitGroup
	for range 4 {
		writers.Add(1)
		go func() {
			defer writers.Done()
			for {
				select {
				case <-stop:
					return
				default:
					tr.OnRegisterWrite(1, 1)
				}
			}
		}()
	}
	for range 500 {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); tr.Start() }()
		go func() { defer wg.Done(); tr.Finish() }()
		wg.Wait()
	}
	close(stop)
	writers.Wait()

	// Whatever the interleaving, the tracer must end in a usable state.
	tr.Finish()
	if tr.IsTracing() {
		t.Fatal("still tracing after Finish")
	}
	if !tr.Start() {
		t.Fatal("Start() = false after Finish")
	}
	tr.OnRegisterWrite(2, 2)
	if got := tr.Finish(); len(got.Writes) != 1 {
		t.Errorf("recorded %d writes, want 1", len(got.Writes))
	}
}

func TestTracerConcurrentFinish(t *testing.T) {
	tr, logs := newTestTracer(t)
	tr.Start()
	tr.OnRegisterWrite(1, 1)

	const n = 8
	traces := make([]*Trace, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			traces[i] = tr.Finish()
		}()
	}
	wg.Wait()

	full := 0
	for _, got := range traces {
		if len(got.Writes) == 1 {
			full++
		}
	}
	if full != 1 {
		t.Errorf("%d Finish calls got the trace, want 1", full)
	}
	if c := strings.Count(logs.String(), "Finish called while tracing is not running"); c != n-1 {
		t.Errorf("logged %d warnings, want %d", c, n-1)
	}
}

func TestTraceSerialization(t *testing.T) {
	in := &Trace{Writes: []Write{{0x0041, 0xdeadbeef}, {0x0100, 0}, {0xffff, 7}}}
	var buf bytes.Buffer
	n, err := in.WriteTo(&buf)
	if err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if n != 24 || buf.Len() != 24 {
		t.Errorf("wrote %d bytes (%d buffered), want 24", n, buf.Len())
	}
	if want := []byte{0x41, 0, 0, 0, 0xef, 0xbe, 0xad, 0xde}; !bytes.Equal(buf.Bytes()[:8], want) {
		t.Errorf("first pair = % x, want % x", buf.Bytes()[:8], want)
	}

	out, err := ReadTrace(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ReadTrace: %v", err)
	}
	if len(out.Writes) != len(in.Writes) {
		t.Fatalf("read %d writes, want %d", len(out.Writes), len(in.Writes))
	}
	for i := range in.Writes {
		if out.Writes[i] != in.Writes[i] {
			t.Errorf("write %d = %+v, want %+v", i, out.Writes[i], in.Writes[i])
		}
	}

	if _, err := ReadTrace(bytes.NewReader(buf.Bytes()[:20])); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("ReadTrace(truncated) = %v, want io.ErrUnexpectedEOF", err)
	}
	empty, err := ReadTrace(bytes.NewReader(nil))
	if err != nil || len(empty.Writes) != 0 {
		t.Errorf("ReadTrace(empty) = %+v, %v", empty, err)
	}
}

func BenchmarkOnRegisterWriteIdle(b *testing.B) {
	tr := NewTracer()
	for i := range b.N {
		tr.OnRegisterWrite(uint32(i), 0)
	}
}
