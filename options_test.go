package texcache

import (
	"bytes"
	"log/slog"
	"runtime"
	"strings"
	"testing"
)

func TestDefaultOptions(t *testing.T) {
	o := defaultOptions()
	if o.surfaceLimit != 0 {
		t.Errorf("surfaceLimit = %d, want 0", o.surfaceLimit)
	}
	if o.retileWorkers != runtime.GOMAXPROCS(0) {
		t.Errorf("retileWorkers = %d, want GOMAXPROCS", o.retileWorkers)
	}
	if o.rowAlignment != defaultRowAlignment {
		t.Errorf("rowAlignment = %d, want %d", o.rowAlignment, defaultRowAlignment)
	}
	if o.logger != nil || o.meterProvider != nil || o.tracerProvider != nil {
		t.Error("telemetry options set by default")
	}
}

func TestOptionsIgnoreInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		opt   Option
		check func(options) bool
	}{
		{"negative surface limit", WithSurfaceLimit(-1), func(o options) bool { return o.surfaceLimit == 0 }},
		{"surface limit", WithSurfaceLimit(64), func(o options) bool { return o.surfaceLimit == 64 }},
		{"zero workers", WithRetileWorkers(0), func(o options) bool { return o.retileWorkers == runtime.GOMAXPROCS(0) }},
		{"two workers", WithRetileWorkers(2), func(o options) bool { return o.retileWorkers == 2 }},
		{"row alignment 48", WithRowAlignment(48), func(o options) bool { return o.rowAlignment == defaultRowAlignment }},
		{"row alignment 0", WithRowAlignment(0), func(o options) bool { return o.rowAlignment == defaultRowAlignment }},
		{"row alignment 64", WithRowAlignment(64), func(o options) bool { return o.rowAlignment == 64 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := defaultOptions()
			tt.opt(&o)
			if !tt.check(o) {
				t.Errorf("unexpected options after %s: %+v", tt.name, o)
			}
		})
	}
}

func TestWithLoggerOverridesPackageLogger(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var pkg, own bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&pkg, &slog.HandlerOptions{Level: slog.LevelDebug})))
	l := slog.New(slog.NewTextHandler(&own, &slog.HandlerOptions{Level: slog.LevelDebug}))

	m, _, _ := newTestManager(t, WithLogger(l))
	mustSurface(t, m, 0x1000, params2D(FormatRGBA8, 8, 8, 1))

	if own.Len() == 0 {
		t.Error("manager did not log to its own logger")
	}
	if strings.Contains(pkg.String(), "surface") {
		t.Errorf("manager logged to the package logger: %s", pkg.String())
	}
}
