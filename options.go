package texcache

import (
	"log/slog"
	"runtime"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Option configures a Manager during creation.
//
// Example:
//
//	mgr, err := texcache.NewManager(device, sched,
//	    texcache.WithSurfaceLimit(4096),
//	    texcache.WithMeterProvider(otel.GetMeterProvider()),
//	)
type Option func(*options)

// options holds optional configuration for Manager creation.
type options struct {
	logger         *slog.Logger
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	surfaceLimit   int
	retileWorkers  int
	rowAlignment   uint32
}

// defaultRowAlignment is the WebGPU requirement for BytesPerRow in
// buffer-texture copies.
const defaultRowAlignment = 256

// defaultOptions returns the default manager options.
func defaultOptions() options {
	return options{
		logger:         nil, // falls back to the package logger
		meterProvider:  nil, // no metrics
		tracerProvider: nil, // no spans
		surfaceLimit:   0,   // unlimited
		retileWorkers:  runtime.GOMAXPROCS(0),
		rowAlignment:   defaultRowAlignment,
	}
}

// WithLogger sets a logger for this manager and its surfaces instead of the
// package-wide logger from SetLogger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMeterProvider enables OpenTelemetry metrics for cache hits, surface
// and view creation, barriers and copies.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = mp
	}
}

// WithTracerProvider enables OpenTelemetry spans around uploads and downloads.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// WithSurfaceLimit sets a soft limit on the number of cached surfaces.
// When exceeded, the least recently used surfaces are destroyed.
// A limit of 0 (the default) disables eviction; the outer cache is then
// expected to call Manager.Invalidate.
func WithSurfaceLimit(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.surfaceLimit = n
		}
	}
}

// WithRetileWorkers bounds the number of levels re-tiled in parallel during
// one upload or download. Values below 1 are ignored.
func WithRetileWorkers(n int) Option {
	return func(o *options) {
		if n >= 1 {
			o.retileWorkers = n
		}
	}
}

// WithRowAlignment sets the BytesPerRow alignment for buffer-texture copies.
// It must be a power of two; other values are ignored.
func WithRowAlignment(n uint32) Option {
	return func(o *options) {
		if n != 0 && n&(n-1) == 0 {
			o.rowAlignment = n
		}
	}
}
