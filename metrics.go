package texcache

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/gogpu/texcache"

// cacheMetrics holds the counters recorded by a Manager.
type cacheMetrics struct {
	lookups      metric.Int64Counter
	surfaces     metric.Int64Counter
	views        metric.Int64Counter
	handles      metric.Int64Counter
	barriers     metric.Int64Counter
	transfers    metric.Int64Counter
	transferSize metric.Int64Counter
	skipped      metric.Int64Counter
}

func newCacheMetrics(mp metric.MeterProvider) (*cacheMetrics, error) {
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	var m cacheMetrics
	var err error
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.lookups, "texcache.surface.lookups", "Surface lookups by result", "{lookup}"},
		{&m.surfaces, "texcache.surface.created", "Surfaces created by backing kind", "{surface}"},
		{&m.views, "texcache.view.created", "Views created", "{view}"},
		{&m.handles, "texcache.view.handles", "Swizzled native views created", "{handle}"},
		{&m.barriers, "texcache.barriers", "Barriers recorded", "{barrier}"},
		{&m.transfers, "texcache.transfers", "Copies and blits recorded by operation", "{op}"},
		{&m.transferSize, "texcache.transfer.bytes", "Bytes moved by uploads, downloads and copies", "By"},
		{&m.skipped, "texcache.transfers.skipped", "Self copies and blits skipped", "{op}"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, err
		}
	}
	return &m, nil
}

func (m *cacheMetrics) lookup(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *cacheMetrics) surfaceCreated(ctx context.Context, buffer bool) {
	backing := "texture"
	if buffer {
		backing = "buffer"
	}
	m.surfaces.Add(ctx, 1, metric.WithAttributes(attribute.String("backing", backing)))
}

func (m *cacheMetrics) transfer(ctx context.Context, op string, bytes uint64) {
	attrs := metric.WithAttributes(attribute.String("op", op))
	m.transfers.Add(ctx, 1, attrs)
	if bytes > 0 {
		m.transferSize.Add(ctx, int64(bytes), attrs) //nolint:gosec // G115: surface sizes fit in int64
	}
}

func (m *cacheMetrics) skip(ctx context.Context, op string) {
	m.skipped.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

func (m *cacheMetrics) barrier(n int) {
	m.barriers.Add(context.Background(), int64(n))
}

func (m *cacheMetrics) viewCreated() {
	m.views.Add(context.Background(), 1)
}

func (m *cacheMetrics) handleCreated() {
	m.handles.Add(context.Background(), 1)
}
