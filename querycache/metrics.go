package querycache

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/reloom/reloom-go/querycache"

// metrics holds the cache's otel counters. Instrument creation failures
// leave nil instruments, which record nothing.
type metrics struct {
	hits      metric.Int64Counter
	misses    metric.Int64Counter
	rollbacks metric.Int64Counter
}

func newMetrics() *metrics {
	meter := otel.Meter(meterName)
	m := &metrics{}
	m.hits, _ = meter.Int64Counter("querycache.hits",
		metric.WithDescription("Reads served from a fresh cache entry"))
	m.misses, _ = meter.Int64Counter("querycache.misses",
		metric.WithDescription("Reads that triggered a fetch"))
	m.rollbacks, _ = meter.Int64Counter("querycache.rollbacks",
		metric.WithDescription("Optimistic mutations rolled back after commit failure"))
	return m
}

func (m *metrics) hit(ctx context.Context) {
	if m.hits != nil {
		m.hits.Add(ctx, 1)
	}
}

func (m *metrics) miss(ctx context.Context) {
	if m.misses != nil {
		m.misses.Add(ctx, 1)
	}
}

func (m *metrics) rollback(ctx context.Context) {
	if m.rollbacks != nil {
		m.rollbacks.Add(ctx, 1)
	}
}
