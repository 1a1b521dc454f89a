// Package metrics defines the service's OpenTelemetry instruments.
package metrics

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/chris/payment-decisions/pkg/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// LatencyBucketsMs are the histogram boundaries of http_latency_ms.
var LatencyBucketsMs = []float64{50, 100, 200, 500, 1000, 2000, 5000}

// Recorder records the service metrics.
type Recorder struct {
	requests        metric.Int64Counter
	latency         metric.Float64Histogram
	decisions       metric.Int64Counter
	idempotencyHits metric.Int64Counter
	rateLimitDrops  metric.Int64Counter
}

// NewRecorder creates the instruments on meter.
func NewRecorder(meter metric.Meter) (*Recorder, error) {
	requests, err := meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total HTTP requests"))
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total: %w", err)
	}
	latency, err := meter.Float64Histogram("http_latency_ms",
		metric.WithDescription("HTTP request latency"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(LatencyBucketsMs...))
	if err != nil {
		return nil, fmt.Errorf("failed to create http_latency_ms: %w", err)
	}
	decisions, err := meter.Int64Counter("decisions_total",
		metric.WithDescription("Payment decisions by type"))
	if err != nil {
		return nil, fmt.Errorf("failed to create decisions_total: %w", err)
	}
	hits, err := meter.Int64Counter("idempotency_hits_total",
		metric.WithDescription("Requests answered from the idempotency store"))
	if err != nil {
		return nil, fmt.Errorf("failed to create idempotency_hits_total: %w", err)
	}
	drops, err := meter.Int64Counter("rate_limit_dropped_total",
		metric.WithDescription("Requests rejected by the rate limiter"))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate_limit_dropped_total: %w", err)
	}

	return &Recorder{
		requests:        requests,
		latency:         latency,
		decisions:       decisions,
		idempotencyHits: hits,
		rateLimitDrops:  drops,
	}, nil
}

// NewNoop returns a Recorder that discards everything.
func NewNoop() *Recorder {
	r, _ := NewRecorder(noop.NewMeterProvider().Meter("noop"))
	return r
}

// RecordRequest counts a served HTTP request and its latency.
func (r *Recorder) RecordRequest(ctx context.Context, method, route string, status int, latency time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status", strconv.Itoa(status)),
	)
	r.requests.Add(ctx, 1, attrs)
	r.latency.Record(ctx, float64(latency.Microseconds())/1000, attrs)
}

func (r *Recorder) RecordDecision(ctx context.Context, d models.Decision) {
	r.decisions.Add(ctx, 1, metric.WithAttributes(attribute.String("type", string(d))))
}

func (r *Recorder) RecordIdempotencyHit(ctx context.Context) {
	r.idempotencyHits.Add(ctx, 1)
}

func (r *Recorder) RecordRateLimitDrop(ctx context.Context) {
	r.rateLimitDrops.Add(ctx, 1)
}
