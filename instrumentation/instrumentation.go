// Package instrumentation records OpenTelemetry spans and counters for grant
// dispatch. Without explicit providers everything is a no-op.
package instrumentation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/jrsteele09/go-oauth2-server"

// Span attribute keys. Never attach token or secret values.
const (
	AttrClientID     = "oauth.client_id"
	AttrUserID       = "oauth.user_id"
	AttrGrantType    = "oauth.grant_type"
	AttrResponseType = "oauth.response_type"
	AttrTokenKind    = "oauth.token_kind"
	AttrError        = "oauth.error"
	AttrApproved     = "oauth.approved"
)

type Config struct {
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

type Instrumentation struct {
	tracer  trace.Tracer
	metrics *Metrics
}

// New creates instruments on the given providers, substituting no-op providers for nil ones.
func New(cfg Config) (*Instrumentation, error) {
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = metricnoop.NewMeterProvider()
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = tracenoop.NewTracerProvider()
	}

	metrics, err := newMetrics(cfg.MeterProvider.Meter(instrumentationName))
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}
	return &Instrumentation{
		tracer:  cfg.TracerProvider.Tracer(instrumentationName),
		metrics: metrics,
	}, nil
}

// Noop returns instrumentation that records nothing.
func Noop() *Instrumentation {
	inst, err := New(Config{})
	if err != nil {
		// no-op providers never fail to create instruments
		panic(err)
	}
	return inst
}

func (i *Instrumentation) Metrics() *Metrics {
	return i.metrics
}

func (i *Instrumentation) Tracer() trace.Tracer {
	return i.tracer
}

// StartSpan starts an internal span named name with the given attributes.
func (i *Instrumentation) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return i.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordError marks the span as failed (nil-safe).
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func SetSpanSuccess(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}
