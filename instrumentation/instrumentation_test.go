package instrumentation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/jrsteele09/go-oauth2-server/instrumentation"
)

type fixture struct {
	inst     *instrumentation.Instrumentation
	reader   *sdkmetric.ManualReader
	recorder *tracetest.SpanRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	recorder := tracetest.NewSpanRecorder()
	inst, err := instrumentation.New(instrumentation.Config{
		MeterProvider:  sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
		TracerProvider: sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)),
	})
	require.NoError(t, err)
	return &fixture{inst: inst, reader: reader, recorder: recorder}
}

func (f *fixture) sum(t *testing.T, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, f.reader.Collect(context.Background(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			data, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range data.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestMetrics_Counters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.inst.Metrics()

	m.RecordTokenIssued(ctx, "c1", "client_credentials", instrumentation.TokenKindAccess)
	m.RecordTokenIssued(ctx, "c1", "password", instrumentation.TokenKindRefresh)
	m.RecordRequestFailure(ctx, "password", "invalid_grant")
	m.RecordTokenRequest(ctx, "password")

	require.Equal(t, int64(2), f.sum(t, "oauth.tokens.issued"))
	require.Equal(t, int64(1), f.sum(t, "oauth.request.failures"))
	require.Equal(t, int64(1), f.sum(t, "oauth.token.requests"))
	require.Equal(t, int64(0), f.sum(t, "oauth.authorization.requests"))
}

func TestSpans(t *testing.T) {
	f := newFixture(t)

	_, span := f.inst.StartSpan(context.Background(), "token", attribute.String(instrumentation.AttrGrantType, "password"))
	instrumentation.RecordError(span, errors.New("boom"))
	span.End()

	_, span = f.inst.StartSpan(context.Background(), "authorize")
	instrumentation.SetSpanSuccess(span)
	span.End()

	ended := f.recorder.Ended()
	require.Len(t, ended, 2)
	require.Equal(t, "token", ended[0].Name())
	require.Equal(t, codes.Error, ended[0].Status().Code)
	require.Contains(t, ended[0].Attributes(), attribute.String(instrumentation.AttrGrantType, "password"))
	require.Equal(t, codes.Ok, ended[1].Status().Code)
}

func TestNoop(t *testing.T) {
	inst := instrumentation.Noop()
	require.NotPanics(t, func() {
		inst.Metrics().RecordTokenIssued(context.Background(), "c", "g", instrumentation.TokenKindAccess)
		_, span := inst.StartSpan(context.Background(), "x")
		instrumentation.RecordError(span, errors.New("boom"))
		span.End()
	})
}
