package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"

	"github.com/zetsubou/tagstore/pkg/telemetry/mocks"
)

func TestTracing(t *testing.T) {
	tp := MustNewTracerProvider(
		WithAttributes(semconv.DeploymentEnvironmentKey.String("test")),
		WithSamplingRatio(1),
	)
	t.Cleanup(func() {
		_ = tp.Close(context.Background())
	})

	spanRecorder := tracetest.NewSpanRecorder()
	tp.RegisterSpanProcessor(spanRecorder)

	_, span := tp.Tracer("").Start(context.Background(), "test")
	TraceError(span, errors.New("boom"))
	span.End()

	spans := spanRecorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "test", spans[0].Name())
	require.Equal(t, codes.Error, spans[0].Status().Code)
	require.Len(t, spans[0].Events(), 1)
}

func TestTracingExportsToCollector(t *testing.T) {
	collector, err := mocks.NewMockTracingServer()
	require.NoError(t, err)
	t.Cleanup(collector.Stop)

	tp := MustNewTracerProvider(
		WithOTLPEndpoint(collector.Addr()),
		WithOTLPInsecure(),
		WithSamplingRatio(1),
	)

	_, span := tp.Tracer("tagstore/test").Start(context.Background(), "tag.Insert")
	span.End()

	require.NoError(t, tp.Close(context.Background()))
	require.Equal(t, []string{"tag.Insert"}, collector.SpanNames())
	require.NoError(t, tp.Close(context.Background()))
}

func TestNoop(t *testing.T) {
	tp := Noop()
	_, span := tp.Tracer("").Start(context.Background(), "test")
	span.End()
	require.False(t, span.SpanContext().IsValid())
	require.NoError(t, tp.Close(context.Background()))
}
