package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInit_ExportsMetricsAndSpans(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	var spans bytes.Buffer

	shutdown, err := Init(ctx, Config{
		ServiceName:    "genlib-test",
		TraceExporter:  "stdout",
		MetricExporter: "prometheus",
		Registerer:     reg,
		TraceWriter:    &spans,
	})
	require.NoError(t, err)

	counter, err := otel.Meter("genlib.test").Int64Counter("genlib_test_events_total")
	require.NoError(t, err)
	counter.Add(ctx, 3)

	_, span := otel.Tracer("genlib.test").Start(ctx, "test.operation")
	assert.True(t, span.SpanContext().IsSampled())
	span.End()

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, strings.Join(names, " "), "genlib_test_events")

	require.NoError(t, shutdown(ctx))
	assert.Contains(t, spans.String(), "test.operation")
}

func TestInit_UnknownExporter(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "trace", cfg: Config{TraceExporter: "jaeger", MetricExporter: "none"}},
		{name: "metric", cfg: Config{TraceExporter: "none", MetricExporter: "statsd", Registerer: prometheus.NewRegistry()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Init(context.Background(), tt.cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnknownExporter)
		})
	}
}
