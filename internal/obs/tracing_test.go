package obs_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/noah-isme/toko-asppay/internal/obs"
)

func TestInitTracerNoneExporter(t *testing.T) {
	shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{ServiceName: "test", Exporter: "none"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
	require.ElementsMatch(t, []string{"traceparent", "tracestate", "baggage"}, otel.GetTextMapPropagator().Fields())
}

func TestInitTracerRejectsUnknownExporter(t *testing.T) {
	_, err := obs.InitTracer(context.Background(), obs.TracingConfig{Exporter: "zipkin"})
	require.ErrorContains(t, err, "zipkin")
}

func TestParseBucketsCSV(t *testing.T) {
	require.Equal(t, []float64{5, 25.5, 100}, obs.ParseBucketsCSV(" 5, 25.5 ,x,-1,,100"))
	require.Nil(t, obs.ParseBucketsCSV(""))
}
