package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
)

func TestDefaultConfigFromEnvironment(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://collector:4318")
	t.Setenv("OTEL_SERVICE_NAME", "")
	t.Setenv("OTEL_RESOURCE_ENVIRONMENT", "")
	t.Setenv("KRAKENWS_ENV", "Staging")

	cfg := DefaultConfig()
	require.True(t, cfg.Enabled)
	require.Equal(t, "http://collector:4318", cfg.OTLPEndpoint)
	require.Equal(t, serviceName, cfg.ServiceName)
	require.Equal(t, "Staging", cfg.Environment)
	require.NotEmpty(t, cfg.InstanceID)
	require.NotEqual(t, cfg.InstanceID, DefaultConfig().InstanceID)
}

func TestDefaultConfigDisabledUnlessOptedIn(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "")
	require.False(t, DefaultConfig().Enabled)
}

func TestDisabledProviderUsesGlobalMeter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	cfg.Environment = "Production"
	cfg.InstanceID = ""

	p, err := NewProvider(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, p.Meter("test"))
	require.NotEmpty(t, p.Config().InstanceID)
	require.Equal(t, "production", Environment())
	require.NoError(t, p.Shutdown(context.Background()))

	var nilProvider *Provider
	require.NoError(t, nilProvider.Shutdown(context.Background()))
}

func TestStripScheme(t *testing.T) {
	require.Equal(t, "localhost:4318", stripScheme("http://localhost:4318"))
	require.Equal(t, "otel.example.com", stripScheme("https://otel.example.com"))
	require.Equal(t, "collector:4318", stripScheme("collector:4318"))
}

func TestReplyLatencyView(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := newMeterProvider(resource.Empty(), reader)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	hist, err := mp.Meter("test").Float64Histogram(MetricReplyLatency)
	require.NoError(t, err)
	hist.Record(context.Background(), 12)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)

	data, ok := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, data.DataPoints, 1)
	require.Equal(t, []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 10000}, data.DataPoints[0].Bounds)
}

func TestAttributeHelpers(t *testing.T) {
	attrs := FrameAttributes("dev", "kraken", "channel", "book", "")
	require.Len(t, attrs, 4)
	require.Equal(t, AttrChannel, attrs[3].Key)

	attrs = ReplyAttributes("dev", "kraken", "subscribe", OutcomeSuccess)
	require.Equal(t, "success", attrs[3].Value.AsString())
}
