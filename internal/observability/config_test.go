package observability

import (
	"testing"

	"github.com/smallbiznis/customsledger/internal/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestLoadConfigDefaultsServiceName(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "")
	t.Setenv("OTEL_SAMPLING_RATIO", "")

	cfg := LoadConfig(config.Config{Environment: "test"})

	assert.Equal(t, "customsledger", cfg.ServiceName)
	assert.False(t, cfg.OtelEnabled)
	assert.Equal(t, 0.1, cfg.OtelSamplingRatio)
	assert.True(t, cfg.Debug())
}

func TestDerivedConfigsShareExporter(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "")

	cfg := LoadConfig(config.Config{AppName: "ledger-api", Environment: "production", Logger: config.LoggerConfig{Level: "INFO"}})

	tracingCfg := cfg.tracingConfig()
	metricsCfg := cfg.metricsConfig()
	assert.True(t, tracingCfg.Enabled)
	assert.Equal(t, "collector:4317", tracingCfg.ExporterEndpoint)
	assert.Equal(t, tracingCfg.ExporterEndpoint, metricsCfg.ExporterEndpoint)
	assert.Equal(t, "ledger-api", metricsCfg.ServiceName)

	logCfg := cfg.loggerConfig()
	assert.Equal(t, "info", logCfg.Level)
	assert.False(t, logCfg.Debug)
	assert.True(t, logCfg.IncludeCaller)
}

func TestAnnounceAcceptsNilProvider(t *testing.T) {
	assert.NotPanics(t, func() {
		announce(zap.NewNop(), Config{ServiceName: "customsledger"}, nil)
	})
}
