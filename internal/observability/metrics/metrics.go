package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	distributionsCreated metric.Int64Counter
	distributionsDeleted metric.Int64Counter
	distributionResets   metric.Int64Counter
	overAllocations      metric.Int64Counter
	summaryFallbacks     metric.Int64Counter
	lineItemAllocations  metric.Int64Counter
	allocationDrift      metric.Float64Histogram
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "customsledger"
	}
	meter := provider.Meter(name)

	distributionsCreated, err := meter.Int64Counter("customsledger_distributions_created_total")
	if err != nil {
		return nil, err
	}
	distributionsDeleted, err := meter.Int64Counter("customsledger_distributions_deleted_total")
	if err != nil {
		return nil, err
	}
	distributionResets, err := meter.Int64Counter("customsledger_distribution_resets_total")
	if err != nil {
		return nil, err
	}
	overAllocations, err := meter.Int64Counter("customsledger_over_allocations_total")
	if err != nil {
		return nil, err
	}
	summaryFallbacks, err := meter.Int64Counter("customsledger_summary_fallbacks_total")
	if err != nil {
		return nil, err
	}
	lineItemAllocations, err := meter.Int64Counter("customsledger_line_item_allocations_total")
	if err != nil {
		return nil, err
	}
	allocationDrift, err := meter.Float64Histogram("customsledger_line_item_allocation_drift",
		metric.WithDescription("Absolute difference between allocated final costs and the expected USD total."),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		distributionsCreated: distributionsCreated,
		distributionsDeleted: distributionsDeleted,
		distributionResets:   distributionResets,
		overAllocations:      overAllocations,
		summaryFallbacks:     summaryFallbacks,
		lineItemAllocations:  lineItemAllocations,
		allocationDrift:      allocationDrift,
	}, nil
}

// RecordDistributionCreated increments distribution creation counts.
func (m *Metrics) RecordDistributionCreated(ctx context.Context, paymentType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("payment_type", strings.TrimSpace(paymentType)))
	m.distributionsCreated.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordDistributionDeleted(ctx context.Context) {
	if m == nil {
		return
	}
	m.distributionsDeleted.Add(ctx, 1)
}

// RecordDistributionReset counts bulk resets, not the rows they removed.
func (m *Metrics) RecordDistributionReset(ctx context.Context) {
	if m == nil {
		return
	}
	m.distributionResets.Add(ctx, 1)
}

func (m *Metrics) RecordOverAllocation(ctx context.Context) {
	if m == nil {
		return
	}
	m.overAllocations.Add(ctx, 1)
}

// RecordSummaryFallback increments the count of summaries that degraded to zero.
func (m *Metrics) RecordSummaryFallback(ctx context.Context, mode string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("mode", strings.TrimSpace(mode)))
	m.summaryFallbacks.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordLineItemAllocation counts allocation runs per policy and records how
// far the written total drifted from the expected one.
func (m *Metrics) RecordLineItemAllocation(ctx context.Context, policy string, drift float64) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("policy", strings.TrimSpace(policy)))
	m.lineItemAllocations.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.allocationDrift.Record(ctx, drift, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"payment_type": {},
	"policy":       {},
	"mode":         {},
	"status_code":  {},
	"route":        {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
