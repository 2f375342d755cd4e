package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("payment_type", "advance"),
		attribute.String("procedure_reference", "IMP-2024-001"),
		attribute.String("policy", "equal"),
	)
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("payment_type"), attrs[0].Key)
	assert.Equal(t, attribute.Key("policy"), attrs[1].Key)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordDistributionCreated(ctx, "advance")
		m.RecordDistributionDeleted(ctx)
		m.RecordDistributionReset(ctx)
		m.RecordOverAllocation(ctx)
		m.RecordSummaryFallback(ctx, "single")
		m.RecordLineItemAllocation(ctx, "proportional", 0)
	})
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "customsledger"}, noop.NewMeterProvider())
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		m.RecordLineItemAllocation(context.Background(), "equal", 0.004)
	})
}
