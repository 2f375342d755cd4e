package tracing

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsPayerFields(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("payer_name", "Acme Textiles"),
		attribute.String("http.route", "/api/v1/incoming-payments"),
	)
	assert.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("http.route"), attrs[0].Key)
}

func TestSafeAttributesTruncatesLongValues(t *testing.T) {
	attrs := SafeAttributes(attribute.String("http.route", strings.Repeat("a", 400)))
	assert.Len(t, attrs[0].Value.AsString(), maxAttributeLength)
}

func TestSafeErrorNil(t *testing.T) {
	assert.Nil(t, SafeError(nil))
	assert.EqualError(t, SafeError(errors.New(" boom ")), "boom")
}
