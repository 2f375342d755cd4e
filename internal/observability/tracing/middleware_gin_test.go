package tracing

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordRequest(t *testing.T, pattern, path string) map[attribute.Key]attribute.Value {
	t.Helper()
	gin.SetMode(gin.TestMode)

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	engine := gin.New()
	engine.Use(GinMiddleware())
	engine.GET(pattern, func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, w.Code)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	out := map[attribute.Key]attribute.Value{}
	for _, kv := range spans[0].Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestGinMiddlewareTagsProcedureReference(t *testing.T) {
	attrs := recordRequest(t, "/procedures/:reference/financial_summary", "/procedures/IMP-2024-001/financial_summary")

	assert.Equal(t, "IMP-2024-001", attrs[AttrProcedureReference].AsString())
	assert.Equal(t, "/procedures/:reference/financial_summary", attrs["http.route"].AsString())
	_, hasEntity := attrs[AttrEntityID]
	assert.False(t, hasEntity)
}

func TestGinMiddlewareTagsEntityID(t *testing.T) {
	attrs := recordRequest(t, "/payment_distributions/:id", "/payment_distributions/1790001")

	assert.Equal(t, "1790001", attrs[AttrEntityID].AsString())
	_, hasReference := attrs[AttrProcedureReference]
	assert.False(t, hasReference)
}

func TestGinMiddlewareWithoutRouteParams(t *testing.T) {
	attrs := recordRequest(t, "/health", "/health")

	_, hasReference := attrs[AttrProcedureReference]
	_, hasEntity := attrs[AttrEntityID]
	assert.False(t, hasReference)
	assert.False(t, hasEntity)
	assert.Equal(t, int64(http.StatusOK), attrs["http.status_code"].AsInt64())
}
