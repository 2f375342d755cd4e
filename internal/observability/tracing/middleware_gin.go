package tracing

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/customsledger/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	// AttrProcedureReference tags spans served under /procedures/:reference.
	AttrProcedureReference = attribute.Key("ledger.procedure_reference")
	// AttrEntityID tags spans addressing a single payment, distribution or cost row.
	AttrEntityID = attribute.Key("ledger.entity_id")
)

// GinMiddleware instruments inbound HTTP requests. Spans carry the procedure
// reference and entity id from the matched route so distribution, summary and
// allocation calls can be found by procedure.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("customsledger/http")
	return func(c *gin.Context) {
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		ctx, span := tracer.Start(ctx, "HTTP "+strings.ToUpper(c.Request.Method), trace.WithSpanKind(trace.SpanKindServer))

		requestID := obscontext.RequestIDFromContext(ctx)
		if requestID != "" {
			member, err := baggage.NewMember("request_id", requestID)
			if err == nil {
				bag, bagErr := baggage.New(member)
				if bagErr == nil {
					ctx = baggage.ContextWithBaggage(ctx, bag)
				}
			}
			span.SetAttributes(attribute.String("request_id", requestID))
		}

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		span.SetName("HTTP " + strings.ToUpper(c.Request.Method) + " " + route)
		attrs := []attribute.KeyValue{
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", c.Writer.Status()),
			attribute.Int64("http.server_duration_ms", time.Since(start).Milliseconds()),
		}
		span.SetAttributes(SafeAttributes(append(attrs, ledgerAttributes(c)...)...)...)

		if status := c.Writer.Status(); status >= http.StatusInternalServerError {
			if lastErr := c.Errors.Last(); lastErr != nil {
				if safeErr := SafeError(lastErr.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
			span.SetStatus(codes.Error, "request error")
		}
		span.End()
	}
}

func ledgerAttributes(c *gin.Context) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if reference := strings.TrimSpace(c.Param("reference")); reference != "" {
		attrs = append(attrs, AttrProcedureReference.String(reference))
	}
	if id := strings.TrimSpace(c.Param("id")); id != "" {
		attrs = append(attrs, AttrEntityID.String(id))
	}
	return attrs
}
