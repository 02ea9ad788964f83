package tracing

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/aguas/internal/observability/context"
	"github.com/smallbiznis/aguas/pkg/apperror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const httpTracerName = "aguas/http"

// GinMiddleware opens one server span per request. The span is named after
// the matched route and picks up the caller role and consumption id that the
// handlers put on the request context.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := otel.Tracer(httpTracerName).Start(ctx, spanName(c.Request.Method, ""), trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			ctx = withRequestBaggage(ctx, requestID)
			span.SetAttributes(attribute.String("request_id", requestID))
		}

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		span.SetName(spanName(c.Request.Method, route))
		span.SetAttributes(SafeAttributes(requestAttributes(c, route, time.Since(start))...)...)
		finishSpan(span, c)
	}
}

func spanName(method, route string) string {
	name := "HTTP " + strings.ToUpper(method)
	if route != "" {
		name += " " + route
	}
	return name
}

func withRequestBaggage(ctx context.Context, requestID string) context.Context {
	member, err := baggage.NewMember("request_id", requestID)
	if err != nil {
		return ctx
	}
	bag, err := baggage.New(member)
	if err != nil {
		return ctx
	}
	return baggage.ContextWithBaggage(ctx, bag)
}

// requestAttributes reads the handler-populated request context, which is
// only complete once the chain has run.
func requestAttributes(c *gin.Context, route string, elapsed time.Duration) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", c.Request.Method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", c.Writer.Status()),
		attribute.Int64("http.server_duration_ms", elapsed.Milliseconds()),
	}
	ctx := c.Request.Context()
	if role := obscontext.CallerRoleFromContext(ctx); role != "" {
		attrs = append(attrs, attribute.String("caller.role", role))
	}
	if id := obscontext.ConsumptionIDFromContext(ctx); id != "" {
		attrs = append(attrs, attribute.String("consumption.id", id))
	}
	if lastErr := c.Errors.Last(); lastErr != nil {
		var appErr *apperror.Error
		if errors.As(lastErr.Err, &appErr) {
			attrs = append(attrs, attribute.String("error.kind", string(appErr.Kind)))
		}
	}
	return attrs
}

func finishSpan(span trace.Span, c *gin.Context) {
	if c.Writer.Status() < http.StatusInternalServerError {
		return
	}
	if lastErr := c.Errors.Last(); lastErr != nil {
		if safeErr := SafeError(lastErr.Err); safeErr != nil {
			span.RecordError(safeErr)
		}
	}
	span.SetStatus(codes.Error, "request error")
}
