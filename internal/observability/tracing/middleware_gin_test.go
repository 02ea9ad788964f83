package tracing

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/aguas/internal/observability/context"
	"github.com/smallbiznis/aguas/pkg/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(previous) })
	return recorder
}

func tracedRouter(handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(obscontext.WithRequestID(c.Request.Context(), "req-7"))
		c.Next()
	})
	r.Use(GinMiddleware())
	r.Use(func(c *gin.Context) {
		ctx := obscontext.WithCallerRole(c.Request.Context(), "officer")
		ctx = obscontext.WithCaller(ctx, "officer@water.example")
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	r.POST("/api/consumptions/:id/approve", handler)
	return r
}

func spanAttributes(span sdktrace.ReadOnlySpan) map[attribute.Key]string {
	out := map[attribute.Key]string{}
	for _, attr := range span.Attributes() {
		out[attr.Key] = attr.Value.Emit()
	}
	return out
}

func TestGinMiddlewareTagsCallerRoleAndConsumption(t *testing.T) {
	recorder := recordSpans(t)
	r := tracedRouter(func(c *gin.Context) {
		c.Request = c.Request.WithContext(obscontext.WithConsumptionID(c.Request.Context(), c.Param("id")))
		_ = c.Error(apperror.New(apperror.KindInvalidState, "consumption_not_pending", "consumption is not pending"))
		c.Status(http.StatusConflict)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/consumptions/1780000000000000001/approve", nil))
	require.Equal(t, http.StatusConflict, w.Code)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "HTTP POST /api/consumptions/:id/approve", span.Name())

	attrs := spanAttributes(span)
	assert.Equal(t, "officer", attrs["caller.role"])
	assert.Equal(t, "1780000000000000001", attrs["consumption.id"])
	assert.Equal(t, "req-7", attrs["request_id"])
	assert.Equal(t, "409", attrs["http.status_code"])
	assert.Equal(t, "invalid_state", attrs["error.kind"])
	assert.NotContains(t, attrs, attribute.Key("user.email"))
	assert.NotEqual(t, codes.Error, span.Status().Code)
}

func TestGinMiddlewareRecordsClassifiedServerErrors(t *testing.T) {
	recorder := recordSpans(t)
	r := tracedRouter(func(c *gin.Context) {
		_ = c.Error(errors.New("pq: connection refused to 10.0.0.3"))
		c.Status(http.StatusInternalServerError)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/consumptions/1/approve", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.NotContains(t, spanAttributes(span), attribute.Key("consumption.id"))
	assert.NotContains(t, spanAttributes(span), attribute.Key("error.kind"))

	require.Len(t, span.Events(), 1)
	var message string
	for _, attr := range span.Events()[0].Attributes {
		if attr.Key == "exception.message" {
			message = attr.Value.AsString()
		}
	}
	assert.Equal(t, "storage_error:internal_error", message)
}
