package tracing

import (
	"context"
	"errors"

	"github.com/smallbiznis/aguas/pkg/apperror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

// ExtractContext reads upstream trace headers into ctx.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

var blockedAttributeKeys = map[attribute.Key]struct{}{
	"user.email":      {},
	"http.url":        {},
	"http.target":     {},
	"db.statement":    {},
	"enduser.id":      {},
	"http.user_agent": {},
}

// SafeAttributes drops attributes that may carry personal data.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, blocked := blockedAttributeKeys[attr.Key]; blocked {
			continue
		}
		out = append(out, attr)
	}
	return out
}

// SafeError reduces err to its classification so spans never carry raw driver messages.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(string(apperror.KindOf(err)) + ":" + apperror.CodeOf(err))
}
