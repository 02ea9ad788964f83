package context

import "context"

type ctxKey string

const (
	requestIDKey   ctxKey = "request_id"
	callerKey      ctxKey = "caller"
	roleKey        ctxKey = "caller_role"
	consumptionKey ctxKey = "consumption_id"
)

// WithRequestID stores the request correlation id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

// WithCaller stores the caller email forwarded by the authentication gateway.
func WithCaller(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, callerKey, email)
}

func CallerFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(callerKey).(string)
	return value
}

// WithCallerRole stores the role the caller was resolved to.
func WithCallerRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleKey, role)
}

func CallerRoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(roleKey).(string)
	return value
}

// WithConsumptionID marks the request as acting on one consumption so logs
// and spans down to the SQL statements can be joined on it.
func WithConsumptionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, consumptionKey, id)
}

func ConsumptionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(consumptionKey).(string)
	return value
}
