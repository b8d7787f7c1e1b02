package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey string

const (
	requestIDKey   ctxKey = "request_id"
	orderNumberKey ctxKey = "order_number"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithOrderNumber tags every log line written through FromCtx with the order.
func WithOrderNumber(ctx context.Context, orderNumber string) context.Context {
	return context.WithValue(ctx, orderNumberKey, orderNumber)
}

func OrderNumberFrom(ctx context.Context) string {
	if v, ok := ctx.Value(orderNumberKey).(string); ok {
		return v
	}
	return ""
}

// FromCtx returns the global logger enriched with request_id and order_number
// when present in ctx.
func FromCtx(ctx context.Context) *zap.Logger {
	l := L()
	if reqID := RequestIDFrom(ctx); reqID != "" {
		l = l.With(zap.String("request_id", reqID))
	}
	if num := OrderNumberFrom(ctx); num != "" {
		l = l.With(zap.String("order_number", num))
	}
	return l
}
