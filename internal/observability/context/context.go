package context

import (
	"context"
	"strings"
)

type ctxKey string

const (
	requestIDKey  ctxKey = "request_id"
	hospitalIDKey ctxKey = "hospital_id"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, strings.TrimSpace(requestID))
}

func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// WithHospitalID tags the context with the tenant the request acts for.
func WithHospitalID(ctx context.Context, hospitalID string) context.Context {
	return context.WithValue(ctx, hospitalIDKey, strings.TrimSpace(hospitalID))
}

func HospitalIDFromContext(ctx context.Context) string {
	return stringValue(ctx, hospitalIDKey)
}

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(key).(string)
	return value
}
