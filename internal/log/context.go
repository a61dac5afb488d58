package log

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// IntoContext stores the logger in the context.
func IntoContext(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in the context, or the base logger
// when none was attached.
func FromContext(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return l
	}
	return Base()
}
