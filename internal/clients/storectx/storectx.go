// Package storectx bounds store calls in time.
package storectx

import (
	"context"
	"time"
)

// WithTimeout limits ctx to d unless it already ends sooner or is done. The
// returned cancel is never nil and is always safe to defer.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if ctx.Err() != nil {
		return ctx, func() {}
	}
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) <= d {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
