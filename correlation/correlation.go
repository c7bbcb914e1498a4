// Package correlation carries an ambient CorrelationId through a call tree
// as a context.Context value — never an OS-thread-local, since goroutines
// hop across request handlers, event tasks, and DI scopes freely.
//
// Grounded on go-core/middleware/context.go's contextKey + WithX/GetX shape;
// generalized from one string value to the get/ensure/withScope operations
// the event scheduler and dispatcher both need.
package correlation

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const idKey contextKey = "neatoo_correlation_id"

// Get returns the ambient CorrelationId, if the context carries one.
func Get(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(idKey).(string)
	return v, ok
}

// With returns a new context carrying id as the ambient CorrelationId,
// overwriting any existing one.
func With(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, idKey, id)
}

// Ensure returns ctx unchanged if it already carries a CorrelationId,
// otherwise a child context carrying a freshly generated one. The returned
// id is always the ambient one after the call, new or existing.
func Ensure(ctx context.Context) (context.Context, string) {
	if id, ok := Get(ctx); ok && id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return With(ctx, id), id
}

// WithScope snapshots the ambient CorrelationId from ctx and reinstalls it
// onto base, producing a context suitable for a new, independently-lived
// scope (an event task's own context, detached from the triggering
// request's cancellation) that should still report under the same
// correlation id for observability.
func WithScope(ctx context.Context, base context.Context) context.Context {
	id, ok := Get(ctx)
	if !ok {
		return base
	}
	return With(base, id)
}
