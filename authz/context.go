package authz

import "context"

type contextKey string

const bearerTokenKey contextKey = "neatoo_bearer_token"

// WithBearerToken attaches the raw bearer token string (as extracted from
// the Authorization header by the dispatcher) to ctx for predicates to
// verify later in the pipeline.
func WithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerTokenKey, token)
}

// BearerToken retrieves the token WithBearerToken attached, if any.
func BearerToken(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(bearerTokenKey).(string)
	return v, ok
}
