package authz

import (
	"context"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// JWTPredicate verifies the bearer token WithBearerToken attached to ctx
// against a JWKS key set, denying when the token is missing, malformed, or
// fails signature/expiry verification. It never consults claims beyond
// `sub`; permission-level decisions belong to predicates composed after it
// in a Chain, not to token verification itself.
//
// Grounded on apisix-go-runner/plugins/authz.go's JWT-verification step.
type JWTPredicate struct {
	jwks   keyfunc.Keyfunc
	logger *zap.Logger
}

// NewJWTPredicate returns a Predicate backed by an already-initialized JWKS
// key set (see config.ServerConfig for how the JWKS URL is resolved).
func NewJWTPredicate(jwks keyfunc.Keyfunc, logger *zap.Logger) *JWTPredicate {
	return &JWTPredicate{jwks: jwks, logger: logger}
}

func (p *JWTPredicate) Authorize(ctx context.Context, req Request) (Decision, error) {
	token, ok := BearerToken(ctx)
	if !ok || token == "" {
		return Deny("missing bearer token"), nil
	}

	parsed, err := jwt.Parse(token, p.jwks.KeyfuncCtx(ctx))
	if err != nil || !parsed.Valid {
		p.logger.Warn("jwt verification failed", zap.String("delegate", req.DelegateName), zap.Error(err))
		return Deny("invalid or expired token"), nil
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Deny("invalid token claims"), nil
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Deny("token missing sub claim"), nil
	}
	return Allow, nil
}
