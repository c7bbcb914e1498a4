// Package neatooclient is the remote-factory client proxy: for each
// DelegateName it builds a RequestFrame, posts it, and decodes the
// response per the status-driven framing SPEC_FULL §7 settles on.
//
// Grounded on apps/discovery-service/internal/client/scanner_client.go's
// HTTP facade shape: a shared *http.Client with a fixed Timeout, a
// newRequest helper that injects common headers, and a doJSON helper that
// branches on status code before touching the body. Generalized from one
// fixed response shape per endpoint to one generic Codec-decoded value per
// DelegateName.
package neatooclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"sync"
	"time"

	"github.com/arc-self/neatoo/authz"
	"github.com/arc-self/neatoo/correlation"
	"github.com/arc-self/neatoo/delegate"
	"github.com/arc-self/neatoo/envelope"
	"github.com/arc-self/neatoo/neatooerr"
	"github.com/arc-self/neatoo/registry"
	"github.com/arc-self/neatoo/wire"
)

// Proxy is the client-side half of the dispatch pipeline.
type Proxy struct {
	baseURL    string
	path       string
	authToken  string
	httpClient *http.Client
	reg        *registry.Registry

	mu     sync.RWMutex
	format wire.Format
}

// Option configures a Proxy at construction.
type Option func(*Proxy)

// WithAuthToken attaches a bearer token to every request's Authorization
// header.
func WithAuthToken(token string) Option {
	return func(p *Proxy) { p.authToken = token }
}

// WithHTTPClient overrides the default 30s-timeout client, mirroring
// scanner_client.go's configurable httpClient field.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Proxy) { p.httpClient = c }
}

// WithPath overrides the default dispatch route.
func WithPath(path string) Option {
	return func(p *Proxy) { p.path = path }
}

// WithInitialFormat sets the format used for the first request, before the
// server's own preference has been observed via a response header.
func WithInitialFormat(f wire.Format) Option {
	return func(p *Proxy) { p.format = f }
}

// New builds a Proxy targeting baseURL, decoding/encoding through reg.
func New(baseURL string, reg *registry.Registry, opts ...Option) *Proxy {
	p := &Proxy{
		baseURL:    baseURL,
		path:       "/api/neatoo",
		httpClient: &http.Client{Timeout: 30 * time.Second},
		reg:        reg,
		format:     wire.FormatOrdinal,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Format reports the format currently used for outgoing requests — the
// server's last-observed preference, or the configured initial format
// before any call has completed.
func (p *Proxy) Format() wire.Format {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.format
}

// Call performs one remote invocation of delegateName with params encoded
// against paramTypes (positionally), decoding the result against
// resultType. A NotAuthorized denial surfaces as a *neatooerr.Error here —
// callers implementing a TryX-shaped method should use Try instead.
func (p *Proxy) Call(ctx context.Context, delegateName string, paramTypes []reflect.Type, params []any, resultType reflect.Type) (any, error) {
	codec := wire.New(p.reg, p.Format())

	if len(params) != len(paramTypes) {
		return nil, fmt.Errorf("neatooclient: %s: %d params given, %d declared", delegateName, len(params), len(paramTypes))
	}

	frame := envelope.RequestFrame{DelegateName: delegateName, Parameters: make([]json.RawMessage, len(params))}
	for i, v := range params {
		encoded, err := codec.EncodeAs(v, paramTypes[i])
		if err != nil {
			return nil, neatooerr.Newf(neatooerr.KindSerializationMismatch, "neatooclient: encode parameter %d: %v", i, err)
		}
		frame.Parameters[i] = encoded
	}

	body, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("neatooclient: marshal request frame: %w", err)
	}

	req, err := p.newRequest(ctx, body)
	if err != nil {
		return nil, err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("neatooclient: http do: %w", err)
	}
	defer resp.Body.Close()

	if serverFormat := resp.Header.Get("X-Neatoo-Format"); serverFormat != "" {
		if f, err := wire.ParseFormat(serverFormat); err == nil {
			p.mu.Lock()
			p.format = f
			p.mu.Unlock()
		}
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("neatooclient: read response body: %w", err)
	}

	return p.decodeResponse(resp.StatusCode, raw, resultType)
}

func (p *Proxy) newRequest(ctx context.Context, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+p.path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("neatooclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Neatoo-Format", p.Format().String())

	ctx, corrID := correlation.Ensure(ctx)
	req = req.WithContext(ctx)
	req.Header.Set("X-Correlation-Id", corrID)

	if token, ok := authz.BearerToken(ctx); ok && token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else if p.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.authToken)
	}
	return req, nil
}

// decodeResponse implements SPEC_FULL §7's status-first dispatch: 200
// decodes through the Codec against resultType, 403 builds a NotAuthorized
// *neatooerr.Error carrying the denial reason, everything else decodes the
// fixed ErrorPayload shape.
func (p *Proxy) decodeResponse(status int, body []byte, resultType reflect.Type) (any, error) {
	switch status {
	case http.StatusOK:
		codec := wire.New(p.reg, p.Format())
		v, err := codec.DecodeAs(body, resultType)
		if err != nil {
			return nil, err
		}
		return v, nil

	case http.StatusForbidden:
		var denial envelope.DenialPayload
		if err := json.Unmarshal(body, &denial); err != nil {
			return nil, neatooerr.Newf(neatooerr.KindSerializationMismatch, "neatooclient: malformed denial payload: %v", err)
		}
		return nil, neatooerr.Denied(denial.Reason)

	default:
		var payload envelope.ErrorPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, neatooerr.Newf(neatooerr.KindSerializationMismatch, "neatooclient: malformed error payload (status %d): %v", status, err)
		}
		return nil, &neatooerr.Error{Kind: payload.Kind, Message: payload.Message}
	}
}

// Stub builds a delegate.Invoker bound to one DelegateName/Signature, for
// registering client-side stubs the same way the server registers
// delegate.Handlers — symmetric naming, asymmetric direction.
func (p *Proxy) Stub(delegateName string, sig delegate.Signature) delegate.Invoker {
	return func(ctx context.Context, params []any) (any, error) {
		return p.Call(ctx, delegateName, sig.ParamTypes, params, sig.ResultType)
	}
}

// Try performs a Call and converts a NotAuthorized denial into a denied
// Authorized[T] instead of raising it, matching §4.6's "explicit TryX
// methods" branch. Any other error (including a 403 that somehow isn't a
// NotAuthorized, which cannot happen through decodeResponse, or a
// transport/serialization failure) is still returned as an error.
func Try[T any](ctx context.Context, p *Proxy, delegateName string, paramTypes []reflect.Type, params []any, resultType reflect.Type) (authz.Authorized[T], error) {
	v, err := p.Call(ctx, delegateName, paramTypes, params, resultType)
	if err != nil {
		if e, ok := neatooerr.As(err); ok && e.Kind == neatooerr.KindNotAuthorized {
			return authz.Denied[T](e.Reason), nil
		}
		var zero authz.Authorized[T]
		return zero, err
	}
	typed, _ := v.(T)
	return authz.Authorize(typed), nil
}
