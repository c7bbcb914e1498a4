package authz

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// PolicyProvider is the contract for an external authorization policy
// service — SPEC_FULL §1's realization of "specific authorization policy
// providers": the core depends only on this interface (via
// PredicateFromProvider), never on a concrete policy engine.
type PolicyProvider interface {
	Evaluate(ctx context.Context, req Request) (Decision, error)
}

// PredicateFromProvider adapts a PolicyProvider into a Predicate so it can
// be registered on a Chain like any other rule.
func PredicateFromProvider(p PolicyProvider) Predicate {
	return PredicateFunc(func(ctx context.Context, req Request) (Decision, error) {
		return p.Evaluate(ctx, req)
	})
}

// HTTPPolicyProvider is an example PolicyProvider backed by a remote HTTP
// policy service — the "contract, not a policy engine" example the spec
// calls for. Grounded on
// apps/discovery-service/internal/client/scanner_client.go's facade shape:
// a shared *http.Client, a fixed endpoint, one POST per call, JSON in and
// out.
type HTTPPolicyProvider struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPPolicyProvider builds a PolicyProvider that POSTs each Request to
// endpoint and expects a JSON {"allowed": bool, "reason": string} body back.
func NewHTTPPolicyProvider(endpoint string, httpClient *http.Client) *HTTPPolicyProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTPPolicyProvider{endpoint: endpoint, httpClient: httpClient}
}

type policyDecisionPayload struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

func (p *HTTPPolicyProvider) Evaluate(ctx context.Context, req Request) (Decision, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Deny("policy request encoding failed"), fmt.Errorf("authz: encode policy request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return Deny("policy request build failed"), fmt.Errorf("authz: build policy request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return Deny("policy provider unreachable"), fmt.Errorf("authz: policy provider request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Deny("policy provider returned an error"), fmt.Errorf("authz: policy provider status %d", resp.StatusCode)
	}

	var decision policyDecisionPayload
	if err := json.NewDecoder(resp.Body).Decode(&decision); err != nil {
		return Deny("policy provider response malformed"), fmt.Errorf("authz: decode policy response: %w", err)
	}
	if !decision.Allowed {
		return Deny(decision.Reason), nil
	}
	return Allow, nil
}
