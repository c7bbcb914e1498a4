package authz_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/neatoo/authz"
)

func TestHTTPPolicyProviderAllows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"allowed": true})
	}))
	defer srv.Close()

	p := authz.NewHTTPPolicyProvider(srv.URL, nil)
	decision, err := p.Evaluate(context.Background(), authz.Request{TypeName: "Person", DelegateName: "Person.Fetch#1"})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestHTTPPolicyProviderDeniesWithReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"allowed": false, "reason": "blocked by policy"})
	}))
	defer srv.Close()

	p := authz.NewHTTPPolicyProvider(srv.URL, nil)
	decision, err := p.Evaluate(context.Background(), authz.Request{TypeName: "Person"})
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, "blocked by policy", decision.Reason)
}

func TestHTTPPolicyProviderFailsClosedOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := authz.NewHTTPPolicyProvider(srv.URL, nil)
	decision, err := p.Evaluate(context.Background(), authz.Request{TypeName: "Person"})
	require.Error(t, err)
	assert.False(t, decision.Allowed)
}

func TestPredicateFromProviderPlugsIntoChain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"allowed": false, "reason": "no"})
	}))
	defer srv.Close()

	chain := authz.NewChain()
	chain.AddClassPredicate("Person", authz.CapabilityAll, authz.PredicateFromProvider(authz.NewHTTPPolicyProvider(srv.URL, nil)))

	decision, err := chain.Evaluate(context.Background(), authz.Request{TypeName: "Person", DelegateName: "Person.Fetch#1", Capability: authz.CapabilityFetch})
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, "no", decision.Reason)
}
