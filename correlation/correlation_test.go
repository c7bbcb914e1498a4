package correlation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arc-self/neatoo/correlation"
)

func TestGetMissing(t *testing.T) {
	_, ok := correlation.Get(context.Background())
	assert.False(t, ok)
}

func TestEnsureGeneratesWhenAbsent(t *testing.T) {
	ctx, id := correlation.Ensure(context.Background())
	assert.NotEmpty(t, id)
	got, ok := correlation.Get(ctx)
	assert.True(t, ok)
	assert.Equal(t, id, got)
}

func TestEnsurePreservesExisting(t *testing.T) {
	ctx := correlation.With(context.Background(), "fixed-id")
	newCtx, id := correlation.Ensure(ctx)
	assert.Equal(t, "fixed-id", id)
	assert.Equal(t, ctx, newCtx)
}

func TestWithScopeCarriesIdAcrossDetachedContext(t *testing.T) {
	requestCtx, cancel := context.WithCancel(context.Background())
	requestCtx = correlation.With(requestCtx, "req-1")
	cancel() // simulate the request finishing/disconnecting

	taskCtx := correlation.WithScope(requestCtx, context.Background())
	assert.NoError(t, taskCtx.Err())
	id, ok := correlation.Get(taskCtx)
	assert.True(t, ok)
	assert.Equal(t, "req-1", id)
}

func TestWithScopeWithoutAmbientIdReturnsBase(t *testing.T) {
	base := context.Background()
	got := correlation.WithScope(context.Background(), base)
	assert.Equal(t, base, got)
}
