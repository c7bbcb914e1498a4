package factory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arc-self/neatoo/authz"
	"github.com/arc-self/neatoo/factory"
	"github.com/arc-self/neatoo/neatooerr"
)

type fakeMeta struct {
	isNew     bool
	isDeleted bool
}

func (f fakeMeta) IsNew() bool     { return f.isNew }
func (f fakeMeta) IsDeleted() bool { return f.isDeleted }

func TestRouteTable(t *testing.T) {
	assert.Equal(t, factory.SaveNoOp, factory.Route(fakeMeta{isNew: true, isDeleted: true}))
	assert.Equal(t, factory.SaveInsert, factory.Route(fakeMeta{isNew: true}))
	assert.Equal(t, factory.SaveDelete, factory.Route(fakeMeta{isDeleted: true}))
	assert.Equal(t, factory.SaveUpdate, factory.Route(fakeMeta{}))
}

func TestInvokeRunsFullLifecycleOnSuccess(t *testing.T) {
	core := factory.New(authz.NewChain(), zap.NewNop())
	var started, completed bool

	result, err := core.Invoke(context.Background(), factory.Invocation{
		TypeName:     "Person",
		DelegateName: "Person.Fetch#1",
		Operation:    factory.OpFetch,
		Hooks: &factory.Hooks{
			OnStart:    func(ctx context.Context) error { started = true; return nil },
			OnComplete: func(ctx context.Context, result any) error { completed = true; return nil },
		},
		Method: func(ctx context.Context) (any, error) { return "ok", nil },
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.True(t, started)
	assert.True(t, completed)
}

func TestInvokeDeniesWhenChainDenies(t *testing.T) {
	chain := authz.NewChain()
	chain.AddClassPredicate("Person", authz.CapabilityAll, authz.PredicateFunc(func(ctx context.Context, req authz.Request) (authz.Decision, error) {
		return authz.Deny("no access"), nil
	}))
	core := factory.New(chain, zap.NewNop())

	called := false
	_, err := core.Invoke(context.Background(), factory.Invocation{
		TypeName:     "Person",
		DelegateName: "Person.Fetch#1",
		Operation:    factory.OpFetch,
		Method:       func(ctx context.Context) (any, error) { called = true; return nil, nil },
	})

	require.Error(t, err)
	assert.True(t, neatooerr.Is(err, neatooerr.KindNotAuthorized))
	assert.False(t, called, "method must not run when authorization denies the call")
}

func TestInvokeDoesNotRunOnCancelledForDomainError(t *testing.T) {
	core := factory.New(authz.NewChain(), zap.NewNop())
	var cancelledWith error
	var completed bool

	_, err := core.Invoke(context.Background(), factory.Invocation{
		TypeName:     "Person",
		DelegateName: "Person.Execute#0",
		Operation:    factory.OpExecute,
		Hooks: &factory.Hooks{
			OnComplete:  func(ctx context.Context, result any) error { completed = true; return nil },
			OnCancelled: func(ctx context.Context, cause error) { cancelledWith = cause },
		},
		Method: func(ctx context.Context) (any, error) { return nil, errors.New("domain failure") },
	})

	require.Error(t, err)
	assert.EqualError(t, err, "domain failure")
	assert.Nil(t, cancelledWith, "a non-cancellation error must not run OnCancelled")
	assert.False(t, completed, "OnComplete must not run when the method errors")
}

func TestSaveRoutesToResolvedHandlerThroughInvoke(t *testing.T) {
	core := factory.New(authz.NewChain(), zap.NewNop())
	var started bool

	result, err := core.Save(context.Background(), "Person", "Person.Save#1", fakeMeta{isNew: true},
		&factory.Hooks{OnStart: func(ctx context.Context) error { started = true; return nil }},
		factory.SaveHandlers{
			Insert: func(ctx context.Context) (any, error) { return "inserted", nil },
			Update: func(ctx context.Context) (any, error) { return "updated", nil },
		})

	require.NoError(t, err)
	assert.Equal(t, "inserted", result)
	assert.True(t, started, "the resolved Insert operation still runs OnStart through Invoke")
}

func TestSaveReturnsSaveNotSupportedWhenResolvedHandlerMissing(t *testing.T) {
	core := factory.New(authz.NewChain(), zap.NewNop())

	_, err := core.Save(context.Background(), "Person", "Person.Save#1", fakeMeta{}, nil, factory.SaveHandlers{})

	require.Error(t, err)
	assert.True(t, neatooerr.Is(err, neatooerr.KindSaveNotSupported))
}

func TestSaveNoOpsForNewAndDeletedEntity(t *testing.T) {
	core := factory.New(authz.NewChain(), zap.NewNop())
	called := false

	meta := fakeMeta{isNew: true, isDeleted: true}
	result, err := core.Save(context.Background(), "Person", "Person.Save#1", meta, nil, factory.SaveHandlers{
		Insert: func(ctx context.Context) (any, error) { called = true; return nil, nil },
	})

	require.NoError(t, err)
	assert.Equal(t, meta, result)
	assert.False(t, called)
}

func TestSaveDeniesWhenChainDeniesResolvedCapability(t *testing.T) {
	chain := authz.NewChain()
	chain.AddClassPredicate("Person", authz.CapabilityInsert, authz.PredicateFunc(func(ctx context.Context, req authz.Request) (authz.Decision, error) {
		return authz.Deny("no inserts"), nil
	}))
	core := factory.New(chain, zap.NewNop())

	_, err := core.Save(context.Background(), "Person", "Person.Save#1", fakeMeta{isNew: true}, nil, factory.SaveHandlers{
		Insert: func(ctx context.Context) (any, error) { return "unreachable", nil },
	})

	require.Error(t, err)
	assert.True(t, neatooerr.Is(err, neatooerr.KindNotAuthorized))
}

func TestInvokeReportsCanceledWhenContextCancelledDuringMethod(t *testing.T) {
	core := factory.New(authz.NewChain(), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	_, err := core.Invoke(ctx, factory.Invocation{
		TypeName:     "Person",
		DelegateName: "Person.Fetch#1",
		Operation:    factory.OpFetch,
		Method: func(ctx context.Context) (any, error) {
			cancel()
			return "ignored", nil
		},
	})

	require.Error(t, err)
	assert.True(t, neatooerr.Is(err, neatooerr.KindCanceled))
}
