package delegate_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arc-self/neatoo/authz"
	"github.com/arc-self/neatoo/delegate"
	"github.com/arc-self/neatoo/factory"
	"github.com/arc-self/neatoo/neatooerr"
)

type saveFixture struct {
	isNew     bool
	isDeleted bool
}

func (f saveFixture) IsNew() bool     { return f.isNew }
func (f saveFixture) IsDeleted() bool { return f.isDeleted }

func TestBuildName(t *testing.T) {
	assert.Equal(t, "Person.Fetch#1", delegate.BuildName("Person", delegate.OpFetch, 1))
	assert.Equal(t, "Person.Create#0", delegate.BuildName("Person", delegate.OpCreate, 0))
}

func TestRegisterAndLookup(t *testing.T) {
	r := delegate.New()
	called := false
	require.NoError(t, r.Register("Person.Fetch#1", delegate.Registration{
		Signature: delegate.Signature{ParamTypes: []reflect.Type{reflect.TypeOf(0)}},
		Handler: func(ctx context.Context, params []any) (any, error) {
			called = true
			return params[0], nil
		},
	}))

	reg, err := r.Lookup("Person.Fetch#1")
	require.NoError(t, err)
	v, err := reg.Handler(context.Background(), []any{42})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.True(t, called)
	assert.Equal(t, reflect.TypeOf(0), reg.Signature.ParamTypes[0])
}

func TestParseName(t *testing.T) {
	typeName, op, arity, err := delegate.ParseName("Person.Fetch#1")
	require.NoError(t, err)
	assert.Equal(t, "Person", typeName)
	assert.Equal(t, delegate.OpFetch, op)
	assert.Equal(t, 1, arity)
}

func TestParseNameRejectsMalformedInput(t *testing.T) {
	_, _, _, err := delegate.ParseName("not-a-delegate-name")
	assert.Error(t, err)
}

func TestLookupUnknownReturnsUnknownDelegate(t *testing.T) {
	r := delegate.New()
	_, err := r.Lookup("Nobody.Fetch#0")
	require.Error(t, err)
	assert.True(t, neatooerr.Is(err, neatooerr.KindUnknownDelegate))
}

func TestRegisterDuplicateFails(t *testing.T) {
	r := delegate.New()
	reg := delegate.Registration{Handler: func(ctx context.Context, params []any) (any, error) { return nil, nil }}
	require.NoError(t, r.Register("Person.Fetch#1", reg))
	assert.Error(t, r.Register("Person.Fetch#1", reg))
}

func TestMustRegisterPanicsOnDuplicate(t *testing.T) {
	r := delegate.New()
	reg := delegate.Registration{Handler: func(ctx context.Context, params []any) (any, error) { return nil, nil }}
	r.MustRegister("Person.Fetch#1", reg)
	assert.Panics(t, func() { r.MustRegister("Person.Fetch#1", reg) })
}

func TestBuildSaveHandlerRoutesToInsertForNewEntity(t *testing.T) {
	r := delegate.New()
	core := factory.New(authz.NewChain(), zap.NewNop())
	var insertCalled, updateCalled bool

	r.MustRegister(delegate.BuildName("Person", delegate.OpInsert, 1), delegate.Registration{
		Handler: func(ctx context.Context, params []any) (any, error) { insertCalled = true; return params[0], nil },
	})
	r.MustRegister(delegate.BuildName("Person", delegate.OpUpdate, 1), delegate.Registration{
		Handler: func(ctx context.Context, params []any) (any, error) { updateCalled = true; return params[0], nil },
	})

	handler := r.BuildSaveHandler(core, "Person", 1)
	_, err := handler(context.Background(), []any{saveFixture{isNew: true}})
	require.NoError(t, err)
	assert.True(t, insertCalled)
	assert.False(t, updateCalled)
}

func TestBuildSaveHandlerReturnsSaveNotSupportedWhenAdapterMissing(t *testing.T) {
	r := delegate.New()
	core := factory.New(authz.NewChain(), zap.NewNop())

	handler := r.BuildSaveHandler(core, "Person", 1)
	_, err := handler(context.Background(), []any{saveFixture{isNew: true}})
	require.Error(t, err)
	assert.True(t, neatooerr.Is(err, neatooerr.KindSaveNotSupported))
}

func TestBuildSaveHandlerNoOpsWithoutRunningAnyAdapter(t *testing.T) {
	r := delegate.New()
	core := factory.New(authz.NewChain(), zap.NewNop())
	called := false
	r.MustRegister(delegate.BuildName("Person", delegate.OpInsert, 1), delegate.Registration{
		Handler: func(ctx context.Context, params []any) (any, error) { called = true; return params[0], nil },
	})

	handler := r.BuildSaveHandler(core, "Person", 1)
	_, err := handler(context.Background(), []any{saveFixture{isNew: true, isDeleted: true}})
	require.NoError(t, err)
	assert.False(t, called, "a (IsNew, IsDeleted) = (true, true) entity must not run any adapter")
}
