// Package factory implements the Factory Core lifecycle: authorize, run
// FactoryOnStart, invoke the user method, then run FactoryOnComplete or
// FactoryOnCancelled depending on outcome — OnComplete after a normal
// return, OnCancelled when the context was cancelled, and neither when the
// method returns any other error — mirroring a transaction's
// begin/defer-rollback/commit shape (roles_handler.go: tx.Begin, a deferred
// tx.Rollback that is a no-op after a successful tx.Commit). Core has no
// knowledge of HTTP, wire formats, or delegate names — it is invoked by
// neatoohttp's dispatcher once a handler and its decoded parameters are
// known.
package factory

import (
	"context"

	"go.uber.org/zap"

	"github.com/arc-self/neatoo/authz"
	"github.com/arc-self/neatoo/neatooerr"
)

// Operation identifies which factory method is being invoked, used to pick
// the Save routing target and to build the authz.Request capability.
type Operation string

const (
	OpCreate  Operation = "Create"
	OpFetch   Operation = "Fetch"
	OpInsert  Operation = "Insert"
	OpUpdate  Operation = "Update"
	OpDelete  Operation = "Delete"
	OpExecute Operation = "Execute"

	// OpSave names the routing delegate itself, never an authorized
	// operation directly — Save resolves to Insert/Update/Delete before
	// any capability is checked, so it carries no capability of its own.
	OpSave Operation = "Save"
)

func (op Operation) capability() authz.Capability {
	switch op {
	case OpCreate:
		return authz.CapabilityCreate
	case OpFetch:
		return authz.CapabilityFetch
	case OpInsert:
		return authz.CapabilityInsert
	case OpUpdate:
		return authz.CapabilityUpdate
	case OpDelete:
		return authz.CapabilityDelete
	case OpExecute:
		return authz.CapabilityExecute
	default:
		return 0
	}
}

// SaveMeta is implemented by any entity passed to Save; it carries the
// IsNew/IsDeleted flags the routing table uses to pick Insert, Update,
// Delete, or a no-op.
type SaveMeta interface {
	IsNew() bool
	IsDeleted() bool
}

// Hooks are the lifecycle callbacks a factory-managed type may implement.
// All are optional; a nil Hooks or individually nil funcs are treated as a
// no-op for that stage.
type Hooks struct {
	OnStart     func(ctx context.Context) error
	OnComplete  func(ctx context.Context, result any) error
	OnCancelled func(ctx context.Context, cause error)
}

// Invocation is everything Core needs to run one factory method call.
type Invocation struct {
	TypeName     string
	DelegateName string
	Operation    Operation
	Hooks        *Hooks
	Method       func(ctx context.Context) (any, error)
}

// Core runs the authorize -> Start -> method -> Complete/Cancelled pipeline.
type Core struct {
	chain  *authz.Chain
	logger *zap.Logger
}

// New returns a Core backed by chain for authorization decisions. chain may
// be an empty authz.NewChain() if no predicates are registered.
func New(chain *authz.Chain, logger *zap.Logger) *Core {
	return &Core{chain: chain, logger: logger}
}

// Invoke runs inv's full lifecycle. It returns the user method's result on
// success, a *neatooerr.Error with KindNotAuthorized on denial (the
// dispatcher turns this into a DenialPayload, not a generic error body),
// and a *neatooerr.Error with KindCanceled if ctx is cancelled before the
// method runs to completion.
func (c *Core) Invoke(ctx context.Context, inv Invocation) (any, error) {
	decision, err := c.chain.Evaluate(ctx, authz.Request{
		TypeName:     inv.TypeName,
		DelegateName: inv.DelegateName,
		Capability:   inv.Operation.capability(),
	})
	if err != nil {
		c.logger.Error("authorization predicate failed", zap.String("delegate", inv.DelegateName), zap.Error(err))
	}
	if !decision.Allowed {
		return nil, neatooerr.Denied(decision.Reason)
	}

	if inv.Hooks != nil && inv.Hooks.OnStart != nil {
		if err := inv.Hooks.OnStart(ctx); err != nil {
			return nil, err
		}
	}

	result, methodErr := inv.Method(ctx)

	if ctx.Err() != nil {
		cause := ctx.Err()
		if inv.Hooks != nil && inv.Hooks.OnCancelled != nil {
			inv.Hooks.OnCancelled(ctx, cause)
		}
		return nil, neatooerr.Newf(neatooerr.KindCanceled, "factory: %s canceled: %v", inv.DelegateName, cause)
	}

	if methodErr != nil {
		return nil, methodErr
	}

	if inv.Hooks != nil && inv.Hooks.OnComplete != nil {
		if err := inv.Hooks.OnComplete(ctx, result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// SaveTarget is the routing decision Route produces.
type SaveTarget int

const (
	SaveInsert SaveTarget = iota
	SaveUpdate
	SaveDelete
	SaveNoOp
)

// Route implements the Save routing table: IsNew && IsDeleted is a no-op
// (an entity created and deleted within the same edit session never
// touches storage), IsNew routes to Insert, IsDeleted routes to Delete,
// otherwise Update.
func Route(meta SaveMeta) SaveTarget {
	switch {
	case meta.IsNew() && meta.IsDeleted():
		return SaveNoOp
	case meta.IsNew():
		return SaveInsert
	case meta.IsDeleted():
		return SaveDelete
	default:
		return SaveUpdate
	}
}

func (t SaveTarget) String() string {
	switch t {
	case SaveInsert:
		return "Insert"
	case SaveUpdate:
		return "Update"
	case SaveDelete:
		return "Delete"
	default:
		return "NoOp"
	}
}

// SaveHandlers bundles the Insert/Update/Delete methods a delegate family
// registered for a SaveMeta entity. A nil field means that write adapter
// was never registered — Save reports KindSaveNotSupported if Route picks
// one that's missing, rather than silently no-opping.
type SaveHandlers struct {
	Insert func(ctx context.Context) (any, error)
	Update func(ctx context.Context) (any, error)
	Delete func(ctx context.Context) (any, error)
}

// Save runs the Save routing table against meta, then runs the selected
// operation through the normal authorize/hooks/method pipeline. Routing
// itself happens before any authorization check — only the resolved
// Insert/Update/Delete call is authorized, and a (IsNew, IsDeleted) = (T,T)
// entity completes successfully without running a user method or a
// predicate at all.
func (c *Core) Save(ctx context.Context, typeName, delegateFamily string, meta SaveMeta, hooks *Hooks, handlers SaveHandlers) (any, error) {
	target := Route(meta)
	if target == SaveNoOp {
		return meta, nil
	}

	var op Operation
	var method func(ctx context.Context) (any, error)
	switch target {
	case SaveInsert:
		op, method = OpInsert, handlers.Insert
	case SaveUpdate:
		op, method = OpUpdate, handlers.Update
	case SaveDelete:
		op, method = OpDelete, handlers.Delete
	}
	if method == nil {
		return nil, neatooerr.Newf(neatooerr.KindSaveNotSupported, "factory: %s has no %s handler registered", typeName, target)
	}

	return c.Invoke(ctx, Invocation{
		TypeName:     typeName,
		DelegateName: delegateFamily,
		Operation:    op,
		Hooks:        hooks,
		Method:       method,
	})
}
