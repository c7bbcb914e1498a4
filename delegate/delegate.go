// Package delegate maps opaque delegate names to server-side handlers and
// builds client-side stub closures for the same names, so the dispatcher
// and the client proxy agree on a name without sharing a code generator.
//
// Grounded on the mutex-guarded name->factory map in other_examples'
// registry.go, generalized from "one name, one constructor" to "one name,
// one invoke function" plus the parameter/result Signature recorded with it.
package delegate

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/arc-self/neatoo/factory"
	"github.com/arc-self/neatoo/neatooerr"
)

// FactoryOperation identifies the kind of factory method a delegate name
// names, matching the operation vocabulary the server dispatches and the
// client proxy builds stubs for.
type FactoryOperation string

const (
	OpCreate  FactoryOperation = "Create"
	OpFetch   FactoryOperation = "Fetch"
	OpInsert  FactoryOperation = "Insert"
	OpUpdate  FactoryOperation = "Update"
	OpDelete  FactoryOperation = "Delete"
	OpExecute FactoryOperation = "Execute"
	OpSave    FactoryOperation = "Save"
)

// BuildName renders the canonical delegate name for a type and operation:
// "<TypeName>.<Operation>#<arity>", e.g. "Person.Fetch#1". arity is the
// number of non-context, non-CancellationToken parameters the operation
// takes, letting the same TypeName.Operation host multiple overloads.
func BuildName(typeName string, op FactoryOperation, arity int) string {
	return fmt.Sprintf("%s.%s#%d", typeName, op, arity)
}

// ParseName splits a canonical delegate name back into its components. It
// is the inverse of BuildName, used by the dispatcher to recover the
// TypeName/Operation a factory.Invocation needs without requiring every
// Registration to repeat them.
func ParseName(name string) (typeName string, op FactoryOperation, arity int, err error) {
	dot := strings.IndexByte(name, '.')
	hash := strings.LastIndexByte(name, '#')
	if dot < 0 || hash < 0 || hash < dot {
		return "", "", 0, fmt.Errorf("delegate: malformed name %q", name)
	}
	n, convErr := strconv.Atoi(name[hash+1:])
	if convErr != nil {
		return "", "", 0, fmt.Errorf("delegate: malformed arity in %q: %w", name, convErr)
	}
	return name[:dot], FactoryOperation(name[dot+1 : hash]), n, nil
}

// ToFactoryOperation converts op to the factory package's parallel
// Operation enum (identical underlying values, kept as distinct types so
// each package stays independently usable).
func (op FactoryOperation) ToFactoryOperation() factory.Operation {
	return factory.Operation(op)
}

// Handler is a server-side delegate implementation. params are the decoded
// call arguments in declared order, with [Service] and cancellation slots
// already stripped — the handler closure captures whatever services it
// needs at registration time. The return value and error follow the same
// [Result|Error] shape the dispatcher's response encoding expects.
type Handler func(ctx context.Context, params []any) (any, error)

// Invoker is what the client proxy calls to perform one remote call;
// neatooclient.Proxy builds one Invoker per DelegateName via Stub.
type Invoker func(ctx context.Context, params []any) (any, error)

// Signature is the parameter/result type metadata recorded alongside a
// Handler at registration time. The dispatcher uses ParamTypes to decode
// each wire Parameters[] entry against its declared type (§4.5 step 5,
// "using metadata recorded at registration time") and ResultType to encode
// the handler's return value through EncodeAs when the declared result type
// is an interface.
type Signature struct {
	ParamTypes []reflect.Type
	ResultType reflect.Type
}

// Registration bundles one delegate's Handler with its Signature and the
// optional lifecycle Hooks factory.Core should run around it. Hooks is nil
// for delegates whose entity implements none of FactoryOnStart/OnComplete/
// OnCancelled.
type Registration struct {
	Signature Signature
	Hooks     *factory.Hooks
	Handler   Handler
}

// Registry binds DelegateNames to server Registrations. It is write-once at
// startup (package init / server wiring) and read-only during request
// handling, mirroring registry.Registry's locking discipline.
type Registry struct {
	mu   sync.RWMutex
	regs map[string]Registration
}

// New returns an empty delegate Registry.
func New() *Registry {
	return &Registry{regs: make(map[string]Registration)}
}

// Register binds name to reg. Re-registering an existing name is an error —
// a silent overwrite would let two competing factories answer the same
// delegate name.
func (r *Registry) Register(name string, reg Registration) error {
	if name == "" {
		return fmt.Errorf("delegate: name must not be empty")
	}
	if reg.Handler == nil {
		return fmt.Errorf("delegate: %s: handler must not be nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.regs[name]; exists {
		return fmt.Errorf("delegate: %q already registered", name)
	}
	r.regs[name] = reg
	return nil
}

// MustRegister is Register but panics on failure, for package-level wiring
// where a name collision is a programming error.
func (r *Registry) MustRegister(name string, reg Registration) {
	if err := r.Register(name, reg); err != nil {
		panic(err)
	}
}

// Lookup resolves a delegate name to its Registration. A miss is reported
// as the protocol's UnknownDelegate error kind, since it crosses the wire
// verbatim to the client.
func (r *Registry) Lookup(name string) (Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.regs[name]
	if !ok {
		return Registration{}, neatooerr.Newf(neatooerr.KindUnknownDelegate, "delegate: no handler registered for %q", name)
	}
	return reg, nil
}

// BuildSaveHandler returns a Handler for "<typeName>.Save#<arity>" that
// routes through factory.Core.Save instead of hand-rolling the Insert/
// Update/Delete switch inside a single write delegate. It looks up
// whichever of TypeName.Insert#arity/Update#arity/Delete#arity are
// registered on r at call time (not at build time, so adapters registered
// after the Save delegate still get picked up) and wires them in as the
// candidate SaveHandlers, along with the Hooks of the adapter Route picks;
// a missing adapter surfaces as neatooerr.KindSaveNotSupported exactly when
// Route picks it.
func (r *Registry) BuildSaveHandler(core *factory.Core, typeName string, arity int) Handler {
	return func(ctx context.Context, params []any) (any, error) {
		meta, ok := params[0].(factory.SaveMeta)
		if !ok {
			return nil, neatooerr.Newf(neatooerr.KindDomain, "delegate: %s does not implement SaveMeta", typeName)
		}

		target := factory.Route(meta)
		var handlers factory.SaveHandlers
		var hooks *factory.Hooks
		if reg, err := r.Lookup(BuildName(typeName, OpInsert, arity)); err == nil {
			handlers.Insert = func(ctx context.Context) (any, error) { return reg.Handler(ctx, params) }
			if target == factory.SaveInsert {
				hooks = reg.Hooks
			}
		}
		if reg, err := r.Lookup(BuildName(typeName, OpUpdate, arity)); err == nil {
			handlers.Update = func(ctx context.Context) (any, error) { return reg.Handler(ctx, params) }
			if target == factory.SaveUpdate {
				hooks = reg.Hooks
			}
		}
		if reg, err := r.Lookup(BuildName(typeName, OpDelete, arity)); err == nil {
			handlers.Delete = func(ctx context.Context) (any, error) { return reg.Handler(ctx, params) }
			if target == factory.SaveDelete {
				hooks = reg.Hooks
			}
		}

		return core.Save(ctx, typeName, BuildName(typeName, OpSave, arity), meta, hooks, handlers)
	}
}

// Names returns every registered delegate name, for diagnostics.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.regs))
	for n := range r.regs {
		names = append(names, n)
	}
	return names
}
