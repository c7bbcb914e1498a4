// Package registry maps stable wire type names to runtime Go types, and
// supplies the ordinal/named serialization metadata and constructors the
// rest of the runtime needs to avoid ad-hoc reflection.
//
// Grounded on the registration-map shape in other_examples' service
// registry (mutex-guarded maps, panic-on-duplicate-registration at
// Must-variants, plain errors at the non-Must variants).
package registry

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/arc-self/neatoo/neatooerr"
)

// Injector resolves a service by its Go type. Construct hands one to a
// type's Constructor; neither the dispatcher nor the event scheduler
// provides an implementation.
type Injector interface {
	Resolve(serviceType reflect.Type) (any, bool)
}

// Constructor builds a new instance of a registered type, pulling any
// [Service]-tagged constructor parameters from the given Injector.
type Constructor func(Injector) (any, error)

// OrdinalMetadata is the generator-produced contract for a serializable
// type: property order (alphabetical, base-before-derived — part of the
// wire contract) plus the flatten/unflatten functions.
type OrdinalMetadata struct {
	PropertyNames []string
	PropertyTypes []reflect.Type
	ToOrdinal     func(value any) ([]any, error)
	FromOrdinal   func(values []any) (any, error)
}

// Entry is the registered record for one type.
type Entry struct {
	Name     string
	Type     reflect.Type // always the struct type, never its pointer
	Ctor     Constructor
	Ordinal  *OrdinalMetadata
	// Reference marks types that carry object identity on the wire
	// (encoded/decoded through *T and eligible for $id/$ref sharing).
	// Non-reference types are plain value types, always re-encoded in full.
	Reference bool
}

// Registry is a write-once-then-read-mostly map of TypeName <-> type handle.
// Registration happens at process startup; the hot path only reads.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Entry
	byType map[reflect.Type]*Entry
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		byName: make(map[string]*Entry),
		byType: make(map[reflect.Type]*Entry),
	}
}

// Register records a type under a stable name. Re-registering an existing
// name or type returns an error instead of silently overwriting it.
func (r *Registry) Register(entry *Entry) error {
	if entry.Name == "" {
		return fmt.Errorf("registry: type name must not be empty")
	}
	if entry.Type == nil {
		return fmt.Errorf("registry: %s: type must not be nil", entry.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[entry.Name]; exists {
		return fmt.Errorf("registry: type name %q already registered", entry.Name)
	}
	if _, exists := r.byType[entry.Type]; exists {
		return fmt.Errorf("registry: type %s already registered under a different name", entry.Type)
	}

	r.byName[entry.Name] = entry
	r.byType[entry.Type] = entry
	return nil
}

// MustRegister is Register but panics on failure, for use in package-level
// init() calls where a naming collision is a programming error, not a
// runtime condition to recover from.
func (r *Registry) MustRegister(entry *Entry) {
	if err := r.Register(entry); err != nil {
		panic(err)
	}
}

// FindType resolves a wire type name to its Go type, as used by the
// serializer when it reads a $type discriminator.
func (r *Registry) FindType(name string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return e.Type, true
}

// TypeName is the inverse of FindType.
func (r *Registry) TypeName(typ reflect.Type) (string, bool) {
	typ = derefType(typ)
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byType[typ]
	if !ok {
		return "", false
	}
	return e.Name, true
}

// Entry returns the full registration record for a type, if any.
func (r *Registry) Entry(typ reflect.Type) (*Entry, bool) {
	typ = derefType(typ)
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byType[typ]
	return e, ok
}

// EntryByName is Entry keyed by wire type name.
func (r *Registry) EntryByName(name string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byName[name]
	return e, ok
}

// Metadata returns the ordinal metadata for a type, if the type is
// serializable.
func (r *Registry) Metadata(typ reflect.Type) (*OrdinalMetadata, bool) {
	e, ok := r.Entry(typ)
	if !ok || e.Ordinal == nil {
		return nil, false
	}
	return e.Ordinal, true
}

// Construct builds a new instance of typ using its registered constructor,
// resolving [Service] parameters from injector. Returns MissingService if
// the injector cannot supply a required parameter — the constructor itself
// is responsible for raising that, since only it knows its own parameters.
func (r *Registry) Construct(typ reflect.Type, injector Injector) (any, error) {
	e, ok := r.Entry(typ)
	if !ok {
		return nil, fmt.Errorf("registry: type %s is not registered", typ)
	}
	if e.Ctor == nil {
		return nil, fmt.Errorf("registry: type %s has no registered constructor", typ)
	}
	v, err := e.Ctor(injector)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// ResolveService is a small helper constructors call for each [Service]
// parameter; it converts a missing dependency into the protocol's
// MissingService error kind.
func ResolveService(injector Injector, serviceType reflect.Type) (any, error) {
	v, ok := injector.Resolve(serviceType)
	if !ok {
		return nil, neatooerr.Newf(neatooerr.KindMissingService, "no service registered for %s", serviceType)
	}
	return v, nil
}

func derefType(typ reflect.Type) reflect.Type {
	for typ != nil && typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	return typ
}
