// Package store provides a concrete, hand-written example of the "write
// adapters" SPEC_FULL §6 says a generator would normally emit: a
// factory.SaveMeta entity (Person) and a pgx-backed repository wired
// straight into the delegate registry rather than generated.
//
// Grounded on apps/iam-service/internal/handler/roles_handler.go's
// pgxpool/transaction usage, adapted from one-off HTTP handlers to a
// reusable repository the factory Save routing table drives.
package store

import (
	"reflect"

	"github.com/arc-self/neatoo/registry"
)

// Person is the demo entity the cmd binaries use; it shares the wire/dispatch
// tests' property order Active, Age, Name (alphabetical, matching Scenario
// 1's ordinal layout).
type Person struct {
	ID     int64
	Active bool
	Age    int
	Name   string

	isNew     bool
	isDeleted bool
}

// NewPerson builds an unsaved Person, routed to Insert on Save.
func NewPerson(name string, age int) *Person {
	return &Person{Active: true, Age: age, Name: name, isNew: true}
}

// IsNew implements factory.SaveMeta.
func (p *Person) IsNew() bool { return p.isNew }

// IsDeleted implements factory.SaveMeta.
func (p *Person) IsDeleted() bool { return p.isDeleted }

// MarkDeleted flags p for deletion on the next Save.
func (p *Person) MarkDeleted() { p.isDeleted = true }

// MarkSaved clears the new flag once a repository Insert has assigned an ID.
func (p *Person) MarkSaved(id int64) {
	p.ID = id
	p.isNew = false
}

// PersonOrdinal is the registry.OrdinalMetadata for Person, registered once
// at process startup alongside the Ctor and wire Name.
var PersonOrdinal = &registry.OrdinalMetadata{
	PropertyNames: []string{"Active", "Age", "Name"},
	PropertyTypes: []reflect.Type{reflect.TypeOf(false), reflect.TypeOf(0), reflect.TypeOf("")},
	ToOrdinal: func(v any) ([]any, error) {
		p := v.(*Person)
		return []any{p.Active, p.Age, p.Name}, nil
	},
	FromOrdinal: func(values []any) (any, error) {
		return &Person{
			Active: values[0].(bool),
			Age:    values[1].(int),
			Name:   values[2].(string),
		}, nil
	},
}

// RegisterPerson adds Person's registry.Entry under the given wire name.
func RegisterPerson(reg *registry.Registry, wireName string) error {
	return reg.Register(&registry.Entry{
		Name:    wireName,
		Type:    reflect.TypeOf(Person{}),
		Ctor:    func(registry.Injector) (any, error) { return &Person{isNew: true}, nil },
		Ordinal: PersonOrdinal,
	})
}
