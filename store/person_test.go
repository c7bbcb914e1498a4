package store_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/neatoo/registry"
	"github.com/arc-self/neatoo/store"
)

func TestPersonSaveRouting(t *testing.T) {
	p := store.NewPerson("Ann", 20)
	assert.True(t, p.IsNew())
	assert.False(t, p.IsDeleted())

	p.MarkSaved(1)
	assert.False(t, p.IsNew())

	p.MarkDeleted()
	assert.True(t, p.IsDeleted())
}

func TestPersonOrdinalRoundTrip(t *testing.T) {
	p := store.NewPerson("Mo", 25)
	values, err := store.PersonOrdinal.ToOrdinal(p)
	require.NoError(t, err)
	assert.Equal(t, []any{true, 25, "Mo"}, values)

	back, err := store.PersonOrdinal.FromOrdinal(values)
	require.NoError(t, err)
	restored := back.(*store.Person)
	assert.Equal(t, "Mo", restored.Name)
	assert.Equal(t, 25, restored.Age)
}

func TestRegisterPerson(t *testing.T) {
	reg := registry.New()
	require.NoError(t, store.RegisterPerson(reg, "acme.Person"))
	entry, ok := reg.Entry(reflect.TypeOf(store.Person{}))
	require.True(t, ok)
	assert.Equal(t, "acme.Person", entry.Name)
}
