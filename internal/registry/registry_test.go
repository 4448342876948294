package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yasl-lang/yasl/internal/registry"
	"github.com/yasl-lang/yasl/internal/typesys"
)

func TestResolveObjectUnambiguous(t *testing.T) {
	reg := registry.New()
	key := typesys.Key{Namespace: "inventory", Name: "Item"}
	reg.AddObject(&typesys.ObjectDescriptor{Key: key, PropertyIndex: map[string]*typesys.PropertyDescriptor{}})

	obj, err := reg.ResolveObject("", "Item")
	require.NoError(t, err)
	assert.Equal(t, key, obj.Key)
}

func TestResolveObjectAmbiguousAcrossNamespaces(t *testing.T) {
	reg := registry.New()
	reg.AddObject(&typesys.ObjectDescriptor{Key: typesys.Key{Namespace: "a", Name: "Item"}, PropertyIndex: map[string]*typesys.PropertyDescriptor{}})
	reg.AddObject(&typesys.ObjectDescriptor{Key: typesys.Key{Namespace: "b", Name: "Item"}, PropertyIndex: map[string]*typesys.PropertyDescriptor{}})

	_, err := reg.ResolveObject("", "Item")
	assert.Error(t, err)

	obj, err := reg.ResolveObject("a", "Item")
	require.NoError(t, err)
	assert.Equal(t, "a", obj.Key.Namespace)
}

func TestUniqueValueRegistration(t *testing.T) {
	reg := registry.New()
	assert.True(t, reg.RegisterUniqueValue("", "User", "email", "a@example.com"))
	assert.False(t, reg.RegisterUniqueValue("", "User", "email", "a@example.com"))
	assert.True(t, reg.RegisterUniqueValue("", "User", "email", "b@example.com"))
	assert.True(t, reg.HasUniqueValue("", "User", "email", "a@example.com"))
	assert.False(t, reg.HasUniqueValue("", "User", "email", "c@example.com"))
}

func TestClearResetsEverything(t *testing.T) {
	reg := registry.New()
	reg.AddObject(&typesys.ObjectDescriptor{Key: typesys.Key{Name: "Item"}, PropertyIndex: map[string]*typesys.PropertyDescriptor{}})
	reg.RegisterUniqueValue("", "Item", "id", "1")

	reg.Clear()

	_, ok := reg.Object(typesys.Key{Name: "Item"})
	assert.False(t, ok)
	assert.False(t, reg.HasUniqueValue("", "Item", "id", "1"))
	assert.Empty(t, reg.Objects())
}

func TestAddObjectPanicsOnDuplicate(t *testing.T) {
	reg := registry.New()
	key := typesys.Key{Name: "Item"}
	reg.AddObject(&typesys.ObjectDescriptor{Key: key, PropertyIndex: map[string]*typesys.PropertyDescriptor{}})
	assert.Panics(t, func() {
		reg.AddObject(&typesys.ObjectDescriptor{Key: key, PropertyIndex: map[string]*typesys.PropertyDescriptor{}})
	})
}
