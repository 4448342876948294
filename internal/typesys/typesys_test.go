package typesys_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yasl-lang/yasl/internal/typesys"
)

func TestResolvedTypeString(t *testing.T) {
	scalar := typesys.ResolvedType{Shape: typesys.ShapeScalar, PrimitiveKind: "str"}
	assert.Equal(t, "str", scalar.String())
	assert.Equal(t, "str?", scalar.WithOptional().String())

	list := typesys.ResolvedType{Shape: typesys.ShapeList, Elem: &scalar}
	assert.Equal(t, "str[]", list.String())

	key := typesys.Key{Namespace: "inventory", Name: "Item"}
	ref := typesys.ResolvedType{Shape: typesys.ShapeReference, Target: key, RefProperty: "sku"}
	assert.Equal(t, "ref[inventory.Item.sku]", ref.String())
}

func TestWithOptionalDoesNotMutateReceiver(t *testing.T) {
	base := typesys.ResolvedType{Shape: typesys.ShapeScalar, PrimitiveKind: "int"}
	opt := base.WithOptional()
	require.False(t, base.Optional)
	require.True(t, opt.Optional)
}

func TestEnumDescriptorContains(t *testing.T) {
	e := typesys.NewEnumDescriptor(typesys.Key{Name: "Color"}, []string{"red", "green"}, 4)
	assert.True(t, e.Contains("red"))
	assert.False(t, e.Contains("blue"))
	assert.Equal(t, 4, e.Line())
}

func TestObjectDescriptorRequiredNames(t *testing.T) {
	obj := &typesys.ObjectDescriptor{
		Key: typesys.Key{Name: "Widget"},
		Properties: []*typesys.PropertyDescriptor{
			{Name: "id", Presence: "required"},
			{Name: "note", Presence: "optional"},
			{Name: "owner", Presence: "preferred"},
		},
	}
	assert.Equal(t, []string{"id"}, obj.RequiredNames())
}
