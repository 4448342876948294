package compiler_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yasl-lang/yasl/internal/compiler"
	"github.com/yasl-lang/yasl/internal/typesys"
)

func writeSchema(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newCompiler(t *testing.T) *compiler.Compiler {
	t.Helper()
	c, err := compiler.New(compiler.DefaultOptions(), nil)
	require.NoError(t, err)
	return c
}

func TestCompileSimpleSchema(t *testing.T) {
	dir := t.TempDir()
	path := writeSchema(t, dir, "schema.yasl", `
definitions:
  catalog:
    enums:
      Status:
        values: [active, retired]
    types:
      Item:
        properties:
          name:
            type: str
            presence: required
          status:
            type: Status
            presence: required
          tags:
            type: str[]
`)

	reg, err := newCompiler(t).CompileFile(context.Background(), path)
	require.NoError(t, err)

	obj, ok := reg.Object(typesys.Key{Namespace: "catalog", Name: "Item"})
	require.True(t, ok)
	require.Len(t, obj.Properties, 3)

	nameProp := obj.PropertyIndex["name"]
	require.Equal(t, typesys.ShapeScalar, nameProp.Type.Shape)
	require.Equal(t, "str", nameProp.Type.PrimitiveKind)

	statusProp := obj.PropertyIndex["status"]
	require.Equal(t, typesys.ShapeEnum, statusProp.Type.Shape)
	require.Equal(t, "Status", statusProp.Type.Target.Name)

	tagsProp := obj.PropertyIndex["tags"]
	require.Equal(t, typesys.ShapeList, tagsProp.Type.Shape)
	require.Equal(t, "str", tagsProp.Type.Elem.PrimitiveKind)
}

func TestCompileResolvesImports(t *testing.T) {
	dir := t.TempDir()
	writeSchema(t, dir, "base.yasl", `
definitions:
  core:
    types:
      Address:
        properties:
          city:
            type: str
            presence: required
`)
	entry := writeSchema(t, dir, "main.yasl", `
imports: [base.yasl]
definitions:
  core:
    types:
      Person:
        properties:
          address:
            type: core.Address
            presence: required
`)

	reg, err := newCompiler(t).CompileFile(context.Background(), entry)
	require.NoError(t, err)

	person, ok := reg.Object(typesys.Key{Namespace: "core", Name: "Person"})
	require.True(t, ok)
	addressProp := person.PropertyIndex["address"]
	require.Equal(t, typesys.ShapeObject, addressProp.Type.Shape)
	require.Equal(t, "Address", addressProp.Type.Target.Name)

	_, ok = reg.Object(typesys.Key{Namespace: "core", Name: "Address"})
	require.True(t, ok)
}

func TestCompileDetectsImportCycle(t *testing.T) {
	dir := t.TempDir()
	writeSchema(t, dir, "a.yasl", "imports: [b.yasl]\ntypes: {}\n")
	entry := writeSchema(t, dir, "b.yasl", "imports: [a.yasl]\ntypes: {}\n")

	_, err := newCompiler(t).CompileFile(context.Background(), entry)
	require.Error(t, err)
	var cycleErr *compiler.ImportCycleError
	require.ErrorAs(t, err, &cycleErr)
}

func TestCompileRejectsUnknownType(t *testing.T) {
	dir := t.TempDir()
	path := writeSchema(t, dir, "schema.yasl", `
types:
  Widget:
    properties:
      thing:
        type: NotARealType
`)
	_, err := newCompiler(t).CompileFile(context.Background(), path)
	require.Error(t, err)
}

func TestCompileRejectsBoolMapKey(t *testing.T) {
	dir := t.TempDir()
	path := writeSchema(t, dir, "schema.yasl", `
types:
  Widget:
    properties:
      flags:
        type: map[bool,str]
`)
	_, err := newCompiler(t).CompileFile(context.Background(), path)
	require.Error(t, err)
}

func TestCompileRejectsObjectMapKey(t *testing.T) {
	dir := t.TempDir()
	path := writeSchema(t, dir, "schema.yasl", `
types:
  Owner:
    properties:
      name:
        type: str
  Widget:
    properties:
      byOwner:
        type: map[Owner,str]
`)
	_, err := newCompiler(t).CompileFile(context.Background(), path)
	require.Error(t, err)
}

func TestCompileAcceptsEnumMapKey(t *testing.T) {
	dir := t.TempDir()
	path := writeSchema(t, dir, "schema.yasl", `
enums:
  TaskKey:
    values: [task_01, task_02]
types:
  Plan:
    properties:
      tasks:
        type: map[TaskKey,str]
`)
	reg, err := newCompiler(t).CompileFile(context.Background(), path)
	require.NoError(t, err)

	plan, ok := reg.Object(typesys.Key{Name: "Plan"})
	require.True(t, ok)
	tasksProp := plan.PropertyIndex["tasks"]
	require.Equal(t, typesys.ShapeEnum, tasksProp.Type.MapKey.Shape)
}

func TestCompileRejectsRefToNonUniqueProperty(t *testing.T) {
	dir := t.TempDir()
	path := writeSchema(t, dir, "schema.yasl", `
types:
  Task:
    properties:
      id:
        type: str
      label:
        type: str
  Plan:
    properties:
      taskRef:
        type: ref[Task.label]
`)
	_, err := newCompiler(t).CompileFile(context.Background(), path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not declared unique")
}

func TestCompileRejectsRefToObjectProperty(t *testing.T) {
	dir := t.TempDir()
	path := writeSchema(t, dir, "schema.yasl", `
types:
  Owner:
    properties:
      name:
        type: str
        unique: true
  Task:
    properties:
      owner:
        type: Owner
        unique: true
  Plan:
    properties:
      taskRef:
        type: ref[Task.owner]
`)
	_, err := newCompiler(t).CompileFile(context.Background(), path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not a primitive property")
}

func TestCompileAcceptsRefToUniquePrimitiveProperty(t *testing.T) {
	dir := t.TempDir()
	path := writeSchema(t, dir, "schema.yasl", `
types:
  Task:
    properties:
      id:
        type: str
        unique: true
  Plan:
    properties:
      taskRef:
        type: ref[Task.id]
`)
	reg, err := newCompiler(t).CompileFile(context.Background(), path)
	require.NoError(t, err)

	plan, ok := reg.Object(typesys.Key{Name: "Plan"})
	require.True(t, ok)
	require.Equal(t, typesys.ShapeReference, plan.PropertyIndex["taskRef"].Type.Shape)
}

func TestCompileRejectsInvalidDefault(t *testing.T) {
	dir := t.TempDir()
	path := writeSchema(t, dir, "schema.yasl", `
types:
  Widget:
    properties:
      count:
        type: int
        ge: 0
        default: -5
`)
	_, err := newCompiler(t).CompileFile(context.Background(), path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid default")
}

func TestCompileAcceptsValidDefault(t *testing.T) {
	dir := t.TempDir()
	path := writeSchema(t, dir, "schema.yasl", `
types:
  Widget:
    properties:
      count:
        type: int
        ge: 0
        default: 3
`)
	reg, err := newCompiler(t).CompileFile(context.Background(), path)
	require.NoError(t, err)

	widget, ok := reg.Object(typesys.Key{Name: "Widget"})
	require.True(t, ok)
	countProp := widget.PropertyIndex["count"]
	require.True(t, countProp.HasDefault)
	require.EqualValues(t, 3, countProp.Default)
}
