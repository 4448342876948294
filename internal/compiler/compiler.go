// Package compiler is the Schema Loader/Compiler: it walks a schema file's
// imports, merges every imported document's definitions, and compiles the
// result into a *registry.Registry of typesys descriptors.
package compiler

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	charmlog "charm.land/log/v2"
	"go.opentelemetry.io/otel"
	"gopkg.in/yaml.v3"

	"github.com/yasl-lang/yasl/internal/ast"
	"github.com/yasl-lang/yasl/internal/logger"
	"github.com/yasl-lang/yasl/internal/registry"
	"github.com/yasl-lang/yasl/internal/typesys"
	"github.com/yasl-lang/yasl/internal/validate"
	"github.com/yasl-lang/yasl/internal/yamlsrc"
)

var tracer = otel.Tracer("github.com/yasl-lang/yasl/internal/compiler")

// Compiler loads and compiles YASL schema documents. It holds no mutable
// state between calls; every field is a read-only collaborator.
type Compiler struct {
	opts Options
	log  *charmlog.Logger
}

// New constructs a Compiler, validating opts via validator/v10. If log is
// nil, logger.Default() is used.
func New(opts Options, log *charmlog.Logger) (*Compiler, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("compiler: invalid options: %w", err)
	}
	if log == nil {
		log = logger.Default()
	}
	return &Compiler{opts: opts, log: log}, nil
}

// CompileFile compiles the schema rooted at path, following its imports.
func (c *Compiler) CompileFile(ctx context.Context, path string) (*registry.Registry, error) {
	ctx, span := tracer.Start(ctx, "compiler.Compile")
	defer span.End()

	loaded, err := c.loadTransitive(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	c.log.Debug("loaded schema documents", "count", len(loaded))
	return c.compileDocuments(loaded)
}

// CompileDir compiles every schema file anywhere under dir (LoadDir walks
// subdirectories too) as one merged registry, each file's own imports still
// followed.
func (c *Compiler) CompileDir(ctx context.Context, dir string) (*registry.Registry, error) {
	ctx, span := tracer.Start(ctx, "compiler.Compile")
	defer span.End()

	files, err := yamlsrc.LoadDir(dir, c.opts.SchemaSuffixes...)
	if err != nil {
		return nil, err
	}
	visited := map[string]*ast.YaslRoot{}
	var order []*ast.YaslRoot
	for _, f := range files {
		loaded, err := c.loadTransitive(ctx, f.Path, visited)
		if err != nil {
			return nil, err
		}
		// loadTransitive records every root it returns in visited and never
		// returns one already there, so loaded holds only new documents.
		order = append(order, loaded...)
	}
	return c.compileDocuments(order)
}

// loadTransitive parses path and every schema it (transitively) imports,
// depth-first, detecting cycles via the chain of files currently being
// walked. visited, if
// non-nil, is shared across multiple entry points (CompileDir) so a schema
// imported by two files is only parsed once.
func (c *Compiler) loadTransitive(ctx context.Context, path string, visited map[string]*ast.YaslRoot) ([]*ast.YaslRoot, error) {
	if visited == nil {
		visited = map[string]*ast.YaslRoot{}
	}
	var order []*ast.YaslRoot
	chain := map[string]bool{}
	var walk func(p string, depth int, stack []string) error
	walk = func(p string, depth int, stack []string) error {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		if chain[abs] {
			return &ImportCycleError{Chain: append(append([]string{}, stack...), abs)}
		}
		if depth > c.opts.MaxImportDepth {
			return &SchemaError{Path: p, Message: "import depth exceeds MaxImportDepth"}
		}
		if _, done := visited[abs]; done {
			return nil
		}

		root, err := c.parseFile(abs)
		if err != nil {
			return err
		}

		chain[abs] = true
		defer delete(chain, abs)

		for _, imp := range root.Imports {
			importPath := imp
			if !filepath.IsAbs(importPath) {
				importPath = filepath.Join(filepath.Dir(abs), importPath)
			}
			if err := walk(importPath, depth+1, append(stack, abs)); err != nil {
				return err
			}
		}

		visited[abs] = root
		order = append(order, root)
		c.log.Debug("resolved schema import", "path", abs, "imports", len(root.Imports))
		return nil
	}
	if err := walk(path, 0, nil); err != nil {
		return nil, err
	}
	return order, nil
}

func (c *Compiler) parseFile(path string) (*ast.YaslRoot, error) {
	file, err := yamlsrc.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if len(file.Documents) == 0 {
		return nil, &SchemaError{Path: path, Message: "schema file contains no YAML document"}
	}
	return ast.DecodeRoot(path, file.Documents[0].Root)
}

// compileDocuments merges every loaded YaslRoot's definitions and compiles
// them into one Registry: enums first, then objects, since a type's property
// can reference an enum that must already exist in the registry.
func (c *Compiler) compileDocuments(docs []*ast.YaslRoot) (*registry.Registry, error) {
	type namedEnum struct {
		ns string
		e  *ast.Enumeration
	}
	type namedType struct {
		ns string
		t  *ast.TypeDef
	}

	var enums []namedEnum
	var types []namedType
	idx := newNameIndex()

	for _, doc := range docs {
		for _, item := range doc.Definitions {
			for _, e := range item.Enums {
				key := typesys.Key{Namespace: item.Namespace, Name: e.Name}
				if idx.enums[key] || idx.objects[key] {
					return nil, &SchemaError{Path: doc.SourcePath, Line: e.Line, Message: "duplicate definition " + key.String()}
				}
				idx.enums[key] = true
				enums = append(enums, namedEnum{ns: item.Namespace, e: e})
			}
			for _, t := range item.Types {
				key := typesys.Key{Namespace: item.Namespace, Name: t.Name}
				if idx.enums[key] || idx.objects[key] {
					return nil, &SchemaError{Path: doc.SourcePath, Line: t.Line, Message: "duplicate definition " + key.String()}
				}
				idx.objects[key] = true
				types = append(types, namedType{ns: item.Namespace, t: t})
			}
		}
	}

	reg := registry.New()

	for _, ne := range enums {
		key := typesys.Key{Namespace: ne.ns, Name: ne.e.Name}
		reg.AddEnum(typesys.NewEnumDescriptor(key, ne.e.Values, ne.e.Line))
	}

	for _, nt := range types {
		desc, err := c.compileType(nt.ns, nt.t, idx, reg)
		if err != nil {
			return nil, err
		}
		reg.AddObject(desc)
	}

	if err := checkReferenceTargets(reg); err != nil {
		return nil, err
	}

	c.log.Debug("compiled registry", "enums", len(enums), "types", len(types))
	return reg, nil
}

// checkReferenceTargets is the BadReference compile-time pass: every
// `ref[T.p]` property must name a property p on T that exists, is a
// primitive scalar, and is declared `unique: true`. A ref whose target
// degrades at runtime (dangling for every value, since nothing was ever
// recorded as unique) is a schema error, not a validation diagnostic.
func checkReferenceTargets(reg *registry.Registry) error {
	for _, obj := range reg.Objects() {
		for _, pd := range obj.Properties {
			rt := pd.Type
			if rt.Shape != typesys.ShapeReference {
				continue
			}
			target, ok := reg.Object(rt.Target)
			if !ok {
				return &SchemaError{Line: pd.Line, Message: fmt.Sprintf("property %s.%s: ref target type %s not found", obj.Key, pd.Name, rt.Target)}
			}
			refProp, ok := target.PropertyIndex[rt.RefProperty]
			if !ok {
				return &SchemaError{Line: pd.Line, Message: fmt.Sprintf("property %s.%s: ref target property %s.%s not found", obj.Key, pd.Name, rt.Target, rt.RefProperty)}
			}
			if refProp.Type.Shape != typesys.ShapeScalar {
				return &SchemaError{Line: pd.Line, Message: fmt.Sprintf("property %s.%s: ref target %s.%s is not a primitive property", obj.Key, pd.Name, rt.Target, rt.RefProperty)}
			}
			if !refProp.Unique {
				return &SchemaError{Line: pd.Line, Message: fmt.Sprintf("property %s.%s: ref target %s.%s is not declared unique", obj.Key, pd.Name, rt.Target, rt.RefProperty)}
			}
		}
	}
	return nil
}

// checkDefaultValue is the InvalidDefault compile-time check: a declared
// default is re-marshaled into a yaml.Node and run through the same
// pipeline its property's real occurrences use (minus the instance-only
// uniqueness/reference stages), so a default that can't be type-coerced or
// that violates the property's own constraints fails the build instead of
// surfacing as a confusing runtime diagnostic against data that never set it.
func checkDefaultValue(typeName string, pd *typesys.PropertyDescriptor, reg *registry.Registry) error {
	raw, err := yaml.Marshal(pd.Default)
	if err != nil {
		return &SchemaError{Line: pd.Line, Message: fmt.Sprintf("property %s.%s: default value cannot be marshaled: %v", typeName, pd.Name, err)}
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil || len(doc.Content) == 0 {
		return &SchemaError{Line: pd.Line, Message: fmt.Sprintf("property %s.%s: malformed default value", typeName, pd.Name)}
	}

	diags := validate.ValidateDefault(pd, doc.Content[0], reg)
	if len(diags) == 0 {
		return nil
	}
	msgs := make([]string, len(diags))
	for i, d := range diags {
		msgs[i] = d.Message
	}
	return &SchemaError{Line: pd.Line, Message: fmt.Sprintf("property %s.%s: invalid default: %s", typeName, pd.Name, strings.Join(msgs, "; "))}
}

func (c *Compiler) compileType(namespace string, t *ast.TypeDef, idx *nameIndex, reg *registry.Registry) (*typesys.ObjectDescriptor, error) {
	key := typesys.Key{Namespace: namespace, Name: t.Name}
	desc := &typesys.ObjectDescriptor{
		Key:           key,
		Description:   t.Description,
		PropertyIndex: map[string]*typesys.PropertyDescriptor{},
		Line:          t.Line,
	}
	for _, p := range t.Properties {
		resolved, err := resolveTypeExpr(p.Type, namespace, idx)
		if err != nil {
			return nil, &SchemaError{Path: "", Line: p.Line, Message: fmt.Sprintf("property %s.%s: %v", t.Name, p.Name, err)}
		}
		if p.Presence != ast.PresenceRequired {
			resolved = resolved.WithOptional()
		}
		pd := &typesys.PropertyDescriptor{
			Name:       p.Name,
			Type:       resolved,
			Presence:   p.Presence.String(),
			Unique:     p.Unique,
			Line:       p.Line,
			Default:    p.Default,
			HasDefault: p.HasDefault,
			Constraints: typesys.Constraints{
				ListMin: p.ListMin, ListMax: p.ListMax,
				GT: p.GT, GE: p.GE, LT: p.LT, LE: p.LE,
				Exclude: p.Exclude, MultipleOf: p.MultipleOf, WholeNumber: p.WholeNumber,
				StrMin: p.StrMin, StrMax: p.StrMax, StrRegex: p.StrRegex,
				Before: p.Before, After: p.After,
				PathExists: p.PathExists, IsDir: p.IsDir, IsFile: p.IsFile, FileExt: p.FileExt,
				URLBase: p.URLBase, URLProtocols: p.URLProtocols, URLReachable: p.URLReachable,
				AnyOf:      p.AnyOf,
				NoRefCheck: p.NoRefCheck,
			},
		}
		if pd.HasDefault && pd.Default != nil {
			if err := checkDefaultValue(t.Name, pd, reg); err != nil {
				return nil, err
			}
		}
		desc.Properties = append(desc.Properties, pd)
		desc.PropertyIndex[p.Name] = pd
	}
	if t.Validators != nil {
		tv := &typesys.TypeValidators{
			OnlyOne:    t.Validators.OnlyOne,
			AtLeastOne: t.Validators.AtLeastOne,
		}
		for _, it := range t.Validators.IfThen {
			tv.IfThen = append(tv.IfThen, typesys.IfThenClause{
				Eval:    it.Eval,
				Value:   it.Value,
				Present: it.Present,
				Absent:  it.Absent,
			})
		}
		desc.Validators = tv
	}
	return desc, nil
}
