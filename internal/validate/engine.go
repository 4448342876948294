// Package validate is the Validator Factory (pipeline.go/typelevel.go) and
// the Data Validation Engine (this file): a two-phase pass over a compiled
// Registry and a parsed document tree.
package validate

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/yasl-lang/yasl/internal/diagnostic"
	"github.com/yasl-lang/yasl/internal/registry"
	"github.com/yasl-lang/yasl/internal/typesys"
	"github.com/yasl-lang/yasl/internal/yamlsrc"
)

var tracer = otel.Tracer("github.com/yasl-lang/yasl/internal/validate")

// Outcome is the result of validating one document against one root type.
type Outcome struct {
	RootType    typesys.Key
	Diagnostics []diagnostic.Diagnostic
}

// HasErrors reports whether any diagnostic in the outcome is fatal.
func (o Outcome) HasErrors() bool {
	for _, d := range o.Diagnostics {
		if d.Severity == diagnostic.SeverityError {
			return true
		}
	}
	return false
}

type engine struct {
	reg      *registry.Registry
	opts     Options
	pipeline map[*typesys.PropertyDescriptor]*PropertyPipeline
}

func newEngine(reg *registry.Registry, opts Options) *engine {
	return &engine{reg: reg, opts: opts, pipeline: map[*typesys.PropertyDescriptor]*PropertyPipeline{}}
}

func (e *engine) pipelineFor(desc *typesys.PropertyDescriptor) *PropertyPipeline {
	if p, ok := e.pipeline[desc]; ok {
		return p
	}
	p := BuildPipeline(desc)
	e.pipeline[desc] = p
	return p
}

// Validate runs the two-phase Data Validation Engine against a single parsed
// document. rootHint, if non-empty, is "Name" or "ns.Name"; empty triggers
// root auto-detection across every compiled object type.
func Validate(ctx context.Context, reg *registry.Registry, rootHint string, doc *yaml.Node, opts Options) (Outcome, error) {
	if err := opts.Validate(); err != nil {
		return Outcome{}, fmt.Errorf("validate: invalid options: %w", err)
	}
	_, span := tracer.Start(ctx, "validate.Validate")
	defer span.End()

	e := newEngine(reg, opts)

	root, diags := e.resolveRoot(reg, rootHint, doc)
	if root == nil {
		return Outcome{Diagnostics: diags}, nil
	}

	collector := diagnostic.NewCollector()
	for _, d := range diags {
		collector.Add(d)
	}
	var deferred []deferredRef

	e.validateObject(root.Key, doc, nil, collector, &deferred)

	for _, ref := range deferred {
		if !reg.HasUniqueValue(ref.Namespace, ref.TypeName, ref.Property, ref.Value) {
			collector.Add(diagnostic.Diagnostic{
				Kind:     diagnostic.KindDanglingReference,
				Severity: diagnostic.SeverityError,
				Message:  fmt.Sprintf("reference %q does not match any %s.%s", ref.Value, ref.TypeName, ref.Property),
				Path:     ref.Path,
				Line:     ref.Line,
			})
		}
	}

	return Outcome{
		RootType:    root.Key,
		Diagnostics: diagnostic.SortByPosition(collector.All()),
	}, nil
}

// resolveRoot implements root selection: an explicit hint is
// resolved directly; otherwise every compiled object whose required
// properties are all present among the document's top-level mapping keys,
// and which has no unknown top-level key, is a candidate. Zero or multiple
// candidates is reported as AmbiguousRoot rather than a fatal error, since a
// schema-authoring fix (not a code fix) is what resolves it.
func (e *engine) resolveRoot(reg *registry.Registry, rootHint string, doc *yaml.Node) (*typesys.ObjectDescriptor, []diagnostic.Diagnostic) {
	if rootHint != "" {
		ns, name := splitHint(rootHint)
		obj, err := reg.ResolveObject(ns, name)
		if err != nil {
			return nil, []diagnostic.Diagnostic{{
				Kind: diagnostic.KindAmbiguousRoot, Severity: diagnostic.SeverityError,
				Message: err.Error(),
			}}
		}
		return obj, nil
	}

	if doc == nil || doc.Kind != yaml.MappingNode {
		return nil, []diagnostic.Diagnostic{{
			Kind: diagnostic.KindTypeError, Severity: diagnostic.SeverityError,
			Message: "document root is not a mapping",
		}}
	}
	topKeys := map[string]bool{}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		topKeys[doc.Content[i].Value] = true
	}

	var candidates []*typesys.ObjectDescriptor
	for _, obj := range reg.Objects() {
		if objectMatchesKeys(obj, topKeys) {
			candidates = append(candidates, obj)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Key.String() < candidates[j].Key.String() })

	switch len(candidates) {
	case 0:
		return nil, []diagnostic.Diagnostic{{
			Kind: diagnostic.KindAmbiguousRoot, Severity: diagnostic.SeverityError,
			Message: "no compiled type matches this document's top-level fields",
		}}
	case 1:
		return candidates[0], nil
	default:
		names := make([]string, len(candidates))
		for i, c := range candidates {
			names[i] = c.Key.String()
		}
		return nil, []diagnostic.Diagnostic{{
			Kind: diagnostic.KindAmbiguousRoot, Severity: diagnostic.SeverityError,
			Message: fmt.Sprintf("document matches more than one root type: %v", names),
		}}
	}
}

func objectMatchesKeys(obj *typesys.ObjectDescriptor, topKeys map[string]bool) bool {
	for _, req := range obj.RequiredNames() {
		if !topKeys[req] {
			return false
		}
	}
	for k := range topKeys {
		if _, ok := obj.PropertyIndex[k]; !ok {
			return false
		}
	}
	return true
}

func splitHint(hint string) (string, string) {
	for i := len(hint) - 1; i >= 0; i-- {
		if hint[i] == '.' {
			return hint[:i], hint[i+1:]
		}
	}
	return "", hint
}

func (e *engine) validateObject(key typesys.Key, node *yaml.Node, path []string, collector *diagnostic.Collector, deferred *[]deferredRef) {
	obj, ok := e.reg.Object(key)
	if !ok {
		collector.Add(diagnostic.Diagnostic{
			Kind: diagnostic.KindSchemaError, Severity: diagnostic.SeverityError,
			Message: fmt.Sprintf("type %s not found in registry", key), Path: path,
		})
		return
	}
	if node == nil || node.Kind != yaml.MappingNode {
		line := 0
		if node != nil {
			line = node.Line
		}
		collector.Add(diagnostic.Diagnostic{
			Kind: diagnostic.KindTypeError, Severity: diagnostic.SeverityError,
			Message: fmt.Sprintf("expected a mapping for %s", key), Path: path, Line: line,
		})
		return
	}

	values := map[string]*yaml.Node{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		values[node.Content[i].Value] = node.Content[i+1]
	}

	st := &typeLevelState{Present: map[string]bool{}, Values: map[string]any{}}

	for _, p := range obj.Properties {
		propPath := append(append([]string{}, path...), p.Name)
		valNode, present := values[p.Name]
		if !present || isNullNode(valNode) {
			switch p.Presence {
			case "required":
				collector.Add(diagnostic.Diagnostic{
					Kind: diagnostic.KindMissingRequired, Severity: diagnostic.SeverityError,
					Message: fmt.Sprintf("missing required property %q", p.Name), Path: propPath, Line: node.Line,
				})
			case "preferred":
				collector.Add(diagnostic.Diagnostic{
					Kind: diagnostic.KindPreferredMissing, Severity: diagnostic.SeverityWarning,
					Message: fmt.Sprintf("missing preferred property %q", p.Name), Path: propPath, Line: node.Line,
				})
			}
			continue
		}
		st.Present[p.Name] = true
		decoded := e.validateTyped(key, p.Type, p, valNode, propPath, collector, deferred)
		st.Values[p.Name] = decoded
	}

	for k, valNode := range values {
		if _, ok := obj.PropertyIndex[k]; !ok {
			collector.Add(diagnostic.Diagnostic{
				Kind: diagnostic.KindUnknownField, Severity: diagnostic.SeverityError,
				Message: fmt.Sprintf("unknown property %q", k),
				Path:    append(append([]string{}, path...), k), Line: valNode.Line,
			})
		}
	}

	EvaluateTypeValidators(obj.Validators, st, collector, path, node.Line)
}

func isNullNode(n *yaml.Node) bool {
	return n != nil && n.Tag == "!!null"
}

// validateTyped runs one value (scalar, enum, object, list, map, or
// reference) through whatever handling its ResolvedType needs, returning a
// decoded representation for if_then's eval comparison when this is a direct
// property of an object (the return value is otherwise unused for nested
// list/map elements).
func (e *engine) validateTyped(owner typesys.Key, rt typesys.ResolvedType, desc *typesys.PropertyDescriptor, node *yaml.Node, path []string, collector *diagnostic.Collector, deferred *[]deferredRef) any {
	switch rt.Shape {
	case typesys.ShapeObject:
		e.validateObject(rt.Target, node, path, collector, deferred)
		return nil

	case typesys.ShapeList:
		if node.Kind != yaml.SequenceNode {
			collector.Add(diagnostic.Diagnostic{
				Kind: diagnostic.KindTypeError, Severity: diagnostic.SeverityError,
				Message: "expected a list", Path: path, Line: node.Line,
			})
			return nil
		}
		pc := &propCtx{Node: node, Raw: node.Value, Path: path, Line: node.Line, Collector: collector, Reg: e.reg, Namespace: owner.Namespace, TypeName: owner.Name, Desc: desc, Opts: e.opts, Deferred: deferred}
		e.pipelineFor(desc).Run(pc)
		for i, item := range node.Content {
			itemPath := append(append([]string{}, path...), fmt.Sprintf("[%d]", i))
			e.validateTyped(owner, *rt.Elem, desc, item, itemPath, collector, deferred)
		}
		return nil

	case typesys.ShapeMap:
		if node.Kind != yaml.MappingNode {
			collector.Add(diagnostic.Diagnostic{
				Kind: diagnostic.KindTypeError, Severity: diagnostic.SeverityError,
				Message: "expected a map", Path: path, Line: node.Line,
			})
			return nil
		}
		pc := &propCtx{Node: node, Raw: node.Value, Path: path, Line: node.Line, Collector: collector, Reg: e.reg, Namespace: owner.Namespace, TypeName: owner.Name, Desc: desc, Opts: e.opts, Deferred: deferred}
		e.pipelineFor(desc).Run(pc)
		for i := 0; i+1 < len(node.Content); i += 2 {
			valNode := node.Content[i+1]
			entryPath := append(append([]string{}, path...), node.Content[i].Value)
			e.validateTyped(owner, *rt.MapValue, desc, valNode, entryPath, collector, deferred)
		}
		return nil

	default: // ShapeScalar, ShapeEnum, ShapeReference
		pipe := e.pipelineFor(desc)
		if desc.Type.Shape == typesys.ShapeList || desc.Type.Shape == typesys.ShapeMap {
			// A list element or map value: desc still names the enclosing
			// list/map property, so build a pipeline for the element's own
			// type to coerce and check it like a direct value.
			elemDesc := *desc
			elemDesc.Type = rt
			desc = &elemDesc
			pipe = BuildPipeline(desc)
		}
		pc := &propCtx{
			Node: node, Raw: node.Value, Path: path, Line: node.Line,
			Collector: collector, Reg: e.reg,
			Namespace: owner.Namespace, TypeName: owner.Name,
			Desc: desc, Opts: e.opts, Deferred: deferred,
		}
		if rt.Shape == typesys.ShapeEnum || rt.Shape == typesys.ShapeReference {
			pc.Scalar = node.Value
		}
		pipe.Run(pc)
		return pc.Scalar
	}
}

// ValidateFile loads and validates a single file's every document.
func ValidateFile(ctx context.Context, reg *registry.Registry, rootHint, path string, opts Options) ([]Outcome, error) {
	f, err := yamlsrc.LoadFile(path)
	if err != nil {
		return nil, err
	}
	outcomes := make([]Outcome, 0, len(f.Documents))
	for _, doc := range f.Documents {
		outcome, err := Validate(ctx, reg, rootHint, doc.Root, opts)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

// ValidateDir validates every matching file under dir against the same
// Registry, sorted lexicographically. Errors Validate returns for a document
// are aggregated via multierr while every other file continues. A file that
// cannot be read or parsed is not isolated: LoadDir stops at the first such
// file and ValidateDir returns that error with no results.
func ValidateDir(ctx context.Context, reg *registry.Registry, rootHint, dir string, suffixes []string, opts Options) (map[string][]Outcome, error) {
	files, err := yamlsrc.LoadDir(dir, suffixes...)
	if err != nil {
		return nil, err
	}
	results := map[string][]Outcome{}
	var combined error
	for _, f := range files {
		select {
		case <-ctx.Done():
			return results, multierr.Append(combined, ctx.Err())
		default:
		}
		outcomes := make([]Outcome, 0, len(f.Documents))
		for _, doc := range f.Documents {
			outcome, err := Validate(ctx, reg, rootHint, doc.Root, opts)
			if err != nil {
				combined = multierr.Append(combined, fmt.Errorf("%s: %w", f.Path, err))
				continue
			}
			outcomes = append(outcomes, outcome)
		}
		results[f.Path] = outcomes
	}
	return results, combined
}
