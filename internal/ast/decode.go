package ast

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DecodeError is a structural schema-authoring mistake: bad YAML shape,
// unknown keys, or a malformed constraint literal. It always aborts
// compilation of the enclosing document.
type DecodeError struct {
	Path    string
	Line    int
	Column  int
	Message string
}

func (e *DecodeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s (at %s)", e.Path, e.Line, e.Message, pathOrRoot(e.Path))
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

func pathOrRoot(p string) string {
	if p == "" {
		return "<root>"
	}
	return p
}

func errAt(sourcePath string, n *yaml.Node, format string, args ...any) error {
	line, col := 0, 0
	if n != nil {
		line, col = n.Line, n.Column
	}
	return &DecodeError{Path: sourcePath, Line: line, Column: col, Message: fmt.Sprintf(format, args...)}
}

// mapping is a thin helper over a yaml.Node of Kind MappingNode that tracks
// which keys have been consumed, so forbid-extra-keys can be enforced once
// every known field has been read.
type mapping struct {
	node   *yaml.Node
	seen   map[string]bool
	pairs  map[string]*yaml.Node
	keyPos map[string]*yaml.Node
}

func newMapping(sourcePath string, n *yaml.Node) (*mapping, error) {
	if n.Kind != yaml.MappingNode {
		return nil, errAt(sourcePath, n, "expected a mapping, got %s", describeKind(n))
	}
	m := &mapping{node: n, seen: map[string]bool{}, pairs: map[string]*yaml.Node{}, keyPos: map[string]*yaml.Node{}}
	for i := 0; i+1 < len(n.Content); i += 2 {
		k := n.Content[i]
		v := n.Content[i+1]
		m.pairs[k.Value] = v
		m.keyPos[k.Value] = k
	}
	return m, nil
}

func describeKind(n *yaml.Node) string {
	switch n.Kind {
	case yaml.MappingNode:
		return "a mapping"
	case yaml.SequenceNode:
		return "a sequence"
	case yaml.ScalarNode:
		return fmt.Sprintf("scalar %q", n.Value)
	default:
		return "an unknown node"
	}
}

func (m *mapping) take(key string) (*yaml.Node, bool) {
	m.seen[key] = true
	v, ok := m.pairs[key]
	return v, ok
}

// forbidExtra must be called after every expected key has been take()n; it
// rejects any key in the mapping that was never consumed.
func (m *mapping) forbidExtra(sourcePath string) error {
	for k, keyNode := range m.keyPos {
		if !m.seen[k] {
			return errAt(sourcePath, keyNode, "unknown key %q", k)
		}
	}
	return nil
}

// DecodeRoot parses a top-level YASL document (one yaml.Node per file,
// already the content of a DocumentNode) into a YaslRoot.
func DecodeRoot(sourcePath string, n *yaml.Node) (*YaslRoot, error) {
	m, err := newMapping(sourcePath, n)
	if err != nil {
		return nil, err
	}
	root := &YaslRoot{SourcePath: sourcePath}

	if v, ok := m.take("imports"); ok {
		imports, err := decodeStringList(sourcePath, v)
		if err != nil {
			return nil, err
		}
		root.Imports = imports
	}
	if v, ok := m.take("metadata"); ok {
		meta, err := decodeFreeMapping(v)
		if err != nil {
			return nil, err
		}
		root.Metadata = meta
	}

	if v, ok := m.take("definitions"); ok {
		items, err := decodeDefinitions(sourcePath, v)
		if err != nil {
			return nil, err
		}
		root.Definitions = items
	} else {
		// Legacy sugar: flat top-level `types:`/`enums:` with no namespace
		// wrapper lowers to a single implicit namespace "".
		item := &YaslItem{Namespace: ""}
		hasLegacy := false
		if v, ok := m.take("enums"); ok {
			hasLegacy = true
			enums, err := decodeEnumMap(sourcePath, "", v)
			if err != nil {
				return nil, err
			}
			item.Enums = enums
		}
		if v, ok := m.take("types"); ok {
			hasLegacy = true
			types, err := decodeTypeMap(sourcePath, "", v)
			if err != nil {
				return nil, err
			}
			item.Types = types
		}
		if hasLegacy {
			root.Definitions = []*YaslItem{item}
		}
	}

	if err := m.forbidExtra(sourcePath); err != nil {
		return nil, err
	}
	return root, nil
}

func decodeDefinitions(sourcePath string, n *yaml.Node) ([]*YaslItem, error) {
	if n.Kind != yaml.MappingNode {
		return nil, errAt(sourcePath, n, "definitions must be a mapping of namespace -> item")
	}
	var items []*YaslItem
	for i := 0; i+1 < len(n.Content); i += 2 {
		nsNode := n.Content[i]
		itemNode := n.Content[i+1]
		item, err := decodeYaslItem(sourcePath, nsNode.Value, itemNode)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func decodeYaslItem(sourcePath, namespace string, n *yaml.Node) (*YaslItem, error) {
	m, err := newMapping(sourcePath, n)
	if err != nil {
		return nil, err
	}
	item := &YaslItem{Namespace: namespace}
	if v, ok := m.take("description"); ok {
		item.Description = v.Value
	}
	if v, ok := m.take("enums"); ok {
		enums, err := decodeEnumMap(sourcePath, namespace, v)
		if err != nil {
			return nil, err
		}
		item.Enums = enums
	}
	if v, ok := m.take("types"); ok {
		types, err := decodeTypeMap(sourcePath, namespace, v)
		if err != nil {
			return nil, err
		}
		item.Types = types
	}
	if err := m.forbidExtra(sourcePath); err != nil {
		return nil, err
	}
	return item, nil
}

func decodeEnumMap(sourcePath, namespace string, n *yaml.Node) ([]*Enumeration, error) {
	if n.Kind != yaml.MappingNode {
		return nil, errAt(sourcePath, n, "enums must be a mapping of name -> enumeration")
	}
	var out []*Enumeration
	for i := 0; i+1 < len(n.Content); i += 2 {
		nameNode := n.Content[i]
		valNode := n.Content[i+1]
		if !NameRe.MatchString(nameNode.Value) {
			return nil, errAt(sourcePath, nameNode, "invalid enum name %q", nameNode.Value)
		}
		e, err := decodeEnumeration(sourcePath, nameNode.Value, namespace, valNode)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func decodeEnumeration(sourcePath, name, namespace string, n *yaml.Node) (*Enumeration, error) {
	m, err := newMapping(sourcePath, n)
	if err != nil {
		return nil, err
	}
	e := &Enumeration{Name: name, Namespace: namespace, Line: n.Line, Col: n.Column}
	if v, ok := m.take("description"); ok {
		e.Description = v.Value
	}
	valuesNode, ok := m.take("values")
	if !ok {
		return nil, errAt(sourcePath, n, "enum %q missing required field 'values'", name)
	}
	values, err := decodeStringList(sourcePath, valuesNode)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	for _, val := range values {
		if seen[val] {
			return nil, errAt(sourcePath, valuesNode, "enum %q has duplicate value %q", name, val)
		}
		seen[val] = true
	}
	e.Values = values
	if err := m.forbidExtra(sourcePath); err != nil {
		return nil, err
	}
	return e, nil
}

func decodeTypeMap(sourcePath, namespace string, n *yaml.Node) ([]*TypeDef, error) {
	if n.Kind != yaml.MappingNode {
		return nil, errAt(sourcePath, n, "types must be a mapping of name -> type definition")
	}
	var out []*TypeDef
	for i := 0; i+1 < len(n.Content); i += 2 {
		nameNode := n.Content[i]
		valNode := n.Content[i+1]
		if !NameRe.MatchString(nameNode.Value) {
			return nil, errAt(sourcePath, nameNode, "invalid type name %q", nameNode.Value)
		}
		t, err := decodeTypeDef(sourcePath, nameNode.Value, namespace, valNode)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func decodeTypeDef(sourcePath, name, namespace string, n *yaml.Node) (*TypeDef, error) {
	m, err := newMapping(sourcePath, n)
	if err != nil {
		return nil, err
	}
	t := &TypeDef{Name: name, Namespace: namespace, PropertyIndex: map[string]*Property{}, Line: n.Line, Col: n.Column}
	if v, ok := m.take("description"); ok {
		t.Description = v.Value
	}
	propsNode, ok := m.take("properties")
	if !ok {
		return nil, errAt(sourcePath, n, "type %q missing required field 'properties'", name)
	}
	if propsNode.Kind != yaml.MappingNode {
		return nil, errAt(sourcePath, propsNode, "properties must be a mapping of name -> property")
	}
	for i := 0; i+1 < len(propsNode.Content); i += 2 {
		pNameNode := propsNode.Content[i]
		pValNode := propsNode.Content[i+1]
		if !NameRe.MatchString(pNameNode.Value) {
			return nil, errAt(sourcePath, pNameNode, "invalid property name %q", pNameNode.Value)
		}
		if _, dup := t.PropertyIndex[pNameNode.Value]; dup {
			return nil, errAt(sourcePath, pNameNode, "duplicate property %q in type %q", pNameNode.Value, name)
		}
		p, err := decodeProperty(sourcePath, pNameNode.Value, pValNode)
		if err != nil {
			return nil, err
		}
		t.Properties = append(t.Properties, p)
		t.PropertyIndex[p.Name] = p
	}
	if v, ok := m.take("validators"); ok {
		val, err := decodeValidator(sourcePath, v)
		if err != nil {
			return nil, err
		}
		t.Validators = val
	}
	if err := m.forbidExtra(sourcePath); err != nil {
		return nil, err
	}
	for _, clause := range allValidatorFields(t.Validators) {
		if _, ok := t.PropertyIndex[clause]; !ok {
			return nil, errAt(sourcePath, n, "type %q validators reference undeclared property %q", name, clause)
		}
	}
	return t, nil
}

func allValidatorFields(v *Validator) []string {
	if v == nil {
		return nil
	}
	var out []string
	out = append(out, v.OnlyOne...)
	out = append(out, v.AtLeastOne...)
	for _, it := range v.IfThen {
		out = append(out, it.Eval)
		out = append(out, it.Present...)
		out = append(out, it.Absent...)
	}
	return out
}

func decodeValidator(sourcePath string, n *yaml.Node) (*Validator, error) {
	m, err := newMapping(sourcePath, n)
	if err != nil {
		return nil, err
	}
	val := &Validator{}
	if v, ok := m.take("only_one"); ok {
		list, err := decodeStringList(sourcePath, v)
		if err != nil {
			return nil, err
		}
		val.OnlyOne = list
	}
	if v, ok := m.take("at_least_one"); ok {
		list, err := decodeStringList(sourcePath, v)
		if err != nil {
			return nil, err
		}
		val.AtLeastOne = list
	}
	if v, ok := m.take("if_then"); ok {
		if v.Kind != yaml.SequenceNode {
			return nil, errAt(sourcePath, v, "if_then must be a sequence")
		}
		for _, item := range v.Content {
			it, err := decodeIfThen(sourcePath, item)
			if err != nil {
				return nil, err
			}
			val.IfThen = append(val.IfThen, it)
		}
	}
	if err := m.forbidExtra(sourcePath); err != nil {
		return nil, err
	}
	return val, nil
}

func decodeIfThen(sourcePath string, n *yaml.Node) (IfThen, error) {
	m, err := newMapping(sourcePath, n)
	if err != nil {
		return IfThen{}, err
	}
	it := IfThen{}
	evalNode, ok := m.take("eval")
	if !ok {
		return IfThen{}, errAt(sourcePath, n, "if_then clause missing 'eval'")
	}
	it.Eval = evalNode.Value
	if v, ok := m.take("value"); ok {
		list, err := decodeStringList(sourcePath, v)
		if err != nil {
			return IfThen{}, err
		}
		it.Value = list
	}
	if v, ok := m.take("present"); ok {
		list, err := decodeStringList(sourcePath, v)
		if err != nil {
			return IfThen{}, err
		}
		it.Present = list
	}
	if v, ok := m.take("absent"); ok {
		list, err := decodeStringList(sourcePath, v)
		if err != nil {
			return IfThen{}, err
		}
		it.Absent = list
	}
	if err := m.forbidExtra(sourcePath); err != nil {
		return IfThen{}, err
	}
	return it, nil
}

func decodeProperty(sourcePath, name string, n *yaml.Node) (*Property, error) {
	m, err := newMapping(sourcePath, n)
	if err != nil {
		return nil, err
	}
	p := &Property{Name: name, Presence: PresenceOptional, Line: n.Line, Col: n.Column}

	typeNode, ok := m.take("type")
	if !ok {
		return nil, errAt(sourcePath, n, "property %q missing required field 'type'", name)
	}
	p.Type = typeNode.Value

	if v, ok := m.take("description"); ok {
		p.Description = v.Value
	}

	var legacyRequired *bool
	if v, ok := m.take("required"); ok {
		b, err := decodeBool(sourcePath, v)
		if err != nil {
			return nil, err
		}
		legacyRequired = &b
	}
	if v, ok := m.take("presence"); ok {
		pres, err := parsePresence(v.Value)
		if err != nil {
			return nil, errAt(sourcePath, v, "%v", err)
		}
		p.Presence = pres
	} else if legacyRequired != nil {
		// Legacy sugar: required:true -> required, required:false/absent ->
		// optional.
		if *legacyRequired {
			p.Presence = PresenceRequired
		} else {
			p.Presence = PresenceOptional
		}
	}

	if v, ok := m.take("unique"); ok {
		b, err := decodeBool(sourcePath, v)
		if err != nil {
			return nil, err
		}
		p.Unique = b
	}
	if v, ok := m.take("default"); ok {
		val, err := decodeScalarAny(v)
		if err != nil {
			return nil, err
		}
		p.Default = val
		p.HasDefault = true
	}

	if v, ok := m.take("list_min"); ok {
		i, err := decodeInt(sourcePath, v)
		if err != nil {
			return nil, err
		}
		p.ListMin = &i
	}
	if v, ok := m.take("list_max"); ok {
		i, err := decodeInt(sourcePath, v)
		if err != nil {
			return nil, err
		}
		p.ListMax = &i
	}
	if p.ListMin != nil && p.ListMax != nil && *p.ListMin > *p.ListMax {
		return nil, errAt(sourcePath, n, "property %q: list_min (%d) must be <= list_max (%d)", name, *p.ListMin, *p.ListMax)
	}

	if v, ok := m.take("gt"); ok {
		f, err := decodeFloat(sourcePath, v)
		if err != nil {
			return nil, err
		}
		p.GT = &f
	}
	if v, ok := m.take("ge"); ok {
		f, err := decodeFloat(sourcePath, v)
		if err != nil {
			return nil, err
		}
		p.GE = &f
	}
	if v, ok := m.take("lt"); ok {
		f, err := decodeFloat(sourcePath, v)
		if err != nil {
			return nil, err
		}
		p.LT = &f
	}
	if v, ok := m.take("le"); ok {
		f, err := decodeFloat(sourcePath, v)
		if err != nil {
			return nil, err
		}
		p.LE = &f
	}
	if v, ok := m.take("exclude"); ok {
		vals, err := decodeFloatList(sourcePath, v)
		if err != nil {
			return nil, err
		}
		p.Exclude = vals
	}
	if v, ok := m.take("multiple_of"); ok {
		f, err := decodeFloat(sourcePath, v)
		if err != nil {
			return nil, err
		}
		p.MultipleOf = &f
	}
	if v, ok := m.take("whole_number"); ok {
		b, err := decodeBool(sourcePath, v)
		if err != nil {
			return nil, err
		}
		p.WholeNumber = b
	}

	if v, ok := m.take("str_min"); ok {
		i, err := decodeInt(sourcePath, v)
		if err != nil {
			return nil, err
		}
		p.StrMin = &i
	}
	if v, ok := m.take("str_max"); ok {
		i, err := decodeInt(sourcePath, v)
		if err != nil {
			return nil, err
		}
		p.StrMax = &i
	}
	if v, ok := m.take("str_regex"); ok {
		p.StrRegex = v.Value
	}

	if v, ok := m.take("before"); ok {
		p.Before = v.Value
	}
	if v, ok := m.take("after"); ok {
		p.After = v.Value
	}

	if v, ok := m.take("path_exists"); ok {
		b, err := decodeBool(sourcePath, v)
		if err != nil {
			return nil, err
		}
		p.PathExists = &b
	}
	if v, ok := m.take("is_dir"); ok {
		b, err := decodeBool(sourcePath, v)
		if err != nil {
			return nil, err
		}
		p.IsDir = &b
	}
	if v, ok := m.take("is_file"); ok {
		b, err := decodeBool(sourcePath, v)
		if err != nil {
			return nil, err
		}
		p.IsFile = &b
	}
	if v, ok := m.take("file_ext"); ok {
		exts, err := decodeStringList(sourcePath, v)
		if err != nil {
			return nil, err
		}
		p.FileExt = normalizeExts(exts)
	}

	if v, ok := m.take("url_base"); ok {
		p.URLBase = v.Value
	}
	if v, ok := m.take("url_protocols"); ok {
		list, err := decodeStringList(sourcePath, v)
		if err != nil {
			return nil, err
		}
		p.URLProtocols = list
	}
	if v, ok := m.take("url_reachable"); ok {
		b, err := decodeBool(sourcePath, v)
		if err != nil {
			return nil, err
		}
		p.URLReachable = b
	}

	if v, ok := m.take("any_of"); ok {
		list, err := decodeStringList(sourcePath, v)
		if err != nil {
			return nil, err
		}
		p.AnyOf = list
	}

	if v, ok := m.take("no_ref_check"); ok {
		b, err := decodeBool(sourcePath, v)
		if err != nil {
			return nil, err
		}
		p.NoRefCheck = b
	}

	if err := m.forbidExtra(sourcePath); err != nil {
		return nil, err
	}
	return p, nil
}

func normalizeExts(exts []string) []string {
	out := make([]string, len(exts))
	for i, e := range exts {
		if e == "" {
			out[i] = e
			continue
		}
		if e[0] != '.' {
			e = "." + e
		}
		out[i] = lower(e)
	}
	return out
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func decodeStringList(sourcePath string, n *yaml.Node) ([]string, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, errAt(sourcePath, n, "expected a sequence of strings")
	}
	out := make([]string, 0, len(n.Content))
	for _, item := range n.Content {
		out = append(out, item.Value)
	}
	return out, nil
}

func decodeFloatList(sourcePath string, n *yaml.Node) ([]float64, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, errAt(sourcePath, n, "expected a sequence of numbers")
	}
	out := make([]float64, 0, len(n.Content))
	for _, item := range n.Content {
		f, err := decodeFloat(sourcePath, item)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func decodeBool(sourcePath string, n *yaml.Node) (bool, error) {
	var b bool
	if err := n.Decode(&b); err != nil {
		return false, errAt(sourcePath, n, "expected a boolean: %v", err)
	}
	return b, nil
}

func decodeInt(sourcePath string, n *yaml.Node) (int, error) {
	i, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, errAt(sourcePath, n, "expected an integer: %v", err)
	}
	return i, nil
}

func decodeFloat(sourcePath string, n *yaml.Node) (float64, error) {
	f, err := strconv.ParseFloat(n.Value, 64)
	if err != nil {
		return 0, errAt(sourcePath, n, "expected a number: %v", err)
	}
	return f, nil
}

func decodeScalarAny(n *yaml.Node) (any, error) {
	var v any
	if err := n.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeFreeMapping(n *yaml.Node) (map[string]any, error) {
	out := map[string]any{}
	if err := n.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
