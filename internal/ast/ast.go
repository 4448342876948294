// Package ast is the typed representation of a parsed YASL document:
// Enumeration, Property, TypeDef, Validator clauses, YaslItem, YaslRoot.
// Every struct here enforces forbid-extra-keys semantics on unmarshal: any
// key not recognized by a decode function is a schema error.
package ast

import (
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

// NameRe is the identifier grammar for names (property, type, enum, namespace
// segment): [A-Za-z_][A-Za-z0-9_]*
var NameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Presence is the triad a property can declare: required | preferred | optional.
type Presence int

const (
	PresenceOptional Presence = iota
	PresenceRequired
	PresencePreferred
)

func (p Presence) String() string {
	switch p {
	case PresenceRequired:
		return "required"
	case PresencePreferred:
		return "preferred"
	default:
		return "optional"
	}
}

func parsePresence(s string) (Presence, error) {
	switch s {
	case "", "optional":
		return PresenceOptional, nil
	case "required":
		return PresenceRequired, nil
	case "preferred":
		return PresencePreferred, nil
	default:
		return PresenceOptional, fmt.Errorf("invalid presence %q", s)
	}
}

// Enumeration is a named, ordered set of unique string values.
type Enumeration struct {
	Name        string
	Namespace   string
	Description string
	Values      []string
	Line, Col   int
}

// Property is a field descriptor on a TypeDef.
type Property struct {
	Name        string
	Type        string // raw type-expression text, resolved later by the compiler
	Description string
	Presence    Presence
	Unique      bool
	Default     any
	HasDefault  bool

	// list constraints
	ListMin, ListMax       *int

	// numeric constraints
	GT, GE, LT, LE *float64
	Exclude        []float64
	MultipleOf     *float64
	WholeNumber    bool

	// string constraints
	StrMin, StrMax *int
	StrRegex       string

	// date/time constraints
	Before, After string // raw literal; the date-bounds validation stage parses it

	// path constraints
	PathExists, IsDir, IsFile *bool
	FileExt                   []string

	// url constraints
	URLBase       string
	URLProtocols  []string
	URLReachable  bool

	// any constraints
	AnyOf []string

	// ref constraints
	NoRefCheck bool

	Line, Col int
}

// IfThen is one conditional clause of a type-level Validator.
type IfThen struct {
	Eval    string
	Value   []string
	Present []string
	Absent  []string
}

// Validator holds a type's cross-property validator clauses.
type Validator struct {
	OnlyOne     []string
	AtLeastOne  []string
	IfThen      []IfThen
}

// TypeDef is a declared composite object type.
type TypeDef struct {
	Name        string
	Namespace   string
	Description string
	// Properties preserves declaration order for deterministic diagnostics
	// and root-type auto-detection.
	Properties     []*Property
	PropertyIndex  map[string]*Property
	Validators     *Validator
	Line, Col      int
}

// PropertyNames returns the declared property names in order.
func (t *TypeDef) PropertyNames() []string {
	names := make([]string, len(t.Properties))
	for i, p := range t.Properties {
		names[i] = p.Name
	}
	return names
}

// YaslItem is one namespace's worth of enum/type declarations.
type YaslItem struct {
	Namespace   string
	Description string
	Enums       []*Enumeration
	Types       []*TypeDef
}

// YaslRoot is a fully parsed schema document (pre-import-resolution).
type YaslRoot struct {
	Imports     []string
	Metadata    map[string]any
	Definitions []*YaslItem
	SourcePath  string
}
