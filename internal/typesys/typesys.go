// Package typesys is the compiled type-graph IR: a tagged union ResolvedType
// plus ObjectDescriptor/EnumDescriptor records. Object and enum references
// are (namespace, name) Keys into the Registry's maps, not pointers, so a
// Registry can be cleared in O(1).
package typesys

import "fmt"

// Key identifies a declared type or enum by its namespace and local name.
// The empty namespace "" is the implicit namespace legacy flat schemas lower
// into.
type Key struct {
	Namespace string
	Name      string
}

func (k Key) String() string {
	if k.Namespace == "" {
		return k.Name
	}
	return k.Namespace + "." + k.Name
}

// Shape tags the variant of a ResolvedType.
type Shape int

const (
	ShapeScalar Shape = iota
	ShapeEnum
	ShapeObject
	ShapeList
	ShapeMap
	ShapeReference
)

func (s Shape) String() string {
	switch s {
	case ShapeScalar:
		return "scalar"
	case ShapeEnum:
		return "enum"
	case ShapeObject:
		return "object"
	case ShapeList:
		return "list"
	case ShapeMap:
		return "map"
	case ShapeReference:
		return "reference"
	default:
		return "unknown"
	}
}

// ResolvedType is a tagged union over every shape a type expression (`T`,
// `T[]`, `map[K,V]`, `ref[T.p]`, `ns.T`) can resolve to at compile time.
// Optional is orthogonal to Shape (any variant can be wrapped).
type ResolvedType struct {
	Shape Shape

	// ShapeScalar
	PrimitiveKind string

	// ShapeEnum / ShapeObject / ShapeReference
	Target Key

	// ShapeReference: the property name after the type name, e.g. "p" in
	// ref[T.p]
	RefProperty string

	// ShapeList
	Elem *ResolvedType

	// ShapeMap
	MapKey   *ResolvedType
	MapValue *ResolvedType

	Optional bool
}

// WithOptional returns a copy of t marked optional, leaving t itself untouched
// so a single resolved element type can back both optional and required uses.
func (t ResolvedType) WithOptional() ResolvedType {
	t.Optional = true
	return t
}

func (t ResolvedType) String() string {
	var inner string
	switch t.Shape {
	case ShapeScalar:
		inner = t.PrimitiveKind
	case ShapeEnum, ShapeObject:
		inner = t.Target.String()
	case ShapeReference:
		inner = fmt.Sprintf("ref[%s.%s]", t.Target, t.RefProperty)
	case ShapeList:
		inner = fmt.Sprintf("%s[]", t.Elem)
	case ShapeMap:
		inner = fmt.Sprintf("map[%s,%s]", t.MapKey, t.MapValue)
	default:
		inner = "?"
	}
	if t.Optional {
		return inner + "?"
	}
	return inner
}

// Constraints is the flat set of per-property constraint literals a schema
// author can declare. internal/validate's PropertyPipeline
// builder reads these to decide which pipeline stages to attach; an unset
// field (nil pointer, empty slice, zero value) means that stage is omitted
// entirely rather than evaluated as a no-op.
type Constraints struct {
	ListMin, ListMax *int

	GT, GE, LT, LE *float64
	Exclude        []float64
	MultipleOf     *float64
	WholeNumber    bool

	StrMin, StrMax *int
	StrRegex       string

	Before, After string

	PathExists, IsDir, IsFile *bool
	FileExt                   []string

	URLBase      string
	URLProtocols []string
	URLReachable bool

	AnyOf []string

	NoRefCheck bool
}

// PropertyDescriptor is one compiled field of an ObjectDescriptor. It carries
// the resolved type plus every constraint the compiler attached
// (internal/validate builds its stage slice from this struct when a
// validation first needs it).
type PropertyDescriptor struct {
	Name        string
	Type        ResolvedType
	Presence    string // "required" | "preferred" | "optional"
	Unique      bool
	Constraints Constraints
	Line        int

	// Default and HasDefault carry the schema-literal default declared for
	// this property, already checked at compile time against its own
	// pipeline. Default is nil/unused when HasDefault is false.
	Default    any
	HasDefault bool
}

// ObjectDescriptor is a compiled TypeDef: an ordered property list plus the
// index used for root-type auto-detection, where a document's top-level field
// set is matched against each candidate object's PropertyIndex.
type ObjectDescriptor struct {
	Key           Key
	Description   string
	Properties    []*PropertyDescriptor
	PropertyIndex map[string]*PropertyDescriptor
	Validators    *TypeValidators
	Line          int
}

// RequiredNames returns the properties with required presence, used by root
// auto-detection to reject a document missing any of a candidate's required
// fields.
func (o *ObjectDescriptor) RequiredNames() []string {
	var out []string
	for _, p := range o.Properties {
		if p.Presence == "required" {
			out = append(out, p.Name)
		}
	}
	return out
}

// IfThenClause is a compiled conditional type-level validator clause.
type IfThenClause struct {
	Eval    string
	Value   []string
	Present []string
	Absent  []string
}

// TypeValidators holds the compiled type-level validator clauses
// (only_one/at_least_one/if_then), evaluated once per type instance after
// every property has been visited.
type TypeValidators struct {
	OnlyOne    []string
	AtLeastOne []string
	IfThen     []IfThenClause
}

// EnumDescriptor is a compiled Enumeration.
type EnumDescriptor struct {
	Key    Key
	Values []string
	line   int
}

// Line reports the enum's declaration source line.
func (e *EnumDescriptor) Line() int { return e.line }

// NewEnumDescriptor constructs an EnumDescriptor, keeping its declaration line
// private so callers always go through the Line accessor.
func NewEnumDescriptor(key Key, values []string, line int) *EnumDescriptor {
	return &EnumDescriptor{Key: key, Values: values, line: line}
}

// Contains reports whether value is one of the enum's declared values.
func (e *EnumDescriptor) Contains(value string) bool {
	for _, v := range e.Values {
		if v == value {
			return true
		}
	}
	return false
}
