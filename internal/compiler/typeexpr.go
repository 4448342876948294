package compiler

import (
	"strings"

	"github.com/yasl-lang/yasl/internal/primitive"
	"github.com/yasl-lang/yasl/internal/typesys"
)

// nameIndex records which (namespace, name) pairs are declared as enums or
// types across every schema file merged into this compile, built before any
// type expression is resolved so forward and circular object references
// (a tree type referencing itself) work without a two-pass fixup.
type nameIndex struct {
	enums   map[typesys.Key]bool
	objects map[typesys.Key]bool
}

func newNameIndex() *nameIndex {
	return &nameIndex{enums: map[typesys.Key]bool{}, objects: map[typesys.Key]bool{}}
}

// lookup tries only the exact (namespace, name) key when namespace is
// non-empty, and otherwise searches every namespace (a name found in more
// than one is ambiguous), mirroring registry.Registry's own lookup rule so
// compile-time resolution and runtime lookup agree.
func (idx *nameIndex) lookup(namespace, name string) (key typesys.Key, shape typesys.Shape, ok bool, ambiguous bool) {
	find := func(set map[typesys.Key]bool, shapeVal typesys.Shape) (typesys.Key, bool, bool) {
		if namespace != "" {
			k := typesys.Key{Namespace: namespace, Name: name}
			if set[k] {
				return k, true, false
			}
			return typesys.Key{}, false, false
		}
		var matches []typesys.Key
		for k := range set {
			if k.Name == name {
				matches = append(matches, k)
			}
		}
		switch len(matches) {
		case 0:
			return typesys.Key{}, false, false
		case 1:
			return matches[0], true, false
		default:
			return typesys.Key{}, false, true
		}
	}

	if k, found, amb := find(idx.objects, typesys.ShapeObject); found || amb {
		return k, typesys.ShapeObject, found, amb
	}
	if k, found, amb := find(idx.enums, typesys.ShapeEnum); found || amb {
		return k, typesys.ShapeEnum, found, amb
	}
	return typesys.Key{}, 0, false, false
}

// resolveTypeExpr parses the type-expression grammar: `T`, `T[]`,
// `map[K,V]`, `ref[T.p]`, `ns.T`, resolving each into the static ResolvedType
// tagged union rather than synthesizing a model at runtime.
func resolveTypeExpr(raw, currentNamespace string, idx *nameIndex) (typesys.ResolvedType, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return typesys.ResolvedType{}, &SchemaError{Message: "empty type expression"}
	}

	if strings.HasSuffix(s, "[]") {
		elem, err := resolveTypeExpr(s[:len(s)-2], currentNamespace, idx)
		if err != nil {
			return typesys.ResolvedType{}, err
		}
		return typesys.ResolvedType{Shape: typesys.ShapeList, Elem: &elem}, nil
	}

	if strings.HasPrefix(s, "map[") && strings.HasSuffix(s, "]") {
		inner := s[len("map[") : len(s)-1]
		k, v, err := splitTopLevelComma(inner)
		if err != nil {
			return typesys.ResolvedType{}, &SchemaError{Message: "malformed map type " + s + ": " + err.Error()}
		}
		keyType, err := resolveTypeExpr(k, currentNamespace, idx)
		if err != nil {
			return typesys.ResolvedType{}, err
		}
		if !isValidMapKeyType(keyType) {
			return typesys.ResolvedType{}, &SchemaError{Message: "invalid map key type in " + s + ": key must be str, int, or an enum"}
		}
		valType, err := resolveTypeExpr(v, currentNamespace, idx)
		if err != nil {
			return typesys.ResolvedType{}, err
		}
		return typesys.ResolvedType{Shape: typesys.ShapeMap, MapKey: &keyType, MapValue: &valType}, nil
	}

	if strings.HasPrefix(s, "ref[") && strings.HasSuffix(s, "]") {
		inner := s[len("ref[") : len(s)-1]
		dot := strings.LastIndex(inner, ".")
		if dot < 0 {
			return typesys.ResolvedType{}, &SchemaError{Message: "ref type must be \"ref[Type.property]\", got " + s}
		}
		typePart, propPart := inner[:dot], inner[dot+1:]
		ns, name := splitQualified(typePart, currentNamespace, idx)
		key, shape, ok, ambiguous := idx.lookup(ns, name)
		if ambiguous {
			return typesys.ResolvedType{}, &SchemaError{Message: "type name " + name + " is ambiguous in " + s}
		}
		if !ok || shape != typesys.ShapeObject {
			return typesys.ResolvedType{}, &SchemaError{Message: "ref target type not found: " + typePart}
		}
		return typesys.ResolvedType{Shape: typesys.ShapeReference, Target: key, RefProperty: propPart}, nil
	}

	ns, name := splitQualified(s, currentNamespace, idx)

	if k, ok := primitive.Lookup(name); ok && ns == currentNamespace {
		return typesys.ResolvedType{Shape: typesys.ShapeScalar, PrimitiveKind: k.Name}, nil
	}
	// A bare name with no namespace qualifier is tried as a primitive first,
	// regardless of currentNamespace, since primitives have no namespace.
	if !strings.Contains(s, ".") {
		if k, ok := primitive.Lookup(s); ok {
			return typesys.ResolvedType{Shape: typesys.ShapeScalar, PrimitiveKind: k.Name}, nil
		}
	}

	key, shape, ok, ambiguous := idx.lookup(ns, name)
	if ambiguous {
		return typesys.ResolvedType{}, &SchemaError{Message: "type name " + name + " is ambiguous across namespaces"}
	}
	if !ok {
		return typesys.ResolvedType{}, &SchemaError{Message: "unknown type " + s}
	}
	return typesys.ResolvedType{Shape: shape, Target: key}, nil
}

// isValidMapKeyType restricts map[K,V]'s key to the kinds stageMapConstraints
// knows how to check at validation time: str/string, int, or an enum.
func isValidMapKeyType(kt typesys.ResolvedType) bool {
	if kt.Shape == typesys.ShapeEnum {
		return true
	}
	if kt.Shape != typesys.ShapeScalar {
		return false
	}
	switch kt.PrimitiveKind {
	case "str", "string", "int":
		return true
	default:
		return false
	}
}

// splitQualified splits "ns.Name" into (ns, Name) only when ns is empty or a
// genuine namespace qualifier is present; a bare "Name" resolves against
// currentNamespace first via the caller's idx.lookup fallback (namespace "").
func splitQualified(s, currentNamespace string, idx *nameIndex) (string, string) {
	if dot := strings.Index(s, "."); dot > 0 {
		nsCandidate, nameCandidate := s[:dot], s[dot+1:]
		if idx.hasNamespace(nsCandidate) {
			return nsCandidate, nameCandidate
		}
	}
	if currentNamespace != "" {
		if k, _, ok, _ := idx.lookup(currentNamespace, s); ok {
			_ = k
			return currentNamespace, s
		}
	}
	return "", s
}

func (idx *nameIndex) hasNamespace(ns string) bool {
	for k := range idx.objects {
		if k.Namespace == ns {
			return true
		}
	}
	for k := range idx.enums {
		if k.Namespace == ns {
			return true
		}
	}
	return false
}

func splitTopLevelComma(s string) (string, string, error) {
	depth := 0
	for i, r := range s {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:]), nil
			}
		}
	}
	return "", "", &SchemaError{Message: "expected \"K,V\", got " + s}
}
