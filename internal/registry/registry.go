// Package registry holds the compiled type graph a schema produces: every
// ObjectDescriptor and EnumDescriptor, keyed by namespace, plus the uniqueness
// index the Data Validation Engine's first pass populates.
//
// Registry is an owned value rather than a process singleton: this package
// declares no package-level Registry instance; callers construct one with
// New.
package registry

import (
	"fmt"
	"sync"

	"github.com/yasl-lang/yasl/internal/typesys"
)

// Registry is the compiled output of internal/compiler's CompileFile and
// CompileDir. It is safe for concurrent use: compilation populates it once,
// then validation runs only ever read it, except for the uniqueness index
// bookkeeping; every access is mutex-guarded.
type Registry struct {
	mu sync.RWMutex

	objects map[typesys.Key]*typesys.ObjectDescriptor
	enums   map[typesys.Key]*typesys.EnumDescriptor

	// unique tracks values recorded against a property declared `unique:
	// true`. Keyed by (namespace, type, property), reset by Clear.
	unique map[uniqueKey]map[string]bool
}

type uniqueKey struct {
	Namespace string
	Type      string
	Property  string
}

// New returns an empty Registry ready for a compiler to populate.
func New() *Registry {
	return &Registry{
		objects: map[typesys.Key]*typesys.ObjectDescriptor{},
		enums:   map[typesys.Key]*typesys.EnumDescriptor{},
		unique:  map[uniqueKey]map[string]bool{},
	}
}

// AddObject registers a compiled type. It is a compiler-time error (panic) to
// register the same (namespace, name) twice; the compiler is responsible for
// catching a schema-level duplicate before calling this.
func (r *Registry) AddObject(o *typesys.ObjectDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.objects[o.Key]; dup {
		panic(fmt.Sprintf("registry: duplicate type %s", o.Key))
	}
	r.objects[o.Key] = o
}

// AddEnum registers a compiled enumeration.
func (r *Registry) AddEnum(e *typesys.EnumDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.enums[e.Key]; dup {
		panic(fmt.Sprintf("registry: duplicate enum %s", e.Key))
	}
	r.enums[e.Key] = e
}

// Object looks up a compiled type by exact key.
func (r *Registry) Object(key typesys.Key) (*typesys.ObjectDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.objects[key]
	return o, ok
}

// Enum looks up a compiled enum by exact key.
func (r *Registry) Enum(key typesys.Key) (*typesys.EnumDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.enums[key]
	return e, ok
}

// ResolveObject finds a type by name. With a non-empty namespace only that
// exact key is tried; with an empty namespace every namespace is searched. A
// bare name present in more than one namespace is ambiguous: the caller must
// qualify it as "ns.Name".
func (r *Registry) ResolveObject(namespace, name string) (*typesys.ObjectDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if namespace != "" {
		if o, ok := r.objects[typesys.Key{Namespace: namespace, Name: name}]; ok {
			return o, nil
		}
		return nil, fmt.Errorf("no type %q in namespace %q", name, namespace)
	}

	var matches []*typesys.ObjectDescriptor
	for k, o := range r.objects {
		if k.Name == name {
			matches = append(matches, o)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no type named %q", name)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("type name %q is ambiguous across namespaces; qualify as ns.%s", name, name)
	}
}

// ResolveEnum mirrors ResolveObject for enumerations.
func (r *Registry) ResolveEnum(namespace, name string) (*typesys.EnumDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if namespace != "" {
		if e, ok := r.enums[typesys.Key{Namespace: namespace, Name: name}]; ok {
			return e, nil
		}
		return nil, fmt.Errorf("no enum %q in namespace %q", name, namespace)
	}

	var matches []*typesys.EnumDescriptor
	for k, e := range r.enums {
		if k.Name == name {
			matches = append(matches, e)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no enum named %q", name)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("enum name %q is ambiguous across namespaces; qualify as ns.%s", name, name)
	}
}

// Objects returns every compiled type, for root auto-detection.
func (r *Registry) Objects() []*typesys.ObjectDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*typesys.ObjectDescriptor, 0, len(r.objects))
	for _, o := range r.objects {
		out = append(out, o)
	}
	return out
}

// RegisterUniqueValue records value against the (namespace, type, property)
// bucket for a property declared `unique: true`. It reports false if value
// was already recorded in that bucket (a DuplicateUnique diagnostic), true if
// this is the first occurrence.
func (r *Registry) RegisterUniqueValue(namespace, typeName, property, value string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := uniqueKey{Namespace: namespace, Type: typeName, Property: property}
	bucket, ok := r.unique[k]
	if !ok {
		bucket = map[string]bool{}
		r.unique[k] = bucket
	}
	if bucket[value] {
		return false
	}
	bucket[value] = true
	return true
}

// HasUniqueValue reports whether value was ever recorded in the (namespace,
// type, property) bucket, without registering it. Used by the Data
// Validation Engine's second pass to resolve `ref[T.p]` properties against
// values `unique: true` properties recorded during the first pass.
func (r *Registry) HasUniqueValue(namespace, typeName, property, value string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k := uniqueKey{Namespace: namespace, Type: typeName, Property: property}
	return r.unique[k][value]
}

// Clear resets the Registry to empty in O(1): map reassignment rather than
// per-entry teardown.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.objects = map[typesys.Key]*typesys.ObjectDescriptor{}
	r.enums = map[typesys.Key]*typesys.EnumDescriptor{}
	r.unique = map[uniqueKey]map[string]bool{}
}
