package validate

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yasl-lang/yasl/internal/diagnostic"
	"github.com/yasl-lang/yasl/internal/primitive"
	"github.com/yasl-lang/yasl/internal/registry"
	"github.com/yasl-lang/yasl/internal/typesys"
)

// deferredRef is a `ref[T.p]` check postponed to the engine's second pass,
// once every `unique: true` value across the whole document has been
// recorded.
type deferredRef struct {
	Namespace string
	TypeName  string
	Property  string
	Value     string
	Path      []string
	Line      int
}

// propCtx is the per-occurrence state a PropertyPipeline stage reads and
// writes. One is built per property value encountered during the walk.
type propCtx struct {
	Node      *yaml.Node
	Scalar    any
	Raw       string
	Path      []string
	Line      int
	Collector *diagnostic.Collector
	Reg       *registry.Registry
	Namespace string
	TypeName  string
	Desc      *typesys.PropertyDescriptor
	Opts      Options
	Deferred  *[]deferredRef
	Stop      bool
}

func (pc *propCtx) add(kind diagnostic.ErrorKind, sev diagnostic.Severity, format string, args ...any) {
	pc.Collector.Add(diagnostic.Diagnostic{
		Kind:     kind,
		Severity: sev,
		Message:  fmt.Sprintf(format, args...),
		Path:     append([]string{}, pc.Path...),
		Line:     pc.Line,
	})
}

type stage func(pc *propCtx)

// PropertyPipeline is the ordered, pre-built stage list for one compiled
// property. Stage presence is structural: BuildPipeline only appends a stage
// when the corresponding constraint was declared or the property's type
// calls for it (enum, map, markdown, FilePath, DirectoryPath).
type PropertyPipeline struct {
	desc   *typesys.PropertyDescriptor
	stages []stage
}

// BuildPipeline compiles a PropertyPipeline for a PropertyDescriptor. The
// validation engine calls it the first time a Validate call meets the
// property and reuses the result for the rest of that call.
func BuildPipeline(desc *typesys.PropertyDescriptor) *PropertyPipeline {
	return buildPipeline(desc, true)
}

// BuildDefaultPipeline is BuildPipeline minus the stages that only make sense
// against a real document occurrence: uniqueness registration and reference
// deferral. A schema-literal default has no document position to register or
// defer against, but still owes every type/format/constraint check.
func BuildDefaultPipeline(desc *typesys.PropertyDescriptor) *PropertyPipeline {
	return buildPipeline(desc, false)
}

func buildPipeline(desc *typesys.PropertyDescriptor, instanceStages bool) *PropertyPipeline {
	p := &PropertyPipeline{desc: desc}
	c := desc.Constraints

	p.stages = append(p.stages, stageTypeCoercion)

	if desc.Type.Shape == typesys.ShapeList && (c.ListMin != nil || c.ListMax != nil) {
		p.stages = append(p.stages, stageListBounds)
	}
	if isNumericStage(desc) && (c.GT != nil || c.GE != nil || c.LT != nil || c.LE != nil ||
		len(c.Exclude) > 0 || c.MultipleOf != nil || c.WholeNumber) {
		p.stages = append(p.stages, stageNumericBounds)
	}
	if isStringStage(desc) && (c.StrMin != nil || c.StrMax != nil || c.StrRegex != "") {
		p.stages = append(p.stages, stageStringBounds)
	}
	if c.Before != "" || c.After != "" {
		p.stages = append(p.stages, stageDateBounds)
	}
	if c.PathExists != nil || c.IsDir != nil || c.IsFile != nil || len(c.FileExt) > 0 ||
		desc.Type.PrimitiveKind == "FilePath" || desc.Type.PrimitiveKind == "DirectoryPath" {
		p.stages = append(p.stages, stagePathChecks)
	}
	if c.URLBase != "" || len(c.URLProtocols) > 0 || c.URLReachable {
		p.stages = append(p.stages, stageURLChecks)
	}
	if len(c.AnyOf) > 0 {
		p.stages = append(p.stages, stageAnyMembership)
	}
	if desc.Type.Shape == typesys.ShapeEnum {
		p.stages = append(p.stages, stageEnumMembership)
	}
	if desc.Type.Shape == typesys.ShapeMap {
		p.stages = append(p.stages, stageMapConstraints)
	}
	if desc.Type.PrimitiveKind == "markdown" {
		p.stages = append(p.stages, stageMarkdownCheck)
	}
	if desc.Unique && instanceStages {
		p.stages = append(p.stages, stageUniquenessRegistration)
	}
	if desc.Type.Shape == typesys.ShapeReference && !c.NoRefCheck && instanceStages {
		p.stages = append(p.stages, stageReferenceResolution)
	}
	return p
}

// ValidateDefault runs a property's default-pipeline over a schema-literal
// value node (not a document occurrence) and returns whatever diagnostics the
// stages produced. internal/compiler calls this at compile time to reject a
// declared default that doesn't satisfy its own property's constraints.
func ValidateDefault(desc *typesys.PropertyDescriptor, node *yaml.Node, reg *registry.Registry) []diagnostic.Diagnostic {
	p := BuildDefaultPipeline(desc)
	collector := diagnostic.NewCollector()
	pc := &propCtx{
		Node:      node,
		Raw:       node.Value,
		Collector: collector,
		Reg:       reg,
		Desc:      desc,
		Opts:      DefaultOptions(),
		Deferred:  &[]deferredRef{},
	}
	p.Run(pc)
	return collector.Errors()
}

func isNumericStage(desc *typesys.PropertyDescriptor) bool {
	if desc.Type.Shape != typesys.ShapeScalar {
		return false
	}
	k, ok := primitive.Lookup(desc.Type.PrimitiveKind)
	return ok && k.IsNumeric
}

func isStringStage(desc *typesys.PropertyDescriptor) bool {
	if desc.Type.Shape != typesys.ShapeScalar {
		return false
	}
	k, ok := primitive.Lookup(desc.Type.PrimitiveKind)
	return ok && k.IsString
}

// Run executes every stage in order against one occurrence of this property.
// A stage that sets pc.Stop halts the remaining stages for this occurrence
// (used when type coercion itself fails - bounds checks on an uncoerced
// value would be meaningless).
func (p *PropertyPipeline) Run(pc *propCtx) {
	for _, st := range p.stages {
		st(pc)
		if pc.Stop {
			return
		}
	}
}

func stageTypeCoercion(pc *propCtx) {
	shape := pc.Desc.Type.Shape
	if shape != typesys.ShapeScalar {
		return
	}
	k, ok := primitive.Lookup(pc.Desc.Type.PrimitiveKind)
	if !ok {
		return
	}
	v, err := k.Parse(pc.Raw)
	if err != nil {
		pc.add(diagnostic.KindTypeError, diagnostic.SeverityError,
			"invalid %s: %v", k.Name, err)
		pc.Stop = true
		return
	}
	pc.Scalar = v
}

func stageListBounds(pc *propCtx) {
	if pc.Node == nil || pc.Node.Kind != yaml.SequenceNode {
		return
	}
	n := len(pc.Node.Content)
	c := pc.Desc.Constraints
	if c.ListMin != nil && n < *c.ListMin {
		pc.add(diagnostic.KindConstraintViolation, diagnostic.SeverityError,
			"list has %d items, minimum is %d", n, *c.ListMin)
	}
	if c.ListMax != nil && n > *c.ListMax {
		pc.add(diagnostic.KindConstraintViolation, diagnostic.SeverityError,
			"list has %d items, maximum is %d", n, *c.ListMax)
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func stageNumericBounds(pc *propCtx) {
	f, ok := asFloat(pc.Scalar)
	if !ok {
		return
	}
	c := pc.Desc.Constraints
	switch {
	case c.GT != nil && !(f > *c.GT):
		pc.add(diagnostic.KindConstraintViolation, diagnostic.SeverityError, "%v must be > %v", f, *c.GT)
	case c.GE != nil && !(f >= *c.GE):
		pc.add(diagnostic.KindConstraintViolation, diagnostic.SeverityError, "%v must be >= %v", f, *c.GE)
	case c.LT != nil && !(f < *c.LT):
		pc.add(diagnostic.KindConstraintViolation, diagnostic.SeverityError, "%v must be < %v", f, *c.LT)
	case c.LE != nil && !(f <= *c.LE):
		pc.add(diagnostic.KindConstraintViolation, diagnostic.SeverityError, "%v must be <= %v", f, *c.LE)
	}
	for _, excluded := range c.Exclude {
		if f == excluded {
			pc.add(diagnostic.KindConstraintViolation, diagnostic.SeverityError, "%v is an excluded value", f)
		}
	}
	if c.MultipleOf != nil && *c.MultipleOf != 0 {
		ratio := f / *c.MultipleOf
		if ratio != float64(int64(ratio)) {
			pc.add(diagnostic.KindConstraintViolation, diagnostic.SeverityError, "%v is not a multiple of %v", f, *c.MultipleOf)
		}
	}
	if c.WholeNumber && f != float64(int64(f)) {
		pc.add(diagnostic.KindConstraintViolation, diagnostic.SeverityError, "%v must be a whole number", f)
	}
}

func stageStringBounds(pc *propCtx) {
	s, ok := pc.Scalar.(string)
	if !ok {
		return
	}
	c := pc.Desc.Constraints
	n := len([]rune(s))
	if c.StrMin != nil && n < *c.StrMin {
		pc.add(diagnostic.KindConstraintViolation, diagnostic.SeverityError, "string length %d below minimum %d", n, *c.StrMin)
	}
	if c.StrMax != nil && n > *c.StrMax {
		pc.add(diagnostic.KindConstraintViolation, diagnostic.SeverityError, "string length %d exceeds maximum %d", n, *c.StrMax)
	}
	if c.StrRegex != "" {
		re, err := regexp.Compile(c.StrRegex)
		if err != nil {
			pc.add(diagnostic.KindSchemaError, diagnostic.SeverityError, "invalid str_regex %q: %v", c.StrRegex, err)
			return
		}
		if !re.MatchString(s) {
			pc.add(diagnostic.KindConstraintViolation, diagnostic.SeverityError, "%q does not match pattern %q", s, c.StrRegex)
		}
	}
}

func stageDateBounds(pc *propCtx) {
	ts, ok := pc.Scalar.(time.Time)
	if !ok {
		return
	}
	c := pc.Desc.Constraints
	layouts := []string{time.RFC3339, "2006-01-02", "15:04:05"}
	parseBound := func(raw string) (time.Time, bool) {
		for _, layout := range layouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	}
	if c.Before != "" {
		if bound, ok := parseBound(c.Before); ok && !ts.Before(bound) {
			pc.add(diagnostic.KindConstraintViolation, diagnostic.SeverityError, "%v must be before %v", ts, bound)
		}
	}
	if c.After != "" {
		if bound, ok := parseBound(c.After); ok && !ts.After(bound) {
			pc.add(diagnostic.KindConstraintViolation, diagnostic.SeverityError, "%v must be after %v", ts, bound)
		}
	}
}

func stagePathChecks(pc *propCtx) {
	s, ok := pc.Scalar.(string)
	if !ok {
		return
	}
	c := pc.Desc.Constraints
	kind := pc.Desc.Type.PrimitiveKind

	info, statErr := osStat(s)
	exists := statErr == nil

	if c.PathExists != nil && exists != *c.PathExists {
		pc.add(diagnostic.KindConstraintViolation, diagnostic.SeverityError, "path %q existence must be %v", s, *c.PathExists)
	}
	if kind == "FilePath" {
		if !exists || info.IsDir() {
			pc.add(diagnostic.KindConstraintViolation, diagnostic.SeverityError, "%q must be an existing file", s)
		}
	}
	if kind == "DirectoryPath" {
		if !exists || !info.IsDir() {
			pc.add(diagnostic.KindConstraintViolation, diagnostic.SeverityError, "%q must be an existing directory", s)
		}
	}
	if c.IsDir != nil && exists && info.IsDir() != *c.IsDir {
		pc.add(diagnostic.KindConstraintViolation, diagnostic.SeverityError, "path %q is_dir must be %v", s, *c.IsDir)
	}
	if c.IsFile != nil && exists && info.IsDir() == *c.IsFile {
		pc.add(diagnostic.KindConstraintViolation, diagnostic.SeverityError, "path %q is_file must be %v", s, *c.IsFile)
	}
	if len(c.FileExt) > 0 {
		ext := strings.ToLower(filepath.Ext(s))
		ok := false
		for _, allowed := range c.FileExt {
			if ext == allowed {
				ok = true
				break
			}
		}
		if !ok {
			pc.add(diagnostic.KindConstraintViolation, diagnostic.SeverityError, "%q has extension %q, expected one of %v", s, ext, c.FileExt)
		}
	}
}

func stageURLChecks(pc *propCtx) {
	u, ok := pc.Scalar.(interface{ String() string })
	var raw string
	if ok {
		raw = u.String()
	} else if s, ok := pc.Scalar.(string); ok {
		raw = s
	} else {
		return
	}
	c := pc.Desc.Constraints
	if c.URLBase != "" && !strings.HasPrefix(raw, c.URLBase) {
		pc.add(diagnostic.KindConstraintViolation, diagnostic.SeverityError, "url %q does not start with required base %q", raw, c.URLBase)
	}
	if len(c.URLProtocols) > 0 {
		matched := false
		for _, proto := range c.URLProtocols {
			if strings.HasPrefix(raw, proto+"://") {
				matched = true
				break
			}
		}
		if !matched {
			pc.add(diagnostic.KindConstraintViolation, diagnostic.SeverityError, "url %q protocol not in %v", raw, c.URLProtocols)
		}
	}
	if c.URLReachable {
		reachable := checkURLReachable(raw, pc.Opts.ReachabilityTimeout)
		if !reachable {
			sev := diagnostic.SeverityError
			if pc.Opts.DowngradeURLReachability {
				sev = diagnostic.SeverityWarning
			}
			pc.add(diagnostic.KindConstraintViolation, sev, "url %q is not reachable", raw)
		}
	}
}

func stageAnyMembership(pc *propCtx) {
	s := fmt.Sprintf("%v", pc.Scalar)
	for _, allowed := range pc.Desc.Constraints.AnyOf {
		if allowed == s {
			return
		}
	}
	pc.add(diagnostic.KindConstraintViolation, diagnostic.SeverityError, "%q is not one of %v", s, pc.Desc.Constraints.AnyOf)
}

func stageEnumMembership(pc *propCtx) {
	s, ok := pc.Scalar.(string)
	if !ok {
		if pc.Node != nil {
			s = pc.Node.Value
		}
	}
	e, ok := pc.Reg.Enum(pc.Desc.Type.Target)
	if !ok {
		pc.add(diagnostic.KindSchemaError, diagnostic.SeverityError, "enum %s not found in registry", pc.Desc.Type.Target)
		return
	}
	if !e.Contains(s) {
		pc.add(diagnostic.KindConstraintViolation, diagnostic.SeverityError, "%q is not a member of enum %s", s, pc.Desc.Type.Target)
	}
}

func stageMapConstraints(pc *propCtx) {
	if pc.Node == nil || pc.Node.Kind != yaml.MappingNode {
		return
	}
	mapKey := pc.Desc.Type.MapKey
	if mapKey == nil {
		return
	}
	for i := 0; i+1 < len(pc.Node.Content); i += 2 {
		keyNode := pc.Node.Content[i]
		switch mapKey.Shape {
		case typesys.ShapeScalar:
			switch mapKey.PrimitiveKind {
			case "int":
				if _, err := strconv.ParseInt(keyNode.Value, 10, 64); err != nil {
					pc.add(diagnostic.KindTypeError, diagnostic.SeverityError, "map key %q is not a valid int", keyNode.Value)
				}
			case "str", "string":
				// every YAML scalar decodes to a usable string key; nothing further to check.
			}
		case typesys.ShapeEnum:
			e, ok := pc.Reg.Enum(mapKey.Target)
			if !ok {
				pc.add(diagnostic.KindSchemaError, diagnostic.SeverityError, "enum %s not found in registry", mapKey.Target)
				continue
			}
			if !e.Contains(keyNode.Value) {
				pc.add(diagnostic.KindConstraintViolation, diagnostic.SeverityError, "map key %q is not a member of enum %s", keyNode.Value, mapKey.Target)
			}
		}
	}
}

func stageMarkdownCheck(pc *propCtx) {
	s, ok := pc.Scalar.(string)
	if !ok {
		return
	}
	if strings.Contains(s, "\x00") {
		pc.add(diagnostic.KindConstraintViolation, diagnostic.SeverityError, "markdown value contains a NUL byte")
	}
}

func stageUniquenessRegistration(pc *propCtx) {
	s := fmt.Sprintf("%v", pc.Scalar)
	if !pc.Reg.RegisterUniqueValue(pc.Namespace, pc.TypeName, pc.Desc.Name, s) {
		pc.add(diagnostic.KindDuplicateUnique, diagnostic.SeverityError,
			"duplicate value %q for unique property %s", s, pc.Desc.Name)
	}
}

func stageReferenceResolution(pc *propCtx) {
	s := fmt.Sprintf("%v", pc.Scalar)
	*pc.Deferred = append(*pc.Deferred, deferredRef{
		Namespace: pc.Desc.Type.Target.Namespace,
		TypeName:  pc.Desc.Type.Target.Name,
		Property:  pc.Desc.Type.RefProperty,
		Value:     s,
		Path:      append([]string{}, pc.Path...),
		Line:      pc.Line,
	})
}
