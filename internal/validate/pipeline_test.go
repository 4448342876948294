package validate

import (
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/yasl-lang/yasl/internal/diagnostic"
	"github.com/yasl-lang/yasl/internal/registry"
	"github.com/yasl-lang/yasl/internal/typesys"
)

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }

func newPropCtx(desc *typesys.PropertyDescriptor, raw string) *propCtx {
	return &propCtx{
		Raw:       raw,
		Collector: diagnostic.NewCollector(),
		Reg:       registry.New(),
		Namespace: "",
		TypeName:  "Widget",
		Desc:      desc,
		Opts:      DefaultOptions(),
		Deferred:  &[]deferredRef{},
	}
}

func TestBuildPipelineOnlyIncludesDeclaredStages(t *testing.T) {
	desc := &typesys.PropertyDescriptor{
		Name: "name",
		Type: typesys.ResolvedType{Shape: typesys.ShapeScalar, PrimitiveKind: "str"},
	}
	p := BuildPipeline(desc)
	if len(p.stages) != 1 {
		t.Fatalf("expected exactly the type-coercion stage, got %d stages", len(p.stages))
	}
}

func TestStageTypeCoercionRejectsInvalidInt(t *testing.T) {
	desc := &typesys.PropertyDescriptor{
		Name: "count",
		Type: typesys.ResolvedType{Shape: typesys.ShapeScalar, PrimitiveKind: "int"},
	}
	pc := newPropCtx(desc, "not-a-number")
	stageTypeCoercion(pc)
	if !pc.Stop {
		t.Fatal("expected Stop to be set on a parse failure")
	}
	if !pc.Collector.HasErrors() {
		t.Fatal("expected a TypeError diagnostic")
	}
}

func TestStageNumericBoundsCatchesOutOfRange(t *testing.T) {
	desc := &typesys.PropertyDescriptor{
		Name: "count",
		Type: typesys.ResolvedType{Shape: typesys.ShapeScalar, PrimitiveKind: "int"},
		Constraints: typesys.Constraints{
			GT: floatp(0),
			LE: floatp(10),
		},
	}
	pc := newPropCtx(desc, "99")
	stageTypeCoercion(pc)
	stageNumericBounds(pc)
	if !pc.Collector.HasErrors() {
		t.Fatal("expected a ConstraintViolation for 99 > le:10")
	}
}

func TestStageStringBoundsEnforcesRegex(t *testing.T) {
	desc := &typesys.PropertyDescriptor{
		Name: "code",
		Type: typesys.ResolvedType{Shape: typesys.ShapeScalar, PrimitiveKind: "str"},
		Constraints: typesys.Constraints{
			StrRegex: `^[A-Z]{3}$`,
		},
	}
	pc := newPropCtx(desc, "abc")
	stageTypeCoercion(pc)
	stageStringBounds(pc)
	if !pc.Collector.HasErrors() {
		t.Fatal("expected a ConstraintViolation for a lowercase code")
	}
}

func TestStageListBoundsEnforcesMinimum(t *testing.T) {
	desc := &typesys.PropertyDescriptor{
		Name: "tags",
		Type: typesys.ResolvedType{Shape: typesys.ShapeList},
		Constraints: typesys.Constraints{
			ListMin: intp(2),
		},
	}
	var node yaml.Node
	if err := yaml.Unmarshal([]byte("[one]"), &node); err != nil {
		t.Fatalf("yaml.Unmarshal: %v", err)
	}
	pc := newPropCtx(desc, "")
	pc.Node = node.Content[0]
	stageListBounds(pc)
	if !pc.Collector.HasErrors() {
		t.Fatal("expected a ConstraintViolation for a list below list_min")
	}
}

func TestStageEnumMembershipRejectsUnknownValue(t *testing.T) {
	key := typesys.Key{Name: "Status"}
	reg := registry.New()
	reg.AddEnum(typesys.NewEnumDescriptor(key, []string{"active", "retired"}, 1))

	desc := &typesys.PropertyDescriptor{
		Name: "status",
		Type: typesys.ResolvedType{Shape: typesys.ShapeEnum, Target: key},
	}
	pc := newPropCtx(desc, "bogus")
	pc.Reg = reg
	pc.Scalar = "bogus"
	stageEnumMembership(pc)
	if !pc.Collector.HasErrors() {
		t.Fatal("expected a ConstraintViolation for a value outside the enum")
	}
}

func TestStageUniquenessRegistrationFlagsDuplicate(t *testing.T) {
	desc := &typesys.PropertyDescriptor{
		Name: "id",
		Type: typesys.ResolvedType{Shape: typesys.ShapeScalar, PrimitiveKind: "str"},
		Unique: true,
	}
	pc := newPropCtx(desc, "a")
	pc.Scalar = "a"
	stageUniquenessRegistration(pc)
	if pc.Collector.HasErrors() {
		t.Fatal("first occurrence should not produce a diagnostic")
	}

	pc2 := newPropCtx(desc, "a")
	pc2.Reg = pc.Reg
	pc2.Scalar = "a"
	stageUniquenessRegistration(pc2)
	if !pc2.Collector.HasErrors() {
		t.Fatal("expected a DuplicateUnique diagnostic on the second occurrence")
	}
}

func TestStageReferenceResolutionDefersCheck(t *testing.T) {
	target := typesys.Key{Name: "Item"}
	desc := &typesys.PropertyDescriptor{
		Name: "itemRef",
		Type: typesys.ResolvedType{Shape: typesys.ShapeReference, Target: target, RefProperty: "sku"},
	}
	pc := newPropCtx(desc, "")
	pc.Scalar = "SKU-1"
	stageReferenceResolution(pc)
	if len(*pc.Deferred) != 1 {
		t.Fatalf("expected one deferred reference, got %d", len(*pc.Deferred))
	}
	got := (*pc.Deferred)[0]
	if got.Property != "sku" || got.Value != "SKU-1" {
		t.Errorf("deferred = %+v, want property sku value SKU-1", got)
	}
}

func TestStageAnyMembershipRejectsOutsideSet(t *testing.T) {
	desc := &typesys.PropertyDescriptor{
		Name: "color",
		Type: typesys.ResolvedType{Shape: typesys.ShapeScalar, PrimitiveKind: "str"},
		Constraints: typesys.Constraints{
			AnyOf: []string{"red", "green"},
		},
	}
	pc := newPropCtx(desc, "")
	pc.Scalar = "blue"
	stageAnyMembership(pc)
	if !pc.Collector.HasErrors() {
		t.Fatal("expected a ConstraintViolation for a value outside any_of")
	}
}

func TestStagePathChecksRejectsMissingFile(t *testing.T) {
	desc := &typesys.PropertyDescriptor{
		Name: "source",
		Type: typesys.ResolvedType{Shape: typesys.ShapeScalar, PrimitiveKind: "FilePath"},
	}
	pc := newPropCtx(desc, "")
	pc.Scalar = "/does/not/exist/anywhere.txt"
	stagePathChecks(pc)
	if !pc.Collector.HasErrors() {
		t.Fatal("expected a ConstraintViolation for a nonexistent FilePath")
	}
}

func TestStageMapConstraintsRejectsKeyOutsideEnum(t *testing.T) {
	key := typesys.Key{Name: "TaskKey"}
	reg := registry.New()
	reg.AddEnum(typesys.NewEnumDescriptor(key, []string{"task_01", "task_02"}, 1))

	desc := &typesys.PropertyDescriptor{
		Name: "tasks",
		Type: typesys.ResolvedType{
			Shape:  typesys.ShapeMap,
			MapKey: &typesys.ResolvedType{Shape: typesys.ShapeEnum, Target: key},
		},
	}
	var node yaml.Node
	if err := yaml.Unmarshal([]byte("task_03: done\n"), &node); err != nil {
		t.Fatalf("yaml.Unmarshal: %v", err)
	}
	pc := newPropCtx(desc, "")
	pc.Reg = reg
	pc.Node = node.Content[0]
	stageMapConstraints(pc)
	if !pc.Collector.HasErrors() {
		t.Fatal("expected a ConstraintViolation for a map key outside the enum")
	}
}

func TestStageMapConstraintsAcceptsKeyInEnum(t *testing.T) {
	key := typesys.Key{Name: "TaskKey"}
	reg := registry.New()
	reg.AddEnum(typesys.NewEnumDescriptor(key, []string{"task_01", "task_02"}, 1))

	desc := &typesys.PropertyDescriptor{
		Name: "tasks",
		Type: typesys.ResolvedType{
			Shape:  typesys.ShapeMap,
			MapKey: &typesys.ResolvedType{Shape: typesys.ShapeEnum, Target: key},
		},
	}
	var node yaml.Node
	if err := yaml.Unmarshal([]byte("task_01: done\n"), &node); err != nil {
		t.Fatalf("yaml.Unmarshal: %v", err)
	}
	pc := newPropCtx(desc, "")
	pc.Reg = reg
	pc.Node = node.Content[0]
	stageMapConstraints(pc)
	if pc.Collector.HasErrors() {
		t.Fatal("expected no diagnostic for a map key inside the enum")
	}
}

func TestBuildDefaultPipelineOmitsInstanceOnlyStages(t *testing.T) {
	desc := &typesys.PropertyDescriptor{
		Name:   "id",
		Type:   typesys.ResolvedType{Shape: typesys.ShapeScalar, PrimitiveKind: "str"},
		Unique: true,
	}
	p := BuildDefaultPipeline(desc)
	if len(p.stages) != 1 {
		t.Fatalf("expected only type-coercion (uniqueness registration excluded), got %d stages", len(p.stages))
	}
}

func TestValidateDefaultRejectsOutOfRangeLiteral(t *testing.T) {
	desc := &typesys.PropertyDescriptor{
		Name: "count",
		Type: typesys.ResolvedType{Shape: typesys.ShapeScalar, PrimitiveKind: "int"},
		Constraints: typesys.Constraints{
			GE: floatp(0),
		},
	}
	node := &yaml.Node{Kind: yaml.ScalarNode, Value: "-5", Tag: "!!int"}
	diags := ValidateDefault(desc, node, registry.New())
	if len(diags) == 0 {
		t.Fatal("expected a diagnostic for a default below ge:0")
	}
}

func TestValidateDefaultAcceptsValidLiteral(t *testing.T) {
	desc := &typesys.PropertyDescriptor{
		Name: "count",
		Type: typesys.ResolvedType{Shape: typesys.ShapeScalar, PrimitiveKind: "int"},
		Constraints: typesys.Constraints{
			GE: floatp(0),
		},
	}
	node := &yaml.Node{Kind: yaml.ScalarNode, Value: "3", Tag: "!!int"}
	diags := ValidateDefault(desc, node, registry.New())
	if len(diags) != 0 {
		t.Fatalf("expected no diagnostics, got %v", diags)
	}
}

func TestStageMarkdownCheckRejectsNulByte(t *testing.T) {
	desc := &typesys.PropertyDescriptor{
		Name: "body",
		Type: typesys.ResolvedType{Shape: typesys.ShapeScalar, PrimitiveKind: "markdown"},
	}
	pc := newPropCtx(desc, "")
	pc.Scalar = "hello\x00world"
	stageMarkdownCheck(pc)
	if !pc.Collector.HasErrors() {
		t.Fatal("expected a ConstraintViolation for an embedded NUL byte")
	}
}
