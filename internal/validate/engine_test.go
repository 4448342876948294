package validate_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/yasl-lang/yasl/internal/compiler"
	"github.com/yasl-lang/yasl/internal/diagnostic"
	"github.com/yasl-lang/yasl/internal/validate"
)

func parseDoc(t *testing.T, src string) *yaml.Node {
	t.Helper()
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		t.Fatalf("yaml.Unmarshal: %v", err)
	}
	return doc.Content[0]
}

func TestValidateRequiredFieldMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yasl")
	if err := os.WriteFile(path, []byte(`
types:
  Widget:
    properties:
      name:
        type: str
        presence: required
`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	c, err := compiler.New(compiler.DefaultOptions(), nil)
	if err != nil {
		t.Fatalf("compiler.New: %v", err)
	}
	reg, err := c.CompileFile(context.Background(), path)
	if err != nil {
		t.Fatalf("CompileFile: %v", err)
	}

	doc := parseDoc(t, "{}\n")
	outcome, err := validate.Validate(context.Background(), reg, "Widget", doc, validate.DefaultOptions())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !outcome.HasErrors() {
		t.Fatalf("expected a MissingRequired diagnostic, got none")
	}
	found := false
	for _, d := range outcome.Diagnostics {
		if d.Kind == diagnostic.KindMissingRequired {
			found = true
		}
	}
	if !found {
		t.Errorf("diagnostics = %+v, want a MissingRequired entry", outcome.Diagnostics)
	}
}

func TestValidateUnknownFieldRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yasl")
	if err := os.WriteFile(path, []byte(`
types:
  Widget:
    properties:
      name:
        type: str
`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	c, err := compiler.New(compiler.DefaultOptions(), nil)
	if err != nil {
		t.Fatalf("compiler.New: %v", err)
	}
	reg, err := c.CompileFile(context.Background(), path)
	if err != nil {
		t.Fatalf("CompileFile: %v", err)
	}

	doc := parseDoc(t, "name: bob\nsurprise: true\n")
	outcome, err := validate.Validate(context.Background(), reg, "Widget", doc, validate.DefaultOptions())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	found := false
	for _, d := range outcome.Diagnostics {
		if d.Kind == diagnostic.KindUnknownField {
			found = true
		}
	}
	if !found {
		t.Errorf("diagnostics = %+v, want an UnknownField entry", outcome.Diagnostics)
	}
}

func TestValidateUniqueDuplicateDetected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yasl")
	if err := os.WriteFile(path, []byte(`
types:
  Widget:
    properties:
      things:
        type: Thing[]
  Thing:
    properties:
      id:
        type: str
        unique: true
`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	c, err := compiler.New(compiler.DefaultOptions(), nil)
	if err != nil {
		t.Fatalf("compiler.New: %v", err)
	}
	reg, err := c.CompileFile(context.Background(), path)
	if err != nil {
		t.Fatalf("CompileFile: %v", err)
	}

	doc := parseDoc(t, "things:\n  - id: a\n  - id: a\n")
	outcome, err := validate.Validate(context.Background(), reg, "Widget", doc, validate.DefaultOptions())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	found := false
	for _, d := range outcome.Diagnostics {
		if d.Kind == diagnostic.KindDuplicateUnique {
			found = true
		}
	}
	if !found {
		t.Errorf("diagnostics = %+v, want a DuplicateUnique entry", outcome.Diagnostics)
	}
}

func TestValidateNumericBoundsViolation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yasl")
	if err := os.WriteFile(path, []byte(`
types:
  Widget:
    properties:
      count:
        type: int
        gt: 0
        le: 10
`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	c, err := compiler.New(compiler.DefaultOptions(), nil)
	if err != nil {
		t.Fatalf("compiler.New: %v", err)
	}
	reg, err := c.CompileFile(context.Background(), path)
	if err != nil {
		t.Fatalf("CompileFile: %v", err)
	}

	doc := parseDoc(t, "count: 99\n")
	outcome, err := validate.Validate(context.Background(), reg, "Widget", doc, validate.DefaultOptions())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !outcome.HasErrors() {
		t.Errorf("expected a ConstraintViolation for count=99, got none")
	}
}
