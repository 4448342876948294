// Package yasl is the library API: CompileSchema, Validate, and Clear, thin
// wrappers gluing internal/compiler, internal/registry, and internal/validate
// together into a compile-then-validate-then-clear workflow. CLI concerns
// live externally, in cmd/yasl.
package yasl

import (
	"context"

	charmlog "charm.land/log/v2"

	"github.com/yasl-lang/yasl/internal/compiler"
	"github.com/yasl-lang/yasl/internal/registry"
	"github.com/yasl-lang/yasl/internal/validate"
	"gopkg.in/yaml.v3"
)

// Version is set via -ldflags at build time (cmd/yasl's --version flag);
// "dev" is the unreleased default.
var Version = "dev"

// Outcome re-exports validate.Outcome as the facade's result type.
type Outcome = validate.Outcome

// Schema wraps a compiled *registry.Registry: the reusable artifact
// CompileSchema produces and every Validate call consumes.
type Schema struct {
	reg *registry.Registry
}

// CompileSchema compiles the schema file at path (following its imports)
// into a reusable Schema.
func CompileSchema(ctx context.Context, path string, opts compiler.Options, log *charmlog.Logger) (*Schema, error) {
	c, err := compiler.New(opts, log)
	if err != nil {
		return nil, err
	}
	reg, err := c.CompileFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Schema{reg: reg}, nil
}

// CompileSchemaDir compiles every schema file anywhere under dir, including
// subdirectories, into one merged Schema.
func CompileSchemaDir(ctx context.Context, dir string, opts compiler.Options, log *charmlog.Logger) (*Schema, error) {
	c, err := compiler.New(opts, log)
	if err != nil {
		return nil, err
	}
	reg, err := c.CompileDir(ctx, dir)
	if err != nil {
		return nil, err
	}
	return &Schema{reg: reg}, nil
}

// Validate validates one parsed document against rootHint (or the
// auto-detected root type when rootHint is empty).
func (s *Schema) Validate(ctx context.Context, rootHint string, doc *yaml.Node, opts validate.Options) (Outcome, error) {
	return validate.Validate(ctx, s.reg, rootHint, doc, opts)
}

// ValidateFile loads and validates every document in a single YAML file.
func (s *Schema) ValidateFile(ctx context.Context, rootHint, path string, opts validate.Options) ([]Outcome, error) {
	return validate.ValidateFile(ctx, s.reg, rootHint, path, opts)
}

// ValidateDir validates every matching file under dir against this Schema.
func (s *Schema) ValidateDir(ctx context.Context, rootHint, dir string, suffixes []string, opts validate.Options) (map[string][]Outcome, error) {
	return validate.ValidateDir(ctx, s.reg, rootHint, dir, suffixes, opts)
}

// Clear discards every compiled type/enum/uniqueness record, returning the
// Schema's Registry to empty in O(1).
func (s *Schema) Clear() {
	s.reg.Clear()
}
