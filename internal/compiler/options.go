package compiler

import "github.com/go-playground/validator/v10"

// Options configures a Compile call. It is validated once at construction
// time (New), not on every Compile, matching froppa-stackkit's pattern of
// validating options structs before wiring them into the rest of the graph.
type Options struct {
	// SchemaSuffixes lists the file extensions considered schema documents
	// when Compile is given a directory.
	SchemaSuffixes []string `validate:"required,min=1,dive,required"`

	// MaxImportDepth bounds import chain length as a backstop against
	// pathological (but acyclic) import graphs.
	MaxImportDepth int `validate:"gt=0"`
}

// DefaultOptions returns the Options every top-level Compile call uses unless
// the caller overrides them.
func DefaultOptions() Options {
	return Options{
		SchemaSuffixes: []string{".yasl", ".yaml", ".yml"},
		MaxImportDepth: 32,
	}
}

var validate = validator.New()

// Validate checks o against its struct tags, returning a *validator.InvalidValidationError
// or validator.ValidationErrors on failure.
func (o Options) Validate() error {
	return validate.Struct(o)
}
