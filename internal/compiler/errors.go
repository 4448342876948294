package compiler

import (
	"fmt"
	"strings"
)

// SchemaError is a structural authoring mistake that halts compilation:
// an unresolvable type expression, a duplicate definition, a validator
// clause referencing an undeclared property, and so on. Compile-time
// failures are plain errors, not diagnostics: they stop the build rather
// than accumulate alongside data.
type SchemaError struct {
	Path    string
	Line    int
	Message string
}

func (e *SchemaError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ImportCycleError reports a cyclical schema import chain.
type ImportCycleError struct {
	Chain []string
}

func (e *ImportCycleError) Error() string {
	return fmt.Sprintf("import cycle detected: %s", strings.Join(e.Chain, " -> "))
}
