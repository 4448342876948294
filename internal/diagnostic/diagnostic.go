// Package diagnostic implements the structured, line-carrying error records
// produced by schema compilation and data validation.
package diagnostic

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ErrorKind is the stable taxonomy from the diagnostic contract. Compile-time
// structural failures and per-document validation failures both use this type,
// but only the latter ever travel inside a Collector.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindYamlParseError
	KindTypeError
	KindConstraintViolation
	KindMissingRequired
	KindPreferredMissing
	KindUnknownField
	KindDuplicateUnique
	KindDanglingReference
	KindAmbiguousType
	KindAmbiguousRoot
	KindSchemaError
)

func (k ErrorKind) String() string {
	switch k {
	case KindYamlParseError:
		return "YamlParseError"
	case KindTypeError:
		return "TypeError"
	case KindConstraintViolation:
		return "ConstraintViolation"
	case KindMissingRequired:
		return "MissingRequired"
	case KindPreferredMissing:
		return "PreferredMissing"
	case KindUnknownField:
		return "UnknownField"
	case KindDuplicateUnique:
		return "DuplicateUnique"
	case KindDanglingReference:
		return "DanglingReference"
	case KindAmbiguousType:
		return "AmbiguousType"
	case KindAmbiguousRoot:
		return "AmbiguousRoot"
	case KindSchemaError:
		return "SchemaError"
	default:
		return "Unknown"
	}
}

// MarshalJSON renders an ErrorKind as its name rather than its ordinal, for
// the CLI's --output json/yaml renderers.
func (k ErrorKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// MarshalYAML mirrors MarshalJSON for the --output yaml renderer.
func (k ErrorKind) MarshalYAML() (any, error) {
	return k.String(), nil
}

// Severity distinguishes fatal diagnostics from informational ones. Only
// PreferredMissing, and a downgraded url_reachable check when the caller opts
// in (see validate.Options.DowngradeURLReachability), are ever SeverityWarning.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "WARNING"
	}
	return "ERROR"
}

// MarshalJSON renders a Severity as its name rather than its ordinal.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// MarshalYAML mirrors MarshalJSON for the --output yaml renderer.
func (s Severity) MarshalYAML() (any, error) {
	return s.String(), nil
}

// Diagnostic is a single structured validation or compile issue.
type Diagnostic struct {
	Kind     ErrorKind `json:"kind" yaml:"kind"`
	Severity Severity  `json:"severity" yaml:"severity"`
	Message  string    `json:"message" yaml:"message"`
	Path     []string  `json:"path,omitempty" yaml:"path,omitempty"` // property names and numeric indices, outermost first
	Line     int       `json:"line,omitempty" yaml:"line,omitempty"` // 1-based, 0 if unknown
	Column   int       `json:"column,omitempty" yaml:"column,omitempty"`
	Expected string    `json:"expected,omitempty" yaml:"expected,omitempty"`
	Actual   string    `json:"actual,omitempty" yaml:"actual,omitempty"`
}

// PathString renders Path as dot-joined names with bracketed indices, e.g.
// "spec.containers[0].image".
func (d Diagnostic) PathString() string {
	var sb strings.Builder
	for i, seg := range d.Path {
		if seg == "" {
			continue
		}
		isIndex := len(seg) > 0 && seg[0] == '['
		if i > 0 && sb.Len() > 0 && !isIndex {
			sb.WriteByte('.')
		}
		sb.WriteString(seg)
	}
	return sb.String()
}

// Error implements error so a Diagnostic can be surfaced on its own when
// useful (e.g. wrapped into a fatal file-level error in directory mode).
func (d Diagnostic) Error() string {
	var details string
	switch {
	case d.Expected != "" && d.Actual != "":
		details = fmt.Sprintf(" (expected %s, got %s)", d.Expected, d.Actual)
	case d.Actual != "":
		details = fmt.Sprintf(" (got %s)", d.Actual)
	}

	var pos string
	if d.Line > 0 {
		if d.Column > 0 {
			pos = fmt.Sprintf("line %d:%d: ", d.Line, d.Column)
		} else {
			pos = fmt.Sprintf("line %d: ", d.Line)
		}
	}

	return fmt.Sprintf("[%s] %s%s%s (path: %s)", d.Kind, pos, d.Message, details, d.PathString())
}

// Collector accumulates diagnostics for a single validate() call so that all
// properties of a type continue to be visited after one stage fails.
type Collector struct {
	items []Diagnostic
}

// NewCollector returns an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Add records a diagnostic.
func (c *Collector) Add(d Diagnostic) {
	c.items = append(c.items, d)
}

// HasErrors reports whether any diagnostic is SeverityError (PreferredMissing
// and downgraded url_reachable warnings never cause this to be true).
func (c *Collector) HasErrors() bool {
	for _, d := range c.items {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// All returns every diagnostic in insertion order.
func (c *Collector) All() []Diagnostic {
	out := make([]Diagnostic, len(c.items))
	copy(out, c.items)
	return out
}

// Errors returns only SeverityError diagnostics.
func (c *Collector) Errors() []Diagnostic {
	var out []Diagnostic
	for _, d := range c.items {
		if d.Severity == SeverityError {
			out = append(out, d)
		}
	}
	return out
}

// Warnings returns only SeverityWarning diagnostics.
func (c *Collector) Warnings() []Diagnostic {
	var out []Diagnostic
	for _, d := range c.items {
		if d.Severity == SeverityWarning {
			out = append(out, d)
		}
	}
	return out
}

// Merge appends another Collector's diagnostics onto this one, preserving
// each side's relative order.
func (c *Collector) Merge(other *Collector) {
	if other == nil {
		return
	}
	c.items = append(c.items, other.items...)
}

// SortByPosition orders diagnostics by (line, column), errors before warnings
// at the same position.
func SortByPosition(items []Diagnostic) []Diagnostic {
	sorted := make([]Diagnostic, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Line != sorted[j].Line {
			return sorted[i].Line < sorted[j].Line
		}
		if sorted[i].Column != sorted[j].Column {
			return sorted[i].Column < sorted[j].Column
		}
		return sorted[i].Severity < sorted[j].Severity
	})
	return sorted
}

// FormatText renders one diagnostic as a single human-readable line:
// "❌ [<kind>] line <L>: <path> → <message>".
func FormatText(d Diagnostic) string {
	marker := "❌"
	if d.Severity == SeverityWarning {
		marker = "⚠️"
	}
	line := "?"
	if d.Line > 0 {
		line = fmt.Sprintf("%d", d.Line)
	}
	return fmt.Sprintf("%s [%s] line %s: %s → %s", marker, d.Kind, line, d.PathString(), d.Message)
}
