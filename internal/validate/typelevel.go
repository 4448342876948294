package validate

import (
	"fmt"

	"github.com/yasl-lang/yasl/internal/diagnostic"
	"github.com/yasl-lang/yasl/internal/typesys"
)

// typeLevelState is what EvaluateTypeValidators needs about one type
// instance: which properties were present in the document, and the decoded
// scalar value of each (for if_then's eval comparison).
type typeLevelState struct {
	Present map[string]bool
	Values  map[string]any
}

// EvaluateTypeValidators runs only_one/at_least_one/if_then once per type
// instance, after every property of that instance has gone through its
// PropertyPipeline.
func EvaluateTypeValidators(tv *typesys.TypeValidators, st *typeLevelState, collector *diagnostic.Collector, path []string, line int) {
	if tv == nil {
		return
	}

	add := func(format string, args ...any) {
		collector.Add(diagnostic.Diagnostic{
			Kind:     diagnostic.KindConstraintViolation,
			Severity: diagnostic.SeverityError,
			Message:  fmt.Sprintf(format, args...),
			Path:     append([]string{}, path...),
			Line:     line,
		})
	}

	if len(tv.OnlyOne) > 0 {
		n := 0
		for _, name := range tv.OnlyOne {
			if st.Present[name] {
				n++
			}
		}
		if n != 1 {
			add("exactly one of %v must be set, found %d", tv.OnlyOne, n)
		}
	}

	if len(tv.AtLeastOne) > 0 {
		n := 0
		for _, name := range tv.AtLeastOne {
			if st.Present[name] {
				n++
			}
		}
		if n < 1 {
			add("at least one of %v must be set", tv.AtLeastOne)
		}
	}

	for _, clause := range tv.IfThen {
		evalValue, ok := st.Values[clause.Eval]
		if !ok {
			continue
		}
		// Coerce clause.Value literals to the runtime type of data[eval] by
		// comparing string representations - the eval target can be any
		// primitive kind, and every primitive kind's Go value has a stable
		// fmt representation (int64, float64, string, bool, time.Time...).
		matched := false
		evalStr := fmt.Sprintf("%v", evalValue)
		for _, lit := range clause.Value {
			if lit == evalStr {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		for _, name := range clause.Present {
			if !st.Present[name] {
				add("when %s is %s, %s must be present", clause.Eval, evalStr, name)
			}
		}
		for _, name := range clause.Absent {
			if st.Present[name] {
				add("when %s is %s, %s must be absent", clause.Eval, evalStr, name)
			}
		}
	}
}
