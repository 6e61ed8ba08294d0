package validator

import (
	"fmt"

	"github.com/semforge/semforge/internal/shape"
)

// Severity grades a validation result.
type Severity string

const (
	// SeverityViolation marks a failed constraint. Any violation fails
	// the report.
	SeverityViolation Severity = "violation"

	// SeverityWarning marks a finding that does not block conformance,
	// such as a constraint the engine cannot evaluate.
	SeverityWarning Severity = "warning"
)

// Result is one finding against one field path.
type Result struct {
	// Path locates the field: dotted segments with [i] list indexing,
	// e.g. "addresses[1].state".
	Path string `json:"path"`

	// Constraint is the violated (or unevaluated) constraint kind.
	Constraint shape.ConstraintKind `json:"constraint"`

	Severity Severity `json:"severity"`
	Message  string   `json:"message"`

	// Value is the offending value's lexical form, when it has one.
	Value string `json:"value,omitempty"`
}

func (r Result) String() string {
	return fmt.Sprintf("%s %s at %s: %s", r.Severity, r.Constraint, r.Path, r.Message)
}

// Report is the complete outcome of validating one record. Validation
// failure is a normal, fully described result, not an error.
type Report struct {
	TargetClass string   `json:"target_class"`
	Results     []Result `json:"results,omitempty"`
}

// Conforms reports whether the record passed: no violation-severity
// results. Warnings never block conformance.
func (r *Report) Conforms() bool {
	for _, res := range r.Results {
		if res.Severity == SeverityViolation {
			return false
		}
	}
	return true
}

// Violations returns only the violation-severity results.
func (r *Report) Violations() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Severity == SeverityViolation {
			out = append(out, res)
		}
	}
	return out
}

// Warnings returns only the warning-severity results.
func (r *Report) Warnings() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Severity == SeverityWarning {
			out = append(out, res)
		}
	}
	return out
}

func (r *Report) add(res Result) { r.Results = append(r.Results, res) }
