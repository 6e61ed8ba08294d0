package memory

import (
	"fmt"
	"strings"

	"github.com/semforge/semforge/internal/validator"
)

// ValidationFailedError rejects a record that does not conform to its
// registered shape. The full report rides along.
type ValidationFailedError struct {
	TargetClass string
	Report      *validator.Report
}

func (e *ValidationFailedError) Error() string {
	n := len(e.Report.Violations())
	return fmt.Sprintf("record does not conform to %s: %d violation(s)", e.TargetClass, n)
}

// InvalidFragmentError rejects a query fragment that does not fit the
// registered shape.
type InvalidFragmentError struct {
	TargetClass string
	Problems    []string
}

func (e *InvalidFragmentError) Error() string {
	return fmt.Sprintf("query fragment does not fit %s: %s",
		e.TargetClass, strings.Join(e.Problems, "; "))
}
