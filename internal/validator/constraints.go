package validator

import (
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/semforge/semforge/internal/shape"
)

// datatypeAccepts reports whether a scalar value conforms to a datatype
// tag. Integers conform to the decimal tag; the reverse does not hold.
func datatypeAccepts(dt shape.Datatype, v shape.Value) bool {
	got := shape.ValueDatatype(v)
	if got == dt {
		return true
	}
	return dt == shape.DatatypeDecimal && got == shape.DatatypeInteger
}

func datatypeName(dt shape.Datatype) string {
	switch dt {
	case shape.DatatypeString:
		return "string"
	case shape.DatatypeInteger:
		return "integer"
	case shape.DatatypeDecimal:
		return "decimal"
	case shape.DatatypeBoolean:
		return "boolean"
	case shape.DatatypeDateTime:
		return "dateTime"
	default:
		return string(dt)
	}
}

// evalConstraint evaluates one value constraint against a scalar value.
// Returns the result (path unset) and whether the constraint is violated.
func evalConstraint(c shape.ConstraintSpec, v shape.Value, lex string) (Result, bool) {
	switch c.Kind {
	case shape.ConstraintMinLength:
		n, _ := strconv.Atoi(c.Value)
		if length := utf8.RuneCountInString(lex); length < n {
			return violation(c.Kind, lex, "length %d under minimum %d", length, n), true
		}
	case shape.ConstraintMaxLength:
		n, _ := strconv.Atoi(c.Value)
		if length := utf8.RuneCountInString(lex); length > n {
			return violation(c.Kind, lex, "length %d over maximum %d", length, n), true
		}
	case shape.ConstraintPattern:
		re, err := regexp.Compile(c.Value)
		if err != nil {
			// Descriptor validation rejects broken patterns before
			// registration; a stored shape reaching here is corrupt.
			return violation(c.Kind, lex, "pattern %q does not compile", c.Value), true
		}
		if !re.MatchString(lex) {
			return violation(c.Kind, lex, "value does not match pattern %q", c.Value), true
		}
	case shape.ConstraintMinInclusive:
		if cmp, ok := compareOrdered(v, lex, c.Value); ok && cmp < 0 {
			return violation(c.Kind, lex, "value %s under inclusive minimum %s", lex, c.Value), true
		}
	case shape.ConstraintMaxInclusive:
		if cmp, ok := compareOrdered(v, lex, c.Value); ok && cmp > 0 {
			return violation(c.Kind, lex, "value %s over inclusive maximum %s", lex, c.Value), true
		}
	case shape.ConstraintMinExclusive:
		if cmp, ok := compareOrdered(v, lex, c.Value); ok && cmp <= 0 {
			return violation(c.Kind, lex, "value %s not over exclusive minimum %s", lex, c.Value), true
		}
	case shape.ConstraintMaxExclusive:
		if cmp, ok := compareOrdered(v, lex, c.Value); ok && cmp >= 0 {
			return violation(c.Kind, lex, "value %s not under exclusive maximum %s", lex, c.Value), true
		}
	case shape.ConstraintEnum:
		for _, allowed := range c.Values {
			if lex == allowed {
				return Result{}, false
			}
		}
		return violation(c.Kind, lex, "value %q is not among the enumerated values", lex), true
	}
	return Result{}, false
}

func violation(kind shape.ConstraintKind, lex, format string, args ...any) Result {
	return Result{
		Constraint: kind,
		Severity:   SeverityViolation,
		Message:    fmt.Sprintf(format, args...),
		Value:      lex,
	}
}

// compareOrdered compares a value's lexical form against a bound. Numeric
// values compare as rationals so no float ever enters the comparison;
// dateTime values compare chronologically.
func compareOrdered(v shape.Value, lex, bound string) (int, bool) {
	if t, ok := v.(shape.Time); ok {
		b, err := time.Parse(time.RFC3339, bound)
		if err != nil {
			return 0, false
		}
		return time.Time(t).UTC().Compare(b.UTC()), true
	}

	a, ok := new(big.Rat).SetString(lex)
	if !ok {
		return 0, false
	}
	b, ok := new(big.Rat).SetString(bound)
	if !ok {
		return 0, false
	}
	return a.Cmp(b), true
}
