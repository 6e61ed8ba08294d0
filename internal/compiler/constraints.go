package compiler

import (
	"fmt"
	"math/big"
	"regexp"
	"strconv"

	"github.com/semforge/semforge/internal/shape"
)

// MapConstraint translates one declared constraint into a constraint spec,
// or reports it as unexpressible. Pure; no side effects.
//
// Numeric and string bounds map one-to-one. An opaque predicate is returned
// with Unsupported set - the target representation cannot execute arbitrary
// predicates - together with a diagnostic; the caller decides whether that
// blocks registration (by default it does not).
func MapConstraint(def ConstraintDef) (shape.ConstraintSpec, *shape.ConstraintDiagnostic, error) {
	spec := shape.ConstraintSpec{Kind: def.Kind, Value: def.Value, Values: def.Values}

	switch def.Kind {
	case shape.ConstraintMinLength, shape.ConstraintMaxLength:
		n, err := strconv.Atoi(def.Value)
		if err != nil || n < 0 {
			return spec, nil, fmt.Errorf("%s must be a non-negative integer, got %q", def.Kind, def.Value)
		}

	case shape.ConstraintPattern:
		if _, err := regexp.Compile(def.Value); err != nil {
			return spec, nil, fmt.Errorf("pattern does not compile: %v", err)
		}

	case shape.ConstraintMinInclusive, shape.ConstraintMaxInclusive,
		shape.ConstraintMinExclusive, shape.ConstraintMaxExclusive:
		if _, ok := new(big.Rat).SetString(def.Value); !ok {
			return spec, nil, fmt.Errorf("%s bound is not numeric: %q", def.Kind, def.Value)
		}

	case shape.ConstraintEnum:
		if len(def.Values) == 0 {
			return spec, nil, fmt.Errorf("enumeration has no values")
		}

	case shape.ConstraintRequired:
		// No parameters.

	case shape.ConstraintOpaquePredicate:
		spec.Unsupported = true
		diag := &shape.ConstraintDiagnostic{
			Kind:      shape.ConstraintOpaquePredicate,
			Predicate: def.Value,
			Message:   "predicate is not expressible in the target constraint language; carried as opaque",
		}
		return spec, diag, nil

	default:
		return spec, nil, fmt.Errorf("unknown constraint kind %q", def.Kind)
	}

	return spec, nil, nil
}
