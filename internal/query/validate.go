package query

import (
	"fmt"

	"github.com/semforge/semforge/internal/shape"
)

// ValidationResult contains the fragment analysis of a query.
type ValidationResult struct {
	// OK indicates the query stays inside the portable fragment and is
	// consistent with the shape it targets.
	OK bool

	// Problems lists everything that keeps the query from compiling.
	// Empty when OK is true.
	Problems []string
}

// Validate checks a fragment against the shape descriptor of its target
// class. Problems are accumulated rather than fail-fast, so a caller sees
// every issue at once.
//
// Rules:
//  1. Every condition field must exist on the shape
//  2. Condition values must be scalars matching the field's datatype
//  3. Ordering operators require an ordered datatype (numeric or dateTime)
//  4. contains applies to string fields only
//
// Validate is a pure function with no side effects.
func Validate(f *Fragment, desc *shape.ShapeDescriptor) ValidationResult {
	v := &validator{desc: desc}

	if f.TargetClass == "" {
		v.addProblem("fragment has no target class")
	} else if desc != nil && f.TargetClass != desc.TargetClass {
		v.addProblem("fragment targets %q but shape describes %q", f.TargetClass, desc.TargetClass)
	}
	if f.Limit < 0 {
		v.addProblem("negative limit %d", f.Limit)
	}
	v.validateCondition(f.Filter)

	return ValidationResult{
		OK:       len(v.problems) == 0,
		Problems: v.problems,
	}
}

type validator struct {
	desc     *shape.ShapeDescriptor
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateCondition(c Condition) {
	if c == nil {
		return // nil conditions are valid (no filter)
	}

	switch cond := c.(type) {
	case Compare:
		v.validateCompare(cond)
	case *Compare:
		v.validateCompare(*cond)
	case All:
		for _, sub := range cond.Conditions {
			v.validateCondition(sub)
		}
	case *All:
		for _, sub := range cond.Conditions {
			v.validateCondition(sub)
		}
	default:
		v.addProblem("unknown condition type: %T", c)
	}
}

func (v *validator) validateCompare(c Compare) {
	if c.Field == "" {
		v.addProblem("comparison with empty field name")
		return
	}
	if _, ok := shape.Lexical(c.Value); !ok {
		v.addProblem("field %q compared to a non-scalar value", c.Field)
		return
	}

	if v.desc == nil {
		return // structural checks only when no shape is supplied
	}

	fd, ok := v.desc.Field(c.Field)
	if !ok {
		v.addProblem("field %q is not declared by the target shape", c.Field)
		return
	}

	switch fd.Kind {
	case shape.KindNested:
		if _, isRef := c.Value.(shape.Ref); !isRef || c.Op != OpEq {
			v.addProblem("nested field %q supports only equality against an instance IRI", c.Field)
		}
		return
	case shape.KindUnion:
		// Union members disagree on datatype; only equality is portable.
		if c.Op != OpEq && c.Op != OpNe {
			v.addProblem("union field %q supports only equality comparisons", c.Field)
		}
		return
	}

	dt := fd.Datatype
	if vd := shape.ValueDatatype(c.Value); vd != "" && dt != "" && vd != dt {
		v.addProblem("field %q holds %s but is compared to %s", c.Field, dt, vd)
	}
	if orderingOps[c.Op] && dt != shape.DatatypeInteger && dt != shape.DatatypeDecimal && dt != shape.DatatypeDateTime {
		v.addProblem("operator %q on field %q requires an ordered datatype", c.Op, c.Field)
	}
	if c.Op == OpContains && dt != shape.DatatypeString {
		v.addProblem("contains on field %q requires a string datatype", c.Field)
	}
}
