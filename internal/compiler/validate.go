package compiler

import (
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/semforge/semforge/internal/shape"
)

// Descriptor validation error codes (E110-E119)
const (
	ErrBadTargetClass   = "E110" // target class is not an absolute IRI
	ErrNoFields         = "E111" // shape has no fields
	ErrDuplicateDesc    = "E112" // duplicate field name
	ErrBadFieldName     = "E113" // field name is not a valid identifier
	ErrBadCardinality   = "E114" // min/max count out of range
	ErrIncompleteType   = "E115" // field type is missing required parts
	ErrBadConstraintVal = "E116" // constraint value is malformed
)

// ValidationError represents a descriptor validation error.
type ValidationError struct {
	Shape   string `json:"shape"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s.%s: %s", e.Code, e.Shape, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Shape, e.Message)
}

// fieldNamePattern matches field names the mapper produces: a letter or
// underscore followed by word characters.
var fieldNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidateDescriptor checks a shape descriptor against structural rules.
// Returns all errors found (does not fail-fast). Descriptors produced by
// the mapper always pass; this is the gate for descriptors recovered from
// external documents.
func ValidateDescriptor(desc shape.ShapeDescriptor) []ValidationError {
	var errs []ValidationError

	name := desc.TargetClass

	// E110: target class must be an absolute IRI
	if !isAbsoluteIRI(desc.TargetClass) {
		errs = append(errs, ValidationError{
			Shape:   name,
			Message: fmt.Sprintf("target class %q is not an absolute IRI", desc.TargetClass),
			Code:    ErrBadTargetClass,
		})
	}

	// E111: at least one field required
	if len(desc.Fields) == 0 {
		errs = append(errs, ValidationError{
			Shape:   name,
			Message: "shape must declare at least one field",
			Code:    ErrNoFields,
		})
	}

	seen := make(map[string]bool)
	for _, f := range desc.Fields {
		// E112: duplicate field name
		if seen[f.Name] {
			errs = append(errs, ValidationError{
				Shape:   name,
				Field:   f.Name,
				Message: fmt.Sprintf("duplicate field name: %q", f.Name),
				Code:    ErrDuplicateDesc,
			})
		}
		seen[f.Name] = true

		// E113: valid field name
		if !fieldNamePattern.MatchString(f.Name) {
			errs = append(errs, ValidationError{
				Shape:   name,
				Field:   f.Name,
				Message: fmt.Sprintf("invalid field name: %q", f.Name),
				Code:    ErrBadFieldName,
			})
		}

		errs = append(errs, validateCardinality(name, f)...)
		errs = append(errs, validateFieldType(name, f)...)

		for _, c := range f.Constraints {
			errs = append(errs, validateConstraintSpec(name, f.Name, c)...)
		}
	}

	return errs
}

// validateCardinality enforces MinCount >= 0 and MaxCount >= MinCount,
// with -1 meaning unbounded.
func validateCardinality(name string, f shape.FieldDescriptor) []ValidationError {
	var errs []ValidationError

	if f.MinCount < 0 {
		errs = append(errs, ValidationError{
			Shape:   name,
			Field:   f.Name,
			Message: fmt.Sprintf("min count must be non-negative, got %d", f.MinCount),
			Code:    ErrBadCardinality,
		})
	}
	if f.MaxCount != -1 && f.MaxCount < 1 {
		errs = append(errs, ValidationError{
			Shape:   name,
			Field:   f.Name,
			Message: fmt.Sprintf("max count must be positive or unbounded, got %d", f.MaxCount),
			Code:    ErrBadCardinality,
		})
	}
	if f.MaxCount != -1 && f.MaxCount < f.MinCount {
		errs = append(errs, ValidationError{
			Shape:   name,
			Field:   f.Name,
			Message: fmt.Sprintf("max count %d is below min count %d", f.MaxCount, f.MinCount),
			Code:    ErrBadCardinality,
		})
	}

	return errs
}

// validateFieldType checks that each type kind carries the parts it needs:
// primitives a datatype, nested references an IRI, unions their members.
func validateFieldType(name string, f shape.FieldDescriptor) []ValidationError {
	var errs []ValidationError
	add := func(msg string) {
		errs = append(errs, ValidationError{
			Shape: name, Field: f.Name, Message: msg, Code: ErrIncompleteType,
		})
	}

	switch f.Kind {
	case shape.KindPrimitive:
		if f.Datatype == "" {
			add("primitive field has no datatype")
		}
	case shape.KindList:
		if f.Datatype == "" && f.Nested == "" {
			add("list field has neither an element datatype nor an element class")
		}
		if f.Nested != "" && !isAbsoluteIRI(f.Nested) {
			add(fmt.Sprintf("element class %q is not an absolute IRI", f.Nested))
		}
	case shape.KindNested:
		if f.Nested == "" {
			add("nested field has no target class")
		} else if !isAbsoluteIRI(f.Nested) {
			add(fmt.Sprintf("nested class %q is not an absolute IRI", f.Nested))
		}
	case shape.KindUnion:
		if len(f.Members) < 2 {
			add("union field needs at least two members")
		}
		for _, m := range f.Members {
			if m.Datatype == "" && m.Nested == "" {
				add("union member has neither a datatype nor a class")
			}
		}
	default:
		add(fmt.Sprintf("unknown type kind: %q", f.Kind))
	}

	return errs
}

// validateConstraintSpec checks constraint values the way the mapper does,
// so externally recovered descriptors meet the same bar.
func validateConstraintSpec(name, field string, c shape.ConstraintSpec) []ValidationError {
	bad := func(msg string) []ValidationError {
		return []ValidationError{{
			Shape: name, Field: field, Message: msg, Code: ErrBadConstraintVal,
		}}
	}

	switch c.Kind {
	case shape.ConstraintMinLength, shape.ConstraintMaxLength:
		n, err := strconv.Atoi(c.Value)
		if err != nil || n < 0 {
			return bad(fmt.Sprintf("length constraint needs a non-negative integer, got %q", c.Value))
		}
	case shape.ConstraintPattern:
		if _, err := regexp.Compile(c.Value); err != nil {
			return bad(fmt.Sprintf("invalid pattern %q: %v", c.Value, err))
		}
	case shape.ConstraintMinInclusive, shape.ConstraintMaxInclusive,
		shape.ConstraintMinExclusive, shape.ConstraintMaxExclusive:
		if _, ok := new(big.Rat).SetString(c.Value); !ok {
			return bad(fmt.Sprintf("numeric bound %q is not a decimal literal", c.Value))
		}
	case shape.ConstraintEnum:
		if len(c.Values) == 0 {
			return bad("enumeration must list at least one value")
		}
	case shape.ConstraintRequired:
		// Carries no value.
	case shape.ConstraintOpaquePredicate:
		if strings.TrimSpace(c.Value) == "" {
			return bad("opaque predicate must carry its source text")
		}
	default:
		return bad(fmt.Sprintf("unknown constraint kind: %q", c.Kind))
	}

	return nil
}

var iriSchemePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*:`)

func isAbsoluteIRI(iri string) bool {
	return iriSchemePattern.MatchString(iri) && !strings.ContainsAny(iri, " <>\"{}|\\^`")
}
