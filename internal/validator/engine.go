// Package validator re-checks data records against registered shapes.
//
// The engine is a defense-in-depth verifier: it never trusts that a record
// was validated by its origin schema and independently evaluates every
// cardinality and value constraint. Validation failure is a report, not an
// error; errors are reserved for infrastructure faults such as the store
// being unreachable while a nested shape resolves.
package validator

import (
	"context"
	"fmt"
	"sort"

	"github.com/semforge/semforge/internal/shape"
)

// Resolver supplies shapes for nested references. Satisfied by
// registry.Registry.
type Resolver interface {
	Resolve(ctx context.Context, targetClass string) (*shape.ShapeDescriptor, error)
}

// Engine validates records against shape descriptors. Stateless across
// calls; safe for concurrent use.
type Engine struct {
	resolver Resolver
}

// New creates an Engine. The resolver may be nil when no shape under
// validation carries nested references.
func New(resolver Resolver) *Engine {
	return &Engine{resolver: resolver}
}

// Validate checks a record against a shape descriptor and returns the
// complete report. Every applicable constraint is evaluated; there is no
// early exit, so a failing report lists everything wrong.
func (e *Engine) Validate(ctx context.Context, rec *shape.DataRecord, desc *shape.ShapeDescriptor) (*Report, error) {
	if rec == nil {
		return nil, fmt.Errorf("validate: nil record")
	}
	if desc == nil {
		return nil, fmt.Errorf("validate: nil shape descriptor")
	}

	report := &Report{TargetClass: desc.TargetClass}
	visited := map[string]bool{desc.TargetClass: true}
	if err := e.walkRecord(ctx, rec, desc, "", visited, report); err != nil {
		return nil, err
	}
	return report, nil
}

// ValidateRecord resolves the shape from the record's own target class
// before validating.
func (e *Engine) ValidateRecord(ctx context.Context, rec *shape.DataRecord) (*Report, error) {
	if rec == nil {
		return nil, fmt.Errorf("validate: nil record")
	}
	if rec.TargetClass == "" {
		return nil, fmt.Errorf("validate: record carries no target class")
	}
	desc, err := e.resolveShape(ctx, rec.TargetClass)
	if err != nil {
		return nil, err
	}
	return e.Validate(ctx, rec, desc)
}

func (e *Engine) resolveShape(ctx context.Context, targetClass string) (*shape.ShapeDescriptor, error) {
	if e.resolver == nil {
		return nil, fmt.Errorf("validate: no resolver for shape %s", targetClass)
	}
	desc, err := e.resolver.Resolve(ctx, targetClass)
	if err != nil {
		return nil, fmt.Errorf("validate: resolve shape %s: %w", targetClass, err)
	}
	return desc, nil
}

func (e *Engine) walkRecord(ctx context.Context, rec *shape.DataRecord, desc *shape.ShapeDescriptor, prefix string, visited map[string]bool, report *Report) error {
	for _, f := range desc.Fields {
		if err := e.checkField(ctx, rec, f, prefix, visited, report); err != nil {
			return err
		}
	}

	if desc.Closed {
		declared := make(map[string]bool, len(desc.Fields))
		for _, f := range desc.Fields {
			declared[f.Name] = true
		}
		extras := make([]string, 0)
		for name := range rec.Fields {
			if !declared[name] {
				extras = append(extras, name)
			}
		}
		sort.Strings(extras)
		for _, name := range extras {
			report.add(Result{
				Path:       fieldPath(prefix, name),
				Constraint: shape.ConstraintUnexpectedField,
				Severity:   SeverityViolation,
				Message:    "field is not declared by the shape",
			})
		}
	}
	return nil
}

func (e *Engine) checkField(ctx context.Context, rec *shape.DataRecord, f shape.FieldDescriptor, prefix string, visited map[string]bool, report *Report) error {
	path := fieldPath(prefix, f.Name)
	values, indexed := presentValues(rec.Fields[f.Name])

	switch {
	case len(values) == 0 && f.MinCount >= 1:
		report.add(Result{
			Path:       path,
			Constraint: shape.ConstraintRequired,
			Severity:   SeverityViolation,
			Message:    "required value is absent",
		})
	case len(values) < f.MinCount:
		report.add(Result{
			Path:       path,
			Constraint: shape.ConstraintMinCount,
			Severity:   SeverityViolation,
			Message:    fmt.Sprintf("%d values present, minimum is %d", len(values), f.MinCount),
		})
	}
	if f.MaxCount >= 0 && len(values) > f.MaxCount {
		report.add(Result{
			Path:       path,
			Constraint: shape.ConstraintMaxCount,
			Severity:   SeverityViolation,
			Message:    fmt.Sprintf("%d values present, maximum is %d", len(values), f.MaxCount),
		})
	}

	// Unsupported predicates surface once per field, whether or not a
	// value is present. They never block conformance.
	for _, c := range f.Constraints {
		if c.Kind == shape.ConstraintOpaquePredicate {
			report.add(Result{
				Path:       path,
				Constraint: c.Kind,
				Severity:   SeverityWarning,
				Message:    fmt.Sprintf("predicate not evaluated: %s", c.Value),
			})
		}
	}

	for i, v := range values {
		vpath := path
		if indexed {
			vpath = fmt.Sprintf("%s[%d]", path, i)
		}
		if err := e.checkValue(ctx, v, f, vpath, visited, report); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) checkValue(ctx context.Context, v shape.Value, f shape.FieldDescriptor, path string, visited map[string]bool, report *Report) error {
	switch {
	case len(f.Members) > 0:
		return e.checkUnionValue(ctx, v, f, path, visited, report)
	case f.Nested != "":
		return e.checkNestedValue(ctx, v, f.Nested, path, visited, report)
	default:
		e.checkPrimitiveValue(v, f, path, report)
		return nil
	}
}

func (e *Engine) checkPrimitiveValue(v shape.Value, f shape.FieldDescriptor, path string, report *Report) {
	lex, scalar := shape.Lexical(v)
	if !scalar {
		report.add(Result{
			Path:       path,
			Constraint: shape.ConstraintDatatype,
			Severity:   SeverityViolation,
			Message:    fmt.Sprintf("expected a %s value", datatypeName(f.Datatype)),
		})
		return
	}
	if !datatypeAccepts(f.Datatype, v) {
		report.add(Result{
			Path:       path,
			Constraint: shape.ConstraintDatatype,
			Severity:   SeverityViolation,
			Message:    fmt.Sprintf("value is not a %s", datatypeName(f.Datatype)),
			Value:      lex,
		})
	}

	for _, c := range f.Constraints {
		switch c.Kind {
		case shape.ConstraintRequired, shape.ConstraintOpaquePredicate:
			// Handled at field level.
		default:
			if res, violated := evalConstraint(c, v, lex); violated {
				res.Path = path
				report.add(res)
			}
		}
	}
}

func (e *Engine) checkNestedValue(ctx context.Context, v shape.Value, nested, path string, visited map[string]bool, report *Report) error {
	switch val := v.(type) {
	case shape.Ref:
		// A reference to a stored instance; the referenced instance is
		// validated against its own shape when it is registered.
		return nil
	case *shape.DataRecord:
		return e.descend(ctx, val, nested, path, visited, report)
	default:
		report.add(Result{
			Path:       path,
			Constraint: shape.ConstraintDatatype,
			Severity:   SeverityViolation,
			Message:    fmt.Sprintf("expected a nested %s record", nested),
		})
		return nil
	}
}

func (e *Engine) checkUnionValue(ctx context.Context, v shape.Value, f shape.FieldDescriptor, path string, visited map[string]bool, report *Report) error {
	if rec, ok := v.(*shape.DataRecord); ok {
		if member, ok := unionRecordMember(f.Members, rec); ok {
			return e.descend(ctx, rec, member, path, visited, report)
		}
		report.add(Result{
			Path:       path,
			Constraint: shape.ConstraintDatatype,
			Severity:   SeverityViolation,
			Message:    "record conforms to no member of the union",
		})
		return nil
	}

	if _, ok := v.(shape.Ref); ok {
		for _, m := range f.Members {
			if m.Nested != "" {
				return nil
			}
		}
	}

	lex, scalar := shape.Lexical(v)
	if scalar {
		for _, m := range f.Members {
			if m.Datatype != "" && datatypeAccepts(m.Datatype, v) {
				e.checkScalarConstraints(v, lex, f, path, report)
				return nil
			}
		}
	}
	report.add(Result{
		Path:       path,
		Constraint: shape.ConstraintDatatype,
		Severity:   SeverityViolation,
		Message:    "value conforms to no member of the union",
		Value:      lex,
	})
	return nil
}

func (e *Engine) checkScalarConstraints(v shape.Value, lex string, f shape.FieldDescriptor, path string, report *Report) {
	for _, c := range f.Constraints {
		switch c.Kind {
		case shape.ConstraintRequired, shape.ConstraintOpaquePredicate:
		default:
			if res, violated := evalConstraint(c, v, lex); violated {
				res.Path = path
				report.add(res)
			}
		}
	}
}

// descend validates a nested record against its referenced shape. Re-entry
// of a target class already on the current path short-circuits as pass; a
// pre-existing violation was recorded on first descent.
func (e *Engine) descend(ctx context.Context, rec *shape.DataRecord, targetClass, path string, visited map[string]bool, report *Report) error {
	if visited[targetClass] {
		return nil
	}
	desc, err := e.resolveShape(ctx, targetClass)
	if err != nil {
		return err
	}

	visited[targetClass] = true
	defer delete(visited, targetClass)
	return e.walkRecord(ctx, rec, desc, path, visited, report)
}

// presentValues flattens a field value into its present values. The second
// return reports whether result paths should be indexed.
func presentValues(v shape.Value) ([]shape.Value, bool) {
	switch val := v.(type) {
	case nil:
		return nil, false
	case shape.Sequence:
		return val, true
	default:
		return []shape.Value{v}, false
	}
}

func fieldPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// unionRecordMember picks the union member a nested record claims, by
// declared target class first, falling back to a sole nested member.
func unionRecordMember(members []shape.TypeRef, rec *shape.DataRecord) (string, bool) {
	var sole string
	nested := 0
	for _, m := range members {
		if m.Nested == "" {
			continue
		}
		if rec.TargetClass != "" && m.Nested == rec.TargetClass {
			return m.Nested, true
		}
		sole = m.Nested
		nested++
	}
	if rec.TargetClass == "" && nested == 1 {
		return sole, true
	}
	return "", false
}
