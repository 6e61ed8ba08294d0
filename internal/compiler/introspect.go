package compiler

import (
	"github.com/semforge/semforge/internal/shape"
)

// Model is the result of introspecting one schema: its ordered field
// descriptors plus the nested schemas it references, keyed by target-class
// IRI, so the generator can walk children before parents.
type Model struct {
	Name        string
	TargetClass string
	Fields      []shape.FieldDescriptor
	Nested      map[string]Source
	Diagnostics []shape.ConstraintDiagnostic
}

// Introspector walks schema definitions supplied by a Source adapter and
// produces field descriptors. Field order is schema declaration order.
//
// Nested schemas are always emitted as references by target-class IRI, never
// inlined, so self- and mutually-recursive schemas cannot cause unbounded
// introspection: revisiting a schema identity is detected by the caller's
// visited set (see generator) against the Nested map this produces.
type Introspector struct {
	ns shape.Namespace
}

// NewIntrospector creates an Introspector for a base namespace.
func NewIntrospector(ns shape.Namespace) *Introspector {
	return &Introspector{ns: ns}
}

// Namespace returns the namespace the introspector assigns IRIs under.
func (in *Introspector) Namespace() shape.Namespace { return in.ns }

// Introspect decomposes one schema into a Model.
// Returns *SchemaError when a field's declared type cannot be classified
// into the supported taxonomy.
func (in *Introspector) Introspect(src Source) (*Model, error) {
	defs, err := src.Fields()
	if err != nil {
		if se, ok := err.(*SchemaError); ok {
			return nil, se
		}
		return nil, &SchemaError{
			Schema:  src.Name(),
			Code:    ErrUnclassifiableType,
			Message: err.Error(),
		}
	}
	if len(defs) == 0 {
		return nil, &SchemaError{
			Schema:  src.Name(),
			Code:    ErrEmptySchema,
			Message: "schema declares no fields",
		}
	}

	m := &Model{
		Name:        src.Name(),
		TargetClass: in.ns.ClassIRI(src.Name()),
		Nested:      make(map[string]Source),
	}

	seen := make(map[string]bool, len(defs))
	for _, def := range defs {
		if seen[def.Name] {
			return nil, &SchemaError{
				Schema:  src.Name(),
				Field:   def.Name,
				Code:    ErrDuplicateField,
				Message: "duplicate field name",
			}
		}
		seen[def.Name] = true

		fd, err := in.introspectField(src.Name(), def, m)
		if err != nil {
			return nil, err
		}
		m.Fields = append(m.Fields, fd)
	}

	return m, nil
}

func (in *Introspector) introspectField(schemaName string, def FieldDef, m *Model) (shape.FieldDescriptor, error) {
	fd, err := MapType(in.ns, def.Type, def.Optional)
	if err != nil {
		return fd, &SchemaError{
			Schema:  schemaName,
			Field:   def.Name,
			Code:    ErrUnclassifiableType,
			Message: err.Error(),
		}
	}
	fd.Name = def.Name

	in.recordNested(def.Type, m)

	// Required fields carry an explicit constraint spec ahead of the value
	// constraints; cardinality and constraint list must agree.
	if fd.MinCount >= 1 {
		fd.Constraints = append(fd.Constraints, shape.ConstraintSpec{Kind: shape.ConstraintRequired})
	}

	for _, c := range def.Constraints {
		spec, diag, err := MapConstraint(c)
		if err != nil {
			code := ErrBadConstraint
			if c.Kind == shape.ConstraintPattern {
				code = ErrBadPattern
			}
			return fd, &SchemaError{
				Schema:  schemaName,
				Field:   def.Name,
				Code:    code,
				Message: err.Error(),
			}
		}
		fd.Constraints = append(fd.Constraints, spec)
		if diag != nil {
			diag.Field = def.Name
			m.Diagnostics = append(m.Diagnostics, *diag)
		}
	}

	return fd, nil
}

// recordNested registers every schema reference reachable from a type def.
func (in *Introspector) recordNested(def TypeDef, m *Model) {
	switch def.Kind {
	case TypeSchema:
		if def.Schema != nil {
			m.Nested[in.ns.ClassIRI(def.Schema.Name())] = def.Schema
		}
	case TypeList:
		if def.Elem != nil {
			in.recordNested(*def.Elem, m)
		}
	case TypeUnion:
		for _, member := range def.Members {
			in.recordNested(member, m)
		}
	}
}

// Descriptor assembles the model into a shape descriptor without resolving
// nested references; the generator is responsible for that.
func (m *Model) Descriptor(closed bool) *shape.ShapeDescriptor {
	return &shape.ShapeDescriptor{
		TargetClass: m.TargetClass,
		Fields:      m.Fields,
		Closed:      closed,
		Diagnostics: m.Diagnostics,
	}
}
