package compiler

import "github.com/semforge/semforge/internal/shape"

// Source is the adapter interface supplying schema definitions from a host
// type system. Any reflection mechanism, code generator, or hand-written
// declaration can satisfy it; the CUE adapter is the built-in implementation.
type Source interface {
	// Name returns the schema's declared name, unique within a namespace.
	Name() string

	// Fields returns the field definitions in declaration order.
	Fields() ([]FieldDef, error)
}

// TypeDefKind classifies a declared type at the adapter level.
type TypeDefKind int

const (
	TypeString TypeDefKind = iota
	TypeInteger
	TypeDecimal
	TypeBoolean
	TypeDateTime
	TypeList
	TypeUnion
	TypeSchema
)

// TypeDef is a host-agnostic declared type.
type TypeDef struct {
	Kind TypeDefKind

	// Elem is the element type for lists.
	Elem *TypeDef

	// Members are the disjunction members for unions.
	Members []TypeDef

	// Schema is the referenced schema for nested types, and for list
	// elements or union members of nested kind.
	Schema Source
}

// FieldDef is one field of a schema as supplied by an adapter.
type FieldDef struct {
	Name     string
	Optional bool
	Type     TypeDef

	// Constraints are the field's declared constraints in declaration
	// order, already keyed by the shared constraint kinds. A constraint
	// the adapter could not classify arrives as an opaque predicate
	// carrying its serialized form.
	Constraints []ConstraintDef
}

// ConstraintDef is a single declared constraint at the adapter level.
type ConstraintDef struct {
	Kind   shape.ConstraintKind
	Value  string
	Values []string
}
