// Package query defines a portable record-query fragment and its two
// backend compilers.
//
// A Fragment selects instances of one target class by field conditions. The
// fragment is deliberately small: conjunctions of scalar comparisons, an
// optional result limit, nothing else. Both backends implement the whole
// fragment, so a query that validates runs identically against the SPARQL
// endpoint and the embedded quad store.
package query

import "github.com/semforge/semforge/internal/shape"

// Fragment selects instances of a target class.
type Fragment struct {
	TargetClass string    // class IRI whose instances are selected
	Filter      Condition // nil = every instance
	Limit       int       // 0 = no limit
}

// Condition represents a filter in the query fragment.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in the backend compilers.
type Condition interface {
	conditionNode() // Marker method - seals interface to this package
}

// Op enumerates the comparison operators of the fragment.
type Op string

const (
	OpEq       Op = "="
	OpNe       Op = "!="
	OpLt       Op = "<"
	OpLe       Op = "<="
	OpGt       Op = ">"
	OpGe       Op = ">="
	OpContains Op = "contains"
)

// orderingOps are the operators requiring an ordered datatype.
var orderingOps = map[Op]bool{
	OpLt: true, OpLe: true, OpGt: true, OpGe: true,
}

// Compare filters instances by one field against a literal value.
//
// Semantics:
//
//	<field> <op> <value>
//
// The value must be a scalar (String, Integer, Decimal, Bool, Time, Ref);
// sequences and nested records are not comparable in the fragment.
type Compare struct {
	Field string
	Op    Op
	Value shape.Value
}

func (Compare) conditionNode() {}

// All is a conjunction: every condition must hold. An empty conjunction is
// always true.
type All struct {
	Conditions []Condition
}

func (All) conditionNode() {}
