package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/semforge/semforge/internal/query"
)

// TermKind classifies a triple term.
type TermKind string

const (
	TermIRI     TermKind = "iri"
	TermLiteral TermKind = "literal"
	TermBlank   TermKind = "blank"
)

// Term is one position of a triple.
type Term struct {
	Kind  TermKind
	Value string

	// Datatype is the literal's datatype IRI; empty means plain string.
	Datatype string
}

// IRI builds an IRI term.
func IRI(v string) Term { return Term{Kind: TermIRI, Value: v} }

// Literal builds a plain string literal term.
func Literal(v string) Term { return Term{Kind: TermLiteral, Value: v} }

// TypedLiteral builds a literal term with an explicit datatype IRI.
func TypedLiteral(v, datatype string) Term {
	return Term{Kind: TermLiteral, Value: v, Datatype: datatype}
}

// Blank builds a blank-node term with a label.
func Blank(label string) Term { return Term{Kind: TermBlank, Value: label} }

// Triple is one graph statement.
type Triple struct {
	Subject   Term
	Predicate Term
	Object    Term
}

// Pattern matches triples within one named graph. Nil positions are
// wildcards.
type Pattern struct {
	Graph     string
	Subject   *Term
	Predicate *Term
	Object    *Term
}

type unitState int

const (
	unitOpen unitState = iota
	unitCommitted
	unitRolledBack
)

// Unit buffers the smallest set of triples that must become visible
// atomically: one shape graph, or one instance's full triple set. Units are
// built client-side and applied in a single store operation on Commit, so
// a failed commit leaves nothing partially visible.
//
// A unit must be committed or rolled back before the operation that began
// it returns; handles do not leak across operations.
type Unit struct {
	Handle string
	Graph  string

	inserts []Triple
	deletes []Triple
	replace bool
	state   unitState
}

func newUnit(graph string) *Unit {
	return &Unit{Handle: uuid.NewString(), Graph: graph}
}

// Insert buffers triples for insertion.
func (u *Unit) Insert(ts ...Triple) { u.inserts = append(u.inserts, ts...) }

// Delete buffers triples for deletion.
func (u *Unit) Delete(ts ...Triple) { u.deletes = append(u.deletes, ts...) }

// ReplaceGraph marks the unit as a full-graph replacement: on commit the
// named graph is dropped before the buffered inserts are applied, in the
// same atomic operation.
func (u *Unit) ReplaceGraph() { u.replace = true }

// Open reports whether the unit is still uncommitted.
func (u *Unit) Open() bool { return u.state == unitOpen }

// GraphStore is the single seam between the core and triple storage.
//
// Read methods (Select, Ask, Instances) may be retried transparently on
// transient faults with bounded exponential backoff. Commit is never
// auto-retried: re-sending a non-idempotent update risks duplicate
// triples, so a failed commit surfaces as a TransactionError and the
// caller re-submits the whole unit explicitly.
type GraphStore interface {
	// Select returns the triples matching a pattern.
	Select(ctx context.Context, p Pattern) ([]Triple, error)

	// Ask reports whether any triple matches a pattern.
	Ask(ctx context.Context, p Pattern) (bool, error)

	// Instances returns the IRIs of instances matching a query fragment,
	// in deterministic order.
	Instances(ctx context.Context, graph string, f *query.Fragment) ([]string, error)

	// BeginUnit opens an atomic unit against a named graph.
	BeginUnit(graph string) (*Unit, error)

	// Commit applies a unit atomically. On failure nothing from the unit
	// is visible.
	Commit(ctx context.Context, u *Unit) error

	// Rollback discards a unit. Safe on already-committed units only as a
	// deferred cleanup (it is then a no-op).
	Rollback(u *Unit) error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	Close() error
}
