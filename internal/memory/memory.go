// Package memory is the consumer surface over the graph store: it
// persists conforming data records as instance triples, fetches records
// back by query fragment, and keeps a small named graph of conversational
// context for downstream retrieval components.
package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/semforge/semforge/internal/query"
	"github.com/semforge/semforge/internal/shape"
	"github.com/semforge/semforge/internal/store"
	"github.com/semforge/semforge/internal/validator"
)

// Resolver supplies shapes for record validation and fragment checking.
// Satisfied by registry.Registry.
type Resolver interface {
	Resolve(ctx context.Context, targetClass string) (*shape.ShapeDescriptor, error)
}

// Memory persists and retrieves instance data. Records are re-validated
// against their registered shape before anything reaches the store.
type Memory struct {
	store    store.GraphStore
	resolver Resolver
	engine   *validator.Engine
	ns       shape.Namespace
}

// New creates a Memory over a store and shape resolver.
func New(st store.GraphStore, resolver Resolver, ns shape.Namespace) *Memory {
	return &Memory{
		store:    st,
		resolver: resolver,
		engine:   validator.New(resolver),
		ns:       ns,
	}
}

// DataGraph returns the named graph holding one target class's instances.
func (m *Memory) DataGraph(targetClass string) string {
	name := strings.TrimPrefix(targetClass, m.ns.Base())
	if name == targetClass {
		name = targetClass[strings.LastIndex(targetClass, "/")+1:]
	}
	return m.ns.Base() + "data/" + name
}

// SaveRecord validates a record against its registered shape and commits
// its full triple set, nested sub-instances included, as one atomic unit.
// Returns the instance IRI. A non-conforming record fails with
// ValidationFailedError and never reaches the store.
func (m *Memory) SaveRecord(ctx context.Context, rec *shape.DataRecord, id string) (string, error) {
	if rec == nil || rec.TargetClass == "" {
		return "", fmt.Errorf("save record: record carries no target class")
	}

	desc, err := m.resolver.Resolve(ctx, rec.TargetClass)
	if err != nil {
		return "", fmt.Errorf("save record: %w", err)
	}
	report, err := m.engine.Validate(ctx, rec, desc)
	if err != nil {
		return "", fmt.Errorf("save record: %w", err)
	}
	if !report.Conforms() {
		return "", &ValidationFailedError{TargetClass: rec.TargetClass, Report: report}
	}

	triples, subject, err := store.RecordTriples(m.ns, rec, id)
	if err != nil {
		return "", fmt.Errorf("save record: %w", err)
	}

	graph := m.DataGraph(rec.TargetClass)
	unit, err := m.store.BeginUnit(graph)
	if err != nil {
		return "", fmt.Errorf("save record: %w", err)
	}
	unit.Insert(triples...)
	if err := m.store.Commit(ctx, unit); err != nil {
		m.store.Rollback(unit)
		return "", fmt.Errorf("save record: %w", err)
	}
	return subject, nil
}

// FetchRecord loads one instance by IRI.
func (m *Memory) FetchRecord(ctx context.Context, targetClass, instance string) (*shape.DataRecord, error) {
	subject := store.IRI(instance)
	triples, err := m.store.Select(ctx, store.Pattern{
		Graph:   m.DataGraph(targetClass),
		Subject: &subject,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch record %s: %w", instance, err)
	}
	if len(triples) == 0 {
		return nil, fmt.Errorf("fetch record %s: no such instance", instance)
	}
	return store.RecordFromTriples(instance, targetClass, triples)
}

// FetchRecordsMatching returns the records whose instances match a query
// fragment, in deterministic instance-IRI order. The fragment is checked
// against the registered shape before any store call.
func (m *Memory) FetchRecordsMatching(ctx context.Context, f *query.Fragment) ([]*shape.DataRecord, error) {
	if f == nil {
		return nil, fmt.Errorf("fetch records: nil fragment")
	}

	desc, err := m.resolver.Resolve(ctx, f.TargetClass)
	if err != nil {
		return nil, fmt.Errorf("fetch records: %w", err)
	}
	if res := query.Validate(f, desc); !res.OK {
		return nil, &InvalidFragmentError{TargetClass: f.TargetClass, Problems: res.Problems}
	}

	graph := m.DataGraph(f.TargetClass)
	instances, err := m.store.Instances(ctx, graph, f)
	if err != nil {
		return nil, fmt.Errorf("fetch records: %w", err)
	}

	records := make([]*shape.DataRecord, 0, len(instances))
	for _, iri := range instances {
		rec, err := m.FetchRecord(ctx, f.TargetClass, iri)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Ping probes store connectivity.
func (m *Memory) Ping(ctx context.Context) error {
	return m.store.Ping(ctx)
}
