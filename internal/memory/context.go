package memory

import (
	"context"
	"fmt"

	"github.com/semforge/semforge/internal/shape"
	"github.com/semforge/semforge/internal/store"
)

// contextPredicate links a context entry to its text.
const contextPredicate = shape.SF + "context"

// ContextGraph returns the named graph holding conversational context.
func (m *Memory) ContextGraph() string {
	return m.ns.Base() + "data/memory"
}

func (m *Memory) contextIRI(key string) string {
	return m.ns.Base() + "memory/" + key
}

// SaveContext stores one keyed context entry, replacing any previous text
// for the key in the same unit.
func (m *Memory) SaveContext(ctx context.Context, key, text string) error {
	if key == "" {
		return fmt.Errorf("save context: empty key")
	}

	subject := store.IRI(m.contextIRI(key))
	existing, err := m.store.Select(ctx, store.Pattern{
		Graph:   m.ContextGraph(),
		Subject: &subject,
	})
	if err != nil {
		return fmt.Errorf("save context %s: %w", key, err)
	}

	unit, err := m.store.BeginUnit(m.ContextGraph())
	if err != nil {
		return fmt.Errorf("save context %s: %w", key, err)
	}
	unit.Delete(existing...)
	unit.Insert(store.Triple{
		Subject:   subject,
		Predicate: store.IRI(contextPredicate),
		Object:    store.Literal(text),
	})
	if err := m.store.Commit(ctx, unit); err != nil {
		m.store.Rollback(unit)
		return fmt.Errorf("save context %s: %w", key, err)
	}
	return nil
}

// LoadContext returns the text stored for a key, and whether it exists.
func (m *Memory) LoadContext(ctx context.Context, key string) (string, bool, error) {
	subject := store.IRI(m.contextIRI(key))
	pred := store.IRI(contextPredicate)
	triples, err := m.store.Select(ctx, store.Pattern{
		Graph:     m.ContextGraph(),
		Subject:   &subject,
		Predicate: &pred,
	})
	if err != nil {
		return "", false, fmt.Errorf("load context %s: %w", key, err)
	}
	if len(triples) == 0 {
		return "", false, nil
	}
	return triples[0].Object.Value, true, nil
}

// ClearContext removes one keyed entry. Clearing an absent key is a no-op.
func (m *Memory) ClearContext(ctx context.Context, key string) error {
	subject := store.IRI(m.contextIRI(key))
	existing, err := m.store.Select(ctx, store.Pattern{
		Graph:   m.ContextGraph(),
		Subject: &subject,
	})
	if err != nil {
		return fmt.Errorf("clear context %s: %w", key, err)
	}
	if len(existing) == 0 {
		return nil
	}

	unit, err := m.store.BeginUnit(m.ContextGraph())
	if err != nil {
		return fmt.Errorf("clear context %s: %w", key, err)
	}
	unit.Delete(existing...)
	if err := m.store.Commit(ctx, unit); err != nil {
		m.store.Rollback(unit)
		return fmt.Errorf("clear context %s: %w", key, err)
	}
	return nil
}

// ClearAllContext drops the whole context graph in one unit.
func (m *Memory) ClearAllContext(ctx context.Context) error {
	unit, err := m.store.BeginUnit(m.ContextGraph())
	if err != nil {
		return fmt.Errorf("clear context graph: %w", err)
	}
	unit.ReplaceGraph()
	if err := m.store.Commit(ctx, unit); err != nil {
		m.store.Rollback(unit)
		return fmt.Errorf("clear context graph: %w", err)
	}
	return nil
}
