// Package registry is the single authority gating which shapes reach the
// store. Registrations serialize per target class, compare content hashes
// before touching the store, and collapse duplicates into cache hits.
package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/semforge/semforge/internal/compiler"
	"github.com/semforge/semforge/internal/shape"
	"github.com/semforge/semforge/internal/store"
)

// Outcome reports what a registration did.
type Outcome string

const (
	// OutcomeCreated means the shape was not in the store before.
	OutcomeCreated Outcome = "created"

	// OutcomeUnchanged means an identical shape was already registered;
	// the store was not written.
	OutcomeUnchanged Outcome = "unchanged"

	// OutcomeUpdated means a different version of the shape was replaced.
	OutcomeUpdated Outcome = "updated"
)

// Registration is the result of one Register call.
type Registration struct {
	Outcome     Outcome
	TargetClass string

	// Hash is the content hash now held by cache and store.
	Hash string
}

// Entry is a cached resolved shape.
type Entry struct {
	Descriptor *shape.ShapeDescriptor
	Hash       string
}

// Option configures a Registry.
type Option func(*Registry)

// StrictConstraints escalates unsupported-constraint diagnostics from
// warnings to registration failures. Off by default.
func StrictConstraints(strict bool) Option {
	return func(r *Registry) { r.strict = strict }
}

// Registry synchronizes shape registration and resolution over a graph
// store. Safe for concurrent use; registrations for distinct target
// classes proceed fully in parallel.
type Registry struct {
	store  store.GraphStore
	ns     shape.Namespace
	strict bool

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	cache map[string]Entry
}

// New creates a Registry over a store and namespace.
func New(st store.GraphStore, ns shape.Namespace, opts ...Option) *Registry {
	r := &Registry{
		store: st,
		ns:    ns,
		locks: make(map[string]*sync.Mutex),
		cache: make(map[string]Entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ShapeGraph returns the named graph holding one target class's shape.
func (r *Registry) ShapeGraph(targetClass string) string {
	return r.ns.Base() + "shapes/" + r.className(targetClass)
}

func (r *Registry) className(targetClass string) string {
	if name := strings.TrimPrefix(targetClass, r.ns.Base()); name != targetClass {
		return name
	}
	// Foreign class: last path segment keeps graph names readable.
	return targetClass[strings.LastIndex(targetClass, "/")+1:]
}

// Register installs a shape descriptor. The content hash is compared
// against cache and store before any write; an identical shape returns
// unchanged without touching the store. Different or absent shapes replace
// the shape graph in one atomic unit.
func (r *Registry) Register(ctx context.Context, desc *shape.ShapeDescriptor) (Registration, error) {
	if desc == nil {
		return Registration{}, fmt.Errorf("register: nil descriptor")
	}
	if problems := compiler.ValidateDescriptor(*desc); len(problems) > 0 {
		return Registration{}, &InvalidDescriptorError{
			TargetClass: desc.TargetClass,
			Problems:    problems,
		}
	}
	if r.strict {
		if field, c, found := unsupportedConstraint(desc); found {
			return Registration{}, fmt.Errorf(
				"register %s: field %s carries a constraint the target representation cannot express: %s",
				desc.TargetClass, field, c.Value,
			)
		}
	}

	hash, err := shape.ContentHash(desc)
	if err != nil {
		return Registration{}, fmt.Errorf("register %s: %w", desc.TargetClass, err)
	}

	lock := r.classLock(desc.TargetClass)
	lock.Lock()
	defer lock.Unlock()

	if entry, ok := r.cached(desc.TargetClass); ok && entry.Hash == hash {
		return Registration{Outcome: OutcomeUnchanged, TargetClass: desc.TargetClass, Hash: hash}, nil
	}

	stored, exists, err := r.storedHash(ctx, desc.TargetClass)
	if err != nil {
		return Registration{}, err
	}
	if exists && stored == hash {
		r.remember(desc.TargetClass, Entry{Descriptor: desc, Hash: hash})
		return Registration{Outcome: OutcomeUnchanged, TargetClass: desc.TargetClass, Hash: hash}, nil
	}

	if err := r.writeShape(ctx, desc, hash); err != nil {
		return Registration{}, err
	}
	r.remember(desc.TargetClass, Entry{Descriptor: desc, Hash: hash})

	outcome := OutcomeCreated
	if exists {
		outcome = OutcomeUpdated
	}
	return Registration{Outcome: outcome, TargetClass: desc.TargetClass, Hash: hash}, nil
}

// Resolve returns the shape registered for a target class, from cache if
// this registry has seen it, otherwise from the store.
func (r *Registry) Resolve(ctx context.Context, targetClass string) (*shape.ShapeDescriptor, error) {
	if entry, ok := r.cached(targetClass); ok {
		return entry.Descriptor, nil
	}

	lock := r.classLock(targetClass)
	lock.Lock()
	defer lock.Unlock()

	if entry, ok := r.cached(targetClass); ok {
		return entry.Descriptor, nil
	}

	triples, err := r.store.Select(ctx, store.Pattern{Graph: r.ShapeGraph(targetClass)})
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", targetClass, err)
	}
	if len(triples) == 0 {
		return nil, &NotFoundError{TargetClass: targetClass}
	}

	desc, hash, err := store.ShapeFromTriples(triples)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", targetClass, err)
	}
	if desc.TargetClass != targetClass {
		return nil, fmt.Errorf("resolve %s: shape graph holds %s", targetClass, desc.TargetClass)
	}

	r.remember(targetClass, Entry{Descriptor: desc, Hash: hash})
	return desc, nil
}

// Forget drops a target class from the cache. The store is untouched; the
// next Resolve re-reads it.
func (r *Registry) Forget(targetClass string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, targetClass)
}

func (r *Registry) writeShape(ctx context.Context, desc *shape.ShapeDescriptor, hash string) error {
	graph := r.ShapeGraph(desc.TargetClass)
	unit, err := r.store.BeginUnit(graph)
	if err != nil {
		return fmt.Errorf("register %s: %w", desc.TargetClass, err)
	}
	unit.ReplaceGraph()
	unit.Insert(store.ShapeTriples(desc, hash)...)

	if err := r.store.Commit(ctx, unit); err != nil {
		r.store.Rollback(unit)
		// A concurrent writer from another process may have won the
		// race. If the store now holds a different shape, surface the
		// divergence; the caller must re-read and retry.
		if stored, exists, readErr := r.storedHash(ctx, desc.TargetClass); readErr == nil && exists && stored != hash {
			return &ConflictError{
				TargetClass: desc.TargetClass,
				StoredHash:  stored,
				OfferedHash: hash,
				Err:         err,
			}
		}
		return fmt.Errorf("register %s: %w", desc.TargetClass, err)
	}
	return nil
}

// storedHash reads the sf:contentHash triple of a shape graph.
func (r *Registry) storedHash(ctx context.Context, targetClass string) (string, bool, error) {
	subject := store.IRI(targetClass + "Shape")
	pred := store.IRI(shape.SFContentHash)
	triples, err := r.store.Select(ctx, store.Pattern{
		Graph:     r.ShapeGraph(targetClass),
		Subject:   &subject,
		Predicate: &pred,
	})
	if err != nil {
		return "", false, fmt.Errorf("register %s: read stored hash: %w", targetClass, err)
	}
	if len(triples) == 0 {
		return "", false, nil
	}
	return triples[0].Object.Value, true, nil
}

func (r *Registry) classLock(targetClass string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[targetClass]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[targetClass] = lock
	}
	return lock
}

func (r *Registry) cached(targetClass string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.cache[targetClass]
	return entry, ok
}

func (r *Registry) remember(targetClass string, entry Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[targetClass] = entry
}

func unsupportedConstraint(desc *shape.ShapeDescriptor) (string, shape.ConstraintSpec, bool) {
	for _, f := range desc.Fields {
		for _, c := range f.Constraints {
			if c.Unsupported {
				return f.Name, c, true
			}
		}
	}
	return "", shape.ConstraintSpec{}, false
}
