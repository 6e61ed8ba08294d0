// Package generator assembles introspected models into shape descriptors.
//
// Generation is topological: every nested schema reference is generated
// before the shape that references it, so a batch can be registered in
// result order without dangling references. Cycles are permitted because
// shapes reference each other by target-class IRI rather than inlining;
// a schema already on the active generation path is not re-entered.
package generator

import (
	"fmt"
	"sort"

	"github.com/semforge/semforge/internal/compiler"
	"github.com/semforge/semforge/internal/shape"
)

// Shape is one generated shape: the descriptor plus its content hash.
type Shape struct {
	Name       string
	Descriptor *shape.ShapeDescriptor
	Hash       string
}

// Result holds generated shapes in children-before-parents order, plus any
// reference-cycle warnings detected across the batch.
type Result struct {
	Shapes   []Shape
	Warnings []compiler.CycleWarning
}

// Shape returns the generated shape for a target class, or nil.
func (r *Result) Shape(targetClass string) *Shape {
	for i := range r.Shapes {
		if r.Shapes[i].Descriptor.TargetClass == targetClass {
			return &r.Shapes[i]
		}
	}
	return nil
}

// GenerationError reports a shape that could not be generated. Failures in
// a nested schema name both the parent and the nested schema, so the chain
// reads outward-in.
type GenerationError struct {
	Schema string
	Nested string // nested schema that failed, when the failure is not the root's
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Nested != "" {
		return fmt.Sprintf("generate shape for %q: nested schema %q: %v", e.Schema, e.Nested, e.Err)
	}
	return fmt.Sprintf("generate shape for %q: %v", e.Schema, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Generator produces shape descriptors from schema sources. Given a fixed
// namespace and unchanged schemas, output descriptors and hashes are
// identical across calls.
type Generator struct {
	ins    *compiler.Introspector
	closed bool
}

// Option configures a Generator.
type Option func(*Generator)

// Closed makes generated shapes reject fields their schema does not
// declare.
func Closed(closed bool) Option {
	return func(g *Generator) { g.closed = closed }
}

// New creates a Generator over an introspector.
func New(ins *compiler.Introspector, opts ...Option) *Generator {
	g := &Generator{ins: ins}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate produces the shape for one schema and, transitively, every
// nested schema it references. Fails if the schema or any reachable nested
// schema cannot be introspected.
func (g *Generator) Generate(src compiler.Source) (*Result, error) {
	state := newWalkState()
	if err := g.walk(src, state); err != nil {
		return nil, err
	}
	return state.result(), nil
}

// GenerateAll generates shapes for a batch of schemas. A schema that fails
// does not abort the rest: its error is collected and the remaining
// schemas still generate. Shared nested schemas are generated once.
func (g *Generator) GenerateAll(srcs []compiler.Source) (*Result, []error) {
	state := newWalkState()
	var errs []error
	for _, src := range srcs {
		if err := g.walk(src, state); err != nil {
			errs = append(errs, err)
		}
	}
	return state.result(), errs
}

type walkState struct {
	done   map[string]bool // target-class IRI -> generated
	active map[string]bool // target-class IRI on the current path
	shapes []Shape
	models []*compiler.Model
}

func newWalkState() *walkState {
	return &walkState{
		done:   make(map[string]bool),
		active: make(map[string]bool),
	}
}

func (s *walkState) result() *Result {
	return &Result{
		Shapes:   s.shapes,
		Warnings: compiler.AnalyzeCycles(s.models),
	}
}

func (g *Generator) walk(src compiler.Source, state *walkState) error {
	iri := g.ins.Namespace().ClassIRI(src.Name())
	if state.done[iri] || state.active[iri] {
		// Already generated, or a cycle back onto the current path; the
		// reference stands on its own either way.
		return nil
	}
	state.active[iri] = true
	defer delete(state.active, iri)

	model, err := g.ins.Introspect(src)
	if err != nil {
		return &GenerationError{Schema: src.Name(), Err: err}
	}

	// Children first, in sorted IRI order so batch output is stable.
	refs := make([]string, 0, len(model.Nested))
	for ref := range model.Nested {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	for _, ref := range refs {
		if err := g.walk(model.Nested[ref], state); err != nil {
			if ge, ok := err.(*GenerationError); ok {
				return &GenerationError{Schema: src.Name(), Nested: ge.Schema, Err: ge.Err}
			}
			return &GenerationError{Schema: src.Name(), Nested: model.Nested[ref].Name(), Err: err}
		}
	}

	desc := model.Descriptor(g.closed)
	hash, err := shape.ContentHash(desc)
	if err != nil {
		return &GenerationError{Schema: src.Name(), Err: err}
	}

	state.shapes = append(state.shapes, Shape{
		Name:       model.Name,
		Descriptor: desc,
		Hash:       hash,
	})
	state.models = append(state.models, model)
	state.done[iri] = true
	return nil
}
