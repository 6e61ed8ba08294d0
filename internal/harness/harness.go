package harness

import (
	"context"
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue/cuecontext"

	"github.com/semforge/semforge/internal/compiler"
	"github.com/semforge/semforge/internal/generator"
	"github.com/semforge/semforge/internal/registry"
	"github.com/semforge/semforge/internal/shape"
	"github.com/semforge/semforge/internal/store"
	"github.com/semforge/semforge/internal/validator"
)

// RegisteredShape records one shape registration performed by a run.
type RegisteredShape struct {
	Name        string
	TargetClass string
	Outcome     registry.Outcome
	Hash        string
}

// CaseReport pairs a case with the validation report it produced.
type CaseReport struct {
	Name        string
	TargetClass string
	Report      *validator.Report
}

// Result is the outcome of running a scenario. Pass reflects only the
// declared expectations; the reports themselves are carried in full for
// golden comparison.
type Result struct {
	Scenario string
	Pass     bool
	Failures []string
	Shapes   []RegisteredShape
	Cases    []CaseReport
}

// Run executes a scenario against a fresh in-memory store. Returns an
// error for infrastructure faults (schema does not compile, store
// unreachable); expectation mismatches are reported through Result.
func Run(ctx context.Context, sc *Scenario) (*Result, error) {
	ns := shape.NewNamespace(sc.Namespace)

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("scenario %s: open store: %w", sc.Name, err)
	}
	defer st.Close()

	reg := registry.New(st, ns, registry.StrictConstraints(sc.Strict))

	srcs, err := loadSchemaSources(sc.Schemas)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	gen := generator.New(compiler.NewIntrospector(ns), generator.Closed(sc.Closed))
	generated, errs := gen.GenerateAll(srcs)
	if len(errs) > 0 {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, errors.Join(errs...))
	}

	res := &Result{Scenario: sc.Name, Pass: true}
	for _, s := range generated.Shapes {
		r, err := reg.Register(ctx, s.Descriptor)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: register %s: %w", sc.Name, s.Name, err)
		}
		res.Shapes = append(res.Shapes, RegisteredShape{
			Name:        s.Name,
			TargetClass: r.TargetClass,
			Outcome:     r.Outcome,
			Hash:        r.Hash,
		})
	}

	engine := validator.New(reg)
	for _, c := range sc.Cases {
		targetClass := ns.ClassIRI(c.Schema)
		rec, err := shape.RecordFromFields(ns, targetClass, c.Record)
		if err != nil {
			return nil, fmt.Errorf("scenario %s, case %q: %w", sc.Name, c.Name, err)
		}

		desc, err := reg.Resolve(ctx, targetClass)
		if err != nil {
			return nil, fmt.Errorf("scenario %s, case %q: %w", sc.Name, c.Name, err)
		}
		report, err := engine.Validate(ctx, rec, desc)
		if err != nil {
			return nil, fmt.Errorf("scenario %s, case %q: %w", sc.Name, c.Name, err)
		}

		res.Cases = append(res.Cases, CaseReport{Name: c.Name, TargetClass: targetClass, Report: report})
		checkExpectations(res, c, report)
	}
	return res, nil
}

// loadSchemaSources compiles each CUE file and collects every schema it
// declares, preserving declaration order.
func loadSchemaSources(paths []string) ([]compiler.Source, error) {
	cctx := cuecontext.New()

	var srcs []compiler.Source
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read schema file: %w", err)
		}
		v := cctx.CompileBytes(data)
		if err := v.Err(); err != nil {
			return nil, fmt.Errorf("compile %s: %w", path, err)
		}
		schemas, err := compiler.LoadSchemas(v)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		for _, s := range schemas {
			srcs = append(srcs, s)
		}
	}
	return srcs, nil
}

func checkExpectations(res *Result, c Case, report *validator.Report) {
	if got := report.Conforms(); got != c.Expect.Conforms {
		res.fail("case %q: conforms = %v, expected %v", c.Name, got, c.Expect.Conforms)
	}
	for _, want := range c.Expect.Results {
		if !containsResult(report, want) {
			res.fail("case %q: no %s result for %s at %s (got %v)",
				c.Name, severityOrDefault(want), want.Constraint, want.Path, report.Results)
		}
	}
}

func containsResult(report *validator.Report, want ExpectedResult) bool {
	severity := severityOrDefault(want)
	for _, r := range report.Results {
		if r.Path == want.Path && string(r.Constraint) == want.Constraint && string(r.Severity) == severity {
			return true
		}
	}
	return false
}

func severityOrDefault(r ExpectedResult) string {
	if r.Severity == "" {
		return string(validator.SeverityViolation)
	}
	return r.Severity
}

func (r *Result) fail(format string, args ...any) {
	r.Pass = false
	r.Failures = append(r.Failures, fmt.Sprintf(format, args...))
}
