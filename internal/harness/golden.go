package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/semforge/semforge/internal/shape"
)

// Snapshot renders a run result as canonical JSON for golden comparison.
// Shape hashes are omitted: they change with any schema edit, and the
// hash discipline has its own tests.
func Snapshot(res *Result) ([]byte, error) {
	shapes := make([]any, len(res.Shapes))
	for i, s := range res.Shapes {
		shapes[i] = map[string]any{
			"name":    s.Name,
			"outcome": string(s.Outcome),
		}
	}

	cases := make([]any, len(res.Cases))
	for i, c := range res.Cases {
		m := map[string]any{
			"name":     c.Name,
			"conforms": c.Report.Conforms(),
		}
		if len(c.Report.Results) > 0 {
			results := make([]any, len(c.Report.Results))
			for j, r := range c.Report.Results {
				rm := map[string]any{
					"path":       r.Path,
					"constraint": string(r.Constraint),
					"severity":   string(r.Severity),
					"message":    r.Message,
				}
				if r.Value != "" {
					rm["value"] = r.Value
				}
				results[j] = rm
			}
			m["results"] = results
		}
		cases[i] = m
	}

	return shape.MarshalCanonical(map[string]any{
		"scenario": res.Scenario,
		"shapes":   shapes,
		"cases":    cases,
	})
}

// AssertGolden compares a run result against the golden snapshot stored
// under testdata/golden/{scenario}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, res *Result) {
	t.Helper()

	snap, err := Snapshot(res)
	if err != nil {
		t.Fatalf("snapshot %s: %v", res.Scenario, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, res.Scenario, snap)
}
