package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semforge/semforge/internal/validator"
)

// TestScenarios_Golden runs the deterministic scenarios and compares the
// full reports against golden snapshots.
func TestScenarios_Golden(t *testing.T) {
	for _, name := range []string{"person-basic", "person-violations"} {
		t.Run(name, func(t *testing.T) {
			sc, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
			require.NoError(t, err)

			res, err := Run(context.Background(), sc)
			require.NoError(t, err)
			assert.True(t, res.Pass, "failures: %v", res.Failures)

			AssertGolden(t, res)
		})
	}
}

// TestScenario_OpaqueWarning checks the opaque-predicate scenario without
// a golden file: the warning message carries the predicate's CUE source
// text, whose exact rendering is the compiler's business.
func TestScenario_OpaqueWarning(t *testing.T) {
	sc, err := LoadScenario("testdata/scenarios/person-opaque.yaml")
	require.NoError(t, err)

	res, err := Run(context.Background(), sc)
	require.NoError(t, err)
	assert.True(t, res.Pass, "failures: %v", res.Failures)

	require.Len(t, res.Cases, 1)
	report := res.Cases[0].Report
	assert.True(t, report.Conforms())
	require.Len(t, report.Warnings(), 1)
	warning := report.Warnings()[0]
	assert.Equal(t, "handle", warning.Path)
	assert.Contains(t, warning.Message, "strings.HasPrefix")
}

func TestRun_ReportsRegistrations(t *testing.T) {
	sc, err := LoadScenario("testdata/scenarios/person-basic.yaml")
	require.NoError(t, err)

	res, err := Run(context.Background(), sc)
	require.NoError(t, err)

	require.Len(t, res.Shapes, 2)
	assert.Equal(t, "Address", res.Shapes[0].Name)
	assert.Equal(t, "Person", res.Shapes[1].Name)
	for _, s := range res.Shapes {
		assert.Equal(t, "https://example.org/ns/"+s.Name, s.TargetClass)
		assert.Len(t, s.Hash, 64)
	}
}

func TestRun_ExpectationMismatch(t *testing.T) {
	sc, err := LoadScenario("testdata/scenarios/person-basic.yaml")
	require.NoError(t, err)

	// Flip an expectation; the run itself must still succeed.
	sc.Cases[0].Expect.Conforms = false

	res, err := Run(context.Background(), sc)
	require.NoError(t, err)
	assert.False(t, res.Pass)
	require.Len(t, res.Failures, 1)
	assert.Contains(t, res.Failures[0], "conforming record")
}

func TestRun_UnknownSchemaInCase(t *testing.T) {
	sc, err := LoadScenario("testdata/scenarios/person-basic.yaml")
	require.NoError(t, err)
	sc.Cases[0].Schema = "Nonexistent"

	_, err = Run(context.Background(), sc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Nonexistent")
}

func TestLoadScenarios_Directory(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.Len(t, scenarios, 3)

	// Sorted by file name.
	assert.Equal(t, "person-basic", scenarios[0].Name)
	assert.Equal(t, "person-opaque", scenarios[1].Name)
	assert.Equal(t, "person-violations", scenarios[2].Name)
}

func TestSnapshot_OmitsEmptyValues(t *testing.T) {
	res := &Result{
		Scenario: "snap",
		Cases: []CaseReport{{
			Name: "case",
			Report: &validator.Report{
				TargetClass: "https://example.org/ns/Person",
				Results: []validator.Result{{
					Path:       "name",
					Constraint: "required",
					Severity:   validator.SeverityViolation,
					Message:    "required value is absent",
				}},
			},
		}},
	}

	snap, err := Snapshot(res)
	require.NoError(t, err)
	assert.NotContains(t, string(snap), `"value"`)
	assert.Contains(t, string(snap), `"conforms":false`)
}
