package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Scenario defines one validation scenario: a set of CUE schemas to
// compile and register, and records to validate against the resulting
// shapes.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden snapshots are
	// stored under this name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schemas lists CUE schema files to compile. Paths are relative to
	// the scenario file location.
	Schemas []string `yaml:"schemas"`

	// Namespace is the base IRI under which shapes are generated.
	// Defaults to the standard namespace when empty.
	Namespace string `yaml:"namespace,omitempty"`

	// Closed makes generated shapes reject undeclared record fields.
	Closed bool `yaml:"closed,omitempty"`

	// Strict escalates unsupported-constraint diagnostics to
	// registration failure.
	Strict bool `yaml:"strict,omitempty"`

	// Cases are the records to validate, in order.
	Cases []Case `yaml:"cases"`
}

// Case is one record validated against one registered shape.
type Case struct {
	// Name identifies the case within the scenario.
	Name string `yaml:"name"`

	// Schema names the schema whose shape the record is validated
	// against.
	Schema string `yaml:"schema"`

	// Record is the YAML form of the record under validation.
	Record map[string]any `yaml:"record"`

	// Expect declares the expected outcome.
	Expect Expect `yaml:"expect"`
}

// Expect declares the expected validation outcome for a case.
type Expect struct {
	// Conforms is the expected pass status.
	Conforms bool `yaml:"conforms"`

	// Results lists findings the report must contain. The report may
	// carry more; listed ones must all appear.
	Results []ExpectedResult `yaml:"results,omitempty"`
}

// ExpectedResult matches one report finding by path and constraint kind.
type ExpectedResult struct {
	Path       string `yaml:"path"`
	Constraint string `yaml:"constraint"`

	// Severity defaults to "violation" when empty.
	Severity string `yaml:"severity,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file. Schema paths are
// resolved relative to the scenario file. Unknown fields are rejected,
// which catches typos like "case:" for "cases:".
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario YAML: %w", err)
	}

	base := filepath.Dir(path)
	for i, schemaPath := range scenario.Schemas {
		if !filepath.IsAbs(schemaPath) {
			scenario.Schemas[i] = filepath.Join(base, schemaPath)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml scenario in a directory, sorted by
// file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Schemas) == 0 {
		return fmt.Errorf("schemas list is required and must be non-empty")
	}
	if len(s.Cases) == 0 {
		return fmt.Errorf("cases list is required and must be non-empty")
	}

	for i, c := range s.Cases {
		if c.Name == "" {
			return fmt.Errorf("case %d: name is required", i)
		}
		if c.Schema == "" {
			return fmt.Errorf("case %q: schema is required", c.Name)
		}
		if c.Record == nil {
			return fmt.Errorf("case %q: record is required", c.Name)
		}
		for _, r := range c.Expect.Results {
			if r.Path == "" || r.Constraint == "" {
				return fmt.Errorf("case %q: expected results need path and constraint", c.Name)
			}
			switch r.Severity {
			case "", "violation", "warning":
			default:
				return fmt.Errorf("case %q: unknown severity %q", c.Name, r.Severity)
			}
		}
	}
	return nil
}
