package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/querier/internal/validator"
)

// Scenario defines a conformance test scenario: a resource declaration, a
// database fixture and the queries run against them.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Resource is the declaration file (.cue, .yaml or .yml).
	// Relative paths are resolved against the scenario file location.
	Resource string `yaml:"resource"`

	// Setup is a SQL script run on a fresh database before the cases.
	Setup string `yaml:"setup,omitempty"`

	// Cases run in order against the same database.
	Cases []Case `yaml:"cases"`
}

// Case is one query and its expected outcome.
type Case struct {
	Name string `yaml:"name"`

	// Query is a raw query string, e.g. "filter[age][>]=30&sort[]=name".
	Query string `yaml:"query,omitempty"`

	// JSON is the query as a JSON object. Exactly one of Query and JSON is set.
	JSON string `yaml:"json,omitempty"`

	Expect Expect `yaml:"expect"`
}

// Expect specifies the expected outcome of a case. Unset fields are not
// checked.
type Expect struct {
	SQL    string `yaml:"sql,omitempty"`
	Params []any  `yaml:"params,omitempty"`

	// Rows are matched in order; each row is a subset match on its columns.
	Rows []map[string]any `yaml:"rows,omitempty"`

	// Count is the expected number of rows.
	Count *int `yaml:"count,omitempty"`

	// Error is the expected rejection message.
	Error string `yaml:"error,omitempty"`

	// Layer is the expected validation layer of the rejection.
	Layer string `yaml:"layer,omitempty"`
}

// rejects reports whether the case expects the query to fail.
func (e Expect) rejects() bool {
	return e.Error != "" || e.Layer != ""
}

var validLayers = map[string]bool{
	string(validator.LayerDisabled): true,
	string(validator.LayerShape):    true,
	string(validator.LayerAdapter):  true,
	string(validator.LayerConsumer): true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the resource path relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "expects:" vs "expect:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Resource != "" && !filepath.IsAbs(scenario.Resource) && basePath != "" {
		scenario.Resource = filepath.Join(basePath, scenario.Resource)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Resource == "" {
		return fmt.Errorf("resource is required")
	}
	if _, err := os.Stat(s.Resource); os.IsNotExist(err) {
		return fmt.Errorf("resource file not found: %s", s.Resource)
	}

	if len(s.Cases) == 0 {
		return fmt.Errorf("cases list is required and must be non-empty")
	}

	seen := make(map[string]bool, len(s.Cases))
	for i, c := range s.Cases {
		if err := validateCase(i, c); err != nil {
			return err
		}
		if seen[c.Name] {
			return fmt.Errorf("cases[%d]: duplicate name %q", i, c.Name)
		}
		seen[c.Name] = true
	}

	return nil
}

// validateCase validates a single case.
func validateCase(index int, c Case) error {
	if c.Name == "" {
		return fmt.Errorf("cases[%d]: name is required", index)
	}
	if (c.Query == "") == (c.JSON == "") {
		return fmt.Errorf("cases[%d]: exactly one of query or json is required", index)
	}

	e := c.Expect
	if e.Layer != "" && !validLayers[e.Layer] {
		return fmt.Errorf("cases[%d].expect: unknown layer %q", index, e.Layer)
	}
	if e.rejects() && (e.SQL != "" || e.Params != nil || e.Rows != nil || e.Count != nil) {
		return fmt.Errorf("cases[%d].expect: error cannot be combined with sql, params, rows or count", index)
	}
	if e.Count != nil && *e.Count < 0 {
		return fmt.Errorf("cases[%d].expect: count must be non-negative", index)
	}

	return nil
}
