package harness

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario defines one compilation test case.
type Scenario struct {
	// Name uniquely identifies this scenario; it also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty"`

	// Backend selects the dialect (mysql, postgres, sqlite, warehouse).
	Backend string `yaml:"backend"`

	// Query is the definition document, written inline as YAML. It is
	// re-encoded to JSON before parsing, so scenarios read naturally while
	// the parser sees exactly what a saved document would contain.
	Query map[string]interface{} `yaml:"query"`

	// Schema lists known physical tables and their columns, as
	// "name:type" or bare "name" entries.
	Schema map[string][]string `yaml:"schema,omitempty"`

	// Stored holds referenced stored queries: name to {sql, depends_on}.
	Stored map[string]StoredDef `yaml:"stored,omitempty"`

	// Now pins the clock for relative timespans, RFC3339 or "2006-01-02".
	Now string `yaml:"now,omitempty"`

	// Assertions validate the compiled statement.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// ExpectError, when non-empty, means compilation must fail and the
	// error text must contain this substring.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// StoredDef is a referenced stored query in a scenario file. Columns lists
// the query's output schema as "name:type" or bare "name" entries.
type StoredDef struct {
	SQL       string   `yaml:"sql"`
	DependsOn []string `yaml:"depends_on,omitempty"`
	Columns   []string `yaml:"columns,omitempty"`
}

// Assertion validates one property of the compiled statement.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Value is the operand: a SQL fragment, a column label list, or a
	// number rendered as text depending on Type.
	Value string `yaml:"value,omitempty"`

	// Values is the operand list for order-sensitive assertions.
	Values []string `yaml:"values,omitempty"`

	// Count is the operand for count assertions.
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertSQLContains    = "sql_contains"
	AssertSQLNotContains = "sql_not_contains"
	AssertSQLCount       = "sql_count"
	AssertColumns        = "columns"
	AssertLimit          = "limit"
)

// QueryJSON re-encodes the inline query definition to JSON.
func (s *Scenario) QueryJSON() ([]byte, error) {
	if s.Query == nil {
		return nil, fmt.Errorf("scenario %q has no query", s.Name)
	}
	return json.Marshal(s.Query)
}

// Clock returns the pinned instant, defaulting to a fixed reference date
// so golden files never depend on the wall clock.
func (s *Scenario) Clock() (time.Time, error) {
	if s.Now == "" {
		return time.Date(2022, 11, 26, 13, 45, 0, 0, time.UTC), nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s.Now); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("scenario %q: cannot parse now: %q", s.Name, s.Now)
}

// LoadScenario reads and validates one scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if s.Backend == "" {
		return nil, fmt.Errorf("scenario %q has no backend", s.Name)
	}
	return &s, nil
}

// LoadScenarios reads every .yaml scenario under dir, sorted by name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading scenario dir: %w", err)
	}
	var out []*Scenario
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		s, err := LoadScenario(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
