// Package harness runs conformance scenarios: YAML files pairing
// manifest source with command invocations and expected outcomes,
// executed deterministically (fixed clock and ID sequence) so results
// are comparable against golden files.
package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario defines one conformance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario; it names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty"`

	// Manifest is inline manifest source. Exactly one of Manifest and
	// ManifestFile must be set.
	Manifest string `yaml:"manifest,omitempty"`

	// ManifestFile points at a .manifest file relative to the scenario.
	ManifestFile string `yaml:"manifest_file,omitempty"`

	// Tenant, User and Role form the engine context. Tenant defaults to
	// "test-tenant".
	Tenant string `yaml:"tenant,omitempty"`
	User   string `yaml:"user,omitempty"`
	Role   string `yaml:"role,omitempty"`

	// Setup creates instances before the flow runs.
	Setup []SetupInstance `yaml:"setup,omitempty"`

	// Steps is the command flow under test.
	Steps []CommandStep `yaml:"steps"`

	dir string
}

// SetupInstance seeds one stored instance.
type SetupInstance struct {
	Entity string         `yaml:"entity"`
	Props  map[string]any `yaml:"props"`
}

// CommandStep invokes one command and optionally validates the result.
type CommandStep struct {
	Entity         string         `yaml:"entity"`
	Command        string         `yaml:"command"`
	Instance       string         `yaml:"instance,omitempty"`
	Args           map[string]any `yaml:"args,omitempty"`
	IdempotencyKey string         `yaml:"idempotency_key,omitempty"`

	// Expect validates the step result. Nil means the step must simply
	// not fail structurally.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause is a subset match over one command result.
type ExpectClause struct {
	Success  *bool          `yaml:"success,omitempty"`
	DeniedBy string         `yaml:"denied_by,omitempty"`
	Failed   []string       `yaml:"failed_constraints,omitempty"`
	Events   []string       `yaml:"events,omitempty"`
	State    map[string]any `yaml:"state,omitempty"`
	Replayed *bool          `yaml:"replayed,omitempty"`
}

// LoadScenario reads one scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if s.Name == "" {
		return nil, fmt.Errorf("scenario %s has no name", path)
	}
	if (s.Manifest == "") == (s.ManifestFile == "") {
		return nil, fmt.Errorf("scenario %s must set exactly one of manifest and manifest_file", s.Name)
	}
	s.dir = filepath.Dir(path)
	return &s, nil
}

// LoadScenarios reads every *.yaml scenario in a directory, sorted by
// file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && (strings.HasSuffix(e.Name(), ".yaml") || strings.HasSuffix(e.Name(), ".yml")) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out []*Scenario
	for _, name := range names {
		s, err := LoadScenario(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// source returns the scenario's manifest source.
func (s *Scenario) source() (string, error) {
	if s.Manifest != "" {
		return s.Manifest, nil
	}
	data, err := os.ReadFile(filepath.Join(s.dir, s.ManifestFile))
	if err != nil {
		return "", fmt.Errorf("read manifest for scenario %s: %w", s.Name, err)
	}
	return string(data), nil
}
