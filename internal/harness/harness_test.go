package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_ValidFile(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "pricing_update.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "pricing-update", scenario.Name)
	assert.Equal(t, "dish.manifest", scenario.ManifestFile)
	assert.Equal(t, "manager", scenario.Role)
	require.Len(t, scenario.Setup, 1)
	require.Len(t, scenario.Steps, 1)
	assert.Equal(t, "updatePricing", scenario.Steps[0].Command)
	require.NotNil(t, scenario.Steps[0].Expect)
	require.NotNil(t, scenario.Steps[0].Expect.Success)
	assert.True(t, *scenario.Steps[0].Expect.Success)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read scenario")
}

func TestLoadScenario_MissingName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anon.yaml")
	content := `
description: no name
manifest: "module m { entity E { property x: number } }"
steps: []
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no name")
}

func TestLoadScenario_BothManifestForms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "both.yaml")
	content := `
name: both
manifest: "module m { entity E { property x: number } }"
manifest_file: other.manifest
steps: []
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one")
}

func TestLoadScenarios_SortedByFileName(t *testing.T) {
	scenarios, err := LoadScenarios(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)

	var names []string
	for _, s := range scenarios {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{
		"guard-rejects",
		"idempotent-replay",
		"policy-denied",
		"pricing-blocked",
		"pricing-update",
		"pricing-warns",
	}, names)
}

// TestConformanceScenarios runs every scenario in testdata/scenarios as a
// subtest. Adding a YAML file there adds a case here.
func TestConformanceScenarios(t *testing.T) {
	scenarios, err := LoadScenarios(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, scenario := range scenarios {
		t.Run(scenario.Name, func(t *testing.T) {
			result, err := Run(scenario)
			require.NoError(t, err)
			for _, step := range result.Steps {
				if step.Failure != "" {
					t.Errorf("%s.%s: %s", step.Entity, step.Command, step.Failure)
				}
			}
			assert.True(t, result.Passed)
		})
	}
}

// TestRunWithGolden_CounterBump pins the full step-by-step result shape
// against a committed fixture. The fixed clock and ID sequence make the
// bytes stable across runs.
func TestRunWithGolden_CounterBump(t *testing.T) {
	RunWithGolden(t, &Scenario{
		Name: "golden-bump",
		Manifest: `
module demo {
  entity Counter {
    property count: number = 0
    command bump() => mutate count = self.count + 1
  }
}
`,
		Setup: []SetupInstance{
			{Entity: "Counter", Props: map[string]any{"count": 3}},
		},
		Steps: []CommandStep{
			{Entity: "Counter", Command: "bump", Instance: "test-id-1"},
		},
	})
}

func TestRun_UncompilableManifestFails(t *testing.T) {
	s := &Scenario{
		Name:     "broken",
		Manifest: "module m { entity entity { } }",
	}
	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not compile")
}

func TestRun_ExpectationMismatchMarksFailed(t *testing.T) {
	wantSuccess := false
	s := &Scenario{
		Name: "mismatch",
		Manifest: `
module m {
  entity Counter {
    property count: number = 0
    command bump() => mutate count = self.count + 1
  }
}
`,
		Steps: []CommandStep{
			{
				Entity:  "Counter",
				Command: "bump",
				Expect:  &ExpectClause{Success: &wantSuccess},
			},
		},
	}
	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Passed)
	require.Len(t, result.Steps, 1)
	assert.Contains(t, result.Steps[0].Failure, "expected success=false")
}
