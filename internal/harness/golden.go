package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RunWithGolden executes a scenario and compares the full step-by-step
// result against testdata/golden/<name>.golden. Regenerate with
// `go test -update`.
func RunWithGolden(t *testing.T, s *Scenario) {
	t.Helper()

	result, err := Run(s)
	if err != nil {
		t.Fatalf("scenario %s: %v", s.Name, err)
	}
	if !result.Passed {
		for _, step := range result.Steps {
			if step.Failure != "" {
				t.Errorf("scenario %s, %s.%s: %s", s.Name, step.Entity, step.Command, step.Failure)
			}
		}
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		t.Fatalf("marshaling result: %v", err)
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, s.Name, data)
}
