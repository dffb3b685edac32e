package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/angriff36/manifest/internal/compiler"
	"github.com/angriff36/manifest/internal/engine"
	"github.com/angriff36/manifest/internal/ir"
	"github.com/angriff36/manifest/internal/testutil"
)

// fixedEpoch is the frozen wall clock for every scenario run.
var fixedEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// StepResult captures one executed step for reporting and golden
// comparison.
type StepResult struct {
	Entity  string                `json:"entity"`
	Command string                `json:"command"`
	Result  *engine.CommandResult `json:"result"`
	Failure string                `json:"failure,omitempty"`
}

// Result is the full outcome of one scenario.
type Result struct {
	Scenario string       `json:"scenario"`
	Passed   bool         `json:"passed"`
	Steps    []StepResult `json:"steps"`
}

// Run compiles the scenario's manifest, seeds setup instances and
// executes the flow with deterministic options. Expectation mismatches
// mark the result failed rather than returning an error; errors are
// reserved for scenarios that cannot run at all.
func Run(s *Scenario) (*Result, error) {
	source, err := s.source()
	if err != nil {
		return nil, err
	}
	compiled, diags := compiler.CompileToIR(source)
	if compiled == nil {
		return nil, fmt.Errorf("scenario %s: manifest does not compile: %v", s.Name, diags)
	}

	tenant := s.Tenant
	if tenant == "" {
		tenant = "test-tenant"
	}
	clock := testutil.NewClock(fixedEpoch)
	ids := testutil.NewIDGen()
	eng := engine.New(compiled, engine.Context{
		TenantID: tenant,
		UserID:   s.User,
		UserRole: s.Role,
	},
		engine.WithClock(clock.Now),
		engine.WithIDGenerator(ids.Next),
	)

	ctx := context.Background()
	for _, setup := range s.Setup {
		props, err := ir.FromGo(setup.Props)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: setup props: %w", s.Name, err)
		}
		if _, err := eng.CreateInstance(ctx, setup.Entity, props.(ir.Object)); err != nil {
			return nil, fmt.Errorf("scenario %s: setup %s: %w", s.Name, setup.Entity, err)
		}
	}

	out := &Result{Scenario: s.Name, Passed: true}
	for i, step := range s.Steps {
		sr := StepResult{Entity: step.Entity, Command: step.Command}
		args := ir.Object{}
		if step.Args != nil {
			v, err := ir.FromGo(step.Args)
			if err != nil {
				return nil, fmt.Errorf("scenario %s step %d: args: %w", s.Name, i, err)
			}
			args = v.(ir.Object)
		}
		result, err := eng.RunCommand(ctx, step.Entity, step.Command, args, engine.RunOptions{
			InstanceID:     step.Instance,
			IdempotencyKey: step.IdempotencyKey,
		})
		if err != nil {
			sr.Failure = fmt.Sprintf("execution error: %v", err)
			out.Passed = false
			out.Steps = append(out.Steps, sr)
			continue
		}
		sr.Result = result
		if msg := checkExpect(step.Expect, result); msg != "" {
			sr.Failure = msg
			out.Passed = false
		}
		out.Steps = append(out.Steps, sr)
	}
	return out, nil
}

// checkExpect subset-matches a result against an expectation, returning
// a description of the first mismatch or "".
func checkExpect(exp *ExpectClause, result *engine.CommandResult) string {
	if exp == nil {
		return ""
	}
	if exp.Success != nil && result.Success != *exp.Success {
		return fmt.Sprintf("expected success=%v, got %v (error: %s)", *exp.Success, result.Success, result.Error)
	}
	if exp.DeniedBy != "" && result.DeniedBy != exp.DeniedBy {
		return fmt.Sprintf("expected denial by %q, got %q", exp.DeniedBy, result.DeniedBy)
	}
	if exp.Replayed != nil && result.Replayed != *exp.Replayed {
		return fmt.Sprintf("expected replayed=%v, got %v", *exp.Replayed, result.Replayed)
	}
	for _, want := range exp.Failed {
		if !failedConstraint(result, want) {
			return fmt.Sprintf("expected constraint %q to fail", want)
		}
	}
	for _, want := range exp.Events {
		if !emittedEvent(result, want) {
			return fmt.Sprintf("expected event %q", want)
		}
	}
	if len(exp.State) > 0 {
		if result.Instance == nil {
			return "expected instance state but result has none"
		}
		for key, wantRaw := range exp.State {
			want, err := ir.FromGo(wantRaw)
			if err != nil {
				return fmt.Sprintf("bad expected state value for %q: %v", key, err)
			}
			got, ok := result.Instance.Props[key]
			if !ok || !ir.Equal(got, want) {
				return fmt.Sprintf("state %q: expected %v, got %v", key, wantRaw, ir.ToGo(got))
			}
		}
	}
	return ""
}

func failedConstraint(result *engine.CommandResult, id string) bool {
	for _, o := range result.ConstraintOutcomes {
		if (o.ConstraintID == id || o.Name == id) && !o.Passed {
			return true
		}
	}
	return false
}

func emittedEvent(result *engine.CommandResult, name string) bool {
	for _, ev := range result.EmittedEvents {
		if ev.Name == name {
			return true
		}
	}
	return false
}
