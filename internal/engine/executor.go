package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/angriff36/manifest/internal/ir"
)

// ConstraintOutcome is the evaluation result of one constraint during a
// command run or a CheckConstraints call.
type ConstraintOutcome struct {
	ConstraintID string `json:"constraintId"`
	Name         string `json:"name"`
	Severity     string `json:"severity"`
	Passed       bool   `json:"passed"`
	Message      string `json:"message,omitempty"`
}

// EmittedEvent is one domain event produced by a successful command.
// Provenance identifies the compiled program that emitted it, so
// consumers can trace any event back to the exact committed IR.
type EmittedEvent struct {
	Name       string         `json:"name"`
	Channel    string         `json:"channel"`
	Payload    ir.Object      `json:"payload"`
	Timestamp  time.Time      `json:"timestamp"`
	Provenance *ir.Provenance `json:"provenance,omitempty"`
}

// CommandResult is the outcome of RunCommand. Success is false when a
// policy denied the command, a guard failed, or a blocking constraint
// was violated; those cases carry no Go error.
type CommandResult struct {
	Success            bool                `json:"success"`
	Result             *ir.Constant        `json:"result,omitempty"`
	Error              string              `json:"error,omitempty"`
	DeniedBy           string              `json:"deniedBy,omitempty"`
	ConstraintOutcomes []ConstraintOutcome `json:"constraintOutcomes,omitempty"`
	EmittedEvents      []EmittedEvent      `json:"emittedEvents,omitempty"`
	Instance           *Instance           `json:"instance,omitempty"`
	Replayed           bool                `json:"replayed,omitempty"`
}

// Warnings returns the failed warn-severity outcomes.
func (r *CommandResult) Warnings() []ConstraintOutcome {
	var out []ConstraintOutcome
	for _, o := range r.ConstraintOutcomes {
		if !o.Passed && o.Severity == ir.SeverityWarn {
			out = append(out, o)
		}
	}
	return out
}

// RunOptions tunes one RunCommand call.
type RunOptions struct {
	// InstanceID selects the instance the command runs against. Empty
	// means the command runs with a blank self and creates a new
	// instance from its mutations.
	InstanceID string
	// IdempotencyKey, when set, replays a previously cached result for
	// the same tenant and key instead of executing again.
	IdempotencyKey string
}

// RunCommand executes one command against one entity instance.
//
// The pipeline is: lookup, idempotent replay, policy check, guard check,
// constraint evaluation in declaration order, actions, persist, events.
// A failed blocking constraint rejects the command before any mutation;
// warn-severity violations ride along on a successful result.
func (e *Engine) RunCommand(ctx context.Context, entity, command string, args ir.Object, opts RunOptions) (*CommandResult, error) {
	entDef := e.ir.Entity(entity)
	if entDef == nil {
		return nil, &RuntimeError{Code: CodeUnknownEntity, Entity: entity}
	}
	cmdDef := e.ir.Command(entity, command)
	if cmdDef == nil {
		return nil, &RuntimeError{Code: CodeUnknownCommand, Entity: entity, Command: command}
	}

	// Idempotent replay. The store is advisory: a read failure logs and
	// degrades to a miss.
	if opts.IdempotencyKey != "" {
		cached, hit, err := e.idem.Get(ctx, e.ectx.TenantID, opts.IdempotencyKey)
		if err != nil {
			e.log.Warn("idempotency read failed, treating as miss",
				"tenant", e.ectx.TenantID, "key", opts.IdempotencyKey, "error", err)
		} else if hit {
			var result CommandResult
			if err := json.Unmarshal(cached, &result); err != nil {
				e.log.Warn("cached idempotency record is unreadable, treating as miss",
					"tenant", e.ectx.TenantID, "key", opts.IdempotencyKey, "error", err)
			} else {
				result.Replayed = true
				return &result, nil
			}
		}
	}

	// Load the target instance. A blank InstanceID runs the command
	// against a fresh instance.
	var inst *Instance
	if opts.InstanceID != "" {
		loaded, err := e.stores(entity).Get(ctx, e.ectx.TenantID, entity, opts.InstanceID)
		if err == ErrNotFound {
			return nil, &RuntimeError{Code: CodeNotFound, Entity: entity, Err: err}
		}
		if err != nil {
			return nil, &RuntimeError{Code: CodeStorage, Entity: entity, Err: err}
		}
		inst = loaded
	} else {
		inst = &Instance{ID: e.genID(), Entity: entity, Version: 0, Props: ir.Object{}}
		for _, p := range entDef.Properties {
			if p.Default != nil {
				inst.Props[p.Name] = ir.CloneValue(p.Default.Value)
			}
		}
		inst.Props["id"] = ir.String(inst.ID)
	}

	args = e.applyParamDefaults(cmdDef, args)

	work := inst.Clone()
	ev := e.newEvaluator(work, args)

	// Policies deny before anything runs.
	if denied, result := e.checkPolicies(ev, entity); denied {
		return result, nil
	}

	// Guards.
	for idx := range cmdDef.Guards {
		g := &cmdDef.Guards[idx]
		v, err := ev.eval(g)
		if err != nil {
			return &CommandResult{Success: false, Error: "guard evaluation failed: " + err.Error()}, nil
		}
		if !ir.Truthy(v) {
			return &CommandResult{Success: false, Error: "guard failed: " + g.Format()}, nil
		}
	}

	// Constraints, declaration order.
	var outcomes []ConstraintOutcome
	blocked := false
	for _, id := range cmdDef.Constraints {
		c := e.ir.Constraint(id)
		if c == nil {
			continue
		}
		out := e.evalConstraint(ev, c)
		outcomes = append(outcomes, out)
		if !out.Passed && out.Severity == ir.SeverityBlock {
			blocked = true
		}
	}
	if blocked {
		return &CommandResult{Success: false, Error: "blocked by constraint", ConstraintOutcomes: outcomes}, nil
	}

	// Actions mutate the working copy; a command with no mutate actions
	// falls back to merging args that name declared properties.
	resultValue, err := e.applyActions(ev, entDef, cmdDef, work, args)
	if err != nil {
		return &CommandResult{Success: false, Error: err.Error(), ConstraintOutcomes: outcomes}, nil
	}

	work.Version++
	if err := e.stores(entity).Put(ctx, e.ectx.TenantID, work); err != nil {
		return nil, &RuntimeError{Code: CodeStorage, Entity: entity, Err: err}
	}

	result := &CommandResult{
		Success:            true,
		ConstraintOutcomes: outcomes,
		Instance:           work,
	}
	if resultValue != nil {
		result.Result = &ir.Constant{Value: resultValue}
	}
	result.EmittedEvents = e.emitEvents(cmdDef, args, work)

	// Cache the executed result. A write failure logs and skips the
	// cache; the command already succeeded.
	if opts.IdempotencyKey != "" {
		encoded, err := json.Marshal(result)
		if err == nil {
			err = e.idem.Set(ctx, e.ectx.TenantID, opts.IdempotencyKey, encoded, e.ttl)
		}
		if err != nil {
			e.log.Warn("idempotency write failed, result not cached",
				"tenant", e.ectx.TenantID, "key", opts.IdempotencyKey, "error", err)
		}
	}
	return result, nil
}

// applyParamDefaults fills declared parameter defaults into a copy of
// the caller's args.
func (e *Engine) applyParamDefaults(cmdDef *ir.CommandDef, args ir.Object) ir.Object {
	merged := args.Clone()
	if merged == nil {
		merged = ir.Object{}
	}
	for _, p := range cmdDef.Parameters {
		if _, ok := merged[p.Name]; !ok && p.Default != nil {
			merged[p.Name] = ir.CloneValue(p.Default.Value)
		}
	}
	return merged
}

// checkPolicies evaluates the policies applicable to command execution
// on this entity. The first falsy policy denies the command.
func (e *Engine) checkPolicies(ev *evaluator, entity string) (bool, *CommandResult) {
	for idx := range e.ir.Policies {
		p := &e.ir.Policies[idx]
		if p.Entity != "" && p.Entity != entity {
			continue
		}
		switch p.Action {
		case "execute", "write", "all":
		default:
			continue
		}
		if p.Expr == nil {
			continue
		}
		v, err := ev.eval(p.Expr)
		if err != nil || !ir.Truthy(v) {
			msg := p.Message
			if msg == "" {
				msg = "denied by policy " + p.Name
			}
			return true, &CommandResult{Success: false, DeniedBy: p.Name, Error: msg}
		}
	}
	return false, nil
}

func (e *Engine) applyActions(ev *evaluator, entDef *ir.EntityDef, cmdDef *ir.CommandDef, work *Instance, args ir.Object) (ir.Value, error) {
	var resultValue ir.Value
	mutated := false
	for _, a := range cmdDef.Actions {
		v, err := ev.eval(a.Expr)
		if err != nil {
			return nil, err
		}
		switch a.Kind {
		case "mutate":
			work.Props[a.Target] = v
			mutated = true
		case "compute":
			if a.Target != "" {
				ev.env[a.Target] = v
			}
			resultValue = v
		}
	}
	if !mutated {
		for k, v := range args {
			if entDef.Property(k) != nil {
				work.Props[k] = ir.CloneValue(v)
			}
		}
	}
	return resultValue, nil
}

func (e *Engine) emitEvents(cmdDef *ir.CommandDef, args ir.Object, work *Instance) []EmittedEvent {
	if len(cmdDef.Emits) == 0 {
		return nil
	}
	events := make([]EmittedEvent, 0, len(cmdDef.Emits))
	for _, name := range cmdDef.Emits {
		channel := name
		if def := e.ir.Event(name); def != nil {
			channel = def.Channel
		}
		payload := ir.Object{
			"entity":   ir.String(work.Entity),
			"command":  ir.String(cmdDef.Name),
			"instance": ir.String(work.ID),
			"args":     args.Clone(),
			"state":    work.Props.Clone(),
		}
		events = append(events, EmittedEvent{
			Name:       name,
			Channel:    channel,
			Payload:    payload,
			Timestamp:  e.now().UTC(),
			Provenance: e.ir.Provenance,
		})
	}
	return events
}
