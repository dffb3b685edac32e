package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/angriff36/manifest/internal/ir"
)

// Context identifies the caller of every engine operation. TenantID
// scopes all storage; UserID and UserRole feed policy and guard
// evaluation as `user.id` and `user.role`.
type Context struct {
	TenantID string
	UserID   string
	UserRole string
}

// Engine executes one compiled IR for one caller context.
type Engine struct {
	ir     *ir.IR
	ectx   Context
	log    *slog.Logger
	stores func(entity string) Store
	idem   IdempotencyStore
	genID  func() string
	now    func() time.Time
	ttl    time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithStoreProvider routes each entity type to a store. Entities the
// provider returns nil for fall back to the shared in-memory store.
func WithStoreProvider(provider func(entity string) Store) Option {
	return func(e *Engine) { e.stores = provider }
}

// WithIdempotencyStore sets the idempotency backend. Without one,
// idempotency keys are cached in memory.
func WithIdempotencyStore(s IdempotencyStore) Option {
	return func(e *Engine) { e.idem = s }
}

// WithIDGenerator overrides instance ID generation (default uuid v4).
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) { e.genID = gen }
}

// WithClock overrides the engine's wall clock, used for event timestamps
// and the now() builtin.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the structured logger (default slog.Default).
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithIdempotencyTTL overrides the cached-result lifetime.
func WithIdempotencyTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.ttl = ttl }
}

// New builds an engine over a compiled IR. The IR is expected to be
// ownership-normalized, which compiler.CompileToIR guarantees.
func New(compiled *ir.IR, ectx Context, opts ...Option) *Engine {
	e := &Engine{
		ir:    compiled,
		ectx:  ectx,
		log:   slog.Default(),
		genID: uuid.NewString,
		now:   time.Now,
		ttl:   DefaultIdempotencyTTL,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.stores == nil {
		shared := NewMemoryStore()
		e.stores = func(string) Store { return shared }
	} else {
		// Provider misses fall back to one shared default.
		provider := e.stores
		shared := NewMemoryStore()
		e.stores = func(entity string) Store {
			if s := provider(entity); s != nil {
				return s
			}
			return shared
		}
	}
	if e.idem == nil {
		e.idem = NewMemoryIdempotencyStore(e.now)
	}
	return e
}

// IR exposes the compiled program the engine runs.
func (e *Engine) IR() *ir.IR { return e.ir }

// CreateInstance creates and persists a new instance of entity with the
// given properties. Declared defaults fill absent properties; an "id"
// property, when present, overrides the generated instance ID.
func (e *Engine) CreateInstance(ctx context.Context, entity string, props ir.Object) (*Instance, error) {
	def := e.ir.Entity(entity)
	if def == nil {
		return nil, &RuntimeError{Code: CodeUnknownEntity, Entity: entity}
	}

	inst := &Instance{
		ID:      e.genID(),
		Entity:  entity,
		Version: 1,
		Props:   make(ir.Object, len(props)),
	}
	for _, p := range def.Properties {
		if p.Default != nil {
			inst.Props[p.Name] = ir.CloneValue(p.Default.Value)
		}
	}
	for k, v := range props {
		inst.Props[k] = ir.CloneValue(v)
	}
	if id, ok := inst.Props["id"].(ir.String); ok && id != "" {
		inst.ID = string(id)
	} else {
		inst.Props["id"] = ir.String(inst.ID)
	}

	if err := e.stores(entity).Put(ctx, e.ectx.TenantID, inst); err != nil {
		return nil, &RuntimeError{Code: CodeStorage, Entity: entity, Err: err}
	}
	return inst, nil
}

// GetInstance loads one instance.
func (e *Engine) GetInstance(ctx context.Context, entity, id string) (*Instance, error) {
	if e.ir.Entity(entity) == nil {
		return nil, &RuntimeError{Code: CodeUnknownEntity, Entity: entity}
	}
	inst, err := e.stores(entity).Get(ctx, e.ectx.TenantID, entity, id)
	if err == ErrNotFound {
		return nil, &RuntimeError{Code: CodeNotFound, Entity: entity, Err: err}
	}
	if err != nil {
		return nil, &RuntimeError{Code: CodeStorage, Entity: entity, Err: err}
	}
	return inst, nil
}

// UpdateInstance merges props into an existing instance and persists it.
func (e *Engine) UpdateInstance(ctx context.Context, entity, id string, props ir.Object) (*Instance, error) {
	inst, err := e.GetInstance(ctx, entity, id)
	if err != nil {
		return nil, err
	}
	for k, v := range props {
		inst.Props[k] = ir.CloneValue(v)
	}
	inst.Version++
	if err := e.stores(entity).Put(ctx, e.ectx.TenantID, inst); err != nil {
		return nil, &RuntimeError{Code: CodeStorage, Entity: entity, Err: err}
	}
	return inst, nil
}

// DeleteInstance removes one instance.
func (e *Engine) DeleteInstance(ctx context.Context, entity, id string) error {
	if e.ir.Entity(entity) == nil {
		return &RuntimeError{Code: CodeUnknownEntity, Entity: entity}
	}
	err := e.stores(entity).Delete(ctx, e.ectx.TenantID, entity, id)
	if err == ErrNotFound {
		return &RuntimeError{Code: CodeNotFound, Entity: entity, Err: err}
	}
	if err != nil {
		return &RuntimeError{Code: CodeStorage, Entity: entity, Err: err}
	}
	return nil
}

// ListInstances returns all instances of an entity for the tenant,
// ordered by ID.
func (e *Engine) ListInstances(ctx context.Context, entity string) ([]*Instance, error) {
	if e.ir.Entity(entity) == nil {
		return nil, &RuntimeError{Code: CodeUnknownEntity, Entity: entity}
	}
	list, err := e.stores(entity).List(ctx, e.ectx.TenantID, entity)
	if err != nil {
		return nil, &RuntimeError{Code: CodeStorage, Entity: entity, Err: err}
	}
	return list, nil
}

// CheckConstraints evaluates every constraint attached to an entity
// against a stored instance without executing anything. Outcomes come
// back in declaration order; evaluation errors count as failures.
func (e *Engine) CheckConstraints(ctx context.Context, entity, id string) ([]ConstraintOutcome, error) {
	inst, err := e.GetInstance(ctx, entity, id)
	if err != nil {
		return nil, err
	}
	ev := e.newEvaluator(inst, nil)
	var outcomes []ConstraintOutcome
	for idx := range e.ir.Constraints {
		c := &e.ir.Constraints[idx]
		if c.Entity != entity {
			continue
		}
		outcomes = append(outcomes, e.evalConstraint(ev, c))
	}
	return outcomes, nil
}

// newEvaluator builds the binding environment for one instance and one
// argument set. Args are visible both spread at top level and nested
// under "args"; self/user/context always win name collisions.
func (e *Engine) newEvaluator(inst *Instance, args ir.Object) *evaluator {
	env := make(ir.Object, len(args)+4)
	for k, v := range args {
		env[k] = v
	}
	env["args"] = args.Clone()
	if args == nil {
		env["args"] = ir.Object{}
	}
	self := ir.Object{}
	if inst != nil {
		self = inst.Props
	}
	env["self"] = self
	env["user"] = ir.Object{
		"id":   ir.String(e.ectx.UserID),
		"role": ir.String(e.ectx.UserRole),
	}
	env["context"] = ir.Object{
		"tenantId": ir.String(e.ectx.TenantID),
		"userId":   ir.String(e.ectx.UserID),
		"userRole": ir.String(e.ectx.UserRole),
	}
	return &evaluator{env: env, now: e.now, genID: e.genID}
}

func (e *Engine) evalConstraint(ev *evaluator, c *ir.ConstraintDef) ConstraintOutcome {
	out := ConstraintOutcome{
		ConstraintID: c.ID,
		Name:         c.Name,
		Severity:     c.Severity,
		Message:      c.Message,
	}
	if c.Expr == nil {
		out.Passed = true
		return out
	}
	v, err := ev.eval(c.Expr)
	if err != nil {
		out.Passed = false
		if out.Message == "" {
			out.Message = "constraint evaluation failed: " + err.Error()
		}
		return out
	}
	out.Passed = ir.Truthy(v)
	if !out.Passed && out.Message == "" {
		out.Message = "constraint violated: " + c.Expr.Format()
	}
	return out
}
