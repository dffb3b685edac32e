package ir

// Constraint severity levels. Block rejects the whole command execution;
// warn is advisory and never blocks.
const (
	SeverityBlock = "block"
	SeverityWarn  = "warn"
)

// IR is the compiled, serializable output of the manifest compiler.
// Entities, commands, constraints, policies and events are flat lists in
// declaration order. The JSON shape is a wire contract consumed by the
// runtime, the route generator and the drift checker.
type IR struct {
	Manifest    string          `json:"manifest,omitempty"`
	Entities    []EntityDef     `json:"entities"`
	Commands    []CommandDef    `json:"commands"`
	Constraints []ConstraintDef `json:"constraints"`
	Policies    []PolicyDef     `json:"policies"`
	Events      []EventDef      `json:"events"`
	Provenance  *Provenance     `json:"provenance,omitempty"`
}

// EntityDef is a compiled entity declaration.
type EntityDef struct {
	Name       string        `json:"name"`
	Properties []PropertyDef `json:"properties"`
	Commands   []string      `json:"commands"` // owned command names, declaration order
	Policies   []string      `json:"policies,omitempty"`
	Line       int           `json:"line,omitempty"`
}

// PropertyDef is a compiled property declaration.
type PropertyDef struct {
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Modifiers []string  `json:"modifiers,omitempty"`
	Nullable  bool      `json:"nullable,omitempty"`
	Default   *Constant `json:"default,omitempty"`
}

// CommandDef is a compiled command tagged with its owning entity.
// After ownership normalization Entity is always non-empty and names an
// entity present in the same IR.
type CommandDef struct {
	Name        string       `json:"name"`
	Entity      string       `json:"entity"`
	Parameters  []ParamDef   `json:"parameters,omitempty"`
	Guards      []Expression `json:"guards,omitempty"`
	Constraints []string     `json:"constraints,omitempty"` // constraint IDs, declaration order
	Actions     []ActionDef  `json:"actions,omitempty"`
	Emits       []string     `json:"emits,omitempty"`
	Line        int          `json:"line,omitempty"`
}

// ParamDef is a compiled command parameter.
type ParamDef struct {
	Name     string    `json:"name"`
	Type     string    `json:"type"`
	Required bool      `json:"required"`
	Default  *Constant `json:"default,omitempty"`
}

// ActionDef is a compiled command body statement.
type ActionDef struct {
	Kind   string      `json:"kind"` // "mutate" | "compute"
	Target string      `json:"target,omitempty"`
	Expr   *Expression `json:"expr,omitempty"`
}

// ConstraintDef is a compiled constraint. ID is globally unique within
// one IR: "Entity.name" for entity-level constraints, "Entity.command.name"
// for constraints declared inline in a command body, and the bare name for
// file-level constraints.
type ConstraintDef struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Entity   string      `json:"entity,omitempty"`
	Command  string      `json:"command,omitempty"`
	Severity string      `json:"severity"`
	Expr     *Expression `json:"expr,omitempty"`
	Message  string      `json:"message,omitempty"`
}

// PolicyDef is a compiled authorization rule.
type PolicyDef struct {
	Name    string      `json:"name"`
	Entity  string      `json:"entity,omitempty"`
	Action  string      `json:"action"` // read|write|delete|execute|all
	Expr    *Expression `json:"expr"`
	Message string      `json:"message,omitempty"`
}

// EventDef is a compiled event declaration.
type EventDef struct {
	Name    string     `json:"name"`
	Channel string     `json:"channel"`
	Fields  []FieldDef `json:"fields,omitempty"`
}

// FieldDef is one typed event payload field.
type FieldDef struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Provenance identifies the compiler run that produced an IR. ContentHash
// covers the canonical encoding of the IR with Provenance itself removed,
// so recompiling unchanged source reproduces the hash.
type Provenance struct {
	ContentHash     string `json:"contentHash"`
	CompilerVersion string `json:"compilerVersion"`
	SchemaVersion   string `json:"schemaVersion"`
}

// Entity returns the entity definition with the given name, or nil.
func (i *IR) Entity(name string) *EntityDef {
	for idx := range i.Entities {
		if i.Entities[idx].Name == name {
			return &i.Entities[idx]
		}
	}
	return nil
}

// Command returns the command owned by entity with the given name, or nil.
func (i *IR) Command(entity, name string) *CommandDef {
	for idx := range i.Commands {
		if i.Commands[idx].Entity == entity && i.Commands[idx].Name == name {
			return &i.Commands[idx]
		}
	}
	return nil
}

// Constraint returns the constraint with the given ID, or nil.
func (i *IR) Constraint(id string) *ConstraintDef {
	for idx := range i.Constraints {
		if i.Constraints[idx].ID == id {
			return &i.Constraints[idx]
		}
	}
	return nil
}

// Event returns the event definition with the given name, or nil.
func (i *IR) Event(name string) *EventDef {
	for idx := range i.Events {
		if i.Events[idx].Name == name {
			return &i.Events[idx]
		}
	}
	return nil
}

// Property returns the property definition on an entity, or nil.
func (e *EntityDef) Property(name string) *PropertyDef {
	for idx := range e.Properties {
		if e.Properties[idx].Name == name {
			return &e.Properties[idx]
		}
	}
	return nil
}
