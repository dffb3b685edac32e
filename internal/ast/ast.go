package ast

// Position locates a token in manifest source. Lines and columns are
// 1-based; a zero Position means "unknown".
type Position struct {
	Line   int
	Column int
}

// IsValid reports whether the position refers to actual source.
func (p Position) IsValid() bool {
	return p.Line > 0
}

// Program is the root of one parsed manifest file.
type Program struct {
	Modules     []*Module
	Entities    []*Entity
	Commands    []*Command // commands declared outside any entity block
	Constraints []*Constraint
	Policies    []*Policy
	Events      []*Event
}

// Module is a nested declaration block. Modules group entities, commands,
// events and policies for one bounded context; the compiler flattens them.
type Module struct {
	Name        string
	Pos         Position
	Entities    []*Entity
	Commands    []*Command
	Constraints []*Constraint
	Policies    []*Policy
	Events      []*Event
}

// Entity is a named aggregate type declaration.
//
// End marks the closing brace of the entity block. The compiler uses the
// [Pos.Line, End.Line] span to cross-check raw command tokens against
// parsed commands (scanner-defect detection).
type Entity struct {
	Name        string
	Pos         Position
	End         Position
	Properties  []*Property
	Commands    []*Command
	Constraints []*Constraint
	Policies    []*Policy
	Store       string // optional `store <target>` declaration
}

// Property is a single `property` declaration within an entity.
type Property struct {
	Name      string
	Modifiers []string // required, optional, unique, indexed, readonly
	Type      Type
	Default   Expr // literal or nil
	Pos       Position
}

// Type is a declared data type, possibly generic (list<string>) or
// nullable (string?).
type Type struct {
	Name     string
	Generic  string
	Nullable bool
}

// Command is a state-transition operation declaration.
//
// Entity is the name of the enclosing entity block, or "" for commands
// declared at file or module level. The ownership normalizer guarantees
// the field is populated in compiled IR.
type Command struct {
	Name        string
	Entity      string
	Pos         Position
	Parameters  []*Parameter
	Guards      []Expr
	Constraints []*ConstraintRef
	Actions     []*Action
	Emits       []string
	Returns     *Type
}

// Parameter is a typed command parameter.
type Parameter struct {
	Name     string
	Type     Type
	Required bool
	Default  Expr
	Pos      Position
}

// Constraint is a named validation rule declared at entity or file level.
type Constraint struct {
	Name     string
	Severity string // "block" or "warn"; parser defaults to "block"
	Expr     Expr
	Message  string
	Pos      Position
}

// ConstraintRef is a constraint entry inside a command body. When Expr is
// nil the entry references an entity-level or file-level constraint of the
// same name; the compiler resolves the reference or rejects it.
type ConstraintRef struct {
	Name     string
	Severity string // "" means inherit from definition / default
	Expr     Expr
	Message  string
	Pos      Position
}

// Action is a command body statement: `mutate target = expr` or
// `compute [target =] expr`.
type Action struct {
	Kind   string // "mutate" | "compute"
	Target string
	Expr   Expr
	Pos    Position
}

// Policy is an authorization rule.
type Policy struct {
	Name    string
	Action  string // read|write|delete|execute|all
	Entity  string // enclosing entity, "" for file/module level
	Expr    Expr
	Message string
	Pos     Position
}

// Event is a domain event declaration.
type Event struct {
	Name    string
	Channel string // defaults to Name
	Fields  []*EventField
	Pos     Position
}

// EventField is one typed payload field of an event declaration.
type EventField struct {
	Name string
	Type Type
}
