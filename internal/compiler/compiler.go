package compiler

import (
	"fmt"

	"github.com/angriff36/manifest/internal/ast"
	"github.com/angriff36/manifest/internal/ir"
	"github.com/angriff36/manifest/internal/parser"
)

// CompileToIR compiles manifest source to IR. The returned IR is nil if
// and only if the diagnostics contain at least one error; callers that
// only care about success can gate on ir == nil.
//
// The returned IR has command ownership normalized and provenance
// stamped, so serializing it immediately yields a committable artifact.
func CompileToIR(source string) (*ir.IR, []ir.Diagnostic) {
	program, diags := parser.Parse(source)

	l := &lowerer{diags: diags}
	out := l.lower(program)

	l.checkCommandCoverage(source, program)

	if ir.HasErrors(l.diags) {
		return nil, l.diags
	}

	if err := EnforceCommandOwnership(out, out.Manifest); err != nil {
		l.diags = append(l.diags, ir.Errorf(0, 0, "command ownership: %v", err))
		return nil, l.diags
	}

	// Ownership repair can attribute a file-level command to an entity
	// that already declares one with the same name, so uniqueness must
	// hold over the normalized attribution, not the parsed one.
	l.checkCommandUniqueness(out)
	if ir.HasErrors(l.diags) {
		return nil, l.diags
	}

	if err := ir.Stamp(out); err != nil {
		l.diags = append(l.diags, ir.Errorf(0, 0, "provenance stamp: %v", err))
		return nil, l.diags
	}
	return out, l.diags
}

// checkCommandCoverage cross-checks, per entity, the raw `command`
// keyword tokens inside the entity's source span against the number of
// commands the parser produced for it. A mismatch means a declaration
// was silently swallowed somewhere between scanning and lowering, which
// must fail the compile rather than ship an IR missing a command.
func (l *lowerer) checkCommandCoverage(source string, program *ast.Program) {
	var entities []*ast.Entity
	entities = append(entities, program.Entities...)
	for _, m := range program.Modules {
		entities = append(entities, m.Entities...)
	}
	for _, e := range entities {
		if !e.Pos.IsValid() || !e.End.IsValid() {
			continue
		}
		raw := parser.CountCommandTokens(source, e.Pos.Line, e.End.Line)
		if raw != len(e.Commands) {
			l.diags = append(l.diags, ir.Errorf(e.Pos.Line, e.Pos.Column,
				"entity %s declares %d command tokens but %d commands were parsed",
				e.Name, raw, len(e.Commands)))
		}
	}
}

// checkCommandUniqueness re-checks (entity, name) pairs after ownership
// normalization. Lowering dedupes on the parsed attribution, which lets
// a file-level command slip past an entity-scoped command of the same
// name until repair unifies their entity tags.
func (l *lowerer) checkCommandUniqueness(out *ir.IR) {
	seen := make(map[string]bool, len(out.Commands))
	for idx := range out.Commands {
		cmd := &out.Commands[idx]
		key := cmd.Entity + "." + cmd.Name
		if seen[key] {
			l.diags = append(l.diags, ir.Errorf(cmd.Line, 0,
				"duplicate command %q", key))
			continue
		}
		seen[key] = true
	}
}

// lowerer carries state for one compile of one manifest file.
type lowerer struct {
	diags []ir.Diagnostic
	out   *ir.IR

	entityNames  map[string]bool
	commandKeys  map[string]bool
	constraintID map[string]bool
}

func (l *lowerer) lower(program *ast.Program) *ir.IR {
	l.out = &ir.IR{
		Entities:    []ir.EntityDef{},
		Commands:    []ir.CommandDef{},
		Constraints: []ir.ConstraintDef{},
		Policies:    []ir.PolicyDef{},
		Events:      []ir.EventDef{},
	}
	l.entityNames = map[string]bool{}
	l.commandKeys = map[string]bool{}
	l.constraintID = map[string]bool{}

	if len(program.Modules) > 0 {
		l.out.Manifest = program.Modules[0].Name
	}

	// Pass 1: entities (with their constraint definitions), file-level
	// constraint definitions, events and policies. Constraint definitions
	// must all be registered before commands resolve references to them.
	for _, e := range program.Entities {
		l.lowerEntity(e)
	}
	for _, m := range program.Modules {
		for _, e := range m.Entities {
			l.lowerEntity(e)
		}
		for _, c := range m.Constraints {
			l.lowerConstraintDef(c, "")
		}
		for _, ev := range m.Events {
			l.lowerEvent(ev)
		}
		for _, pol := range m.Policies {
			l.lowerPolicy(pol)
		}
	}
	for _, c := range program.Constraints {
		l.lowerConstraintDef(c, "")
	}
	for _, ev := range program.Events {
		l.lowerEvent(ev)
	}
	for _, pol := range program.Policies {
		l.lowerPolicy(pol)
	}

	// Pass 2: commands, now that every named constraint is known.
	for _, e := range program.Entities {
		for _, c := range e.Commands {
			l.lowerCommand(c)
		}
	}
	for _, m := range program.Modules {
		for _, e := range m.Entities {
			for _, c := range e.Commands {
				l.lowerCommand(c)
			}
		}
		for _, c := range m.Commands {
			l.lowerCommand(c)
		}
	}
	for _, c := range program.Commands {
		l.lowerCommand(c)
	}

	return l.out
}

func (l *lowerer) lowerEntity(e *ast.Entity) {
	if l.entityNames[e.Name] {
		l.diags = append(l.diags, ir.Errorf(e.Pos.Line, e.Pos.Column,
			"duplicate entity %q", e.Name))
		return
	}
	l.entityNames[e.Name] = true

	def := ir.EntityDef{Name: e.Name, Properties: []ir.PropertyDef{}, Line: e.Pos.Line}
	for _, p := range e.Properties {
		def.Properties = append(def.Properties, l.lowerProperty(p))
	}
	for _, pol := range e.Policies {
		l.lowerPolicy(pol)
		def.Policies = append(def.Policies, pol.Name)
	}
	l.out.Entities = append(l.out.Entities, def)

	for _, c := range e.Constraints {
		l.lowerConstraintDef(c, e.Name)
	}
}

func (l *lowerer) lowerProperty(p *ast.Property) ir.PropertyDef {
	def := ir.PropertyDef{
		Name:      p.Name,
		Type:      typeString(p.Type),
		Modifiers: p.Modifiers,
		Nullable:  p.Type.Nullable,
	}
	if p.Default != nil {
		def.Default = l.lowerConstantExpr(p.Default)
	}
	return def
}

// lowerConstantExpr lowers a default-value expression, which must be a
// literal (or an array/object of literals).
func (l *lowerer) lowerConstantExpr(e ast.Expr) *ir.Constant {
	v, ok := constantValue(e)
	if !ok {
		pos := e.Position()
		l.diags = append(l.diags, ir.Errorf(pos.Line, pos.Column,
			"default values must be literals"))
		return nil
	}
	return &ir.Constant{Value: v}
}

func constantValue(e ast.Expr) (ir.Value, bool) {
	switch n := e.(type) {
	case *ast.Literal:
		v, err := ir.FromGo(n.Value)
		return v, err == nil
	case *ast.ArrayLit:
		list := make(ir.List, 0, len(n.Elems))
		for _, el := range n.Elems {
			v, ok := constantValue(el)
			if !ok {
				return nil, false
			}
			list = append(list, v)
		}
		return list, true
	case *ast.ObjectLit:
		obj := make(ir.Object, len(n.Props))
		for _, p := range n.Props {
			v, ok := constantValue(p.Value)
			if !ok {
				return nil, false
			}
			obj[p.Key] = v
		}
		return obj, true
	case *ast.Unary:
		if n.Op == "-" {
			if lit, isLit := n.Operand.(*ast.Literal); isLit {
				if f, isNum := lit.Value.(float64); isNum {
					return ir.Number(-f), true
				}
			}
		}
	}
	return nil, false
}

func (l *lowerer) lowerConstraintDef(c *ast.Constraint, entity string) {
	id := c.Name
	if entity != "" {
		id = entity + "." + c.Name
	}
	if l.constraintID[id] {
		l.diags = append(l.diags, ir.Errorf(c.Pos.Line, c.Pos.Column,
			"duplicate constraint %q", id))
		return
	}
	l.constraintID[id] = true

	sev := c.Severity
	if sev == "" {
		sev = ir.SeverityBlock
	}
	l.out.Constraints = append(l.out.Constraints, ir.ConstraintDef{
		ID:       id,
		Name:     c.Name,
		Entity:   entity,
		Severity: sev,
		Expr:     l.lowerExpr(c.Expr),
		Message:  c.Message,
	})
}

func (l *lowerer) lowerCommand(c *ast.Command) {
	key := c.Entity + "." + c.Name
	if l.commandKeys[key] {
		l.diags = append(l.diags, ir.Errorf(c.Pos.Line, c.Pos.Column,
			"duplicate command %q", key))
		return
	}
	l.commandKeys[key] = true

	def := ir.CommandDef{Name: c.Name, Entity: c.Entity, Line: c.Pos.Line}
	for _, p := range c.Parameters {
		param := ir.ParamDef{Name: p.Name, Type: typeString(p.Type), Required: p.Required}
		if p.Default != nil {
			param.Default = l.lowerConstantExpr(p.Default)
		}
		def.Parameters = append(def.Parameters, param)
	}
	for _, g := range c.Guards {
		if expr := l.lowerExpr(g); expr != nil {
			def.Guards = append(def.Guards, *expr)
		}
	}
	for _, ref := range c.Constraints {
		if id, ok := l.resolveConstraintRef(c, ref); ok {
			def.Constraints = append(def.Constraints, id)
		}
	}
	for _, a := range c.Actions {
		def.Actions = append(def.Actions, ir.ActionDef{
			Kind:   a.Kind,
			Target: a.Target,
			Expr:   l.lowerExpr(a.Expr),
		})
	}
	def.Emits = append(def.Emits, c.Emits...)
	l.out.Commands = append(l.out.Commands, def)
}

// resolveConstraintRef turns a command-body constraint entry into a
// constraint ID, registering an inline definition when the entry carries
// its own expression or overrides a named definition's severity or
// message. Entries with no expression must name an entity-level or
// file-level constraint.
func (l *lowerer) resolveConstraintRef(c *ast.Command, ref *ast.ConstraintRef) (string, bool) {
	if ref.Expr != nil {
		id := c.Entity + "." + c.Name + "." + ref.Name
		if c.Entity == "" {
			id = c.Name + "." + ref.Name
		}
		if l.constraintID[id] {
			l.diags = append(l.diags, ir.Errorf(ref.Pos.Line, ref.Pos.Column,
				"duplicate constraint %q", id))
			return "", false
		}
		l.constraintID[id] = true
		sev := ref.Severity
		if sev == "" {
			sev = ir.SeverityBlock
		}
		l.out.Constraints = append(l.out.Constraints, ir.ConstraintDef{
			ID:       id,
			Name:     ref.Name,
			Entity:   c.Entity,
			Command:  c.Name,
			Severity: sev,
			Expr:     l.lowerExpr(ref.Expr),
			Message:  ref.Message,
		})
		return id, true
	}

	// Reference to a named definition: entity scope first, then file scope.
	var target *ir.ConstraintDef
	if c.Entity != "" {
		target = l.out.Constraint(c.Entity + "." + ref.Name)
	}
	if target == nil {
		target = l.out.Constraint(ref.Name)
	}
	if target == nil {
		l.diags = append(l.diags, ir.Errorf(ref.Pos.Line, ref.Pos.Column,
			"command %s references unknown constraint %q", c.Name, ref.Name))
		return "", false
	}

	// No overrides: reuse the definition as-is.
	if (ref.Severity == "" || ref.Severity == target.Severity) &&
		(ref.Message == "" || ref.Message == target.Message) {
		return target.ID, true
	}

	// Overrides specialize the definition for this command only.
	id := fmt.Sprintf("%s.%s.%s", c.Entity, c.Name, ref.Name)
	if c.Entity == "" {
		id = c.Name + "." + ref.Name
	}
	if l.constraintID[id] {
		return id, true
	}
	l.constraintID[id] = true
	spec := *target
	spec.ID = id
	spec.Entity = c.Entity
	spec.Command = c.Name
	if ref.Severity != "" {
		spec.Severity = ref.Severity
	}
	if ref.Message != "" {
		spec.Message = ref.Message
	}
	l.out.Constraints = append(l.out.Constraints, spec)
	return id, true
}

func (l *lowerer) lowerPolicy(p *ast.Policy) {
	action := p.Action
	if action == "" {
		action = "all"
	}
	l.out.Policies = append(l.out.Policies, ir.PolicyDef{
		Name:    p.Name,
		Entity:  p.Entity,
		Action:  action,
		Expr:    l.lowerExpr(p.Expr),
		Message: p.Message,
	})
}

func (l *lowerer) lowerEvent(ev *ast.Event) {
	def := ir.EventDef{Name: ev.Name, Channel: ev.Channel}
	if def.Channel == "" {
		def.Channel = ev.Name
	}
	for _, f := range ev.Fields {
		def.Fields = append(def.Fields, ir.FieldDef{Name: f.Name, Type: typeString(f.Type)})
	}
	l.out.Events = append(l.out.Events, def)
}

func typeString(t ast.Type) string {
	if t.Generic != "" {
		return t.Name + "<" + t.Generic + ">"
	}
	return t.Name
}
