package ast

// Expr is the sealed expression interface. Only the node types in this
// file implement it.
type Expr interface {
	exprNode()
	Position() Position
}

// Literal is a string, number, boolean or null literal.
// Value is one of: nil, string, float64, bool.
type Literal struct {
	Value any
	Pos   Position
}

// Ident is a bare identifier reference.
type Ident struct {
	Name string
	Pos  Position
}

// Member is a property access: object.property or object?.property.
type Member struct {
	Object   Expr
	Property string
	Optional bool
	Pos      Position
}

// Binary is an infix operation. Operators include arithmetic (+ - * / %),
// comparison (== != < <= > >=), logical (&& || and or) and the keyword
// operators in, contains, is.
type Binary struct {
	Op    string
	Left  Expr
	Right Expr
	Pos   Position
}

// Unary is a prefix operation: !, not, or numeric negation.
type Unary struct {
	Op      string
	Operand Expr
	Pos     Position
}

// Conditional is a ternary expression: cond ? then : else.
type Conditional struct {
	Cond Expr
	Then Expr
	Else Expr
	Pos  Position
}

// Call is a function invocation, e.g. now(), len(items).
type Call struct {
	Callee Expr
	Args   []Expr
	Pos    Position
}

// ArrayLit is an array literal.
type ArrayLit struct {
	Elems []Expr
	Pos   Position
}

// ObjectLit is an object literal with ordered properties.
type ObjectLit struct {
	Props []ObjectProp
	Pos   Position
}

// ObjectProp is one key/value entry of an object literal.
type ObjectProp struct {
	Key   string
	Value Expr
}

func (*Literal) exprNode()     {}
func (*Ident) exprNode()       {}
func (*Member) exprNode()      {}
func (*Binary) exprNode()      {}
func (*Unary) exprNode()       {}
func (*Conditional) exprNode() {}
func (*Call) exprNode()        {}
func (*ArrayLit) exprNode()    {}
func (*ObjectLit) exprNode()   {}

func (e *Literal) Position() Position     { return e.Pos }
func (e *Ident) Position() Position       { return e.Pos }
func (e *Member) Position() Position      { return e.Pos }
func (e *Binary) Position() Position      { return e.Pos }
func (e *Unary) Position() Position       { return e.Pos }
func (e *Conditional) Position() Position { return e.Pos }
func (e *Call) Position() Position        { return e.Pos }
func (e *ArrayLit) Position() Position    { return e.Pos }
func (e *ObjectLit) Position() Position   { return e.Pos }
