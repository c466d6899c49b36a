package compiler

// ---------------------------------------------------------------------------
// AST: Abstract Syntax Tree for SypherLang
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// Span represents a range in source code.
type Span struct {
	Start Position
	End   Position
}

// Node is the interface implemented by all AST nodes.
// The tree is strictly parent-owns-children; nodes never reference
// ancestors.
type Node interface {
	Span() Span
	node() // marker method
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Expr is the interface for expression nodes. After semantic analysis
// every expression carries its resolved static type.
type Expr interface {
	Node
	expr() // marker method
	Type() Type
}

// typ is embedded in every expression node to hold the resolved type
// annotation written by the semantic analyzer.
type typ struct {
	Typ Type
}

func (t *typ) Type() Type { return t.Typ }

// IntLiteral represents an integer literal.
type IntLiteral struct {
	typ
	SpanVal Span
	Value   int64
}

func (n *IntLiteral) Span() Span { return n.SpanVal }
func (n *IntLiteral) node()      {}
func (n *IntLiteral) expr()      {}

// StringLiteral represents a string literal.
type StringLiteral struct {
	typ
	SpanVal Span
	Value   string
}

func (n *StringLiteral) Span() Span { return n.SpanVal }
func (n *StringLiteral) node()      {}
func (n *StringLiteral) expr()      {}

// BoolLiteral represents true or false.
type BoolLiteral struct {
	typ
	SpanVal Span
	Value   bool
}

func (n *BoolLiteral) Span() Span { return n.SpanVal }
func (n *BoolLiteral) node()      {}
func (n *BoolLiteral) expr()      {}

// Ident represents a variable reference. Sym is attached by the
// semantic analyzer.
type Ident struct {
	typ
	SpanVal Span
	Name    string
	Sym     *Symbol
}

func (n *Ident) Span() Span { return n.SpanVal }
func (n *Ident) node()      {}
func (n *Ident) expr()      {}

// StateRef represents a qualified contract-state reference
// (Contract.field). Sym is attached by the semantic analyzer.
type StateRef struct {
	typ
	SpanVal  Span
	Contract string
	Field    string
	Sym      *Symbol
}

func (n *StateRef) Span() Span { return n.SpanVal }
func (n *StateRef) node()      {}
func (n *StateRef) expr()      {}

// BinaryExpr represents a binary operation.
type BinaryExpr struct {
	typ
	SpanVal Span
	Op      TokenType
	Left    Expr
	Right   Expr
}

func (n *BinaryExpr) Span() Span { return n.SpanVal }
func (n *BinaryExpr) node()      {}
func (n *BinaryExpr) expr()      {}

// UnaryExpr represents a unary operation (-x, !x).
type UnaryExpr struct {
	typ
	SpanVal Span
	Op      TokenType
	Operand Expr
}

func (n *UnaryExpr) Span() Span { return n.SpanVal }
func (n *UnaryExpr) node()      {}
func (n *UnaryExpr) expr()      {}

// CallExpr represents a call to a user function or a privacy builtin.
// Builtin is set by the semantic analyzer when the callee resolves to
// a builtin; FnIndex when it resolves to a user function.
type CallExpr struct {
	typ
	SpanVal Span
	Callee  string
	Args    []Expr
	Builtin Builtin
	FnIndex int // index into the program function list, -1 for builtins
}

func (n *CallExpr) Span() Span { return n.SpanVal }
func (n *CallExpr) node()      {}
func (n *CallExpr) expr()      {}

// IndexExpr represents a mapping access m[k].
type IndexExpr struct {
	typ
	SpanVal Span
	X       Expr
	Index   Expr
}

func (n *IndexExpr) Span() Span { return n.SpanVal }
func (n *IndexExpr) node()      {}
func (n *IndexExpr) expr()      {}

// SpawnExpr represents spawn f(args): schedules an independent call
// and evaluates to a handle.
type SpawnExpr struct {
	typ
	SpanVal Span
	Call    *CallExpr
}

func (n *SpawnExpr) Span() Span { return n.SpanVal }
func (n *SpawnExpr) node()      {}
func (n *SpawnExpr) expr()      {}

// JoinExpr represents join h: blocks until the handle resolves and
// evaluates to its result.
type JoinExpr struct {
	typ
	SpanVal Span
	Handle  Expr
	// Result type of the spawned function, attached during analysis.
}

func (n *JoinExpr) Span() Span { return n.SpanVal }
func (n *JoinExpr) node()      {}
func (n *JoinExpr) expr()      {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

// LetStmt declares a variable: let x: int = expr; or proof p = expr;
// TypeExpr is nil when the declaration relies on the initializer type.
type LetStmt struct {
	SpanVal  Span
	Name     string
	TypeExpr *TypeExpr
	Value    Expr
	Sym      *Symbol
}

func (n *LetStmt) Span() Span { return n.SpanVal }
func (n *LetStmt) node()      {}
func (n *LetStmt) stmt()      {}

// AssignStmt assigns to a variable, state field, or mapping element.
type AssignStmt struct {
	SpanVal Span
	Target  Expr // *Ident, *StateRef, or *IndexExpr
	Value   Expr
}

func (n *AssignStmt) Span() Span { return n.SpanVal }
func (n *AssignStmt) node()      {}
func (n *AssignStmt) stmt()      {}

// ReturnStmt returns from the enclosing function.
type ReturnStmt struct {
	SpanVal Span
	Value   Expr // nil for bare return
}

func (n *ReturnStmt) Span() Span { return n.SpanVal }
func (n *ReturnStmt) node()      {}
func (n *ReturnStmt) stmt()      {}

// IfStmt is a conditional with optional else branch.
type IfStmt struct {
	SpanVal Span
	Cond    Expr
	Then    *BlockStmt
	Else    *BlockStmt // nil when absent
}

func (n *IfStmt) Span() Span { return n.SpanVal }
func (n *IfStmt) node()      {}
func (n *IfStmt) stmt()      {}

// WhileStmt is a pre-tested loop.
type WhileStmt struct {
	SpanVal Span
	Cond    Expr
	Body    *BlockStmt
}

func (n *WhileStmt) Span() Span { return n.SpanVal }
func (n *WhileStmt) node()      {}
func (n *WhileStmt) stmt()      {}

// EmitStmt appends an event to the invocation event log.
type EmitStmt struct {
	SpanVal Span
	Name    string
	Args    []Expr
}

func (n *EmitStmt) Span() Span { return n.SpanVal }
func (n *EmitStmt) node()      {}
func (n *EmitStmt) stmt()      {}

// ExprStmt is an expression used as a statement; its value is dropped.
type ExprStmt struct {
	SpanVal Span
	Expr    Expr
}

func (n *ExprStmt) Span() Span { return n.SpanVal }
func (n *ExprStmt) node()      {}
func (n *ExprStmt) stmt()      {}

// BlockStmt is a brace-delimited statement list opening a new scope.
type BlockStmt struct {
	SpanVal Span
	Stmts   []Stmt
}

func (n *BlockStmt) Span() Span { return n.SpanVal }
func (n *BlockStmt) node()      {}
func (n *BlockStmt) stmt()      {}

// ---------------------------------------------------------------------------
// Declarations and top-level structure
// ---------------------------------------------------------------------------

// TypeExpr is an unresolved type annotation as written in source.
type TypeExpr struct {
	SpanVal Span
	Kind    TypeKind // scalar kinds, or TypeMapping
	Key     *TypeExpr
	Value   *TypeExpr
}

func (n *TypeExpr) Span() Span { return n.SpanVal }
func (n *TypeExpr) node()      {}

// Param is one typed function parameter.
type Param struct {
	SpanVal  Span
	Name     string
	TypeExpr *TypeExpr
	Sym      *Symbol
}

func (n *Param) Span() Span { return n.SpanVal }
func (n *Param) node()      {}

// FunctionDecl is a function definition, either top level or a
// contract member (Contract is empty for top-level functions).
type FunctionDecl struct {
	SpanVal    Span
	Name       string
	Contract   string
	Params     []*Param
	ReturnType *TypeExpr // nil means void
	Body       *BlockStmt

	// Analysis annotations.
	Ret       Type
	NumLocals int
	Index     int // position in Program.Functions
}

func (n *FunctionDecl) Span() Span { return n.SpanVal }
func (n *FunctionDecl) node()      {}

// StateVar is a declared contract state variable. Slot is assigned in
// declaration order during semantic analysis and is stable for the
// lifetime of the contract.
type StateVar struct {
	SpanVal  Span
	Name     string
	TypeExpr *TypeExpr
	Public   bool
	Slot     int
	Sym      *Symbol
}

func (n *StateVar) Span() Span { return n.SpanVal }
func (n *StateVar) node()      {}

// ContractDecl is a contract with state variables and member functions.
type ContractDecl struct {
	SpanVal Span
	Name    string
	States  []*StateVar
	Funcs   []*FunctionDecl
}

func (n *ContractDecl) Span() Span { return n.SpanVal }
func (n *ContractDecl) node()      {}

// Program is the single root node produced by the parser.
type Program struct {
	SpanVal   Span
	Contracts []*ContractDecl
	Funcs     []*FunctionDecl

	// Functions is the flattened, declaration-ordered list of all
	// functions (top level first, then contract members), filled in by
	// the semantic analyzer.
	Functions []*FunctionDecl
}

func (n *Program) Span() Span { return n.SpanVal }
func (n *Program) node()      {}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// MakeSpan creates a span from start and end positions.
func MakeSpan(start, end Position) Span {
	return Span{Start: start, End: end}
}
