package compiler

// ---------------------------------------------------------------------------
// Semantic analysis: name resolution, type checking, storage layout
// ---------------------------------------------------------------------------

// Analyzer resolves names, checks types and visibility, and assigns
// storage slots. It annotates the AST in place and never changes tree
// shape. Analysis stops at the first error.
type Analyzer struct {
	prog      *Program
	contracts map[string]*ContractDecl
	states    map[string]map[string]*Symbol // contract name -> state var symbols
	topFuncs  map[string]*FunctionDecl
	methods   map[string]map[string]*FunctionDecl // contract name -> member functions

	scopes    []map[string]*Symbol
	fn        *FunctionDecl
	contract  string // owning contract of fn, "" at top level
	numLocals int

	err *Diagnostic
}

// Analyze runs semantic analysis over prog, annotating it in place.
func Analyze(prog *Program) error {
	a := &Analyzer{
		prog:      prog,
		contracts: make(map[string]*ContractDecl),
		states:    make(map[string]map[string]*Symbol),
		topFuncs:  make(map[string]*FunctionDecl),
		methods:   make(map[string]map[string]*FunctionDecl),
	}
	a.declare()
	if a.err == nil {
		a.checkBodies()
	}
	if a.err != nil {
		return a.err
	}
	return nil
}

func (a *Analyzer) errorf(kind ErrorKind, pos Position, format string, args ...interface{}) {
	if a.err == nil {
		a.err = errorAt(kind, pos, format, args...)
	}
}

// ---------------------------------------------------------------------------
// Declaration pass
// ---------------------------------------------------------------------------

// declare registers contracts, state variables, and functions, assigns
// state storage slots in declaration order, and flattens the function
// list so every function has a stable call index.
func (a *Analyzer) declare() {
	for _, c := range a.prog.Contracts {
		if _, dup := a.contracts[c.Name]; dup {
			a.errorf(ErrDuplicateDeclaration, c.Span().Start, "contract %s already declared", c.Name)
			return
		}
		a.contracts[c.Name] = c
		a.states[c.Name] = make(map[string]*Symbol)
		a.methods[c.Name] = make(map[string]*FunctionDecl)

		for slot, sv := range c.States {
			if _, dup := a.states[c.Name][sv.Name]; dup {
				a.errorf(ErrDuplicateDeclaration, sv.Span().Start, "state variable %s already declared in contract %s", sv.Name, c.Name)
				return
			}
			t := a.resolveType(sv.TypeExpr)
			if a.err != nil {
				return
			}
			sv.Slot = slot
			sym := &Symbol{
				Name:     sv.Name,
				Type:     t,
				Mutable:  true,
				Storage:  StorageState,
				Slot:     slot,
				Contract: c.Name,
				Public:   sv.Public,
			}
			sv.Sym = sym
			a.states[c.Name][sv.Name] = sym
		}
	}

	// Flatten: top-level functions first, then contract members in
	// declaration order. Index is the CALL operand.
	for _, f := range a.prog.Funcs {
		if IsBuiltinName(f.Name) {
			a.errorf(ErrDuplicateDeclaration, f.Span().Start, "function %s shadows a builtin", f.Name)
			return
		}
		if _, dup := a.topFuncs[f.Name]; dup {
			a.errorf(ErrDuplicateDeclaration, f.Span().Start, "function %s already declared", f.Name)
			return
		}
		a.topFuncs[f.Name] = f
		f.Index = len(a.prog.Functions)
		a.prog.Functions = append(a.prog.Functions, f)
	}
	for _, c := range a.prog.Contracts {
		for _, f := range c.Funcs {
			if IsBuiltinName(f.Name) {
				a.errorf(ErrDuplicateDeclaration, f.Span().Start, "function %s shadows a builtin", f.Name)
				return
			}
			if _, dup := a.methods[c.Name][f.Name]; dup {
				a.errorf(ErrDuplicateDeclaration, f.Span().Start, "function %s already declared in contract %s", f.Name, c.Name)
				return
			}
			a.methods[c.Name][f.Name] = f
			f.Index = len(a.prog.Functions)
			a.prog.Functions = append(a.prog.Functions, f)
		}
	}

	// Resolve signatures before any body is checked so forward calls
	// type-check.
	for _, f := range a.prog.Functions {
		for _, p := range f.Params {
			t := a.resolveType(p.TypeExpr)
			if a.err != nil {
				return
			}
			if t.IsMapping() {
				a.errorf(ErrType, p.Span().Start, "parameter %s: mapping types cannot be passed by value", p.Name)
				return
			}
			p.Sym = &Symbol{Name: p.Name, Type: t, Mutable: true, Storage: StorageParam}
		}
		if f.ReturnType != nil {
			f.Ret = a.resolveType(f.ReturnType)
			if a.err != nil {
				return
			}
			if f.Ret.IsMapping() {
				a.errorf(ErrType, f.ReturnType.Span().Start, "mapping types cannot be returned by value")
				return
			}
		} else {
			f.Ret = VoidType
		}
	}
}

// resolveType lowers a source type annotation to a resolved Type.
func (a *Analyzer) resolveType(te *TypeExpr) Type {
	switch te.Kind {
	case TypeInt:
		return IntType
	case TypeBool:
		return BoolType
	case TypeString:
		return StringType
	case TypeAddress:
		return AddressType
	case TypeProof:
		return ProofType
	case TypeKey:
		return KeyType
	case TypeCiphertext:
		return CiphertextType
	case TypeMapping:
		key := a.resolveType(te.Key)
		if a.err != nil {
			return Type{}
		}
		if !key.Ordered() && key.Kind != TypeAddress && key.Kind != TypeBool {
			a.errorf(ErrType, te.Key.Span().Start, "%s is not a valid mapping key type", key)
			return Type{}
		}
		value := a.resolveType(te.Value)
		if a.err != nil {
			return Type{}
		}
		if value.IsMapping() {
			a.errorf(ErrType, te.Value.Span().Start, "mapping values cannot be mappings")
			return Type{}
		}
		return MappingType(key, value)
	default:
		a.errorf(ErrType, te.Span().Start, "invalid type annotation")
		return Type{}
	}
}

// ---------------------------------------------------------------------------
// Scope handling
// ---------------------------------------------------------------------------

func (a *Analyzer) pushScope() {
	a.scopes = append(a.scopes, make(map[string]*Symbol))
}

func (a *Analyzer) popScope() {
	a.scopes = a.scopes[:len(a.scopes)-1]
}

// declareLocal binds a symbol in the innermost scope and assigns it
// the next local slot. Slots are never reused within a function.
func (a *Analyzer) declareLocal(pos Position, name string, t Type, storage StorageClass) *Symbol {
	scope := a.scopes[len(a.scopes)-1]
	if _, dup := scope[name]; dup {
		a.errorf(ErrDuplicateDeclaration, pos, "%s already declared in this scope", name)
		return nil
	}
	sym := &Symbol{
		Name:    name,
		Type:    t,
		Depth:   len(a.scopes) - 1,
		Mutable: true,
		Storage: storage,
		Slot:    a.numLocals,
	}
	a.numLocals++
	scope[name] = sym
	return sym
}

// lookup searches the scope stack inner to outer, then the current
// contract's state variables.
func (a *Analyzer) lookup(name string) *Symbol {
	for i := len(a.scopes) - 1; i >= 0; i-- {
		if sym, ok := a.scopes[i][name]; ok {
			return sym
		}
	}
	if a.contract != "" {
		if sym, ok := a.states[a.contract][name]; ok {
			return sym
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Body checking
// ---------------------------------------------------------------------------

func (a *Analyzer) checkBodies() {
	for _, f := range a.prog.Functions {
		a.checkFunction(f)
		if a.err != nil {
			return
		}
	}
}

func (a *Analyzer) checkFunction(f *FunctionDecl) {
	a.fn = f
	a.contract = f.Contract
	a.numLocals = 0
	a.scopes = a.scopes[:0]

	a.pushScope()
	for _, p := range f.Params {
		sym := a.declareLocal(p.Span().Start, p.Name, p.Sym.Type, StorageParam)
		if sym == nil {
			return
		}
		p.Sym = sym
	}

	a.checkBlock(f.Body)
	if a.err != nil {
		return
	}
	a.popScope()

	f.NumLocals = a.numLocals

	if f.Ret.Kind != TypeVoid && !terminates(f.Body) {
		a.errorf(ErrType, f.Body.Span().End, "function %s: missing return", f.Name)
	}
}

// terminates reports whether every path through a block ends in a
// return statement.
func terminates(b *BlockStmt) bool {
	if len(b.Stmts) == 0 {
		return false
	}
	switch last := b.Stmts[len(b.Stmts)-1].(type) {
	case *ReturnStmt:
		return true
	case *IfStmt:
		return last.Else != nil && terminates(last.Then) && terminates(last.Else)
	default:
		return false
	}
}

func (a *Analyzer) checkBlock(b *BlockStmt) {
	a.pushScope()
	for _, stmt := range b.Stmts {
		a.checkStmt(stmt)
		if a.err != nil {
			return
		}
	}
	a.popScope()
}

func (a *Analyzer) checkStmt(stmt Stmt) {
	switch s := stmt.(type) {
	case *LetStmt:
		a.checkLet(s)
	case *AssignStmt:
		a.checkAssign(s)
	case *ReturnStmt:
		a.checkReturn(s)
	case *IfStmt:
		cond := a.checkExpr(s.Cond)
		if a.err != nil {
			return
		}
		if cond.Kind != TypeBool {
			a.errorf(ErrType, s.Cond.Span().Start, "if condition must be bool, got %s", cond)
			return
		}
		a.checkBlock(s.Then)
		if a.err == nil && s.Else != nil {
			a.checkBlock(s.Else)
		}
	case *WhileStmt:
		cond := a.checkExpr(s.Cond)
		if a.err != nil {
			return
		}
		if cond.Kind != TypeBool {
			a.errorf(ErrType, s.Cond.Span().Start, "while condition must be bool, got %s", cond)
			return
		}
		a.checkBlock(s.Body)
	case *EmitStmt:
		for _, arg := range s.Args {
			t := a.checkExpr(arg)
			if a.err != nil {
				return
			}
			if t.Kind == TypeVoid || t.IsMapping() {
				a.errorf(ErrType, arg.Span().Start, "cannot emit a %s value", t)
				return
			}
		}
	case *ExprStmt:
		a.checkExpr(s.Expr)
	case *BlockStmt:
		a.checkBlock(s)
	}
}

func (a *Analyzer) checkLet(s *LetStmt) {
	vt := a.checkExpr(s.Value)
	if a.err != nil {
		return
	}
	if vt.Kind == TypeVoid {
		a.errorf(ErrType, s.Value.Span().Start, "cannot assign a void value to %s", s.Name)
		return
	}
	if vt.IsMapping() {
		a.errorf(ErrType, s.Value.Span().Start, "mapping values live in contract state and cannot be copied to locals")
		return
	}

	declared := vt
	if s.TypeExpr != nil {
		declared = a.resolveType(s.TypeExpr)
		if a.err != nil {
			return
		}
		if !declared.Equal(vt) {
			a.errorf(ErrType, s.Value.Span().Start, "cannot initialize %s %s with %s value", declared, s.Name, vt)
			return
		}
	}

	s.Sym = a.declareLocal(s.Span().Start, s.Name, declared, StorageLocal)
}

func (a *Analyzer) checkAssign(s *AssignStmt) {
	var target Type
	switch t := s.Target.(type) {
	case *Ident:
		sym := a.lookup(t.Name)
		if sym == nil {
			a.errorf(ErrName, t.Span().Start, "undefined variable %s", t.Name)
			return
		}
		if !sym.Mutable {
			a.errorf(ErrType, t.Span().Start, "%s is not assignable", t.Name)
			return
		}
		t.Sym = sym
		t.Typ = sym.Type
		target = sym.Type
	case *StateRef:
		target = a.checkStateRef(t)
	case *IndexExpr:
		target = a.checkIndex(t)
	}
	if a.err != nil {
		return
	}

	vt := a.checkExpr(s.Value)
	if a.err != nil {
		return
	}
	if target.IsMapping() {
		a.errorf(ErrType, s.Target.Span().Start, "cannot assign to a mapping as a whole")
		return
	}
	if !target.Equal(vt) {
		a.errorf(ErrType, s.Value.Span().Start, "cannot assign %s value to %s target", vt, target)
	}
}

func (a *Analyzer) checkReturn(s *ReturnStmt) {
	if s.Value == nil {
		if a.fn.Ret.Kind != TypeVoid {
			a.errorf(ErrType, s.Span().Start, "function %s must return %s", a.fn.Name, a.fn.Ret)
		}
		return
	}
	vt := a.checkExpr(s.Value)
	if a.err != nil {
		return
	}
	if a.fn.Ret.Kind == TypeVoid {
		a.errorf(ErrType, s.Span().Start, "function %s returns no value", a.fn.Name)
		return
	}
	if !a.fn.Ret.Equal(vt) {
		a.errorf(ErrType, s.Value.Span().Start, "function %s must return %s, got %s", a.fn.Name, a.fn.Ret, vt)
	}
}

// ---------------------------------------------------------------------------
// Expression checking
// ---------------------------------------------------------------------------

func (a *Analyzer) checkExpr(e Expr) Type {
	switch n := e.(type) {
	case *IntLiteral:
		n.Typ = IntType
	case *StringLiteral:
		n.Typ = StringType
	case *BoolLiteral:
		n.Typ = BoolType
	case *Ident:
		sym := a.lookup(n.Name)
		if sym == nil {
			a.errorf(ErrName, n.Span().Start, "undefined variable %s", n.Name)
			return Type{}
		}
		n.Sym = sym
		n.Typ = sym.Type
	case *StateRef:
		n.Typ = a.checkStateRef(n)
	case *BinaryExpr:
		n.Typ = a.checkBinary(n)
	case *UnaryExpr:
		n.Typ = a.checkUnary(n)
	case *CallExpr:
		n.Typ = a.checkCall(n)
	case *IndexExpr:
		n.Typ = a.checkIndex(n)
	case *SpawnExpr:
		n.Typ = a.checkSpawn(n)
	case *JoinExpr:
		n.Typ = a.checkJoin(n)
	}
	if a.err != nil {
		return Type{}
	}
	return e.Type()
}

// checkStateRef resolves Contract.field and enforces visibility:
// private state is only reachable from its own contract's functions.
func (a *Analyzer) checkStateRef(n *StateRef) Type {
	c, ok := a.contracts[n.Contract]
	if !ok {
		a.errorf(ErrName, n.Span().Start, "undefined contract %s", n.Contract)
		return Type{}
	}
	sym, ok := a.states[c.Name][n.Field]
	if !ok {
		a.errorf(ErrName, n.Span().Start, "contract %s has no state variable %s", n.Contract, n.Field)
		return Type{}
	}
	if !sym.Public && a.contract != c.Name {
		a.errorf(ErrVisibility, n.Span().Start, "state variable %s.%s is private", n.Contract, n.Field)
		return Type{}
	}
	n.Sym = sym
	return sym.Type
}

func (a *Analyzer) checkBinary(n *BinaryExpr) Type {
	lt := a.checkExpr(n.Left)
	if a.err != nil {
		return Type{}
	}
	rt := a.checkExpr(n.Right)
	if a.err != nil {
		return Type{}
	}

	switch n.Op {
	case TokenPlus:
		if lt.Kind == TypeInt && rt.Kind == TypeInt {
			return IntType
		}
		if lt.Kind == TypeString && rt.Kind == TypeString {
			return StringType
		}
		a.errorf(ErrType, n.Span().Start, "operator + not defined for %s and %s", lt, rt)
	case TokenMinus, TokenStar, TokenSlash, TokenPercent:
		if lt.Kind == TypeInt && rt.Kind == TypeInt {
			return IntType
		}
		a.errorf(ErrType, n.Span().Start, "operator %s not defined for %s and %s", operatorText(n.Op), lt, rt)
	case TokenEq, TokenNe:
		if !lt.Equal(rt) {
			a.errorf(ErrType, n.Span().Start, "cannot compare %s with %s", lt, rt)
			return Type{}
		}
		if !lt.Comparable() {
			a.errorf(ErrType, n.Span().Start, "%s values are not comparable", lt)
			return Type{}
		}
		return BoolType
	case TokenLt, TokenLe, TokenGt, TokenGe:
		if !lt.Equal(rt) || !lt.Ordered() {
			a.errorf(ErrType, n.Span().Start, "operator %s not defined for %s and %s", operatorText(n.Op), lt, rt)
			return Type{}
		}
		return BoolType
	case TokenAndAnd, TokenOrOr:
		if lt.Kind != TypeBool || rt.Kind != TypeBool {
			a.errorf(ErrType, n.Span().Start, "operator %s requires bool operands", operatorText(n.Op))
			return Type{}
		}
		return BoolType
	}
	return Type{}
}

func (a *Analyzer) checkUnary(n *UnaryExpr) Type {
	ot := a.checkExpr(n.Operand)
	if a.err != nil {
		return Type{}
	}
	switch n.Op {
	case TokenMinus:
		if ot.Kind != TypeInt {
			a.errorf(ErrType, n.Span().Start, "operator - not defined for %s", ot)
			return Type{}
		}
		return IntType
	case TokenBang:
		if ot.Kind != TypeBool {
			a.errorf(ErrType, n.Span().Start, "operator ! not defined for %s", ot)
			return Type{}
		}
		return BoolType
	}
	return Type{}
}

// checkCall resolves a call to a builtin or a user function. Contract
// members resolve before top-level functions of the same name.
func (a *Analyzer) checkCall(n *CallExpr) Type {
	if sig, ok := builtinTable[n.Callee]; ok {
		if len(n.Args) != len(sig.params) {
			a.errorf(ErrType, n.Span().Start, "%s expects %d arguments, got %d", n.Callee, len(sig.params), len(n.Args))
			return Type{}
		}
		for i, arg := range n.Args {
			at := a.checkExpr(arg)
			if a.err != nil {
				return Type{}
			}
			if !at.Equal(sig.params[i]) {
				a.errorf(ErrType, arg.Span().Start, "%s argument %d must be %s, got %s", n.Callee, i+1, sig.params[i], at)
				return Type{}
			}
		}
		n.Builtin = sig.id
		n.FnIndex = -1
		return sig.ret
	}

	f := a.resolveFunction(n.Callee)
	if f == nil {
		a.errorf(ErrName, n.Span().Start, "undefined function %s", n.Callee)
		return Type{}
	}
	if len(n.Args) != len(f.Params) {
		a.errorf(ErrType, n.Span().Start, "%s expects %d arguments, got %d", n.Callee, len(f.Params), len(n.Args))
		return Type{}
	}
	for i, arg := range n.Args {
		at := a.checkExpr(arg)
		if a.err != nil {
			return Type{}
		}
		if !at.Equal(f.Params[i].Sym.Type) {
			a.errorf(ErrType, arg.Span().Start, "%s argument %d must be %s, got %s", n.Callee, i+1, f.Params[i].Sym.Type, at)
			return Type{}
		}
	}
	n.FnIndex = f.Index
	return f.Ret
}

func (a *Analyzer) resolveFunction(name string) *FunctionDecl {
	if a.contract != "" {
		if f, ok := a.methods[a.contract][name]; ok {
			return f
		}
	}
	return a.topFuncs[name]
}

func (a *Analyzer) checkIndex(n *IndexExpr) Type {
	xt := a.checkExpr(n.X)
	if a.err != nil {
		return Type{}
	}
	if !xt.IsMapping() {
		a.errorf(ErrType, n.X.Span().Start, "cannot index a %s value", xt)
		return Type{}
	}
	it := a.checkExpr(n.Index)
	if a.err != nil {
		return Type{}
	}
	if !it.Equal(*xt.Key) {
		a.errorf(ErrType, n.Index.Span().Start, "mapping key must be %s, got %s", xt.Key, it)
		return Type{}
	}
	return *xt.Value
}

// checkSpawn types spawn f(args) as a handle over f's return type.
// Only user functions can be spawned.
func (a *Analyzer) checkSpawn(n *SpawnExpr) Type {
	if IsBuiltinName(n.Call.Callee) {
		a.errorf(ErrType, n.Span().Start, "cannot spawn builtin %s", n.Call.Callee)
		return Type{}
	}
	ret := a.checkCall(n.Call)
	if a.err != nil {
		return Type{}
	}
	return HandleType(ret)
}

func (a *Analyzer) checkJoin(n *JoinExpr) Type {
	ht := a.checkExpr(n.Handle)
	if a.err != nil {
		return Type{}
	}
	if ht.Kind != TypeHandle {
		a.errorf(ErrType, n.Handle.Span().Start, "join requires a spawned handle, got %s", ht)
		return Type{}
	}
	return *ht.Value
}

// operatorText returns the source spelling of an operator token.
func operatorText(t TokenType) string {
	switch t {
	case TokenPlus:
		return "+"
	case TokenMinus:
		return "-"
	case TokenStar:
		return "*"
	case TokenSlash:
		return "/"
	case TokenPercent:
		return "%"
	case TokenEq:
		return "=="
	case TokenNe:
		return "!="
	case TokenLt:
		return "<"
	case TokenLe:
		return "<="
	case TokenGt:
		return ">"
	case TokenGe:
		return ">="
	case TokenAndAnd:
		return "&&"
	case TokenOrOr:
		return "||"
	case TokenBang:
		return "!"
	default:
		return t.String()
	}
}
