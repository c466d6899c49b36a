package compiler

import (
	"github.com/CipherCoRetech/SypherLang/bytecode"
)

// ---------------------------------------------------------------------------
// Code generation: annotated AST -> bytecode module
// ---------------------------------------------------------------------------

// maxJumpDelta bounds the signed 16-bit jump operand.
const maxJumpDelta = 1<<15 - 1

// codegen lowers an analyzed program by a single depth-first walk.
// Expressions compile to sequences that leave exactly one value on
// the operand stack; statements compile to sequences with no net
// stack effect.
type codegen struct {
	prog *Program
	mod  *bytecode.Module
	err  *Diagnostic
}

// Generate emits a bytecode module for an analyzed program. After
// semantic analysis has passed this stage only fails for conditions
// the analyzer cannot see, such as a jump spanning more code than a
// 16-bit offset can express.
func Generate(prog *Program) (*bytecode.Module, error) {
	g := &codegen{
		prog: prog,
		mod:  bytecode.NewModule(),
	}
	g.layout()
	g.functions()
	if g.err != nil {
		return nil, g.err
	}
	return g.mod, nil
}

func (g *codegen) errorf(pos Position, format string, args ...interface{}) {
	if g.err == nil {
		g.err = errorAt(ErrCompile, pos, format, args...)
	}
}

// layout interns contract names and records the storage layout. Slot
// indices follow declaration order, matching semantic analysis.
func (g *codegen) layout() {
	for _, c := range g.prog.Contracts {
		g.mod.ContractIndex(c.Name)
		for _, sv := range c.States {
			g.mod.Storage = append(g.mod.Storage, bytecode.StateSlot{
				Contract: c.Name,
				Name:     sv.Name,
				Slot:     uint16(sv.Slot),
				Type:     sv.Sym.Type.String(),
				Public:   sv.Public,
			})
		}
	}
}

// functions emits every function body and fills the function table.
// Table order matches FunctionDecl.Index, so CALL operands resolve by
// position.
func (g *codegen) functions() {
	if len(g.prog.Functions) > 1<<16 {
		g.errorf(g.prog.Span().Start, "too many functions for a 16-bit call operand")
		return
	}
	for _, f := range g.prog.Functions {
		if f.NumLocals > 1<<8-1 {
			g.errorf(f.Span().Start, "function %s needs %d local slots, limit is 255", f.Name, f.NumLocals)
			return
		}
		info := bytecode.FuncInfo{
			Name:      f.Name,
			Contract:  f.Contract,
			Offset:    uint32(g.mod.CurrentOffset()),
			Arity:     uint8(len(f.Params)),
			NumLocals: uint8(f.NumLocals),
		}
		for _, p := range f.Params {
			info.ParamNames = append(info.ParamNames, p.Name)
		}
		if f.Ret.Kind != TypeVoid {
			info.Return = f.Ret.String()
		}
		g.mod.Functions = append(g.mod.Functions, info)

		g.block(f.Body)
		if g.err != nil {
			return
		}
		if !terminates(f.Body) {
			g.mod.Emit(bytecode.OpRetVoid)
		}
	}
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (g *codegen) block(b *BlockStmt) {
	for _, stmt := range b.Stmts {
		g.stmt(stmt)
		if g.err != nil {
			return
		}
	}
}

func (g *codegen) stmt(stmt Stmt) {
	switch s := stmt.(type) {
	case *LetStmt:
		g.expr(s.Value)
		g.mod.EmitU8(bytecode.OpStoreLocal, uint8(s.Sym.Slot))

	case *AssignStmt:
		g.assign(s)

	case *ReturnStmt:
		if s.Value != nil {
			g.expr(s.Value)
			g.mod.Emit(bytecode.OpRet)
		} else {
			g.mod.Emit(bytecode.OpRetVoid)
		}

	case *IfStmt:
		g.expr(s.Cond)
		elseJump := g.mod.EmitJump(bytecode.OpJumpFalse)
		g.block(s.Then)
		if s.Else != nil {
			endJump := g.mod.EmitJump(bytecode.OpJump)
			g.patchJump(s.Span().Start, elseJump)
			g.block(s.Else)
			g.patchJump(s.Span().Start, endJump)
		} else {
			g.patchJump(s.Span().Start, elseJump)
		}

	case *WhileStmt:
		loopStart := g.mod.CurrentOffset()
		g.expr(s.Cond)
		exitJump := g.mod.EmitJump(bytecode.OpJumpFalse)
		g.block(s.Body)
		g.emitLoop(s.Span().Start, loopStart)
		g.patchJump(s.Span().Start, exitJump)

	case *EmitStmt:
		for _, arg := range s.Args {
			g.expr(arg)
		}
		nameIdx := g.mod.AddConstant(bytecode.StringConstant(s.Name))
		g.mod.EmitWithOperand(bytecode.OpEmit, byte(nameIdx>>8), byte(nameIdx), byte(len(s.Args)))

	case *ExprStmt:
		g.expr(s.Expr)
		if s.Expr.Type().Kind != TypeVoid {
			g.mod.Emit(bytecode.OpPop)
		}

	case *BlockStmt:
		g.block(s)
	}
}

// assign stores an expression into a local, a state slot, or a mapping
// entry. Mapping entries are read-modify-write: the whole map is
// loaded, updated, and stored back so snapshot isolation sees the
// write as one slot mutation.
func (g *codegen) assign(s *AssignStmt) {
	switch t := s.Target.(type) {
	case *Ident:
		if t.Sym.Storage == StorageState {
			g.expr(s.Value)
			g.storeState(t.Sym)
		} else {
			g.expr(s.Value)
			g.mod.EmitU8(bytecode.OpStoreLocal, uint8(t.Sym.Slot))
		}

	case *StateRef:
		g.expr(s.Value)
		g.storeState(t.Sym)

	case *IndexExpr:
		sym := g.mappingSymbol(t.X)
		if sym == nil {
			g.errorf(t.X.Span().Start, "mapping assignment target must name a state variable")
			return
		}
		g.loadState(sym)
		g.expr(t.Index)
		g.expr(s.Value)
		g.mod.Emit(bytecode.OpMapSet)
		g.storeState(sym)
	}
}

// mappingSymbol resolves the state symbol behind a mapping lvalue.
func (g *codegen) mappingSymbol(x Expr) *Symbol {
	switch n := x.(type) {
	case *Ident:
		if n.Sym != nil && n.Sym.Storage == StorageState {
			return n.Sym
		}
	case *StateRef:
		return n.Sym
	}
	return nil
}

func (g *codegen) loadState(sym *Symbol) {
	contract := g.mod.ContractIndex(sym.Contract)
	slot := uint16(sym.Slot)
	g.mod.EmitWithOperand(bytecode.OpLoadState,
		byte(contract>>8), byte(contract), byte(slot>>8), byte(slot))
}

func (g *codegen) storeState(sym *Symbol) {
	contract := g.mod.ContractIndex(sym.Contract)
	slot := uint16(sym.Slot)
	g.mod.EmitWithOperand(bytecode.OpStoreState,
		byte(contract>>8), byte(contract), byte(slot>>8), byte(slot))
}

func (g *codegen) patchJump(pos Position, placeholder int) {
	if g.mod.CurrentOffset()-(placeholder+2) > maxJumpDelta {
		g.errorf(pos, "jump target out of range")
		return
	}
	g.mod.PatchJump(placeholder)
}

func (g *codegen) emitLoop(pos Position, loopStart int) {
	if g.mod.CurrentOffset()+3-loopStart > maxJumpDelta {
		g.errorf(pos, "loop body out of range")
		return
	}
	g.mod.EmitLoop(loopStart)
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (g *codegen) expr(e Expr) {
	if g.err != nil {
		return
	}

	switch n := e.(type) {
	case *IntLiteral:
		g.mod.EmitConstant(bytecode.IntConstant(n.Value))

	case *StringLiteral:
		g.mod.EmitConstant(bytecode.StringConstant(n.Value))

	case *BoolLiteral:
		if n.Value {
			g.mod.Emit(bytecode.OpConstTrue)
		} else {
			g.mod.Emit(bytecode.OpConstFalse)
		}

	case *Ident:
		if n.Sym.Storage == StorageState {
			g.loadState(n.Sym)
		} else {
			g.mod.EmitU8(bytecode.OpLoadLocal, uint8(n.Sym.Slot))
		}

	case *StateRef:
		g.loadState(n.Sym)

	case *BinaryExpr:
		g.binary(n)

	case *UnaryExpr:
		g.expr(n.Operand)
		if n.Op == TokenMinus {
			g.mod.Emit(bytecode.OpNeg)
		} else {
			g.mod.Emit(bytecode.OpNot)
		}

	case *CallExpr:
		g.call(n)

	case *IndexExpr:
		g.expr(n.X)
		g.expr(n.Index)
		g.mod.Emit(bytecode.OpMapGet)

	case *SpawnExpr:
		for _, arg := range n.Call.Args {
			g.expr(arg)
		}
		fn := uint16(n.Call.FnIndex)
		g.mod.EmitWithOperand(bytecode.OpSpawn,
			byte(fn>>8), byte(fn), byte(len(n.Call.Args)))

	case *JoinExpr:
		g.expr(n.Handle)
		g.mod.Emit(bytecode.OpJoin)
	}
}

// binary lowers a binary operation. Logical operators short-circuit
// via jumps; everything else evaluates both operands then applies the
// opcode.
func (g *codegen) binary(n *BinaryExpr) {
	switch n.Op {
	case TokenAndAnd:
		// a && b: if a is false the result is false without
		// evaluating b.
		g.expr(n.Left)
		falseJump := g.mod.EmitJump(bytecode.OpJumpFalse)
		g.expr(n.Right)
		endJump := g.mod.EmitJump(bytecode.OpJump)
		g.patchJump(n.Span().Start, falseJump)
		g.mod.Emit(bytecode.OpConstFalse)
		g.patchJump(n.Span().Start, endJump)
		return

	case TokenOrOr:
		// a || b: if a is true the result is true without
		// evaluating b.
		g.expr(n.Left)
		evalRight := g.mod.EmitJump(bytecode.OpJumpFalse)
		g.mod.Emit(bytecode.OpConstTrue)
		endJump := g.mod.EmitJump(bytecode.OpJump)
		g.patchJump(n.Span().Start, evalRight)
		g.expr(n.Right)
		g.patchJump(n.Span().Start, endJump)
		return
	}

	g.expr(n.Left)
	g.expr(n.Right)

	switch n.Op {
	case TokenPlus:
		if n.Left.Type().Kind == TypeString {
			g.mod.Emit(bytecode.OpConcat)
		} else {
			g.mod.Emit(bytecode.OpAdd)
		}
	case TokenMinus:
		g.mod.Emit(bytecode.OpSub)
	case TokenStar:
		g.mod.Emit(bytecode.OpMul)
	case TokenSlash:
		g.mod.Emit(bytecode.OpDiv)
	case TokenPercent:
		g.mod.Emit(bytecode.OpMod)
	case TokenEq:
		g.mod.Emit(bytecode.OpEq)
	case TokenNe:
		g.mod.Emit(bytecode.OpNe)
	case TokenLt:
		g.mod.Emit(bytecode.OpLt)
	case TokenLe:
		g.mod.Emit(bytecode.OpLe)
	case TokenGt:
		g.mod.Emit(bytecode.OpGt)
	case TokenGe:
		g.mod.Emit(bytecode.OpGe)
	}
}

// call lowers a builtin or user function call. Arguments are pushed
// left to right.
func (g *codegen) call(n *CallExpr) {
	for _, arg := range n.Args {
		g.expr(arg)
	}

	if n.Builtin != BuiltinNone {
		switch n.Builtin {
		case BuiltinKeygen:
			g.mod.Emit(bytecode.OpLatticeKeygen)
		case BuiltinEncrypt:
			g.mod.Emit(bytecode.OpLatticeEncrypt)
		case BuiltinDecrypt:
			g.mod.Emit(bytecode.OpLatticeDecrypt)
		case BuiltinExchangeKey:
			g.mod.Emit(bytecode.OpExchangeKey)
		case BuiltinProve:
			g.mod.Emit(bytecode.OpProve)
		case BuiltinVerify:
			g.mod.Emit(bytecode.OpVerify)
		case BuiltinVerifySig:
			g.mod.Emit(bytecode.OpSigVerify)
		}
		return
	}

	fn := uint16(n.FnIndex)
	g.mod.EmitWithOperand(bytecode.OpCall,
		byte(fn>>8), byte(fn), byte(len(n.Args)))
}
