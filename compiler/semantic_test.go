package compiler

import (
	"strings"
	"testing"
)

func analyze(t *testing.T, src string) *Program {
	t.Helper()
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if err := Analyze(prog); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	return prog
}

func analyzeErr(t *testing.T, src string) *Diagnostic {
	t.Helper()
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	err = Analyze(prog)
	if err == nil {
		t.Fatal("Analyze succeeded, want error")
	}
	return err.(*Diagnostic)
}

func TestAnalyzeResolvesLocals(t *testing.T) {
	prog := analyze(t, `function f(a: int): int { let b = a + 1; return b; }`)

	f := prog.Functions[0]
	if f.NumLocals != 2 {
		t.Errorf("NumLocals = %d, want 2", f.NumLocals)
	}
	if f.Params[0].Sym.Slot != 0 {
		t.Errorf("param slot = %d, want 0", f.Params[0].Sym.Slot)
	}

	let := f.Body.Stmts[0].(*LetStmt)
	if let.Sym == nil || let.Sym.Slot != 1 {
		t.Errorf("let slot = %v, want 1", let.Sym)
	}
	if !let.Sym.Type.Equal(IntType) {
		t.Errorf("let type = %s, want int", let.Sym.Type)
	}
}

func TestAnalyzeShadowing(t *testing.T) {
	src := `
function f(): int {
	let x = 1;
	if (true) {
		let x = 2;
		return x;
	}
	return x;
}`
	prog := analyze(t, src)

	f := prog.Functions[0]
	outer := f.Body.Stmts[0].(*LetStmt)
	ifs := f.Body.Stmts[1].(*IfStmt)
	inner := ifs.Then.Stmts[0].(*LetStmt)

	if outer.Sym.Slot == inner.Sym.Slot {
		t.Errorf("shadowed variable reuses slot %d", outer.Sym.Slot)
	}
	innerRet := ifs.Then.Stmts[1].(*ReturnStmt)
	if innerRet.Value.(*Ident).Sym != inner.Sym {
		t.Errorf("inner x should resolve to the inner declaration")
	}
}

func TestAnalyzeStateSlots(t *testing.T) {
	src := `
contract Token {
	public let supply: int;
	private let owner: address;

	function mint(n: int) {
		supply = supply + n;
	}
}`
	prog := analyze(t, src)

	c := prog.Contracts[0]
	if c.States[0].Slot != 0 || c.States[1].Slot != 1 {
		t.Errorf("slots = %d, %d, want 0, 1", c.States[0].Slot, c.States[1].Slot)
	}

	// Bare state name inside the contract resolves to the state symbol.
	assign := c.Funcs[0].Body.Stmts[0].(*AssignStmt)
	target := assign.Target.(*Ident)
	if target.Sym.Storage != StorageState {
		t.Errorf("storage class = %s, want state", target.Sym.Storage)
	}
	if target.Sym.Contract != "Token" {
		t.Errorf("owning contract = %q, want Token", target.Sym.Contract)
	}
}

func TestAnalyzeVisibility(t *testing.T) {
	// Public state is reachable from anywhere.
	analyze(t, `
contract A { public let x: int; }
function f(): int { return A.x; }`)

	// Private state is not.
	diag := analyzeErr(t, `
contract A { private let secret: int; }
function f(): int { return A.secret; }`)
	if diag.Kind != ErrVisibility {
		t.Errorf("kind = %s, want visibility", diag.Kind)
	}

	// Not even from another contract.
	diag = analyzeErr(t, `
contract A { private let secret: int; }
contract B {
	function peek(): int { return A.secret; }
}`)
	if diag.Kind != ErrVisibility {
		t.Errorf("kind = %s, want visibility", diag.Kind)
	}

	// But the declaring contract's own functions may use it.
	analyze(t, `
contract A {
	private let secret: int;
	function read(): int { return A.secret; }
}`)
}

func TestAnalyzeBuiltins(t *testing.T) {
	src := `
function f(w: int): bool {
	lattice_keypair alice;
	lattice_keypair bob;
	let shared = exchange_key(alice, bob);
	let ct = encrypt(shared, "msg");
	let pt = decrypt(shared, ct);
	proof p = prove_privacy(w);
	return verify_proof(p);
}`
	prog := analyze(t, src)

	body := prog.Functions[0].Body.Stmts
	shared := body[2].(*LetStmt)
	if !shared.Sym.Type.Equal(KeyType) {
		t.Errorf("exchange_key type = %s, want key", shared.Sym.Type)
	}
	ct := body[3].(*LetStmt)
	if !ct.Sym.Type.Equal(CiphertextType) {
		t.Errorf("encrypt type = %s, want ciphertext", ct.Sym.Type)
	}
	pt := body[4].(*LetStmt)
	if !pt.Sym.Type.Equal(StringType) {
		t.Errorf("decrypt type = %s, want string", pt.Sym.Type)
	}

	call := shared.Value.(*CallExpr)
	if call.Builtin != BuiltinExchangeKey {
		t.Errorf("builtin = %s, want exchange_key", call.Builtin)
	}
}

func TestAnalyzeBuiltinAliases(t *testing.T) {
	analyze(t, `function f(w: int): bool { return verify(prove(w)); }`)
}

func TestAnalyzeSpawnJoin(t *testing.T) {
	src := `
function work(n: int): int { return n * 2; }
function f(): int {
	let h = spawn work(21);
	return join h;
}`
	prog := analyze(t, src)

	let := prog.Functions[1].Body.Stmts[0].(*LetStmt)
	if let.Sym.Type.Kind != TypeHandle {
		t.Fatalf("spawn type = %s, want handle", let.Sym.Type)
	}
	if let.Sym.Type.Value.Kind != TypeInt {
		t.Errorf("handle result = %s, want int", let.Sym.Type.Value)
	}

	ret := prog.Functions[1].Body.Stmts[1].(*ReturnStmt)
	if ret.Value.Type().Kind != TypeInt {
		t.Errorf("join type = %s, want int", ret.Value.Type())
	}
}

func TestAnalyzeCallResolution(t *testing.T) {
	src := `
function helper(): int { return 1; }
contract C {
	function helper(): int { return 2; }
	function f(): int { return helper(); }
}
function g(): int { return helper(); }`
	prog := analyze(t, src)

	// Member resolves before the top-level function of the same name.
	memberCall := prog.Contracts[0].Funcs[1].Body.Stmts[0].(*ReturnStmt).Value.(*CallExpr)
	member := prog.Contracts[0].Funcs[0]
	if memberCall.FnIndex != member.Index {
		t.Errorf("member call index = %d, want %d", memberCall.FnIndex, member.Index)
	}

	topCall := prog.Functions[findFunc(t, prog, "g")].Body.Stmts[0].(*ReturnStmt).Value.(*CallExpr)
	top := prog.Functions[findFunc(t, prog, "helper")]
	if topCall.FnIndex != top.Index {
		t.Errorf("top-level call index = %d, want %d", topCall.FnIndex, top.Index)
	}
}

func findFunc(t *testing.T, prog *Program, name string) int {
	t.Helper()
	for i, f := range prog.Functions {
		if f.Name == name && f.Contract == "" {
			return i
		}
	}
	t.Fatalf("function %s not found", name)
	return -1
}

func TestAnalyzeErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind ErrorKind
		msg  string
	}{
		{
			"unresolved identifier",
			`function f(): int { return nope; }`,
			ErrName, "undefined variable nope",
		},
		{
			"unresolved function",
			`function f() { missing(); }`,
			ErrName, "undefined function missing",
		},
		{
			"duplicate local",
			`function f() { let x = 1; let x = 2; }`,
			ErrDuplicateDeclaration, "already declared",
		},
		{
			"duplicate function",
			`function f() {} function f() {}`,
			ErrDuplicateDeclaration, "already declared",
		},
		{
			"duplicate state",
			`contract C { public let x: int; public let x: int; }`,
			ErrDuplicateDeclaration, "already declared",
		},
		{
			"arithmetic type mismatch",
			`function f(): int { return 1 + "s"; }`,
			ErrType, "operator +",
		},
		{
			"condition not bool",
			`function f() { if (1) {} }`,
			ErrType, "must be bool",
		},
		{
			"return type mismatch",
			`function f(): int { return true; }`,
			ErrType, "must return int",
		},
		{
			"missing return",
			`function f(): int { let x = 1; }`,
			ErrType, "missing return",
		},
		{
			"assignment type mismatch",
			`function f() { let x = 1; x = "s"; }`,
			ErrType, "cannot assign",
		},
		{
			"builtin arg mismatch",
			`function f() { let p = prove_privacy("s"); }`,
			ErrType, "must be int",
		},
		{
			"mapping key mismatch",
			`contract C {
				public let m: mapping(address, int);
				function f(i: int): int { return C.m[i]; }
			}`,
			ErrType, "mapping key must be address",
		},
		{
			"spawn builtin",
			`function f() { let h = spawn prove_privacy(1); }`,
			ErrType, "cannot spawn builtin",
		},
		{
			"join non-handle",
			`function f(): int { return join 42; }`,
			ErrType, "requires a spawned handle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diag := analyzeErr(t, tt.src)
			if diag.Kind != tt.kind {
				t.Errorf("kind = %s, want %s", diag.Kind, tt.kind)
			}
			if !strings.Contains(diag.Msg, tt.msg) {
				t.Errorf("msg = %q, want it to contain %q", diag.Msg, tt.msg)
			}
		})
	}
}

func TestAnalyzeFlattensFunctions(t *testing.T) {
	src := `
function a() {}
contract C {
	function b() {}
	function c() {}
}
function d() {}`
	prog := analyze(t, src)

	names := make([]string, len(prog.Functions))
	for i, f := range prog.Functions {
		if f.Index != i {
			t.Errorf("function %s index = %d, want %d", f.Name, f.Index, i)
		}
		names[i] = f.Name
	}

	want := []string{"a", "d", "b", "c"}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("order = %v, want %v", names, want)
			break
		}
	}
}
