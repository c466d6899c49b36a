package compiler

import (
	"strings"
	"testing"
)

func TestParseEmptyContract(t *testing.T) {
	prog, err := Parse(`contract Vault {}`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(prog.Contracts) != 1 {
		t.Fatalf("contracts = %d, want 1", len(prog.Contracts))
	}
	if prog.Contracts[0].Name != "Vault" {
		t.Errorf("contract name = %q, want Vault", prog.Contracts[0].Name)
	}
}

func TestParseContractMembers(t *testing.T) {
	src := `
contract Token {
	public let supply: int;
	private let owner: address;
	private let balances: mapping(address, int);

	function total(): int {
		return supply;
	}
}`
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	c := prog.Contracts[0]
	if len(c.States) != 3 {
		t.Fatalf("state vars = %d, want 3", len(c.States))
	}
	if !c.States[0].Public {
		t.Errorf("supply should be public")
	}
	if c.States[1].Public {
		t.Errorf("owner should be private")
	}
	if c.States[2].TypeExpr.Kind != TypeMapping {
		t.Errorf("balances type kind = %s, want mapping", c.States[2].TypeExpr.Kind)
	}
	if len(c.Funcs) != 1 {
		t.Fatalf("functions = %d, want 1", len(c.Funcs))
	}
	if c.Funcs[0].Contract != "Token" {
		t.Errorf("function contract = %q, want Token", c.Funcs[0].Contract)
	}
}

func TestParseFunctionSignature(t *testing.T) {
	prog, err := Parse(`function add(a: int, b: int): int { return a + b; }`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	f := prog.Funcs[0]
	if f.Name != "add" {
		t.Errorf("name = %q, want add", f.Name)
	}
	if len(f.Params) != 2 {
		t.Fatalf("params = %d, want 2", len(f.Params))
	}
	if f.Params[0].Name != "a" || f.Params[1].Name != "b" {
		t.Errorf("param names = %s, %s", f.Params[0].Name, f.Params[1].Name)
	}
	if f.ReturnType == nil || f.ReturnType.Kind != TypeInt {
		t.Errorf("return type missing or not int")
	}
}

func TestParsePrecedence(t *testing.T) {
	prog, err := Parse(`function f(): bool { return 1 + 2 * 3 == 7 && true; }`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	ret := prog.Funcs[0].Body.Stmts[0].(*ReturnStmt)

	// Top of the tree is &&
	and, ok := ret.Value.(*BinaryExpr)
	if !ok || and.Op != TokenAndAnd {
		t.Fatalf("root op = %T, want && BinaryExpr", ret.Value)
	}

	// Left of && is ==
	eq, ok := and.Left.(*BinaryExpr)
	if !ok || eq.Op != TokenEq {
		t.Fatalf("left of && = %T, want == BinaryExpr", and.Left)
	}

	// Left of == is +, whose right child is *
	add, ok := eq.Left.(*BinaryExpr)
	if !ok || add.Op != TokenPlus {
		t.Fatalf("left of == = %T, want + BinaryExpr", eq.Left)
	}
	mul, ok := add.Right.(*BinaryExpr)
	if !ok || mul.Op != TokenStar {
		t.Fatalf("right of + = %T, want * BinaryExpr", add.Right)
	}
}

func TestParseUnaryBinding(t *testing.T) {
	prog, err := Parse(`function f(): int { return -1 * 2; }`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	ret := prog.Funcs[0].Body.Stmts[0].(*ReturnStmt)
	mul, ok := ret.Value.(*BinaryExpr)
	if !ok || mul.Op != TokenStar {
		t.Fatalf("root = %T, want * BinaryExpr", ret.Value)
	}
	if _, ok := mul.Left.(*UnaryExpr); !ok {
		t.Errorf("left of * = %T, want UnaryExpr", mul.Left)
	}
}

func TestParseStatements(t *testing.T) {
	src := `
function f(n: int) {
	let x: int = 0;
	let inferred = "s";
	x = n;
	if (x > 0) {
		x = x - 1;
	} else if (x < 0) {
		x = 0;
	} else {
		x = 1;
	}
	while (x > 0) {
		x = x - 1;
	}
	emit Progress(x);
	return;
}`
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	stmts := prog.Funcs[0].Body.Stmts
	if len(stmts) != 7 {
		t.Fatalf("statements = %d, want 7", len(stmts))
	}

	if let := stmts[0].(*LetStmt); let.TypeExpr == nil || let.TypeExpr.Kind != TypeInt {
		t.Errorf("first let should carry an int annotation")
	}
	if let := stmts[1].(*LetStmt); let.TypeExpr != nil {
		t.Errorf("second let should have no annotation")
	}
	if _, ok := stmts[2].(*AssignStmt); !ok {
		t.Errorf("stmt 2 = %T, want AssignStmt", stmts[2])
	}
	ifs, ok := stmts[3].(*IfStmt)
	if !ok {
		t.Fatalf("stmt 3 = %T, want IfStmt", stmts[3])
	}
	if ifs.Else == nil {
		t.Errorf("if should have an else branch")
	}
	if _, ok := stmts[4].(*WhileStmt); !ok {
		t.Errorf("stmt 4 = %T, want WhileStmt", stmts[4])
	}
	if em, ok := stmts[5].(*EmitStmt); !ok || em.Name != "Progress" {
		t.Errorf("stmt 5 = %T, want EmitStmt Progress", stmts[5])
	}
}

func TestParseKeypairSugar(t *testing.T) {
	prog, err := Parse(`function f() { lattice_keypair alice; }`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	let, ok := prog.Funcs[0].Body.Stmts[0].(*LetStmt)
	if !ok {
		t.Fatalf("stmt = %T, want LetStmt", prog.Funcs[0].Body.Stmts[0])
	}
	if let.Name != "alice" {
		t.Errorf("name = %q, want alice", let.Name)
	}
	if let.TypeExpr.Kind != TypeKey {
		t.Errorf("type = %s, want key", let.TypeExpr.Kind)
	}
	call, ok := let.Value.(*CallExpr)
	if !ok || call.Callee != "lattice_keypair" {
		t.Errorf("value = %T, want lattice_keypair call", let.Value)
	}
}

func TestParseTypedDecl(t *testing.T) {
	prog, err := Parse(`function f(w: int) { proof p = prove_privacy(w); }`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	let := prog.Funcs[0].Body.Stmts[0].(*LetStmt)
	if let.Name != "p" || let.TypeExpr.Kind != TypeProof {
		t.Errorf("decl = %q %s, want p proof", let.Name, let.TypeExpr.Kind)
	}
}

func TestParseSpawnJoin(t *testing.T) {
	src := `
function work(n: int): int { return n; }
function f(): int {
	let h = spawn work(5);
	return join h;
}`
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	body := prog.Funcs[1].Body.Stmts
	let := body[0].(*LetStmt)
	sp, ok := let.Value.(*SpawnExpr)
	if !ok {
		t.Fatalf("let value = %T, want SpawnExpr", let.Value)
	}
	if sp.Call.Callee != "work" || len(sp.Call.Args) != 1 {
		t.Errorf("spawn call = %s/%d, want work/1", sp.Call.Callee, len(sp.Call.Args))
	}

	ret := body[1].(*ReturnStmt)
	if _, ok := ret.Value.(*JoinExpr); !ok {
		t.Errorf("return value = %T, want JoinExpr", ret.Value)
	}
}

func TestParseStateRefAndIndex(t *testing.T) {
	src := `
contract Bank {
	public let ledger: mapping(address, int);

	function get(who: address): int {
		return Bank.ledger[who];
	}
}`
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	ret := prog.Contracts[0].Funcs[0].Body.Stmts[0].(*ReturnStmt)
	idx, ok := ret.Value.(*IndexExpr)
	if !ok {
		t.Fatalf("return value = %T, want IndexExpr", ret.Value)
	}
	sr, ok := idx.X.(*StateRef)
	if !ok || sr.Contract != "Bank" || sr.Field != "ledger" {
		t.Errorf("indexed expr = %T, want StateRef Bank.ledger", idx.X)
	}
}

func TestParseSyntaxErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMsg string
	}{
		{"missing semicolon", `function f() { let x = 1 }`, "expected ;"},
		{"missing paren", `function f( { }`, "expected IDENTIFIER"},
		{"stray token at top level", `42`, "expected contract or function"},
		{"bad assignment target", `function f() { 1 = 2; }`, "invalid assignment target"},
		{"missing type", `function f(x:) {}`, "expected type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			if err == nil {
				t.Fatalf("Parse succeeded, want error")
			}
			diag, ok := err.(*Diagnostic)
			if !ok {
				t.Fatalf("error type = %T, want *Diagnostic", err)
			}
			if diag.Kind != ErrSyntax {
				t.Errorf("kind = %s, want syntax", diag.Kind)
			}
			if !strings.Contains(diag.Msg, tt.wantMsg) {
				t.Errorf("msg = %q, want it to contain %q", diag.Msg, tt.wantMsg)
			}
			if diag.Pos.Line == 0 {
				t.Errorf("diagnostic has no position")
			}
		})
	}
}

func TestParseLexicalErrorSurfaces(t *testing.T) {
	_, err := Parse(`function f() { let s = "unterminated; }`)
	if err == nil {
		t.Fatal("Parse succeeded, want error")
	}
	diag := err.(*Diagnostic)
	if diag.Kind != ErrLexical {
		t.Errorf("kind = %s, want lexical", diag.Kind)
	}
}
