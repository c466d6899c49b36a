package compiler

import (
	"strconv"
)

// ---------------------------------------------------------------------------
// Parser: Recursive descent parser for SypherLang syntax
// ---------------------------------------------------------------------------

// Parser parses SypherLang source code into an AST. Parsing stops at
// the first unrecoverable error; Err returns the diagnostic.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
	err       *Diagnostic
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{
		lexer: NewLexer(input),
	}
	// Read two tokens to fill curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// Parse consumes the whole input and returns the Program root.
func Parse(input string) (*Program, error) {
	p := NewParser(input)
	prog := p.ParseProgram()
	if p.err != nil {
		return nil, p.err
	}
	return prog, nil
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
	if p.curToken.Type == TokenError && p.err == nil {
		p.err = errorAt(ErrLexical, p.curToken.Pos, "%s", p.curToken.Literal)
	}
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// peekTokenIs checks if the peek token is of the given type.
func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

// expect advances past the current token if it matches, otherwise
// records a syntax error.
func (p *Parser) expect(t TokenType) Token {
	tok := p.curToken
	if !p.curTokenIs(t) {
		p.errorf("expected %s, found %s", t, describeToken(p.curToken))
		return tok
	}
	p.nextToken()
	return tok
}

// errorf records the first syntax error; later errors are dropped.
func (p *Parser) errorf(format string, args ...interface{}) {
	if p.err == nil {
		p.err = errorAt(ErrSyntax, p.curToken.Pos, format, args...)
	}
}

// Err returns the parse error, or nil.
func (p *Parser) Err() error {
	if p.err == nil {
		return nil
	}
	return p.err
}

func describeToken(tok Token) string {
	switch tok.Type {
	case TokenEOF:
		return "end of input"
	case TokenIdentifier, TokenInt, TokenString:
		return tok.Type.String() + " " + strconv.Quote(tok.Literal)
	default:
		return strconv.Quote(tok.Literal)
	}
}

// ---------------------------------------------------------------------------
// Top-level parsing
// ---------------------------------------------------------------------------

// ParseProgram parses the whole input into a Program root.
func (p *Parser) ParseProgram() *Program {
	prog := &Program{SpanVal: Span{Start: p.curToken.Pos}}

	for !p.curTokenIs(TokenEOF) && p.err == nil {
		switch p.curToken.Type {
		case TokenContract:
			if c := p.parseContract(); c != nil {
				prog.Contracts = append(prog.Contracts, c)
			}
		case TokenFunction:
			if f := p.parseFunction(""); f != nil {
				prog.Funcs = append(prog.Funcs, f)
			}
		default:
			p.errorf("expected contract or function declaration, found %s", describeToken(p.curToken))
			return prog
		}
	}

	prog.SpanVal.End = p.curToken.Pos
	return prog
}

// parseContract parses: contract Name { stateVars and functions }
func (p *Parser) parseContract() *ContractDecl {
	start := p.curToken.Pos
	p.expect(TokenContract)
	name := p.expect(TokenIdentifier)
	p.expect(TokenLBrace)

	decl := &ContractDecl{
		SpanVal: Span{Start: start},
		Name:    name.Literal,
	}

	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) && p.err == nil {
		switch p.curToken.Type {
		case TokenPublic, TokenPrivate:
			if sv := p.parseStateVar(); sv != nil {
				decl.States = append(decl.States, sv)
			}
		case TokenFunction:
			if f := p.parseFunction(decl.Name); f != nil {
				decl.Funcs = append(decl.Funcs, f)
			}
		default:
			p.errorf("expected state variable or function member, found %s", describeToken(p.curToken))
			return decl
		}
	}

	end := p.expect(TokenRBrace)
	decl.SpanVal.End = end.Pos
	return decl
}

// parseStateVar parses: (public|private) let name: type ;
func (p *Parser) parseStateVar() *StateVar {
	start := p.curToken.Pos
	public := p.curTokenIs(TokenPublic)
	p.nextToken() // consume public/private
	p.expect(TokenLet)
	name := p.expect(TokenIdentifier)
	p.expect(TokenColon)
	te := p.parseTypeExpr()
	end := p.expect(TokenSemicolon)

	return &StateVar{
		SpanVal:  MakeSpan(start, end.Pos),
		Name:     name.Literal,
		TypeExpr: te,
		Public:   public,
	}
}

// parseFunction parses a function declaration with typed parameters
// and optional return type.
func (p *Parser) parseFunction(contract string) *FunctionDecl {
	start := p.curToken.Pos
	p.expect(TokenFunction)
	name := p.expect(TokenIdentifier)
	p.expect(TokenLParen)

	var params []*Param
	for !p.curTokenIs(TokenRParen) && !p.curTokenIs(TokenEOF) && p.err == nil {
		pstart := p.curToken.Pos
		pname := p.expect(TokenIdentifier)
		p.expect(TokenColon)
		pt := p.parseTypeExpr()
		params = append(params, &Param{
			SpanVal:  Span{Start: pstart, End: p.curToken.Pos},
			Name:     pname.Literal,
			TypeExpr: pt,
		})
		if p.curTokenIs(TokenComma) {
			p.nextToken()
		} else {
			break
		}
	}
	p.expect(TokenRParen)

	var ret *TypeExpr
	if p.curTokenIs(TokenColon) {
		p.nextToken()
		ret = p.parseTypeExpr()
	}

	body := p.parseBlock()

	return &FunctionDecl{
		SpanVal:    Span{Start: start, End: p.curToken.Pos},
		Name:       name.Literal,
		Contract:   contract,
		Params:     params,
		ReturnType: ret,
		Body:       body,
		Index:      -1,
	}
}

// parseTypeExpr parses a type annotation.
func (p *Parser) parseTypeExpr() *TypeExpr {
	start := p.curToken.Pos

	switch p.curToken.Type {
	case TokenTypeInt:
		p.nextToken()
		return &TypeExpr{SpanVal: Span{Start: start}, Kind: TypeInt}
	case TokenTypeBool:
		p.nextToken()
		return &TypeExpr{SpanVal: Span{Start: start}, Kind: TypeBool}
	case TokenTypeString:
		p.nextToken()
		return &TypeExpr{SpanVal: Span{Start: start}, Kind: TypeString}
	case TokenTypeAddress:
		p.nextToken()
		return &TypeExpr{SpanVal: Span{Start: start}, Kind: TypeAddress}
	case TokenTypeProof:
		p.nextToken()
		return &TypeExpr{SpanVal: Span{Start: start}, Kind: TypeProof}
	case TokenTypeKey:
		p.nextToken()
		return &TypeExpr{SpanVal: Span{Start: start}, Kind: TypeKey}
	case TokenTypeCiphertext:
		p.nextToken()
		return &TypeExpr{SpanVal: Span{Start: start}, Kind: TypeCiphertext}
	case TokenTypeMapping:
		p.nextToken()
		p.expect(TokenLParen)
		key := p.parseTypeExpr()
		p.expect(TokenComma)
		value := p.parseTypeExpr()
		p.expect(TokenRParen)
		return &TypeExpr{SpanVal: Span{Start: start}, Kind: TypeMapping, Key: key, Value: value}
	default:
		p.errorf("expected type, found %s", describeToken(p.curToken))
		return &TypeExpr{SpanVal: Span{Start: start}, Kind: TypeInvalid}
	}
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// parseBlock parses a brace-delimited statement list.
func (p *Parser) parseBlock() *BlockStmt {
	start := p.curToken.Pos
	p.expect(TokenLBrace)

	block := &BlockStmt{SpanVal: Span{Start: start}}
	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) && p.err == nil {
		stmt := p.parseStatement()
		if stmt == nil {
			break
		}
		block.Stmts = append(block.Stmts, stmt)
	}

	end := p.expect(TokenRBrace)
	block.SpanVal.End = end.Pos
	return block
}

// parseStatement parses a single statement.
func (p *Parser) parseStatement() Stmt {
	switch p.curToken.Type {
	case TokenLet:
		return p.parseLet()
	case TokenLatticeKeypair:
		return p.parseKeypairDecl()
	case TokenReturn:
		return p.parseReturn()
	case TokenIf:
		return p.parseIf()
	case TokenWhile:
		return p.parseWhile()
	case TokenEmit:
		return p.parseEmit()
	default:
		// Declarations of the form `proof p = expr;` use a type
		// keyword in statement position.
		if p.curToken.Type.IsTypeKeyword() && p.peekTokenIs(TokenIdentifier) {
			return p.parseTypedDecl()
		}
		return p.parseExprOrAssign()
	}
}

// parseLet parses: let name (: type)? = expr ;
func (p *Parser) parseLet() Stmt {
	start := p.curToken.Pos
	p.expect(TokenLet)
	name := p.expect(TokenIdentifier)

	var te *TypeExpr
	if p.curTokenIs(TokenColon) {
		p.nextToken()
		te = p.parseTypeExpr()
	}

	p.expect(TokenAssign)
	value := p.parseExpression()
	end := p.expect(TokenSemicolon)

	return &LetStmt{
		SpanVal:  MakeSpan(start, end.Pos),
		Name:     name.Literal,
		TypeExpr: te,
		Value:    value,
	}
}

// parseKeypairDecl parses: lattice_keypair name ;
// Sugar for: let name: key = lattice_keypair();
func (p *Parser) parseKeypairDecl() Stmt {
	start := p.curToken.Pos
	p.expect(TokenLatticeKeypair)
	name := p.expect(TokenIdentifier)
	end := p.expect(TokenSemicolon)

	span := MakeSpan(start, end.Pos)
	return &LetStmt{
		SpanVal:  span,
		Name:     name.Literal,
		TypeExpr: &TypeExpr{SpanVal: span, Kind: TypeKey},
		Value:    &CallExpr{SpanVal: span, Callee: "lattice_keypair", FnIndex: -1},
	}
}

// parseTypedDecl parses: typekeyword name = expr ;
func (p *Parser) parseTypedDecl() Stmt {
	start := p.curToken.Pos
	te := p.parseTypeExpr()
	name := p.expect(TokenIdentifier)
	p.expect(TokenAssign)
	value := p.parseExpression()
	end := p.expect(TokenSemicolon)

	return &LetStmt{
		SpanVal:  MakeSpan(start, end.Pos),
		Name:     name.Literal,
		TypeExpr: te,
		Value:    value,
	}
}

// parseReturn parses: return expr? ;
func (p *Parser) parseReturn() Stmt {
	start := p.curToken.Pos
	p.expect(TokenReturn)

	var value Expr
	if !p.curTokenIs(TokenSemicolon) {
		value = p.parseExpression()
	}
	end := p.expect(TokenSemicolon)

	return &ReturnStmt{SpanVal: MakeSpan(start, end.Pos), Value: value}
}

// parseIf parses: if (cond) block (else block | else if ...)?
func (p *Parser) parseIf() Stmt {
	start := p.curToken.Pos
	p.expect(TokenIf)
	p.expect(TokenLParen)
	cond := p.parseExpression()
	p.expect(TokenRParen)
	then := p.parseBlock()

	var els *BlockStmt
	if p.curTokenIs(TokenElse) {
		p.nextToken()
		if p.curTokenIs(TokenIf) {
			// else-if chains nest inside a synthetic block
			nested := p.parseIf()
			els = &BlockStmt{SpanVal: nested.Span(), Stmts: []Stmt{nested}}
		} else {
			els = p.parseBlock()
		}
	}

	return &IfStmt{
		SpanVal: Span{Start: start, End: p.curToken.Pos},
		Cond:    cond,
		Then:    then,
		Else:    els,
	}
}

// parseWhile parses: while (cond) block
func (p *Parser) parseWhile() Stmt {
	start := p.curToken.Pos
	p.expect(TokenWhile)
	p.expect(TokenLParen)
	cond := p.parseExpression()
	p.expect(TokenRParen)
	body := p.parseBlock()

	return &WhileStmt{
		SpanVal: Span{Start: start, End: p.curToken.Pos},
		Cond:    cond,
		Body:    body,
	}
}

// parseEmit parses: emit Name(args) ;
func (p *Parser) parseEmit() Stmt {
	start := p.curToken.Pos
	p.expect(TokenEmit)
	name := p.expect(TokenIdentifier)
	p.expect(TokenLParen)
	args := p.parseArgs()
	p.expect(TokenRParen)
	end := p.expect(TokenSemicolon)

	return &EmitStmt{
		SpanVal: MakeSpan(start, end.Pos),
		Name:    name.Literal,
		Args:    args,
	}
}

// parseExprOrAssign parses an expression statement or an assignment.
func (p *Parser) parseExprOrAssign() Stmt {
	start := p.curToken.Pos
	expr := p.parseExpression()
	if expr == nil {
		return nil
	}

	if p.curTokenIs(TokenAssign) {
		switch expr.(type) {
		case *Ident, *StateRef, *IndexExpr:
			// assignable
		default:
			p.errorf("invalid assignment target")
			return nil
		}
		p.nextToken()
		value := p.parseExpression()
		end := p.expect(TokenSemicolon)
		return &AssignStmt{
			SpanVal: MakeSpan(start, end.Pos),
			Target:  expr,
			Value:   value,
		}
	}

	end := p.expect(TokenSemicolon)
	return &ExprStmt{SpanVal: MakeSpan(start, end.Pos), Expr: expr}
}

// ---------------------------------------------------------------------------
// Expressions
//
// Precedence, low to high: || < && < comparison < additive <
// multiplicative < unary < postfix/primary.
// ---------------------------------------------------------------------------

// parseExpression parses a full expression.
func (p *Parser) parseExpression() Expr {
	return p.parseOr()
}

func (p *Parser) parseOr() Expr {
	left := p.parseAnd()
	for p.curTokenIs(TokenOrOr) && p.err == nil {
		op := p.curToken.Type
		p.nextToken()
		right := p.parseAnd()
		left = &BinaryExpr{
			SpanVal: spanOf(left, right),
			Op:      op,
			Left:    left,
			Right:   right,
		}
	}
	return left
}

func (p *Parser) parseAnd() Expr {
	left := p.parseComparison()
	for p.curTokenIs(TokenAndAnd) && p.err == nil {
		op := p.curToken.Type
		p.nextToken()
		right := p.parseComparison()
		left = &BinaryExpr{
			SpanVal: spanOf(left, right),
			Op:      op,
			Left:    left,
			Right:   right,
		}
	}
	return left
}

func (p *Parser) parseComparison() Expr {
	left := p.parseAdditive()
	for p.err == nil {
		switch p.curToken.Type {
		case TokenEq, TokenNe, TokenLt, TokenLe, TokenGt, TokenGe:
			op := p.curToken.Type
			p.nextToken()
			right := p.parseAdditive()
			left = &BinaryExpr{
				SpanVal: spanOf(left, right),
				Op:      op,
				Left:    left,
				Right:   right,
			}
		default:
			return left
		}
	}
	return left
}

func (p *Parser) parseAdditive() Expr {
	left := p.parseMultiplicative()
	for (p.curTokenIs(TokenPlus) || p.curTokenIs(TokenMinus)) && p.err == nil {
		op := p.curToken.Type
		p.nextToken()
		right := p.parseMultiplicative()
		left = &BinaryExpr{
			SpanVal: spanOf(left, right),
			Op:      op,
			Left:    left,
			Right:   right,
		}
	}
	return left
}

func (p *Parser) parseMultiplicative() Expr {
	left := p.parseUnary()
	for (p.curTokenIs(TokenStar) || p.curTokenIs(TokenSlash) || p.curTokenIs(TokenPercent)) && p.err == nil {
		op := p.curToken.Type
		p.nextToken()
		right := p.parseUnary()
		left = &BinaryExpr{
			SpanVal: spanOf(left, right),
			Op:      op,
			Left:    left,
			Right:   right,
		}
	}
	return left
}

func (p *Parser) parseUnary() Expr {
	if p.curTokenIs(TokenMinus) || p.curTokenIs(TokenBang) {
		start := p.curToken.Pos
		op := p.curToken.Type
		p.nextToken()
		operand := p.parseUnary()
		return &UnaryExpr{
			SpanVal: Span{Start: start, End: p.curToken.Pos},
			Op:      op,
			Operand: operand,
		}
	}
	return p.parsePostfix()
}

// parsePostfix parses mapping index suffixes: m[k], nested[a][b].
func (p *Parser) parsePostfix() Expr {
	expr := p.parsePrimary()
	for p.curTokenIs(TokenLBracket) && p.err == nil {
		p.nextToken()
		index := p.parseExpression()
		end := p.expect(TokenRBracket)
		expr = &IndexExpr{
			SpanVal: Span{Start: expr.Span().Start, End: end.Pos},
			X:       expr,
			Index:   index,
		}
	}
	return expr
}

func (p *Parser) parsePrimary() Expr {
	pos := p.curToken.Pos

	switch p.curToken.Type {
	case TokenInt:
		lit := p.curToken.Literal
		p.nextToken()
		v, err := strconv.ParseInt(lit, 10, 64)
		if err != nil {
			p.errorf("integer literal %s out of range", lit)
			return nil
		}
		return &IntLiteral{SpanVal: Span{Start: pos}, Value: v}

	case TokenString:
		lit := p.curToken.Literal
		p.nextToken()
		return &StringLiteral{SpanVal: Span{Start: pos}, Value: lit}

	case TokenTrue:
		p.nextToken()
		return &BoolLiteral{SpanVal: Span{Start: pos}, Value: true}

	case TokenFalse:
		p.nextToken()
		return &BoolLiteral{SpanVal: Span{Start: pos}, Value: false}

	case TokenLParen:
		p.nextToken()
		expr := p.parseExpression()
		p.expect(TokenRParen)
		return expr

	case TokenSpawn:
		p.nextToken()
		callee := p.expect(TokenIdentifier)
		p.expect(TokenLParen)
		args := p.parseArgs()
		p.expect(TokenRParen)
		call := &CallExpr{
			SpanVal: Span{Start: pos, End: p.curToken.Pos},
			Callee:  callee.Literal,
			Args:    args,
			FnIndex: -1,
		}
		return &SpawnExpr{SpanVal: call.SpanVal, Call: call}

	case TokenJoin:
		p.nextToken()
		handle := p.parseUnary()
		return &JoinExpr{SpanVal: Span{Start: pos, End: p.curToken.Pos}, Handle: handle}

	case TokenLatticeKeypair:
		// lattice_keypair() in expression position
		p.nextToken()
		p.expect(TokenLParen)
		p.expect(TokenRParen)
		return &CallExpr{SpanVal: Span{Start: pos}, Callee: "lattice_keypair", FnIndex: -1}

	case TokenIdentifier:
		name := p.curToken.Literal
		p.nextToken()

		if p.curTokenIs(TokenLParen) {
			p.nextToken()
			args := p.parseArgs()
			end := p.expect(TokenRParen)
			return &CallExpr{
				SpanVal: MakeSpan(pos, end.Pos),
				Callee:  name,
				Args:    args,
				FnIndex: -1,
			}
		}

		if p.curTokenIs(TokenDot) {
			p.nextToken()
			field := p.expect(TokenIdentifier)
			return &StateRef{
				SpanVal:  MakeSpan(pos, field.Pos),
				Contract: name,
				Field:    field.Literal,
			}
		}

		return &Ident{SpanVal: Span{Start: pos}, Name: name}

	default:
		p.errorf("expected expression, found %s", describeToken(p.curToken))
		return nil
	}
}

// parseArgs parses a comma-separated argument list (without parens).
func (p *Parser) parseArgs() []Expr {
	var args []Expr
	for !p.curTokenIs(TokenRParen) && !p.curTokenIs(TokenEOF) && p.err == nil {
		arg := p.parseExpression()
		if arg == nil {
			break
		}
		args = append(args, arg)
		if p.curTokenIs(TokenComma) {
			p.nextToken()
		} else {
			break
		}
	}
	return args
}

// spanOf builds a span covering two expressions, tolerating nil
// operands after an error.
func spanOf(left, right Expr) Span {
	var s Span
	if left != nil {
		s.Start = left.Span().Start
	}
	if right != nil {
		s.End = right.Span().End
	}
	return s
}
