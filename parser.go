package tinylang

import (
	"fmt"
	"strconv"
)

// Parser is a recursive-descent parser over a token slice. It stops at the
// first error; there is no recovery.
type Parser struct {
	tokens   []Token
	pos      int
	depth    int
	maxDepth int
}

// ParseOption configures a Parser.
type ParseOption func(*Parser)

// WithParseDepth overrides RuntimeConfig.MaxExpressionDepth for one parse.
// Zero disables the limit.
func WithParseDepth(n int) ParseOption {
	return func(p *Parser) {
		p.maxDepth = n
	}
}

func NewParser(tokens []Token, opts ...ParseOption) *Parser {
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != EOF {
		line, col := 1, 1
		if len(tokens) > 0 {
			last := tokens[len(tokens)-1]
			line, col = last.Line, last.Column+len([]rune(last.Literal))
		}
		tokens = append(tokens, Token{Type: EOF, Line: line, Column: col})
	}
	p := &Parser{tokens: tokens, maxDepth: GetRuntimeConfig().MaxExpressionDepth}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse builds a Program from a token sequence produced by Tokenize.
func Parse(tokens []Token, opts ...ParseOption) (*Program, error) {
	return NewParser(tokens, opts...).ParseProgram()
}

// Compile tokenizes and parses source.
func Compile(source string, opts ...ParseOption) (*Program, error) {
	tokens, err := Tokenize(source)
	if err != nil {
		return nil, err
	}
	return Parse(tokens, opts...)
}

func (p *Parser) ParseProgram() (*Program, error) {
	program := &Program{}
	for !p.curTokenIs(EOF) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		program.Statements = append(program.Statements, stmt)
	}
	return program, nil
}

func (p *Parser) cur() Token {
	return p.tokens[p.pos]
}

func (p *Parser) peek() Token {
	if p.pos+1 >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+1]
}

func (p *Parser) nextToken() Token {
	tok := p.cur()
	if tok.Type != EOF {
		p.pos++
	}
	return tok
}

func (p *Parser) curTokenIs(t TokenType) bool {
	return p.cur().Type == t
}

// expect consumes a token of type t or fails with a ParseError carrying hint.
func (p *Parser) expect(t TokenType, hint string) (Token, error) {
	if !p.curTokenIs(t) {
		return Token{}, p.errorf(string(t), hint)
	}
	return p.nextToken(), nil
}

func (p *Parser) skipSemicolon() {
	if p.curTokenIs(SEMICOLON) {
		p.nextToken()
	}
}

func (p *Parser) errorf(expected, hint string) *ParseError {
	tok := p.cur()
	return &ParseError{
		Expected: expected,
		Actual:   tok.Type,
		Literal:  tok.Literal,
		Line:     tok.Line,
		Column:   tok.Column,
		Hint:     hint,
	}
}

// enter records one more level of nesting and fails once maxDepth is
// exceeded. Every successful enter is paired with a leave.
func (p *Parser) enter() error {
	if p.maxDepth > 0 && p.depth >= p.maxDepth {
		return p.depthError()
	}
	p.depth++
	return nil
}

func (p *Parser) leave() {
	p.depth--
}

func (p *Parser) depthError() *ParseError {
	tok := p.cur()
	return &ParseError{
		Actual:  tok.Type,
		Literal: tok.Literal,
		Line:    tok.Line,
		Column:  tok.Column,
		Msg:     "expression nested too deeply",
		Hint:    fmt.Sprintf("at most %d levels of nesting are allowed", p.maxDepth),
	}
}

func (p *Parser) parseStatement() (Node, error) {
	var (
		stmt Node
		err  error
	)
	switch p.cur().Type {
	case VAR:
		stmt, err = p.parseVarDecl()
	case PRINT:
		stmt, err = p.parsePrintStatement()
	case IF:
		stmt, err = p.parseIfStatement()
	case WHILE:
		stmt, err = p.parseWhileStatement()
	case FOR:
		stmt, err = p.parseForStatement()
	case FUNCTION:
		stmt, err = p.parseFunctionDef()
	case RETURN:
		stmt, err = p.parseReturnStatement()
	case SWITCH:
		return nil, &ParseError{
			Actual:  SWITCH,
			Literal: p.cur().Literal,
			Line:    p.cur().Line,
			Column:  p.cur().Column,
			Msg:     "switch is reserved and not supported",
		}
	default:
		stmt, err = p.parseExpression()
	}
	if err != nil {
		return nil, err
	}
	p.skipSemicolon()
	return stmt, nil
}

func (p *Parser) parseVarDecl() (Node, error) {
	tok := p.nextToken()
	name, err := p.expect(IDENT, "var name = expression")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(ASSIGN, "var name = expression"); err != nil {
		return nil, err
	}
	value, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &VarDecl{Token: tok, Name: name.Literal, Value: value}, nil
}

func (p *Parser) parsePrintStatement() (Node, error) {
	tok := p.nextToken()
	value, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &PrintStmt{Token: tok, Value: value}, nil
}

func (p *Parser) parseBlock(hint string) ([]Node, error) {
	if _, err := p.expect(LBRACE, hint); err != nil {
		return nil, err
	}
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	body := []Node{}
	for !p.curTokenIs(RBRACE) {
		if p.curTokenIs(EOF) {
			return nil, p.errorf(RBRACE, "close the block with }")
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		body = append(body, stmt)
	}
	p.nextToken()
	return body, nil
}

func (p *Parser) parseIfStatement() (Node, error) {
	stmt := &IfStmt{Token: p.nextToken()}
	var err error
	if stmt.Condition, err = p.parseExpression(); err != nil {
		return nil, err
	}
	if stmt.Then, err = p.parseBlock("if condition { ... }"); err != nil {
		return nil, err
	}
	for p.curTokenIs(ELSE) {
		p.nextToken()
		if !p.curTokenIs(IF) {
			if stmt.Else, err = p.parseBlock("else { ... }"); err != nil {
				return nil, err
			}
			break
		}
		branch := &ElseIfBranch{Token: p.nextToken()}
		if branch.Condition, err = p.parseExpression(); err != nil {
			return nil, err
		}
		if branch.Body, err = p.parseBlock("else if condition { ... }"); err != nil {
			return nil, err
		}
		stmt.ElseIfs = append(stmt.ElseIfs, branch)
	}
	return stmt, nil
}

func (p *Parser) parseWhileStatement() (Node, error) {
	stmt := &WhileStmt{Token: p.nextToken()}
	var err error
	if stmt.Condition, err = p.parseExpression(); err != nil {
		return nil, err
	}
	if stmt.Body, err = p.parseBlock("circulate condition { ... }"); err != nil {
		return nil, err
	}
	return stmt, nil
}

const forHint = "for init; condition; increment { ... }"

func (p *Parser) parseForStatement() (Node, error) {
	stmt := &ForStmt{Token: p.nextToken()}
	var err error

	if !p.curTokenIs(SEMICOLON) {
		for {
			var init Node
			if p.curTokenIs(VAR) {
				init, err = p.parseVarDecl()
			} else {
				init, err = p.parseExpression()
			}
			if err != nil {
				return nil, err
			}
			stmt.Init = append(stmt.Init, init)
			if !p.curTokenIs(COMMA) {
				break
			}
			p.nextToken()
		}
	}
	if _, err := p.expect(SEMICOLON, forHint); err != nil {
		return nil, err
	}

	if p.curTokenIs(SEMICOLON) {
		stmt.Condition = &BooleanLiteral{Token: p.cur(), Value: true}
	} else if stmt.Condition, err = p.parseExpression(); err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON, forHint); err != nil {
		return nil, err
	}

	if !p.curTokenIs(LBRACE) {
		for {
			inc, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			stmt.Increment = append(stmt.Increment, inc)
			p.skipSemicolon()
			if !p.curTokenIs(COMMA) {
				break
			}
			p.nextToken()
		}
	}

	if stmt.Body, err = p.parseBlock(forHint); err != nil {
		return nil, err
	}
	return stmt, nil
}

const funiHint = "funi name(a, b) [return Type] { ... }"

func (p *Parser) parseFunctionDef() (Node, error) {
	def := &FunctionDef{Token: p.nextToken()}
	name, err := p.expect(IDENT, funiHint)
	if err != nil {
		return nil, err
	}
	def.Name = name.Literal
	if _, err := p.expect(LPAREN, funiHint); err != nil {
		return nil, err
	}
	def.Params = []string{}
	if !p.curTokenIs(RPAREN) {
		for {
			param, err := p.expect(IDENT, funiHint)
			if err != nil {
				return nil, err
			}
			def.Params = append(def.Params, param.Literal)
			if !p.curTokenIs(COMMA) {
				break
			}
			p.nextToken()
		}
	}
	if _, err := p.expect(RPAREN, funiHint); err != nil {
		return nil, err
	}
	if p.curTokenIs(RETURN) {
		p.nextToken()
		typ, err := p.expect(IDENT, funiHint)
		if err != nil {
			return nil, err
		}
		def.ReturnType = typ.Literal
	}
	if def.Body, err = p.parseBlock(funiHint); err != nil {
		return nil, err
	}
	return def, nil
}

func (p *Parser) parseReturnStatement() (Node, error) {
	tok := p.nextToken()
	value, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &ReturnStmt{Token: tok, Value: value}, nil
}

func (p *Parser) parseExpression() (Node, error) {
	return p.parseAssignment()
}

// parseAssignment is right-associative. Compound assignment x op= y is
// rewritten into x = x op y.
func (p *Parser) parseAssignment() (Node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	left, err := p.parseLogicalOr()
	if err != nil {
		return nil, err
	}
	if !isAssignmentOperator(p.cur().Type) {
		return left, nil
	}
	opTok := p.nextToken()
	if _, ok := left.(*VarRef); !ok {
		return nil, &ParseError{
			Expected: IDENT,
			Actual:   opTok.Type,
			Literal:  opTok.Literal,
			Line:     opTok.Line,
			Column:   opTok.Column,
			Msg:      "left side of " + opTok.Literal + " must be a variable",
		}
	}
	value, err := p.parseAssignment()
	if err != nil {
		return nil, err
	}
	if op, ok := assignOperators[opTok.Type]; ok {
		binTok := Token{Type: op, Literal: string(op), Line: opTok.Line, Column: opTok.Column}
		value = &BinOp{Left: left, Op: binTok, Right: value}
	}
	return &AssignOp{Token: opTok, Target: left, Value: value}, nil
}

// parseBinary builds a left-leaning chain. Each link deepens the tree, so
// links count toward the nesting limit until the chain is complete.
func (p *Parser) parseBinary(next func() (Node, error), ops ...TokenType) (Node, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	links := 0
	defer func() { p.depth -= links }()
	for p.curTokenIn(ops...) {
		if err := p.enter(); err != nil {
			return nil, err
		}
		links++
		op := p.nextToken()
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = &BinOp{Left: left, Op: op, Right: right}
	}
	return left, nil
}

func (p *Parser) curTokenIn(types ...TokenType) bool {
	for _, t := range types {
		if p.curTokenIs(t) {
			return true
		}
	}
	return false
}

func (p *Parser) parseLogicalOr() (Node, error) {
	return p.parseBinary(p.parseLogicalAnd, OR)
}

func (p *Parser) parseLogicalAnd() (Node, error) {
	return p.parseBinary(p.parseEquality, AND)
}

func (p *Parser) parseEquality() (Node, error) {
	return p.parseBinary(p.parseComparison, EQ, NOT_EQ)
}

func (p *Parser) parseComparison() (Node, error) {
	return p.parseBinary(p.parseAdditive, GT, LT, GTE, LTE)
}

func (p *Parser) parseAdditive() (Node, error) {
	return p.parseBinary(p.parseMultiplicative, PLUS, MINUS)
}

func (p *Parser) parseMultiplicative() (Node, error) {
	return p.parseBinary(p.parseUnary, ASTERISK, SLASH, PERCENT)
}

func (p *Parser) parseUnary() (Node, error) {
	if p.curTokenIn(NOT, INCREMENT, DECREMENT) {
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()
		op := p.nextToken()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryOp{Op: op, Operand: operand}, nil
	}
	return p.parseFactor()
}

// parseFactor handles postfix ++ and --, which become x = x + 1 and
// x = x - 1.
func (p *Parser) parseFactor() (Node, error) {
	operand, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if !p.curTokenIn(INCREMENT, DECREMENT) {
		return operand, nil
	}
	if _, ok := operand.(*VarRef); !ok {
		return operand, nil
	}
	opTok := p.nextToken()
	op := Token{Type: PLUS, Literal: PLUS, Line: opTok.Line, Column: opTok.Column}
	if opTok.Type == DECREMENT {
		op.Type, op.Literal = MINUS, MINUS
	}
	one := &NumberLiteral{Token: Token{Type: NUMBER, Literal: "1", Line: opTok.Line, Column: opTok.Column}, Value: 1}
	return &AssignOp{
		Token:  opTok,
		Target: operand,
		Value:  &BinOp{Left: operand, Op: op, Right: one},
	}, nil
}

func (p *Parser) parsePrimary() (Node, error) {
	tok := p.cur()
	switch tok.Type {
	case NUMBER:
		p.nextToken()
		value, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			return nil, &ParseError{
				Expected: NUMBER,
				Actual:   tok.Type,
				Literal:  tok.Literal,
				Line:     tok.Line,
				Column:   tok.Column,
				Msg:      "integer literal " + tok.Literal + " out of range",
			}
		}
		return &NumberLiteral{Token: tok, Value: value}, nil
	case STRING:
		p.nextToken()
		return &StringLiteral{Token: tok, Value: tok.Literal}, nil
	case TRUE, FALSE:
		p.nextToken()
		return &BooleanLiteral{Token: tok, Value: tok.Type == TRUE}, nil
	case IDENT:
		p.nextToken()
		if p.curTokenIs(LPAREN) {
			return p.parseFunctionCall(tok)
		}
		return &VarRef{Token: tok, Name: tok.Literal}, nil
	case LPAREN:
		p.nextToken()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN, "close the parenthesis"); err != nil {
			return nil, err
		}
		return expr, nil
	}
	return nil, p.errorf("expression", "number, string, boolean, identifier or ( expression )")
}

func (p *Parser) parseFunctionCall(name Token) (Node, error) {
	p.nextToken()
	call := &FunctionCall{Token: name, Name: name.Literal, Arguments: []Node{}}
	if p.curTokenIs(RPAREN) {
		p.nextToken()
		return call, nil
	}
	for {
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		call.Arguments = append(call.Arguments, arg)
		if !p.curTokenIs(COMMA) {
			break
		}
		p.nextToken()
	}
	if _, err := p.expect(RPAREN, name.Literal+"(arg, ...)"); err != nil {
		return nil, err
	}
	return call, nil
}
