package tinylang

import (
	"fmt"
)

type TokenType string

const (
	ILLEGAL = "ILLEGAL"
	EOF     = "EOF"

	IDENT  = "IDENT"
	NUMBER = "NUMBER"
	STRING = "STRING"
	TRUE   = "TRUE"
	FALSE  = "FALSE"

	PLUS     = "+"
	MINUS    = "-"
	ASTERISK = "*"
	SLASH    = "/"
	PERCENT  = "%"

	EQ     = "=="
	NOT_EQ = "!="
	GT     = ">"
	LT     = "<"
	GTE    = ">="
	LTE    = "<="

	AND = "&&"
	OR  = "||"
	NOT = "!"

	ASSIGN       = "="
	PLUS_ASSIGN  = "+="
	MINUS_ASSIGN = "-="
	MUL_ASSIGN   = "*="
	DIV_ASSIGN   = "/="
	INCREMENT    = "++"
	DECREMENT    = "--"

	LPAREN    = "("
	RPAREN    = ")"
	LBRACE    = "{"
	RBRACE    = "}"
	SEMICOLON = ";"
	COMMA     = ","

	VAR      = "VAR"
	PRINT    = "PRINT"
	IF       = "IF"
	ELSE     = "ELSE"
	WHILE    = "WHILE"
	FOR      = "FOR"
	FUNCTION = "FUNCTION"
	RETURN   = "RETURN"
	SWITCH   = "SWITCH"
)

// keywords maps reserved words to their token types. The loop keyword is
// spelled "circulate" and the function keyword "funi".
var keywords = map[string]TokenType{
	"var":       VAR,
	"print":     PRINT,
	"if":        IF,
	"else":      ELSE,
	"circulate": WHILE,
	"for":       FOR,
	"funi":      FUNCTION,
	"return":    RETURN,
	"switch":    SWITCH,
	"true":      TRUE,
	"false":     FALSE,
}

// Token is a classified lexical unit. Line and Column are 1-based and point at
// the first character of the token.
type Token struct {
	Type    TokenType `json:"type"`
	Literal string    `json:"literal"`
	Line    int       `json:"line"`
	Column  int       `json:"column"`
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q) at %d:%d", t.Type, t.Literal, t.Line, t.Column)
}

// Pos returns the source position of the token.
func (t Token) Pos() Position {
	return Position{Line: t.Line, Column: t.Column}
}

func lookupKeyword(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// assignOperators maps compound assignment tokens to the arithmetic operator
// they expand to.
var assignOperators = map[TokenType]TokenType{
	PLUS_ASSIGN:  PLUS,
	MINUS_ASSIGN: MINUS,
	MUL_ASSIGN:   ASTERISK,
	DIV_ASSIGN:   SLASH,
}

func isAssignmentOperator(t TokenType) bool {
	if t == ASSIGN {
		return true
	}
	_, ok := assignOperators[t]
	return ok
}
