package tinylang

import (
	sterrors "errors"
	"strconv"
	"strings"
	"testing"
)

func tokenTypes(tokens []Token) []TokenType {
	types := make([]TokenType, len(tokens))
	for i, tok := range tokens {
		types[i] = tok.Type
	}
	return types
}

func TestTokenizeKinds(t *testing.T) {
	tests := []struct {
		input string
		want  []TokenType
	}{
		{"var x = 5;", []TokenType{VAR, IDENT, ASSIGN, NUMBER, SEMICOLON, EOF}},
		{"x += 1 -= 2 *= 3 /= 4", []TokenType{IDENT, PLUS_ASSIGN, NUMBER, MINUS_ASSIGN, NUMBER, MUL_ASSIGN, NUMBER, DIV_ASSIGN, NUMBER, EOF}},
		{"a == b != c >= d <= e > f < g", []TokenType{IDENT, EQ, IDENT, NOT_EQ, IDENT, GTE, IDENT, LTE, IDENT, GT, IDENT, LT, IDENT, EOF}},
		{"a && b || !c", []TokenType{IDENT, AND, IDENT, OR, NOT, IDENT, EOF}},
		{"i++ + --j % 2", []TokenType{IDENT, INCREMENT, PLUS, DECREMENT, IDENT, PERCENT, NUMBER, EOF}},
		{"funi f(a, b) { return a; }", []TokenType{FUNCTION, IDENT, LPAREN, IDENT, COMMA, IDENT, RPAREN, LBRACE, RETURN, IDENT, SEMICOLON, RBRACE, EOF}},
		{"circulate for if else print switch", []TokenType{WHILE, FOR, IF, ELSE, PRINT, SWITCH, EOF}},
		{"true false", []TokenType{TRUE, FALSE, EOF}},
		{"", []TokenType{EOF}},
	}
	for _, tt := range tests {
		tokens, err := Tokenize(tt.input)
		if err != nil {
			t.Fatalf("Tokenize(%q) error: %v", tt.input, err)
		}
		got := tokenTypes(tokens)
		if len(got) != len(tt.want) {
			t.Fatalf("Tokenize(%q): expected %v, got %v", tt.input, tt.want, got)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Fatalf("Tokenize(%q)[%d]: expected %s, got %s", tt.input, i, tt.want[i], got[i])
			}
		}
	}
}

func TestTokenPositions(t *testing.T) {
	tokens, err := Tokenize("var x\n  = 5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assign := tokens[2]
	if assign.Type != ASSIGN || assign.Line != 2 || assign.Column != 3 {
		t.Fatalf("expected = at 2:3, got %s", assign)
	}
	num := tokens[3]
	if num.Line != 2 || num.Column != 5 {
		t.Fatalf("expected 5 at 2:5, got %s", num)
	}
}

func TestCommentsKeepPosition(t *testing.T) {
	tokens, err := Tokenize("// line comment\n/* block\nb */ x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tokens) != 2 {
		t.Fatalf("expected identifier and EOF, got %v", tokens)
	}
	if tokens[0].Literal != "x" || tokens[0].Line != 3 || tokens[0].Column != 6 {
		t.Fatalf("expected x at 3:6, got %s", tokens[0])
	}
}

func TestStringLiterals(t *testing.T) {
	tests := []struct {
		input    string
		wantType TokenType
		wantLit  string
	}{
		{`"hello"`, STRING, "hello"},
		{`"a\nb"`, STRING, "a\nb"},
		{`"a\tb"`, STRING, "a\tb"},
		{`"a\qb"`, STRING, "aqb"},
		{`"say \"hi\""`, STRING, `say "hi"`},
		{`"true"`, TRUE, "true"},
		{`"false"`, FALSE, "false"},
		{`"True"`, STRING, "True"},
	}
	for _, tt := range tests {
		tokens, err := Tokenize(tt.input)
		if err != nil {
			t.Fatalf("Tokenize(%s) error: %v", tt.input, err)
		}
		if tokens[0].Type != tt.wantType || tokens[0].Literal != tt.wantLit {
			t.Fatalf("Tokenize(%s): expected %s %q, got %s", tt.input, tt.wantType, tt.wantLit, tokens[0])
		}
		if tokens[1].Type != EOF {
			t.Fatalf("Tokenize(%s): closing quote not consumed, got %s", tt.input, tokens[1])
		}
	}
}

func TestLexErrors(t *testing.T) {
	tests := []struct {
		input  string
		line   int
		column int
	}{
		{`print "abc`, 1, 7},
		{"a & b", 1, 3},
		{"a | b", 1, 3},
		{"x\n  @", 2, 3},
		{`"trailing\`, 1, 1},
	}
	for _, tt := range tests {
		_, err := Tokenize(tt.input)
		var lexErr *LexError
		if !sterrors.As(err, &lexErr) {
			t.Fatalf("Tokenize(%q): expected LexError, got %v", tt.input, err)
		}
		if lexErr.Line != tt.line || lexErr.Column != tt.column {
			t.Fatalf("Tokenize(%q): expected error at %d:%d, got %d:%d", tt.input, tt.line, tt.column, lexErr.Line, lexErr.Column)
		}
		if CodeOf(err) != ErrCodeLex {
			t.Fatalf("expected code %s, got %s", ErrCodeLex, CodeOf(err))
		}
	}
}

// Re-serializing tokens and scanning them again yields the same kinds.
func TestTokenizeRoundTrip(t *testing.T) {
	inputs := []string{
		`var total = 0; for var i = 0; i < 10; i++ { total += i * 2 % 3; }`,
		`funi greet(name) return String { print "hi"; return name; }`,
		`if !(a >= b) && c != d || e <= f { x -= 1; } else { y /= 2; }`,
		`var flag = "true"; circulate flag == true { flag = false; }`,
	}
	for _, input := range inputs {
		first, err := Tokenize(input)
		if err != nil {
			t.Fatalf("Tokenize(%q) error: %v", input, err)
		}
		parts := make([]string, 0, len(first))
		for _, tok := range first {
			switch tok.Type {
			case EOF:
			case STRING:
				parts = append(parts, strconv.Quote(tok.Literal))
			default:
				parts = append(parts, tok.Literal)
			}
		}
		second, err := Tokenize(strings.Join(parts, " "))
		if err != nil {
			t.Fatalf("re-tokenize error: %v", err)
		}
		a, b := tokenTypes(first), tokenTypes(second)
		if len(a) != len(b) {
			t.Fatalf("round trip changed token count: %v vs %v", a, b)
		}
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("round trip changed token %d: %s vs %s", i, a[i], b[i])
			}
		}
	}
}

func BenchmarkTokenize(b *testing.B) {
	src := strings.Repeat("var x = 10; x += 5; circulate x < 100 { x = x * 2; }\n", 20)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Tokenize(src); err != nil {
			b.Fatalf("tokenize failed: %v", err)
		}
	}
}
