package tinylang

import (
	"strings"
	"unicode"
)

// Lexer turns source text into tokens. It walks the input one rune at a time
// and tracks the 1-based line and column of the current rune.
type Lexer struct {
	input        []rune
	position     int
	readPosition int
	ch           rune
	line         int
	column       int
}

func NewLexer(input string) *Lexer {
	l := &Lexer{input: []rune(input), line: 1, column: 0}
	l.readChar()
	return l
}

// Tokenize scans the whole source eagerly. The returned slice always ends
// with an EOF token unless an error is returned.
func Tokenize(source string) ([]Token, error) {
	l := NewLexer(source)
	var tokens []Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, nil
		}
	}
}

func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
	l.column++
}

func (l *Lexer) peekChar() rune {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

func (l *Lexer) atEOF() bool {
	return l.position >= len(l.input)
}

func (l *Lexer) skipWhitespace() {
	for !l.atEOF() && unicode.IsSpace(l.ch) {
		l.readChar()
	}
}

// skipComment consumes one comment if the cursor is on one and reports
// whether it did.
func (l *Lexer) skipComment() bool {
	if l.ch != '/' {
		return false
	}
	switch l.peekChar() {
	case '/':
		for !l.atEOF() && l.ch != '\n' {
			l.readChar()
		}
		return true
	case '*':
		l.readChar()
		l.readChar()
		for !l.atEOF() && !(l.ch == '*' && l.peekChar() == '/') {
			l.readChar()
		}
		if !l.atEOF() {
			l.readChar()
			l.readChar()
		}
		return true
	}
	return false
}

func (l *Lexer) readIdentifier() string {
	position := l.position
	for !l.atEOF() && (unicode.IsLetter(l.ch) || isDigit(l.ch)) {
		l.readChar()
	}
	return string(l.input[position:l.position])
}

func (l *Lexer) readNumber() string {
	position := l.position
	for !l.atEOF() && isDigit(l.ch) {
		l.readChar()
	}
	return string(l.input[position:l.position])
}

// readString is called with the cursor on the opening quote and leaves it
// just past the closing quote.
func (l *Lexer) readString() (string, bool) {
	var out strings.Builder
	for {
		l.readChar()
		if l.atEOF() {
			return "", false
		}
		if l.ch == '"' {
			l.readChar()
			return out.String(), true
		}
		if l.ch == '\\' {
			l.readChar()
			if l.atEOF() {
				return "", false
			}
			switch l.ch {
			case 'n':
				out.WriteRune('\n')
			case 't':
				out.WriteRune('\t')
			default:
				out.WriteRune(l.ch)
			}
			continue
		}
		out.WriteRune(l.ch)
	}
}

// NextToken returns the next token or a *LexError.
func (l *Lexer) NextToken() (Token, error) {
	for {
		l.skipWhitespace()
		if !l.skipComment() {
			break
		}
	}

	line, column := l.line, l.column
	newToken := func(t TokenType, literal string) Token {
		return Token{Type: t, Literal: literal, Line: line, Column: column}
	}

	if l.atEOF() {
		return newToken(EOF, ""), nil
	}

	switch {
	case isDigit(l.ch):
		return newToken(NUMBER, l.readNumber()), nil
	case unicode.IsLetter(l.ch):
		ident := l.readIdentifier()
		return newToken(lookupKeyword(ident), ident), nil
	case l.ch == '"':
		s, ok := l.readString()
		if !ok {
			return Token{}, &LexError{Line: line, Column: column, Msg: "unterminated string literal"}
		}
		// String contents spelling a boolean are lexed as that boolean.
		switch s {
		case "true":
			return newToken(TRUE, s), nil
		case "false":
			return newToken(FALSE, s), nil
		}
		return newToken(STRING, s), nil
	}

	if tok, ok := l.readOperator(); ok {
		tok.Line, tok.Column = line, column
		return tok, nil
	}

	ch := l.ch
	l.readChar()
	return Token{}, &LexError{Line: line, Column: column, Char: ch, Msg: "unexpected character " + quoteRune(ch)}
}

// twoCharOperators maps a leading rune to the operators that start with it.
// The single-rune fallback is stored under the zero rune.
var twoCharOperators = map[rune]map[rune]TokenType{
	'=': {'=': EQ, 0: ASSIGN},
	'!': {'=': NOT_EQ, 0: NOT},
	'>': {'=': GTE, 0: GT},
	'<': {'=': LTE, 0: LT},
	'&': {'&': AND},
	'|': {'|': OR},
	'+': {'+': INCREMENT, '=': PLUS_ASSIGN, 0: PLUS},
	'-': {'-': DECREMENT, '=': MINUS_ASSIGN, 0: MINUS},
	'*': {'=': MUL_ASSIGN, 0: ASTERISK},
	'/': {'=': DIV_ASSIGN, 0: SLASH},
}

var singleCharTokens = map[rune]TokenType{
	'%': PERCENT,
	'(': LPAREN,
	')': RPAREN,
	'{': LBRACE,
	'}': RBRACE,
	';': SEMICOLON,
	',': COMMA,
}

func (l *Lexer) readOperator() (Token, bool) {
	if t, ok := singleCharTokens[l.ch]; ok {
		tok := Token{Type: t, Literal: string(l.ch)}
		l.readChar()
		return tok, true
	}
	options, ok := twoCharOperators[l.ch]
	if !ok {
		return Token{}, false
	}
	if t, ok := options[l.peekChar()]; ok && l.peekChar() != 0 {
		literal := string([]rune{l.ch, l.peekChar()})
		l.readChar()
		l.readChar()
		return Token{Type: t, Literal: literal}, true
	}
	if t, ok := options[0]; ok {
		tok := Token{Type: t, Literal: string(l.ch)}
		l.readChar()
		return tok, true
	}
	return Token{}, false
}

func isDigit(ch rune) bool {
	return '0' <= ch && ch <= '9'
}

func quoteRune(ch rune) string {
	return "'" + string(ch) + "'"
}
