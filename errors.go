package tinylang

import (
	"context"
	sterrors "errors"
	"fmt"
	"strings"

	"github.com/oarkflow/errors"
)

type ErrorCode string

const (
	ErrCodeLex      ErrorCode = "LEX_ERROR"
	ErrCodeParse    ErrorCode = "PARSE_ERROR"
	ErrCodeRuntime  ErrorCode = "RUNTIME_ERROR"
	ErrCodeTimeout  ErrorCode = "TIMEOUT"
	ErrCodeCanceled ErrorCode = "CANCELED"
)

var (
	ErrUndefinedVariable   = errors.New("undefined variable")
	ErrUndefinedFunction   = errors.New("undefined function")
	ErrTypeMismatch        = errors.New("type mismatch")
	ErrDivisionByZero      = errors.New("division by zero")
	ErrArity               = errors.New("wrong number of arguments")
	ErrNonBoolean          = errors.New("condition is not a boolean")
	ErrUnsupportedOperator = errors.New("unsupported operator")
	ErrInvalidAssignment   = errors.New("invalid assignment target")
	ErrCallDepth           = errors.New("maximum call depth exceeded")
	ErrCanceled            = errors.New("execution canceled")
	ErrGlobalScope         = errors.New("cannot pop the global scope")
	ErrStepperDone         = errors.New("no statements left to step")
	ErrOutputLimit         = errors.New("output limit exceeded")
)

// LexError reports an unterminated string or a character the lexer does not
// recognize.
type LexError struct {
	Line   int
	Column int
	Char   rune
	Msg    string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at %d:%d: %s", e.Line, e.Column, e.Msg)
}

func (e *LexError) Code() ErrorCode { return ErrCodeLex }
func (e *LexError) Pos() Position   { return Position{Line: e.Line, Column: e.Column} }

// ParseError describes the token the parser expected and the one it found.
type ParseError struct {
	Expected string
	Actual   TokenType
	Literal  string
	Line     int
	Column   int
	Msg      string
	Hint     string
}

func (e *ParseError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "parse error at %d:%d: ", e.Line, e.Column)
	if e.Msg != "" {
		b.WriteString(e.Msg)
	} else {
		fmt.Fprintf(&b, "expected %s, got %s", e.Expected, e.Actual)
		if e.Literal != "" {
			fmt.Fprintf(&b, " %q", e.Literal)
		}
	}
	if e.Hint != "" {
		b.WriteString(" (hint: " + e.Hint + ")")
	}
	return b.String()
}

func (e *ParseError) Code() ErrorCode { return ErrCodeParse }
func (e *ParseError) Pos() Position   { return Position{Line: e.Line, Column: e.Column} }

// RuntimeError is raised while evaluating. Kind is one of the Err* sentinels
// so callers can match with errors.Is; Cause carries a context error when
// execution was interrupted.
type RuntimeError struct {
	Line   int
	Column int
	Msg    string
	Kind   error
	Cause  error
}

func (e *RuntimeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("runtime error at line %d: %s", e.Line, e.Msg)
	}
	return "runtime error: " + e.Msg
}

func (e *RuntimeError) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

func (e *RuntimeError) Code() ErrorCode {
	if e.Cause != nil {
		if sterrors.Is(e.Cause, context.DeadlineExceeded) {
			return ErrCodeTimeout
		}
		return ErrCodeCanceled
	}
	return ErrCodeRuntime
}

func (e *RuntimeError) Pos() Position { return Position{Line: e.Line, Column: e.Column} }

func newRuntimeError(pos Position, kind error, format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Line:   pos.Line,
		Column: pos.Column,
		Msg:    fmt.Sprintf(format, args...),
		Kind:   kind,
	}
}

// CodeOf returns the error code carried by err, or an empty code when err
// did not come from the interpreter pipeline.
func CodeOf(err error) ErrorCode {
	var coded interface{ Code() ErrorCode }
	if sterrors.As(err, &coded) {
		return coded.Code()
	}
	return ""
}

// FormatError renders err with the offending source line and a caret under
// the reported column. Errors without a position are returned as plain text.
func FormatError(err error, src string) string {
	if err == nil {
		return ""
	}
	var positioned interface{ Pos() Position }
	if !sterrors.As(err, &positioned) {
		return err.Error()
	}
	pos := positioned.Pos()
	if pos.Line < 1 {
		return err.Error()
	}
	header := "error"
	switch CodeOf(err) {
	case ErrCodeLex:
		header = "lex error"
	case ErrCodeParse:
		header = "parse error"
	case ErrCodeRuntime, ErrCodeTimeout, ErrCodeCanceled:
		header = "runtime error"
	}
	return prettyError(src, header, pos.Line, pos.Column, messageOf(err))
}

func messageOf(err error) string {
	var le *LexError
	var pe *ParseError
	var re *RuntimeError
	switch {
	case sterrors.As(err, &le):
		return le.Msg
	case sterrors.As(err, &pe):
		msg := strings.TrimPrefix(pe.Error(), fmt.Sprintf("parse error at %d:%d: ", pe.Line, pe.Column))
		return msg
	case sterrors.As(err, &re):
		return re.Msg
	}
	return err.Error()
}

func prettyError(src, header string, line, col int, msg string) string {
	lines := strings.Split(src, "\n")
	if line > len(lines) {
		line = len(lines)
	}
	if col < 1 {
		col = 1
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s at %d:%d: %s\n\n", header, line, col, msg)
	if line > 1 {
		fmt.Fprintf(&b, "%4d | %s\n", line-1, lines[line-2])
	}
	fmt.Fprintf(&b, "%4d | %s\n", line, lines[line-1])
	fmt.Fprintf(&b, "     | %s^\n", strings.Repeat(" ", col-1))
	if line < len(lines) {
		fmt.Fprintf(&b, "%4d | %s\n", line+1, lines[line])
	}
	return b.String()
}
