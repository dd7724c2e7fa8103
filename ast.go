package tinylang

import (
	"fmt"
	"strconv"
	"strings"
)

// Position is a 1-based source location.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Node is implemented by every AST variant. The set of variants is closed:
// the unexported marker keeps other packages from adding their own.
type Node interface {
	String() string
	Pos() Position
	node()
}

type Program struct {
	Statements []Node
}

func (p *Program) node()         {}
func (p *Program) Pos() Position { return Position{Line: 1, Column: 1} }
func (p *Program) String() string {
	var out strings.Builder
	for _, s := range p.Statements {
		out.WriteString(statementString(s))
		out.WriteString("\n")
	}
	return out.String()
}

type NumberLiteral struct {
	Token Token
	Value int64
}

func (n *NumberLiteral) node()          {}
func (n *NumberLiteral) Pos() Position  { return n.Token.Pos() }
func (n *NumberLiteral) String() string { return strconv.FormatInt(n.Value, 10) }

type StringLiteral struct {
	Token Token
	Value string
}

func (s *StringLiteral) node()          {}
func (s *StringLiteral) Pos() Position  { return s.Token.Pos() }
func (s *StringLiteral) String() string { return quoteString(s.Value) }

type BooleanLiteral struct {
	Token Token
	Value bool
}

func (b *BooleanLiteral) node()          {}
func (b *BooleanLiteral) Pos() Position  { return b.Token.Pos() }
func (b *BooleanLiteral) String() string { return strconv.FormatBool(b.Value) }

type VarRef struct {
	Token Token
	Name  string
}

func (v *VarRef) node()          {}
func (v *VarRef) Pos() Position  { return v.Token.Pos() }
func (v *VarRef) String() string { return v.Name }

// BinOp keeps the operator token so runtime errors can report its line.
type BinOp struct {
	Left  Node
	Op    Token
	Right Node
}

func (b *BinOp) node()         {}
func (b *BinOp) Pos() Position { return b.Op.Pos() }
func (b *BinOp) String() string {
	return "(" + operandString(b.Left) + " " + b.Op.Literal + " " + operandString(b.Right) + ")"
}

// UnaryOp is a prefix operation: logical negation or prefix increment and
// decrement.
type UnaryOp struct {
	Op      Token
	Operand Node
}

func (u *UnaryOp) node()          {}
func (u *UnaryOp) Pos() Position  { return u.Op.Pos() }
func (u *UnaryOp) String() string { return "(" + u.Op.Literal + operandString(u.Operand) + ")" }

type VarDecl struct {
	Token Token
	Name  string
	Value Node
}

func (v *VarDecl) node()          {}
func (v *VarDecl) Pos() Position  { return v.Token.Pos() }
func (v *VarDecl) String() string { return "var " + v.Name + " = " + v.Value.String() + ";" }

// AssignOp is produced for plain, compound and postfix assignment. Compound
// and postfix forms arrive here already rewritten into a BinOp value.
type AssignOp struct {
	Token  Token
	Target Node
	Value  Node
}

func (a *AssignOp) node()          {}
func (a *AssignOp) Pos() Position  { return a.Token.Pos() }
func (a *AssignOp) String() string { return a.Target.String() + " = " + a.Value.String() }

type PrintStmt struct {
	Token Token
	Value Node
}

func (p *PrintStmt) node()          {}
func (p *PrintStmt) Pos() Position  { return p.Token.Pos() }
func (p *PrintStmt) String() string { return "print " + p.Value.String() + ";" }

type ElseIfBranch struct {
	Token     Token
	Condition Node
	Body      []Node
}

type IfStmt struct {
	Token     Token
	Condition Node
	Then      []Node
	ElseIfs   []*ElseIfBranch
	// Else is nil when the statement has no else block.
	Else []Node
}

func (i *IfStmt) node()         {}
func (i *IfStmt) Pos() Position { return i.Token.Pos() }
func (i *IfStmt) String() string {
	var out strings.Builder
	out.WriteString("if " + i.Condition.String() + " " + blockString(i.Then))
	for _, b := range i.ElseIfs {
		out.WriteString(" else if " + b.Condition.String() + " " + blockString(b.Body))
	}
	if i.Else != nil {
		out.WriteString(" else " + blockString(i.Else))
	}
	return out.String()
}

type WhileStmt struct {
	Token     Token
	Condition Node
	Body      []Node
}

func (w *WhileStmt) node()         {}
func (w *WhileStmt) Pos() Position { return w.Token.Pos() }
func (w *WhileStmt) String() string {
	return "circulate " + w.Condition.String() + " " + blockString(w.Body)
}

type ForStmt struct {
	Token     Token
	Init      []Node
	Condition Node
	Increment []Node
	Body      []Node
}

func (f *ForStmt) node()         {}
func (f *ForStmt) Pos() Position { return f.Token.Pos() }
func (f *ForStmt) String() string {
	inits := make([]string, len(f.Init))
	for i, n := range f.Init {
		inits[i] = strings.TrimSuffix(n.String(), ";")
	}
	return "for " + strings.Join(inits, ", ") + "; " + f.Condition.String() + "; " +
		joinNodes(f.Increment, ", ") + " " + blockString(f.Body)
}

type FunctionDef struct {
	Token  Token
	Name   string
	Params []string
	Body   []Node
	// ReturnType is the optional annotation after "return"; it is not checked.
	ReturnType string
}

func (f *FunctionDef) node()         {}
func (f *FunctionDef) Pos() Position { return f.Token.Pos() }
func (f *FunctionDef) String() string {
	sig := "funi " + f.Name + "(" + strings.Join(f.Params, ", ") + ")"
	if f.ReturnType != "" {
		sig += " return " + f.ReturnType
	}
	return sig + " " + blockString(f.Body)
}

type FunctionCall struct {
	Token     Token
	Name      string
	Arguments []Node
}

func (f *FunctionCall) node()          {}
func (f *FunctionCall) Pos() Position  { return f.Token.Pos() }
func (f *FunctionCall) String() string { return f.Name + "(" + joinNodes(f.Arguments, ", ") + ")" }

type ReturnStmt struct {
	Token Token
	Value Node
}

func (r *ReturnStmt) node()          {}
func (r *ReturnStmt) Pos() Position  { return r.Token.Pos() }
func (r *ReturnStmt) String() string { return "return " + r.Value.String() + ";" }

func blockString(nodes []Node) string {
	if len(nodes) == 0 {
		return "{ }"
	}
	var out strings.Builder
	out.WriteString("{ ")
	for _, n := range nodes {
		out.WriteString(statementString(n))
		out.WriteString(" ")
	}
	out.WriteString("}")
	return out.String()
}

// operandString parenthesizes an assignment used as an operand, which only
// postfix ++ and -- produce.
func operandString(n Node) string {
	if a, ok := n.(*AssignOp); ok {
		return "(" + a.String() + ")"
	}
	return n.String()
}

// statementString terminates expression statements with a semicolon so a
// following statement that starts with ( is not read as a call.
func statementString(n Node) string {
	s := n.String()
	if strings.HasSuffix(s, ";") || strings.HasSuffix(s, "}") {
		return s
	}
	return s + ";"
}

// quoteString produces a literal the lexer reads back to the same value.
func quoteString(s string) string {
	var out strings.Builder
	out.WriteByte('"')
	for _, ch := range s {
		switch ch {
		case '"', '\\':
			out.WriteRune('\\')
			out.WriteRune(ch)
		case '\n':
			out.WriteString(`\n`)
		case '\t':
			out.WriteString(`\t`)
		default:
			out.WriteRune(ch)
		}
	}
	out.WriteByte('"')
	return out.String()
}

func joinNodes(nodes []Node, sep string) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, sep)
}
