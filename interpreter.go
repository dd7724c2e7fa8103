package tinylang

import (
	"context"
	sterrors "errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"
)

// Interpreter walks the AST against its own Environment and function table.
// An Interpreter is not safe for concurrent use; separate Interpreters share
// no state.
type Interpreter struct {
	env       *Environment
	functions map[string]*FunctionDef
	out       io.Writer
	outSet    bool

	maxDepth        int
	maxExprDepth    int
	maxOutput       int
	logicalBooleans bool
	timeout         time.Duration
	depth           int
}

func NewInterpreter(opts ...Option) (*Interpreter, error) {
	cfg := GetRuntimeConfig()
	in := &Interpreter{
		env:             NewEnvironment(),
		functions:       make(map[string]*FunctionDef),
		out:             os.Stdout,
		maxDepth:        cfg.MaxCallDepth,
		maxExprDepth:    cfg.MaxExpressionDepth,
		maxOutput:       cfg.MaxOutputBytes,
		logicalBooleans: cfg.LogicalBooleans,
		timeout:         cfg.Timeout,
	}
	for _, opt := range opts {
		if err := opt(in); err != nil {
			return nil, err
		}
	}
	return in, nil
}

func (in *Interpreter) Environment() *Environment {
	return in.env
}

// AllVariables is a snapshot of the bindings currently visible.
func (in *Interpreter) AllVariables() map[string]Object {
	return in.env.AllVariables()
}

// Functions lists the names of defined functions in sorted order.
func (in *Interpreter) Functions() []string {
	names := make([]string, 0, len(in.functions))
	for name := range in.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Interpret evaluates node without cancellation. A nil result means the node
// produced no value.
func (in *Interpreter) Interpret(node Node) (Object, error) {
	return in.InterpretContext(context.Background(), node)
}

// InterpretContext evaluates node, checking ctx on every loop iteration and
// function call. Bindings made before an error stay in the environment.
func (in *Interpreter) InterpretContext(ctx context.Context, node Node) (Object, error) {
	val, err := in.eval(ctx, node)
	if err != nil {
		return nil, err
	}
	if rv, ok := val.(*ReturnValue); ok {
		return rv.Value, nil
	}
	return val, nil
}

func (in *Interpreter) eval(ctx context.Context, node Node) (Object, error) {
	switch n := node.(type) {
	case *Program:
		return in.evalBlock(ctx, n.Statements)
	case *NumberLiteral:
		return &Integer{Value: n.Value}, nil
	case *StringLiteral:
		return &String{Value: n.Value}, nil
	case *BooleanLiteral:
		return nativeBoolToBooleanObject(n.Value), nil
	case *VarRef:
		val, ok := in.env.Get(n.Name)
		if !ok {
			return nil, newRuntimeError(n.Pos(), ErrUndefinedVariable, "undefined variable %s", n.Name)
		}
		return val, nil
	case *BinOp:
		return in.evalBinOp(ctx, n)
	case *UnaryOp:
		return in.evalUnaryOp(ctx, n)
	case *VarDecl:
		val, err := in.eval(ctx, n.Value)
		if err != nil {
			return nil, err
		}
		return in.env.Put(n.Name, val), nil
	case *AssignOp:
		target, ok := n.Target.(*VarRef)
		if !ok {
			return nil, newRuntimeError(n.Pos(), ErrInvalidAssignment, "cannot assign to %s", n.Target.String())
		}
		val, err := in.eval(ctx, n.Value)
		if err != nil {
			return nil, err
		}
		return in.env.Put(target.Name, val), nil
	case *PrintStmt:
		val, err := in.eval(ctx, n.Value)
		if err != nil {
			return nil, err
		}
		if _, err := fmt.Fprintln(in.out, Inspect(val)); err != nil {
			var kind error
			if sterrors.Is(err, ErrOutputLimit) {
				kind = ErrOutputLimit
			}
			return nil, newRuntimeError(n.Pos(), kind, "print: %v", err)
		}
		return val, nil
	case *IfStmt:
		return in.evalIf(ctx, n)
	case *WhileStmt:
		return in.evalWhile(ctx, n)
	case *ForStmt:
		return in.evalFor(ctx, n)
	case *FunctionDef:
		in.functions[n.Name] = n
		return nil, nil
	case *FunctionCall:
		return in.evalCall(ctx, n)
	case *ReturnStmt:
		val, err := in.eval(ctx, n.Value)
		if err != nil {
			return nil, err
		}
		return &ReturnValue{Value: val}, nil
	}
	return nil, newRuntimeError(node.Pos(), ErrUnsupportedOperator, "unsupported node %T", node)
}

// evalBlock runs statements in order and stops early on a return signal,
// which it hands back unchanged so enclosing blocks stop too.
func (in *Interpreter) evalBlock(ctx context.Context, stmts []Node) (Object, error) {
	var result Object
	for _, stmt := range stmts {
		val, err := in.eval(ctx, stmt)
		if err != nil {
			return nil, err
		}
		if rv, ok := val.(*ReturnValue); ok {
			return rv, nil
		}
		result = val
	}
	return result, nil
}

func (in *Interpreter) evalCondition(ctx context.Context, cond Node, construct string) (bool, error) {
	val, err := in.eval(ctx, cond)
	if err != nil {
		return false, err
	}
	b, ok := val.(*Boolean)
	if !ok {
		return false, newRuntimeError(cond.Pos(), ErrNonBoolean, "%s condition must be a boolean, got %s", construct, typeName(val))
	}
	return b.Value, nil
}

// blockResult keeps only the return signal: conditionals and loops
// otherwise produce no value.
func blockResult(val Object) Object {
	if rv, ok := val.(*ReturnValue); ok {
		return rv
	}
	return nil
}

func (in *Interpreter) evalIf(ctx context.Context, n *IfStmt) (Object, error) {
	ok, err := in.evalCondition(ctx, n.Condition, "if")
	if err != nil {
		return nil, err
	}
	if ok {
		val, err := in.evalBlock(ctx, n.Then)
		return blockResult(val), err
	}
	for _, branch := range n.ElseIfs {
		ok, err := in.evalCondition(ctx, branch.Condition, "else if")
		if err != nil {
			return nil, err
		}
		if ok {
			val, err := in.evalBlock(ctx, branch.Body)
			return blockResult(val), err
		}
	}
	if n.Else != nil {
		val, err := in.evalBlock(ctx, n.Else)
		return blockResult(val), err
	}
	return nil, nil
}

func (in *Interpreter) checkContext(ctx context.Context, pos Position) error {
	if err := ctx.Err(); err != nil {
		re := newRuntimeError(pos, ErrCanceled, "execution interrupted: %v", err)
		re.Cause = err
		return re
	}
	return nil
}

func (in *Interpreter) evalWhile(ctx context.Context, n *WhileStmt) (Object, error) {
	for {
		if err := in.checkContext(ctx, n.Pos()); err != nil {
			return nil, err
		}
		ok, err := in.evalCondition(ctx, n.Condition, "circulate")
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		val, err := in.evalBlock(ctx, n.Body)
		if err != nil {
			return nil, err
		}
		if rv := blockResult(val); rv != nil {
			return rv, nil
		}
	}
}

func (in *Interpreter) evalFor(ctx context.Context, n *ForStmt) (Object, error) {
	for _, init := range n.Init {
		if _, err := in.eval(ctx, init); err != nil {
			return nil, err
		}
	}
	for {
		if err := in.checkContext(ctx, n.Pos()); err != nil {
			return nil, err
		}
		ok, err := in.evalCondition(ctx, n.Condition, "for")
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		val, err := in.evalBlock(ctx, n.Body)
		if err != nil {
			return nil, err
		}
		if rv := blockResult(val); rv != nil {
			return rv, nil
		}
		for _, inc := range n.Increment {
			if _, err := in.eval(ctx, inc); err != nil {
				return nil, err
			}
		}
	}
}

// evalCall evaluates arguments in the caller's scope, then runs the body in
// a fresh scope pushed on the shared stack. Lookups inside the body can
// therefore see the caller's locals.
func (in *Interpreter) evalCall(ctx context.Context, n *FunctionCall) (result Object, err error) {
	if err := in.checkContext(ctx, n.Pos()); err != nil {
		return nil, err
	}
	fn, ok := in.functions[n.Name]
	if !ok {
		return nil, newRuntimeError(n.Pos(), ErrUndefinedFunction, "undefined function %s", n.Name)
	}
	if len(n.Arguments) != len(fn.Params) {
		return nil, newRuntimeError(n.Pos(), ErrArity,
			"wrong number of arguments for %s: expected %d, got %d", n.Name, len(fn.Params), len(n.Arguments))
	}
	if in.maxDepth > 0 && in.depth >= in.maxDepth {
		return nil, newRuntimeError(n.Pos(), ErrCallDepth, "maximum call depth %d exceeded calling %s", in.maxDepth, n.Name)
	}

	args := make([]Object, len(n.Arguments))
	for i, arg := range n.Arguments {
		if args[i], err = in.eval(ctx, arg); err != nil {
			return nil, err
		}
	}

	in.env.PushScope()
	in.depth++
	defer func() {
		in.depth--
		if popErr := in.env.PopScope(); popErr != nil && err == nil {
			err = popErr
		}
	}()

	for i, param := range fn.Params {
		in.env.Put(param, args[i])
	}
	val, err := in.evalBlock(ctx, fn.Body)
	if err != nil {
		return nil, err
	}
	if rv, ok := val.(*ReturnValue); ok {
		return rv.Value, nil
	}
	return val, nil
}

func (in *Interpreter) evalUnaryOp(ctx context.Context, n *UnaryOp) (Object, error) {
	switch n.Op.Type {
	case NOT:
		val, err := in.eval(ctx, n.Operand)
		if err != nil {
			return nil, err
		}
		b, ok := val.(*Boolean)
		if !ok {
			return nil, newRuntimeError(n.Pos(), ErrTypeMismatch, "operator ! requires a boolean, got %s", typeName(val))
		}
		return nativeBoolToBooleanObject(!b.Value), nil
	case INCREMENT, DECREMENT:
		ref, ok := n.Operand.(*VarRef)
		if !ok {
			return nil, newRuntimeError(n.Pos(), ErrInvalidAssignment, "operator %s requires a variable", n.Op.Literal)
		}
		val, err := in.eval(ctx, ref)
		if err != nil {
			return nil, err
		}
		i, ok := val.(*Integer)
		if !ok {
			return nil, newRuntimeError(n.Pos(), ErrTypeMismatch, "operator %s requires an integer, got %s", n.Op.Literal, typeName(val))
		}
		delta := int64(1)
		if n.Op.Type == DECREMENT {
			delta = -1
		}
		return in.env.Put(ref.Name, &Integer{Value: i.Value + delta}), nil
	}
	return nil, newRuntimeError(n.Pos(), ErrUnsupportedOperator, "unsupported unary operator %s", n.Op.Literal)
}

func (in *Interpreter) evalBinOp(ctx context.Context, n *BinOp) (Object, error) {
	if in.logicalBooleans && (n.Op.Type == AND || n.Op.Type == OR) {
		return in.evalLogical(ctx, n)
	}
	left, err := in.eval(ctx, n.Left)
	if err != nil {
		return nil, err
	}
	right, err := in.eval(ctx, n.Right)
	if err != nil {
		return nil, err
	}
	l, lok := left.(*Integer)
	r, rok := right.(*Integer)
	if !lok || !rok {
		return nil, newRuntimeError(n.Pos(), ErrTypeMismatch,
			"operator %s requires integer operands, got %s and %s", n.Op.Literal, typeName(left), typeName(right))
	}
	return evalIntegerInfix(n, l.Value, r.Value)
}

func evalIntegerInfix(n *BinOp, l, r int64) (Object, error) {
	switch n.Op.Type {
	case PLUS:
		return &Integer{Value: l + r}, nil
	case MINUS:
		return &Integer{Value: l - r}, nil
	case ASTERISK:
		return &Integer{Value: l * r}, nil
	case SLASH:
		if r == 0 {
			return nil, newRuntimeError(n.Pos(), ErrDivisionByZero, "division by zero")
		}
		return &Integer{Value: l / r}, nil
	case PERCENT:
		if r == 0 {
			return nil, newRuntimeError(n.Pos(), ErrDivisionByZero, "modulo by zero")
		}
		return &Integer{Value: l % r}, nil
	case EQ:
		return nativeBoolToBooleanObject(l == r), nil
	case NOT_EQ:
		return nativeBoolToBooleanObject(l != r), nil
	case GT:
		return nativeBoolToBooleanObject(l > r), nil
	case LT:
		return nativeBoolToBooleanObject(l < r), nil
	case GTE:
		return nativeBoolToBooleanObject(l >= r), nil
	case LTE:
		return nativeBoolToBooleanObject(l <= r), nil
	}
	return nil, newRuntimeError(n.Pos(), ErrUnsupportedOperator, "unsupported operator %s for integers", n.Op.Literal)
}

// evalLogical short-circuits && and || over booleans.
func (in *Interpreter) evalLogical(ctx context.Context, n *BinOp) (Object, error) {
	left, err := in.eval(ctx, n.Left)
	if err != nil {
		return nil, err
	}
	l, ok := left.(*Boolean)
	if !ok {
		return nil, newRuntimeError(n.Pos(), ErrTypeMismatch, "operator %s requires boolean operands, got %s", n.Op.Literal, typeName(left))
	}
	if n.Op.Type == AND && !l.Value {
		return FALSE_OBJ, nil
	}
	if n.Op.Type == OR && l.Value {
		return TRUE_OBJ, nil
	}
	right, err := in.eval(ctx, n.Right)
	if err != nil {
		return nil, err
	}
	r, ok := right.(*Boolean)
	if !ok {
		return nil, newRuntimeError(n.Pos(), ErrTypeMismatch, "operator %s requires boolean operands, got %s", n.Op.Literal, typeName(right))
	}
	return r, nil
}

func typeName(obj Object) string {
	if obj == nil {
		return "null"
	}
	return string(obj.Type())
}
