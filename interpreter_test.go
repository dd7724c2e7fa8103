package tinylang

import (
	"bytes"
	"context"
	sterrors "errors"
	"testing"
)

func newTestInterpreter(t *testing.T, out *bytes.Buffer, opts ...Option) *Interpreter {
	t.Helper()
	in, err := NewInterpreter(append([]Option{WithOutput(out)}, opts...)...)
	if err != nil {
		t.Fatalf("NewInterpreter error: %v", err)
	}
	return in
}

func run(t *testing.T, src string, opts ...Option) (string, Object, error) {
	t.Helper()
	var out bytes.Buffer
	in := newTestInterpreter(t, &out, opts...)
	val, err := in.Interpret(mustCompile(t, src))
	return out.String(), val, err
}

func TestInterpretOutput(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"declare and print", "var x = 5; print x;", "5\n"},
		{"compound assignment", "var x = 10; x += 5; print x;", "15\n"},
		{"all compound forms", "var x = 10; x -= 4; x *= 3; x /= 2; print x;", "9\n"},
		{"while loop", "var x = 3; circulate (x < 6) { print x; x = x + 1; }", "3\n4\n5\n"},
		{"function call", "funi add(a, b) { return a + b; } print add(2,3);", "5\n"},
		{"string", `print "hello";`, "hello\n"},
		{"boolean", "print true; print 1 == 2;", "true\nfalse\n"},
		{"comparisons", "print 3 >= 3; print 2 <= 1; print 4 != 4; print 5 > 2; print 1 < 0;", "true\nfalse\nfalse\ntrue\nfalse\n"},
		{"arithmetic", "print 7 % 3; print 7 / 2; print 2 - 5; print 6 * 7;", "1\n3\n-3\n42\n"},
		{"negation", "print !false; var s = \"true\"; print !s;", "true\nfalse\n"},
		{"prefix increment", "var x = 1; print ++x; print --x; print x;", "2\n1\n1\n"},
		{"postfix increment", "var x = 1; x++; x++; x--; print x;", "2\n"},
		{"else if chain", "var x = 5; if x < 3 { print 1; } else if x < 10 { print 2; } else { print 3; }", "2\n"},
		{"else", "if false { print 1; } else { print 3; }", "3\n"},
		{"for loop", "for var i = 0; i < 3; i++ { print i; } print i;", "0\n1\n2\n3\n"},
		{"for multiple clauses", "for var i = 0, var j = 10; i < j; i += 3, j -= 3 { print i; }", "0\n3\n"},
		{"recursion", "funi fact(n) { if n <= 1 { return 1; } return n * fact(n - 1); } print fact(10);", "3628800\n"},
		{"last statement value", "funi f() { var a = 4; } print f();", "4\n"},
		{"no value", "funi f() { if false { return 1; } } print f();", "null\n"},
		{"last definition wins", "funi f() { return 1; } funi f() { return 2; } print f();", "2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := run(t, tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out != tt.want {
				t.Fatalf("expected output %q, got %q", tt.want, out)
			}
		})
	}
}

func TestInterpretRuntimeErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  error
		line  int
	}{
		{"division by zero", "print 10 / 0;", ErrDivisionByZero, 1},
		{"modulo by zero", "var a = 1;\nprint a % 0;", ErrDivisionByZero, 2},
		{"logical on booleans", "var x = true; var y = false; print x && y;", ErrTypeMismatch, 1},
		{"logical on integers", "print 1 && 2;", ErrUnsupportedOperator, 1},
		{"string concatenation", `print "a" + "b";`, ErrTypeMismatch, 1},
		{"undefined variable", "print missing;", ErrUndefinedVariable, 1},
		{"undefined function", "missing();", ErrUndefinedFunction, 1},
		{"call before definition", "f();\nfuni f() { }", ErrUndefinedFunction, 1},
		{"too few arguments", "funi add(a, b) { return a + b; }\nadd(2);", ErrArity, 2},
		{"too many arguments", "funi one(a) { return a; } one(1, 2);", ErrArity, 1},
		{"non-boolean if", "if 1 { }", ErrNonBoolean, 1},
		{"non-boolean else if", "if false { } else if 2 { }", ErrNonBoolean, 1},
		{"non-boolean while", "circulate 1 { }", ErrNonBoolean, 1},
		{"not on integer", "print !1;", ErrTypeMismatch, 1},
		{"increment string", `var s = "a"; ++s;`, ErrTypeMismatch, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, tt.input)
			if !sterrors.Is(err, tt.kind) {
				t.Fatalf("expected %v, got %v", tt.kind, err)
			}
			var re *RuntimeError
			if !sterrors.As(err, &re) {
				t.Fatalf("expected RuntimeError, got %T", err)
			}
			if re.Line != tt.line {
				t.Fatalf("expected error on line %d, got %d", tt.line, re.Line)
			}
			if CodeOf(err) != ErrCodeRuntime {
				t.Fatalf("expected code %s, got %s", ErrCodeRuntime, CodeOf(err))
			}
		})
	}
}

func TestLogicalBooleansOption(t *testing.T) {
	out, _, err := run(t, "var x = true; var y = false; print x && y; print x || y;", WithLogicalBooleans(true))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "false\ntrue\n" {
		t.Fatalf("unexpected output %q", out)
	}
	// The right side is skipped when the left side decides the result.
	out, _, err = run(t, "print false && missing; print true || missing;", WithLogicalBooleans(true))
	if err != nil {
		t.Fatalf("expected short circuit, got %v", err)
	}
	if out != "false\ntrue\n" {
		t.Fatalf("unexpected output %q", out)
	}
	if _, _, err := run(t, "print 1 && true;", WithLogicalBooleans(true)); !sterrors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected type mismatch, got %v", err)
	}
}

func TestBlocksDoNotOpenScopes(t *testing.T) {
	tests := []string{
		"if true { var z = 1; } print z;",
		"var n = 0; circulate n < 1 { var z = 1; n++; } print z;",
		"for var i = 0; i < 1; i++ { var z = 1; } print z;",
	}
	for _, input := range tests {
		out, _, err := run(t, input)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", input, err)
		}
		if out != "1\n" {
			t.Fatalf("%q: expected 1, got %q", input, out)
		}
	}
}

func TestAssignmentInFunctionShadowsGlobal(t *testing.T) {
	out, _, err := run(t, "var g = 1; funi f() { g = 2; print g; } f(); print g;")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "2\n1\n" {
		t.Fatalf("expected local write to shadow global, got %q", out)
	}
}

func TestCalleeSeesCallerLocals(t *testing.T) {
	out, _, err := run(t, "funi show() { print local; } funi outer() { var local = 7; show(); } outer();")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "7\n" {
		t.Fatalf("expected 7, got %q", out)
	}
	if _, _, err := run(t, "funi outer() { var local = 7; } outer(); print local;"); !sterrors.Is(err, ErrUndefinedVariable) {
		t.Fatalf("expected local to be gone after the call, got %v", err)
	}
}

func TestArgumentsEvaluatedInCallerScope(t *testing.T) {
	out, _, err := run(t, "funi f(x, y) { return y; } var x = 1; print f(10, x);")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "1\n" {
		t.Fatalf("expected argument to see caller's x, got %q", out)
	}
}

func TestReturnPropagatesThroughBlocks(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"funi find() { var i = 0; circulate i < 10 { if i == 3 { return i; } i++; } return 99; } print find();", "3\n"},
		{"funi f() { for var i = 0; ; i++ { if i == 2 { return i; } } } print f();", "2\n"},
		{"funi f() { if true { return 1; print 2; } return 3; } print f();", "1\n"},
		{"funi f() { if false { } else if true { return 5; } return 6; } print f();", "5\n"},
	}
	for _, tt := range tests {
		out, _, err := run(t, tt.input)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", tt.input, err)
		}
		if out != tt.want {
			t.Fatalf("%q: expected %q, got %q", tt.input, tt.want, out)
		}
	}
}

func TestTopLevelReturnStopsProgram(t *testing.T) {
	out, val, err := run(t, "return 5; print 1;")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "" {
		t.Fatalf("expected no output, got %q", out)
	}
	if i, ok := val.(*Integer); !ok || i.Value != 5 {
		t.Fatalf("expected 5, got %v", val)
	}
}

func TestInterpretResultValue(t *testing.T) {
	_, val, err := run(t, "var x = 2; x * 21")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ToNative(val) != int64(42) {
		t.Fatalf("expected 42, got %v", Inspect(val))
	}
	out, val, err := run(t, "print 3")
	if err != nil || out != "3\n" || ToNative(val) != int64(3) {
		t.Fatalf("expected print to yield its value, got %q %v %v", out, val, err)
	}
	_, val, err = run(t, "funi f() { }")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != nil {
		t.Fatalf("expected no value from a definition, got %v", val)
	}
}

func TestErrorsKeepEarlierMutations(t *testing.T) {
	var out bytes.Buffer
	in := newTestInterpreter(t, &out)
	_, err := in.Interpret(mustCompile(t, "var a = 1; print a; print b; var c = 3;"))
	if !sterrors.Is(err, ErrUndefinedVariable) {
		t.Fatalf("expected undefined variable, got %v", err)
	}
	if out.String() != "1\n" {
		t.Fatalf("expected output before the error, got %q", out.String())
	}
	vars := in.AllVariables()
	if _, ok := vars["a"]; !ok {
		t.Fatalf("expected a to remain bound")
	}
	if _, ok := vars["c"]; ok {
		t.Fatalf("expected c to be unbound")
	}
}

func TestInterpreterKeepsStateAcrossCalls(t *testing.T) {
	var out bytes.Buffer
	in := newTestInterpreter(t, &out)
	for _, line := range []string{"var n = 1;", "funi double(v) { return v * 2; }", "n = double(n);", "print n;"} {
		if _, err := in.Interpret(mustCompile(t, line)); err != nil {
			t.Fatalf("%q: unexpected error: %v", line, err)
		}
	}
	if out.String() != "2\n" {
		t.Fatalf("expected 2, got %q", out.String())
	}
	if fns := in.Functions(); len(fns) != 1 || fns[0] != "double" {
		t.Fatalf("expected [double], got %v", fns)
	}
}

func TestSeparateInterpretersShareNothing(t *testing.T) {
	var a, b bytes.Buffer
	first := newTestInterpreter(t, &a)
	second := newTestInterpreter(t, &b)
	if _, err := first.Interpret(mustCompile(t, "var x = 1; funi f() { }")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := second.Interpret(mustCompile(t, "print x;")); !sterrors.Is(err, ErrUndefinedVariable) {
		t.Fatalf("expected x to be undefined in another interpreter, got %v", err)
	}
	if _, err := second.Interpret(mustCompile(t, "f();")); !sterrors.Is(err, ErrUndefinedFunction) {
		t.Fatalf("expected f to be undefined in another interpreter, got %v", err)
	}
}

func TestCallDepthLimit(t *testing.T) {
	var out bytes.Buffer
	in := newTestInterpreter(t, &out, WithMaxCallDepth(50))
	_, err := in.Interpret(mustCompile(t, "funi loop(n) { return loop(n + 1); } loop(0);"))
	if !sterrors.Is(err, ErrCallDepth) {
		t.Fatalf("expected call depth error, got %v", err)
	}
	if in.Environment().Depth() != 1 {
		t.Fatalf("expected scopes to unwind to the global scope, got depth %d", in.Environment().Depth())
	}
}

func TestScopesUnwindOnError(t *testing.T) {
	var out bytes.Buffer
	in := newTestInterpreter(t, &out)
	_, err := in.Interpret(mustCompile(t, "funi inner() { return 1 / 0; } funi outer() { return inner(); } outer();"))
	if !sterrors.Is(err, ErrDivisionByZero) {
		t.Fatalf("expected division by zero, got %v", err)
	}
	if in.Environment().Depth() != 1 {
		t.Fatalf("expected depth 1 after error, got %d", in.Environment().Depth())
	}
}

func TestInterpretContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	in := newTestInterpreter(t, &out)
	_, err := in.InterpretContext(ctx, mustCompile(t, "circulate true { }"))
	if !sterrors.Is(err, ErrCanceled) || !sterrors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if CodeOf(err) != ErrCodeCanceled {
		t.Fatalf("expected code %s, got %s", ErrCodeCanceled, CodeOf(err))
	}
}

func TestRuntimeConfigDefaults(t *testing.T) {
	prev := GetRuntimeConfig()
	t.Cleanup(func() { SetRuntimeConfig(prev) })
	SetRuntimeConfig(RuntimeConfig{MaxCallDepth: 5, LogicalBooleans: true})

	out, _, err := run(t, "print true && false;")
	if err != nil || out != "false\n" {
		t.Fatalf("expected logical booleans from runtime config, got %q, %v", out, err)
	}
	_, _, err = run(t, "funi f(n) { return f(n); } f(1);")
	if !sterrors.Is(err, ErrCallDepth) {
		t.Fatalf("expected call depth error, got %v", err)
	}
	_, _, err = run(t, "print true && false;", WithLogicalBooleans(false))
	if !sterrors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected option to override runtime config, got %v", err)
	}
}

func BenchmarkInterpretFib(b *testing.B) {
	program, err := Compile("funi fib(n) { if n < 2 { return n; } return fib(n - 1) + fib(n - 2); } fib(15);")
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		in, err := NewInterpreter(WithOutput(&bytes.Buffer{}))
		if err != nil {
			b.Fatal(err)
		}
		if _, err := in.Interpret(program); err != nil {
			b.Fatalf("interpret failed: %v", err)
		}
	}
}
