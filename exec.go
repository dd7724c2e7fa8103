package tinylang

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
)

// Result is the outcome of Exec. Output holds everything print wrote.
type Result struct {
	Value  Object
	Output string
}

// Native returns Value converted to a Go value.
func (r *Result) Native() any {
	if r == nil {
		return nil
	}
	return ToNative(r.Value)
}

// Exec compiles and runs source in a fresh Interpreter. Print output is
// captured in the Result; when WithOutput is given it is written there too.
// On a runtime error the partial Result is returned alongside the error.
func Exec(ctx context.Context, source string, opts ...Option) (*Result, error) {
	in, err := NewInterpreter(opts...)
	if err != nil {
		return nil, err
	}
	program, err := Compile(source, WithParseDepth(in.maxExprDepth))
	if err != nil {
		return nil, err
	}
	return in.run(ctx, program)
}

// ExecFile runs the script stored at path.
func ExecFile(ctx context.Context, path string, opts ...Option) (*Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Exec(ctx, string(content), opts...)
}

// Run executes an already compiled program in a fresh Interpreter.
func Run(ctx context.Context, program *Program, opts ...Option) (*Result, error) {
	in, err := NewInterpreter(opts...)
	if err != nil {
		return nil, err
	}
	return in.run(ctx, program)
}

func (in *Interpreter) run(ctx context.Context, program *Program) (*Result, error) {
	buf := &limitedBuffer{max: in.maxOutput}
	if !in.outSet {
		in.out = buf
	} else {
		in.out = io.MultiWriter(buf, in.out)
	}
	ctx, cancel := withTimeout(ctx, in.timeout)
	defer cancel()

	val, err := in.InterpretContext(ctx, program)
	res := &Result{Value: val, Output: buf.String()}
	return res, err
}

// limitedBuffer keeps at most max bytes and rejects writes past that.
type limitedBuffer struct {
	bytes.Buffer
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if b.max > 0 && b.Len()+len(p) > b.max {
		n, _ := b.Buffer.Write(p[:b.max-b.Len()])
		return n, fmt.Errorf("%w: %d bytes", ErrOutputLimit, b.max)
	}
	return b.Buffer.Write(p)
}
