package tinylang

import (
	"fmt"
	"io"
	"sort"
	"time"
)

// Option configures an Interpreter.
type Option func(*Interpreter) error

// WithOutput sets the writer print statements write to. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(in *Interpreter) error {
		if w == nil {
			return fmt.Errorf("output writer cannot be nil")
		}
		in.out = w
		in.outSet = true
		return nil
	}
}

func WithMaxCallDepth(n int) Option {
	return func(in *Interpreter) error {
		if n < 0 {
			return fmt.Errorf("max call depth cannot be negative: %d", n)
		}
		in.maxDepth = n
		return nil
	}
}

// WithMaxExpressionDepth bounds nesting when Exec compiles source for this
// Interpreter. Zero disables the limit.
func WithMaxExpressionDepth(n int) Option {
	return func(in *Interpreter) error {
		if n < 0 {
			return fmt.Errorf("max expression depth cannot be negative: %d", n)
		}
		in.maxExprDepth = n
		return nil
	}
}

// WithMaxOutputBytes caps the print output Exec and Run capture. A print
// that would exceed it fails with ErrOutputLimit.
func WithMaxOutputBytes(n int) Option {
	return func(in *Interpreter) error {
		if n < 0 {
			return fmt.Errorf("max output bytes cannot be negative: %d", n)
		}
		in.maxOutput = n
		return nil
	}
}

func WithLogicalBooleans(enabled bool) Option {
	return func(in *Interpreter) error {
		in.logicalBooleans = enabled
		return nil
	}
}

// WithTimeout bounds Exec runs. It has no effect on Interpret.
func WithTimeout(d time.Duration) Option {
	return func(in *Interpreter) error {
		in.timeout = d
		return nil
	}
}

// WithGlobals binds host values in the global scope before execution.
func WithGlobals(data map[string]any) Option {
	return func(in *Interpreter) error {
		keys := make([]string, 0, len(data))
		for k := range data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			obj, err := toObject(data[k])
			if err != nil {
				return fmt.Errorf("global %q: %w", k, err)
			}
			in.env.Put(k, obj)
		}
		return nil
	}
}
