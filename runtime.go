package tinylang

import (
	"context"
	"sync"
	"time"
)

// RuntimeConfig holds process-wide defaults applied to every new
// Interpreter. Options passed to NewInterpreter override them.
type RuntimeConfig struct {
	// MaxCallDepth bounds nested function calls. Zero disables the limit.
	MaxCallDepth int
	// Timeout bounds Exec and ExecFile. Zero disables it.
	Timeout time.Duration
	// LogicalBooleans makes && and || short-circuit over booleans instead of
	// rejecting non-integer operands.
	LogicalBooleans bool
	// MaxExpressionDepth bounds how deeply expressions and blocks may nest
	// in parsed source. Zero disables the limit.
	MaxExpressionDepth int
	// MaxOutputBytes caps the print output Exec and Run capture. Zero
	// disables the cap.
	MaxOutputBytes int
}

const (
	DefaultMaxCallDepth       = 10000
	DefaultMaxExpressionDepth = 256
)

var (
	runtimeConfigMu sync.RWMutex
	runtimeConfig   = RuntimeConfig{
		MaxCallDepth:       DefaultMaxCallDepth,
		MaxExpressionDepth: DefaultMaxExpressionDepth,
	}
)

func SetRuntimeConfig(cfg RuntimeConfig) {
	runtimeConfigMu.Lock()
	defer runtimeConfigMu.Unlock()
	runtimeConfig = cfg
}

func GetRuntimeConfig() RuntimeConfig {
	runtimeConfigMu.RLock()
	defer runtimeConfigMu.RUnlock()
	return runtimeConfig
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
