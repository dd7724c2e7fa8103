package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/oarkflow/json"
	"github.com/oarkflow/log"
	"github.com/urfave/cli/v2"

	"github.com/oarkflow/tinylang"
	"github.com/oarkflow/tinylang/pkg/config"
	"github.com/oarkflow/tinylang/pkg/repl"
	"github.com/oarkflow/tinylang/pkg/server"
)

// loadConfig reads --config when given, applies --log-level and installs the
// runtime section as the interpreter defaults.
func loadConfig(c *cli.Context) (*config.Config, *log.Logger, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, nil, fmt.Errorf("load config %s: %w", path, err)
		}
		cfg = loaded
	}
	if level := c.String("log-level"); level != "" {
		if _, err := config.ParseLevel(level); err != nil {
			return nil, nil, err
		}
		cfg.Log.Level = level
	}
	if err := cfg.Runtime.Apply(); err != nil {
		return nil, nil, err
	}
	return cfg, cfg.Log.NewLogger(os.Stderr), nil
}

// readSource returns the --eval text or the contents of the first argument,
// with a name used in log entries.
func readSource(c *cli.Context) (string, string, error) {
	if src := c.String("eval"); src != "" {
		return src, "<eval>", nil
	}
	if c.NArg() == 0 {
		return "", "", cli.Exit("a script file or --eval is required", 2)
	}
	path := c.Args().First()
	content, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	return string(content), path, nil
}

func runScript(c *cli.Context) error {
	_, logger, err := loadConfig(c)
	if err != nil {
		return err
	}
	src, name, err := readSource(c)
	if err != nil {
		return err
	}
	program, err := tinylang.Compile(src)
	if err != nil {
		return cli.Exit(tinylang.FormatError(err, src), 1)
	}
	opts := []tinylang.Option{tinylang.WithOutput(os.Stdout)}
	if c.IsSet("logical-booleans") {
		opts = append(opts, tinylang.WithLogicalBooleans(c.Bool("logical-booleans")))
	}
	ctx := c.Context
	timeout := tinylang.GetRuntimeConfig().Timeout
	if c.IsSet("timeout") {
		timeout = c.Duration("timeout")
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	if c.Bool("trace") {
		err = traceProgram(ctx, logger, program, opts)
	} else {
		_, err = tinylang.Run(ctx, program, opts...)
	}
	if err != nil {
		logger.Error().Str("script", name).Str("code", string(tinylang.CodeOf(err))).Err(err).Msg("run failed")
		return cli.Exit(tinylang.FormatError(err, src), 1)
	}
	logger.Debug().Str("script", name).Dur("elapsed", time.Since(start)).Msg("run finished")
	return nil
}

// traceProgram steps through the program and logs the value of every
// top-level statement together with the visible variables.
func traceProgram(ctx context.Context, logger *log.Logger, program *tinylang.Program, opts []tinylang.Option) error {
	in, err := tinylang.NewInterpreter(opts...)
	if err != nil {
		return err
	}
	stepper := tinylang.NewStepper(in, program)
	for !stepper.Done() {
		pos := stepper.Position()
		val, err := stepper.Step(ctx)
		if err != nil {
			return err
		}
		logger.Info().
			Int("step", stepper.Index()).
			Str("pos", pos.String()).
			Str("value", tinylang.Inspect(val)).
			Str("vars", formatVariables(in.AllVariables())).
			Msg("step")
	}
	return nil
}

func formatVariables(vars map[string]tinylang.Object) string {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + tinylang.Inspect(vars[name])
	}
	return strings.Join(parts, " ")
}

func startREPL(c *cli.Context) error {
	cfg, logger, err := loadConfig(c)
	if err != nil {
		return err
	}
	r, err := repl.New(cfg.REPL, os.Stdout, logger)
	if err != nil {
		return err
	}
	return r.Run(c.Context)
}

func dumpTokens(c *cli.Context) error {
	src, _, err := readSource(c)
	if err != nil {
		return err
	}
	tokens, err := tinylang.Tokenize(src)
	if err != nil {
		return cli.Exit(tinylang.FormatError(err, src), 1)
	}
	data, err := json.Marshal(tokens)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, string(data))
	return nil
}

func dumpAST(c *cli.Context) error {
	src, _, err := readSource(c)
	if err != nil {
		return err
	}
	program, err := tinylang.Compile(src)
	if err != nil {
		return cli.Exit(tinylang.FormatError(err, src), 1)
	}
	for _, stmt := range program.Statements {
		fmt.Fprintln(c.App.Writer, stmt.String())
	}
	return nil
}

func checkScript(c *cli.Context) error {
	src, name, err := readSource(c)
	if err != nil {
		return err
	}
	program, err := tinylang.Compile(src)
	if err != nil {
		return cli.Exit(tinylang.FormatError(err, src), 1)
	}
	fmt.Fprintf(c.App.Writer, "%s: ok (%d statements)\n", name, len(program.Statements))
	return nil
}

func startServer(c *cli.Context) error {
	cfg, logger, err := loadConfig(c)
	if err != nil {
		return err
	}
	addr := cfg.Server.Addr
	if c.IsSet("addr") {
		addr = c.String("addr")
	}
	srv, err := server.NewServer(server.Config{
		Version:        version,
		RequestTimeout: cfg.Server.Timeout(),
		CacheSize:      cfg.Server.CacheSize,
		MaxSourceBytes: cfg.Server.MaxSourceBytes,
		MaxOutputBytes: cfg.Server.MaxOutputBytes,
		RunLog:         cfg.Server.RunLog,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start(addr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-c.Context.Done():
		logger.Info().Msg("shutting down")
		if err := srv.Shutdown(); err != nil {
			return err
		}
		select {
		case err := <-serverErr:
			return err
		case <-time.After(30 * time.Second):
			return fmt.Errorf("shutdown timed out")
		}
	}
}
