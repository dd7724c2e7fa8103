package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

var version = "0.1.0"

func main() {
	app := &cli.App{
		Name:    "tinylang",
		Usage:   "Run, inspect and serve tinylang scripts",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the configuration file (BCL, YAML, or JSON)",
				EnvVars: []string{"TINYLANG_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override the configured log level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "Execute a script file or an inline program",
				ArgsUsage: "[file]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "eval",
						Aliases: []string{"e"},
						Usage:   "Program text to run instead of a file",
					},
					&cli.BoolFlag{
						Name:  "trace",
						Usage: "Log every top-level statement with a snapshot of the variables",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "Abort the run after this duration",
					},
					&cli.BoolFlag{
						Name:  "logical-booleans",
						Usage: "Allow && and || on boolean operands",
					},
				},
				Action: runScript,
			},
			{
				Name:   "repl",
				Usage:  "Start an interactive session",
				Action: startREPL,
			},
			{
				Name:      "tokens",
				Usage:     "Print the token stream of a script as JSON",
				ArgsUsage: "[file]",
				Flags:     []cli.Flag{evalFlag()},
				Action:    dumpTokens,
			},
			{
				Name:      "ast",
				Usage:     "Print the parsed program, one statement per line",
				ArgsUsage: "[file]",
				Flags:     []cli.Flag{evalFlag()},
				Action:    dumpAST,
			},
			{
				Name:      "check",
				Usage:     "Report lexical and syntax errors without running",
				ArgsUsage: "[file]",
				Flags:     []cli.Flag{evalFlag()},
				Action:    checkScript,
			},
			{
				Name:  "serve",
				Usage: "Start the playground HTTP server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address, overrides server.addr",
					},
				},
				Action: startServer,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func evalFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "eval",
		Aliases: []string{"e"},
		Usage:   "Program text to use instead of a file",
	}
}
