package repl

import (
	"context"
	sterrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gofrs/flock"
	"github.com/oarkflow/log"
	"github.com/oarkflow/xid"
	"github.com/peterh/liner"

	"github.com/oarkflow/tinylang"
	"github.com/oarkflow/tinylang/pkg/config"
)

// LineReader is the prompt side of a terminal. *liner.State satisfies it.
type LineReader interface {
	Prompt(prompt string) (string, error)
}

// REPL reads source a line at a time and runs it against one persistent
// Interpreter, so variables and functions survive between inputs.
type REPL struct {
	cfg       config.REPLConfig
	in        *tinylang.Interpreter
	out       io.Writer
	logger    *log.Logger
	sessionID string
}

func New(cfg config.REPLConfig, out io.Writer, logger *log.Logger, opts ...tinylang.Option) (*REPL, error) {
	if logger == nil {
		logger = &log.DefaultLogger
	}
	if cfg.Prompt == "" {
		cfg.Prompt = ">> "
	}
	if cfg.Continuation == "" {
		cfg.Continuation = ".. "
	}
	in, err := tinylang.NewInterpreter(append([]tinylang.Option{tinylang.WithOutput(out)}, opts...)...)
	if err != nil {
		return nil, err
	}
	return &REPL{
		cfg:       cfg,
		in:        in,
		out:       out,
		logger:    logger,
		sessionID: xid.New().String(),
	}, nil
}

func (r *REPL) SessionID() string {
	return r.sessionID
}

func (r *REPL) Interpreter() *tinylang.Interpreter {
	return r.in
}

// Eval runs one complete input. It returns the text to show after any print
// output, and whether the session should end.
func (r *REPL) Eval(ctx context.Context, input string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "exit" {
		return "", true
	}
	if trimmed == "" {
		return "", false
	}
	program, err := tinylang.Compile(input)
	if err != nil {
		r.logger.Debug().Str("session", r.sessionID).Err(err).Msg("compile failed")
		return "Error: " + tinylang.FormatError(err, input), false
	}
	val, err := r.in.InterpretContext(ctx, program)
	if err != nil {
		r.logger.Debug().Str("session", r.sessionID).Err(err).Msg("evaluation failed")
		return "Error: " + tinylang.FormatError(err, input), false
	}
	if val == nil || endsWithPrint(program) {
		return "", false
	}
	return tinylang.Inspect(val), false
}

// endsWithPrint reports whether the value was already shown by print.
func endsWithPrint(program *tinylang.Program) bool {
	n := len(program.Statements)
	if n == 0 {
		return false
	}
	_, ok := program.Statements[n-1].(*tinylang.PrintStmt)
	return ok
}

// Loop prompts until exit or end of input. Inputs with unbalanced braces
// keep reading continuation lines.
func (r *REPL) Loop(ctx context.Context, reader LineReader, history func(string)) error {
	for {
		input, ok, err := r.readInput(reader)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		text, exit := r.Eval(ctx, input)
		if exit {
			return nil
		}
		if text != "" {
			fmt.Fprintln(r.out, strings.TrimRight(text, "\n"))
		}
		if history != nil && strings.TrimSpace(input) != "" {
			history(strings.ReplaceAll(input, "\n", " "))
		}
	}
}

func (r *REPL) readInput(reader LineReader) (string, bool, error) {
	line, err := reader.Prompt(r.cfg.Prompt)
	if sterrors.Is(err, io.EOF) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	input := line
	depth := countBraces(line)
	for depth > 0 {
		next, err := reader.Prompt(r.cfg.Continuation)
		if sterrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", false, err
		}
		input += "\n" + next
		depth += countBraces(next)
	}
	return input, true, nil
}

// countBraces returns the brace balance of line using the lexer, so braces
// inside strings and comments do not count. Scanning stops at the first lex
// error and the balance so far is kept.
func countBraces(line string) int {
	count := 0
	l := tinylang.NewLexer(line)
	for {
		tok, err := l.NextToken()
		if err != nil || tok.Type == tinylang.EOF {
			return count
		}
		switch tok.Type {
		case tinylang.LBRACE:
			count++
		case tinylang.RBRACE:
			count--
		}
	}
}

// Run starts an interactive session on the terminal.
func (r *REPL) Run(ctx context.Context) error {
	r.logger.Info().Str("session", r.sessionID).Str("history", r.cfg.HistoryFile).Msg("repl started")
	fmt.Fprintln(r.out, "tinylang REPL. Type 'exit' to quit.")

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if r.cfg.HistoryFile != "" {
		if err := loadHistory(r.cfg.HistoryFile, ln); err != nil {
			r.logger.Warn().Err(err).Msg("could not read history")
		}
		defer func() {
			if err := saveHistory(r.cfg.HistoryFile, ln); err != nil {
				r.logger.Warn().Err(err).Msg("could not write history")
			}
		}()
	}

	err := r.Loop(ctx, ln, ln.AppendHistory)
	if sterrors.Is(err, liner.ErrPromptAborted) {
		err = nil
	}
	r.logger.Info().Str("session", r.sessionID).Msg("repl finished")
	return err
}

// loadHistory and saveHistory hold a file lock so concurrent sessions do not
// interleave writes to the shared history file.
func loadHistory(path string, ln *liner.State) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return err
	}
	defer lock.Unlock()
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = ln.ReadHistory(f)
	return err
}

func saveHistory(path string, ln *liner.State) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return err
	}
	defer lock.Unlock()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = ln.WriteHistory(f)
	return err
}
