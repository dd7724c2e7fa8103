package tinylang

import (
	"context"
)

// Stepper executes a program one top-level statement at a time against a
// single Interpreter, so the environment persists between steps.
type Stepper struct {
	in      *Interpreter
	program *Program
	next    int
	done    bool
}

func NewStepper(in *Interpreter, program *Program) *Stepper {
	return &Stepper{in: in, program: program}
}

// Step runs the next statement and returns its value. A top-level return
// finishes the program. After the last statement Step returns
// ErrStepperDone.
func (s *Stepper) Step(ctx context.Context) (Object, error) {
	if s.Done() {
		return nil, ErrStepperDone
	}
	stmt := s.program.Statements[s.next]
	s.next++
	val, err := s.in.eval(ctx, stmt)
	if err != nil {
		return nil, err
	}
	if rv, ok := val.(*ReturnValue); ok {
		s.done = true
		return rv.Value, nil
	}
	return val, nil
}

func (s *Stepper) Done() bool {
	return s.done || s.next >= len(s.program.Statements)
}

// Position is the source position of the statement Step will run next, or
// the zero Position once stepping is done.
func (s *Stepper) Position() Position {
	if s.Done() {
		return Position{}
	}
	return s.program.Statements[s.next].Pos()
}

// Index is the number of statements already executed.
func (s *Stepper) Index() int {
	return s.next
}

func (s *Stepper) Interpreter() *Interpreter {
	return s.in
}
