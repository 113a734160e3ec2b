package script

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fieldsync/internal/host"
	"fieldsync/internal/session"
	"fieldsync/internal/textfield"
)

// settlePoll is how often Settle samples the session counters.
const settlePoll = 5 * time.Millisecond

// StepError reports which step of a script failed.
type StepError struct {
	Index int
	Op    Op
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Op, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// MismatchError reports a final field state that differs from Expect.
type MismatchError struct {
	What string
	Want any
	Got  any
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("expected %s %v, got %v", e.What, e.Want, e.Got)
}

// Result is the field state after a replay.
type Result struct {
	Text           string
	SelectionStart int
	SelectionEnd   int
	Composing      textfield.Region
	Stats          session.Stats
}

// Play runs every step of sc against field through s, waits for the
// pipeline to settle and returns the final field state. s must be running.
func Play(ctx context.Context, s *session.Session, field *host.Field, sc *Script, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "replay")

	for i, step := range sc.Steps {
		logger.Debug("replay step", "index", i, "op", string(step.Op))

		if step.Op == OpWait {
			if err := sleep(ctx, time.Duration(step.Ms)*time.Millisecond); err != nil {
				return Result{}, &StepError{Index: i, Op: step.Op, Err: err}
			}
			continue
		}

		var stepErr error
		if err := s.Do(ctx, func() { stepErr = apply(field, step) }); err != nil {
			return Result{}, &StepError{Index: i, Op: step.Op, Err: err}
		}
		if stepErr != nil {
			return Result{}, &StepError{Index: i, Op: step.Op, Err: stepErr}
		}
	}

	if err := Settle(ctx, s); err != nil {
		return Result{}, err
	}

	var res Result
	err := s.Do(ctx, func() {
		res.Text = field.Text()
		res.SelectionStart, res.SelectionEnd = field.Selection()
		res.Composing = field.ComposingRegion()
	})
	if err != nil {
		return Result{}, err
	}
	res.Stats = s.Stats()
	return res, nil
}

func apply(field *host.Field, step Step) error {
	switch step.Op {
	case OpInsert:
		field.Insert(step.Text)
	case OpCompose:
		field.Compose(step.Text)
	case OpFinish:
		field.FinishComposing()
	case OpBackspace:
		field.Backspace(max(step.Count, 1))
	case OpSelect:
		return field.SetSelection(step.Start, step.End)
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	return nil
}

// Settle blocks until every submitted state has been processed and
// reconciled, or ctx is done.
func Settle(ctx context.Context, s *session.Session) error {
	ticker := time.NewTicker(settlePoll)
	defer ticker.Stop()
	for {
		if s.Stats().Settled() {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("settle: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Check compares r with the expectation of sc, if any.
func (sc *Script) Check(r Result) error {
	exp := sc.Expect
	if exp == nil {
		return nil
	}
	if exp.Text != nil && *exp.Text != r.Text {
		return &MismatchError{What: "text", Want: *exp.Text, Got: r.Text}
	}
	if len(exp.Selection) == 2 {
		got := []int{r.SelectionStart, r.SelectionEnd}
		if exp.Selection[0] != got[0] || exp.Selection[1] != got[1] {
			return &MismatchError{What: "selection", Want: exp.Selection, Got: got}
		}
	}
	if len(exp.Composing) == 2 {
		want := textfield.Region{Start: exp.Composing[0], End: exp.Composing[1]}
		if want != r.Composing {
			return &MismatchError{What: "composing region", Want: want, Got: r.Composing}
		}
	}
	return nil
}
