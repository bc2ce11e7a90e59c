// Package grader runs declarative grading plans.
//
// A plan is built from tasks. Each task runs one step (a command, a build, a
// file check, a predicate) and pushes boolean outcomes. Test wraps a task,
// judges its outcomes into a correctness score and records the result under a
// rubric item. Execute runs a plan and produces a report in the results.json
// format used by Gradescope.
package grader

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnknownTest is returned for a test name missing from the rubric.
	ErrUnknownTest = errors.New("unknown test")
	// ErrNoOutcome is returned when a task inside All produced no outcome.
	ErrNoOutcome = errors.New("task produced no outcome")
	// ErrBadCorrectness is returned when a judge scores outside [0, 1].
	ErrBadCorrectness = errors.New("correctness out of range")
)

// Outcome is the recorded result of one test
type Outcome struct {
	Correctness float64
	Messages    []string
}

// State is shared by all tasks of a running plan
type State struct {
	Outcomes []bool
	Results  map[string]Outcome
	Logger   *Logger
	Rubric   Rubric

	err error
}

func (st *State) push(outcomes ...bool) {
	st.Outcomes = append(st.Outcomes, outcomes...)
}

// fail records the first plan error; the plan keeps running with a failed outcome
func (st *State) fail(err error) {
	if st.err == nil {
		st.err = err
	}
	st.push(false)
}

// Task is one step of a grading plan. A task appends its outcome(s) to
// st.Outcomes.
type Task func(ctx context.Context, st *State)

// Judge turns the outcomes of a test's task into a correctness in [0, 1]
type Judge func(outcomes []bool) float64

// LastOutcome scores 1 if the last outcome is true, 0 otherwise
func LastOutcome(outcomes []bool) float64 {
	if len(outcomes) > 0 && outcomes[len(outcomes)-1] {
		return 1
	}
	return 0
}

// Fraction scores the share of true outcomes
func Fraction(outcomes []bool) float64 {
	if len(outcomes) == 0 {
		return 0
	}
	passed := 0
	for _, o := range outcomes {
		if o {
			passed++
		}
	}
	return float64(passed) / float64(len(outcomes))
}

// Test runs task and records its judged result under the rubric item name.
// A nil judge means LastOutcome.
func Test(name string, task Task, judge Judge) Task {
	if judge == nil {
		judge = LastOutcome
	}

	return func(ctx context.Context, st *State) {
		desc, err := st.Rubric.Description(name)
		if err != nil {
			st.Logger.Clear()
			st.fail(err)
			return
		}
		st.Logger.Log("Executing test: " + desc)

		sub := &State{Results: st.Results, Logger: st.Logger, Rubric: st.Rubric}
		task(ctx, sub)
		if sub.err != nil && st.err == nil {
			st.err = sub.err
		}

		correctness := judge(sub.Outcomes)
		if correctness < 0 || correctness > 1 {
			st.Logger.Clear()
			st.fail(fmt.Errorf("%w: %s scored %v", ErrBadCorrectness, name, correctness))
			return
		}

		switch correctness {
		case 1:
			st.Logger.Log("Test PASSED")
		case 0:
			st.Logger.Log("Test FAILED")
		default:
			st.Logger.Log("Test resulted in partial credit")
		}

		st.Results[name] = Outcome{Correctness: correctness, Messages: st.Logger.Messages()}
		st.Logger.Clear()
		if len(sub.Outcomes) == 0 {
			st.push(false)
			return
		}
		st.push(sub.Outcomes...)
	}
}

// All runs tasks in sequence. Once a task fails, the remaining tasks are not
// run and count as failed. A single outcome is pushed: true only if every task
// succeeded.
func All(tasks ...Task) Task {
	return func(ctx context.Context, st *State) {
		sub := &State{Results: st.Results, Logger: st.Logger, Rubric: st.Rubric}
		failed := false

		for i, task := range tasks {
			if failed {
				sub.push(false)
				continue
			}

			n := len(sub.Outcomes)
			task(ctx, sub)
			if len(sub.Outcomes) <= n {
				sub.fail(fmt.Errorf("%w: step %d", ErrNoOutcome, i+1))
			}

			failed = !sub.Outcomes[len(sub.Outcomes)-1]
			if failed && i < len(tasks)-1 {
				st.Logger.Log("Task failed, not executing subsequent tasks")
			}
		}

		if sub.err != nil && st.err == nil {
			st.err = sub.err
		}
		st.push(!failed)
	}
}

// InOrder runs every task regardless of earlier failures and keeps all
// their outcomes
func InOrder(tasks ...Task) Task {
	return func(ctx context.Context, st *State) {
		for _, task := range tasks {
			task(ctx, st)
		}
	}
}

// NoFail runs tasks like InOrder but reports every outcome as true
func NoFail(tasks ...Task) Task {
	return func(ctx context.Context, st *State) {
		sub := &State{Results: st.Results, Logger: st.Logger, Rubric: st.Rubric}
		InOrder(tasks...)(ctx, sub)
		if sub.err != nil && st.err == nil {
			st.err = sub.err
		}
		for range sub.Outcomes {
			st.push(true)
		}
	}
}

// ExpectFail inverts the outcomes of task
func ExpectFail(task Task) Task {
	return func(ctx context.Context, st *State) {
		sub := &State{Results: st.Results, Logger: st.Logger, Rubric: st.Rubric}
		task(ctx, sub)
		if sub.err != nil && st.err == nil {
			st.err = sub.err
		}
		for _, o := range sub.Outcomes {
			st.push(!o)
		}
	}
}

// Pred is a described predicate over the results recorded so far
type Pred struct {
	Desc string
	Fn   func(results map[string]Outcome) bool
}

// EvalPred pushes the value of pred, for tests not backed by running code
func EvalPred(pred Pred) Task {
	return func(ctx context.Context, st *State) {
		if pred.Desc != "" {
			st.Logger.Log("Checking predicate: " + pred.Desc)
		}
		outcome := pred.Fn(st.Results)
		st.Logger.Log(fmt.Sprintf("Predicate evaluated as %t", outcome))
		st.push(outcome)
	}
}

// TestPassed reports whether the named test has been recorded with full
// correctness
func TestPassed(name string, results map[string]Outcome) bool {
	res, ok := results[name]
	return ok && res.Correctness >= 1
}
