package grader

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const notExecuted = "Test was not executed due to a failed prerequisite step"

// TestResult is one entry of a results.json report
type TestResult struct {
	Name       string  `json:"name"`
	Score      float64 `json:"score"`
	MaxScore   float64 `json:"max_score"`
	Output     string  `json:"output"`
	Visibility string  `json:"visibility"`
}

// Report is the results.json document
type Report struct {
	Tests []TestResult `json:"tests"`
}

// Score returns the earned and maximum points
func (r Report) Score() (earned, total float64) {
	for _, t := range r.Tests {
		earned += t.Score
		total += t.MaxScore
	}
	return earned, total
}

// Execute runs plan and builds a report with one entry per rubric item.
// Items without a recorded result score zero. The returned error reports a
// malformed plan; the report is still complete in that case.
func Execute(ctx context.Context, rubric Rubric, plan Task, logger *Logger) (Report, error) {
	logger.LogPrivate(fmt.Sprintf("Starting autograder (total points is %v)", rubric.TotalPoints()))

	st := &State{
		Results: make(map[string]Outcome),
		Logger:  logger,
		Rubric:  rubric,
	}
	plan(ctx, st)

	report := Report{Tests: make([]TestResult, 0, len(rubric))}
	for _, item := range rubric {
		res := TestResult{
			Name:       item.Description,
			MaxScore:   item.Points,
			Output:     notExecuted,
			Visibility: Visibility(item.Name),
		}
		if outcome, ok := st.Results[item.Name]; ok {
			res.Score = outcome.Correctness * item.Points
			res.Output = strings.Join(outcome.Messages, "\n")
		}
		report.Tests = append(report.Tests, res)
	}

	if st.err != nil {
		return report, fmt.Errorf("executing plan: %w", st.err)
	}
	return report, nil
}

// Write stores the report as dir/results.json
func (r Report) Write(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating results directory: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "results.json"), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}
	return nil
}
