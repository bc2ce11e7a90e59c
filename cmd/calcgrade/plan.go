package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/bond-kaneko/go-calculator/grader"
	"github.com/bond-kaneko/go-calculator/suite"
)

type config struct {
	bin     string
	build   bool
	src     string
	out     string
	timeout time.Duration
	// poll forces the polling file watcher in watch mode when positive
	poll time.Duration
}

// newRubric has one item per calculator test
func newRubric(cases []suite.Case) grader.Rubric {
	rubric := make(grader.Rubric, 0, len(cases))
	for _, c := range cases {
		rubric = append(rubric, grader.Item{
			Name:        c.Name,
			Description: c.Description,
			Points:      c.Points,
		})
	}
	return rubric
}

// newPlan builds calctest if requested, checks that it exists and then runs
// it once per test. Tests are independent of each other but all depend on the
// binary being present.
func newPlan(cfg config, cases []suite.Case) grader.Task {
	tests := make([]grader.Task, 0, len(cases))
	for _, c := range cases {
		tests = append(tests, grader.Test(c.Name,
			grader.Run([]string{cfg.bin, c.Name},
				grader.WithTimeout(cfg.timeout),
				grader.ReportStdout(),
				grader.ReportStderr(),
			), nil))
	}

	var steps []grader.Task
	if cfg.build {
		steps = append(steps, grader.Build(cfg.src, "./cmd/calctest", cfg.bin))
	}
	steps = append(steps,
		grader.CheckExe(filepath.Dir(cfg.bin), filepath.Base(cfg.bin)),
		grader.InOrder(tests...),
	)
	return grader.All(steps...)
}

// grade runs the plan and writes the report to cfg.out. Private log output
// goes to logw.
func grade(ctx context.Context, cfg config, logw io.Writer) (grader.Report, error) {
	cases := suite.Cases()

	report, err := grader.Execute(ctx, newRubric(cases), newPlan(cfg, cases), grader.NewLogger(logw))
	if err != nil {
		return report, err
	}

	if err := report.Write(cfg.out); err != nil {
		return report, fmt.Errorf("saving report: %w", err)
	}
	return report, nil
}
