// Package suite holds the named calculator tests run by the calctest command
// and graded by calcgrade. Every test runs against a fresh accumulator.
package suite

import (
	"errors"
	"fmt"
	"time"

	"github.com/bond-kaneko/go-calculator/calculator"
)

// ErrUnknownTest is returned when no test is registered under a name.
var ErrUnknownTest = errors.New("unknown test")

// Case is a single named test.
type Case struct {
	Name        string
	Description string
	Points      float64
	Run         func(acc *calculator.Accumulator) error
}

// Result is the outcome of running one Case.
type Result struct {
	Name    string
	Passed  bool
	Err     error
	Elapsed time.Duration
}

var cases = []Case{
	{
		Name:        "testIsZeroInitially",
		Description: "Accumulator is zero initially",
		Points:      1,
		Run: func(acc *calculator.Accumulator) error {
			return expectValue(acc, 0)
		},
	},
	{
		Name:        "testSet",
		Description: "Set replaces the value",
		Points:      1,
		Run: func(acc *calculator.Accumulator) error {
			acc.Set(11)
			return expectValue(acc, 11)
		},
	},
	{
		Name:        "testAdd",
		Description: "Add accumulates",
		Points:      1,
		Run: func(acc *calculator.Accumulator) error {
			acc.Add(2)
			acc.Add(3)
			acc.Add(4)
			return expectValue(acc, 9)
		},
	},
	{
		Name:        "testSub",
		Description: "Sub subtracts from the value",
		Points:      1,
		Run: func(acc *calculator.Accumulator) error {
			acc.Set(100)
			acc.Sub(36)
			return expectValue(acc, 64)
		},
	},
	{
		Name:        "testMul",
		Description: "Mul multiplies the value",
		Points:      1,
		Run: func(acc *calculator.Accumulator) error {
			acc.Set(6)
			acc.Mul(7)
			return expectValue(acc, 42)
		},
	},
	{
		Name:        "testDiv",
		Description: "Div divides the value",
		Points:      1,
		Run: func(acc *calculator.Accumulator) error {
			acc.Set(20)
			if err := acc.Div(4); err != nil {
				return fmt.Errorf("Div(4): %w", err)
			}
			return expectValue(acc, 5)
		},
	},
	{
		Name:        "testDivByZero",
		Description: "Div by zero is an error",
		Points:      1,
		Run: func(acc *calculator.Accumulator) error {
			acc.Set(20)
			err := acc.Div(0)
			if !errors.Is(err, calculator.ErrDivisionByZero) {
				return fmt.Errorf("Div(0): expected %v, got %v", calculator.ErrDivisionByZero, err)
			}
			return expectValue(acc, 20)
		},
	},
	{
		Name:        "testOrderDependent",
		Description: "Operations apply in call order",
		Points:      1,
		Run: func(acc *calculator.Accumulator) error {
			acc.Set(10)
			acc.Sub(3)
			acc.Mul(2)
			return expectValue(acc, 14)
		},
	},
	{
		Name:        "testTruncatesTowardZero_hidden",
		Description: "Div truncates toward zero",
		Points:      1,
		Run: func(acc *calculator.Accumulator) error {
			acc.Set(-7)
			if err := acc.Div(2); err != nil {
				return fmt.Errorf("Div(2): %w", err)
			}
			return expectValue(acc, -3)
		},
	},
}

// Cases returns all registered tests in declaration order
func Cases() []Case {
	out := make([]Case, len(cases))
	copy(out, cases)
	return out
}

// Names returns the names of all registered tests
func Names() []string {
	names := make([]string, 0, len(cases))
	for _, c := range cases {
		names = append(names, c.Name)
	}
	return names
}

// Lookup finds the test registered under name
func Lookup(name string) (Case, error) {
	for _, c := range cases {
		if c.Name == name {
			return c, nil
		}
	}
	return Case{}, fmt.Errorf("%w: %s", ErrUnknownTest, name)
}

// Run executes the named test against a fresh accumulator.
// The returned error is only set when the test does not exist; test failures,
// including panics, are reported through Result.
func Run(name string) (Result, error) {
	c, err := Lookup(name)
	if err != nil {
		return Result{Name: name}, err
	}
	return RunCase(c), nil
}

// RunCase executes c against a fresh accumulator
func RunCase(c Case) (res Result) {
	res.Name = c.Name
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("panic: %v", r)
		}
		res.Elapsed = time.Since(start)
		res.Passed = res.Err == nil
	}()

	res.Err = c.Run(calculator.New())
	return res
}

func expectValue(acc *calculator.Accumulator, want int) error {
	if got := acc.Get(); got != want {
		return fmt.Errorf("expected %d, got %d", want, got)
	}
	return nil
}
