package suite

import (
	"errors"
	"testing"

	"github.com/bond-kaneko/go-calculator/calculator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllCasesPass(t *testing.T) {
	t.Parallel()

	for _, name := range Names() {
		name := name
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			res, err := Run(name)
			require.NoError(t, err)
			assert.True(t, res.Passed, "test %s failed: %v", name, res.Err)
			assert.Equal(t, name, res.Name)
		})
	}
}

func TestNamesAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, name := range Names() {
		assert.False(t, seen[name], "duplicate test name %s", name)
		seen[name] = true
	}
	assert.Len(t, seen, len(Cases()))
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("testNope")
	require.ErrorIs(t, err, ErrUnknownTest)
	assert.Contains(t, err.Error(), "testNope")

	res, err := Run("testNope")
	require.ErrorIs(t, err, ErrUnknownTest)
	assert.False(t, res.Passed)
}

func TestRunCaseFailure(t *testing.T) {
	tests := []struct {
		name string
		run  func(acc *calculator.Accumulator) error
		want string
	}{
		{
			name: "returned error",
			run: func(acc *calculator.Accumulator) error {
				acc.Add(1)
				return expectValue(acc, 2)
			},
			want: "expected 2, got 1",
		},
		{
			name: "panic",
			run: func(acc *calculator.Accumulator) error {
				panic("boom")
			},
			want: "panic: boom",
		},
		{
			name: "uncaught division error",
			run: func(acc *calculator.Accumulator) error {
				return acc.Div(0)
			},
			want: calculator.ErrDivisionByZero.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := RunCase(Case{Name: tt.name, Run: tt.run})
			assert.False(t, res.Passed)
			require.Error(t, res.Err)
			assert.Contains(t, res.Err.Error(), tt.want)
		})
	}
}

func TestFreshFixturePerRun(t *testing.T) {
	var seen []*calculator.Accumulator
	c := Case{
		Name: "fixture",
		Run: func(acc *calculator.Accumulator) error {
			seen = append(seen, acc)
			if acc.Get() != 0 {
				return errors.New("fixture not reset")
			}
			acc.Set(99)
			return nil
		},
	}

	assert.True(t, RunCase(c).Passed)
	assert.True(t, RunCase(c).Passed)
	require.Len(t, seen, 2)
	assert.NotSame(t, seen[0], seen[1])
}

func TestCasesReturnsCopy(t *testing.T) {
	cs := Cases()
	cs[0].Name = "mutated"
	assert.NotEqual(t, "mutated", Cases()[0].Name)
}
