// Package calculator provides an integer accumulator with memory.
package calculator

import (
	"errors"
	"strconv"
)

// ErrDivisionByZero is returned by Div when the divisor is zero.
var ErrDivisionByZero = errors.New("division by zero")

// Accumulator holds a single integer value mutated in place by arithmetic
// operations. The zero value is ready to use and holds 0.
//
// An Accumulator is not safe for concurrent use.
type Accumulator struct {
	value int
}

// New creates a new accumulator holding zero
func New() *Accumulator {
	return &Accumulator{}
}

// Get returns the current value
func (a *Accumulator) Get() int {
	return a.value
}

// Set replaces the current value with x
func (a *Accumulator) Set(x int) {
	a.value = x
}

// Add adds x to the current value
func (a *Accumulator) Add(x int) {
	a.value += x
}

// Sub subtracts x from the current value
func (a *Accumulator) Sub(x int) {
	a.value -= x
}

// Mul multiplies the current value by x
func (a *Accumulator) Mul(x int) {
	a.value *= x
}

// Div divides the current value by x, truncating toward zero.
// Dividing by zero returns ErrDivisionByZero and leaves the value unchanged.
func (a *Accumulator) Div(x int) error {
	if x == 0 {
		return ErrDivisionByZero
	}
	a.value /= x
	return nil
}

func (a *Accumulator) String() string {
	return strconv.Itoa(a.value)
}
