package grader

import (
	"fmt"
	"strings"
)

// Item is one gradable test in a rubric
type Item struct {
	Name        string
	Description string
	Points      float64
}

// Rubric lists the tests a plan reports on, in report order
type Rubric []Item

// Description returns the description of the named test
func (r Rubric) Description(name string) (string, error) {
	for _, item := range r {
		if item.Name == name {
			return item.Description, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownTest, name)
}

// TotalPoints returns the sum of all item points
func (r Rubric) TotalPoints() float64 {
	total := 0.0
	for _, item := range r {
		total += item.Points
	}
	return total
}

// Visibility is "hidden" for test names ending in _hidden, otherwise "visible"
func Visibility(name string) string {
	if strings.HasSuffix(name, "_hidden") {
		return "hidden"
	}
	return "visible"
}
