// Command calctest runs the calculator tests by name.
//
//	calctest [-l] [<test name>]
//
// With a test name it runs only that test, prints "Running test <name>..."
// followed by PASS or FAIL and exits with status 0 or 1. Without a test name
// every test is run in order.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/bond-kaneko/go-calculator/suite"
)

func main() {
	os.Exit(run(os.Args[0], os.Args[1:], os.Stdout, os.Stderr))
}

// run parses args and executes the requested tests, returning the exit code
func run(prog string, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(prog, flag.ContinueOnError)
	fs.SetOutput(stderr)
	listFlag := fs.Bool("l", false, "List test names and exit")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [-l] [<test name>]\n", prog)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *listFlag {
		for _, name := range suite.Names() {
			fmt.Fprintln(stdout, name)
		}
		return 0
	}

	if fs.NArg() > 1 {
		fs.Usage()
		return 1
	}

	names := suite.Names()
	if fs.NArg() == 1 {
		names = []string{fs.Arg(0)}
	}

	return runTests(stdout, stderr, names)
}

// runTests executes the named tests in order and returns the exit code
func runTests(stdout, stderr io.Writer, names []string) int {
	code := 0
	for _, name := range names {
		if !runOne(stdout, stderr, name) {
			code = 1
		}
	}
	return code
}

func runOne(stdout, stderr io.Writer, name string) bool {
	fmt.Fprintf(stdout, "Running test %s...", name)

	res, err := suite.Run(name)
	if err != nil {
		fmt.Fprintln(stdout, "FAIL")
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return false
	}

	if !res.Passed {
		fmt.Fprintln(stdout, "FAIL")
		fmt.Fprintf(stderr, "%s: %v\n", name, res.Err)
		return false
	}

	fmt.Fprintln(stdout, "PASS")
	return true
}
