// Command calcgrade grades the calculator by running calctest once per test
// and writing a results.json report. With -w it regrades on every change.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bond-kaneko/go-calculator/filenotify"
	"github.com/bond-kaneko/go-calculator/grader"
	"github.com/bond-kaneko/go-calculator/watcher"
)

func main() {
	binFlag := flag.String("bin", "", "Path of the calctest binary (default: built into a temporary directory)")
	buildFlag := flag.Bool("build", true, "Build calctest from the source directory before grading")
	srcFlag := flag.String("src", ".", "Module source directory")
	outFlag := flag.String("out", "results", "Directory to write results.json to")
	timeoutFlag := flag.Duration("timeout", grader.DefaultTimeout, "Timeout for each test run")
	watchFlag := flag.Bool("w", false, "Watch the sources and regrade on change")
	delayFlag := flag.Duration("d", 500*time.Millisecond, "Debounce delay for regrading after changes")
	pollFlag := flag.Duration("poll", 0, "Poll for changes at this interval instead of using fs events")
	filterFlag := flag.String("f", "*.go", "File filter pattern (e.g., \"*.go\", \"*_test.go\")")
	flag.Parse()

	cfg := config{
		bin:     *binFlag,
		build:   *buildFlag,
		src:     *srcFlag,
		out:     *outFlag,
		timeout: *timeoutFlag,
		poll:    *pollFlag,
	}

	os.Exit(run(cfg, *watchFlag, *delayFlag, *filterFlag))
}

// run grades once, or keeps regrading in watch mode, and returns the exit code
func run(cfg config, watchMode bool, delay time.Duration, filter string) int {
	if cfg.bin == "" {
		tmp, err := os.MkdirTemp("", "calcgrade")
		if err != nil {
			fmt.Printf("Error creating build directory: %v\n", err)
			return 1
		}
		defer os.RemoveAll(tmp)
		cfg.bin = filepath.Join(tmp, "calctest")
	}

	var err error
	if cfg.bin, err = filepath.Abs(cfg.bin); err != nil {
		fmt.Printf("Error resolving binary path: %v\n", err)
		return 1
	}

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if watchMode {
		if err := watch(ctx, cfg, delay, filter); err != nil {
			fmt.Printf("Error watching: %v\n", err)
			return 1
		}
		fmt.Println("\nShutting down...")
		return 0
	}

	report, err := grade(ctx, cfg, os.Stderr)
	printSummary(os.Stdout, report)
	if err != nil {
		fmt.Printf("Error grading: %v\n", err)
		return 1
	}
	return 0
}

func watch(ctx context.Context, cfg config, delay time.Duration, filter string) error {
	var opts []filenotify.Option
	if cfg.poll > 0 {
		opts = append(opts, filenotify.WithPolling(), filenotify.WithPollInterval(cfg.poll))
	}

	w, err := watcher.New(cfg.src, func(ctx context.Context, out io.Writer, changed []string) error {
		report, err := grade(ctx, cfg, io.Discard)
		printSummary(out, report)
		if err != nil {
			return err
		}
		if earned, total := report.Score(); earned < total {
			return fmt.Errorf("scored %v of %v points", earned, total)
		}
		return nil
	}, opts...)
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Stop()

	w.SetDebounceDelay(delay)
	if filter != "" {
		w.SetFileFilter(func(path string) bool {
			matched, err := filepath.Match(filter, filepath.Base(path))
			if err != nil {
				fmt.Printf("Error in file filter pattern: %v\n", err)
				return false
			}
			return matched
		})
	}

	return w.Watch(ctx)
}

func printSummary(w io.Writer, report grader.Report) {
	for _, t := range report.Tests {
		status := "PASS"
		if t.Score < t.MaxScore {
			status = "FAIL"
		}
		fmt.Fprintf(w, "%-4s %s (%v/%v)\n", status, t.Name, t.Score, t.MaxScore)
	}
	earned, total := report.Score()
	fmt.Fprintf(w, "Score: %v/%v\n", earned, total)
}
