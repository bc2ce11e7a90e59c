package grader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds every command started by Run
	DefaultTimeout = 20 * time.Second
	// BuildTimeout bounds a Build step
	BuildTimeout = 2 * time.Minute
	// waitDelay is how long to wait for output pipes after a command is killed
	waitDelay = time.Second
)

// SuccessFunc decides whether a finished command succeeded
type SuccessFunc func(err error, stdout, stderr string) bool

// ExitedZero succeeds when the command exited with status 0
func ExitedZero(err error, stdout, stderr string) bool {
	return err == nil
}

type runConfig struct {
	dir           string
	timeout       time.Duration
	env           []string
	stdinFile     string
	stdoutFile    string
	reportCommand bool
	reportOutcome bool
	reportStdout  bool
	reportStderr  bool
	success       SuccessFunc
}

// RunOption configures a Run task
type RunOption func(*runConfig)

// WithTimeout overrides DefaultTimeout
func WithTimeout(d time.Duration) RunOption {
	return func(c *runConfig) { c.timeout = d }
}

// WithDir runs the command in dir
func WithDir(dir string) RunOption {
	return func(c *runConfig) { c.dir = dir }
}

// WithEnv adds KEY=VALUE pairs to the command environment
func WithEnv(env ...string) RunOption {
	return func(c *runConfig) { c.env = append(c.env, env...) }
}

// WithStdin sends the contents of the named file to the command's stdin
func WithStdin(filename string) RunOption {
	return func(c *runConfig) { c.stdinFile = filename }
}

// WithStdoutFile also saves the command's stdout to the named file
func WithStdoutFile(filename string) RunOption {
	return func(c *runConfig) { c.stdoutFile = filename }
}

// ReportStdout makes the command's stdout visible to students
func ReportStdout() RunOption {
	return func(c *runConfig) { c.reportStdout = true }
}

// ReportStderr makes the command's stderr visible to students
func ReportStderr() RunOption {
	return func(c *runConfig) { c.reportStderr = true }
}

// HideCommand keeps the command line out of student visible output
func HideCommand() RunOption {
	return func(c *runConfig) { c.reportCommand = false }
}

// HideOutcome keeps "Command failed!" out of student visible output
func HideOutcome() RunOption {
	return func(c *runConfig) { c.reportOutcome = false }
}

// WithSuccess replaces ExitedZero as the success check
func WithSuccess(fn SuccessFunc) RunOption {
	return func(c *runConfig) { c.success = fn }
}

// Run returns a task that executes cmd and pushes whether it succeeded.
// The command is killed when the timeout expires.
func Run(cmd []string, opts ...RunOption) Task {
	cfg := runConfig{
		timeout:       DefaultTimeout,
		reportCommand: true,
		reportOutcome: true,
		success:       ExitedZero,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(ctx context.Context, st *State) {
		if len(cmd) == 0 {
			st.fail(errors.New("no command to run"))
			return
		}

		logCmd := st.Logger.LogPrivate
		if cfg.reportCommand {
			logCmd = st.Logger.Log
		}
		logCmd("Running command: " + strings.Join(cmd, " "))

		stdin := []byte{}
		if cfg.stdinFile != "" {
			data, err := os.ReadFile(filepath.Join(cfg.dir, cfg.stdinFile))
			if err != nil {
				st.Logger.Log(fmt.Sprintf("Could not read stdin file: %v", err))
				st.push(false)
				return
			}
			stdin = data
		}

		ctx, cancel := context.WithTimeout(ctx, cfg.timeout)
		defer cancel()

		c := command(ctx, cmd[0], cmd[1:]...)
		c.Dir = cfg.dir
		c.Stdin = bytes.NewReader(stdin)
		if len(cfg.env) > 0 {
			c.Env = append(os.Environ(), cfg.env...)
		}

		var stdout, stderr bytes.Buffer
		c.Stdout = &stdout
		c.Stderr = &stderr

		err := c.Run()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			logCmd(fmt.Sprintf("Command timed out after %s", cfg.timeout))
		}

		st.Logger.LogOutput("Standard output", stdout.String(), cfg.reportStdout)
		st.Logger.LogOutput("Standard error", stderr.String(), cfg.reportStderr)

		if cfg.stdoutFile != "" {
			if werr := os.WriteFile(filepath.Join(cfg.dir, cfg.stdoutFile), stdout.Bytes(), 0o644); werr != nil {
				st.Logger.LogPrivate(fmt.Sprintf("Could not save stdout: %v", werr))
			}
		}

		if cfg.success(err, stdout.String(), stderr.String()) {
			st.push(true)
			return
		}
		if cfg.reportCommand && cfg.reportOutcome {
			st.Logger.Log("Command failed!")
		} else {
			st.Logger.LogPrivate("Command failed!")
		}
		st.push(false)
	}
}

// Build returns a task that compiles the Go package pkg in dir into out.
// The build is killed after BuildTimeout.
func Build(dir, pkg, out string) Task {
	return func(ctx context.Context, st *State) {
		st.Logger.Log(fmt.Sprintf("Building %s", pkg))

		ctx, cancel := context.WithTimeout(ctx, BuildTimeout)
		defer cancel()

		c := command(ctx, "go", "build", "-o", out, pkg)
		c.Dir = dir

		output, err := c.CombinedOutput()
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				st.Logger.Log(fmt.Sprintf("Build timed out after %s", BuildTimeout))
			}
			st.Logger.Log("Build failed!")
			st.Logger.LogOutput("Build output", string(output), true)
			st.push(false)
			return
		}

		st.Logger.Log("Successful build")
		st.Logger.LogOutput("Build output", string(output), false)
		st.push(true)
	}
}

// command is exec.CommandContext with the whole process tree killed on
// cancellation, so children holding the output pipes cannot outlive it
func command(ctx context.Context, name string, args ...string) *exec.Cmd {
	c := exec.CommandContext(ctx, name, args...)
	killProcessGroup(c)
	c.WaitDelay = waitDelay
	return c
}

// Check returns a task that succeeds if every named file exists in dir
func Check(dir string, names ...string) Task {
	return check(dir, false, names)
}

// CheckExe is like Check but also requires the files to be executable
func CheckExe(dir string, names ...string) Task {
	return check(dir, true, names)
}

func check(dir string, exe bool, names []string) Task {
	suffix := ""
	if exe {
		suffix = " and is executable"
	}

	return func(ctx context.Context, st *State) {
		ok := true
		for _, name := range names {
			st.Logger.Log(fmt.Sprintf("Checking that %s exists%s", name, suffix))

			info, err := os.Stat(filepath.Join(dir, name))
			if err != nil || info.IsDir() || (exe && info.Mode()&0o111 == 0) {
				st.Logger.Log(fmt.Sprintf("%s doesn't exist%s", name, strings.Replace(suffix, " and is", ", or is not", 1)))
				ok = false
			}
		}
		st.push(ok)
	}
}
