package grader

import (
	"io"
	"log"
	"strings"
	"sync"
)

// Logger collects diagnostics produced while a plan runs.
//
// Private messages are written immediately to the underlying writer and are
// meant for instructors only. Public messages are also written there, and are
// queued until the next test result is recorded, which attaches them as the
// student visible output of that test.
type Logger struct {
	out  *log.Logger
	mu   sync.Mutex
	msgs []string
}

// NewLogger creates a logger writing private output to w
func NewLogger(w io.Writer) *Logger {
	return &Logger{
		out: log.New(w, "", log.LstdFlags|log.LUTC),
	}
}

// LogPrivate writes msg to the private log only
func (l *Logger) LogPrivate(msg string) {
	l.out.Println(msg)
}

// Log writes msg to the private log and queues it for the next test result
func (l *Logger) Log(msg string) {
	l.LogPrivate(msg)

	l.mu.Lock()
	l.msgs = append(l.msgs, strings.ToValidUTF8(msg, "�"))
	l.mu.Unlock()
}

// LogOutput logs captured command output line by line under a kind heading,
// e.g. "Standard output"
func (l *Logger) LogOutput(kind, output string, public bool) {
	logf := l.LogPrivate
	if public {
		logf = l.Log
	}

	logf(kind + ":")
	for _, line := range strings.Split(strings.TrimRight(output, "\n"), "\n") {
		if line == "" {
			continue
		}
		logf(line)
	}
}

// Messages returns a copy of the queued public messages
func (l *Logger) Messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]string, len(l.msgs))
	copy(out, l.msgs)
	return out
}

// Clear drops the queued public messages
func (l *Logger) Clear() {
	l.mu.Lock()
	l.msgs = nil
	l.mu.Unlock()
}
