package watcher

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bond-kaneko/go-calculator/filenotify"
	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFileWatcher struct {
	events chan fsnotify.Event
	errors chan error

	mu    sync.Mutex
	added []string
}

func newFakeFileWatcher() *fakeFileWatcher {
	return &fakeFileWatcher{
		events: make(chan fsnotify.Event),
		errors: make(chan error),
	}
}

func (f *fakeFileWatcher) Events() <-chan fsnotify.Event { return f.events }
func (f *fakeFileWatcher) Errors() <-chan error          { return f.errors }
func (f *fakeFileWatcher) Remove(name string) error      { return nil }
func (f *fakeFileWatcher) Close() error                  { return nil }

func (f *fakeFileWatcher) Add(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, name)
	return nil
}

// syncBuffer is written by the live writer's goroutine
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestWatchDebouncesChanges(t *testing.T) {
	dir := t.TempDir()
	fw := newFakeFileWatcher()
	runs := make(chan []string, 4)

	w, err := newWatcher(dir, fw, func(ctx context.Context, out io.Writer, changed []string) error {
		runs <- changed
		return nil
	})
	require.NoError(t, err)

	var out syncBuffer
	w.SetOutput(&out)
	w.SetDebounceDelay(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()

	select {
	case changed := <-runs:
		assert.Empty(t, changed, "initial run has no changed files")
	case <-time.After(30 * time.Second):
		t.Fatal("no initial run")
	}

	a := filepath.Join(dir, "a.go")
	b := filepath.Join(dir, "b.go")
	fw.events <- fsnotify.Event{Name: a, Op: fsnotify.Write}
	fw.events <- fsnotify.Event{Name: filepath.Join(dir, "notes.txt"), Op: fsnotify.Write}
	fw.events <- fsnotify.Event{Name: a, Op: fsnotify.Chmod}
	fw.events <- fsnotify.Event{Name: b, Op: fsnotify.Create}
	fw.events <- fsnotify.Event{Name: a, Op: fsnotify.Write}

	select {
	case changed := <-runs:
		assert.Equal(t, []string{a, b}, changed)
	case <-time.After(5 * time.Second):
		t.Fatal("no run after changes")
	}

	cancel()
	require.NoError(t, <-done)
	assert.Empty(t, runs, "changes should trigger a single run")
	assert.Equal(t, a, w.LastChangedFile())
	assert.Empty(t, w.ChangedFiles())
	assert.Contains(t, fw.added, dir)
	assert.Contains(t, out.String(), "Watching")
}

func TestTriggerReportsFailure(t *testing.T) {
	fw := newFakeFileWatcher()
	boom := errors.New("2 of 9 tests failed")

	w, err := newWatcher(t.TempDir(), fw, func(ctx context.Context, out io.Writer, changed []string) error {
		return boom
	})
	require.NoError(t, err)

	var out syncBuffer
	w.SetOutput(&out)
	w.SetBell(false)
	w.AddChangedFile("/tmp/x/calculator.go")

	require.ErrorIs(t, w.Trigger(context.Background()), boom)
	assert.Contains(t, out.String(), "Files changed: calculator.go")
	assert.Contains(t, out.String(), "FAILED: 2 of 9 tests failed")
	assert.NotContains(t, out.String(), "\a")
	assert.Empty(t, w.ChangedFiles())
}

func TestDirsWithoutModule(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "pkg", "a.go"), "package pkg\n")
	writeFile(t, filepath.Join(dir, ".git", "HEAD"), "ref\n")
	writeFile(t, filepath.Join(dir, "_examples", "x.go"), "package x\n")

	w, err := newWatcher(dir, newFakeFileWatcher(), nil)
	require.NoError(t, err)

	dirs, err := w.Dirs()
	require.NoError(t, err)
	assert.Equal(t, []string{dir, filepath.Join(dir, "pkg")}, dirs)
}

func TestAffectedPackages(t *testing.T) {
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not available")
	}

	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	writeFile(t, filepath.Join(dir, "go.mod"), "module example.com/calc\n\ngo 1.21\n")
	writeFile(t, filepath.Join(dir, "calculator", "calculator.go"), "package calculator\n\nfunc Add(a, b int) int { return a + b }\n")
	writeFile(t, filepath.Join(dir, "suite", "suite.go"),
		"package suite\n\nimport \"example.com/calc/calculator\"\n\nvar Sum = calculator.Add(1, 2)\n")
	writeFile(t, filepath.Join(dir, "cmd", "run", "main.go"),
		"package main\n\nimport \"example.com/calc/suite\"\n\nfunc main() { _ = suite.Sum }\n")
	writeFile(t, filepath.Join(dir, "util", "util.go"), "package util\n")

	w, err := newWatcher(dir, newFakeFileWatcher(), nil)
	require.NoError(t, err)

	dirs, err := w.Dirs()
	require.NoError(t, err)
	assert.Equal(t, []string{
		dir,
		filepath.Join(dir, "calculator"),
		filepath.Join(dir, "cmd", "run"),
		filepath.Join(dir, "suite"),
		filepath.Join(dir, "util"),
	}, dirs)

	assert.Equal(t, []string{
		"example.com/calc/calculator",
		"example.com/calc/cmd/run",
		"example.com/calc/suite",
	}, w.AffectedPackages(filepath.Join(dir, "calculator", "calculator.go")))
	assert.Equal(t, []string{"example.com/calc/util"}, w.AffectedPackages(filepath.Join(dir, "util", "util.go")))
	assert.Nil(t, w.AffectedPackages(filepath.Join(dir, "elsewhere", "x.go")))
}

func TestNewWithPolling(t *testing.T) {
	w, err := New(t.TempDir(), nil, filenotify.WithPolling(), filenotify.WithPollInterval(time.Second))
	require.NoError(t, err)
	defer w.Stop()

	assert.IsType(t, &filenotify.PollingWatcher{}, w.watcher)
}
