// Package watcher reruns a grading or test command whenever Go sources of
// the watched module change.
package watcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bond-kaneko/go-calculator/filenotify"
	"github.com/fsnotify/fsnotify"
	"github.com/gosuri/uilive"
	"golang.org/x/tools/go/packages"
)

// RunFunc is invoked after changes settle. changed lists the files modified
// since the previous run, empty for the initial run.
type RunFunc func(ctx context.Context, w io.Writer, changed []string) error

// Watcher watches the directories of a module's packages and calls a RunFunc
// on changes
type Watcher struct {
	rootDir       string
	patterns      []string
	debounceDelay time.Duration
	fileFilter    func(string) bool
	watcher       filenotify.FileWatcher
	writer        *uilive.Writer
	run           RunFunc
	bell          bool

	mu              sync.Mutex
	changedFiles    map[string]bool
	lastChangedFile string
	// packageDirs maps a package directory to its import path
	packageDirs map[string]string
	// importers maps an import path to the module packages importing it
	importers map[string][]string
}

// New creates a watcher for the module rooted at rootDir, or the current
// directory if rootDir is empty. opts select the file notification backend.
func New(rootDir string, run RunFunc, opts ...filenotify.Option) (*Watcher, error) {
	fw, err := filenotify.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize watcher: %w", err)
	}
	return newWatcher(rootDir, fw, run)
}

func newWatcher(rootDir string, fw filenotify.FileWatcher, run RunFunc) (*Watcher, error) {
	if rootDir == "" {
		var err error
		rootDir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
	}

	rootDir, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", rootDir, err)
	}

	writer := uilive.New()
	writer.RefreshInterval = time.Millisecond * 100

	return &Watcher{
		rootDir:       rootDir,
		patterns:      []string{"./..."},
		debounceDelay: 500 * time.Millisecond,
		fileFilter: func(path string) bool {
			return filepath.Ext(path) == ".go"
		},
		watcher:      fw,
		writer:       writer,
		run:          run,
		bell:         true,
		changedFiles: make(map[string]bool),
		packageDirs:  make(map[string]string),
		importers:    make(map[string][]string),
	}, nil
}

// SetDebounceDelay sets the delay between the last change and the run
func (w *Watcher) SetDebounceDelay(delay time.Duration) {
	w.debounceDelay = delay
}

// SetFileFilter sets a custom file filter function
func (w *Watcher) SetFileFilter(filter func(string) bool) {
	w.fileFilter = filter
}

// SetPatterns sets the package patterns whose directories are watched
func (w *Watcher) SetPatterns(patterns ...string) {
	w.patterns = patterns
}

// SetOutput redirects the live status output, stdout by default
func (w *Watcher) SetOutput(out io.Writer) {
	w.writer.Out = out
}

// SetBell enables the terminal bell on failed runs
func (w *Watcher) SetBell(enabled bool) {
	w.bell = enabled
}

// Dirs loads the watched packages and returns their directories, sorted.
// When the packages cannot be loaded, every non-hidden directory under the
// root is returned instead.
func (w *Watcher) Dirs() ([]string, error) {
	dirs, err := w.loadPackageDirs()
	if err == nil && len(dirs) > 0 {
		return dirs, nil
	}

	dirs = nil
	walkErr := filepath.WalkDir(w.rootDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.rootDir && (strings.HasPrefix(d.Name(), ".") || strings.HasPrefix(d.Name(), "_")) {
			return filepath.SkipDir
		}
		dirs = append(dirs, path)
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("error listing directories: %w", walkErr)
	}
	return dirs, nil
}

// loadPackageDirs resolves the patterns with go/packages and records the
// import graph between the main module's packages
func (w *Watcher) loadPackageDirs() ([]string, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName |
			packages.NeedFiles |
			packages.NeedImports |
			packages.NeedModule,
		Dir: w.rootDir,
	}

	pkgs, err := packages.Load(cfg, w.patterns...)
	if err != nil {
		return nil, fmt.Errorf("loading packages: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.packageDirs = make(map[string]string)
	importers := make(map[string]map[string]bool)

	for _, pkg := range pkgs {
		if pkg.Module == nil || !pkg.Module.Main {
			continue
		}

		files := pkg.GoFiles
		if len(files) == 0 {
			files = pkg.OtherFiles
		}
		if len(files) == 0 {
			continue
		}
		w.packageDirs[filepath.Dir(files[0])] = pkg.PkgPath

		for path := range pkg.Imports {
			if importers[path] == nil {
				importers[path] = make(map[string]bool)
			}
			if path != pkg.PkgPath {
				importers[path][pkg.PkgPath] = true
			}
		}
	}

	w.importers = make(map[string][]string, len(importers))
	for path, set := range importers {
		w.importers[path] = sortedKeys(set)
	}

	if len(w.packageDirs) == 0 {
		return nil, nil
	}

	dirs := make([]string, 0, len(w.packageDirs)+1)
	seen := map[string]bool{w.rootDir: true}
	dirs = append(dirs, w.rootDir)
	for dir := range w.packageDirs {
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

// AffectedPackages returns the import path of the package containing
// changedFile followed by every module package that imports it, directly or
// transitively
func (w *Watcher) AffectedPackages(changedFile string) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	pkg, ok := w.packageDirs[filepath.Dir(changedFile)]
	if !ok {
		return nil
	}

	affected := []string{pkg}
	seen := map[string]bool{pkg: true}
	for i := 0; i < len(affected); i++ {
		for _, importer := range w.importers[affected[i]] {
			if !seen[importer] {
				seen[importer] = true
				affected = append(affected, importer)
			}
		}
	}
	sort.Strings(affected[1:])
	return affected
}

// Watch runs once, then again after every batch of matching changes, until
// ctx is cancelled
func (w *Watcher) Watch(ctx context.Context) error {
	dirs, err := w.Dirs()
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("error setting up directory watch: %w", err)
		}
	}

	fmt.Fprintf(w.writer.Out, "Watching %d directories for changes. Press Ctrl+C to exit.\n", len(dirs))

	w.writer.Start()
	defer w.writer.Stop()

	w.Trigger(ctx)

	var (
		debounceTimer *time.Timer
		trigger       = make(chan struct{}, 1)
	)
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events():
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !w.fileFilter(event.Name) {
				continue
			}

			w.AddChangedFile(event.Name)

			// Debounce to run only once for a burst of changes
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounceDelay, func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})

		case <-trigger:
			w.Trigger(ctx)

		case err, ok := <-w.watcher.Errors():
			if !ok {
				return nil
			}
			fmt.Fprintf(w.writer, "Watch error: %v\n", err)
			w.writer.Flush()
		}
	}
}

// Trigger runs the RunFunc with the changed files collected so far and
// reports the outcome
func (w *Watcher) Trigger(ctx context.Context) error {
	changed := w.ChangedFiles()
	w.ClearChangedFiles()

	if len(changed) > 0 {
		names := make([]string, 0, len(changed))
		affected := make(map[string]bool)
		for _, file := range changed {
			names = append(names, filepath.Base(file))
			for _, pkg := range w.AffectedPackages(file) {
				affected[pkg] = true
			}
		}
		fmt.Fprintf(w.writer, "Files changed: %s\n", strings.Join(names, ", "))
		if len(affected) > 0 {
			fmt.Fprintf(w.writer, "Affected packages: %s\n", strings.Join(sortedKeys(affected), ", "))
		}
	}
	fmt.Fprintf(w.writer, "Running...\n")
	w.writer.Flush()

	err := w.run(ctx, w.writer, changed)
	if err != nil {
		fmt.Fprintf(w.writer, "FAILED: %v\n", err)
		w.writer.Flush()
		if w.bell {
			fmt.Fprint(w.writer.Out, "\a")
		}
		return err
	}

	fmt.Fprintf(w.writer, "OK (%s)\n", time.Now().Format(time.TimeOnly))
	w.writer.Flush()
	return nil
}

// Stop stops watching
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

// AddChangedFile marks a file as changed
func (w *Watcher) AddChangedFile(file string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.changedFiles[file] = true
	w.lastChangedFile = file
}

// ChangedFiles returns the files changed since the last run, sorted
func (w *Watcher) ChangedFiles() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return sortedKeys(w.changedFiles)
}

// LastChangedFile returns the most recently changed file
func (w *Watcher) LastChangedFile() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastChangedFile
}

// ClearChangedFiles clears the list of changed files
func (w *Watcher) ClearChangedFiles() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.changedFiles = make(map[string]bool)
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
