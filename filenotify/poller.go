package filenotify

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrNotWatched is returned by Remove for a name that was never added
var ErrNotWatched = errors.New("directory is not being watched")

// PollingWatcher is an implementation of FileWatcher based on polling.
// Each watched directory is listed on every tick and its entries compared
// with the previous listing.
type PollingWatcher struct {
	// interval is the time between polls
	interval time.Duration
	// dirs maps each watched directory to the last seen state of its entries
	dirs map[string]map[string]fileInfo
	// mutex guards dirs
	mutex  sync.Mutex
	events chan fsnotify.Event
	errors chan error
	stop   chan struct{}
	// done is closed when polling has stopped
	done      chan struct{}
	closeOnce sync.Once
}

type fileInfo struct {
	ModTime time.Time
	Size    int64
}

// NewPollingWatcher returns a new polling watcher with DefaultPollInterval
func NewPollingWatcher() FileWatcher {
	return NewPollingWatcherWithInterval(DefaultPollInterval)
}

// NewPollingWatcherWithInterval returns a new polling watcher with the specified interval
func NewPollingWatcherWithInterval(interval time.Duration) FileWatcher {
	w := &PollingWatcher{
		interval: interval,
		dirs:     make(map[string]map[string]fileInfo),
		events:   make(chan fsnotify.Event),
		errors:   make(chan error),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	go w.poll()
	return w
}

// Add adds a directory to the watch list
func (w *PollingWatcher) Add(name string) error {
	entries, err := list(name)
	if err != nil {
		return err
	}

	w.mutex.Lock()
	w.dirs[name] = entries
	w.mutex.Unlock()
	return nil
}

// Remove removes a directory from the watch list
func (w *PollingWatcher) Remove(name string) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if _, exists := w.dirs[name]; !exists {
		return ErrNotWatched
	}
	delete(w.dirs, name)
	return nil
}

// Events returns the event channel
func (w *PollingWatcher) Events() <-chan fsnotify.Event {
	return w.events
}

// Errors returns the error channel
func (w *PollingWatcher) Errors() <-chan error {
	return w.errors
}

// Close stops the polling watcher
func (w *PollingWatcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.stop)
		<-w.done
		close(w.events)
		close(w.errors)
	})
	return nil
}

// poll checks for changes at the configured interval
func (w *PollingWatcher) poll() {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			events, errs := w.checkDirs()
			for _, event := range events {
				select {
				case w.events <- event:
				case <-w.stop:
					return
				}
			}
			for _, err := range errs {
				select {
				case w.errors <- err:
				case <-w.stop:
					return
				}
			}
		case <-w.stop:
			return
		}
	}
}

// checkDirs diffs every watched directory against its last listing.
// Events are returned rather than sent so that Add and Remove never block on
// a slow consumer.
func (w *PollingWatcher) checkDirs() ([]fsnotify.Event, []error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	var events []fsnotify.Event
	var errs []error

	for dir, old := range w.dirs {
		current, err := list(dir)
		if err != nil {
			if os.IsNotExist(err) {
				events = append(events, fsnotify.Event{Name: dir, Op: fsnotify.Remove})
				delete(w.dirs, dir)
			} else {
				errs = append(errs, err)
			}
			continue
		}

		for name, info := range current {
			prev, seen := old[name]
			switch {
			case !seen:
				events = append(events, fsnotify.Event{Name: name, Op: fsnotify.Create})
			case !info.ModTime.Equal(prev.ModTime) || info.Size != prev.Size:
				events = append(events, fsnotify.Event{Name: name, Op: fsnotify.Write})
			}
		}
		for name := range old {
			if _, ok := current[name]; !ok {
				events = append(events, fsnotify.Event{Name: name, Op: fsnotify.Remove})
			}
		}

		w.dirs[dir] = current
	}

	return events, errs
}

// list returns the regular files directly inside dir keyed by path
func list(dir string) (map[string]fileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	files := make(map[string]fileInfo, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files[filepath.Join(dir, entry.Name())] = fileInfo{
			ModTime: info.ModTime(),
			Size:    info.Size(),
		}
	}
	return files, nil
}
