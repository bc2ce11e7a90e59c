package filenotify

import (
	"sync"

	"github.com/fsnotify/fsnotify"
)

// EventWatcher is an implementation of FileWatcher using fsnotify
type EventWatcher struct {
	watcher   *fsnotify.Watcher
	events    chan fsnotify.Event
	errors    chan error
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewEventWatcher returns a new EventWatcher
func NewEventWatcher() (FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &EventWatcher{
		watcher: watcher,
		events:  make(chan fsnotify.Event),
		errors:  make(chan error),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	go w.watch()

	return w, nil
}

// Events returns the event channel
func (w *EventWatcher) Events() <-chan fsnotify.Event {
	return w.events
}

// Errors returns the error channel
func (w *EventWatcher) Errors() <-chan error {
	return w.errors
}

// Add adds a directory to the watch list
func (w *EventWatcher) Add(name string) error {
	return w.watcher.Add(name)
}

// Remove removes a directory from the watch list
func (w *EventWatcher) Remove(name string) error {
	return w.watcher.Remove(name)
}

// Close closes the watcher. The event and error channels are closed once the
// forwarding goroutine has exited.
func (w *EventWatcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.stop)
		err = w.watcher.Close()
		<-w.done
		close(w.events)
		close(w.errors)
	})
	return err
}

// watch forwards events from the fsnotify watcher until stopped
func (w *EventWatcher) watch() {
	defer close(w.done)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			select {
			case w.events <- event:
			case <-w.stop:
				return
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			case <-w.stop:
				return
			}
		case <-w.stop:
			return
		}
	}
}
