// Package filenotify watches directories for file changes.
// It abstracts fsnotify and provides a poll-based notifier for file systems
// fsnotify does not support, behind one interface so either can be used.
package filenotify

import (
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher is an interface for implementing file notification watchers
type FileWatcher interface {
	// Events returns the channel for watching events
	Events() <-chan fsnotify.Event
	// Errors returns the channel for watching errors
	Errors() <-chan error
	// Add starts watching the named directory and the files directly in it
	Add(name string) error
	// Remove stops watching the named directory
	Remove(name string) error
	// Close stops watching and closes the channels
	Close() error
}

// DefaultPollInterval is used by the polling watcher unless overridden
const DefaultPollInterval = 200 * time.Millisecond

type options struct {
	forcePolling bool
	pollInterval time.Duration
}

// Option configures New
type Option func(*options)

// WithPolling always uses the polling watcher, for file systems where
// fs events are unreliable (network mounts, some containers)
func WithPolling() Option {
	return func(o *options) { o.forcePolling = true }
}

// WithPollInterval sets the interval of the polling watcher, whether chosen
// explicitly or as the fallback
func WithPollInterval(interval time.Duration) Option {
	return func(o *options) {
		if interval > 0 {
			o.pollInterval = interval
		}
	}
}

// New returns an fs-event watcher, falling back to the poller if fs events
// are unavailable or polling was requested
func New(opts ...Option) (FileWatcher, error) {
	o := options{pollInterval: DefaultPollInterval}
	for _, opt := range opts {
		opt(&o)
	}

	if o.forcePolling {
		return NewPollingWatcherWithInterval(o.pollInterval), nil
	}

	watcher, err := NewEventWatcher()
	if err != nil {
		return NewPollingWatcherWithInterval(o.pollInterval), nil
	}
	return watcher, nil
}
