package storage

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"portico/pkg/logging"
)

// Signal is a message delivered over the cross-process broadcast channel.
// There is exactly one message type: logout.
type Signal int

const (
	// SignalLogout means the session sentinel was removed somewhere. Any
	// process observing it must tear down its local session state.
	SignalLogout Signal = iota
)

// Broadcast is the single-purpose cross-process channel built on signal
// tier removal events. It exists so that "removal means logout" stays a
// contract of this type and does not leak into unrelated storage reads.
//
// A process also observes removals it performed itself; handlers must be
// idempotent, which the session store's logout already guarantees.
type Broadcast struct {
	watcher *fsnotify.Watcher
	ch      chan Signal
}

// WatchLogout starts watching the adapter's signal tier for removal of the
// session sentinel.
func WatchLogout(adapter *Adapter) (*Broadcast, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create signal watcher: %w", err)
	}

	if err := watcher.Add(adapter.SignalDir()); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch signal directory: %w", err)
	}

	b := &Broadcast{
		watcher: watcher,
		ch:      make(chan Signal, 1),
	}

	go b.loop()

	return b, nil
}

// C returns the channel logout signals are delivered on. The channel is
// closed when the broadcast is closed.
func (b *Broadcast) C() <-chan Signal {
	return b.ch
}

// Close stops the watcher and closes the signal channel.
func (b *Broadcast) Close() error {
	return b.watcher.Close()
}

func (b *Broadcast) loop() {
	defer close(b.ch)

	for {
		select {
		case event, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if filepath.Base(event.Name) != KeySessionSentinel {
				continue
			}
			logging.Debug("Storage", "Session sentinel removed, broadcasting logout")
			select {
			case b.ch <- SignalLogout:
			default:
				// A pending, undelivered logout signal already says everything.
			}
		case err, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
			logging.Warn("Storage", "Signal watcher error: %v", err)
		}
	}
}
