// Package watch surfaces filesystem staleness for the wave file, signal
// map, and companion ELF after startup. Construction-time immutability is
// preserved elsewhere in this module; this package never triggers a
// reload, it only reports that the inputs on disk have moved out from
// under an already-running server so an operator can relaunch
// deliberately. Adapted from the teacher's fsnotify-backed virtual
// filesystem watcher (see DESIGN.md).
package watch

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// Op mirrors the underlying fsnotify operation bits, narrowed to the ones
// relevant to a read-once input file.
type Op int

const (
	OpWrite Op = 1 << iota
	OpRemove
	OpRename
	OpChmod
)

// Event is one detected change to a watched input path.
type Event struct {
	Path string
	Op   Op
}

// Watcher watches a fixed set of input files for post-startup changes.
type Watcher struct {
	w     *fsnotify.Watcher
	evC   chan Event
	errC  chan error
	close chan struct{}
}

// New watches every path in paths (the wave file, signal map, and ELF).
// Non-existent paths are rejected immediately rather than silently ignored.
func New(paths ...string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: new: %w", err)
	}

	for _, p := range paths {
		if err := w.Add(p); err != nil {
			w.Close()

			return nil, fmt.Errorf("watch: add %s: %w", p, err)
		}
	}

	watcher := &Watcher{
		w:     w,
		evC:   make(chan Event, 32),
		errC:  make(chan error, 1),
		close: make(chan struct{}),
	}

	go watcher.loop()

	return watcher, nil
}

func (w *Watcher) loop() {
	defer close(w.evC)

	for {
		select {
		case ev, ok := <-w.w.Events:
			if !ok {
				return
			}

			if op, ok := translate(ev.Op); ok {
				w.evC <- Event{Path: ev.Name, Op: op}
			}
		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}

			w.errC <- err
		case <-w.close:
			return
		}
	}
}

func translate(op fsnotify.Op) (Op, bool) {
	var out Op

	if op&fsnotify.Write != 0 {
		out |= OpWrite
	}

	if op&fsnotify.Remove != 0 {
		out |= OpRemove
	}

	if op&fsnotify.Rename != 0 {
		out |= OpRename
	}

	if op&fsnotify.Chmod != 0 {
		out |= OpChmod
	}

	return out, out != 0
}

// Events delivers detected changes. Never closed by the Watcher itself
// except as a side effect of Close.
func (w *Watcher) Events() <-chan Event { return w.evC }

// Errors delivers watcher-internal errors (e.g. an inode disappearing
// from under the watch).
func (w *Watcher) Errors() <-chan error { return w.errC }

// Close stops the watcher and releases its OS resources.
func (w *Watcher) Close() error {
	close(w.close)

	return w.w.Close()
}
