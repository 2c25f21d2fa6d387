// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"
)

const defaultReconcileInterval = 200 * time.Millisecond

// Watcher signals when any configuration file or directory changes. Change
// notifications are coalesced: a reader that falls behind sees one pending
// signal, not one per event.
type Watcher struct {
	fs       *fsnotify.Watcher
	logger   hclog.Logger
	interval time.Duration

	// modTimes is only touched by Run once the watcher is built.
	modTimes map[string]time.Time

	changed chan struct{}
}

// NewWatcher starts watching paths. Symbolic links are rejected because the
// underlying notifications would follow the link target.
func NewWatcher(paths []string, logger hclog.Logger) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fs:       fs,
		logger:   logger.Named("config-watcher"),
		interval: defaultReconcileInterval,
		modTimes: make(map[string]time.Time, len(paths)),
		changed:  make(chan struct{}, 1),
	}
	for _, p := range paths {
		if err := w.add(p); err != nil {
			fs.Close()
			return nil, fmt.Errorf("error watching %q: %w", p, err)
		}
	}
	return w, nil
}

// Changed returns the channel that receives a value after a change.
func (w *Watcher) Changed() <-chan struct{} {
	return w.changed
}

func (w *Watcher) add(path string) error {
	fi, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("symbolic links are not supported")
	}
	path = filepath.Clean(path)
	if err := w.fs.Add(path); err != nil {
		return err
	}
	w.modTimes[path] = fi.ModTime()
	return nil
}

// Run processes notifications until ctx is done and then releases the
// underlying watcher. It has the signature of a routine so it can be
// started by a routine manager.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return fmt.Errorf("event channel closed")
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !w.watched(filepath.Clean(event.Name)) {
				continue
			}
			w.logger.Trace("configuration changed", "file", event.Name, "op", event.Op)
			w.notify()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return fmt.Errorf("error channel closed")
			}
			w.logger.Warn("watch error", "error", err)

		case <-ticker.C:
			w.reconcile()
		}
	}
}

// watched reports whether name is a watched path or sits directly in a
// watched directory.
func (w *Watcher) watched(name string) bool {
	if _, ok := w.modTimes[name]; ok {
		return true
	}
	_, ok := w.modTimes[filepath.Dir(name)]
	return ok
}

// reconcile re-adds paths that editors replaced by rename and catches
// changes whose events were missed.
func (w *Watcher) reconcile() {
	for path, last := range w.modTimes {
		fi, err := os.Stat(path)
		if err != nil {
			continue
		}
		if err := w.fs.Add(path); err != nil {
			w.logger.Debug("failed to re-add path", "path", path, "error", err)
			continue
		}
		if !fi.ModTime().Equal(last) {
			w.modTimes[path] = fi.ModTime()
			w.notify()
		}
	}
}

func (w *Watcher) notify() {
	select {
	case w.changed <- struct{}{}:
	default:
	}
}
