package config

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/cognipilot/dendrite/internal/logging"
)

// ReloadEvent describes one accepted config reload.
type ReloadEvent struct {
	Config *Config
	Diff   string
}

// Watcher watches a config file for writes and decodes a new Config on
// each change, reporting a unified diff of the raw config file text so
// operators can see exactly what changed.
type Watcher struct {
	path    string
	logger  *logging.Logger
	watcher *fsnotify.Watcher
	events  chan ReloadEvent
	lastRaw []byte
}

// NewWatcher starts watching path. Call Close when done.
func NewWatcher(path string, logger *logging.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logging.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, err
	}

	raw, _ := readRaw(path)
	w := &Watcher{
		path:    path,
		logger:  logger.WithComponent("config"),
		watcher: fw,
		events:  make(chan ReloadEvent, 1),
		lastRaw: raw,
	}
	return w, nil
}

// Events returns the channel reload events are published on.
func (w *Watcher) Events() <-chan ReloadEvent {
	return w.events
}

// Close stops the underlying filesystem watch.
func (w *Watcher) Close() error {
	close(w.events)
	return w.watcher.Close()
}

// Run processes filesystem events until ctx is done. Editors that
// replace the file (write-new-then-rename) are handled by re-adding the
// watch whenever the original path is removed.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				if ev.Op&fsnotify.Remove != 0 || ev.Op&fsnotify.Rename != 0 {
					w.watcher.Add(w.path)
				}
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watch error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	raw, err := readRaw(w.path)
	if err != nil {
		w.logger.Warn("config reload: read failed", "error", err)
		return
	}

	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("config reload: decode failed, keeping prior config", "error", err)
		return
	}

	diff := unifiedDiff(w.lastRaw, raw)
	w.lastRaw = raw

	if diff == "" {
		return
	}
	w.logger.Info("config reloaded", "path", w.path)
	select {
	case w.events <- ReloadEvent{Config: cfg, Diff: diff}:
	default:
		w.logger.Warn("config reload event dropped: channel full")
	}
}

func unifiedDiff(before, after []byte) string {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before)),
		B:        difflib.SplitLines(string(after)),
		FromFile: "before",
		ToFile:   "after",
		Context:  2,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return ""
	}
	return text
}
