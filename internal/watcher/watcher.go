// Package watcher polls a source tree for changes and triggers an
// incremental re-sync when anything moved. Polling with an adaptive
// interval keeps it dependency-free and portable; the hash diff in the
// syncer makes spurious triggers cheap.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/codeatlas-dev/codeatlas/internal/discover"
	"github.com/codeatlas-dev/codeatlas/internal/lang"
)

const (
	baseInterval = 1 * time.Second
	maxInterval  = 60 * time.Second
)

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

// SyncFunc is called when the tree changed since the last poll.
type SyncFunc func(ctx context.Context) error

// Watcher polls one project root for file changes.
type Watcher struct {
	root   string
	reg    *lang.Registry
	opts   *discover.Options
	syncFn SyncFunc

	snapshot map[string]fileSnapshot
	interval time.Duration
}

// New creates a Watcher over root. syncFn runs on every detected change.
func New(root string, reg *lang.Registry, opts *discover.Options, syncFn SyncFunc) *Watcher {
	return &Watcher{root: root, reg: reg, opts: opts, syncFn: syncFn, interval: baseInterval}
}

// Run blocks until ctx is cancelled, polling whenever the adaptive
// interval has elapsed. The first poll only captures a baseline.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(baseInterval)
	defer ticker.Stop()

	next := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if time.Now().Before(next) {
				continue
			}
			w.poll(ctx)
			next = time.Now().Add(w.interval)
		}
	}
}

func (w *Watcher) poll(ctx context.Context) {
	if _, err := os.Stat(w.root); err != nil {
		slog.Warn("watcher.root_gone", "path", w.root)
		w.interval = maxInterval
		return
	}

	snap, err := w.captureSnapshot(ctx)
	if err != nil {
		slog.Warn("watcher.snapshot", "err", err)
		return
	}
	w.interval = pollInterval(len(snap))

	if w.snapshot == nil {
		slog.Debug("watcher.baseline", "files", len(snap))
		w.snapshot = snap
		return
	}
	if snapshotsEqual(w.snapshot, snap) {
		return
	}

	slog.Info("watcher.changed", "files", len(snap))
	if err := w.syncFn(ctx); err != nil {
		// Keep the old snapshot so the next cycle retries.
		slog.Warn("watcher.sync", "err", err)
		return
	}
	w.snapshot = snap
}

// captureSnapshot records mtime+size for every discoverable file.
func (w *Watcher) captureSnapshot(ctx context.Context) (map[string]fileSnapshot, error) {
	files, err := discover.Discover(ctx, w.root, w.reg, w.opts)
	if err != nil {
		return nil, err
	}
	snap := make(map[string]fileSnapshot, len(files))
	for _, f := range files {
		info, statErr := os.Stat(f.Path)
		if statErr != nil {
			continue
		}
		snap[f.RelPath] = fileSnapshot{modTime: info.ModTime(), size: info.Size()}
	}
	return snap, nil
}

func snapshotsEqual(a, b map[string]fileSnapshot) bool {
	if len(a) != len(b) {
		return false
	}
	for path, as := range a {
		bs, ok := b[path]
		if !ok || !as.modTime.Equal(bs.modTime) || as.size != bs.size {
			return false
		}
	}
	return true
}

// pollInterval grows 1s per 500 files on top of the base, capped.
func pollInterval(fileCount int) time.Duration {
	d := baseInterval + time.Duration(fileCount/500)*time.Second
	if d > maxInterval {
		d = maxInterval
	}
	return d
}
