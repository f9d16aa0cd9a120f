// Package syncer keeps a project graph in step with its source tree.
// Change detection is content-hash based: every built file's hash is
// stored, and a sync rebuilds only files whose hash moved. An unchanged
// hash means no rebuild, which is also what keeps CALLS counts stable
// across no-op syncs.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/zeebo/xxh3"

	"github.com/codeatlas-dev/codeatlas/internal/builder"
	"github.com/codeatlas-dev/codeatlas/internal/lang"
	"github.com/codeatlas-dev/codeatlas/internal/query"
	"github.com/codeatlas-dev/codeatlas/internal/store"
)

// Syncer drives incremental rebuilds of one project graph.
type Syncer struct {
	store   *store.Store
	builder *builder.Builder
	queries *query.Service
	reg     *lang.Registry
	graphID string
}

// New creates a Syncer for a project graph.
func New(s *store.Store, reg *lang.Registry, graphID string) *Syncer {
	return &Syncer{
		store:   s,
		builder: builder.New(s, graphID),
		queries: query.New(s, graphID),
		reg:     reg,
		graphID: graphID,
	}
}

// HashContent returns the content hash stored per file.
func HashContent(data []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(data))
}

// Diff partitions a file set against the stored hashes.
type Diff struct {
	Added     []string
	Changed   []string
	Deleted   []string
	Unchanged []string
}

// Diff compares the current file set against the hashes stored by the
// last sync. Paths only in the stored set are deleted; only in the
// current set, added; hash-mismatched, changed.
func (s *Syncer) Diff(ctx context.Context, current map[string][]byte) (*Diff, error) {
	stored, err := s.store.GetFileHashes(ctx, s.graphID)
	if err != nil {
		return nil, fmt.Errorf("load hashes: %w", err)
	}

	d := &Diff{}
	for path, content := range current {
		oldHash, ok := stored[path]
		switch {
		case !ok:
			d.Added = append(d.Added, path)
		case oldHash != HashContent(content):
			d.Changed = append(d.Changed, path)
		default:
			d.Unchanged = append(d.Unchanged, path)
		}
	}
	for path := range stored {
		if _, ok := current[path]; !ok {
			d.Deleted = append(d.Deleted, path)
		}
	}
	sort.Strings(d.Added)
	sort.Strings(d.Changed)
	sort.Strings(d.Deleted)
	sort.Strings(d.Unchanged)
	return d, nil
}

// UpdateStats reports what one sync did.
type UpdateStats struct {
	Added      int
	Changed    int
	Deleted    int
	Dependents int
	Unchanged  int
	Failed     int
	Build      builder.Stats
}

// Update syncs the graph to the current file set. Added and changed
// files are rebuilt and their hashes stored; deleted files lose their
// subgraph, File node and hash. With includeDependents, files whose
// functions call into (or use variables of) the changed files are
// rebuilt too, so edges pointing at changed entities stay consistent.
//
// A file that fails to parse or build is skipped and keeps its old
// hash, so the next sync retries it; one bad file never aborts the run.
func (s *Syncer) Update(ctx context.Context, current map[string][]byte, includeDependents bool) (*UpdateStats, error) {
	d, err := s.Diff(ctx, current)
	if err != nil {
		return nil, err
	}
	stats := &UpdateStats{
		Added:     len(d.Added),
		Changed:   len(d.Changed),
		Deleted:   len(d.Deleted),
		Unchanged: len(d.Unchanged),
	}

	rebuild := append(append([]string{}, d.Added...), d.Changed...)

	if includeDependents && len(rebuild) > 0 {
		dependents, err := s.queries.DependentFiles(ctx, rebuild)
		if err != nil {
			return stats, fmt.Errorf("dependents: %w", err)
		}
		for _, dep := range dependents {
			if _, ok := current[dep]; !ok {
				// Dependent not in the supplied set; its own diff entry
				// (deleted) already covers it.
				continue
			}
			rebuild = append(rebuild, dep)
			stats.Dependents++
		}
	}

	for _, path := range d.Deleted {
		if err := s.store.WithTransaction(ctx, func(tx *store.Store) error {
			if err := tx.DeleteNodesByFile(ctx, s.graphID, path); err != nil {
				return err
			}
			return tx.DeleteFileHash(ctx, s.graphID, path)
		}); err != nil {
			return stats, fmt.Errorf("delete %s: %w", path, err)
		}
		slog.Info("syncer.file.deleted", "path", path)
	}

	sources := make(map[string][]byte, len(rebuild))
	for _, path := range rebuild {
		sources[path] = current[path]
	}
	parsed, parseFailed, err := builder.ParseAll(ctx, s.reg, sources)
	if err != nil {
		return stats, err
	}
	stats.Failed += parseFailed

	for _, pf := range parsed {
		fileStats, err := s.builder.ProcessFile(ctx, pf)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			slog.Error("syncer.file.failed", "path", pf.Path, "err", err)
			stats.Failed++
			continue
		}
		stats.Build.Add(fileStats)
		if err := s.store.UpsertFileHash(ctx, s.graphID, pf.Path, HashContent(current[pf.Path])); err != nil {
			return stats, fmt.Errorf("store hash %s: %w", pf.Path, err)
		}
	}

	s.queries.ResetCache()
	slog.Info("syncer.done",
		"added", stats.Added, "changed", stats.Changed,
		"deleted", stats.Deleted, "dependents", stats.Dependents,
		"failed", stats.Failed)
	return stats, nil
}
