// Package builder turns parsed files into idempotent graph writes.
//
// Each file is rebuilt with a delete-then-upsert pipeline: the file's old
// subgraph is dropped, then nodes and relationships are re-created in
// staged transaction groups. Shared nodes (Project, Module stubs,
// superclass placeholders, ExceptionTypes) are merged and never deleted,
// since other files may reference them.
//
// Each pipeline step commits in its own transaction. A failing step rolls
// back that step only; groups committed earlier for the same file stay
// committed, so a mid-pipeline failure can leave a partially rebuilt
// subgraph until the file is reprocessed. Callers retry the whole file,
// not individual steps.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codeatlas-dev/codeatlas/internal/entity"
	"github.com/codeatlas-dev/codeatlas/internal/schema"
	"github.com/codeatlas-dev/codeatlas/internal/store"
)

// Builder writes one project graph identified by graphID.
type Builder struct {
	store   *store.Store
	graphID string
}

// New creates a Builder bound to a store and a project graph id.
func New(s *store.Store, graphID string) *Builder {
	return &Builder{store: s, graphID: graphID}
}

// Stats counts what one or more ProcessFile runs wrote and dropped.
// Dropped references are not errors: call and variable targets outside
// the indexed project are expected.
type Stats struct {
	Files         int
	FilesFailed   int
	Nodes         int
	Edges         int
	CallsResolved int
	CallsDropped  int
	RefsResolved  int
	RefsDropped   int
}

func (s *Stats) Add(o *Stats) {
	s.Files += o.Files
	s.FilesFailed += o.FilesFailed
	s.Nodes += o.Nodes
	s.Edges += o.Edges
	s.CallsResolved += o.CallsResolved
	s.CallsDropped += o.CallsDropped
	s.RefsResolved += o.RefsResolved
	s.RefsDropped += o.RefsDropped
}

// ProcessFile rebuilds one file's subgraph from its parsed model.
func (b *Builder) ProcessFile(ctx context.Context, pf *entity.ParsedFile) (*Stats, error) {
	stats := &Stats{Files: 1}

	// Step 1: drop the file's previous subgraph. Nodes with an empty
	// file_path (project, modules, placeholders, exceptions) survive;
	// edges touching deleted nodes cascade.
	if err := b.store.WithTransaction(ctx, func(tx *store.Store) error {
		return tx.DeleteNodesByFile(ctx, b.graphID, pf.Path)
	}); err != nil {
		return stats, fmt.Errorf("delete subgraph %s: %w", pf.Path, err)
	}

	// Step 2: project and file nodes.
	var fileID int64
	if err := b.store.WithTransaction(ctx, func(tx *store.Store) error {
		var err error
		fileID, err = b.upsertFileAndProject(ctx, tx, pf, stats)
		return err
	}); err != nil {
		return stats, fmt.Errorf("upsert file %s: %w", pf.Path, err)
	}

	// Step 3: imports.
	if err := b.store.WithTransaction(ctx, func(tx *store.Store) error {
		return b.upsertImports(ctx, tx, pf, fileID, stats)
	}); err != nil {
		return stats, fmt.Errorf("upsert imports %s: %w", pf.Path, err)
	}

	// Step 4: entities and ownership edges.
	var ids map[string]int64
	if err := b.store.WithTransaction(ctx, func(tx *store.Store) error {
		var err error
		ids, err = b.upsertEntities(ctx, tx, pf, fileID, stats)
		return err
	}); err != nil {
		return stats, fmt.Errorf("upsert entities %s: %w", pf.Path, err)
	}

	// Step 5: variable use/modify and object-creation edges.
	if err := b.store.WithTransaction(ctx, func(tx *store.Store) error {
		return b.upsertReferences(ctx, tx, pf, ids, stats)
	}); err != nil {
		return stats, fmt.Errorf("upsert references %s: %w", pf.Path, err)
	}

	// Step 6: call edges via the resolver chain.
	if err := b.store.WithTransaction(ctx, func(tx *store.Store) error {
		return b.upsertCalls(ctx, tx, pf, ids, stats)
	}); err != nil {
		return stats, fmt.Errorf("upsert calls %s: %w", pf.Path, err)
	}

	slog.Debug("builder.file.done",
		"path", pf.Path,
		"nodes", stats.Nodes,
		"edges", stats.Edges,
		"calls_dropped", stats.CallsDropped)
	return stats, nil
}

func (b *Builder) upsertFileAndProject(ctx context.Context, tx *store.Store, pf *entity.ParsedFile, stats *Stats) (int64, error) {
	projectID, err := tx.MergeNode(ctx, &store.Node{
		Project:     b.graphID,
		Kind:        string(schema.NodeProject),
		Name:        b.graphID,
		CompositeID: schema.ProjectNodeID(b.graphID),
	})
	if err != nil {
		return 0, err
	}

	fileID, err := tx.UpsertNode(ctx, &store.Node{
		Project:     b.graphID,
		Kind:        string(schema.NodeFile),
		Name:        pf.Path,
		CompositeID: schema.FileNodeID(b.graphID, pf.Path),
		FilePath:    pf.Path,
		Properties:  map[string]any{"language": pf.Language},
	})
	if err != nil {
		return 0, err
	}
	stats.Nodes += 2

	if _, err := tx.InsertEdge(ctx, &store.Edge{
		Project:  b.graphID,
		SourceID: fileID,
		TargetID: projectID,
		Type:     string(schema.EdgePartOfProject),
	}); err != nil {
		return 0, err
	}
	stats.Edges++
	return fileID, nil
}

func (b *Builder) upsertImports(ctx context.Context, tx *store.Store, pf *entity.ParsedFile, fileID int64, stats *Stats) error {
	for _, imp := range pf.Imports {
		moduleID, err := tx.MergeNode(ctx, &store.Node{
			Project:     b.graphID,
			Kind:        string(schema.NodeModule),
			Name:        imp.Module,
			CompositeID: schema.ModuleNodeID(b.graphID, imp.Module),
		})
		if err != nil {
			return err
		}
		stats.Nodes++

		props := map[string]any{
			"kind": string(imp.Kind),
			"line": imp.Line,
		}
		if imp.Level > 0 {
			props["level"] = imp.Level
		}
		if len(imp.Names) > 0 {
			names := make([]string, 0, len(imp.Names))
			for _, n := range imp.Names {
				if n.Alias != "" {
					names = append(names, n.Name+" as "+n.Alias)
				} else {
					names = append(names, n.Name)
				}
			}
			props["names"] = strings.Join(names, ",")
		}
		if _, err := tx.InsertEdge(ctx, &store.Edge{
			Project:    b.graphID,
			SourceID:   fileID,
			TargetID:   moduleID,
			Type:       string(schema.EdgeImportsModule),
			Properties: props,
		}); err != nil {
			return err
		}
		stats.Edges++
	}
	return nil
}
