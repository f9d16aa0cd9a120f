package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/codeatlas-dev/codeatlas/internal/discover"
	"github.com/codeatlas-dev/codeatlas/internal/schema"
	"github.com/codeatlas-dev/codeatlas/internal/store"
	"github.com/codeatlas-dev/codeatlas/internal/syncer"
)

var (
	indexForce bool
	indexScan  string
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the full knowledge graph for the project",
	Long: `Discover source files under the project root, parse them and build
the knowledge graph. Files whose content hash is unchanged since the
last run are skipped unless --force is given.

With --scan TYPE the graph is written under a scan-scoped identifier
(fresh every run) instead of the project's long-lived graph.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		ctx := cmd.Context()

		graphID := a.graphID
		if indexScan != "" {
			graphID = schema.ScanGraphID(a.cfg.AppPrefix, a.cfg.Project, indexScan, uuid.NewString(), time.Now())
			slog.Info("index.scan", "graph_id", graphID)
		}

		root, err := filepath.Abs(a.cfg.Root)
		if err != nil {
			return err
		}
		sources, err := discover.LoadSources(ctx, root, a.reg, a.cfg.discoverOptions())
		if err != nil {
			return fmt.Errorf("discover %s: %w", root, err)
		}

		err = a.store.UpsertProject(ctx, &store.Project{
			GraphID:   graphID,
			ProjectID: a.cfg.Project,
			Branch:    a.cfg.Branch,
			RootPath:  root,
		})
		if err != nil {
			return fmt.Errorf("upsert project: %w", err)
		}
		if indexForce {
			if err := a.store.DeleteFileHashes(ctx, graphID); err != nil {
				return fmt.Errorf("clear hashes: %w", err)
			}
		}

		stats, err := syncer.New(a.store, a.reg, graphID).Update(ctx, sources, false)
		if err != nil {
			return err
		}
		return printJSON(stats)
	},
}

func init() {
	indexCmd.Flags().BoolVar(&indexForce, "force", false, "rebuild every file even if its hash is unchanged")
	indexCmd.Flags().StringVar(&indexScan, "scan", "", "write under a scan-scoped graph of this type (e.g. security)")
}
