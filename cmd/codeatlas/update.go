package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/codeatlas-dev/codeatlas/internal/discover"
	"github.com/codeatlas-dev/codeatlas/internal/syncer"
	"github.com/codeatlas-dev/codeatlas/internal/watcher"
)

var (
	updateNoDeps bool
	updateWatch  bool
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Incrementally re-sync the graph with the source tree",
	Long: `Diff the current source tree against the stored content hashes and
rebuild only added and changed files, drop deleted ones, and rebuild
files that depend on the changed ones so their call edges point at
fresh nodes.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		ctx := cmd.Context()

		root, err := filepath.Abs(a.cfg.Root)
		if err != nil {
			return err
		}
		if p, err := a.store.GetProject(ctx, a.graphID); err != nil {
			return err
		} else if p == nil {
			return fmt.Errorf("project %s is not indexed yet, run index first", a.cfg.Project)
		}

		sync := func(ctx context.Context) error {
			sources, err := discover.LoadSources(ctx, root, a.reg, a.cfg.discoverOptions())
			if err != nil {
				return fmt.Errorf("discover %s: %w", root, err)
			}
			stats, err := syncer.New(a.store, a.reg, a.graphID).Update(ctx, sources, !updateNoDeps)
			if err != nil {
				return err
			}
			return printJSON(stats)
		}

		if err := sync(ctx); err != nil {
			return err
		}
		if updateWatch {
			return watcher.New(root, a.reg, a.cfg.discoverOptions(), sync).Run(ctx)
		}
		return nil
	},
}

func init() {
	updateCmd.Flags().BoolVar(&updateNoDeps, "no-deps", false, "skip rebuilding files that depend on the changed ones")
	updateCmd.Flags().BoolVar(&updateWatch, "watch", false, "keep running and re-sync whenever the tree changes")
}
