package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/codeatlas-dev/codeatlas/internal/syncer"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the graph for orphaned nodes and duplicate identifiers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		report, err := syncer.New(a.store, a.reg, a.graphID).ValidateConsistency(cmd.Context())
		if err != nil {
			return err
		}
		if err := printJSON(report); err != nil {
			return err
		}
		if !report.Clean() {
			return errors.New("graph has consistency issues")
		}
		return nil
	},
}
