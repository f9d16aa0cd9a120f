package main

import (
	"github.com/spf13/cobra"

	"github.com/codeatlas-dev/codeatlas/internal/query"
	"github.com/codeatlas-dev/codeatlas/internal/summary"
)

var summaryTop int

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the aggregate graph summary",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		s, err := summary.Build(cmd.Context(), query.New(a.store, a.graphID), summaryTop)
		if err != nil {
			return err
		}
		return printJSON(s)
	},
}

func init() {
	summaryCmd.Flags().IntVar(&summaryTop, "top", 0, "size of the top-N lists")
}
