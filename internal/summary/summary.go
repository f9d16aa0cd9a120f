// Package summary renders the outbound project summary consumed by
// prompt builders: plain counts, averages and top-N lists, derived
// entirely from the query layer.
package summary

import (
	"context"
	"fmt"

	"github.com/codeatlas-dev/codeatlas/internal/query"
	"github.com/codeatlas-dev/codeatlas/internal/schema"
)

// DefaultTopN bounds the top-N lists when the caller passes no size.
const DefaultTopN = 10

// Summary is the outbound project digest. It is plain data: the
// consumer renders it into prompts or reports without calling back.
type Summary struct {
	GraphID         string                 `json:"graph_id"`
	TotalFiles      int                    `json:"total_files"`
	TotalClasses    int                    `json:"total_classes"`
	TotalFunctions  int                    `json:"total_functions"`
	AvgFuncsPerFile float64                `json:"avg_functions_per_file"`
	FilesByLanguage map[string][]string    `json:"files_by_language"`
	LargestClasses  []query.GodClass       `json:"largest_classes"`
	MostCalled      []query.CalledFunction `json:"most_called"`
}

// Build assembles the summary from query-layer calls only.
func Build(ctx context.Context, q *query.Service, topN int) (*Summary, error) {
	if topN <= 0 {
		topN = DefaultTopN
	}

	counts, err := q.Summary(ctx)
	if err != nil {
		return nil, fmt.Errorf("summary counts: %w", err)
	}
	byLanguage, err := q.FilesByLanguage(ctx)
	if err != nil {
		return nil, fmt.Errorf("files by language: %w", err)
	}
	largest, err := q.GodClasses(ctx, 1, topN)
	if err != nil {
		return nil, fmt.Errorf("largest classes: %w", err)
	}
	mostCalled, err := q.MostCalled(ctx, topN)
	if err != nil {
		return nil, fmt.Errorf("most called: %w", err)
	}

	files := counts.Nodes[string(schema.NodeFile)]
	functions := counts.Nodes[string(schema.NodeFunction)] + counts.Nodes[string(schema.NodeMethod)]
	avg := 0.0
	if files > 0 {
		avg = float64(functions) / float64(files)
	}

	return &Summary{
		GraphID:         counts.GraphID,
		TotalFiles:      files,
		TotalClasses:    counts.Nodes[string(schema.NodeClass)],
		TotalFunctions:  functions,
		AvgFuncsPerFile: avg,
		FilesByLanguage: byLanguage,
		LargestClasses:  largest,
		MostCalled:      mostCalled,
	}, nil
}
