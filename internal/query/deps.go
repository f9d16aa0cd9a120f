package query

import (
	"context"
	"sort"

	"github.com/codeatlas-dev/codeatlas/internal/schema"
)

// DependentFiles returns files containing functions that call into, or
// use/modify variables of, entities defined in the given files. The
// given files themselves are excluded. The incremental updater rebuilds
// these alongside changed files so edges pointing at changed entities
// stay consistent.
func (q *Service) DependentFiles(ctx context.Context, changed []string) ([]string, error) {
	changedSet := make(map[string]bool, len(changed))
	for _, p := range changed {
		changedSet[p] = true
	}

	dependents := make(map[string]bool)
	for _, path := range changed {
		nodes, err := q.store.FindNodesByFile(ctx, q.graphID, path)
		if err != nil {
			return nil, err
		}
		for _, n := range nodes {
			var edgeTypes []string
			switch n.Kind {
			case string(schema.NodeFunction), string(schema.NodeMethod):
				edgeTypes = []string{string(schema.EdgeCalls)}
			case string(schema.NodeVariable):
				edgeTypes = []string{
					string(schema.EdgeUsesVariable),
					string(schema.EdgeModifiesVariable),
				}
			default:
				continue
			}
			for _, edgeType := range edgeTypes {
				edges, err := q.store.FindEdgesByTargetAndType(ctx, n.ID, edgeType)
				if err != nil {
					return nil, err
				}
				sources, err := q.edgeEndpoints(ctx, edges)
				if err != nil {
					return nil, err
				}
				for _, e := range edges {
					source := sources[e.SourceID]
					if source == nil || source.FilePath == "" || changedSet[source.FilePath] {
						continue
					}
					dependents[source.FilePath] = true
				}
			}
		}
	}

	result := make([]string, 0, len(dependents))
	for p := range dependents {
		result = append(result, p)
	}
	sort.Strings(result)
	return result, nil
}
