package syncer

import (
	"context"
	"fmt"

	"github.com/codeatlas-dev/codeatlas/internal/schema"
)

// ConsistencyReport lists invariant violations found in the graph.
// Findings are reported, never auto-repaired: a correct builder never
// produces them, so each one is a regression signal.
type ConsistencyReport struct {
	OrphanedNodes []string       `json:"orphaned_nodes"`
	DuplicateIDs  map[string]int `json:"duplicate_ids"`
	Issues        []string       `json:"issues"`
}

// Clean reports whether no violations were found.
func (r *ConsistencyReport) Clean() bool {
	return len(r.OrphanedNodes) == 0 && len(r.DuplicateIDs) == 0
}

// ValidateConsistency detects Function and Method nodes lacking a
// DEFINED_IN edge, and composite IDs shared by more than one node.
func (s *Syncer) ValidateConsistency(ctx context.Context) (*ConsistencyReport, error) {
	report := &ConsistencyReport{DuplicateIDs: map[string]int{}}

	orphans, err := s.store.FindOrphanNodes(ctx, s.graphID, string(schema.EdgeDefinedIn),
		string(schema.NodeFunction), string(schema.NodeMethod))
	if err != nil {
		return nil, fmt.Errorf("find orphans: %w", err)
	}
	for _, n := range orphans {
		report.OrphanedNodes = append(report.OrphanedNodes, n.CompositeID)
		report.Issues = append(report.Issues,
			fmt.Sprintf("%s %q has no DEFINED_IN edge (%s)", n.Kind, n.Name, n.CompositeID))
	}

	duplicates, err := s.store.FindDuplicateCompositeIDs(ctx, s.graphID)
	if err != nil {
		return nil, fmt.Errorf("find duplicates: %w", err)
	}
	for cid, count := range duplicates {
		report.DuplicateIDs[cid] = count
		report.Issues = append(report.Issues,
			fmt.Sprintf("composite id %q held by %d nodes", cid, count))
	}
	return report, nil
}
