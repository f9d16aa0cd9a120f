package store

import (
	"context"
	"fmt"
)

// FindOrphanNodes returns nodes of the given kinds that have no outgoing
// edge of the given type. Used by consistency validation to spot
// Function/Method nodes that lost their DEFINED_IN edge.
func (s *Store) FindOrphanNodes(ctx context.Context, project, edgeType string, kinds ...string) ([]*Node, error) {
	if len(kinds) == 0 {
		return nil, nil
	}
	query := `SELECT n.id, n.project, n.kind, n.name, n.composite_id, n.file_path, n.start_line, n.end_line, n.properties
		FROM nodes n
		WHERE n.project=? AND n.kind IN (` + placeholders(len(kinds)) + `)
		AND NOT EXISTS (SELECT 1 FROM edges e WHERE e.source_id = n.id AND e.type = ?)`

	args := make([]any, 0, len(kinds)+2)
	args = append(args, project)
	for _, k := range kinds {
		args = append(args, k)
	}
	args = append(args, edgeType)

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find orphan nodes: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// FindDuplicateCompositeIDs returns composite IDs held by more than one
// node in a project. The UNIQUE(project, composite_id) constraint should
// make this impossible; a non-empty result means the schema regressed.
func (s *Store) FindDuplicateCompositeIDs(ctx context.Context, project string) (map[string]int, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT composite_id, COUNT(*) c FROM nodes
		WHERE project=? GROUP BY composite_id HAVING c > 1`, project)
	if err != nil {
		return nil, fmt.Errorf("find duplicate ids: %w", err)
	}
	defer rows.Close()
	dups := make(map[string]int)
	for rows.Next() {
		var cid string
		var c int
		if err := rows.Scan(&cid, &c); err != nil {
			return nil, err
		}
		dups[cid] = c
	}
	return dups, rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	out := make([]byte, 0, n*2-1)
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, '?')
	}
	return string(out)
}
