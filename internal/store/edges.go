package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// InsertEdge inserts an edge (dedup by source_id, target_id, type) and
// returns its row id via RETURNING, which unlike LastInsertId stays
// correct on the conflict path.
func (s *Store) InsertEdge(ctx context.Context, e *Edge) (int64, error) {
	var id int64
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO edges (project, source_id, target_id, type, call_count, first_seen, last_seen, properties)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id, target_id, type) DO UPDATE SET properties=excluded.properties
		RETURNING id`,
		e.Project, e.SourceID, e.TargetID, e.Type, e.CallCount, e.FirstSeen, e.LastSeen, marshalProps(e.Properties)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert edge: %w", err)
	}
	return id, nil
}

// MergeCallEdge merges a CALLS edge: created with count 1 on first sight,
// count incremented and last_seen advanced on every later merge. The
// first_seen stamp never moves.
func (s *Store) MergeCallEdge(ctx context.Context, e *Edge) error {
	now := Now()
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO edges (project, source_id, target_id, type, call_count, first_seen, last_seen, properties)
		VALUES (?, ?, ?, ?, 1, ?, ?, ?)
		ON CONFLICT(source_id, target_id, type) DO UPDATE SET
			call_count=edges.call_count+1, last_seen=excluded.last_seen, properties=excluded.properties`,
		e.Project, e.SourceID, e.TargetID, e.Type, now, now, marshalProps(e.Properties))
	if err != nil {
		return fmt.Errorf("merge call edge: %w", err)
	}
	return nil
}

// FindEdgesBySource finds all edges from a given source node.
func (s *Store) FindEdgesBySource(ctx context.Context, sourceID int64) ([]*Edge, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, project, source_id, target_id, type, call_count, first_seen, last_seen, properties
		FROM edges WHERE source_id=?`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("find edges by source: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// FindEdgesByTarget finds all edges to a given target node.
func (s *Store) FindEdgesByTarget(ctx context.Context, targetID int64) ([]*Edge, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, project, source_id, target_id, type, call_count, first_seen, last_seen, properties
		FROM edges WHERE target_id=?`, targetID)
	if err != nil {
		return nil, fmt.Errorf("find edges by target: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// FindEdgesBySourceAndType finds edges from a source with a specific type.
func (s *Store) FindEdgesBySourceAndType(ctx context.Context, sourceID int64, edgeType string) ([]*Edge, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, project, source_id, target_id, type, call_count, first_seen, last_seen, properties
		FROM edges WHERE source_id=? AND type=?`, sourceID, edgeType)
	if err != nil {
		return nil, fmt.Errorf("find edges by source+type: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// FindEdgesByTargetAndType finds edges to a target with a specific type.
func (s *Store) FindEdgesByTargetAndType(ctx context.Context, targetID int64, edgeType string) ([]*Edge, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, project, source_id, target_id, type, call_count, first_seen, last_seen, properties
		FROM edges WHERE target_id=? AND type=?`, targetID, edgeType)
	if err != nil {
		return nil, fmt.Errorf("find edges by target+type: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// FindEdgesByType returns all edges of a given type for a project.
func (s *Store) FindEdgesByType(ctx context.Context, project, edgeType string) ([]*Edge, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, project, source_id, target_id, type, call_count, first_seen, last_seen, properties
		FROM edges WHERE project=? AND type=?`, project, edgeType)
	if err != nil {
		return nil, fmt.Errorf("find edges by type: %w", err)
	}
	defer rows.Close()
	return scanEdges(rows)
}

// CountEdges returns the number of edges in a project.
func (s *Store) CountEdges(ctx context.Context, project string) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM edges WHERE project=?", project).Scan(&count)
	return count, err
}

// DeleteEdgesByProject deletes all edges for a project.
func (s *Store) DeleteEdgesByProject(ctx context.Context, project string) error {
	_, err := s.q.ExecContext(ctx, "DELETE FROM edges WHERE project=?", project)
	return err
}

// DeleteEdgesBySourceFile deletes edges of a given type where the source
// node belongs to a specific file.
func (s *Store) DeleteEdgesBySourceFile(ctx context.Context, project, filePath, edgeType string) error {
	_, err := s.q.ExecContext(ctx, `
		DELETE FROM edges WHERE id IN (
			SELECT e.id FROM edges e
			JOIN nodes n ON e.source_id = n.id
			WHERE e.project=? AND n.file_path=? AND e.type=?
		)`, project, filePath, edgeType)
	return err
}

// Batch sizing under the 999 bind-variable limit: 8 cols × 124 = 992.
const numEdgeCols = 8
const edgesBatchSize = 999 / numEdgeCols

// InsertEdgeBatch inserts multiple edges in batched multi-row INSERTs.
// Conflicting rows keep their counters and only refresh properties; use
// MergeCallEdgeBatch for CALLS edges.
func (s *Store) InsertEdgeBatch(ctx context.Context, edges []*Edge) error {
	return s.edgeBatch(ctx, edges, ` ON CONFLICT(source_id, target_id, type) DO UPDATE SET properties=excluded.properties`)
}

// MergeCallEdgeBatch merges CALLS edges in batches: insert seeds the
// counter from the edge's CallCount (the number of call sites resolved to
// this target in the current build); conflict adds to the stored counter
// and advances last_seen.
func (s *Store) MergeCallEdgeBatch(ctx context.Context, edges []*Edge) error {
	now := Now()
	for _, e := range edges {
		if e.CallCount == 0 {
			e.CallCount = 1
		}
		e.FirstSeen = now
		e.LastSeen = now
	}
	return s.edgeBatch(ctx, edges, ` ON CONFLICT(source_id, target_id, type) DO UPDATE SET
		call_count=edges.call_count+excluded.call_count, last_seen=excluded.last_seen, properties=excluded.properties`)
}

func (s *Store) edgeBatch(ctx context.Context, edges []*Edge, conflictClause string) error {
	if len(edges) == 0 {
		return nil
	}
	for i := 0; i < len(edges); i += edgesBatchSize {
		end := i + edgesBatchSize
		if end > len(edges) {
			end = len(edges)
		}
		if err := s.edgeChunk(ctx, edges[i:end], conflictClause); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) edgeChunk(ctx context.Context, batch []*Edge, conflictClause string) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO edges (project, source_id, target_id, type, call_count, first_seen, last_seen, properties) VALUES `)

	args := make([]any, 0, len(batch)*numEdgeCols)
	for i, e := range batch {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString("(?,?,?,?,?,?,?,?)")
		args = append(args, e.Project, e.SourceID, e.TargetID, e.Type, e.CallCount, e.FirstSeen, e.LastSeen, marshalProps(e.Properties))
	}
	sb.WriteString(conflictClause)

	if _, err := s.q.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert edge batch: %w", err)
	}
	return nil
}

func scanEdges(rows *sql.Rows) ([]*Edge, error) {
	var result []*Edge
	for rows.Next() {
		var e Edge
		var props string
		if err := rows.Scan(&e.ID, &e.Project, &e.SourceID, &e.TargetID, &e.Type, &e.CallCount, &e.FirstSeen, &e.LastSeen, &props); err != nil {
			return nil, err
		}
		e.Properties = unmarshalProps(props)
		result = append(result, &e)
	}
	return result, rows.Err()
}
