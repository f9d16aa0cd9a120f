package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// UpsertNode inserts or replaces a node (dedup by composite_id) and
// returns its row id. The id comes back via RETURNING: LastInsertId is
// not refreshed on the ON CONFLICT DO UPDATE path, so it would hand
// back the rowid of whatever insert last ran on the connection.
func (s *Store) UpsertNode(ctx context.Context, n *Node) (int64, error) {
	var id int64
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO nodes (project, kind, name, composite_id, file_path, start_line, end_line, properties)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project, composite_id) DO UPDATE SET
			kind=excluded.kind, name=excluded.name, file_path=excluded.file_path,
			start_line=excluded.start_line, end_line=excluded.end_line, properties=excluded.properties
		RETURNING id`,
		n.Project, n.Kind, n.Name, n.CompositeID, n.FilePath, n.StartLine, n.EndLine, marshalProps(n.Properties)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert node: %w", err)
	}
	return id, nil
}

// MergeNode upserts but keeps existing position fields when the incoming
// node has none. Shared nodes (Module stubs, placeholder superclasses,
// ExceptionTypes) are merged with this so a later stub reference does not
// blank out a previously recorded definition site.
func (s *Store) MergeNode(ctx context.Context, n *Node) (int64, error) {
	var id int64
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO nodes (project, kind, name, composite_id, file_path, start_line, end_line, properties)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project, composite_id) DO UPDATE SET
			file_path=CASE WHEN excluded.file_path='' THEN nodes.file_path ELSE excluded.file_path END,
			start_line=CASE WHEN excluded.start_line=0 THEN nodes.start_line ELSE excluded.start_line END,
			end_line=CASE WHEN excluded.end_line=0 THEN nodes.end_line ELSE excluded.end_line END
		RETURNING id`,
		n.Project, n.Kind, n.Name, n.CompositeID, n.FilePath, n.StartLine, n.EndLine, marshalProps(n.Properties)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("merge node: %w", err)
	}
	return id, nil
}

// FindNodeByID finds a node by its primary key ID.
func (s *Store) FindNodeByID(ctx context.Context, id int64) (*Node, error) {
	row := s.q.QueryRowContext(ctx, `SELECT id, project, kind, name, composite_id, file_path, start_line, end_line, properties
		FROM nodes WHERE id=?`, id)
	return scanNode(row)
}

// FindNodeByCompositeID finds a node by project and composite ID.
func (s *Store) FindNodeByCompositeID(ctx context.Context, project, compositeID string) (*Node, error) {
	row := s.q.QueryRowContext(ctx, `SELECT id, project, kind, name, composite_id, file_path, start_line, end_line, properties
		FROM nodes WHERE project=? AND composite_id=?`, project, compositeID)
	return scanNode(row)
}

// FindNodesByName finds nodes by project and name, ordered by composite ID
// so repeated lookups see candidates in a stable order.
func (s *Store) FindNodesByName(ctx context.Context, project, name string) ([]*Node, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, project, kind, name, composite_id, file_path, start_line, end_line, properties
		FROM nodes WHERE project=? AND name=? ORDER BY composite_id`, project, name)
	if err != nil {
		return nil, fmt.Errorf("find by name: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// FindNodesByKind finds all nodes of a given kind in a project.
func (s *Store) FindNodesByKind(ctx context.Context, project, kind string) ([]*Node, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, project, kind, name, composite_id, file_path, start_line, end_line, properties
		FROM nodes WHERE project=? AND kind=? ORDER BY composite_id`, project, kind)
	if err != nil {
		return nil, fmt.Errorf("find by kind: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// SearchNodesByName finds nodes whose name contains the given substring,
// optionally restricted to kinds, capped at limit.
func (s *Store) SearchNodesByName(ctx context.Context, project, substr string, kinds []string, limit int) ([]*Node, error) {
	query := `SELECT id, project, kind, name, composite_id, file_path, start_line, end_line, properties
		FROM nodes WHERE project=? AND name LIKE '%' || ? || '%'`
	args := []any{project, substr}
	if len(kinds) > 0 {
		query += ` AND kind IN (` + placeholders(len(kinds)) + `)`
		for _, k := range kinds {
			args = append(args, k)
		}
	}
	query += ` ORDER BY name, composite_id LIMIT ?`
	args = append(args, limit)

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search by name: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// FindNodesByFile finds all nodes defined in a given file.
func (s *Store) FindNodesByFile(ctx context.Context, project, filePath string) ([]*Node, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, project, kind, name, composite_id, file_path, start_line, end_line, properties
		FROM nodes WHERE project=? AND file_path=?`, project, filePath)
	if err != nil {
		return nil, fmt.Errorf("find by file: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// CountNodes returns the number of nodes in a project.
func (s *Store) CountNodes(ctx context.Context, project string) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM nodes WHERE project=?", project).Scan(&count)
	return count, err
}

// CountNodesByKind returns per-kind node counts for a project.
func (s *Store) CountNodesByKind(ctx context.Context, project string) (map[string]int, error) {
	rows, err := s.q.QueryContext(ctx, "SELECT kind, COUNT(*) FROM nodes WHERE project=? GROUP BY kind", project)
	if err != nil {
		return nil, fmt.Errorf("count by kind: %w", err)
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}

// DeleteNodesByProject deletes all nodes for a project.
func (s *Store) DeleteNodesByProject(ctx context.Context, project string) error {
	_, err := s.q.ExecContext(ctx, "DELETE FROM nodes WHERE project=?", project)
	return err
}

// DeleteNodesByFile deletes a file's subgraph: every node whose identity
// is scoped under the file, the File node included. Shared nodes carry an
// empty file_path and survive. Edges touching deleted nodes go with them
// via ON DELETE CASCADE.
func (s *Store) DeleteNodesByFile(ctx context.Context, project, filePath string) error {
	if filePath == "" {
		return fmt.Errorf("delete nodes by file: empty path")
	}
	_, err := s.q.ExecContext(ctx, "DELETE FROM nodes WHERE project=? AND file_path=?", project, filePath)
	return err
}

// FindNodesByIDs returns a map of nodeID → *Node for the given IDs.
func (s *Store) FindNodesByIDs(ctx context.Context, ids []int64) (map[int64]*Node, error) {
	if len(ids) == 0 {
		return map[int64]*Node{}, nil
	}
	result := make(map[int64]*Node, len(ids))
	const batchSize = 998 // leave room under 999 limit

	for i := 0; i < len(ids); i += batchSize {
		end := i + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[i:end]

		placeholders := make([]string, len(chunk))
		args := make([]any, len(chunk))
		for j, id := range chunk {
			placeholders[j] = "?"
			args[j] = id
		}

		query := fmt.Sprintf(
			"SELECT id, project, kind, name, composite_id, file_path, start_line, end_line, properties FROM nodes WHERE id IN (%s)",
			strings.Join(placeholders, ","))

		if err := func() error {
			rows, err := s.q.QueryContext(ctx, query, args...)
			if err != nil {
				return fmt.Errorf("find nodes by ids: %w", err)
			}
			defer rows.Close()
			nodes, err := scanNodes(rows)
			if err != nil {
				return err
			}
			for _, n := range nodes {
				result[n.ID] = n
			}
			return nil
		}(); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// AllNodes returns all nodes for a project.
func (s *Store) AllNodes(ctx context.Context, project string) ([]*Node, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, project, kind, name, composite_id, file_path, start_line, end_line, properties
		FROM nodes WHERE project=?`, project)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNodes(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNode(row scanner) (*Node, error) {
	var n Node
	var props string
	err := row.Scan(&n.ID, &n.Project, &n.Kind, &n.Name, &n.CompositeID, &n.FilePath, &n.StartLine, &n.EndLine, &props)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	n.Properties = unmarshalProps(props)
	return &n, nil
}

func scanNodes(rows *sql.Rows) ([]*Node, error) {
	var result []*Node
	for rows.Next() {
		var n Node
		var props string
		if err := rows.Scan(&n.ID, &n.Project, &n.Kind, &n.Name, &n.CompositeID, &n.FilePath, &n.StartLine, &n.EndLine, &props); err != nil {
			return nil, err
		}
		n.Properties = unmarshalProps(props)
		result = append(result, &n)
	}
	return result, rows.Err()
}

// Formula-derived batch size: SQLite has a 999 bind variable limit.
const numNodeCols = 8
const nodesBatchSize = 999 / numNodeCols // = 124

// UpsertNodeBatch inserts or updates multiple nodes in batched multi-row
// INSERTs. Returns a map of compositeID → ID for all upserted nodes.
func (s *Store) UpsertNodeBatch(ctx context.Context, nodes []*Node) (map[string]int64, error) {
	if len(nodes) == 0 {
		return map[string]int64{}, nil
	}

	result := make(map[string]int64, len(nodes))

	for i := 0; i < len(nodes); i += nodesBatchSize {
		end := i + nodesBatchSize
		if end > len(nodes) {
			end = len(nodes)
		}
		if err := s.upsertNodeChunk(ctx, nodes[i:end], result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *Store) upsertNodeChunk(ctx context.Context, batch []*Node, idMap map[string]int64) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO nodes (project, kind, name, composite_id, file_path, start_line, end_line, properties) VALUES `)

	args := make([]any, 0, len(batch)*numNodeCols)
	for i, n := range batch {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString("(?,?,?,?,?,?,?,?)")
		args = append(args, n.Project, n.Kind, n.Name, n.CompositeID, n.FilePath, n.StartLine, n.EndLine, marshalProps(n.Properties))
	}
	sb.WriteString(` ON CONFLICT(project, composite_id) DO UPDATE SET
		kind=excluded.kind, name=excluded.name, file_path=excluded.file_path,
		start_line=excluded.start_line, end_line=excluded.end_line, properties=excluded.properties`)

	if _, err := s.q.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("upsert node batch: %w", err)
	}

	// Recover IDs via SELECT ... IN (...).
	// Group by project since the UNIQUE constraint is (project, composite_id).
	byProject := make(map[string][]string)
	for _, n := range batch {
		byProject[n.Project] = append(byProject[n.Project], n.CompositeID)
	}

	for project, cids := range byProject {
		if err := s.resolveNodeIDs(ctx, project, cids, idMap); err != nil {
			return err
		}
	}
	return nil
}

// resolveNodeIDs fetches IDs for a set of composite IDs in a single
// project. Respects the 999-var limit by batching the IN clause.
func (s *Store) resolveNodeIDs(ctx context.Context, project string, cids []string, idMap map[string]int64) error {
	// 1 var for project + N vars for IDs; batch to stay under 999
	const maxIDsPerQuery = 998

	for i := 0; i < len(cids); i += maxIDsPerQuery {
		end := i + maxIDsPerQuery
		if end > len(cids) {
			end = len(cids)
		}
		chunk := cids[i:end]

		placeholders := make([]string, len(chunk))
		args := make([]any, 0, len(chunk)+1)
		args = append(args, project)
		for j, cid := range chunk {
			placeholders[j] = "?"
			args = append(args, cid)
		}

		query := fmt.Sprintf("SELECT id, composite_id FROM nodes WHERE project = ? AND composite_id IN (%s)",
			strings.Join(placeholders, ","))

		if err := func() error {
			rows, err := s.q.QueryContext(ctx, query, args...)
			if err != nil {
				return fmt.Errorf("resolve node IDs: %w", err)
			}
			defer rows.Close()
			for rows.Next() {
				var id int64
				var cid string
				if err := rows.Scan(&id, &cid); err != nil {
					return err
				}
				idMap[cid] = id
			}
			return rows.Err()
		}(); err != nil {
			return err
		}
	}
	return nil
}

// FindNodeIDsByCompositeIDs returns a map of compositeID → ID for the
// given IDs in a project.
func (s *Store) FindNodeIDsByCompositeIDs(ctx context.Context, project string, cids []string) (map[string]int64, error) {
	if len(cids) == 0 {
		return map[string]int64{}, nil
	}
	idMap := make(map[string]int64, len(cids))
	if err := s.resolveNodeIDs(ctx, project, cids, idMap); err != nil {
		return nil, err
	}
	return idMap, nil
}
