package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Project is one indexed project graph. GraphID is the project-graph
// identifier every composite ID in the graph is prefixed with.
type Project struct {
	GraphID   string
	ProjectID string
	Branch    string
	IndexedAt string
	RootPath  string
}

// UpsertProject creates or updates a project record. An empty IndexedAt
// is stamped with the current time; a set one is written as given so
// callers can preserve an earlier index timestamp.
func (s *Store) UpsertProject(ctx context.Context, p *Project) error {
	indexedAt := p.IndexedAt
	if indexedAt == "" {
		indexedAt = Now()
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO projects (graph_id, project_id, branch, indexed_at, root_path) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(graph_id) DO UPDATE SET
			project_id=excluded.project_id, branch=excluded.branch,
			indexed_at=excluded.indexed_at, root_path=excluded.root_path`,
		p.GraphID, p.ProjectID, p.Branch, indexedAt, p.RootPath)
	return err
}

// GetProject returns a project by graph ID, or nil if not indexed.
func (s *Store) GetProject(ctx context.Context, graphID string) (*Project, error) {
	var p Project
	err := s.q.QueryRowContext(ctx, "SELECT graph_id, project_id, branch, indexed_at, root_path FROM projects WHERE graph_id=?", graphID).
		Scan(&p.GraphID, &p.ProjectID, &p.Branch, &p.IndexedAt, &p.RootPath)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// ListProjects returns all indexed project graphs.
func (s *Store) ListProjects(ctx context.Context) ([]*Project, error) {
	rows, err := s.q.QueryContext(ctx, "SELECT graph_id, project_id, branch, indexed_at, root_path FROM projects ORDER BY graph_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []*Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.GraphID, &p.ProjectID, &p.Branch, &p.IndexedAt, &p.RootPath); err != nil {
			return nil, err
		}
		result = append(result, &p)
	}
	return result, rows.Err()
}

// DeleteProject deletes a project and all associated data (CASCADE).
func (s *Store) DeleteProject(ctx context.Context, graphID string) error {
	_, err := s.q.ExecContext(ctx, "DELETE FROM projects WHERE graph_id=?", graphID)
	return err
}

// UpsertFileHash stores a file's content hash for incremental diffing.
func (s *Store) UpsertFileHash(ctx context.Context, project, relPath, hash string) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO file_hashes (project, rel_path, hash) VALUES (?, ?, ?)
		ON CONFLICT(project, rel_path) DO UPDATE SET hash=excluded.hash`,
		project, relPath, hash)
	return err
}

// GetFileHashes returns all stored file hashes for a project.
func (s *Store) GetFileHashes(ctx context.Context, project string) (map[string]string, error) {
	rows, err := s.q.QueryContext(ctx, "SELECT rel_path, hash FROM file_hashes WHERE project=?", project)
	if err != nil {
		return nil, fmt.Errorf("get file hashes: %w", err)
	}
	defer rows.Close()
	result := make(map[string]string)
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, err
		}
		result[path] = hash
	}
	return result, rows.Err()
}

// DeleteFileHash deletes a single file hash entry.
func (s *Store) DeleteFileHash(ctx context.Context, project, relPath string) error {
	_, err := s.q.ExecContext(ctx, "DELETE FROM file_hashes WHERE project=? AND rel_path=?", project, relPath)
	return err
}

// DeleteFileHashes deletes all file hashes for a project.
func (s *Store) DeleteFileHashes(ctx context.Context, project string) error {
	_, err := s.q.ExecContext(ctx, "DELETE FROM file_hashes WHERE project=?", project)
	return err
}
