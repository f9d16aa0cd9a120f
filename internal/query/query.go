// Package query answers read-only structural questions over a project
// graph: call graphs, hierarchies, cycles, coupling, usage and search.
// Nothing here mutates the store. Every list-returning query caps its
// result size so responses stay bounded on large graphs.
package query

import (
	"context"
	"fmt"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/codeatlas-dev/codeatlas/internal/schema"
	"github.com/codeatlas-dev/codeatlas/internal/store"
)

// DefaultLimit caps list results when the caller passes no limit.
const DefaultLimit = 100

const nameCacheSize = 1024

// Service is a read-side view of one project graph.
type Service struct {
	store   *store.Store
	graphID string
	names   *lru.Cache[string, []*store.Node]
}

// New creates a query service over a project graph.
func New(s *store.Store, graphID string) *Service {
	names, _ := lru.New[string, []*store.Node](nameCacheSize)
	return &Service{store: s, graphID: graphID, names: names}
}

// ResetCache drops cached lookups. Callers that rebuild parts of the
// graph call this before querying again.
func (q *Service) ResetCache() {
	q.names.Purge()
}

func (q *Service) limit(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	return n
}

// nodesByName returns all nodes with the given name, cached.
func (q *Service) nodesByName(ctx context.Context, name string) ([]*store.Node, error) {
	if cached, ok := q.names.Get(name); ok {
		return cached, nil
	}
	nodes, err := q.store.FindNodesByName(ctx, q.graphID, name)
	if err != nil {
		return nil, err
	}
	q.names.Add(name, nodes)
	return nodes, nil
}

// Summary holds per-kind entity counts plus the edge total.
type Summary struct {
	GraphID string         `json:"graph_id"`
	Nodes   map[string]int `json:"nodes"`
	Edges   int            `json:"edges"`
}

// Summary returns entity counts by kind.
func (q *Service) Summary(ctx context.Context) (*Summary, error) {
	counts, err := q.store.CountNodesByKind(ctx, q.graphID)
	if err != nil {
		return nil, fmt.Errorf("count nodes: %w", err)
	}
	edges, err := q.store.CountEdges(ctx, q.graphID)
	if err != nil {
		return nil, fmt.Errorf("count edges: %w", err)
	}
	return &Summary{GraphID: q.graphID, Nodes: counts, Edges: edges}, nil
}

// FilesByLanguage groups file paths by their language tag.
func (q *Service) FilesByLanguage(ctx context.Context) (map[string][]string, error) {
	files, err := q.store.FindNodesByKind(ctx, q.graphID, string(schema.NodeFile))
	if err != nil {
		return nil, err
	}
	result := make(map[string][]string)
	for _, f := range files {
		language, _ := f.Properties["language"].(string)
		if language == "" {
			language = "unknown"
		}
		result[language] = append(result[language], f.FilePath)
	}
	for _, paths := range result {
		sort.Strings(paths)
	}
	return result, nil
}

// SearchResult is one name-search hit.
type SearchResult struct {
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	File      string `json:"file,omitempty"`
	StartLine int    `json:"start_line,omitempty"`
}

// Search finds functions, classes and variables whose name contains the
// substring.
func (q *Service) Search(ctx context.Context, substr string, limit int) ([]SearchResult, error) {
	kinds := []string{
		string(schema.NodeFunction),
		string(schema.NodeMethod),
		string(schema.NodeClass),
		string(schema.NodeVariable),
	}
	nodes, err := q.store.SearchNodesByName(ctx, q.graphID, substr, kinds, q.limit(limit))
	if err != nil {
		return nil, err
	}
	results := make([]SearchResult, 0, len(nodes))
	for _, n := range nodes {
		results = append(results, SearchResult{
			Kind:      n.Kind,
			Name:      n.Name,
			File:      n.FilePath,
			StartLine: n.StartLine,
		})
	}
	return results, nil
}
