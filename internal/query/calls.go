package query

import (
	"context"
	"sort"

	"github.com/codeatlas-dev/codeatlas/internal/schema"
	"github.com/codeatlas-dev/codeatlas/internal/store"
)

// CallEdge is one resolved caller->callee relationship.
type CallEdge struct {
	Caller     string `json:"caller"`
	CallerFile string `json:"caller_file"`
	Callee     string `json:"callee"`
	CalleeFile string `json:"callee_file"`
	CallCount  int    `json:"call_count"`
	CallType   string `json:"call_type,omitempty"`
}

// FunctionRef names a function and where it is defined.
type FunctionRef struct {
	Name      string `json:"name"`
	Class     string `json:"class,omitempty"`
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
}

func functionRef(n *store.Node) FunctionRef {
	class, _ := n.Properties["class"].(string)
	return FunctionRef{Name: n.Name, Class: class, File: n.FilePath, StartLine: n.StartLine}
}

// isCallable reports whether a node can be a CALLS endpoint.
func isCallable(n *store.Node) bool {
	return n.Kind == string(schema.NodeFunction) || n.Kind == string(schema.NodeMethod)
}

// CallEdges lists CALLS edges, optionally restricted to edges touching
// the named function (as caller or callee).
func (q *Service) CallEdges(ctx context.Context, functionName string, limit int) ([]CallEdge, error) {
	edges, err := q.store.FindEdgesByType(ctx, q.graphID, string(schema.EdgeCalls))
	if err != nil {
		return nil, err
	}
	nodes, err := q.edgeEndpoints(ctx, edges)
	if err != nil {
		return nil, err
	}

	maxResults := q.limit(limit)
	result := make([]CallEdge, 0, len(edges))
	for _, e := range edges {
		source, target := nodes[e.SourceID], nodes[e.TargetID]
		if source == nil || target == nil {
			continue
		}
		if functionName != "" && source.Name != functionName && target.Name != functionName {
			continue
		}
		callType, _ := e.Properties["call_type"].(string)
		result = append(result, CallEdge{
			Caller:     source.Name,
			CallerFile: source.FilePath,
			Callee:     target.Name,
			CalleeFile: target.FilePath,
			CallCount:  e.CallCount,
			CallType:   callType,
		})
		if len(result) >= maxResults {
			break
		}
	}
	return result, nil
}

// Callers lists functions that call the named function.
func (q *Service) Callers(ctx context.Context, functionName string, limit int) ([]FunctionRef, error) {
	return q.callNeighbors(ctx, functionName, limit, false)
}

// Callees lists functions the named function calls.
func (q *Service) Callees(ctx context.Context, functionName string, limit int) ([]FunctionRef, error) {
	return q.callNeighbors(ctx, functionName, limit, true)
}

func (q *Service) callNeighbors(ctx context.Context, functionName string, limit int, outgoing bool) ([]FunctionRef, error) {
	named, err := q.nodesByName(ctx, functionName)
	if err != nil {
		return nil, err
	}

	maxResults := q.limit(limit)
	var refs []FunctionRef
	seen := make(map[int64]bool)
	for _, n := range named {
		if !isCallable(n) {
			continue
		}
		var edges []*store.Edge
		if outgoing {
			edges, err = q.store.FindEdgesBySourceAndType(ctx, n.ID, string(schema.EdgeCalls))
		} else {
			edges, err = q.store.FindEdgesByTargetAndType(ctx, n.ID, string(schema.EdgeCalls))
		}
		if err != nil {
			return nil, err
		}
		neighbors, err := q.edgeEndpoints(ctx, edges)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			id := e.SourceID
			if outgoing {
				id = e.TargetID
			}
			neighbor := neighbors[id]
			if neighbor == nil || seen[neighbor.ID] {
				continue
			}
			seen[neighbor.ID] = true
			refs = append(refs, functionRef(neighbor))
			if len(refs) >= maxResults {
				return refs, nil
			}
		}
	}
	return refs, nil
}

// Cycle is one CALLS loop, caller-first, with the starting function
// repeated at the end.
type Cycle []string

// Cycles finds up to maxCycles loops in the CALLS graph with a bounded
// depth-first search. Deterministic: adjacency is walked in node-id order.
func (q *Service) Cycles(ctx context.Context, maxDepth, maxCycles int) ([]Cycle, error) {
	if maxDepth <= 0 {
		maxDepth = 10
	}
	if maxCycles <= 0 {
		maxCycles = 10
	}

	edges, err := q.store.FindEdgesByType(ctx, q.graphID, string(schema.EdgeCalls))
	if err != nil {
		return nil, err
	}
	nodes, err := q.edgeEndpoints(ctx, edges)
	if err != nil {
		return nil, err
	}

	adjacency := make(map[int64][]int64)
	for _, e := range edges {
		adjacency[e.SourceID] = append(adjacency[e.SourceID], e.TargetID)
	}
	starts := make([]int64, 0, len(adjacency))
	for id := range adjacency {
		sort.Slice(adjacency[id], func(a, b int) bool { return adjacency[id][a] < adjacency[id][b] })
		starts = append(starts, id)
	}
	sort.Slice(starts, func(a, b int) bool { return starts[a] < starts[b] })

	var cycles []Cycle
	// Once a node has been fully explored as a start, any cycle through
	// it was already reported; skip it in later walks.
	done := make(map[int64]bool)

	var path []int64
	onPath := make(map[int64]bool)

	var dfs func(start, current int64, depth int) bool
	dfs = func(start, current int64, depth int) bool {
		if depth > maxDepth {
			return false
		}
		path = append(path, current)
		onPath[current] = true
		defer func() {
			path = path[:len(path)-1]
			delete(onPath, current)
		}()

		for _, next := range adjacency[current] {
			if done[next] {
				continue
			}
			if next == start {
				cycle := make(Cycle, 0, len(path)+1)
				for _, id := range path {
					cycle = append(cycle, nodes[id].Name)
				}
				cycle = append(cycle, nodes[start].Name)
				cycles = append(cycles, cycle)
				if len(cycles) >= maxCycles {
					return true
				}
				continue
			}
			if onPath[next] {
				continue
			}
			if dfs(start, next, depth+1) {
				return true
			}
		}
		return false
	}

	for _, start := range starts {
		if nodes[start] == nil {
			continue
		}
		if dfs(start, start, 1) {
			break
		}
		done[start] = true
	}
	return cycles, nil
}

// Coupling is a per-function fan-in/fan-out score.
type Coupling struct {
	Function string `json:"function"`
	File     string `json:"file"`
	CallsOut int    `json:"calls_out"`
	CallsIn  int    `json:"calls_in"`
	Score    int    `json:"score"`
}

// CouplingRanking scores every function by calls_out + calls_in and
// returns the most coupled first.
func (q *Service) CouplingRanking(ctx context.Context, limit int) ([]Coupling, error) {
	edges, err := q.store.FindEdgesByType(ctx, q.graphID, string(schema.EdgeCalls))
	if err != nil {
		return nil, err
	}
	nodes, err := q.edgeEndpoints(ctx, edges)
	if err != nil {
		return nil, err
	}

	out := make(map[int64]int)
	in := make(map[int64]int)
	for _, e := range edges {
		out[e.SourceID]++
		in[e.TargetID]++
	}

	byID := make(map[int64]*Coupling)
	for id, n := range nodes {
		byID[id] = &Coupling{
			Function: n.Name,
			File:     n.FilePath,
			CallsOut: out[id],
			CallsIn:  in[id],
			Score:    out[id] + in[id],
		}
	}
	ranking := make([]Coupling, 0, len(byID))
	for _, c := range byID {
		ranking = append(ranking, *c)
	}
	sort.Slice(ranking, func(a, b int) bool {
		if ranking[a].Score != ranking[b].Score {
			return ranking[a].Score > ranking[b].Score
		}
		return ranking[a].Function < ranking[b].Function
	})
	if maxResults := q.limit(limit); len(ranking) > maxResults {
		ranking = ranking[:maxResults]
	}
	return ranking, nil
}

// CalledFunction is a callee ranked by accumulated call count.
type CalledFunction struct {
	Function   string `json:"function"`
	Class      string `json:"class,omitempty"`
	File       string `json:"file"`
	TotalCalls int    `json:"total_calls"`
}

// MostCalled ranks functions by the sum of incoming CALLS counts.
func (q *Service) MostCalled(ctx context.Context, limit int) ([]CalledFunction, error) {
	edges, err := q.store.FindEdgesByType(ctx, q.graphID, string(schema.EdgeCalls))
	if err != nil {
		return nil, err
	}
	nodes, err := q.edgeEndpoints(ctx, edges)
	if err != nil {
		return nil, err
	}

	totals := make(map[int64]int)
	for _, e := range edges {
		totals[e.TargetID] += e.CallCount
	}
	ranking := make([]CalledFunction, 0, len(totals))
	for id, total := range totals {
		n := nodes[id]
		if n == nil {
			continue
		}
		class, _ := n.Properties["class"].(string)
		ranking = append(ranking, CalledFunction{
			Function:   n.Name,
			Class:      class,
			File:       n.FilePath,
			TotalCalls: total,
		})
	}
	sort.Slice(ranking, func(a, b int) bool {
		if ranking[a].TotalCalls != ranking[b].TotalCalls {
			return ranking[a].TotalCalls > ranking[b].TotalCalls
		}
		return ranking[a].Function < ranking[b].Function
	})
	if maxResults := q.limit(limit); len(ranking) > maxResults {
		ranking = ranking[:maxResults]
	}
	return ranking, nil
}

// edgeEndpoints fetches every node touched by the given edges.
func (q *Service) edgeEndpoints(ctx context.Context, edges []*store.Edge) (map[int64]*store.Node, error) {
	idSet := make(map[int64]bool)
	for _, e := range edges {
		idSet[e.SourceID] = true
		idSet[e.TargetID] = true
	}
	ids := make([]int64, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	return q.store.FindNodesByIDs(ctx, ids)
}
