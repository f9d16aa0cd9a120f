package query

import (
	"context"
	"sort"

	"github.com/codeatlas-dev/codeatlas/internal/schema"
)

// InheritancePair is one (class, ancestor) relationship, direct or
// transitive.
type InheritancePair struct {
	Class    string `json:"class"`
	Ancestor string `json:"ancestor"`
	Depth    int    `json:"depth"`
}

// InheritancePairs returns every transitive (class, ancestor) pair,
// nearest ancestors first per class.
func (q *Service) InheritancePairs(ctx context.Context, limit int) ([]InheritancePair, error) {
	edges, err := q.store.FindEdgesByType(ctx, q.graphID, string(schema.EdgeInheritsFrom))
	if err != nil {
		return nil, err
	}
	nodes, err := q.edgeEndpoints(ctx, edges)
	if err != nil {
		return nil, err
	}

	parents := make(map[int64][]int64)
	for _, e := range edges {
		parents[e.SourceID] = append(parents[e.SourceID], e.TargetID)
	}
	classes := make([]int64, 0, len(parents))
	for id := range parents {
		sort.Slice(parents[id], func(a, b int) bool { return parents[id][a] < parents[id][b] })
		classes = append(classes, id)
	}
	sort.Slice(classes, func(a, b int) bool { return classes[a] < classes[b] })

	maxResults := q.limit(limit)
	var pairs []InheritancePair
	for _, classID := range classes {
		// BFS up the hierarchy; visited guards against cycles.
		visited := map[int64]bool{classID: true}
		frontier := parents[classID]
		depth := 1
		for len(frontier) > 0 {
			var next []int64
			for _, ancestorID := range frontier {
				if visited[ancestorID] {
					continue
				}
				visited[ancestorID] = true
				if nodes[classID] != nil && nodes[ancestorID] != nil {
					pairs = append(pairs, InheritancePair{
						Class:    nodes[classID].Name,
						Ancestor: nodes[ancestorID].Name,
						Depth:    depth,
					})
					if len(pairs) >= maxResults {
						return pairs, nil
					}
				}
				next = append(next, parents[ancestorID]...)
			}
			frontier = next
			depth++
		}
	}
	return pairs, nil
}

// MethodsOfClass lists the methods defined on the named class.
func (q *Service) MethodsOfClass(ctx context.Context, className string, limit int) ([]FunctionRef, error) {
	named, err := q.nodesByName(ctx, className)
	if err != nil {
		return nil, err
	}

	var refs []FunctionRef
	for _, class := range named {
		if class.Kind != string(schema.NodeClass) {
			continue
		}
		edges, err := q.store.FindEdgesByTargetAndType(ctx, class.ID, string(schema.EdgeDefinedInClass))
		if err != nil {
			return nil, err
		}
		methods, err := q.edgeEndpoints(ctx, edges)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			if m := methods[e.SourceID]; m != nil {
				refs = append(refs, functionRef(m))
			}
		}
	}
	sort.Slice(refs, func(a, b int) bool {
		if refs[a].File != refs[b].File {
			return refs[a].File < refs[b].File
		}
		return refs[a].StartLine < refs[b].StartLine
	})
	if maxResults := q.limit(limit); len(refs) > maxResults {
		refs = refs[:maxResults]
	}
	return refs, nil
}

// GodClass is a class whose method count exceeds a threshold.
type GodClass struct {
	Class       string `json:"class"`
	File        string `json:"file"`
	MethodCount int    `json:"method_count"`
}

// GodClasses finds classes with more than minMethods methods, largest
// first.
func (q *Service) GodClasses(ctx context.Context, minMethods, limit int) ([]GodClass, error) {
	if minMethods <= 0 {
		minMethods = 10
	}
	edges, err := q.store.FindEdgesByType(ctx, q.graphID, string(schema.EdgeDefinedInClass))
	if err != nil {
		return nil, err
	}
	nodes, err := q.edgeEndpoints(ctx, edges)
	if err != nil {
		return nil, err
	}

	counts := make(map[int64]int)
	for _, e := range edges {
		counts[e.TargetID]++
	}
	var result []GodClass
	for classID, count := range counts {
		if count < minMethods {
			continue
		}
		class := nodes[classID]
		if class == nil {
			continue
		}
		result = append(result, GodClass{Class: class.Name, File: class.FilePath, MethodCount: count})
	}
	sort.Slice(result, func(a, b int) bool {
		if result[a].MethodCount != result[b].MethodCount {
			return result[a].MethodCount > result[b].MethodCount
		}
		return result[a].Class < result[b].Class
	})
	if maxResults := q.limit(limit); len(result) > maxResults {
		result = result[:maxResults]
	}
	return result, nil
}

// VariableUsage lists the functions reading and writing a variable.
type VariableUsage struct {
	Variable   string   `json:"variable"`
	File       string   `json:"file"`
	UsedBy     []string `json:"used_by"`
	ModifiedBy []string `json:"modified_by"`
}

// VariableUsages reports readers and writers per variable of that name.
func (q *Service) VariableUsages(ctx context.Context, varName string, limit int) ([]VariableUsage, error) {
	named, err := q.nodesByName(ctx, varName)
	if err != nil {
		return nil, err
	}

	maxResults := q.limit(limit)
	var usages []VariableUsage
	for _, v := range named {
		if v.Kind != string(schema.NodeVariable) {
			continue
		}
		usage := VariableUsage{Variable: v.Name, File: v.FilePath}

		for _, pair := range []struct {
			edgeType string
			into     *[]string
		}{
			{string(schema.EdgeUsesVariable), &usage.UsedBy},
			{string(schema.EdgeModifiesVariable), &usage.ModifiedBy},
		} {
			edges, err := q.store.FindEdgesByTargetAndType(ctx, v.ID, pair.edgeType)
			if err != nil {
				return nil, err
			}
			sources, err := q.edgeEndpoints(ctx, edges)
			if err != nil {
				return nil, err
			}
			for _, e := range edges {
				if fn := sources[e.SourceID]; fn != nil {
					*pair.into = append(*pair.into, fn.Name)
				}
			}
			sort.Strings(*pair.into)
		}

		usages = append(usages, usage)
		if len(usages) >= maxResults {
			break
		}
	}
	return usages, nil
}
