package builder

import (
	"context"
	"log/slog"

	"github.com/codeatlas-dev/codeatlas/internal/entity"
	"github.com/codeatlas-dev/codeatlas/internal/schema"
	"github.com/codeatlas-dev/codeatlas/internal/store"
)

// callContext is the fixed context one function's calls resolve under.
type callContext struct {
	filePath   string
	ownerClass string
}

// resolverStrategy tries to resolve one call to a target node row id.
// Returns 0 when the strategy does not apply or finds no match.
type resolverStrategy func(ctx context.Context, b *Builder, tx *store.Store, rc *callContext, c *entity.Call) (int64, error)

// strategies is the ranked fallback chain. Each call walks the list and
// the first non-zero result wins; strategies gate themselves on the
// call-type classification, so the chain branches without nesting.
var strategies = []resolverStrategy{
	resolveOwnClassMethod,
	resolveDirect,
	resolveOnClass,
	resolveAnyMethod,
}

// upsertCalls resolves every call site and merges CALLS edges. Repeated
// calls to the same target from one function accumulate into a single
// edge whose call_count reflects the number of sites. Unresolved calls
// are dropped: targets in external code are expected, not errors.
func (b *Builder) upsertCalls(ctx context.Context, tx *store.Store, pf *entity.ParsedFile, ids map[string]int64, stats *Stats) error {
	type edgeKey struct {
		source, target int64
	}
	counts := make(map[edgeKey]*store.Edge)
	var order []edgeKey

	emit := func(fn *entity.Function, ownerClass string) error {
		fnID := ids[schema.FunctionNodeID(b.graphID, pf.Path, ownerClass, fn.Name, fn.StartLine)]
		rc := &callContext{filePath: pf.Path, ownerClass: ownerClass}

		for i := range fn.Calls {
			c := &fn.Calls[i]
			targetID, err := b.resolveCall(ctx, tx, rc, c)
			if err != nil {
				return err
			}
			if targetID == 0 {
				stats.CallsDropped++
				slog.Debug("builder.call.unresolved",
					"file", pf.Path, "caller", fn.Name,
					"callee", c.Callee, "type", string(c.Type))
				continue
			}
			stats.CallsResolved++

			key := edgeKey{fnID, targetID}
			if e, ok := counts[key]; ok {
				e.CallCount++
				continue
			}
			counts[key] = &store.Edge{
				Project:   b.graphID,
				SourceID:  fnID,
				TargetID:  targetID,
				Type:      string(schema.EdgeCalls),
				CallCount: 1,
				Properties: map[string]any{
					"call_type": string(c.Type),
					"line":      c.Line,
				},
			}
			order = append(order, key)
		}
		return nil
	}

	for i := range pf.Classes {
		c := &pf.Classes[i]
		for j := range c.Methods {
			if err := emit(&c.Methods[j], c.Name); err != nil {
				return err
			}
		}
	}
	for i := range pf.Functions {
		if err := emit(&pf.Functions[i], ""); err != nil {
			return err
		}
	}

	edges := make([]*store.Edge, 0, len(order))
	for _, key := range order {
		edges = append(edges, counts[key])
	}
	if err := tx.MergeCallEdgeBatch(ctx, edges); err != nil {
		return err
	}
	stats.Edges += len(edges)
	return nil
}

func (b *Builder) resolveCall(ctx context.Context, tx *store.Store, rc *callContext, c *entity.Call) (int64, error) {
	for _, strategy := range strategies {
		id, err := strategy(ctx, b, tx, rc, c)
		if err != nil {
			return 0, err
		}
		if id != 0 {
			return id, nil
		}
	}
	return 0, nil
}

// resolveOwnClassMethod handles self/this and own-class-qualified calls:
// a method on the caller's own class, else on a transitively inherited
// superclass, nearest ancestor first.
func resolveOwnClassMethod(ctx context.Context, b *Builder, tx *store.Store, rc *callContext, c *entity.Call) (int64, error) {
	if c.Type != entity.CallInstanceMethod && c.Type != entity.CallOnOwnClass {
		return 0, nil
	}
	if rc.ownerClass == "" {
		return 0, nil
	}

	// BFS over INHERITS_FROM starting at the own class. visited guards
	// against inheritance cycles in malformed input.
	queue := []string{rc.ownerClass}
	visited := map[string]bool{rc.ownerClass: true}
	for len(queue) > 0 {
		className := queue[0]
		queue = queue[1:]

		id, err := b.findMethodOnClass(ctx, tx, c.Callee, className)
		if err != nil {
			return 0, err
		}
		if id != 0 {
			return id, nil
		}

		supers, err := b.superNames(ctx, tx, className)
		if err != nil {
			return 0, err
		}
		for _, s := range supers {
			if !visited[s] {
				visited[s] = true
				queue = append(queue, s)
			}
		}
	}
	return 0, nil
}

// resolveDirect handles bare and constructor-shaped calls: a free
// function of that name in the same file, else the first one project-wide.
func resolveDirect(ctx context.Context, b *Builder, tx *store.Store, rc *callContext, c *entity.Call) (int64, error) {
	if c.Type != entity.CallDirect && c.Type != entity.CallConstructor {
		return 0, nil
	}
	candidates, err := tx.FindNodesByName(ctx, b.graphID, c.Callee)
	if err != nil {
		return 0, err
	}
	var first int64
	for _, n := range candidates {
		if n.Kind != string(schema.NodeFunction) {
			continue
		}
		if n.FilePath == rc.filePath {
			return n.ID, nil
		}
		if first == 0 {
			first = n.ID
		}
	}
	return first, nil
}

// resolveOnClass handles class-qualified calls with a known base name:
// a method of that name defined on the named class.
func resolveOnClass(ctx context.Context, b *Builder, tx *store.Store, rc *callContext, c *entity.Call) (int64, error) {
	if c.Type != entity.CallOnClass || c.BaseObject == "" {
		return 0, nil
	}
	return b.findMethodOnClass(ctx, tx, c.Callee, c.BaseObject)
}

// resolveAnyMethod is the generic object-call fallback: the first method
// of that name anywhere in the project, in composite-id order.
func resolveAnyMethod(ctx context.Context, b *Builder, tx *store.Store, rc *callContext, c *entity.Call) (int64, error) {
	switch c.Type {
	// CallOnClass is deliberately accepted here too: a class-qualified
	// call whose named class lacks the method (aliased or re-exported
	// receivers) degrades to the generic lookup instead of dropping.
	case entity.CallOnObject, entity.CallSubscripted, entity.CallOnClass:
	default:
		return 0, nil
	}
	candidates, err := tx.FindNodesByName(ctx, b.graphID, c.Callee)
	if err != nil {
		return 0, err
	}
	for _, n := range candidates {
		if n.Kind == string(schema.NodeMethod) {
			return n.ID, nil
		}
	}
	return 0, nil
}

// findMethodOnClass returns a method named callee whose owning class is
// className, first by composite-id order, or 0.
func (b *Builder) findMethodOnClass(ctx context.Context, tx *store.Store, callee, className string) (int64, error) {
	candidates, err := tx.FindNodesByName(ctx, b.graphID, callee)
	if err != nil {
		return 0, err
	}
	for _, n := range candidates {
		if n.Kind != string(schema.NodeMethod) {
			continue
		}
		if owner, _ := n.Properties["class"].(string); owner == className {
			return n.ID, nil
		}
	}
	return 0, nil
}

// superNames returns the names of the direct superclasses of the first
// class node with the given name.
func (b *Builder) superNames(ctx context.Context, tx *store.Store, className string) ([]string, error) {
	candidates, err := tx.FindNodesByName(ctx, b.graphID, className)
	if err != nil {
		return nil, err
	}
	var classID int64
	for _, n := range candidates {
		if n.Kind == string(schema.NodeClass) {
			classID = n.ID
			break
		}
	}
	if classID == 0 {
		return nil, nil
	}

	edges, err := tx.FindEdgesBySourceAndType(ctx, classID, string(schema.EdgeInheritsFrom))
	if err != nil {
		return nil, err
	}
	if len(edges) == 0 {
		return nil, nil
	}
	targetIDs := make([]int64, 0, len(edges))
	for _, e := range edges {
		targetIDs = append(targetIDs, e.TargetID)
	}
	targets, err := tx.FindNodesByIDs(ctx, targetIDs)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(targetIDs))
	for _, id := range targetIDs {
		if n, ok := targets[id]; ok {
			names = append(names, n.Name)
		}
	}
	return names, nil
}
