package builder

import (
	"context"

	"github.com/codeatlas-dev/codeatlas/internal/entity"
	"github.com/codeatlas-dev/codeatlas/internal/schema"
	"github.com/codeatlas-dev/codeatlas/internal/store"
)

// upsertReferences writes USES_VARIABLE, MODIFIES_VARIABLE and
// CREATES_OBJECT edges. Variable names resolve against the function's own
// locals and parameters first, then the file's globals, then (for
// methods) the owning class's attributes. Unresolvable references are
// dropped, not errors: they point at bindings outside the indexed model.
func (b *Builder) upsertReferences(ctx context.Context, tx *store.Store, pf *entity.ParsedFile, ids map[string]int64, stats *Stats) error {
	globals := make(map[string]string, len(pf.Globals))
	for _, v := range pf.Globals {
		globals[v.Name] = schema.VariableNodeID(b.graphID, pf.Path, "", v.Name, v.StartLine)
	}

	var edges []*store.Edge

	emit := func(fn *entity.Function, ownerClass string) error {
		fnID := ids[schema.FunctionNodeID(b.graphID, pf.Path, ownerClass, fn.Name, fn.StartLine)]

		scope := make(map[string]string, len(fn.Parameters)+len(fn.Locals))
		for _, p := range fn.Parameters {
			scope[p.Name] = schema.VariableNodeID(b.graphID, pf.Path, fn.Name, p.Name, p.StartLine)
		}
		for _, l := range fn.Locals {
			if _, ok := scope[l.Name]; !ok {
				scope[l.Name] = schema.VariableNodeID(b.graphID, pf.Path, fn.Name, l.Name, l.StartLine)
			}
		}

		var attrs map[string]string
		if ownerClass != "" {
			attrs = b.classAttrs(pf, ownerClass)
		}

		resolve := func(name string) (int64, bool) {
			if cid, ok := scope[name]; ok {
				return ids[cid], true
			}
			if cid, ok := globals[name]; ok {
				return ids[cid], true
			}
			if cid, ok := attrs[name]; ok {
				return ids[cid], true
			}
			return 0, false
		}

		for _, ref := range fn.Uses {
			varID, ok := resolve(ref.Name)
			if !ok {
				stats.RefsDropped++
				continue
			}
			stats.RefsResolved++
			edges = append(edges, &store.Edge{
				Project:    b.graphID,
				SourceID:   fnID,
				TargetID:   varID,
				Type:       string(schema.EdgeUsesVariable),
				Properties: map[string]any{"line": ref.Line, "context": fn.Name},
			})
		}
		for _, ref := range fn.Modifies {
			varID, ok := resolve(ref.Name)
			if !ok {
				stats.RefsDropped++
				continue
			}
			stats.RefsResolved++
			edges = append(edges, &store.Edge{
				Project:    b.graphID,
				SourceID:   fnID,
				TargetID:   varID,
				Type:       string(schema.EdgeModifiesVariable),
				Properties: map[string]any{"line": ref.Line, "context": fn.Name},
			})
		}
		for _, ref := range fn.Creates {
			classID, ok, err := b.resolveClass(ctx, tx, pf, ids, ref.Class)
			if err != nil {
				return err
			}
			if !ok {
				stats.RefsDropped++
				continue
			}
			stats.RefsResolved++
			edges = append(edges, &store.Edge{
				Project:    b.graphID,
				SourceID:   fnID,
				TargetID:   classID,
				Type:       string(schema.EdgeCreatesObject),
				Properties: map[string]any{"line": ref.Line},
			})
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

	if err := tx.InsertEdgeBatch(ctx, edges); err != nil {
		return err
	}
	stats.Edges += len(edges)
	return nil
}

func (b *Builder) classAttrs(pf *entity.ParsedFile, className string) map[string]string {
	for i := range pf.Classes {
		c := &pf.Classes[i]
		if c.Name != className {
			continue
		}
		attrs := make(map[string]string, len(c.Attributes))
		for _, a := range c.Attributes {
			attrs[a.Name] = schema.VariableNodeID(b.graphID, pf.Path, c.Name, a.Name, a.StartLine)
		}
		return attrs
	}
	return nil
}

// resolveClass finds a class by name: same file first, then project-wide
// by name in composite-id order.
func (b *Builder) resolveClass(ctx context.Context, tx *store.Store, pf *entity.ParsedFile, ids map[string]int64, name string) (int64, bool, error) {
	for i := range pf.Classes {
		c := &pf.Classes[i]
		if c.Name == name {
			return ids[schema.ClassNodeID(b.graphID, pf.Path, c.Name, c.StartLine)], true, nil
		}
	}
	candidates, err := tx.FindNodesByName(ctx, b.graphID, name)
	if err != nil {
		return 0, false, err
	}
	for _, n := range candidates {
		if n.Kind == string(schema.NodeClass) {
			return n.ID, true, nil
		}
	}
	return 0, false, nil
}
