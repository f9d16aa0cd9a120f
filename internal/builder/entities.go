package builder

import (
	"context"
	"strings"

	"github.com/codeatlas-dev/codeatlas/internal/entity"
	"github.com/codeatlas-dev/codeatlas/internal/fqn"
	"github.com/codeatlas-dev/codeatlas/internal/schema"
	"github.com/codeatlas-dev/codeatlas/internal/store"
)

// upsertEntities writes every file-scoped node in one batch and then the
// ownership edges between them. Returns composite id -> row id for the
// reference and call steps.
func (b *Builder) upsertEntities(ctx context.Context, tx *store.Store, pf *entity.ParsedFile, fileID int64, stats *Stats) (map[string]int64, error) {
	nodes := b.collectNodes(pf)
	ids, err := tx.UpsertNodeBatch(ctx, nodes)
	if err != nil {
		return nil, err
	}
	stats.Nodes += len(nodes)

	var edges []*store.Edge
	edge := func(sourceID, targetID int64, kind schema.EdgeKind, props map[string]any) {
		edges = append(edges, &store.Edge{
			Project:    b.graphID,
			SourceID:   sourceID,
			TargetID:   targetID,
			Type:       string(kind),
			Properties: props,
		})
	}

	for _, v := range pf.Globals {
		varID := ids[schema.VariableNodeID(b.graphID, pf.Path, "", v.Name, v.StartLine)]
		edge(fileID, varID, schema.EdgeDeclaresVariable, nil)
	}

	for i := range pf.Classes {
		c := &pf.Classes[i]
		classID := ids[schema.ClassNodeID(b.graphID, pf.Path, c.Name, c.StartLine)]
		edge(classID, fileID, schema.EdgeDefinedIn, nil)

		for _, super := range c.Supers {
			superID, err := b.resolveSuper(ctx, tx, super, stats)
			if err != nil {
				return nil, err
			}
			edge(classID, superID, schema.EdgeInheritsFrom, nil)
		}
		for _, a := range c.Attributes {
			attrID := ids[schema.VariableNodeID(b.graphID, pf.Path, c.Name, a.Name, a.StartLine)]
			edge(classID, attrID, schema.EdgeDeclaresAttribute, nil)
		}
		for _, d := range c.Decorators {
			decID := ids[schema.DecoratorNodeID(b.graphID, pf.Path, c.Name, d, c.StartLine)]
			edge(classID, decID, schema.EdgeHasDecorator, nil)
		}
		for j := range c.Methods {
			m := &c.Methods[j]
			methodID := ids[schema.FunctionNodeID(b.graphID, pf.Path, c.Name, m.Name, m.StartLine)]
			edge(methodID, classID, schema.EdgeDefinedInClass, nil)
			if err := b.functionEdges(ctx, tx, pf, m, methodID, fileID, ids, edge, stats); err != nil {
				return nil, err
			}
		}
	}

	for i := range pf.Functions {
		fn := &pf.Functions[i]
		fnID := ids[schema.FunctionNodeID(b.graphID, pf.Path, "", fn.Name, fn.StartLine)]
		if err := b.functionEdges(ctx, tx, pf, fn, fnID, fileID, ids, edge, stats); err != nil {
			return nil, err
		}
	}

	if err := tx.InsertEdgeBatch(ctx, edges); err != nil {
		return nil, err
	}
	stats.Edges += len(edges)
	return ids, nil
}

type edgeFunc func(sourceID, targetID int64, kind schema.EdgeKind, props map[string]any)

// functionEdges emits the ownership edges of one function: DEFINED_IN,
// parameters, locals, decorators and exception links.
func (b *Builder) functionEdges(ctx context.Context, tx *store.Store, pf *entity.ParsedFile, fn *entity.Function, fnID, fileID int64, ids map[string]int64, edge edgeFunc, stats *Stats) error {
	edge(fnID, fileID, schema.EdgeDefinedIn, nil)

	for _, p := range fn.Parameters {
		paramID := ids[schema.VariableNodeID(b.graphID, pf.Path, fn.Name, p.Name, p.StartLine)]
		edge(fnID, paramID, schema.EdgeHasParameter, nil)
	}
	for _, l := range fn.Locals {
		localID := ids[schema.VariableNodeID(b.graphID, pf.Path, fn.Name, l.Name, l.StartLine)]
		edge(fnID, localID, schema.EdgeDeclaresVariable, nil)
	}
	for _, d := range fn.Decorators {
		decID := ids[schema.DecoratorNodeID(b.graphID, pf.Path, fn.Name, d, fn.StartLine)]
		edge(fnID, decID, schema.EdgeHasDecorator, nil)
	}

	for _, name := range fn.Raises {
		excID, err := b.mergeException(ctx, tx, name, stats)
		if err != nil {
			return err
		}
		edge(fnID, excID, schema.EdgeRaisesException, nil)
	}
	for _, name := range fn.Handles {
		excID, err := b.mergeException(ctx, tx, name, stats)
		if err != nil {
			return err
		}
		edge(fnID, excID, schema.EdgeHandlesException, nil)
	}
	return nil
}

// resolveSuper finds the superclass node by name anywhere in the project,
// or merges a placeholder when the class has not been seen yet.
func (b *Builder) resolveSuper(ctx context.Context, tx *store.Store, name string, stats *Stats) (int64, error) {
	candidates, err := tx.FindNodesByName(ctx, b.graphID, name)
	if err != nil {
		return 0, err
	}
	for _, n := range candidates {
		if n.Kind == string(schema.NodeClass) {
			return n.ID, nil
		}
	}
	id, err := tx.MergeNode(ctx, &store.Node{
		Project:     b.graphID,
		Kind:        string(schema.NodeClass),
		Name:        name,
		CompositeID: schema.PlaceholderClassNodeID(b.graphID, name),
		Properties:  map[string]any{"placeholder": true},
	})
	if err != nil {
		return 0, err
	}
	stats.Nodes++
	return id, nil
}

func (b *Builder) mergeException(ctx context.Context, tx *store.Store, name string, stats *Stats) (int64, error) {
	id, err := tx.MergeNode(ctx, &store.Node{
		Project:     b.graphID,
		Kind:        string(schema.NodeExceptionType),
		Name:        name,
		CompositeID: schema.ExceptionTypeNodeID(b.graphID, name),
	})
	if err != nil {
		return 0, err
	}
	stats.Nodes++
	return id, nil
}

// collectNodes builds the full node batch for a file: globals, classes
// with attributes/decorators/methods, free functions with parameters,
// locals and decorators. IDs mirror schema.FileSubgraphIDs exactly.
func (b *Builder) collectNodes(pf *entity.ParsedFile) []*store.Node {
	var nodes []*store.Node

	for _, v := range pf.Globals {
		nodes = append(nodes, b.variableNode(pf.Path, "", &v))
	}
	for i := range pf.Classes {
		c := &pf.Classes[i]
		nodes = append(nodes, b.classNode(pf.Path, c))
		for _, a := range c.Attributes {
			nodes = append(nodes, b.variableNode(pf.Path, c.Name, &a))
		}
		for _, d := range c.Decorators {
			nodes = append(nodes, b.decoratorNode(pf.Path, c.Name, d, c.StartLine))
		}
		for j := range c.Methods {
			nodes = append(nodes, b.functionNodes(pf.Path, c.Name, &c.Methods[j])...)
		}
	}
	for i := range pf.Functions {
		nodes = append(nodes, b.functionNodes(pf.Path, "", &pf.Functions[i])...)
	}
	return nodes
}

func (b *Builder) classNode(path string, c *entity.Class) *store.Node {
	props := map[string]any{
		"qualified_name": fqn.Qualified(path, c.Name),
	}
	if len(c.Supers) > 0 {
		props["supers"] = strings.Join(c.Supers, ",")
	}
	if kind := c.Attrs.ComponentKind(); kind != "" {
		props["component"] = kind
	}
	if c.Attrs.Has(entity.AttrExported) {
		props["exported"] = true
	}
	if c.Attrs.Has(entity.AttrAbstract) {
		props["abstract"] = true
	}
	return &store.Node{
		Project:     b.graphID,
		Kind:        string(schema.NodeClass),
		Name:        c.Name,
		CompositeID: schema.ClassNodeID(b.graphID, path, c.Name, c.StartLine),
		FilePath:    path,
		StartLine:   c.StartLine,
		EndLine:     c.EndLine,
		Properties:  props,
	}
}

func (b *Builder) functionNodes(path, ownerClass string, fn *entity.Function) []*store.Node {
	props := map[string]any{
		"lines":          fn.EndLine - fn.StartLine + 1,
		"qualified_name": fqn.Qualified(path, ownerClass, fn.Name),
	}
	if fn.Signature != "" {
		props["signature"] = fn.Signature
	}
	if ownerClass != "" {
		props["class"] = ownerClass
	}
	if fn.Attrs.Has(entity.AttrExported) {
		props["exported"] = true
	}
	if fn.Attrs.Has(entity.AttrSuspend) {
		props["suspend"] = true
	}
	if fn.Attrs.Has(entity.AttrAsync) {
		props["async"] = true
	}
	if fn.Attrs.Has(entity.AttrExtension) {
		props["extension"] = true
	}

	nodes := []*store.Node{{
		Project:     b.graphID,
		Kind:        string(schema.KindForFunction(ownerClass)),
		Name:        fn.Name,
		CompositeID: schema.FunctionNodeID(b.graphID, path, ownerClass, fn.Name, fn.StartLine),
		FilePath:    path,
		StartLine:   fn.StartLine,
		EndLine:     fn.EndLine,
		Properties:  props,
	}}
	for _, p := range fn.Parameters {
		nodes = append(nodes, b.variableNode(path, fn.Name, &p))
	}
	for _, l := range fn.Locals {
		nodes = append(nodes, b.variableNode(path, fn.Name, &l))
	}
	for _, d := range fn.Decorators {
		nodes = append(nodes, b.decoratorNode(path, fn.Name, d, fn.StartLine))
	}
	return nodes
}

func (b *Builder) variableNode(path, scope string, v *entity.Variable) *store.Node {
	props := map[string]any{"scope_kind": string(v.ScopeKind)}
	if v.TypeText != "" {
		props["type"] = v.TypeText
	}
	if v.IsParameter {
		props["parameter"] = true
	}
	return &store.Node{
		Project:     b.graphID,
		Kind:        string(schema.NodeVariable),
		Name:        v.Name,
		CompositeID: schema.VariableNodeID(b.graphID, path, scope, v.Name, v.StartLine),
		FilePath:    path,
		StartLine:   v.StartLine,
		EndLine:     v.EndLine,
		Properties:  props,
	}
}

func (b *Builder) decoratorNode(path, owner, name string, ownerStartLine int) *store.Node {
	return &store.Node{
		Project:     b.graphID,
		Kind:        string(schema.NodeDecorator),
		Name:        name,
		CompositeID: schema.DecoratorNodeID(b.graphID, path, owner, name, ownerStartLine),
		FilePath:    path,
		StartLine:   ownerStartLine,
		EndLine:     ownerStartLine,
	}
}
