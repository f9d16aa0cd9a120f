// Package schema defines the graph's node and edge kinds and the
// deterministic composite-ID derivation used as the sole upsert key.
// Everything here is a pure function of its inputs: same parsed file,
// same graph id, same IDs, every run.
package schema

import (
	"fmt"
	"time"

	"github.com/codeatlas-dev/codeatlas/internal/entity"
)

// NodeKind labels a persisted node.
type NodeKind string

const (
	NodeProject       NodeKind = "Project"
	NodeFile          NodeKind = "File"
	NodeModule        NodeKind = "Module"
	NodeClass         NodeKind = "Class"
	NodeFunction      NodeKind = "Function"
	NodeMethod        NodeKind = "Method"
	NodeVariable      NodeKind = "Variable"
	NodeDecorator     NodeKind = "Decorator"
	NodeExceptionType NodeKind = "ExceptionType"
)

// EdgeKind labels a persisted relationship.
type EdgeKind string

const (
	EdgePartOfProject     EdgeKind = "PART_OF_PROJECT"
	EdgeDefinedIn         EdgeKind = "DEFINED_IN"
	EdgeDefinedInClass    EdgeKind = "DEFINED_IN_CLASS"
	EdgeInheritsFrom      EdgeKind = "INHERITS_FROM"
	EdgeHasParameter      EdgeKind = "HAS_PARAMETER"
	EdgeDeclaresVariable  EdgeKind = "DECLARES_VARIABLE"
	EdgeDeclaresAttribute EdgeKind = "DECLARES_ATTRIBUTE"
	EdgeUsesVariable      EdgeKind = "USES_VARIABLE"
	EdgeModifiesVariable  EdgeKind = "MODIFIES_VARIABLE"
	EdgeCreatesObject     EdgeKind = "CREATES_OBJECT"
	EdgeCalls             EdgeKind = "CALLS"
	EdgeImportsModule     EdgeKind = "IMPORTS_MODULE"
	EdgeHasDecorator      EdgeKind = "HAS_DECORATOR"
	EdgeRaisesException   EdgeKind = "RAISES_EXCEPTION"
	EdgeHandlesException  EdgeKind = "HANDLES_EXCEPTION"
)

// GraphID builds the project-scoped graph identifier. The format is load
// bearing: existing graph data is keyed by it, so it must not change.
func GraphID(appPrefix, projectID string) string {
	return fmt.Sprintf("%s_project_%s", appPrefix, projectID)
}

// ScanGraphID builds a scan-scoped graph identifier, isolating one scan's
// graph from the project's long-lived graph.
func ScanGraphID(appPrefix, projectID, scanType, scanID string, ts time.Time) string {
	return fmt.Sprintf("%s_project_%s_%s_%s_%d", appPrefix, projectID, scanType, scanID, ts.Unix())
}

// ProjectNodeID is the ID of the Project node itself.
func ProjectNodeID(graphID string) string { return graphID }

// FileNodeID identifies a File node by its project-relative path.
func FileNodeID(graphID, path string) string {
	return fmt.Sprintf("%s:%s", graphID, path)
}

// ModuleNodeID identifies an import-target Module node. Modules are
// project-scoped, not file-scoped: many files import the same module.
func ModuleNodeID(graphID, module string) string {
	return fmt.Sprintf("%s:module:%s", graphID, module)
}

// ExceptionTypeNodeID identifies an ExceptionType node. Like modules,
// exception types are shared across files and merged, never deleted.
func ExceptionTypeNodeID(graphID, name string) string {
	return fmt.Sprintf("%s:exception:%s", graphID, name)
}

// EntityNodeID is the composite ID for file-scoped entities (classes,
// functions, methods, variables): graph id, file path, qualifying scope
// (owning class or function, "" at file level), name, start line.
func EntityNodeID(graphID, path, scopeOrClass, name string, startLine int) string {
	return fmt.Sprintf("%s:%s:%s:%s:%d", graphID, path, scopeOrClass, name, startLine)
}

// ClassNodeID identifies a top-level class in a file.
func ClassNodeID(graphID, path, name string, startLine int) string {
	return EntityNodeID(graphID, path, "", name, startLine)
}

// FunctionNodeID identifies a function; ownerClass is "" for free functions.
func FunctionNodeID(graphID, path, ownerClass, name string, startLine int) string {
	return EntityNodeID(graphID, path, ownerClass, name, startLine)
}

// VariableNodeID identifies a variable under its owning scope name.
func VariableNodeID(graphID, path, scope, name string, startLine int) string {
	return EntityNodeID(graphID, path, scope, name, startLine)
}

// DecoratorNodeID identifies a decorator application on an owner within a
// file. Decorators carry no line of their own; the owner's start line keys
// the application site.
func DecoratorNodeID(graphID, path, owner, name string, ownerStartLine int) string {
	return EntityNodeID(graphID, path, owner, name, ownerStartLine)
}

// PlaceholderClassNodeID identifies a superclass seen only by name, with
// no known definition site. Placeholders are merged, never deleted, and
// are replaced in meaning (not identity) if the real definition shows up
// under its own file-scoped ID.
func PlaceholderClassNodeID(graphID, name string) string {
	return fmt.Sprintf("%s:class:%s", graphID, name)
}

// FileSubgraphIDs returns every composite ID scoped under one file:
// the IDs the builder deletes before a rebuild and re-creates after. The
// File node's own ID is not included; the builder re-merges it separately.
func FileSubgraphIDs(graphID string, pf *entity.ParsedFile) []string {
	var ids []string
	for _, v := range pf.Globals {
		ids = append(ids, VariableNodeID(graphID, pf.Path, "", v.Name, v.StartLine))
	}
	for i := range pf.Classes {
		c := &pf.Classes[i]
		ids = append(ids, ClassNodeID(graphID, pf.Path, c.Name, c.StartLine))
		for _, a := range c.Attributes {
			ids = append(ids, VariableNodeID(graphID, pf.Path, c.Name, a.Name, a.StartLine))
		}
		for _, d := range c.Decorators {
			ids = append(ids, DecoratorNodeID(graphID, pf.Path, c.Name, d, c.StartLine))
		}
		for j := range c.Methods {
			ids = append(ids, functionSubgraphIDs(graphID, pf.Path, c.Name, &c.Methods[j])...)
		}
	}
	for i := range pf.Functions {
		ids = append(ids, functionSubgraphIDs(graphID, pf.Path, "", &pf.Functions[i])...)
	}
	return ids
}

func functionSubgraphIDs(graphID, path, ownerClass string, fn *entity.Function) []string {
	ids := []string{FunctionNodeID(graphID, path, ownerClass, fn.Name, fn.StartLine)}
	for _, p := range fn.Parameters {
		ids = append(ids, VariableNodeID(graphID, path, fn.Name, p.Name, p.StartLine))
	}
	for _, l := range fn.Locals {
		ids = append(ids, VariableNodeID(graphID, path, fn.Name, l.Name, l.StartLine))
	}
	for _, d := range fn.Decorators {
		ids = append(ids, DecoratorNodeID(graphID, path, fn.Name, d, fn.StartLine))
	}
	return ids
}

// KindForFunction distinguishes Method from Function nodes.
func KindForFunction(ownerClass string) NodeKind {
	if ownerClass != "" {
		return NodeMethod
	}
	return NodeFunction
}
