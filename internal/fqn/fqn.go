// Package fqn derives dotted qualified names for graph entities from
// their project-relative path and name chain. Composite IDs identify
// nodes; qualified names are the human-readable handle surfaced in
// query results ("pkg.service.OrderService.process").
package fqn

import (
	"path/filepath"
	"strings"
)

// Qualified returns the dotted qualified name for an entity at relPath.
// names is the containment chain, outermost first (class, then member).
// The graph is project-scoped, so no project segment is prefixed.
func Qualified(relPath string, names ...string) string {
	relPath = strings.TrimSuffix(relPath, filepath.Ext(relPath))
	parts := strings.Split(filepath.ToSlash(relPath), "/")

	// Package-marker files name their directory, not themselves.
	if n := len(parts); n > 0 && (parts[n-1] == "__init__" || parts[n-1] == "index") {
		parts = parts[:n-1]
	}

	for _, name := range names {
		if name != "" {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, ".")
}
