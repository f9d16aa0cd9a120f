package parser

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codeatlas-dev/codeatlas/internal/entity"
	"github.com/codeatlas-dev/codeatlas/internal/lang"
)

// extractImport turns one import node into an entity.Import.
//
// Python import AST structures:
//
//	import_statement
//	  dotted_name | aliased_import(name, alias)
//	import_from_statement
//	  module_name: dotted_name | relative_import
//	  name: dotted_name | aliased_import ... | wildcard_import
func (ex *extractor) extractImport(n *tree_sitter.Node) {
	line := safeRowToLine(n.StartPosition().Row)

	switch ex.language {
	case lang.Python:
		ex.extractPythonImport(n, line)

	case lang.Java:
		// import a.b.C;  /  import static a.b.C.m;  /  import a.b.*;
		text := strings.TrimSuffix(strings.TrimSpace(ex.text(n)), ";")
		text = strings.TrimPrefix(text, "import")
		text = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), "static"))
		kind := entity.ImportDirect
		if strings.HasSuffix(text, ".*") {
			kind = entity.ImportWildcard
			text = strings.TrimSuffix(text, ".*")
		}
		if text == "" {
			return
		}
		ex.pf.Imports = append(ex.pf.Imports, entity.Import{Kind: kind, Module: text, Line: line})

	case lang.Kotlin:
		text := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(ex.text(n)), "import"))
		kind := entity.ImportDirect
		if strings.HasSuffix(text, ".*") {
			kind = entity.ImportWildcard
			text = strings.TrimSuffix(text, ".*")
		}
		var names []entity.ImportedName
		if i := strings.Index(text, " as "); i > 0 {
			names = append(names, entity.ImportedName{Name: lastDotSegment(text[:i]), Alias: strings.TrimSpace(text[i+4:])})
			text = text[:i]
		}
		if text == "" {
			return
		}
		ex.pf.Imports = append(ex.pf.Imports, entity.Import{Kind: kind, Module: text, Names: names, Line: line})

	case lang.JavaScript, lang.TypeScript:
		src := n.ChildByFieldName("source")
		module := stripQuotes(ex.text(src))
		if module == "" {
			return
		}
		imp := entity.Import{Kind: entity.ImportFrom, Module: module, Line: line}
		for _, spec := range descendantsOfKind(n, "import_specifier") {
			imp.Names = append(imp.Names, entity.ImportedName{
				Name:  ex.text(spec.ChildByFieldName("name")),
				Alias: ex.text(spec.ChildByFieldName("alias")),
			})
		}
		if clause := firstChildOfKind(n, "import_clause"); clause != nil {
			if def := firstChildOfKind(clause, "identifier"); def != nil {
				imp.Names = append(imp.Names, entity.ImportedName{Name: ex.text(def)})
			}
			if firstDescendantOfKind(clause, "namespace_import") != nil {
				imp.Kind = entity.ImportWildcard
			}
		}
		ex.pf.Imports = append(ex.pf.Imports, imp)

	case lang.Go:
		for _, spec := range descendantsOfKind(n, "import_spec") {
			path := stripQuotes(ex.text(spec.ChildByFieldName("path")))
			if path == "" {
				continue
			}
			imp := entity.Import{Kind: entity.ImportDirect, Module: path, Line: safeRowToLine(spec.StartPosition().Row)}
			if name := spec.ChildByFieldName("name"); name != nil {
				alias := ex.text(name)
				if alias != "_" && alias != "." {
					imp.Names = append(imp.Names, entity.ImportedName{Name: lastSlashSegment(path), Alias: alias})
				}
			}
			ex.pf.Imports = append(ex.pf.Imports, imp)
		}
	}
}

func (ex *extractor) extractPythonImport(n *tree_sitter.Node, line int) {
	switch n.Kind() {
	case "import_statement":
		for i := uint(0); i < n.ChildCount(); i++ {
			c := n.Child(i)
			if c == nil {
				continue
			}
			switch c.Kind() {
			case "dotted_name":
				ex.pf.Imports = append(ex.pf.Imports, entity.Import{
					Kind: entity.ImportDirect, Module: ex.text(c), Line: line,
				})
			case "aliased_import":
				ex.pf.Imports = append(ex.pf.Imports, entity.Import{
					Kind:   entity.ImportDirect,
					Module: ex.text(c.ChildByFieldName("name")),
					Names: []entity.ImportedName{{
						Name:  ex.text(c.ChildByFieldName("name")),
						Alias: ex.text(c.ChildByFieldName("alias")),
					}},
					Line: line,
				})
			}
		}

	case "import_from_statement":
		imp := entity.Import{Kind: entity.ImportFrom, Line: line}
		if mod := n.ChildByFieldName("module_name"); mod != nil {
			if mod.Kind() == "relative_import" {
				text := ex.text(mod)
				imp.Level = strings.Count(text, ".") - strings.Count(strings.TrimLeft(text, "."), ".")
				imp.Module = strings.TrimLeft(text, ".")
			} else {
				imp.Module = ex.text(mod)
			}
		}
		wildcard := false
		for i := uint(0); i < n.ChildCount(); i++ {
			c := n.Child(i)
			if c == nil {
				continue
			}
			switch c.Kind() {
			case "wildcard_import":
				wildcard = true
			case "dotted_name":
				if mod := n.ChildByFieldName("module_name"); mod != nil && c.Id() == mod.Id() {
					continue
				}
				imp.Names = append(imp.Names, entity.ImportedName{Name: ex.text(c)})
			case "aliased_import":
				imp.Names = append(imp.Names, entity.ImportedName{
					Name:  ex.text(c.ChildByFieldName("name")),
					Alias: ex.text(c.ChildByFieldName("alias")),
				})
			}
		}
		if wildcard {
			imp.Kind = entity.ImportWildcard
		}
		ex.pf.Imports = append(ex.pf.Imports, imp)
	}
}

func stripQuotes(s string) string {
	return strings.Trim(s, `"'`+"`")
}

func lastDotSegment(s string) string {
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[i+1:]
	}
	return s
}

func lastSlashSegment(s string) string {
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		return s[i+1:]
	}
	return s
}
