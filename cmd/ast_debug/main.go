// Command ast_debug prints the tree-sitter parse tree of a source file,
// for working out node kinds when extending the extractors.
package main

import (
	"fmt"
	"os"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codeatlas-dev/codeatlas/internal/lang"
	"github.com/codeatlas-dev/codeatlas/internal/parser"
)

func printAST(node *tree_sitter.Node, source []byte, indent int) {
	if node == nil {
		return
	}
	prefix := ""
	for i := 0; i < indent; i++ {
		prefix += "  "
	}
	parentKind := "nil"
	if node.Parent() != nil {
		parentKind = node.Parent().Kind()
	}
	text := string(source[node.StartByte():node.EndByte()])
	if len(text) > 60 {
		text = text[:60] + "..."
	}
	fmt.Printf("%s%s (parent=%s) %q\n", prefix, node.Kind(), parentKind, text)
	for i := uint(0); i < node.ChildCount(); i++ {
		printAST(node.Child(i), source, indent+1)
	}
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: ast_debug <source-file>")
		os.Exit(2)
	}
	path := os.Args[1]

	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	spec := lang.NewRegistry().ForPath(path)
	if spec == nil {
		fmt.Fprintln(os.Stderr, "no language registered for", path)
		os.Exit(1)
	}

	tree, err := parser.Parse(spec.Language, source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse %s as %s: %v\n", path, spec.Language, err)
		os.Exit(1)
	}
	defer tree.Close()

	fmt.Printf("=== %s (%s) ===\n", path, spec.Language)
	printAST(tree.RootNode(), source, 0)
}
