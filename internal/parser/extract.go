package parser

import (
	"strings"
	"unicode"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codeatlas-dev/codeatlas/internal/entity"
	"github.com/codeatlas-dev/codeatlas/internal/lang"
)

// extractor walks one parsed tree and fills a ParsedFile. It makes two
// passes: first collecting class names (needed for constructor guessing),
// then extracting entities.
type extractor struct {
	language   lang.Language
	spec       *lang.LanguageSpec
	path       string
	src        []byte
	pf         *entity.ParsedFile
	classNames map[string]bool
}

func newExtractor(l lang.Language, spec *lang.LanguageSpec, path string, src []byte) *extractor {
	return &extractor{
		language:   l,
		spec:       spec,
		path:       path,
		src:        src,
		pf:         &entity.ParsedFile{Path: path, Language: string(l)},
		classNames: make(map[string]bool),
	}
}

func (ex *extractor) text(n *tree_sitter.Node) string {
	if n == nil {
		return ""
	}
	return NodeText(n, ex.src)
}

func (ex *extractor) run(root *tree_sitter.Node) {
	Walk(root, func(n *tree_sitter.Node) bool {
		if contains(ex.spec.ClassNodeTypes, n.Kind()) {
			if name := ex.className(n); name != "" {
				ex.classNames[name] = true
			}
		}
		return true
	})

	Walk(root, func(n *tree_sitter.Node) bool {
		kind := n.Kind()
		switch {
		case contains(ex.spec.ImportNodeTypes, kind):
			ex.extractImport(n)
			return false
		case contains(ex.spec.ClassNodeTypes, kind):
			ex.extractClass(n)
			return false
		case contains(ex.spec.FunctionNodeTypes, kind):
			fn := ex.extractFunction(n, "")
			if fn != nil {
				ex.pf.Functions = append(ex.pf.Functions, *fn)
			}
			return false
		}
		return true
	})

	ex.extractGlobals(root)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func isCapitalized(s string) bool {
	if s == "" {
		return false
	}
	return unicode.IsUpper(rune(s[0]))
}

func firstChildOfKind(n *tree_sitter.Node, kinds ...string) *tree_sitter.Node {
	if n == nil {
		return nil
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		for _, k := range kinds {
			if c.Kind() == k {
				return c
			}
		}
	}
	return nil
}

func childrenOfKind(n *tree_sitter.Node, kinds ...string) []*tree_sitter.Node {
	if n == nil {
		return nil
	}
	var out []*tree_sitter.Node
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		for _, k := range kinds {
			if c.Kind() == k {
				out = append(out, c)
			}
		}
	}
	return out
}

// descendantsOfKind collects all descendants matching one of kinds.
func descendantsOfKind(n *tree_sitter.Node, kinds ...string) []*tree_sitter.Node {
	var out []*tree_sitter.Node
	Walk(n, func(c *tree_sitter.Node) bool {
		for _, k := range kinds {
			if c.Kind() == k {
				out = append(out, c)
				return true
			}
		}
		return true
	})
	return out
}

// className resolves the declared name of a class-like node.
func (ex *extractor) className(n *tree_sitter.Node) string {
	switch ex.language {
	case lang.Kotlin:
		return ex.text(firstChildOfKind(n, "type_identifier", "simple_identifier"))
	default:
		return ex.text(n.ChildByFieldName("name"))
	}
}

func (ex *extractor) extractClass(n *tree_sitter.Node) {
	name := ex.className(n)
	if name == "" {
		return
	}

	c := entity.Class{
		Name:      name,
		StartLine: safeRowToLine(n.StartPosition().Row),
		EndLine:   safeRowToLine(n.EndPosition().Row),
	}
	c.Supers = ex.superclasses(n)
	c.Decorators = ex.decorators(n)
	if ex.isAbstract(n) {
		c.Attrs |= entity.AttrAbstract
	}
	if isCapitalized(name) || ex.language == lang.Python {
		c.Attrs |= entity.AttrExported
	}

	body := ex.classBody(n)
	if body != nil {
		ex.extractClassMembers(body, &c)
	}
	// Kotlin: val/var primary-constructor parameters declare attributes.
	if ex.language == lang.Kotlin {
		ex.extractKotlinCtorProperties(n, &c)
	}

	ex.pf.Classes = append(ex.pf.Classes, c)
}

func (ex *extractor) classBody(n *tree_sitter.Node) *tree_sitter.Node {
	if body := n.ChildByFieldName("body"); body != nil {
		// Go: the "type" field holds struct_type/interface_type.
		return body
	}
	switch ex.language {
	case lang.Go:
		return n.ChildByFieldName("type")
	case lang.Kotlin:
		return firstChildOfKind(n, "class_body")
	}
	return firstChildOfKind(n, "class_body", "enum_body", "interface_body")
}

func (ex *extractor) extractClassMembers(body *tree_sitter.Node, c *entity.Class) {
	for i := uint(0); i < body.ChildCount(); i++ {
		child := body.Child(i)
		if child == nil {
			continue
		}
		kind := child.Kind()
		switch {
		case contains(ex.spec.FunctionNodeTypes, kind):
			if fn := ex.extractFunction(child, c.Name); fn != nil {
				c.Methods = append(c.Methods, *fn)
			}
		case contains(ex.spec.FieldNodeTypes, kind):
			c.Attributes = append(c.Attributes, ex.fieldVariables(child, c.Name)...)
		default:
			ex.extractClassMemberLoose(child, c)
		}
	}
	// Go struct fields live one level down, in the field_declaration_list.
	if ex.language == lang.Go {
		for _, fd := range descendantsOfKind(body, "field_declaration") {
			c.Attributes = append(c.Attributes, ex.fieldVariables(fd, c.Name)...)
		}
	}
}

// extractClassMemberLoose handles member shapes that are not dedicated
// field nodes: Python body assignments, Kotlin properties, JS/TS field
// definitions.
func (ex *extractor) extractClassMemberLoose(n *tree_sitter.Node, c *entity.Class) {
	switch ex.language {
	case lang.Python:
		if n.Kind() == "expression_statement" {
			if assign := firstChildOfKind(n, "assignment"); assign != nil {
				if left := assign.ChildByFieldName("left"); left != nil && left.Kind() == "identifier" {
					v := entity.Variable{
						Name:      ex.text(left),
						StartLine: safeRowToLine(assign.StartPosition().Row),
						EndLine:   safeRowToLine(assign.EndPosition().Row),
						Scope:     c.Name,
						ScopeKind: entity.ScopeClassAttribute,
						TypeText:  ex.text(assign.ChildByFieldName("type")),
					}
					c.Attributes = append(c.Attributes, v)
				}
			}
		}
		if n.Kind() == "decorated_definition" {
			if def := n.ChildByFieldName("definition"); def != nil && contains(ex.spec.FunctionNodeTypes, def.Kind()) {
				if fn := ex.extractFunction(def, c.Name); fn != nil {
					c.Methods = append(c.Methods, *fn)
				}
			}
		}
	case lang.Kotlin:
		if n.Kind() == "property_declaration" {
			if id := firstDescendantOfKind(n, "simple_identifier"); id != nil {
				c.Attributes = append(c.Attributes, entity.Variable{
					Name:      ex.text(id),
					StartLine: safeRowToLine(n.StartPosition().Row),
					EndLine:   safeRowToLine(n.EndPosition().Row),
					Scope:     c.Name,
					ScopeKind: entity.ScopeClassAttribute,
				})
			}
		}
	case lang.JavaScript, lang.TypeScript:
		if n.Kind() == "field_definition" || n.Kind() == "public_field_definition" {
			if prop := n.ChildByFieldName("name"); prop != nil {
				c.Attributes = append(c.Attributes, entity.Variable{
					Name:      ex.text(prop),
					StartLine: safeRowToLine(n.StartPosition().Row),
					EndLine:   safeRowToLine(n.EndPosition().Row),
					Scope:     c.Name,
					ScopeKind: entity.ScopeClassAttribute,
					TypeText:  ex.text(n.ChildByFieldName("type")),
				})
			}
		}
	}
}

func firstDescendantOfKind(n *tree_sitter.Node, kind string) *tree_sitter.Node {
	var found *tree_sitter.Node
	Walk(n, func(c *tree_sitter.Node) bool {
		if found != nil {
			return false
		}
		if c.Kind() == kind {
			found = c
			return false
		}
		return true
	})
	return found
}

// fieldVariables extracts attribute variables from a dedicated field node
// (Java field_declaration, Go struct field_declaration).
func (ex *extractor) fieldVariables(n *tree_sitter.Node, className string) []entity.Variable {
	var out []entity.Variable
	line := safeRowToLine(n.StartPosition().Row)
	endLine := safeRowToLine(n.EndPosition().Row)
	typeText := ex.text(n.ChildByFieldName("type"))

	switch ex.language {
	case lang.Java:
		for _, d := range childrenOfKind(n, "variable_declarator") {
			out = append(out, entity.Variable{
				Name:      ex.text(d.ChildByFieldName("name")),
				StartLine: line, EndLine: endLine,
				Scope: className, ScopeKind: entity.ScopeClassAttribute,
				TypeText: typeText,
			})
		}
	case lang.Go:
		names := childrenOfKind(n, "field_identifier")
		if len(names) == 0 {
			// Embedded type: record it as a super instead of a field.
			return nil
		}
		for _, id := range names {
			out = append(out, entity.Variable{
				Name:      ex.text(id),
				StartLine: line, EndLine: endLine,
				Scope: className, ScopeKind: entity.ScopeStructField,
				TypeText: typeText,
			})
		}
	default:
		if name := n.ChildByFieldName("name"); name != nil {
			out = append(out, entity.Variable{
				Name:      ex.text(name),
				StartLine: line, EndLine: endLine,
				Scope: className, ScopeKind: entity.ScopeClassAttribute,
				TypeText: typeText,
			})
		}
	}
	return out
}

// extractKotlinCtorProperties lifts `val`/`var` primary-constructor
// parameters into class attributes.
func (ex *extractor) extractKotlinCtorProperties(n *tree_sitter.Node, c *entity.Class) {
	ctor := firstChildOfKind(n, "primary_constructor")
	if ctor == nil {
		return
	}
	for _, p := range descendantsOfKind(ctor, "class_parameter") {
		txt := ex.text(p)
		if !strings.Contains(txt, "val ") && !strings.Contains(txt, "var ") {
			continue
		}
		if id := firstDescendantOfKind(p, "simple_identifier"); id != nil {
			c.Attributes = append(c.Attributes, entity.Variable{
				Name:      ex.text(id),
				StartLine: safeRowToLine(p.StartPosition().Row),
				EndLine:   safeRowToLine(p.EndPosition().Row),
				Scope:     c.Name,
				ScopeKind: entity.ScopeClassAttribute,
			})
		}
	}
}

// superclasses extracts superclass/interface names as written.
func (ex *extractor) superclasses(n *tree_sitter.Node) []string {
	var out []string
	switch ex.language {
	case lang.Python:
		if args := n.ChildByFieldName("superclasses"); args != nil {
			for i := uint(0); i < args.ChildCount(); i++ {
				c := args.Child(i)
				if c != nil && (c.Kind() == "identifier" || c.Kind() == "attribute") {
					out = append(out, ex.text(c))
				}
			}
		}
	case lang.Java:
		for _, clause := range childrenOfKind(n, "superclass", "super_interfaces", "extends_interfaces") {
			for _, t := range descendantsOfKind(clause, "type_identifier", "generic_type") {
				if t.Kind() == "generic_type" {
					out = append(out, ex.text(firstChildOfKind(t, "type_identifier")))
				} else if t.Parent() != nil && t.Parent().Kind() != "generic_type" {
					out = append(out, ex.text(t))
				}
			}
		}
	case lang.Kotlin:
		for _, spec := range descendantsOfKind(n, "delegation_specifier") {
			if t := firstDescendantOfKind(spec, "type_identifier"); t != nil {
				out = append(out, ex.text(t))
			}
		}
	case lang.JavaScript:
		if heritage := firstChildOfKind(n, "class_heritage"); heritage != nil {
			for i := uint(0); i < heritage.ChildCount(); i++ {
				c := heritage.Child(i)
				if c != nil && (c.Kind() == "identifier" || c.Kind() == "member_expression") {
					out = append(out, ex.text(c))
				}
			}
		}
	case lang.TypeScript:
		for _, clause := range descendantsOfKind(n, "extends_clause", "implements_clause") {
			for _, t := range descendantsOfKind(clause, "identifier", "type_identifier") {
				out = append(out, ex.text(t))
			}
		}
	case lang.Go:
		// Embedded types in struct/interface bodies.
		if body := ex.classBody(n); body != nil {
			for _, fd := range descendantsOfKind(body, "field_declaration") {
				if firstChildOfKind(fd, "field_identifier") != nil {
					continue
				}
				if t := firstDescendantOfKind(fd, "type_identifier"); t != nil {
					out = append(out, ex.text(t))
				}
			}
		}
	}
	return out
}

func (ex *extractor) isAbstract(n *tree_sitter.Node) bool {
	switch ex.language {
	case lang.Java:
		if mods := firstChildOfKind(n, "modifiers"); mods != nil {
			return strings.Contains(ex.text(mods), "abstract")
		}
	case lang.Kotlin:
		if mods := firstChildOfKind(n, "modifiers"); mods != nil {
			return strings.Contains(ex.text(mods), "abstract")
		}
	case lang.TypeScript:
		return n.Kind() == "abstract_class_declaration"
	}
	return false
}

// funcName resolves a function's declared name, including names that live
// on a parent (JS arrow functions assigned to variables).
func (ex *extractor) funcName(n *tree_sitter.Node, ownerClass string) string {
	switch ex.language {
	case lang.Kotlin:
		if n.Kind() == "secondary_constructor" {
			return ownerClass
		}
		return ex.text(firstChildOfKind(n, "simple_identifier"))
	case lang.JavaScript, lang.TypeScript:
		if name := n.ChildByFieldName("name"); name != nil {
			return ex.text(name)
		}
		// const f = () => {}  /  const g = function() {}
		if p := n.Parent(); p != nil && p.Kind() == "variable_declarator" {
			return ex.text(p.ChildByFieldName("name"))
		}
		if p := n.Parent(); p != nil && p.Kind() == "pair" {
			return ex.text(p.ChildByFieldName("key"))
		}
		return ""
	default:
		return ex.text(n.ChildByFieldName("name"))
	}
}

func (ex *extractor) extractFunction(n *tree_sitter.Node, ownerClass string) *entity.Function {
	// Go methods carry their receiver type; it overrides ownerClass.
	if ex.language == lang.Go && n.Kind() == "method_declaration" {
		if recv := ex.goReceiverType(n); recv != "" {
			ownerClass = recv
		}
	}

	name := ex.funcName(n, ownerClass)
	if name == "" {
		return nil
	}

	fn := &entity.Function{
		Name:       name,
		StartLine:  safeRowToLine(n.StartPosition().Row),
		EndLine:    safeRowToLine(n.EndPosition().Row),
		OwnerClass: ownerClass,
	}
	if params := ex.paramsNode(n); params != nil {
		fn.Signature = ex.text(params)
		fn.Parameters = ex.parameters(params, name)
	}
	fn.Decorators = ex.decorators(n)
	ex.applyFunctionModifiers(n, fn)

	// Java: declared `throws` types count as raises.
	if ex.spec.ThrowsClauseField != "" {
		for _, t := range descendantsOfKind(n, "throws") {
			for _, id := range descendantsOfKind(t, "type_identifier") {
				fn.Raises = append(fn.Raises, ex.text(id))
			}
		}
	}

	if body := ex.funcBody(n); body != nil {
		ex.scanBody(body, fn, ownerClass)
	}
	return fn
}

func (ex *extractor) paramsNode(n *tree_sitter.Node) *tree_sitter.Node {
	if p := n.ChildByFieldName("parameters"); p != nil {
		return p
	}
	if ex.language == lang.Kotlin {
		return firstChildOfKind(n, "function_value_parameters")
	}
	return nil
}

func (ex *extractor) funcBody(n *tree_sitter.Node) *tree_sitter.Node {
	if body := n.ChildByFieldName("body"); body != nil {
		return body
	}
	switch ex.language {
	case lang.Kotlin:
		return firstChildOfKind(n, "function_body", "statements", "block")
	case lang.Java:
		return firstChildOfKind(n, "block", "constructor_body")
	}
	return firstChildOfKind(n, "statement_block", "block")
}

func (ex *extractor) parameters(params *tree_sitter.Node, fnName string) []entity.Variable {
	var out []entity.Variable
	add := func(nameNode, typeNode *tree_sitter.Node, holder *tree_sitter.Node) {
		name := ex.text(nameNode)
		if name == "" {
			return
		}
		out = append(out, entity.Variable{
			Name:        name,
			StartLine:   safeRowToLine(holder.StartPosition().Row),
			EndLine:     safeRowToLine(holder.EndPosition().Row),
			Scope:       fnName,
			ScopeKind:   entity.ScopeParameter,
			TypeText:    ex.text(typeNode),
			IsParameter: true,
		})
	}

	for i := uint(0); i < params.ChildCount(); i++ {
		p := params.Child(i)
		if p == nil {
			continue
		}
		switch p.Kind() {
		case "identifier", "simple_identifier":
			add(p, nil, p)
		case "typed_parameter", "list_splat_pattern", "dictionary_splat_pattern":
			add(firstChildOfKind(p, "identifier"), p.ChildByFieldName("type"), p)
		case "default_parameter", "typed_default_parameter", "optional_parameter",
			"required_parameter", "formal_parameter", "spread_parameter", "parameter",
			"parameter_declaration", "assignment_pattern":
			nameNode := p.ChildByFieldName("name")
			if nameNode == nil {
				nameNode = p.ChildByFieldName("pattern")
			}
			if nameNode == nil {
				nameNode = p.ChildByFieldName("left")
			}
			if nameNode == nil {
				nameNode = firstChildOfKind(p, "identifier", "simple_identifier")
			}
			add(nameNode, p.ChildByFieldName("type"), p)
			// Go groups several names under one declaration: (a, b int).
			if ex.language == lang.Go {
				ids := childrenOfKind(p, "identifier")
				for _, id := range ids[1:] {
					add(id, p.ChildByFieldName("type"), p)
				}
			}
		}
	}
	return out
}

func (ex *extractor) goReceiverType(n *tree_sitter.Node) string {
	recv := n.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	if t := firstDescendantOfKind(recv, "type_identifier"); t != nil {
		return ex.text(t)
	}
	return ""
}

// applyFunctionModifiers tags async/suspend/extension markers and the
// exported flag. Downstream heuristics depend on these.
func (ex *extractor) applyFunctionModifiers(n *tree_sitter.Node, fn *entity.Function) {
	switch ex.language {
	case lang.Python:
		if c := n.Child(0); c != nil && c.Kind() == "async" {
			fn.Attrs |= entity.AttrAsync
		}
		if !strings.HasPrefix(fn.Name, "_") {
			fn.Attrs |= entity.AttrExported
		}
	case lang.Kotlin:
		if mods := firstChildOfKind(n, "modifiers"); mods != nil {
			if strings.Contains(ex.text(mods), "suspend") {
				fn.Attrs |= entity.AttrSuspend
			}
		}
		// Receiver type before the name marks an extension function.
		for i := uint(0); i < n.ChildCount(); i++ {
			c := n.Child(i)
			if c == nil {
				continue
			}
			if c.Kind() == "simple_identifier" {
				break
			}
			if c.Kind() == "user_type" || c.Kind() == "nullable_type" {
				fn.Attrs |= entity.AttrExtension
				break
			}
		}
		fn.Attrs |= entity.AttrExported
	case lang.JavaScript, lang.TypeScript:
		for i := uint(0); i < n.ChildCount(); i++ {
			if c := n.Child(i); c != nil && c.Kind() == "async" {
				fn.Attrs |= entity.AttrAsync
				break
			}
		}
		fn.Attrs |= entity.AttrExported
	case lang.Go:
		if isCapitalized(fn.Name) {
			fn.Attrs |= entity.AttrExported
		}
	case lang.Java:
		fn.Attrs |= entity.AttrExported
	}

	if fn.Attrs.Has(entity.AttrAsync) {
		fn.Decorators = append(fn.Decorators, "async")
	}
	if fn.Attrs.Has(entity.AttrSuspend) {
		fn.Decorators = append(fn.Decorators, "suspend")
	}
	if fn.Attrs.Has(entity.AttrExtension) {
		fn.Decorators = append(fn.Decorators, "extension")
	}
}

// decorators extracts decorator/annotation strings for a definition node.
func (ex *extractor) decorators(n *tree_sitter.Node) []string {
	if len(ex.spec.DecoratorNodeTypes) == 0 {
		return nil
	}
	var out []string
	clean := func(s string) string {
		s = strings.TrimPrefix(s, "@")
		if i := strings.IndexByte(s, '('); i > 0 {
			s = s[:i]
		}
		return strings.TrimSpace(s)
	}

	switch ex.language {
	case lang.Python:
		if p := n.Parent(); p != nil && p.Kind() == "decorated_definition" {
			for _, d := range childrenOfKind(p, "decorator") {
				out = append(out, clean(ex.text(d)))
			}
		}
	case lang.Java, lang.Kotlin:
		if mods := firstChildOfKind(n, "modifiers"); mods != nil {
			for _, d := range descendantsOfKind(mods, ex.spec.DecoratorNodeTypes...) {
				out = append(out, clean(ex.text(d)))
			}
		}
	case lang.TypeScript:
		for _, d := range childrenOfKind(n, "decorator") {
			out = append(out, clean(ex.text(d)))
		}
	}
	return out
}

// extractGlobals records module-level variables.
func (ex *extractor) extractGlobals(root *tree_sitter.Node) {
	addGlobal := func(nameNode, typeNode, holder *tree_sitter.Node) {
		name := ex.text(nameNode)
		if name == "" {
			return
		}
		ex.pf.Globals = append(ex.pf.Globals, entity.Variable{
			Name:      name,
			StartLine: safeRowToLine(holder.StartPosition().Row),
			EndLine:   safeRowToLine(holder.EndPosition().Row),
			ScopeKind: entity.ScopeGlobal,
			TypeText:  ex.text(typeNode),
		})
	}

	for i := uint(0); i < root.ChildCount(); i++ {
		n := root.Child(i)
		if n == nil {
			continue
		}
		switch ex.language {
		case lang.Python:
			if n.Kind() == "expression_statement" {
				if assign := firstChildOfKind(n, "assignment"); assign != nil {
					if left := assign.ChildByFieldName("left"); left != nil && left.Kind() == "identifier" {
						addGlobal(left, assign.ChildByFieldName("type"), assign)
					}
				}
			}
		case lang.Go:
			if n.Kind() == "var_declaration" || n.Kind() == "const_declaration" {
				for _, spec := range descendantsOfKind(n, "var_spec", "const_spec") {
					for _, id := range childrenOfKind(spec, "identifier") {
						addGlobal(id, spec.ChildByFieldName("type"), spec)
					}
				}
			}
		case lang.JavaScript, lang.TypeScript:
			if n.Kind() == "lexical_declaration" || n.Kind() == "variable_declaration" {
				for _, d := range childrenOfKind(n, "variable_declarator") {
					if v := d.ChildByFieldName("value"); v != nil {
						k := v.Kind()
						if k == "arrow_function" || k == "function_expression" || k == "function" {
							continue // extracted as a function already
						}
					}
					addGlobal(d.ChildByFieldName("name"), d.ChildByFieldName("type"), d)
				}
			}
		case lang.Kotlin:
			if n.Kind() == "property_declaration" {
				if id := firstDescendantOfKind(n, "simple_identifier"); id != nil {
					addGlobal(id, nil, n)
				}
			}
		}
	}
}
