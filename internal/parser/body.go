package parser

import (
	"strconv"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codeatlas-dev/codeatlas/internal/entity"
	"github.com/codeatlas-dev/codeatlas/internal/lang"
)

// scanBody walks one function body and records calls, locals, variable
// references, object creations and exception flow. ownClass is the
// enclosing class name ("" for free functions).
func (ex *extractor) scanBody(body *tree_sitter.Node, fn *entity.Function, ownClass string) {
	localSeen := make(map[string]bool)
	useSeen := make(map[string]bool)

	addLocal := func(name string, line int) {
		if name == "" || localSeen[name] {
			return
		}
		localSeen[name] = true
		fn.Locals = append(fn.Locals, entity.Variable{
			Name:      name,
			StartLine: line,
			EndLine:   line,
			Scope:     fn.Name,
			ScopeKind: entity.ScopeLocal,
		})
	}
	addUse := func(name string, line int) {
		if name == "" || name == "self" || name == "this" {
			return
		}
		key := name + ":" + strconv.Itoa(line)
		if useSeen[key] {
			return
		}
		useSeen[key] = true
		fn.Uses = append(fn.Uses, entity.VarRef{Name: name, Line: line})
	}

	Walk(body, func(n *tree_sitter.Node) bool {
		kind := n.Kind()
		line := safeRowToLine(n.StartPosition().Row)

		switch {
		case contains(ex.spec.FunctionNodeTypes, kind):
			// Nested function/lambda bodies belong to their own scope;
			// JS method shorthand aside, don't descend.
			if ex.language == lang.JavaScript || ex.language == lang.TypeScript {
				return true
			}
			return false

		case contains(ex.spec.CallNodeTypes, kind):
			ex.extractCall(n, fn, ownClass, line)
			return true // nested calls in arguments

		case contains(ex.spec.ThrowNodeTypes, kind):
			ex.extractThrow(n, fn)
			return true

		case contains(ex.spec.CatchNodeTypes, kind):
			for _, name := range ex.catchTypes(n) {
				fn.Handles = append(fn.Handles, name)
			}
			return true

		case contains(ex.spec.AssignmentNodeTypes, kind):
			for _, ref := range ex.assignmentTargets(n) {
				fn.Modifies = append(fn.Modifies, entity.VarRef{Name: ref.name, Line: line})
				// Python locals are introduced by assignment; everywhere
				// else a bare assignment writes an outer binding.
				if ex.language == lang.Python && !ref.attr {
					addLocal(ref.name, line)
				}
			}
			return true

		case contains(ex.spec.VariableNodeTypes, kind) && !contains(ex.spec.AssignmentNodeTypes, kind):
			for _, name := range ex.declaredNames(n) {
				addLocal(name, line)
			}
			return true

		case kind == "identifier" || kind == "simple_identifier":
			if ex.isUseSite(n) {
				addUse(ex.text(n), line)
			}
			return true
		}
		return true
	})
}

// extractCall pulls (callee, base) out of a call node, classifies it and
// records it on the function, plus a Creates ref for constructor shapes.
func (ex *extractor) extractCall(n *tree_sitter.Node, fn *entity.Function, ownClass string, line int) {
	callee, base, forced := ex.callTarget(n)
	if callee == "" {
		return
	}

	ct := forced
	if ct == "" {
		ct = ex.classify(callee, base, ownClass)
	}

	fn.Calls = append(fn.Calls, entity.Call{
		Callee:     callee,
		BaseObject: base,
		Type:       ct,
		Line:       line,
	})
	if ct == entity.CallConstructor {
		fn.Creates = append(fn.Creates, entity.ObjectRef{Class: callee, Line: line})
	}

	// Coroutine-launch names become decorator-equivalent markers on the
	// caller, once each.
	for _, launch := range ex.spec.CoroutineLaunchNames {
		if callee == launch && !contains(fn.Decorators, "coroutine:"+launch) {
			fn.Decorators = append(fn.Decorators, "coroutine:"+launch)
		}
	}
}

// callTarget resolves the callee name, receiver base and, when the shape
// itself decides the type (new X(), subscripted calls), a forced CallType.
func (ex *extractor) callTarget(n *tree_sitter.Node) (callee, base string, forced entity.CallType) {
	switch ex.language {
	case lang.Python:
		f := n.ChildByFieldName("function")
		if f == nil {
			return "", "", ""
		}
		switch f.Kind() {
		case "identifier":
			return ex.text(f), "", ""
		case "attribute":
			obj := f.ChildByFieldName("object")
			baseName := ""
			if obj != nil && obj.Kind() == "identifier" {
				baseName = ex.text(obj)
			}
			return ex.text(f.ChildByFieldName("attribute")), baseName, ""
		case "subscript":
			if v := f.ChildByFieldName("value"); v != nil && v.Kind() == "identifier" {
				return ex.text(v), "", entity.CallSubscripted
			}
			return "", "", ""
		}
		return "", "", ""

	case lang.Java:
		if n.Kind() == "object_creation_expression" {
			if t := firstDescendantOfKind(n.ChildByFieldName("type"), "type_identifier"); t != nil {
				return ex.text(t), "", entity.CallConstructor
			}
			return ex.text(n.ChildByFieldName("type")), "", entity.CallConstructor
		}
		name := ex.text(n.ChildByFieldName("name"))
		obj := n.ChildByFieldName("object")
		baseName := ""
		if obj != nil {
			if obj.Kind() == "this" {
				baseName = "this"
			} else if obj.Kind() == "identifier" {
				baseName = ex.text(obj)
			}
		}
		return name, baseName, ""

	case lang.Kotlin:
		c := n.Child(0)
		if c == nil {
			return "", "", ""
		}
		switch c.Kind() {
		case "simple_identifier":
			return ex.text(c), "", ""
		case "navigation_expression":
			suffix := firstChildOfKind(c, "navigation_suffix")
			calleeName := ""
			if suffix != nil {
				calleeName = ex.text(firstChildOfKind(suffix, "simple_identifier"))
			}
			baseName := ""
			if recv := c.Child(0); recv != nil {
				switch recv.Kind() {
				case "simple_identifier":
					baseName = ex.text(recv)
				case "this_expression":
					baseName = "this"
				}
			}
			return calleeName, baseName, ""
		}
		return "", "", ""

	case lang.JavaScript, lang.TypeScript:
		if n.Kind() == "new_expression" {
			if ctor := n.ChildByFieldName("constructor"); ctor != nil && ctor.Kind() == "identifier" {
				return ex.text(ctor), "", entity.CallConstructor
			}
			return "", "", ""
		}
		f := n.ChildByFieldName("function")
		if f == nil {
			return "", "", ""
		}
		switch f.Kind() {
		case "identifier":
			return ex.text(f), "", ""
		case "member_expression":
			obj := f.ChildByFieldName("object")
			baseName := ""
			if obj != nil {
				if obj.Kind() == "this" {
					baseName = "this"
				} else if obj.Kind() == "identifier" {
					baseName = ex.text(obj)
				}
			}
			return ex.text(f.ChildByFieldName("property")), baseName, ""
		case "subscript_expression":
			if v := f.ChildByFieldName("object"); v != nil && v.Kind() == "identifier" {
				return ex.text(v), "", entity.CallSubscripted
			}
			return "", "", ""
		}
		return "", "", ""

	case lang.Go:
		f := n.ChildByFieldName("function")
		if f == nil {
			return "", "", ""
		}
		switch f.Kind() {
		case "identifier":
			return ex.text(f), "", ""
		case "selector_expression":
			op := f.ChildByFieldName("operand")
			baseName := ""
			if op != nil && op.Kind() == "identifier" {
				baseName = ex.text(op)
			}
			return ex.text(f.ChildByFieldName("field")), baseName, ""
		case "index_expression":
			if op := f.ChildByFieldName("operand"); op != nil && op.Kind() == "identifier" {
				return ex.text(op), "", entity.CallSubscripted
			}
			return "", "", ""
		}
		return "", "", ""
	}
	return "", "", ""
}

// classify maps a (callee, base) pair to a CallType by syntactic shape.
// The constructor guess requires a capitalized name matching a class seen
// in this file.
func (ex *extractor) classify(callee, base, ownClass string) entity.CallType {
	switch {
	case base == "self" || base == "this":
		return entity.CallInstanceMethod
	case base != "" && base == ownClass:
		return entity.CallOnOwnClass
	case base != "" && isCapitalized(base):
		return entity.CallOnClass
	case base != "":
		return entity.CallOnObject
	case isCapitalized(callee) && ex.classNames[callee]:
		return entity.CallConstructor
	default:
		return entity.CallDirect
	}
}

// extractThrow records the raised exception-type name.
func (ex *extractor) extractThrow(n *tree_sitter.Node, fn *entity.Function) {
	// Kotlin reuses jump_expression for return/break; only throws count.
	if n.Kind() == "jump_expression" && !strings.HasPrefix(ex.text(n), "throw") {
		return
	}
	name := ""
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		switch c.Kind() {
		case "call", "call_expression", "object_creation_expression", "new_expression":
			callee, _, _ := ex.callTarget(c)
			name = callee
		case "identifier", "simple_identifier":
			name = ex.text(c)
		}
		if name != "" {
			break
		}
	}
	if name != "" && isCapitalized(name) {
		fn.Raises = append(fn.Raises, name)
	}
}

// catchTypes extracts handled exception-type names from a catch clause.
func (ex *extractor) catchTypes(n *tree_sitter.Node) []string {
	var out []string
	switch ex.language {
	case lang.Python:
		// except ValueError:  /  except (A, B) as e:
		for i := uint(0); i < n.ChildCount(); i++ {
			c := n.Child(i)
			if c == nil {
				continue
			}
			switch c.Kind() {
			case "identifier", "attribute":
				out = append(out, ex.text(c))
				return out
			case "tuple":
				for _, id := range descendantsOfKind(c, "identifier", "attribute") {
					if id.Parent() == c {
						out = append(out, ex.text(id))
					}
				}
				return out
			case "as_pattern":
				if v := c.Child(0); v != nil {
					out = append(out, ex.text(v))
				}
				return out
			}
		}
	case lang.Java:
		for _, t := range descendantsOfKind(n, "catch_type") {
			for _, id := range descendantsOfKind(t, "type_identifier") {
				out = append(out, ex.text(id))
			}
		}
	case lang.Kotlin:
		if t := firstDescendantOfKind(n, "type_identifier"); t != nil {
			out = append(out, ex.text(t))
		}
	}
	// JS/TS catch clauses carry no type.
	return out
}

// assignTarget is one written-to name; attr marks attribute-style writes
// (self.x / this.x / receiver fields) as opposed to bare bindings.
type assignTarget struct {
	name string
	attr bool
}

// assignmentTargets returns the written-to names on the left of an
// assignment. self.x / this.x become the bare attribute name.
func (ex *extractor) assignmentTargets(n *tree_sitter.Node) []assignTarget {
	var out []assignTarget
	var push func(node *tree_sitter.Node)
	push = func(node *tree_sitter.Node) {
		if node == nil {
			return
		}
		switch node.Kind() {
		case "identifier", "simple_identifier":
			out = append(out, assignTarget{name: ex.text(node)})
		case "attribute": // Python self.x
			obj := node.ChildByFieldName("object")
			if obj != nil && obj.Kind() == "identifier" && ex.text(obj) == "self" {
				out = append(out, assignTarget{name: ex.text(node.ChildByFieldName("attribute")), attr: true})
			}
		case "member_expression": // JS this.x
			obj := node.ChildByFieldName("object")
			if obj != nil && obj.Kind() == "this" {
				out = append(out, assignTarget{name: ex.text(node.ChildByFieldName("property")), attr: true})
			}
		case "field_access": // Java this.x
			obj := node.ChildByFieldName("object")
			if obj != nil && obj.Kind() == "this" {
				out = append(out, assignTarget{name: ex.text(node.ChildByFieldName("field")), attr: true})
			}
		case "selector_expression": // Go receiver field
			out = append(out, assignTarget{name: ex.text(node.ChildByFieldName("field")), attr: true})
		case "expression_list", "pattern_list", "tuple_pattern":
			for i := uint(0); i < node.ChildCount(); i++ {
				push(node.Child(i))
			}
		case "navigation_expression": // Kotlin this.x
			if recv := node.Child(0); recv != nil && recv.Kind() == "this_expression" {
				if suffix := firstChildOfKind(node, "navigation_suffix"); suffix != nil {
					out = append(out, assignTarget{name: ex.text(firstChildOfKind(suffix, "simple_identifier")), attr: true})
				}
			}
		}
	}

	if left := n.ChildByFieldName("left"); left != nil {
		push(left)
		return out
	}
	// Kotlin assignment has no named field; the target is child 0.
	push(n.Child(0))
	return out
}

// declaredNames returns names introduced by a declaration node.
func (ex *extractor) declaredNames(n *tree_sitter.Node) []string {
	var out []string
	switch ex.language {
	case lang.Java:
		for _, d := range descendantsOfKind(n, "variable_declarator") {
			out = append(out, ex.text(d.ChildByFieldName("name")))
		}
	case lang.Go:
		switch n.Kind() {
		case "short_var_declaration":
			if left := n.ChildByFieldName("left"); left != nil {
				for _, id := range childrenOfKind(left, "identifier") {
					out = append(out, ex.text(id))
				}
			}
		default:
			for _, spec := range descendantsOfKind(n, "var_spec", "const_spec") {
				for _, id := range childrenOfKind(spec, "identifier") {
					out = append(out, ex.text(id))
				}
			}
		}
	case lang.JavaScript, lang.TypeScript:
		for _, d := range descendantsOfKind(n, "variable_declarator") {
			if name := d.ChildByFieldName("name"); name != nil && name.Kind() == "identifier" {
				out = append(out, ex.text(name))
			}
		}
	case lang.Kotlin:
		if id := firstDescendantOfKind(n, "simple_identifier"); id != nil {
			out = append(out, ex.text(id))
		}
	}
	return out
}

// isUseSite reports whether an identifier node reads a variable: not a
// callee, not a member/selector field, not a declaration name.
func (ex *extractor) isUseSite(n *tree_sitter.Node) bool {
	p := n.Parent()
	if p == nil {
		return false
	}
	switch p.Kind() {
	case "call", "call_expression", "method_invocation", "new_expression":
		// Callee position; receiver identifiers are captured via callTarget.
		return false
	case "attribute", "member_expression", "field_access", "selector_expression",
		"navigation_expression", "navigation_suffix":
		// Only the base object reads a variable; the field name does not.
		first := p.Child(0)
		return first != nil && first.Id() == n.Id()
	case "assignment", "assignment_expression", "assignment_statement",
		"augmented_assignment", "augmented_assignment_expression",
		"variable_declarator", "var_spec", "const_spec", "short_var_declaration",
		"formal_parameter", "parameter", "typed_parameter", "default_parameter",
		"keyword_argument", "pair":
		// Left-hand names and declaration names are writes, handled elsewhere.
		if left := p.ChildByFieldName("left"); left != nil && left.Id() == n.Id() {
			return false
		}
		if name := p.ChildByFieldName("name"); name != nil && name.Id() == n.Id() {
			return false
		}
		if p.Kind() == "short_var_declaration" || p.Kind() == "var_spec" || p.Kind() == "const_spec" {
			return false
		}
		return true
	}
	return true
}
