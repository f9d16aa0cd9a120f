// Package entity defines the language-neutral model produced by parsing
// one source file. Parsers emit these records; the graph builder consumes
// them. Nothing here touches the filesystem or the store.
package entity

import "strings"

// ScopeKind classifies where a variable lives.
type ScopeKind string

const (
	ScopeParameter      ScopeKind = "parameter"
	ScopeLocal          ScopeKind = "local"
	ScopeClassAttribute ScopeKind = "class_attribute"
	ScopeGlobal         ScopeKind = "global"
	ScopeStructField    ScopeKind = "struct_field"
	// Config-derived scopes (manifest / build-script parsers).
	ScopePermission ScopeKind = "permission"
	ScopeSDKVersion ScopeKind = "sdk_version"
	ScopeDependency ScopeKind = "dependency"
)

// ImportKind classifies an import statement's syntactic shape.
type ImportKind string

const (
	ImportDirect   ImportKind = "direct"
	ImportFrom     ImportKind = "from"
	ImportWildcard ImportKind = "wildcard"
	ImportPlugin   ImportKind = "plugin"
	ImportPackage  ImportKind = "package"
	ImportInclude  ImportKind = "include"
)

// CallType classifies a call expression's syntactic shape. The builder's
// resolution chain selects a strategy from this classification.
type CallType string

const (
	// CallDirect is a bare identifier call: foo().
	CallDirect CallType = "direct"
	// CallInstanceMethod is a self/this-qualified call: self.run().
	CallInstanceMethod CallType = "instance_method"
	// CallConstructor is a capitalized identifier matching a known class: Child().
	CallConstructor CallType = "constructor"
	// CallOnOwnClass is a call qualified by the enclosing class's own name.
	CallOnOwnClass CallType = "on_own_class"
	// CallOnClass is qualified by a capitalized base name: Logger.log().
	CallOnClass CallType = "on_class"
	// CallOnObject is qualified by some other receiver: conn.close().
	CallOnObject CallType = "on_object"
	// CallSubscripted invokes a subscript result: handlers[i]().
	CallSubscripted CallType = "subscripted"
)

// Attr is a typed marker flag attached to functions and classes. These
// replace free-text decorator tagging for semantic facts that downstream
// heuristics branch on.
type Attr uint16

const (
	AttrExported Attr = 1 << iota
	AttrSuspend
	AttrAsync
	AttrExtension
	AttrAbstract
	AttrActivity
	AttrService
	AttrReceiver
	AttrProvider
)

// Has reports whether all bits in flag are set.
func (a Attr) Has(flag Attr) bool { return a&flag == flag }

// ComponentKind returns the manifest component decorator string for the
// attr set, or "" if no component bit is set.
func (a Attr) ComponentKind() string {
	switch {
	case a.Has(AttrActivity):
		return "activity"
	case a.Has(AttrService):
		return "service"
	case a.Has(AttrReceiver):
		return "receiver"
	case a.Has(AttrProvider):
		return "provider"
	}
	return ""
}

// Variable is a named binding: parameter, local, attribute, global,
// struct field, or a config-derived value.
type Variable struct {
	Name      string
	StartLine int
	EndLine   int
	// Scope is the name of the owning scope (function, class, or "" for module).
	Scope     string
	ScopeKind ScopeKind
	// TypeText is the declared type as written, if any.
	TypeText    string
	IsParameter bool
}

// Call is one call site inside a function body.
type Call struct {
	// Callee is the called name without qualification: "run" for obj.run().
	Callee string
	// BaseObject is the receiver/base name, "" for bare calls.
	BaseObject string
	Type       CallType
	Line       int
}

// VarRef is a (variable name, line) reference from a function body.
type VarRef struct {
	Name string
	Line int
}

// ObjectRef is a (class name, line) object-construction reference.
type ObjectRef struct {
	Class string
	Line  int
}

// Function is a free function or a method (OwnerClass non-empty).
type Function struct {
	Name       string
	StartLine  int
	EndLine    int
	Signature  string
	OwnerClass string
	Attrs      Attr

	Parameters []Variable
	Locals     []Variable
	Calls      []Call
	Decorators []string
	Raises     []string
	Handles    []string
	Uses       []VarRef
	Modifies   []VarRef
	Creates    []ObjectRef
}

// IsMethod reports whether the function belongs to a class.
func (f *Function) IsMethod() bool { return f.OwnerClass != "" }

// Class is a class/interface/object declaration, or a manifest component.
type Class struct {
	Name       string
	StartLine  int
	EndLine    int
	Attrs      Attr
	Methods    []Function
	Attributes []Variable
	// Supers holds superclass/interface names as written.
	Supers     []string
	Decorators []string
}

// ImportedName is one (name, alias) pair from an import statement.
type ImportedName struct {
	Name  string
	Alias string
}

// Import is one import/include/plugin statement.
type Import struct {
	Kind   ImportKind
	Module string
	Names  []ImportedName
	// Level is the relative-import level (Python "from ..x import y" = 2).
	Level int
	Line  int
}

// ParsedFile is the complete language-neutral model of one source file.
// Parsers produce it independently per file and never reference other files.
type ParsedFile struct {
	Path      string
	Language  string
	Imports   []Import
	Globals   []Variable
	Classes   []Class
	Functions []Function
}

// CleanName trims whitespace from an extracted name. Empty names are
// dropped by callers, never stored.
func CleanName(s string) string { return strings.TrimSpace(s) }

// Sanitize drops entities with empty names after trimming, recursively.
// Parsers call this once before returning so the builder can rely on the
// non-empty-name invariant.
func (pf *ParsedFile) Sanitize() {
	pf.Globals = cleanVars(pf.Globals)

	classes := pf.Classes[:0]
	for _, c := range pf.Classes {
		c.Name = CleanName(c.Name)
		if c.Name == "" {
			continue
		}
		c.Methods = cleanFuncs(c.Methods)
		c.Attributes = cleanVars(c.Attributes)
		c.Supers = cleanNames(c.Supers)
		classes = append(classes, c)
	}
	pf.Classes = classes

	pf.Functions = cleanFuncs(pf.Functions)

	imports := pf.Imports[:0]
	for _, imp := range pf.Imports {
		imp.Module = CleanName(imp.Module)
		if imp.Module == "" && len(imp.Names) == 0 {
			continue
		}
		imports = append(imports, imp)
	}
	pf.Imports = imports
}

func cleanVars(vars []Variable) []Variable {
	out := vars[:0]
	for _, v := range vars {
		v.Name = CleanName(v.Name)
		if v.Name == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

func cleanFuncs(funcs []Function) []Function {
	out := funcs[:0]
	for _, fn := range funcs {
		fn.Name = CleanName(fn.Name)
		if fn.Name == "" {
			continue
		}
		fn.Parameters = cleanVars(fn.Parameters)
		fn.Locals = cleanVars(fn.Locals)

		calls := fn.Calls[:0]
		for _, c := range fn.Calls {
			c.Callee = CleanName(c.Callee)
			if c.Callee == "" {
				continue
			}
			calls = append(calls, c)
		}
		fn.Calls = calls

		fn.Raises = cleanNames(fn.Raises)
		fn.Handles = cleanNames(fn.Handles)
		out = append(out, fn)
	}
	return out
}

func cleanNames(names []string) []string {
	out := names[:0]
	for _, n := range names {
		n = CleanName(n)
		if n == "" {
			continue
		}
		out = append(out, n)
	}
	return out
}
