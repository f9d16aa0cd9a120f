package lang

import "path/filepath"

// Language represents a supported input language.
type Language string

const (
	Python     Language = "python"
	Kotlin     Language = "kotlin"
	Java       Language = "java"
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	Go         Language = "go"
	// Manifest is the manifest-style XML format (AndroidManifest.xml).
	// It has no tree-sitter grammar; parsing is direct XML token scanning.
	Manifest Language = "manifest"
	// Gradle is the build-script format (build.gradle, build.gradle.kts,
	// settings.gradle). Parsed by direct text scanning.
	Gradle Language = "gradle"
)

// LanguageSpec defines the tree-sitter node kinds and file naming rules
// for a language. Grammar-less languages (Manifest, Gradle) carry only
// the naming rules.
type LanguageSpec struct {
	Language       Language
	FileExtensions []string
	// FileNames matches exact base names (e.g. AndroidManifest.xml) and
	// takes priority over extension matching.
	FileNames []string

	FunctionNodeTypes []string
	ClassNodeTypes    []string
	FieldNodeTypes    []string
	ModuleNodeTypes   []string
	CallNodeTypes     []string
	ImportNodeTypes   []string
	VariableNodeTypes []string
	// AssignmentNodeTypes lists assignment expression/statement node kinds,
	// used for MODIFIES_VARIABLE detection.
	AssignmentNodeTypes []string
	ThrowNodeTypes      []string
	// CatchNodeTypes lists catch/except clause node kinds, used for
	// HANDLES_EXCEPTION detection.
	CatchNodeTypes []string
	// ThrowsClauseField is the field name for declared throws (Java "throws").
	ThrowsClauseField  string
	DecoratorNodeTypes []string
	// CoroutineLaunchNames lists call names that start a coroutine/async task
	// (Kotlin launch/async/withContext). Tagged onto the caller as markers.
	CoroutineLaunchNames []string
}

// Registry maps file extensions and names to language specs. It is built
// once by the composing application and passed by reference into the
// parser pool and builder; there is no package-global registry.
type Registry struct {
	byExt  map[string]*LanguageSpec
	byName map[string]*LanguageSpec
	byLang map[Language]*LanguageSpec
}

// NewRegistry returns a Registry with all built-in language specs registered.
func NewRegistry() *Registry {
	r := &Registry{
		byExt:  make(map[string]*LanguageSpec),
		byName: make(map[string]*LanguageSpec),
		byLang: make(map[Language]*LanguageSpec),
	}
	for _, spec := range builtinSpecs() {
		r.Register(spec)
	}
	return r
}

// Register adds a LanguageSpec to the registry.
func (r *Registry) Register(spec *LanguageSpec) {
	for _, ext := range spec.FileExtensions {
		r.byExt[ext] = spec
	}
	for _, name := range spec.FileNames {
		r.byName[name] = spec
	}
	r.byLang[spec.Language] = spec
}

// ForPath returns the LanguageSpec for a file path, or nil if the file
// is not a recognized source file. Exact file names win over extensions
// so build.gradle.kts routes to Gradle, not Kotlin.
func (r *Registry) ForPath(path string) *LanguageSpec {
	base := filepath.Base(path)
	if spec, ok := r.byName[base]; ok {
		return spec
	}
	return r.byExt[filepath.Ext(base)]
}

// ForLanguage returns the LanguageSpec for a language, or nil.
func (r *Registry) ForLanguage(l Language) *LanguageSpec {
	return r.byLang[l]
}

// Languages returns all registered languages.
func (r *Registry) Languages() []Language {
	result := make([]Language, 0, len(r.byLang))
	for l := range r.byLang {
		result = append(result, l)
	}
	return result
}

// LanguageForPath returns the Language for a file path.
func (r *Registry) LanguageForPath(path string) (Language, bool) {
	spec := r.ForPath(path)
	if spec == nil {
		return "", false
	}
	return spec.Language, true
}
