// Package discover walks a source tree and selects the files worth
// indexing: language routing via the registry, ignore rules from
// .gitignore plus an optional extra ignore file, and a size bound so
// generated monsters stay out of the graph.
package discover

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/codeatlas-dev/codeatlas/internal/lang"
)

// skipDirs are directory names never worth descending into.
var skipDirs = map[string]bool{
	".cache": true, ".eggs": true, ".env": true, ".git": true,
	".gradle": true, ".hg": true, ".idea": true, ".maven": true,
	".mypy_cache": true, ".nox": true, ".npm": true, ".nyc_output": true,
	".pnpm-store": true, ".pytest_cache": true, ".ruff_cache": true,
	".svn": true, ".tox": true, ".venv": true, ".vs": true,
	".vscode": true, ".yarn": true, "__pycache__": true,
	"bower_components": true, "coverage": true, "dist": true,
	"env": true, "htmlcov": true, "node_modules": true, "obj": true,
	"out": true, "Pods": true, "site-packages": true, "target": true,
	"tmp": true, "vendor": true, "venv": true,
}

// skipSuffixes are file suffixes never worth reading.
var skipSuffixes = []string{
	".tmp", "~", ".pyc", ".pyo", ".o", ".a", ".so", ".dll", ".class",
	".min.js", ".min.css",
}

// DefaultMaxFileSize bounds single-file reads.
const DefaultMaxFileSize = 2 << 20

// FileInfo is one discovered source file.
type FileInfo struct {
	Path     string // absolute path
	RelPath  string // relative to the root, slash-separated
	Language lang.Language
}

// Options configures discovery.
type Options struct {
	// IgnoreFile is an extra gitignore-style file; defaults to
	// <root>/.atlasignore. <root>/.gitignore is always honored.
	IgnoreFile  string
	MaxFileSize int64
}

// Discover walks root and returns every file the registry can route,
// in walk order.
func Discover(ctx context.Context, root string, reg *lang.Registry, opts *Options) ([]FileInfo, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &Options{}
	}
	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	matchers := loadIgnoreMatchers(root, opts.IgnoreFile)

	var files []FileInfo
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, _ := filepath.Rel(root, path)
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if skipDirs[d.Name()] || matchesAny(matchers, rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if matchesAny(matchers, rel) {
			return nil
		}
		for _, suffix := range skipSuffixes {
			if strings.HasSuffix(path, suffix) {
				return nil
			}
		}
		spec := reg.ForPath(path)
		if spec == nil {
			return nil
		}
		if info, err := d.Info(); err != nil || info.Size() > maxSize {
			return nil
		}

		files = append(files, FileInfo{Path: path, RelPath: rel, Language: spec.Language})
		return nil
	})
	return files, err
}

// LoadSources discovers and reads the tree into the path->content map
// the builder and syncer consume.
func LoadSources(ctx context.Context, root string, reg *lang.Registry, opts *Options) (map[string][]byte, error) {
	files, err := Discover(ctx, root, reg, opts)
	if err != nil {
		return nil, err
	}
	sources := make(map[string][]byte, len(files))
	for _, f := range files {
		content, err := os.ReadFile(f.Path)
		if err != nil {
			// Raced deletes and permission holes are skipped, not fatal.
			continue
		}
		sources[f.RelPath] = content
	}
	return sources, nil
}

func loadIgnoreMatchers(root, extraFile string) []*ignore.GitIgnore {
	var matchers []*ignore.GitIgnore
	if m, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore")); err == nil {
		matchers = append(matchers, m)
	}
	if extraFile == "" {
		extraFile = filepath.Join(root, ".atlasignore")
	}
	if m, err := ignore.CompileIgnoreFile(extraFile); err == nil {
		matchers = append(matchers, m)
	}
	return matchers
}

func matchesAny(matchers []*ignore.GitIgnore, rel string) bool {
	for _, m := range matchers {
		if m.MatchesPath(rel) {
			return true
		}
	}
	return false
}
