package discover

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/codeatlas-dev/codeatlas/internal/lang"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func relPaths(files []FileInfo) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.RelPath
	}
	return out
}

func TestDiscoverBasic(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.go", "package main\n")
	writeFile(t, dir, "app.py", "def main(): pass\n")
	writeFile(t, dir, "README.md", "docs\n")

	files, err := Discover(context.Background(), dir, lang.NewRegistry(), nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %v", relPaths(files))
	}
	for _, f := range files {
		if f.Path == "" || f.RelPath == "" || f.Language == "" {
			t.Errorf("incomplete file info: %+v", f)
		}
	}
}

func TestDiscoverSkipsVendoredDirs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app.py", "x = 1\n")
	writeFile(t, dir, "node_modules/lib/index.js", "module.exports = {}\n")
	writeFile(t, dir, "__pycache__/app.py", "x = 1\n")

	files, err := Discover(context.Background(), dir, lang.NewRegistry(), nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(files) != 1 || files[0].RelPath != "app.py" {
		t.Fatalf("expected only app.py, got %v", relPaths(files))
	}
}

func TestDiscoverHonorsIgnoreFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".gitignore", "generated/\n")
	writeFile(t, dir, ".atlasignore", "*_test.py\n")
	writeFile(t, dir, "app.py", "x = 1\n")
	writeFile(t, dir, "app_test.py", "x = 1\n")
	writeFile(t, dir, "generated/schema.py", "x = 1\n")

	files, err := Discover(context.Background(), dir, lang.NewRegistry(), nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(files) != 1 || files[0].RelPath != "app.py" {
		t.Fatalf("expected only app.py, got %v", relPaths(files))
	}
}

func TestDiscoverSizeBound(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "small.py", "x = 1\n")
	writeFile(t, dir, "huge.py", strings.Repeat("x = 1\n", 50))

	files, err := Discover(context.Background(), dir, lang.NewRegistry(), &Options{MaxFileSize: 64})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(files) != 1 || files[0].RelPath != "small.py" {
		t.Fatalf("expected only small.py, got %v", relPaths(files))
	}
}

func TestDiscoverCancellation(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.go", "package main\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Discover(ctx, dir, lang.NewRegistry(), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLoadSources(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pkg/util.py", "def helper(): pass\n")
	writeFile(t, dir, "build.gradle", "plugins { id 'java' }\n")

	sources, err := LoadSources(context.Background(), dir, lang.NewRegistry(), nil)
	if err != nil {
		t.Fatalf("LoadSources: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	if string(sources["pkg/util.py"]) != "def helper(): pass\n" {
		t.Fatalf("unexpected content for pkg/util.py: %q", sources["pkg/util.py"])
	}
}
