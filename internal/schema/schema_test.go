package schema

import (
	"testing"
	"time"

	"github.com/codeatlas-dev/codeatlas/internal/entity"
)

func TestGraphIDFormats(t *testing.T) {
	if got := GraphID("codeatlas", "42"); got != "codeatlas_project_42" {
		t.Errorf("GraphID = %q", got)
	}
	ts := time.Unix(1700000000, 0)
	got := ScanGraphID("codeatlas", "42", "pr", "a1b2", ts)
	want := "codeatlas_project_42_pr_a1b2_1700000000"
	if got != want {
		t.Errorf("ScanGraphID = %q, want %q", got, want)
	}
}

func TestEntityNodeID(t *testing.T) {
	gid := "codeatlas_project_7"
	got := EntityNodeID(gid, "src/app.py", "Widget", "render", 14)
	want := "codeatlas_project_7:src/app.py:Widget:render:14"
	if got != want {
		t.Errorf("EntityNodeID = %q, want %q", got, want)
	}
	// Free functions and top-level classes leave the scope segment empty.
	got = FunctionNodeID(gid, "src/app.py", "", "main", 3)
	want = "codeatlas_project_7:src/app.py::main:3"
	if got != want {
		t.Errorf("FunctionNodeID = %q, want %q", got, want)
	}
}

func TestIDStability(t *testing.T) {
	gid := GraphID("codeatlas", "1")
	a := ClassNodeID(gid, "a.py", "Base", 10)
	b := ClassNodeID(gid, "a.py", "Base", 10)
	if a != b {
		t.Fatalf("same inputs produced different IDs: %q vs %q", a, b)
	}
	if a == ClassNodeID(gid, "a.py", "Base", 11) {
		t.Error("line change must change the ID")
	}
	if a == ClassNodeID(gid, "b.py", "Base", 10) {
		t.Error("path change must change the ID")
	}
}

func TestFileSubgraphIDsUnique(t *testing.T) {
	pf := &entity.ParsedFile{
		Path: "m.py",
		Globals: []entity.Variable{
			{Name: "LIMIT", StartLine: 1, ScopeKind: entity.ScopeGlobal},
		},
		Classes: []entity.Class{
			{
				Name:      "Base",
				StartLine: 3,
				Attributes: []entity.Variable{
					{Name: "count", StartLine: 4, ScopeKind: entity.ScopeClassAttribute},
				},
				Methods: []entity.Function{
					{
						Name:      "run",
						StartLine: 5,
						Parameters: []entity.Variable{
							{Name: "self", StartLine: 5, IsParameter: true},
						},
						Locals: []entity.Variable{
							{Name: "tmp", StartLine: 6},
						},
						Decorators: []string{"cached"},
					},
				},
			},
		},
		Functions: []entity.Function{
			{Name: "main", StartLine: 10},
		},
	}

	gid := GraphID("codeatlas", "9")
	ids := FileSubgraphIDs(gid, pf)
	if len(ids) != 7 {
		t.Fatalf("got %d ids: %v", len(ids), ids)
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			t.Errorf("duplicate composite ID %q", id)
		}
		seen[id] = true
	}
}

func TestSharedNodeIDs(t *testing.T) {
	gid := "codeatlas_project_3"
	if ModuleNodeID(gid, "os.path") == FileNodeID(gid, "os.path") {
		t.Error("module and file IDs must not collide")
	}
	if ExceptionTypeNodeID(gid, "ValueError") == PlaceholderClassNodeID(gid, "ValueError") {
		t.Error("exception and placeholder class IDs must not collide")
	}
}

func TestKindForFunction(t *testing.T) {
	if KindForFunction("") != NodeFunction {
		t.Error("free function should be Function")
	}
	if KindForFunction("Widget") != NodeMethod {
		t.Error("owned function should be Method")
	}
}
