package syncer

import (
	"context"
	"reflect"
	"testing"

	"github.com/codeatlas-dev/codeatlas/internal/lang"
	"github.com/codeatlas-dev/codeatlas/internal/schema"
	"github.com/codeatlas-dev/codeatlas/internal/store"
)

const testGraphID = "atlas_project_s"

func testSyncer(t *testing.T) (*Syncer, *store.Store) {
	t.Helper()
	s, err := store.OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()
	if err := s.UpsertProject(ctx, &store.Project{GraphID: testGraphID, ProjectID: "s"}); err != nil {
		t.Fatal(err)
	}
	return New(s, lang.NewRegistry(), testGraphID), s
}

func findNode(t *testing.T, s *store.Store, name, kind string) *store.Node {
	t.Helper()
	nodes, err := s.FindNodesByName(context.Background(), testGraphID, name)
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range nodes {
		if n.Kind == kind {
			return n
		}
	}
	t.Fatalf("no %s node named %s", kind, name)
	return nil
}

func TestDiffPartitions(t *testing.T) {
	sy, _ := testSyncer(t)
	ctx := context.Background()

	f1 := map[string][]byte{
		"keep.py":   []byte("def keep():\n    pass\n"),
		"change.py": []byte("def old():\n    pass\n"),
		"drop.py":   []byte("def drop():\n    pass\n"),
	}
	if _, err := sy.Update(ctx, f1, false); err != nil {
		t.Fatal(err)
	}

	f2 := map[string][]byte{
		"keep.py":   f1["keep.py"],
		"change.py": []byte("def new():\n    pass\n"),
		"fresh.py":  []byte("def fresh():\n    pass\n"),
	}
	d, err := sy.Diff(ctx, f2)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(d.Added, []string{"fresh.py"}) {
		t.Errorf("added = %v", d.Added)
	}
	if !reflect.DeepEqual(d.Changed, []string{"change.py"}) {
		t.Errorf("changed = %v", d.Changed)
	}
	if !reflect.DeepEqual(d.Deleted, []string{"drop.py"}) {
		t.Errorf("deleted = %v", d.Deleted)
	}
	if !reflect.DeepEqual(d.Unchanged, []string{"keep.py"}) {
		t.Errorf("unchanged = %v", d.Unchanged)
	}
}

func TestNoOpSyncSkipsRebuild(t *testing.T) {
	sy, s := testSyncer(t)
	ctx := context.Background()

	files := map[string][]byte{
		"a.py": []byte("def helper():\n    pass\n"),
		"b.py": []byte("def caller():\n    helper()\n"),
	}
	if _, err := sy.Update(ctx, files, false); err != nil {
		t.Fatal(err)
	}

	caller := findNode(t, s, "caller", string(schema.NodeFunction))
	calls, err := s.FindEdgesBySourceAndType(ctx, caller.ID, string(schema.EdgeCalls))
	if err != nil {
		t.Fatal(err)
	}
	if len(calls) != 1 || calls[0].CallCount != 1 {
		t.Fatalf("CALLS = %+v", calls)
	}

	// Same content again: nothing rebuilds and counts stay put.
	stats, err := sy.Update(ctx, files, false)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Build.Files != 0 || stats.Unchanged != 2 {
		t.Fatalf("no-op stats = %+v", stats)
	}
	calls, err = s.FindEdgesBySourceAndType(ctx, caller.ID, string(schema.EdgeCalls))
	if err != nil {
		t.Fatal(err)
	}
	if len(calls) != 1 || calls[0].CallCount != 1 {
		t.Fatalf("call_count after no-op sync = %+v", calls)
	}
}

func TestDeletedFileClearsSubgraphAndHash(t *testing.T) {
	sy, s := testSyncer(t)
	ctx := context.Background()

	files := map[string][]byte{
		"gone.py": []byte("def vanish():\n    pass\n"),
		"stay.py": []byte("def stay():\n    pass\n"),
	}
	if _, err := sy.Update(ctx, files, false); err != nil {
		t.Fatal(err)
	}

	stats, err := sy.Update(ctx, map[string][]byte{"stay.py": files["stay.py"]}, false)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Deleted != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	for _, name := range []string{"vanish", "gone.py"} {
		nodes, err := s.FindNodesByName(ctx, testGraphID, name)
		if err != nil {
			t.Fatal(err)
		}
		if len(nodes) != 0 {
			t.Errorf("%s still present: %+v", name, nodes)
		}
	}
	hashes, err := s.GetFileHashes(ctx, testGraphID)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := hashes["gone.py"]; ok {
		t.Error("hash for deleted file still stored")
	}
	findNode(t, s, "stay", string(schema.NodeFunction))
}

func TestDependencyImpactExpansion(t *testing.T) {
	sy, s := testSyncer(t)
	ctx := context.Background()

	files := map[string][]byte{
		"lib.py": []byte("def helper():\n    pass\n"),
		"use.py": []byte("def caller():\n    helper()\n"),
	}
	if _, err := sy.Update(ctx, files, false); err != nil {
		t.Fatal(err)
	}

	// Move helper down a line: its composite id changes, so the old
	// CALLS edge target disappears. The dependent rebuild restores it.
	files["lib.py"] = []byte("# moved\ndef helper():\n    pass\n")
	stats, err := sy.Update(ctx, files, true)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Changed != 1 || stats.Dependents != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	caller := findNode(t, s, "caller", string(schema.NodeFunction))
	helper := findNode(t, s, "helper", string(schema.NodeFunction))
	if helper.StartLine != 2 {
		t.Fatalf("helper start = %d", helper.StartLine)
	}
	calls, err := s.FindEdgesBySourceAndType(ctx, caller.ID, string(schema.EdgeCalls))
	if err != nil {
		t.Fatal(err)
	}
	if len(calls) != 1 || calls[0].TargetID != helper.ID {
		t.Fatalf("CALLS after expansion = %+v", calls)
	}
}

func TestValidateConsistency(t *testing.T) {
	sy, s := testSyncer(t)
	ctx := context.Background()

	if _, err := sy.Update(ctx, map[string][]byte{
		"ok.py": []byte("def fine():\n    pass\n"),
	}, false); err != nil {
		t.Fatal(err)
	}

	report, err := sy.ValidateConsistency(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Clean() {
		t.Fatalf("fresh graph not clean: %+v", report)
	}

	// Inject an orphan: a Method with no DEFINED_IN edge.
	if _, err := s.UpsertNode(ctx, &store.Node{
		Project:     testGraphID,
		Kind:        string(schema.NodeMethod),
		Name:        "stray",
		CompositeID: testGraphID + ":x.py:C:stray:1",
		FilePath:    "x.py",
		StartLine:   1,
	}); err != nil {
		t.Fatal(err)
	}
	report, err = sy.ValidateConsistency(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Clean() || len(report.OrphanedNodes) != 1 {
		t.Fatalf("orphan not detected: %+v", report)
	}
}
