package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.UpsertProject(context.Background(), &Project{GraphID: "atlas_project_test", ProjectID: "test"}); err != nil {
		t.Fatalf("UpsertProject: %v", err)
	}
	return s
}

func TestOpenMemory(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	s.Close()
}

func TestNodeCRUD(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	n := &Node{
		Project:     "atlas_project_test",
		Kind:        "Function",
		Name:        "render",
		CompositeID: "atlas_project_test:app.py:Widget:render:10",
		FilePath:    "app.py",
		StartLine:   10,
		EndLine:     20,
		Properties:  map[string]any{"signature": "render(self, w)"},
	}
	id, err := s.UpsertNode(ctx, n)
	if err != nil {
		t.Fatalf("UpsertNode: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero id")
	}

	found, err := s.FindNodeByCompositeID(ctx, "atlas_project_test", n.CompositeID)
	if err != nil {
		t.Fatalf("FindNodeByCompositeID: %v", err)
	}
	if found == nil {
		t.Fatal("expected node, got nil")
	}
	if found.Name != "render" {
		t.Errorf("expected render, got %s", found.Name)
	}
	if found.Properties["signature"] != "render(self, w)" {
		t.Errorf("unexpected signature: %v", found.Properties["signature"])
	}

	nodes, err := s.FindNodesByName(ctx, "atlas_project_test", "render")
	if err != nil {
		t.Fatalf("FindNodesByName: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(nodes))
	}

	count, err := s.CountNodes(ctx, "atlas_project_test")
	if err != nil {
		t.Fatalf("CountNodes: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1, got %d", count)
	}
}

func TestNodeDedupByCompositeID(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	// Same composite ID twice — must update, never duplicate.
	cid := "atlas_project_test:app.py::main:3"
	n1 := &Node{Project: "atlas_project_test", Kind: "Function", Name: "main", CompositeID: cid, FilePath: "app.py"}
	n2 := &Node{Project: "atlas_project_test", Kind: "Function", Name: "main", CompositeID: cid, FilePath: "app.py", Properties: map[string]any{"updated": true}}

	if _, err := s.UpsertNode(ctx, n1); err != nil {
		t.Fatalf("UpsertNode n1: %v", err)
	}
	if _, err := s.UpsertNode(ctx, n2); err != nil {
		t.Fatalf("UpsertNode n2: %v", err)
	}

	count, _ := s.CountNodes(ctx, "atlas_project_test")
	if count != 1 {
		t.Errorf("expected 1 node after dedup, got %d", count)
	}

	found, _ := s.FindNodeByCompositeID(ctx, "atlas_project_test", cid)
	if found.Properties["updated"] != true {
		t.Error("expected updated property")
	}
}

func TestMergeNodeKeepsPosition(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	cid := "atlas_project_test:class:Base"
	full := &Node{Project: "atlas_project_test", Kind: "Class", Name: "Base", CompositeID: cid, FilePath: "base.py", StartLine: 4, EndLine: 30}
	if _, err := s.MergeNode(ctx, full); err != nil {
		t.Fatalf("MergeNode full: %v", err)
	}
	// A later stub merge must not blank out the recorded definition site.
	stub := &Node{Project: "atlas_project_test", Kind: "Class", Name: "Base", CompositeID: cid}
	if _, err := s.MergeNode(ctx, stub); err != nil {
		t.Fatalf("MergeNode stub: %v", err)
	}

	found, _ := s.FindNodeByCompositeID(ctx, "atlas_project_test", cid)
	if found.FilePath != "base.py" || found.StartLine != 4 {
		t.Errorf("stub merge lost position: %+v", found)
	}
}

func TestNodeBatchUpsert(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	// Larger than one chunk to exercise batch splitting.
	var nodes []*Node
	for i := 0; i < 300; i++ {
		nodes = append(nodes, &Node{
			Project:     "atlas_project_test",
			Kind:        "Variable",
			Name:        fmt.Sprintf("v%d", i),
			CompositeID: fmt.Sprintf("atlas_project_test:app.py:main:v%d:%d", i, i+1),
			FilePath:    "app.py",
			StartLine:   i + 1,
		})
	}
	ids, err := s.UpsertNodeBatch(ctx, nodes)
	if err != nil {
		t.Fatalf("UpsertNodeBatch: %v", err)
	}
	if len(ids) != 300 {
		t.Fatalf("expected 300 ids, got %d", len(ids))
	}

	// Re-upserting is idempotent.
	ids2, err := s.UpsertNodeBatch(ctx, nodes)
	if err != nil {
		t.Fatalf("UpsertNodeBatch rerun: %v", err)
	}
	for cid, id := range ids {
		if ids2[cid] != id {
			t.Fatalf("id changed across reruns for %s: %d vs %d", cid, id, ids2[cid])
		}
	}
	count, _ := s.CountNodes(ctx, "atlas_project_test")
	if count != 300 {
		t.Errorf("expected 300 nodes after rerun, got %d", count)
	}
}

func TestDeleteNodesByFileSparesShared(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	fileScoped := &Node{Project: "atlas_project_test", Kind: "Function", Name: "main", CompositeID: "atlas_project_test:app.py::main:3", FilePath: "app.py"}
	shared := &Node{Project: "atlas_project_test", Kind: "Module", Name: "os", CompositeID: "atlas_project_test:module:os"}
	if _, err := s.UpsertNode(ctx, fileScoped); err != nil {
		t.Fatal(err)
	}
	if _, err := s.UpsertNode(ctx, shared); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteNodesByFile(ctx, "atlas_project_test", "app.py"); err != nil {
		t.Fatalf("DeleteNodesByFile: %v", err)
	}
	if n, _ := s.FindNodeByCompositeID(ctx, "atlas_project_test", fileScoped.CompositeID); n != nil {
		t.Error("file-scoped node survived delete")
	}
	if n, _ := s.FindNodeByCompositeID(ctx, "atlas_project_test", shared.CompositeID); n == nil {
		t.Error("shared node was deleted with the file")
	}

	if err := s.DeleteNodesByFile(ctx, "atlas_project_test", ""); err == nil {
		t.Error("empty path must be rejected")
	}
}

func TestEdgeCascadeOnNodeDelete(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	src := &Node{Project: "atlas_project_test", Kind: "Function", Name: "a", CompositeID: "atlas_project_test:a.py::a:1", FilePath: "a.py"}
	dst := &Node{Project: "atlas_project_test", Kind: "Function", Name: "b", CompositeID: "atlas_project_test:b.py::b:1", FilePath: "b.py"}
	srcID, _ := s.UpsertNode(ctx, src)
	dstID, _ := s.UpsertNode(ctx, dst)

	if err := s.MergeCallEdge(ctx, &Edge{Project: "atlas_project_test", SourceID: srcID, TargetID: dstID, Type: "CALLS"}); err != nil {
		t.Fatalf("MergeCallEdge: %v", err)
	}
	if err := s.DeleteNodesByFile(ctx, "atlas_project_test", "a.py"); err != nil {
		t.Fatal(err)
	}
	edges, err := s.FindEdgesByTarget(ctx, dstID)
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 0 {
		t.Errorf("expected cascade delete of edges, got %d", len(edges))
	}
}

func TestMergeCallEdgeCounts(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	src := &Node{Project: "atlas_project_test", Kind: "Function", Name: "a", CompositeID: "atlas_project_test:a.py::a:1", FilePath: "a.py"}
	dst := &Node{Project: "atlas_project_test", Kind: "Function", Name: "b", CompositeID: "atlas_project_test:a.py::b:9", FilePath: "a.py"}
	srcID, _ := s.UpsertNode(ctx, src)
	dstID, _ := s.UpsertNode(ctx, dst)

	e := &Edge{Project: "atlas_project_test", SourceID: srcID, TargetID: dstID, Type: "CALLS", Properties: map[string]any{"call_type": "direct"}}
	if err := s.MergeCallEdge(ctx, e); err != nil {
		t.Fatal(err)
	}
	edges, _ := s.FindEdgesBySourceAndType(ctx, srcID, "CALLS")
	if len(edges) != 1 || edges[0].CallCount != 1 {
		t.Fatalf("after first merge: %+v", edges)
	}
	first := edges[0].FirstSeen
	if first == "" {
		t.Fatal("first_seen not set")
	}

	if err := s.MergeCallEdge(ctx, e); err != nil {
		t.Fatal(err)
	}
	edges, _ = s.FindEdgesBySourceAndType(ctx, srcID, "CALLS")
	if len(edges) != 1 || edges[0].CallCount != 2 {
		t.Fatalf("after second merge: %+v", edges)
	}
	if edges[0].FirstSeen != first {
		t.Error("first_seen must not move on re-merge")
	}
}

func TestMergeCallEdgeBatchSeedsCounts(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	src := &Node{Project: "atlas_project_test", Kind: "Function", Name: "a", CompositeID: "atlas_project_test:a.py::a:1", FilePath: "a.py"}
	dst := &Node{Project: "atlas_project_test", Kind: "Function", Name: "b", CompositeID: "atlas_project_test:a.py::b:9", FilePath: "a.py"}
	srcID, _ := s.UpsertNode(ctx, src)
	dstID, _ := s.UpsertNode(ctx, dst)

	// Two call sites resolved to the same target in one build.
	err := s.MergeCallEdgeBatch(ctx, []*Edge{
		{Project: "atlas_project_test", SourceID: srcID, TargetID: dstID, Type: "CALLS", CallCount: 2},
	})
	if err != nil {
		t.Fatalf("MergeCallEdgeBatch: %v", err)
	}
	edges, _ := s.FindEdgesBySourceAndType(ctx, srcID, "CALLS")
	if len(edges) != 1 || edges[0].CallCount != 2 {
		t.Fatalf("expected seeded count 2: %+v", edges)
	}
}

func TestWithTransactionRollback(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	wantErr := fmt.Errorf("boom")
	err := s.WithTransaction(ctx, func(tx *Store) error {
		_, err := tx.UpsertNode(ctx, &Node{
			Project: "atlas_project_test", Kind: "Function", Name: "x",
			CompositeID: "atlas_project_test:x.py::x:1", FilePath: "x.py",
		})
		if err != nil {
			return err
		}
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("expected propagated error, got %v", err)
	}
	count, _ := s.CountNodes(ctx, "atlas_project_test")
	if count != 0 {
		t.Errorf("expected rollback, found %d nodes", count)
	}
}

func TestFileHashes(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	if err := s.UpsertFileHash(ctx, "atlas_project_test", "a.py", "h1"); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertFileHash(ctx, "atlas_project_test", "a.py", "h2"); err != nil {
		t.Fatal(err)
	}
	hashes, err := s.GetFileHashes(ctx, "atlas_project_test")
	if err != nil {
		t.Fatal(err)
	}
	if hashes["a.py"] != "h2" {
		t.Errorf("expected h2, got %q", hashes["a.py"])
	}
	if err := s.DeleteFileHash(ctx, "atlas_project_test", "a.py"); err != nil {
		t.Fatal(err)
	}
	hashes, _ = s.GetFileHashes(ctx, "atlas_project_test")
	if len(hashes) != 0 {
		t.Errorf("expected empty hashes, got %v", hashes)
	}
}

func TestValidateHelpers(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	fn := &Node{Project: "atlas_project_test", Kind: "Function", Name: "lost", CompositeID: "atlas_project_test:a.py::lost:1", FilePath: "a.py"}
	if _, err := s.UpsertNode(ctx, fn); err != nil {
		t.Fatal(err)
	}

	orphans, err := s.FindOrphanNodes(ctx, "atlas_project_test", "DEFINED_IN", "Function", "Method")
	if err != nil {
		t.Fatalf("FindOrphanNodes: %v", err)
	}
	if len(orphans) != 1 || orphans[0].Name != "lost" {
		t.Fatalf("expected one orphan, got %+v", orphans)
	}

	dups, err := s.FindDuplicateCompositeIDs(ctx, "atlas_project_test")
	if err != nil {
		t.Fatalf("FindDuplicateCompositeIDs: %v", err)
	}
	if len(dups) != 0 {
		t.Errorf("expected no duplicates, got %v", dups)
	}
}

func TestProjectCascadeDelete(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	if _, err := s.UpsertNode(ctx, &Node{
		Project: "atlas_project_test", Kind: "File", Name: "a.py",
		CompositeID: "atlas_project_test:a.py", FilePath: "a.py",
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertFileHash(ctx, "atlas_project_test", "a.py", "h"); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteProject(ctx, "atlas_project_test"); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	count, _ := s.CountNodes(ctx, "atlas_project_test")
	if count != 0 {
		t.Errorf("expected node cascade, got %d nodes", count)
	}
	hashes, _ := s.GetFileHashes(ctx, "atlas_project_test")
	if len(hashes) != 0 {
		t.Errorf("expected hash cascade, got %v", hashes)
	}
}

// Merging a node that already exists must return its real row id, not
// the connection's last insert rowid. Three nodes then a re-merge of the
// first makes a stale id observable.
func TestMergeNodeReturnsExistingID(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	project := "atlas_project_test"

	first := &Node{Project: project, Kind: "Module", Name: "os", CompositeID: project + ":module:os"}
	firstID, err := s.MergeNode(ctx, first)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	for _, name := range []string{"sys", "json"} {
		if _, err := s.MergeNode(ctx, &Node{Project: project, Kind: "Module", Name: name, CompositeID: project + ":module:" + name}); err != nil {
			t.Fatalf("merge %s: %v", name, err)
		}
	}

	again, err := s.MergeNode(ctx, first)
	if err != nil {
		t.Fatalf("re-merge: %v", err)
	}
	if again != firstID {
		t.Fatalf("re-merge returned id %d, want %d", again, firstID)
	}

	upserted, err := s.UpsertNode(ctx, first)
	if err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	if upserted != firstID {
		t.Fatalf("re-upsert returned id %d, want %d", upserted, firstID)
	}
}

func TestWithTransactionTimeout(t *testing.T) {
	s := testStore(t)
	s.SetTxTimeout(time.Nanosecond)

	err := s.WithTransaction(context.Background(), func(tx *Store) error {
		_, err := tx.CountNodes(context.Background(), "atlas_project_test")
		return err
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	// Disabled timeout leaves transactions unbounded.
	s.SetTxTimeout(0)
	err = s.WithTransaction(context.Background(), func(tx *Store) error { return nil })
	if err != nil {
		t.Fatalf("unbounded transaction: %v", err)
	}
}

func TestUpsertProjectIndexedAt(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	p, err := s.GetProject(ctx, "atlas_project_test")
	if err != nil || p == nil {
		t.Fatalf("get: %v %v", p, err)
	}
	if p.IndexedAt == "" {
		t.Fatal("expected empty IndexedAt to be stamped on insert")
	}

	// A caller-supplied timestamp is written as given.
	p.IndexedAt = "2026-01-02T03:04:05Z"
	if err := s.UpsertProject(ctx, p); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := s.GetProject(ctx, "atlas_project_test")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.IndexedAt != "2026-01-02T03:04:05Z" {
		t.Errorf("IndexedAt = %q, want the preserved timestamp", got.IndexedAt)
	}
}
