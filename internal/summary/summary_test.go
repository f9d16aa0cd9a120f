package summary

import (
	"context"
	"testing"

	"github.com/codeatlas-dev/codeatlas/internal/builder"
	"github.com/codeatlas-dev/codeatlas/internal/lang"
	"github.com/codeatlas-dev/codeatlas/internal/query"
	"github.com/codeatlas-dev/codeatlas/internal/store"
)

func TestBuild(t *testing.T) {
	s, err := store.OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	ctx := context.Background()
	graphID := "atlas_project_sum"
	if err := s.UpsertProject(ctx, &store.Project{GraphID: graphID, ProjectID: "sum"}); err != nil {
		t.Fatal(err)
	}

	b := builder.New(s, graphID)
	sources := map[string][]byte{
		"a.py": []byte("def hot():\n    pass\n\ndef cold():\n    pass\n"),
		"b.py": []byte("def one():\n    hot()\n\ndef two():\n    hot()\n    hot()\n"),
	}
	if _, err := b.ProcessSources(ctx, lang.NewRegistry(), sources); err != nil {
		t.Fatal(err)
	}

	sum, err := Build(ctx, query.New(s, graphID), 5)
	if err != nil {
		t.Fatal(err)
	}
	if sum.TotalFiles != 2 {
		t.Errorf("files = %d", sum.TotalFiles)
	}
	if sum.TotalFunctions != 4 {
		t.Errorf("functions = %d", sum.TotalFunctions)
	}
	if sum.AvgFuncsPerFile != 2.0 {
		t.Errorf("avg = %f", sum.AvgFuncsPerFile)
	}
	if len(sum.MostCalled) == 0 || sum.MostCalled[0].Function != "hot" || sum.MostCalled[0].TotalCalls != 3 {
		t.Errorf("most called = %+v", sum.MostCalled)
	}
	if len(sum.FilesByLanguage["python"]) != 2 {
		t.Errorf("by language = %v", sum.FilesByLanguage)
	}
}
