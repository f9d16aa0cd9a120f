package entity

import "testing"

func TestSanitizeDropsEmptyNames(t *testing.T) {
	pf := &ParsedFile{
		Path: "a.py",
		Globals: []Variable{
			{Name: "  "},
			{Name: "CONFIG"},
		},
		Classes: []Class{
			{Name: ""},
			{
				Name:   " Widget ",
				Supers: []string{"Base", "  "},
				Methods: []Function{
					{Name: "render", Calls: []Call{{Callee: ""}, {Callee: "draw"}}},
					{Name: "\t"},
				},
			},
		},
		Functions: []Function{{Name: "main"}},
		Imports:   []Import{{Module: "  "}, {Module: "os"}},
	}
	pf.Sanitize()

	if len(pf.Globals) != 1 || pf.Globals[0].Name != "CONFIG" {
		t.Fatalf("globals = %+v", pf.Globals)
	}
	if len(pf.Classes) != 1 {
		t.Fatalf("classes = %+v", pf.Classes)
	}
	c := pf.Classes[0]
	if c.Name != "Widget" {
		t.Errorf("class name = %q", c.Name)
	}
	if len(c.Supers) != 1 || c.Supers[0] != "Base" {
		t.Errorf("supers = %v", c.Supers)
	}
	if len(c.Methods) != 1 || len(c.Methods[0].Calls) != 1 {
		t.Errorf("methods = %+v", c.Methods)
	}
	if len(pf.Imports) != 1 || pf.Imports[0].Module != "os" {
		t.Errorf("imports = %+v", pf.Imports)
	}
}

func TestAttrComponentKind(t *testing.T) {
	cases := []struct {
		attrs Attr
		want  string
	}{
		{AttrActivity | AttrExported, "activity"},
		{AttrService, "service"},
		{AttrReceiver, "receiver"},
		{AttrProvider, "provider"},
		{AttrExported, ""},
		{0, ""},
	}
	for _, tc := range cases {
		if got := tc.attrs.ComponentKind(); got != tc.want {
			t.Errorf("ComponentKind(%b) = %q, want %q", tc.attrs, got, tc.want)
		}
	}
}

func TestAttrHas(t *testing.T) {
	a := AttrSuspend | AttrExtension
	if !a.Has(AttrSuspend) || !a.Has(AttrExtension) {
		t.Error("expected suspend and extension set")
	}
	if a.Has(AttrAsync) {
		t.Error("async should not be set")
	}
	if !a.Has(AttrSuspend | AttrExtension) {
		t.Error("combined flag check failed")
	}
}
