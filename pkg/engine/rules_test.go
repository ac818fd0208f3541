package engine

import (
	"os"
	"testing"
	"testing/fstest"
)

func TestIsRules(t *testing.T) {
	tests := []struct {
		script string
		title  string
		ok     bool
	}{
		{"--#!GameRules Klondike\nfunction init() end", "Klondike", true},
		{"--#!GameRules\n", "", true},
		{"\ufeff--#!GameRules Spider\n", "Spider", true},
		{"-- helper\n--#!GameRules\n", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		title, ok := IsRules(tt.script)
		if title != tt.title || ok != tt.ok {
			t.Errorf("IsRules(%q) = %q, %v; want %q, %v", tt.script, title, ok, tt.title, tt.ok)
		}
	}
}

func TestListRules(t *testing.T) {
	rules, err := ListRules(os.DirFS("testdata"), ".")
	if err != nil {
		t.Fatalf("ListRules: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("ListRules returned %d files, want 2", len(rules))
	}
	if rules[0].Filename != "broken.lua" || rules[1].Filename != "fixture.lua" {
		t.Errorf("ListRules = %s, %s", rules[0].Filename, rules[1].Filename)
	}
	if rules[1].Title != "Fixture" {
		t.Errorf("title = %q, want Fixture", rules[1].Title)
	}
}

func TestFindRules(t *testing.T) {
	fsys := fstest.MapFS{
		"rules/ok.lua":     {Data: []byte("--#!GameRules\n")},
		"rules/helper.lua": {Data: []byte("-- helper\n")},
	}
	if _, err := FindRules(fsys, "rules", "ok.lua"); err != nil {
		t.Errorf("FindRules(ok.lua): %v", err)
	}
	if _, err := FindRules(fsys, "rules", "helper.lua"); err == nil {
		t.Error("FindRules(helper.lua) accepted a file without the marker")
	}
	if _, err := FindRules(fsys, "rules", "missing.lua"); err == nil {
		t.Error("FindRules(missing.lua) succeeded")
	}
}
