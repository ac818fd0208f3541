package embedded

import (
	"io/fs"
	"testing"
	"testing/fstest"
)

func initTestFS(t *testing.T) {
	t.Helper()
	Init(
		fstest.MapFS{
			"assets/config/cards.yaml": {Data: []byte("version: \"1.0\"\n")},
			"assets/cards/back.png":    {Data: []byte("png")},
		},
		fstest.MapFS{
			"rules/klondike.lua": {Data: []byte("--#!GameRules Klondike\n")},
			"rules/common.lua":   {Data: []byte("-- helper\n")},
		},
	)
	t.Cleanup(func() { initialized = false })
}

// TestNotInitialized 测试未初始化时的行为
func TestNotInitialized(t *testing.T) {
	initialized = false

	if IsInitialized() {
		t.Error("Expected IsInitialized() to return false before Init()")
	}
	if _, err := Open("assets/test.png"); err == nil || err.Error() != errNotInitialized.Error() {
		t.Errorf("Open() error = %v", err)
	}
	if _, err := ReadFile("rules/klondike.lua"); err == nil {
		t.Error("Expected error when calling ReadFile() before Init()")
	}
	if Exists("assets/test.png") {
		t.Error("Expected Exists() to return false before Init()")
	}
}

func TestReadFileByPrefix(t *testing.T) {
	initTestFS(t)

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{"asset", "assets/config/cards.yaml", "version: \"1.0\"\n", false},
		{"rules", "rules/klondike.lua", "--#!GameRules Klondike\n", false},
		{"dot prefix", "./rules/klondike.lua", "--#!GameRules Klondike\n", false},
		{"unknown prefix", "data/levels/1-1.yaml", "", true},
		{"prefix lookalike", "rulesets/x.lua", "", true},
		{"missing", "rules/spider.lua", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := ReadFile(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ReadFile(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
			if string(data) != tt.want {
				t.Errorf("ReadFile(%q) = %q, want %q", tt.path, data, tt.want)
			}
		})
	}
}

func TestGlobAndReadDir(t *testing.T) {
	initTestFS(t)

	matches, err := Glob("rules/*.lua")
	if err != nil {
		t.Fatalf("Glob() error: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("Glob() = %v, want 2 matches", matches)
	}

	entries, err := ReadDir("assets/cards")
	if err != nil {
		t.Fatalf("ReadDir() error: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "back.png" {
		t.Errorf("ReadDir() = %v", entries)
	}

	info, err := Stat("assets/cards/back.png")
	if err != nil || info.Size() != 3 {
		t.Errorf("Stat() = %v, %v", info, err)
	}
}

func TestFS(t *testing.T) {
	initTestFS(t)
	fsys := FS()

	data, err := fs.ReadFile(fsys, "rules/klondike.lua")
	if err != nil || string(data) != "--#!GameRules Klondike\n" {
		t.Errorf("ReadFile via FS() = %q, %v", data, err)
	}
	if _, err := fsys.Open("data/x"); err == nil {
		t.Error("expected error for unknown prefix")
	}
	if _, err := fsys.Open("../escape"); err == nil {
		t.Error("expected error for invalid path")
	}
}
