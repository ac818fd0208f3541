package game

import (
	"testing"

	"github.com/quasilyte/gdata/v2"
)

// openTestGdata 在临时目录中打开 gdata；环境不支持时跳过测试
func openTestGdata(t *testing.T, appName string) *gdata.Manager {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_DATA_HOME", dir)

	manager, err := gdata.Open(gdata.Config{AppName: appName})
	if err != nil {
		t.Skipf("gdata unavailable: %v", err)
	}
	return manager
}

func TestPropertyName(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"klondike.lua", "klondike"},
		{"rules/free cell.lua", "free_cell"},
		{"spider", "spider"},
	}
	for _, tt := range tests {
		if got := propertyName(tt.filename); got != tt.want {
			t.Errorf("propertyName(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}

func TestPreferencesDegradedMode(t *testing.T) {
	p := NewPreferences(nil)

	if opts := p.Options("klondike.lua"); len(opts) != 0 {
		t.Fatalf("Options() = %v, want empty", opts)
	}
	if err := p.SetOption("klondike.lua", "drawThree", true); err != nil {
		t.Fatalf("SetOption() error: %v", err)
	}
	if !p.Options("klondike.lua")["drawThree"] {
		t.Error("option not kept in memory")
	}
	if len(p.Options("spider.lua")) != 0 {
		t.Error("options leaked to another rule program")
	}
}

func TestPreferencesPersist(t *testing.T) {
	manager := openTestGdata(t, "patience_prefs_test")

	p1 := NewPreferences(manager)
	if err := p1.SetOption("klondike.lua", "drawThree", true); err != nil {
		t.Fatalf("SetOption() error: %v", err)
	}
	if err := p1.SetOption("klondike.lua", "autoFlip", false); err != nil {
		t.Fatalf("SetOption() error: %v", err)
	}

	p2 := NewPreferences(manager)
	opts := p2.Options("klondike.lua")
	if len(opts) != 2 || !opts["drawThree"] || opts["autoFlip"] {
		t.Errorf("reloaded options = %v", opts)
	}
}
