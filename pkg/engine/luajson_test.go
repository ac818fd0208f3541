package engine

import (
	"testing"

	lua "github.com/Shopify/go-lua"
)

func runLua(t *testing.T, script string) *lua.State {
	t.Helper()
	l := lua.NewState()
	lua.OpenLibraries(l)
	openJSON(l)
	if err := lua.DoString(l, script); err != nil {
		t.Fatalf("DoString: %v", err)
	}
	return l
}

func globalString(l *lua.State, name string) string {
	l.Global(name)
	defer l.Pop(1)
	s, _ := l.ToString(-1)
	return s
}

func TestJSONEncode(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   string
	}{
		{"array", `out = json.encode({1, 2, 3})`, `[1,2,3]`},
		{"empty table", `out = json.encode({})`, `[]`},
		{"object keys sorted", `out = json.encode({b = 1, a = true})`, `{"a":true,"b":1}`},
		{"functions skipped", `out = json.encode({f = function() end, n = 'x'})`, `{"n":"x"}`},
		{"fraction", `out = json.encode({0.5})`, `[0.5]`},
		{"nested", `out = json.encode({cards = {{suit = 'HEARTS'}}})`, `{"cards":[{"suit":"HEARTS"}]}`},
		{"sparse array", `out = json.encode({[1] = 'a', [3] = 'c'})`, `{"1":"a","3":"c"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := runLua(t, tt.script)
			if got := globalString(l, "out"); got != tt.want {
				t.Errorf("encode = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestJSONDecode(t *testing.T) {
	l := runLua(t, `
		local t = json.decode('{"x":[1,2],"y":"s","z":false,"w":{"k":3.5}}')
		ok = t.x[2] == 2 and #t.x == 2 and t.y == 's' and t.z == false and t.w.k == 3.5
	`)
	l.Global("ok")
	defer l.Pop(1)
	if !l.ToBoolean(-1) {
		t.Error("decoded table does not match input")
	}
}

func TestJSONCycle(t *testing.T) {
	l := lua.NewState()
	lua.OpenLibraries(l)
	openJSON(l)
	if err := lua.DoString(l, `local t = {} t.self = t out = json.encode(t)`); err == nil {
		t.Error("encoding a cyclic table succeeded")
	}
}
