package engine

import (
	"log"
	"sort"
	"strings"

	lua "github.com/Shopify/go-lua"
)

// registerHostFunctions 注册规则程序可调用的宿主函数
//
// 这些函数总是在某个 Do 内被调用（锁已持有），所以只能排队事件，
// 不能直接通知监听器。
func (b *Bridge) registerHostFunctions() {
	b.l.Register("print", b.hostPrint)
	b.l.Register("score", b.hostScore)
	b.l.Register("win", b.hostEnd)
	b.l.Register("lose", b.hostEnd)
	b.l.Register("history", b.hostHistory)
	b.l.Register("save", b.hostSave)
}

func (b *Bridge) hostPrint(l *lua.State) int {
	n := l.Top()
	parts := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		parts = append(parts, describe(l, i))
	}
	log.Printf("[Rules] %s: %s", b.filename, strings.Join(parts, " "))
	return 0
}

func (b *Bridge) hostScore(l *lua.State) int {
	delta := int(lua.CheckNumber(l, 1))
	tx := &Tx{b: b}
	if err := tx.addScore(delta); err != nil {
		log.Printf("[Engine] score: %v", err)
		return 0
	}
	b.pending = append(b.pending, eventScore)
	return 0
}

func (b *Bridge) hostEnd(l *lua.State) int {
	b.pending = append(b.pending, eventEnd)
	return 0
}

// hostHistory 把当前状态追加到历史，并请求存档
func (b *Bridge) hostHistory(l *lua.State) int {
	tx := &Tx{b: b}
	s, err := tx.Serialize()
	if err != nil {
		log.Printf("[Engine] history: %v", err)
		return 0
	}
	b.history = append(b.history, s)
	b.pending = append(b.pending, eventSave)
	return 0
}

func (b *Bridge) hostSave(l *lua.State) int {
	b.pending = append(b.pending, eventSave)
	return 0
}

func describe(l *lua.State, idx int) string {
	switch l.TypeOf(idx) {
	case lua.TypeString, lua.TypeNumber:
		l.PushValue(idx)
		s, _ := l.ToString(-1)
		l.Pop(1)
		return s
	case lua.TypeBoolean:
		if l.ToBoolean(idx) {
			return "true"
		}
		return "false"
	default:
		return typeName(l, idx)
	}
}

func typeName(l *lua.State, idx int) string {
	switch l.TypeOf(idx) {
	case lua.TypeNil:
		return "nil"
	case lua.TypeBoolean:
		return "boolean"
	case lua.TypeNumber:
		return "number"
	case lua.TypeString:
		return "string"
	case lua.TypeTable:
		return "table"
	case lua.TypeFunction:
		return "function"
	case lua.TypeUserData, lua.TypeLightUserData:
		return "userdata"
	case lua.TypeThread:
		return "thread"
	default:
		return "none"
	}
}

func fieldString(l *lua.State, idx int, key string) string {
	l.Field(idx, key)
	defer l.Pop(1)
	if l.TypeOf(-1) != lua.TypeString && l.TypeOf(-1) != lua.TypeNumber {
		return ""
	}
	s, _ := l.ToString(-1)
	return s
}

func fieldNumber(l *lua.State, idx int, key string) float64 {
	l.Field(idx, key)
	defer l.Pop(1)
	n, _ := l.ToNumber(-1)
	return n
}

// fieldBool 读取布尔字段，字段为 nil 时返回 def
func fieldBool(l *lua.State, idx int, key string, def bool) bool {
	l.Field(idx, key)
	defer l.Pop(1)
	if l.IsNil(-1) {
		return def
	}
	return l.ToBoolean(-1)
}

func sortStrings(s []string) {
	sort.Strings(s)
}
