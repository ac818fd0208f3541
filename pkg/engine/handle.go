package engine

import lua "github.com/Shopify/go-lua"

// 注册表中保存引擎内部状态的键
const (
	handlesKey = "patience.handles"
	gameKey    = "patience.game"
)

// Handle 是指向规则引擎对象图中某个表（牌、牌堆）的不透明引用
//
// 零值 Handle 无效。句柄只能在创建它的 Bridge 上、在 Do 回调内部使用；
// Release 之后即永久失效，编号不会被复用。
type Handle struct {
	id int
}

// Valid 判断句柄是否曾被分配
func (h Handle) Valid() bool {
	return h.id != 0
}

// ref 为栈上 idx 处的值分配一个新句柄
func (tx *Tx) ref(idx int) Handle {
	l := tx.b.l
	idx = l.AbsIndex(idx)
	tx.b.nextHandle++
	id := tx.b.nextHandle

	l.Field(lua.RegistryIndex, handlesKey)
	l.PushValue(idx)
	l.RawSetInt(-2, id)
	l.Pop(1)
	return Handle{id: id}
}

// push 把句柄引用的值压栈；句柄无效时不压栈并返回 ErrReleased
func (tx *Tx) push(h Handle) error {
	if !h.Valid() {
		return ErrReleased
	}
	l := tx.b.l
	l.Field(lua.RegistryIndex, handlesKey)
	l.RawGetInt(-1, h.id)
	l.Remove(-2)
	if l.IsNil(-1) {
		l.Pop(1)
		return ErrReleased
	}
	return nil
}

// Alive 判断句柄是否仍然可用
func (tx *Tx) Alive(h Handle) bool {
	if err := tx.push(h); err != nil {
		return false
	}
	tx.b.l.Pop(1)
	return true
}

// Release 释放句柄；重复释放是安全的
func (tx *Tx) Release(h Handle) {
	if !h.Valid() {
		return
	}
	l := tx.b.l
	l.Field(lua.RegistryIndex, handlesKey)
	l.PushNil()
	l.RawSetInt(-2, h.id)
	l.Pop(1)
}
