package engine

import (
	"fmt"
	"image"
	"log"
	"time"

	lua "github.com/Shopify/go-lua"

	"github.com/decker502/patience/pkg/geometry"
)

// Tx 是在持有 Bridge 锁期间对规则引擎的访问
//
// 所有方法都假定锁已被持有，并在返回前恢复 Lua 栈。
type Tx struct {
	b *Bridge
}

// CardInfo 是牌表中宿主关心的字段
type CardInfo struct {
	Suit    string
	Rank    string
	X, Y, Z int
	OffsetX float64
	OffsetY float64
	Visible bool
	Alive   bool
}

// PileInfo 是牌堆表中宿主关心的字段
type PileInfo struct {
	Name  string
	Row   float64
	Col   float64
	Back  string
	Draw  bool
	Count int
	// Transient 表示这是拖拽时分出来的临时牌堆
	Transient bool
}

// MergeResult 是合并尝试的结果
type MergeResult int

const (
	// NoTarget 表示没有可合并的目标牌堆
	NoTarget MergeResult = iota
	// NotMerged 表示目标拒绝了合并
	NotMerged
	// Merged 表示目标接受了合并
	Merged
)

func (r MergeResult) String() string {
	switch r {
	case Merged:
		return "merged"
	case NotMerged:
		return "not merged"
	default:
		return "no target"
	}
}

// fail 记录必需函数的失败，它对当前对局是致命的
func (tx *Tx) fail(fn string, err error) error {
	fault := &EngineFault{Func: fn, Err: err}
	if tx.b.fault == nil {
		tx.b.fault = fault
	}
	log.Printf("[Engine] %s: %v", tx.b.filename, fault)
	return fault
}

func (tx *Tx) pushGame() error {
	l := tx.b.l
	l.Field(lua.RegistryIndex, gameKey)
	if !l.IsTable(-1) {
		l.Pop(1)
		return ErrNoGame
	}
	return nil
}

func (tx *Tx) gameBool(key string, def bool) bool {
	l := tx.b.l
	top := l.Top()
	defer l.SetTop(top)
	if tx.pushGame() != nil {
		return def
	}
	return fieldBool(l, -1, key, def)
}

// Serialize 调用 serialize(game)
func (tx *Tx) Serialize() (string, error) {
	l := tx.b.l
	top := l.Top()
	defer l.SetTop(top)

	l.Global("serialize")
	if !l.IsFunction(-1) {
		return "", tx.fail("serialize", ErrMissingFunction)
	}
	if err := tx.pushGame(); err != nil {
		return "", err
	}
	if err := l.ProtectedCall(1, 1, 0); err != nil {
		return "", tx.fail("serialize", err)
	}
	s, ok := l.ToString(-1)
	if !ok {
		return "", tx.fail("serialize", fmt.Errorf("returned %s, want string", typeName(l, -1)))
	}
	return s, nil
}

// deserialize 调用 deserialize(snapshot) 并替换游戏对象
func (tx *Tx) deserialize(snapshot string) error {
	l := tx.b.l
	top := l.Top()
	defer l.SetTop(top)

	l.Global("deserialize")
	if !l.IsFunction(-1) {
		return tx.fail("deserialize", ErrMissingFunction)
	}
	l.PushString(snapshot)
	if err := l.ProtectedCall(1, 1, 0); err != nil {
		return tx.fail("deserialize", err)
	}
	if !l.IsTable(-1) {
		return tx.fail("deserialize", fmt.Errorf("returned %s, want table", typeName(l, -1)))
	}
	l.SetField(lua.RegistryIndex, gameKey)
	return nil
}

// Score 返回 game.score
func (tx *Tx) Score() int {
	l := tx.b.l
	top := l.Top()
	defer l.SetTop(top)
	if tx.pushGame() != nil {
		return 0
	}
	return int(fieldNumber(l, -1, "score"))
}

// HasWon 返回 game.won
func (tx *Tx) HasWon() bool {
	return tx.gameBool("won", false)
}

// Board 返回 game.board 的行列数，至少为 1
func (tx *Tx) Board() (rows, cols int) {
	l := tx.b.l
	top := l.Top()
	defer l.SetTop(top)
	rows, cols = 1, 1
	if tx.pushGame() != nil {
		return rows, cols
	}
	l.Field(-1, "board")
	if !l.IsTable(-1) {
		return rows, cols
	}
	rows = max(int(fieldNumber(l, -1, "rows")), 1)
	cols = max(int(fieldNumber(l, -1, "cols")), 1)
	return rows, cols
}

// Piles 为 game.piles 中的每个牌堆分配句柄，按键名排序
func (tx *Tx) Piles() ([]Handle, error) {
	l := tx.b.l
	top := l.Top()
	defer l.SetTop(top)
	if err := tx.pushGame(); err != nil {
		return nil, err
	}
	l.Field(-1, "piles")
	if !l.IsTable(-1) {
		return nil, nil
	}
	piles := l.AbsIndex(-1)

	var keys []string
	l.PushNil()
	for l.Next(piles) {
		if l.TypeOf(-2) == lua.TypeString && l.IsTable(-1) {
			k, _ := l.ToString(-2)
			keys = append(keys, k)
		}
		l.Pop(1)
	}
	sortStrings(keys)

	handles := make([]Handle, 0, len(keys))
	for _, k := range keys {
		l.Field(piles, k)
		handles = append(handles, tx.ref(-1))
		l.Pop(1)
	}
	return handles, nil
}

// Cards 为牌堆中的每张牌分配句柄，自底向上
func (tx *Tx) Cards(pile Handle) ([]Handle, error) {
	l := tx.b.l
	top := l.Top()
	defer l.SetTop(top)
	if err := tx.push(pile); err != nil {
		return nil, err
	}
	l.Field(-1, "cards")
	if !l.IsTable(-1) {
		return nil, nil
	}
	cards := l.AbsIndex(-1)
	n := l.RawLength(cards)
	handles := make([]Handle, 0, n)
	for i := 1; i <= n; i++ {
		l.RawGetInt(cards, i)
		if l.IsTable(-1) {
			handles = append(handles, tx.ref(-1))
		}
		l.Pop(1)
	}
	return handles, nil
}

// Card 读取牌的字段
func (tx *Tx) Card(card Handle) (CardInfo, error) {
	l := tx.b.l
	top := l.Top()
	defer l.SetTop(top)
	if err := tx.push(card); err != nil {
		return CardInfo{}, err
	}
	return CardInfo{
		Suit:    fieldString(l, -1, "suit"),
		Rank:    fieldString(l, -1, "rank"),
		X:       int(fieldNumber(l, -1, "x")),
		Y:       int(fieldNumber(l, -1, "y")),
		Z:       int(fieldNumber(l, -1, "z")),
		OffsetX: fieldNumber(l, -1, "offsetX"),
		OffsetY: fieldNumber(l, -1, "offsetY"),
		Visible: fieldBool(l, -1, "visible", false),
		Alive:   fieldBool(l, -1, "alive", true),
	}, nil
}

// Pile 读取牌堆的字段
func (tx *Tx) Pile(pile Handle) (PileInfo, error) {
	l := tx.b.l
	top := l.Top()
	defer l.SetTop(top)
	if err := tx.push(pile); err != nil {
		return PileInfo{}, err
	}
	info := PileInfo{
		Name: fieldString(l, -1, "name"),
		Row:  fieldNumber(l, -1, "row"),
		Col:  fieldNumber(l, -1, "col"),
		Back: fieldString(l, -1, "back"),
		Draw: fieldBool(l, -1, "draw", true),
	}
	l.Field(-1, "source")
	info.Transient = l.IsTable(-1)
	l.Pop(1)
	l.Field(-1, "cards")
	if l.IsTable(-1) {
		info.Count = l.RawLength(-1)
	}
	return info, nil
}

// CardCount 返回牌堆中的牌数
func (tx *Tx) CardCount(pile Handle) int {
	info, err := tx.Pile(pile)
	if err != nil {
		return 0
	}
	return info.Count
}

// pushCard 压入 pile.cards[i+1]
func (tx *Tx) pushCard(pile Handle, i int) error {
	l := tx.b.l
	if err := tx.push(pile); err != nil {
		return err
	}
	l.Field(-1, "cards")
	l.Remove(-2)
	if !l.IsTable(-1) {
		l.Pop(1)
		return fmt.Errorf("pile has no cards table")
	}
	l.RawGetInt(-1, i+1)
	l.Remove(-2)
	if !l.IsTable(-1) {
		l.Pop(1)
		return fmt.Errorf("pile has no card at %d", i)
	}
	return nil
}

// CardAlive 判断牌堆中第 i 张（从 0 开始）牌是否存活
func (tx *Tx) CardAlive(pile Handle, i int) bool {
	l := tx.b.l
	top := l.Top()
	defer l.SetTop(top)
	if tx.pushCard(pile, i) != nil {
		return false
	}
	return fieldBool(l, -1, "alive", true)
}

// PlaceCard 写入牌堆中第 i 张牌的位置和层级
func (tx *Tx) PlaceCard(pile Handle, i, x, y, z int) error {
	l := tx.b.l
	top := l.Top()
	defer l.SetTop(top)
	if err := tx.pushCard(pile, i); err != nil {
		return err
	}
	l.PushInteger(x)
	l.SetField(-2, "x")
	l.PushInteger(y)
	l.SetField(-2, "y")
	l.PushInteger(z)
	l.SetField(-2, "z")
	return nil
}

// Layout 调用 pile.layout(rect, width, height, pile)，返回每张牌的位置
func (tx *Tx) Layout(pile Handle, rect geometry.Rect, width, height int) ([]image.Point, error) {
	l := tx.b.l
	top := l.Top()
	defer l.SetTop(top)
	if err := tx.push(pile); err != nil {
		return nil, err
	}
	p := l.AbsIndex(-1)

	l.Field(p, "layout")
	if !l.IsFunction(-1) {
		return nil, tx.fail("layout", ErrMissingFunction)
	}
	l.CreateTable(0, 4)
	for _, f := range []struct {
		key string
		v   int
	}{{"left", rect.Left}, {"top", rect.Top}, {"right", rect.Right}, {"bottom", rect.Bottom}} {
		l.PushInteger(f.v)
		l.SetField(-2, f.key)
	}
	l.PushInteger(width)
	l.PushInteger(height)
	l.PushValue(p)
	if err := l.ProtectedCall(4, 1, 0); err != nil {
		return nil, tx.fail("layout", err)
	}
	if !l.IsTable(-1) {
		return nil, tx.fail("layout", fmt.Errorf("returned %s, want table", typeName(l, -1)))
	}
	res := l.AbsIndex(-1)
	n := l.RawLength(res)
	points := make([]image.Point, n)
	for i := 1; i <= n; i++ {
		l.RawGetInt(res, i)
		if l.IsTable(-1) {
			points[i-1] = image.Pt(int(fieldNumber(l, -1, "x")), int(fieldNumber(l, -1, "y")))
		}
		l.Pop(1)
	}
	return points, nil
}

// Split 调用 pile.split(game, pile, card)
//
// 返回非空时，构造一个临时牌堆：继承原牌堆的 name、row、col、layout，
// 持有分出的牌，不能再分、点击或被合并，source 指向原牌堆。
// 没有可拖动的牌时返回零值句柄。
func (tx *Tx) Split(pile, card Handle) (Handle, error) {
	l := tx.b.l
	top := l.Top()
	defer l.SetTop(top)
	if err := tx.push(pile); err != nil {
		return Handle{}, err
	}
	p := l.AbsIndex(-1)

	l.Field(p, "split")
	if !l.IsFunction(-1) {
		return Handle{}, tx.fail("split", ErrMissingFunction)
	}
	if err := tx.pushGame(); err != nil {
		return Handle{}, err
	}
	l.PushValue(p)
	if err := tx.push(card); err != nil {
		return Handle{}, err
	}
	if err := l.ProtectedCall(3, 1, 0); err != nil {
		return Handle{}, tx.fail("split", err)
	}
	if !l.IsTable(-1) || l.RawLength(-1) == 0 {
		return Handle{}, nil
	}
	cards := l.AbsIndex(-1)

	l.CreateTable(0, 10)
	t := l.AbsIndex(-1)
	for _, k := range []string{"name", "row", "col", "layout"} {
		l.Field(p, k)
		l.SetField(t, k)
	}
	l.PushValue(cards)
	l.SetField(t, "cards")
	for k, fn := range map[string]string{"split": "noSplit", "tap": "noTap", "merge": "noMerge"} {
		l.Global(fn)
		l.SetField(t, k)
	}
	l.PushBoolean(false)
	l.SetField(t, "draw")
	l.PushValue(p)
	l.SetField(t, "source")
	return tx.ref(t), nil
}

// Merge 调用 target.merge(game, target, source)
//
// merge 是可选的：缺失或出错都视为拒绝。
func (tx *Tx) Merge(target, source Handle) MergeResult {
	if !target.Valid() {
		return NoTarget
	}
	l := tx.b.l
	top := l.Top()
	defer l.SetTop(top)
	if err := tx.push(target); err != nil {
		log.Printf("[Engine] merge target: %v", err)
		return NoTarget
	}
	t := l.AbsIndex(-1)
	l.Field(t, "merge")
	if !l.IsFunction(-1) {
		return NotMerged
	}
	if err := tx.pushGame(); err != nil {
		return NotMerged
	}
	l.PushValue(t)
	if err := tx.push(source); err != nil {
		log.Printf("[Engine] merge source: %v", err)
		return NotMerged
	}
	if err := l.ProtectedCall(3, 1, 0); err != nil {
		log.Printf("[Engine] %s: merge failed: %v", tx.b.filename, err)
		return NotMerged
	}
	if l.ToBoolean(-1) {
		return Merged
	}
	return NotMerged
}

// Revert 把临时牌堆中的牌按原顺序放回 parent 顶部，返回移动的张数
//
// 不记录历史：对规则程序而言牌从未离开过。
func (tx *Tx) Revert(source, parent Handle) (int, error) {
	l := tx.b.l
	top := l.Top()
	defer l.SetTop(top)
	if err := tx.push(parent); err != nil {
		return 0, err
	}
	p := l.AbsIndex(-1)
	if err := tx.push(source); err != nil {
		return 0, err
	}
	s := l.AbsIndex(-1)

	l.Field(p, "cards")
	if !l.IsTable(-1) {
		l.Pop(1)
		l.NewTable()
		l.PushValue(-1)
		l.SetField(p, "cards")
	}
	dst := l.AbsIndex(-1)
	l.Field(s, "cards")
	if !l.IsTable(-1) {
		return 0, nil
	}
	src := l.AbsIndex(-1)

	base := l.RawLength(dst)
	n := l.RawLength(src)
	for i := 1; i <= n; i++ {
		l.RawGetInt(src, i)
		l.RawSetInt(dst, base+i)
	}
	l.NewTable()
	l.SetField(s, "cards")
	return n, nil
}

// TapPile 调用 pile.tap(game)（可选）
func (tx *Tx) TapPile(pile Handle) error {
	l := tx.b.l
	top := l.Top()
	defer l.SetTop(top)
	if err := tx.push(pile); err != nil {
		return err
	}
	l.Field(-1, "tap")
	if !l.IsFunction(-1) {
		return nil
	}
	if err := tx.pushGame(); err != nil {
		return err
	}
	if err := l.ProtectedCall(1, 0, 0); err != nil {
		log.Printf("[Engine] %s: tap failed: %v", tx.b.filename, err)
	}
	return nil
}

// TapCard 调用全局 tapCard(game, card)（可选）
func (tx *Tx) TapCard(card Handle) error {
	l := tx.b.l
	top := l.Top()
	defer l.SetTop(top)
	l.Global("tapCard")
	if !l.IsFunction(-1) {
		return nil
	}
	if err := tx.pushGame(); err != nil {
		return err
	}
	if err := tx.push(card); err != nil {
		return err
	}
	if err := l.ProtectedCall(2, 0, 0); err != nil {
		log.Printf("[Engine] %s: tapCard failed: %v", tx.b.filename, err)
	}
	return nil
}

func (tx *Tx) bonus(elapsed time.Duration) error {
	l := tx.b.l
	top := l.Top()
	defer l.SetTop(top)
	l.Global("bonus")
	if !l.IsFunction(-1) {
		return nil
	}
	if err := tx.pushGame(); err != nil {
		return err
	}
	l.PushInteger(int(elapsed.Milliseconds()))
	if err := l.ProtectedCall(2, 1, 0); err != nil {
		log.Printf("[Engine] %s: bonus failed: %v", tx.b.filename, err)
		return nil
	}
	n, _ := l.ToNumber(-1)
	return tx.addScore(int(n))
}

func (tx *Tx) resize(width, height int) error {
	l := tx.b.l
	top := l.Top()
	defer l.SetTop(top)
	l.Global("resize")
	if !l.IsFunction(-1) {
		return nil
	}
	if err := tx.pushGame(); err != nil {
		return err
	}
	l.PushInteger(width)
	l.PushInteger(height)
	if err := l.ProtectedCall(3, 0, 0); err != nil {
		log.Printf("[Engine] %s: resize failed: %v", tx.b.filename, err)
	}
	return nil
}

// addScore 把 delta 加到 game.score 上，分数不低于 0
func (tx *Tx) addScore(delta int) error {
	l := tx.b.l
	top := l.Top()
	defer l.SetTop(top)
	if err := tx.pushGame(); err != nil {
		return err
	}
	score := max(int(fieldNumber(l, -1, "score"))+delta, 0)
	l.PushInteger(score)
	l.SetField(-2, "score")
	return nil
}

func (tx *Tx) options() []Option {
	l := tx.b.l
	top := l.Top()
	defer l.SetTop(top)
	if tx.pushGame() != nil {
		return nil
	}
	l.Field(-1, "options")
	if !l.IsTable(-1) {
		return nil
	}
	t := l.AbsIndex(-1)
	byKey := map[string]Option{}
	l.PushNil()
	for l.Next(t) {
		if l.TypeOf(-2) == lua.TypeString && l.IsTable(-1) {
			k, _ := l.ToString(-2)
			byKey[k] = Option{
				Key:     k,
				Display: fieldString(l, -1, "display"),
				Value:   fieldBool(l, -1, "value", false),
			}
		}
		l.Pop(1)
	}
	opts := make([]Option, 0, len(byKey))
	for _, k := range sortedKeys(byKey) {
		opts = append(opts, byKey[k])
	}
	return opts
}

func (tx *Tx) setOption(key string, value bool) error {
	l := tx.b.l
	top := l.Top()
	defer l.SetTop(top)
	if err := tx.pushGame(); err != nil {
		return err
	}
	game := l.AbsIndex(-1)
	l.Field(game, "options")
	if !l.IsTable(-1) {
		return fmt.Errorf("rules %s declare no options", tx.b.filename)
	}
	l.Field(-1, key)
	if !l.IsTable(-1) {
		return fmt.Errorf("rules %s have no option %q", tx.b.filename, key)
	}
	l.PushBoolean(value)
	l.SetField(-2, "value")

	l.Global("updateOptions")
	if !l.IsFunction(-1) {
		return nil
	}
	l.PushValue(game)
	if err := l.ProtectedCall(1, 0, 0); err != nil {
		return &EngineFault{Func: "updateOptions", Err: err}
	}
	return nil
}
