// Package engine 承载规则程序（Lua 脚本）并向宿主暴露其游戏对象
//
// Bridge 独占一个 Lua 虚拟机。虚拟机不是线程安全的，所以每次访问都要持有
// Bridge 的锁：公开方法各自加锁一次；需要多步读写的调用方通过 Do 拿到
// Tx，在一次加锁内完成整批操作。
//
// 规则程序回调宿主（score、win、lose、history、save）时锁仍被持有，
// 因此监听器不会在回调中同步执行：事件先排队，等锁释放后再依次通知。
// 监听器里调用 Score 等方法是安全的。
package engine

import (
	_ "embed"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	lua "github.com/Shopify/go-lua"
)

//go:embed common.lua
var commonLibrary string

// Listener 是规则程序事件的回调
type Listener func()

type event int

const (
	eventScore event = iota
	eventEnd
	eventSave
)

// Config 描述要加载的规则程序
type Config struct {
	// Filename 是规则程序的标识（通常是文件名），用于日志和存档
	Filename string
	// Script 是规则程序源码
	Script string
	// Seed 用于 math.randomseed；0 表示使用当前时间
	Seed int64
}

// Option 是规则程序声明的一个布尔选项
type Option struct {
	Key     string
	Display string
	Value   bool
}

// Properties 是规则程序的 properties 表
type Properties struct {
	Name        string
	Description string
	Rules       string
	Version     int
}

// Snapshot 是一次加锁内取得的可持久化状态副本
type Snapshot struct {
	Filename string
	Name     string
	State    string
	History  []string
	Score    int
	Won      bool
}

// Bridge 是宿主与规则程序之间唯一的通道
type Bridge struct {
	mu         sync.Mutex
	l          *lua.State
	filename   string
	props      Properties
	history    []string
	pending    []event
	nextHandle int
	fault      error
	closed     bool

	lmu            sync.Mutex
	scoreListeners []Listener
	endListeners   []Listener
	saveListeners  []Listener
}

// New 创建虚拟机，加载公共库和规则程序
//
// 规则程序只在顶层定义函数和 properties 表；调用 Initialize 或
// Deserialize 之后才有游戏对象。
func New(cfg Config) (*Bridge, error) {
	b := &Bridge{
		l:        lua.NewState(),
		filename: cfg.Filename,
	}
	l := b.l
	lua.OpenLibraries(l)

	l.NewTable()
	l.SetField(lua.RegistryIndex, handlesKey)

	b.registerHostFunctions()
	openJSON(l)

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if err := lua.DoString(l, fmt.Sprintf("math.randomseed(%d)", seed&0x7fffffff)); err != nil {
		return nil, fmt.Errorf("failed to seed rule engine: %w", err)
	}

	if err := lua.LoadBuffer(l, commonLibrary, "=common.lua", ""); err != nil {
		return nil, fmt.Errorf("failed to load common library: %w", err)
	}
	if err := l.ProtectedCall(0, 0, 0); err != nil {
		return nil, fmt.Errorf("failed to run common library: %w", err)
	}

	if err := lua.LoadBuffer(l, cfg.Script, "="+cfg.Filename, ""); err != nil {
		return nil, fmt.Errorf("failed to load rules %s: %w", cfg.Filename, err)
	}
	if err := l.ProtectedCall(0, 0, 0); err != nil {
		return nil, fmt.Errorf("failed to run rules %s: %w", cfg.Filename, err)
	}

	b.props = b.readProperties()
	log.Printf("[Engine] Loaded rules %s (%s v%d)", cfg.Filename, b.props.Name, b.props.Version)
	return b, nil
}

// Do 在持有锁的情况下执行 fn
//
// Tx 只在 fn 内有效。fn 中不得调用 Bridge 的其他公开方法（会死锁）。
// fn 返回后、锁释放后，排队的事件才会通知给监听器。
func (b *Bridge) Do(fn func(tx *Tx) error) error {
	events, err := b.locked(fn)
	b.dispatch(events)
	return err
}

func (b *Bridge) locked(fn func(tx *Tx) error) ([]event, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrReleased
	}
	err := fn(&Tx{b: b})
	events := b.pending
	b.pending = nil
	return events, err
}

func (b *Bridge) dispatch(events []event) {
	for _, e := range events {
		b.lmu.Lock()
		var ls []Listener
		switch e {
		case eventScore:
			ls = append(ls, b.scoreListeners...)
		case eventEnd:
			ls = append(ls, b.endListeners...)
		case eventSave:
			ls = append(ls, b.saveListeners...)
		}
		b.lmu.Unlock()
		for _, fn := range ls {
			fn()
		}
	}
}

// OnScore 注册分数变化监听器
func (b *Bridge) OnScore(fn Listener) {
	b.lmu.Lock()
	b.scoreListeners = append(b.scoreListeners, fn)
	b.lmu.Unlock()
}

// OnEnd 注册对局结束（胜或负）监听器
func (b *Bridge) OnEnd(fn Listener) {
	b.lmu.Lock()
	b.endListeners = append(b.endListeners, fn)
	b.lmu.Unlock()
}

// OnSave 注册存档请求监听器（history() 和 save() 都会触发）
func (b *Bridge) OnSave(fn Listener) {
	b.lmu.Lock()
	b.saveListeners = append(b.saveListeners, fn)
	b.lmu.Unlock()
}

// Close 释放虚拟机；之后所有调用返回 ErrReleased
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.l = nil
	b.history = nil
}

// Err 返回导致当前对局失效的第一个致命错误
func (b *Bridge) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fault
}

// Filename 返回规则程序标识
func (b *Bridge) Filename() string { return b.filename }

// Properties 返回规则程序的 properties 表
func (b *Bridge) Properties() Properties { return b.props }

// Name 返回规则名称，未声明时退回到文件名
func (b *Bridge) Name() string {
	if b.props.Name == "" {
		return b.filename
	}
	return b.props.Name
}

// Description 返回规则简介
func (b *Bridge) Description() string { return b.props.Description }

// Rules 返回规则说明文字
func (b *Bridge) Rules() string { return b.props.Rules }

// Initialize 调用 init() 开始新对局，并把初始状态记入历史
func (b *Bridge) Initialize() error {
	return b.Do(func(tx *Tx) error {
		l := b.l
		top := l.Top()
		defer l.SetTop(top)

		l.Global("init")
		if !l.IsFunction(-1) {
			return tx.fail("init", ErrMissingFunction)
		}
		if err := l.ProtectedCall(0, 1, 0); err != nil {
			return tx.fail("init", err)
		}
		if !l.IsTable(-1) {
			return tx.fail("init", fmt.Errorf("returned %s, want table", typeName(l, -1)))
		}
		l.SetField(lua.RegistryIndex, gameKey)

		s, err := tx.Serialize()
		if err != nil {
			return err
		}
		b.history = append(b.history, s)
		return nil
	})
}

// Serialize 返回当前状态的不透明快照
func (b *Bridge) Serialize() (string, error) {
	var s string
	err := b.Do(func(tx *Tx) error {
		var err error
		s, err = tx.Serialize()
		return err
	})
	return s, err
}

// Deserialize 用快照替换当前游戏对象；历史保持不变
//
// 之前分配的句柄仍然指向旧对象，调用方应在此之前注销所有组件。
func (b *Bridge) Deserialize(snapshot string) error {
	return b.Do(func(tx *Tx) error {
		return tx.deserialize(snapshot)
	})
}

// Restore 用快照和历史恢复一局存档
func (b *Bridge) Restore(snapshot string, history []string) error {
	return b.Do(func(tx *Tx) error {
		if err := tx.deserialize(snapshot); err != nil {
			return err
		}
		b.history = append([]string(nil), history...)
		if len(b.history) == 0 {
			b.history = append(b.history, snapshot)
		}
		return nil
	})
}

// Undo 丢弃最新的历史记录（至少保留一条）并恢复到新的最新记录
func (b *Bridge) Undo() error {
	return b.Do(func(tx *Tx) error {
		if len(b.history) == 0 {
			return ErrNoHistory
		}
		if len(b.history) > 1 {
			b.history = b.history[:len(b.history)-1]
		}
		if err := tx.deserialize(b.history[len(b.history)-1]); err != nil {
			return err
		}
		b.pending = append(b.pending, eventScore)
		return nil
	})
}

// Snapshot 在一次加锁内序列化状态并复制历史
func (b *Bridge) Snapshot() (Snapshot, error) {
	var snap Snapshot
	err := b.Do(func(tx *Tx) error {
		s, err := tx.Serialize()
		if err != nil {
			return err
		}
		snap = Snapshot{
			Filename: b.filename,
			Name:     b.Name(),
			State:    s,
			History:  append([]string(nil), b.history...),
			Score:    tx.Score(),
			Won:      tx.HasWon(),
		}
		return nil
	})
	return snap, err
}

// History 返回历史快照的副本，最旧的在前
func (b *Bridge) History() []string {
	var h []string
	_ = b.Do(func(tx *Tx) error {
		h = append([]string(nil), b.history...)
		return nil
	})
	return h
}

// Score 返回当前分数
func (b *Bridge) Score() int {
	var score int
	_ = b.Do(func(tx *Tx) error {
		score = tx.Score()
		return nil
	})
	return score
}

// HasWon 判断对局是否已胜利
func (b *Bridge) HasWon() bool {
	var won bool
	_ = b.Do(func(tx *Tx) error {
		won = tx.HasWon()
		return nil
	})
	return won
}

// HasLost 判断对局是否已失败
func (b *Bridge) HasLost() bool {
	var lost bool
	_ = b.Do(func(tx *Tx) error {
		lost = tx.gameBool("lost", false)
		return nil
	})
	return lost
}

// CanUndo 判断规则是否允许撤销
func (b *Bridge) CanUndo() bool {
	var undo bool
	_ = b.Do(func(tx *Tx) error {
		undo = tx.gameBool("undo", false)
		return nil
	})
	return undo
}

// Board 返回牌桌的行数和列数
func (b *Bridge) Board() (rows, cols int) {
	_ = b.Do(func(tx *Tx) error {
		rows, cols = tx.Board()
		return nil
	})
	return rows, cols
}

// Options 返回规则声明的选项，按键排序
func (b *Bridge) Options() []Option {
	var opts []Option
	_ = b.Do(func(tx *Tx) error {
		opts = tx.options()
		return nil
	})
	return opts
}

// HasOptions 判断规则是否声明了选项
func (b *Bridge) HasOptions() bool {
	return len(b.Options()) > 0
}

// SetOption 修改选项值并调用 updateOptions(game)
func (b *Bridge) SetOption(key string, value bool) error {
	return b.Do(func(tx *Tx) error {
		return tx.setOption(key, value)
	})
}

// TapCard 调用可选的 tapCard(game, card)
func (b *Bridge) TapCard(card Handle) error {
	return b.Do(func(tx *Tx) error {
		return tx.TapCard(card)
	})
}

// Bonus 调用可选的 bonus(game, millis)，把结果加到分数上
//
// 无论规则是否定义 bonus，分数监听器都会收到通知。
func (b *Bridge) Bonus(elapsed time.Duration) error {
	return b.Do(func(tx *Tx) error {
		defer func() { b.pending = append(b.pending, eventScore) }()
		return tx.bonus(elapsed)
	})
}

// Resize 调用可选的 resize(game, w, h)
func (b *Bridge) Resize(width, height int) error {
	return b.Do(func(tx *Tx) error {
		return tx.resize(width, height)
	})
}

// readProperties 读取全局 properties 表
func (b *Bridge) readProperties() Properties {
	l := b.l
	top := l.Top()
	defer l.SetTop(top)

	l.Global("properties")
	if !l.IsTable(-1) {
		return Properties{}
	}
	return Properties{
		Name:        fieldString(l, -1, "name"),
		Description: fieldString(l, -1, "description"),
		Rules:       fieldString(l, -1, "rules"),
		Version:     int(fieldNumber(l, -1, "version")),
	}
}

func sortedKeys(m map[string]Option) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
