package game

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/decker502/patience/pkg/component"
	"github.com/decker502/patience/pkg/engine"
	"github.com/decker502/patience/pkg/input"
	"github.com/decker502/patience/pkg/render"
	"github.com/decker502/patience/pkg/storage"
	"github.com/decker502/patience/pkg/view"
)

// SessionConfig 描述一局游戏的来源和协作者
type SessionConfig struct {
	Filename string // 规则程序标识
	Script   string // 规则程序源码
	Seed     int64  // 随机种子，0 表示使用当前时间

	// Saved 非 nil 时从存档恢复，否则开始新对局
	Saved *storage.SavedGame

	Store       Store                // 存档存储，可为 nil（不保存）
	Preferences *Preferences         // 选项偏好，可为 nil
	Textures    *render.TextureCache // 纹理缓存
	Autosave    bool                 // 暂停时是否自动存档
	Now         func() time.Time     // 时钟，测试时注入
}

// Session 是一局游戏：把规则引擎、组件注册表、渲染器、手势分类器、
// 后台存档和计时器连在一起
//
// 除存档协程外，所有方法都应在 ebiten 的游戏循环中调用。
// 引擎监听器只设置原子标志，由 Update 统一处理。
type Session struct {
	bridge     *engine.Bridge
	manager    *component.Manager
	renderer   *render.Renderer
	classifier *input.Classifier
	saver      *Saver
	prefs      *Preferences
	timer      *Timer
	autosave   bool

	scoreChanged  atomic.Bool
	ended         atomic.Bool
	saveRequested atomic.Bool

	dirty    bool // 有未保存的变化
	loaded   bool // 从已有存档恢复
	finished bool // 胜负已定
	closed   bool
}

// NewSession 加载规则程序，开始新对局或恢复存档，并建立视图
func NewSession(ctx context.Context, cfg SessionConfig) (*Session, error) {
	bridge, err := engine.New(engine.Config{Filename: cfg.Filename, Script: cfg.Script, Seed: cfg.Seed})
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	s := &Session{
		bridge:   bridge,
		manager:  component.NewManager(),
		prefs:    cfg.Preferences,
		timer:    NewTimer(cfg.Now),
		autosave: cfg.Autosave,
	}
	bridge.OnScore(func() { s.scoreChanged.Store(true) })
	bridge.OnEnd(func() { s.ended.Store(true) })
	bridge.OnSave(func() { s.saveRequested.Store(true) })

	var savedID int64
	if cfg.Saved != nil {
		if err := bridge.Restore(cfg.Saved.State, cfg.Saved.History); err != nil {
			bridge.Close()
			return nil, fmt.Errorf("failed to restore game %d: %w", cfg.Saved.ID, err)
		}
		savedID = cfg.Saved.ID
		s.loaded = true
		s.timer.Reset(cfg.Saved.PlayTime)
		s.finished = bridge.HasWon() || bridge.HasLost()
		log.Printf("[Session] Restored game %d of %s", cfg.Saved.ID, cfg.Filename)
	} else {
		if err := bridge.Initialize(); err != nil {
			bridge.Close()
			return nil, fmt.Errorf("failed to start game: %w", err)
		}
		if s.prefs != nil {
			if err := s.prefs.Apply(bridge); err != nil {
				log.Printf("[Session] Warning: %v", err)
			}
		}
		log.Printf("[Session] Started new game of %s", cfg.Filename)
	}

	if cfg.Store != nil {
		s.saver = NewSaver(ctx, cfg.Store, savedID)
	}
	s.renderer = render.NewRenderer(s.manager, cfg.Textures)
	s.classifier = input.NewClassifier(s.manager)

	if err := view.BuildView(bridge, s.manager); err != nil {
		s.Close()
		return nil, err
	}
	if !s.finished {
		s.timer.Start()
	}
	// 构建期间的事件不算作玩家操作
	s.scoreChanged.Store(false)
	s.saveRequested.Store(false)
	s.ended.Store(false)
	return s, nil
}

// Bridge 返回规则引擎
func (s *Session) Bridge() *engine.Bridge { return s.bridge }

// Manager 返回组件注册表
func (s *Session) Manager() *component.Manager { return s.manager }

// Renderer 返回帧渲染器
func (s *Session) Renderer() *render.Renderer { return s.renderer }

// Timer 返回计时器
func (s *Session) Timer() *Timer { return s.timer }

// SavedID 返回存档编号，尚未保存或没有存储时为 0
func (s *Session) SavedID() int64 {
	if s.saver == nil {
		return 0
	}
	return s.saver.ID()
}

// Finished 判断胜负是否已定
func (s *Session) Finished() bool { return s.finished }

// Dirty 判断是否有未保存的变化
func (s *Session) Dirty() bool { return s.dirty }

// HandleInput 把本帧的指针采样交给手势分类器，并请求重画
func (s *Session) HandleInput(samples []input.Sample) {
	if len(samples) == 0 {
		return
	}
	// 每次分发都已更新过组件
	s.classifier.Feed(samples)
	s.renderer.RequestFrame()
}

// Update 处理引擎事件；引擎出现致命错误时返回该错误
func (s *Session) Update() error {
	if s.saveRequested.Swap(false) {
		s.dirty = true
	}
	if s.ended.Swap(false) && !s.finished {
		s.finish()
	}
	if s.scoreChanged.Swap(false) {
		s.renderer.RequestFrame()
	}
	return s.bridge.Err()
}

// finish 在胜负确定时停止计时，胜利时加上时间奖励
func (s *Session) finish() {
	s.finished = true
	s.timer.Stop()
	s.dirty = true
	if s.bridge.HasWon() {
		if err := s.bridge.Bonus(s.timer.Elapsed()); err != nil {
			log.Printf("[Session] bonus: %v", err)
		}
		log.Printf("[Session] Won %s with score %d in %s", s.bridge.Filename(), s.bridge.Score(), s.timer.Elapsed())
		return
	}
	log.Printf("[Session] Lost %s after %s", s.bridge.Filename(), s.timer.Elapsed())
}

// Resize 在绘制区域尺寸变化时重新布局
func (s *Session) Resize(width, height int) {
	if w, h := s.renderer.Size(); w == width && h == height {
		return
	}
	s.renderer.Resize(width, height)
	s.manager.Update()
}

// Undo 撤销一步并重新布局
func (s *Session) Undo() error {
	if !s.bridge.CanUndo() {
		return nil
	}
	if err := view.Back(s.bridge, s.manager); err != nil {
		return err
	}
	if w, h := s.renderer.Size(); w > 0 && h > 0 {
		s.manager.SurfaceChanged(w, h)
	}
	s.manager.Update()
	s.renderer.RequestFrame()
	s.dirty = true
	if s.finished {
		s.finished = false
		s.ended.Store(false)
		s.timer.Start()
	}
	return nil
}

// SetOption 修改规则选项并记住玩家的选择
func (s *Session) SetOption(key string, value bool) error {
	if err := s.bridge.SetOption(key, value); err != nil {
		return err
	}
	if s.prefs != nil {
		if err := s.prefs.SetOption(s.bridge.Filename(), key, value); err != nil {
			log.Printf("[Session] Warning: %v", err)
		}
	}
	s.manager.Update()
	s.renderer.RequestFrame()
	s.dirty = true
	return nil
}

// Pause 在失去焦点时调用：取消拖拽、暂停计时，并按存档策略保存
//
// 返回是否提交了存档
func (s *Session) Pause() bool {
	s.classifier.Reset()
	cancelled := s.manager.CancelDrag()
	if cancelled {
		s.manager.Update()
		s.renderer.RequestFrame()
	}
	s.timer.Stop()
	if !s.autosave {
		return false
	}
	return s.saveIfNeeded(cancelled)
}

// Resume 在重新获得焦点时继续计时
func (s *Session) Resume() {
	if !s.finished {
		s.timer.Start()
	}
	s.renderer.RequestFrame()
}

// saveIfNeeded 在取消了拖拽、有未保存的变化或从存档恢复时保存
func (s *Session) saveIfNeeded(cancelled bool) bool {
	if s.saver == nil {
		return false
	}
	if !cancelled && !s.dirty && !s.loaded {
		return false
	}
	snap, err := s.bridge.Snapshot()
	if err != nil {
		log.Printf("[Session] Failed to snapshot %s: %v", s.bridge.Filename(), err)
		return false
	}
	s.saver.Save(snap, s.timer.Elapsed())
	s.dirty = false
	return true
}

// Draw 在有重画请求时绘制一帧
func (s *Session) Draw(screen *ebiten.Image) bool {
	return s.renderer.Draw(screen)
}

// SaveOnExit 取消拖拽并按存档策略保存，等待存档写完
func (s *Session) SaveOnExit() bool {
	cancelled := s.manager.CancelDrag()
	s.timer.Stop()
	saved := s.saveIfNeeded(cancelled)
	if s.saver != nil {
		if err := s.saver.Close(); err != nil {
			log.Printf("[Session] saver: %v", err)
			return false
		}
	}
	return saved || !s.dirty
}

// Close 保存并释放所有资源；可以重复调用
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.SaveOnExit()
	s.manager.Clear()
	s.bridge.Close()
}
