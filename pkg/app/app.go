// Package app 提供游戏应用的核心包装器
//
// 该包将游戏初始化逻辑从 main 包提取出来，使其可以被桌面端和移动端共用。
// 桌面端通过 main.go 调用 NewApp()，移动端通过 mobile/mobile.go 调用。
package app

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/quasilyte/gdata/v2"

	"github.com/decker502/patience/pkg/config"
	"github.com/decker502/patience/pkg/embedded"
	"github.com/decker502/patience/pkg/engine"
	"github.com/decker502/patience/pkg/game"
	"github.com/decker502/patience/pkg/input"
	"github.com/decker502/patience/pkg/render"
	"github.com/decker502/patience/pkg/storage"
)

// Config 定义应用启动配置
type Config struct {
	config.AppConfig

	// Resume 为 true 时继续该规则程序最近一局未完成的存档
	Resume bool
	// Seed 为新对局的随机种子，0 表示使用当前时间
	Seed int64
}

// App 是游戏应用的核心包装器，实现 ebiten.Game 接口
type App struct {
	cfg      Config
	ctx      context.Context
	cancel   context.CancelFunc
	rules    engine.RuleFile
	store    *storage.Store // 可为 nil（不保存存档）
	prefs    *game.Preferences
	textures *render.TextureCache
	session  *game.Session
	sampler  *input.Sampler

	focused    bool
	width      int // Layout 报告的尺寸，在 Update 中应用
	height     int
	lastSecond int64 // HUD 上显示的秒数
}

// NewApp 创建并初始化游戏应用
//
// 调用此函数前，必须先调用 embedded.Init() 初始化嵌入资源。
func NewApp(cfg Config) (*App, error) {
	// 配置日志输出
	if !cfg.Verbose {
		log.SetOutput(io.Discard)
		log.SetFlags(0)
	}

	rules, err := loadRules(cfg.AppConfig)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		rules:   rules,
		sampler: input.NewSampler(),
		focused: true,
	}

	// 存档数据库打不开时继续游戏，只是不保存
	if cfg.Database != "" {
		store, err := openStore(cfg.Database)
		if err != nil {
			log.Printf("[App] Warning: saved games disabled: %v", err)
		} else {
			a.store = store
		}
	}

	// gdata 不可用时进入降级模式，偏好只保存在内存中
	gdataManager, err := gdata.Open(gdata.Config{AppName: cfg.AppName})
	if err != nil {
		log.Printf("[App] Warning: preferences will not persist: %v", err)
		gdataManager = nil
	}
	a.prefs = game.NewPreferences(gdataManager)

	cards, err := config.LoadCardAssets(embedded.FS(), cfg.CardAssets)
	if err != nil {
		log.Printf("[App] Warning: %v (using generated card art)", err)
	}
	source := render.NewManifestSource(embedded.FS(), cards, render.ProceduralSource{})
	a.textures = render.NewTextureCache(render.EbitenTextures(source))

	var saved *storage.SavedGame
	if cfg.Resume {
		saved = a.latestUnfinished()
	}
	if err := a.start(saved); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func openStore(name string) (*storage.Store, error) {
	path, err := storage.ResolvePath(name)
	if err != nil {
		return nil, err
	}
	return storage.Open(path)
}

// loadRules 从外部目录或内置规则中找到配置的规则程序
func loadRules(cfg config.AppConfig) (engine.RuleFile, error) {
	var (
		fsys fs.FS
		dir  string
	)
	if cfg.RulesDir != "" {
		fsys, dir = os.DirFS(cfg.RulesDir), "."
	} else {
		fsys, dir = embedded.FS(), embedded.RulesDir
	}

	if available, err := engine.ListRules(fsys, dir); err == nil {
		for _, r := range available {
			log.Printf("[App] Found rules %s %q", r.Filename, r.Title)
		}
	}

	rules, err := engine.FindRules(fsys, dir, cfg.Rules)
	if err != nil {
		return engine.RuleFile{}, fmt.Errorf("规则程序加载失败: %w", err)
	}
	return rules, nil
}

// latestUnfinished 返回该规则程序最近一局未完成的存档
func (a *App) latestUnfinished() *storage.SavedGame {
	if a.store == nil {
		return nil
	}
	games, err := a.store.List(a.ctx)
	if err != nil {
		log.Printf("[App] Warning: failed to list saved games: %v", err)
		return nil
	}
	for i := range games {
		if games[i].Filename == a.rules.Filename && !games[i].Won {
			return &games[i]
		}
	}
	return nil
}

// start 开始新对局（saved 为 nil）或恢复存档
func (a *App) start(saved *storage.SavedGame) error {
	cfg := game.SessionConfig{
		Filename:    a.rules.Filename,
		Script:      a.rules.Script,
		Seed:        a.cfg.Seed,
		Saved:       saved,
		Preferences: a.prefs,
		Textures:    a.textures,
		Autosave:    a.cfg.Autosave,
	}
	// 避免把 nil *storage.Store 包装成非 nil 的接口
	if a.store != nil {
		cfg.Store = a.store
	}

	session, err := game.NewSession(a.ctx, cfg)
	if err != nil {
		return fmt.Errorf("对局创建失败: %w", err)
	}
	if bg, err := render.ParseHexColor(a.cfg.Background); err == nil {
		session.Renderer().SetBackground(bg)
	} else {
		log.Printf("[App] Warning: %v", err)
	}
	if a.width > 0 && a.height > 0 {
		session.Resize(a.width, a.height)
	}
	a.session = session
	log.Printf("[App] Playing %s", session.Bridge().Name())
	return nil
}

// NewGame 保存并关闭当前对局，用同一规则程序开始新的一局
func (a *App) NewGame() error {
	if a.session != nil {
		a.session.Close()
		a.session = nil
	}
	return a.start(nil)
}

// Update 更新游戏逻辑
// 每个 tick 调用一次（通常每秒 60 次）
func (a *App) Update() error {
	if ebiten.IsWindowBeingClosed() {
		a.Close()
		return ebiten.Termination
	}

	// 失去焦点时取消拖拽并按策略存档
	if focused := ebiten.IsFocused(); focused != a.focused {
		a.focused = focused
		if focused {
			a.session.Resume()
		} else {
			a.sampler.Reset()
			a.session.Pause()
		}
	}
	if !a.focused {
		return nil
	}

	if a.width > 0 && a.height > 0 {
		a.session.Resize(a.width, a.height)
	}

	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyU), inpututil.IsKeyJustPressed(ebiten.KeyBackspace):
		if err := a.session.Undo(); err != nil {
			return err
		}
	case inpututil.IsKeyJustPressed(ebiten.KeyN):
		if err := a.NewGame(); err != nil {
			return err
		}
	}

	a.session.HandleInput(a.sampler.Poll())

	// HUD 上的计时每秒刷新一次
	if sec := int64(a.session.Timer().Elapsed() / time.Second); sec != a.lastSecond {
		a.lastSecond = sec
		a.session.Renderer().RequestFrame()
	}
	return a.session.Update()
}

// Draw 绘制游戏画面
// 只有在有重画请求时才重画，其余帧保留上一帧的画面
func (a *App) Draw(screen *ebiten.Image) {
	if a.session == nil || !a.session.Draw(screen) {
		return
	}
	b := a.session.Bridge()
	hud := fmt.Sprintf("%s  Score: %d  Time: %s", b.Name(), b.Score(), formatElapsed(a.session.Timer().Elapsed()))
	switch {
	case b.HasWon():
		hud += "  You won! (N: new game)"
	case b.HasLost():
		hud += "  No more moves (U: undo, N: new game)"
	}
	ebitenutil.DebugPrintAt(screen, hud, 4, screen.Bounds().Dy()-16)
}

// Layout 返回游戏的逻辑屏幕尺寸
// 逻辑尺寸与窗口尺寸一致，尺寸变化在下一次 Update 中应用
func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) {
	a.width, a.height = outsideWidth, outsideHeight
	return outsideWidth, outsideHeight
}

// Close 保存当前对局并释放资源；可以重复调用
func (a *App) Close() {
	if a.session != nil {
		a.session.Close()
		a.session = nil
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Printf("[App] Warning: failed to close database: %v", err)
		}
		a.store = nil
	}
	a.cancel()
}

// IsVerbose 返回是否启用了详细日志
func (a *App) IsVerbose() bool {
	return a.cfg.Verbose
}

func formatElapsed(d time.Duration) string {
	d = d.Truncate(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
