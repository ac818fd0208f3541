package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/decker502/patience/pkg/app"
	"github.com/decker502/patience/pkg/config"
	"github.com/decker502/patience/pkg/embedded"
)

func main() {
	configPath := flag.String("config", "patience.yaml", "YAML config file (optional)")
	rules := flag.String("rules", "", "rules program to play, e.g. klondike.lua")
	rulesDir := flag.String("rules-dir", "", "load rules programs from this directory instead of the built-in ones")
	database := flag.String("db", "", "saved games database path")
	verbose := flag.Bool("verbose", false, "enable logging")
	resume := flag.Bool("resume", false, "continue the most recent unfinished game")
	seed := flag.Int64("seed", 0, "random seed for new games (0 = time based)")
	flag.Parse()

	// 初始化嵌入资源
	embedded.Init(assetsFS, rulesFS)

	cfg, err := config.LoadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "配置加载失败: %v\n", err)
		os.Exit(1)
	}

	// 命令行参数覆盖配置文件和环境变量
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "rules":
			cfg.Rules = *rules
		case "rules-dir":
			cfg.RulesDir = *rulesDir
		case "db":
			cfg.Database = *database
		case "verbose":
			cfg.Verbose = *verbose
		}
	})

	gameApp, err := app.NewApp(app.Config{AppConfig: cfg, Resume: *resume, Seed: *seed})
	if err != nil {
		fmt.Fprintf(os.Stderr, "游戏初始化失败: %v\n", err)
		os.Exit(1)
	}

	ebiten.SetWindowSize(cfg.Width, cfg.Height)
	ebiten.SetWindowTitle("Patience")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowClosingHandled(true)
	// 按需重画：没有变化的帧保留上一帧的画面
	ebiten.SetScreenClearedEveryFrame(false)

	if err := ebiten.RunGame(gameApp); err != nil {
		gameApp.Close()
		log.Fatal(err)
	}
	gameApp.Close()
}
