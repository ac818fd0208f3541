//go:build mobile

// Package mobile 提供 ebitenmobile 绑定入口
//
// 此包用于构建 Android (.aar) 和 iOS (.xcframework) 包。
// 使用 ebitenmobile 工具构建时会自动调用 init() 函数。
//
// 此文件仅在使用 -tags mobile 构建时编译。资源准备见 embed.go，然后：
//
//	# Android
//	ebitenmobile bind -target android -tags mobile -androidapi 23 -javapkg com.decker.patience -o build/android/patience.aar -v ./mobile
//
//	# iOS (仅 macOS)
//	ebitenmobile bind -target ios -tags mobile -o build/ios/Patience.xcframework -v ./mobile
package mobile

import (
	"log"

	"github.com/hajimehoshi/ebiten/v2/mobile"

	"github.com/decker502/patience/pkg/app"
	"github.com/decker502/patience/pkg/config"
	"github.com/decker502/patience/pkg/embedded"
)

func init() {
	// 初始化嵌入资源
	// assetsFS 和 rulesFS 在 embed.go 中声明
	embedded.Init(assetsFS, rulesFS)

	// 数据库路径由 storage.ResolvePath 放到应用私有目录
	cfg := config.DefaultAppConfig()
	cfg.Verbose = true

	gameApp, err := app.NewApp(app.Config{AppConfig: cfg, Resume: true})
	if err != nil {
		log.Fatalf("游戏初始化失败: %v", err)
	}

	// 注册游戏到 ebitenmobile
	mobile.SetGame(gameApp)
}

// Dummy 是一个空导出函数，确保包被 ebitenmobile 正确识别
func Dummy() {}
