package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// AppConfig 应用配置
// 先读取可选的 YAML 文件，再用 PATIENCE_* 环境变量覆盖，最后由命令行参数覆盖
type AppConfig struct {
	Width      int    `yaml:"width" env:"PATIENCE_WIDTH"`            // 窗口宽度（像素）
	Height     int    `yaml:"height" env:"PATIENCE_HEIGHT"`          // 窗口高度（像素）
	Rules      string `yaml:"rules" env:"PATIENCE_RULES"`            // 默认规则程序文件名，如 "klondike.lua"
	RulesDir   string `yaml:"rulesDir" env:"PATIENCE_RULES_DIR"`     // 外部规则目录，空表示只使用内置规则
	Database   string `yaml:"database" env:"PATIENCE_DB"`            // 存档数据库路径
	CardAssets string `yaml:"cardAssets" env:"PATIENCE_CARD_ASSETS"` // 牌面资源清单路径（嵌入资源）
	AppName    string `yaml:"appName" env:"PATIENCE_APP_NAME"`       // gdata 应用名，决定偏好设置的存放目录
	Verbose    bool   `yaml:"verbose" env:"PATIENCE_VERBOSE"`        // 是否输出日志
	Autosave   bool   `yaml:"autosave" env:"PATIENCE_AUTOSAVE"`      // 失去焦点时是否自动存档
	Background string `yaml:"background" env:"PATIENCE_BACKGROUND"`  // 牌桌背景色，#RRGGBB
}

// DefaultAppConfig 返回所有字段的默认值
func DefaultAppConfig() AppConfig {
	return AppConfig{
		Width:      800,
		Height:     600,
		Rules:      "klondike.lua",
		Database:   "patience.db",
		CardAssets: "assets/config/cards.yaml",
		AppName:    "patience",
		Autosave:   true,
		Background: "#1e6b34",
	}
}

// LoadAppConfig 加载应用配置
// path 为空或文件不存在时使用默认值；随后应用环境变量覆盖
func LoadAppConfig(path string) (AppConfig, error) {
	cfg := DefaultAppConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// 使用默认值
		case err != nil:
			return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config YAML from %s: %w", path, err)
			}
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate 检查配置是否可用
func (c AppConfig) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("window size must be positive, got %dx%d", c.Width, c.Height)
	}
	if c.Rules == "" {
		return errors.New("rules must not be empty")
	}
	if c.AppName == "" {
		return errors.New("appName must not be empty")
	}
	return nil
}
