package config

import (
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"
)

// CardAssets 牌面资源清单
// 把纹理标识映射到图片文件；清单中没有的标识由程序绘制
//
// 结构：
//
//	version: "1.0"
//	base_path: assets/cards
//	images:
//	  back: back.png
//	  h10: hearts_10.png
//	  blank_ace: blank_ace.png
type CardAssets struct {
	Version  string            `yaml:"version"`   // 清单版本
	BasePath string            `yaml:"base_path"` // 图片目录
	Images   map[string]string `yaml:"images"`    // 纹理标识 -> 相对路径
}

// LoadCardAssets 从 fsys 读取并解析资源清单
func LoadCardAssets(fsys fs.FS, path string) (*CardAssets, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read card assets %s: %w", path, err)
	}

	var assets CardAssets
	if err := yaml.Unmarshal(data, &assets); err != nil {
		return nil, fmt.Errorf("failed to parse card assets YAML from %s: %w", path, err)
	}
	if assets.Images == nil {
		assets.Images = map[string]string{}
	}
	return &assets, nil
}

// Path 返回纹理标识对应的文件路径
func (a *CardAssets) Path(key string) (string, bool) {
	if a == nil {
		return "", false
	}
	rel, ok := a.Images[key]
	if !ok || rel == "" {
		return "", false
	}
	if a.BasePath == "" {
		return rel, true
	}
	return a.BasePath + "/" + rel, true
}
