package game

import (
	"fmt"
	"log"
	"path"
	"strings"

	"github.com/quasilyte/gdata/v2"
	"gopkg.in/yaml.v3"

	"github.com/decker502/patience/pkg/engine"
)

// RuleOptions 是某个规则程序上次选择的选项
type RuleOptions map[string]bool

// Preferences 偏好设置管理器
// 按规则程序保存玩家上次选择的选项，新对局开始时重新应用
type Preferences struct {
	gdataManager *gdata.Manager         // gdata 跨平台存储管理器，可为 nil（降级模式）
	options      map[string]RuleOptions // 已加载的选项，键为规则程序标识
}

// 存储路径常量
const optionsObject = "options"

// NewPreferences 创建偏好设置管理器
//
// gdataManager 可为 nil：此时选项只保存在内存中
func NewPreferences(gdataManager *gdata.Manager) *Preferences {
	return &Preferences{
		gdataManager: gdataManager,
		options:      make(map[string]RuleOptions),
	}
}

// propertyName 把规则文件名转换为 gdata 属性名（去掉扩展名和路径分隔符）
func propertyName(filename string) string {
	name := strings.TrimSuffix(path.Base(filename), path.Ext(filename))
	return strings.NewReplacer(" ", "_", "/", "_", "\\", "_").Replace(name)
}

// Options 返回规则程序保存的选项
//
// 加载失败时记录日志并返回空选项
func (p *Preferences) Options(filename string) RuleOptions {
	if opts, ok := p.options[filename]; ok {
		return opts
	}
	opts, err := p.load(filename)
	if err != nil {
		log.Printf("[Preferences] Warning: Failed to load options for %s: %v", filename, err)
		opts = RuleOptions{}
	}
	p.options[filename] = opts
	return opts
}

func (p *Preferences) load(filename string) (RuleOptions, error) {
	// 降级模式：无法持久化
	if p.gdataManager == nil {
		return RuleOptions{}, nil
	}
	prop := propertyName(filename)
	if !p.gdataManager.ObjectPropExists(optionsObject, prop) {
		return RuleOptions{}, nil
	}

	data, err := p.gdataManager.LoadObjectProp(optionsObject, prop)
	if err != nil {
		return nil, fmt.Errorf("failed to load options: %w", err)
	}
	opts := RuleOptions{}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal options: %w", err)
	}
	return opts, nil
}

// SetOption 记录一个选项并立即持久化
//
// gdataManager 为 nil 时只修改内存（降级模式，不报错）
func (p *Preferences) SetOption(filename, key string, value bool) error {
	opts := p.Options(filename)
	opts[key] = value

	if p.gdataManager == nil {
		return nil
	}
	data, err := yaml.Marshal(opts)
	if err != nil {
		return fmt.Errorf("failed to marshal options: %w", err)
	}
	if err := p.gdataManager.SaveObjectProp(optionsObject, propertyName(filename), data); err != nil {
		return fmt.Errorf("failed to save options: %w", err)
	}
	log.Printf("[Preferences] Saved option %s=%v for %s", key, value, filename)
	return nil
}

// Apply 把保存的选项应用到新对局
//
// 规则程序未声明的选项被忽略；值未变化的选项不调用 setOption
func (p *Preferences) Apply(b *engine.Bridge) error {
	saved := p.Options(b.Filename())
	if len(saved) == 0 {
		return nil
	}
	for _, opt := range b.Options() {
		value, ok := saved[opt.Key]
		if !ok || value == opt.Value {
			continue
		}
		if err := b.SetOption(opt.Key, value); err != nil {
			return fmt.Errorf("failed to apply option %s: %w", opt.Key, err)
		}
	}
	return nil
}
