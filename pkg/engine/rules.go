package engine

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// RulesMarker 是规则程序第一行必须带有的标记
const RulesMarker = "--#!GameRules"

// RuleFile 是在目录中发现的一个规则程序
type RuleFile struct {
	Filename string
	// Title 是标记后面的文字，可以为空
	Title  string
	Script string
}

// IsRules 判断脚本第一行是否带有规则标记
func IsRules(script string) (title string, ok bool) {
	line, _, _ := strings.Cut(script, "\n")
	line = strings.TrimSpace(strings.TrimPrefix(line, "\ufeff"))
	if !strings.HasPrefix(line, RulesMarker) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(line, RulesMarker)), true
}

// ListRules 列出 dir 下所有带标记的 .lua 文件，按文件名排序
//
// 不带标记的 .lua 文件被视为辅助脚本，直接跳过。
func ListRules(fsys fs.FS, dir string) ([]RuleFile, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules in %s: %w", dir, err)
	}

	var rules []RuleFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".lua") {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read rules %s: %w", e.Name(), err)
		}
		title, ok := IsRules(string(data))
		if !ok {
			continue
		}
		rules = append(rules, RuleFile{Filename: e.Name(), Title: title, Script: string(data)})
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Filename < rules[j].Filename })
	return rules, nil
}

// FindRules 在 dir 下按文件名查找规则程序
func FindRules(fsys fs.FS, dir, filename string) (RuleFile, error) {
	data, err := fs.ReadFile(fsys, path.Join(dir, filename))
	if err != nil {
		return RuleFile{}, fmt.Errorf("failed to read rules %s: %w", filename, err)
	}
	title, ok := IsRules(string(data))
	if !ok {
		return RuleFile{}, fmt.Errorf("%s is not a rules file: first line must start with %s", filename, RulesMarker)
	}
	return RuleFile{Filename: filename, Title: title, Script: string(data)}, nil
}
