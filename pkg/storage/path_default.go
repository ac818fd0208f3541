//go:build !android

package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// ResolvePath 返回数据库文件的位置
//
// 桌面端相对路径按当前目录解析；只确保父目录存在
func ResolvePath(name string) (string, error) {
	dir := filepath.Dir(name)
	if dir == "." {
		return name, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create database directory %s: %w", dir, err)
	}
	return name, nil
}
