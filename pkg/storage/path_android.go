//go:build android

package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// ResolvePath 返回数据库文件在 Android 上的位置
//
// 应用只能写 /data/data/{package}/，且子目录不会被预先创建。
// 绝对路径原样返回；相对路径放到 databases 目录下，并确保目录存在且可写。
func ResolvePath(name string) (string, error) {
	if filepath.IsAbs(name) {
		return name, nil
	}
	app, err := detectAndroidApp()
	if err != nil {
		return "", fmt.Errorf("failed to detect Android app: %w", err)
	}

	dir := filepath.Join("/data/data", app, "databases")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create database directory %s: %w", dir, err)
	}

	// 验证目录可写
	testFile := filepath.Join(dir, ".write_test")
	if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
		return "", fmt.Errorf("database directory %s is not writable: %w", dir, err)
	}
	os.Remove(testFile)

	return filepath.Join(dir, name), nil
}

// detectAndroidApp 从 /proc/self/cmdline 读取应用包名
func detectAndroidApp() (string, error) {
	data, err := os.ReadFile("/proc/self/cmdline")
	if err != nil {
		return "", err
	}

	// 移除 null 字节和换行符
	copied := make([]byte, 0, len(data))
	for _, ch := range data {
		switch ch {
		case 0, '\n':
			continue
		}
		copied = append(copied, ch)
	}

	if len(copied) == 0 {
		return "", fmt.Errorf("got empty output from /proc/self/cmdline")
	}
	return string(copied), nil
}
