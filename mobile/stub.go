//go:build !mobile

// stub.go - 桌面端构建时的占位文件
//
// 桌面端入口在项目根目录的 main.go；移动端代码只在 -tags mobile 时编译。
package mobile

// Dummy 是一个空导出函数，确保包在非移动端构建时也能被引用
func Dummy() {}
