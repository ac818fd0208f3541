// Package geometry 提供指针位置、拖拽锚点与组件边界使用的几何基础类型。
//
// # 坐标系统
//
// 所有坐标均为"表面坐标"：相对于渲染表面左上角，单位为像素，
// X 向右增长，Y 向下增长。Z 仅在 Point 中保留，用于三维距离计算；
// 来自指针的采样点 Z 恒为 0。
package geometry

import (
	"fmt"
	"math"
)

// Point 表示三维空间中的一个不可变点
type Point struct {
	X, Y, Z float64
}

// Pt 创建一个 Z 为 0 的二维点
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// DistanceTo 计算到另一个点的欧几里得距离
func (p Point) DistanceTo(other Point) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	dz := p.Z - other.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Sub 返回 p - other（逐分量相减）
func (p Point) Sub(other Point) Point {
	return Point{X: p.X - other.X, Y: p.Y - other.Y, Z: p.Z - other.Z}
}

func (p Point) String() string {
	return fmt.Sprintf("(%g,%g,%g)", p.X, p.Y, p.Z)
}
