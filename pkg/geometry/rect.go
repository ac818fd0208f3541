package geometry

import "fmt"

// Rect 是一个轴对齐的整数矩形，右边界与下边界不包含在内
//
// 零值 Rect 为空矩形，不与任何点或矩形相交。
type Rect struct {
	Left, Top, Right, Bottom int
}

// R 根据左上角与右下角构造矩形
func R(left, top, right, bottom int) Rect {
	return Rect{Left: left, Top: top, Right: right, Bottom: bottom}
}

// Width 返回矩形宽度
func (r Rect) Width() int {
	return r.Right - r.Left
}

// Height 返回矩形高度
func (r Rect) Height() int {
	return r.Bottom - r.Top
}

// Empty 判断矩形是否没有面积
func (r Rect) Empty() bool {
	return r.Right <= r.Left || r.Bottom <= r.Top
}

// Inset 向内收缩 margin 像素（四边同时收缩）
func (r Rect) Inset(margin int) Rect {
	return Rect{
		Left:   r.Left + margin,
		Top:    r.Top + margin,
		Right:  r.Right - margin,
		Bottom: r.Bottom - margin,
	}
}

// Contains 判断点是否位于矩形内部（坐标向零截断为整数后比较）
func (r Rect) Contains(p Point) bool {
	if r.Empty() {
		return false
	}
	x, y := int(p.X), int(p.Y)
	return x >= r.Left && x < r.Right && y >= r.Top && y < r.Bottom
}

// Intersect 返回两个矩形的交集；不相交时返回空矩形
func (r Rect) Intersect(other Rect) Rect {
	out := Rect{
		Left:   max(r.Left, other.Left),
		Top:    max(r.Top, other.Top),
		Right:  min(r.Right, other.Right),
		Bottom: min(r.Bottom, other.Bottom),
	}
	if out.Empty() {
		return Rect{}
	}
	return out
}

// OverlapArea 返回两个矩形重叠部分的面积，不相交为 0
func (r Rect) OverlapArea(other Rect) int {
	in := r.Intersect(other)
	if in.Empty() {
		return 0
	}
	return in.Width() * in.Height()
}

func (r Rect) String() string {
	return fmt.Sprintf("[%d,%d %d,%d]", r.Left, r.Top, r.Right, r.Bottom)
}
