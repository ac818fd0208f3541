// Package input 把指针采样分类为拖拽和点击意图
package input

import (
	"github.com/decker502/patience/pkg/component"
	"github.com/decker502/patience/pkg/geometry"
)

// TapDistanceThreshold 是区分点击和拖拽的位移阈值（像素）
const TapDistanceThreshold = 10.0

// Sink 接收分类后的意图，通常是 *component.Manager
type Sink interface {
	Dispatch(intent component.Intent, p geometry.Point)
}

// Classifier 是手势分类器
//
// 是否在拖拽不单独存储，每次都由起点、上一次和当前位置的距离推出：
// 上一次位移未超过阈值而本次超过时是拖拽开始，两次都超过时是拖拽。
type Classifier struct {
	sink   Sink
	down   bool
	origin geometry.Point
	last   geometry.Point
}

// NewClassifier 创建分类器
func NewClassifier(sink Sink) *Classifier {
	return &Classifier{sink: sink}
}

// Down 处理指针按下
func (c *Classifier) Down(p geometry.Point) {
	c.down = true
	c.origin = p
	c.last = p
}

// Move 处理指针移动
func (c *Classifier) Move(p geometry.Point) {
	if !c.down {
		return
	}
	previous := c.origin.DistanceTo(c.last)
	current := c.origin.DistanceTo(p)
	c.last = p

	if current <= TapDistanceThreshold {
		return
	}
	// 越过阈值的那次采样只产生拖拽开始，命中测试在当前位置进行
	if previous <= TapDistanceThreshold {
		c.sink.Dispatch(component.DragStart, p)
		return
	}
	c.sink.Dispatch(component.Drag, p)
}

// Up 处理指针抬起
func (c *Classifier) Up(p geometry.Point) {
	if !c.down {
		return
	}
	c.down = false
	if c.origin.DistanceTo(c.last) > TapDistanceThreshold {
		c.sink.Dispatch(component.DragEnd, p)
		return
	}
	c.sink.Dispatch(component.Tap, p)
}

// Active 判断指针是否处于按下状态
func (c *Classifier) Active() bool {
	return c.down
}

// Reset 丢弃进行中的手势，不产生任何意图
func (c *Classifier) Reset() {
	c.down = false
}

// Feed 按顺序处理一批采样
func (c *Classifier) Feed(samples []Sample) {
	for _, s := range samples {
		switch s.Kind {
		case PointerDown:
			c.Down(s.Pos)
		case PointerMove:
			c.Move(s.Pos)
		case PointerUp:
			c.Up(s.Pos)
		}
	}
}
