// Package component 管理可交互的屏幕元素：牌桌、牌堆和牌
//
// Manager 按层级（Order）维护已注册组件，把输入意图分发给它们，
// 并在每次事件后统一更新。所有 Manager 操作互斥；组件在回调中通过
// Registry 访问 Manager，不会再次加锁。
package component

import "github.com/decker502/patience/pkg/geometry"

// Intent 是手势分类器产生的输入意图
type Intent int

const (
	DragStart Intent = iota
	Drag
	DragEnd
	Tap
)

func (i Intent) String() string {
	switch i {
	case DragStart:
		return "drag-start"
	case Drag:
		return "drag"
	case DragEnd:
		return "drag-end"
	case Tap:
		return "tap"
	default:
		return "unknown"
	}
}

// Component 是注册到 Manager 的屏幕元素
//
// targets 是事件发生时命中测试通过的组件集合，在分发前一次性算出；
// 每个组件都会收到事件，自行判断是否在 targets 中。
type Component interface {
	// HitTest 判断点是否落在组件上；没有边界的组件返回 false
	HitTest(p geometry.Point) bool
	OnDragStart(targets []Component, p geometry.Point)
	OnDrag(targets []Component, p geometry.Point)
	OnDragEnd(targets []Component, p geometry.Point)
	OnTap(targets []Component, p geometry.Point)
	// OnCancelDrag 放弃进行中的拖拽，返回是否确实取消了什么
	OnCancelDrag() bool
	OnRegister(r Registry)
	OnUnregister(r Registry)
	OnUpdate()
	OnSurfaceChange(width, height int)
	// Order 决定绘制和遍历顺序，小的在下
	Order() int
}

// Renderable 是可以被绘制的组件
type Renderable interface {
	Component
	// Bounds 返回屏幕坐标下的绘制区域；ok 为 false 时不绘制
	Bounds() (r geometry.Rect, ok bool)
	// Visual 返回纹理标识，相同标识共享同一纹理
	Visual() (key string, ok bool)
}

// Registry 是组件在回调中可见的 Manager 视图
//
// 只能在 Manager 回调内部使用：此时 Manager 的锁已被当前操作持有。
type Registry interface {
	Register(c Component)
	Unregister(c Component)
	Contains(c Component) bool
	// Components 返回按 Order 升序排列的快照
	Components() []Component
}

// Observer 接收组件注销通知（例如渲染器据此回收纹理）
type Observer interface {
	ComponentUnregistered(c Component)
}

// Contains 判断 c 是否在 targets 中
func Contains(targets []Component, c Component) bool {
	for _, t := range targets {
		if t == c {
			return true
		}
	}
	return false
}

// Base 为不关心某些回调的组件提供空实现
type Base struct{}

func (Base) HitTest(geometry.Point) bool { return false }
func (Base) OnDragStart([]Component, geometry.Point) {}
func (Base) OnDrag([]Component, geometry.Point) {}
func (Base) OnDragEnd([]Component, geometry.Point) {}
func (Base) OnTap([]Component, geometry.Point) {}
func (Base) OnCancelDrag() bool { return false }
func (Base) OnRegister(Registry) {}
func (Base) OnUnregister(Registry) {}
func (Base) OnUpdate() {}
func (Base) OnSurfaceChange(int, int) {}
func (Base) Order() int { return 0 }
