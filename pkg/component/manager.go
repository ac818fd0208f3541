package component

import (
	"log"
	"sort"
	"sync"

	"github.com/decker502/patience/pkg/geometry"
)

// Manager 管理所有已注册组件
type Manager struct {
	mu  sync.Mutex
	set registry
}

// registry 是不加锁的组件集合，只在 Manager 持锁时使用
type registry struct {
	components []Component
	observers  []Observer
}

// NewManager 创建一个空的 Manager
func NewManager() *Manager {
	return &Manager{}
}

// Observe 添加注销观察者
func (m *Manager) Observe(o Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set.observers = append(m.set.observers, o)
}

// Register 注册组件并调用其 OnRegister；重复注册被忽略
func (m *Manager) Register(c Component) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set.Register(c)
}

// Unregister 注销组件并调用其 OnUnregister；未注册的组件被忽略
func (m *Manager) Unregister(c Component) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set.Unregister(c)
}

// Clear 注销所有组件
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.set.Components() {
		m.set.Unregister(c)
	}
}

// Contains 判断组件是否已注册
func (m *Manager) Contains(c Component) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set.Contains(c)
}

// Components 返回按 Order 升序排列的组件快照
func (m *Manager) Components() []Component {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set.Components()
}

// Len 返回已注册组件数
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.set.components)
}

// Update 按快照依次调用 OnUpdate
//
// 回调中注册或注销组件是安全的：本轮只遍历调用开始时的快照。
func (m *Manager) Update() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set.update()
}

// Dispatch 分发一个输入意图，然后更新所有组件
func (m *Manager) Dispatch(intent Intent, p geometry.Point) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.set.Components()
	targets := make([]Component, 0, 4)
	for _, c := range snapshot {
		if c.HitTest(p) {
			targets = append(targets, c)
		}
	}

	for _, c := range snapshot {
		switch intent {
		case DragStart:
			c.OnDragStart(targets, p)
		case Drag:
			c.OnDrag(targets, p)
		case DragEnd:
			c.OnDragEnd(targets, p)
		case Tap:
			c.OnTap(targets, p)
		default:
			log.Printf("[Registry] Unknown intent %d", intent)
			return
		}
	}
	m.set.update()
}

// CancelDrag 取消所有进行中的拖拽，返回是否有组件确实取消了
func (m *Manager) CancelDrag() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	changed := false
	for _, c := range m.set.Components() {
		if c.OnCancelDrag() {
			changed = true
		}
	}
	m.set.update()
	return changed
}

// SurfaceChanged 通知所有组件绘制区域尺寸变化，然后更新
func (m *Manager) SurfaceChanged(width, height int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.set.Components() {
		c.OnSurfaceChange(width, height)
	}
	m.set.update()
}

func (r *registry) Register(c Component) {
	if r.Contains(c) {
		return
	}
	r.components = append(r.components, c)
	c.OnRegister(r)
}

func (r *registry) Unregister(c Component) {
	for i, x := range r.components {
		if x != c {
			continue
		}
		r.components = append(r.components[:i:i], r.components[i+1:]...)
		c.OnUnregister(r)
		for _, o := range r.observers {
			o.ComponentUnregistered(c)
		}
		return
	}
}

func (r *registry) Contains(c Component) bool {
	for _, x := range r.components {
		if x == c {
			return true
		}
	}
	return false
}

// Components 原地稳定排序后返回副本，相同 Order 保持先后关系
func (r *registry) Components() []Component {
	sort.SliceStable(r.components, func(i, j int) bool {
		return r.components[i].Order() < r.components[j].Order()
	})
	return append([]Component(nil), r.components...)
}

func (r *registry) update() {
	for _, c := range r.Components() {
		c.OnUpdate()
	}
}
