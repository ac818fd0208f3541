package input

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/decker502/patience/pkg/geometry"
)

// SampleKind 是指针采样的类型
type SampleKind int

const (
	PointerDown SampleKind = iota
	PointerMove
	PointerUp
)

// Sample 是一次指针采样
type Sample struct {
	Kind SampleKind
	Pos  geometry.Point
}

// Sampler 每帧读取 ebiten 的鼠标和触摸状态，转换为按下/移动/抬起采样
// 同时支持鼠标和触摸，优先使用触摸；同一时刻只跟踪一个指针
type Sampler struct {
	touchID  ebiten.TouchID
	touching bool
	mouse    bool
	lastX    int
	lastY    int
}

// NewSampler 创建采样器
func NewSampler() *Sampler {
	return &Sampler{}
}

// Poll 返回本帧的采样，必须在 ebiten 的 Update 中调用
func (s *Sampler) Poll() []Sample {
	var out []Sample

	// 首先检查触摸输入（移动设备）
	if !s.touching && !s.mouse {
		if ids := inpututil.AppendJustPressedTouchIDs(nil); len(ids) > 0 {
			s.touchID = ids[0]
			s.touching = true
			s.lastX, s.lastY = ebiten.TouchPosition(s.touchID)
			return append(out, s.sample(PointerDown))
		}
	}
	if s.touching {
		if inpututil.IsTouchJustReleased(s.touchID) {
			s.touching = false
			return append(out, s.sample(PointerUp))
		}
		x, y := ebiten.TouchPosition(s.touchID)
		if x != s.lastX || y != s.lastY {
			s.lastX, s.lastY = x, y
			out = append(out, s.sample(PointerMove))
		}
		return out
	}

	// 其次检查鼠标输入（桌面设备）
	x, y := ebiten.CursorPosition()
	switch {
	case !s.mouse && inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft):
		s.mouse = true
		s.lastX, s.lastY = x, y
		out = append(out, s.sample(PointerDown))
	case s.mouse && inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft):
		s.mouse = false
		s.lastX, s.lastY = x, y
		out = append(out, s.sample(PointerUp))
	case s.mouse && (x != s.lastX || y != s.lastY):
		s.lastX, s.lastY = x, y
		out = append(out, s.sample(PointerMove))
	}
	return out
}

// Reset 放弃正在跟踪的指针，直到下一次按下
func (s *Sampler) Reset() {
	s.touching = false
	s.mouse = false
}

func (s *Sampler) sample(kind SampleKind) Sample {
	return Sample{Kind: kind, Pos: geometry.Pt(float64(s.lastX), float64(s.lastY))}
}
