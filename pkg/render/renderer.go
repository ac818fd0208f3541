// Package render 把已注册的可绘制组件画到屏幕上
//
// 渲染是按需的：只有 RequestFrame 之后的下一帧才会重画，
// 其余帧保留上一次的画面（需要 ebiten.SetScreenClearedEveryFrame(false)）。
package render

import (
	"fmt"
	"image/color"
	"log"
	"strconv"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/decker502/patience/pkg/component"
	"github.com/decker502/patience/pkg/geometry"
)

// DrawCall 是一帧中的一次绘制
type DrawCall struct {
	Key     string
	Bounds  geometry.Rect
	Texture Texture
	GeoM    ebiten.GeoM
}

// Renderer 是帧渲染器
//
// 不是并发安全的：所有方法都应在 ebiten 的游戏循环中调用。
type Renderer struct {
	manager    *component.Manager
	cache      *TextureCache
	width      int
	height     int
	projection ebiten.GeoM
	dirty      bool
	stale      map[string]bool
	background color.Color
}

// NewRenderer 创建渲染器并订阅组件注销通知
func NewRenderer(m *component.Manager, cache *TextureCache) *Renderer {
	r := &Renderer{
		manager:    m,
		cache:      cache,
		stale:      make(map[string]bool),
		background: color.Black,
		dirty:      true,
	}
	m.Observe(r)
	return r
}

// SetBackground 设置清屏颜色
func (r *Renderer) SetBackground(c color.Color) {
	r.background = c
	r.dirty = true
}

// Size 返回当前绘制区域尺寸
func (r *Renderer) Size() (width, height int) {
	return r.width, r.height
}

// Resize 处理绘制区域尺寸变化
//
// 重新计算投影，释放所有纹理（程序绘制的纹理与尺寸相关），
// 然后通知所有组件。
func (r *Renderer) Resize(width, height int) {
	r.width, r.height = width, height
	r.projection = Projection(width, height)
	r.cache.InvalidateAll()
	r.manager.SurfaceChanged(width, height)
	r.dirty = true
	log.Printf("[Renderer] Surface resized to %dx%d", width, height)
}

// RequestFrame 请求在下一帧重画
func (r *Renderer) RequestFrame() {
	r.dirty = true
}

// Dirty 判断是否有待重画的请求
func (r *Renderer) Dirty() bool {
	return r.dirty
}

// ComponentUnregistered 实现 component.Observer
//
// 标识可能仍被其他组件共享，所以只记录下来，在下一帧确认无人使用后再释放。
func (r *Renderer) ComponentUnregistered(c component.Component) {
	if rc, ok := c.(component.Renderable); ok {
		if key, ok := rc.Visual(); ok {
			r.stale[key] = true
		}
	}
	r.dirty = true
}

// Frame 按层级顺序收集本帧的绘制调用
func (r *Renderer) Frame() []DrawCall {
	var calls []DrawCall
	live := make(map[string]bool)

	for _, c := range r.manager.Components() {
		rc, ok := c.(component.Renderable)
		if !ok {
			continue
		}
		bounds, ok := rc.Bounds()
		if !ok || bounds.Empty() {
			continue
		}
		key, ok := rc.Visual()
		if !ok {
			continue
		}
		live[key] = true

		tw, th := TextureSize(bounds)
		tex := r.cache.Get(key, tw, th)
		if tex == nil {
			continue
		}
		tb := tex.Bounds()
		model := ModelTransform(bounds, tb.Dx(), tb.Dy(), r.width, r.height)
		model.Concat(r.projection)
		calls = append(calls, DrawCall{Key: key, Bounds: bounds, Texture: tex, GeoM: model})
	}

	for key := range r.stale {
		if !live[key] {
			r.cache.Invalidate(key)
		}
		delete(r.stale, key)
	}
	return calls
}

// Draw 在有重画请求时清屏并绘制一帧，返回是否绘制了
func (r *Renderer) Draw(screen *ebiten.Image) bool {
	if !r.dirty {
		return false
	}
	r.dirty = false

	screen.Fill(r.background)
	for _, call := range r.Frame() {
		img, ok := call.Texture.(*ebiten.Image)
		if !ok {
			continue
		}
		op := &ebiten.DrawImageOptions{}
		op.GeoM = call.GeoM
		op.Filter = ebiten.FilterLinear
		screen.DrawImage(img, op)
	}
	return true
}

// Projection 把单位坐标（0..1）映射到像素坐标
func Projection(width, height int) ebiten.GeoM {
	var g ebiten.GeoM
	g.Scale(float64(width), float64(height))
	return g
}

// TextureSize 返回为 bounds 请求纹理时使用的尺寸
//
// 同一标识的纹理被多个组件共享，高度按牌的 5:7 比例截断，
// 这样先请求的是牌堆还是牌都得到同样比例的纹理。
func TextureSize(bounds geometry.Rect) (width, height int) {
	return bounds.Width(), min(bounds.Height(), bounds.Width()*7/5)
}

// ModelTransform 把纹理像素映射到单位坐标中 bounds 所在的区域
//
// 与 Projection 组合后，纹理正好铺满屏幕上的 bounds。
func ModelTransform(bounds geometry.Rect, texWidth, texHeight, surfaceWidth, surfaceHeight int) ebiten.GeoM {
	var g ebiten.GeoM
	if texWidth <= 0 || texHeight <= 0 || surfaceWidth <= 0 || surfaceHeight <= 0 {
		return g
	}
	sw, sh := float64(surfaceWidth), float64(surfaceHeight)
	g.Scale(float64(bounds.Width())/(float64(texWidth)*sw), float64(bounds.Height())/(float64(texHeight)*sh))
	g.Translate(float64(bounds.Left)/sw, float64(bounds.Top)/sh)
	return g
}

// ParseHexColor 解析 #RRGGBB 颜色
func ParseHexColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q: want #RRGGBB", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}
