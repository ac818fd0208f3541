package view

import (
	"errors"
	"log"

	"github.com/decker502/patience/pkg/component"
	"github.com/decker502/patience/pkg/engine"
	"github.com/decker502/patience/pkg/geometry"
	"github.com/decker502/patience/pkg/render"
)

// Card 是一张牌的组件，位置由所在牌堆的布局写入引擎，每次更新时读回
type Card struct {
	bridge *engine.Bridge
	handle engine.Handle
	reg    component.Registry

	suit  string
	rank  string
	face  string
	z     int
	shown bool

	bounds    geometry.Rect
	hasBounds bool
	width     int
	height    int
}

func newCard(b *engine.Bridge, h engine.Handle, info engine.CardInfo) *Card {
	face, ok := render.CardKey(info.Suit, info.Rank)
	if !ok {
		log.Printf("[Card] Unknown card %s %s", info.Suit, info.Rank)
	}
	return &Card{
		bridge: b,
		handle: h,
		suit:   info.Suit,
		rank:   info.Rank,
		face:   face,
		z:      info.Z,
		shown:  info.Visible,
	}
}

// Handle 返回牌在引擎中的句柄
func (c *Card) Handle() engine.Handle { return c.handle }

func (c *Card) Order() int { return c.z }

func (c *Card) HitTest(p geometry.Point) bool {
	b, ok := c.Bounds()
	return ok && b.Contains(p)
}

// Bounds 返回内缩后的绘制区域
func (c *Card) Bounds() (geometry.Rect, bool) {
	if !c.hasBounds {
		return geometry.Rect{}, false
	}
	return c.bounds.Inset(CardMargin), true
}

// Visual 正面朝上时返回牌面标识，否则返回牌背
func (c *Card) Visual() (string, bool) {
	if c.shown && c.face != "" {
		return c.face, true
	}
	return render.BackKey, true
}

func (c *Card) OnRegister(r component.Registry) { c.reg = r }

func (c *Card) OnUnregister(r component.Registry) {
	_ = c.bridge.Do(func(tx *engine.Tx) error {
		tx.Release(c.handle)
		return nil
	})
}

func (c *Card) OnSurfaceChange(width, height int) {
	rows, cols := c.bridge.Board()
	c.width, c.height = CardSize(width, height, rows, cols)
}

func (c *Card) OnUpdate() {
	var info engine.CardInfo
	err := c.bridge.Do(func(tx *engine.Tx) error {
		var err error
		info, err = tx.Card(c.handle)
		return err
	})
	switch {
	case errors.Is(err, engine.ErrReleased):
		log.Printf("[Card] %s %s: update after release", c.suit, c.rank)
		return
	case err != nil:
		log.Printf("[Card] %s %s: %v", c.suit, c.rank, err)
		return
	}

	if !info.Alive {
		if c.reg != nil && c.reg.Contains(c) {
			c.reg.Unregister(c)
		}
		return
	}
	left := info.X + int(float64(c.width)*info.OffsetX)
	top := info.Y + int(float64(c.height)*info.OffsetY)
	c.bounds = geometry.R(left, top, left+c.width, top+c.height)
	c.hasBounds = c.width > 0 && c.height > 0
	c.shown = info.Visible
	c.z = info.Z
}

// OnTap 只有命中的最上层牌才会通知规则程序
func (c *Card) OnTap(targets []component.Component, p geometry.Point) {
	// 有意不通知被压住的牌，否则重叠的牌会在一次点击里各收到一次 tapCard
	if topCard(targets) != c {
		return
	}
	if err := c.bridge.TapCard(c.handle); err != nil {
		log.Printf("[Card] tap %s %s: %v", c.suit, c.rank, err)
	}
}

func (c *Card) OnDragStart([]component.Component, geometry.Point) {}
func (c *Card) OnDrag([]component.Component, geometry.Point) {}
func (c *Card) OnDragEnd([]component.Component, geometry.Point) {}
func (c *Card) OnCancelDrag() bool { return false }
