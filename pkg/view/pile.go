package view

import (
	"log"

	"github.com/decker502/patience/pkg/component"
	"github.com/decker502/patience/pkg/engine"
	"github.com/decker502/patience/pkg/geometry"
	"github.com/decker502/patience/pkg/render"
)

// Pile 是牌堆组件
//
// 拖拽开始时，Pile 请规则程序分出一组牌，为它们注册一个临时 Pile；
// 临时 Pile 跟随指针移动，在拖拽结束时尝试合并到重叠面积最大的牌堆，
// 失败则把牌放回来源牌堆，然后注销自己。
type Pile struct {
	bridge *engine.Bridge
	handle engine.Handle
	reg    component.Registry

	// parent 非空表示这是拖拽中的临时牌堆
	parent   *Pile
	dragging bool
	anchor   geometry.Point

	name   string
	row    float64
	col    float64
	x, y   int
	draw   bool
	visual string

	bounds    geometry.Rect
	hasBounds bool

	surfaceWidth  int
	surfaceHeight int
	cardWidth     int
	cardHeight    int
}

func newPile(b *engine.Bridge, h engine.Handle, info engine.PileInfo) *Pile {
	return &Pile{
		bridge: b,
		handle: h,
		name:   info.Name,
		row:    info.Row,
		col:    info.Col,
		draw:   info.Draw,
		visual: render.PlaceholderKey(info.Back),
	}
}

// Name 返回牌堆名
func (p *Pile) Name() string { return p.name }

// Dragging 判断是否为正在拖拽的临时牌堆
func (p *Pile) Dragging() bool { return p.dragging }

// Handle 返回牌堆在引擎中的句柄
func (p *Pile) Handle() engine.Handle { return p.handle }

func (p *Pile) Order() int { return PileOrder }

func (p *Pile) HitTest(pt geometry.Point) bool {
	b, ok := p.inset()
	return ok && b.Contains(pt)
}

// Bounds 返回占位图的绘制区域；draw 为 false 时不绘制
func (p *Pile) Bounds() (geometry.Rect, bool) {
	if !p.draw {
		return geometry.Rect{}, false
	}
	return p.inset()
}

func (p *Pile) Visual() (string, bool) {
	return p.visual, p.draw
}

func (p *Pile) inset() (geometry.Rect, bool) {
	if !p.hasBounds {
		return geometry.Rect{}, false
	}
	return p.bounds.Inset(CardMargin), true
}

func (p *Pile) OnRegister(r component.Registry) { p.reg = r }

func (p *Pile) OnUnregister(r component.Registry) {
	_ = p.bridge.Do(func(tx *engine.Tx) error {
		tx.Release(p.handle)
		return nil
	})
}

func (p *Pile) OnSurfaceChange(width, height int) {
	p.surfaceWidth, p.surfaceHeight = width, height
	var rows, cols int
	err := p.bridge.Do(func(tx *engine.Tx) error {
		rows, cols = tx.Board()
		info, err := tx.Pile(p.handle)
		if err != nil {
			return err
		}
		p.row, p.col = info.Row, info.Col
		return nil
	})
	if err != nil {
		log.Printf("[Pile] %s: %v", p.name, err)
	}
	p.cardWidth, p.cardHeight = CardSize(width, height, rows, cols)
	if !p.dragging {
		p.x = int(p.col * float64(p.cardWidth))
		p.y = int(p.row * float64(p.cardHeight))
	}
}

// anotherDragging 判断是否有其他牌堆正在拖拽
func (p *Pile) anotherDragging() bool {
	if p.reg == nil {
		return false
	}
	for _, c := range p.reg.Components() {
		if other, ok := c.(*Pile); ok && other != p && other.dragging {
			return true
		}
	}
	return false
}

// OnUpdate 调用规则布局，把位置写回每张存活的牌，并重新计算边界
func (p *Pile) OnUpdate() {
	if p.anotherDragging() {
		return
	}
	err := p.bridge.Do(func(tx *engine.Tx) error {
		if !tx.Alive(p.handle) {
			return engine.ErrReleased
		}
		info, err := tx.Pile(p.handle)
		if err != nil {
			return err
		}
		p.draw = info.Draw
		if p.parent == nil {
			p.visual = render.PlaceholderKey(info.Back)
		}

		rect := geometry.R(p.x, p.y, p.surfaceWidth, p.surfaceHeight)
		points, err := tx.Layout(p.handle, rect, p.cardWidth, p.cardHeight)
		if err != nil {
			return err
		}

		maxX, maxY := p.x, p.y
		for i := 0; i < info.Count && i < len(points); i++ {
			if !tx.CardAlive(p.handle, i) {
				continue
			}
			z := i
			if p.dragging {
				z += DragZOffset
			}
			pt := points[i]
			if err := tx.PlaceCard(p.handle, i, pt.X, pt.Y, z); err != nil {
				return err
			}
			maxX, maxY = max(maxX, pt.X), max(maxY, pt.Y)
		}
		p.bounds = geometry.R(p.x, p.y, maxX+p.cardWidth, maxY+p.cardHeight)
		p.hasBounds = true
		return nil
	})
	if err != nil {
		log.Printf("[Pile] %s update: %v", p.name, err)
	}
}

// topCard 返回 targets 中层级最高的牌
func topCard(targets []component.Component) *Card {
	var top *Card
	for _, c := range targets {
		card, ok := c.(*Card)
		if !ok {
			continue
		}
		if top == nil || card.Order() > top.Order() {
			top = card
		}
	}
	return top
}

func (p *Pile) OnDragStart(targets []component.Component, pt geometry.Point) {
	if p.dragging || !component.Contains(targets, p) || p.anotherDragging() {
		return
	}
	card := topCard(targets)
	if card == nil {
		return
	}

	var transient *Pile
	err := p.bridge.Do(func(tx *engine.Tx) error {
		h, err := tx.Split(p.handle, card.Handle())
		if err != nil || !h.Valid() {
			return err
		}
		ci, err := tx.Card(card.Handle())
		if err != nil {
			tx.Release(h)
			return err
		}
		info, err := tx.Pile(h)
		if err != nil {
			tx.Release(h)
			return err
		}

		transient = newPile(p.bridge, h, info)
		transient.parent = p
		transient.dragging = true
		transient.x, transient.y = ci.X, ci.Y
		transient.anchor = pt.Sub(geometry.Pt(float64(ci.X), float64(ci.Y)))
		transient.row, transient.col = p.row, p.col
		transient.surfaceWidth, transient.surfaceHeight = p.surfaceWidth, p.surfaceHeight
		transient.cardWidth, transient.cardHeight = p.cardWidth, p.cardHeight
		return nil
	})
	if err != nil {
		log.Printf("[Pile] %s split: %v", p.name, err)
		return
	}
	if transient == nil {
		return
	}

	// 来源牌堆缩成一张牌大小，避免下面露出被拉长的空占位
	p.bounds = geometry.R(p.x, p.y, p.x+p.cardWidth, p.y+p.cardHeight)
	p.reg.Register(transient)
}

func (p *Pile) OnDrag(targets []component.Component, pt geometry.Point) {
	if !p.dragging {
		return
	}
	pos := pt.Sub(p.anchor)
	p.x, p.y = int(pos.X), int(pos.Y)
}

func (p *Pile) OnDragEnd(targets []component.Component, pt geometry.Point) {
	if p.dragging {
		p.drop()
	}
}

func (p *Pile) OnTap(targets []component.Component, pt geometry.Point) {
	// 指针回到阈值内抬起时分类器报告点击，此时仍要结束拖拽
	if p.dragging {
		p.drop()
		return
	}
	if p.parent != nil || !component.Contains(targets, p) {
		return
	}
	err := p.bridge.Do(func(tx *engine.Tx) error {
		return tx.TapPile(p.handle)
	})
	if err != nil {
		log.Printf("[Pile] %s tap: %v", p.name, err)
	}
}

func (p *Pile) OnCancelDrag() bool {
	if !p.dragging {
		return false
	}
	err := p.bridge.Do(func(tx *engine.Tx) error {
		return p.revert(tx)
	})
	if err != nil {
		log.Printf("[Pile] %s cancel: %v", p.name, err)
	}
	p.finish()
	return true
}

// mergeTarget 返回与本牌堆重叠面积最大的其他牌堆；面积相同时取先遍历到的
func (p *Pile) mergeTarget() *Pile {
	mine, ok := p.inset()
	if !ok || p.reg == nil {
		return nil
	}
	var best *Pile
	bestArea := 0
	for _, c := range p.reg.Components() {
		other, ok := c.(*Pile)
		if !ok || other == p {
			continue
		}
		theirs, ok := other.inset()
		if !ok {
			continue
		}
		if area := mine.OverlapArea(theirs); area > bestArea {
			best, bestArea = other, area
		}
	}
	return best
}

// drop 结束拖拽：合并到目标牌堆，失败则放回来源
func (p *Pile) drop() {
	target := p.mergeTarget()
	err := p.bridge.Do(func(tx *engine.Tx) error {
		var th engine.Handle
		if target != nil {
			th = target.handle
		}
		result := tx.Merge(th, p.handle)
		if target != nil {
			log.Printf("[Pile] %s dropped on %s: %s", p.name, target.name, result)
		}
		if result == engine.Merged {
			return nil
		}
		return p.revert(tx)
	})
	if err != nil {
		log.Printf("[Pile] %s drop: %v", p.name, err)
	}
	p.finish()
}

func (p *Pile) revert(tx *engine.Tx) error {
	if p.parent == nil {
		log.Printf("[Pile] %s: dragging pile has no source", p.name)
		return nil
	}
	_, err := tx.Revert(p.handle, p.parent.handle)
	return err
}

func (p *Pile) finish() {
	if p.reg != nil {
		p.reg.Unregister(p)
	}
	p.dragging = false
}
