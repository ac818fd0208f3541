// Package view 把规则引擎中的牌桌、牌堆和牌映射为可交互的组件
package view

import (
	"fmt"
	"log"

	"github.com/decker502/patience/pkg/component"
	"github.com/decker502/patience/pkg/engine"
)

// 层级和尺寸常量
const (
	BoardOrder = -2
	PileOrder  = -1
	// DragZOffset 加到拖拽中牌的层级上，使其位于其他牌之上
	DragZOffset = 1000
	// CardMargin 是牌和牌堆边界向内收缩的像素数
	CardMargin = 5
	// HeightWidthRatio 是标准扑克牌 3.5in x 2.5in 的高宽比
	HeightWidthRatio = 3.5 / 2.5
)

// CardSize 计算在 rows x cols 的网格中牌的像素尺寸
func CardSize(surfaceWidth, surfaceHeight, rows, cols int) (width, height int) {
	if rows <= 0 || cols <= 0 || surfaceWidth <= 0 || surfaceHeight <= 0 {
		return 0, 0
	}
	maxWidth := float64(surfaceWidth) / float64(cols)
	maxHeight := float64(surfaceHeight) / float64(rows)
	scale := min(maxHeight/(maxWidth*HeightWidthRatio), 1)
	w := maxWidth * scale
	return int(w), int(w * HeightWidthRatio)
}

// BuildView 按引擎当前状态注册牌桌、所有牌和所有牌堆
func BuildView(b *engine.Bridge, m *component.Manager) error {
	var comps []component.Component
	err := b.Do(func(tx *engine.Tx) error {
		comps = append(comps, NewBoard(b))

		piles, err := tx.Piles()
		if err != nil {
			return err
		}
		for _, ph := range piles {
			info, err := tx.Pile(ph)
			if err != nil {
				return err
			}
			cards, err := tx.Cards(ph)
			if err != nil {
				return err
			}
			for _, ch := range cards {
				ci, err := tx.Card(ch)
				if err != nil {
					return err
				}
				comps = append(comps, newCard(b, ch, ci))
			}
			comps = append(comps, newPile(b, ph, info))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to build view: %w", err)
	}

	for _, c := range comps {
		m.Register(c)
	}
	log.Printf("[View] Built %d components for %s", len(comps), b.Filename())
	return nil
}

// Back 撤销一步：取消拖拽，注销所有组件，回退历史并重建视图
//
// 调用方随后需要重新应用绘制区域尺寸。
func Back(b *engine.Bridge, m *component.Manager) error {
	m.CancelDrag()
	m.Clear()
	if err := b.Undo(); err != nil {
		return fmt.Errorf("failed to undo: %w", err)
	}
	return BuildView(b, m)
}

// Board 代表整个牌桌，只负责把尺寸变化转告规则程序
type Board struct {
	component.Base
	bridge *engine.Bridge
}

// NewBoard 创建牌桌组件
func NewBoard(b *engine.Bridge) *Board {
	return &Board{bridge: b}
}

func (bd *Board) Order() int { return BoardOrder }

func (bd *Board) OnSurfaceChange(width, height int) {
	if err := bd.bridge.Resize(width, height); err != nil {
		log.Printf("[Board] resize: %v", err)
	}
}
