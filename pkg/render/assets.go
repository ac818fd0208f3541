package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg" // 注册 JPEG 解码器
	_ "image/png"  // 注册 PNG 解码器
	"io/fs"
	"log"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/decker502/patience/pkg/config"
)

// AssetSource 为一个外观标识生成源图
//
// width 和 height 是纹理将被绘制的像素尺寸。读文件的来源可以忽略它们，
// 生成图形的来源按此尺寸绘制，绘制区域变化后依然清晰。
type AssetSource interface {
	Image(key string, width, height int) (image.Image, error)
}

// ManifestSource 加载 CardAssets 清单中列出的牌面图片
//
// 清单中没有的标识，或文件无法解码的标识，交给后备来源处理。
// 解码失败只记录日志，不会中断游戏。
//
// 使用方法：
//
//	assets, _ := config.LoadCardAssets(fsys, "assets/config/cards.yaml")
//	src := NewManifestSource(fsys, assets, ProceduralSource{})
//	cache := NewTextureCache(EbitenTextures(src))
type ManifestSource struct {
	fsys     fs.FS
	assets   *config.CardAssets
	fallback AssetSource
}

// NewManifestSource 创建从 fsys 读取图片文件的来源
func NewManifestSource(fsys fs.FS, assets *config.CardAssets, fallback AssetSource) *ManifestSource {
	return &ManifestSource{fsys: fsys, assets: assets, fallback: fallback}
}

// Image 实现 AssetSource
func (s *ManifestSource) Image(key string, width, height int) (image.Image, error) {
	if path, ok := s.assets.Path(key); ok {
		img, err := s.decode(path)
		if err == nil {
			return img, nil
		}
		log.Printf("[Renderer] %v, falling back", err)
	}
	if s.fallback == nil {
		return nil, fmt.Errorf("no image for %q", key)
	}
	return s.fallback.Image(key, width, height)
}

func (s *ManifestSource) decode(path string) (image.Image, error) {
	f, err := s.fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return img, nil
}

// 默认牌面尺寸，用于尺寸未知时
const (
	defaultCardWidth  = 100
	defaultCardHeight = 140
)

var (
	faceColor   = color.RGBA{R: 250, G: 250, B: 245, A: 255}
	edgeColor   = color.RGBA{R: 60, G: 60, B: 60, A: 255}
	redInk      = color.RGBA{R: 200, G: 30, B: 30, A: 255}
	blackInk    = color.RGBA{R: 20, G: 20, B: 20, A: 255}
	backColor   = color.RGBA{R: 40, G: 70, B: 150, A: 255}
	blankColor  = color.RGBA{R: 255, G: 255, B: 255, A: 60}
	blankMarker = color.RGBA{R: 255, G: 255, B: 255, A: 140}
)

var suitSymbols = map[string]string{"c": "C", "d": "D", "h": "H", "s": "S"}

// ProceduralSource 用 basicfont 绘制简单的牌面，用于没有图片资源的情况
type ProceduralSource struct{}

// Image 实现 AssetSource
func (ProceduralSource) Image(key string, width, height int) (image.Image, error) {
	if width <= 0 || height <= 0 {
		width, height = defaultCardWidth, defaultCardHeight
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	switch key {
	case BackKey:
		fill(img, backColor)
		outline(img, edgeColor)
		inner := image.Rect(4, 4, width-4, height-4)
		outline(img.SubImage(inner).(*image.RGBA), faceColor)
	case BlankKey:
		fill(img, blankColor)
	case BlankAceKey:
		fill(img, blankColor)
		label(img, "A", width/2-3, height/2+4, blankMarker)
	case BlankKingKey:
		fill(img, blankColor)
		label(img, "K", width/2-3, height/2+4, blankMarker)
	default:
		suit, rank, ok := parseCardKey(key)
		if !ok {
			return nil, fmt.Errorf("unknown card key %q", key)
		}
		ink := blackInk
		if suit == "h" || suit == "d" {
			ink = redInk
		}
		fill(img, faceColor)
		outline(img, edgeColor)
		text := strings.ToUpper(rank) + suitSymbols[suit]
		label(img, text, 4, 14, ink)
		label(img, text, width-4-7*len(text), height-6, ink)
	}
	return img, nil
}

func fill(img *image.RGBA, c color.Color) {
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

func outline(img *image.RGBA, c color.Color) {
	b := img.Bounds()
	for x := b.Min.X; x < b.Max.X; x++ {
		img.Set(x, b.Min.Y, c)
		img.Set(x, b.Max.Y-1, c)
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		img.Set(b.Min.X, y, c)
		img.Set(b.Max.X-1, y, c)
	}
}

func label(img *image.RGBA, s string, x, y int, c color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}
