package render

import (
	"image"
	"log"
	"sort"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
)

// Texture 是可绘制的纹理；*ebiten.Image 满足该接口
type Texture interface {
	Bounds() image.Rectangle
	Deallocate()
}

// TextureFactory 按标识创建纹理，width/height 是期望的像素尺寸
type TextureFactory func(key string, width, height int) (Texture, error)

// EbitenTextures 把图片源包装成创建 *ebiten.Image 的工厂
func EbitenTextures(src AssetSource) TextureFactory {
	return func(key string, width, height int) (Texture, error) {
		img, err := src.Image(key, width, height)
		if err != nil {
			return nil, err
		}
		return ebiten.NewImageFromImage(img), nil
	}
}

// TextureCache 按标识缓存纹理
//
// 纹理由缓存独占；组件只持有标识。失效时纹理被立即释放，
// 下次使用时重新创建。
type TextureCache struct {
	mu       sync.Mutex
	factory  TextureFactory
	textures map[string]Texture
	failed   map[string]bool
}

// NewTextureCache 创建缓存
func NewTextureCache(factory TextureFactory) *TextureCache {
	return &TextureCache{
		factory:  factory,
		textures: make(map[string]Texture),
		failed:   make(map[string]bool),
	}
}

// Get 返回标识对应的纹理，不存在时创建
//
// 创建失败只记录一次日志，直到该标识失效前都返回 nil。
func (c *TextureCache) Get(key string, width, height int) Texture {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tex, ok := c.textures[key]; ok {
		return tex
	}
	if c.failed[key] {
		return nil
	}
	tex, err := c.factory(key, width, height)
	if err != nil || tex == nil {
		log.Printf("[Renderer] Failed to create texture %q: %v", key, err)
		c.failed[key] = true
		return nil
	}
	c.textures[key] = tex
	return tex
}

// Invalidate 释放一个纹理
func (c *TextureCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tex, ok := c.textures[key]; ok {
		tex.Deallocate()
		delete(c.textures, key)
	}
	delete(c.failed, key)
}

// InvalidateAll 释放所有纹理
func (c *TextureCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, tex := range c.textures {
		tex.Deallocate()
		delete(c.textures, key)
	}
	clear(c.failed)
}

// Keys 返回已缓存的标识，已排序
func (c *TextureCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.textures))
	for k := range c.textures {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
