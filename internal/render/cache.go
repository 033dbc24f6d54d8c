package render

import (
	"fmt"
	"image"
	"os"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/rookeye/rookeye/internal/assets"
	"github.com/rookeye/rookeye/internal/position"
)

// glyphKey identifies a rasterized piece glyph
type glyphKey struct {
	Set   string
	Color position.Color
	Type  position.PieceType
}

// GlyphCache rasterizes SVG piece glyphs to tile-sized images and caches
// the result keyed by (set, color, piece type). It is owned by the
// renderer; there is no process-wide glyph state.
type GlyphCache struct {
	dir      string
	tileSize int
	images   map[glyphKey]image.Image
}

// NewGlyphCache creates a cache reading SVGs under dir
func NewGlyphCache(dir string, tileSize int) *GlyphCache {
	return &GlyphCache{
		dir:      dir,
		tileSize: tileSize,
		images:   make(map[glyphKey]image.Image),
	}
}

// Size returns the number of cached glyph images
func (c *GlyphCache) Size() int {
	return len(c.images)
}

// Glyph returns the rasterized glyph for a piece in the given set,
// loading and rasterizing the SVG on first use
func (c *GlyphCache) Glyph(set string, p position.Piece) (image.Image, error) {
	if p.IsEmpty() {
		return nil, fmt.Errorf("no glyph for an empty square")
	}

	key := glyphKey{Set: set, Color: p.Color, Type: p.Type}
	if img, ok := c.images[key]; ok {
		return img, nil
	}

	path := assets.PiecePath(c.dir, set, byte(p.Color), byte(p.Type))
	img, err := c.rasterize(path)
	if err != nil {
		return nil, fmt.Errorf("failed to rasterize %s: %w", path, err)
	}

	c.images[key] = img
	return img, nil
}

// Preload warms the cache with every glyph of a set. Returns the number
// of glyphs that failed to load.
func (c *GlyphCache) Preload(set string) int {
	failed := 0
	for _, color := range []position.Color{position.White, position.Black} {
		for _, pt := range position.PieceTypes {
			if _, err := c.Glyph(set, position.Piece{Color: color, Type: pt}); err != nil {
				failed++
			}
		}
	}
	return failed
}

// rasterize renders an SVG file onto a transparent tile-sized RGBA image
func (c *GlyphCache) rasterize(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	icon, err := oksvg.ReadIconStream(file)
	if err != nil {
		return nil, err
	}

	size := c.tileSize
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(size, size, scanner), 1.0)

	return img, nil
}
