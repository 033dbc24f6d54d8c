package render

import (
	"fmt"
	"image"

	"github.com/fogleman/gg"
	"go.uber.org/zap"

	"github.com/rookeye/rookeye/internal/config"
	"github.com/rookeye/rookeye/internal/position"
)

// Renderer rasterizes board positions into images. Piece glyphs come from
// an injected cache; a missing or corrupt glyph degrades to an empty
// square with a logged warning.
type Renderer struct {
	tileSize int
	cache    *GlyphCache
	logger   *zap.Logger
}

// NewRenderer creates a renderer drawing tiles of the cache's size
func NewRenderer(cache *GlyphCache, tileSize int, logger *zap.Logger) *Renderer {
	return &Renderer{
		tileSize: tileSize,
		cache:    cache,
		logger:   logger,
	}
}

// RenderBoard draws a full 8x8 board for the position using one piece set
// and one color theme. Square colors follow the standard (rank+file)%2
// parity; image row 0 is rank 8.
func (r *Renderer) RenderBoard(board *position.Board, set string, theme config.Theme) image.Image {
	size := r.tileSize * 8
	dc := gg.NewContext(size, size)

	for row := 0; row < 8; row++ {
		for file := 0; file < 8; file++ {
			x := float64(file * r.tileSize)
			y := float64(row * r.tileSize)

			if (row+file)%2 == 0 {
				dc.SetHexColor(theme.Light)
			} else {
				dc.SetHexColor(theme.Dark)
			}
			dc.DrawRectangle(x, y, float64(r.tileSize), float64(r.tileSize))
			dc.Fill()
		}
	}

	for row := 0; row < 8; row++ {
		for file := 0; file < 8; file++ {
			sq := position.SquareAt(row, file)
			piece := board.PieceAt(sq)
			if piece.IsEmpty() {
				continue
			}

			glyph, err := r.cache.Glyph(set, piece)
			if err != nil {
				// Leave the square background-only and keep going.
				r.logger.Warn("skipping piece glyph",
					zap.String("set", set),
					zap.String("piece", piece.Label()),
					zap.String("square", sq.String()),
					zap.Error(err))
				continue
			}

			dc.DrawImage(glyph, file*r.tileSize, row*r.tileSize)
		}
	}

	return dc.Image()
}

// RenderPieceTile draws exactly one piece centered on a solid background
// color, with no board context. Used to synthesize piece/background
// combinations without rendering full boards.
func (r *Renderer) RenderPieceTile(piece position.Piece, set string, background string) (image.Image, error) {
	dc := gg.NewContext(r.tileSize, r.tileSize)
	dc.SetHexColor(background)
	dc.Clear()

	if piece.IsEmpty() {
		return dc.Image(), nil
	}

	glyph, err := r.cache.Glyph(set, piece)
	if err != nil {
		return nil, fmt.Errorf("piece tile %s unavailable: %w", piece.Label(), err)
	}

	dc.DrawImage(glyph, 0, 0)
	return dc.Image(), nil
}
