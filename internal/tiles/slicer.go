package tiles

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/rookeye/rookeye/internal/position"
)

// Tile is one board square image plus its occupant class label
type Tile struct {
	Image  *image.NRGBA
	Label  string
	Square position.Square
}

// Slice partitions a rendered board image into 64 labeled tiles. Labels
// come from the position used to render the board: image row 0 holds
// rank 8, so slicing and rendering agree square by square.
func Slice(boardImg image.Image, board *position.Board, tileSize int) ([]Tile, error) {
	bounds := boardImg.Bounds()
	if bounds.Dx() != tileSize*8 || bounds.Dy() != tileSize*8 {
		return nil, fmt.Errorf("board image is %dx%d, want %dx%d",
			bounds.Dx(), bounds.Dy(), tileSize*8, tileSize*8)
	}

	result := make([]Tile, 0, 64)
	for row := 0; row < 8; row++ {
		for file := 0; file < 8; file++ {
			x := bounds.Min.X + file*tileSize
			y := bounds.Min.Y + row*tileSize
			crop := imaging.Crop(boardImg, image.Rect(x, y, x+tileSize, y+tileSize))

			sq := position.SquareAt(row, file)
			result = append(result, Tile{
				Image:  crop,
				Label:  board.Label(sq),
				Square: sq,
			})
		}
	}

	return result, nil
}
