package position

import "fmt"

// Square indexes a board square 0-63, a1=0, b1=1, ..., h8=63
type Square int

// File returns the file 0-7 (a-h)
func (s Square) File() int { return int(s) % 8 }

// Rank returns the rank 0-7 (1-8)
func (s Square) Rank() int { return int(s) / 8 }

// String returns algebraic notation like "e4"
func (s Square) String() string {
	return fmt.Sprintf("%c%d", 'a'+s.File(), s.Rank()+1)
}

// Color is a piece color
type Color byte

const (
	White Color = 'w'
	Black Color = 'b'
)

// PieceType identifies a chess piece kind by its letter
type PieceType byte

const (
	Pawn   PieceType = 'P'
	Knight PieceType = 'N'
	Bishop PieceType = 'B'
	Rook   PieceType = 'R'
	Queen  PieceType = 'Q'
	King   PieceType = 'K'
)

// PieceTypes lists all piece kinds
var PieceTypes = []PieceType{Pawn, Knight, Bishop, Rook, Queen, King}

// Piece is a colored piece. The zero value means an empty square.
type Piece struct {
	Color Color
	Type  PieceType
}

// IsEmpty reports whether the piece slot is unoccupied
func (p Piece) IsEmpty() bool { return p.Type == 0 }

// Label returns the class label for the piece, e.g. "wK", or "empty"
func (p Piece) Label() string {
	if p.IsEmpty() {
		return "empty"
	}
	return string([]byte{byte(p.Color), byte(p.Type)})
}

// Board is a chess board occupancy map: 64 squares, each optionally
// holding a piece. Legality beyond king placement is not enforced here.
type Board struct {
	squares [64]Piece
}

// NewBoard returns an empty board
func NewBoard() *Board {
	return &Board{}
}

// PieceAt returns the piece on a square; the zero Piece means empty
func (b *Board) PieceAt(sq Square) Piece {
	return b.squares[sq]
}

// SetPiece places a piece on a square, replacing any occupant
func (b *Board) SetPiece(sq Square, p Piece) {
	b.squares[sq] = p
}

// Label returns the class label of the square's occupant
func (b *Board) Label(sq Square) string {
	return b.squares[sq].Label()
}

// PieceCount returns the number of occupied squares
func (b *Board) PieceCount() int {
	n := 0
	for _, p := range b.squares {
		if !p.IsEmpty() {
			n++
		}
	}
	return n
}

// SquareAt maps an image grid cell to its chess square. Row 0 of the
// rendered image is rank 8 (white at the bottom), so ranks are flipped.
func SquareAt(row, file int) Square {
	return Square((7-row)*8 + file)
}
