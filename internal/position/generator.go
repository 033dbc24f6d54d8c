package position

import (
	"math/rand"

	"github.com/notnil/chess"
)

// Generator produces a single board position
type Generator interface {
	Generate(rng *rand.Rand) *Board
}

// RandomGame generates positions by playing uniformly random legal moves
// from the starting position. Produces realistic configurations including
// checks and castled kings.
type RandomGame struct {
	MaxPlies int
}

// Generate plays a random number of plies in [1, MaxPlies], stopping early
// if the game ends
func (g RandomGame) Generate(rng *rand.Rand) *Board {
	maxPlies := g.MaxPlies
	if maxPlies < 1 {
		maxPlies = 1
	}

	game := chess.NewGame()
	plies := 1 + rng.Intn(maxPlies)

	for i := 0; i < plies; i++ {
		moves := game.ValidMoves()
		if len(moves) == 0 {
			break
		}
		if err := game.Move(moves[rng.Intn(len(moves))]); err != nil {
			break
		}
	}

	return fromGameBoard(game.Position().Board())
}

// RandomPlacement generates positions by placing one king of each color
// plus MinExtra-MaxExtra random pieces on distinct squares. Chess legality
// is not enforced beyond the king count and the pawn rank restriction.
type RandomPlacement struct {
	MinExtra int
	MaxExtra int
}

// Generate places kings and random extra pieces
func (g RandomPlacement) Generate(rng *rand.Rand) *Board {
	return placeRandom(rng, g.MinExtra, g.MaxExtra)
}

// Endgame generates sparse late-game boards: two kings plus 1-4 pieces
type Endgame struct{}

// Generate places kings and 1-4 extra pieces
func (Endgame) Generate(rng *rand.Rand) *Board {
	return placeRandom(rng, 1, 4)
}

// placeRandom places exactly one king per color on two distinct squares,
// then up to extra pieces on distinct remaining squares. Pawns never land
// on the back ranks. The extra count is clamped to the available squares.
func placeRandom(rng *rand.Rand, minExtra, maxExtra int) *Board {
	board := NewBoard()

	perm := rng.Perm(64)
	board.SetPiece(Square(perm[0]), Piece{Color: White, Type: King})
	board.SetPiece(Square(perm[1]), Piece{Color: Black, Type: King})

	if maxExtra < minExtra {
		maxExtra = minExtra
	}
	numExtra := minExtra + rng.Intn(maxExtra-minExtra+1)
	if numExtra > 62 {
		numExtra = 62
	}

	backRankTypes := []PieceType{Knight, Bishop, Rook, Queen}
	allTypes := []PieceType{Pawn, Knight, Bishop, Rook, Queen}

	for _, idx := range perm[2 : 2+numExtra] {
		sq := Square(idx)

		var pt PieceType
		if sq.Rank() == 0 || sq.Rank() == 7 {
			pt = backRankTypes[rng.Intn(len(backRankTypes))]
		} else {
			pt = allTypes[rng.Intn(len(allTypes))]
		}

		color := White
		if rng.Intn(2) == 1 {
			color = Black
		}

		board.SetPiece(sq, Piece{Color: color, Type: pt})
	}

	return board
}

// MixCounts splits a target count into per-strategy counts. The endgame
// count is the remainder so the three always sum exactly to n.
func MixCounts(n int, gameRatio, placementRatio float64) (nGame, nPlacement, nEndgame int) {
	nGame = int(float64(n) * gameRatio)
	nPlacement = int(float64(n) * placementRatio)
	nEndgame = n - nGame - nPlacement
	return nGame, nPlacement, nEndgame
}

// GenerateMix produces n positions from the three strategies according to
// the configured ratios, then shuffles the result's iteration order.
func GenerateMix(rng *rand.Rand, n int, gameRatio, placementRatio float64, maxPlies int) []*Board {
	nGame, nPlacement, nEndgame := MixCounts(n, gameRatio, placementRatio)

	generators := []struct {
		gen   Generator
		count int
	}{
		{RandomGame{MaxPlies: maxPlies}, nGame},
		{RandomPlacement{MinExtra: 0, MaxExtra: 14}, nPlacement},
		{Endgame{}, nEndgame},
	}

	boards := make([]*Board, 0, n)
	for _, g := range generators {
		for i := 0; i < g.count; i++ {
			boards = append(boards, g.gen.Generate(rng))
		}
	}

	rng.Shuffle(len(boards), func(i, j int) {
		boards[i], boards[j] = boards[j], boards[i]
	})

	return boards
}

// MixIn appends n positions from an extra generator and reshuffles the
// combined iteration order. Used to blend PGN-sampled positions into a
// synthetic batch.
func MixIn(rng *rand.Rand, boards []*Board, gen Generator, n int) []*Board {
	for i := 0; i < n; i++ {
		boards = append(boards, gen.Generate(rng))
	}

	rng.Shuffle(len(boards), func(i, j int) {
		boards[i], boards[j] = boards[j], boards[i]
	})

	return boards
}

// fromGameBoard converts a notnil/chess board into our occupancy map.
// Both use a1=0..h8=63 square numbering.
func fromGameBoard(cb *chess.Board) *Board {
	board := NewBoard()

	for sq := 0; sq < 64; sq++ {
		p := cb.Piece(chess.Square(sq))
		if p == chess.NoPiece {
			continue
		}

		color := White
		if p.Color() == chess.Black {
			color = Black
		}

		var pt PieceType
		switch p.Type() {
		case chess.Pawn:
			pt = Pawn
		case chess.Knight:
			pt = Knight
		case chess.Bishop:
			pt = Bishop
		case chess.Rook:
			pt = Rook
		case chess.Queen:
			pt = Queen
		case chess.King:
			pt = King
		default:
			continue
		}

		board.SetPiece(Square(sq), Piece{Color: color, Type: pt})
	}

	return board
}
