package position

import (
	"fmt"
	"io"
	"math/rand"
	"os"

	"github.com/notnil/chess"
)

// PGNSampler draws positions from real games in a PGN file, one position
// per game at a random ply. Supplements the synthetic generators with
// human piece configurations.
type PGNSampler struct {
	games []*chess.Game
}

// NewPGNSampler parses a PGN file
func NewPGNSampler(path string) (*PGNSampler, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PGN file: %w", err)
	}
	defer file.Close()

	return NewPGNSamplerReader(file)
}

// NewPGNSamplerReader parses PGN from an io.Reader
func NewPGNSamplerReader(reader io.Reader) (*PGNSampler, error) {
	var games []*chess.Game

	scanner := chess.NewScanner(reader)
	for scanner.Scan() {
		if game := scanner.Next(); game != nil {
			games = append(games, game)
		}
	}

	// EOF is expected at end of file, not an error
	if err := scanner.Err(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("error parsing PGN: %w", err)
	}

	if len(games) == 0 {
		return nil, fmt.Errorf("no games found in PGN")
	}

	return &PGNSampler{games: games}, nil
}

// GameCount returns the number of parsed games
func (s *PGNSampler) GameCount() int {
	return len(s.games)
}

// Generate replays a random game up to a random ply and returns the board
func (s *PGNSampler) Generate(rng *rand.Rand) *Board {
	game := s.games[rng.Intn(len(s.games))]
	moves := game.Moves()

	replay := chess.NewGame()
	if len(moves) > 0 {
		ply := 1 + rng.Intn(len(moves))
		for _, move := range moves[:ply] {
			if err := replay.Move(move); err != nil {
				break
			}
		}
	}

	return fromGameBoard(replay.Position().Board())
}
