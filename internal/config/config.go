package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config represents the full pipeline configuration
type Config struct {
	Paths      PathsConfig      `json:"paths"`
	Board      BoardConfig      `json:"board"`
	Classes    []string         `json:"classes"`
	PieceSets  []string         `json:"piece_sets"`
	Themes     []Theme          `json:"themes"`
	Generation GenerationConfig `json:"generation"`
	Training   TrainingConfig   `json:"training"`
}

// PathsConfig contains filesystem locations used by the pipeline
type PathsConfig struct {
	PieceSetsDir   string `json:"piece_sets_dir"`
	TilesDir       string `json:"tiles_dir"`
	CheckpointsDir string `json:"checkpoints_dir"`
	ModelDir       string `json:"model_dir"`
}

// BoardConfig contains image dimensions
type BoardConfig struct {
	BoardSize int `json:"board_size"` // Full board render size in pixels
	TileSize  int `json:"tile_size"`  // Individual square size (BoardSize / 8)
}

// Theme is a light/dark square color pair, hex encoded
type Theme struct {
	Name  string `json:"name"`
	Light string `json:"light"`
	Dark  string `json:"dark"`
}

// GenerationConfig controls synthetic dataset generation
type GenerationConfig struct {
	NumBoards            int     `json:"num_boards"`
	RandomGameRatio      float64 `json:"random_game_ratio"`
	RandomPlacementRatio float64 `json:"random_placement_ratio"`
	EndgameRatio         float64 `json:"endgame_ratio"`
	MaxGamePlies         int     `json:"max_game_plies"`
	AugmentProbability   float64 `json:"augment_probability"`
}

// TrainingConfig contains training hyperparameters
type TrainingConfig struct {
	BatchSize         int     `json:"batch_size"`
	Epochs            int     `json:"epochs"`
	LearningRate      float64 `json:"learning_rate"`
	ValidationSplit   float64 `json:"validation_split"`
	SplitSeed         int64   `json:"split_seed"`
	LRFactor          float64 `json:"lr_factor"`
	LRPatience        int     `json:"lr_patience"`
	MinLearningRate   float64 `json:"min_learning_rate"`
	EarlyStopPatience int     `json:"early_stop_patience"`
	LoaderWorkers     int     `json:"loader_workers"`
	GradientClipMax   float64 `json:"gradient_clip_max"`
}

// ClassNames is the fixed 13-class label catalog. The directory name of a
// tile IS its label, so this list defines the on-disk dataset schema.
var ClassNames = []string{
	"empty",
	"wP", "wN", "wB", "wR", "wQ", "wK",
	"bP", "bN", "bB", "bR", "bQ", "bK",
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			PieceSetsDir:   "piece_sets",
			TilesDir:       "data/tiles",
			CheckpointsDir: "checkpoints",
			ModelDir:       "docs/model",
		},
		Board: BoardConfig{
			BoardSize: 400,
			TileSize:  50,
		},
		Classes: append([]string(nil), ClassNames...),
		PieceSets: []string{
			"cburnett", "merida", "california", "staunty", "kosal",
			"tatiana", "pirouetti", "chessnut", "horsey", "letter",
			"maestro", "fresca", "cardinal", "gioco", "dubrovny",
			"icpieces", "libra", "shapes", "mono", "pixel",
		},
		Themes: []Theme{
			{Name: "green", Light: "#eeeed2", Dark: "#769656"},
			{Name: "brown", Light: "#f0d9b5", Dark: "#b58863"},
			{Name: "blue", Light: "#dee3e6", Dark: "#8ca2ad"},
			{Name: "purple", Light: "#e8e9b7", Dark: "#b7c0d4"},
			{Name: "gray", Light: "#efefef", Dark: "#8b8b8b"},
			{Name: "ice", Light: "#e0e0e0", Dark: "#a0a0b0"},
			{Name: "olive", Light: "#f5f5dc", Dark: "#6b8e23"},
			{Name: "red", Light: "#fce4ec", Dark: "#c62828"},
			{Name: "indigo", Light: "#e8eaf6", Dark: "#3f51b5"},
			{Name: "amber", Light: "#fff8e1", Dark: "#ff8f00"},
		},
		Generation: GenerationConfig{
			NumBoards:            15000,
			RandomGameRatio:      0.5,
			RandomPlacementRatio: 0.3,
			EndgameRatio:         0.2,
			MaxGamePlies:         120,
			AugmentProbability:   0.3,
		},
		Training: TrainingConfig{
			BatchSize:         64,
			Epochs:            30,
			LearningRate:      0.001,
			ValidationSplit:   0.15,
			SplitSeed:         42,
			LRFactor:          0.5,
			LRPatience:        3,
			MinLearningRate:   1e-6,
			EarlyStopPatience: 5,
			LoaderWorkers:     4,
			GradientClipMax:   5.0,
		},
	}
}

// Load reads a configuration file, overlaying values on the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to a file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks configuration invariants
func (c *Config) Validate() error {
	if c.Board.TileSize <= 0 || c.Board.BoardSize != c.Board.TileSize*8 {
		return fmt.Errorf("board size %d must be 8x tile size %d", c.Board.BoardSize, c.Board.TileSize)
	}

	sum := c.Generation.RandomGameRatio + c.Generation.RandomPlacementRatio + c.Generation.EndgameRatio
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("generation ratios must sum to 1, got %.3f", sum)
	}

	if len(c.Classes) == 0 {
		return fmt.Errorf("class list is empty")
	}

	if c.Training.ValidationSplit <= 0 || c.Training.ValidationSplit >= 1 {
		return fmt.Errorf("validation split must be in (0, 1), got %f", c.Training.ValidationSplit)
	}

	return nil
}
