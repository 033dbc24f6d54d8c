package main

import (
	"flag"
	"math/rand"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rookeye/rookeye/internal/assets"
	"github.com/rookeye/rookeye/internal/config"
	"github.com/rookeye/rookeye/internal/dataset"
	"github.com/rookeye/rookeye/internal/position"
	"github.com/rookeye/rookeye/internal/render"
	"github.com/rookeye/rookeye/internal/tiles"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (defaults used if empty)")
	outDir := flag.String("out", "", "Output tile directory (overrides config)")
	numBoards := flag.Int("boards", 0, "Number of boards to generate (overrides config)")
	pgnPath := flag.String("pgn", "", "Optional PGN file; real-game positions are mixed into the batch")
	pgnBoards := flag.Int("pgn-boards", 0, "Positions to sample from the PGN file (default: 10% of -boards)")
	seed := flag.Int64("seed", 1, "Random seed")
	verbose := flag.Bool("verbose", false, "Enable verbose logging")
	flag.Parse()

	logger := newLogger(*verbose)
	defer logger.Sync()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			logger.Fatal("Failed to load config", zap.Error(err))
		}
	}
	if *outDir != "" {
		cfg.Paths.TilesDir = *outDir
	}
	if *numBoards > 0 {
		cfg.Generation.NumBoards = *numBoards
	}

	sets := assets.AvailableSets(cfg.Paths.PieceSetsDir, cfg.PieceSets)
	if len(sets) == 0 {
		logger.Fatal("No complete piece sets found; run download-pieces first",
			zap.String("dir", cfg.Paths.PieceSetsDir))
	}

	cache := render.NewGlyphCache(cfg.Paths.PieceSetsDir, cfg.Board.TileSize)
	for _, set := range sets {
		if failed := cache.Preload(set); failed > 0 {
			logger.Warn("Piece set partially loaded",
				zap.String("set", set),
				zap.Int("failed_glyphs", failed))
		}
	}

	renderer := render.NewRenderer(cache, cfg.Board.TileSize, logger)
	rng := rand.New(rand.NewSource(*seed))
	augmenter := tiles.NewAugmenter(cfg.Generation.AugmentProbability, rng)

	writer, err := dataset.NewWriter(cfg.Paths.TilesDir, cfg.Classes)
	if err != nil {
		logger.Fatal("Failed to create dataset writer", zap.Error(err))
	}

	logger.Info("Generating boards",
		zap.Int("boards", cfg.Generation.NumBoards),
		zap.Int("piece_sets", len(sets)),
		zap.Int("themes", len(cfg.Themes)),
		zap.Float64("augment_probability", cfg.Generation.AugmentProbability))

	boards := position.GenerateMix(rng, cfg.Generation.NumBoards,
		cfg.Generation.RandomGameRatio, cfg.Generation.RandomPlacementRatio,
		cfg.Generation.MaxGamePlies)

	if *pgnPath != "" {
		sampler, err := position.NewPGNSampler(*pgnPath)
		if err != nil {
			logger.Fatal("Failed to load PGN file", zap.String("path", *pgnPath), zap.Error(err))
		}

		extra := *pgnBoards
		if extra <= 0 {
			extra = cfg.Generation.NumBoards / 10
		}
		boards = position.MixIn(rng, boards, sampler, extra)

		logger.Info("Mixed in PGN positions",
			zap.String("path", *pgnPath),
			zap.Int("games", sampler.GameCount()),
			zap.Int("positions", extra))
	}

	augmented := 0
	for i, board := range boards {
		set := sets[rng.Intn(len(sets))]
		theme := cfg.Themes[rng.Intn(len(cfg.Themes))]

		img := renderer.RenderBoard(board, set, theme)
		boardTiles, err := tiles.Slice(img, board, cfg.Board.TileSize)
		if err != nil {
			logger.Fatal("Failed to slice board", zap.Int("board", i), zap.Error(err))
		}

		for _, tile := range boardTiles {
			index, err := writer.Write(tile.Image, tile.Label)
			if err != nil {
				logger.Fatal("Failed to write tile", zap.Error(err))
			}

			if augmenter.ShouldAugment() {
				if err := writer.WriteAugmented(augmenter.Apply(tile.Image), tile.Label, index); err != nil {
					logger.Fatal("Failed to write augmented tile", zap.Error(err))
				}
				augmented++
			}
		}

		if (i+1)%1000 == 0 {
			logger.Info("Progress",
				zap.Int("boards_done", i+1),
				zap.Int("tiles_written", writer.Count()))
		}
	}

	dist, err := dataset.ClassDistribution(cfg.Paths.TilesDir, cfg.Classes)
	if err != nil {
		logger.Warn("Failed to count class distribution", zap.Error(err))
	} else {
		fields := make([]zap.Field, 0, len(cfg.Classes))
		for _, class := range cfg.Classes {
			fields = append(fields, zap.Int(class, dist[class]))
		}
		logger.Info("Class distribution", fields...)
	}

	logger.Info("Generation complete",
		zap.Int("boards", len(boards)),
		zap.Int("tiles", writer.Count()),
		zap.Int("augmented", augmented),
		zap.String("dir", cfg.Paths.TilesDir))
}

func newLogger(verbose bool) *zap.Logger {
	if verbose {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		logger, _ := cfg.Build()
		return logger
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	logger, _ := cfg.Build()
	return logger
}
