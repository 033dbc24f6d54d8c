package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rookeye/rookeye/internal/config"
	"github.com/rookeye/rookeye/internal/dataset"
	"github.com/rookeye/rookeye/internal/training"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (defaults used if empty)")
	tileDirs := flag.String("tiles", "", "Comma-separated tile directories (defaults to config tiles dir)")
	checkpointPath := flag.String("checkpoint", "", "Best checkpoint path (overrides config)")
	epochs := flag.Int("epochs", 0, "Number of epochs (overrides config)")
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

	roots := []string{cfg.Paths.TilesDir}
	if *tileDirs != "" {
		roots = strings.Split(*tileDirs, ",")
	}

	var sources []*dataset.Source
	for _, root := range roots {
		root = strings.TrimSpace(root)
		src, err := dataset.ScanSource(root, cfg.Classes)
		if err != nil {
			logger.Fatal("Failed to scan tile directory",
				zap.String("dir", root),
				zap.Error(err))
		}
		logger.Info("Scanned tile source",
			zap.String("dir", root),
			zap.Int("samples", len(src.Samples)),
			zap.Int("classes", len(src.Classes)))
		sources = append(sources, src)
	}

	// Sources with different class sets cannot be mixed; stop immediately.
	pool, err := dataset.Concat(sources...)
	if err != nil {
		logger.Fatal("Incompatible tile sources", zap.Error(err))
	}

	trainCfg := training.Config{
		Epochs:            cfg.Training.Epochs,
		BatchSize:         cfg.Training.BatchSize,
		LearningRate:      cfg.Training.LearningRate,
		LRFactor:          cfg.Training.LRFactor,
		LRPatience:        cfg.Training.LRPatience,
		MinLearningRate:   cfg.Training.MinLearningRate,
		EarlyStopPatience: cfg.Training.EarlyStopPatience,
		GradientClipMax:   cfg.Training.GradientClipMax,
		ValidationSplit:   cfg.Training.ValidationSplit,
		SplitSeed:         cfg.Training.SplitSeed,
		SamplerSeed:       1,
		LoaderWorkers:     cfg.Training.LoaderWorkers,
		CheckpointPath:    filepath.Join(cfg.Paths.CheckpointsDir, "best.ckpt"),
	}
	if *epochs > 0 {
		trainCfg.Epochs = *epochs
	}
	if *checkpointPath != "" {
		trainCfg.CheckpointPath = *checkpointPath
	}

	trainer, err := training.NewTrainer(trainCfg, cfg.Board.TileSize, len(cfg.Classes), logger)
	if err != nil {
		logger.Fatal("Failed to create trainer", zap.Error(err))
	}
	defer trainer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Interrupt received, stopping after current batch")
		cancel()
	}()

	result, err := trainer.Fit(ctx, pool)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("Training interrupted; best checkpoint kept",
				zap.String("checkpoint", trainCfg.CheckpointPath))
			return
		}
		logger.Fatal("Training failed", zap.Error(err))
	}

	logger.Info("Done",
		zap.Int("epochs_run", len(result.Metrics)),
		zap.Int("best_epoch", result.BestEpoch),
		zap.Float64("best_val_acc", result.BestValAccuracy),
		zap.Bool("early_stopped", result.EarlyStopped),
		zap.String("checkpoint", trainCfg.CheckpointPath))
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
