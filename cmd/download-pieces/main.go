package main

import (
	"flag"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rookeye/rookeye/internal/assets"
	"github.com/rookeye/rookeye/internal/config"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (defaults used if empty)")
	destDir := flag.String("dest", "", "Destination directory (overrides config)")
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

	dir := cfg.Paths.PieceSetsDir
	if *destDir != "" {
		dir = *destDir
	}

	logger.Info("Downloading piece sets",
		zap.Int("sets", len(cfg.PieceSets)),
		zap.String("dest", dir))

	downloader := assets.NewDownloader(dir, logger)
	total, err := downloader.DownloadSets(cfg.PieceSets)
	if err != nil {
		logger.Fatal("Download failed", zap.Error(err))
	}

	available := assets.AvailableSets(dir, cfg.PieceSets)
	logger.Info("Download complete",
		zap.Int("files", total),
		zap.Int("complete_sets", len(available)))

	if len(available) == 0 {
		logger.Fatal("No complete piece sets available; rendering cannot proceed")
	}
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
