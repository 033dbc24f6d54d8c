package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rookeye/rookeye/internal/config"
	"github.com/rookeye/rookeye/internal/export"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (defaults used if empty)")
	checkpointPath := flag.String("checkpoint", "", "Trained checkpoint to export (overrides config)")
	outDir := flag.String("out", "", "Output directory for the web model (overrides config)")
	onnxOnly := flag.Bool("onnx-only", false, "Stop after writing the ONNX file")
	noQuantize := flag.Bool("no-quantize", false, "Skip float16 weight quantization")
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

	ckpt := filepath.Join(cfg.Paths.CheckpointsDir, "best.ckpt")
	if *checkpointPath != "" {
		ckpt = *checkpointPath
	}
	dest := cfg.Paths.ModelDir
	if *outDir != "" {
		dest = *outDir
	}

	ctx := context.Background()

	if *onnxOnly {
		if err := os.MkdirAll(dest, 0755); err != nil {
			logger.Fatal("Failed to create output directory", zap.Error(err))
		}
		stage := &export.GraphStage{OutDir: dest, Logger: logger}
		pipeline := &export.Pipeline{Stages: []export.Stage{stage}, Logger: logger}
		if _, err := pipeline.Run(ctx, ckpt); err != nil {
			logger.Fatal("Export failed", zap.Error(err))
		}
		return
	}

	if err := export.Export(ctx, ckpt, dest, !*noQuantize, logger); err != nil {
		logger.Fatal("Export failed", zap.Error(err))
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
