package training

import (
	"context"
	"image"
	"image/color"
	"math"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/rookeye/rookeye/internal/dataset"
	"github.com/rookeye/rookeye/internal/model"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Epochs != 30 {
		t.Errorf("Expected 30 epochs, got %d", cfg.Epochs)
	}
	if cfg.BatchSize != 64 {
		t.Errorf("Expected batch size 64, got %d", cfg.BatchSize)
	}
	if cfg.LearningRate != 0.001 {
		t.Errorf("Expected learning rate 0.001, got %f", cfg.LearningRate)
	}
	if cfg.LRFactor != 0.5 || cfg.LRPatience != 3 {
		t.Errorf("Plateau settings wrong: factor %f, patience %d", cfg.LRFactor, cfg.LRPatience)
	}
	if cfg.MinLearningRate != 1e-6 {
		t.Errorf("Expected min LR 1e-6, got %g", cfg.MinLearningRate)
	}
	if cfg.EarlyStopPatience != 5 {
		t.Errorf("Expected early stop patience 5, got %d", cfg.EarlyStopPatience)
	}
	if cfg.ValidationSplit != 0.15 {
		t.Errorf("Expected validation split 0.15, got %f", cfg.ValidationSplit)
	}
	if cfg.CheckpointPath == "" {
		t.Error("Checkpoint path not set")
	}
}

// classTile returns a small tile with a distinct gray level per class
func classTile(size int, value uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: value, G: value, B: value, A: 255})
		}
	}
	return img
}

func TestFitEndToEnd(t *testing.T) {
	root := t.TempDir()
	classes := []string{"empty", "wK"}

	writer, err := dataset.NewWriter(root, classes)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	// 14 tiles; with batch size 4 and a 0.25 split both the train and val
	// passes end in a partial batch
	for i := 0; i < 8; i++ {
		if _, err := writer.Write(classTile(8, 30), "empty"); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	for i := 0; i < 6; i++ {
		if _, err := writer.Write(classTile(8, 220), "wK"); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	src, err := dataset.ScanSource(root, classes)
	if err != nil {
		t.Fatalf("ScanSource failed: %v", err)
	}
	pool, err := dataset.Concat(src)
	if err != nil {
		t.Fatalf("Concat failed: %v", err)
	}

	ckptPath := filepath.Join(t.TempDir(), "best.ckpt")
	cfg := Config{
		Epochs:            2,
		BatchSize:         4,
		LearningRate:      0.001,
		LRFactor:          0.5,
		LRPatience:        3,
		MinLearningRate:   1e-6,
		EarlyStopPatience: 5,
		GradientClipMax:   5.0,
		ValidationSplit:   0.25,
		SplitSeed:         42,
		SamplerSeed:       1,
		LoaderWorkers:     2,
		CheckpointPath:    ckptPath,
	}

	trainer, err := NewTrainer(cfg, 8, len(classes), zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create trainer: %v", err)
	}
	defer trainer.Close()

	result, err := trainer.Fit(context.Background(), pool)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	if len(result.Metrics) != 2 {
		t.Fatalf("Expected 2 epochs of metrics, got %d", len(result.Metrics))
	}

	// Padded partial batches must not leak into the reported numbers
	for _, m := range result.Metrics {
		if m.TrainAcc < 0 || m.TrainAcc > 1 {
			t.Errorf("Epoch %d train accuracy %f outside [0, 1]", m.Epoch, m.TrainAcc)
		}
		if m.ValAcc < 0 || m.ValAcc > 1 {
			t.Errorf("Epoch %d val accuracy %f outside [0, 1]", m.Epoch, m.ValAcc)
		}
		if math.IsNaN(m.TrainLoss) || math.IsInf(m.TrainLoss, 0) || m.TrainLoss < 0 {
			t.Errorf("Epoch %d train loss %f is not a valid loss", m.Epoch, m.TrainLoss)
		}
		if math.IsNaN(m.ValLoss) || math.IsInf(m.ValLoss, 0) || m.ValLoss < 0 {
			t.Errorf("Epoch %d val loss %f is not a valid loss", m.Epoch, m.ValLoss)
		}
	}

	// The first epoch always sets a new best, so at least one write happened
	if result.CheckpointWrites < 1 || result.CheckpointWrites > 2 {
		t.Errorf("Expected 1 or 2 checkpoint writes over 2 epochs, got %d", result.CheckpointWrites)
	}
	if result.BestEpoch < 1 || result.BestEpoch > 2 {
		t.Errorf("Best epoch %d outside the run", result.BestEpoch)
	}

	if !model.CheckpointExists(ckptPath) {
		t.Fatal("Best checkpoint was not written")
	}

	ckpt, err := model.LoadCheckpoint(ckptPath)
	if err != nil {
		t.Fatalf("Failed to load written checkpoint: %v", err)
	}
	if ckpt.TileSize != 8 || ckpt.NumClasses != len(classes) {
		t.Errorf("Checkpoint architecture %d/%d, want 8/%d", ckpt.TileSize, ckpt.NumClasses, len(classes))
	}
	if ckpt.ValAccuracy != result.BestValAccuracy {
		t.Errorf("Checkpoint val accuracy %f differs from best %f", ckpt.ValAccuracy, result.BestValAccuracy)
	}
	if ckpt.Epoch != result.BestEpoch {
		t.Errorf("Checkpoint epoch %d differs from best epoch %d", ckpt.Epoch, result.BestEpoch)
	}
	if ckpt.Optimizer.Algorithm != "adam" {
		t.Errorf("Checkpoint optimizer %q, want adam", ckpt.Optimizer.Algorithm)
	}
	if len(ckpt.Weights) != 10 {
		t.Errorf("Checkpoint has %d weight tensors, want 10", len(ckpt.Weights))
	}
}

func TestFitCancelledContext(t *testing.T) {
	root := t.TempDir()
	classes := []string{"empty", "wK"}

	writer, err := dataset.NewWriter(root, classes)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	for i := 0; i < 8; i++ {
		if _, err := writer.Write(classTile(8, 30), "empty"); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		if _, err := writer.Write(classTile(8, 220), "wK"); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	src, err := dataset.ScanSource(root, classes)
	if err != nil {
		t.Fatalf("ScanSource failed: %v", err)
	}
	pool, err := dataset.Concat(src)
	if err != nil {
		t.Fatalf("Concat failed: %v", err)
	}

	ckptPath := filepath.Join(t.TempDir(), "best.ckpt")
	cfg := DefaultConfig()
	cfg.BatchSize = 4
	cfg.ValidationSplit = 0.25
	cfg.CheckpointPath = ckptPath

	trainer, err := NewTrainer(cfg, 8, len(classes), zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create trainer: %v", err)
	}
	defer trainer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := trainer.Fit(ctx, pool); err == nil {
		t.Error("Expected Fit to abort on a cancelled context")
	}
	if model.CheckpointExists(ckptPath) {
		t.Error("Aborted run wrote a checkpoint")
	}
}
