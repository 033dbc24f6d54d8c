package model

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
)

// WeightTensor is one named parameter snapshot
type WeightTensor struct {
	Name  string
	Shape []int
	Data  []float64
}

// OptimizerState captures enough solver state to resume or audit a run
type OptimizerState struct {
	Algorithm    string
	LearningRate float64
	ClipMax      float64
}

// Checkpoint is the single best-model artifact written during training.
// Later writes supersede earlier ones; only this file is exported.
type Checkpoint struct {
	Epoch       int
	Weights     []WeightTensor
	Optimizer   OptimizerState
	ValAccuracy float64
	ValLoss     float64
	TileSize    int
	NumClasses  int
}

// Save writes the checkpoint atomically: encode to a temp file in the
// same directory, then rename over the destination.
func (c *Checkpoint) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".ckpt-*")
	if err != nil {
		return fmt.Errorf("failed to create temp checkpoint: %w", err)
	}
	tmpPath := tmp.Name()

	if err := gob.NewEncoder(tmp).Encode(c); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp checkpoint: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace checkpoint: %w", err)
	}

	return nil
}

// LoadCheckpoint reads a checkpoint file
func LoadCheckpoint(path string) (*Checkpoint, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint: %w", err)
	}
	defer file.Close()

	var ckpt Checkpoint
	if err := gob.NewDecoder(file).Decode(&ckpt); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}

	if len(ckpt.Weights) == 0 {
		return nil, fmt.Errorf("checkpoint has no weights")
	}

	return &ckpt, nil
}

// CheckpointExists reports whether a checkpoint file is present
func CheckpointExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
