package export

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/rookeye/rookeye/internal/model"
)

// Stage is one step of the export pipeline. Run consumes the previous
// stage's output path and returns its own.
type Stage interface {
	Name() string
	Run(ctx context.Context, inputPath string) (string, error)
}

// GraphStage converts a trained checkpoint into a validated ONNX file
type GraphStage struct {
	OutDir string
	Logger *zap.Logger
}

// Name implements Stage
func (s *GraphStage) Name() string { return "onnx" }

// Run loads the checkpoint, serializes the graph and validates it before
// writing model.onnx
func (s *GraphStage) Run(ctx context.Context, inputPath string) (string, error) {
	ckpt, err := model.LoadCheckpoint(inputPath)
	if err != nil {
		return "", fmt.Errorf("failed to load checkpoint: %w", err)
	}

	data, err := BuildONNX(ckpt)
	if err != nil {
		return "", fmt.Errorf("failed to build graph: %w", err)
	}
	if err := ValidateONNX(data); err != nil {
		return "", fmt.Errorf("emitted graph failed validation: %w", err)
	}

	outPath := filepath.Join(s.OutDir, "model.onnx")
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write model: %w", err)
	}

	s.Logger.Info("onnx graph written",
		zap.String("path", outPath),
		zap.Int("bytes", len(data)),
		zap.Int("epoch", ckpt.Epoch),
		zap.Float64("val_acc", ckpt.ValAccuracy))

	return outPath, nil
}

// SavedModelStage converts an ONNX file into a TensorFlow SavedModel
// directory by invoking the onnx2tf tool
type SavedModelStage struct {
	OutDir string
	Tool   string
	Logger *zap.Logger
}

// Name implements Stage
func (s *SavedModelStage) Name() string { return "saved_model" }

// Run shells out to the converter; a missing tool is a hard error
func (s *SavedModelStage) Run(ctx context.Context, inputPath string) (string, error) {
	tool := s.Tool
	if tool == "" {
		tool = "onnx2tf"
	}
	path, err := exec.LookPath(tool)
	if err != nil {
		return "", fmt.Errorf("converter %q not found in PATH: %w", tool, err)
	}

	outPath := filepath.Join(s.OutDir, "saved_model")
	cmd := exec.CommandContext(ctx, path, "-i", inputPath, "-o", outPath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s failed: %w\n%s", tool, err, output)
	}

	s.Logger.Info("saved model written", zap.String("path", outPath))
	return outPath, nil
}

// TFJSStage converts a SavedModel directory into a TensorFlow.js graph
// model, optionally quantizing all weights to float16
type TFJSStage struct {
	OutDir   string
	Quantize bool
	Tool     string
	Logger   *zap.Logger
}

// Name implements Stage
func (s *TFJSStage) Name() string { return "tfjs" }

// Run shells out to tensorflowjs_converter
func (s *TFJSStage) Run(ctx context.Context, inputPath string) (string, error) {
	tool := s.Tool
	if tool == "" {
		tool = "tensorflowjs_converter"
	}
	path, err := exec.LookPath(tool)
	if err != nil {
		return "", fmt.Errorf("converter %q not found in PATH: %w", tool, err)
	}

	args := []string{
		"--input_format=tf_saved_model",
		"--output_format=tfjs_graph_model",
	}
	if s.Quantize {
		args = append(args, "--quantize_float16=*")
	}
	args = append(args, inputPath, s.OutDir)

	cmd := exec.CommandContext(ctx, path, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s failed: %w\n%s", tool, err, output)
	}

	s.Logger.Info("tfjs model written",
		zap.String("path", s.OutDir),
		zap.Bool("quantized", s.Quantize))
	return s.OutDir, nil
}
