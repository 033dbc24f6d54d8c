package export

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/rookeye/rookeye/internal/model"
)

// Pipeline runs export stages in order, feeding each stage's output path
// into the next. A stage failure aborts the run; later stages never see
// partial input.
type Pipeline struct {
	Stages []Stage
	Logger *zap.Logger
}

// Run executes all stages starting from inputPath and returns the final
// stage's output path
func (p *Pipeline) Run(ctx context.Context, inputPath string) (string, error) {
	current := inputPath
	for _, stage := range p.Stages {
		p.Logger.Info("export stage starting",
			zap.String("stage", stage.Name()),
			zap.String("input", current))

		out, err := stage.Run(ctx, current)
		if err != nil {
			return "", fmt.Errorf("stage %s failed: %w", stage.Name(), err)
		}
		current = out
	}
	return current, nil
}

// Export runs the full checkpoint-to-TFJS pipeline. Intermediate
// artifacts (the ONNX file and SavedModel directory) live in a temp
// directory removed on return; only the TFJS model lands in destDir.
func Export(ctx context.Context, checkpointPath, destDir string, quantize bool, logger *zap.Logger) error {
	if !model.CheckpointExists(checkpointPath) {
		return fmt.Errorf("checkpoint %s does not exist", checkpointPath)
	}

	workDir, err := os.MkdirTemp("", "rookeye-export-*")
	if err != nil {
		return fmt.Errorf("failed to create work directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	pipeline := &Pipeline{
		Stages: []Stage{
			&GraphStage{OutDir: workDir, Logger: logger},
			&SavedModelStage{OutDir: workDir, Logger: logger},
			&TFJSStage{OutDir: destDir, Quantize: quantize, Logger: logger},
		},
		Logger: logger,
	}

	out, err := pipeline.Run(ctx, checkpointPath)
	if err != nil {
		return err
	}

	logger.Info("export complete", zap.String("path", out))
	return nil
}
