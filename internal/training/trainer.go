package training

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/rookeye/rookeye/internal/dataset"
	"github.com/rookeye/rookeye/internal/model"
)

// Config holds training hyperparameters
type Config struct {
	Epochs            int
	BatchSize         int
	LearningRate      float64
	LRFactor          float64
	LRPatience        int
	MinLearningRate   float64
	EarlyStopPatience int
	GradientClipMax   float64
	ValidationSplit   float64
	SplitSeed         int64
	SamplerSeed       uint64
	LoaderWorkers     int
	CheckpointPath    string
}

// DefaultConfig returns the standard training configuration
func DefaultConfig() Config {
	return Config{
		Epochs:            30,
		BatchSize:         64,
		LearningRate:      0.001,
		LRFactor:          0.5,
		LRPatience:        3,
		MinLearningRate:   1e-6,
		EarlyStopPatience: 5,
		GradientClipMax:   5.0,
		ValidationSplit:   0.15,
		SplitSeed:         42,
		SamplerSeed:       1,
		LoaderWorkers:     4,
		CheckpointPath:    "checkpoints/best.ckpt",
	}
}

// EpochMetrics records one epoch's progress
type EpochMetrics struct {
	Epoch        int
	TrainLoss    float64
	TrainAcc     float64
	ValLoss      float64
	ValAcc       float64
	LearningRate float64
	Duration     time.Duration
}

// Result summarizes a completed training run
type Result struct {
	Metrics          []EpochMetrics
	BestEpoch        int
	BestValAccuracy  float64
	CheckpointWrites int
	EarlyStopped     bool
}

// Trainer drives the epoch loop: weighted-sampled training passes,
// validation passes, plateau LR reduction, early stopping and best
// checkpoint writes.
type Trainer struct {
	model      *model.TileCNN
	cfg        Config
	logger     *zap.Logger
	solver     gorgonia.Solver
	targetNode *gorgonia.Node
	lossNode   *gorgonia.Node
	currentLR  float64
}

// NewTrainer builds the model graph with loss and gradients attached
func NewTrainer(cfg Config, tileSize, numClasses int, logger *zap.Logger) (*Trainer, error) {
	m, err := model.NewTileCNN(cfg.BatchSize, tileSize, numClasses)
	if err != nil {
		return nil, fmt.Errorf("failed to create model: %w", err)
	}

	targetNode := gorgonia.NewMatrix(
		m.Graph(),
		tensor.Float64,
		gorgonia.WithShape(cfg.BatchSize, numClasses),
		gorgonia.WithName("target"),
	)

	lossNode, err := m.ComputeLoss(targetNode)
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("failed to create loss node: %w", err)
	}

	if _, err := gorgonia.Grad(lossNode, m.Learnables()...); err != nil {
		m.Close()
		return nil, fmt.Errorf("failed to compute gradients: %w", err)
	}

	// The graph now includes loss and gradients; rebuild the tape
	m.RebuildVM()

	return &Trainer{
		model:      m,
		cfg:        cfg,
		logger:     logger,
		solver:     newSolver(cfg, cfg.LearningRate),
		targetNode: targetNode,
		lossNode:   lossNode,
		currentLR:  cfg.LearningRate,
	}, nil
}

func newSolver(cfg Config, lr float64) gorgonia.Solver {
	return gorgonia.NewAdamSolver(
		gorgonia.WithLearnRate(lr),
		gorgonia.WithBatchSize(float64(cfg.BatchSize)),
		gorgonia.WithClip(cfg.GradientClipMax),
	)
}

// Model returns the underlying network
func (t *Trainer) Model() *model.TileCNN {
	return t.model
}

// Close releases model resources
func (t *Trainer) Close() error {
	return t.model.Close()
}

// Fit trains on the concatenated sources until max epochs or early stop.
// The best checkpoint is overwritten whenever validation accuracy
// strictly improves.
func (t *Trainer) Fit(ctx context.Context, sources *dataset.MultiSource) (*Result, error) {
	train, val := sources.Split(t.cfg.ValidationSplit, t.cfg.SplitSeed)
	if len(train) == 0 || len(val) == 0 {
		return nil, fmt.Errorf("dataset too small: %d train, %d val samples", len(train), len(val))
	}

	sampler := dataset.NewWeightedSampler(train, sources.SourceSizes(), t.cfg.SamplerSeed)
	loader := &dataset.BatchLoader{
		TileSize:  t.model.TileSize(),
		BatchSize: t.cfg.BatchSize,
		Workers:   t.cfg.LoaderWorkers,
	}

	t.logger.Info("training started",
		zap.Int("sources", len(sources.Sources)),
		zap.Int("train_samples", len(train)),
		zap.Int("val_samples", len(val)),
		zap.Int("epochs", t.cfg.Epochs),
		zap.Int("batch_size", t.cfg.BatchSize),
		zap.Float64("learning_rate", t.cfg.LearningRate),
		zap.Int("parameters", t.model.ParamCount()))

	plateau := NewPlateauScheduler(t.cfg.LearningRate, t.cfg.LRFactor, t.cfg.LRPatience, t.cfg.MinLearningRate)
	stopper := NewEarlyStopper(t.cfg.EarlyStopPatience)

	valOrder := make([]int, len(val))
	for i := range valOrder {
		valOrder[i] = i
	}

	result := &Result{}

	for epoch := 1; epoch <= t.cfg.Epochs; epoch++ {
		start := time.Now()

		trainLoss, trainAcc, err := t.runEpoch(ctx, loader, train, sampler.Sample(len(train)), true)
		if err != nil {
			return nil, fmt.Errorf("epoch %d training failed: %w", epoch, err)
		}

		valLoss, valAcc, err := t.runEpoch(ctx, loader, val, valOrder, false)
		if err != nil {
			return nil, fmt.Errorf("epoch %d validation failed: %w", epoch, err)
		}

		newLR, reduced := plateau.Step(valLoss)
		if reduced {
			t.solver = newSolver(t.cfg, newLR)
			t.currentLR = newLR
			t.logger.Info("learning rate reduced", zap.Float64("lr", newLR))
		}

		metrics := EpochMetrics{
			Epoch:        epoch,
			TrainLoss:    trainLoss,
			TrainAcc:     trainAcc,
			ValLoss:      valLoss,
			ValAcc:       valAcc,
			LearningRate: t.currentLR,
			Duration:     time.Since(start),
		}
		result.Metrics = append(result.Metrics, metrics)

		t.logger.Info("epoch complete",
			zap.Int("epoch", epoch),
			zap.Float64("train_loss", trainLoss),
			zap.Float64("train_acc", trainAcc),
			zap.Float64("val_loss", valLoss),
			zap.Float64("val_acc", valAcc),
			zap.Float64("lr", t.currentLR),
			zap.Duration("duration", metrics.Duration))

		improved, stop := stopper.Observe(valAcc)
		if improved {
			ckpt := &model.Checkpoint{
				Epoch:   epoch,
				Weights: t.model.Weights(),
				Optimizer: model.OptimizerState{
					Algorithm:    "adam",
					LearningRate: t.currentLR,
					ClipMax:      t.cfg.GradientClipMax,
				},
				ValAccuracy: valAcc,
				ValLoss:     valLoss,
				TileSize:    t.model.TileSize(),
				NumClasses:  t.model.NumClasses(),
			}
			if err := ckpt.Save(t.cfg.CheckpointPath); err != nil {
				return nil, fmt.Errorf("failed to save checkpoint: %w", err)
			}

			result.BestEpoch = epoch
			result.BestValAccuracy = valAcc
			result.CheckpointWrites++
			t.logger.Info("checkpoint saved",
				zap.String("path", t.cfg.CheckpointPath),
				zap.Float64("val_acc", valAcc))
		}

		if stop {
			result.EarlyStopped = true
			t.logger.Info("early stopping",
				zap.Int("epoch", epoch),
				zap.Int("patience", t.cfg.EarlyStopPatience))
			break
		}
	}

	t.logger.Info("training complete",
		zap.Int("best_epoch", result.BestEpoch),
		zap.Float64("best_val_acc", result.BestValAccuracy),
		zap.Int("checkpoint_writes", result.CheckpointWrites))

	return result, nil
}

// runEpoch performs one full pass over the given samples. When update is
// true the solver steps after each batch; otherwise parameters are left
// untouched (validation).
func (t *Trainer) runEpoch(ctx context.Context, loader *dataset.BatchLoader, samples []dataset.Sample, order []int, update bool) (avgLoss, accuracy float64, err error) {
	numClasses := t.model.NumClasses()
	sampleSize := model.InputChannels * t.model.TileSize() * t.model.TileSize()

	var lossSum float64
	var correct, seen int

	err = loader.Run(ctx, samples, order, func(batch dataset.Batch) error {
		// Pad the last partial batch with zero rows; a zero one-hot
		// target contributes nothing to the loss.
		inputData := batch.Images
		if batch.N < t.cfg.BatchSize {
			padded := make([]float64, t.cfg.BatchSize*sampleSize)
			copy(padded, inputData)
			inputData = padded
		}

		targetData := make([]float64, t.cfg.BatchSize*numClasses)
		for i := 0; i < batch.N; i++ {
			targetData[i*numClasses+batch.Labels[i]] = 1.0
		}

		if err := t.model.SetInput(inputData); err != nil {
			return fmt.Errorf("failed to set input: %w", err)
		}

		targetTensor := tensor.New(
			tensor.WithShape(t.cfg.BatchSize, numClasses),
			tensor.WithBacking(targetData),
		)
		if err := gorgonia.Let(t.targetNode, targetTensor); err != nil {
			return fmt.Errorf("failed to set target: %w", err)
		}

		if err := t.model.Run(); err != nil {
			return fmt.Errorf("forward/backward pass failed: %w", err)
		}

		lossVal, err := scalarValue(t.lossNode)
		if err != nil {
			return err
		}
		// Loss is averaged over the padded batch; scale back to a sum
		// over real samples.
		lossSum += lossVal * float64(t.cfg.BatchSize)

		if update {
			learnables := t.model.Learnables()
			grads := make([]gorgonia.ValueGrad, len(learnables))
			for i, n := range learnables {
				grads[i] = n
			}
			if err := t.solver.Step(grads); err != nil {
				return fmt.Errorf("failed to update weights: %w", err)
			}
		}

		probs, err := t.model.Probabilities()
		if err != nil {
			return err
		}
		for i := 0; i < batch.N; i++ {
			if model.Argmax(probs[i*numClasses:(i+1)*numClasses]) == batch.Labels[i] {
				correct++
			}
		}
		seen += batch.N

		t.model.Reset()
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	if seen == 0 {
		return 0, 0, fmt.Errorf("no samples processed")
	}

	return lossSum / float64(seen), float64(correct) / float64(seen), nil
}

// scalarValue extracts a scalar float from a node value
func scalarValue(node *gorgonia.Node) (float64, error) {
	val := node.Value()
	if val == nil {
		return 0, fmt.Errorf("loss value is nil")
	}

	switch v := val.Data().(type) {
	case float64:
		return v, nil
	case []float64:
		if len(v) == 0 {
			return 0, fmt.Errorf("loss value is empty")
		}
		return v[0], nil
	default:
		return 0, fmt.Errorf("unexpected loss value type: %T", v)
	}
}
