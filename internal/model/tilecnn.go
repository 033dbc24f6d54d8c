package model

import (
	"fmt"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Architecture constants, shared with the ONNX exporter
const (
	// InputChannels is the number of image channels (RGB)
	InputChannels = 3
	// Conv1Filters is the first conv layer's output channel count
	Conv1Filters = 16
	// Conv2Filters is the second conv layer's output channel count
	Conv2Filters = 32
	// FC1Size is the first dense layer width
	FC1Size = 256
	// FC2Size is the second dense layer width
	FC2Size = 128
)

// PooledSize returns the spatial size after one 2x2/stride-2 max pool
func PooledSize(n int) int {
	return (n-2)/2 + 1
}

// FlatSize returns the flattened feature size entering the dense head
func FlatSize(tileSize int) int {
	p := PooledSize(PooledSize(tileSize))
	return Conv2Filters * p * p
}

// TileCNN classifies board tile images into the 13 occupant classes.
// The 1/255 pixel normalization lives inside the graph so the same
// weights work with raw pixel input after export.
type TileCNN struct {
	g *gorgonia.ExprGraph

	// Input: [batch, 3, tile, tile], raw 0-255 pixels
	input *gorgonia.Node

	conv1W *gorgonia.Node
	conv1B *gorgonia.Node
	conv2W *gorgonia.Node
	conv2B *gorgonia.Node

	fc1W *gorgonia.Node
	fc1B *gorgonia.Node
	fc2W *gorgonia.Node
	fc2B *gorgonia.Node
	fc3W *gorgonia.Node
	fc3B *gorgonia.Node

	logits *gorgonia.Node
	output *gorgonia.Node

	vm gorgonia.VM

	batchSize  int
	tileSize   int
	numClasses int
}

// NewTileCNN builds the classifier graph for a fixed batch size
func NewTileCNN(batchSize, tileSize, numClasses int) (*TileCNN, error) {
	g := gorgonia.NewGraph()

	input := gorgonia.NewTensor(g, tensor.Float64, 4,
		gorgonia.WithShape(batchSize, InputChannels, tileSize, tileSize),
		gorgonia.WithName("input"))

	// Normalize raw pixels to [0, 1] inside the graph
	norm := gorgonia.NewConstant(1.0/255.0, gorgonia.WithName("pixel_scale"))
	x := gorgonia.Must(gorgonia.Mul(input, norm))

	conv1W := gorgonia.NewTensor(g, tensor.Float64, 4,
		gorgonia.WithShape(Conv1Filters, InputChannels, 3, 3),
		gorgonia.WithName("conv1_w"),
		gorgonia.WithInit(gorgonia.GlorotU(1.0)))
	conv1B := gorgonia.NewTensor(g, tensor.Float64, 1,
		gorgonia.WithShape(Conv1Filters),
		gorgonia.WithName("conv1_b"),
		gorgonia.WithInit(gorgonia.Zeroes()))

	conv2W := gorgonia.NewTensor(g, tensor.Float64, 4,
		gorgonia.WithShape(Conv2Filters, Conv1Filters, 3, 3),
		gorgonia.WithName("conv2_w"),
		gorgonia.WithInit(gorgonia.GlorotU(1.0)))
	conv2B := gorgonia.NewTensor(g, tensor.Float64, 1,
		gorgonia.WithShape(Conv2Filters),
		gorgonia.WithName("conv2_b"),
		gorgonia.WithInit(gorgonia.Zeroes()))

	// Conv1 + ReLU + MaxPool: tile -> tile/2
	conv1, err := gorgonia.Conv2d(x, conv1W, tensor.Shape{3, 3}, []int{1, 1}, []int{1, 1}, []int{1, 1})
	if err != nil {
		return nil, fmt.Errorf("conv1 failed: %w", err)
	}
	conv1 = gorgonia.Must(gorgonia.BroadcastAdd(conv1, conv1B, nil, []byte{0, 2, 3}))
	conv1 = gorgonia.Must(gorgonia.Rectify(conv1))
	pool1, err := gorgonia.MaxPool2D(conv1, tensor.Shape{2, 2}, []int{0, 0}, []int{2, 2})
	if err != nil {
		return nil, fmt.Errorf("pool1 failed: %w", err)
	}

	// Conv2 + ReLU + MaxPool
	conv2, err := gorgonia.Conv2d(pool1, conv2W, tensor.Shape{3, 3}, []int{1, 1}, []int{1, 1}, []int{1, 1})
	if err != nil {
		return nil, fmt.Errorf("conv2 failed: %w", err)
	}
	conv2 = gorgonia.Must(gorgonia.BroadcastAdd(conv2, conv2B, nil, []byte{0, 2, 3}))
	conv2 = gorgonia.Must(gorgonia.Rectify(conv2))
	pool2, err := gorgonia.MaxPool2D(conv2, tensor.Shape{2, 2}, []int{0, 0}, []int{2, 2})
	if err != nil {
		return nil, fmt.Errorf("pool2 failed: %w", err)
	}

	flatSize := FlatSize(tileSize)
	flat := gorgonia.Must(gorgonia.Reshape(pool2, tensor.Shape{batchSize, flatSize}))

	fc1W := gorgonia.NewMatrix(g, tensor.Float64,
		gorgonia.WithShape(flatSize, FC1Size),
		gorgonia.WithName("fc1_w"),
		gorgonia.WithInit(gorgonia.GlorotU(1.0)))
	fc1B := gorgonia.NewVector(g, tensor.Float64,
		gorgonia.WithShape(FC1Size),
		gorgonia.WithName("fc1_b"),
		gorgonia.WithInit(gorgonia.Zeroes()))

	fc1 := gorgonia.Must(gorgonia.Mul(flat, fc1W))
	fc1 = gorgonia.Must(gorgonia.BroadcastAdd(fc1, fc1B, nil, []byte{0}))
	fc1 = gorgonia.Must(gorgonia.Rectify(fc1))

	fc2W := gorgonia.NewMatrix(g, tensor.Float64,
		gorgonia.WithShape(FC1Size, FC2Size),
		gorgonia.WithName("fc2_w"),
		gorgonia.WithInit(gorgonia.GlorotU(1.0)))
	fc2B := gorgonia.NewVector(g, tensor.Float64,
		gorgonia.WithShape(FC2Size),
		gorgonia.WithName("fc2_b"),
		gorgonia.WithInit(gorgonia.Zeroes()))

	fc2 := gorgonia.Must(gorgonia.Mul(fc1, fc2W))
	fc2 = gorgonia.Must(gorgonia.BroadcastAdd(fc2, fc2B, nil, []byte{0}))
	fc2 = gorgonia.Must(gorgonia.Rectify(fc2))

	fc3W := gorgonia.NewMatrix(g, tensor.Float64,
		gorgonia.WithShape(FC2Size, numClasses),
		gorgonia.WithName("fc3_w"),
		gorgonia.WithInit(gorgonia.GlorotU(1.0)))
	fc3B := gorgonia.NewVector(g, tensor.Float64,
		gorgonia.WithShape(numClasses),
		gorgonia.WithName("fc3_b"),
		gorgonia.WithInit(gorgonia.Zeroes()))

	logits := gorgonia.Must(gorgonia.Mul(fc2, fc3W))
	logits = gorgonia.Must(gorgonia.BroadcastAdd(logits, fc3B, nil, []byte{0}))

	output := gorgonia.Must(gorgonia.SoftMax(logits))

	vm := gorgonia.NewTapeMachine(g)

	return &TileCNN{
		g:          g,
		input:      input,
		conv1W:     conv1W,
		conv1B:     conv1B,
		conv2W:     conv2W,
		conv2B:     conv2B,
		fc1W:       fc1W,
		fc1B:       fc1B,
		fc2W:       fc2W,
		fc2B:       fc2B,
		fc3W:       fc3W,
		fc3B:       fc3B,
		logits:     logits,
		output:     output,
		vm:         vm,
		batchSize:  batchSize,
		tileSize:   tileSize,
		numClasses: numClasses,
	}, nil
}

// NewTileCNNForInference builds a batch-1 model and loads checkpoint weights
func NewTileCNNForInference(ckpt *Checkpoint) (*TileCNN, error) {
	m, err := NewTileCNN(1, ckpt.TileSize, ckpt.NumClasses)
	if err != nil {
		return nil, fmt.Errorf("failed to create inference model: %w", err)
	}

	if err := m.LoadWeights(ckpt.Weights); err != nil {
		m.Close()
		return nil, fmt.Errorf("failed to load checkpoint weights: %w", err)
	}

	return m, nil
}

// Graph returns the expression graph for attaching loss nodes
func (m *TileCNN) Graph() *gorgonia.ExprGraph { return m.g }

// Output returns the softmax probability node
func (m *TileCNN) Output() *gorgonia.Node { return m.output }

// BatchSize returns the fixed batch dimension of the graph
func (m *TileCNN) BatchSize() int { return m.batchSize }

// TileSize returns the expected input tile edge length
func (m *TileCNN) TileSize() int { return m.tileSize }

// NumClasses returns the classifier's output width
func (m *TileCNN) NumClasses() int { return m.numClasses }

// Learnables returns all trainable parameters
func (m *TileCNN) Learnables() gorgonia.Nodes {
	return gorgonia.Nodes{
		m.conv1W, m.conv1B,
		m.conv2W, m.conv2B,
		m.fc1W, m.fc1B,
		m.fc2W, m.fc2B,
		m.fc3W, m.fc3B,
	}
}

// ComputeLoss attaches a categorical cross-entropy node against a
// one-hot [batch, classes] target
func (m *TileCNN) ComputeLoss(target *gorgonia.Node) (*gorgonia.Node, error) {
	// -sum(target * log(output)) / batch
	logProbs, err := gorgonia.Log(m.output)
	if err != nil {
		return nil, fmt.Errorf("log failed: %w", err)
	}
	loss := gorgonia.Must(gorgonia.HadamardProd(target, logProbs))
	loss = gorgonia.Must(gorgonia.Sum(loss))
	loss = gorgonia.Must(gorgonia.Neg(loss))
	loss = gorgonia.Must(gorgonia.Mul(loss, gorgonia.NewConstant(1.0/float64(m.batchSize))))

	return loss, nil
}

// RebuildVM recreates the tape machine after the graph has grown, e.g.
// once gradients are attached
func (m *TileCNN) RebuildVM() {
	if m.vm != nil {
		m.vm.Close()
	}
	m.vm = gorgonia.NewTapeMachine(m.g)
}

// SetInput binds a [batch, 3, tile, tile] tensor of raw pixels
func (m *TileCNN) SetInput(data []float64) error {
	want := m.batchSize * InputChannels * m.tileSize * m.tileSize
	if len(data) != want {
		return fmt.Errorf("invalid input size: expected %d, got %d", want, len(data))
	}

	t := tensor.New(
		tensor.WithShape(m.batchSize, InputChannels, m.tileSize, m.tileSize),
		tensor.WithBacking(data),
	)
	return gorgonia.Let(m.input, t)
}

// Run executes one forward (and, if gradients are attached, backward) pass
func (m *TileCNN) Run() error {
	return m.vm.RunAll()
}

// Reset prepares the VM for the next pass
func (m *TileCNN) Reset() {
	m.vm.Reset()
}

// Probabilities returns the batch's class probabilities after a Run
func (m *TileCNN) Probabilities() ([]float64, error) {
	val := m.output.Value()
	if val == nil {
		return nil, fmt.Errorf("output is nil")
	}
	return val.Data().([]float64), nil
}

// Predict runs inference on a single tile (batch size must be 1) and
// returns the 13-class probability vector
func (m *TileCNN) Predict(pixels []float64) ([]float64, error) {
	if m.batchSize != 1 {
		return nil, fmt.Errorf("predict requires a batch-1 model, have batch %d", m.batchSize)
	}

	if err := m.SetInput(pixels); err != nil {
		return nil, err
	}
	if err := m.vm.RunAll(); err != nil {
		return nil, fmt.Errorf("failed to run inference: %w", err)
	}

	probs, err := m.Probabilities()
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(probs))
	copy(out, probs)

	m.vm.Reset()
	return out, nil
}

// Weights snapshots all learnable parameters by name
func (m *TileCNN) Weights() []WeightTensor {
	learnables := m.Learnables()
	weights := make([]WeightTensor, 0, len(learnables))

	for _, node := range learnables {
		val := node.Value()
		if val == nil {
			continue
		}

		data := val.Data().([]float64)
		snapshot := WeightTensor{
			Name:  node.Name(),
			Shape: append([]int(nil), val.Shape()...),
			Data:  append([]float64(nil), data...),
		}
		weights = append(weights, snapshot)
	}

	return weights
}

// LoadWeights restores parameters from a checkpoint snapshot by name
func (m *TileCNN) LoadWeights(weights []WeightTensor) error {
	byName := make(map[string]WeightTensor, len(weights))
	for _, w := range weights {
		byName[w.Name] = w
	}

	for _, node := range m.Learnables() {
		w, ok := byName[node.Name()]
		if !ok {
			return fmt.Errorf("checkpoint is missing weight %q", node.Name())
		}

		t := tensor.New(
			tensor.WithShape(w.Shape...),
			tensor.WithBacking(append([]float64(nil), w.Data...)),
		)
		if err := gorgonia.Let(node, t); err != nil {
			return fmt.Errorf("failed to set weight %q: %w", w.Name, err)
		}
	}

	return nil
}

// ParamCount returns the total number of learnable parameters
func (m *TileCNN) ParamCount() int {
	total := 0
	for _, node := range m.Learnables() {
		val := node.Value()
		if val == nil {
			continue
		}
		n := 1
		for _, dim := range val.Shape() {
			n *= dim
		}
		total += n
	}
	return total
}

// Close releases the VM
func (m *TileCNN) Close() error {
	if m.vm != nil {
		m.vm.Close()
	}
	return nil
}

// Argmax returns the index of the largest probability
func Argmax(values []float64) int {
	if len(values) == 0 {
		return -1
	}

	maxIdx := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[maxIdx] {
			maxIdx = i
		}
	}
	return maxIdx
}
