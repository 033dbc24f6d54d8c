package export

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/rookeye/rookeye/internal/model"
)

// ONNX serialization constants
const (
	onnxIRVersion    = 8
	onnxOpsetVersion = 17

	// TensorProto.DataType
	onnxFloat = 1

	// AttributeProto.AttributeType
	attrTypeFloat = 1
	attrTypeInt   = 2
	attrTypeInts  = 7
)

// BatchDimParam names the dynamic batch dimension on the graph's input
// and output
const BatchDimParam = "batch_size"

// attribute is one ONNX node attribute (int, ints or float)
type attribute struct {
	name string
	kind int
	i    int64
	ints []int64
	f    float32
}

func attrInt(name string, v int64) attribute {
	return attribute{name: name, kind: attrTypeInt, i: v}
}

func attrInts(name string, vals ...int64) attribute {
	return attribute{name: name, kind: attrTypeInts, ints: vals}
}

func (a attribute) encode() []byte {
	var b protoBuffer
	b.stringField(1, a.name)
	switch a.kind {
	case attrTypeFloat:
		b.floatField(2, a.f)
	case attrTypeInt:
		b.varintField(3, a.i)
	case attrTypeInts:
		b.packedInt64s(8, a.ints)
	}
	b.varintField(20, int64(a.kind))
	return b.bytes()
}

// encodeNode serializes one NodeProto
func encodeNode(opType, name string, inputs, outputs []string, attrs ...attribute) []byte {
	var b protoBuffer
	for _, in := range inputs {
		b.stringField(1, in)
	}
	for _, out := range outputs {
		b.stringField(2, out)
	}
	b.stringField(3, name)
	b.stringField(4, opType)
	for _, a := range attrs {
		b.bytesField(5, a.encode())
	}
	return b.bytes()
}

// encodeTensorF32 serializes a TensorProto with float32 raw data. Weights
// train as float64 and are narrowed here for the interchange graph.
func encodeTensorF32(name string, dims []int64, data []float64) []byte {
	var b protoBuffer
	b.packedInt64s(1, dims)
	b.varintField(2, onnxFloat)
	raw := make([]byte, 4*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(float32(v)))
	}
	b.stringField(8, name)
	b.bytesField(9, raw)
	return b.bytes()
}

// encodeValueInfo serializes a ValueInfoProto for a float tensor. A dim
// with an empty param is fixed; otherwise it is dynamic.
type dim struct {
	value int64
	param string
}

func encodeValueInfo(name string, dims []dim) []byte {
	var shape protoBuffer
	for _, d := range dims {
		var db protoBuffer
		if d.param != "" {
			db.stringField(2, d.param)
		} else {
			db.varintField(1, d.value)
		}
		shape.bytesField(1, db.bytes())
	}

	var tt protoBuffer
	tt.varintField(1, onnxFloat)
	tt.bytesField(2, shape.bytes())

	var typ protoBuffer
	typ.bytesField(1, tt.bytes())

	var b protoBuffer
	b.stringField(1, name)
	b.bytesField(2, typ.bytes())
	return b.bytes()
}

// BuildONNX serializes a trained checkpoint into an ONNX ModelProto with
// opset 17, a dynamic batch dimension and a softmax probability output.
// The emitted graph mirrors the training architecture, including the
// in-graph 1/255 pixel normalization.
func BuildONNX(ckpt *model.Checkpoint) ([]byte, error) {
	weights := make(map[string]model.WeightTensor, len(ckpt.Weights))
	for _, w := range ckpt.Weights {
		weights[w.Name] = w
	}

	required := []string{
		"conv1_w", "conv1_b", "conv2_w", "conv2_b",
		"fc1_w", "fc1_b", "fc2_w", "fc2_b", "fc3_w", "fc3_b",
	}
	for _, name := range required {
		if _, ok := weights[name]; !ok {
			return nil, fmt.Errorf("checkpoint is missing weight %q", name)
		}
	}

	var graph protoBuffer

	nodes := [][]byte{
		encodeNode("Mul", "normalize",
			[]string{"input", "pixel_scale"}, []string{"x0"}),
		encodeNode("Conv", "conv1",
			[]string{"x0", "conv1_w", "conv1_b"}, []string{"c1"},
			attrInts("kernel_shape", 3, 3),
			attrInts("pads", 1, 1, 1, 1),
			attrInts("strides", 1, 1)),
		encodeNode("Relu", "relu1", []string{"c1"}, []string{"r1"}),
		encodeNode("MaxPool", "pool1",
			[]string{"r1"}, []string{"p1"},
			attrInts("kernel_shape", 2, 2),
			attrInts("strides", 2, 2)),
		encodeNode("Conv", "conv2",
			[]string{"p1", "conv2_w", "conv2_b"}, []string{"c2"},
			attrInts("kernel_shape", 3, 3),
			attrInts("pads", 1, 1, 1, 1),
			attrInts("strides", 1, 1)),
		encodeNode("Relu", "relu2", []string{"c2"}, []string{"r2"}),
		encodeNode("MaxPool", "pool2",
			[]string{"r2"}, []string{"p2"},
			attrInts("kernel_shape", 2, 2),
			attrInts("strides", 2, 2)),
		encodeNode("Flatten", "flatten",
			[]string{"p2"}, []string{"flat"},
			attrInt("axis", 1)),
		encodeNode("Gemm", "fc1", []string{"flat", "fc1_w", "fc1_b"}, []string{"g1"}),
		encodeNode("Relu", "relu3", []string{"g1"}, []string{"r3"}),
		encodeNode("Gemm", "fc2", []string{"r3", "fc2_w", "fc2_b"}, []string{"g2"}),
		encodeNode("Relu", "relu4", []string{"g2"}, []string{"r4"}),
		encodeNode("Gemm", "fc3", []string{"r4", "fc3_w", "fc3_b"}, []string{"logits"}),
		encodeNode("Softmax", "probabilities",
			[]string{"logits"}, []string{"output"},
			attrInt("axis", 1)),
	}
	for _, n := range nodes {
		graph.bytesField(1, n)
	}

	graph.stringField(2, "tile_classifier")

	graph.bytesField(5, encodeTensorF32("pixel_scale", nil, []float64{1.0 / 255.0}))
	for _, name := range required {
		w := weights[name]
		dims := make([]int64, len(w.Shape))
		for i, d := range w.Shape {
			dims[i] = int64(d)
		}
		graph.bytesField(5, encodeTensorF32(w.Name, dims, w.Data))
	}

	tile := int64(ckpt.TileSize)
	graph.bytesField(11, encodeValueInfo("input", []dim{
		{param: BatchDimParam},
		{value: model.InputChannels},
		{value: tile},
		{value: tile},
	}))
	graph.bytesField(12, encodeValueInfo("output", []dim{
		{param: BatchDimParam},
		{value: int64(ckpt.NumClasses)},
	}))

	var opset protoBuffer
	opset.stringField(1, "")
	opset.varintField(2, onnxOpsetVersion)

	var modelBuf protoBuffer
	modelBuf.varintField(1, onnxIRVersion)
	modelBuf.stringField(2, "rookeye")
	modelBuf.bytesField(7, graph.bytes())
	modelBuf.bytesField(8, opset.bytes())

	return modelBuf.bytes(), nil
}
