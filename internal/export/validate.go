package export

import (
	"encoding/binary"
	"fmt"
)

// Structural validation of an emitted model before handing it to the
// conversion tools. This catches encoder regressions early instead of
// surfacing them as opaque converter failures two stages later.

type protoReader struct {
	buf []byte
	pos int
}

func (r *protoReader) done() bool { return r.pos >= len(r.buf) }

func (r *protoReader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.buf[r.pos:])
	if n <= 0 {
		return 0, fmt.Errorf("truncated varint at offset %d", r.pos)
	}
	r.pos += n
	return v, nil
}

// next reads one field tag and its payload. For wire type 2 the payload
// bytes are returned; for wire type 0 the varint value is returned.
func (r *protoReader) next() (field int, wire int, varint uint64, data []byte, err error) {
	tag, err := r.uvarint()
	if err != nil {
		return 0, 0, 0, nil, err
	}
	field = int(tag >> 3)
	wire = int(tag & 7)

	switch wire {
	case wireVarint:
		varint, err = r.uvarint()
		return field, wire, varint, nil, err
	case wireBytes:
		length, err := r.uvarint()
		if err != nil {
			return 0, 0, 0, nil, err
		}
		end := r.pos + int(length)
		if end > len(r.buf) || end < r.pos {
			return 0, 0, 0, nil, fmt.Errorf("truncated field %d at offset %d", field, r.pos)
		}
		data = r.buf[r.pos:end]
		r.pos = end
		return field, wire, 0, data, nil
	case wireFixed32:
		if r.pos+4 > len(r.buf) {
			return 0, 0, 0, nil, fmt.Errorf("truncated fixed32 field %d", field)
		}
		r.pos += 4
		return field, wire, 0, nil, nil
	case wireFixed64:
		if r.pos+8 > len(r.buf) {
			return 0, 0, 0, nil, fmt.Errorf("truncated fixed64 field %d", field)
		}
		r.pos += 8
		return field, wire, 0, nil, nil
	default:
		return 0, 0, 0, nil, fmt.Errorf("unsupported wire type %d for field %d", wire, field)
	}
}

// firstString extracts the first string occurrence of a field in a message
func firstString(msg []byte, want int) (string, bool, error) {
	r := &protoReader{buf: msg}
	for !r.done() {
		field, wire, _, data, err := r.next()
		if err != nil {
			return "", false, err
		}
		if field == want && wire == wireBytes {
			return string(data), true, nil
		}
	}
	return "", false, nil
}

type graphSummary struct {
	nodeInputs  [][]string
	nodeOutputs [][]string
	initNames   []string
	inputNames  []string
	outputNames []string
}

func parseGraph(msg []byte) (*graphSummary, error) {
	g := &graphSummary{}
	r := &protoReader{buf: msg}
	for !r.done() {
		field, wire, _, data, err := r.next()
		if err != nil {
			return nil, fmt.Errorf("malformed graph: %w", err)
		}
		if wire != wireBytes {
			continue
		}
		switch field {
		case 1: // node
			inputs, outputs, err := parseNodeEdges(data)
			if err != nil {
				return nil, err
			}
			g.nodeInputs = append(g.nodeInputs, inputs)
			g.nodeOutputs = append(g.nodeOutputs, outputs)
		case 5: // initializer
			name, ok, err := firstString(data, 8)
			if err != nil {
				return nil, fmt.Errorf("malformed initializer: %w", err)
			}
			if !ok {
				return nil, fmt.Errorf("initializer without a name")
			}
			g.initNames = append(g.initNames, name)
		case 11: // input
			name, _, err := firstString(data, 1)
			if err != nil {
				return nil, fmt.Errorf("malformed graph input: %w", err)
			}
			g.inputNames = append(g.inputNames, name)
		case 12: // output
			name, _, err := firstString(data, 1)
			if err != nil {
				return nil, fmt.Errorf("malformed graph output: %w", err)
			}
			g.outputNames = append(g.outputNames, name)
		}
	}
	return g, nil
}

func parseNodeEdges(msg []byte) (inputs, outputs []string, err error) {
	r := &protoReader{buf: msg}
	for !r.done() {
		field, wire, _, data, err := r.next()
		if err != nil {
			return nil, nil, fmt.Errorf("malformed node: %w", err)
		}
		if wire != wireBytes {
			continue
		}
		switch field {
		case 1:
			inputs = append(inputs, string(data))
		case 2:
			outputs = append(outputs, string(data))
		}
	}
	return inputs, outputs, nil
}

// ValidateONNX checks the serialized model for structural soundness:
// version and opset fields present, exactly one graph with one input and
// one output, and every node input resolvable from the graph input, an
// initializer or an earlier node's output.
func ValidateONNX(data []byte) error {
	var irVersion int64
	var graphs [][]byte
	var opsetVersion int64
	var opsetSeen bool

	r := &protoReader{buf: data}
	for !r.done() {
		field, wire, varint, payload, err := r.next()
		if err != nil {
			return fmt.Errorf("malformed model: %w", err)
		}
		switch {
		case field == 1 && wire == wireVarint:
			irVersion = int64(varint)
		case field == 7 && wire == wireBytes:
			graphs = append(graphs, payload)
		case field == 8 && wire == wireBytes:
			or := &protoReader{buf: payload}
			for !or.done() {
				f, w, v, _, err := or.next()
				if err != nil {
					return fmt.Errorf("malformed opset import: %w", err)
				}
				if f == 2 && w == wireVarint {
					opsetVersion = int64(v)
					opsetSeen = true
				}
			}
		}
	}

	if irVersion <= 0 {
		return fmt.Errorf("missing ir_version")
	}
	if !opsetSeen {
		return fmt.Errorf("missing opset import")
	}
	if opsetVersion != onnxOpsetVersion {
		return fmt.Errorf("unexpected opset version %d, want %d", opsetVersion, onnxOpsetVersion)
	}
	if len(graphs) != 1 {
		return fmt.Errorf("model has %d graphs, want 1", len(graphs))
	}

	g, err := parseGraph(graphs[0])
	if err != nil {
		return err
	}

	if len(g.nodeInputs) == 0 {
		return fmt.Errorf("graph has no nodes")
	}
	if len(g.inputNames) != 1 {
		return fmt.Errorf("graph has %d inputs, want 1", len(g.inputNames))
	}
	if len(g.outputNames) != 1 {
		return fmt.Errorf("graph has %d outputs, want 1", len(g.outputNames))
	}

	known := make(map[string]bool)
	known[g.inputNames[0]] = true
	for _, name := range g.initNames {
		known[name] = true
	}

	for i, inputs := range g.nodeInputs {
		for _, in := range inputs {
			if !known[in] {
				return fmt.Errorf("node %d references undefined input %q", i, in)
			}
		}
		for _, out := range g.nodeOutputs[i] {
			known[out] = true
		}
	}

	if !known[g.outputNames[0]] {
		return fmt.Errorf("graph output %q is not produced by any node", g.outputNames[0])
	}

	return nil
}
