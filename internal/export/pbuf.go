package export

import (
	"encoding/binary"
	"math"
)

// Minimal protobuf wire-format encoder for the fixed ONNX message subset
// the exporter emits. The pack carries no ONNX Go bindings, and the node
// set here is small and closed, so the wire format is written directly.

const (
	wireVarint  = 0
	wireFixed64 = 1
	wireBytes   = 2
	wireFixed32 = 5
)

type protoBuffer struct {
	buf []byte
}

func (b *protoBuffer) bytes() []byte { return b.buf }

func (b *protoBuffer) uvarint(v uint64) {
	for v >= 0x80 {
		b.buf = append(b.buf, byte(v)|0x80)
		v >>= 7
	}
	b.buf = append(b.buf, byte(v))
}

func (b *protoBuffer) tag(field, wire int) {
	b.uvarint(uint64(field)<<3 | uint64(wire))
}

// varintField writes an int64 field (wire type 0)
func (b *protoBuffer) varintField(field int, v int64) {
	b.tag(field, wireVarint)
	b.uvarint(uint64(v))
}

// bytesField writes a length-delimited field (wire type 2)
func (b *protoBuffer) bytesField(field int, data []byte) {
	b.tag(field, wireBytes)
	b.uvarint(uint64(len(data)))
	b.buf = append(b.buf, data...)
}

func (b *protoBuffer) stringField(field int, s string) {
	b.bytesField(field, []byte(s))
}

// packedInt64s writes a repeated int64 field in packed form
func (b *protoBuffer) packedInt64s(field int, vals []int64) {
	var inner protoBuffer
	for _, v := range vals {
		inner.uvarint(uint64(v))
	}
	b.bytesField(field, inner.bytes())
}

// floatField writes a float field (wire type 5)
func (b *protoBuffer) floatField(field int, f float32) {
	b.tag(field, wireFixed32)
	var scratch [4]byte
	binary.LittleEndian.PutUint32(scratch[:], math.Float32bits(f))
	b.buf = append(b.buf, scratch[:]...)
}
