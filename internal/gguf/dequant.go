package gguf

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/x448/float16"
)

// Dequantize expands tensor data to float32. Scalar types are widened
// element-wise; of the block-quantized formats, Q4_0 and Q8_0 are
// supported, which covers the bulk of quantized checkpoints in the wild.
func Dequantize(data []byte, t TensorType, elements int) ([]float32, error) {
	size, err := t.DataSize(elements)
	if err != nil {
		return nil, err
	}
	if len(data) < size {
		return nil, fmt.Errorf("insufficient data for %s: need %d bytes, got %d", t, size, len(data))
	}

	switch t {
	case TypeF32:
		out := make([]float32, elements)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		}
		return out, nil
	case TypeF16:
		out := make([]float32, elements)
		for i := range out {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(data[i*2:])).Float32()
		}
		return out, nil
	case TypeBF16:
		out := make([]float32, elements)
		for i := range out {
			out[i] = math.Float32frombits(uint32(binary.LittleEndian.Uint16(data[i*2:])) << 16)
		}
		return out, nil
	case TypeF64:
		out := make([]float32, elements)
		for i := range out {
			out[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:])))
		}
		return out, nil
	case TypeI8:
		out := make([]float32, elements)
		for i := range out {
			out[i] = float32(int8(data[i]))
		}
		return out, nil
	case TypeI16:
		out := make([]float32, elements)
		for i := range out {
			out[i] = float32(int16(binary.LittleEndian.Uint16(data[i*2:])))
		}
		return out, nil
	case TypeI32:
		out := make([]float32, elements)
		for i := range out {
			out[i] = float32(int32(binary.LittleEndian.Uint32(data[i*4:])))
		}
		return out, nil
	case TypeQ4_0:
		return dequantizeQ4_0(data, elements), nil
	case TypeQ8_0:
		return dequantizeQ8_0(data, elements), nil
	default:
		return nil, fmt.Errorf("dequantization of %s is not supported", t)
	}
}

// Q4_0 block: float16 scale, then 32 4-bit values packed low-nibble
// first. value = (q - 8) * scale.
func dequantizeQ4_0(data []byte, elements int) []float32 {
	const blockElems = 32
	const blockBytes = 18
	out := make([]float32, elements)
	for i := 0; i < elements; i += blockElems {
		block := data[(i/blockElems)*blockBytes:]
		scale := float16.Frombits(binary.LittleEndian.Uint16(block)).Float32()
		quants := block[2 : 2+16]
		for j := 0; j < blockElems && i+j < elements; j++ {
			q := quants[j%16] & 0x0F
			if j >= 16 {
				q = quants[j%16] >> 4
			}
			out[i+j] = (float32(q) - 8) * scale
		}
	}
	return out
}

// Q8_0 block: float16 scale, then 32 int8 values. value = q * scale.
func dequantizeQ8_0(data []byte, elements int) []float32 {
	const blockElems = 32
	const blockBytes = 34
	out := make([]float32, elements)
	for i := 0; i < elements; i += blockElems {
		block := data[(i/blockElems)*blockBytes:]
		scale := float16.Frombits(binary.LittleEndian.Uint16(block)).Float32()
		quants := block[2 : 2+blockElems]
		for j := 0; j < blockElems && i+j < elements; j++ {
			out[i+j] = float32(int8(quants[j])) * scale
		}
	}
	return out
}
