// Package gguf reads the GGUF container format used by the llama.cpp
// ecosystem: a little- or big-endian header, a metadata key-value table,
// tensor descriptors, and an aligned tensor data section.
//
// Specification: https://github.com/ggerganov/ggml/blob/master/docs/gguf.md
package gguf

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Magic bytes identifying a GGUF file, in both byte orders.
const (
	MagicLE uint32 = 0x46554747 // "GGUF" little-endian.
	MagicBE uint32 = 0x47475546 // "GGUF" big-endian (reversed).
)

// Supported format versions.
const (
	VersionMin uint32 = 1
	VersionMax uint32 = 3
)

// DefaultAlignment is the default alignment of the tensor data section,
// overridable by the "general.alignment" metadata key.
const DefaultAlignment = 32

// ValueType tags a metadata value.
type ValueType uint32

// Metadata value types as defined by the GGUF specification.
const (
	ValueTypeUint8   ValueType = 0
	ValueTypeInt8    ValueType = 1
	ValueTypeUint16  ValueType = 2
	ValueTypeInt16   ValueType = 3
	ValueTypeUint32  ValueType = 4
	ValueTypeInt32   ValueType = 5
	ValueTypeFloat32 ValueType = 6
	ValueTypeBool    ValueType = 7
	ValueTypeString  ValueType = 8
	ValueTypeArray   ValueType = 9
	ValueTypeUint64  ValueType = 10
	ValueTypeInt64   ValueType = 11
	ValueTypeFloat64 ValueType = 12
)

// TensorType is the GGML element type of a tensor.
type TensorType uint32

// Tensor element types. Quantized block formats beyond Q4_0/Q8_0 are
// recognized (so their data can be sized and skipped) but not decoded.
//
//nolint:revive // Underscores in names match the GGML specification.
const (
	TypeF32  TensorType = 0
	TypeF16  TensorType = 1
	TypeQ4_0 TensorType = 2
	TypeQ4_1 TensorType = 3
	TypeQ5_0 TensorType = 6
	TypeQ5_1 TensorType = 7
	TypeQ8_0 TensorType = 8
	TypeQ8_1 TensorType = 9
	TypeQ2_K TensorType = 10
	TypeQ3_K TensorType = 11
	TypeQ4_K TensorType = 12
	TypeQ5_K TensorType = 13
	TypeQ6_K TensorType = 14
	TypeQ8_K TensorType = 15
	TypeI8   TensorType = 24
	TypeI16  TensorType = 25
	TypeI32  TensorType = 26
	TypeI64  TensorType = 27
	TypeF64  TensorType = 28
	TypeBF16 TensorType = 29
)

// typeTrait describes the block layout of a tensor type.
type typeTrait struct {
	name      string
	blockSize int // Elements per block.
	typeSize  int // Bytes per block.
	quantized bool
}

var typeTraits = map[TensorType]typeTrait{
	TypeF32:  {"F32", 1, 4, false},
	TypeF16:  {"F16", 1, 2, false},
	TypeQ4_0: {"Q4_0", 32, 18, true},
	TypeQ4_1: {"Q4_1", 32, 20, true},
	TypeQ5_0: {"Q5_0", 32, 22, true},
	TypeQ5_1: {"Q5_1", 32, 24, true},
	TypeQ8_0: {"Q8_0", 32, 34, true},
	TypeQ8_1: {"Q8_1", 32, 36, true},
	TypeQ2_K: {"Q2_K", 256, 84, true},
	TypeQ3_K: {"Q3_K", 256, 110, true},
	TypeQ4_K: {"Q4_K", 256, 144, true},
	TypeQ5_K: {"Q5_K", 256, 176, true},
	TypeQ6_K: {"Q6_K", 256, 210, true},
	TypeQ8_K: {"Q8_K", 256, 292, true},
	TypeI8:   {"I8", 1, 1, false},
	TypeI16:  {"I16", 1, 2, false},
	TypeI32:  {"I32", 1, 4, false},
	TypeI64:  {"I64", 1, 8, false},
	TypeF64:  {"F64", 1, 8, false},
	TypeBF16: {"BF16", 1, 2, false},
}

// String returns the GGML name of the tensor type, e.g. "Q4_0".
func (t TensorType) String() string {
	if trait, ok := typeTraits[t]; ok {
		return trait.name
	}
	return fmt.Sprintf("unknown(%d)", uint32(t))
}

// IsQuantized reports whether t is a block-quantized format.
func (t TensorType) IsQuantized() bool {
	return typeTraits[t].quantized
}

// DataSize returns the byte size of a tensor of this type with the given
// element count, rounding partial blocks up.
func (t TensorType) DataSize(elements int) (int, error) {
	trait, ok := typeTraits[t]
	if !ok {
		return 0, fmt.Errorf("unknown tensor type: %s", t)
	}
	blocks := (elements + trait.blockSize - 1) / trait.blockSize
	return blocks * trait.typeSize, nil
}

// Header is the fixed-size GGUF file header.
type Header struct {
	Magic           uint32
	Version         uint32
	TensorCount     uint64
	MetadataKVCount uint64
}

// TensorInfo describes one tensor in the file.
type TensorInfo struct {
	Name       string
	Dimensions []uint64
	Type       TensorType
	Offset     uint64 // Relative to the start of the tensor data section.
}

// NumElements returns the total number of elements of the tensor.
func (t *TensorInfo) NumElements() int {
	n := 1
	for _, d := range t.Dimensions {
		n *= int(d)
	}
	return n
}

// File is a parsed GGUF file. Tensor data stays on disk; use ReadTensor
// to load it.
type File struct {
	Header     Header
	Metadata   map[string]any
	TensorInfo []TensorInfo
	Alignment  int

	// TensorDataOffset is the absolute file offset of the aligned tensor
	// data section.
	TensorDataOffset int64

	path string
	f    io.ReadSeekCloser
}

// Name returns the model name from metadata, if present.
func (f *File) Name() string {
	if name, ok := f.Metadata["general.name"].(string); ok {
		return name
	}
	return ""
}

// Architecture returns the model architecture from metadata, if present.
func (f *File) Architecture() string {
	if arch, ok := f.Metadata["general.architecture"].(string); ok {
		return arch
	}
	return ""
}

// Tensor finds a tensor descriptor by name.
func (f *File) Tensor(name string) *TensorInfo {
	for i := range f.TensorInfo {
		if f.TensorInfo[i].Name == name {
			return &f.TensorInfo[i]
		}
	}
	return nil
}

// Close releases the underlying file handle.
func (f *File) Close() error {
	if f.f == nil {
		return nil
	}
	err := f.f.Close()
	f.f = nil
	return err
}

func alignOffset(offset int64, alignment int) int64 {
	if alignment <= 0 {
		alignment = DefaultAlignment
	}
	pad := (int64(alignment) - offset%int64(alignment)) % int64(alignment)
	return offset + pad
}

// readString reads a GGUF string: a uint64 length prefix followed by raw
// bytes, not null-terminated.
func readString(r io.Reader, order binary.ByteOrder) (string, error) {
	var length uint64
	if err := binary.Read(r, order, &length); err != nil {
		return "", fmt.Errorf("read string length: %w", err)
	}
	if length > 1<<20 {
		return "", fmt.Errorf("string too long: %d bytes", length)
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return "", fmt.Errorf("read string data: %w", err)
	}
	return string(data), nil
}
