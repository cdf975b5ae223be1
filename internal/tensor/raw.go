package tensor

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/x448/float16"
)

// Raw is a host-resident leaf array: a contiguous byte buffer with a fixed
// element type and shape. The buffer holds the array exactly as the source
// checkpoint stored it (little-endian, densely packed, row-major), so
// exporting it is a plain byte copy.
//
// Raw is immutable by convention once constructed; nothing in this
// repository mutates a buffer after loading.
type Raw struct {
	dtype DataType
	shape Shape
	data  []byte
}

// NewRaw creates a zero-filled array with the given shape and type.
func NewRaw(dtype DataType, shape Shape) (*Raw, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	return &Raw{
		dtype: dtype,
		shape: shape.Clone(),
		data:  make([]byte, shape.ByteSize(dtype)),
	}, nil
}

// FromBytes adopts data as the backing buffer of an array with the given
// shape and type. The buffer length must match exactly.
func FromBytes(dtype DataType, shape Shape, data []byte) (*Raw, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if want := shape.ByteSize(dtype); len(data) != want {
		return nil, fmt.Errorf("buffer size mismatch for %s%v: got %d bytes, want %d",
			dtype, shape, len(data), want)
	}
	return &Raw{dtype: dtype, shape: shape.Clone(), data: data}, nil
}

// DType returns the element type.
func (r *Raw) DType() DataType {
	return r.dtype
}

// Shape returns the array's shape. Callers must not modify it.
func (r *Raw) Shape() Shape {
	return r.shape
}

// NumElements returns the total number of elements.
func (r *Raw) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the total buffer size in bytes.
func (r *Raw) ByteSize() int {
	return len(r.data)
}

// Data returns the raw byte buffer. Callers must treat it as read-only.
func (r *Raw) Data() []byte {
	return r.data
}

// Float64s widens the buffer to []float64 for numeric inspection.
// Only floating point dtypes are supported.
func (r *Raw) Float64s() ([]float64, error) {
	n := r.NumElements()
	out := make([]float64, n)
	switch r.dtype {
	case Float32:
		for i := 0; i < n; i++ {
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(r.data[i*4:])))
		}
	case Float64:
		for i := 0; i < n; i++ {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(r.data[i*8:]))
		}
	case Float16:
		for i := 0; i < n; i++ {
			out[i] = float64(float16.Frombits(binary.LittleEndian.Uint16(r.data[i*2:])).Float32())
		}
	case BFloat16:
		for i := 0; i < n; i++ {
			// bfloat16 is the high half of a float32.
			bits := uint32(binary.LittleEndian.Uint16(r.data[i*2:])) << 16
			out[i] = float64(math.Float32frombits(bits))
		}
	default:
		return nil, fmt.Errorf("cannot widen dtype %s to float64", r.dtype)
	}
	return out, nil
}

// String implements fmt.Stringer, e.g. "float32[2 3]".
func (r *Raw) String() string {
	return fmt.Sprintf("%s%v", r.dtype, r.shape)
}
