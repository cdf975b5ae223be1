// Package tensor provides the host-resident array types the converter
// traffics in: a runtime data type, a shape, and a raw byte buffer.
package tensor

import "fmt"

// DataType represents runtime element type information for arrays.
type DataType int

// Supported element types.
//
// The set covers everything the safetensors, GGUF and flax aggregate
// readers can produce. String() names are the canonical lowercase
// identifiers written into .shape files.
const (
	Invalid DataType = iota
	Float32
	Float64
	Float16
	BFloat16
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Bool
)

// Size returns the byte width of one element of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32, Uint32:
		return 4
	case Float64, Int64, Uint64:
		return 8
	case Float16, BFloat16, Int16, Uint16:
		return 2
	case Int8, Uint8, Bool:
		return 1
	default:
		panic(fmt.Sprintf("unknown data type: %d", int(dt)))
	}
}

var dtypeNames = map[DataType]string{
	Float32:  "float32",
	Float64:  "float64",
	Float16:  "float16",
	BFloat16: "bfloat16",
	Int8:     "int8",
	Int16:    "int16",
	Int32:    "int32",
	Int64:    "int64",
	Uint8:    "uint8",
	Uint16:   "uint16",
	Uint32:   "uint32",
	Uint64:   "uint64",
	Bool:     "bool",
}

// String returns the canonical name for the data type, e.g. "float32".
func (dt DataType) String() string {
	if name, ok := dtypeNames[dt]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(dt))
}

// ParseDataType is the inverse of String. It resolves the dtype field of a
// .shape file back into a DataType.
func ParseDataType(name string) (DataType, error) {
	for dt, n := range dtypeNames {
		if n == name {
			return dt, nil
		}
	}
	return Invalid, fmt.Errorf("unknown dtype name: %q", name)
}

// IsFloat reports whether the data type is a floating point type.
func (dt DataType) IsFloat() bool {
	switch dt {
	case Float32, Float64, Float16, BFloat16:
		return true
	default:
		return false
	}
}
