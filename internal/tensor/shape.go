package tensor

import "fmt"

// Shape represents the dimensions of an array. A zero-length shape is a
// scalar.
type Shape []int

// NumElements returns the total number of elements in the array.
func (s Shape) NumElements() int {
	n := 1 // Scalar has 1 element.
	for _, dim := range s {
		n *= dim
	}
	return n
}

// ByteSize returns the memory size of an array with this shape and the
// given element type.
func (s Shape) ByteSize(dtype DataType) int {
	return s.NumElements() * dtype.Size()
}

// Validate checks if the shape is valid. Zero-size dimensions are legal
// (they describe an empty array); negative dimensions are not.
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim < 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be >= 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// String formats the shape as "[d0 d1 ...]"; scalars format as "[]".
func (s Shape) String() string {
	return fmt.Sprintf("%v", []int(s))
}
