package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShapeNumElements(t *testing.T) {
	assert.Equal(t, 6, Shape{2, 3}.NumElements())
	assert.Equal(t, 24, Shape{2, 3, 4}.NumElements())
	assert.Equal(t, 1, Shape{}.NumElements(), "scalar has one element")
	assert.Equal(t, 0, Shape{2, 0, 3}.NumElements(), "zero-size dim yields empty array")
}

func TestShapeByteSize(t *testing.T) {
	assert.Equal(t, 24, Shape{2, 3}.ByteSize(Float32))
	assert.Equal(t, 4, Shape{}.ByteSize(Float32), "scalar is one element wide")
	assert.Equal(t, 12, Shape{2, 3}.ByteSize(BFloat16))
}

func TestShapeValidate(t *testing.T) {
	assert.NoError(t, Shape{2, 3}.Validate())
	assert.NoError(t, Shape{}.Validate())
	assert.NoError(t, Shape{0}.Validate(), "zero-size dims are legal")
	assert.Error(t, Shape{2, -1}.Validate())
}

func TestShapeEqualClone(t *testing.T) {
	s := Shape{2, 3}
	assert.True(t, s.Equal(Shape{2, 3}))
	assert.False(t, s.Equal(Shape{3, 2}))
	assert.False(t, s.Equal(Shape{2, 3, 1}))

	c := s.Clone()
	c[0] = 9
	assert.Equal(t, 2, s[0], "clone must not alias")
}
