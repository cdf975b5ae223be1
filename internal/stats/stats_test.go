package stats

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawtree-ml/rawtree/internal/tensor"
)

func f32Raw(t *testing.T, vals ...float32) *tensor.Raw {
	t.Helper()
	data := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(data[4*i:], math.Float32bits(v))
	}
	r, err := tensor.FromBytes(tensor.Float32, tensor.Shape{len(vals)}, data)
	require.NoError(t, err)
	return r
}

func TestSummarize(t *testing.T) {
	s, err := Summarize(f32Raw(t, 1, 2, 3, 4))
	require.NoError(t, err)
	assert.InDelta(t, 1, s.Min, 1e-9)
	assert.InDelta(t, 4, s.Max, 1e-9)
	assert.InDelta(t, 2.5, s.Mean, 1e-9)
	// Sample standard deviation of {1,2,3,4}.
	assert.InDelta(t, 1.2909944, s.Std, 1e-6)
}

func TestSummarizeRejectsInts(t *testing.T) {
	r, err := tensor.FromBytes(tensor.Int8, tensor.Shape{2}, []byte{1, 2})
	require.NoError(t, err)
	_, err = Summarize(r)
	assert.Error(t, err)
}

func TestSummarizeRejectsEmpty(t *testing.T) {
	r, err := tensor.FromBytes(tensor.Float32, tensor.Shape{0}, nil)
	require.NoError(t, err)
	_, err = Summarize(r)
	assert.Error(t, err)
}
