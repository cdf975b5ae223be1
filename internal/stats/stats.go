// Package stats computes summary statistics over leaf arrays for
// inspection output.
package stats

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/rawtree-ml/rawtree/internal/tensor"
)

// Summary holds the basic distribution of one array's values.
type Summary struct {
	Min, Max, Mean, Std float64
}

// String formats the summary the way inspect prints it.
func (s Summary) String() string {
	return fmt.Sprintf("min=%.4g max=%.4g mean=%.4g std=%.4g", s.Min, s.Max, s.Mean, s.Std)
}

// Summarize computes the summary of a floating point array. Integer and
// bool arrays, and empty arrays, are rejected.
func Summarize(array *tensor.Raw) (Summary, error) {
	if !array.DType().IsFloat() {
		return Summary{}, fmt.Errorf("stats need a float dtype, got %s", array.DType())
	}
	vals, err := array.Float64s()
	if err != nil {
		return Summary{}, err
	}
	if len(vals) == 0 {
		return Summary{}, fmt.Errorf("empty array")
	}
	return Summary{
		Min:  floats.Min(vals),
		Max:  floats.Max(vals),
		Mean: stat.Mean(vals, nil),
		Std:  stat.StdDev(vals, nil),
	}, nil
}
