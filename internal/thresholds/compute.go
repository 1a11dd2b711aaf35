package thresholds

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Accumulator collects per-channel absolute reconstruction errors across
// every evaluated window.
type Accumulator struct {
	errs [][]float64
}

// NewAccumulator prepares an accumulator for the given channel count.
func NewAccumulator(channels int) *Accumulator {
	return &Accumulator{errs: make([][]float64, channels)}
}

// Add compares one batch of model reconstructions against its input tensor.
// Both slices must follow the same (windows, channels, rows, cols) layout.
func (a *Accumulator) Add(input, output []float32, shape []int) error {
	if len(shape) != 4 {
		return fmt.Errorf("expected 4-d tensor, got shape %v", shape)
	}
	if shape[1] != len(a.errs) {
		return fmt.Errorf("tensor has %d channels, accumulator expects %d", shape[1], len(a.errs))
	}
	if len(input) != len(output) {
		return fmt.Errorf("input holds %d values, output %d", len(input), len(output))
	}
	elems := shape[0] * shape[1] * shape[2] * shape[3]
	if len(input) != elems {
		return fmt.Errorf("tensor shape %v implies %d values, have %d", shape, elems, len(input))
	}

	perChannel := shape[2] * shape[3]
	idx := 0
	for w := 0; w < shape[0]; w++ {
		for c := 0; c < shape[1]; c++ {
			for s := 0; s < perChannel; s++ {
				diff := math.Abs(float64(output[idx]) - float64(input[idx]))
				if !math.IsNaN(diff) && !math.IsInf(diff, 0) {
					a.errs[c] = append(a.errs[c], diff)
				}
				idx++
			}
		}
	}
	return nil
}

// Thresholds derives one anomaly threshold per channel as
// mean(|err|) + k*std(|err|). Channel names must match the accumulator's
// channel count.
func (a *Accumulator) Thresholds(names []string, k float64) (map[string]float64, error) {
	if len(names) != len(a.errs) {
		return nil, fmt.Errorf("have %d channel names for %d channels", len(names), len(a.errs))
	}
	out := make(map[string]float64, len(names))
	for i, name := range names {
		if len(a.errs[i]) == 0 {
			return nil, fmt.Errorf("no reconstruction errors collected for channel %s", name)
		}
		mean, std := stat.MeanStdDev(a.errs[i], nil)
		if math.IsNaN(std) {
			std = 0
		}
		out[name] = mean + k*std
	}
	return out, nil
}
