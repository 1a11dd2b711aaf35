package window

import (
	"fmt"
	"math"
)

const (
	// GridRows and GridCols describe how one window of samples is folded
	// into a square grid per channel.
	GridRows = 10
	GridCols = 10

	// Size is the number of consecutive samples in one window.
	Size = GridRows * GridCols
)

// Tensor holds a batch of encoded windows in C order. Shape is always
// (windows, channels, GridRows, GridCols).
type Tensor struct {
	Shape [4]int
	Data  []float32
}

// Windows returns the leading dimension of the tensor.
func (t *Tensor) Windows() int {
	return t.Shape[0]
}

// WindowBytes returns the serialized payload size of a single window.
func (t *Tensor) WindowBytes() int {
	return t.Shape[1] * t.Shape[2] * t.Shape[3] * 4
}

// Slice returns a view covering windows [from, to).
func (t *Tensor) Slice(from, to int) *Tensor {
	stride := t.Shape[1] * t.Shape[2] * t.Shape[3]
	return &Tensor{
		Shape: [4]int{to - from, t.Shape[1], t.Shape[2], t.Shape[3]},
		Data:  t.Data[from*stride : to*stride],
	}
}

// Build slides a window of Size samples across the channels with the given
// stride and folds each window into a GridRows x GridCols grid. All channels
// must have the same length. Non-finite samples are written as zero.
func Build(channels [][]float64, stride int) (*Tensor, error) {
	if len(channels) == 0 {
		return nil, fmt.Errorf("no channels to window")
	}
	if stride <= 0 {
		return nil, fmt.Errorf("window stride must be positive, got %d", stride)
	}
	samples := len(channels[0])
	for i, channel := range channels {
		if len(channel) != samples {
			return nil, fmt.Errorf("channel %d has %d samples, expected %d", i, len(channel), samples)
		}
	}
	numChannels := len(channels)
	if samples < Size {
		// Shorter than one window yields an empty batch, not an error.
		return &Tensor{
			Shape: [4]int{0, numChannels, GridRows, GridCols},
			Data:  nil,
		}, nil
	}

	count := (samples-Size)/stride + 1
	data := make([]float32, count*numChannels*Size)

	idx := 0
	for w := 0; w < count; w++ {
		start := w * stride
		for _, channel := range channels {
			for _, v := range channel[start : start+Size] {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					data[idx] = 0
				} else {
					data[idx] = float32(v)
				}
				idx++
			}
		}
	}

	return &Tensor{
		Shape: [4]int{count, numChannels, GridRows, GridCols},
		Data:  data,
	}, nil
}
