package preprocess

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// ChannelStats carries the standardization statistics for one feature
// channel. They are persisted with the dataset so the deployment payload can
// ship the same statistics to edge devices.
type ChannelStats struct {
	Name string  `json:"name"`
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// ComputeStats derives mean and standard deviation for a channel, ignoring
// NaN samples so isolated sensor glitches do not poison the statistics.
func ComputeStats(name string, values []float64) ChannelStats {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return ChannelStats{Name: name}
	}
	mean, std := stat.MeanStdDev(clean, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return ChannelStats{Name: name, Mean: mean, Std: std}
}

// Apply standardizes values in place using the channel statistics. A zero
// std maps every sample to zero rather than dividing by zero.
func (s ChannelStats) Apply(values []float64) {
	for i, v := range values {
		if s.Std == 0 {
			values[i] = 0
			continue
		}
		values[i] = (v - s.Mean) / s.Std
	}
}
