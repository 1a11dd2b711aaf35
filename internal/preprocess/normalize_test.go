package preprocess

import (
	"math"
	"testing"

	"windsentry/internal/telemetry"
)

func TestComputeStatsIgnoresNonFinite(t *testing.T) {
	values := []float64{1, 2, 3, math.NaN(), math.Inf(1)}
	stats := ComputeStats("rps", values)
	if stats.Name != "rps" {
		t.Fatalf("unexpected name %q", stats.Name)
	}
	if math.Abs(stats.Mean-2) > 1e-12 {
		t.Fatalf("expected mean 2, got %f", stats.Mean)
	}
	if stats.Std <= 0 {
		t.Fatalf("expected positive std, got %f", stats.Std)
	}
}

func TestApplyStandardizes(t *testing.T) {
	stats := ChannelStats{Name: "voltage", Mean: 10, Std: 2}
	values := []float64{10, 12, 8}
	stats.Apply(values)
	expected := []float64{0, 1, -1}
	for i := range values {
		if math.Abs(values[i]-expected[i]) > 1e-12 {
			t.Fatalf("Apply mismatch: got %v, want %v", values, expected)
		}
	}
}

func TestApplyZeroStdZeroesChannel(t *testing.T) {
	stats := ChannelStats{Name: "flat", Mean: 5, Std: 0}
	values := []float64{5, 5, 5}
	stats.Apply(values)
	for _, v := range values {
		if v != 0 {
			t.Fatalf("expected zeroed channel, got %v", values)
		}
	}
}

func TestExtractChannelsOrderAndLength(t *testing.T) {
	records := []telemetry.Record{
		{QX: 0, QY: 0, QZ: 0, QW: 1, WindSpeed: 4.2, RPS: 1.5, Voltage: 3000},
		{QX: 0, QY: 0, QZ: 0, QW: 1, WindSpeed: 4.4, RPS: 1.6, Voltage: 3010},
	}
	channels := ExtractChannels(records)
	if len(channels) != FeatureCount {
		t.Fatalf("expected %d channels, got %d", FeatureCount, len(channels))
	}
	for i, channel := range channels {
		if len(channel) != len(records) {
			t.Fatalf("channel %d has %d samples, want %d", i, len(channel), len(records))
		}
	}
	if channels[3][0] != 4.2 || channels[4][1] != 1.6 || channels[5][0] != 3000 {
		t.Fatalf("channel ordering mismatch: %+v", channels)
	}
}

func TestPrepareChannelsScrubsNonFinite(t *testing.T) {
	channels := [][]float64{
		{1, math.NaN(), 3, math.Inf(-1), 5, 6, 7, 8, 9, 10},
	}
	prepared, stats := PrepareChannels(channels, 1)
	if len(prepared) != 1 || len(stats) != 1 {
		t.Fatalf("unexpected output sizes: %d/%d", len(prepared), len(stats))
	}
	for i, v := range prepared[0] {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("non-finite value survived at %d: %f", i, v)
		}
	}
}
