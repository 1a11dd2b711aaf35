package preprocess

import (
	"math"

	"windsentry/internal/telemetry"
)

// FeatureNames lists the selected channels in tensor order.
var FeatureNames = []string{"roll", "pitch", "yaw", "wind_speed", "rps", "voltage"}

// FeatureCount is the number of channels encoded per window.
const FeatureCount = 6

// ExtractChannels derives the six feature channels from raw telemetry
// records: the three Euler angles plus wind speed, rotation rate, and
// voltage. Each returned slice has one value per record, ordered like
// FeatureNames.
func ExtractChannels(records []telemetry.Record) [][]float64 {
	channels := make([][]float64, FeatureCount)
	for i := range channels {
		channels[i] = make([]float64, len(records))
	}
	for idx, rec := range records {
		angles := EulerFromQuaternion(rec.QX, rec.QY, rec.QZ, rec.QW)
		channels[0][idx] = angles.Roll
		channels[1][idx] = angles.Pitch
		channels[2][idx] = angles.Yaw
		channels[3][idx] = rec.WindSpeed
		channels[4][idx] = rec.RPS
		channels[5][idx] = rec.Voltage
	}
	return channels
}

// PrepareChannels denoises and standardizes the extracted channels,
// returning the processed channels along with the statistics used.
func PrepareChannels(channels [][]float64, waveletLevels int) ([][]float64, []ChannelStats) {
	prepared := make([][]float64, len(channels))
	stats := make([]ChannelStats, len(channels))
	for i, channel := range channels {
		scrubbed := scrubNonFinite(channel)
		denoised := Denoise(scrubbed, waveletLevels)
		st := ComputeStats(FeatureNames[i], denoised)
		st.Apply(denoised)
		prepared[i] = denoised
		stats[i] = st
	}
	return prepared, stats
}

// scrubNonFinite copies a channel with NaN/Inf samples zeroed so they cannot
// smear through the wavelet filter bank.
func scrubNonFinite(channel []float64) []float64 {
	out := make([]float64, len(channel))
	for i, v := range channel {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[i] = v
	}
	return out
}
