package preprocess

import (
	"math"
	"sort"
)

// Daubechies-4 scaling filter.
var db4Scaling = []float64{
	0.2303778133088965,
	0.7148465705529157,
	0.6308807679298589,
	-0.0279837694168599,
	-0.1870348117190931,
	0.0308413818355607,
	0.0328830116668852,
	-0.0105974017850690,
}

var db4Wavelet = func() []float64 {
	n := len(db4Scaling)
	g := make([]float64, n)
	for k := 0; k < n; k++ {
		g[k] = db4Scaling[n-1-k]
		if k%2 == 1 {
			g[k] = -g[k]
		}
	}
	return g
}()

// Denoise applies multi-level discrete wavelet denoising to a signal:
// decompose with the db4 filter bank, soft-threshold every detail band with
// the universal threshold, and reconstruct. The result has the same length
// as the input. Levels beyond what the signal length supports are ignored.
func Denoise(signal []float64, levels int) []float64 {
	n := len(signal)
	if n == 0 || levels <= 0 {
		out := make([]float64, n)
		copy(out, signal)
		return out
	}

	approx := make([]float64, n)
	copy(approx, signal)

	details := make([][]float64, 0, levels)
	for level := 0; level < levels && len(approx) >= len(db4Scaling); level++ {
		a, d := dwtStep(approx)
		details = append(details, d)
		approx = a
	}

	if len(details) > 0 {
		threshold := universalThreshold(details[0], n)
		for _, d := range details {
			softThreshold(d, threshold)
		}
	}

	for i := len(details) - 1; i >= 0; i-- {
		approx = idwtStep(approx, details[i])
	}

	return approx[:n]
}

// dwtStep performs one analysis step with periodic extension, returning
// approximation and detail coefficients of length ceil(n/2).
func dwtStep(signal []float64) (approx, detail []float64) {
	n := len(signal)
	half := (n + 1) / 2
	approx = make([]float64, half)
	detail = make([]float64, half)
	for i := 0; i < half; i++ {
		var a, d float64
		for k, h := range db4Scaling {
			idx := (2*i + k) % n
			a += h * signal[idx]
			d += db4Wavelet[k] * signal[idx]
		}
		approx[i] = a
		detail[i] = d
	}
	return approx, detail
}

// idwtStep inverts dwtStep. When odd-length signals left the approximation
// one coefficient longer than the detail band, the extra coefficient is
// dropped; the caller trims to the original length anyway.
func idwtStep(approx, detail []float64) []float64 {
	half := len(detail)
	if len(approx) > half {
		approx = approx[:half]
	}
	n := half * 2
	out := make([]float64, n)
	for i := 0; i < half; i++ {
		for k := range db4Scaling {
			idx := (2*i + k) % n
			out[idx] += db4Scaling[k]*approx[i] + db4Wavelet[k]*detail[i]
		}
	}
	return out
}

// universalThreshold estimates sigma from the finest detail band via the
// median absolute deviation and scales by sqrt(2 ln n).
func universalThreshold(finestDetail []float64, n int) float64 {
	if len(finestDetail) == 0 || n < 2 {
		return 0
	}
	abs := make([]float64, len(finestDetail))
	for i, v := range finestDetail {
		abs[i] = math.Abs(v)
	}
	sort.Float64s(abs)
	median := abs[len(abs)/2]
	if len(abs)%2 == 0 {
		median = (abs[len(abs)/2-1] + abs[len(abs)/2]) / 2
	}
	sigma := median / 0.6745
	return sigma * math.Sqrt(2*math.Log(float64(n)))
}

func softThreshold(coeffs []float64, threshold float64) {
	for i, v := range coeffs {
		switch {
		case v > threshold:
			coeffs[i] = v - threshold
		case v < -threshold:
			coeffs[i] = v + threshold
		default:
			coeffs[i] = 0
		}
	}
}
