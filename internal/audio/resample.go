package audio

import "math"

// Resample converts a mono sample sequence from one rate to another using
// linear interpolation. Interpolation runs in double precision and the
// result is cast back to float32.
//
// It is the identity for equal rates, empty input, and inputs too short to
// resample meaningfully. Invalid rates also pass the input through
// unchanged.
func Resample(samples []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || len(samples) == 0 {
		return samples
	}
	if fromRate <= 0 || toRate <= 0 {
		return samples
	}

	targetLen := int(math.Round(float64(len(samples)) * float64(toRate) / float64(fromRate)))
	if targetLen <= 1 {
		return samples
	}

	out := make([]float32, targetLen)
	// Evenly spaced positions over the original index range [0, len-1].
	step := float64(len(samples)-1) / float64(targetLen-1)
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(j)
		out[i] = float32(float64(samples[j])*(1-frac) + float64(samples[j+1])*frac)
	}
	return out
}
