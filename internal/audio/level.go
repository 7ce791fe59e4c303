package audio

import "math"

// levelGain scales raw RMS so ordinary speech lands mid-meter. Typical
// speech RMS on a float32 stream sits well below 0.2.
const levelGain = 5.0

// Level computes a display level in [0, 1] from one chunk of samples.
func Level(chunk []float32) float64 {
	if len(chunk) == 0 {
		return 0
	}
	var sum float64
	for _, s := range chunk {
		sum += float64(s) * float64(s)
	}
	level := math.Sqrt(sum/float64(len(chunk))) * levelGain
	return math.Min(level, 1)
}
