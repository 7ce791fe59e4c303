package audio

import "math"

// resampler converts an arbitrary input rate to TargetRate by linear
// interpolation. It is stateful: the fractional read position and the last
// input sample carry across Process calls so chunk boundaries introduce no
// discontinuity.
type resampler struct {
	step float64
	pos  float64
	last float32
}

func newResampler(inRate, outRate int) *resampler {
	return &resampler{step: float64(inRate) / float64(outRate)}
}

func (r *resampler) Process(in []float32) []float32 {
	if len(in) == 0 {
		return nil
	}

	out := make([]float32, 0, int(float64(len(in))/r.step)+1)
	for {
		i := int(math.Floor(r.pos))
		if i >= len(in)-1 {
			break
		}
		frac := float32(r.pos - float64(i))
		s0 := r.last
		if i >= 0 {
			s0 = in[i]
		}
		s1 := in[i+1]
		out = append(out, s0+frac*(s1-s0))
		r.pos += r.step
	}

	r.last = in[len(in)-1]
	r.pos -= float64(len(in))
	return out
}
