package audio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevelSilenceIsZero(t *testing.T) {
	require.Zero(t, Level(make([]float32, 160)))
	require.Zero(t, Level(nil))
}

func TestLevelFullScaleClampsToOne(t *testing.T) {
	chunk := make([]float32, 160)
	for i := range chunk {
		chunk[i] = 1
		if i%2 == 1 {
			chunk[i] = -1
		}
	}
	require.Equal(t, 1.0, Level(chunk))
}

func TestLevelScalesSpeechRange(t *testing.T) {
	chunk := make([]float32, 160)
	for i := range chunk {
		chunk[i] = 0.1
	}
	require.InDelta(t, 0.5, Level(chunk), 1e-6)
}
