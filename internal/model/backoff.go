package model

import (
	"math"
	"time"
)

const (
	reloadInitialDelay = time.Second
	reloadMaxDelay     = 30 * time.Second
	reloadMultiplier   = 2.0
)

// backoffDelay returns the delay before the given zero-based attempt,
// growing exponentially up to a ceiling.
func backoffDelay(attempt int, initial, max time.Duration, multiplier float64) time.Duration {
	delay := time.Duration(float64(initial) * math.Pow(multiplier, float64(attempt)))
	if delay > max {
		return max
	}
	return delay
}
