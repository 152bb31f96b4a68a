package schedule

import (
	"math/rand"
	"time"
)

const (
	backoffBase   = time.Second
	backoffCap    = 60 * time.Second
	backoffJitter = 0.2
)

// Backoff returns the retry delay after the given number of failed attempts
// (1-based). The delay doubles per attempt and is capped at one minute, with
// ±20% uniform jitter so many jobs failing at once do not retry in lockstep.
func Backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}

	base := backoffCap
	// 1s << 6 already exceeds the cap; skip the shift for large counts.
	if attempts <= 6 {
		base = backoffBase << (attempts - 1)
	}
	if base > backoffCap {
		base = backoffCap
	}

	jitter := (rand.Float64()*2 - 1) * backoffJitter * float64(base)
	d := base + time.Duration(jitter)
	if d > backoffCap {
		d = backoffCap
	}
	if d < 0 {
		d = 0
	}
	return d
}
