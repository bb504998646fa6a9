package conn

import (
	"math/rand"
	"time"
)

const (
	backoffBase = 2 * time.Second
	backoffCap  = 60 * time.Second
)

// backoffCeiling returns the deterministic upper bound for the given
// reconnect attempt: base doubled per attempt, capped. Attempt 1 yields
// the base.
func backoffCeiling(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := backoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= backoffCap {
			return backoffCap
		}
	}
	if d > backoffCap {
		return backoffCap
	}
	return d
}

// backoffDelay applies full jitter: a uniform draw from
// [0, ceiling(attempt)]. Jitter spreads reconnect storms when many
// sessions lose the same server at once.
func backoffDelay(attempt int, rng *rand.Rand) time.Duration {
	ceiling := backoffCeiling(attempt)
	return time.Duration(rng.Int63n(int64(ceiling) + 1))
}
