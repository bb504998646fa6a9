package conn

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffCeilingMonotonicAndCapped(t *testing.T) {
	prev := time.Duration(0)
	for attempt := 1; attempt <= 12; attempt++ {
		d := backoffCeiling(attempt)
		assert.GreaterOrEqual(t, d, prev, "attempt %d", attempt)
		assert.LessOrEqual(t, d, backoffCap, "attempt %d", attempt)
		prev = d
	}
	assert.Equal(t, backoffBase, backoffCeiling(1))
	assert.Equal(t, 4*time.Second, backoffCeiling(2))
	assert.Equal(t, backoffCap, backoffCeiling(100))
}

func TestBackoffDelayWithinCeiling(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for attempt := 1; attempt <= 10; attempt++ {
		for i := 0; i < 50; i++ {
			d := backoffDelay(attempt, rng)
			assert.GreaterOrEqual(t, d, time.Duration(0))
			assert.LessOrEqual(t, d, backoffCeiling(attempt))
		}
	}
}
