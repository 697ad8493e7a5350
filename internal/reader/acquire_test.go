package reader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelay_FirstAttemptIsBase(t *testing.T) {
	assert.Equal(t, 250*time.Millisecond, backoffDelay(250, 1.8, 1))
}

func TestBackoffDelay_StrictlyIncreasing(t *testing.T) {
	prev := time.Duration(0)
	for attempt := 1; attempt <= 5; attempt++ {
		d := backoffDelay(250, 1.8, attempt)
		assert.Greater(t, d, prev, "attempt %d", attempt)
		prev = d
	}
}

func TestBackoffDelay_FlatWhenFactorIsOne(t *testing.T) {
	assert.Equal(t, backoffDelay(100, 1.0, 1), backoffDelay(100, 1.0, 4))
}
