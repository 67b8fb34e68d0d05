package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSleeperReachesDeadline(t *testing.T) {
	for _, spin := range []time.Duration{0, 2 * time.Millisecond, time.Second} {
		start := time.Now()
		Sleeper{Spin: spin}.Sleep(3 * time.Millisecond)
		assert.GreaterOrEqual(t, time.Since(start), 3*time.Millisecond, "spin %v", spin)
	}

	start := time.Now()
	Sleeper{Spin: time.Millisecond}.Sleep(-time.Second)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}
