package clock

import (
	"runtime"
	"time"
)

// Sleeper waits with sub-millisecond precision: it sleeps coarsely until
// Spin before the deadline, then yields in a busy loop until the deadline.
type Sleeper struct {
	// Spin is the busy-wait window. Zero disables spinning.
	Spin time.Duration
}

// Sleep blocks for d.
func (s Sleeper) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	deadline := time.Now().Add(d)
	if coarse := d - s.Spin; coarse > 0 {
		time.Sleep(coarse)
	}
	for time.Now().Before(deadline) {
		runtime.Gosched()
	}
}
