package tempo

import (
	"sync"
	"time"

	"go-cycle/clock"
)

// Local is a session that lives only in this process.
type Local struct {
	mu    sync.Mutex
	sess  Session
	epoch time.Time
	now   func() int64
}

var _ clock.Transport = (*Local)(nil)

// NewLocal starts a stopped session at bpm.
func NewLocal(bpm float64) *Local {
	l := &Local{epoch: time.Now()}
	l.now = func() int64 { return time.Since(l.epoch).Microseconds() }
	l.sess = NewSession(bpm, 0)
	return l
}

// NewManual returns a session whose time is read from now, for tests and
// offline rendering.
func NewManual(bpm float64, now func() int64) *Local {
	return &Local{sess: NewSession(bpm, now()), now: now}
}

// CaptureSessionState returns a copy of the timeline.
func (l *Local) CaptureSessionState() clock.SessionState {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.sess
	return &s
}

// CommitSessionState replaces the timeline. States captured from other
// transports are ignored.
func (l *Local) CommitSessionState(state clock.SessionState) {
	s, ok := state.(*Session)
	if !ok {
		return
	}
	l.mu.Lock()
	l.sess = *s
	l.mu.Unlock()
}

// NowMicros is the time since the session was created.
func (l *Local) NowMicros() int64 { return l.now() }

func (l *Local) Close() error { return nil }
