package clock

// Transport is the external tempo reference the clock follows, such as a
// shared network session. Times are microseconds on the transport's own
// monotonic clock; beats are quarter notes.
type Transport interface {
	// CaptureSessionState returns a snapshot that may be modified and
	// handed back with CommitSessionState.
	CaptureSessionState() SessionState
	CommitSessionState(SessionState)
	NowMicros() int64
	// Close releases the session. It must be safe to call more than once.
	Close() error
}

// SessionState maps between time and beats for one snapshot of a session.
type SessionState interface {
	BeatAtTime(micros int64, quantum float64) float64
	PhaseAtTime(micros int64, quantum float64) float64
	TimeAtBeat(beat, quantum float64) int64
	Tempo() float64
	SetTempo(bpm float64, micros int64)
	IsPlaying() bool
	SetIsPlaying(playing bool, micros int64)
	// RequestBeatAtTime maps beat to micros, keeping the phase relation
	// with quantum where the session requires it.
	RequestBeatAtTime(beat float64, micros int64, quantum float64)
}
