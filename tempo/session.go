// Package tempo provides the transports a clock follows: a free-running
// in-process session and a follower of an oscsync master.
package tempo

import (
	"math"

	"go-cycle/clock"
)

// Session is a linear tempo timeline: originBeat falls at originMicros and
// beats advance at bpm. It implements clock.SessionState.
type Session struct {
	originMicros int64
	originBeat   float64
	bpm          float64
	playing      bool
}

var _ clock.SessionState = (*Session)(nil)

// NewSession starts a timeline at beat 0 at micros.
func NewSession(bpm float64, micros int64) Session {
	if bpm <= 0 {
		bpm = DefaultTempo
	}
	return Session{originMicros: micros, bpm: bpm}
}

// DefaultTempo is used when no positive tempo is given.
const DefaultTempo = 120

func (s *Session) BeatAtTime(micros int64, _ float64) float64 {
	return s.originBeat + float64(micros-s.originMicros)*s.bpm/60e6
}

// PhaseAtTime is the beat modulo quantum, always non-negative.
func (s *Session) PhaseAtTime(micros int64, quantum float64) float64 {
	if quantum <= 0 {
		return 0
	}
	p := math.Mod(s.BeatAtTime(micros, quantum), quantum)
	if p < 0 {
		p += quantum
	}
	return p
}

func (s *Session) TimeAtBeat(beat, _ float64) int64 {
	return s.originMicros + int64(math.Round((beat-s.originBeat)*60e6/s.bpm))
}

func (s *Session) Tempo() float64 { return s.bpm }

// SetTempo changes the tempo from micros on, keeping the beat at micros.
func (s *Session) SetTempo(bpm float64, micros int64) {
	if bpm <= 0 {
		return
	}
	s.originBeat = s.BeatAtTime(micros, 0)
	s.originMicros = micros
	s.bpm = bpm
}

func (s *Session) IsPlaying() bool { return s.playing }

func (s *Session) SetIsPlaying(playing bool, _ int64) { s.playing = playing }

// RequestBeatAtTime moves the timeline so beat falls at micros.
func (s *Session) RequestBeatAtTime(beat float64, micros int64, _ float64) {
	s.originBeat = beat
	s.originMicros = micros
}
