package clock

import "math"

// State is a read-only snapshot of the clock's position.
type State struct {
	Beat        float64
	Bar         float64
	Phase       float64
	Tempo       float64
	BeatsPerBar float64
	Playing     bool
}

// NextBeat is the first whole beat strictly after the snapshot.
func (s State) NextBeat() float64 { return math.Floor(s.Beat) + 1 }

// NextBar is the first bar line strictly after the snapshot.
func (s State) NextBar() float64 {
	bpb := s.BeatsPerBar
	if bpb <= 0 {
		bpb = 1
	}
	return (math.Floor(s.Beat/bpb) + 1) * bpb
}

type whenKind int

const (
	whenNow whenKind = iota
	whenNextBeat
	whenNextBar
	whenBeats
	whenDeferred
)

// When says when an event is due. It is resolved against the clock state at
// the moment the event is added.
type When struct {
	kind  whenKind
	beats float64
	fn    func(State) float64
}

// Now is the current beat.
func Now() When { return When{kind: whenNow} }

// NextBeat is the next whole beat.
func NextBeat() When { return When{kind: whenNextBeat} }

// NextBar is the next bar line.
func NextBar() When { return When{kind: whenNextBar} }

// Beats is an absolute beat, or an offset when added with Relative.
func Beats(b float64) When { return When{kind: whenBeats, beats: b} }

// Deferred computes the due beat from the clock state when the event is
// added.
func Deferred(fn func(State) float64) When { return When{kind: whenDeferred, fn: fn} }

// resolve turns w into an absolute beat. base is the beat relative offsets
// accumulate on.
func (w When) resolve(s State, relative bool, base float64) float64 {
	switch w.kind {
	case whenNextBeat:
		return s.NextBeat()
	case whenNextBar:
		return s.NextBar()
	case whenBeats:
		if relative {
			return base + w.beats
		}
		return w.beats
	case whenDeferred:
		if w.fn == nil {
			return s.Beat
		}
		return w.fn(s)
	}
	return s.Beat
}
