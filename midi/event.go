package midi

import "time"

// MIDI message types
const (
	NoteOn  uint8 = 0x90
	NoteOff uint8 = 0x80
	CC      uint8 = 0xB0
)

// CCAllNotesOff is the channel mode message that silences a channel.
const CCAllNotesOff uint8 = 123

// Event is a MIDI message waiting for its send time.
type Event struct {
	At       time.Time
	Type     uint8 // NoteOn, NoteOff, CC
	Channel  uint8 // 0-15
	Note     uint8 // note number or controller number
	Velocity uint8 // velocity or controller value
	seq      uint64
}

// eventQueue is a min-heap ordered by send time. At equal times note-offs
// go first so a repeated note retriggers.
type eventQueue []Event

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if !q[i].At.Equal(q[j].At) {
		return q[i].At.Before(q[j].At)
	}
	if pi, pj := priority(q[i].Type), priority(q[j].Type); pi != pj {
		return pi < pj
	}
	return q[i].seq < q[j].seq
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x any) { *q = append(*q, x.(Event)) }

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	ev := old[n-1]
	*q = old[:n-1]
	return ev
}

func priority(t uint8) int {
	switch t {
	case NoteOff:
		return 0
	case CC:
		return 1
	}
	return 2
}
