package midi

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
	"runtime"
	"strings"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"

	"go-cycle/bridge"
	"go-cycle/clock"
	"go-cycle/logx"
	"go-cycle/pattern"
)

// DefaultVelocity is used when an event sets neither velocity nor gain.
const DefaultVelocity = 100

// ErrNotNote is returned for values that carry no note or controller.
var ErrNotNote = errors.New("midi: value has no note")

// Sender plays dispatches on a MIDI output. Messages wait in a time-ordered
// queue drained by a loop on a locked OS thread.
type Sender struct {
	send     func(gomidi.Message) error
	log      logx.Logger
	throttle *logx.Throttle
	now      func() time.Time

	mu    sync.Mutex
	queue eventQueue
	seq   uint64

	wake     chan struct{}
	stop     chan struct{}
	done     chan struct{}
	started  bool
	stopOnce sync.Once
}

var _ bridge.Output = (*Sender)(nil)

// NewSender creates a stopped sender writing through send.
func NewSender(send func(gomidi.Message) error, log logx.Logger) *Sender {
	return &Sender{
		send:     send,
		log:      log.Cat("midi"),
		throttle: logx.NewThrottle(1, 2),
		now:      time.Now,
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Send queues the messages for d: a note-on at d.At and its note-off after
// the event's duration, or a control change.
func (s *Sender) Send(d bridge.Dispatch) error {
	evs, err := Events(d)
	if err != nil {
		return err
	}
	s.mu.Lock()
	for _, ev := range evs {
		s.seq++
		ev.seq = s.seq
		heap.Push(&s.queue, ev)
	}
	s.mu.Unlock()
	s.interrupt()
	return nil
}

// Pending is the number of queued messages.
func (s *Sender) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Start runs the output loop.
func (s *Sender) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	go s.loop()
}

// Close stops the output loop and silences every channel.
func (s *Sender) Close() error {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.mu.Lock()
		started := s.started
		s.mu.Unlock()
		if started {
			<-s.done
		}
		s.AllNotesOff()
	})
	return nil
}

// Follow silences the output whenever the clock pauses, stops or clears.
// The returned func unsubscribes.
func (s *Sender) Follow(bus *clock.Bus) func() {
	ch, unsubscribe := bus.Subscribe(8)
	go func() {
		for n := range ch {
			switch n.Event {
			case clock.EventPause, clock.EventStop, clock.EventAllNotesOff:
				s.AllNotesOff()
			}
		}
	}()
	return unsubscribe
}

// AllNotesOff drops queued note-ons and control changes, sends the queued
// note-offs right away and then all-notes-off on every channel.
func (s *Sender) AllNotesOff() {
	s.mu.Lock()
	var offs []Event
	for s.queue.Len() > 0 {
		ev := heap.Pop(&s.queue).(Event)
		if ev.Type == NoteOff {
			offs = append(offs, ev)
		}
	}
	s.mu.Unlock()

	for _, ev := range offs {
		s.write(ev)
	}
	for ch := uint8(0); ch < 16; ch++ {
		s.write(Event{Type: CC, Channel: ch, Note: CCAllNotesOff})
	}
	s.log.Debug("all notes off", logx.Int("released", len(offs)))
}

func (s *Sender) interrupt() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Sender) loop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(s.done)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	for {
		wait, pending := s.drain(s.now())
		if !pending {
			select {
			case <-s.stop:
				return
			case <-s.wake:
			}
			continue
		}
		timer.Reset(wait)
		select {
		case <-s.stop:
			timer.Stop()
			return
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// drain writes every message due at now and reports how long until the
// next one.
func (s *Sender) drain(now time.Time) (time.Duration, bool) {
	s.mu.Lock()
	var due []Event
	for s.queue.Len() > 0 && !s.queue[0].At.After(now) {
		due = append(due, heap.Pop(&s.queue).(Event))
	}
	var wait time.Duration
	pending := s.queue.Len() > 0
	if pending {
		wait = s.queue[0].At.Sub(now)
	}
	s.mu.Unlock()

	for _, ev := range due {
		s.write(ev)
	}
	return wait, pending
}

func (s *Sender) write(ev Event) {
	if s.send == nil {
		return
	}
	var msg gomidi.Message
	switch ev.Type {
	case NoteOn:
		msg = gomidi.NoteOn(ev.Channel, ev.Note, ev.Velocity)
	case NoteOff:
		msg = gomidi.NoteOff(ev.Channel, ev.Note)
	case CC:
		msg = gomidi.ControlChange(ev.Channel, ev.Note, ev.Velocity)
	default:
		return
	}
	if err := s.send(msg); err != nil {
		s.throttle.Log(s.log, logx.LevelWarn, "send", "midi send failed", logx.Err(err))
		return
	}
	s.log.Trace("sent", logx.String("msg", msg.String()))
}

// Events converts a dispatch into MIDI messages.
//
// Numbers are note numbers and strings are note names such as "c4" or
// "f#3" (c4 is 60). Maps read note from "note" or "n", velocity from
// "velocity" (0-127) or "gain" (0-1), "legato" scales the note length and
// "channel" (1-16) overrides the voice channel. A map with "ccn" and "ccv"
// is a control change.
func Events(d bridge.Dispatch) ([]Event, error) {
	channel := d.Channel
	velocity := float64(DefaultVelocity)
	legato := 1.0
	var noteVal any

	switch v := d.Value.(type) {
	case pattern.ValueMap:
		if c, ok := pattern.ToFloat(v["channel"]); ok {
			channel = int(c)
		}
		if ccn, ok := pattern.ToFloat(v["ccn"]); ok {
			ccv, _ := pattern.ToFloat(v["ccv"])
			return []Event{{
				At:       d.At,
				Type:     CC,
				Channel:  channelByte(channel),
				Note:     clamp7(ccn),
				Velocity: clamp7(ccv),
			}}, nil
		}
		if vel, ok := pattern.ToFloat(v["velocity"]); ok {
			velocity = vel
		} else if g, ok := pattern.ToFloat(v["gain"]); ok {
			velocity = g * 127
		}
		if l, ok := pattern.ToFloat(v["legato"]); ok && l > 0 {
			legato = l
		}
		noteVal = v["note"]
		if noteVal == nil {
			noteVal = v["n"]
		}
	default:
		noteVal = v
	}

	note, err := noteNumber(noteVal)
	if err != nil {
		return nil, fmt.Errorf("voice %s: %w", d.Voice, err)
	}
	ch := channelByte(channel)
	vel := clamp7(velocity)
	if vel == 0 {
		return nil, nil
	}
	dur := time.Duration(float64(d.Duration) * legato)
	if dur <= 0 {
		dur = time.Millisecond
	}
	return []Event{
		{At: d.At, Type: NoteOn, Channel: ch, Note: note, Velocity: vel},
		{At: d.At.Add(dur), Type: NoteOff, Channel: ch, Note: note},
	}, nil
}

func channelByte(ch int) uint8 {
	if ch < 1 {
		ch = 1
	}
	if ch > 16 {
		ch = 16
	}
	return uint8(ch - 1)
}

func clamp7(f float64) uint8 {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f > 127 {
		return 127
	}
	return uint8(math.Round(f))
}

var noteOffsets = map[byte]int{'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11}

func noteNumber(v any) (uint8, error) {
	if f, ok := pattern.ToFloat(v); ok {
		return clamp7(f), nil
	}
	if s, ok := v.(string); ok {
		return NoteName(s)
	}
	return 0, fmt.Errorf("%w: %v", ErrNotNote, v)
}

// NoteName parses a note name: a letter a-g, any number of sharps ("#" or
// "s") or flats ("b" or "f") and an octave, 4 when omitted.
func NoteName(s string) (uint8, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return 0, fmt.Errorf("%w: empty name", ErrNotNote)
	}
	base, ok := noteOffsets[name[0]]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrNotNote, s)
	}
	i := 1
accidentals:
	for ; i < len(name); i++ {
		switch name[i] {
		case '#', 's':
			base++
		case 'b', 'f':
			base--
		default:
			break accidentals
		}
	}
	octave := 4
	if i < len(name) {
		if _, err := fmt.Sscanf(name[i:], "%d", &octave); err != nil {
			return 0, fmt.Errorf("%w: %q", ErrNotNote, s)
		}
	}
	return clamp7(float64((octave+1)*12 + base)), nil
}
