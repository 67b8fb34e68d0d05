package clock

import "errors"

var (
	// ErrStopped is returned when using a clock after Stop.
	ErrStopped = errors.New("clock: stopped")
	// ErrInvalidEvent is returned by Add for an empty name or nil func.
	ErrInvalidEvent = errors.New("clock: event needs a name and a func")
	// ErrCallbackPanic wraps a panic recovered from a callback.
	ErrCallbackPanic = errors.New("clock: callback panicked")
)

// Func is the payload of a scheduled event.
type Func func(Fire) error

// Fire describes one invocation of an event.
type Fire struct {
	Name string
	// Due is the ideal beat the event was scheduled for, without nudge.
	Due float64
	// Beat is the clock beat when the event fired.
	Beat float64
	Args []any
}

// EventState is the lifecycle of a scheduled event.
type EventState int

const (
	// Armed events wait for their due beat.
	Armed EventState = iota
	// Fired events ran and wait to be rescheduled.
	Fired
	// Done events fired once and are removed.
	Done
)

func (s EventState) String() string {
	switch s {
	case Armed:
		return "armed"
	case Fired:
		return "fired"
	case Done:
		return "done"
	}
	return "unknown"
}

type options struct {
	relative    bool
	once        bool
	passthrough bool
	persistent  bool
	nudge       float64
	repeat      float64
	args        []any
}

// Option configures Add.
type Option func(*options)

// Relative makes a Beats offset count from the event's last ideal beat (or
// from now for a new event) instead of being absolute.
func Relative() Option { return func(o *options) { o.relative = true } }

// Once removes the event after it fires.
func Once() Option { return func(o *options) { o.once = true } }

// Passthrough lets the event fire while the clock is paused.
func Passthrough() Option { return func(o *options) { o.passthrough = true } }

// Persistent keeps the event across Clear.
func Persistent() Option { return func(o *options) { o.persistent = true } }

// Nudge shifts when the event fires by beats, without changing its ideal
// beat.
func Nudge(beats float64) Option { return func(o *options) { o.nudge = beats } }

// Repeat re-arms the event every period beats after it fires.
func Repeat(period float64) Option { return func(o *options) { o.repeat = period } }

// Args attaches arguments passed to the func in Fire.Args.
func Args(args ...any) Option { return func(o *options) { o.args = args } }

// event is one entry of the clock's table. Guarded by Clock.mu.
type event struct {
	name        string
	fn          Func
	args        []any
	ideal       float64
	nudge       float64
	once        bool
	passthrough bool
	persistent  bool
	repeat      float64
	state       EventState
	// gen changes on every reschedule so the loop can tell whether an event
	// was replaced while its callback ran.
	gen      uint64
	seq      uint64
	fires    int
	failures int
	lastErr  error
}

func (e *event) due() float64 { return e.ideal + e.nudge }

// EventInfo is a snapshot of a scheduled event.
type EventInfo struct {
	Name        string
	Due         float64
	Nudge       float64
	Once        bool
	Passthrough bool
	Persistent  bool
	Repeat      float64
	State       EventState
	Fires       int
	Failures    int
	LastError   error
}

func (e *event) info() EventInfo {
	return EventInfo{
		Name:        e.name,
		Due:         e.ideal,
		Nudge:       e.nudge,
		Once:        e.once,
		Passthrough: e.passthrough,
		Persistent:  e.persistent,
		Repeat:      e.repeat,
		State:       e.state,
		Fires:       e.fires,
		Failures:    e.failures,
		LastError:   e.lastErr,
	}
}

// Handle refers to an event by name.
type Handle struct {
	c    *Clock
	name string
}

// Name returns the event name.
func (h Handle) Name() string { return h.name }

// Cancel removes the event.
func (h Handle) Cancel() { h.c.RemoveByName(h.name) }

// Info returns a snapshot of the event, if it still exists.
func (h Handle) Info() (EventInfo, bool) { return h.c.Event(h.name) }
