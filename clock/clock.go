// Package clock schedules named callbacks in beat time against an external
// tempo transport.
//
// The timing loop runs on its own locked OS thread. Each iteration reads the
// transport, fires every due event in ascending due order and sleeps for the
// rest of the grain. The event table is shared with callers of Add and
// Remove and is guarded by a mutex; callbacks run with the lock released so
// they may reschedule themselves.
package clock

import (
	"fmt"
	"math"
	"reflect"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go-cycle/logx"
)

// Config tunes a Clock.
type Config struct {
	BeatsPerBar float64
	// Grain is the timing loop period.
	Grain time.Duration
	// Spin is the busy-wait window of each sleep; zero disables it.
	Spin   time.Duration
	Logger logx.Logger
}

const (
	DefaultBeatsPerBar = 4
	DefaultGrain       = 5 * time.Millisecond
	DefaultSpin        = time.Millisecond
)

// Clock is the beat scheduler.
type Clock struct {
	transport Transport
	bpb       float64
	grain     time.Duration
	sleeper   Sleeper
	log       logx.Logger
	throttle  *logx.Throttle
	bus       *Bus

	mu      sync.Mutex
	events  map[string]*event
	seq     uint64
	playing bool
	started bool

	stopping atomic.Bool
	done     chan struct{}
}

// New creates a stopped clock following t.
func New(t Transport, cfg Config) *Clock {
	if cfg.BeatsPerBar <= 0 {
		cfg.BeatsPerBar = DefaultBeatsPerBar
	}
	if cfg.Grain <= 0 {
		cfg.Grain = DefaultGrain
	}
	if cfg.Spin < 0 {
		cfg.Spin = 0
	}
	c := &Clock{
		transport: t,
		bpb:       cfg.BeatsPerBar,
		grain:     cfg.Grain,
		sleeper:   Sleeper{Spin: cfg.Spin},
		log:       cfg.Logger.Cat("clock"),
		throttle:  logx.NewThrottle(2, 4),
		bus:       NewBus(),
		events:    make(map[string]*event),
		done:      make(chan struct{}),
	}
	c.playing = t.CaptureSessionState().IsPlaying()
	return c
}

// Bus returns the system event bus.
func (c *Clock) Bus() *Bus { return c.bus }

// Done is closed once the timing loop has exited after Stop.
func (c *Clock) Done() <-chan struct{} { return c.done }

// BeatsPerBar returns the bar length used for quantization.
func (c *Clock) BeatsPerBar() float64 { return c.bpb }

// Start spawns the timing loop. Starting a running clock does nothing.
func (c *Clock) Start() error {
	c.mu.Lock()
	if c.stopping.Load() {
		c.mu.Unlock()
		return ErrStopped
	}
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.mu.Unlock()

	c.log.Info("clock started", logx.Duration("grain", c.grain), logx.Float64("bpb", c.bpb))
	go c.loop()
	c.publish(EventStart)
	return nil
}

// Stop ends the timing loop after its current iteration and releases the
// transport. It is terminal.
func (c *Clock) Stop() error {
	c.mu.Lock()
	if c.stopping.Swap(true) {
		c.mu.Unlock()
		return nil
	}
	started := c.started
	c.mu.Unlock()

	c.publish(EventStop)
	err := c.transport.Close()
	if !started {
		close(c.done)
	}
	c.log.Info("clock stopped")
	if err != nil {
		return fmt.Errorf("clock: close transport: %w", err)
	}
	return nil
}

// Play marks beat 0 at the current transport time and starts firing
// events. Pending events keep their distance to the playhead: their due
// beats are rebased onto the new beat 0 (clamped at 0) and they are armed
// again. Playing a playing clock does nothing.
func (c *Clock) Play() {
	c.mu.Lock()
	if c.playing {
		c.mu.Unlock()
		return
	}
	state := c.transport.CaptureSessionState()
	now := c.transport.NowMicros()
	old := state.BeatAtTime(now, c.bpb)
	state.RequestBeatAtTime(0, now, c.bpb)
	state.SetIsPlaying(true, now)
	c.transport.CommitSessionState(state)

	for _, ev := range c.events {
		ev.ideal = math.Max(ev.ideal-old, 0)
		ev.state = Armed
		ev.gen++
	}
	c.playing = true
	c.mu.Unlock()

	c.log.Info("play", logx.Float64("from_beat", old))
	c.publish(EventPlay)
}

// Pause stops firing events other than passthrough ones. Pausing a paused
// clock does nothing.
func (c *Clock) Pause() {
	c.mu.Lock()
	if !c.playing {
		c.mu.Unlock()
		return
	}
	state := c.transport.CaptureSessionState()
	state.SetIsPlaying(false, c.transport.NowMicros())
	c.transport.CommitSessionState(state)
	c.playing = false
	c.mu.Unlock()

	c.log.Info("pause")
	c.publish(EventPause)
}

// Playing reports whether events fire.
func (c *Clock) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// Add schedules fn under name. If name is already scheduled the entry is
// updated in place: fn and args are replaced, a Relative Beats offset
// accumulates on the last ideal beat and any other When overwrites the due
// beat. The event is armed again either way.
func (c *Clock) Add(name string, fn Func, when When, opts ...Option) (Handle, error) {
	if name == "" || fn == nil {
		return Handle{}, ErrInvalidEvent
	}
	if c.stopping.Load() {
		return Handle{}, ErrStopped
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	state := c.Snapshot()

	c.mu.Lock()
	defer c.mu.Unlock()
	ev, ok := c.events[name]
	if ok {
		ev.ideal = when.resolve(state, o.relative, ev.ideal)
		ev.fn = fn
		ev.args = o.args
		ev.nudge = o.nudge
		ev.once = o.once
		ev.passthrough = o.passthrough
		ev.persistent = o.persistent
		ev.repeat = o.repeat
		ev.state = Armed
		ev.gen++
		return Handle{c: c, name: name}, nil
	}
	c.seq++
	c.events[name] = &event{
		name:        name,
		fn:          fn,
		args:        o.args,
		ideal:       when.resolve(state, o.relative, state.Beat),
		nudge:       o.nudge,
		once:        o.once,
		passthrough: o.passthrough,
		persistent:  o.persistent,
		repeat:      o.repeat,
		state:       Armed,
		seq:         c.seq,
	}
	return Handle{c: c, name: name}, nil
}

// RemoveByName drops the event called name, if any.
func (c *Clock) RemoveByName(name string) {
	c.mu.Lock()
	delete(c.events, name)
	c.mu.Unlock()
	c.throttle.Forget(name)
}

// RemoveFunc drops every event whose payload is fn.
func (c *Clock) RemoveFunc(fn Func) int {
	if fn == nil {
		return 0
	}
	ptr := reflect.ValueOf(fn).Pointer()
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for name, ev := range c.events {
		if reflect.ValueOf(ev.fn).Pointer() == ptr {
			delete(c.events, name)
			n++
		}
	}
	return n
}

// Clear drops every event that is not persistent and asks outputs to
// silence sounding notes.
func (c *Clock) Clear() {
	c.mu.Lock()
	for name, ev := range c.events {
		if !ev.persistent {
			delete(c.events, name)
		}
	}
	c.mu.Unlock()
	c.publish(EventAllNotesOff)
}

// Event returns a snapshot of the named event.
func (c *Clock) Event(name string) (EventInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ev, ok := c.events[name]
	if !ok {
		return EventInfo{}, false
	}
	return ev.info(), true
}

// Events returns a snapshot of all events ordered by due beat.
func (c *Clock) Events() []EventInfo {
	c.mu.Lock()
	out := make([]EventInfo, 0, len(c.events))
	for _, ev := range c.events {
		out = append(out, ev.info())
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Due+out[i].Nudge != out[j].Due+out[j].Nudge {
			return out[i].Due+out[i].Nudge < out[j].Due+out[j].Nudge
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Snapshot reads the current position from the transport.
func (c *Clock) Snapshot() State {
	state := c.transport.CaptureSessionState()
	now := c.transport.NowMicros()
	beat := state.BeatAtTime(now, c.bpb)
	c.mu.Lock()
	playing := c.playing
	c.mu.Unlock()
	return State{
		Beat:        beat,
		Bar:         math.Floor(beat / c.bpb),
		Phase:       state.PhaseAtTime(now, c.bpb),
		Tempo:       state.Tempo(),
		BeatsPerBar: c.bpb,
		Playing:     playing,
	}
}

// Now is the current beat.
func (c *Clock) Now() float64 { return c.Beat() }

// Beat is the current beat.
func (c *Clock) Beat() float64 {
	return c.transport.CaptureSessionState().BeatAtTime(c.transport.NowMicros(), c.bpb)
}

// Bar is the current bar number.
func (c *Clock) Bar() float64 { return math.Floor(c.Beat() / c.bpb) }

// Phase is the position within the current bar, in beats.
func (c *Clock) Phase() float64 {
	return c.transport.CaptureSessionState().PhaseAtTime(c.transport.NowMicros(), c.bpb)
}

// Tempo is the transport tempo in BPM.
func (c *Clock) Tempo() float64 { return c.transport.CaptureSessionState().Tempo() }

// NextBeat is the next whole beat.
func (c *Clock) NextBeat() float64 { return c.Snapshot().NextBeat() }

// NextBar is the next bar line strictly after now.
func (c *Clock) NextBar() float64 { return c.Snapshot().NextBar() }

// SetTempo changes the transport tempo.
func (c *Clock) SetTempo(bpm float64) {
	if bpm <= 0 {
		return
	}
	state := c.transport.CaptureSessionState()
	state.SetTempo(bpm, c.transport.NowMicros())
	c.transport.CommitSessionState(state)
	c.log.Debug("tempo", logx.Float64("bpm", bpm))
}

// Transport returns the transport the clock follows.
func (c *Clock) Transport() Transport { return c.transport }

func (c *Clock) publish(e SystemEvent) {
	c.bus.Publish(Notice{Event: e, Beat: c.Beat()})
}

func (c *Clock) loop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(c.done)

	for !c.stopping.Load() {
		start := time.Now()
		c.tick()
		c.sleeper.Sleep(c.grain - time.Since(start))
	}
}

// job is a due event captured under the lock.
type job struct {
	ev    *event
	gen   uint64
	fn    Func
	fire  Fire
	order float64
	seq   uint64
}

// tick runs one iteration of the timing loop.
func (c *Clock) tick() {
	// Play and Pause commit under mu, so the snapshot is read under it too.
	c.mu.Lock()
	state := c.transport.CaptureSessionState()
	beat := state.BeatAtTime(c.transport.NowMicros(), c.bpb)
	playing := state.IsPlaying()
	changed := playing != c.playing
	// follow play state changes made by other session peers
	c.playing = playing

	var jobs []job
	for _, ev := range c.events {
		if ev.state != Armed || ev.due() > beat {
			continue
		}
		if !playing && !ev.passthrough {
			continue
		}
		ev.state = Fired
		jobs = append(jobs, job{
			ev:    ev,
			gen:   ev.gen,
			fn:    ev.fn,
			fire:  Fire{Name: ev.name, Due: ev.ideal, Beat: beat, Args: ev.args},
			order: ev.due(),
			seq:   ev.seq,
		})
	}
	c.mu.Unlock()

	if changed {
		c.log.Info("transport play state changed", logx.Bool("playing", playing))
		if playing {
			c.publish(EventPlay)
		} else {
			c.publish(EventPause)
		}
	}
	if len(jobs) == 0 {
		return
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].order != jobs[j].order {
			return jobs[i].order < jobs[j].order
		}
		return jobs[i].seq < jobs[j].seq
	})

	errs := make([]error, len(jobs))
	for i, j := range jobs {
		errs[i] = c.invoke(j)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, j := range jobs {
		ev := j.ev
		if c.events[ev.name] != ev || ev.gen != j.gen {
			// removed or rescheduled while running
			continue
		}
		ev.fires++
		if errs[i] != nil {
			ev.failures++
			ev.lastErr = errs[i]
		}
		switch {
		case ev.once:
			ev.state = Done
			delete(c.events, ev.name)
		case ev.repeat > 0:
			ev.ideal += ev.repeat
			if behind := beat - ev.due(); behind > ev.repeat {
				// skip periods missed during a stall instead of bursting
				ev.ideal += math.Floor(behind/ev.repeat) * ev.repeat
			}
			ev.state = Armed
		}
	}
}

func (c *Clock) invoke(j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrCallbackPanic, r)
		}
		if err != nil {
			c.throttle.Log(c.log, logx.LevelError, j.fire.Name, "event failed",
				logx.String("event", j.fire.Name),
				logx.Float64("due", j.fire.Due),
				logx.Err(err))
		}
	}()
	return j.fn(j.fire)
}
