// Package bridge turns patterns into timed dispatches. It runs as a
// repeating clock event that queries every voice one slice of beats at a
// time and hands each onset to the voice's output.
package bridge

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go-cycle/clock"
	"go-cycle/logx"
	"go-cycle/pattern"
)

// EventName is the clock event the bridge runs under.
const EventName = "bridge"

// DefaultSlice is the query window per tick, in beats.
const DefaultSlice = 0.125

var (
	// ErrUnknownOutput is returned for a voice naming an output that was
	// never registered.
	ErrUnknownOutput = errors.New("bridge: unknown output")
	// ErrInvalidVoice is returned for a voice without a name.
	ErrInvalidVoice = errors.New("bridge: voice needs a name")
)

// Dispatch is one onset ready to be sent.
type Dispatch struct {
	Voice   string
	Value   any
	Channel int
	// At is the wall time the event should sound.
	At       time.Time
	Duration time.Duration
	// CPS is cycles per second at dispatch.
	CPS   float64
	Cycle float64
}

// Output receives dispatches. Send must not block for long; outputs that
// need to wait until At queue the dispatch.
type Output interface {
	Send(Dispatch) error
}

// OutputFunc adapts a func to Output.
type OutputFunc func(Dispatch) error

func (f OutputFunc) Send(d Dispatch) error { return f(d) }

// Voice binds a pattern to an output.
type Voice struct {
	Name    string
	Pattern pattern.Pattern
	Output  string
	Channel int
	Nudge   time.Duration
	Mute    bool
}

// Config tunes a Bridge.
type Config struct {
	// Slice is the query window per tick, in beats.
	Slice float64
	// Latency delays every dispatch so outputs have time to schedule it.
	Latency time.Duration
	// Nudge moves the tick in beats; negative values render ahead of time.
	Nudge  float64
	Logger logx.Logger
}

// Bridge is the voice table and the tick that renders it.
type Bridge struct {
	clock    *clock.Clock
	slice    float64
	latency  time.Duration
	nudge    float64
	log      logx.Logger
	throttle *logx.Throttle

	mu      sync.RWMutex
	voices  map[string]Voice
	outputs map[string]Output

	// cursor is the next cycle to render. Only the tick touches it.
	cursor    pattern.Time
	hasCursor bool
	handle    clock.Handle
	started   bool
}

// New creates a bridge driven by c.
func New(c *clock.Clock, cfg Config) *Bridge {
	if cfg.Slice <= 0 {
		cfg.Slice = DefaultSlice
	}
	if cfg.Latency < 0 {
		cfg.Latency = 0
	}
	return &Bridge{
		clock:    c,
		slice:    cfg.Slice,
		latency:  cfg.Latency,
		nudge:    cfg.Nudge,
		log:      cfg.Logger.Cat("bridge"),
		throttle: logx.NewThrottle(1, 2),
		voices:   make(map[string]Voice),
		outputs:  make(map[string]Output),
	}
}

// AddOutput registers an output under name.
func (b *Bridge) AddOutput(name string, o Output) {
	b.mu.Lock()
	b.outputs[name] = o
	b.mu.Unlock()
}

// Outputs lists registered output names.
func (b *Bridge) Outputs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.outputs))
	for name := range b.outputs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Set adds or replaces a voice. The new pattern takes effect on the next
// tick.
func (b *Bridge) Set(v Voice) error {
	if v.Name == "" {
		return ErrInvalidVoice
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.outputs[v.Output]; !ok {
		return fmt.Errorf("%w %q for voice %q", ErrUnknownOutput, v.Output, v.Name)
	}
	b.voices[v.Name] = v
	return nil
}

// Replace swaps the whole voice table. Nothing changes if any voice is
// invalid.
func (b *Bridge) Replace(voices []Voice) error {
	next := make(map[string]Voice, len(voices))
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, v := range voices {
		if v.Name == "" {
			return ErrInvalidVoice
		}
		if _, ok := b.outputs[v.Output]; !ok {
			return fmt.Errorf("%w %q for voice %q", ErrUnknownOutput, v.Output, v.Name)
		}
		next[v.Name] = v
	}
	b.voices = next
	return nil
}

// Remove drops a voice. Removing an unknown voice does nothing.
func (b *Bridge) Remove(name string) {
	b.mu.Lock()
	delete(b.voices, name)
	b.mu.Unlock()
	b.throttle.Forget(name)
}

// SetMute mutes or unmutes a voice.
func (b *Bridge) SetMute(name string, mute bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.voices[name]
	if !ok {
		return false
	}
	v.Mute = mute
	b.voices[name] = v
	return true
}

// Voices returns the voice table ordered by name.
func (b *Bridge) Voices() []Voice {
	b.mu.RLock()
	out := make([]Voice, 0, len(b.voices))
	for _, v := range b.voices {
		out = append(out, v)
	}
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Start schedules the bridge tick on the clock from now on.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return nil
	}
	h, err := b.clock.Add(EventName, b.tick, clock.Now(),
		clock.Repeat(b.slice), clock.Persistent(), clock.Nudge(b.nudge))
	if err != nil {
		return fmt.Errorf("bridge: schedule tick: %w", err)
	}
	b.handle = h
	b.started = true
	b.log.Info("bridge started", logx.Float64("slice", b.slice), logx.Duration("latency", b.latency))
	return nil
}

// Stop removes the tick from the clock.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return
	}
	b.handle.Cancel()
	b.started = false
}

// tick renders [due, due+slice) beats. It follows its own ideal beat, so
// late firing does not shift the rendered window.
func (b *Bridge) tick(f clock.Fire) error {
	bpb := b.clock.BeatsPerBar()
	if !b.hasCursor || math.Abs(b.cursor.Float()*bpb-f.Due) > 1e-6 {
		b.cursor = pattern.FromFloat(f.Due / bpb)
		b.hasCursor = true
	}
	from := b.cursor
	to := from.Add(pattern.FromFloat(b.slice / bpb))
	b.cursor = to

	tr := b.clock.Transport()
	state := tr.CaptureSessionState()
	nowMicros := tr.NowMicros()
	wallNow := time.Now()
	at := func(cycle pattern.Time) time.Time {
		micros := state.TimeAtBeat(cycle.Float()*bpb, bpb)
		return wallNow.Add(time.Duration(micros-nowMicros) * time.Microsecond)
	}
	cps := state.Tempo() / 60 / bpb

	for _, d := range b.render(pattern.Span(from, to), cps, at) {
		b.send(d)
	}
	return nil
}

// render queries every unmuted voice over span and builds its dispatches in
// onset order.
func (b *Bridge) render(span pattern.TimeSpan, cps float64, at func(pattern.Time) time.Time) []Dispatch {
	b.mu.RLock()
	voices := make([]Voice, 0, len(b.voices))
	for _, v := range b.voices {
		if !v.Mute {
			voices = append(voices, v)
		}
	}
	b.mu.RUnlock()

	var out []Dispatch
	for _, v := range voices {
		haps, err := query(v.Pattern, span)
		if err != nil {
			b.throttle.Log(b.log, logx.LevelError, v.Name, "voice query failed",
				logx.String("voice", v.Name), logx.Err(err))
			continue
		}
		for _, h := range haps {
			whole := h.WholeOrPart()
			var dur time.Duration
			if cps > 0 {
				dur = time.Duration(whole.Duration().Float() / cps * float64(time.Second))
			}
			out = append(out, Dispatch{
				Voice:    v.Name,
				Value:    pattern.Resolve(h.Value),
				Channel:  v.Channel,
				At:       at(whole.Begin).Add(b.latency + v.Nudge),
				Duration: dur,
				CPS:      cps,
				Cycle:    whole.Begin.Float(),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

// query keeps a panicking pattern from taking the other voices down.
func query(p pattern.Pattern, span pattern.TimeSpan) (haps []pattern.Hap, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pattern panicked: %v", r)
		}
	}()
	return p.Onsets(span), nil
}

func (b *Bridge) send(d Dispatch) {
	b.mu.RLock()
	v, ok := b.voices[d.Voice]
	var o Output
	if ok {
		o = b.outputs[v.Output]
	}
	b.mu.RUnlock()
	if o == nil {
		return
	}
	if err := o.Send(d); err != nil {
		b.throttle.Log(b.log, logx.LevelWarn, d.Voice, "send failed",
			logx.String("voice", d.Voice), logx.Err(err))
	}
}
