package cli

import (
	"context"
	"errors"
	"fmt"

	"go-cycle/bridge"
	"go-cycle/clock"
	"go-cycle/config"
	"go-cycle/dirt"
	"go-cycle/logx"
	"go-cycle/midi"
	"go-cycle/tempo"
	"go-cycle/voicefile"
)

// Output names voices refer to.
const (
	OutputDirt = "dirt"
	OutputMIDI = "midi"
)

// Engine is the running system: transport, clock, bridge, outputs and the
// voice file loader, assembled from a config.
type Engine struct {
	Config *config.Config
	Log    logx.Logger

	Transport clock.Transport
	Clock     *clock.Clock
	Bridge    *bridge.Bridge
	Dirt      *dirt.Sender      // nil when disabled
	MIDI      *midi.Sender      // nil when disabled
	Ports     *midi.PortManager // nil when MIDI is disabled
	Loader    *voicefile.Loader

	input   *midi.Input
	closers []func() error
	closed  bool
}

// NewEngine builds every component cfg enables. Nothing runs until Start.
func NewEngine(cfg *config.Config, log logx.Logger) (*Engine, error) {
	e := &Engine{Config: cfg, Log: log}

	switch cfg.Transport.Kind {
	case config.TransportOSCSync:
		s, err := tempo.DialOSCSync(cfg.Transport.Listen, cfg.Transport.Master, cfg.Tempo, log)
		if err != nil {
			return nil, fmt.Errorf("oscsync transport: %w", err)
		}
		e.Transport = s
	default:
		e.Transport = tempo.NewLocal(cfg.Tempo)
	}

	e.Clock = clock.New(e.Transport, clock.Config{
		BeatsPerBar: cfg.BeatsPerBar,
		Grain:       cfg.GrainDuration(),
		Spin:        cfg.SpinDuration(),
		Logger:      log,
	})

	e.Bridge = bridge.New(e.Clock, bridge.Config{
		Slice:   cfg.Bridge.Slice,
		Latency: cfg.LatencyDuration(),
		Nudge:   cfg.Bridge.Nudge,
		Logger:  log,
	})

	if cfg.Dirt.Enabled {
		s, err := dirt.Dial(cfg.Dirt.Addr, log)
		if err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("dirt output: %w", err)
		}
		e.Dirt = s
		e.Bridge.AddOutput(OutputDirt, s)
		e.closers = append(e.closers, s.Close)
	}

	if cfg.MIDI.Enabled {
		e.Ports = midi.NewPortManager(log)
		e.MIDI = midi.NewSender(e.Ports.Output(cfg.MIDI.Port), log)
		e.Bridge.AddOutput(OutputMIDI, e.MIDI)
		unfollow := e.MIDI.Follow(e.Clock.Bus())
		e.closers = append(e.closers, e.MIDI.Close, func() error { unfollow(); return nil })

		if cfg.MIDI.InPort != "" {
			in, err := midi.ListenInput(cfg.MIDI.InPort)
			if err != nil {
				log.Warn("midi input unavailable", logx.String("port", cfg.MIDI.InPort), logx.Err(err))
			} else {
				e.input = in
				e.closers = append(e.closers, in.Close)
			}
		}
	}

	e.Loader = voicefile.NewLoader(cfg.Voices, e.Bridge.Replace, log)
	return e, nil
}

// Start loads the voices and starts every component. Background work stops
// when ctx is done. A voice file that fails to load is reported but does
// not stop the engine.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.Clock.Start(); err != nil {
		return err
	}
	if err := e.Bridge.Start(); err != nil {
		return err
	}
	if e.MIDI != nil {
		e.MIDI.Start()
		go e.Ports.Run(ctx)
	}
	if e.input != nil {
		go e.followInput(ctx)
	}

	if err := e.Loader.Load(); err != nil {
		e.Log.Warn("starting without voices", logx.Err(err))
	}
	go func() {
		if err := e.Loader.Watch(ctx); err != nil {
			e.Log.Error("voice watch ended", logx.Err(err))
		}
	}()

	e.Log.Info("engine started",
		logx.String("transport", e.Config.Transport.Kind),
		logx.Float64("tempo", e.Clock.Tempo()),
		logx.Any("outputs", e.Bridge.Outputs()))
	return nil
}

// followInput maps MIDI transport messages onto the clock.
func (e *Engine) followInput(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-e.input.Commands():
			if !ok {
				return
			}
			e.Log.Debug("midi transport", logx.String("cmd", t.String()))
			switch t {
			case midi.TransportStart, midi.TransportContinue:
				e.Clock.Play()
			case midi.TransportStop:
				e.Clock.Pause()
			}
		}
	}
}

// Close stops the clock, which closes the transport, waits for its loop to
// exit and then shuts the outputs down in reverse order of creation. It is
// safe to call more than once.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	errs := []error{e.Clock.Stop()}
	<-e.Clock.Done()
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i]())
	}
	return errors.Join(errs...)
}
