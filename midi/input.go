package midi

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// Transport is a MIDI real-time transport message.
type Transport int

const (
	TransportStart Transport = iota
	TransportContinue
	TransportStop
)

func (t Transport) String() string {
	switch t {
	case TransportStart:
		return "start"
	case TransportContinue:
		return "continue"
	case TransportStop:
		return "stop"
	}
	return "unknown"
}

// real-time status bytes
const (
	statusStart    = 0xFA
	statusContinue = 0xFB
	statusStop     = 0xFC
)

// Input listens to a MIDI input port for transport messages, so a hardware
// sequencer can start and stop the clock.
type Input struct {
	port     string
	stopFunc func()
	commands chan Transport
}

// ListenInput opens the named input port
func ListenInput(port string) (*Input, error) {
	in, err := gomidi.FindInPort(port)
	if err != nil {
		return nil, fmt.Errorf("midi: find input %q: %w", port, err)
	}
	i := newInput(in.String())
	stop, err := gomidi.ListenTo(in, i.handle)
	if err != nil {
		return nil, fmt.Errorf("midi: open input %q: %w", port, err)
	}
	i.stopFunc = stop
	return i, nil
}

func newInput(port string) *Input {
	return &Input{port: port, commands: make(chan Transport, 8)}
}

func (i *Input) handle(msg gomidi.Message, _ int32) {
	if len(msg) != 1 {
		return
	}
	var t Transport
	switch msg[0] {
	case statusStart:
		t = TransportStart
	case statusContinue:
		t = TransportContinue
	case statusStop:
		t = TransportStop
	default:
		return
	}
	select {
	case i.commands <- t:
	default:
		// Drop if channel full
	}
}

// Port is the name of the input port.
func (i *Input) Port() string { return i.port }

// Commands delivers transport messages. It is closed by Close.
func (i *Input) Commands() <-chan Transport {
	return i.commands
}

func (i *Input) Close() error {
	if i.stopFunc != nil {
		i.stopFunc()
	}
	close(i.commands)
	return nil
}
