// Package dirt sends dispatches to a SuperDirt-style sampler over OSC.
package dirt

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/scgolang/osc"

	"go-cycle/bridge"
	"go-cycle/logx"
	"go-cycle/pattern"
)

// AddressPlay is the OSC address SuperDirt plays events from.
const AddressPlay = "/dirt/play"

// DefaultAddr is where SuperDirt listens by default.
const DefaultAddr = "127.0.0.1:57120"

type conn interface {
	Send(osc.Packet) error
	Close() error
}

// Sender writes one timetagged bundle per dispatch.
type Sender struct {
	conn conn
	log  logx.Logger
}

var _ bridge.Output = (*Sender)(nil)

// Dial connects to SuperDirt at addr.
func Dial(addr string, log logx.Logger) (*Sender, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "resolving dirt address")
	}
	c, err := osc.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, errors.Wrap(err, "dialing dirt")
	}
	s := &Sender{conn: c, log: log.Cat("dirt")}
	s.log.Info("dirt connected", logx.String("addr", raddr.String()))
	return s, nil
}

// Send bundles d for its dispatch time.
func (s *Sender) Send(d bridge.Dispatch) error {
	msg, err := Message(d)
	if err != nil {
		return err
	}
	b := osc.Bundle{
		Timetag: osc.FromTime(d.At),
		Packets: []osc.Packet{msg},
	}
	if err := s.conn.Send(b); err != nil {
		return errors.Wrapf(err, "sending %s", d.Voice)
	}
	s.log.Trace("sent", logx.String("voice", d.Voice), logx.Float64("cycle", d.Cycle))
	return nil
}

// Close closes the connection.
func (s *Sender) Close() error {
	return errors.Wrap(s.conn.Close(), "closing dirt connection")
}

// Message builds the /dirt/play message for d. The message carries cps,
// cycle, delta and orbit followed by the event's controls sorted by name.
// The channel of the voice selects the orbit unless an orbit control is set.
func Message(d bridge.Dispatch) (osc.Message, error) {
	controls, err := Controls(d.Value)
	if err != nil {
		return osc.Message{}, errors.Wrapf(err, "voice %s", d.Voice)
	}
	orbit := d.Channel
	if o, ok := controls["orbit"]; ok {
		if f, ok := pattern.ToFloat(o); ok {
			orbit = int(f)
		}
		delete(controls, "orbit")
	}

	args := []osc.Argument{
		osc.String("cps"), osc.Float(float32(d.CPS)),
		osc.String("cycle"), osc.Float(float32(d.Cycle)),
		osc.String("delta"), osc.Float(float32(d.Duration.Seconds())),
		osc.String("orbit"), osc.Int(int32(orbit)),
	}
	keys := make([]string, 0, len(controls))
	for k := range controls {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		arg, err := argument(controls[k])
		if err != nil {
			return osc.Message{}, errors.Wrapf(err, "control %s", k)
		}
		args = append(args, osc.String(k), arg)
	}
	return osc.Message{Address: AddressPlay, Arguments: args}, nil
}

// Controls turns an event value into SuperDirt controls. A string names a
// sample, with an optional ":n" index; a number is a note; a map is taken
// as is.
func Controls(v any) (map[string]any, error) {
	out := map[string]any{}
	switch x := v.(type) {
	case pattern.ValueMap:
		for k, e := range x {
			out[k] = e
		}
		if s, ok := out["s"].(string); ok {
			name, n, hasN := splitSample(s)
			out["s"] = name
			if _, set := out["n"]; hasN && !set {
				out["n"] = n
			}
		}
	case string:
		name, n, hasN := splitSample(x)
		out["s"] = name
		if hasN {
			out["n"] = n
		}
	default:
		f, ok := pattern.ToFloat(v)
		if !ok {
			return nil, fmt.Errorf("unsupported value %T", v)
		}
		out["n"] = f
	}
	return out, nil
}

func splitSample(s string) (string, float64, bool) {
	name, idx, ok := strings.Cut(s, ":")
	if !ok {
		return s, 0, false
	}
	n, err := strconv.ParseFloat(idx, 64)
	if err != nil {
		return s, 0, false
	}
	return name, n, true
}

func argument(v any) (osc.Argument, error) {
	switch x := v.(type) {
	case string:
		return osc.String(x), nil
	case bool:
		if x {
			return osc.Int(1), nil
		}
		return osc.Int(0), nil
	case int:
		return osc.Int(int32(x)), nil
	case int32:
		return osc.Int(x), nil
	case int64:
		return osc.Int(int32(x)), nil
	}
	f, ok := pattern.ToFloat(v)
	if !ok {
		return nil, fmt.Errorf("unsupported value %T", v)
	}
	return osc.Float(float32(f)), nil
}
