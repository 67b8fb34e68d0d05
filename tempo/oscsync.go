package tempo

import (
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/scgolang/osc"

	"go-cycle/clock"
	"go-cycle/logx"
)

// oscsync protocol addresses.
const (
	AddressPulse    = "/sync/pulse"
	AddressSlaveAdd = "/sync/slave/add"
	AddressTempo    = "/sync/tempo"
)

// MasterPort is the listening port of an oscsync master.
const MasterPort = 5776

// PulsesPerBar is the number of pulses in a 4/4 bar.
const PulsesPerBar = 96

const pulsesPerBeat = PulsesPerBar / 4

// Pulse holds the arguments of a /sync/pulse message.
type Pulse struct {
	Tempo float32
	Count int32
}

// PulseFromMessage reads a Pulse from an OSC message.
func PulseFromMessage(m osc.Message) (Pulse, error) {
	p := Pulse{}
	if expected, got := 2, len(m.Arguments); expected != got {
		return p, errors.Errorf("expected %d arguments, got %d", expected, got)
	}
	tempo, err := m.Arguments[0].ReadFloat32()
	if err != nil {
		return p, errors.Wrap(err, "reading tempo")
	}
	count, err := m.Arguments[1].ReadInt32()
	if err != nil {
		return p, errors.Wrap(err, "reading counter")
	}
	p.Tempo = tempo
	p.Count = count
	return p, nil
}

// OSCSync follows the pulses of an oscsync master. The master owns tempo
// and beat position; play state and the beat origin are local, kept as an
// offset from the master's beat count.
type OSCSync struct {
	conn   *osc.UDPConn
	master net.Addr
	log    logx.Logger
	epoch  time.Time
	now    func() int64

	mu     sync.Mutex
	sess   Session
	offset float64
	pulses int64

	closeOnce sync.Once
	served    chan error
}

var _ clock.Transport = (*OSCSync)(nil)

// DialOSCSync listens on listen, registers with the master at master and
// starts following its pulses.
func DialOSCSync(listen, master string, bpm float64, log logx.Logger) (*OSCSync, error) {
	laddr, err := net.ResolveUDPAddr("udp", listen)
	if err != nil {
		return nil, errors.Wrap(err, "resolving listen address")
	}
	raddr, err := net.ResolveUDPAddr("udp", master)
	if err != nil {
		return nil, errors.Wrap(err, "resolving master address")
	}
	conn, err := osc.ListenUDP("udp", laddr)
	if err != nil {
		return nil, errors.Wrap(err, "listening")
	}
	s := newOSCSync(bpm, log)
	s.conn = conn
	s.master = raddr

	go func() {
		s.served <- conn.Serve(1, osc.PatternMatching{
			AddressPulse: osc.Method(s.handle),
		})
	}()

	local := conn.LocalAddr().(*net.UDPAddr)
	if err := conn.SendTo(raddr, osc.Message{
		Address: AddressSlaveAdd,
		Arguments: []osc.Argument{
			osc.String(local.IP.String()),
			osc.Int(int32(local.Port)),
		},
	}); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "registering with master")
	}
	s.log.Info("following oscsync master",
		logx.String("master", raddr.String()),
		logx.String("listen", local.String()))
	return s, nil
}

func newOSCSync(bpm float64, log logx.Logger) *OSCSync {
	s := &OSCSync{
		log:    log.Cat("oscsync"),
		epoch:  time.Now(),
		served: make(chan error, 1),
	}
	s.now = func() int64 { return time.Since(s.epoch).Microseconds() }
	s.sess = NewSession(bpm, 0)
	return s
}

func (s *OSCSync) handle(m osc.Message) error {
	p, err := PulseFromMessage(m)
	if err != nil {
		s.log.Warn("bad pulse", logx.Err(err))
		return err
	}
	s.pulse(p, s.now())
	return nil
}

// pulse realigns the timeline on the master's count at micros.
func (s *OSCSync) pulse(p Pulse, micros int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	master := float64(p.Count) / pulsesPerBeat
	s.sess.originMicros = micros
	s.sess.originBeat = master - s.offset
	if p.Tempo > 0 {
		s.sess.bpm = float64(p.Tempo)
	}
	s.pulses++
}

// Pulses is the number of pulses received.
func (s *OSCSync) Pulses() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pulses
}

func (s *OSCSync) CaptureSessionState() clock.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sess
	return &sess
}

// CommitSessionState keeps a moved beat origin as an offset from the
// master and forwards tempo changes to the master.
func (s *OSCSync) CommitSessionState(state clock.SessionState) {
	next, ok := state.(*Session)
	if !ok {
		return
	}
	now := s.now()

	s.mu.Lock()
	cur := s.sess
	master := cur.BeatAtTime(now, 0) + s.offset
	s.offset = master - next.BeatAtTime(now, 0)
	tempoChanged := next.bpm != cur.bpm
	s.sess = *next
	s.mu.Unlock()

	if tempoChanged && s.conn != nil {
		err := s.conn.SendTo(s.master, osc.Message{
			Address:   AddressTempo,
			Arguments: []osc.Argument{osc.Float(float32(next.bpm))},
		})
		if err != nil {
			s.log.Warn("sending tempo", logx.Err(err))
		}
	}
}

func (s *OSCSync) NowMicros() int64 { return s.now() }

// Close stops listening. It waits for the server goroutine to exit.
func (s *OSCSync) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.conn == nil {
			return
		}
		if cerr := s.conn.Close(); cerr != nil {
			err = errors.Wrap(cerr, "closing connection")
			return
		}
		select {
		case <-s.served:
		case <-time.After(time.Second):
			s.log.Warn("osc server did not exit")
		}
	})
	return err
}
