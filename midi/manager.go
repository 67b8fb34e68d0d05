package midi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver

	"go-cycle/logx"
)

// ErrNoPort is returned when sending to an output that is not connected.
var ErrNoPort = errors.New("midi: output port not connected")

// PortEvent is emitted when output ports appear or disappear
type PortEvent struct {
	Type PortEventType
	Port string
}

type PortEventType int

const (
	PortConnected PortEventType = iota
	PortDisconnected
)

// driver is the part of the MIDI system the manager needs
type driver interface {
	OutPorts() []string
	Open(name string) (send func(gomidi.Message) error, close func() error, err error)
}

type openPort struct {
	send  func(gomidi.Message) error
	close func() error
}

// PortManager tracks output ports and opens them on first use. A port that
// disappears is closed and reopened when it comes back.
type PortManager struct {
	drv      driver
	log      logx.Logger
	pollRate time.Duration
	events   chan PortEvent

	mu   sync.RWMutex
	seen map[string]bool
	open map[string]openPort
}

// NewPortManager creates a manager over the system MIDI driver
func NewPortManager(log logx.Logger) *PortManager {
	return newPortManager(systemDriver{}, log)
}

func newPortManager(drv driver, log logx.Logger) *PortManager {
	return &PortManager{
		drv:      drv,
		log:      log.Cat("midi"),
		pollRate: time.Second,
		events:   make(chan PortEvent, 16),
		seen:     make(map[string]bool),
		open:     make(map[string]openPort),
	}
}

// Events returns a channel of port connect/disconnect events
func (pm *PortManager) Events() <-chan PortEvent {
	return pm.events
}

// Ports returns the output ports seen by the last scan
func (pm *PortManager) Ports() []string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	out := make([]string, 0, len(pm.seen))
	for p := range pm.seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Run polls for port changes until ctx is done (blocking - run in goroutine)
func (pm *PortManager) Run(ctx context.Context) {
	ticker := time.NewTicker(pm.pollRate)
	defer ticker.Stop()

	pm.scan()
	for {
		select {
		case <-ctx.Done():
			pm.closeAll()
			close(pm.events)
			return
		case <-ticker.C:
			pm.scan()
		}
	}
}

func (pm *PortManager) scan() {
	// Port listing can hang on some systems
	ch := make(chan []string, 1)
	go func() { ch <- pm.drv.OutPorts() }()

	var ports []string
	select {
	case ports = <-ch:
	case <-time.After(3 * time.Second):
		pm.log.Warn("midi port scan timed out")
		return
	}

	now := make(map[string]bool, len(ports))
	for _, p := range ports {
		now[p] = true
	}

	var events []PortEvent
	pm.mu.Lock()
	for p := range now {
		if !pm.seen[p] {
			events = append(events, PortEvent{Type: PortConnected, Port: p})
		}
	}
	for p := range pm.seen {
		if !now[p] {
			events = append(events, PortEvent{Type: PortDisconnected, Port: p})
			if op, ok := pm.open[p]; ok {
				_ = op.close()
				delete(pm.open, p)
			}
		}
	}
	pm.seen = now
	pm.mu.Unlock()

	for _, ev := range events {
		if ev.Type == PortConnected {
			pm.log.Info("midi port connected", logx.String("port", ev.Port))
		} else {
			pm.log.Info("midi port disconnected", logx.String("port", ev.Port))
		}
		select {
		case pm.events <- ev:
		default:
		}
	}
}

// resolve matches name against the known ports: exactly, then as a case
// insensitive substring. An empty name picks the first port.
func (pm *PortManager) resolve(name string) (string, bool) {
	ports := pm.Ports()
	if len(ports) == 0 {
		ports = pm.drv.OutPorts()
		sort.Strings(ports)
	}
	if name == "" {
		if len(ports) == 0 {
			return "", false
		}
		return ports[0], true
	}
	for _, p := range ports {
		if p == name {
			return p, true
		}
	}
	lower := strings.ToLower(name)
	for _, p := range ports {
		if strings.Contains(strings.ToLower(p), lower) {
			return p, true
		}
	}
	return "", false
}

// getSender returns a sender for the port, lazily opening it
func (pm *PortManager) getSender(name string) (func(gomidi.Message) error, error) {
	port, ok := pm.resolve(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoPort, name)
	}

	pm.mu.RLock()
	op, ok := pm.open[port]
	pm.mu.RUnlock()
	if ok {
		return op.send, nil
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()
	// Double-check after acquiring write lock
	if op, ok := pm.open[port]; ok {
		return op.send, nil
	}
	send, closeFn, err := pm.drv.Open(port)
	if err != nil {
		return nil, fmt.Errorf("midi: open %q: %w", port, err)
	}
	pm.open[port] = openPort{send: send, close: closeFn}
	pm.log.Info("midi port opened", logx.String("port", port))
	return send, nil
}

// Output returns a send func for the named port. The port is looked up on
// every send, so the func keeps working across unplug and replug.
func (pm *PortManager) Output(name string) func(gomidi.Message) error {
	return func(msg gomidi.Message) error {
		send, err := pm.getSender(name)
		if err != nil {
			return err
		}
		return send(msg)
	}
}

func (pm *PortManager) closeAll() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	for p, op := range pm.open {
		_ = op.close()
		delete(pm.open, p)
	}
}

// OutPorts lists the system's MIDI output ports
func OutPorts() []string {
	return systemDriver{}.OutPorts()
}

type systemDriver struct{}

func (systemDriver) OutPorts() []string {
	var names []string
	for _, p := range gomidi.GetOutPorts() {
		names = append(names, p.String())
	}
	return names
}

func (systemDriver) Open(name string) (func(gomidi.Message) error, func() error, error) {
	out, err := gomidi.FindOutPort(name)
	if err != nil {
		return nil, nil, err
	}
	send, err := gomidi.SendTo(out)
	if err != nil {
		return nil, nil, err
	}
	return send, out.Close, nil
}
