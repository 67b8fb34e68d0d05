package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-cycle/bridge"
	"go-cycle/clock"
	"go-cycle/midi"
	"go-cycle/theme"
	"go-cycle/voicefile"
	"go-cycle/widgets"
)

// frameRate is how often the position display refreshes
const frameRate = 50 * time.Millisecond

// tempoStep is the +/- tempo increment in bpm
const tempoStep = 1.0

var keys = []widgets.KeyBinding{
	{Key: "p", Desc: "play/pause"},
	{Key: "+/-", Desc: "tempo"},
	{Key: "1-9", Desc: "mute"},
	{Key: "c", Desc: "clear"},
	{Key: "q", Desc: "quit"},
}

type Model struct {
	Clock  *clock.Clock
	Bridge *bridge.Bridge
	Ports  *midi.PortManager // may be nil
	Loader *voicefile.Loader // may be nil
	Theme  *theme.Theme

	notices     <-chan clock.Notice
	unsubscribe func()
	state       clock.State
	voices      []bridge.Voice
	events      []clock.EventInfo
	last        string // last transport or port notice
	quitting    bool
}

type FrameMsg time.Time

type NoticeMsg clock.Notice

type PortEventMsg midi.PortEvent

// NewModel subscribes to the clock's bus. Call Close when the program ends.
func NewModel(c *clock.Clock, b *bridge.Bridge, ports *midi.PortManager, loader *voicefile.Loader, th *theme.Theme) Model {
	if th == nil {
		th = theme.New(nil)
	}
	ch, unsub := c.Bus().Subscribe(16)
	m := Model{
		Clock:       c,
		Bridge:      b,
		Ports:       ports,
		Loader:      loader,
		Theme:       th,
		notices:     ch,
		unsubscribe: unsub,
	}
	m.refresh()
	return m
}

// Close releases the bus subscription.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

func ListenForNotices(ch <-chan clock.Notice) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return NoticeMsg(n)
	}
}

func ListenForPorts(pm *midi.PortManager) tea.Cmd {
	if pm == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-pm.Events()
		if !ok {
			return nil
		}
		return PortEventMsg(ev)
	}
}

func nextFrame() tea.Cmd {
	return tea.Tick(frameRate, func(t time.Time) tea.Msg { return FrameMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		ListenForNotices(m.notices),
		ListenForPorts(m.Ports),
		nextFrame(),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "p", " ":
			if m.Clock.Playing() {
				m.Clock.Pause()
			} else {
				m.Clock.Play()
			}

		case "+", "=":
			m.Clock.SetTempo(m.Clock.Tempo() + tempoStep)

		case "-", "_":
			m.Clock.SetTempo(max(m.Clock.Tempo()-tempoStep, tempoStep))

		case "c":
			m.Clock.Clear()

		case "1", "2", "3", "4", "5", "6", "7", "8", "9":
			idx := int(msg.String()[0] - '1')
			if idx < len(m.voices) {
				v := m.voices[idx]
				m.Bridge.SetMute(v.Name, !v.Mute)
			}
		}
		m.refresh()

	case FrameMsg:
		m.refresh()
		return m, nextFrame()

	case NoticeMsg:
		n := clock.Notice(msg)
		m.last = fmt.Sprintf("%s @ %.2f", n.Event, n.Beat)
		m.refresh()
		return m, ListenForNotices(m.notices)

	case PortEventMsg:
		ev := midi.PortEvent(msg)
		if ev.Type == midi.PortConnected {
			m.last = "midi + " + ev.Port
		} else {
			m.last = "midi - " + ev.Port
		}
		return m, ListenForPorts(m.Ports)
	}

	return m, nil
}

func (m *Model) refresh() {
	m.state = m.Clock.Snapshot()
	m.events = m.Clock.Events()
	if m.Bridge != nil {
		m.voices = m.Bridge.Voices()
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	s := m.state

	// Styles
	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	warnStyle := lipgloss.NewStyle().Foreground(m.Theme.Warning())

	playState := string(m.Theme.Symbols.Paused) + " PAUSE"
	if s.Playing {
		playState = string(m.Theme.Symbols.Playing) + " PLAY"
	}
	header := headerStyle.Render(fmt.Sprintf("go-cycle  %s  %6.2fbpm  bar:%d  beat:%7.2f",
		playState, s.Tempo, int(s.Bar)+1, s.Beat))

	meter := widgets.RenderBeatMeter(m.Theme, s.Phase, s.BeatsPerBar, s.Playing)

	rows := make([]widgets.VoiceRow, 0, len(m.voices))
	for _, v := range m.voices {
		rows = append(rows, widgets.VoiceRow{Name: v.Name, Output: v.Output, Channel: v.Channel, Muted: v.Mute})
	}

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n  ")
	out.WriteString(meter)
	out.WriteString(dimStyle.Render(fmt.Sprintf("  phase %.2f", s.Phase)))
	out.WriteString("\n\n")
	out.WriteString(widgets.RenderVoices(m.Theme, rows))
	out.WriteString("\n\n")
	out.WriteString(dimStyle.Render(m.eventLine()))

	if m.Loader != nil {
		if _, err := m.Loader.Status(); err != nil {
			out.WriteString("\n")
			out.WriteString(warnStyle.Render("  " + err.Error()))
		}
	}
	if m.Ports != nil {
		out.WriteString("\n")
		out.WriteString(dimStyle.Render("  midi: " + strings.Join(m.Ports.Ports(), ", ")))
	}
	if m.last != "" {
		out.WriteString("\n")
		out.WriteString(dimStyle.Render("  " + m.last))
	}

	out.WriteString("\n\n")
	out.WriteString(dimStyle.Render(widgets.RenderKeyHelp(keys)))

	return out.String()
}

// eventLine summarizes the clock's event table
func (m Model) eventLine() string {
	names := make([]string, 0, len(m.events))
	failures := 0
	for _, e := range m.events {
		names = append(names, e.Name)
		failures += e.Failures
	}
	line := fmt.Sprintf("  events: %d", len(m.events))
	if len(names) > 0 {
		line += " (" + strings.Join(names, " ") + ")"
	}
	if failures > 0 {
		line += fmt.Sprintf("  failures: %d", failures)
	}
	return line
}
