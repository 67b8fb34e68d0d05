package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-cycle/bridge"
	"go-cycle/clock"
	"go-cycle/pattern"
	"go-cycle/tempo"
)

func newModel(t *testing.T) (Model, *clock.Clock, *bridge.Bridge) {
	t.Helper()
	var micros int64
	c := clock.New(tempo.NewManual(120, func() int64 { return micros }), clock.Config{BeatsPerBar: 4})
	b := bridge.New(c, bridge.Config{})
	b.AddOutput("dirt", bridge.OutputFunc(func(bridge.Dispatch) error { return nil }))
	require.NoError(t, b.Set(bridge.Voice{Name: "drums", Output: "dirt", Pattern: pattern.Pure("bd")}))
	m := NewModel(c, b, nil, nil, nil)
	t.Cleanup(m.Close)
	return m, c, b
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, s string) Model {
	t.Helper()
	next, _ := m.Update(key(s))
	return next.(Model)
}

func TestKeysDriveClock(t *testing.T) {
	m, c, b := newModel(t)

	m = press(t, m, "p")
	assert.True(t, c.Playing())
	assert.Contains(t, m.View(), "PLAY")

	m = press(t, m, "+")
	assert.Equal(t, 121.0, c.Tempo())
	m = press(t, m, "-")
	m = press(t, m, "-")
	assert.Equal(t, 119.0, c.Tempo())

	m = press(t, m, "1")
	assert.True(t, b.Voices()[0].Mute)
	m = press(t, m, "9")

	m = press(t, m, "p")
	assert.False(t, c.Playing())
	assert.Contains(t, m.View(), "PAUSE")

	next, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.Empty(t, next.View())
}

func TestClearKeepsPersistentEvents(t *testing.T) {
	m, c, b := newModel(t)
	require.NoError(t, b.Start())
	_, err := c.Add("once", func(clock.Fire) error { return nil }, clock.Beats(8))
	require.NoError(t, err)

	m = press(t, m, "c")
	assert.Len(t, c.Events(), 1)
	assert.Contains(t, m.View(), "events: 1 (bridge)")
}

func TestNoticeIsShown(t *testing.T) {
	m, _, _ := newModel(t)
	next, cmd := m.Update(NoticeMsg(clock.Notice{Event: clock.EventPlay, Beat: 0}))
	assert.NotNil(t, cmd)
	assert.Contains(t, next.View(), "play @ 0.00")
	assert.Contains(t, next.View(), "drums")
}
