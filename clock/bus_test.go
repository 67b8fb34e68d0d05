package clock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusFanOut(t *testing.T) {
	b := NewBus()
	a, unsubA := b.Subscribe(2)
	c, unsubC := b.Subscribe(1)
	defer unsubA()

	b.Publish(Notice{Event: EventPlay})
	b.Publish(Notice{Event: EventStop})

	n := <-a
	assert.Equal(t, EventPlay, n.Event)
	assert.False(t, n.Time.IsZero())
	assert.Equal(t, EventStop, (<-a).Event)

	// full subscribers miss notices instead of blocking
	assert.Equal(t, EventPlay, (<-c).Event)
	assert.Empty(t, c)

	unsubC()
	unsubC()
	_, ok := <-c
	assert.False(t, ok)
	b.Publish(Notice{Event: EventPause})
	assert.Equal(t, EventPause, (<-a).Event)
}

func TestSystemEventString(t *testing.T) {
	assert.Equal(t, "all-notes-off", EventAllNotesOff.String())
	assert.Equal(t, "unknown", SystemEvent(99).String())
	assert.Equal(t, "fired", Fired.String())
}
