package voicefile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-cycle/bridge"
	"go-cycle/logx"
	"go-cycle/pattern"
)

const sample = `
voices:
  drums:
    pattern: "bd sd"
    controls:
      gain: "1 0.5"
  bass:
    pattern: "c3"
    output: midi
    channel: 2
    nudge: 5ms
    mute: true
`

func values(p pattern.Pattern) []any {
	var out []any
	for _, h := range p.Onsets(pattern.Arc(0, 1)) {
		out = append(out, h.Value)
	}
	return out
}

func TestParse(t *testing.T) {
	voices, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.Len(t, voices, 2)

	bass, drums := voices[0], voices[1]
	assert.Equal(t, "bass", bass.Name)
	assert.Equal(t, "midi", bass.Output)
	assert.Equal(t, 2, bass.Channel)
	assert.Equal(t, 5*time.Millisecond, bass.Nudge)
	assert.True(t, bass.Mute)
	assert.Equal(t, []any{"c3"}, values(bass.Pattern))

	assert.Equal(t, "dirt", drums.Output)
	assert.Equal(t, []any{
		pattern.ValueMap{"s": "bd", "gain": 1.0},
		pattern.ValueMap{"s": "sd", "gain": 0.5},
	}, values(drums.Pattern))
}

func TestParseErrors(t *testing.T) {
	tests := map[string]string{
		"unknown field":  "voices:\n  a:\n    pattern: bd\n    speed: 2\n",
		"missing":        "voices:\n  a:\n    output: dirt\n",
		"bad pattern":    "voices:\n  a:\n    pattern: \"[bd\"\n",
		"bad control":    "voices:\n  a:\n    pattern: bd\n    controls:\n      gain: \"<1\"\n",
		"bad nudge":      "voices:\n  a:\n    pattern: bd\n    nudge: soon\n",
		"not a document": "voices: [1, 2]\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(src))
			assert.Error(t, err)
		})
	}

	voices, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, voices)
}

type sink struct {
	mu     sync.Mutex
	calls  int
	voices []bridge.Voice
	err    error
}

func (s *sink) apply(v []bridge.Voice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.calls++
	s.voices = v
	return nil
}

func (s *sink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestLoaderKeepsPreviousOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voices.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	s := &sink{}
	l := NewLoader(path, s.apply, logx.Nop())

	require.NoError(t, l.Load())
	require.NoError(t, l.Load())
	assert.Equal(t, 1, s.count(), "unchanged content is skipped")

	require.NoError(t, os.WriteFile(path, []byte("voices:\n  a:\n    pattern: \"[\"\n"), 0o644))
	assert.Error(t, l.Load())
	assert.Len(t, s.voices, 2)
	loads, lastErr := l.Status()
	assert.Equal(t, 1, loads)
	assert.Error(t, lastErr)

	s.err = errors.New("unknown output")
	require.NoError(t, os.WriteFile(path, []byte("voices:\n  a:\n    pattern: bd\n"), 0o644))
	assert.Error(t, l.Load())
	assert.Equal(t, 1, s.count())

	s.err = nil
	require.NoError(t, l.Load())
	assert.Len(t, s.voices, 1)
	assert.Equal(t, path, l.Path())
}

func TestWatchReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voices.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	s := &sink{}
	l := NewLoader(path, s.apply, logx.Nop())
	require.NoError(t, l.Load())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Watch(ctx) }()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("voices:\n  a:\n    pattern: bd\n"), 0o644))
	require.Eventually(t, func() bool { return s.count() == 2 }, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}
