package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5*time.Millisecond, cfg.GrainDuration())
	assert.Equal(t, time.Millisecond, cfg.SpinDuration())
	assert.Equal(t, 100*time.Millisecond, cfg.LatencyDuration())
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseYAMLOverDefaults(t *testing.T) {
	src := `
tempo: 140
spin: 0s
transport:
  kind: oscsync
  master: 10.0.0.2:5776
dirt:
  enabled: false
midi:
  enabled: true
  port: IAC
`
	cfg, err := Parse("cfg.yaml", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, 140.0, cfg.Tempo)
	assert.Equal(t, 4.0, cfg.BeatsPerBar)
	assert.Equal(t, TransportOSCSync, cfg.Transport.Kind)
	assert.Equal(t, "127.0.0.1:0", cfg.Transport.Listen)
	assert.False(t, cfg.Dirt.Enabled)
	assert.Equal(t, "IAC", cfg.MIDI.Port)
	assert.Zero(t, cfg.SpinDuration())
	require.NoError(t, cfg.Validate())
}

func TestParseRejectsUnknownAndTrailing(t *testing.T) {
	_, err := Parse("cfg.yaml", []byte("tempo: 120\nbogus: 1\n"))
	assert.Error(t, err)

	_, err = Parse("cfg.json", []byte(`{"tempo": 120} {"tempo": 130}`))
	assert.Error(t, err)

	cfg, err := Parse("cfg.yaml", nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.Tempo = 5
	cfg.Grain = "fast"
	cfg.Transport.Kind = "link"
	cfg.Log.Level = "loud"
	cfg.Dirt.Enabled = false

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalid)
	for _, want := range []string{"tempo", "grain", "transport.kind", "log.level", "no output"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	for _, name := range []string{"cfg.yaml", "cfg.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "sub", name)
			cfg := Default()
			cfg.Tempo = 90
			cfg.Dirt.Enabled = false
			cfg.MIDI.Enabled = true

			require.NoError(t, cfg.Save(path))
			_, err := os.Stat(path)
			require.NoError(t, err)

			got, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, got)
		})
	}
}

func TestParseDurationField(t *testing.T) {
	d, err := ParseDurationField("x", " 250ms ")
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)

	_, err = ParseDurationField("x", "-1s")
	assert.Error(t, err)

	d, err = ParseDurationOrDefault("x", "", time.Second)
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)
}
