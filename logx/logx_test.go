package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "debug").Cat("clock").With(Int("voice", 2))
	l.Debug("tick", Float64("beat", 1.5), Err(errors.New("boom")))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "tick", line["message"])
	assert.Equal(t, "clock", line["cat"])
	assert.Equal(t, float64(2), line["voice"])
	assert.Equal(t, 1.5, line["beat"])
	assert.Equal(t, "boom", line["err"])
	assert.Contains(t, line["caller"], "logx_test.go")
}

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "warn")
	l.Info("hidden")
	assert.Zero(t, buf.Len())
	assert.False(t, l.Enabled(LevelInfo))
	assert.True(t, l.Enabled(LevelError))
}

func TestZeroLoggerIsNop(t *testing.T) {
	var l Logger
	assert.NotPanics(t, func() { l.Error("nothing", String("k", "v")) })
	assert.False(t, l.Enabled(LevelError))
}

func TestNewWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "debug.log")
	l, closer, err := New(Config{Level: "info", File: path})
	require.NoError(t, err)
	l.Info("hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestValidLevel(t *testing.T) {
	assert.True(t, ValidLevel("debug"))
	assert.True(t, ValidLevel(""))
	assert.False(t, ValidLevel("loud"))
}

func TestThrottle(t *testing.T) {
	th := NewThrottle(0.0001, 1)
	ok, n := th.Allow("voice:bd")
	assert.True(t, ok)
	assert.Zero(t, n)

	ok, _ = th.Allow("voice:bd")
	assert.False(t, ok)
	ok, _ = th.Allow("voice:bd")
	assert.False(t, ok)

	// keys are independent
	ok, _ = th.Allow("voice:sn")
	assert.True(t, ok)

	th.Forget("voice:bd")
	ok, n = th.Allow("voice:bd")
	assert.True(t, ok)
	assert.Zero(t, n)

	var buf bytes.Buffer
	l := NewWriter(&buf, "debug")
	th.Log(l, LevelWarn, "x", "first")
	th.Log(l, LevelWarn, "x", "second")
	assert.Contains(t, buf.String(), "first")
	assert.NotContains(t, buf.String(), "second")
}
