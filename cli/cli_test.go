package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-cycle/bridge"
	"go-cycle/config"
	"go-cycle/logx"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"run", "ports", "query"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
	flag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, "c", flag.Shorthand)
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "query", "bd", "--format", "xml")
	assert.Error(t, err)
}

func TestQueryText(t *testing.T) {
	out, err := execute(t, "query", "bd [~ sd]", "--cycles", "2")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, []string{"0", "1/2", "bd"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"3/4", "1", "sd"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"1", "3/2", "bd"}, strings.Fields(lines[2]))
}

func TestQueryJSON(t *testing.T) {
	out, err := execute(t, "query", "<1 2>", "-n", "2", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   []HapView `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, 1.0, resp.Data[0].Value)
	assert.Equal(t, 2.0, resp.Data[1].Value)
	assert.Equal(t, 1.0, resp.Data[1].Onset)
}

func TestQueryFragments(t *testing.T) {
	out, err := execute(t, "query", "bd/2", "--from", "1", "--fragments")
	require.NoError(t, err)
	assert.Contains(t, out, "bd")
	assert.Contains(t, out, "(1 → 2)")

	out, err = execute(t, "query", "bd/2", "--from", "1")
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(out))
}

func TestQueryErrors(t *testing.T) {
	_, err := execute(t, "query", "[bd")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "query", "bd", "--cycles", "0")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestPorts(t *testing.T) {
	orig := listPorts
	t.Cleanup(func() { listPorts = orig })

	listPorts = func() []string { return nil }
	out, err := execute(t, "ports")
	require.NoError(t, err)
	assert.Contains(t, out, "no MIDI output ports")

	listPorts = func() []string { return []string{"IAC Bus 1", "Synth"} }
	out, err = execute(t, "ports")
	require.NoError(t, err)
	assert.Equal(t, " 0  IAC Bus 1\n 1  Synth\n", out)

	out, err = execute(t, "ports", "--format", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok","data":["IAC Bus 1","Synth"]}`, out)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tempo: 5\n"), 0o644))

	_, err := LoadConfig(&RootOptions{ConfigPath: path}, nil)
	require.ErrorIs(t, err, config.ErrInvalid)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	require.NoError(t, os.WriteFile(path, []byte("tempo: 90\n"), 0o644))
	cfg, err := LoadConfig(&RootOptions{ConfigPath: path, LogLevel: "debug"}, &RunOptions{Voices: "live.yaml"})
	require.NoError(t, err)
	assert.Equal(t, 90.0, cfg.Tempo)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "live.yaml", cfg.Voices)
}

func TestEngineLoadsVoices(t *testing.T) {
	dir := t.TempDir()
	voices := filepath.Join(dir, "voices.yaml")
	require.NoError(t, os.WriteFile(voices, []byte("voices:\n  drums:\n    pattern: bd sd\n"), 0o644))

	cfg := config.Default()
	cfg.Voices = voices
	eng, err := NewEngine(cfg, logx.Nop())
	require.NoError(t, err)
	assert.Nil(t, eng.MIDI)
	assert.Equal(t, []string{OutputDirt}, eng.Bridge.Outputs())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, eng.Start(ctx))

	vs := eng.Bridge.Voices()
	require.Len(t, vs, 1)
	assert.Equal(t, "drums", vs[0].Name)
	_, ok := eng.Clock.Event(bridge.EventName)
	assert.True(t, ok)

	require.NoError(t, eng.Close())
	require.NoError(t, eng.Close())
	select {
	case <-eng.Clock.Done():
	default:
		t.Fatal("clock still running")
	}
}

func TestEngineStartsWithoutVoiceFile(t *testing.T) {
	cfg := config.Default()
	cfg.Voices = filepath.Join(t.TempDir(), "missing.yaml")
	eng, err := NewEngine(cfg, logx.Nop())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, eng.Start(ctx))
	assert.Empty(t, eng.Bridge.Voices())
	_, lastErr := eng.Loader.Status()
	assert.Error(t, lastErr)
	require.NoError(t, eng.Close())
}
