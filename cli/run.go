package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"go-cycle/config"
	"go-cycle/logx"
	"go-cycle/theme"
	"go-cycle/tui"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	Voices   string
	Headless bool
	Play     bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the clock and play the voice file",
		Long: `Start the clock, the pattern bridge and the configured outputs, load
the voice file and reload it whenever it changes. A terminal monitor shows
the clock position unless --headless is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(rootOpts, opts, cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Voices, "voices", "", "voice file (overrides config)")
	cmd.Flags().BoolVar(&opts.Headless, "headless", false, "run without the terminal monitor")
	cmd.Flags().BoolVar(&opts.Play, "play", false, "start playing immediately")
	return cmd
}

// LoadConfig reads and validates the config named by the root options,
// applying flag overrides.
func LoadConfig(root *RootOptions, run *RunOptions) (*config.Config, error) {
	cfg, err := config.Load(root.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}
	if root.LogLevel != "" {
		cfg.Log.Level = root.LogLevel
	}
	if run != nil && run.Voices != "" {
		cfg.Voices = run.Voices
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "config", err)
	}
	return cfg, nil
}

func runRun(root *RootOptions, opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := LoadConfig(root, opts)
	if err != nil {
		return err
	}

	logFile := cfg.Log.File
	if logFile == "" && !opts.Headless {
		// the monitor owns the terminal
		logFile = logx.DefaultFile()
	}
	log, closer, err := logx.New(logx.Config{
		Level:   cfg.Log.Level,
		Console: cfg.Log.Console || opts.Headless,
		File:    logFile,
	})
	if err != nil {
		return WrapExitError(ExitFailure, "logging", err)
	}
	defer closer.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	eng, err := NewEngine(cfg, log)
	if err != nil {
		return WrapExitError(ExitFailure, "start", err)
	}
	defer func() {
		if err := eng.Close(); err != nil {
			log.Warn("shutdown", logx.Err(err))
		}
	}()
	if err := eng.Start(ctx); err != nil {
		return WrapExitError(ExitFailure, "start", err)
	}
	if opts.Play {
		eng.Clock.Play()
	}

	if opts.Headless {
		fmt.Fprintf(cmd.OutOrStdout(), "go-cycle running, voices from %s (ctrl+c to quit)\n", eng.Loader.Path())
		<-ctx.Done()
		return nil
	}
	return runMonitor(ctx, eng, cfg)
}

func runMonitor(ctx context.Context, eng *Engine, cfg *config.Config) error {
	palette, err := theme.Load(cfg.Palette)
	if err != nil {
		eng.Log.Warn("palette unavailable, using default", logx.Err(err))
		palette = theme.Default()
	}
	m := tui.NewModel(eng.Clock, eng.Bridge, eng.Ports, eng.Loader, theme.New(palette))
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return WrapExitError(ExitFailure, "monitor", err)
	}
	return nil
}
