package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/icco/melodyplay/internal/config"
	"github.com/icco/melodyplay/internal/logging"
	"github.com/icco/melodyplay/internal/melody"
	"github.com/icco/melodyplay/internal/playback"
	"github.com/icco/melodyplay/internal/player"
)

// Output flags shared by play and browse.
var (
	outputFlag   string
	portFlag     string
	velocityFlag int
)

func addOutputFlags(c *cobra.Command) {
	c.Flags().StringVarP(&outputFlag, "output", "o", "", "sound output: synth, midi, virtual or none")
	c.Flags().StringVar(&portFlag, "port", "", "MIDI output port name (midi) or virtual port name (virtual)")
	c.Flags().IntVar(&velocityFlag, "velocity", 0, "note velocity 1-127")
}

// app is the wiring shared by commands that play melodies.
type app struct {
	cfg     *config.Config
	log     *log.Logger
	player  *player.Player
	closers []func() error
}

// loadConfig reads the config file and applies command line overrides.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return config.DefaultConfig(), nil
		}
		path = p
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if outputFlag != "" {
		cfg.Output = config.Output(outputFlag)
	}
	if portFlag != "" {
		if cfg.Output == config.OutputVirtual {
			cfg.VirtualPortName = portFlag
		} else {
			cfg.MIDIPort = portFlag
		}
	}
	if velocityFlag != 0 {
		cfg.Velocity = velocityFlag
	}
	return cfg, cfg.Validate()
}

// newApp loads config, sets up logging and opens the sound output. When a
// TUI will own the terminal, logs go to the debug file instead of stderr.
func newApp(tuiMode bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logOpts := logging.Options{Level: cfg.LogLevel}
	if tuiMode {
		if dir, err := config.Dir(); err == nil {
			logOpts.File = filepath.Join(dir, "debug.log")
		}
	}
	logger, closeLog, err := logging.New(logOpts)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: logger}
	a.closers = append(a.closers, closeLog)

	loader, closeOutput, err := openLoader(cfg, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.closers = append(a.closers, closeOutput)

	sched := playback.NewScheduler(
		playback.WithLogger(logger.WithPrefix("scheduler")),
		playback.WithVelocity(uint8(cfg.Velocity)), //nolint:gosec // validated 1-127
	)
	a.player = player.New(loader, sched,
		player.WithInstrumentTable(melody.NewInstrumentTable(cfg.Instruments)),
		player.WithVisualFallback(cfg.VisualFallback),
		player.WithLogger(logger.WithPrefix("player")),
	)

	logger.Debug("app ready", "output", cfg.Output, "velocity", cfg.Velocity)
	return a, nil
}

// Close tears down playback first, then the output and the log.
func (a *app) Close() error {
	var firstErr error
	if a.player != nil {
		if err := a.player.Close(); err != nil {
			firstErr = err
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing: %w", err)
		}
	}
	a.closers = nil
	return firstErr
}
