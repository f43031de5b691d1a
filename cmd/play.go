package cmd

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/icco/melodyplay/internal/melody"
	"github.com/icco/melodyplay/internal/tui"
	"github.com/icco/melodyplay/internal/watch"
)

var (
	genreFlag string
	watchFlag bool
	noTUIFlag bool
)

var playCmd = &cobra.Command{
	Use:   "play FILE",
	Short: "Play a melody file",
	Long: `Play a melody document (JSON) or a Standard MIDI File.

The genre picks the instrument: rock plays on overdriven guitar, jazz on tenor sax,
classical on violin and everything else on piano. Use "-" to read JSON from stdin.

Example:
  melodyplay play melody.json
  melodyplay play melody.json --genre jazz --output midi --port "IAC Driver Bus 1"
  melodyplay play melody.json --no-tui --watch
`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

func init() {
	playCmd.Flags().StringVarP(&genreFlag, "genre", "g", "", "override the melody's genre")
	playCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "restart playback when the file changes")
	playCmd.Flags().BoolVar(&noTUIFlag, "no-tui", false, "play without the terminal view")
	addOutputFlags(playCmd)
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	path := args[0]
	if watchFlag && path == "-" {
		return errors.New("--watch needs a file, not stdin")
	}

	mel, err := loadMelody(path)
	if err != nil {
		return err
	}

	a, err := newApp(!noTUIFlag)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	var w *watch.Watcher
	if watchFlag {
		w, err = watch.New(path)
		if err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		defer func() { _ = w.Close() }()
	}

	ctx := cmd.Context()
	if noTUIFlag {
		return playHeadless(ctx, a, path, mel, w)
	}

	var opts []tui.Option
	opts = append(opts, tui.WithLoader(loadMelody))
	if w != nil {
		opts = append(opts, tui.WithReload(w.Events))
	}
	p := tea.NewProgram(tui.NewPlayer(ctx, a.player, path, mel, opts...), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}

// loadMelody reads a melody file and applies the --genre override.
func loadMelody(path string) (*melody.Response, error) {
	mel, err := melody.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if genreFlag != "" {
		mel.Genre = genreFlag
	}
	return mel, nil
}

// playHeadless plays until the melody ends or ctx is cancelled. With a
// watcher it keeps running and restarts on every change.
func playHeadless(ctx context.Context, a *app, path string, mel *melody.Response, w *watch.Watcher) error {
	a.log.Info("playing", "file", path, "genre", mel.Genre, "notes", len(mel.Notes), "tempo", mel.Tempo)
	if err := a.player.Play(ctx, mel); err != nil {
		return err
	}

	if w == nil {
		err := a.player.Wait(ctx)
		if errors.Is(err, context.Canceled) {
			a.log.Info("interrupted")
			return nil
		}
		return err
	}

	errs := w.Errors
	for {
		select {
		case <-ctx.Done():
			a.log.Info("interrupted")
			return nil
		case changed, ok := <-w.Events:
			if !ok {
				return nil
			}
			next, err := loadMelody(changed)
			if err != nil {
				a.log.Error("reload failed", "file", changed, "err", err)
				continue
			}
			a.log.Info("reloaded, restarting", "file", changed, "notes", len(next.Notes))
			if err := a.player.Play(ctx, next); err != nil {
				a.log.Error("restart failed", "err", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			a.log.Warn("watch error", "err", err)
		}
	}
}
