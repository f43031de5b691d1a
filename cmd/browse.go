package cmd

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/icco/melodyplay/internal/tui"
)

var browseCmd = &cobra.Command{
	Use:   "browse [DIR]",
	Short: "Browse for melody files and play them",
	Long: `Start the file browser with an interactive TUI interface.

The browser lists melody documents (.json) and MIDI files (.mid). Opening one
switches to the player view; leaving the player stops playback.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBrowse,
}

func init() {
	addOutputFlags(browseCmd)
	rootCmd.AddCommand(browseCmd)
}

func runBrowse(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	} else if home, err := os.UserHomeDir(); err == nil {
		dir = home
	}

	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx := cmd.Context()
	p := tea.NewProgram(tui.NewBrowser(ctx, a.player, dir), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}
