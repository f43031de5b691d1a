package cmd

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/icco/melodyplay/internal/melody"
)

var instrumentsCmd = &cobra.Command{
	Use:   "instruments",
	Short: "List the instrument used for each genre",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		instruments := melody.NewInstrumentTable(cfg.Instruments)

		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("GENRE", "INSTRUMENT", "GM PROGRAM")
		for _, genre := range instruments.Genres() {
			key := instruments.For(genre)
			t.Row(genre, string(key), strconv.Itoa(int(melody.Program(key))))
		}
		t.Row("(other)", string(melody.DefaultInstrument), strconv.Itoa(int(melody.Program(melody.DefaultInstrument))))

		fmt.Fprintln(cmd.OutOrStdout(), t.Render())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(instrumentsCmd)
}
