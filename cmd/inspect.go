package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/icco/melodyplay/internal/melody"
	"github.com/icco/melodyplay/internal/playback"
)

var simulateFlag bool

var inspectCmd = &cobra.Command{
	Use:   "inspect FILE",
	Short: "Print a melody's timeline",
	Long: `Print every note of a melody with its name and absolute start and end times.

With --simulate the melody is run through the playback scheduler on a virtual clock
and the observed "current note" transitions are printed instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().BoolVar(&simulateFlag, "simulate", false, "run the scheduler on a virtual clock")
	rootCmd.AddCommand(inspectCmd)
}

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))

func runInspect(cmd *cobra.Command, args []string) error {
	mel, err := melody.LoadFile(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s genre=%s instrument=%s tempo=%d notes=%d\n\n",
		headerStyle.Render(args[0]), mel.Genre, melody.InstrumentFor(mel.Genre), mel.Tempo, len(mel.Notes))

	if simulateFlag {
		transitions, played, err := simulate(mel.Notes)
		if err != nil {
			return err
		}
		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("TIME", "CURRENT", "NOTE")
		for _, tr := range transitions {
			t.Row(formatSeconds(tr.at), tr.current, tr.note)
		}
		fmt.Fprintln(out, t.Render())
		fmt.Fprintf(out, "%d notes sounded\n", played)
		return nil
	}

	starts, end := playback.Timeline(mel.Notes)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "NOTE", "PITCH", "START", "DURATION", "END")
	for i, n := range mel.Notes {
		t.Row(
			strconv.Itoa(i+1),
			n.Name(),
			strconv.Itoa(n.Pitch),
			formatSeconds(starts[i]),
			fmt.Sprintf("%.3fs", n.Duration),
			formatSeconds(starts[i]+time.Duration(n.Duration*float64(time.Second))),
		)
	}
	fmt.Fprintln(out, t.Render())
	fmt.Fprintf(out, "ends at %s\n", formatSeconds(end))
	return nil
}

type transition struct {
	at      time.Duration
	current string
	note    string
}

// countingInstrument counts play calls during a simulation.
type countingInstrument struct{ plays int }

func (c *countingInstrument) Play(string, uint8, time.Duration) { c.plays++ }

func (c *countingInstrument) Stop() {}

// simulate runs seq through a scheduler on a manual clock, sampling the
// current note at every scheduled instant.
func simulate(seq melody.Sequence) ([]transition, int, error) {
	clock := playback.NewManualClock(time.Unix(0, 0))
	sched := playback.NewScheduler(playback.WithClock(clock))
	inst := &countingInstrument{}

	if err := sched.Start(seq, inst); err != nil {
		return nil, 0, err
	}
	defer sched.Close()

	starts, end := playback.Timeline(seq)
	instants := append(append([]time.Duration{}, starts...), end)
	sort.Slice(instants, func(i, j int) bool { return instants[i] < instants[j] })

	var out []transition
	var elapsed time.Duration
	last := -2
	for _, at := range instants {
		clock.Advance(at - elapsed)
		elapsed = at

		cur := sched.CurrentNote()
		if cur == last {
			continue
		}
		last = cur
		if cur == playback.NoNote {
			out = append(out, transition{at: at, current: "none", note: "-"})
			continue
		}
		out = append(out, transition{at: at, current: strconv.Itoa(cur), note: seq[cur].Name()})
	}
	return out, inst.plays, nil
}

func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.3fs", d.Seconds())
}
