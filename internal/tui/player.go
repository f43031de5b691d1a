package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"

	"github.com/icco/melodyplay/internal/melody"
	"github.com/icco/melodyplay/internal/playback"
	"github.com/icco/melodyplay/internal/player"
)

const (
	stripCells   = 16 // notes shown in the strip
	stripLead    = 4  // notes kept visible before the current one
	progressBars = 48
)

// playerModel manages the player view state
type playerModel struct {
	path    string
	melody  *melody.Response
	status  player.Status
	loading bool
	message string

	// progress cursor, smoothed with a spring
	spring   harmonica.Spring
	progress float64
	velocity float64
}

func newPlayerModel() playerModel {
	fps := int(time.Second / tickInterval)
	return playerModel{
		spring: harmonica.NewSpring(harmonica.FPS(fps), 8.0, 1.0),
	}
}

func (p *playerModel) open(path string, mel *melody.Response) {
	p.path = path
	p.melody = mel
	p.message = ""
	p.progress = 0
	p.velocity = 0
	p.status = player.Status{Snapshot: playback.Snapshot{Current: playback.NoNote}}
}

// refresh takes a new status sample and advances the progress animation.
func (p *playerModel) refresh(st player.Status) {
	p.status = st

	target := 0.0
	if st.State == playback.Playing && st.Total > 0 {
		target = float64(st.Elapsed) / float64(st.Total)
	}
	p.progress, p.velocity = p.spring.Update(p.progress, p.velocity, target)
	if p.progress < 0 {
		p.progress = 0
	} else if p.progress > 1 {
		p.progress = 1
	}
}

func (m Model) updatePlayer(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p := &m.player

	switch msg.String() {
	case " ", "p":
		// Toggle playback
		if p.status.State == playback.Playing || p.loading {
			m.ctrl.Stop()
			p.status.State = playback.Idle
			p.status.Current = playback.NoNote
			return m, nil
		}
		if p.melody == nil {
			return m, nil
		}
		p.loading = true
		p.message = ""
		return m, m.playCmd(p.melody)
	case "r":
		// Restart from the first note
		if p.melody == nil {
			return m, nil
		}
		p.loading = true
		p.message = ""
		return m, m.playCmd(p.melody)
	case keyQuit, keyEsc:
		if m.standalone {
			return m, m.quit()
		}
		// Return to file browser, stopping playback
		m.ctrl.Stop()
		m.mode = fileBrowserMode
		return m, nil
	}

	return m, nil
}

func (m Model) viewPlayer() string {
	p := m.player

	var b strings.Builder

	b.WriteString(titleStyle.Render("Melody Player") + "\n\n")
	b.WriteString(fmt.Sprintf("File: %s\n", p.path))

	if p.melody != nil {
		b.WriteString(labelStyle.Render("Genre: ") + p.melody.Genre)
		if p.status.Instrument != "" {
			b.WriteString(labelStyle.Render("  Instrument: ") + string(p.status.Instrument))
		}
		b.WriteString(labelStyle.Render("  Tempo: ") + fmt.Sprintf("%d BPM", p.melody.Tempo))
		b.WriteString(labelStyle.Render("  Notes: ") + fmt.Sprintf("%d", len(p.melody.Notes)) + "\n")
	}

	switch {
	case p.loading:
		b.WriteString("Audio: loading instrument...\n\n")
	case !p.status.AudioAvailable():
		b.WriteString(errorStyle.Render("Audio unavailable: "+p.status.AudioErr.Error()) + "\n")
		b.WriteString(labelStyle.Render("Playing visuals only") + "\n\n")
	default:
		b.WriteString("Audio: ready\n\n")
	}

	if p.status.Session != "" {
		b.WriteString(labelStyle.Render("Session: "+p.status.Session) + "\n")
	}
	b.WriteString(renderProgress(p.progress, p.status) + "\n\n")

	if p.melody != nil {
		b.WriteString(renderNoteStrip(p.melody.Notes, p.status.Current) + "\n")
	}

	b.WriteString("\n")
	if p.message != "" {
		b.WriteString(errorStyle.Render(p.message) + "\n")
	}

	back := "q: back to files"
	if m.standalone {
		back = "q: quit"
	}
	b.WriteString("\n" + helpStyle.Render("space/p: play/stop • r: restart • "+back))

	return b.String()
}

// renderProgress draws the playback position as a bar with a play head.
func renderProgress(progress float64, st player.Status) string {
	playing := st.State == playback.Playing
	filled := int(progress * float64(progressBars))

	bar := strings.Builder{}
	bar.WriteString("Clock [")

	fillStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))
	headStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))

	for i := 0; i < progressBars; i++ {
		switch {
		case playing && i < filled:
			bar.WriteString(fillStyle.Render("█"))
		case playing && i == filled:
			bar.WriteString(headStyle.Render("▶"))
		default:
			bar.WriteString(dimStyle.Render("─"))
		}
	}
	bar.WriteString("]")

	status := " Stopped"
	statusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	if playing {
		status = fmt.Sprintf(" %.1fs / %.1fs Playing", st.Elapsed.Seconds(), st.Total.Seconds())
		statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")).Bold(true)
	}
	bar.WriteString(statusStyle.Render(status))

	return bar.String()
}

// renderNoteStrip shows a window of notes around the current one, with the
// sounding note highlighted.
func renderNoteStrip(notes melody.Sequence, current int) string {
	if len(notes) == 0 {
		return labelStyle.Render("(empty melody)")
	}

	start := 0
	if current != playback.NoNote && current > stripLead {
		start = current - stripLead
	}
	end := start + stripCells
	if end > len(notes) {
		end = len(notes)
		if start = end - stripCells; start < 0 {
			start = 0
		}
	}

	cellStyle := lipgloss.NewStyle().Width(5)
	currentStyle := cellStyle.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#7D56F4")).
		Bold(true)
	playedStyle := cellStyle.Foreground(lipgloss.Color("#666666"))
	upcomingStyle := cellStyle.Foreground(lipgloss.Color("#FFD700"))

	var index, names strings.Builder
	for i := start; i < end; i++ {
		index.WriteString(cellStyle.Render(fmt.Sprintf("%d", i+1)))

		name := notes[i].Name()
		switch {
		case i == current:
			names.WriteString(currentStyle.Render(name))
		case current != playback.NoNote && i < current:
			names.WriteString(playedStyle.Render(name))
		default:
			names.WriteString(upcomingStyle.Render(name))
		}
	}

	return labelStyle.Render(index.String()) + "\n" + names.String()
}
