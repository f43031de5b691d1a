package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// fileBrowserModel manages the file browser state
type fileBrowserModel struct {
	currentDir  string
	files       []fileInfo
	cursor      int
	viewportTop int
	message     string
}

type fileInfo struct {
	name  string
	path  string
	isDir bool
}

// isMelodyFile reports whether the player can open path.
func isMelodyFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".mid", ".midi":
		return true
	}
	return false
}

func (fb *fileBrowserModel) loadFiles() {
	fb.files = []fileInfo{}

	// Add parent directory entry
	if parent := filepath.Dir(fb.currentDir); parent != fb.currentDir {
		fb.files = append(fb.files, fileInfo{
			name:  "..",
			path:  parent,
			isDir: true,
		})
	}

	entries, err := os.ReadDir(fb.currentDir)
	if err != nil {
		fb.message = fmt.Sprintf("Error reading directory: %v", err)
		return
	}

	for _, entry := range entries {
		// Skip hidden files
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		if entry.IsDir() || isMelodyFile(entry.Name()) {
			fb.files = append(fb.files, fileInfo{
				name:  entry.Name(),
				path:  filepath.Join(fb.currentDir, entry.Name()),
				isDir: entry.IsDir(),
			})
		}
	}

	// Reset cursor if out of bounds
	if fb.cursor >= len(fb.files) && len(fb.files) > 0 {
		fb.cursor = len(fb.files) - 1
	}
	if fb.cursor < 0 {
		fb.cursor = 0
	}
	if fb.viewportTop > fb.cursor {
		fb.viewportTop = fb.cursor
	}
}

// visibleLines is how many entries fit under the header and help text.
func (m Model) visibleLines() int {
	lines := m.height - 9
	if lines < 5 {
		lines = 5
	}
	return lines
}

func (m Model) updateFileBrowser(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	fb := &m.fileBrowser
	maxVisible := m.visibleLines()

	switch msg.String() {
	case keyQuit:
		return m, m.quit()
	case keyUp, "k":
		if fb.cursor > 0 {
			fb.cursor--
		}
		if fb.cursor < fb.viewportTop {
			fb.viewportTop = fb.cursor
		}
	case keyDown, "j":
		if fb.cursor < len(fb.files)-1 {
			fb.cursor++
		}
		if fb.cursor >= fb.viewportTop+maxVisible {
			fb.viewportTop = fb.cursor - maxVisible + 1
		}
	case keyEnter:
		if len(fb.files) == 0 {
			return m, nil
		}

		selected := fb.files[fb.cursor]
		if selected.isDir {
			fb.currentDir = selected.path
			fb.cursor = 0
			fb.viewportTop = 0
			fb.message = ""
			fb.loadFiles()
			return m, nil
		}

		mel, err := m.load(selected.path)
		if err != nil {
			fb.message = fmt.Sprintf("Error loading melody: %v", err)
			return m, nil
		}
		fb.message = ""
		m.mode = playerMode
		m.player.open(selected.path, mel)
		m.player.loading = true
		return m, tea.Batch(m.playCmd(mel), tick())
	}

	return m, nil
}

func (m Model) viewFileBrowser() string {
	fb := m.fileBrowser

	var b strings.Builder
	b.WriteString(titleStyle.Render("MELODYPLAY - Melody Player") + "\n\n")
	b.WriteString(fmt.Sprintf("Current Directory: %s\n\n", fb.currentDir))

	if len(fb.files) == 0 {
		b.WriteString("No melody files or directories found.\n")
	} else {
		end := fb.viewportTop + m.visibleLines()
		if end > len(fb.files) {
			end = len(fb.files)
		}
		for i := fb.viewportTop; i < end; i++ {
			file := fb.files[i]
			cursor := " "
			if i == fb.cursor {
				cursor = ">"
			}

			name := file.name
			if file.isDir {
				name = dirStyle.Render(name + "/")
			} else {
				name = midiStyle.Render(name)
			}

			if i == fb.cursor {
				b.WriteString(selectedStyle.Render(fmt.Sprintf("%s %s", cursor, name)) + "\n")
			} else {
				b.WriteString(fmt.Sprintf("%s %s\n", cursor, name))
			}
		}
	}

	b.WriteString("\n")
	if fb.message != "" {
		b.WriteString(errorStyle.Render(fb.message) + "\n")
	}

	b.WriteString("\n" + helpStyle.Render("↑/k: up • ↓/j: down • enter: open • q: quit"))

	return b.String()
}
