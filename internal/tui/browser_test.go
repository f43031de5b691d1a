package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/icco/melodyplay/internal/melody"
)

func press(m Model, key tea.KeyMsg) Model {
	next, _ := m.Update(key)
	return next.(Model)
}

var (
	downKey  = tea.KeyMsg{Type: tea.KeyDown}
	upKey    = tea.KeyMsg{Type: tea.KeyUp}
	enterKey = tea.KeyMsg{Type: tea.KeyEnter}
)

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestFileBrowserViewport(t *testing.T) {
	testDir := t.TempDir()

	// Create 30 melody files
	for i := 0; i < 30; i++ {
		filename := filepath.Join(testDir, fmt.Sprintf("melody_%02d.json", i))
		if err := os.WriteFile(filename, []byte(`{"notes":[]}`), 0600); err != nil {
			t.Fatalf("Error creating test file: %v", err)
		}
	}

	m := NewBrowser(context.Background(), &fakeController{}, testDir)
	m.height = 20 // Simulate a terminal height

	if len(m.fileBrowser.files) != 31 {
		t.Fatalf("Expected 31 entries including the parent, got %d", len(m.fileBrowser.files))
	}
	if m.fileBrowser.viewportTop != 0 {
		t.Errorf("Expected viewportTop to be 0, got %d", m.fileBrowser.viewportTop)
	}

	maxVisibleLines := m.visibleLines()
	if maxVisibleLines != 11 {
		t.Fatalf("Expected 11 visible lines, got %d", maxVisibleLines)
	}

	// Move cursor past the visible area
	for i := 0; i < maxVisibleLines+4; i++ {
		m = press(m, downKey)
	}
	if m.fileBrowser.cursor != 15 {
		t.Fatalf("Expected cursor 15, got %d", m.fileBrowser.cursor)
	}
	if want := m.fileBrowser.cursor - maxVisibleLines + 1; m.fileBrowser.viewportTop != want {
		t.Errorf("Expected viewportTop to be %d, got %d", want, m.fileBrowser.viewportTop)
	}

	// Move cursor back above the viewport
	for m.fileBrowser.cursor > 2 {
		m = press(m, upKey)
	}
	if m.fileBrowser.viewportTop != 2 {
		t.Errorf("Expected viewportTop to be 2, got %d", m.fileBrowser.viewportTop)
	}

	if view := m.viewFileBrowser(); view == "" {
		t.Error("Expected non-empty view")
	}
}

func TestFileBrowserListsMelodyFilesOnly(t *testing.T) {
	testDir := t.TempDir()
	for _, name := range []string{"a.json", "b.mid", "c.MIDI", "notes.txt", ".hidden.json"} {
		if err := os.WriteFile(filepath.Join(testDir, name), nil, 0600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(testDir, "songs"), 0750); err != nil {
		t.Fatal(err)
	}

	m := NewBrowser(context.Background(), &fakeController{}, testDir)

	var names []string
	for _, f := range m.fileBrowser.files {
		names = append(names, f.name)
	}
	want := []string{"..", "a.json", "b.mid", "c.MIDI", "songs"}
	if fmt.Sprint(names) != fmt.Sprint(want) {
		t.Errorf("Expected %v, got %v", want, names)
	}
}

func TestFileBrowserLoadFilesResetsViewport(t *testing.T) {
	testDir := t.TempDir()
	subDir := filepath.Join(testDir, "subdir")
	if err := os.Mkdir(subDir, 0750); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		if err := os.WriteFile(filepath.Join(testDir, fmt.Sprintf("m%02d.json", i)), nil, 0600); err != nil {
			t.Fatal(err)
		}
	}

	m := NewBrowser(context.Background(), &fakeController{}, testDir)
	m.height = 10
	for i := 0; i < 15; i++ {
		m = press(m, downKey)
	}
	if m.fileBrowser.viewportTop == 0 {
		t.Fatal("Expected the viewport to have scrolled")
	}

	// The subdirectory sorts last
	for m.fileBrowser.files[m.fileBrowser.cursor].name != "subdir" {
		m = press(m, downKey)
	}
	m = press(m, enterKey)

	if m.fileBrowser.currentDir != subDir {
		t.Errorf("Expected currentDir %s, got %s", subDir, m.fileBrowser.currentDir)
	}
	if m.fileBrowser.cursor != 0 || m.fileBrowser.viewportTop != 0 {
		t.Errorf("Expected cursor and viewport reset, got %d and %d", m.fileBrowser.cursor, m.fileBrowser.viewportTop)
	}
}

func TestFileBrowserOpensPlayer(t *testing.T) {
	testDir := t.TempDir()
	path := filepath.Join(testDir, "song.json")
	if err := os.WriteFile(path, nil, 0600); err != nil {
		t.Fatal(err)
	}

	mel := &melody.Response{Genre: "rock", Tempo: 100, Notes: melody.Sequence{{Pitch: 64, Duration: 0.5}}}
	ctrl := &fakeController{}
	m := NewBrowser(context.Background(), ctrl, testDir, WithLoader(func(string) (*melody.Response, error) {
		return mel, nil
	}))

	m = press(m, downKey) // skip ".."
	next, cmd := m.Update(enterKey)
	m = next.(Model)

	if m.mode != playerMode {
		t.Fatalf("Expected player mode, got %v", m.mode)
	}
	if m.player.path != path || m.player.melody != mel || !m.player.loading {
		t.Errorf("Unexpected player state: %+v", m.player)
	}
	if cmd == nil {
		t.Fatal("Expected a play command")
	}

	if msg := m.playCmd(mel)(); msg != (playResultMsg{}) {
		t.Errorf("Expected successful play result, got %+v", msg)
	}
	if len(ctrl.plays) != 1 || ctrl.plays[0] != mel {
		t.Errorf("Expected the melody to be played once, got %d plays", len(ctrl.plays))
	}

	// q returns to the browser
	m = press(m, runeKey('q'))
	if m.mode != fileBrowserMode {
		t.Errorf("Expected file browser mode after q, got %v", m.mode)
	}
	if ctrl.stops != 1 || ctrl.closed {
		t.Errorf("Expected a stop without close, got %d stops, closed=%v", ctrl.stops, ctrl.closed)
	}
}

func TestFileBrowserLoadError(t *testing.T) {
	testDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(testDir, "broken.json"), []byte("{"), 0600); err != nil {
		t.Fatal(err)
	}

	m := NewBrowser(context.Background(), &fakeController{}, testDir)
	m = press(m, downKey)
	m = press(m, enterKey)

	if m.mode != fileBrowserMode {
		t.Errorf("Expected to stay in the browser, got %v", m.mode)
	}
	if m.fileBrowser.message == "" {
		t.Error("Expected an error message")
	}
}
