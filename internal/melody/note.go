// Package melody holds the note model of a generated melody and the
// conversions around it: note names, genre instruments and MIDI files.
package melody

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	minPitch       = 0
	maxPitch       = 127
	notesPerOctave = 12
)

var noteNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// ErrInvalidNoteName is returned when a note name cannot be parsed.
var ErrInvalidNoteName = errors.New("invalid note name")

// Note is a single musical event.
type Note struct {
	Pitch    int     `json:"pitch"`    // MIDI note number, 60 = middle C
	Step     float64 `json:"step"`     // seconds from the start of the previous note
	Duration float64 `json:"duration"` // seconds the note sounds
}

// Name returns the pitch-class and octave name of the note, e.g. "C#4".
func (n Note) Name() string {
	return PitchToNoteName(n.Pitch)
}

// Sequence is an ordered list of notes in playback order.
type Sequence []Note

// TotalDuration returns the time from the first note start to the end of
// the last note, following the step offsets.
func (s Sequence) TotalDuration() float64 {
	if len(s) == 0 {
		return 0
	}
	var at float64
	for _, n := range s {
		if n.Step > 0 {
			at += n.Step
		}
	}
	last := s[len(s)-1].Duration
	if last < 0 {
		last = 0
	}
	return at + last
}

// PitchToNoteName maps a MIDI pitch to a sharp-spelled note name with octave,
// using octave = floor(pitch/12) - 1 so that 60 is "C4".
func PitchToNoteName(pitch int) string {
	class := pitch % notesPerOctave
	octave := pitch / notesPerOctave
	if class < 0 {
		// floor division for negative input
		class += notesPerOctave
		octave--
	}
	return noteNames[class] + strconv.Itoa(octave-1)
}

// NoteNameToPitch parses names like "C4", "F#3", "Bb2" or "C-1" back into a
// MIDI pitch.
func NoteNameToPitch(name string) (int, error) {
	name = strings.TrimSpace(name)
	if len(name) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNoteName, name)
	}

	letter := strings.ToUpper(name[:1])
	class := -1
	for i, n := range noteNames {
		if n == letter {
			class = i
			break
		}
	}
	if class < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNoteName, name)
	}

	rest := name[1:]
	switch {
	case strings.HasPrefix(rest, "#"):
		class++
		rest = rest[1:]
	case strings.HasPrefix(rest, "b"):
		class--
		rest = rest[1:]
	}

	octave, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNoteName, name)
	}

	pitch := (octave+1)*notesPerOctave + class
	if pitch < minPitch || pitch > maxPitch {
		return 0, fmt.Errorf("%w: %q out of MIDI range", ErrInvalidNoteName, name)
	}
	return pitch, nil
}
