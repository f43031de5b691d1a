package melody

import (
	"sort"
	"strings"
)

// InstrumentKey names a sound-producing voice.
type InstrumentKey string

const (
	AcousticGrandPiano InstrumentKey = "acoustic_grand_piano"
	OverdrivenGuitar   InstrumentKey = "overdriven_guitar"
	TenorSax           InstrumentKey = "tenor_sax"
	Violin             InstrumentKey = "violin"
)

// DefaultInstrument is used for unrecognized genres.
const DefaultInstrument = AcousticGrandPiano

var genreInstruments = map[string]InstrumentKey{
	"rock":      OverdrivenGuitar,
	"jazz":      TenorSax,
	"classical": Violin,
	"pop":       AcousticGrandPiano,
}

// General MIDI program numbers (0-based)
var programs = map[InstrumentKey]uint8{
	AcousticGrandPiano: 0,
	OverdrivenGuitar:   29,
	TenorSax:           66,
	Violin:             40,
}

// InstrumentTable maps genres to instrument keys. The zero value resolves
// with the built-in table only.
type InstrumentTable struct {
	overrides map[string]InstrumentKey
}

// NewInstrumentTable returns a table where overrides take precedence over
// the built-in genre mapping. Keys are matched case-insensitively.
func NewInstrumentTable(overrides map[string]string) InstrumentTable {
	t := InstrumentTable{overrides: make(map[string]InstrumentKey, len(overrides))}
	for genre, key := range overrides {
		if key == "" {
			continue
		}
		t.overrides[normalizeGenre(genre)] = InstrumentKey(key)
	}
	return t
}

// For returns the instrument key for a genre, defaulting to the piano.
func (t InstrumentTable) For(genre string) InstrumentKey {
	g := normalizeGenre(genre)
	if key, ok := t.overrides[g]; ok {
		return key
	}
	if key, ok := genreInstruments[g]; ok {
		return key
	}
	return DefaultInstrument
}

// Genres lists every genre the table knows about, sorted.
func (t InstrumentTable) Genres() []string {
	seen := make(map[string]bool)
	var out []string
	for g := range genreInstruments {
		seen[g] = true
		out = append(out, g)
	}
	for g := range t.overrides {
		if !seen[g] {
			out = append(out, g)
		}
	}
	sort.Strings(out)
	return out
}

// InstrumentFor resolves a genre with the built-in table.
func InstrumentFor(genre string) InstrumentKey {
	return InstrumentTable{}.For(genre)
}

// Program returns the General MIDI program for an instrument key. Unknown
// keys map to the piano program.
func Program(key InstrumentKey) uint8 {
	if p, ok := programs[key]; ok {
		return p
	}
	return programs[DefaultInstrument]
}

func normalizeGenre(genre string) string {
	return strings.ToLower(strings.TrimSpace(genre))
}
