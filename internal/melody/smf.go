package melody

import (
	"fmt"
	"math"
	"sort"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const (
	ticksPerQuarterNote = 960 // Standard MIDI resolution
	ticksPerBar         = 4 * ticksPerQuarterNote
	melodyChannel       = 0
	bassChannel         = 1
	drumChannel         = 9
	bassProgram         = 33 // electric bass (finger)
	exportVelocity      = 100
	minExportTicks      = 1
)

// General MIDI percussion keys
const (
	drumKick     = 36
	drumSnare    = 38
	drumClosedHH = 42
	drumLowTom   = 43
	drumMidTom   = 47
	drumHighTom  = 50
)

// bassRoots walks I-V-vi-IV in C, one root per bar.
var bassRoots = [4]uint8{36, 43, 45, 41}

// ExportOption configures ToSMF.
type ExportOption func(*exportOptions)

type exportOptions struct {
	accompaniment bool
}

// WithAccompaniment adds a bass track and a drum track under the melody.
func WithAccompaniment() ExportOption {
	return func(o *exportOptions) { o.accompaniment = true }
}

type smfEvent struct {
	tick     uint32
	on       bool
	key      uint8
	velocity uint8
}

type noteEvents []smfEvent

func (e *noteEvents) add(start, length uint32, key, velocity uint8) {
	if length < minExportTicks {
		length = minExportTicks
	}
	*e = append(*e,
		smfEvent{tick: start, on: true, key: key, velocity: velocity},
		smfEvent{tick: start + length, key: key},
	)
}

func (e noteEvents) end() uint32 {
	var last uint32
	for _, ev := range e {
		last = max(last, ev.tick)
	}
	return last
}

// track renders the events on channel. A negative program leaves the
// channel's program alone.
func (e noteEvents) track(channel uint8, program int) smf.Track {
	// note-offs sort before note-ons on the same tick so repeated pitches retrigger
	sort.SliceStable(e, func(i, j int) bool {
		if e[i].tick != e[j].tick {
			return e[i].tick < e[j].tick
		}
		return !e[i].on && e[j].on
	})

	var track smf.Track
	if program >= 0 {
		track.Add(0, midi.ProgramChange(channel, uint8(program))) //nolint:gosec // program is 0-127
	}
	var lastTick uint32
	for _, ev := range e {
		delta := ev.tick - lastTick
		if ev.on {
			track.Add(delta, midi.NoteOn(channel, ev.key, ev.velocity))
		} else {
			track.Add(delta, midi.NoteOff(channel, ev.key))
		}
		lastTick = ev.tick
	}
	track.Close(0)
	return track
}

// ToSMF renders a melody as an SMF with a tempo track and the melody track
// on the genre's program. WithAccompaniment appends bass and drums.
func ToSMF(r *Response, opts ...ExportOption) (*smf.SMF, error) {
	var o exportOptions
	for _, opt := range opts {
		opt(&o)
	}

	bpm := r.Tempo
	if bpm <= 0 {
		bpm = defaultTempo
	}

	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(ticksPerQuarterNote)

	// Track 0: Tempo track
	var track0 smf.Track
	track0.Add(0, smf.MetaMeter(4, 4))
	track0.Add(0, smf.MetaTempo(float64(bpm)))
	track0.Close(0)
	if err := sm.Add(track0); err != nil {
		return nil, fmt.Errorf("error adding tempo track: %w", err)
	}

	lead := melodyEvents(r.Notes, bpm)
	if err := sm.Add(lead.track(melodyChannel, int(Program(InstrumentFor(r.Genre))))); err != nil {
		return nil, fmt.Errorf("error adding melody track: %w", err)
	}

	if !o.accompaniment {
		return sm, nil
	}
	total := lead.end()
	if err := sm.Add(bassEvents(total).track(bassChannel, bassProgram)); err != nil {
		return nil, fmt.Errorf("error adding bass track: %w", err)
	}
	if err := sm.Add(drumEvents(total, bpm).track(drumChannel, -1)); err != nil {
		return nil, fmt.Errorf("error adding drum track: %w", err)
	}
	return sm, nil
}

// melodyEvents places the notes on the tick grid, accenting notes that
// land on the first and third beat of a bar.
func melodyEvents(notes Sequence, bpm int) noteEvents {
	var events noteEvents
	var at float64
	for _, n := range notes {
		if n.Step > 0 {
			at += n.Step
		}
		start := secondsToTicks(at, bpm)
		key := uint8(n.Pitch) //nolint:gosec // pitch validated to 0-127
		events.add(start, secondsToTicks(n.Duration, bpm), key, exportVelocity+accent(start))
	}
	return events
}

func accent(tick uint32) uint8 {
	const window = ticksPerQuarterNote / 10
	pos := tick % ticksPerBar
	switch {
	case pos < window:
		return 15
	case pos > 2*ticksPerQuarterNote-window && pos < 2*ticksPerQuarterNote+window:
		return 10
	}
	return 0
}

// bassEvents plays the bar's root as two half notes until total.
func bassEvents(total uint32) noteEvents {
	const half = 2 * ticksPerQuarterNote

	var events noteEvents
	for bar, start := 0, uint32(0); start < total; bar, start = bar+1, start+ticksPerBar {
		root := bassRoots[bar%len(bassRoots)]
		events.add(start, half, root, 90)
		if start+half < total {
			events.add(start+half, half, root, 85)
		}
	}
	return events
}

// drumEvents plays a rock groove until total with a fill every fourth bar.
func drumEvents(total uint32, bpm int) noteEvents {
	const (
		beat   = ticksPerQuarterNote
		eighth = beat / 2
		tick16 = beat / 4
	)
	hit := secondsToTicks(0.1, bpm)
	ghost := secondsToTicks(0.05, bpm)

	hat := func(i int) uint8 {
		if i%2 == 0 {
			return 85
		}
		return 60
	}

	var events noteEvents
	for bar, start := 0, uint32(0); start < total; bar, start = bar+1, start+ticksPerBar {
		if (bar+1)%4 == 0 {
			for i := 0; i < 6; i++ {
				events.add(start+uint32(i)*eighth, hit, drumClosedHH, hat(i)) //nolint:gosec // i < 6
			}
			events.add(start, hit, drumKick, 100)
			events.add(start+beat, hit, drumSnare, 95)
			events.add(start+2*beat, hit, drumKick, 90)

			fill := start + 3*beat
			events.add(fill, hit, drumSnare, 110)
			events.add(fill+tick16, hit, drumHighTom, 100)
			events.add(fill+2*tick16, hit, drumMidTom, 110)
			events.add(fill+3*tick16, hit, drumLowTom, 120)
			continue
		}

		for i := 0; i < 8; i++ {
			at := start + uint32(i)*eighth //nolint:gosec // i < 8
			if at >= total {
				break
			}
			events.add(at, hit, drumClosedHH, hat(i))
		}
		for _, k := range []struct {
			at       uint32
			velocity uint8
		}{{0, 100}, {2 * beat, 100}, {2*beat + eighth, 90}} {
			if start+k.at >= total {
				break
			}
			events.add(start+k.at, hit, drumKick, k.velocity)
		}
		for _, at := range []uint32{beat, 3 * beat} {
			if start+at >= total {
				break
			}
			events.add(start+at, hit, drumSnare, 95)
		}
		if bar%2 == 1 && start+3*beat+3*tick16 < total {
			events.add(start+3*beat+3*tick16, ghost, drumSnare, 50)
		}
	}
	return events
}

// WriteSMF writes the melody to path as a Standard MIDI File.
func WriteSMF(path string, r *Response, opts ...ExportOption) error {
	sm, err := ToSMF(r, opts...)
	if err != nil {
		return err
	}
	if err := sm.WriteFile(path); err != nil {
		return fmt.Errorf("error writing MIDI file: %w", err)
	}
	return nil
}

// ReadSMF imports the first track carrying notes from a Standard MIDI File.
// Times are converted to seconds at the file's first tempo.
func ReadSMF(path string) (*Response, error) {
	rd, err := smf.ReadFile(path)
	if err != nil {
		return nil, fault.Wrap(err,
			fmsg.WithDesc("read midi file", fmt.Sprintf("Could not read MIDI file %s", path)),
			ftag.With(ftag.InvalidArgument))
	}

	mt, ok := rd.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, fault.New("unsupported SMF time format",
			fmsg.WithDesc("timecode smf", "Only metric (ticks per quarter note) MIDI files are supported."),
			ftag.With(ftag.InvalidArgument))
	}

	bpm := float64(defaultTempo)
	if tempoChanges := rd.TempoChanges(); len(tempoChanges) > 0 && tempoChanges[0].BPM > 0 {
		bpm = tempoChanges[0].BPM
	}
	secondsPerTick := 60.0 / (bpm * float64(uint16(mt)))

	resp := &Response{
		Tempo: int(math.Round(bpm)),
		Genre: defaultGenre,
	}

	for _, track := range rd.Tracks {
		notes, program, found := readTrack(track)
		if !found {
			continue
		}
		if program >= 0 {
			resp.Genre = genreForProgram(uint8(program)) //nolint:gosec // program is 0-127
		}
		var prev uint32
		for _, n := range notes {
			resp.Notes = append(resp.Notes, Note{
				Pitch:    int(n.key),
				Step:     float64(n.start-prev) * secondsPerTick,
				Duration: float64(n.end-n.start) * secondsPerTick,
			})
			prev = n.start
		}
		break
	}

	return resp, nil
}

type trackNote struct {
	key        uint8
	start, end uint32
}

func readTrack(track smf.Track) (notes []trackNote, program int, found bool) {
	program = -1
	open := make(map[uint8][]int) // key -> indexes into notes still sounding

	var currentTick uint32
	for _, ev := range track {
		currentTick += ev.Delta
		msg := midi.Message(ev.Message)

		var channel, key, velocity, prog uint8
		switch {
		case msg.GetProgramChange(&channel, &prog):
			if program < 0 {
				program = int(prog)
			}
		case msg.GetNoteOn(&channel, &key, &velocity) && velocity > 0:
			open[key] = append(open[key], len(notes))
			notes = append(notes, trackNote{key: key, start: currentTick, end: currentTick})
		case msg.GetNoteOff(&channel, &key, &velocity), msg.GetNoteOn(&channel, &key, &velocity):
			if idx := open[key]; len(idx) > 0 {
				notes[idx[0]].end = currentTick
				open[key] = idx[1:]
			}
		}
	}

	// notes never released last until the end of the track
	for _, idx := range open {
		for _, i := range idx {
			notes[i].end = currentTick
		}
	}

	return notes, program, len(notes) > 0
}

func genreForProgram(program uint8) string {
	for _, genre := range (InstrumentTable{}).Genres() {
		if Program(InstrumentFor(genre)) == program {
			return genre
		}
	}
	return defaultGenre
}

func secondsToTicks(sec float64, bpm int) uint32 {
	if sec <= 0 || math.IsNaN(sec) {
		return 0
	}
	return uint32(math.Round(sec * float64(bpm) * ticksPerQuarterNote / 60)) //nolint:gosec // bounded by melody length
}
