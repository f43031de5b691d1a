package melody

import (
	"math"
	"path/filepath"
	"testing"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

func TestSMFRoundTrip(t *testing.T) {
	in := &Response{
		Tempo: 120,
		Genre: "jazz",
		Notes: Sequence{
			{Pitch: 60, Step: 0, Duration: 0.5},
			{Pitch: 64, Step: 0.5, Duration: 0.25},
			{Pitch: 64, Step: 0.25, Duration: 0.5},
			{Pitch: 67, Step: 0, Duration: 1},
		},
	}

	path := filepath.Join(t.TempDir(), "melody.mid")
	if err := WriteSMF(path, in); err != nil {
		t.Fatalf("WriteSMF: %v", err)
	}

	out, err := ReadSMF(path)
	if err != nil {
		t.Fatalf("ReadSMF: %v", err)
	}
	if out.Tempo != 120 {
		t.Errorf("Tempo = %d, want 120", out.Tempo)
	}
	if out.Genre != "jazz" {
		t.Errorf("Genre = %q, want jazz", out.Genre)
	}
	if len(out.Notes) != len(in.Notes) {
		t.Fatalf("got %d notes, want %d", len(out.Notes), len(in.Notes))
	}

	const tolerance = 0.001
	for i, want := range in.Notes {
		got := out.Notes[i]
		if got.Pitch != want.Pitch {
			t.Errorf("note %d pitch = %d, want %d", i, got.Pitch, want.Pitch)
		}
		if math.Abs(got.Step-want.Step) > tolerance {
			t.Errorf("note %d step = %v, want %v", i, got.Step, want.Step)
		}
		if math.Abs(got.Duration-want.Duration) > tolerance {
			t.Errorf("note %d duration = %v, want %v", i, got.Duration, want.Duration)
		}
	}
}

func TestLoadFileDispatchesMIDI(t *testing.T) {
	path := filepath.Join(t.TempDir(), "melody.MID")
	if err := WriteSMF(path, &Response{Notes: Sequence{{Pitch: 72, Duration: 0.5}}}); err != nil {
		t.Fatalf("WriteSMF: %v", err)
	}

	resp, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(resp.Notes) != 1 || resp.Notes[0].Name() != "C5" {
		t.Errorf("unexpected notes: %+v", resp.Notes)
	}
	if resp.Genre != "pop" {
		t.Errorf("piano program should map back to pop, got %q", resp.Genre)
	}
}

func TestSecondsToTicks(t *testing.T) {
	if got := secondsToTicks(0.5, 120); got != ticksPerQuarterNote {
		t.Errorf("half a second at 120bpm = %d ticks, want %d", got, ticksPerQuarterNote)
	}
	if got := secondsToTicks(-1, 120); got != 0 {
		t.Errorf("negative seconds = %d ticks, want 0", got)
	}
}

// twoBars is eight quarter notes at 120 BPM.
func twoBars() *Response {
	r := &Response{Tempo: 120, Genre: "rock"}
	for i := 0; i < 8; i++ {
		step := 0.5
		if i == 0 {
			step = 0
		}
		r.Notes = append(r.Notes, Note{Pitch: 60 + i, Step: step, Duration: 0.5})
	}
	return r
}

func noteOnVelocities(track smf.Track) []uint8 {
	var out []uint8
	for _, ev := range track {
		var ch, key, vel uint8
		if midi.Message(ev.Message).GetNoteOn(&ch, &key, &vel) && vel > 0 {
			out = append(out, vel)
		}
	}
	return out
}

func TestToSMFAccentsStrongBeats(t *testing.T) {
	sm, err := ToSMF(twoBars())
	if err != nil {
		t.Fatalf("ToSMF: %v", err)
	}
	if len(sm.Tracks) != 2 {
		t.Fatalf("got %d tracks, want 2", len(sm.Tracks))
	}

	want := []uint8{115, 100, 110, 100, 115, 100, 110, 100}
	got := noteOnVelocities(sm.Tracks[1])
	if len(got) != len(want) {
		t.Fatalf("velocities = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("note %d velocity = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestToSMFAccompaniment(t *testing.T) {
	sm, err := ToSMF(twoBars(), WithAccompaniment())
	if err != nil {
		t.Fatalf("ToSMF: %v", err)
	}
	if len(sm.Tracks) != 4 {
		t.Fatalf("got %d tracks, want tempo, melody, bass and drums", len(sm.Tracks))
	}

	bass, program, _ := readTrack(sm.Tracks[2])
	if program != bassProgram {
		t.Errorf("bass program = %d, want %d", program, bassProgram)
	}
	wantRoots := []uint8{36, 36, 43, 43}
	if len(bass) != len(wantRoots) {
		t.Fatalf("got %d bass notes, want %d", len(bass), len(wantRoots))
	}
	for i, n := range bass {
		if n.key != wantRoots[i] {
			t.Errorf("bass note %d = %d, want %d", i, n.key, wantRoots[i])
		}
		if n.end-n.start != 2*ticksPerQuarterNote {
			t.Errorf("bass note %d lasts %d ticks, want a half note", i, n.end-n.start)
		}
	}

	// two groove bars: 8 hats, 3 kicks and 2 snares each, plus a ghost
	// snare in the second
	drums, program, _ := readTrack(sm.Tracks[3])
	if program != -1 {
		t.Errorf("drum track set program %d", program)
	}
	if len(drums) != 27 {
		t.Errorf("got %d drum hits, want 27", len(drums))
	}
	for _, ev := range sm.Tracks[3] {
		var ch, key, vel uint8
		if midi.Message(ev.Message).GetNoteOn(&ch, &key, &vel) && ch != drumChannel {
			t.Fatalf("drum hit on channel %d", ch)
		}
	}
}

func TestDrumFillEveryFourthBar(t *testing.T) {
	fill := drumEvents(4*ticksPerBar, 120)

	var toms int
	for _, ev := range fill {
		if !ev.on || ev.tick < 3*ticksPerBar {
			continue
		}
		switch ev.key {
		case drumHighTom, drumMidTom, drumLowTom:
			toms++
		case drumClosedHH:
			if ev.tick >= 3*ticksPerBar+3*ticksPerQuarterNote {
				t.Errorf("hi-hat at tick %d during the fill", ev.tick)
			}
		}
	}
	if toms != 3 {
		t.Errorf("fill bar has %d tom hits, want 3", toms)
	}
}

func TestAccompanimentKeepsMelodyImport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "band.mid")
	if err := WriteSMF(path, twoBars(), WithAccompaniment()); err != nil {
		t.Fatalf("WriteSMF: %v", err)
	}

	out, err := ReadSMF(path)
	if err != nil {
		t.Fatalf("ReadSMF: %v", err)
	}
	if out.Genre != "rock" || len(out.Notes) != 8 || out.Notes[0].Pitch != 60 {
		t.Errorf("imported %q with %d notes, want the melody track", out.Genre, len(out.Notes))
	}
}
