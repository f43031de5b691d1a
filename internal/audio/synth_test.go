package audio

import (
	"io"
	"math"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/icco/melodyplay/internal/melody"
)

func newTestInstrument(mix *mixer, key melody.InstrumentKey) *Instrument {
	l := &Loader{log: log.New(io.Discard)}
	return l.newInstrument(mix, key)
}

func render(m *mixer, samples int) []byte {
	buf := make([]byte, samples*channelCount*bitDepth)
	_, _ = m.Read(buf)
	return buf
}

func silent(buf []byte) bool {
	for _, b := range buf {
		if b != 0 {
			return false
		}
	}
	return true
}

func TestMidiNoteToFreq(t *testing.T) {
	tests := []struct {
		note uint8
		want float64
	}{
		{69, 440},
		{81, 880},
		{57, 220},
	}
	for _, tt := range tests {
		if got := midiNoteToFreq(tt.note); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("midiNoteToFreq(%d) = %v, want %v", tt.note, got, tt.want)
		}
	}
}

func TestMixerSilentWithoutVoices(t *testing.T) {
	m := newMixer(Options{})
	if !silent(render(m, 512)) {
		t.Error("mixer without voices produced sound")
	}
}

func TestInstrumentPlayProducesSound(t *testing.T) {
	m := newMixer(Options{ReverbMix: 0})
	inst := newTestInstrument(m, melody.AcousticGrandPiano)

	inst.Play("A4", 100, 100*time.Millisecond)
	if got := m.activeVoices(inst.group); got != 1 {
		t.Fatalf("active voices = %d, want 1", got)
	}
	if silent(render(m, 1024)) {
		t.Error("playing voice rendered silence")
	}
}

func TestVoiceReleasesAfterGate(t *testing.T) {
	m := newMixer(Options{})
	inst := newTestInstrument(m, melody.OverdrivenGuitar)

	inst.Play("E2", 127, 10*time.Millisecond)

	gate := int(0.01 * sampleRate)
	render(m, gate-1)
	if m.activeVoices(inst.group) != 1 {
		t.Fatal("voice released before its gate")
	}

	release := int(PatchFor(melody.OverdrivenGuitar).Release.Seconds()*sampleRate) + 2
	render(m, release+1)
	if got := m.activeVoices(inst.group); got != 0 {
		t.Errorf("voice still active after release, %d voices", got)
	}
}

func TestStopOnlyReleasesOwnGroup(t *testing.T) {
	m := newMixer(Options{})
	sax := newTestInstrument(m, melody.TenorSax)
	violin := newTestInstrument(m, melody.Violin)

	sax.Play("C4", 100, time.Second)
	sax.Play("E4", 100, time.Second)
	violin.Play("G4", 100, time.Second)

	sax.Stop()
	render(m, sampleRate/2)

	if got := m.activeVoices(sax.group); got != 0 {
		t.Errorf("stopped instrument has %d voices", got)
	}
	if got := m.activeVoices(violin.group); got != 1 {
		t.Errorf("other instrument has %d voices, want 1", got)
	}
}

func TestVoiceStealing(t *testing.T) {
	m := newMixer(Options{MaxVoices: 2})
	inst := newTestInstrument(m, melody.AcousticGrandPiano)

	inst.Play("C4", 100, time.Second)
	inst.Play("D4", 100, time.Second)
	inst.Play("E4", 100, time.Second)

	if len(m.voices) != 2 {
		t.Fatalf("voices = %d, want capped at 2", len(m.voices))
	}
	if m.voices[0].note != 62 || m.voices[1].note != 64 {
		t.Errorf("notes = %d, %d; want the oldest stolen", m.voices[0].note, m.voices[1].note)
	}
}

func TestPlayIgnoresBadInput(t *testing.T) {
	m := newMixer(Options{})
	inst := newTestInstrument(m, melody.AcousticGrandPiano)

	inst.Play("not-a-note", 100, time.Second)
	inst.Play("C4", 0, time.Second)

	if got := m.activeVoices(inst.group); got != 0 {
		t.Errorf("active voices = %d, want 0", got)
	}
}

func TestInstrumentGroupsAreDistinct(t *testing.T) {
	l := &Loader{log: log.New(io.Discard)}
	m := newMixer(Options{})
	a := l.newInstrument(m, melody.Violin)
	b := l.newInstrument(m, melody.Violin)

	if a.group == b.group {
		t.Error("instruments share a voice group")
	}
	if a.patch != PatchFor(melody.Violin) {
		t.Errorf("patch = %+v, want the violin patch", a.patch)
	}
}

func TestPatchFor(t *testing.T) {
	if got := PatchFor("kazoo"); got != PatchFor(melody.AcousticGrandPiano) {
		t.Errorf("unknown key patch = %+v, want piano", got)
	}
	if PatchFor(melody.OverdrivenGuitar).Drive <= 0 {
		t.Error("guitar patch should be driven")
	}
}

func TestReverbEcho(t *testing.T) {
	r := newReverb(0.5)

	if out := r.process(1); out != 0 {
		t.Fatalf("reverb output before any delay = %v", out)
	}

	shortest := combDelays[0]
	for _, d := range combDelays {
		shortest = min(shortest, d)
	}
	var echo float64
	for i := 1; i <= shortest; i++ {
		echo = r.process(0)
	}
	if echo == 0 {
		t.Error("no echo after the shortest comb delay")
	}

	r.reset()
	for i := 0; i < 2000; i++ {
		if out := r.process(0); out != 0 {
			t.Fatalf("reset reverb still rings: %v", out)
		}
	}
}

func reverbRings(r *reverb) bool {
	for _, line := range r.lines {
		for _, v := range line {
			if v != 0 {
				return true
			}
		}
	}
	return false
}

func TestStopDropsReverbTail(t *testing.T) {
	m := newMixer(Options{ReverbMix: 0.5})
	inst := newTestInstrument(m, melody.AcousticGrandPiano)

	inst.Play("A4", 100, time.Second)
	render(m, 4096)
	if !reverbRings(m.reverb) {
		t.Fatal("reverb never filled")
	}

	inst.Stop()
	if reverbRings(m.reverb) {
		t.Error("reverb tail survived Stop with nothing else sounding")
	}
}

func TestStopKeepsReverbForOtherInstruments(t *testing.T) {
	m := newMixer(Options{ReverbMix: 0.5})
	sax := newTestInstrument(m, melody.TenorSax)
	violin := newTestInstrument(m, melody.Violin)

	sax.Play("C4", 100, time.Second)
	violin.Play("G4", 100, time.Second)
	render(m, 4096)

	sax.Stop()
	if !reverbRings(m.reverb) {
		t.Error("Stop cleared the reverb while another instrument was sounding")
	}
}

func TestOptionsDefaults(t *testing.T) {
	got := Options{}.withDefaults()
	want := DefaultOptions
	want.ReverbMix = 0
	if got != want {
		t.Errorf("withDefaults() = %+v, want %+v", got, want)
	}
}
