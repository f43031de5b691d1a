package audio

import (
	"math"
	"time"

	"github.com/icco/melodyplay/internal/melody"
)

// WaveType represents different oscillator wave shapes
type WaveType int

const (
	WaveSine WaveType = iota
	WaveSquare
	WaveSawtooth
	WaveTriangle
)

// Patch is the voice shape for one instrument.
type Patch struct {
	Wave    WaveType
	Attack  time.Duration
	Release time.Duration
	Gain    float64
	Drive   float64 // soft clipping amount, 0 = clean
}

var patches = map[melody.InstrumentKey]Patch{
	melody.AcousticGrandPiano: {Wave: WaveSine, Attack: 5 * time.Millisecond, Release: 400 * time.Millisecond, Gain: 1.0},
	melody.OverdrivenGuitar:   {Wave: WaveSquare, Attack: 3 * time.Millisecond, Release: 250 * time.Millisecond, Gain: 0.6, Drive: 3},
	melody.TenorSax:           {Wave: WaveSawtooth, Attack: 30 * time.Millisecond, Release: 150 * time.Millisecond, Gain: 0.7},
	melody.Violin:             {Wave: WaveTriangle, Attack: 80 * time.Millisecond, Release: 300 * time.Millisecond, Gain: 0.9},
}

// PatchFor returns the patch for an instrument key, falling back to the
// piano patch.
func PatchFor(key melody.InstrumentKey) Patch {
	if p, ok := patches[key]; ok {
		return p
	}
	return patches[melody.DefaultInstrument]
}

// attackStep is the per-sample envelope increment reaching 1 after Attack.
func (p Patch) attackStep() float64 {
	samples := p.Attack.Seconds() * sampleRate
	if samples < 1 {
		return 1
	}
	return 1 / samples
}

// releaseCoef is the per-sample multiplier decaying to silenceLevel after
// Release.
func (p Patch) releaseCoef() float64 {
	samples := p.Release.Seconds() * sampleRate
	if samples < 1 {
		return 0
	}
	return math.Exp(math.Log(silenceLevel) / samples)
}

func (p Patch) shape(x float64) float64 {
	if p.Drive <= 0 {
		return x
	}
	return math.Tanh(p.Drive*x) / math.Tanh(p.Drive)
}

func generateWave(waveType WaveType, phase float64) float64 {
	switch waveType {
	case WaveSine:
		return math.Sin(2 * math.Pi * phase)
	case WaveSquare:
		if phase < 0.5 {
			return 0.8
		}
		return -0.8
	case WaveSawtooth:
		return 2*phase - 1
	case WaveTriangle:
		if phase < 0.5 {
			return 4*phase - 1
		}
		return 3 - 4*phase
	default:
		return math.Sin(2 * math.Pi * phase)
	}
}
