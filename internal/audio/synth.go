// Package audio provides audio synthesis for melody playback
package audio

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

const (
	sampleRate   = 44100
	channelCount = 2 // stereo
	bitDepth     = 2 // 16-bit

	silenceLevel = 0.001
	voiceLevel   = 0.2
)

// Options configure the mixer.
type Options struct {
	MasterVolume float64
	ReverbMix    float64 // share of the wet path in the master sum, 0-1
	ReverbDecay  float64 // comb feedback, 0-0.95
	MaxVoices    int
}

// DefaultOptions are used for zero fields.
var DefaultOptions = Options{
	MasterVolume: 0.3,
	ReverbMix:    0.25,
	ReverbDecay:  0.45,
	MaxVoices:    64,
}

func (o Options) withDefaults() Options {
	if o.MasterVolume <= 0 {
		o.MasterVolume = DefaultOptions.MasterVolume
	}
	if o.ReverbMix < 0 {
		o.ReverbMix = 0
	}
	if o.ReverbDecay <= 0 {
		o.ReverbDecay = DefaultOptions.ReverbDecay
	}
	if o.MaxVoices <= 0 {
		o.MaxVoices = DefaultOptions.MaxVoices
	}
	return o
}

// Voice represents a single playing note
type Voice struct {
	note      uint8
	group     int
	velocity  uint8
	frequency float64
	phase     float64
	envelope  float64 // 0-1 amplitude envelope
	attack    float64
	release   float64
	patch     Patch
	gate      int // samples left before the voice releases
	releasing bool
	active    bool
}

// mixer renders voices through a dry path and a reverb send, summed into
// the master gain.
type mixer struct {
	mu           sync.Mutex
	voices       []*Voice
	maxVoices    int
	masterVolume float64
	reverbMix    float64
	reverb       *reverb
}

func newMixer(opts Options) *mixer {
	opts = opts.withDefaults()
	return &mixer{
		maxVoices:    opts.MaxVoices,
		masterVolume: clamp(opts.MasterVolume, 0, 1),
		reverbMix:    clamp(opts.ReverbMix, 0, 1),
		reverb:       newReverb(opts.ReverbDecay),
	}
}

// Read implements io.Reader for continuous audio generation.
func (m *mixer) Read(buf []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	numSamples := len(buf) / (channelCount * bitDepth)

	for i := 0; i < numSamples; i++ {
		dry := m.renderVoices()
		wet := m.reverb.process(dry)

		sample := (dry*(1-m.reverbMix) + wet*m.reverbMix) * m.masterVolume
		if sample > 1.0 {
			sample = 1.0
		} else if sample < -1.0 {
			sample = -1.0
		}

		// Convert to 16-bit signed integer
		sampleInt := int16(sample * 32767)

		// Write stereo samples (same for L and R)
		idx := i * channelCount * bitDepth
		buf[idx] = byte(sampleInt)
		buf[idx+1] = byte(sampleInt >> 8)
		buf[idx+2] = byte(sampleInt)
		buf[idx+3] = byte(sampleInt >> 8)
	}

	return numSamples * channelCount * bitDepth, nil
}

// renderVoices mixes one sample of every active voice and advances them.
func (m *mixer) renderVoices() float64 {
	var sample float64

	for _, v := range m.voices {
		if v == nil || !v.active {
			continue
		}

		osc := v.patch.shape(generateWave(v.patch.Wave, v.phase))

		// Apply velocity and envelope
		velocityScale := float64(v.velocity) / 127.0
		sample += osc * velocityScale * v.envelope * v.patch.Gain * voiceLevel

		v.phase += v.frequency / sampleRate
		if v.phase >= 1.0 {
			v.phase -= 1.0
		}

		if !v.releasing {
			v.gate--
			if v.gate <= 0 {
				v.releasing = true
			}
		}

		if v.releasing {
			v.envelope *= v.release
			if v.envelope < silenceLevel {
				v.active = false
			}
		} else if v.envelope < 1.0 {
			v.envelope += v.attack
			if v.envelope > 1.0 {
				v.envelope = 1.0
			}
		}
	}

	return sample
}

// noteOn starts a voice that holds for duration and then releases.
func (m *mixer) noteOn(group int, patch Patch, note, velocity uint8, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if velocity == 0 {
		return
	}

	// Find an inactive voice or steal the oldest one
	var voice *Voice
	for _, v := range m.voices {
		if v != nil && !v.active {
			voice = v
			break
		}
	}

	if voice == nil {
		if len(m.voices) < m.maxVoices {
			voice = &Voice{}
			m.voices = append(m.voices, voice)
		} else {
			// Steal oldest voice
			voice = m.voices[0]
			m.voices = append(m.voices[1:], voice)
		}
	}

	gate := int(duration.Seconds() * sampleRate)
	if gate < 1 {
		gate = 1
	}

	*voice = Voice{
		note:      note,
		group:     group,
		velocity:  velocity,
		frequency: midiNoteToFreq(note),
		attack:    patch.attackStep(),
		release:   patch.releaseCoef(),
		patch:     patch,
		gate:      gate,
		active:    true,
	}
}

// releaseGroup releases every voice started by one instrument. When no
// other instrument is sounding the reverb tail is dropped as well.
func (m *mixer) releaseGroup(group int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	others := false
	for _, v := range m.voices {
		if v == nil || !v.active {
			continue
		}
		if v.group == group {
			v.releasing = true
		} else {
			others = true
		}
	}
	if !others {
		m.reverb.reset()
	}
}

// activeVoices counts sounding voices of a group.
func (m *mixer) activeVoices(group int) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, v := range m.voices {
		if v != nil && v.active && v.group == group {
			n++
		}
	}
	return n
}

// Synth connects the mixer to the audio device.
type Synth struct {
	otoCtx *oto.Context
	ready  chan struct{}
	player *oto.Player
	mix    *mixer
	once   sync.Once
}

// newSynth creates the audio context. The device may not be ready yet;
// call waitReady before producing sound.
func newSynth(opts Options) (*Synth, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channelCount,
		Format:       oto.FormatSignedInt16LE,
	}

	otoCtx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("creating audio context: %w", err)
	}

	return &Synth{
		otoCtx: otoCtx,
		ready:  readyChan,
		mix:    newMixer(opts),
	}, nil
}

// waitReady blocks until the device is ready, then starts the stream.
func (s *Synth) waitReady(ctx context.Context) error {
	select {
	case <-s.ready:
	case <-ctx.Done():
		return fmt.Errorf("waiting for audio device: %w", ctx.Err())
	}

	s.once.Do(func() {
		s.player = s.otoCtx.NewPlayer(s.mix)
		s.player.Play()
	})
	return nil
}

// midiNoteToFreq converts a MIDI note number to frequency in Hz
func midiNoteToFreq(note uint8) float64 {
	// A4 (note 69) = 440 Hz
	return 440.0 * math.Pow(2.0, (float64(note)-69.0)/12.0)
}
