package audio

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/charmbracelet/log"

	"github.com/icco/melodyplay/internal/melody"
	"github.com/icco/melodyplay/internal/playback"
)

// Instrument plays notes with one patch on the shared synth. Each
// instrument owns a voice group so Stop only silences its own notes.
type Instrument struct {
	mix   *mixer
	group int
	patch Patch
	log   *log.Logger
}

// Play starts a note by name for duration.
func (i *Instrument) Play(note string, velocity uint8, duration time.Duration) {
	pitch, err := melody.NoteNameToPitch(note)
	if err != nil {
		i.log.Warn("unplayable note", "note", note, "err", err)
		return
	}
	i.mix.noteOn(i.group, i.patch, uint8(pitch), velocity, duration) //nolint:gosec // pitch is 0-127
}

// Stop releases every voice of this instrument.
func (i *Instrument) Stop() {
	i.mix.releaseGroup(i.group)
}

// Close releases the instrument's voices. The synth stays up for other
// instruments.
func (i *Instrument) Close() error {
	i.Stop()
	return nil
}

// Loader creates synth instruments. The audio context is process-wide and
// created on the first Load.
type Loader struct {
	mu        sync.Mutex
	opts      Options
	log       *log.Logger
	synth     *Synth
	err       error
	nextGroup int
}

// NewLoader returns a loader; no audio device is touched until Load.
func NewLoader(opts Options, logger *log.Logger) *Loader {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Loader{opts: opts, log: logger}
}

// Load returns an instrument for key, initializing the audio device on
// first use and waiting for it to become ready.
func (l *Loader) Load(ctx context.Context, key melody.InstrumentKey) (playback.Instrument, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.synth == nil && l.err == nil {
		l.synth, l.err = newSynth(l.opts)
		if l.err == nil {
			l.log.Debug("audio context created", "sample_rate", sampleRate)
		}
	}
	if l.err != nil {
		return nil, fault.Wrap(l.err,
			fmsg.WithDesc("audio init", "Audio output is unavailable."),
			ftag.With(ftag.Internal))
	}

	if err := l.synth.waitReady(ctx); err != nil {
		return nil, fault.Wrap(err,
			fmsg.WithDesc("audio not ready", "Audio output did not become ready."),
			ftag.With(ftag.Internal))
	}

	return l.newInstrument(l.synth.mix, key), nil
}

func (l *Loader) newInstrument(mix *mixer, key melody.InstrumentKey) *Instrument {
	l.nextGroup++
	return &Instrument{
		mix:   mix,
		group: l.nextGroup,
		patch: PatchFor(key),
		log:   l.log.With("instrument", key),
	}
}
