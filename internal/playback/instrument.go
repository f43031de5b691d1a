package playback

import (
	"context"
	"time"

	"github.com/icco/melodyplay/internal/melody"
)

// Instrument is a sound-producing backend. Play must not block: the
// instrument is responsible for releasing the note after duration.
type Instrument interface {
	Play(note string, velocity uint8, duration time.Duration)
	// Stop silences every voice the instrument is sounding.
	Stop()
}

// Loader creates instruments. Loading may wait on device initialization.
type Loader interface {
	Load(ctx context.Context, key melody.InstrumentKey) (Instrument, error)
}

// Silent is an Instrument that produces no sound. It keeps visual playback
// running when no audio backend is available.
type Silent struct{}

func (Silent) Play(string, uint8, time.Duration) {}

func (Silent) Stop() {}

// SilentLoader loads Silent instruments for every key.
type SilentLoader struct{}

func (SilentLoader) Load(context.Context, melody.InstrumentKey) (Instrument, error) {
	return Silent{}, nil
}
