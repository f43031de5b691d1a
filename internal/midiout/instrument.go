// Package midiout plays melodies on a MIDI output port instead of the
// built-in synth.
package midiout

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/charmbracelet/log"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/icco/melodyplay/internal/melody"
	"github.com/icco/melodyplay/internal/playback"
)

const allNotesOff = 123

// SendFunc writes one MIDI message to a port.
type SendFunc func(msg midi.Message) error

// Instrument sends notes to a MIDI channel and schedules their note-offs.
// A key struck again before its earlier note ends keeps sounding until
// the last of its notes is released.
type Instrument struct {
	mu      sync.Mutex
	send    SendFunc
	clock   playback.Clock
	channel uint8
	log     *log.Logger

	pending  map[*noteOff]struct{}
	sounding map[uint8]int // note-ons not yet released, per key
}

type noteOff struct {
	key   uint8
	timer playback.Timer
}

// NewInstrument selects program on channel and returns an instrument
// sending through send.
func NewInstrument(send SendFunc, clock playback.Clock, channel, program uint8, logger *log.Logger) (*Instrument, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if err := send(midi.ProgramChange(channel, program)); err != nil {
		return nil, fault.Wrap(err,
			fmsg.WithDesc("program change", "Could not select the instrument on the MIDI port."),
			ftag.With(ftag.Internal))
	}
	return &Instrument{
		send:     send,
		clock:    clock,
		channel:  channel,
		log:      logger,
		pending:  make(map[*noteOff]struct{}),
		sounding: make(map[uint8]int),
	}, nil
}

// Play sends a note-on and arms the matching note-off.
func (i *Instrument) Play(note string, velocity uint8, duration time.Duration) {
	pitch, err := melody.NoteNameToPitch(note)
	if err != nil {
		i.log.Warn("unplayable note", "note", note, "err", err)
		return
	}
	key := uint8(pitch) //nolint:gosec // pitch is 0-127

	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.send(midi.NoteOn(i.channel, key, velocity)); err != nil {
		i.log.Error("note on failed", "note", note, "err", err)
		return
	}

	off := &noteOff{key: key}
	i.pending[off] = struct{}{}
	i.sounding[key]++
	off.timer = i.clock.AfterFunc(duration, func() { i.release(off) })
}

func (i *Instrument) release(off *noteOff) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.pending[off]; !ok {
		return
	}
	delete(i.pending, off)

	i.sounding[off.key]--
	if i.sounding[off.key] > 0 {
		return
	}
	delete(i.sounding, off.key)
	_ = i.send(midi.NoteOff(i.channel, off.key))
}

// Stop cancels pending note-offs, releases every sounding key once and
// sends all notes off.
func (i *Instrument) Stop() {
	i.mu.Lock()
	defer i.mu.Unlock()

	for off := range i.pending {
		if off.timer != nil {
			off.timer.Stop()
		}
		delete(i.pending, off)
	}
	for key := range i.sounding {
		_ = i.send(midi.NoteOff(i.channel, key))
		delete(i.sounding, key)
	}
	_ = i.send(midi.ControlChange(i.channel, allNotesOff, 0))
}

// Loader opens instruments on one output port, one MIDI channel per
// instrument key.
type Loader struct {
	mu       sync.Mutex
	out      drivers.Out
	send     SendFunc
	clock    playback.Clock
	log      *log.Logger
	channels map[melody.InstrumentKey]uint8
}

// NewLoader wraps an output port. The port is opened on first Load.
func NewLoader(out drivers.Out, clock playback.Clock, logger *log.Logger) *Loader {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if clock == nil {
		clock = playback.RealClock{}
	}
	return &Loader{
		out:      out,
		clock:    clock,
		log:      logger,
		channels: make(map[melody.InstrumentKey]uint8),
	}
}

// Load returns an instrument on the channel assigned to key.
func (l *Loader) Load(ctx context.Context, key melody.InstrumentKey) (playback.Instrument, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if l.send == nil {
		send, err := midi.SendTo(l.out)
		if err != nil {
			return nil, fault.Wrap(err,
				fmsg.WithDesc("open midi port", "Could not open MIDI output "+l.out.String()),
				ftag.With(ftag.NotFound))
		}
		l.send = send
		l.log.Info("midi output opened", "port", l.out.String())
	}

	ch, ok := l.channels[key]
	if !ok {
		ch = uint8(len(l.channels) % 16) //nolint:gosec // bounded by 16
		l.channels[key] = ch
	}

	return NewInstrument(l.send, l.clock, ch, melody.Program(key), l.log.With("instrument", key, "channel", ch))
}

// Close sends all notes off on every used channel and closes the port.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.send != nil {
		for _, ch := range l.channels {
			_ = l.send(midi.ControlChange(ch, allNotesOff, 0))
		}
		l.send = nil
	}
	return l.out.Close()
}
