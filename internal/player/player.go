// Package player owns a playback scheduler together with the instruments it
// plays on, and is what views and commands drive.
package player

import (
	"context"
	"errors"
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

const (
	waitInterval = 20 * time.Millisecond

	// DefaultLoadTimeout bounds how long Play waits for an instrument before
	// falling back.
	DefaultLoadTimeout = 5 * time.Second
)

// ErrClosed is returned by Play after Close.
var ErrClosed = errors.New("player closed")

// Status is what a view needs to render the player.
type Status struct {
	playback.Snapshot
	Genre      string
	Instrument melody.InstrumentKey
	// AudioErr is set when the instrument could not be loaded and playback
	// fell back to silence.
	AudioErr error
}

// AudioAvailable reports whether the last play request got an instrument.
func (s Status) AudioAvailable() bool { return s.AudioErr == nil }

// Option configures a Player.
type Option func(*Player)

// WithInstrumentTable sets the genre to instrument mapping.
func WithInstrumentTable(t melody.InstrumentTable) Option {
	return func(p *Player) { p.table = t }
}

// WithVisualFallback controls whether a failed instrument load plays on
// silently instead of returning the error.
func WithVisualFallback(enabled bool) Option {
	return func(p *Player) { p.fallback = enabled }
}

// WithLoadTimeout bounds instrument loading. A load that runs out of time
// is handled like any other load failure.
func WithLoadTimeout(d time.Duration) Option {
	return func(p *Player) {
		if d > 0 {
			p.loadTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Player) {
		if l != nil {
			p.log = l
		}
	}
}

// Player loads instruments per genre and starts melodies on a scheduler.
type Player struct {
	mu          sync.Mutex
	loader      playback.Loader
	sched       *playback.Scheduler
	table       melody.InstrumentTable
	fallback    bool
	loadTimeout time.Duration
	log         *log.Logger
	instruments map[melody.InstrumentKey]playback.Instrument

	// generation moves on every Play, Stop and Close so a load that
	// finishes late can tell it was superseded.
	generation uint64
	closed     bool

	genre    string
	key      melody.InstrumentKey
	audioErr error
}

// New returns a player driving sched with instruments from loader.
func New(loader playback.Loader, sched *playback.Scheduler, opts ...Option) *Player {
	p := &Player{
		loader:      loader,
		sched:       sched,
		fallback:    true,
		loadTimeout: DefaultLoadTimeout,
		log:         log.New(io.Discard),
		instruments: make(map[melody.InstrumentKey]playback.Instrument),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Play starts m from the beginning, replacing whatever is playing. The
// instrument is loaded without holding the player lock; a Stop or Close
// issued meanwhile wins and the request returns without starting.
func (p *Player) Play(ctx context.Context, m *melody.Response) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fault.Wrap(ErrClosed,
			fmsg.WithDesc("play after close", "The player has shut down."),
			ftag.With(ftag.Cancelled))
	}
	p.generation++
	gen := p.generation
	key := p.table.For(m.Genre)
	p.genre = m.Genre
	p.key = key
	inst, cached := p.instruments[key]
	p.mu.Unlock()

	var err error
	if !cached {
		loadCtx, cancel := context.WithTimeout(ctx, p.loadTimeout)
		inst, err = p.loader.Load(loadCtx, key)
		cancel()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err == nil && !cached {
		inst = p.keepLocked(key, inst)
	}
	if p.closed || gen != p.generation {
		p.log.Debug("play request superseded during instrument load", "instrument", key)
		return nil
	}

	if err != nil {
		p.audioErr = err
		p.log.Error("instrument unavailable", "instrument", key, "err", err)
		if !p.fallback {
			p.sched.Stop()
			return err
		}
		p.log.Warn("audio unavailable, playing visuals only", "genre", m.Genre)
		inst = playback.Silent{}
	} else {
		p.audioErr = nil
	}

	if err := p.sched.Start(m.Notes, inst); err != nil {
		return err
	}
	p.log.Debug("playing", "session", p.sched.Snapshot().Session, "instrument", key)
	return nil
}

// Stop stops playback, including a play request still loading its
// instrument.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.generation++
	p.sched.Stop()
}

// Status returns the current playback status.
func (p *Player) Status() Status {
	snap := p.sched.Snapshot()

	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{
		Snapshot:   snap,
		Genre:      p.genre,
		Instrument: p.key,
		AudioErr:   p.audioErr,
	}
}

// Wait blocks until playback is idle or ctx is done.
func (p *Player) Wait(ctx context.Context) error {
	ticker := time.NewTicker(waitInterval)
	defer ticker.Stop()

	for {
		if p.sched.State() == playback.Idle {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close stops playback and releases every loaded instrument. Play
// requests still loading are dropped, and later ones fail with ErrClosed.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	p.generation++
	p.sched.Close()

	var firstErr error
	for key, inst := range p.instruments {
		if err := closeInstrument(inst); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.instruments, key)
	}
	return firstErr
}

// keepLocked caches a freshly loaded instrument. An instrument loaded
// concurrently for the same key, or after Close, is released instead.
func (p *Player) keepLocked(key melody.InstrumentKey, inst playback.Instrument) playback.Instrument {
	if p.closed {
		_ = closeInstrument(inst)
		return inst
	}
	if existing, ok := p.instruments[key]; ok {
		_ = closeInstrument(inst)
		return existing
	}
	p.log.Debug("instrument loaded", "instrument", key)
	p.instruments[key] = inst
	return inst
}

func closeInstrument(inst playback.Instrument) error {
	if c, ok := inst.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
