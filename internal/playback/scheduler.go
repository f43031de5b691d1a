// Package playback schedules a melody against a clock, driving an
// instrument and a "current note" signal in lockstep.
package playback

import (
	"container/heap"
	"errors"
	"io"
	"math"
	"sync"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/charmbracelet/log"
	"github.com/rs/xid"

	"github.com/icco/melodyplay/internal/melody"
)

// NoNote is the current note index when nothing is sounding.
const NoNote = -1

const (
	// MinNoteDuration replaces non-positive note durations.
	MinNoteDuration = time.Millisecond
	DefaultVelocity = 100
)

// ErrNoInstrument is returned by Start when no instrument is available.
var ErrNoInstrument = errors.New("no instrument to play on")

// State of a playback session.
type State int

const (
	Idle State = iota
	Playing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	default:
		return "unknown"
	}
}

// Snapshot is a consistent view of the scheduler for the view layer.
type Snapshot struct {
	State State
	// Session identifies the playing session; empty when idle.
	Session string
	Current int
	Notes   int
	Elapsed time.Duration
	Total   time.Duration
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock callbacks are armed on. Defaults to RealClock.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// WithVelocity sets the velocity notes are played with.
func WithVelocity(v uint8) Option {
	return func(s *Scheduler) { s.velocity = v }
}

// Scheduler plays one session at a time. Note and terminal callbacks are
// kept in a time-ordered queue; only the head is armed on the clock. Every
// armed callback carries the session epoch it was armed in and does nothing
// once the epoch has moved on.
type Scheduler struct {
	mu       sync.Mutex
	clock    Clock
	log      *log.Logger
	velocity uint8

	instrument Instrument

	state   State
	epoch   uint64
	session xid.ID
	queue   eventQueue
	seq     int
	armed   Timer
	origin  time.Time
	total   time.Duration
	notes   int
	current int
}

// NewScheduler returns an idle scheduler.
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:    RealClock{},
		log:      log.New(io.Discard),
		velocity: DefaultVelocity,
		current:  NoNote,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Timeline converts relative steps into absolute start offsets. Note i
// starts at the sum of steps 0..i; the session ends when the last note's
// duration has elapsed.
func Timeline(seq melody.Sequence) (starts []time.Duration, end time.Duration) {
	if len(seq) == 0 {
		return nil, 0
	}
	starts = make([]time.Duration, len(seq))
	var at time.Duration
	for i, n := range seq {
		at += seconds(n.Step, 0)
		starts[i] = at
	}
	return starts, at + noteDuration(seq[len(seq)-1])
}

// Start plays seq on inst, stopping any session already playing. It
// declines with ErrNoInstrument when inst is nil. An empty sequence
// completes immediately.
func (s *Scheduler) Start(seq melody.Sequence, inst Instrument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	if inst == nil {
		return fault.Wrap(ErrNoInstrument,
			fmsg.WithDesc("start without instrument", "Audio is unavailable."),
			ftag.With(ftag.InvalidArgument))
	}
	s.instrument = inst

	if len(seq) == 0 {
		s.log.Debug("empty sequence, nothing to play")
		return nil
	}

	starts, end := Timeline(seq)
	s.queue = make(eventQueue, 0, len(seq)+1)
	for i, n := range seq {
		s.pushLocked(&event{
			at:       starts[i],
			index:    i,
			name:     n.Name(),
			duration: noteDuration(n),
		})
	}
	s.pushLocked(&event{at: end, index: NoNote, terminal: true})

	s.state = Playing
	s.session = xid.New()
	s.origin = s.clock.Now()
	s.total = end
	s.notes = len(seq)
	s.armLocked()

	s.log.Info("playback started", "session", s.session, "notes", len(seq), "length", end)
	return nil
}

// Stop cancels the playing session and silences the instrument. Once it
// returns no callback of that session has any effect. Stopping an idle
// scheduler does nothing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.session
	if s.stopLocked() {
		s.log.Info("playback stopped", "session", session)
	}
}

// SetInstrument replaces the instrument handle. Replacing it with a new
// instrument stops the playing session first. Setting nil keeps the session
// running without audio.
func (s *Scheduler) SetInstrument(inst Instrument) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if inst == nil {
		if s.instrument != nil {
			s.instrument.Stop()
		}
		s.instrument = nil
		return
	}
	s.stopLocked()
	s.instrument = inst
}

// Close stops playback and releases the instrument. Owners call it on
// teardown.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.instrument = nil
}

// State returns the session state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CurrentNote returns the index of the sounding note, or NoNote.
func (s *Scheduler) CurrentNote() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Pending returns the number of callbacks still to fire.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Elapsed returns the time since the playing session started, capped at
// its length. It is zero when idle.
func (s *Scheduler) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsedLocked()
}

// Snapshot returns state, index and progress in one read.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{State: s.state, Current: s.current}
	if s.state == Playing {
		snap.Session = s.session.String()
		snap.Notes = s.notes
		snap.Total = s.total
		snap.Elapsed = s.elapsedLocked()
	}
	return snap
}

func (s *Scheduler) elapsedLocked() time.Duration {
	if s.state != Playing {
		return 0
	}
	elapsed := s.clock.Now().Sub(s.origin)
	if elapsed > s.total {
		return s.total
	}
	return elapsed
}

func (s *Scheduler) stopLocked() bool {
	if s.state == Idle && len(s.queue) == 0 {
		return false
	}
	s.epoch++
	if s.armed != nil {
		s.armed.Stop()
		s.armed = nil
	}
	s.queue = nil
	if s.instrument != nil {
		s.instrument.Stop()
	}
	s.resetLocked()
	return true
}

func (s *Scheduler) resetLocked() {
	s.state = Idle
	s.current = NoNote
	s.total = 0
	s.notes = 0
}

func (s *Scheduler) pushLocked(ev *event) {
	ev.seq = s.seq
	s.seq++
	heap.Push(&s.queue, ev)
}

// armLocked arms the clock for the earliest queued callback.
func (s *Scheduler) armLocked() {
	if s.armed != nil {
		s.armed.Stop()
		s.armed = nil
	}
	if len(s.queue) == 0 {
		return
	}
	wait := s.queue[0].at - s.clock.Now().Sub(s.origin)
	epoch := s.epoch
	s.armed = s.clock.AfterFunc(wait, func() { s.dispatch(epoch) })
}

// dispatch runs every callback that is due, in order, then re-arms.
func (s *Scheduler) dispatch(epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch || s.state != Playing {
		return
	}
	s.armed = nil

	elapsed := s.clock.Now().Sub(s.origin)
	for len(s.queue) > 0 && s.queue[0].at <= elapsed {
		ev := heap.Pop(&s.queue).(*event)
		if ev.terminal {
			s.epoch++
			s.queue = nil
			s.resetLocked()
			s.log.Info("playback finished", "session", s.session)
			return
		}
		s.fireLocked(ev)
	}
	s.armLocked()
}

func (s *Scheduler) fireLocked(ev *event) {
	s.current = ev.index
	if s.instrument == nil {
		s.log.Debug("instrument missing, skipping audio", "index", ev.index, "note", ev.name)
		return
	}
	s.instrument.Play(ev.name, s.velocity, ev.duration)
}

func noteDuration(n melody.Note) time.Duration {
	d := seconds(n.Duration, MinNoteDuration)
	if d < MinNoteDuration {
		return MinNoteDuration
	}
	return d
}

// seconds converts a float second count, replacing negative or non-finite
// values with fallback.
func seconds(v float64, fallback time.Duration) time.Duration {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fallback
	}
	return time.Duration(v * float64(time.Second))
}

type event struct {
	at       time.Duration
	seq      int
	index    int
	name     string
	duration time.Duration
	terminal bool
}

// eventQueue orders events by fire time, then by scheduling order.
type eventQueue []*event

func (q eventQueue) Len() int { return len(q) }

func (q eventQueue) Less(i, j int) bool {
	if q[i].at == q[j].at {
		return q[i].seq < q[j].seq
	}
	return q[i].at < q[j].at
}

func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *eventQueue) Push(x any) { *q = append(*q, x.(*event)) }

func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return ev
}
