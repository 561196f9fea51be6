// Rate-of-time control: reconciling story time with real time after a
// suspension and fast-forwarding through the resulting backlog without
// stalling the frame loop.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
)

var (
	ErrFastForwarding = errors.New("engine: fast-forwarding in progress")
	ErrInvalidRate    = errors.New("engine: invalid ticks per second")
	ErrStopped        = errors.New("engine: story is stopped")
	ErrUnknownCommand = errors.New("engine: unknown command")
)

// FastForwardState counts ticks owed to catch up. PendingTicks never
// exceeds InitialPendingTicks and only decreases once set.
type FastForwardState struct {
	InitialPendingTicks uint64 `json:"initial_pending_ticks"`
	PendingTicks        uint64 `json:"pending_ticks"`
}

// Progress returns the completed share of the current catch-up in [0, 1].
func (f FastForwardState) Progress() float64 {
	if f.InitialPendingTicks == 0 {
		return 1
	}
	return 1 - float64(f.PendingTicks)/float64(f.InitialPendingTicks)
}

// SimulationState groups the clock and rate resources that live exactly as
// long as one story. It is owned by the frame driver and passed through
// every step; nothing else mutates it.
type SimulationState struct {
	Story          StoryTime
	RealWorld      RealWorldTime
	TicksPerSecond int // User baseline, restored after fast-forwarding
	FastForward    FastForwardState
	Playback       Playback
	Step           FixedStep
}

// NewSimulationState creates the resources for a new story at now.
func NewSimulationState(now time.Time, ticksPerSecond int) *SimulationState {
	if ticksPerSecond <= 0 {
		ticksPerSecond = DefaultTicksPerSecond
	}
	return &SimulationState{
		Story:          NewStoryTime(now),
		TicksPerSecond: ticksPerSecond,
		Step:           NewFixedStep(PeriodForRate(ticksPerSecond)),
	}
}

// Reconciliation describes what Setup did with a suspension gap.
type Reconciliation struct {
	FirstRun        bool
	Gap             time.Duration // Real time since the last recorded timestamp
	TeleportedTicks uint64        // Ticks skipped beyond the one-day window
	Backlog         time.Duration // Real time queued to be played out
}

// Setup attaches the story to real time. On the first run it records now.
// On a resume it queues the gap as backlog, never more than one day; any
// excess is teleported when the story tracks real time and discarded
// otherwise. The story then starts Playing.
func (s *SimulationState) Setup(now time.Time) Reconciliation {
	defer s.Playback.SetNext(Playing)

	if s.RealWorld == 0 {
		s.RealWorld = RealWorldTimeOf(now)
		return Reconciliation{FirstRun: true}
	}

	gap := now.Sub(s.RealWorld.Time())
	delta := int64(gap / time.Second)
	if delta < 0 {
		delta = 0
	}

	r := Reconciliation{Gap: gap}
	if past := delta - SecondsPerDay; past > 0 {
		if s.Story.IsRealTime {
			r.TeleportedTicks = uint64(past) * uint64(s.TicksPerSecond)
			s.Story.Teleport(r.TeleportedTicks)
		}
		delta = SecondsPerDay
	}

	r.Backlog = time.Duration(delta) * time.Second
	s.Step.Tick(r.Backlog)

	slog.Info("story resumed",
		"away", humanize.RelTime(s.RealWorld.Time(), now, "ago", "from now"),
		"backlog", r.Backlog,
		"teleported_ticks", humanize.Comma(int64(r.TeleportedTicks)),
	)
	return r
}

// SetRateOfTime runs once per fixed step, after the story tick. With no
// backlog pending it either finishes a fast-forward or checks whether more
// than a second of real time has piled up; if so the whole pile is
// discharged as one period and the owed ticks are drained at the system
// ceiling instead. Paused stories drop the pile. With backlog pending it
// counts down one tick.
func (s *SimulationState) SetRateOfTime() {
	if s.FastForward.PendingTicks != 0 {
		s.FastForward.PendingTicks--
		return
	}

	if s.Playback.Current() == FastForwarding {
		s.Step.SetPeriod(PeriodForRate(s.TicksPerSecond))
		s.Playback.SetNext(Playing)
		s.FastForward.InitialPendingTicks = 0
		return
	}

	accumulated := s.Step.Accumulated()
	if accumulated <= time.Second {
		return
	}

	s.Step.SetPeriod(accumulated)
	s.Step.Expend()
	s.Step.SetPeriod(PeriodForRate(MaxSystemTicksPerSecond))

	if s.Playback.Current() == Paused {
		return
	}

	ticks := uint64(s.TicksPerSecond) * uint64(accumulated/time.Second)
	s.FastForward = FastForwardState{InitialPendingTicks: ticks, PendingTicks: ticks}
	s.Playback.SetNext(FastForwarding)
}

// UpdateTimeScale applies the user rate once per frame unless a
// fast-forward is running or about to start.
func (s *SimulationState) UpdateTimeScale() {
	if s.Playback.IsOrBecoming(FastForwarding) {
		return
	}
	s.Step.SetPeriod(PeriodForRate(s.TicksPerSecond))
}

// UpdateRealWorldTime records the wall clock. It runs every frame, paused
// or not, because real time does not pause.
func (s *SimulationState) UpdateRealWorldTime(now time.Time) {
	s.RealWorld = RealWorldTimeOf(now)
}

// SetTicksPerSecond changes the user baseline. The step period follows on
// the next frame's time-scale update.
func (s *SimulationState) SetTicksPerSecond(tps int) error {
	if tps < 1 || tps > MaxUserTicksPerSecond {
		return fmt.Errorf("%w: %d not in 1..%d", ErrInvalidRate, tps, MaxUserTicksPerSecond)
	}
	s.TicksPerSecond = tps
	return nil
}

// RequestPlayback handles user play/pause. Users cannot interrupt a
// fast-forward or drive a stopped story.
func (s *SimulationState) RequestPlayback(to PlaybackState) error {
	switch {
	case to != Playing && to != Paused:
		return fmt.Errorf("engine: cannot request %s", to)
	case s.Playback.Current() == Stopped:
		return ErrStopped
	case s.Playback.IsOrBecoming(FastForwarding):
		return ErrFastForwarding
	}
	s.Playback.SetNext(to)
	return nil
}

// Teardown abandons any backlog and stops the story.
func (s *SimulationState) Teardown() {
	s.FastForward = FastForwardState{}
	s.Step.Discard()
	s.Step.SetPeriod(PeriodForRate(s.TicksPerSecond))
	s.Playback.Force(Stopped)
}
