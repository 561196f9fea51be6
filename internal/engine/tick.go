// Package engine provides the story clock, the frame driver and the
// per-tick colony systems.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Engine drives a Simulation frame by frame. A frame feeds real elapsed time
// into the fixed-step accumulator and runs as many fixed steps as it covers.
// All access to the simulation goes through the engine's lock.
type Engine struct {
	Sim   *Simulation
	Clock TimeProvider

	FrameInterval    time.Duration // Real time between frames
	MaxStepsPerFrame int           // Leftover time stays accumulated
	AutosaveInterval time.Duration // Zero disables autosave
	SaveDaily        bool          // Also save at each story day boundary while Playing

	// Callbacks keyed on story ticks. They run with the lock held.
	OnTick func(tick uint64) // Every tick
	OnHour func(tick uint64) // Every story hour
	OnDay  func(tick uint64) // Every story day

	// OnSave persists a snapshot. It runs without the lock held.
	OnSave func(snap WorldSnapshot) error

	mu        sync.RWMutex
	lastFrame time.Time
	lastSave  time.Time
	saveDue   bool
}

// NewEngine creates an engine for sim with default settings.
func NewEngine(sim *Simulation, clock TimeProvider) *Engine {
	if clock == nil {
		clock = SystemTime{}
	}
	return &Engine{
		Sim:              sim,
		Clock:            clock,
		FrameInterval:    time.Second / 60,
		MaxStepsPerFrame: 2000,
	}
}

// Start attaches the story to real time, queueing any backlog since it was
// last saved, and requests Playing.
func (e *Engine) Start() Reconciliation {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.Clock.Now()
	e.lastFrame = now
	e.lastSave = now
	return e.Sim.State.Setup(now)
}

// Run calls Frame every FrameInterval until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	interval := e.FrameInterval
	if interval <= 0 {
		interval = time.Second / 60
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("simulation engine started", "tick", e.CurrentTick(), "frame_interval", interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("simulation engine stopped", "tick", e.CurrentTick())
			return
		case <-ticker.C:
			e.Frame()
		}
	}
}

// Frame runs one frame:
//  1. apply the pending playback transition;
//  2. run the fixed steps covered by real elapsed time;
//  3. refresh the normal rate unless fast-forwarding or about to;
//  4. record the real-world time;
//  5. autosave while Playing, on the interval or a due daily save.
func (e *Engine) Frame() {
	now := e.Clock.Now()

	e.mu.Lock()
	st := e.Sim.State
	if from, to, changed := st.Playback.Apply(); changed {
		e.onTransition(from, to)
	}
	if st.Playback.Current() == Stopped {
		e.mu.Unlock()
		return
	}

	elapsed := now.Sub(e.lastFrame)
	e.lastFrame = now
	st.Step.Tick(elapsed)

	limit := e.MaxStepsPerFrame
	if limit <= 0 {
		limit = 1
	}
	for steps := 0; steps < limit && st.Step.Expend(); steps++ {
		if e.Sim.Step(now) {
			e.cadence(e.Sim.CurrentTick())
		}
	}

	st.UpdateTimeScale()
	st.UpdateRealWorldTime(now)

	var snap *WorldSnapshot
	interval := e.AutosaveInterval > 0 && now.Sub(e.lastSave) >= e.AutosaveInterval
	if e.OnSave != nil && st.Playback.Current() == Playing && (interval || e.saveDue) {
		s := e.Sim.Snapshot()
		snap = &s
		e.lastSave = now
	}
	e.saveDue = false
	e.mu.Unlock()

	if snap != nil {
		if err := e.OnSave(*snap); err != nil {
			slog.Error("autosave failed", "tick", snap.Story.ElapsedTicks, "error", err)
		}
	}
}

func (e *Engine) cadence(tick uint64) {
	if e.OnTick != nil {
		e.OnTick(tick)
	}
	if tick%TicksPerStoryHour == 0 && e.OnHour != nil {
		e.OnHour(tick)
	}
	if tick%TicksPerStoryDay == 0 {
		if e.OnDay != nil {
			e.OnDay(tick)
		}
		if e.SaveDaily && e.Sim.State.Playback.Current() == Playing {
			e.saveDue = true
		}
	}
}

func (e *Engine) onTransition(from, to PlaybackState) {
	ff := e.Sim.State.FastForward
	switch {
	case to == FastForwarding:
		slog.Info("fast-forwarding",
			"owed_ticks", humanize.Comma(int64(ff.InitialPendingTicks)),
			"tick", e.Sim.CurrentTick(),
		)
		e.Sim.Events.Emit(Event{
			Tick:        e.Sim.CurrentTick(),
			Category:    "time",
			Description: "Catching up on " + humanize.Comma(int64(ff.InitialPendingTicks)) + " ticks",
			Meta:        map[string]any{"owed_ticks": ff.InitialPendingTicks},
		})
	case from == FastForwarding:
		slog.Info("caught up", "tick", e.Sim.CurrentTick(), "ticks_per_second", e.Sim.State.TicksPerSecond)
		e.Sim.EmitEvent("time", "Caught up at %s", e.Sim.State.Story.TimeInfo())
	default:
		slog.Info("playback changed", "from", from, "to", to)
	}
}

// Stop tears the story down: any backlog is abandoned and playback is
// Stopped. A stopped engine ignores further frames.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Sim.State.Teardown()
}

// Play resumes a paused story.
func (e *Engine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Sim.State.RequestPlayback(Playing)
}

// Pause halts story time. Real time keeps being recorded.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Sim.State.RequestPlayback(Paused)
}

// SetTicksPerSecond changes the user rate.
func (e *Engine) SetTicksPerSecond(tps int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.Sim.State.SetTicksPerSecond(tps); err != nil {
		return err
	}
	slog.Info("speed changed", "ticks_per_second", tps)
	return nil
}

// Enqueue queues an external command for the next fixed step.
func (e *Engine) Enqueue(cmd ExternalCommand) error {
	return e.Sim.Enqueue(cmd)
}

// View runs fn with the simulation locked for reading.
func (e *Engine) View(fn func(*Simulation)) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn(e.Sim)
}

// Snapshot captures the story under the read lock.
func (e *Engine) Snapshot() WorldSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.Sim.Snapshot()
}

// Status summarizes the story.
func (e *Engine) Status() Status {
	now := e.Clock.Now()
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.Sim.Status(now)
}

// CurrentTick returns the story's elapsed ticks.
func (e *Engine) CurrentTick() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.Sim.CurrentTick()
}
