package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resumedState(realTime bool, gap time.Duration) (*SimulationState, Reconciliation) {
	st := NewSimulationState(testEpoch, DefaultTicksPerSecond)
	st.Story.IsRealTime = realTime
	st.RealWorld = RealWorldTimeOf(testEpoch.Add(-gap))
	return st, st.Setup(testEpoch)
}

func TestSetupFirstRunRecordsTime(t *testing.T) {
	st := NewSimulationState(testEpoch, DefaultTicksPerSecond)
	r := st.Setup(testEpoch)

	assert.True(t, r.FirstRun)
	assert.Equal(t, RealWorldTimeOf(testEpoch), st.RealWorld)
	assert.Zero(t, st.Step.Accumulated())
	next, ok := st.Playback.Next()
	require.True(t, ok)
	assert.Equal(t, Playing, next)
}

func TestSetupClampsWithoutTeleport(t *testing.T) {
	st, r := resumedState(false, 90000*time.Second)

	assert.False(t, r.FirstRun)
	assert.Equal(t, 24*time.Hour, r.Backlog)
	assert.Zero(t, r.TeleportedTicks)
	assert.Zero(t, st.Story.ElapsedTicks())
	assert.Equal(t, 24*time.Hour, st.Step.Accumulated())
	assert.True(t, st.Playback.IsOrBecoming(Playing))
}

func TestSetupTeleportsBeyondOneDay(t *testing.T) {
	st, r := resumedState(true, 90000*time.Second)

	assert.Equal(t, 24*time.Hour, r.Backlog)
	assert.Equal(t, uint64(3600*DefaultTicksPerSecond), r.TeleportedTicks)
	assert.Equal(t, r.TeleportedTicks, st.Story.ElapsedTicks())
}

func TestSetupBacklogIndependentOfGap(t *testing.T) {
	long, rl := resumedState(true, 10*24*time.Hour)
	short, rs := resumedState(true, 2*24*time.Hour)

	assert.Equal(t, rs.Backlog, rl.Backlog)
	assert.Equal(t, short.Step.Accumulated(), long.Step.Accumulated())
	assert.Equal(t, uint64(9*SecondsPerDay*DefaultTicksPerSecond), rl.TeleportedTicks)
	assert.Equal(t, uint64(1*SecondsPerDay*DefaultTicksPerSecond), rs.TeleportedTicks)
}

func TestSetupShortAndNegativeGaps(t *testing.T) {
	_, r := resumedState(true, 90*time.Minute)
	assert.Equal(t, 90*time.Minute, r.Backlog)
	assert.Zero(t, r.TeleportedTicks)

	st, r := resumedState(true, -time.Hour)
	assert.Zero(t, r.Backlog)
	assert.Zero(t, st.Step.Accumulated())
}

func TestFastForwardEntry(t *testing.T) {
	st := NewSimulationState(testEpoch, DefaultTicksPerSecond)
	st.Playback.Force(Playing)
	st.Step.Tick(3*time.Second + 500*time.Millisecond)

	st.SetRateOfTime()

	assert.Zero(t, st.Step.Accumulated())
	assert.Equal(t, PeriodForRate(MaxSystemTicksPerSecond), st.Step.Period())
	assert.Equal(t, FastForwardState{InitialPendingTicks: 30, PendingTicks: 30}, st.FastForward)
	next, ok := st.Playback.Next()
	require.True(t, ok)
	assert.Equal(t, FastForwarding, next)
}

func TestOneSecondIsNotBacklog(t *testing.T) {
	st := NewSimulationState(testEpoch, DefaultTicksPerSecond)
	st.Playback.Force(Playing)
	st.Step.Tick(time.Second)

	st.SetRateOfTime()

	assert.Equal(t, time.Second, st.Step.Accumulated())
	assert.False(t, st.Playback.IsOrBecoming(FastForwarding))
}

func TestPausedBacklogIsDiscarded(t *testing.T) {
	st := NewSimulationState(testEpoch, DefaultTicksPerSecond)
	st.Playback.Force(Paused)
	st.Step.Tick(5 * time.Second)

	st.SetRateOfTime()

	assert.Zero(t, st.Step.Accumulated())
	assert.Zero(t, st.FastForward.PendingTicks)
	assert.False(t, st.Playback.IsOrBecoming(FastForwarding))

	st.UpdateTimeScale()
	assert.Equal(t, PeriodForRate(DefaultTicksPerSecond), st.Step.Period())
}

func TestFastForwardDrainsAndRestoresCurrentRate(t *testing.T) {
	st := NewSimulationState(testEpoch, DefaultTicksPerSecond)
	st.Playback.Force(Playing)
	st.Step.Tick(3*time.Second + 500*time.Millisecond)
	st.SetRateOfTime()
	st.Playback.Apply()
	require.Equal(t, FastForwarding, st.Playback.Current())

	prev := st.FastForward.PendingTicks
	for i := 0; st.FastForward.PendingTicks > 0; i++ {
		if i == 10 {
			require.NoError(t, st.SetTicksPerSecond(25))
		}
		st.UpdateTimeScale()
		assert.Equal(t, PeriodForRate(MaxSystemTicksPerSecond), st.Step.Period(), "rate held during fast-forward")

		st.SetRateOfTime()
		require.Less(t, st.FastForward.PendingTicks, prev)
		require.LessOrEqual(t, st.FastForward.PendingTicks, st.FastForward.InitialPendingTicks)
		prev = st.FastForward.PendingTicks
	}

	st.SetRateOfTime()

	assert.Equal(t, PeriodForRate(25), st.Step.Period())
	assert.Zero(t, st.FastForward.InitialPendingTicks)
	_, to, changed := st.Playback.Apply()
	assert.True(t, changed)
	assert.Equal(t, Playing, to)
}

func TestUpdateTimeScaleFollowsUserRate(t *testing.T) {
	st := NewSimulationState(testEpoch, DefaultTicksPerSecond)
	st.Playback.Force(Playing)
	require.NoError(t, st.SetTicksPerSecond(40))

	st.UpdateTimeScale()

	assert.Equal(t, 25*time.Millisecond, st.Step.Period())
}

func TestUpdateTimeScaleHeldWhenFastForwardRequested(t *testing.T) {
	st := NewSimulationState(testEpoch, DefaultTicksPerSecond)
	st.Playback.Force(Playing)
	st.Step.Tick(2 * time.Second)
	st.SetRateOfTime()

	st.UpdateTimeScale()

	assert.Equal(t, PeriodForRate(MaxSystemTicksPerSecond), st.Step.Period())
}

func TestSetTicksPerSecondBounds(t *testing.T) {
	st := NewSimulationState(testEpoch, DefaultTicksPerSecond)
	for _, tps := range []int{0, -3, MaxUserTicksPerSecond + 1} {
		err := st.SetTicksPerSecond(tps)
		assert.True(t, errors.Is(err, ErrInvalidRate), "tps %d", tps)
	}
	assert.NoError(t, st.SetTicksPerSecond(MaxUserTicksPerSecond))
	assert.Equal(t, MaxUserTicksPerSecond, st.TicksPerSecond)
}

func TestRequestPlayback(t *testing.T) {
	st := NewSimulationState(testEpoch, DefaultTicksPerSecond)
	assert.ErrorIs(t, st.RequestPlayback(Playing), ErrStopped)

	st.Playback.Force(Playing)
	require.NoError(t, st.RequestPlayback(Paused))
	st.Playback.Apply()
	assert.Equal(t, Paused, st.Playback.Current())

	require.NoError(t, st.RequestPlayback(Playing))
	st.Playback.Apply()
	assert.Equal(t, Playing, st.Playback.Current())

	assert.Error(t, st.RequestPlayback(FastForwarding))
	assert.Error(t, st.RequestPlayback(Stopped))

	st.Playback.SetNext(FastForwarding)
	assert.ErrorIs(t, st.RequestPlayback(Paused), ErrFastForwarding)
	st.Playback.Apply()
	assert.ErrorIs(t, st.RequestPlayback(Paused), ErrFastForwarding)
}

func TestTeardownAbandonsBacklog(t *testing.T) {
	st := NewSimulationState(testEpoch, DefaultTicksPerSecond)
	st.Playback.Force(Playing)
	st.Step.Tick(10 * time.Second)
	st.SetRateOfTime()
	st.Playback.Apply()
	st.Step.Tick(time.Millisecond)

	st.Teardown()

	assert.Equal(t, Stopped, st.Playback.Current())
	assert.Equal(t, FastForwardState{}, st.FastForward)
	assert.Zero(t, st.Step.Accumulated())
	assert.Equal(t, PeriodForRate(DefaultTicksPerSecond), st.Step.Period())
}

func TestFastForwardProgress(t *testing.T) {
	assert.Equal(t, 1.0, FastForwardState{}.Progress())
	assert.InDelta(t, 0.25, FastForwardState{InitialPendingTicks: 100, PendingTicks: 75}.Progress(), 1e-9)
}

func TestPlaybackApply(t *testing.T) {
	var p Playback
	_, _, changed := p.Apply()
	assert.False(t, changed)

	p.SetNext(Paused)
	p.SetNext(Playing)
	from, to, changed := p.Apply()
	assert.True(t, changed)
	assert.Equal(t, Stopped, from)
	assert.Equal(t, Playing, to)

	p.SetNext(Playing)
	_, _, changed = p.Apply()
	assert.False(t, changed)

	for _, s := range []PlaybackState{Stopped, Paused, Playing, FastForwarding} {
		parsed, err := ParsePlaybackState(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
	_, err := ParsePlaybackState("rewind")
	assert.Error(t, err)
}
