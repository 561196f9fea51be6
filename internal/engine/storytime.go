// Story clock: elapsed ticks, the calendar derived from them, and the
// real-world timestamp used to measure how long the story was suspended.
package engine

import (
	"fmt"
	"math"
	"time"
)

const (
	DefaultTicksPerSecond   = 10
	MaxUserTicksPerSecond   = 1500
	MaxSystemTicksPerSecond = 50000

	SecondsPerHour = 3600
	SecondsPerDay  = 86400

	// Sandbox stories start at 8AM on the first day rather than midnight.
	demoTimeOffset = 8 * SecondsPerHour
)

// Cadence of the engine callbacks, in story ticks.
const (
	TicksPerStoryMinute = DefaultTicksPerSecond * 60
	TicksPerStoryHour   = TicksPerStoryMinute * 60
	TicksPerStoryDay    = TicksPerStoryHour * 24
)

// StoryTime counts simulated ticks. elapsedTicks only grows, either one
// tick at a time or by teleporting over time too large to play out.
type StoryTime struct {
	elapsedTicks uint64

	IsRealTime bool    // Keep story time-of-day in sync with the wall clock
	IsRealSun  bool    // Derive sunrise/sunset from Latitude/Longitude
	Latitude   float64 // Degrees north
	Longitude  float64 // Degrees east

	realTimeOffset int64 // Seconds past local midnight when the story began
	demoTimeOffset int64
}

// NewStoryTime creates a clock for a story starting at now.
func NewStoryTime(now time.Time) StoryTime {
	local := now.Local()
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
	return StoryTime{
		// Might as well default to San Francisco.
		Latitude:       37.0,
		Longitude:      -122.0,
		realTimeOffset: int64(local.Sub(midnight) / time.Second),
		demoTimeOffset: demoTimeOffset,
	}
}

// ElapsedTicks returns the number of ticks simulated or teleported so far.
func (s *StoryTime) ElapsedTicks() uint64 { return s.elapsedTicks }

// AdvanceTick records one simulated tick.
func (s *StoryTime) AdvanceTick() { s.elapsedTicks++ }

// Teleport skips ticks that will not be simulated.
func (s *StoryTime) Teleport(ticks uint64) { s.elapsedTicks += ticks }

// TimeInfo is a calendar reading of story time.
type TimeInfo struct {
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

// DecimalHours returns hours plus the minute fraction.
func (t TimeInfo) DecimalHours() float64 {
	return float64(t.Hours) + float64(t.Minutes)/60
}

func (t TimeInfo) String() string {
	return fmt.Sprintf("Day %d, %02d:%02d", t.Days+1, t.Hours, t.Minutes)
}

// TimeInfo converts elapsed ticks to days/hours/minutes. The calendar always
// runs at the default rate so a story's clock reads the same however fast
// it was played.
func (s *StoryTime) TimeInfo() TimeInfo {
	offset := s.demoTimeOffset
	if s.IsRealTime {
		offset = s.realTimeOffset
	}
	total := float64(s.elapsedTicks)/DefaultTicksPerSecond + float64(offset)
	days := math.Floor(total / SecondsPerDay)
	hoursTotal := math.Mod(total, SecondsPerDay) / SecondsPerHour
	hours := math.Floor(hoursTotal)
	minutes := math.Floor((hoursTotal - hours) * 60)
	return TimeInfo{Days: int(days), Hours: int(hours), Minutes: int(minutes)}
}

// SunriseSunset returns local sunrise and sunset as decimal hours. Sandbox
// stories use a fixed 8AM/8PM day; real-sun stories compute it for the
// current local date and fall back to the fixed day near the poles.
func (s *StoryTime) SunriseSunset(now time.Time) (float64, float64) {
	if !s.IsRealTime || !s.IsRealSun {
		return 8.0, 20.0
	}
	rise, set, ok := sunTimes(now.Local(), s.Latitude, s.Longitude)
	if !ok {
		return 8.0, 20.0
	}
	return decimalHours(rise.In(now.Location())), decimalHours(set.In(now.Location()))
}

// IsNighttime reports whether story time is more than two hours before
// sunrise or at least two hours after sunset.
func (s *StoryTime) IsNighttime(now time.Time) bool {
	sunrise, sunset := s.SunriseSunset(now)
	h := s.TimeInfo().Hours
	return h < int(sunrise-2) || h >= int(sunset+2)
}

// IsWithinScheduleWindow reports whether story time is within two hours
// of the sunrise hour.
func (s *StoryTime) IsWithinScheduleWindow(now time.Time) bool {
	sunrise, _ := s.SunriseSunset(now)
	diff := s.TimeInfo().Hours - int(math.Trunc(sunrise))
	if diff < 0 {
		diff = -diff
	}
	return diff < 2
}

func decimalHours(t time.Time) float64 {
	return float64(t.Hour()) + float64(t.Minute())/60
}

// StoryTimeState is the plain view used for snapshots.
type StoryTimeState struct {
	ElapsedTicks   uint64  `json:"elapsed_ticks"`
	IsRealTime     bool    `json:"is_real_time"`
	IsRealSun      bool    `json:"is_real_sun"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	RealTimeOffset int64   `json:"real_time_offset"`
	DemoTimeOffset int64   `json:"demo_time_offset"`
}

// State returns the plain view of s.
func (s *StoryTime) State() StoryTimeState {
	return StoryTimeState{
		ElapsedTicks:   s.elapsedTicks,
		IsRealTime:     s.IsRealTime,
		IsRealSun:      s.IsRealSun,
		Latitude:       s.Latitude,
		Longitude:      s.Longitude,
		RealTimeOffset: s.realTimeOffset,
		DemoTimeOffset: s.demoTimeOffset,
	}
}

// RestoreStoryTime rebuilds a clock from a snapshot.
func RestoreStoryTime(st StoryTimeState) (StoryTime, error) {
	if st.RealTimeOffset < 0 || st.RealTimeOffset >= SecondsPerDay {
		return StoryTime{}, fmt.Errorf("restore story time: real time offset %d outside one day", st.RealTimeOffset)
	}
	if st.DemoTimeOffset < 0 || st.DemoTimeOffset >= SecondsPerDay {
		return StoryTime{}, fmt.Errorf("restore story time: demo time offset %d outside one day", st.DemoTimeOffset)
	}
	return StoryTime{
		elapsedTicks:   st.ElapsedTicks,
		IsRealTime:     st.IsRealTime,
		IsRealSun:      st.IsRealSun,
		Latitude:       st.Latitude,
		Longitude:      st.Longitude,
		realTimeOffset: st.RealTimeOffset,
		demoTimeOffset: st.DemoTimeOffset,
	}, nil
}

// RealWorldTime is the last observed wall-clock time in milliseconds since
// the epoch. Zero means the story has never been attached to real time.
type RealWorldTime int64

// RealWorldTimeOf converts a wall-clock reading.
func RealWorldTimeOf(t time.Time) RealWorldTime {
	return RealWorldTime(t.UnixMilli())
}

// Time converts back to a time.Time.
func (r RealWorldTime) Time() time.Time {
	return time.UnixMilli(int64(r))
}

// PeriodForRate returns the fixed-step period for a tick rate.
func PeriodForRate(ticksPerSecond int) time.Duration {
	if ticksPerSecond <= 0 {
		ticksPerSecond = DefaultTicksPerSecond
	}
	return time.Second / time.Duration(ticksPerSecond)
}
