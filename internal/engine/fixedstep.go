package engine

import "time"

// FixedStep accumulates real elapsed time and releases it one period at a
// time. The period is the only knob the rate controller turns.
type FixedStep struct {
	period      time.Duration
	accumulated time.Duration
}

// NewFixedStep returns an empty accumulator with the given period.
func NewFixedStep(period time.Duration) FixedStep {
	return FixedStep{period: period}
}

// Period returns the current step length.
func (f *FixedStep) Period() time.Duration { return f.period }

// SetPeriod changes the step length.
func (f *FixedStep) SetPeriod(d time.Duration) {
	if d <= 0 {
		d = PeriodForRate(MaxSystemTicksPerSecond)
	}
	f.period = d
}

// Accumulated returns real time owed but not yet simulated.
func (f *FixedStep) Accumulated() time.Duration { return f.accumulated }

// Tick adds real elapsed time.
func (f *FixedStep) Tick(d time.Duration) {
	if d > 0 {
		f.accumulated += d
	}
}

// Expend consumes one period if enough time has accumulated.
func (f *FixedStep) Expend() bool {
	if f.accumulated < f.period {
		return false
	}
	f.accumulated -= f.period
	return true
}

// Discard drops all accumulated time.
func (f *FixedStep) Discard() { f.accumulated = 0 }
