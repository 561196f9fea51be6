package engine

import (
	"sync"
	"time"
)

// TimeProvider supplies wall-clock readings. Real time never pauses, so the
// clock is injected rather than read directly.
type TimeProvider interface {
	Now() time.Time
}

// SystemTime reads the real clock.
type SystemTime struct{}

// Now returns the current time with monotonic clock reading.
func (SystemTime) Now() time.Time { return time.Now() }

// MockTimeProvider is a manually advanced clock for tests and replays.
type MockTimeProvider struct {
	mu          sync.RWMutex
	currentTime time.Time
}

// NewMockTimeProvider creates a mock clock starting at startTime.
func NewMockTimeProvider(startTime time.Time) *MockTimeProvider {
	return &MockTimeProvider{currentTime: startTime}
}

// Now returns the current mocked time.
func (m *MockTimeProvider) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentTime
}

// SetTime sets the current time.
func (m *MockTimeProvider) SetTime(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentTime = t
}

// Advance moves the clock forward by d.
func (m *MockTimeProvider) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentTime = m.currentTime.Add(d)
}
