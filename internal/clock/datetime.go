package clock

import (
	"sync"
	"time"
)

// DateTime is a wall-clock instant in the host's local time zone.
type DateTime struct {
	t time.Time
}

// FromTime wraps a time.Time.
func FromTime(t time.Time) DateTime {
	return DateTime{t: t}
}

// FromUnixMilli restores a DateTime from its persisted form.
func FromUnixMilli(ms int64) DateTime {
	return DateTime{t: time.UnixMilli(ms)}
}

// UnixMilli returns the persisted form of the instant.
func (d DateTime) UnixMilli() int64 {
	return d.t.UnixMilli()
}

// Time returns the underlying time.Time.
func (d DateTime) Time() time.Time {
	return d.t
}

// TimeOfDay returns the local time of day.
func (d DateTime) TimeOfDay() TimeOfDay {
	local := d.t.Local()
	h, m, s := local.Clock()
	ms := Duration(h)*Hour + Duration(m)*Minute + Duration(s)*Second +
		Duration(local.Nanosecond())/Duration(time.Millisecond)
	return TimeOfDay(ms)
}

// Weekday returns the local weekday.
func (d DateTime) Weekday() Weekday {
	return Weekday(d.t.Local().Weekday())
}

// Since returns the time elapsed from earlier to d, or zero if earlier is after d.
func (d DateTime) Since(earlier DateTime) Duration {
	return FromStd(d.t.Sub(earlier.t))
}

// After reports whether d is strictly after o.
func (d DateTime) After(o DateTime) bool {
	return d.t.After(o.t)
}

// Add returns d shifted forward by dur.
func (d DateTime) Add(dur Duration) DateTime {
	return DateTime{t: d.t.Add(dur.Std())}
}

// IsZero reports whether d is the zero instant.
func (d DateTime) IsZero() bool {
	return d.t.IsZero()
}

func (d DateTime) String() string {
	return d.t.Format(time.RFC3339)
}

// Clock is the source of the current instant. Inject MockClock in tests.
type Clock interface {
	Now() DateTime
}

// RealClock reads the system clock.
type RealClock struct{}

// Now returns the current system time.
func (RealClock) Now() DateTime {
	return DateTime{t: time.Now()}
}

// MockClock is a clock with controllable time.
type MockClock struct {
	mu      sync.RWMutex
	current time.Time
}

// NewMockClock creates a mock clock set to t.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{current: t}
}

// Now returns the mock time.
func (c *MockClock) Now() DateTime {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return DateTime{t: c.current}
}

// Set moves the mock clock to t.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}

// Advance moves the mock clock forward by d.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}
