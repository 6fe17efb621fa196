// Package clock contains the time value types the regulation engine reasons
// about: millisecond durations, times of day, weekdays, wall-clock instants,
// countdown timers and the cyclic ranges built on top of them.
package clock

import (
	"fmt"
	"math"
	"time"
)

// Duration is a non-negative number of milliseconds.
// Arithmetic is checked: every operation that could overflow or go negative
// reports failure instead of wrapping.
type Duration uint64

const (
	Millisecond Duration = 1
	Second               = 1000 * Millisecond
	Minute               = 60 * Second
	Hour                 = 60 * Minute
	Day                  = 24 * Hour
	Week                 = 7 * Day
)

// Milliseconds returns the duration as a raw millisecond count.
func (d Duration) Milliseconds() uint64 {
	return uint64(d)
}

// Add returns d+o, or false on overflow.
func (d Duration) Add(o Duration) (Duration, bool) {
	if uint64(o) > math.MaxUint64-uint64(d) {
		return 0, false
	}
	return d + o, true
}

// Sub returns d-o, or false when o is greater than d.
func (d Duration) Sub(o Duration) (Duration, bool) {
	if o > d {
		return 0, false
	}
	return d - o, true
}

// SaturatingSub returns d-o, clamped at zero.
func (d Duration) SaturatingSub(o Duration) Duration {
	if o > d {
		return 0
	}
	return d - o
}

// Mul returns d*n, or false on overflow.
func (d Duration) Mul(n uint64) (Duration, bool) {
	if d == 0 || n == 0 {
		return 0, true
	}
	if uint64(d) > math.MaxUint64/n {
		return 0, false
	}
	return d * Duration(n), true
}

// Div returns d/n, or false when n is zero.
func (d Duration) Div(n uint64) (Duration, bool) {
	if n == 0 {
		return 0, false
	}
	return d / Duration(n), true
}

// Std converts to a time.Duration, saturating at the largest representable value.
func (d Duration) Std() time.Duration {
	if uint64(d) > uint64(math.MaxInt64/int64(time.Millisecond)) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d) * time.Millisecond
}

// FromStd converts a time.Duration, truncating to milliseconds.
// Negative values become zero.
func FromStd(d time.Duration) Duration {
	if d <= 0 {
		return 0
	}
	return Duration(d / time.Millisecond)
}

// ParseDuration parses a Go duration string ("90m", "2h30m") into a Duration.
func ParseDuration(s string) (Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %q is negative", s)
	}
	return FromStd(d), nil
}

func (d Duration) String() string {
	return d.Std().String()
}
