package clock

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidWeekday is returned for numbers outside [0, 6] and unknown names.
var ErrInvalidWeekday = errors.New("invalid weekday")

// Weekday numbers days the same way time.Weekday does: Sunday is 0.
type Weekday uint8

const (
	Sunday Weekday = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

// DaysPerWeek is the size of the weekday domain.
const DaysPerWeek = 7

// NewWeekday validates n as a weekday number.
func NewWeekday(n int) (Weekday, error) {
	if n < 0 || n >= DaysPerWeek {
		return 0, fmt.Errorf("%w: %d", ErrInvalidWeekday, n)
	}
	return Weekday(n), nil
}

// ParseWeekday accepts full or three-letter English names, case-insensitively.
func ParseWeekday(s string) (Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := Sunday; d <= Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidWeekday, s)
}

func (d Weekday) String() string {
	return time.Weekday(d).String()
}
