package clock

// CountdownTimer counts wall time down from a duration.
// Remaining time is never cached as a flag: it is derived from the last
// synchronization point and the instant being asked about.
type CountdownTimer struct {
	duration     Duration
	remaining    Duration
	previousSync DateTime
}

// NewCountdownTimer returns a finished timer synchronized at now.
func NewCountdownTimer(now DateTime) CountdownTimer {
	return CountdownTimer{previousSync: now}
}

// RestoreCountdownTimer rebuilds a timer from persisted fields.
// remaining is clamped to duration.
func RestoreCountdownTimer(duration, remaining Duration, previousSync DateTime) CountdownTimer {
	if remaining > duration {
		remaining = duration
	}
	return CountdownTimer{duration: duration, remaining: remaining, previousSync: previousSync}
}

// Duration is the total time the timer has been given.
func (c CountdownTimer) Duration() Duration { return c.duration }

// PreviousSync is the instant of the last synchronization.
func (c CountdownTimer) PreviousSync() DateTime { return c.previousSync }

// StoredRemaining is the remaining time as of PreviousSync.
func (c CountdownTimer) StoredRemaining() Duration { return c.remaining }

// RemainingDuration returns the time left at now without mutating the timer.
func (c CountdownTimer) RemainingDuration(now DateTime) Duration {
	if !now.After(c.previousSync) {
		return c.remaining
	}
	return c.remaining.SaturatingSub(now.Since(c.previousSync))
}

// IsFinished reports whether no time is left at now.
func (c CountdownTimer) IsFinished(now DateTime) bool {
	return c.RemainingDuration(now) == 0
}

// Synchronize charges the wall time elapsed since the previous
// synchronization. Instants at or before the previous one change nothing.
func (c *CountdownTimer) Synchronize(now DateTime) {
	if !now.After(c.previousSync) {
		return
	}
	c.remaining = c.remaining.SaturatingSub(now.Since(c.previousSync))
	c.previousSync = now
}

// Increment synchronizes at now and then adds d to both the total and the
// remaining time. It reports false, leaving the timer untouched, on overflow.
func (c *CountdownTimer) Increment(d Duration, now DateTime) bool {
	next := *c
	next.Synchronize(now)
	remaining, ok := next.remaining.Add(d)
	if !ok {
		return false
	}
	total, ok := next.duration.Add(d)
	if !ok {
		return false
	}
	next.remaining = remaining
	next.duration = total
	*c = next
	return true
}

// Reset starts the timer over with d remaining, synchronized at now.
func (c *CountdownTimer) Reset(d Duration, now DateTime) {
	c.duration = d
	c.remaining = d
	c.previousSync = now
}
