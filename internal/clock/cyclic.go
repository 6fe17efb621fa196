package clock

import "errors"

var (
	// ErrRangeStartNarrowed means a replacement range would begin later than the current one.
	ErrRangeStartNarrowed = errors.New("new range starts later than the current range")
	// ErrRangeEndNarrowed means a replacement range would end earlier than the current one.
	ErrRangeEndNarrowed = errors.New("new range ends earlier than the current range")
)

// cyclicSpan is an inclusive range over a cyclic domain of size period.
// from is always in [0, period); a span crossing the end of the cycle is
// stored unwrapped, with till >= period.
type cyclicSpan struct {
	from, till, period uint32
}

func (c cyclicSpan) span() uint32 {
	return c.till - c.from
}

// full reports whether every point of the domain is inside the span.
func (c cyclicSpan) full() bool {
	return c.span()+1 >= c.period
}

func (c cyclicSpan) contains(p uint32) bool {
	if c.from <= p && p <= c.till {
		return true
	}
	wrapped := p + c.period
	return c.from <= wrapped && wrapped <= c.till
}

// covers reports whether every point of o is also a point of c.
func (c cyclicSpan) covers(o cyclicSpan) bool {
	if c.full() {
		return true
	}
	if o.full() {
		return false
	}
	offset := (o.from + c.period - c.from) % c.period
	return offset+o.span() <= c.span()
}

// widen returns next if it covers c, otherwise the bound that next would cut.
func (c cyclicSpan) widen(next cyclicSpan) error {
	if next.covers(c) {
		return nil
	}
	if next.contains(c.from % c.period) {
		return ErrRangeEndNarrowed
	}
	return ErrRangeStartNarrowed
}
