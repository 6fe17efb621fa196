package clock

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeRange_Contains(t *testing.T) {
	tests := []struct {
		name string
		from TimeOfDay
		till TimeOfDay
		at   TimeOfDay
		want bool
	}{
		{"inside same-day range", MustTimeOfDay(9, 0), MustTimeOfDay(17, 0), MustTimeOfDay(12, 0), true},
		{"start is inclusive", MustTimeOfDay(9, 0), MustTimeOfDay(17, 0), MustTimeOfDay(9, 0), true},
		{"end is inclusive", MustTimeOfDay(9, 0), MustTimeOfDay(17, 0), MustTimeOfDay(17, 0), true},
		{"before same-day range", MustTimeOfDay(9, 0), MustTimeOfDay(17, 0), MustTimeOfDay(8, 59), false},
		{"late evening in overnight range", MustTimeOfDay(22, 0), MustTimeOfDay(2, 0), MustTimeOfDay(23, 30), true},
		{"early morning in overnight range", MustTimeOfDay(22, 0), MustTimeOfDay(2, 0), MustTimeOfDay(1, 0), true},
		{"noon outside overnight range", MustTimeOfDay(22, 0), MustTimeOfDay(2, 0), MustTimeOfDay(12, 0), false},
		{"midnight in overnight range", MustTimeOfDay(22, 0), MustTimeOfDay(2, 0), MustTimeOfDay(0, 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewTimeRange(tt.from, tt.till)
			assert.Equal(t, tt.want, r.Contains(tt.at))
		})
	}
}

func TestTimeRange_NewStoresOvernightEndShifted(t *testing.T) {
	r := NewTimeRange(MustTimeOfDay(22, 0), MustTimeOfDay(2, 0))

	assert.True(t, r.CrossesMidnight())
	assert.Equal(t, uint32(26*Hour), r.Till())
	assert.Equal(t, 4*Hour, r.Duration())
	assert.Equal(t, "22:00-02:00", r.String())
}

func TestTimeRangeFromNumbers(t *testing.T) {
	tests := []struct {
		name    string
		from    uint32
		till    uint32
		wantErr bool
	}{
		{"same-day range", uint32(9 * Hour), uint32(17 * Hour), false},
		{"overnight range", uint32(22 * Hour), uint32(26 * Hour), false},
		{"full day", 0, uint32(Day), false},
		{"start after end", uint32(17 * Hour), uint32(9 * Hour), true},
		{"longer than a day", uint32(1 * Hour), uint32(Day + 2*Hour), true},
		{"start not a time of day", uint32(Day), uint32(Day + Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := TimeRangeFromNumbers(tt.from, tt.till)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTimeRange)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.from, r.From())
			assert.Equal(t, tt.till, r.Till())
		})
	}
}

func TestTimeRange_NarrowerWider(t *testing.T) {
	workday := NewTimeRange(MustTimeOfDay(9, 0), MustTimeOfDay(17, 0))
	inner := NewTimeRange(MustTimeOfDay(10, 0), MustTimeOfDay(16, 0))
	outer := NewTimeRange(MustTimeOfDay(8, 0), MustTimeOfDay(18, 0))
	shifted := NewTimeRange(MustTimeOfDay(10, 0), MustTimeOfDay(18, 0))

	assert.True(t, inner.IsNarrowerThan(workday))
	assert.True(t, outer.IsWiderThan(workday))
	assert.False(t, workday.IsNarrowerThan(workday), "equal ranges are not narrower")
	assert.False(t, workday.IsWiderThan(workday), "equal ranges are not wider")
	assert.False(t, shifted.IsNarrowerThan(workday))
	assert.False(t, shifted.IsWiderThan(workday))

	night := NewTimeRange(MustTimeOfDay(22, 0), MustTimeOfDay(2, 0))
	afterMidnight := NewTimeRange(MustTimeOfDay(0, 30), MustTimeOfDay(1, 30))
	assert.True(t, afterMidnight.IsNarrowerThan(night))
}

func TestTimeRange_MakeWider(t *testing.T) {
	workday := NewTimeRange(MustTimeOfDay(9, 0), MustTimeOfDay(17, 0))

	tests := []struct {
		name    string
		next    TimeRange
		wantErr error
	}{
		{"wider on both ends", NewTimeRange(MustTimeOfDay(8, 0), MustTimeOfDay(18, 0)), nil},
		{"same range", workday, nil},
		{"later start", NewTimeRange(MustTimeOfDay(10, 0), MustTimeOfDay(18, 0)), ErrRangeStartNarrowed},
		{"earlier end", NewTimeRange(MustTimeOfDay(8, 0), MustTimeOfDay(16, 0)), ErrRangeEndNarrowed},
		{"narrower on both ends", NewTimeRange(MustTimeOfDay(10, 0), MustTimeOfDay(16, 0)), ErrRangeStartNarrowed},
		{"extended past midnight", NewTimeRange(MustTimeOfDay(9, 0), MustTimeOfDay(1, 0)), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := workday.MakeWider(tt.next)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, workday, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.next, got)
		})
	}
}

func TestTimeRange_ContainsProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	day := uint32(Day)

	properties.Property("same-day range contains exactly [from, till]", prop.ForAll(
		func(a, b, at uint32) bool {
			from, till := a, b
			if from > till {
				from, till = till, from
			}
			r := NewTimeRange(TimeOfDay(from), TimeOfDay(till))
			return r.Contains(TimeOfDay(at)) == (from <= at && at <= till)
		},
		gen.UInt32Range(0, day-1),
		gen.UInt32Range(0, day-1),
		gen.UInt32Range(0, day-1),
	))

	properties.Property("overnight range contains exactly what its complement does not", prop.ForAll(
		func(a, b, at uint32) bool {
			from, till := a, b
			if from < till {
				from, till = till, from
			}
			if from == till {
				return true
			}
			r := NewTimeRange(TimeOfDay(from), TimeOfDay(till))
			outside := till < at && at < from
			return r.Contains(TimeOfDay(at)) == !outside
		},
		gen.UInt32Range(0, day-1),
		gen.UInt32Range(0, day-1),
		gen.UInt32Range(0, day-1),
	))

	properties.Property("a range is never narrower than itself", prop.ForAll(
		func(a, b uint32) bool {
			r := NewTimeRange(TimeOfDay(a), TimeOfDay(b))
			return !r.IsNarrowerThan(r) && !r.IsWiderThan(r)
		},
		gen.UInt32Range(0, day-1),
		gen.UInt32Range(0, day-1),
	))

	properties.TestingRun(t)
}
