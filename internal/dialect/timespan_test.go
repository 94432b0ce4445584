package dialect_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrydata/quarry/internal/dialect"
	"github.com/quarrydata/quarry/internal/testutil"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolveTimespan(t *testing.T) {
	// Saturday 2022-11-26, mid-afternoon.
	clock := testutil.NewFixedClock(time.Date(2022, time.November, 26, 13, 45, 0, 0, time.UTC))

	cases := []struct {
		span  string
		start time.Time
		end   time.Time
	}{
		{"last 7 days", day(2022, time.November, 19), day(2022, time.November, 25)},
		{"last 1 month", day(2022, time.October, 26), day(2022, time.November, 25)},
		{"last 2 quarters", day(2022, time.May, 26), day(2022, time.November, 25)},
		{"next 2 weeks", day(2022, time.November, 27), day(2022, time.December, 9)},
		{"next 1 year", day(2022, time.November, 27), day(2023, time.November, 25)},
		{"current day", day(2022, time.November, 26), day(2022, time.November, 26)},
		{"current week", day(2022, time.November, 20), day(2022, time.November, 26)},
		{"current month", day(2022, time.November, 1), day(2022, time.November, 30)},
		{"current quarter", day(2022, time.October, 1), day(2022, time.December, 31)},
		{"current year", day(2022, time.January, 1), day(2022, time.December, 31)},
		{"Current Month", day(2022, time.November, 1), day(2022, time.November, 30)},
	}
	for _, tc := range cases {
		t.Run(tc.span, func(t *testing.T) {
			start, end, err := dialect.ResolveTimespan(tc.span, clock, dialect.TimeConfig{})
			require.NoError(t, err)
			assert.Equal(t, tc.start, start, "start")
			assert.Equal(t, tc.end, end, "end")
		})
	}
}

func TestResolveTimespanWeekStart(t *testing.T) {
	clock := testutil.NewFixedClock(day(2022, time.November, 26))

	start, end, err := dialect.ResolveTimespan("current week", clock, dialect.TimeConfig{
		WeekStartsOn: time.Monday,
	})
	require.NoError(t, err)
	assert.Equal(t, day(2022, time.November, 21), start)
	assert.Equal(t, day(2022, time.November, 27), end)
}

func TestResolveTimespanFiscalYear(t *testing.T) {
	cfg := dialect.TimeConfig{FiscalYearStartMonth: time.April}

	// November sits inside the fiscal year that started this April.
	clock := testutil.NewFixedClock(day(2022, time.November, 26))
	start, end, err := dialect.ResolveTimespan("current fiscal year", clock, cfg)
	require.NoError(t, err)
	assert.Equal(t, day(2022, time.April, 1), start)
	assert.Equal(t, day(2023, time.March, 31), end)

	// February falls in the fiscal year that started last April.
	clock.Set(day(2022, time.February, 10))
	start, end, err = dialect.ResolveTimespan("current fiscal year", clock, cfg)
	require.NoError(t, err)
	assert.Equal(t, day(2021, time.April, 1), start)
	assert.Equal(t, day(2022, time.March, 31), end)
}

func TestResolveTimespanErrors(t *testing.T) {
	clock := testutil.NewFixedClock(day(2022, time.November, 26))
	for _, span := range []string{"", "yesterday", "last seven days", "last 0 days", "ago 3 days", "current eon"} {
		t.Run(span, func(t *testing.T) {
			_, _, err := dialect.ResolveTimespan(span, clock, dialect.TimeConfig{})
			assert.Error(t, err)
		})
	}
}
