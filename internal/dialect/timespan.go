package dialect

import (
	"strconv"
	"strings"
	"time"

	"github.com/quarrydata/quarry/internal/qdef"
)

// Clock supplies the current time to relative-timespan resolution. Injecting
// it instead of calling time.Now keeps compiles deterministic under test.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

// Now returns the wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }

// TimeConfig holds the calendar knobs relative timespans depend on.
type TimeConfig struct {
	// WeekStartsOn is the first day of a week. Default Sunday (the zero
	// value).
	WeekStartsOn time.Weekday

	// FiscalYearStartMonth is the first month of the fiscal year.
	// Zero means January.
	FiscalYearStartMonth time.Month
}

func (c TimeConfig) fiscalStart() time.Month {
	if c.FiscalYearStartMonth == 0 {
		return time.January
	}
	return c.FiscalYearStartMonth
}

// ResolveTimespan converts a relative timespan phrase to concrete inclusive
// date boundaries, evaluated against the injected clock.
//
// Accepted phrases (case-insensitive):
//
//	"last N days|weeks|months|quarters|years"
//	"current day|week|month|quarter|year|fiscal year"
//	"next N days|weeks|months|quarters|years"
//
// "Last 7 days" ends yesterday; "Next 2 weeks" starts tomorrow; "current"
// spans the whole enclosing period. Resolution happens at evaluation time,
// never at save time, so a stored query stays relative.
func ResolveTimespan(span string, clock Clock, cfg TimeConfig) (time.Time, time.Time, error) {
	if clock == nil {
		clock = SystemClock{}
	}
	today := truncateDay(clock.Now())

	parts := strings.Fields(strings.ToLower(strings.TrimSpace(span)))
	if len(parts) < 2 {
		return time.Time{}, time.Time{}, qdef.Definitionf("timespan", "unrecognized timespan %q", span)
	}
	direction := parts[0]

	if direction == "current" {
		unit := strings.Join(parts[1:], " ")
		return currentSpan(today, unit, cfg)
	}

	if len(parts) != 3 {
		return time.Time{}, time.Time{}, qdef.Definitionf("timespan", "unrecognized timespan %q", span)
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil || n <= 0 {
		return time.Time{}, time.Time{}, qdef.Definitionf("timespan", "timespan count must be a positive integer in %q", span)
	}
	unit := normalizeUnit(parts[2])

	switch direction {
	case "last":
		end := today.AddDate(0, 0, -1)
		start := shiftPeriods(today, unit, -n, cfg)
		return start, end, nil
	case "next":
		start := today.AddDate(0, 0, 1)
		end := shiftPeriods(today, unit, n, cfg).AddDate(0, 0, -1)
		return start, end, nil
	default:
		return time.Time{}, time.Time{}, qdef.Definitionf("timespan", "unrecognized timespan direction %q", direction)
	}
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// shiftPeriods moves a date by n whole units. Used for the open end of
// last/next spans.
func shiftPeriods(t time.Time, unit string, n int, cfg TimeConfig) time.Time {
	switch unit {
	case "day":
		return t.AddDate(0, 0, n)
	case "week":
		return t.AddDate(0, 0, 7*n)
	case "month":
		return t.AddDate(0, n, 0)
	case "quarter":
		return t.AddDate(0, 3*n, 0)
	case "year":
		return t.AddDate(n, 0, 0)
	default:
		return t.AddDate(0, 0, n)
	}
}

// currentSpan returns the enclosing period boundaries for "current <unit>".
func currentSpan(today time.Time, unit string, cfg TimeConfig) (time.Time, time.Time, error) {
	switch normalizeUnit(unit) {
	case "day":
		return today, today, nil

	case "week":
		offset := (int(today.Weekday()) - int(cfg.WeekStartsOn) + 7) % 7
		start := today.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 6), nil

	case "month":
		start := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		return start, start.AddDate(0, 1, -1), nil

	case "quarter":
		qStartMonth := time.Month((int(today.Month())-1)/3*3 + 1)
		start := time.Date(today.Year(), qStartMonth, 1, 0, 0, 0, 0, today.Location())
		return start, start.AddDate(0, 3, -1), nil

	case "year":
		start := time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, today.Location())
		return start, start.AddDate(1, 0, -1), nil

	case "fiscal year":
		fy := cfg.fiscalStart()
		year := today.Year()
		if today.Month() < fy {
			year--
		}
		start := time.Date(year, fy, 1, 0, 0, 0, 0, today.Location())
		return start, start.AddDate(1, 0, -1), nil

	default:
		return time.Time{}, time.Time{}, qdef.Definitionf("timespan", "unrecognized timespan unit %q", unit)
	}
}
