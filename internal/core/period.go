package core

import "time"

// MonthWindow is the inclusive [Start, End] epoch-millisecond range of
// one calendar month in the evaluating process's local time zone.
type MonthWindow struct {
	Start int64
	End   int64
}

// Contains reports whether the epoch-ms instant falls inside the window.
func (w MonthWindow) Contains(ms int64) bool {
	return ms >= w.Start && ms <= w.End
}

// MonthBounds returns the bounds of the calendar month containing ref:
// 00:00:00.000 on day 1 through 23:59:59.999 on the last day. The last
// day is computed, never hard-coded, by constructing day 0 of the next
// month, which the time package normalizes to the final day of the
// target month. That handles 28 through 31 day months and leap years.
func MonthBounds(ref time.Time) MonthWindow {
	year, month, _ := ref.Date()
	loc := ref.Location()
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	end := time.Date(year, month+1, 0, 23, 59, 59, int(999*time.Millisecond), loc)
	return MonthWindow{Start: start.UnixMilli(), End: end.UnixMilli()}
}

// PreviousMonthBounds returns the bounds of the calendar month
// immediately before the one containing ref. January rolls back to
// December of the previous year via date normalization.
func PreviousMonthBounds(ref time.Time) MonthWindow {
	year, month, _ := ref.Date()
	loc := ref.Location()
	prev := time.Date(year, month-1, 1, 0, 0, 0, 0, loc)
	return MonthBounds(prev)
}

// YearStart returns the epoch-ms instant of January 1, 00:00:00.000 of
// ref's year in ref's location. Used by the savings-goal year-to-date
// window.
func YearStart(ref time.Time) int64 {
	return time.Date(ref.Year(), time.January, 1, 0, 0, 0, 0, ref.Location()).UnixMilli()
}
