// Strategy registry for advancing a recurring rule's next due date.
// Each frequency owns the arithmetic for stepping one interval forward.

package services

import (
	"fmt"
	"time"

	"fintrack/internal/core"
)

// DueAdvancer computes the next due time after one firing. interval is
// the rule's "every N periods" multiplier, already validated >= 1.
type DueAdvancer interface {
	Next(after time.Time, interval int) time.Time
}

// DailyAdvancer steps forward interval days.
type DailyAdvancer struct{}

func (DailyAdvancer) Next(after time.Time, interval int) time.Time {
	return after.AddDate(0, 0, interval)
}

// WeeklyAdvancer steps forward interval weeks.
type WeeklyAdvancer struct{}

func (WeeklyAdvancer) Next(after time.Time, interval int) time.Time {
	return after.AddDate(0, 0, 7*interval)
}

// MonthlyAdvancer steps forward interval months, clamping the day to
// the target month's length so a rule anchored on the 31st fires on
// the 28th/29th/30th in shorter months instead of spilling over.
type MonthlyAdvancer struct{}

func (MonthlyAdvancer) Next(after time.Time, interval int) time.Time {
	return addMonthsClamped(after, interval)
}

// YearlyAdvancer steps forward interval years, clamping Feb 29 to
// Feb 28 in non-leap years.
type YearlyAdvancer struct{}

func (YearlyAdvancer) Next(after time.Time, interval int) time.Time {
	return addMonthsClamped(after, 12*interval)
}

func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()
	firstOfTarget := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	lastDay := time.Date(firstOfTarget.Year(), firstOfTarget.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, hour, minute, sec, t.Nanosecond(), t.Location())
}

// dueStrategies maps frequencies to their advancers.
var dueStrategies = map[core.Frequency]DueAdvancer{
	core.Daily:   DailyAdvancer{},
	core.Weekly:  WeeklyAdvancer{},
	core.Monthly: MonthlyAdvancer{},
	core.Yearly:  YearlyAdvancer{},
}

// GetDueAdvancer returns the advancer for a frequency.
func GetDueAdvancer(frequency core.Frequency) (DueAdvancer, error) {
	advancer, ok := dueStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %s", frequency)
	}
	return advancer, nil
}

// RegisterDueAdvancer registers a custom advancer for a new frequency.
func RegisterDueAdvancer(frequency core.Frequency, advancer DueAdvancer) {
	dueStrategies[frequency] = advancer
}
