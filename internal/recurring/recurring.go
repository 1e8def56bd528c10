// Package recurring computes the next occurrence of a recurring transaction.
//
// Calendar months and years do not always contain the start day. Such
// occurrences are clamped to the last day of the target month, so a posting
// on January 31 repeats on February 28 (29 in leap years), and a posting on
// February 29 repeats yearly on February 28.
package recurring

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"finance-ledger-go/internal/models"
)

func ParseInterval(s string) (models.RecurringInterval, error) {
	switch i := models.RecurringInterval(strings.ToUpper(strings.TrimSpace(s))); i {
	case models.IntervalDaily, models.IntervalWeekly, models.IntervalMonthly, models.IntervalYearly:
		return i, nil
	}
	return "", fmt.Errorf("unknown recurring interval %q", s)
}

// NextDate returns the first occurrence strictly after start. Time of day and
// location of start are kept, at second precision.
func NextDate(start time.Time, interval models.RecurringInterval) (time.Time, error) {
	opt, err := option(start, interval)
	if err != nil {
		return time.Time{}, err
	}
	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return time.Time{}, fmt.Errorf("build recurrence: %w", err)
	}
	next := rule.After(start, false)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("no occurrence after %s", start.Format(time.RFC3339))
	}
	return next, nil
}

func option(start time.Time, interval models.RecurringInterval) (*rrule.ROption, error) {
	opt := &rrule.ROption{Dtstart: start, Interval: 1, Count: 2}
	switch interval {
	case models.IntervalDaily:
		opt.Freq = rrule.DAILY
	case models.IntervalWeekly:
		opt.Freq = rrule.WEEKLY
	case models.IntervalMonthly:
		opt.Freq = rrule.MONTHLY
		opt.Bymonthday, opt.Bysetpos = clampedDays(start.Day())
	case models.IntervalYearly:
		opt.Freq = rrule.YEARLY
		opt.Bymonth = []int{int(start.Month())}
		opt.Bymonthday, opt.Bysetpos = clampedDays(start.Day())
	default:
		return nil, fmt.Errorf("unknown recurring interval %q", interval)
	}
	return opt, nil
}

// clampedDays selects day, or the last existing day before it when the month
// is shorter: BYMONTHDAY=28..day with BYSETPOS=-1.
func clampedDays(day int) ([]int, []int) {
	if day <= 28 {
		return []int{day}, nil
	}
	days := make([]int, 0, day-27)
	for d := 28; d <= day; d++ {
		days = append(days, d)
	}
	return days, []int{-1}
}
