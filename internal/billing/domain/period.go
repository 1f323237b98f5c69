package billing

import (
	"time"

	usage "hydrospark/internal/usage/domain"
)

// Period is an inclusive range of calendar days.
type Period struct {
	Start time.Time
	End   time.Time
}

// NewPeriod normalizes bounds to UTC days and validates order.
func NewPeriod(start, end time.Time) (Period, error) {
	if start.IsZero() || end.IsZero() {
		return Period{}, ErrInvalidPeriod
	}
	p := Period{Start: usage.DayStart(start), End: usage.DayStart(end)}
	if p.End.Before(p.Start) {
		return Period{}, ErrInvalidPeriod
	}
	return p, nil
}

// Days counts calendar days in the period.
func (p Period) Days() int {
	return usage.DaysInclusive(p.Start, p.End)
}

// MonthlyBuckets splits [first, last] into calendar months. The first bucket
// starts on the 1st of first's month, the last one ends on last.
func MonthlyBuckets(first, last time.Time) []Period {
	first, last = usage.DayStart(first), usage.DayStart(last)
	if last.Before(first) {
		return nil
	}
	var buckets []Period
	for start := usage.MonthStart(first); !start.After(last); start = start.AddDate(0, 1, 0) {
		end := usage.MonthEnd(start)
		if end.After(last) {
			end = last
		}
		buckets = append(buckets, Period{Start: start, End: end})
	}
	return buckets
}

// HistoricalStatus derives the status of a backfilled invoice from today's date.
func HistoricalStatus(periodEnd, dueDate, today time.Time) Status {
	today = usage.DayStart(today)
	if periodEnd.Before(today) {
		if dueDate.Before(today) {
			return StatusOverdue
		}
		return StatusSent
	}
	return StatusPending
}
