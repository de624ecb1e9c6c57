package core

import "time"

// Period is the date window over which ledger sums are computed. Both bounds
// are inclusive and compared at day granularity.
type Period struct {
	From time.Time
	To   time.Time
}

// CurrentMonth returns the default aggregation window: the first through the
// last day of now's calendar month.
func CurrentMonth(now time.Time) Period {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Period{
		From: first,
		To:   first.AddDate(0, 1, -1),
	}
}

func (p Period) Validate() error {
	if p.From.IsZero() || p.To.IsZero() {
		return ErrInvalidPeriod
	}
	if p.To.Before(p.From) {
		return ErrInvalidPeriod
	}
	return nil
}

func (p Period) String() string {
	return p.From.Format(time.DateOnly) + ".." + p.To.Format(time.DateOnly)
}

// Contains reports whether d falls inside the window, ignoring time of day.
func (p Period) Contains(d time.Time) bool {
	day := d.Format(time.DateOnly)
	return day >= p.From.Format(time.DateOnly) && day <= p.To.Format(time.DateOnly)
}
