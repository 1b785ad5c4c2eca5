package model

import "time"

// PeriodStatus is the state of a financial period.
type PeriodStatus string

const (
	PeriodOpen   PeriodStatus = "OPEN"
	PeriodClosed PeriodStatus = "CLOSED"
)

// Period is a financial year (exercice) covering [Start, End], both inclusive.
type Period struct {
	ID           int64
	EnterpriseID int64
	Start        time.Time
	End          time.Time
	Status       PeriodStatus
}

// Contains reports whether d falls inside the period, comparing calendar days.
func (p Period) Contains(d time.Time) bool {
	day := truncateDay(d)
	return !day.Before(truncateDay(p.Start)) && !day.After(truncateDay(p.End))
}

// Overlaps reports whether two periods share at least one day.
func (p Period) Overlaps(o Period) bool {
	return !truncateDay(p.End).Before(truncateDay(o.Start)) && !truncateDay(o.End).Before(truncateDay(p.Start))
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
