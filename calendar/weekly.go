// Package calendar holds the concrete Calendar implementations: weekly
// day-of-week exclusion, daily time-of-day exclusion, monthly day-of-month
// exclusion, annual month/day exclusion, an explicit holiday list, a
// cron-expression membership test, and an expr-lang boolean predicate.
package calendar

import (
	"time"

	"github.com/arjunv/chronoq"
)

// Weekly excludes entire days of the week (e.g. weekends).
type Weekly struct {
	chronoq.BaseCalendar
	excluded map[time.Weekday]bool
}

// NewWeekly builds a Weekly calendar excluding the given days, optionally
// chaining base.
func NewWeekly(base chronoq.Calendar, excludedDays ...time.Weekday) *Weekly {
	ex := make(map[time.Weekday]bool, len(excludedDays))
	for _, d := range excludedDays {
		ex[d] = true
	}
	return &Weekly{
		BaseCalendar: chronoq.NewBaseCalendar(base, "weekly day-of-week exclusion"),
		excluded:     ex,
	}
}

func (c *Weekly) IsTimeIncluded(t time.Time) bool {
	if c.excluded[t.Weekday()] {
		return false
	}
	if b := c.Base(); b != nil {
		return b.IsTimeIncluded(t)
	}
	return true
}

func (c *Weekly) GetNextIncludedTime(t time.Time) time.Time {
	candidate := t
	for i := 0; i < 8; i++ {
		if c.IsTimeIncluded(candidate) {
			return candidate
		}
		year, month, day := candidate.Date()
		candidate = time.Date(year, month, day+1, 0, 0, 0, 0, candidate.Location())
	}
	return candidate
}

func (c *Weekly) ExcludeDay(d time.Weekday) { c.excluded[d] = true }
func (c *Weekly) IncludeDay(d time.Weekday) { delete(c.excluded, d) }
