package calendar

import (
	"time"

	"github.com/arjunv/chronoq"
)

// Monthly excludes specific days of the month (e.g. payroll runs never fire
// on the 1st or the 31st).
type Monthly struct {
	chronoq.BaseCalendar
	excluded map[int]bool
}

// NewMonthly builds a Monthly calendar excluding the given days-of-month
// (1-31).
func NewMonthly(base chronoq.Calendar, excludedDays ...int) *Monthly {
	ex := make(map[int]bool, len(excludedDays))
	for _, d := range excludedDays {
		ex[d] = true
	}
	return &Monthly{
		BaseCalendar: chronoq.NewBaseCalendar(base, "monthly day-of-month exclusion"),
		excluded:     ex,
	}
}

func (c *Monthly) IsTimeIncluded(t time.Time) bool {
	if c.excluded[t.Day()] {
		return false
	}
	if b := c.Base(); b != nil {
		return b.IsTimeIncluded(t)
	}
	return true
}

func (c *Monthly) GetNextIncludedTime(t time.Time) time.Time {
	candidate := t
	for i := 0; i < 32; i++ {
		if c.IsTimeIncluded(candidate) {
			return candidate
		}
		y, m, d := candidate.Date()
		candidate = time.Date(y, m, d+1, 0, 0, 0, 0, candidate.Location())
	}
	return candidate
}

func (c *Monthly) ExcludeDay(day int) { c.excluded[day] = true }
func (c *Monthly) IncludeDay(day int) { delete(c.excluded, day) }
