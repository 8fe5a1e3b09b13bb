package calendar

import (
	"time"

	"github.com/arjunv/chronoq"
)

// Holiday excludes an explicit, unordered set of full calendar dates —
// unlike Annual, each entry is a specific year/month/day, not a recurring
// month/day pair.
type Holiday struct {
	chronoq.BaseCalendar
	dates map[string]bool // "2006-01-02" keys
}

// NewHoliday builds a Holiday calendar with no dates excluded.
func NewHoliday(base chronoq.Calendar) *Holiday {
	return &Holiday{
		BaseCalendar: chronoq.NewBaseCalendar(base, "explicit holiday list"),
		dates:        make(map[string]bool),
	}
}

func dateKey(t time.Time) string { return t.Format("2006-01-02") }

// AddHoliday excludes the given calendar date.
func (c *Holiday) AddHoliday(t time.Time) { c.dates[dateKey(t)] = true }

// RemoveHoliday re-includes the given calendar date.
func (c *Holiday) RemoveHoliday(t time.Time) { delete(c.dates, dateKey(t)) }

func (c *Holiday) IsTimeIncluded(t time.Time) bool {
	if c.dates[dateKey(t)] {
		return false
	}
	if b := c.Base(); b != nil {
		return b.IsTimeIncluded(t)
	}
	return true
}

func (c *Holiday) GetNextIncludedTime(t time.Time) time.Time {
	candidate := t
	for i := 0; i < len(c.dates)+1; i++ {
		if c.IsTimeIncluded(candidate) {
			return candidate
		}
		y, m, d := candidate.Date()
		candidate = time.Date(y, m, d+1, 0, 0, 0, 0, candidate.Location())
	}
	return candidate
}
