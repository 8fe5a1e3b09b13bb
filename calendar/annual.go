package calendar

import (
	"time"

	"github.com/arjunv/chronoq"
)

// Annual excludes the same month/day combination every year, regardless of
// year (e.g. a fixed public holiday like December 25th).
type Annual struct {
	chronoq.BaseCalendar
	excluded map[[2]int]bool // [month, day]
}

// NewAnnual builds an Annual calendar with no month/day excluded; add
// exclusions with SetDayExcluded.
func NewAnnual(base chronoq.Calendar) *Annual {
	return &Annual{
		BaseCalendar: chronoq.NewBaseCalendar(base, "annual month/day exclusion"),
		excluded:     make(map[[2]int]bool),
	}
}

// SetDayExcluded marks month/day (any year) excluded or included.
func (c *Annual) SetDayExcluded(month time.Month, day int, excluded bool) {
	key := [2]int{int(month), day}
	if excluded {
		c.excluded[key] = true
	} else {
		delete(c.excluded, key)
	}
}

func (c *Annual) IsTimeIncluded(t time.Time) bool {
	if c.excluded[[2]int{int(t.Month()), t.Day()}] {
		return false
	}
	if b := c.Base(); b != nil {
		return b.IsTimeIncluded(t)
	}
	return true
}

func (c *Annual) GetNextIncludedTime(t time.Time) time.Time {
	candidate := t
	for i := 0; i < 366; i++ {
		if c.IsTimeIncluded(candidate) {
			return candidate
		}
		y, m, d := candidate.Date()
		candidate = time.Date(y, m, d+1, 0, 0, 0, 0, candidate.Location())
	}
	return candidate
}
