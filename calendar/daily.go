package calendar

import (
	"time"

	"github.com/arjunv/chronoq"
)

// Daily excludes a fixed time-of-day window every day (e.g. "nightly
// maintenance, 01:00-02:00").
type Daily struct {
	chronoq.BaseCalendar
	startHour, startMin, startSec int
	endHour, endMin, endSec       int
}

// NewDaily builds a Daily calendar excluding [start, end) every day.
func NewDaily(base chronoq.Calendar, startHour, startMin, startSec, endHour, endMin, endSec int) *Daily {
	return &Daily{
		BaseCalendar: chronoq.NewBaseCalendar(base, "daily time-of-day exclusion"),
		startHour:    startHour, startMin: startMin, startSec: startSec,
		endHour: endHour, endMin: endMin, endSec: endSec,
	}
}

func (c *Daily) windowFor(t time.Time) (time.Time, time.Time) {
	y, m, d := t.Date()
	start := time.Date(y, m, d, c.startHour, c.startMin, c.startSec, 0, t.Location())
	end := time.Date(y, m, d, c.endHour, c.endMin, c.endSec, 0, t.Location())
	return start, end
}

func (c *Daily) IsTimeIncluded(t time.Time) bool {
	start, end := c.windowFor(t)
	if !t.Before(start) && t.Before(end) {
		return false
	}
	if b := c.Base(); b != nil {
		return b.IsTimeIncluded(t)
	}
	return true
}

func (c *Daily) GetNextIncludedTime(t time.Time) time.Time {
	candidate := t
	for i := 0; i < 8; i++ {
		if c.IsTimeIncluded(candidate) {
			return candidate
		}
		_, end := c.windowFor(candidate)
		if !candidate.Before(end) {
			y, m, d := candidate.Date()
			candidate = time.Date(y, m, d+1, c.startHour, c.startMin, c.startSec, 0, candidate.Location())
			continue
		}
		candidate = end
	}
	return candidate
}
