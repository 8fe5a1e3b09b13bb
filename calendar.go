package chronoq

import "time"

// Calendar is a set-membership predicate on instants, used by a Trigger to
// skip fire times that fall within excluded intervals (holidays, weekends,
// maintenance windows, ...).
//
// Implementations may chain a "base calendar": IsTimeIncluded should return
// false whenever either this calendar or its base excludes the instant, and
// GetNextIncludedTime should never return a time excluded by the base.
type Calendar interface {
	// IsTimeIncluded reports whether t is not excluded by this calendar.
	IsTimeIncluded(t time.Time) bool
	// GetNextIncludedTime returns the soonest instant strictly after t (or
	// equal to t, if t itself qualifies) that is not excluded.
	GetNextIncludedTime(t time.Time) time.Time
	// Description is a human-readable label for diagnostics.
	Description() string
}

// BaseCalendar provides the chaining behavior shared by the calendars in
// package calendar: an optional wrapped Calendar that each of them consults
// after its own exclusions.
type BaseCalendar struct {
	base Calendar
	desc string
}

// NewBaseCalendar constructs a BaseCalendar, optionally chaining base.
func NewBaseCalendar(base Calendar, description string) BaseCalendar {
	return BaseCalendar{base: base, desc: description}
}

// Base returns the chained fallback calendar, or nil.
func (b BaseCalendar) Base() Calendar { return b.base }

// Description returns the calendar's label.
func (b BaseCalendar) Description() string { return b.desc }

// baseExcludes reports whether the chained base calendar excludes t.
func (b BaseCalendar) baseExcludes(t time.Time) bool {
	return b.base != nil && !b.base.IsTimeIncluded(t)
}
