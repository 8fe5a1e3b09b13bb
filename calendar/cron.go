package calendar

import (
	"time"

	"github.com/arjunv/chronoq"
	"github.com/robfig/cron/v3"
)

// Cron excludes every instant NOT matched by a cron expression — the
// inverse of trigger.Cron, letting a schedule say "only fire during
// business hours" by reusing the same parser the teacher repo already
// depends on (robfig/cron/v3).
type Cron struct {
	chronoq.BaseCalendar
	expression string
	schedule   cron.Schedule
}

// NewCron parses expr and builds a calendar that includes instants matching
// it. Matching is tested at 1-minute granularity: t is truncated to the
// minute, and the schedule's next fire time strictly after (truncated - 1m)
// must equal the truncated instant — cron.Schedule exposes no direct "does
// this instant match" query.
func NewCron(base chronoq.Calendar, expr string) (*Cron, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, chronoq.NewConfigurationError("invalid cron expression %q: %v", expr, err)
	}
	return &Cron{
		BaseCalendar: chronoq.NewBaseCalendar(base, "cron-expression membership: "+expr),
		expression:   expr,
		schedule:     sched,
	}, nil
}

func (c *Cron) Expression() string { return c.expression }

func (c *Cron) IsTimeIncluded(t time.Time) bool {
	truncated := t.Truncate(time.Minute)
	next := c.schedule.Next(truncated.Add(-time.Minute))
	if !next.Equal(truncated) {
		return false
	}
	if b := c.Base(); b != nil {
		return b.IsTimeIncluded(t)
	}
	return true
}

func (c *Cron) GetNextIncludedTime(t time.Time) time.Time {
	candidate := c.schedule.Next(t.Add(-time.Second))
	if b := c.Base(); b != nil {
		for !b.IsTimeIncluded(candidate) {
			candidate = c.schedule.Next(candidate)
		}
	}
	return candidate
}
