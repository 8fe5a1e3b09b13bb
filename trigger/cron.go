package trigger

import (
	"time"

	"github.com/arjunv/chronoq"
	"github.com/robfig/cron/v3"
)

// Cron fires according to a standard five-field cron expression, parsed with
// robfig/cron/v3 — the same parser the teacher repo already reaches for in
// OptimizedScheduler.handleJobSuccess (cron.ParseStandard + sched.Next).
type Cron struct {
	key          chronoq.TriggerKey
	jobKey       chronoq.JobKey
	description  string
	priority     int
	startTime    time.Time
	endTime      time.Time
	calendarName string
	misfireInstr chronoq.MisfireInstruction

	expression string
	schedule   cron.Schedule

	nextFireTime     time.Time
	previousFireTime time.Time

	data chronoq.JobDataMap
}

// NewCron parses expr with the standard (5-field, no seconds) cron format and
// constructs a trigger keyed for jobKey.
func NewCron(key chronoq.TriggerKey, jobKey chronoq.JobKey, expr string) (*Cron, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, chronoq.NewConfigurationError("invalid cron expression %q: %v", expr, err)
	}
	return &Cron{
		key:          key,
		jobKey:       jobKey,
		priority:     chronoq.DefaultPriority,
		startTime:    time.Now(),
		misfireInstr: chronoq.MisfireFireNow,
		expression:   expr,
		schedule:     sched,
		data:         chronoq.NewJobDataMap(),
	}, nil
}

// Expression returns the cron string this trigger was built from.
func (t *Cron) Expression() string { return t.expression }

func (t *Cron) Key() chronoq.TriggerKey  { return t.key }
func (t *Cron) JobKey() chronoq.JobKey   { return t.jobKey }
func (t *Cron) Description() string      { return t.description }
func (t *Cron) SetDescription(d string)  { t.description = d }
func (t *Cron) Priority() int            { return t.priority }
func (t *Cron) SetPriority(p int)        { t.priority = p }
func (t *Cron) StartTime() time.Time     { return t.startTime }
func (t *Cron) EndTime() time.Time       { return t.endTime }
func (t *Cron) SetEndTime(e time.Time)   { t.endTime = e }
func (t *Cron) CalendarName() string     { return t.calendarName }
func (t *Cron) SetCalendarName(n string) { t.calendarName = n }
func (t *Cron) Data() chronoq.JobDataMap { return t.data }

func (t *Cron) MisfireInstruction() chronoq.MisfireInstruction { return t.misfireInstr }
func (t *Cron) SetMisfireInstruction(i chronoq.MisfireInstruction) { t.misfireInstr = i }

func (t *Cron) GetNextFireTime() time.Time       { return t.nextFireTime }
func (t *Cron) SetNextFireTime(tm time.Time)     { t.nextFireTime = tm }
func (t *Cron) GetPreviousFireTime() time.Time   { return t.previousFireTime }
func (t *Cron) SetPreviousFireTime(tm time.Time) { t.previousFireTime = tm }

// GetFinalFireTime is always the zero time: cron expressions fire
// indefinitely unless bounded by EndTime, which we cannot invert cheaply, so
// we report "unbounded" and let EndTime be enforced in GetFireTimeAfter.
func (t *Cron) GetFinalFireTime() time.Time { return time.Time{} }

func (t *Cron) ComputeFirstFireTime(cal chronoq.Calendar) time.Time {
	after := t.startTime.Add(-time.Nanosecond)
	t.nextFireTime = t.GetFireTimeAfter(after, cal)
	return t.nextFireTime
}

func (t *Cron) GetFireTimeAfter(after time.Time, cal chronoq.Calendar) time.Time {
	if after.Before(t.startTime) {
		after = t.startTime.Add(-time.Nanosecond)
	}
	candidate := t.schedule.Next(after)
	if candidate.IsZero() {
		return time.Time{}
	}
	if !t.endTime.IsZero() && candidate.After(t.endTime) {
		return time.Time{}
	}
	for cal != nil && !cal.IsTimeIncluded(candidate) {
		candidate = cal.GetNextIncludedTime(candidate)
		if candidate.IsZero() {
			return time.Time{}
		}
		next := t.schedule.Next(candidate.Add(-time.Nanosecond))
		if !next.Equal(candidate) {
			candidate = t.schedule.Next(candidate.Add(-time.Nanosecond))
		}
		if !t.endTime.IsZero() && candidate.After(t.endTime) {
			return time.Time{}
		}
	}
	return candidate
}

func (t *Cron) MayFireAgain() bool {
	return !t.GetFireTimeAfter(t.nextFireTime, nil).IsZero()
}

func (t *Cron) UpdateAfterMisfire(cal chronoq.Calendar) {
	switch t.misfireInstr {
	case chronoq.MisfireIgnore:
		return
	case chronoq.MisfireDoNothing:
		t.nextFireTime = t.GetFireTimeAfter(time.Now(), cal)
	default:
		// Cron triggers have no repeat count to preserve; every misfire
		// instruction other than Ignore/DoNothing reschedules to the next
		// cron boundary after now.
		t.nextFireTime = t.GetFireTimeAfter(time.Now().Add(-time.Second), cal)
	}
}

func (t *Cron) UpdateWithNewCalendar(cal chronoq.Calendar, misfireThreshold time.Duration) {
	next := t.GetFireTimeAfter(t.previousFireTime, cal)
	if next.Before(time.Now().Add(misfireThreshold)) {
		next = t.GetFireTimeAfter(time.Now(), cal)
	}
	t.nextFireTime = next
}

func (t *Cron) TriggerFired(cal chronoq.Calendar) {
	t.previousFireTime = t.nextFireTime
	t.nextFireTime = t.GetFireTimeAfter(t.nextFireTime, cal)
}

func (t *Cron) ExecutionComplete(ctx *chronoq.JobExecutionContext, result *chronoq.JobExecutionResult) chronoq.CompletionInstruction {
	if result != nil && result.Err != nil {
		if t.misfireInstr == chronoq.MisfireSetAllTriggersError {
			return chronoq.InstructionSetAllJobTriggersError
		}
		return chronoq.InstructionSetTriggerError
	}
	if t.nextFireTime.IsZero() {
		return chronoq.InstructionSetTriggerComplete
	}
	return chronoq.InstructionNoop
}

func (t *Cron) Clone() chronoq.Trigger {
	cp := *t
	cp.data = t.data.Clone()
	return &cp
}
