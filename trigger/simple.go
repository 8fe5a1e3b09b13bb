// Package trigger holds the concrete Trigger implementations named in
// chronoq's spec: a fixed-interval repeater (Simple), a cron-expression
// trigger wrapping robfig/cron, and two calendar-aware variants.
package trigger

import (
	"time"

	"github.com/arjunv/chronoq"
)

// Simple fires at startTime, then every repeatInterval thereafter, up to
// repeatCount times (or forever, if repeatCount < 0). It is the direct
// generalization of the job.Interval fixed-delay rescheduling the teacher
// repo does inline in OptimizedScheduler.handleJobSuccess.
type Simple struct {
	key          chronoq.TriggerKey
	jobKey       chronoq.JobKey
	description  string
	priority     int
	startTime    time.Time
	endTime      time.Time
	calendarName string
	misfireInstr chronoq.MisfireInstruction

	repeatInterval time.Duration
	repeatCount    int // -1 means indefinite

	timesTriggered   int
	nextFireTime     time.Time
	previousFireTime time.Time

	data chronoq.JobDataMap
}

// NewSimple constructs a Simple trigger firing every interval, repeatCount
// times (pass -1 for indefinite repeats, 0 for a one-shot trigger).
func NewSimple(key chronoq.TriggerKey, jobKey chronoq.JobKey, startTime time.Time, interval time.Duration, repeatCount int) *Simple {
	if startTime.IsZero() {
		startTime = time.Now()
	}
	return &Simple{
		key:            key,
		jobKey:         jobKey,
		priority:       chronoq.DefaultPriority,
		startTime:      startTime,
		repeatInterval: interval,
		repeatCount:    repeatCount,
		misfireInstr:   chronoq.MisfireFireNow,
		data:           chronoq.NewJobDataMap(),
	}
}

func (t *Simple) Key() chronoq.TriggerKey   { return t.key }
func (t *Simple) JobKey() chronoq.JobKey    { return t.jobKey }
func (t *Simple) Description() string       { return t.description }
func (t *Simple) SetDescription(d string)   { t.description = d }
func (t *Simple) Priority() int             { return t.priority }
func (t *Simple) SetPriority(p int)         { t.priority = p }
func (t *Simple) StartTime() time.Time      { return t.startTime }
func (t *Simple) EndTime() time.Time        { return t.endTime }
func (t *Simple) SetEndTime(e time.Time)    { t.endTime = e }
func (t *Simple) CalendarName() string      { return t.calendarName }
func (t *Simple) SetCalendarName(n string)  { t.calendarName = n }
func (t *Simple) Data() chronoq.JobDataMap  { return t.data }

func (t *Simple) MisfireInstruction() chronoq.MisfireInstruction { return t.misfireInstr }
func (t *Simple) SetMisfireInstruction(i chronoq.MisfireInstruction) { t.misfireInstr = i }

// RepeatInterval is the fixed delay between fires.
func (t *Simple) RepeatInterval() time.Duration { return t.repeatInterval }

// RepeatCount is the number of repeats after the first fire (-1 = forever).
func (t *Simple) RepeatCount() int { return t.repeatCount }

// TimesTriggered is how many times this trigger has already fired.
func (t *Simple) TimesTriggered() int { return t.timesTriggered }

func (t *Simple) GetNextFireTime() time.Time     { return t.nextFireTime }
func (t *Simple) SetNextFireTime(tm time.Time)   { t.nextFireTime = tm }
func (t *Simple) GetPreviousFireTime() time.Time { return t.previousFireTime }
func (t *Simple) SetPreviousFireTime(tm time.Time) { t.previousFireTime = tm }

func (t *Simple) GetFinalFireTime() time.Time {
	if t.repeatCount < 0 {
		return time.Time{}
	}
	last := t.startTime.Add(time.Duration(t.repeatCount) * t.repeatInterval)
	if !t.endTime.IsZero() && last.After(t.endTime) {
		return t.lastFireBefore(t.endTime)
	}
	return last
}

func (t *Simple) lastFireBefore(bound time.Time) time.Time {
	if t.repeatInterval <= 0 {
		if t.startTime.Before(bound) || t.startTime.Equal(bound) {
			return t.startTime
		}
		return time.Time{}
	}
	n := int(bound.Sub(t.startTime) / t.repeatInterval)
	if n < 0 {
		return time.Time{}
	}
	if t.repeatCount >= 0 && n > t.repeatCount {
		n = t.repeatCount
	}
	return t.startTime.Add(time.Duration(n) * t.repeatInterval)
}

func (t *Simple) ComputeFirstFireTime(cal chronoq.Calendar) time.Time {
	t.nextFireTime = t.startTime
	if cal != nil && !cal.IsTimeIncluded(t.nextFireTime) {
		t.nextFireTime = cal.GetNextIncludedTime(t.nextFireTime)
	}
	if t.nextFireTime.IsZero() || (!t.endTime.IsZero() && t.nextFireTime.After(t.endTime)) {
		t.nextFireTime = time.Time{}
	}
	return t.nextFireTime
}

func (t *Simple) GetFireTimeAfter(after time.Time, cal chronoq.Calendar) time.Time {
	if t.repeatCount == 0 && !after.Before(t.startTime) {
		return time.Time{}
	}

	candidate := t.startTime
	if after.After(candidate) {
		if t.repeatInterval <= 0 {
			return time.Time{}
		}
		elapsed := after.Sub(t.startTime)
		n := int64(elapsed/t.repeatInterval) + 1
		if t.repeatCount >= 0 && n > int64(t.repeatCount) {
			return time.Time{}
		}
		candidate = t.startTime.Add(time.Duration(n) * t.repeatInterval)
	}

	if !t.endTime.IsZero() && candidate.After(t.endTime) {
		return time.Time{}
	}
	if cal != nil {
		for candidate.IsZero() == false && !cal.IsTimeIncluded(candidate) {
			candidate = cal.GetNextIncludedTime(candidate)
			if candidate.IsZero() || (!t.endTime.IsZero() && candidate.After(t.endTime)) {
				return time.Time{}
			}
		}
	}
	return candidate
}

func (t *Simple) MayFireAgain() bool {
	return !t.GetFireTimeAfter(t.nextFireTime, nil).IsZero() || t.repeatCount < 0
}

func (t *Simple) UpdateAfterMisfire(cal chronoq.Calendar) {
	switch t.misfireInstr {
	case chronoq.MisfireIgnore:
		return
	case chronoq.MisfireFireNow:
		t.nextFireTime = time.Now()
	case chronoq.MisfireRescheduleNowWithExistingCount:
		t.nextFireTime = time.Now()
	case chronoq.MisfireRescheduleNowWithRemainingCount:
		if t.repeatCount > 0 {
			t.repeatCount -= t.timesTriggered
		}
		t.nextFireTime = time.Now()
	case chronoq.MisfireDoNothing:
		t.nextFireTime = t.GetFireTimeAfter(time.Now(), cal)
	default:
		// MisfireSetAllTriggersError: the store handles this without
		// mutating the trigger's own fire time.
	}
	if cal != nil && !t.nextFireTime.IsZero() && !cal.IsTimeIncluded(t.nextFireTime) {
		t.nextFireTime = cal.GetNextIncludedTime(t.nextFireTime)
	}
}

func (t *Simple) UpdateWithNewCalendar(cal chronoq.Calendar, misfireThreshold time.Duration) {
	next := t.GetFireTimeAfter(t.previousFireTime, cal)
	if next.IsZero() {
		t.nextFireTime = time.Time{}
		return
	}
	if next.Before(time.Now().Add(misfireThreshold)) {
		fresh := time.Now()
		for !next.IsZero() && next.Before(fresh) {
			next = t.GetFireTimeAfter(next, cal)
		}
	}
	t.nextFireTime = next
}

func (t *Simple) TriggerFired(cal chronoq.Calendar) {
	t.previousFireTime = t.nextFireTime
	t.timesTriggered++
	t.nextFireTime = t.GetFireTimeAfter(t.nextFireTime, cal)
}

func (t *Simple) ExecutionComplete(ctx *chronoq.JobExecutionContext, result *chronoq.JobExecutionResult) chronoq.CompletionInstruction {
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

func (t *Simple) Clone() chronoq.Trigger {
	cp := *t
	cp.data = t.data.Clone()
	return &cp
}
