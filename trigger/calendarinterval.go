package trigger

import (
	"time"

	"github.com/arjunv/chronoq"
)

// IntervalUnit names the calendar unit CalendarInterval steps by. Unlike
// Simple's fixed time.Duration, a calendar unit respects month-length and
// DST irregularities (adding one "month" to Jan 31 lands on the last day of
// February, not 31 days later).
type IntervalUnit int

const (
	Second IntervalUnit = iota
	Minute
	Hour
	Day
	Week
	Month
	Year
)

// CalendarInterval fires every N calendar units, started from startTime.
type CalendarInterval struct {
	key          chronoq.TriggerKey
	jobKey       chronoq.JobKey
	description  string
	priority     int
	startTime    time.Time
	endTime      time.Time
	calendarName string
	misfireInstr chronoq.MisfireInstruction

	unit   IntervalUnit
	amount int

	nextFireTime     time.Time
	previousFireTime time.Time

	data chronoq.JobDataMap
}

// NewCalendarInterval constructs a trigger that fires every `amount` units
// of `unit`, starting at startTime.
func NewCalendarInterval(key chronoq.TriggerKey, jobKey chronoq.JobKey, startTime time.Time, unit IntervalUnit, amount int) *CalendarInterval {
	if startTime.IsZero() {
		startTime = time.Now()
	}
	if amount < 1 {
		amount = 1
	}
	return &CalendarInterval{
		key:          key,
		jobKey:       jobKey,
		priority:     chronoq.DefaultPriority,
		startTime:    startTime,
		misfireInstr: chronoq.MisfireFireNow,
		unit:         unit,
		amount:       amount,
		data:         chronoq.NewJobDataMap(),
	}
}

// Unit returns the configured step unit, for callers that need to persist
// or display this trigger's schedule (e.g. store/boltstore).
func (t *CalendarInterval) Unit() IntervalUnit { return t.unit }

// Amount returns the configured step count.
func (t *CalendarInterval) Amount() int { return t.amount }

func (t *CalendarInterval) step(from time.Time) time.Time {
	switch t.unit {
	case Second:
		return from.Add(time.Duration(t.amount) * time.Second)
	case Minute:
		return from.Add(time.Duration(t.amount) * time.Minute)
	case Hour:
		return from.Add(time.Duration(t.amount) * time.Hour)
	case Day:
		return from.AddDate(0, 0, t.amount)
	case Week:
		return from.AddDate(0, 0, 7*t.amount)
	case Month, Year:
		months := t.amount
		if t.unit == Year {
			months = 12 * t.amount
		}
		y, m, d := from.Date()
		first := time.Date(y, m+time.Month(months), 1, from.Hour(), from.Minute(), from.Second(), from.Nanosecond(), from.Location())
		if last := first.AddDate(0, 1, -1).Day(); d > last {
			d = last
		}
		return time.Date(first.Year(), first.Month(), d, from.Hour(), from.Minute(), from.Second(), from.Nanosecond(), from.Location())
	default:
		return from.Add(time.Duration(t.amount) * time.Second)
	}
}

func (t *CalendarInterval) Key() chronoq.TriggerKey  { return t.key }
func (t *CalendarInterval) JobKey() chronoq.JobKey   { return t.jobKey }
func (t *CalendarInterval) Description() string      { return t.description }
func (t *CalendarInterval) SetDescription(d string)  { t.description = d }
func (t *CalendarInterval) Priority() int            { return t.priority }
func (t *CalendarInterval) SetPriority(p int)        { t.priority = p }
func (t *CalendarInterval) StartTime() time.Time     { return t.startTime }
func (t *CalendarInterval) EndTime() time.Time       { return t.endTime }
func (t *CalendarInterval) SetEndTime(e time.Time)   { t.endTime = e }
func (t *CalendarInterval) CalendarName() string     { return t.calendarName }
func (t *CalendarInterval) SetCalendarName(n string) { t.calendarName = n }
func (t *CalendarInterval) Data() chronoq.JobDataMap { return t.data }

func (t *CalendarInterval) MisfireInstruction() chronoq.MisfireInstruction {
	return t.misfireInstr
}
func (t *CalendarInterval) SetMisfireInstruction(i chronoq.MisfireInstruction) {
	t.misfireInstr = i
}

func (t *CalendarInterval) GetNextFireTime() time.Time     { return t.nextFireTime }
func (t *CalendarInterval) SetNextFireTime(tm time.Time)   { t.nextFireTime = tm }
func (t *CalendarInterval) GetPreviousFireTime() time.Time { return t.previousFireTime }
func (t *CalendarInterval) SetPreviousFireTime(tm time.Time) {
	t.previousFireTime = tm
}

func (t *CalendarInterval) GetFinalFireTime() time.Time { return time.Time{} }

func (t *CalendarInterval) ComputeFirstFireTime(cal chronoq.Calendar) time.Time {
	t.nextFireTime = t.startTime
	if cal != nil && !cal.IsTimeIncluded(t.nextFireTime) {
		t.nextFireTime = cal.GetNextIncludedTime(t.nextFireTime)
	}
	if !t.endTime.IsZero() && t.nextFireTime.After(t.endTime) {
		t.nextFireTime = time.Time{}
	}
	return t.nextFireTime
}

func (t *CalendarInterval) GetFireTimeAfter(after time.Time, cal chronoq.Calendar) time.Time {
	candidate := t.startTime
	for !candidate.After(after) {
		candidate = t.step(candidate)
	}
	if !t.endTime.IsZero() && candidate.After(t.endTime) {
		return time.Time{}
	}
	for cal != nil && !cal.IsTimeIncluded(candidate) {
		candidate = cal.GetNextIncludedTime(candidate)
		if candidate.IsZero() || (!t.endTime.IsZero() && candidate.After(t.endTime)) {
			return time.Time{}
		}
	}
	return candidate
}

func (t *CalendarInterval) MayFireAgain() bool {
	return !t.GetFireTimeAfter(t.nextFireTime, nil).IsZero()
}

func (t *CalendarInterval) UpdateAfterMisfire(cal chronoq.Calendar) {
	switch t.misfireInstr {
	case chronoq.MisfireIgnore:
		return
	case chronoq.MisfireDoNothing:
		t.nextFireTime = t.GetFireTimeAfter(time.Now(), cal)
	default:
		t.nextFireTime = time.Now()
		if cal != nil && !cal.IsTimeIncluded(t.nextFireTime) {
			t.nextFireTime = cal.GetNextIncludedTime(t.nextFireTime)
		}
	}
}

func (t *CalendarInterval) UpdateWithNewCalendar(cal chronoq.Calendar, misfireThreshold time.Duration) {
	next := t.GetFireTimeAfter(t.previousFireTime, cal)
	if next.Before(time.Now().Add(misfireThreshold)) {
		next = t.GetFireTimeAfter(time.Now(), cal)
	}
	t.nextFireTime = next
}

func (t *CalendarInterval) TriggerFired(cal chronoq.Calendar) {
	t.previousFireTime = t.nextFireTime
	t.nextFireTime = t.GetFireTimeAfter(t.nextFireTime, cal)
}

func (t *CalendarInterval) ExecutionComplete(ctx *chronoq.JobExecutionContext, result *chronoq.JobExecutionResult) chronoq.CompletionInstruction {
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

func (t *CalendarInterval) Clone() chronoq.Trigger {
	cp := *t
	cp.data = t.data.Clone()
	return &cp
}
