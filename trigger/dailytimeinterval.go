package trigger

import (
	"time"

	"github.com/arjunv/chronoq"
)

// DailyTimeInterval fires every interval within a daily time-of-day window
// (e.g. every 15 minutes between 09:00 and 17:00), on the days of week
// listed in daysOfWeek (time.Weekday values; empty means every day).
type DailyTimeInterval struct {
	key          chronoq.TriggerKey
	jobKey       chronoq.JobKey
	description  string
	priority     int
	startTime    time.Time
	endTime      time.Time
	calendarName string
	misfireInstr chronoq.MisfireInstruction

	startTimeOfDay TimeOfDay
	endTimeOfDay   TimeOfDay
	interval       time.Duration
	daysOfWeek     map[time.Weekday]bool

	nextFireTime     time.Time
	previousFireTime time.Time

	data chronoq.JobDataMap
}

// TimeOfDay is a wall-clock time with no date component.
type TimeOfDay struct {
	Hour, Minute, Second int
}

func (d TimeOfDay) onDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), d.Hour, d.Minute, d.Second, 0, t.Location())
}

// NewDailyTimeInterval constructs a trigger firing every `interval` between
// startOfDay and endOfDay, restricted to daysOfWeek (pass nil/empty for
// every day of the week).
func NewDailyTimeInterval(key chronoq.TriggerKey, jobKey chronoq.JobKey, startDate time.Time, startOfDay, endOfDay TimeOfDay, interval time.Duration, daysOfWeek []time.Weekday) *DailyTimeInterval {
	if startDate.IsZero() {
		startDate = time.Now()
	}
	days := make(map[time.Weekday]bool, 7)
	if len(daysOfWeek) == 0 {
		for d := time.Sunday; d <= time.Saturday; d++ {
			days[d] = true
		}
	} else {
		for _, d := range daysOfWeek {
			days[d] = true
		}
	}
	return &DailyTimeInterval{
		key:            key,
		jobKey:         jobKey,
		priority:       chronoq.DefaultPriority,
		startTime:      startDate,
		misfireInstr:   chronoq.MisfireFireNow,
		startTimeOfDay: startOfDay,
		endTimeOfDay:   endOfDay,
		interval:       interval,
		daysOfWeek:     days,
		data:           chronoq.NewJobDataMap(),
	}
}

func (t *DailyTimeInterval) Key() chronoq.TriggerKey  { return t.key }
func (t *DailyTimeInterval) JobKey() chronoq.JobKey   { return t.jobKey }
func (t *DailyTimeInterval) Description() string      { return t.description }
func (t *DailyTimeInterval) SetDescription(d string)  { t.description = d }
func (t *DailyTimeInterval) Priority() int            { return t.priority }
func (t *DailyTimeInterval) SetPriority(p int)        { t.priority = p }
func (t *DailyTimeInterval) StartTime() time.Time     { return t.startTime }
func (t *DailyTimeInterval) EndTime() time.Time       { return t.endTime }
func (t *DailyTimeInterval) SetEndTime(e time.Time)   { t.endTime = e }
func (t *DailyTimeInterval) CalendarName() string     { return t.calendarName }
func (t *DailyTimeInterval) SetCalendarName(n string) { t.calendarName = n }
func (t *DailyTimeInterval) Data() chronoq.JobDataMap { return t.data }

// StartTimeOfDay, EndTimeOfDay, Interval and DaysOfWeek expose this
// trigger's window configuration, for callers that need to persist or
// display its schedule (e.g. store/boltstore).
func (t *DailyTimeInterval) StartTimeOfDay() TimeOfDay { return t.startTimeOfDay }
func (t *DailyTimeInterval) EndTimeOfDay() TimeOfDay   { return t.endTimeOfDay }
func (t *DailyTimeInterval) Interval() time.Duration   { return t.interval }
func (t *DailyTimeInterval) DaysOfWeek() []time.Weekday {
	days := make([]time.Weekday, 0, len(t.daysOfWeek))
	for d, on := range t.daysOfWeek {
		if on {
			days = append(days, d)
		}
	}
	return days
}

func (t *DailyTimeInterval) MisfireInstruction() chronoq.MisfireInstruction {
	return t.misfireInstr
}
func (t *DailyTimeInterval) SetMisfireInstruction(i chronoq.MisfireInstruction) {
	t.misfireInstr = i
}

func (t *DailyTimeInterval) GetNextFireTime() time.Time     { return t.nextFireTime }
func (t *DailyTimeInterval) SetNextFireTime(tm time.Time)   { t.nextFireTime = tm }
func (t *DailyTimeInterval) GetPreviousFireTime() time.Time { return t.previousFireTime }
func (t *DailyTimeInterval) SetPreviousFireTime(tm time.Time) {
	t.previousFireTime = tm
}

func (t *DailyTimeInterval) GetFinalFireTime() time.Time { return time.Time{} }

func (t *DailyTimeInterval) ComputeFirstFireTime(cal chronoq.Calendar) time.Time {
	t.nextFireTime = t.GetFireTimeAfter(t.startTime.Add(-time.Second), cal)
	return t.nextFireTime
}

// GetFireTimeAfter walks forward day by day looking for the next interval
// tick inside the configured window on a permitted day of week.
func (t *DailyTimeInterval) GetFireTimeAfter(after time.Time, cal chronoq.Calendar) time.Time {
	if t.interval <= 0 {
		return time.Time{}
	}
	if after.Before(t.startTime) {
		after = t.startTime.Add(-time.Second)
	}

	day := after
	for iterations := 0; iterations < 3*366; iterations++ {
		windowStart := t.startTimeOfDay.onDate(day)
		windowEnd := t.endTimeOfDay.onDate(day)
		if t.daysOfWeek[day.Weekday()] {
			candidate := windowStart
			if after.After(windowStart) || after.Equal(windowStart) {
				elapsed := after.Sub(windowStart)
				n := int64(elapsed/t.interval) + 1
				candidate = windowStart.Add(time.Duration(n) * t.interval)
			}
			if !candidate.After(windowEnd) {
				if !t.endTime.IsZero() && candidate.After(t.endTime) {
					return time.Time{}
				}
				if cal == nil || cal.IsTimeIncluded(candidate) {
					return candidate
				}
			}
		}
		day = day.AddDate(0, 0, 1)
		day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
		after = day.Add(-time.Second)
	}
	return time.Time{}
}

func (t *DailyTimeInterval) MayFireAgain() bool {
	return !t.GetFireTimeAfter(t.nextFireTime, nil).IsZero()
}

func (t *DailyTimeInterval) UpdateAfterMisfire(cal chronoq.Calendar) {
	switch t.misfireInstr {
	case chronoq.MisfireIgnore:
		return
	default:
		t.nextFireTime = t.GetFireTimeAfter(time.Now().Add(-time.Second), cal)
	}
}

func (t *DailyTimeInterval) UpdateWithNewCalendar(cal chronoq.Calendar, misfireThreshold time.Duration) {
	next := t.GetFireTimeAfter(t.previousFireTime, cal)
	if next.Before(time.Now().Add(misfireThreshold)) {
		next = t.GetFireTimeAfter(time.Now(), cal)
	}
	t.nextFireTime = next
}

func (t *DailyTimeInterval) TriggerFired(cal chronoq.Calendar) {
	t.previousFireTime = t.nextFireTime
	t.nextFireTime = t.GetFireTimeAfter(t.nextFireTime, cal)
}

func (t *DailyTimeInterval) ExecutionComplete(ctx *chronoq.JobExecutionContext, result *chronoq.JobExecutionResult) chronoq.CompletionInstruction {
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

func (t *DailyTimeInterval) Clone() chronoq.Trigger {
	cp := *t
	cp.data = t.data.Clone()
	days := make(map[time.Weekday]bool, len(t.daysOfWeek))
	for k, v := range t.daysOfWeek {
		days[k] = v
	}
	cp.daysOfWeek = days
	return &cp
}
