package chronoq

import "time"

// manualFireTrigger is the ephemeral, non-durable, one-shot trigger
// Scheduler.TriggerJob stores for an immediate manual fire, per spec.md
// §4.8. It is a minimal self-contained Trigger implementation (rather than
// a use of trigger.Simple with repeatCount 0) because the trigger package
// imports this package; reaching back into it here would be a cyclic
// import.
type manualFireTrigger struct {
	key    TriggerKey
	jobKey JobKey

	fireTime time.Time
	fired    bool

	data JobDataMap
}

func newManualFireTrigger(key TriggerKey, jobKey JobKey, data JobDataMap) *manualFireTrigger {
	if data == nil {
		data = NewJobDataMap()
	}
	return &manualFireTrigger{
		key:      key,
		jobKey:   jobKey,
		fireTime: time.Now(),
		data:     data,
	}
}

func (t *manualFireTrigger) Key() TriggerKey         { return t.key }
func (t *manualFireTrigger) JobKey() JobKey          { return t.jobKey }
func (t *manualFireTrigger) Description() string     { return "manual fire" }
func (t *manualFireTrigger) Priority() int            { return DefaultPriority }
func (t *manualFireTrigger) SetPriority(int)          {}
func (t *manualFireTrigger) StartTime() time.Time     { return t.fireTime }
func (t *manualFireTrigger) EndTime() time.Time       { return time.Time{} }
func (t *manualFireTrigger) CalendarName() string     { return "" }
func (t *manualFireTrigger) MisfireInstruction() MisfireInstruction {
	return MisfireFireNow
}
func (t *manualFireTrigger) Data() JobDataMap { return t.data }

func (t *manualFireTrigger) GetNextFireTime() time.Time {
	if t.fired {
		return time.Time{}
	}
	return t.fireTime
}

func (t *manualFireTrigger) SetNextFireTime(tm time.Time) { t.fireTime = tm }
func (t *manualFireTrigger) GetPreviousFireTime() time.Time { return time.Time{} }
func (t *manualFireTrigger) SetPreviousFireTime(time.Time)  {}
func (t *manualFireTrigger) GetFinalFireTime() time.Time    { return t.fireTime }

func (t *manualFireTrigger) ComputeFirstFireTime(Calendar) time.Time { return t.fireTime }
func (t *manualFireTrigger) GetFireTimeAfter(time.Time, Calendar) time.Time {
	return time.Time{}
}
func (t *manualFireTrigger) MayFireAgain() bool { return !t.fired }

func (t *manualFireTrigger) UpdateAfterMisfire(Calendar)                    {}
func (t *manualFireTrigger) UpdateWithNewCalendar(Calendar, time.Duration) {}

func (t *manualFireTrigger) TriggerFired(Calendar) {
	t.fired = true
}

func (t *manualFireTrigger) ExecutionComplete(_ *JobExecutionContext, result *JobExecutionResult) CompletionInstruction {
	if result != nil && result.Err != nil {
		return InstructionSetTriggerError
	}
	return InstructionDeleteTrigger
}

func (t *manualFireTrigger) Clone() Trigger {
	cp := *t
	cp.data = t.data.Clone()
	return &cp
}
