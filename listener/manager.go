package listener

import (
	"sync"

	"github.com/arjunv/chronoq"
)

type jobEntry struct {
	listener JobListener
	matcher  Matcher
}

type triggerEntry struct {
	listener TriggerListener
	matcher  Matcher
}

// Manager owns the three listener lists named in spec.md §4.9 (job,
// trigger, scheduler) plus a parallel "internal" job-listener list, filled
// through AddInternalJobListener and dispatched ahead of user job listeners
// but otherwise identically. There is no internal trigger or scheduler
// listener list.
type Manager struct {
	mu sync.RWMutex

	jobListeners         []jobEntry
	internalJobListeners []jobEntry
	triggerListeners     []triggerEntry
	schedulerListeners   []SchedulerListener

	onError func(msg string, cause error)
}

// NewManager builds an empty Manager. onError receives every listener
// panic/callback, matching spec.md §4.7's "listener exception is reported
// via schedulerError but does not abort subsequent listeners" rule.
func NewManager(onError func(msg string, cause error)) *Manager {
	if onError == nil {
		onError = func(string, error) {}
	}
	return &Manager{onError: onError}
}

func (m *Manager) AddJobListener(l JobListener, matcher Matcher) {
	if matcher == nil {
		matcher = Any()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobListeners = append(m.jobListeners, jobEntry{l, matcher})
}

func (m *Manager) AddInternalJobListener(l JobListener, matcher Matcher) {
	if matcher == nil {
		matcher = Any()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.internalJobListeners = append(m.internalJobListeners, jobEntry{l, matcher})
}

func (m *Manager) AddTriggerListener(l TriggerListener, matcher Matcher) {
	if matcher == nil {
		matcher = Any()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggerListeners = append(m.triggerListeners, triggerEntry{l, matcher})
}

func (m *Manager) AddSchedulerListener(l SchedulerListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedulerListeners = append(m.schedulerListeners, l)
}

func (m *Manager) RemoveJobListener(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.jobListeners {
		if e.listener.Name() == name {
			m.jobListeners = append(m.jobListeners[:i], m.jobListeners[i+1:]...)
			return true
		}
	}
	return false
}

func (m *Manager) RemoveTriggerListener(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.triggerListeners {
		if e.listener.Name() == name {
			m.triggerListeners = append(m.triggerListeners[:i], m.triggerListeners[i+1:]...)
			return true
		}
	}
	return false
}

// SetJobListenerMatcher replaces the matcher for an already-registered job
// listener.
func (m *Manager) SetJobListenerMatcher(name string, matcher Matcher) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.jobListeners {
		if e.listener.Name() == name {
			m.jobListeners[i].matcher = matcher
			return true
		}
	}
	return false
}

// SetTriggerListenerMatcher replaces the matcher for an already-registered
// trigger listener.
func (m *Manager) SetTriggerListenerMatcher(name string, matcher Matcher) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.triggerListeners {
		if e.listener.Name() == name {
			m.triggerListeners[i].matcher = matcher
			return true
		}
	}
	return false
}

func (m *Manager) JobListenerNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.jobListeners))
	for _, e := range m.jobListeners {
		out = append(out, e.listener.Name())
	}
	return out
}

func (m *Manager) TriggerListenerNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.triggerListeners))
	for _, e := range m.triggerListeners {
		out = append(out, e.listener.Name())
	}
	return out
}

func (m *Manager) guard(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.onError("listener "+name+" panicked", panicToError(r))
		}
	}()
	fn()
}

// --- job listener dispatch ---

func (m *Manager) NotifyJobToBeExecuted(ctx *chronoq.JobExecutionContext) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key := ctx.JobDetail.Key
	for _, e := range m.internalJobListeners {
		if e.matcher.MatchesJob(key) {
			m.guard(e.listener.Name(), func() { e.listener.JobToBeExecuted(ctx) })
		}
	}
	for _, e := range m.jobListeners {
		if e.matcher.MatchesJob(key) {
			m.guard(e.listener.Name(), func() { e.listener.JobToBeExecuted(ctx) })
		}
	}
}

func (m *Manager) NotifyJobExecutionVetoed(ctx *chronoq.JobExecutionContext) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key := ctx.JobDetail.Key
	for _, e := range m.internalJobListeners {
		if e.matcher.MatchesJob(key) {
			m.guard(e.listener.Name(), func() { e.listener.JobExecutionVetoed(ctx) })
		}
	}
	for _, e := range m.jobListeners {
		if e.matcher.MatchesJob(key) {
			m.guard(e.listener.Name(), func() { e.listener.JobExecutionVetoed(ctx) })
		}
	}
}

func (m *Manager) NotifyJobWasExecuted(ctx *chronoq.JobExecutionContext, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key := ctx.JobDetail.Key
	for _, e := range m.internalJobListeners {
		if e.matcher.MatchesJob(key) {
			m.guard(e.listener.Name(), func() { e.listener.JobWasExecuted(ctx, err) })
		}
	}
	for _, e := range m.jobListeners {
		if e.matcher.MatchesJob(key) {
			m.guard(e.listener.Name(), func() { e.listener.JobWasExecuted(ctx, err) })
		}
	}
}

// --- trigger listener dispatch ---

// NotifyTriggerFired calls TriggerFired on every matching listener and
// reports whether any of them vetoed execution.
func (m *Manager) NotifyTriggerFired(t chronoq.Trigger, ctx *chronoq.JobExecutionContext) (vetoed bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key := t.Key()
	for _, e := range m.triggerListeners {
		if !e.matcher.MatchesTrigger(key) {
			continue
		}
		m.guard(e.listener.Name(), func() { e.listener.TriggerFired(t, ctx) })
		m.guard(e.listener.Name(), func() {
			if e.listener.VetoJobExecution(t, ctx) {
				vetoed = true
			}
		})
	}
	return vetoed
}

func (m *Manager) NotifyTriggerMisfired(t chronoq.Trigger) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key := t.Key()
	for _, e := range m.triggerListeners {
		if e.matcher.MatchesTrigger(key) {
			m.guard(e.listener.Name(), func() { e.listener.TriggerMisfired(t) })
		}
	}
}

func (m *Manager) NotifyTriggerComplete(t chronoq.Trigger, ctx *chronoq.JobExecutionContext, instruction chronoq.CompletionInstruction) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key := t.Key()
	for _, e := range m.triggerListeners {
		if e.matcher.MatchesTrigger(key) {
			m.guard(e.listener.Name(), func() { e.listener.TriggerComplete(t, ctx, instruction) })
		}
	}
}

// --- scheduler listener dispatch ---

func (m *Manager) NotifyJobScheduled(t chronoq.Trigger) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, l := range m.schedulerListeners {
		m.guard("scheduler", func() { l.JobScheduled(t) })
	}
}

func (m *Manager) NotifyJobUnscheduled(key chronoq.TriggerKey) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, l := range m.schedulerListeners {
		m.guard("scheduler", func() { l.JobUnscheduled(key) })
	}
}

func (m *Manager) NotifyJobDeleted(key chronoq.JobKey) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, l := range m.schedulerListeners {
		m.guard("scheduler", func() { l.JobDeleted(key) })
	}
}

func (m *Manager) NotifyTriggerFinalized(t chronoq.Trigger) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, l := range m.schedulerListeners {
		m.guard("scheduler", func() { l.TriggerFinalized(t) })
	}
}

func (m *Manager) NotifySchedulerError(msg string, cause error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, l := range m.schedulerListeners {
		m.guard("scheduler", func() { l.SchedulerError(msg, cause) })
	}
}

func (m *Manager) NotifySchedulerShutdown() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, l := range m.schedulerListeners {
		m.guard("scheduler", func() { l.SchedulerShutdown() })
	}
}

func panicToError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return &panicValue{r}
}

type panicValue struct{ v any }

func (p *panicValue) Error() string { return "panic: " + toString(p.v) }

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return "non-string panic value"
}
