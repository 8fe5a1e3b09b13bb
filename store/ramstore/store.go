// Package ramstore implements chronoq.JobStore entirely in memory behind a
// single mutex, generalizing the teacher repo's jobsCache map[string]Job +
// sync.RWMutex pattern (scheduler/scheduler.go, scheduler/optimized_scheduler.go)
// to the full job/trigger/calendar/pause-group model.
package ramstore

import (
	"sync"
	"time"

	"github.com/arjunv/chronoq"
)

type triggerEntry struct {
	trigger chronoq.Trigger
	state   chronoq.TriggerState
}

// Store is the default, non-durable JobStore. Safe for concurrent use.
type Store struct {
	mu sync.Mutex

	signaler chronoq.SchedulerSignaler

	jobs          map[chronoq.JobKey]*chronoq.JobDetail
	jobTriggers   map[chronoq.JobKey]map[chronoq.TriggerKey]struct{}
	triggers      map[chronoq.TriggerKey]*triggerEntry
	calendars     map[string]chronoq.Calendar

	pausedTriggerGroups map[string]struct{}
	pausedJobGroups     map[string]struct{}
	blockedJobs         map[chronoq.JobKey]struct{}

	executing map[string]chronoq.TriggerKey // fireInstanceID -> trigger key

	misfireThreshold time.Duration
}

// New constructs an empty Store. misfireThreshold is the "significantly
// late" cutoff applied during misfire scans (spec.md §4.2/§4.4).
func New(misfireThreshold time.Duration) *Store {
	if misfireThreshold <= 0 {
		misfireThreshold = time.Second
	}
	return &Store{
		jobs:                make(map[chronoq.JobKey]*chronoq.JobDetail),
		jobTriggers:         make(map[chronoq.JobKey]map[chronoq.TriggerKey]struct{}),
		triggers:            make(map[chronoq.TriggerKey]*triggerEntry),
		calendars:           make(map[string]chronoq.Calendar),
		pausedTriggerGroups: make(map[string]struct{}),
		pausedJobGroups:     make(map[string]struct{}),
		blockedJobs:         make(map[chronoq.JobKey]struct{}),
		executing:           make(map[string]chronoq.TriggerKey),
		misfireThreshold:    misfireThreshold,
	}
}

func (s *Store) Initialize(signaler chronoq.SchedulerSignaler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signaler = signaler
	return nil
}

func (s *Store) SchedulerStarted() error { return nil }
func (s *Store) SchedulerPaused()        {}
func (s *Store) SchedulerResumed()       {}
func (s *Store) Shutdown()               {}

func (s *Store) calendarFor(name string) chronoq.Calendar {
	if name == "" {
		return nil
	}
	return s.calendars[name]
}

func (s *Store) initialStateFor(key chronoq.TriggerKey, jobKey chronoq.JobKey) chronoq.TriggerState {
	_, jobPaused := s.pausedJobGroups[jobKey.Group]
	_, triggerPaused := s.pausedTriggerGroups[key.Group]
	if jobPaused || triggerPaused {
		return chronoq.TriggerStatePaused
	}
	return chronoq.TriggerStateNormal
}

func (s *Store) StoreJobAndTrigger(job *chronoq.JobDetail, trigger chronoq.Trigger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.storeJobLocked(job, true, true); err != nil {
		return err
	}
	return s.storeTriggerLocked(trigger, true)
}

func (s *Store) StoreJob(job *chronoq.JobDetail, replaceExisting bool, allowNonDurableWithoutTrigger bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeJobLocked(job, replaceExisting, allowNonDurableWithoutTrigger)
}

func (s *Store) storeJobLocked(job *chronoq.JobDetail, replaceExisting, allowNonDurableWithoutTrigger bool) error {
	if job == nil {
		return chronoq.ErrNilArgument
	}
	if _, exists := s.jobs[job.Key]; exists && !replaceExisting {
		return chronoq.ErrObjectAlreadyExists("job " + job.Key.Name)
	}
	if !job.Durable && !allowNonDurableWithoutTrigger {
		if _, hasTriggers := s.jobTriggers[job.Key]; !hasTriggers {
			return chronoq.NewSchedulerError("non-durable job %s must be stored with at least one trigger", job.Key.Name)
		}
	}
	s.jobs[job.Key] = job.Clone()
	if _, ok := s.jobTriggers[job.Key]; !ok {
		s.jobTriggers[job.Key] = make(map[chronoq.TriggerKey]struct{})
	}
	return nil
}

func (s *Store) StoreTrigger(trigger chronoq.Trigger, replaceExisting bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeTriggerLocked(trigger, replaceExisting)
}

func (s *Store) storeTriggerLocked(trigger chronoq.Trigger, replaceExisting bool) error {
	if trigger == nil {
		return chronoq.ErrNilArgument
	}
	key := trigger.Key()
	if _, exists := s.triggers[key]; exists && !replaceExisting {
		return chronoq.ErrObjectAlreadyExists("trigger " + key.Name)
	}
	jobKey := trigger.JobKey()
	if _, ok := s.jobs[jobKey]; !ok {
		return chronoq.ErrJobNotFound
	}
	if trigger.GetNextFireTime().IsZero() {
		trigger.ComputeFirstFireTime(s.calendarFor(trigger.CalendarName()))
	}
	s.triggers[key] = &triggerEntry{
		trigger: trigger,
		state:   s.initialStateFor(key, jobKey),
	}
	if _, ok := s.jobTriggers[jobKey]; !ok {
		s.jobTriggers[jobKey] = make(map[chronoq.TriggerKey]struct{})
	}
	s.jobTriggers[jobKey][key] = struct{}{}
	return nil
}

func (s *Store) RemoveJob(key chronoq.JobKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[key]; !ok {
		return false, nil
	}
	for tk := range s.jobTriggers[key] {
		delete(s.triggers, tk)
	}
	delete(s.jobTriggers, key)
	delete(s.jobs, key)
	delete(s.blockedJobs, key)
	return true, nil
}

func (s *Store) RemoveTrigger(key chronoq.TriggerKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeTriggerLocked(key)
}

func (s *Store) removeTriggerLocked(key chronoq.TriggerKey) (bool, error) {
	entry, ok := s.triggers[key]
	if !ok {
		return false, nil
	}
	jobKey := entry.trigger.JobKey()
	delete(s.triggers, key)
	delete(s.jobTriggers[jobKey], key)

	if len(s.jobTriggers[jobKey]) == 0 {
		if job, ok := s.jobs[jobKey]; ok && !job.Durable {
			delete(s.jobs, jobKey)
			delete(s.jobTriggers, jobKey)
			if s.signaler != nil {
				s.signaler.NotifySchedulerListenersJobDeleted(jobKey)
			}
		}
	}
	return true, nil
}

func (s *Store) ReplaceTrigger(key chronoq.TriggerKey, newTrigger chronoq.Trigger) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.triggers[key]
	if !ok {
		return false, nil
	}
	if existing.trigger.JobKey() != newTrigger.JobKey() {
		return false, chronoq.NewSchedulerError("replacement trigger %s must target the same job", newTrigger.Key().Name)
	}
	if newTrigger.GetNextFireTime().IsZero() {
		newTrigger.ComputeFirstFireTime(s.calendarFor(newTrigger.CalendarName()))
	}
	delete(s.triggers, key)
	delete(s.jobTriggers[existing.trigger.JobKey()], key)
	newKey := newTrigger.Key()
	s.triggers[newKey] = &triggerEntry{trigger: newTrigger, state: existing.state}
	s.jobTriggers[newTrigger.JobKey()][newKey] = struct{}{}
	return true, nil
}

func (s *Store) RetrieveJob(key chronoq.JobKey) (*chronoq.JobDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[key]
	if !ok {
		return nil, nil
	}
	return job.Clone(), nil
}

func (s *Store) RetrieveTrigger(key chronoq.TriggerKey) (chronoq.Trigger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.triggers[key]
	if !ok {
		return nil, nil
	}
	return entry.trigger.Clone(), nil
}

func (s *Store) CheckExistsJob(key chronoq.JobKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[key]
	return ok, nil
}

func (s *Store) CheckExistsTrigger(key chronoq.TriggerKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.triggers[key]
	return ok, nil
}

func (s *Store) ClearAllSchedulingData() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = make(map[chronoq.JobKey]*chronoq.JobDetail)
	s.jobTriggers = make(map[chronoq.JobKey]map[chronoq.TriggerKey]struct{})
	s.triggers = make(map[chronoq.TriggerKey]*triggerEntry)
	s.calendars = make(map[string]chronoq.Calendar)
	s.pausedTriggerGroups = make(map[string]struct{})
	s.pausedJobGroups = make(map[string]struct{})
	s.blockedJobs = make(map[chronoq.JobKey]struct{})
	s.executing = make(map[string]chronoq.TriggerKey)
	return nil
}

func (s *Store) StoreCalendar(name string, cal chronoq.Calendar, replaceExisting, updateTriggers bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.calendars[name]; exists && !replaceExisting {
		return chronoq.ErrObjectAlreadyExists("calendar " + name)
	}
	s.calendars[name] = cal
	if updateTriggers {
		for _, entry := range s.triggers {
			if entry.trigger.CalendarName() == name {
				entry.trigger.UpdateWithNewCalendar(cal, s.misfireThreshold)
			}
		}
	}
	return nil
}

func (s *Store) RetrieveCalendar(name string) (chronoq.Calendar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calendars[name], nil
}

func (s *Store) RemoveCalendar(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.calendars[name]; !ok {
		return false, nil
	}
	for _, entry := range s.triggers {
		if entry.trigger.CalendarName() == name {
			return false, chronoq.NewSchedulerError("calendar %s is in use by trigger %s", name, entry.trigger.Key().Name)
		}
	}
	delete(s.calendars, name)
	return true, nil
}

func (s *Store) GetJobKeys(matcher chronoq.GroupMatcher) ([]chronoq.JobKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []chronoq.JobKey
	for k := range s.jobs {
		if matcher.MatchesJobKey(k) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *Store) GetTriggerKeys(matcher chronoq.GroupMatcher) ([]chronoq.TriggerKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []chronoq.TriggerKey
	for k := range s.triggers {
		if matcher.MatchesTriggerKey(k) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *Store) GetTriggersForJob(key chronoq.JobKey) ([]chronoq.Trigger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []chronoq.Trigger
	for tk := range s.jobTriggers[key] {
		out = append(out, s.triggers[tk].trigger.Clone())
	}
	return out, nil
}
