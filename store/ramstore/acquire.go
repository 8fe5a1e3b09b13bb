package ramstore

import (
	"sort"
	"time"

	"github.com/arjunv/chronoq"
	"github.com/google/uuid"
)

// ScanForMisfires applies each overdue trigger's misfire instruction. Called
// lazily from AcquireNextTriggers and once per idle-wait cycle by the
// scheduler thread (see DESIGN.md's Open Question decision on misfire-scan
// placement).
func (s *Store) ScanForMisfires() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scanForMisfiresLocked(time.Now())
}

func (s *Store) scanForMisfiresLocked(now time.Time) {
	threshold := now.Add(-s.misfireThreshold)
	for _, entry := range s.triggers {
		if entry.state != chronoq.TriggerStateNormal {
			continue
		}
		next := entry.trigger.GetNextFireTime()
		if next.IsZero() || next.After(threshold) {
			continue
		}
		instr := entry.trigger.MisfireInstruction()
		if instr == chronoq.MisfireIgnore {
			continue
		}
		if s.signaler != nil {
			s.signaler.NotifyTriggerListenersMisfired(entry.trigger)
		}
		cal := s.calendarFor(entry.trigger.CalendarName())
		entry.trigger.UpdateAfterMisfire(cal)

		if instr == chronoq.MisfireSetAllTriggersError {
			s.setAllJobTriggersStateLocked(entry.trigger.JobKey(), chronoq.TriggerStateError)
			continue
		}
		if entry.trigger.GetNextFireTime().IsZero() {
			entry.state = chronoq.TriggerStateComplete
			if s.signaler != nil {
				s.signaler.NotifySchedulerListenersFinalized(entry.trigger)
			}
		}
	}
}

func (s *Store) setAllJobTriggersStateLocked(jobKey chronoq.JobKey, state chronoq.TriggerState) {
	for tk := range s.jobTriggers[jobKey] {
		s.triggers[tk].state = state
	}
}

// AcquireNextTriggers returns a batch of due triggers, ordered by
// (nextFireTime asc, priority desc, key asc) and capped at maxCount. The
// batch window is anchored to the earliest trigger actually due by
// noLaterThan: if none is due yet, the batch is empty; otherwise the batch
// extends through that trigger's nextFireTime+timeWindow, picking up any
// other trigger that falls inside it. A non-concurrent job contributes at
// most one trigger per batch.
func (s *Store) AcquireNextTriggers(noLaterThan time.Time, maxCount int, timeWindow time.Duration) ([]chronoq.Trigger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scanForMisfiresLocked(time.Now())

	// The widest any candidate could possibly matter: the batch window is
	// anchored to the first trigger actually due by noLaterThan, so nothing
	// past noLaterThan+timeWindow can ever fall inside it.
	outerCutoff := noLaterThan.Add(timeWindow)
	type candidate struct {
		key   chronoq.TriggerKey
		entry *triggerEntry
	}
	var candidates []candidate
	for key, entry := range s.triggers {
		if entry.state != chronoq.TriggerStateNormal {
			continue
		}
		next := entry.trigger.GetNextFireTime()
		if next.IsZero() || next.After(outerCutoff) {
			continue
		}
		candidates = append(candidates, candidate{key, entry})
	}

	sort.Slice(candidates, func(i, j int) bool {
		ti, tj := candidates[i].entry.trigger, candidates[j].entry.trigger
		ni, nj := ti.GetNextFireTime(), tj.GetNextFireTime()
		if !ni.Equal(nj) {
			return ni.Before(nj)
		}
		if ti.Priority() != tj.Priority() {
			return ti.Priority() > tj.Priority()
		}
		if candidates[i].key.Name != candidates[j].key.Name {
			return candidates[i].key.Name < candidates[j].key.Name
		}
		return candidates[i].key.Group < candidates[j].key.Group
	})

	// Sorted ascending by nextFireTime, so the earliest candidate is the
	// only one that can ever be due by noLaterThan. If it isn't, nothing in
	// the batch is due yet and the batch window is never opened.
	if len(candidates) == 0 || candidates[0].entry.trigger.GetNextFireTime().After(noLaterThan) {
		return nil, nil
	}
	batchEnd := candidates[0].entry.trigger.GetNextFireTime().Add(timeWindow)

	var acquired []chronoq.Trigger
	batchJobs := make(map[chronoq.JobKey]struct{})
	for _, c := range candidates {
		if c.entry.trigger.GetNextFireTime().After(batchEnd) {
			break
		}
		if maxCount > 0 && len(acquired) >= maxCount {
			break
		}
		jobKey := c.entry.trigger.JobKey()
		job := s.jobs[jobKey]
		if job != nil && job.ConcurrentExecutionDisallowed {
			if _, blocked := s.blockedJobs[jobKey]; blocked {
				continue
			}
			if _, inBatch := batchJobs[jobKey]; inBatch {
				continue
			}
			batchJobs[jobKey] = struct{}{}
		}
		c.entry.state = chronoq.TriggerStateAcquired
		acquired = append(acquired, c.entry.trigger)
	}
	return acquired, nil
}

// ReleaseAcquiredTrigger returns an ACQUIRED trigger to its pre-acquisition
// state, used when the scheduler thread loses the firing race or shuts down
// mid-batch.
func (s *Store) ReleaseAcquiredTrigger(t chronoq.Trigger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.triggers[t.Key()]
	if !ok || entry.state != chronoq.TriggerStateAcquired {
		return
	}
	entry.state = s.initialStateFor(t.Key(), t.JobKey())
}

// TriggersFired advances each ACQUIRED trigger's fire-time bookkeeping and
// builds its bundle. A nil entry in the result means the trigger was no
// longer eligible (deleted, paused, or blocked by a concurrently-running
// non-concurrent sibling) and must simply be dropped by the caller.
func (s *Store) TriggersFired(triggers []chronoq.Trigger) ([]*chronoq.TriggerFiredBundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	bundles := make([]*chronoq.TriggerFiredBundle, len(triggers))
	for i, t := range triggers {
		entry, ok := s.triggers[t.Key()]
		if !ok || entry.state != chronoq.TriggerStateAcquired {
			continue
		}
		jobKey := entry.trigger.JobKey()
		job := s.jobs[jobKey]
		if job == nil {
			continue
		}
		if job.ConcurrentExecutionDisallowed {
			if _, blocked := s.blockedJobs[jobKey]; blocked {
				entry.state = s.initialStateFor(t.Key(), jobKey)
				continue
			}
		}

		cal := s.calendarFor(entry.trigger.CalendarName())
		scheduled := entry.trigger.GetNextFireTime()
		prev := entry.trigger.GetPreviousFireTime()
		entry.trigger.TriggerFired(cal)
		next := entry.trigger.GetNextFireTime()

		fireInstanceID := uuid.NewString()
		s.executing[fireInstanceID] = t.Key()

		if job.ConcurrentExecutionDisallowed {
			s.blockedJobs[jobKey] = struct{}{}
			for tk := range s.jobTriggers[jobKey] {
				if tk == t.Key() {
					continue
				}
				other := s.triggers[tk]
				switch other.state {
				case chronoq.TriggerStateNormal:
					other.state = chronoq.TriggerStateBlocked
				case chronoq.TriggerStatePaused:
					other.state = chronoq.TriggerStatePausedBlocked
				}
			}
		}

		bundles[i] = &chronoq.TriggerFiredBundle{
			JobDetail:         job.Clone(),
			Trigger:           entry.trigger,
			Calendar:          cal,
			FireInstanceID:    fireInstanceID,
			FireTime:          now,
			ScheduledFireTime: scheduled,
			PreviousFireTime:  prev,
			NextFireTime:      next,
		}
	}
	return bundles, nil
}

// TriggeredJobComplete applies instruction and unblocks any sibling
// triggers a non-concurrent job held blocked during execution.
func (s *Store) TriggeredJobComplete(t chronoq.Trigger, jd *chronoq.JobDetail, instruction chronoq.CompletionInstruction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobKey := t.JobKey()

	if job := s.jobs[jobKey]; job != nil {
		if job.ConcurrentExecutionDisallowed {
			delete(s.blockedJobs, jobKey)
			for tk := range s.jobTriggers[jobKey] {
				other := s.triggers[tk]
				if other == nil {
					continue
				}
				switch other.state {
				case chronoq.TriggerStateBlocked:
					other.state = chronoq.TriggerStateNormal
				case chronoq.TriggerStatePausedBlocked:
					other.state = chronoq.TriggerStatePaused
				}
			}
		}
		if job.PersistJobDataAfterExecution && jd != nil {
			job.JobDataMap = jd.JobDataMap.Clone()
		}
	}

	entry, ok := s.triggers[t.Key()]
	switch instruction {
	case chronoq.InstructionDeleteTrigger:
		_, _ = s.removeTriggerLocked(t.Key())
	case chronoq.InstructionSetTriggerComplete:
		if ok {
			entry.state = chronoq.TriggerStateComplete
		}
	case chronoq.InstructionSetTriggerError:
		if ok {
			entry.state = chronoq.TriggerStateError
		}
	case chronoq.InstructionSetAllJobTriggersComplete:
		s.setAllJobTriggersStateLocked(jobKey, chronoq.TriggerStateComplete)
	case chronoq.InstructionSetAllJobTriggersError:
		s.setAllJobTriggersStateLocked(jobKey, chronoq.TriggerStateError)
	default: // InstructionNoop, InstructionReExecuteJob
		if ok {
			if entry.trigger.GetNextFireTime().IsZero() {
				entry.state = chronoq.TriggerStateComplete
			} else {
				entry.state = s.initialStateFor(t.Key(), jobKey)
			}
		}
	}

	for id, key := range s.executing {
		if key == t.Key() {
			delete(s.executing, id)
			break
		}
	}

	if s.signaler != nil {
		next := time.Time{}
		if ok {
			next = entry.trigger.GetNextFireTime()
		}
		s.signaler.SignalSchedulingChange(next)
	}
}

// CurrentlyExecutingJobs returns the fire-instance ids presently dispatched.
func (s *Store) CurrentlyExecutingJobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.executing))
	for id := range s.executing {
		out = append(out, id)
	}
	return out
}
