// Package boltstore adds bbolt-backed durability on top of ramstore: the
// live scheduling graph lives in an embedded ramstore.Store exactly as in
// memory, and the job, trigger and group-pause mutations overridden below
// also write the affected records to a bbolt database so a restart can warm
// the cache back up — generalizing the teacher's
// NewScheduler-calls-db.LoadJobs()-to-warm-jobsCache pattern
// (scheduler/scheduler.go) from a single jobs bucket to jobs, triggers, and
// paused groups. Calendars and single-job/single-trigger pause and resume
// are held in memory only.
package boltstore

import (
	"encoding/json"
	"time"

	"github.com/arjunv/chronoq"
	"github.com/arjunv/chronoq/store/ramstore"
	"github.com/arjunv/chronoq/trigger"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

const (
	jobsBucket     = "jobs"
	triggersBucket = "triggers"
	metaBucket     = "meta"

	metaPausedJobGroupsKey     = "paused_job_groups"
	metaPausedTriggerGroupsKey = "paused_trigger_groups"
)

// JobFactory reconstructs a Job body from its JobType tag on load. Durable
// job *bodies* (the func() Job closures) cannot themselves be marshaled, so
// callers register one factory per JobType before Open's warm-load runs —
// the same registration-by-name indirection Go reaches for wherever Java's
// reflection-based class loading (Quartz's job-class-name field) isn't
// available.
type JobFactory func() chronoq.Job

// Store is a durable chronoq.JobStore. It embeds *ramstore.Store, so every
// read-only and transient-state method (RetrieveJob, AcquireNextTriggers,
// GetTriggerState, ...) is served directly from memory; only the methods
// overridden below also write through to bbolt.
type Store struct {
	*ramstore.Store
	db        *bbolt.DB
	factories map[string]JobFactory
}

// Open opens (or creates) a bbolt database at path, creates its buckets if
// missing, and warm-loads any persisted jobs/triggers/paused-groups into a
// fresh in-memory ramstore.Store.
func Open(path string, misfireThreshold time.Duration, factories map[string]JobFactory) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open bbolt database at %s", path)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{jobsBucket, triggersBucket, metaBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return errors.Wrapf(err, "create %s bucket", name)
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize bbolt buckets")
	}

	s := &Store{
		Store:     ramstore.New(misfireThreshold),
		db:        db,
		factories: factories,
	}
	if err := s.warmLoad(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Shutdown() {
	s.Store.Shutdown()
	_ = s.db.Close()
}

// IsPersistent reports true so the scheduler thread uses the wider
// "significantly earlier" wake threshold appropriate to a durable store.
func (s *Store) IsPersistent() bool { return true }

// --- persisted record shapes ---

type jobRecord struct {
	Name, Group                   string
	Description                   string
	JobType                       string
	JobDataMap                    chronoq.JobDataMap
	Durable                       bool
	Recoverable                   bool
	ConcurrentExecutionDisallowed bool
	PersistJobDataAfterExecution  bool
}

// triggerRecord is a tagged union over the four concrete trigger kinds this
// package knows how to rehydrate. Only the fields relevant to Kind are set.
type triggerRecord struct {
	Kind         string
	Name, Group  string
	JobName      string
	JobGroup     string
	Description  string
	Priority     int
	StartTime    time.Time
	EndTime      time.Time
	CalendarName string
	Misfire      chronoq.MisfireInstruction

	// simple
	RepeatInterval time.Duration
	RepeatCount    int

	// cron
	Expression string

	// calendarinterval
	Unit   trigger.IntervalUnit
	Amount int

	// dailytimeinterval
	StartOfDay trigger.TimeOfDay
	EndOfDay   trigger.TimeOfDay
	Interval   time.Duration
	DaysOfWeek []time.Weekday
}

func toJobRecord(job *chronoq.JobDetail) jobRecord {
	return jobRecord{
		Name: job.Key.Name, Group: job.Key.Group,
		Description:                   job.Description,
		JobType:                       job.JobType,
		JobDataMap:                    job.JobDataMap.Clone(),
		Durable:                       job.Durable,
		Recoverable:                   job.Recoverable,
		ConcurrentExecutionDisallowed: job.ConcurrentExecutionDisallowed,
		PersistJobDataAfterExecution:  job.PersistJobDataAfterExecution,
	}
}

func (s *Store) fromJobRecord(r jobRecord) (*chronoq.JobDetail, error) {
	factory, ok := s.factories[r.JobType]
	if !ok {
		return nil, errors.Errorf("no registered job factory for job type %q (job %s.%s)", r.JobType, r.Group, r.Name)
	}
	jd := chronoq.NewJobDetail(chronoq.NewJobKeyWithGroup(r.Name, r.Group), r.JobType, factory)
	jd.Description = r.Description
	jd.JobDataMap = r.JobDataMap
	jd.Durable = r.Durable
	jd.Recoverable = r.Recoverable
	jd.ConcurrentExecutionDisallowed = r.ConcurrentExecutionDisallowed
	jd.PersistJobDataAfterExecution = r.PersistJobDataAfterExecution
	return jd, nil
}

func toTriggerRecord(t chronoq.Trigger) (triggerRecord, error) {
	r := triggerRecord{
		Name: t.Key().Name, Group: t.Key().Group,
		JobName: t.JobKey().Name, JobGroup: t.JobKey().Group,
		Description:  t.Description(),
		Priority:     t.Priority(),
		StartTime:    t.StartTime(),
		EndTime:      t.EndTime(),
		CalendarName: t.CalendarName(),
		Misfire:      t.MisfireInstruction(),
	}
	switch tt := t.(type) {
	case *trigger.Simple:
		r.Kind = "simple"
		r.RepeatInterval = tt.RepeatInterval()
		r.RepeatCount = tt.RepeatCount()
	case *trigger.Cron:
		r.Kind = "cron"
		r.Expression = tt.Expression()
	case *trigger.CalendarInterval:
		r.Kind = "calendarinterval"
		r.Unit = tt.Unit()
		r.Amount = tt.Amount()
	case *trigger.DailyTimeInterval:
		r.Kind = "dailytimeinterval"
		r.StartOfDay = tt.StartTimeOfDay()
		r.EndOfDay = tt.EndTimeOfDay()
		r.Interval = tt.Interval()
		r.DaysOfWeek = tt.DaysOfWeek()
	default:
		return triggerRecord{}, errors.Errorf("boltstore cannot persist trigger kind %T", t)
	}
	return r, nil
}

func fromTriggerRecord(r triggerRecord) (chronoq.Trigger, error) {
	key := chronoq.NewTriggerKeyWithGroup(r.Name, r.Group)
	jobKey := chronoq.NewJobKeyWithGroup(r.JobName, r.JobGroup)

	var t chronoq.Trigger
	switch r.Kind {
	case "simple":
		t = trigger.NewSimple(key, jobKey, r.StartTime, r.RepeatInterval, r.RepeatCount)
	case "cron":
		ct, err := trigger.NewCron(key, jobKey, r.Expression)
		if err != nil {
			return nil, err
		}
		t = ct
	case "calendarinterval":
		t = trigger.NewCalendarInterval(key, jobKey, r.StartTime, r.Unit, r.Amount)
	case "dailytimeinterval":
		t = trigger.NewDailyTimeInterval(key, jobKey, r.StartTime, r.StartOfDay, r.EndOfDay, r.Interval, r.DaysOfWeek)
	default:
		return nil, errors.Errorf("unknown persisted trigger kind %q", r.Kind)
	}

	switch tt := t.(type) {
	case *trigger.Simple:
		tt.SetEndTime(r.EndTime)
		tt.SetCalendarName(r.CalendarName)
		tt.SetDescription(r.Description)
		tt.SetPriority(r.Priority)
		tt.SetMisfireInstruction(r.Misfire)
	case *trigger.Cron:
		tt.SetEndTime(r.EndTime)
		tt.SetCalendarName(r.CalendarName)
		tt.SetDescription(r.Description)
		tt.SetPriority(r.Priority)
		tt.SetMisfireInstruction(r.Misfire)
	case *trigger.CalendarInterval:
		tt.SetEndTime(r.EndTime)
		tt.SetCalendarName(r.CalendarName)
		tt.SetDescription(r.Description)
		tt.SetPriority(r.Priority)
		tt.SetMisfireInstruction(r.Misfire)
	case *trigger.DailyTimeInterval:
		tt.SetEndTime(r.EndTime)
		tt.SetCalendarName(r.CalendarName)
		tt.SetDescription(r.Description)
		tt.SetPriority(r.Priority)
		tt.SetMisfireInstruction(r.Misfire)
	}
	t.ComputeFirstFireTime(nil)
	return t, nil
}

func (s *Store) putJob(job *chronoq.JobDetail) error {
	rec := toJobRecord(job)
	encoded, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshal job record")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(jobsBucket))
		return errors.Wrap(b.Put([]byte(job.Key.Group+"\x00"+job.Key.Name), encoded), "put job record")
	})
}

func (s *Store) deleteJob(key chronoq.JobKey) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(jobsBucket))
		return errors.Wrap(b.Delete([]byte(key.Group+"\x00"+key.Name)), "delete job record")
	})
}

func (s *Store) putTrigger(t chronoq.Trigger) error {
	rec, err := toTriggerRecord(t)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshal trigger record")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(triggersBucket))
		return errors.Wrap(b.Put([]byte(t.Key().Group+"\x00"+t.Key().Name), encoded), "put trigger record")
	})
}

func (s *Store) deleteTrigger(key chronoq.TriggerKey) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(triggersBucket))
		return errors.Wrap(b.Delete([]byte(key.Group+"\x00"+key.Name)), "delete trigger record")
	})
}

func (s *Store) warmLoad() error {
	var jobRecords []jobRecord
	var triggerRecords []triggerRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		jb := tx.Bucket([]byte(jobsBucket))
		if err := jb.ForEach(func(_, v []byte) error {
			var r jobRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return errors.Wrap(err, "unmarshal job record")
			}
			jobRecords = append(jobRecords, r)
			return nil
		}); err != nil {
			return err
		}

		tb := tx.Bucket([]byte(triggersBucket))
		return tb.ForEach(func(_, v []byte) error {
			var r triggerRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return errors.Wrap(err, "unmarshal trigger record")
			}
			triggerRecords = append(triggerRecords, r)
			return nil
		})
	})
	if err != nil {
		return err
	}

	for _, r := range jobRecords {
		jd, err := s.fromJobRecord(r)
		if err != nil {
			return err
		}
		if err := s.Store.StoreJob(jd, true, true); err != nil {
			return errors.Wrap(err, "warm-load job")
		}
	}
	for _, r := range triggerRecords {
		t, err := fromTriggerRecord(r)
		if err != nil {
			return err
		}
		if err := s.Store.StoreTrigger(t, true); err != nil {
			return errors.Wrap(err, "warm-load trigger")
		}
	}

	pausedJobGroups, pausedTriggerGroups, err := s.loadPausedGroups()
	if err != nil {
		return err
	}
	for _, g := range pausedJobGroups {
		if _, err := s.Store.PauseJobs(chronoq.GroupEquals(g)); err != nil {
			return errors.Wrap(err, "warm-load paused job group")
		}
	}
	for _, g := range pausedTriggerGroups {
		if _, err := s.Store.PauseTriggers(chronoq.GroupEquals(g)); err != nil {
			return errors.Wrap(err, "warm-load paused trigger group")
		}
	}
	return nil
}

func (s *Store) loadPausedGroups() (jobGroups, triggerGroups []string, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(metaBucket))
		if v := b.Get([]byte(metaPausedJobGroupsKey)); v != nil {
			if err := json.Unmarshal(v, &jobGroups); err != nil {
				return errors.Wrap(err, "unmarshal paused job groups")
			}
		}
		if v := b.Get([]byte(metaPausedTriggerGroupsKey)); v != nil {
			if err := json.Unmarshal(v, &triggerGroups); err != nil {
				return errors.Wrap(err, "unmarshal paused trigger groups")
			}
		}
		return nil
	})
	return jobGroups, triggerGroups, err
}

func (s *Store) putPausedGroups(key string, groups []string) error {
	encoded, err := json.Marshal(groups)
	if err != nil {
		return errors.Wrap(err, "marshal paused groups")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(metaBucket))
		return errors.Wrap(b.Put([]byte(key), encoded), "put paused groups")
	})
}

func (s *Store) persistPausedJobGroups(groups []string) error {
	existing, _, err := s.loadPausedGroups()
	if err != nil {
		return err
	}
	return s.putPausedGroups(metaPausedJobGroupsKey, mergeGroups(existing, groups))
}

func (s *Store) persistPausedTriggerGroups(groups []string) error {
	_, existing, err := s.loadPausedGroups()
	if err != nil {
		return err
	}
	return s.putPausedGroups(metaPausedTriggerGroupsKey, mergeGroups(existing, groups))
}

func mergeGroups(existing, added []string) []string {
	set := make(map[string]struct{}, len(existing)+len(added))
	for _, g := range existing {
		set[g] = struct{}{}
	}
	for _, g := range added {
		set[g] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for g := range set {
		out = append(out, g)
	}
	return out
}

func removeGroups(existing, removed []string) []string {
	drop := make(map[string]struct{}, len(removed))
	for _, g := range removed {
		drop[g] = struct{}{}
	}
	out := existing[:0:0]
	for _, g := range existing {
		if _, gone := drop[g]; !gone {
			out = append(out, g)
		}
	}
	return out
}

// --- write-through overrides ---

func (s *Store) StoreJobAndTrigger(job *chronoq.JobDetail, t chronoq.Trigger) error {
	if err := s.Store.StoreJobAndTrigger(job, t); err != nil {
		return err
	}
	if err := s.putJob(job); err != nil {
		return err
	}
	return s.putTrigger(t)
}

func (s *Store) StoreJob(job *chronoq.JobDetail, replaceExisting, allowNonDurableWithoutTrigger bool) error {
	if err := s.Store.StoreJob(job, replaceExisting, allowNonDurableWithoutTrigger); err != nil {
		return err
	}
	return s.putJob(job)
}

func (s *Store) StoreTrigger(t chronoq.Trigger, replaceExisting bool) error {
	if err := s.Store.StoreTrigger(t, replaceExisting); err != nil {
		return err
	}
	return s.putTrigger(t)
}

func (s *Store) RemoveJob(key chronoq.JobKey) (bool, error) {
	removed, err := s.Store.RemoveJob(key)
	if err != nil || !removed {
		return removed, err
	}
	return true, s.deleteJob(key)
}

func (s *Store) RemoveTrigger(key chronoq.TriggerKey) (bool, error) {
	removed, err := s.Store.RemoveTrigger(key)
	if err != nil || !removed {
		return removed, err
	}
	return true, s.deleteTrigger(key)
}

func (s *Store) ReplaceTrigger(key chronoq.TriggerKey, newTrigger chronoq.Trigger) (bool, error) {
	replaced, err := s.Store.ReplaceTrigger(key, newTrigger)
	if err != nil || !replaced {
		return replaced, err
	}
	if err := s.deleteTrigger(key); err != nil {
		return true, err
	}
	return true, s.putTrigger(newTrigger)
}

func (s *Store) PauseJobs(matcher chronoq.GroupMatcher) ([]string, error) {
	groups, err := s.Store.PauseJobs(matcher)
	if err != nil || len(groups) == 0 {
		return groups, err
	}
	return groups, s.persistPausedJobGroups(groups)
}

func (s *Store) PauseTriggers(matcher chronoq.GroupMatcher) ([]string, error) {
	groups, err := s.Store.PauseTriggers(matcher)
	if err != nil || len(groups) == 0 {
		return groups, err
	}
	return groups, s.persistPausedTriggerGroups(groups)
}

func (s *Store) ResumeJobs(matcher chronoq.GroupMatcher) ([]string, error) {
	groups, err := s.Store.ResumeJobs(matcher)
	if err != nil || len(groups) == 0 {
		return groups, err
	}
	existing, _, err := s.loadPausedGroups()
	if err != nil {
		return groups, err
	}
	return groups, s.putPausedGroups(metaPausedJobGroupsKey, removeGroups(existing, groups))
}

func (s *Store) ResumeTriggers(matcher chronoq.GroupMatcher) ([]string, error) {
	groups, err := s.Store.ResumeTriggers(matcher)
	if err != nil || len(groups) == 0 {
		return groups, err
	}
	_, existing, err := s.loadPausedGroups()
	if err != nil {
		return groups, err
	}
	return groups, s.putPausedGroups(metaPausedTriggerGroupsKey, removeGroups(existing, groups))
}

func (s *Store) PauseAll() error {
	if err := s.Store.PauseAll(); err != nil {
		return err
	}
	triggerKeys, err := s.Store.GetTriggerKeys(chronoq.AnyGroup())
	if err != nil {
		return err
	}
	groups := make(map[string]struct{})
	for _, k := range triggerKeys {
		groups[k.Group] = struct{}{}
	}
	names := make([]string, 0, len(groups))
	for g := range groups {
		names = append(names, g)
	}
	return s.persistPausedTriggerGroups(names)
}

func (s *Store) ResumeAll() error {
	if err := s.Store.ResumeAll(); err != nil {
		return err
	}
	if err := s.putPausedGroups(metaPausedJobGroupsKey, nil); err != nil {
		return err
	}
	return s.putPausedGroups(metaPausedTriggerGroupsKey, nil)
}

// TriggeredJobComplete delegates first, then re-persists (or deletes) the
// trigger. The persisted record holds the trigger's definition only: on
// warm-load its first fire time is recomputed from its start time, and its
// previous fire time and fire count are not restored.
func (s *Store) TriggeredJobComplete(t chronoq.Trigger, jd *chronoq.JobDetail, instruction chronoq.CompletionInstruction) {
	s.Store.TriggeredJobComplete(t, jd, instruction)

	if instruction == chronoq.InstructionDeleteTrigger {
		_ = s.deleteTrigger(t.Key())
		return
	}
	if fresh, err := s.Store.RetrieveTrigger(t.Key()); err == nil && fresh != nil {
		_ = s.putTrigger(fresh)
	}
	if jd != nil && jd.PersistJobDataAfterExecution {
		if job, err := s.Store.RetrieveJob(jd.Key); err == nil && job != nil {
			_ = s.putJob(job)
		}
	}
}

func (s *Store) ClearAllSchedulingData() error {
	if err := s.Store.ClearAllSchedulingData(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{jobsBucket, triggersBucket, metaBucket} {
			if err := tx.DeleteBucket([]byte(name)); err != nil && err != bbolt.ErrBucketNotFound {
				return err
			}
			if _, err := tx.CreateBucket([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
}
