package ramstore

import "github.com/arjunv/chronoq"

func (s *Store) pauseTriggerLocked(entry *triggerEntry) {
	switch entry.state {
	case chronoq.TriggerStateBlocked:
		entry.state = chronoq.TriggerStatePausedBlocked
	case chronoq.TriggerStateNormal, chronoq.TriggerStateAcquired:
		entry.state = chronoq.TriggerStatePaused
	}
}

func (s *Store) resumeTriggerLocked(entry *triggerEntry) {
	jobKey := entry.trigger.JobKey()
	_, blocked := s.blockedJobs[jobKey]
	switch entry.state {
	case chronoq.TriggerStatePausedBlocked:
		if blocked {
			entry.state = chronoq.TriggerStateBlocked
		} else {
			entry.state = chronoq.TriggerStateNormal
		}
	case chronoq.TriggerStatePaused:
		if blocked {
			entry.state = chronoq.TriggerStateBlocked
		} else {
			entry.state = chronoq.TriggerStateNormal
		}
	}
}

func (s *Store) PauseTrigger(key chronoq.TriggerKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.triggers[key]
	if !ok {
		return nil
	}
	s.pauseTriggerLocked(entry)
	return nil
}

func (s *Store) PauseTriggers(matcher chronoq.GroupMatcher) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	groups := make(map[string]struct{})
	for k, entry := range s.triggers {
		if matcher.MatchesTriggerKey(k) {
			s.pauseTriggerLocked(entry)
			groups[k.Group] = struct{}{}
		}
	}
	for g := range groups {
		s.pausedTriggerGroups[g] = struct{}{}
	}
	return groupNames(groups), nil
}

func (s *Store) PauseJob(key chronoq.JobKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for tk := range s.jobTriggers[key] {
		s.pauseTriggerLocked(s.triggers[tk])
	}
	return nil
}

func (s *Store) PauseJobs(matcher chronoq.GroupMatcher) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	groups := make(map[string]struct{})
	for jk := range s.jobs {
		if !matcher.MatchesJobKey(jk) {
			continue
		}
		for tk := range s.jobTriggers[jk] {
			s.pauseTriggerLocked(s.triggers[tk])
		}
		groups[jk.Group] = struct{}{}
	}
	for g := range groups {
		s.pausedJobGroups[g] = struct{}{}
	}
	return groupNames(groups), nil
}

func (s *Store) ResumeTrigger(key chronoq.TriggerKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.triggers[key]
	if !ok {
		return nil
	}
	s.resumeTriggerLocked(entry)
	return nil
}

func (s *Store) ResumeTriggers(matcher chronoq.GroupMatcher) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	groups := make(map[string]struct{})
	for k, entry := range s.triggers {
		if matcher.MatchesTriggerKey(k) {
			s.resumeTriggerLocked(entry)
			groups[k.Group] = struct{}{}
		}
	}
	for g := range groups {
		delete(s.pausedTriggerGroups, g)
	}
	return groupNames(groups), nil
}

func (s *Store) ResumeJob(key chronoq.JobKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for tk := range s.jobTriggers[key] {
		s.resumeTriggerLocked(s.triggers[tk])
	}
	return nil
}

func (s *Store) ResumeJobs(matcher chronoq.GroupMatcher) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	groups := make(map[string]struct{})
	for jk := range s.jobs {
		if !matcher.MatchesJobKey(jk) {
			continue
		}
		for tk := range s.jobTriggers[jk] {
			s.resumeTriggerLocked(s.triggers[tk])
		}
		groups[jk.Group] = struct{}{}
	}
	for g := range groups {
		delete(s.pausedJobGroups, g)
	}
	return groupNames(groups), nil
}

func (s *Store) PauseAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, entry := range s.triggers {
		s.pauseTriggerLocked(entry)
		s.pausedTriggerGroups[k.Group] = struct{}{}
	}
	return nil
}

func (s *Store) ResumeAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pausedTriggerGroups = make(map[string]struct{})
	s.pausedJobGroups = make(map[string]struct{})
	for _, entry := range s.triggers {
		s.resumeTriggerLocked(entry)
	}
	return nil
}

func (s *Store) GetTriggerState(key chronoq.TriggerKey) (chronoq.TriggerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.triggers[key]
	if !ok {
		return chronoq.TriggerStateNone, nil
	}
	return entry.state, nil
}

func groupNames(groups map[string]struct{}) []string {
	out := make([]string, 0, len(groups))
	for g := range groups {
		out = append(out, g)
	}
	return out
}
