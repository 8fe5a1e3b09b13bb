package listener

import "github.com/arjunv/chronoq"

// Matcher selects job/trigger listener targets by key, generalizing
// chronoq.GroupMatcher (group-only) to the full key and adding AND/OR/NOT
// combinators so a listener can be scoped to e.g. "group A and not named
// maintenance-job".
type Matcher interface {
	MatchesJob(key chronoq.JobKey) bool
	MatchesTrigger(key chronoq.TriggerKey) bool
}

// anyMatcher matches every key; the default when a listener is registered
// without an explicit matcher.
type anyMatcher struct{}

func (anyMatcher) MatchesJob(chronoq.JobKey) bool         { return true }
func (anyMatcher) MatchesTrigger(chronoq.TriggerKey) bool { return true }

// Any returns the default "match everything" matcher.
func Any() Matcher { return anyMatcher{} }

// ByGroup adapts a chronoq.GroupMatcher into a Matcher.
func ByGroup(m chronoq.GroupMatcher) Matcher { return groupMatcher{m} }

type groupMatcher struct{ m chronoq.GroupMatcher }

func (g groupMatcher) MatchesJob(key chronoq.JobKey) bool         { return g.m.MatchesJobKey(key) }
func (g groupMatcher) MatchesTrigger(key chronoq.TriggerKey) bool { return g.m.MatchesTriggerKey(key) }

// ByJobName matches a single job's Name field regardless of group.
func ByJobName(name string) Matcher { return jobNameMatcher{name} }

type jobNameMatcher struct{ name string }

func (n jobNameMatcher) MatchesJob(key chronoq.JobKey) bool         { return key.Name == n.name }
func (n jobNameMatcher) MatchesTrigger(chronoq.TriggerKey) bool     { return false }

// ByTriggerName matches a single trigger's Name field regardless of group.
func ByTriggerName(name string) Matcher { return triggerNameMatcher{name} }

type triggerNameMatcher struct{ name string }

func (n triggerNameMatcher) MatchesJob(chronoq.JobKey) bool             { return false }
func (n triggerNameMatcher) MatchesTrigger(key chronoq.TriggerKey) bool { return key.Name == n.name }

// And matches when every operand matches.
func And(matchers ...Matcher) Matcher { return andMatcher{matchers} }

type andMatcher struct{ matchers []Matcher }

func (a andMatcher) MatchesJob(key chronoq.JobKey) bool {
	for _, m := range a.matchers {
		if !m.MatchesJob(key) {
			return false
		}
	}
	return true
}

func (a andMatcher) MatchesTrigger(key chronoq.TriggerKey) bool {
	for _, m := range a.matchers {
		if !m.MatchesTrigger(key) {
			return false
		}
	}
	return true
}

// Or matches when any operand matches.
func Or(matchers ...Matcher) Matcher { return orMatcher{matchers} }

type orMatcher struct{ matchers []Matcher }

func (o orMatcher) MatchesJob(key chronoq.JobKey) bool {
	for _, m := range o.matchers {
		if m.MatchesJob(key) {
			return true
		}
	}
	return false
}

func (o orMatcher) MatchesTrigger(key chronoq.TriggerKey) bool {
	for _, m := range o.matchers {
		if m.MatchesTrigger(key) {
			return true
		}
	}
	return false
}

// Not inverts a single matcher.
func Not(m Matcher) Matcher { return notMatcher{m} }

type notMatcher struct{ m Matcher }

func (n notMatcher) MatchesJob(key chronoq.JobKey) bool         { return !n.m.MatchesJob(key) }
func (n notMatcher) MatchesTrigger(key chronoq.TriggerKey) bool { return !n.m.MatchesTrigger(key) }
