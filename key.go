package chronoq

import "fmt"

// DefaultGroup is the group name used when no group is specified.
const DefaultGroup = "DEFAULT"

// DefaultPriority is the priority assigned to a trigger when none is set.
const DefaultPriority = 5

// JobKey uniquely identifies a stored Job within a group namespace.
type JobKey struct {
	Name  string
	Group string
}

// NewJobKey returns a key in DefaultGroup.
func NewJobKey(name string) JobKey {
	return JobKey{Name: name, Group: DefaultGroup}
}

// NewJobKeyWithGroup returns a key in the given group.
func NewJobKeyWithGroup(name, group string) JobKey {
	if group == "" {
		group = DefaultGroup
	}
	return JobKey{Name: name, Group: group}
}

func (k JobKey) String() string {
	return fmt.Sprintf("%s.%s", k.Group, k.Name)
}

// TriggerKey uniquely identifies a stored Trigger within a group namespace.
type TriggerKey struct {
	Name  string
	Group string
}

// NewTriggerKey returns a key in DefaultGroup.
func NewTriggerKey(name string) TriggerKey {
	return TriggerKey{Name: name, Group: DefaultGroup}
}

// NewTriggerKeyWithGroup returns a key in the given group.
func NewTriggerKeyWithGroup(name, group string) TriggerKey {
	if group == "" {
		group = DefaultGroup
	}
	return TriggerKey{Name: name, Group: group}
}

func (k TriggerKey) String() string {
	return fmt.Sprintf("%s.%s", k.Group, k.Name)
}

// MatchType enumerates the ways a GroupMatcher can select group names.
type MatchType int

const (
	MatchEquals MatchType = iota
	MatchStartsWith
	MatchEndsWith
	MatchContains
	MatchAny
)

// GroupMatcher selects a set of keys by comparing their Group field.
type GroupMatcher struct {
	matchType MatchType
	group     string
}

// GroupEquals matches keys whose group equals the given value exactly.
func GroupEquals(group string) GroupMatcher { return GroupMatcher{MatchEquals, group} }

// GroupStartsWith matches keys whose group starts with the given prefix.
func GroupStartsWith(prefix string) GroupMatcher { return GroupMatcher{MatchStartsWith, prefix} }

// GroupEndsWith matches keys whose group ends with the given suffix.
func GroupEndsWith(suffix string) GroupMatcher { return GroupMatcher{MatchEndsWith, suffix} }

// GroupContains matches keys whose group contains the given substring.
func GroupContains(substr string) GroupMatcher { return GroupMatcher{MatchContains, substr} }

// AnyGroup matches every key regardless of group.
func AnyGroup() GroupMatcher { return GroupMatcher{MatchType: MatchAny} }

// IsMatch reports whether the given group satisfies this matcher.
func (m GroupMatcher) IsMatch(group string) bool {
	switch m.matchType {
	case MatchEquals:
		return group == m.group
	case MatchStartsWith:
		return len(group) >= len(m.group) && group[:len(m.group)] == m.group
	case MatchEndsWith:
		return len(group) >= len(m.group) && group[len(group)-len(m.group):] == m.group
	case MatchContains:
		return containsSubstr(group, m.group)
	case MatchAny:
		return true
	default:
		return false
	}
}

// MatchesJobKey reports whether the matcher selects the given job key's group.
func (m GroupMatcher) MatchesJobKey(k JobKey) bool { return m.IsMatch(k.Group) }

// MatchesTriggerKey reports whether the matcher selects the given trigger key's group.
func (m GroupMatcher) MatchesTriggerKey(k TriggerKey) bool { return m.IsMatch(k.Group) }

func containsSubstr(s, substr string) bool {
	if substr == "" {
		return true
	}
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
