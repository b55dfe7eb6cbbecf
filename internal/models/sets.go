package models

import "sort"

// UserIDSet is a set of acting-user identifiers with idempotent toggle
// semantics. It is stored as a JSON array but membership is what matters:
// an id appears at most once, and repeating an action undoes (reports) or
// reverses (votes) it. Counts are |set|, never a separate field.
type UserIDSet []string

// Has reports whether userID is a member
func (s UserIDSet) Has(userID string) bool {
	for _, id := range s {
		if id == userID {
			return true
		}
	}
	return false
}

// Add inserts userID if absent and reports whether the set changed
func (s *UserIDSet) Add(userID string) bool {
	if s.Has(userID) {
		return false
	}
	*s = append(*s, userID)
	return true
}

// Remove deletes userID if present and reports whether the set changed
func (s *UserIDSet) Remove(userID string) bool {
	for i, id := range *s {
		if id == userID {
			*s = append((*s)[:i], (*s)[i+1:]...)
			return true
		}
	}
	return false
}

// Toggle flips membership and reports whether userID is a member afterwards
func (s *UserIDSet) Toggle(userID string) bool {
	if s.Remove(userID) {
		return false
	}
	*s = append(*s, userID)
	return true
}

// Count returns the set cardinality
func (s UserIDSet) Count() int {
	return len(s)
}

// Clone returns an independent copy
func (s UserIDSet) Clone() UserIDSet {
	if s == nil {
		return nil
	}
	out := make(UserIDSet, len(s))
	copy(out, s)
	return out
}

// ReplyIDList is an ordered sequence of reply ids. Insertion order is
// display order, so unlike UserIDSet it is a list, not a set.
type ReplyIDList []string

// Append adds an id to the end of the list
func (l *ReplyIDList) Append(id string) {
	*l = append(*l, id)
}

// Clone returns an independent copy
func (l ReplyIDList) Clone() ReplyIDList {
	if l == nil {
		return nil
	}
	out := make(ReplyIDList, len(l))
	copy(out, l)
	return out
}

// Tags is a set of labels attached to a discussion. Order is irrelevant;
// Normalize dedupes and sorts for stable storage and comparison.
type Tags []string

// Normalize returns the tags deduplicated and sorted, dropping empties
func (t Tags) Normalize() Tags {
	seen := make(map[string]struct{}, len(t))
	out := make(Tags, 0, len(t))
	for _, tag := range t {
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy
func (t Tags) Clone() Tags {
	if t == nil {
		return nil
	}
	out := make(Tags, len(t))
	copy(out, t)
	return out
}
