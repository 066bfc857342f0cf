package query

import "sort"

// IDSet is a set of object identifiers. A nil IDSet means "unconstrained";
// an allocated empty set means "no matches". Store adapters receive an IDSet
// as their restrict-to input and must return a subset of it when it is
// non-nil.
type IDSet map[string]struct{}

// NewIDSet builds a set from the given ids.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains reports whether id is in the set.
func (s IDSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id into the set.
func (s IDSet) Add(id string) {
	s[id] = struct{}{}
}

// Intersect returns the ids present in both sets.
func (s IDSet) Intersect(other IDSet) IDSet {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	out := make(IDSet, len(small))
	for id := range small {
		if large.Contains(id) {
			out.Add(id)
		}
	}
	return out
}

// Union returns the ids present in either set.
func (s IDSet) Union(other IDSet) IDSet {
	out := make(IDSet, len(s)+len(other))
	for id := range s {
		out.Add(id)
	}
	for id := range other {
		out.Add(id)
	}
	return out
}

// Diff returns the ids in s that are not in other.
func (s IDSet) Diff(other IDSet) IDSet {
	out := make(IDSet, len(s))
	for id := range s {
		if !other.Contains(id) {
			out.Add(id)
		}
	}
	return out
}

// Sorted returns the ids as a sorted slice, for stable iteration and output.
func (s IDSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
