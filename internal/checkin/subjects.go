package checkin

import (
	"maps"
	"slices"
)

// SubjectSet holds the subjects confirmed present in one session. It only
// grows; adding a present subject is a no-op.
type SubjectSet struct {
	m map[string]struct{}
}

// Add inserts id and reports whether it was new.
func (s *SubjectSet) Add(id string) bool {
	if s.m == nil {
		s.m = make(map[string]struct{})
	}
	if _, ok := s.m[id]; ok {
		return false
	}
	s.m[id] = struct{}{}
	return true
}

// Has reports membership.
func (s SubjectSet) Has(id string) bool {
	_, ok := s.m[id]
	return ok
}

// Len returns the number of subjects.
func (s SubjectSet) Len() int {
	return len(s.m)
}

// List returns the subjects sorted.
func (s SubjectSet) List() []string {
	return slices.Sorted(maps.Keys(s.m))
}

// Clone returns an independent copy, so a reduced machine never aliases the
// set of its predecessor.
func (s SubjectSet) Clone() SubjectSet {
	return SubjectSet{m: maps.Clone(s.m)}
}
