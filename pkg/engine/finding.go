package engine

import (
	"encoding/json"
	"sort"
)

// Fragment is the output of a single Check: report-location key to rendered text.
type Fragment map[string]string

// Add records text under key, replacing any earlier value.
func (f Fragment) Add(key, text string) {
	f[key] = text
}

// FindingSet is the complete, read-only result of one scan. Keys are opaque
// report locations chosen by the checks; the engine only guarantees uniqueness.
type FindingSet struct {
	values map[string]string
}

func newFindingSet(values map[string]string) *FindingSet {
	return &FindingSet{values: values}
}

// Get returns the text stored under key, or "" when key was never populated.
func (s *FindingSet) Get(key string) string {
	if s == nil {
		return ""
	}
	return s.values[key]
}

// Has reports whether key was populated, even with an empty value.
func (s *FindingSet) Has(key string) bool {
	if s == nil {
		return false
	}
	_, ok := s.values[key]
	return ok
}

// Keys returns every populated key in sorted order.
func (s *FindingSet) Keys() []string {
	if s == nil {
		return nil
	}
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *FindingSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.values)
}

// Map returns a copy of the underlying mapping.
func (s *FindingSet) Map() map[string]string {
	out := make(map[string]string, s.Len())
	if s == nil {
		return out
	}
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Tally counts the marks across every finding.
func (s *FindingSet) Tally() Tally {
	var t Tally
	for _, k := range s.Keys() {
		t.Add(s.values[k])
	}
	return t
}

func (s *FindingSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Map())
}

func (s *FindingSet) MarshalYAML() (interface{}, error) {
	return s.Map(), nil
}
