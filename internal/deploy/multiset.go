package deploy

import "sort"

// Multiset counts occurrences of content hashes.
type Multiset map[string]int

// NewMultiset counts values.
func NewMultiset(values []string) Multiset {
	m := make(Multiset, len(values))
	for _, v := range values {
		m[v]++
	}
	return m
}

// Equal reports whether both multisets hold the same values with the same
// multiplicity.
func (m Multiset) Equal(other Multiset) bool {
	if len(m) != len(other) {
		return false
	}
	for v, n := range m {
		if other[v] != n {
			return false
		}
	}
	return true
}

// Diff returns the values whose counts differ, sorted.
func (m Multiset) Diff(other Multiset) []string {
	var out []string
	for v, n := range m {
		if other[v] != n {
			out = append(out, v)
		}
	}
	for v := range other {
		if _, seen := m[v]; !seen {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
