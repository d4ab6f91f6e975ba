// internal/domain/membership/set.go
package membership

import (
	"sort"
	"strings"
)

// Email is a mailing-list address as reported by one of the sources.
// Only line-break characters are trimmed; case is preserved.
type Email string

// NormalizeEmail trims surrounding line breaks from a raw address.
func NormalizeEmail(raw string) Email {
	return Email(strings.Trim(raw, "\r\n"))
}

// Set is an unordered collection of addresses. The zero value is not usable; use NewSet.
type Set map[Email]struct{}

// NewSet builds a set from raw addresses, dropping empty entries.
func NewSet(raw ...string) Set {
	s := make(Set, len(raw))
	for _, r := range raw {
		s.Add(NormalizeEmail(r))
	}
	return s
}

// SetOf builds a set from already-normalized addresses.
func SetOf(emails ...Email) Set {
	s := make(Set, len(emails))
	for _, e := range emails {
		s.Add(e)
	}
	return s
}

func (s Set) Add(e Email) {
	if e == "" {
		return
	}
	s[e] = struct{}{}
}

func (s Set) Contains(e Email) bool {
	_, ok := s[e]
	return ok
}

func (s Set) Len() int { return len(s) }

func (s Set) IsEmpty() bool { return len(s) == 0 }

// Clone returns an independent copy of s.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for e := range s {
		out[e] = struct{}{}
	}
	return out
}

// Union returns s ∪ others.
func (s Set) Union(others ...Set) Set {
	out := s.Clone()
	for _, o := range others {
		for e := range o {
			out[e] = struct{}{}
		}
	}
	return out
}

// Difference returns s minus every element of each of others, applied left to right.
func (s Set) Difference(others ...Set) Set {
	out := make(Set, len(s))
outer:
	for e := range s {
		for _, o := range others {
			if o.Contains(e) {
				continue outer
			}
		}
		out[e] = struct{}{}
	}
	return out
}

// SymmetricDifference returns the elements present in exactly one of s and o.
func (s Set) SymmetricDifference(o Set) Set {
	out := s.Difference(o)
	for e := range o {
		if !s.Contains(e) {
			out[e] = struct{}{}
		}
	}
	return out
}

// Equal reports pure set equality; iteration order never matters.
func (s Set) Equal(o Set) bool {
	return len(s) == len(o) && s.SymmetricDifference(o).IsEmpty()
}

// Sorted returns the members in lexical order, for stable output and storage.
func (s Set) Sorted() []Email {
	out := make([]Email, 0, len(s))
	for e := range s {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings is Sorted converted to plain strings.
func (s Set) Strings() []string {
	sorted := s.Sorted()
	out := make([]string, len(sorted))
	for i, e := range sorted {
		out[i] = string(e)
	}
	return out
}
