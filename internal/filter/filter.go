// Package filter selects which cases of a run execute, from -run/-skip
// regular expressions matched against a case path.
package filter

import (
	"fmt"
	"regexp"
	"strings"
)

// CaseID locates one case execution.
type CaseID struct {
	Suite         string
	Configuration string
	Topology      string

	// Case is the class-qualified id, e.g. "KeyProg.2".
	Case string
}

// String is the path filters match against:
// suite/configuration/topology/Class.ID.
func (id CaseID) String() string {
	return strings.Join([]string{id.Suite, id.Configuration, id.Topology, id.Case}, "/")
}

// Filter decides whether a case runs.
type Filter func(CaseID) bool

// All runs everything.
func All(CaseID) bool { return true }

// RegexFilters runs a case if it matches any MustMatch pattern (or none are
// given) and no MustNotMatch pattern.
type RegexFilters struct {
	MustMatch    RegexList
	MustNotMatch RegexList
}

// AsFilter implements Filter.
func (r RegexFilters) AsFilter(id CaseID) bool {
	name := id.String()
	return (!r.MustMatch.IsDefined() || r.MustMatch.AnyMatch(name)) &&
		!r.MustNotMatch.AnyMatch(name)
}

// IsDefined reports whether any pattern was given.
func (r RegexFilters) IsDefined() bool {
	return r.MustMatch.IsDefined() || r.MustNotMatch.IsDefined()
}

// Describe explains the active filters in one line per list.
func (r RegexFilters) Describe() []string {
	var lines []string
	if r.MustMatch.IsDefined() {
		lines = append(lines, fmt.Sprintf("skip any not matching %s", r.MustMatch))
	}
	if r.MustNotMatch.IsDefined() {
		lines = append(lines, fmt.Sprintf("skip any matching %s", r.MustNotMatch))
	}
	return lines
}

// RegexList is a repeatable flag.Value of patterns.
type RegexList struct {
	patterns []*regexp.Regexp
}

func (r RegexList) String() string {
	var ss []string
	for _, p := range r.patterns {
		ss = append(ss, `"`+p.String()+`"`)
	}
	return strings.Join(ss, " or ")
}

// Set is called by the command line parser.
func (r *RegexList) Set(value string) error {
	rx, err := regexp.Compile(value)
	if err != nil {
		return fmt.Errorf("invalid regex: %w", err)
	}
	r.patterns = append(r.patterns, rx)
	return nil
}

func (r RegexList) IsDefined() bool {
	return len(r.patterns) != 0
}

func (r RegexList) AnyMatch(s string) bool {
	for _, p := range r.patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}
