package framework

import (
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Filter decides whether the test with the given ID runs.
type Filter func(TestID) bool

// RegexFilters select tests by regular expressions on their IDs. A test ID is the group name
// followed by the case name, e.g. "Firefox (oldest)/extension loaded without errors".
type RegexFilters struct {
	// MustMatch, if defined, must match the full test ID.
	MustMatch RegexList
	// MustNotMatch must not match the full test ID.
	MustNotMatch RegexList
	// Groups, if defined, must match the group name alone.
	Groups RegexList
}

func (r RegexFilters) AsFilter(id TestID) bool {
	if r.Groups.IsDefined() && (len(id.Path) == 0 || !r.Groups.AnyMatch(id.Path[0])) {
		return false
	}
	name := id.String()
	return (!r.MustMatch.IsDefined() || r.MustMatch.AnyMatch(name)) &&
		!r.MustNotMatch.AnyMatch(name)
}

func (r RegexFilters) IsDefined() bool {
	return r.MustMatch.IsDefined() || r.MustNotMatch.IsDefined() || r.Groups.IsDefined()
}

// RegexList is a set of patterns, any of which may match. It implements pflag.Value so that a
// flag can be repeated.
type RegexList struct {
	patterns []*regexp.Regexp
}

func (r RegexList) String() string {
	quoted := make([]string, 0, len(r.patterns))
	for _, p := range r.patterns {
		quoted = append(quoted, fmt.Sprintf("%q", p.String()))
	}
	return strings.Join(quoted, " or ")
}

func (r *RegexList) Set(value string) error {
	rx, err := regexp.Compile(value)
	if err != nil {
		return fmt.Errorf("invalid regex: %w", err)
	}
	r.patterns = append(r.patterns, rx)
	return nil
}

func (r *RegexList) Type() string {
	return "regex"
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

// PrintFilterDescription tells the operator which filters are in effect. It prints nothing if
// every test is selected.
func PrintFilterDescription(out io.Writer, filters RegexFilters) {
	if !filters.IsDefined() {
		return
	}
	fmt.Fprintln(out, "Some tests will be skipped based on the filter criteria for this test run:")
	if filters.Groups.IsDefined() {
		fmt.Fprintf(out, "  skip any group not matching %s\n", filters.Groups)
	}
	if filters.MustMatch.IsDefined() {
		fmt.Fprintf(out, "  skip any not matching %s\n", filters.MustMatch)
	}
	if filters.MustNotMatch.IsDefined() {
		fmt.Fprintf(out, "  skip any matching %s\n", filters.MustNotMatch)
	}
	fmt.Fprintln(out)
}
