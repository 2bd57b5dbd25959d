package filter

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Filter matches a ticker-list name or a symbol.
type Filter interface {
	Match(name string) bool
}

// Parse builds a list-name filter from an expression:
// - Comma-separated exact names: "Core,International"
// - Glob: "Tech*"
// - Regex: "/^US-/"
// - Anything else: case-insensitive substring
func Parse(expr string) (Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Always(true), nil
	}
	if f, ok, err := parseCommon(expr, false); ok || err != nil {
		return f, err
	}
	return SubstrCI{needle: expr}, nil
}

// ParseSymbols builds a symbol matcher. It differs from Parse in that a
// bare word is an exact (case-insensitive) symbol, not a substring, so
// "AAPL" never admits "AAPLX". An empty expression matches nothing.
func ParseSymbols(expr string) (Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Always(false), nil
	}
	if f, ok, err := parseCommon(expr, true); ok || err != nil {
		return f, err
	}
	return NewExactSet([]string{expr}, true), nil
}

func parseCommon(expr string, fold bool) (Filter, bool, error) {
	if strings.HasPrefix(expr, "/") && strings.HasSuffix(expr, "/") && len(expr) > 2 {
		re, err := regexp.Compile(expr[1 : len(expr)-1])
		if err != nil {
			return nil, false, fmt.Errorf("parse filter %q: %w", expr, err)
		}
		return Regex{re: re}, true, nil
	}
	if strings.Contains(expr, ",") {
		return NewExactSet(strings.Split(expr, ","), fold), true, nil
	}
	if strings.ContainsAny(expr, "*?") {
		if fold {
			return Glob{pattern: strings.ToUpper(expr), fold: true}, true, nil
		}
		return Glob{pattern: expr}, true, nil
	}
	return nil, false, nil
}

// Implementations

type Always bool

func (a Always) Match(string) bool { return bool(a) }

func (a Always) String() string {
	if a {
		return "all"
	}
	return "none"
}

type ExactSet struct {
	set  map[string]struct{}
	fold bool
}

// NewExactSet builds a set from values, trimming blanks. With fold the
// comparison is case-insensitive.
func NewExactSet(values []string, fold bool) ExactSet {
	set := map[string]struct{}{}
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if fold {
			v = strings.ToUpper(v)
		}
		set[v] = struct{}{}
	}
	return ExactSet{set: set, fold: fold}
}

func (e ExactSet) Match(name string) bool {
	if e.fold {
		name = strings.ToUpper(strings.TrimSpace(name))
	}
	_, ok := e.set[name]
	return ok
}

func (e ExactSet) String() string {
	keys := make([]string, 0, len(e.set))
	for k := range e.set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "exact:" + strings.Join(keys, ",")
}

type Glob struct {
	pattern string
	fold    bool
}

func (g Glob) Match(name string) bool {
	if g.fold {
		name = strings.ToUpper(name)
	}
	ok, _ := filepath.Match(g.pattern, name)
	return ok
}

func (g Glob) String() string { return fmt.Sprintf("glob:%s", g.pattern) }

type Regex struct{ re *regexp.Regexp }

func (r Regex) Match(name string) bool { return r.re.MatchString(name) }

func (r Regex) String() string { return fmt.Sprintf("regex:%s", r.re) }

// SubstrCI matches if name contains needle, case-insensitively.
type SubstrCI struct{ needle string }

func (s SubstrCI) Match(name string) bool {
	if s.needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(s.needle))
}

func (s SubstrCI) String() string { return fmt.Sprintf("substr-ci:%s", s.needle) }
