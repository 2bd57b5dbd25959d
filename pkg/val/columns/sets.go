package columns

import (
	"sort"
	"strings"
)

// Sets defines named column groups that expand into lists of columns.
// - "multiples": raw peer multiples
// - "relative": each multiple against the sector average
// - "status": whether the peer contributed data
var Sets = map[string][]string{
	"multiples": {"pe", "ev_ebitda", "ev_sales"},
	"relative":  {"pe_vs_sector", "ev_ebitda_vs_sector", "ev_sales_vs_sector"},
	"status":    {"status"},
}

// ExpandSets returns "sym" followed by the union of columns for the given
// set names, in set order, keeping the first occurrence of each column.
func ExpandSets(setNames []string) ([]string, error) {
	out := []string{"sym"}
	seen := map[string]struct{}{"sym": {}}
	for _, name := range setNames {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		cols, ok := Sets[name]
		if !ok {
			return nil, &UnknownSetError{Name: name, Available: availableSets()}
		}
		for _, c := range cols {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out, nil
}

// UnknownSetError reports an unknown column set name.
type UnknownSetError struct {
	Name      string
	Available []string
}

func (e *UnknownSetError) Error() string {
	return "unknown column set: " + e.Name + "; available: " + strings.Join(e.Available, ", ")
}

func availableSets() []string {
	keys := make([]string, 0, len(Sets))
	for k := range Sets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
