package tools

import "strings"

// FilterMode selects allow-list or deny-list semantics.
type FilterMode string

const (
	FilterAllow FilterMode = "allow"
	FilterDeny  FilterMode = "deny"
)

// Filter is an allow-list or deny-list of glob patterns over canonical tool
// names. `*` matches any run of characters, `?` matches exactly one.
type Filter struct {
	Mode     FilterMode
	Patterns []string
}

// Permits reports whether the filter lets the named tool through. A nil
// filter permits everything.
func (f *Filter) Permits(name string) bool {
	if f == nil || len(f.Patterns) == 0 {
		return true
	}
	matched := false
	for _, p := range f.Patterns {
		if globMatch(p, name) {
			matched = true
			break
		}
	}
	if f.Mode == FilterDeny {
		return !matched
	}
	return matched
}

// permitted applies global and per-agent filters with AND semantics.
func permitted(name string, filters []*Filter) bool {
	for _, f := range filters {
		if !f.Permits(name) {
			return false
		}
	}
	return true
}

// globMatch matches value against pattern where `*` matches any run and `?`
// matches a single character.
func globMatch(pattern, value string) bool {
	if pattern == "*" {
		return true
	}
	return globMatchAt(pattern, value)
}

func globMatchAt(pattern, value string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case '*':
			// Collapse consecutive stars.
			pattern = strings.TrimLeft(pattern, "*")
			if pattern == "" {
				return true
			}
			for i := 0; i <= len(value); i++ {
				if globMatchAt(pattern, value[i:]) {
					return true
				}
			}
			return false
		case '?':
			if value == "" {
				return false
			}
			pattern = pattern[1:]
			value = value[1:]
		default:
			if value == "" || pattern[0] != value[0] {
				return false
			}
			pattern = pattern[1:]
			value = value[1:]
		}
	}
	return value == ""
}
