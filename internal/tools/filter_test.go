package tools

import "testing"

func TestGlobMatch(t *testing.T) {
	cases := []struct {
		pattern string
		value   string
		want    bool
	}{
		{"*", "anything", true},
		{"*", "", true},
		{"fs.*", "fs.read", true},
		{"fs.*", "fs.", true},
		{"fs.*", "net.fetch", false},
		{"*.read", "fs.read", true},
		{"*.read", "fs.write", false},
		{"fs.?ead", "fs.read", true},
		{"fs.?ead", "fs.ead", false},
		{"a*b*c", "aXXbYYc", true},
		{"a*b*c", "abc", true},
		{"a*b*c", "acb", false},
		{"exact", "exact", true},
		{"exact", "exactly", false},
		{"**", "anything", true},
	}
	for _, tc := range cases {
		if got := globMatch(tc.pattern, tc.value); got != tc.want {
			t.Errorf("globMatch(%q, %q) = %v, want %v", tc.pattern, tc.value, got, tc.want)
		}
	}
}

func TestFilterPermits(t *testing.T) {
	allow := &Filter{Mode: FilterAllow, Patterns: []string{"fs.*", "time.now"}}
	deny := &Filter{Mode: FilterDeny, Patterns: []string{"fs.write"}}

	if !allow.Permits("fs.read") {
		t.Error("allow filter should permit fs.read")
	}
	if allow.Permits("net.fetch") {
		t.Error("allow filter should reject net.fetch")
	}
	if deny.Permits("fs.write") {
		t.Error("deny filter should reject fs.write")
	}
	if !deny.Permits("fs.read") {
		t.Error("deny filter should permit fs.read")
	}

	var nilFilter *Filter
	if !nilFilter.Permits("anything") {
		t.Error("nil filter should permit everything")
	}
	empty := &Filter{Mode: FilterAllow}
	if !empty.Permits("anything") {
		t.Error("empty pattern list should permit everything")
	}
}

func TestPermittedAppliesAllFilters(t *testing.T) {
	filters := []*Filter{
		{Mode: FilterAllow, Patterns: []string{"fs.*"}},
		{Mode: FilterDeny, Patterns: []string{"fs.write"}},
	}
	if !permitted("fs.read", filters) {
		t.Error("fs.read should pass both filters")
	}
	if permitted("fs.write", filters) {
		t.Error("fs.write should be blocked by the deny filter")
	}
	if permitted("net.fetch", filters) {
		t.Error("net.fetch should be blocked by the allow filter")
	}
}
