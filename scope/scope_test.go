package scope

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rotblauer/fixguard/conceptual"
)

func TestInScope(t *testing.T) {
	cases := []struct {
		name  string
		scope Scope
		id    conceptual.SourceID
		want  bool
	}{
		{"all any", AllSources{}, "gps.1", true},
		{"all empty", AllSources{}, "", true},
		{"single match", SingleSource{ID: "gps.1"}, "gps.1", true},
		{"single mismatch", SingleSource{ID: "gps.1"}, "gps.2", false},
		{"single prefix is not a match", SingleSource{ID: "gps.1"}, "gps.10", false},
		{"single empty", SingleSource{ID: "gps.1"}, "", false},
		{"set member", NewSourceSet("A", "B"), "B", true},
		{"set non-member", NewSourceSet("A"), "B", false},
		{"set empty id", NewSourceSet("A"), "", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.scope.InScope(c.id); got != c.want {
				t.Errorf("InScope(%q) = %v, want %v", c.id, got, c.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want Scope
	}{
		{"nil", nil, AllSources{}},
		{"empty", "", AllSources{}},
		{"ALL", "ALL", AllSources{}},
		{"all lower", "all", AllSources{}},
		{"single", "n2k.115", SingleSource{ID: "n2k.115"}},
		{"single trimmed", "  n2k.115 ", SingleSource{ID: "n2k.115"}},
		{"comma list", "A, B,C", NewSourceSet("A", "B", "C")},
		{"string list", []string{"A", "B"}, NewSourceSet("A", "B")},
		{"one element list", []string{"A"}, SingleSource{ID: "A"}},
		{"any list", []any{"A", "B"}, NewSourceSet("A", "B")},
		{"list with ALL", []string{"A", "ALL"}, AllSources{}},
		{"duplicates", []string{"A", "A", "B"}, NewSourceSet("A", "B")},
		{"already resolved", SingleSource{ID: "x"}, SingleSource{ID: "x"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := Parse(c.in)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(c.want, got); diff != "" {
				t.Errorf("Parse(%v) mismatch (-want +got):\n%s", c.in, diff)
			}
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []any{
		[]string{},
		[]string{" ", ""},
		[]any{"A", 42},
		42,
		map[string]string{"a": "b"},
	} {
		if _, err := Parse(in); !errors.Is(err, ErrInvalidScope) {
			t.Errorf("Parse(%v): got %v, want ErrInvalidScope", in, err)
		}
	}
}

func TestSourceSet_String(t *testing.T) {
	if got, want := NewSourceSet("b", "a", "c").String(), "a,b,c"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
