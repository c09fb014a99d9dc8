// Package scope decides which upstream sources an engine validates.
package scope

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rotblauer/fixguard/conceptual"
)

// AllKeyword is the configuration value selecting every source.
const AllKeyword = "ALL"

var ErrInvalidScope = errors.New("invalid target source")

// Scope is one of AllSources, SingleSource or SourceSet.
type Scope interface {
	// InScope reports whether candidates from id are validated.
	InScope(id conceptual.SourceID) bool
	String() string
	scope()
}

// AllSources validates every candidate, including those with no source id.
type AllSources struct{}

func (AllSources) InScope(conceptual.SourceID) bool { return true }
func (AllSources) String() string                   { return AllKeyword }
func (AllSources) scope()                           {}

// SingleSource validates exactly one source.
type SingleSource struct {
	ID conceptual.SourceID
}

func (s SingleSource) InScope(id conceptual.SourceID) bool {
	return !id.Empty() && id == s.ID
}
func (s SingleSource) String() string { return s.ID.String() }
func (SingleSource) scope()           {}

// SourceSet validates a fixed set of sources.
type SourceSet struct {
	IDs map[conceptual.SourceID]struct{}
}

// NewSourceSet builds a set, ignoring duplicates.
func NewSourceSet(ids ...conceptual.SourceID) SourceSet {
	set := SourceSet{IDs: make(map[conceptual.SourceID]struct{}, len(ids))}
	for _, id := range ids {
		set.IDs[id] = struct{}{}
	}
	return set
}

func (s SourceSet) InScope(id conceptual.SourceID) bool {
	if id.Empty() {
		return false
	}
	_, ok := s.IDs[id]
	return ok
}

func (s SourceSet) String() string {
	return strings.Join(s.Sorted(), ",")
}

// Sorted returns the member ids in lexical order.
func (s SourceSet) Sorted() []string {
	out := make([]string, 0, len(s.IDs))
	for id := range s.IDs {
		out = append(out, id.String())
	}
	sort.Strings(out)
	return out
}

func (SourceSet) scope() {}

// Parse resolves a configured targetSource value into a Scope.
// Accepted shapes: "ALL" (any case) or empty, a single id, a comma separated
// list of ids, or a list of ids ([]string or []any of strings).
// A list containing "ALL" selects all sources.
func Parse(v any) (Scope, error) {
	switch t := v.(type) {
	case nil:
		return AllSources{}, nil
	case Scope:
		return t, nil
	case string:
		t = strings.TrimSpace(t)
		if t == "" || strings.EqualFold(t, AllKeyword) {
			return AllSources{}, nil
		}
		if strings.Contains(t, ",") {
			return fromList(strings.Split(t, ","))
		}
		return SingleSource{ID: conceptual.SourceID(t)}, nil
	case []string:
		return fromList(t)
	case []any:
		list := make([]string, 0, len(t))
		for i, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("%w: element %d is %T, not a string", ErrInvalidScope, i, e)
			}
			list = append(list, s)
		}
		return fromList(list)
	}
	return nil, fmt.Errorf("%w: unsupported type %T", ErrInvalidScope, v)
}

func fromList(list []string) (Scope, error) {
	ids := make([]conceptual.SourceID, 0, len(list))
	for _, s := range list {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if strings.EqualFold(s, AllKeyword) {
			return AllSources{}, nil
		}
		ids = append(ids, conceptual.SourceID(s))
	}
	switch len(ids) {
	case 0:
		return nil, fmt.Errorf("%w: empty source list", ErrInvalidScope)
	case 1:
		return SingleSource{ID: ids[0]}, nil
	}
	return NewSourceSet(ids...), nil
}
