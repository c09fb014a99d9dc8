// Package cache holds the host-side caches: the last accepted fix per
// source, per-source decision tallies, and duplicate suppression.
package cache

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
	lru2 "github.com/hashicorp/golang-lru/v2"
	"github.com/jellydator/ttlcache/v3"
	"github.com/mitchellh/hashstructure/v2"
	"github.com/rotblauer/fixguard/conceptual"
	"github.com/rotblauer/fixguard/engine"
	"github.com/rotblauer/fixguard/types/fix"
)

// SourceTally counts the decisions made for one source.
type SourceTally struct {
	Source     conceptual.SourceID `json:"source"`
	Accepted   uint64              `json:"accepted"`
	Rejected   uint64              `json:"rejected"`
	Malformed  uint64              `json:"malformed"`
	LastReason fix.Reason          `json:"lastReason"`
	LastSeen   time.Time           `json:"lastSeen"`
}

// Sources observes decisions and keeps what the status API serves.
// It is safe for concurrent use.
type Sources struct {
	last    *ttlcache.Cache[conceptual.SourceID, fix.Sample]
	tallies *lru2.Cache[conceptual.SourceID, *SourceTally]
	mu      sync.Mutex
}

// NewSources keeps the last accepted fix of each source for ttl
// and tallies for at most size sources, evicting the least recently seen.
func NewSources(ttl time.Duration, size int) (*Sources, error) {
	tallies, err := lru2.New[conceptual.SourceID, *SourceTally](size)
	if err != nil {
		return nil, err
	}
	return &Sources{
		last: ttlcache.New[conceptual.SourceID, fix.Sample](
			ttlcache.WithTTL[conceptual.SourceID, fix.Sample](ttl)),
		tallies: tallies,
	}, nil
}

// Start runs the expiry loop. It blocks until Stop.
func (s *Sources) Start() {
	s.last.Start()
}

func (s *Sources) Stop() {
	s.last.Stop()
}

// Observe satisfies engine.Observer.
func (s *Sources) Observe(ev engine.Event) {
	id := ev.Candidate.SourceID
	if ev.Decision.Accepted {
		s.last.Set(id, ev.Candidate, ttlcache.DefaultTTL)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tallies.Get(id)
	if !ok {
		t = &SourceTally{Source: id}
		s.tallies.Add(id, t)
	}
	switch {
	case ev.Decision.Accepted:
		t.Accepted++
	case ev.Decision.Reason == fix.ReasonMalformedInput:
		t.Malformed++
	default:
		t.Rejected++
	}
	t.LastReason = ev.Decision.Reason
	t.LastSeen = ev.At
}

// LastAccepted returns the last accepted fix of every source seen within the TTL,
// ordered by source.
func (s *Sources) LastAccepted() []fix.Sample {
	items := s.last.Items()
	out := make([]fix.Sample, 0, len(items))
	for _, it := range items {
		out = append(out, it.Value())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out
}

// LastAcceptedFor returns the last accepted fix of one source.
func (s *Sources) LastAcceptedFor(id conceptual.SourceID) (fix.Sample, bool) {
	it := s.last.Get(id)
	if it == nil {
		return fix.Sample{}, false
	}
	return it.Value(), true
}

// Tallies returns a copy of the tallies, ordered by source.
func (s *Sources) Tallies() []SourceTally {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SourceTally, 0, s.tallies.Len())
	for _, id := range s.tallies.Keys() {
		if t, ok := s.tallies.Peek(id); ok {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

// NewDedupePassLRUFunc returns a predicate that is false for a sample
// identical to one of the last size samples it saw. Identical means the
// same source, timestamp and coordinates, as when one delta arrives over
// two transports. The predicate is not safe for concurrent use.
func NewDedupePassLRUFunc(size int) func(fix.Sample) bool {
	seen := lru.New(size)
	return func(s fix.Sample) bool {
		hash, err := hashstructure.Hash(s, hashstructure.FormatV2, nil)
		if err != nil {
			return true
		}
		key := fmt.Sprintf("%d", hash)
		if _, ok := seen.Get(key); ok {
			return false
		}
		seen.Add(key, true)
		return true
	}
}
