package engine

import (
	"sync"

	"github.com/rotblauer/fixguard/types/fix"
)

// Guard serializes access to an Engine for hosts that deliver candidates
// from more than one goroutine. Sink and observer calls happen while the
// lock is held, so they must not call back into the Guard.
type Guard struct {
	mu sync.Mutex
	e  *Engine
}

func NewGuard(e *Engine) *Guard {
	return &Guard{e: e}
}

func (g *Guard) Decide(candidate fix.Sample) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.e.Decide(candidate)
}

func (g *Guard) DecideTo(candidate fix.Sample, sink Sink) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.e.DecideTo(candidate, sink)
}

func (g *Guard) RejectMalformed(source fix.Sample, cause error) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.e.RejectMalformed(source, cause)
}

// Snapshot is a consistent read of the engine state.
type Snapshot struct {
	Instance   string       `json:"instance"`
	Stats      Stats        `json:"stats"`
	HistoryLen int          `json:"historyLen"`
	HistoryCap int          `json:"historyCap"`
	History    []fix.Sample `json:"history,omitempty"`
}

// Snapshot reads the counters and history length, and the history itself
// when withHistory is set.
func (g *Guard) Snapshot(withHistory bool) Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := Snapshot{
		Instance:   g.e.Instance,
		Stats:      g.e.Stats(),
		HistoryLen: g.e.HistoryLen(),
		HistoryCap: g.e.history.Cap(),
	}
	if withHistory {
		s.History = g.e.History()
	}
	return s
}

func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.e.Reset()
}

// Engine returns the guarded engine. Callers must not use it concurrently with the Guard.
func (g *Guard) Engine() *Engine {
	return g.e
}
