package engine

import (
	"time"

	"github.com/rotblauer/fixguard/types/fix"
)

// Decision is the verdict on one candidate.
// Optional fields are nil when the policy step that decided did not compute them.
type Decision struct {
	Accepted        bool       `json:"accepted"`
	Reason          fix.Reason `json:"reason"`
	SpeedKnots      *float64   `json:"speedKnots,omitempty"`
	TimeDiffSeconds *float64   `json:"timeDiffSeconds,omitempty"`

	// ZoneDistanceMeters is the distance to the matched zone center for ReasonExcludedZone.
	ZoneDistanceMeters *float64 `json:"zoneDistanceMeters,omitempty"`
}

// Recorded reports whether the decision counted toward Stats.
func (d Decision) Recorded() bool {
	return d.Reason != fix.ReasonOutOfScope && d.Reason != fix.ReasonMalformedInput
}

// Stats are the running counters of an engine.
// Received == Allowed + Dropped always holds between decisions.
// Malformed candidates never reach the engine proper and are counted apart.
type Stats struct {
	Received             uint64 `json:"received"`
	Allowed              uint64 `json:"allowed"`
	Dropped              uint64 `json:"dropped"`
	LastAcceptedAtMillis int64  `json:"lastAcceptedAt,omitempty"`
	Malformed            uint64 `json:"malformed"`
}

// LastAcceptedAt returns the wall time of the last accept, or the zero time.
func (s Stats) LastAcceptedAt() time.Time {
	if s.LastAcceptedAtMillis == 0 {
		return time.Time{}
	}
	return time.UnixMilli(s.LastAcceptedAtMillis)
}

// Event is what observers are told about each recorded decision.
type Event struct {
	// Instance identifies the engine that decided.
	Instance   string     `json:"instance"`
	At         time.Time  `json:"at"`
	Candidate  fix.Sample `json:"candidate"`
	Decision   Decision   `json:"decision"`
	Stats      Stats      `json:"stats"`
	HistoryLen int        `json:"historyLen"`

	// Err is set for malformed input.
	Err error `json:"-"`
}

// Observer is told about every recorded decision, accept or reject.
// Observe is called synchronously from the deciding goroutine.
type Observer interface {
	Observe(ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev Event)

func (f ObserverFunc) Observe(ev Event) { f(ev) }

// MultiObserver fans an event out to each observer, in order.
type MultiObserver []Observer

func (m MultiObserver) Observe(ev Event) {
	for _, o := range m {
		if o != nil {
			o.Observe(ev)
		}
	}
}

// Sink receives each accepted candidate exactly once, unchanged.
type Sink interface {
	Forward(s fix.Sample) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(s fix.Sample) error

func (f SinkFunc) Forward(s fix.Sample) error { return f(s) }

// MultiSink forwards to each sink in order. All sinks are tried;
// the first error is returned.
type MultiSink []Sink

func (m MultiSink) Forward(s fix.Sample) error {
	var first error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Forward(s); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func float(f float64) *float64 {
	return &f
}
