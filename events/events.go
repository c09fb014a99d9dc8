// Package events publishes engine activity on go-ethereum feeds.
package events

import (
	"github.com/ethereum/go-ethereum/event"
	"github.com/rotblauer/fixguard/engine"
	"github.com/rotblauer/fixguard/ingest"
	"github.com/rotblauer/fixguard/types/fix"
)

// Feeds are owned by one engine instance. Send blocks until every
// subscriber has received the value, so subscribers should read from
// buffered channels (see params.DefaultFeedBuffer).
type Feeds struct {
	// Decisions is emitted for every recorded decision, accept or reject.
	Decisions event.FeedOf[engine.Event]

	// Accepted is emitted for every accepted sample, unchanged.
	Accepted event.FeedOf[fix.Sample]

	// PassThrough is emitted for every value the engine does not gate.
	PassThrough event.FeedOf[ingest.Value]
}

func NewFeeds() *Feeds {
	return &Feeds{}
}

// Observe satisfies engine.Observer.
func (f *Feeds) Observe(ev engine.Event) {
	f.Decisions.Send(ev)
}

// Forward satisfies engine.Sink.
func (f *Feeds) Forward(s fix.Sample) error {
	f.Accepted.Send(s)
	return nil
}

// Accept satisfies app.Forwarder. The sample is sent as decided; the
// value it arrived in is not published.
func (f *Feeds) Accept(s fix.Sample, _ ingest.Value) error {
	return f.Forward(s)
}

// Pass publishes a pass-through value.
func (f *Feeds) Pass(v ingest.Value) error {
	f.PassThrough.Send(v)
	return nil
}
