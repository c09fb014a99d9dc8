package events

import (
	"testing"
	"time"

	"github.com/rotblauer/fixguard/engine"
	"github.com/rotblauer/fixguard/ingest"
	"github.com/rotblauer/fixguard/params"
	"github.com/rotblauer/fixguard/types/fix"
)

func TestFeeds_Engine(t *testing.T) {
	feeds := NewFeeds()
	decisions := make(chan engine.Event, params.DefaultFeedBuffer)
	accepted := make(chan fix.Sample, params.DefaultFeedBuffer)
	subD := feeds.Decisions.Subscribe(decisions)
	defer subD.Unsubscribe()
	subA := feeds.Accepted.Subscribe(accepted)
	defer subA.Unsubscribe()

	c := params.DefaultConfig()
	c.InvalidCoordinates = nil
	e, err := engine.New(c, feeds, feeds)
	if err != nil {
		t.Fatal(err)
	}
	e.Decide(fix.Sample{Point: fix.GeoPoint{Lat: 1, Lon: 1}, TimestampMillis: 0, SourceID: "a"})
	e.Decide(fix.Sample{Point: fix.GeoPoint{Lat: 50, Lon: 1}, TimestampMillis: 1000, SourceID: "a"})

	if len(decisions) != 2 {
		t.Errorf("decisions %d, want 2", len(decisions))
	}
	if len(accepted) != 1 {
		t.Errorf("accepted %d, want 1", len(accepted))
	}
	first := <-decisions
	if !first.Decision.Accepted || first.Stats.Received != 1 {
		t.Errorf("first event %+v", first)
	}
}

func TestFeeds_PassThrough(t *testing.T) {
	feeds := NewFeeds()
	ch := make(chan ingest.Value, 1)
	sub := feeds.PassThrough.Subscribe(ch)
	defer sub.Unsubscribe()

	v := ingest.Value{Path: "environment.wind.speedApparent", Value: []byte("4.1")}
	if err := feeds.Pass(v); err != nil {
		t.Fatal(err)
	}
	select {
	case got := <-ch:
		if got.Path != v.Path {
			t.Errorf("got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
}
