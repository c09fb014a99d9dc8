package influxdb

import (
	"testing"
	"time"

	"github.com/rotblauer/fixguard/engine"
	"github.com/rotblauer/fixguard/types/fix"
)

func TestPoint(t *testing.T) {
	speed := 300.5
	ev := engine.Event{
		Instance: "i-1",
		Candidate: fix.Sample{
			Point:           fix.GeoPoint{Lat: 1, Lon: 2},
			TimestampMillis: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC).UnixMilli(),
			SourceID:        "gps",
		},
		Decision:   engine.Decision{Reason: fix.ReasonSpeedTooHigh, SpeedKnots: &speed},
		HistoryLen: 4,
	}
	p := Point(ev)
	if p.Name() != Measurement {
		t.Errorf("measurement %q", p.Name())
	}
	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	for k, want := range map[string]string{"source": "gps", "reason": "speed_too_high", "accepted": "false", "instance": "i-1"} {
		if tags[k] != want {
			t.Errorf("tag %s = %q, want %q", k, tags[k], want)
		}
	}
	fields := map[string]bool{}
	for _, f := range p.FieldList() {
		fields[f.Key] = true
	}
	for _, k := range []string{"latitude", "longitude", "history_len", "speed_knots"} {
		if !fields[k] {
			t.Errorf("missing field %s", k)
		}
	}
	if fields["time_diff_seconds"] {
		t.Error("unset time diff written")
	}
	if !p.Time().Equal(ev.Candidate.Time()) {
		t.Errorf("time %v", p.Time())
	}
}
