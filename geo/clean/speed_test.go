package clean

import (
	"math"
	"slices"
	"testing"

	"github.com/rotblauer/fixguard/geo"
	"github.com/rotblauer/fixguard/history"
	"github.com/rotblauer/fixguard/types/fix"
)

var defaultChecker = SpeedChecker{MaxSpeedKnots: 250, TimeoutSeconds: 30}

func newHistory(t *testing.T, size int, samples ...fix.Sample) *history.Store {
	t.Helper()
	h, err := history.New(size)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range samples {
		h.Append(s)
	}
	return h
}

func at(lat, lon float64, millis int64) fix.Sample {
	return fix.Sample{Point: fix.GeoPoint{Lat: lat, Lon: lon}, TimestampMillis: millis, SourceID: "gps"}
}

// degreesNorth returns the latitude, from the equator, that is meters away.
func degreesNorth(meters float64) float64 {
	return meters / geo.EarthRadius * 180 / math.Pi
}

func TestSpeedChecker_FirstPosition(t *testing.T) {
	h := newHistory(t, 10)
	res := defaultChecker.Evaluate(fix.GeoPoint{Lat: 89, Lon: 179}, 123, h)
	if !res.Valid || res.Reason != fix.ReasonFirstPosition {
		t.Errorf("got %+v, want valid first position", res)
	}
}

func TestSpeedChecker_Timeout(t *testing.T) {
	far := fix.GeoPoint{Lat: 45, Lon: 45}
	h := newHistory(t, 10, at(0, 0, 0))

	res := defaultChecker.Evaluate(far, 30_001, h)
	if !res.Valid || res.Reason != fix.ReasonTimeoutOverride {
		t.Errorf("timeout+1ms: got %+v, want valid timeout override", res)
	}
	if res.TimeDiffSeconds != 30.001 {
		t.Errorf("time diff = %v, want 30.001", res.TimeDiffSeconds)
	}

	// Exactly at the timeout the speed check still applies.
	res = defaultChecker.Evaluate(far, 30_000, h)
	if res.Valid || res.Reason != fix.ReasonSpeedTooHigh {
		t.Errorf("timeout exactly: got %+v, want speed too high", res)
	}
}

func TestSpeedChecker_TimeDeltaTooSmall(t *testing.T) {
	h := newHistory(t, 10, at(0, 0, 10_000))
	for _, ms := range []int64{10_100, 10_050, 10_000, 9_000} {
		res := defaultChecker.Evaluate(fix.GeoPoint{}, ms, h)
		if res.Valid || res.Reason != fix.ReasonTimeDeltaTooSmall {
			t.Errorf("t=%d: got %+v, want time delta too small", ms, res)
		}
	}
	res := defaultChecker.Evaluate(fix.GeoPoint{}, 10_101, h)
	if !res.Valid || res.Reason != fix.ReasonSpeedOK {
		t.Errorf("t=10101: got %+v, want speed ok", res)
	}
}

// TestSpeedChecker_100km checks that a 100 km jump in 10 s (~19,438 kn) fails,
// and that the same jump after the timeout passes.
func TestSpeedChecker_100km(t *testing.T) {
	h := newHistory(t, 10, at(0, 0, 0))
	target := fix.GeoPoint{Lat: degreesNorth(100_000)}

	res := defaultChecker.Evaluate(target, 10_000, h)
	if res.Valid || res.Reason != fix.ReasonSpeedTooHigh {
		t.Fatalf("got %+v, want speed too high", res)
	}
	if math.Abs(res.MaxObservedSpeedKnots-19438.4) > 1 {
		t.Errorf("speed = %v, want ~19438", res.MaxObservedSpeedKnots)
	}

	res = defaultChecker.Evaluate(target, 31_000, h)
	if !res.Valid || res.Reason != fix.ReasonTimeoutOverride {
		t.Errorf("got %+v, want timeout override", res)
	}
}

func TestSpeedChecker_UnderCeiling(t *testing.T) {
	h := newHistory(t, 10, at(0, 0, 0))
	res := defaultChecker.Evaluate(fix.GeoPoint{Lat: 0.001}, 1000, h)
	if !res.Valid || res.Reason != fix.ReasonSpeedOK {
		t.Fatalf("got %+v, want speed ok", res)
	}
	if math.Abs(res.MaxObservedSpeedKnots-216.15) > 0.1 {
		t.Errorf("speed = %v, want ~216.15", res.MaxObservedSpeedKnots)
	}
	if res.TimeDiffSeconds != 1 {
		t.Errorf("time diff = %v, want 1", res.TimeDiffSeconds)
	}
}

// TestSpeedChecker_OlderReference checks that a candidate consistent with the
// latest sample is still rejected when an older reference implies too much speed.
func TestSpeedChecker_OlderReference(t *testing.T) {
	h := newHistory(t, 10,
		at(degreesNorth(5_560), 0, 0),
		at(0, 0, 25_000),
	)
	res := defaultChecker.Evaluate(fix.GeoPoint{}, 26_000, h)
	if res.Valid {
		t.Fatalf("got %+v, want rejection from the older reference", res)
	}
	// 5560 m over 26 s.
	want := 5560.0 / 26 / 0.514444
	if math.Abs(res.MaxObservedSpeedKnots-want) > 0.5 {
		t.Errorf("speed = %v, want ~%v", res.MaxObservedSpeedKnots, want)
	}
}

// TestSpeedChecker_Centroid checks that the centroid becomes a reference
// once the history is long enough, over the time since the latest sample.
func TestSpeedChecker_Centroid(t *testing.T) {
	samples := []fix.Sample{}
	for i := int64(0); i < 5; i++ {
		samples = append(samples, at(0, 0, i*1000))
	}
	for i := int64(0); i < 5; i++ {
		samples = append(samples, at(0.01, 0, 100_000+i*1000))
	}
	h := newHistory(t, 10, samples...)

	// The last five samples sit on the candidate; only the centroid,
	// 0.005 degrees (~556 m) away over 1 s, implies any speed.
	res := defaultChecker.Evaluate(fix.GeoPoint{Lat: 0.01}, 105_000, h)
	if res.Valid || res.Reason != fix.ReasonSpeedTooHigh {
		t.Fatalf("got %+v, want centroid rejection", res)
	}
	if math.Abs(res.MaxObservedSpeedKnots-1080.7) > 1 {
		t.Errorf("speed = %v, want ~1080.7", res.MaxObservedSpeedKnots)
	}

	// With fewer than three samples the centroid is not consulted.
	short := newHistory(t, 10, at(0, 0, 40_000), at(0.01, 0, 60_000))
	res = defaultChecker.Evaluate(fix.GeoPoint{Lat: 0.01}, 61_000, short)
	if !res.Valid {
		t.Errorf("got %+v, want valid without centroid", res)
	}
}

// TestSpeedChecker_ReferenceCap checks that only the last five samples are
// speed references: a sixth-most-recent sample implying too much speed is ignored.
func TestSpeedChecker_ReferenceCap(t *testing.T) {
	// 6 km north at t=0 implies ~389 kn to the candidate at t=30 s.
	old := at(degreesNorth(6_000), 0, 0)
	recent := func(n int) []fix.Sample {
		var out []fix.Sample
		for i := int64(0); i < int64(n); i++ {
			out = append(out, at(0, 0, 20_000-i*1000))
		}
		slices.Reverse(out)
		return out
	}
	candidate := fix.GeoPoint{}

	// The old sample is sixth most recent. The centroid, ~1 km away over
	// the 10 s since the latest sample, implies ~194 kn.
	h := newHistory(t, 10, append([]fix.Sample{old}, recent(5)...)...)
	res := defaultChecker.Evaluate(candidate, 30_000, h)
	if !res.Valid || res.Reason != fix.ReasonSpeedOK {
		t.Fatalf("got %+v, want speed ok with the old sample out of reach", res)
	}
	if want := 1000.0 / 10 / 0.514444; math.Abs(res.MaxObservedSpeedKnots-want) > 1 {
		t.Errorf("speed = %v, want ~%v from the centroid", res.MaxObservedSpeedKnots, want)
	}

	// As fifth most recent it is a reference and rejects the candidate.
	h = newHistory(t, 10, append([]fix.Sample{old}, recent(4)...)...)
	res = defaultChecker.Evaluate(candidate, 30_000, h)
	if res.Valid || res.Reason != fix.ReasonSpeedTooHigh {
		t.Fatalf("got %+v, want speed too high from the old sample", res)
	}
	if want := 6000.0 / 30 / 0.514444; math.Abs(res.MaxObservedSpeedKnots-want) > 1 {
		t.Errorf("speed = %v, want ~%v", res.MaxObservedSpeedKnots, want)
	}
}
