package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rotblauer/fixguard/conceptual"
	"github.com/rotblauer/fixguard/types/fix"
	"github.com/tidwall/gjson"
)

var received = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func testParser() *Parser {
	return &Parser{Now: func() time.Time { return received }}
}

func TestParse_Flat(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want fix.Sample
	}{
		{
			"top level millis",
			`{"source":"gps.1","timestamp":1000,"latitude":1.5,"longitude":-2.25}`,
			fix.Sample{Point: fix.GeoPoint{Lat: 1.5, Lon: -2.25}, TimestampMillis: 1000, SourceID: "gps.1"},
		},
		{
			"nested position iso",
			`{"source":"a","timestamp":"2024-06-01T12:00:01.5Z","position":{"latitude":10,"longitude":20}}`,
			fix.Sample{Point: fix.GeoPoint{Lat: 10, Lon: 20}, TimestampMillis: received.UnixMilli() + 1500, SourceID: "a"},
		},
		{
			"no timestamp",
			`{"latitude":0,"longitude":0}`,
			fix.Sample{TimestampMillis: received.UnixMilli()},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			items := testParser().Parse([]byte(tc.in))
			if len(items) != 1 || items[0].Kind != Candidate {
				t.Fatalf("got %+v", items)
			}
			if diff := cmp.Diff(tc.want, items[0].Sample); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"not json", `{"latitude":`},
		{"array", `[1,2]`},
		{"nan longitude", `{"source":"a","latitude":1,"longitude":"not-a-number"}`},
		{"numeric string", `{"latitude":"1.0","longitude":2}`},
		{"missing latitude", `{"longitude":2}`},
		{"null longitude", `{"latitude":1,"longitude":null}`},
		{"out of range", `{"latitude":91,"longitude":2}`},
		{"bad timestamp", `{"timestamp":"yesterday","latitude":1,"longitude":2}`},
		{"updates not array", `{"updates":{}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			items := testParser().Parse([]byte(tc.in))
			if len(items) != 1 || items[0].Kind != Malformed {
				t.Fatalf("got %+v", items)
			}
			if !errors.Is(items[0].Err, ErrMalformed) {
				t.Errorf("err %v does not wrap ErrMalformed", items[0].Err)
			}
		})
	}
}

const signalKDelta = `{
  "context": "vessels.urn:mrn:imo:mmsi:123456789",
  "updates": [
    {
      "source": {"label": "n2k-on-ve.can-socket", "type": "NMEA2000", "src": "3"},
      "timestamp": "2024-06-01T12:00:00.000Z",
      "values": [
        {"path": "navigation.position", "value": {"latitude": 60.1, "longitude": 24.9}},
        {"path": "navigation.speedOverGround", "value": 3.2}
      ]
    },
    {
      "$source": "gps.GP",
      "timestamp": "2024-06-01T12:00:01.000Z",
      "values": [
        {"path": "navigation.position", "value": {"latitude": 60.1, "longitude": "x"}}
      ]
    }
  ]
}`

func TestParse_Delta(t *testing.T) {
	items := testParser().Parse([]byte(signalKDelta))
	if len(items) != 3 {
		t.Fatalf("got %d items", len(items))
	}

	pos := items[0]
	if pos.Kind != Candidate {
		t.Fatalf("item 0 kind %v", pos.Kind)
	}
	want := fix.Sample{
		Point:           fix.GeoPoint{Lat: 60.1, Lon: 24.9},
		TimestampMillis: received.UnixMilli(),
		SourceID:        "n2k-on-ve.can-socket.3",
	}
	if diff := cmp.Diff(want, pos.Sample); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if !IsNMEA2000(pos.Value.Source, pos.Value.SourceType) {
		t.Error("n2k source not classified")
	}

	sog := items[1]
	if sog.Kind != PassThrough || sog.Value.Path != "navigation.speedOverGround" || string(sog.Value.Value) != "3.2" {
		t.Errorf("item 1 %+v", sog)
	}

	bad := items[2]
	if bad.Kind != Malformed || bad.Sample.SourceID != "gps.GP" {
		t.Errorf("item 2 %+v", bad)
	}
}

func TestSourceOf(t *testing.T) {
	cases := []struct {
		in   string
		want conceptual.SourceID
	}{
		{`{"$source":"ref.1","source":{"label":"x","src":"2"}}`, "ref.1"},
		{`{"source":{"label":"ttyUSB0","talker":"GP"}}`, "ttyUSB0.GP"},
		{`{"source":{"label":"only"}}`, "only"},
		{`{}`, ""},
	}
	for _, tc := range cases {
		got, _ := SourceOf(gjson.Parse(tc.in))
		if got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIsNMEA2000(t *testing.T) {
	if IsNMEA2000("ttyUSB0.GP", "NMEA0183") {
		t.Error("0183 classified as 2000")
	}
	if !IsNMEA2000("can0.115", "nmea2000") {
		t.Error("type ignored")
	}
}

func TestRead(t *testing.T) {
	in := strings.Join([]string{
		`{"source":"a","timestamp":0,"latitude":1,"longitude":1}`,
		``,
		`garbage`,
		signalKDeltaLine(),
	}, "\n")
	items, errs := testParser().Read(context.Background(), strings.NewReader(in))
	var kinds []Kind
	for it := range items {
		kinds = append(kinds, it.Kind)
	}
	if err := <-errs; err != nil {
		t.Fatal(err)
	}
	want := []Kind{Candidate, Malformed, Candidate, PassThrough, Malformed}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func signalKDeltaLine() string {
	return strings.Join(strings.Fields(signalKDelta), "")
}

func TestEncodeDelta(t *testing.T) {
	s := fix.Sample{Point: fix.GeoPoint{Lat: 1, Lon: 2}, TimestampMillis: received.UnixMilli(), SourceID: "gps"}
	b, err := EncodeDelta(PositionValue(s))
	if err != nil {
		t.Fatal(err)
	}
	items := testParser().Parse(b)
	if len(items) != 1 || items[0].Kind != Candidate {
		t.Fatalf("got %+v", items)
	}
	if diff := cmp.Diff(s, items[0].Sample); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestValueOf(t *testing.T) {
	s := fix.Sample{Point: fix.GeoPoint{Lat: 1, Lon: 2}, TimestampMillis: received.UnixMilli(), SourceID: "gps"}
	if diff := cmp.Diff(PositionValue(s), ValueOf(s, Value{})); diff != "" {
		t.Errorf("flat (-want +got):\n%s", diff)
	}

	items := testParser().Parse([]byte(`{"context":"vessels.self","updates":[{"$source":"gps",` +
		`"timestamp":"2024-01-01T02:00:00.123456+02:00","values":[{"path":"navigation.position",` +
		`"value":{"latitude":1,"longitude":2,"altitude":12.5}}]}]}`))
	if len(items) != 1 || items[0].Kind != Candidate {
		t.Fatalf("got %+v", items)
	}
	got := ValueOf(items[0].Sample, items[0].Value)
	if diff := cmp.Diff(items[0].Value, got); diff != "" {
		t.Errorf("delta (-want +got):\n%s", diff)
	}
	if got.Context != "vessels.self" || got.Timestamp != "2024-01-01T02:00:00.123456+02:00" {
		t.Errorf("value %+v", got)
	}
}
