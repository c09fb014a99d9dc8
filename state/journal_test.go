package state

import (
	"errors"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/rotblauer/fixguard/common"
	"github.com/rotblauer/fixguard/engine"
	"github.com/rotblauer/fixguard/params"
	fgtesting "github.com/rotblauer/fixguard/testing"
	"github.com/rotblauer/fixguard/types/fix"
)

func testJournalPath(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(fgtesting.DefaultTestDir(), t.Name())
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, params.JournalDBName)
}

func TestJournal_Observe(t *testing.T) {
	defer common.SlogResetLevel(slog.LevelError)()

	path := testJournalPath(t)
	j, err := OpenJournal(path)
	if err != nil {
		t.Fatal(err)
	}
	e, err := engine.New(params.DefaultConfig(), nil, j)
	if err != nil {
		t.Fatal(err)
	}
	e.Decide(fix.Sample{Point: fix.GeoPoint{Lat: 0, Lon: 0}, TimestampMillis: 0, SourceID: "a"})
	e.Decide(fix.Sample{Point: fix.GeoPoint{Lat: 5, Lon: 5}, TimestampMillis: 1000, SourceID: "a"})
	e.Decide(fix.Sample{Point: fix.GeoPoint{Lat: 50, Lon: 5}, TimestampMillis: 2000, SourceID: "a"})
	e.RejectMalformed(fix.Sample{SourceID: "b"}, errors.New("missing latitude"))
	if err := j.Close(); err != nil {
		t.Fatal(err)
	}

	j, err = OpenJournal(path)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	n, err := j.Count()
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("count %d, want 3", n)
	}
	recent, err := j.Recent(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 3 {
		t.Fatalf("recent %d", len(recent))
	}
	wantReasons := []fix.Reason{fix.ReasonMalformedInput, fix.ReasonSpeedTooHigh, fix.ReasonExcludedZone}
	for i, r := range recent {
		if r.Decision.Reason != wantReasons[i] {
			t.Errorf("recent[%d] reason %s, want %s", i, r.Decision.Reason, wantReasons[i])
		}
		if want := uint64(3 - i); r.Seq != want {
			t.Errorf("recent[%d] seq %d, want %d", i, r.Seq, want)
		}
	}
	if recent[0].Error != "missing latitude" {
		t.Errorf("error %q", recent[0].Error)
	}

	two, _ := j.Recent(2)
	if len(two) != 2 || two[0].Seq != 3 {
		t.Errorf("recent(2) %+v", two)
	}

	// A huge n reads what is there without sizing anything by n.
	all, err := j.Recent(math.MaxInt)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("recent(MaxInt) %d", len(all))
	}
}
