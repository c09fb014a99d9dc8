package params

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/rotblauer/fixguard/geo"
	"github.com/rotblauer/fixguard/scope"
	"github.com/rotblauer/fixguard/types/fix"
)

func TestDefaultConfig_Valid(t *testing.T) {
	c := DefaultConfig()
	if err := c.Validate(); err != nil {
		t.Fatal(err)
	}
	zones := c.Zones()
	if len(zones) != 1 {
		t.Fatalf("want 1 default zone, got %d", len(zones))
	}
	if want := (geo.ExclusionZone{Center: fix.GeoPoint{}, RadiusMeters: 1000}); zones[0] != want {
		t.Errorf("default zone = %v, want %v", zones[0], want)
	}
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"history too small", func(c *Config) { c.HistorySize = 1 }, "historySize"},
		{"history too large", func(c *Config) { c.HistorySize = 101 }, "historySize"},
		{"speed too low", func(c *Config) { c.MaxSpeedKnots = 0.5 }, "maxSpeedKnots"},
		{"speed nan", func(c *Config) { c.MaxSpeedKnots = math.NaN() }, "maxSpeedKnots"},
		{"timeout too low", func(c *Config) { c.TimeoutSeconds = 0 }, "timeoutSeconds"},
		{"negative radius", func(c *Config) {
			c.InvalidCoordinates = []InvalidCoordinate{{ToleranceMeters: -1}}
		}, "toleranceMeters"},
		{"zone off the globe", func(c *Config) {
			c.InvalidCoordinates = []InvalidCoordinate{{Latitude: 91, ToleranceMeters: 1}}
		}, "invalidCoordinates[0]"},
		{"nil scope", func(c *Config) { c.TargetSource = nil }, "targetSource"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := DefaultConfig()
			tc.mutate(c)
			err := c.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("got %v, want ErrInvalidConfig", err)
			}
			if !strings.Contains(err.Error(), tc.field) {
				t.Errorf("error %q does not mention %s", err, tc.field)
			}
		})
	}
}

func TestConfig_ValidateBounds(t *testing.T) {
	c := DefaultConfig()
	c.HistorySize = 2
	c.MaxSpeedKnots = 1
	c.TimeoutSeconds = 1
	c.InvalidCoordinates = []InvalidCoordinate{{Latitude: -90, Longitude: 180, ToleranceMeters: 0}}
	if err := c.Validate(); err != nil {
		t.Fatal(err)
	}
	c.HistorySize = 100
	if err := c.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestConfig_ValidateJoined(t *testing.T) {
	c := DefaultConfig()
	c.HistorySize = 0
	c.TimeoutSeconds = 0
	err := c.Validate()
	if err == nil {
		t.Fatal("want error")
	}
	for _, s := range []string{"historySize", "timeoutSeconds"} {
		if !strings.Contains(err.Error(), s) {
			t.Errorf("joined error %q missing %s", err, s)
		}
	}
}

func TestConfig_Fingerprint(t *testing.T) {
	a, b := DefaultConfig(), DefaultConfig()
	fa, err := a.Fingerprint()
	if err != nil {
		t.Fatal(err)
	}
	fb, _ := b.Fingerprint()
	if fa != fb {
		t.Errorf("equal configs, different fingerprints: %s %s", fa, fb)
	}
	b.TargetSource = scope.SingleSource{ID: "gps.1"}
	fb, _ = b.Fingerprint()
	if fa == fb {
		t.Error("different scopes, same fingerprint")
	}
	b = DefaultConfig()
	b.MaxSpeedKnots = 30
	fb, _ = b.Fingerprint()
	if fa == fb {
		t.Error("different speeds, same fingerprint")
	}
}
