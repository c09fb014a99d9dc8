package params

import (
	"errors"
	"fmt"
	"math"

	"github.com/mitchellh/hashstructure/v2"
	"github.com/rotblauer/fixguard/geo"
	"github.com/rotblauer/fixguard/history"
	"github.com/rotblauer/fixguard/scope"
	"github.com/rotblauer/fixguard/types/fix"
)

// ErrInvalidConfig is wrapped by every configuration violation.
// An engine never starts with an invalid configuration.
var ErrInvalidConfig = errors.New("invalid configuration")

const (
	MinMaxSpeedKnots  = 1
	MinTimeoutSeconds = 1
	MaxHistorySize    = 100
)

// InvalidCoordinate is an exclusion zone as it appears in configuration.
type InvalidCoordinate struct {
	Latitude        float64 `mapstructure:"latitude" json:"latitude"`
	Longitude       float64 `mapstructure:"longitude" json:"longitude"`
	ToleranceMeters float64 `mapstructure:"toleranceMeters" json:"toleranceMeters"`
}

// Zone converts the configured coordinate to an exclusion zone.
func (c InvalidCoordinate) Zone() geo.ExclusionZone {
	return geo.ExclusionZone{
		Center:       fix.GeoPoint{Lat: c.Latitude, Lon: c.Longitude},
		RadiusMeters: c.ToleranceMeters,
	}
}

// Config is the engine configuration.
type Config struct {
	// TargetSource is the resolved set of sources that are validated.
	// Candidates from other sources are ignored by the engine.
	TargetSource scope.Scope

	// MaxSpeedKnots is the ceiling for any implied speed.
	MaxSpeedKnots float64

	// TimeoutSeconds is the gap, since the latest accepted position,
	// after which a candidate is accepted without a speed check.
	TimeoutSeconds float64

	// HistorySize is the number of accepted positions kept as references.
	HistorySize int

	// InvalidCoordinates are zones where positions are always rejected.
	InvalidCoordinates []InvalidCoordinate

	// EnableInvalidCoordinateFilter toggles the zone check.
	EnableInvalidCoordinateFilter bool

	// EnableLogging turns on verbose per-decision logging.
	// It has no effect on decisions.
	EnableLogging bool
}

// DefaultInvalidCoordinates guards against fixes dropped to Null Island.
func DefaultInvalidCoordinates() []InvalidCoordinate {
	return []InvalidCoordinate{{Latitude: 0, Longitude: 0, ToleranceMeters: 1000}}
}

func DefaultConfig() *Config {
	return &Config{
		TargetSource:                  scope.AllSources{},
		MaxSpeedKnots:                 250,
		TimeoutSeconds:                30,
		HistorySize:                   10,
		InvalidCoordinates:            DefaultInvalidCoordinates(),
		EnableInvalidCoordinateFilter: true,
		EnableLogging:                 false,
	}
}

// Zones returns the configured exclusion zones, in order.
func (c *Config) Zones() []geo.ExclusionZone {
	zones := make([]geo.ExclusionZone, 0, len(c.InvalidCoordinates))
	for _, ic := range c.InvalidCoordinates {
		zones = append(zones, ic.Zone())
	}
	return zones
}

// Validate returns every violation, joined, each wrapping ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}
	if c.TargetSource == nil {
		bad("targetSource is unset")
	}
	if !finite(c.MaxSpeedKnots) || c.MaxSpeedKnots < MinMaxSpeedKnots {
		bad("maxSpeedKnots %v < %v", c.MaxSpeedKnots, MinMaxSpeedKnots)
	}
	if !finite(c.TimeoutSeconds) || c.TimeoutSeconds < MinTimeoutSeconds {
		bad("timeoutSeconds %v < %v", c.TimeoutSeconds, MinTimeoutSeconds)
	}
	if c.HistorySize < history.MinSize || c.HistorySize > MaxHistorySize {
		bad("historySize %d not in [%d, %d]", c.HistorySize, history.MinSize, MaxHistorySize)
	}
	for i, ic := range c.InvalidCoordinates {
		if !ic.Zone().Center.Valid() {
			bad("invalidCoordinates[%d] (%v, %v) is not a valid position", i, ic.Latitude, ic.Longitude)
		}
		if !finite(ic.ToleranceMeters) || ic.ToleranceMeters < 0 {
			bad("invalidCoordinates[%d] toleranceMeters %v < 0", i, ic.ToleranceMeters)
		}
	}
	return errors.Join(errs...)
}

// Fingerprint identifies a configuration, so that logs from differently
// configured instances can be told apart.
func (c *Config) Fingerprint() (string, error) {
	scopeName := ""
	if c.TargetSource != nil {
		scopeName = c.TargetSource.String()
	}
	h, err := hashstructure.Hash(struct {
		Scope  string
		Config Config
	}{scopeName, *c}, hashstructure.FormatV2, nil)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", h), nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
