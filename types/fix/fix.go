package fix

import (
	"fmt"
	"math"
	"time"

	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
	"github.com/rotblauer/fixguard/conceptual"
)

// GeoPoint is a latitude/longitude pair in decimal degrees.
// It is a value type; copies are never shared or mutated.
type GeoPoint struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// Valid reports whether the point is finite and inside [-90,90] x [-180,180].
func (p GeoPoint) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) ||
		math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 &&
		p.Lon >= -180 && p.Lon <= 180
}

// OrbPoint returns the point in orb's (lon, lat) order.
func (p GeoPoint) OrbPoint() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// LatLng returns the point as an s2 LatLng.
func (p GeoPoint) LatLng() s2.LatLng {
	return s2.LatLngFromDegrees(p.Lat, p.Lon)
}

func (p GeoPoint) String() string {
	return fmt.Sprintf("(%.6f,%.6f)", p.Lat, p.Lon)
}

// FromOrb converts an orb.Point (lon, lat) to a GeoPoint.
func FromOrb(pt orb.Point) GeoPoint {
	return GeoPoint{Lat: pt.Lat(), Lon: pt.Lon()}
}

// Sample is a position attributed to a source at an instant.
// Samples held by a history are never mutated after creation.
type Sample struct {
	Point           GeoPoint            `json:"position"`
	TimestampMillis int64               `json:"timestamp"`
	SourceID        conceptual.SourceID `json:"source"`
}

// NewSample is a convenience constructor.
func NewSample(source conceptual.SourceID, lat, lon float64, ts time.Time) Sample {
	return Sample{
		Point:           GeoPoint{Lat: lat, Lon: lon},
		TimestampMillis: ts.UnixMilli(),
		SourceID:        source,
	}
}

// Time returns the sample timestamp.
func (s Sample) Time() time.Time {
	return time.UnixMilli(s.TimestampMillis)
}

// Seconds returns the sample timestamp in (fractional) epoch seconds.
func (s Sample) Seconds() float64 {
	return float64(s.TimestampMillis) / 1000
}
