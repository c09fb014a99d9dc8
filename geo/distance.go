// Package geo holds the great-circle and exclusion-zone geometry.
package geo

import (
	"github.com/rotblauer/fixguard/types/fix"
)

// EarthRadius is the mean radius, in meters, of the sphere used for distances.
// Note that this is not orb.EarthRadius (6378137, the WGS84 semi-major axis).
const EarthRadius = 6_371_000.0

// Distance returns the haversine great-circle distance between a and b, in meters.
// s2.LatLng.Distance clamps the haversine term to [0,1] before the inverse
// tangent, so identical and antipodal points stay finite.
func Distance(a, b fix.GeoPoint) float64 {
	return a.LatLng().Distance(b.LatLng()).Radians() * EarthRadius
}
