package geo

import (
	"fmt"

	"github.com/rotblauer/fixguard/types/fix"
)

// ExclusionZone is a circle in which no position is ever plausible,
// eg. Null Island, where dropped fixes land as (0,0).
type ExclusionZone struct {
	Center       fix.GeoPoint `json:"center"`
	RadiusMeters float64      `json:"radiusMeters"`
}

func (z ExclusionZone) String() string {
	return fmt.Sprintf("%s r=%.0fm", z.Center, z.RadiusMeters)
}

// Contains reports whether p lies within the zone, boundary inclusive,
// and the distance from the zone center.
func (z ExclusionZone) Contains(p fix.GeoPoint) (bool, float64) {
	d := Distance(p, z.Center)
	return d <= z.RadiusMeters, d
}

// ZoneMatch is the result of an exclusion check.
// Zone and Distance are only meaningful when Excluded is true.
type ZoneMatch struct {
	Excluded bool
	Zone     ExclusionZone
	Distance float64
}

// IsExcluded returns the first zone, in configured order, containing p.
func IsExcluded(p fix.GeoPoint, zones []ExclusionZone) ZoneMatch {
	for _, z := range zones {
		if ok, d := z.Contains(p); ok {
			return ZoneMatch{Excluded: true, Zone: z, Distance: d}
		}
	}
	return ZoneMatch{}
}

// ZoneMatcher applies IsExcluded when enabled.
type ZoneMatcher struct {
	Enabled bool
	Zones   []ExclusionZone
}

func (m ZoneMatcher) Match(p fix.GeoPoint) ZoneMatch {
	if !m.Enabled || len(m.Zones) == 0 {
		return ZoneMatch{}
	}
	return IsExcluded(p, m.Zones)
}
