package geo

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotblauer/fixguard/types/fix"
)

// PropToleranceMeters is the feature property holding a zone radius.
const PropToleranceMeters = "toleranceMeters"

var ErrZoneGeometry = errors.New("exclusion zone must be a Point feature")

// ZonesFromGeoJSON reads exclusion zones from a FeatureCollection of Point features.
// Each feature's radius is its toleranceMeters property, or defaultRadius if absent.
func ZonesFromGeoJSON(data []byte, defaultRadius float64) ([]ExclusionZone, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode zones: %w", err)
	}
	zones := make([]ExclusionZone, 0, len(fc.Features))
	for i, f := range fc.Features {
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			return nil, fmt.Errorf("feature %d: %w (got %T)", i, ErrZoneGeometry, f.Geometry)
		}
		radius := defaultRadius
		if v, ok := f.Properties[PropToleranceMeters]; ok {
			r, ok := v.(float64)
			if !ok {
				return nil, fmt.Errorf("feature %d: %s is not a number", i, PropToleranceMeters)
			}
			radius = r
		}
		zones = append(zones, ExclusionZone{Center: fix.FromOrb(pt), RadiusMeters: radius})
	}
	return zones, nil
}

// ZonesToGeoJSON is the inverse of ZonesFromGeoJSON.
func ZonesToGeoJSON(zones []ExclusionZone) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, z := range zones {
		f := geojson.NewFeature(z.Center.OrbPoint())
		f.Properties[PropToleranceMeters] = z.RadiusMeters
		fc.Append(f)
	}
	return fc.MarshalJSON()
}
