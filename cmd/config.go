/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/rotblauer/fixguard/geo"
	"github.com/rotblauer/fixguard/params"
	"github.com/rotblauer/fixguard/scope"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Engine configuration keys, as they appear in config files.
// Environment variables are the upper-cased key with the FIXGUARD_ prefix.
const (
	keyTargetSource                  = "targetSource"
	keyMaxSpeedKnots                 = "maxSpeedKnots"
	keyTimeoutSeconds                = "timeoutSeconds"
	keyHistorySize                   = "historySize"
	keyInvalidCoordinates            = "invalidCoordinates"
	keyEnableInvalidCoordinateFilter = "enableInvalidCoordinateFilter"
	keyEnableLogging                 = "enableLogging"
	keyZonesGeoJSON                  = "zonesGeoJSON"
	keyZonesRadius                   = "zonesRadiusMeters"
)

// DefaultZoneRadiusMeters applies to GeoJSON zones without a radius property.
const DefaultZoneRadiusMeters = 1000

// bindFlags binds viper keys to flags by name.
func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := viper.BindPFlag(key, fs.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

// addEngineFlags registers the engine configuration flags.
func addEngineFlags(fs *pflag.FlagSet) {
	defaults := params.DefaultConfig()
	fs.String("target-source", scope.AllKeyword, "sources to validate: ALL, one source, or a comma-separated list")
	fs.Float64("max-speed-knots", defaults.MaxSpeedKnots, "maximum implied speed, in knots")
	fs.Float64("timeout-seconds", defaults.TimeoutSeconds, "accept without a speed check after this many seconds without an accepted fix")
	fs.Int("history-size", defaults.HistorySize, "number of accepted positions kept as references")
	fs.Bool("enable-invalid-coordinate-filter", defaults.EnableInvalidCoordinateFilter, "reject positions inside excluded zones")
	fs.Bool("enable-logging", defaults.EnableLogging, "log every decision")
	fs.String("zones-geojson", "", "GeoJSON file of additional excluded zones")
	fs.Float64("zones-radius-meters", DefaultZoneRadiusMeters, "radius of GeoJSON zones without a radius property")
	bindFlags(fs, map[string]string{
		keyTargetSource:                  "target-source",
		keyMaxSpeedKnots:                 "max-speed-knots",
		keyTimeoutSeconds:                "timeout-seconds",
		keyHistorySize:                   "history-size",
		keyEnableInvalidCoordinateFilter: "enable-invalid-coordinate-filter",
		keyEnableLogging:                 "enable-logging",
		keyZonesGeoJSON:                  "zones-geojson",
		keyZonesRadius:                   "zones-radius-meters",
	})
}

// engineConfig builds and validates the engine configuration from v.
// Invalid configuration is an error; the engine never starts with it.
func engineConfig(v *viper.Viper) (*params.Config, error) {
	c := params.DefaultConfig()

	target, err := scope.Parse(v.Get(keyTargetSource))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", params.ErrInvalidConfig, err)
	}
	c.TargetSource = target

	if v.IsSet(keyMaxSpeedKnots) {
		c.MaxSpeedKnots = v.GetFloat64(keyMaxSpeedKnots)
	}
	if v.IsSet(keyTimeoutSeconds) {
		c.TimeoutSeconds = v.GetFloat64(keyTimeoutSeconds)
	}
	if v.IsSet(keyHistorySize) {
		c.HistorySize = v.GetInt(keyHistorySize)
	}
	if v.IsSet(keyEnableInvalidCoordinateFilter) {
		c.EnableInvalidCoordinateFilter = v.GetBool(keyEnableInvalidCoordinateFilter)
	}
	if v.IsSet(keyEnableLogging) {
		c.EnableLogging = v.GetBool(keyEnableLogging)
	}
	if v.IsSet(keyInvalidCoordinates) {
		var ics []params.InvalidCoordinate
		if err := v.UnmarshalKey(keyInvalidCoordinates, &ics); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", params.ErrInvalidConfig, keyInvalidCoordinates, err)
		}
		c.InvalidCoordinates = ics
	}
	if path := v.GetString(keyZonesGeoJSON); path != "" {
		radius := float64(DefaultZoneRadiusMeters)
		if v.IsSet(keyZonesRadius) {
			radius = v.GetFloat64(keyZonesRadius)
		}
		zones, err := readZones(path, radius)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", params.ErrInvalidConfig, path, err)
		}
		c.InvalidCoordinates = append(c.InvalidCoordinates, zones...)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func readZones(path string, radius float64) ([]params.InvalidCoordinate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	zones, err := geo.ZonesFromGeoJSON(data, radius)
	if err != nil {
		return nil, err
	}
	out := make([]params.InvalidCoordinate, 0, len(zones))
	for _, z := range zones {
		out = append(out, params.InvalidCoordinate{
			Latitude:        z.Center.Lat,
			Longitude:       z.Center.Lon,
			ToleranceMeters: z.RadiusMeters,
		})
	}
	return out, nil
}
