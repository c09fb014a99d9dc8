package common

// MetersPerSecondPerKnot is the unit conversion used for every implied speed.
// 1 knot = 1852 m / 3600 s, rounded the way chart plotters round it.
const MetersPerSecondPerKnot = 0.514444

// Reference speeds, in knots.
const SpeedOfSailingFast = 15.0
const SpeedOfPlaningHull = 40.0
const SpeedOfOffshoreRacer = 100.0
const SpeedOfSeaplane = 150.0
const SpeedOfCommercialFlight = 486.0 // or 900 km/h

// KnotsFromMetersPerSecond converts m/s to knots.
func KnotsFromMetersPerSecond(mps float64) float64 {
	return mps / MetersPerSecondPerKnot
}

// MetersPerSecondFromKnots converts knots to m/s.
func MetersPerSecondFromKnots(knots float64) float64 {
	return knots * MetersPerSecondPerKnot
}
