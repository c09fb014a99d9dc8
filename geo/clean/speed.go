package clean

import (
	"github.com/montanaflynn/stats"
	"github.com/rotblauer/fixguard/common"
	"github.com/rotblauer/fixguard/geo"
	"github.com/rotblauer/fixguard/types/fix"
)

const (
	// ReferenceSamples is how many of the most recent accepted samples
	// a candidate is checked against.
	ReferenceSamples = 5

	// CentroidMinSamples is the history length at which the centroid
	// of the history becomes an additional reference.
	CentroidMinSamples = 3

	// MinTimeDeltaSeconds is the smallest interval, since the latest accepted
	// sample, for which an implied speed is considered meaningful.
	MinTimeDeltaSeconds = 0.1
)

// History is the view of accepted samples the checker needs.
type History interface {
	Len() int
	Latest() (fix.Sample, bool)
	Recent(n int) []fix.Sample
	Centroid() (fix.GeoPoint, bool)
}

// SpeedChecker bounds the speed implied by a candidate against several references.
type SpeedChecker struct {
	MaxSpeedKnots  float64
	TimeoutSeconds float64
}

// SpeedResult is the outcome of SpeedChecker.Evaluate.
// MaxObservedSpeedKnots is set only for ReasonSpeedOK and ReasonSpeedTooHigh;
// TimeDiffSeconds is set for every reason but ReasonFirstPosition.
type SpeedResult struct {
	Valid                 bool
	Reason                fix.Reason
	MaxObservedSpeedKnots float64
	TimeDiffSeconds       float64
}

// Evaluate decides whether moving to candidate at atMillis is plausible given h.
//
// An empty history always passes. A candidate more than TimeoutSeconds after
// the latest sample passes unconditionally: the gap is too long to bound speed.
// A candidate within MinTimeDeltaSeconds of the latest sample fails.
// Otherwise the implied speeds from each of the last ReferenceSamples samples,
// and from the history centroid once there are CentroidMinSamples samples,
// must all be at or below MaxSpeedKnots.
func (c SpeedChecker) Evaluate(candidate fix.GeoPoint, atMillis int64, h History) SpeedResult {
	latest, ok := h.Latest()
	if !ok {
		return SpeedResult{Valid: true, Reason: fix.ReasonFirstPosition}
	}

	timeDiff := float64(atMillis-latest.TimestampMillis) / 1000
	if timeDiff > c.TimeoutSeconds {
		return SpeedResult{Valid: true, Reason: fix.ReasonTimeoutOverride, TimeDiffSeconds: timeDiff}
	}
	if timeDiff <= MinTimeDeltaSeconds {
		return SpeedResult{Valid: false, Reason: fix.ReasonTimeDeltaTooSmall, TimeDiffSeconds: timeDiff}
	}

	atSeconds := float64(atMillis) / 1000
	refs := h.Recent(ReferenceSamples)
	speeds := make(stats.Float64Data, 0, len(refs)+1)
	for _, ref := range refs {
		speeds = append(speeds, impliedKnots(ref.Point, candidate, atSeconds-ref.Seconds()))
	}
	if h.Len() >= CentroidMinSamples {
		if centroid, ok := h.Centroid(); ok {
			speeds = append(speeds, impliedKnots(centroid, candidate, timeDiff))
		}
	}

	maxSpeed, _ := stats.Max(speeds)
	res := SpeedResult{
		Valid:                 maxSpeed <= c.MaxSpeedKnots,
		Reason:                fix.ReasonSpeedOK,
		MaxObservedSpeedKnots: maxSpeed,
		TimeDiffSeconds:       timeDiff,
	}
	if !res.Valid {
		res.Reason = fix.ReasonSpeedTooHigh
	}
	return res
}

func impliedKnots(from, to fix.GeoPoint, seconds float64) float64 {
	return common.KnotsFromMetersPerSecond(geo.Distance(from, to) / seconds)
}
