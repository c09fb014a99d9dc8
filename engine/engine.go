// Package engine decides, candidate by candidate, whether a reported position
// is a plausible continuation of the positions accepted before it.
package engine

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rotblauer/fixguard/geo"
	"github.com/rotblauer/fixguard/geo/clean"
	"github.com/rotblauer/fixguard/history"
	"github.com/rotblauer/fixguard/params"
	"github.com/rotblauer/fixguard/scope"
	"github.com/rotblauer/fixguard/types/fix"
)

// Engine owns one history, one set of counters and one configuration.
// It is not safe for concurrent use: each Decide must complete before the next
// begins, since accepting mutates the history the next decision reads.
// Wrap it in a Guard when candidates arrive from more than one goroutine.
type Engine struct {
	Instance string

	config   *params.Config
	scope    scope.Scope
	zones    geo.ZoneMatcher
	checker  clean.SpeedChecker
	history  *history.Store
	stats    Stats
	sink     Sink
	observer Observer
	now      func() time.Time
	logger   *slog.Logger
}

type Option func(e *Engine)

// WithClock replaces time.Now as the source of LastAcceptedAtMillis and event times.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithInstance sets the instance id reported in events. The default is a random UUID.
func WithInstance(id string) Option {
	return func(e *Engine) { e.Instance = id }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New validates config and returns a started engine with an empty history.
// sink and observer may be nil.
func New(config *params.Config, sink Sink, observer Observer, opts ...Option) (*Engine, error) {
	if config == nil {
		config = params.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	h, err := history.New(config.HistorySize)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		Instance: uuid.NewString(),
		config:   config,
		scope:    config.TargetSource,
		zones: geo.ZoneMatcher{
			Enabled: config.EnableInvalidCoordinateFilter,
			Zones:   config.Zones(),
		},
		checker: clean.SpeedChecker{
			MaxSpeedKnots:  config.MaxSpeedKnots,
			TimeoutSeconds: config.TimeoutSeconds,
		},
		history:  h,
		sink:     sink,
		observer: observer,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.With("d", "engine", "instance", e.Instance)
	}
	return e, nil
}

// Config returns the configuration the engine was started with.
func (e *Engine) Config() *params.Config {
	return e.config
}

// Decide runs one candidate through scope, zone and speed checks.
// Out of scope candidates are ignored: nothing is recorded and the returned
// decision has ReasonOutOfScope. On accept the candidate is appended to the
// history and forwarded to the sink. Decide never fails; sink errors are logged.
func (e *Engine) Decide(candidate fix.Sample) Decision {
	return e.DecideTo(candidate, e.sink)
}

// DecideTo is Decide with sink in place of the configured sink, for hosts
// that forward each accepted candidate in the form it arrived in.
// A nil sink forwards nothing.
func (e *Engine) DecideTo(candidate fix.Sample, sink Sink) Decision {
	if !e.scope.InScope(candidate.SourceID) {
		return Decision{Reason: fix.ReasonOutOfScope}
	}
	e.stats.Received++

	if m := e.zones.Match(candidate.Point); m.Excluded {
		e.stats.Dropped++
		d := Decision{Reason: fix.ReasonExcludedZone, ZoneDistanceMeters: float(m.Distance)}
		e.logger.Warn("Rejected position in exclusion zone",
			"source", candidate.SourceID, "position", candidate.Point,
			"zone", m.Zone, "distance", m.Distance)
		e.observe(candidate, d, nil)
		return d
	}

	res := e.checker.Evaluate(candidate.Point, candidate.TimestampMillis, e.history)
	d := decisionOf(res)
	if !res.Valid {
		e.stats.Dropped++
		e.logger.Warn("Rejected position",
			"source", candidate.SourceID, "position", candidate.Point,
			"reason", res.Reason, "speed.knots", res.MaxObservedSpeedKnots,
			"dt.seconds", res.TimeDiffSeconds, "speed.max", e.config.MaxSpeedKnots)
		e.observe(candidate, d, nil)
		return d
	}

	e.history.Append(candidate)
	e.stats.Allowed++
	e.stats.LastAcceptedAtMillis = e.now().UnixMilli()
	if sink != nil {
		if err := sink.Forward(candidate); err != nil {
			e.logger.Error("Failed to forward accepted position", "source", candidate.SourceID, "error", err)
		}
	}
	e.observe(candidate, d, nil)
	return d
}

// RejectMalformed records a candidate that could not be read at the ingestion
// boundary. It is counted in Stats.Malformed only, never in the received triple.
func (e *Engine) RejectMalformed(source fix.Sample, cause error) Decision {
	e.stats.Malformed++
	d := Decision{Reason: fix.ReasonMalformedInput}
	e.logger.Warn("Rejected malformed position", "source", source.SourceID, "error", cause)
	e.observe(source, d, cause)
	return d
}

// Stats returns a copy of the counters.
func (e *Engine) Stats() Stats {
	return e.stats
}

// HistoryLen returns the number of accepted positions held as references.
func (e *Engine) HistoryLen() int {
	return e.history.Len()
}

// History returns a copy of the accepted positions, oldest first.
func (e *Engine) History() []fix.Sample {
	return e.history.Samples()
}

// Reset clears history and counters, as on a restart.
func (e *Engine) Reset() {
	e.history.Clear()
	e.stats = Stats{}
	e.logger.Info("Engine reset")
}

func (e *Engine) observe(candidate fix.Sample, d Decision, err error) {
	if e.observer == nil {
		return
	}
	e.observer.Observe(Event{
		Instance:   e.Instance,
		At:         e.now(),
		Candidate:  candidate,
		Decision:   d,
		Stats:      e.stats,
		HistoryLen: e.history.Len(),
		Err:        err,
	})
}

func decisionOf(res clean.SpeedResult) Decision {
	d := Decision{Accepted: res.Valid, Reason: res.Reason}
	switch res.Reason {
	case fix.ReasonFirstPosition:
	case fix.ReasonTimeoutOverride, fix.ReasonTimeDeltaTooSmall:
		d.TimeDiffSeconds = float(res.TimeDiffSeconds)
	default:
		d.SpeedKnots = float(res.MaxObservedSpeedKnots)
		d.TimeDiffSeconds = float(res.TimeDiffSeconds)
	}
	return d
}
