// Package prom exports engine decisions as Prometheus metrics.
package prom

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotblauer/fixguard/engine"
)

const namespace = "fixguard"

// SpeedBuckets are the implied speed histogram buckets, in knots.
var SpeedBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000, 20000}

// Collector bundles the decision metrics. It satisfies engine.Observer.
type Collector struct {
	gatherer prometheus.Gatherer

	Received       prometheus.Counter
	Allowed        *prometheus.CounterVec
	Dropped        *prometheus.CounterVec
	Malformed      prometheus.Counter
	HistoryLength  prometheus.Gauge
	LastAccepted   prometheus.Gauge
	ImpliedSpeed   prometheus.Histogram
	TimeDifference prometheus.Histogram
}

// NewCollector registers the metrics against reg, defaulting to the global
// registry when nil. Registering twice against the same registry reuses
// the existing collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{gatherer: gatherer}
	var errs []error
	c.Received = registered(&errs, reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "candidates_received_total",
		Help:      "Candidates in scope that reached the decision engine.",
	}))
	c.Allowed = registered(&errs, reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "candidates_allowed_total",
		Help:      "Accepted candidates, by reason.",
	}, []string{"reason"}))
	c.Dropped = registered(&errs, reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "candidates_dropped_total",
		Help:      "Rejected candidates, by reason.",
	}, []string{"reason"}))
	c.Malformed = registered(&errs, reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "candidates_malformed_total",
		Help:      "Candidates rejected at ingestion as malformed.",
	}))
	c.HistoryLength = registered(&errs, reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "history_length",
		Help:      "Accepted positions currently held as references.",
	}))
	c.LastAccepted = registered(&errs, reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_accepted_timestamp_seconds",
		Help:      "Wall time of the last accepted candidate.",
	}))
	c.ImpliedSpeed = registered(&errs, reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "implied_speed_knots",
		Help:      "Maximum implied speed of speed-checked candidates.",
		Buckets:   SpeedBuckets,
	}))
	c.TimeDifference = registered(&errs, reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "time_since_latest_seconds",
		Help:      "Seconds between a candidate and the latest accepted position.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	}))
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return c, nil
}

// Observe satisfies engine.Observer.
func (c *Collector) Observe(ev engine.Event) {
	if c == nil {
		return
	}
	d := ev.Decision
	if !d.Recorded() {
		c.Malformed.Inc()
		return
	}
	c.Received.Inc()
	reason := d.Reason.String()
	if d.Accepted {
		c.Allowed.WithLabelValues(reason).Inc()
		c.LastAccepted.Set(float64(ev.Stats.LastAcceptedAtMillis) / 1000)
	} else {
		c.Dropped.WithLabelValues(reason).Inc()
	}
	c.HistoryLength.Set(float64(ev.HistoryLen))
	if d.SpeedKnots != nil {
		c.ImpliedSpeed.Observe(*d.SpeedKnots)
	}
	if d.TimeDiffSeconds != nil {
		c.TimeDifference.Observe(*d.TimeDiffSeconds)
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registered[C prometheus.Collector](errs *[]error, reg prometheus.Registerer, c C) C {
	got, err := register(reg, c)
	if err != nil {
		*errs = append(*errs, err)
	}
	return got
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
			return c, fmt.Errorf("collector already registered with incompatible type: %w", err)
		}
		return c, err
	}
	return c, nil
}
