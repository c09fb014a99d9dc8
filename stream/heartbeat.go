package stream

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/montanaflynn/stats"
	"github.com/rotblauer/fixguard/common"
	"github.com/rotblauer/fixguard/engine"
)

// speedWindow is how many recent implied speeds the heartbeat averages.
const speedWindow = 64

// Heartbeat observes decisions and periodically logs throughput together
// with a snapshot of the engine counters.
type Heartbeat struct {
	interval time.Duration
	snapshot func() engine.Snapshot
	started  time.Time
	logger   *slog.Logger

	reg       metrics.Registry
	decisions metrics.Meter
	accepted  metrics.Meter
	rejected  metrics.Meter

	mu     sync.Mutex
	speeds *common.RingBuffer[float64]
	last   engine.Event
}

// NewHeartbeat reads engine state with snapshot, typically Guard.Snapshot,
// so the reads are serialized with decisions.
func NewHeartbeat(interval time.Duration, snapshot func() engine.Snapshot) *Heartbeat {
	// The metrics package is a no-op until enabled.
	metrics.Enabled = true

	hb := &Heartbeat{
		interval:  interval,
		snapshot:  snapshot,
		started:   time.Now(),
		logger:    slog.With("d", "heartbeat"),
		reg:       metrics.NewRegistry(),
		decisions: metrics.NewMeter(),
		accepted:  metrics.NewMeter(),
		rejected:  metrics.NewMeter(),
		speeds:    common.NewRingBuffer[float64](speedWindow),
	}
	for name, m := range map[string]metrics.Meter{
		"decisions.meter": hb.decisions,
		"accepted.meter":  hb.accepted,
		"rejected.meter":  hb.rejected,
	} {
		if err := hb.reg.Register(name, m); err != nil {
			panic(err)
		}
	}
	return hb
}

// Observe satisfies engine.Observer.
func (hb *Heartbeat) Observe(ev engine.Event) {
	if !ev.Decision.Recorded() {
		return
	}
	hb.decisions.Mark(1)
	if ev.Decision.Accepted {
		hb.accepted.Mark(1)
	} else {
		hb.rejected.Mark(1)
	}
	hb.mu.Lock()
	defer hb.mu.Unlock()
	hb.last = ev
	if ev.Decision.SpeedKnots != nil {
		hb.speeds.Add(*ev.Decision.SpeedKnots)
	}
}

// Run logs every interval until ctx is done.
func (hb *Heartbeat) Run(ctx context.Context) {
	ticker := time.NewTicker(hb.interval)
	defer ticker.Stop()
	defer hb.stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hb.Log()
		}
	}
}

// Log writes one heartbeat line.
func (hb *Heartbeat) Log() {
	snap := hb.snapshot()
	decisions := hb.decisions.Snapshot()
	rejected := hb.rejected.Snapshot()

	hb.mu.Lock()
	meanSpeed, err := stats.Mean(stats.Float64Data(hb.speeds.Get()))
	if err != nil {
		meanSpeed = 0
	}
	last := hb.last
	hb.mu.Unlock()

	args := []any{
		"received", humanize.Comma(int64(snap.Stats.Received)),
		"allowed", humanize.Comma(int64(snap.Stats.Allowed)),
		"dropped", humanize.Comma(int64(snap.Stats.Dropped)),
		"malformed", humanize.Comma(int64(snap.Stats.Malformed)),
		"history", snap.HistoryLen,
		"dps", common.DecimalToFixed(decisions.Rate1(), 2),
		"rejects.ps", common.DecimalToFixed(rejected.Rate1(), 2),
		"speed.mean", common.DecimalToFixed(meanSpeed, 1),
		"running", time.Since(hb.started).Round(time.Second),
	}
	if t := snap.Stats.LastAcceptedAt(); !t.IsZero() {
		args = append(args, "accepted.last", humanize.Time(t))
	}
	if last.Candidate.SourceID != "" {
		args = append(args, "source.last", last.Candidate.SourceID)
	}
	hb.logger.Info("Heartbeat", args...)
}

func (hb *Heartbeat) stop() {
	hb.decisions.Stop()
	hb.accepted.Stop()
	hb.rejected.Stop()
}
