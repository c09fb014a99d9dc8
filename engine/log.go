package engine

import (
	"log/slog"

	"github.com/rotblauer/fixguard/common"
)

// LogObserver writes decision events to a slog logger.
// Accepts are logged only when Verbose is set; the engine itself
// already warns on every rejection.
type LogObserver struct {
	Logger  *slog.Logger
	Verbose bool
}

func NewLogObserver(verbose bool) *LogObserver {
	return &LogObserver{Logger: slog.With("d", "decisions"), Verbose: verbose}
}

func (o *LogObserver) Observe(ev Event) {
	if !o.Verbose {
		return
	}
	args := []any{
		"source", ev.Candidate.SourceID,
		"position", ev.Candidate.Point,
		"accepted", ev.Decision.Accepted,
		"reason", ev.Decision.Reason,
		"received", ev.Stats.Received,
		"allowed", ev.Stats.Allowed,
		"dropped", ev.Stats.Dropped,
		"history", ev.HistoryLen,
	}
	if ev.Decision.SpeedKnots != nil {
		args = append(args, "speed.knots", common.DecimalToFixed(*ev.Decision.SpeedKnots, 2))
	}
	if ev.Decision.TimeDiffSeconds != nil {
		args = append(args, "dt.seconds", common.DecimalToFixed(*ev.Decision.TimeDiffSeconds, 3))
	}
	if ev.Err != nil {
		args = append(args, "error", ev.Err)
	}
	o.Logger.Info("Decision", args...)
}
