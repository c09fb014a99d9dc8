// Package influxdb exports decisions to an InfluxDB v2 bucket.
package influxdb

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/event"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rotblauer/fixguard/engine"
	"github.com/rotblauer/fixguard/params"
)

const Measurement = "fixguard_decision"

// Exporter writes one point per decision with the async Write API.
type Exporter struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	logger   *slog.Logger
}

func NewExporter(config *params.InfluxConfig) *Exporter {
	opts := influxdb2.DefaultOptions()
	opts.SetPrecision(time.Millisecond)
	client := influxdb2.NewClientWithOptions(config.URL, config.Token, opts)
	return &Exporter{
		client:   client,
		writeAPI: client.WriteAPI(config.Org, config.Bucket),
		logger:   slog.With("d", "influxdb", "bucket", config.Bucket),
	}
}

// Point renders a decision event.
func Point(ev engine.Event) *write.Point {
	d := ev.Decision
	p := influxdb2.NewPointWithMeasurement(Measurement).
		SetTime(ev.Candidate.Time()).
		AddTag("source", ev.Candidate.SourceID.String()).
		AddTag("reason", d.Reason.String()).
		AddTag("accepted", strconv.FormatBool(d.Accepted)).
		AddTag("instance", ev.Instance).
		AddField("latitude", ev.Candidate.Point.Lat).
		AddField("longitude", ev.Candidate.Point.Lon).
		AddField("history_len", ev.HistoryLen)
	if d.SpeedKnots != nil {
		p.AddField("speed_knots", *d.SpeedKnots)
	}
	if d.TimeDiffSeconds != nil {
		p.AddField("time_diff_seconds", *d.TimeDiffSeconds)
	}
	if d.ZoneDistanceMeters != nil {
		p.AddField("zone_distance_meters", *d.ZoneDistanceMeters)
	}
	return p
}

// Run subscribes to decisions and writes them until ctx is done,
// then flushes and closes the client.
func (x *Exporter) Run(ctx context.Context, decisions *event.FeedOf[engine.Event]) {
	// Errors must be drained or the writer blocks.
	errs := x.writeAPI.Errors()
	go func() {
		for err := range errs {
			x.logger.Error("InfluxDB write failed", "error", err)
		}
	}()

	ch := make(chan engine.Event, params.DefaultFeedBuffer)
	sub := decisions.Subscribe(ch)
	defer sub.Unsubscribe()
	defer x.Close()

	x.logger.Info("Exporting decisions to InfluxDB")
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-sub.Err():
			if err != nil {
				x.logger.Error("Decision subscription failed", "error", err)
			}
			return
		case ev := <-ch:
			x.writeAPI.WritePoint(Point(ev))
		}
	}
}

func (x *Exporter) Close() {
	x.writeAPI.Flush()
	x.client.Close()
}
