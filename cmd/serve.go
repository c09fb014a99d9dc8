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
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotblauer/fixguard/app"
	"github.com/rotblauer/fixguard/cache"
	"github.com/rotblauer/fixguard/common"
	"github.com/rotblauer/fixguard/daemon/webd"
	"github.com/rotblauer/fixguard/engine"
	"github.com/rotblauer/fixguard/events"
	"github.com/rotblauer/fixguard/metrics/influxdb"
	"github.com/rotblauer/fixguard/metrics/prom"
	"github.com/rotblauer/fixguard/mqtt"
	"github.com/rotblauer/fixguard/params"
	"github.com/rotblauer/fixguard/state"
	"github.com/rotblauer/fixguard/stream"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the position guard as a daemon",
	Long: `Runs one engine instance behind an HTTP API, and optionally an MQTT bridge.

HTTP:

  POST /positions   candidates, as a JSON array or newline-delimited JSON (token required if set)
  POST /reset       clear history and counters (token required if set)
  GET  /stats       counters, history length, configuration fingerprint
  GET  /history     accepted references; ?format=geojson for a FeatureCollection
  GET  /last        last accepted fix per source; ?source= for one
  GET  /sources     per-source tallies
  GET  /rejected    recent rejections from the journal; ?n= to limit
  GET  /metrics     Prometheus metrics
  GET  /socket      websocket of accepted and pass-through values

The ingest token is read from the environment variable named by --token-env.

MQTT is enabled with --mqtt-broker. Messages on --mqtt-input-topic are decided,
and accepted positions and pass-through values are published to --mqtt-output-topic.

InfluxDB export is enabled with --influx-url.
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := engineConfig(viper.GetViper())
		if err != nil {
			return err
		}
		dc := daemonConfig(viper.GetViper())

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		go func() {
			interrupt := common.Interrupted()
			for i := 0; i < 2; i++ {
				sig := <-interrupt
				slog.Warn("Received signal", "signal", sig, "i", i)
				if i == 0 {
					cancel()
				} else {
					log.Fatalln("Force exit")
				}
			}
		}()
		return serve(ctx, config, dc)
	},
}

// daemonConfig reads the daemon configuration from v.
func daemonConfig(v *viper.Viper) *params.DaemonConfig {
	dc := params.DefaultDaemonConfig()
	dc.Web.Address = v.GetString("web.address")
	dc.Web.TokenEnv = v.GetString("web.tokenEnv")
	dc.Web.MaxBodyBytes = v.GetInt64("web.maxBodyBytes")

	dc.MQTT.Broker = v.GetString("mqtt.broker")
	dc.MQTT.ClientID = v.GetString("mqtt.clientID")
	dc.MQTT.InputTopic = v.GetString("mqtt.inputTopic")
	dc.MQTT.OutputTopic = v.GetString("mqtt.outputTopic")
	dc.MQTT.QoS = byte(v.GetUint("mqtt.qos"))

	dc.Influx.URL = v.GetString("influx.url")
	dc.Influx.Token = v.GetString("influx.token")
	dc.Influx.Org = v.GetString("influx.org")
	dc.Influx.Bucket = v.GetString("influx.bucket")

	dc.JournalPath = v.GetString("journal.path")
	dc.HeartbeatInterval = v.GetDuration("heartbeat.interval")
	return dc
}

func serve(ctx context.Context, config *params.Config, dc *params.DaemonConfig) error {
	feeds := events.NewFeeds()
	forwarders := app.Forwarders{feeds}

	collector, err := prom.NewCollector(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	sources, err := cache.NewSources(params.CacheLastAcceptedTTL, params.SourceTallyCacheSize)
	if err != nil {
		return err
	}
	go sources.Start()
	defer sources.Stop()

	var guard *engine.Guard
	heartbeat := stream.NewHeartbeat(dc.HeartbeatInterval, func() engine.Snapshot {
		return guard.Snapshot(false)
	})

	observers := engine.MultiObserver{
		feeds, sources, collector, heartbeat,
		engine.NewLogObserver(config.EnableLogging),
	}

	var journal *state.Journal
	if dc.JournalPath != "" {
		journal, err = state.OpenJournal(dc.JournalPath)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer func() {
			if err := journal.Close(); err != nil {
				slog.Error("Failed to close journal", "error", err)
			}
		}()
		observers = append(observers, journal)
	}

	if dc.MQTT.Enabled() {
		pub, err := mqtt.NewPublisher(dc.MQTT)
		if err != nil {
			return fmt.Errorf("mqtt publisher: %w", err)
		}
		defer pub.Close()
		forwarders = append(forwarders, pub)
	}

	e, err := engine.New(config, nil, observers)
	if err != nil {
		return err
	}
	guard = engine.NewGuard(e)
	fingerprint, err := config.Fingerprint()
	if err != nil {
		return err
	}
	slog.Info("Engine configured", "instance", e.Instance, "fingerprint", fingerprint,
		"scope", config.TargetSource, "max-speed-knots", config.MaxSpeedKnots,
		"timeout-seconds", config.TimeoutSeconds, "history-size", config.HistorySize,
		"zones", len(config.InvalidCoordinates), "zone-filter", config.EnableInvalidCoordinateFilter)

	host := app.NewHost(guard, forwarders)
	if optDedupe {
		host.Dedupe = cache.NewDedupePassLRUFunc(params.DedupeCacheSize)
	}

	if dc.MQTT.Enabled() {
		sub, err := mqtt.NewSubscriber(dc.MQTT, host)
		if err != nil {
			return fmt.Errorf("mqtt subscriber: %w", err)
		}
		defer sub.Close()
	}

	wg := new(sync.WaitGroup)
	if dc.Influx.Enabled() {
		exporter := influxdb.NewExporter(dc.Influx)
		wg.Add(1)
		go func() {
			defer wg.Done()
			exporter.Run(ctx, &feeds.Decisions)
		}()
	}
	if dc.HeartbeatInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			heartbeat.Run(ctx)
		}()
	}

	opts := []webd.Option{webd.WithFeeds(feeds), webd.WithSources(sources), webd.WithMetrics(collector)}
	if journal != nil {
		opts = append(opts, webd.WithJournal(journal))
	}
	server := webd.NewWebDaemon(dc.Web, host, opts...)
	server.Fingerprint = fingerprint

	err = server.Run(ctx)
	wg.Wait()
	heartbeat.Log()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func init() {
	rootCmd.AddCommand(serveCmd)

	defaults := params.DefaultDaemonConfig()
	flags := serveCmd.Flags()
	flags.String("address", defaults.Web.Address, "HTTP address to listen on")
	flags.String("token-env", defaults.Web.TokenEnv, "environment variable holding the ingest token")
	flags.Int64("max-body-bytes", defaults.Web.MaxBodyBytes, "maximum POST /positions body size")
	flags.String("mqtt-broker", "", "MQTT broker URL, eg. tcp://localhost:1883; empty disables MQTT")
	flags.String("mqtt-client-id", defaults.MQTT.ClientID, "MQTT client id prefix")
	flags.String("mqtt-input-topic", defaults.MQTT.InputTopic, "MQTT topic to read candidates from")
	flags.String("mqtt-output-topic", defaults.MQTT.OutputTopic, "MQTT topic to publish accepted and pass-through values to")
	flags.Uint("mqtt-qos", uint(defaults.MQTT.QoS), "MQTT QoS for subscribe and publish")
	flags.String("influx-url", "", "InfluxDB v2 URL; empty disables export")
	flags.String("influx-token", "", "InfluxDB token")
	flags.String("influx-org", defaults.Influx.Org, "InfluxDB organization")
	flags.String("influx-bucket", defaults.Influx.Bucket, "InfluxDB bucket")
	flags.String("journal", defaults.JournalPath, "bbolt file journaling rejected candidates; empty disables")
	flags.Duration("heartbeat", defaults.HeartbeatInterval, "interval between status log lines; 0 disables")
	flags.BoolVar(&optDedupe, "dedupe", false, "drop exact duplicate candidates before deciding")
	bindFlags(flags, map[string]string{
		"web.address":        "address",
		"web.tokenEnv":       "token-env",
		"web.maxBodyBytes":   "max-body-bytes",
		"mqtt.broker":        "mqtt-broker",
		"mqtt.clientID":      "mqtt-client-id",
		"mqtt.inputTopic":    "mqtt-input-topic",
		"mqtt.outputTopic":   "mqtt-output-topic",
		"mqtt.qos":           "mqtt-qos",
		"influx.url":         "influx-url",
		"influx.token":       "influx-token",
		"influx.org":         "influx-org",
		"influx.bucket":      "influx-bucket",
		"journal.path":       "journal",
		"heartbeat.interval": "heartbeat",
	})
}
