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
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/rotblauer/fixguard/app"
	"github.com/rotblauer/fixguard/cache"
	"github.com/rotblauer/fixguard/common"
	"github.com/rotblauer/fixguard/engine"
	"github.com/rotblauer/fixguard/gzfile"
	"github.com/rotblauer/fixguard/ingest"
	"github.com/rotblauer/fixguard/params"
	"github.com/rotblauer/fixguard/stream"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	optFilterInput  string
	optFilterOutput string
	optFilterDelta  bool
	optDedupe       bool
)

// filterCmd represents the filter command
var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Filter candidate positions from a file or stdin",
	Long: `Reads newline-delimited JSON candidates, flat or as Signal K deltas,
and writes accepted positions and pass-through values as newline-delimited JSON.

Input may be gzipped. Output is gzipped when the output path ends in .gz.
Rejections are logged. Counters are logged when the input is exhausted.

Examples:

  fixguard filter < track.ndjson > clean.ndjson
  fixguard filter --input track.ndjson.gz --output clean.ndjson.gz --max-speed-knots 40
  FIXGUARD_TARGETSOURCE=gps.1,gps.2 fixguard filter --delta < deltas.ndjson
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := engineConfig(viper.GetViper())
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		go func() {
			select {
			case sig := <-common.Interrupted():
				slog.Warn("Received signal", "signal", sig)
				cancel()
			case <-ctx.Done():
			}
		}()

		stats, err := runFilter(ctx, config, optFilterInput, optFilterOutput)
		slog.Info("Filter done",
			"received", humanize.Comma(int64(stats.Received)),
			"allowed", humanize.Comma(int64(stats.Allowed)),
			"dropped", humanize.Comma(int64(stats.Dropped)),
			"malformed", humanize.Comma(int64(stats.Malformed)))
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func runFilter(ctx context.Context, config *params.Config, input, output string) (engine.Stats, error) {
	in, err := gzfile.Open(input)
	if err != nil {
		return engine.Stats{}, fmt.Errorf("open input: %w", err)
	}
	defer in.Close()

	w, err := gzfile.Create(output, nil)
	if err != nil {
		return engine.Stats{}, fmt.Errorf("open output: %w", err)
	}
	out := app.NewWriterForwarder(w, optFilterDelta)
	defer func() {
		if err := out.Close(); err != nil {
			slog.Error("Failed to close output", "error", err)
		}
	}()

	e, err := engine.New(config, nil, engine.NewLogObserver(config.EnableLogging))
	if err != nil {
		return engine.Stats{}, err
	}
	if fp, err := config.Fingerprint(); err == nil {
		slog.Info("Engine configured", "instance", e.Instance, "fingerprint", fp,
			"scope", config.TargetSource, "compressed", in.Compressed())
	}

	host := app.NewHost(engine.NewGuard(e), out)

	items, errs := ingest.NewParser().Read(ctx, in)
	kinds := make(map[ingest.Kind]int)
	items = stream.Tee(ctx, func(it ingest.Item) { kinds[it.Kind]++ }, items)
	duplicates := 0
	if optDedupe {
		dedupe := cache.NewDedupePassLRUFunc(params.DedupeCacheSize)
		items = stream.Filter(ctx, func(it ingest.Item) bool {
			if it.Kind != ingest.Candidate || dedupe(it.Sample) {
				return true
			}
			duplicates++
			return false
		}, items)
	}
	if err := host.Run(ctx, items); err != nil {
		// The reader may be blocked on stdin; do not wait for it.
		return e.Stats(), err
	}
	slog.Info("Input read",
		"candidates", humanize.Comma(int64(kinds[ingest.Candidate])),
		"pass-through", humanize.Comma(int64(kinds[ingest.PassThrough])),
		"malformed", humanize.Comma(int64(kinds[ingest.Malformed])),
		"duplicates", humanize.Comma(int64(duplicates)))
	if err := <-errs; err != nil {
		return e.Stats(), fmt.Errorf("read input: %w", err)
	}
	return e.Stats(), nil
}

func init() {
	rootCmd.AddCommand(filterCmd)

	flags := filterCmd.Flags()
	flags.StringVarP(&optFilterInput, "input", "i", gzfile.Stdio, "input file, optionally gzipped; - for stdin")
	flags.StringVarP(&optFilterOutput, "output", "o", gzfile.Stdio, "output file, gzipped if it ends in .gz; - for stdout")
	flags.BoolVar(&optFilterDelta, "delta", false, "write accepted positions as Signal K deltas")
	flags.BoolVar(&optDedupe, "dedupe", false, "drop exact duplicate candidates before deciding")
}
