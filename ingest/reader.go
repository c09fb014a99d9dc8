package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/rotblauer/fixguard/types/fix"
)

// MaxLineBytes bounds a single NDJSON line.
const MaxLineBytes = 4 << 20

// Read streams items parsed from newline-delimited JSON.
// Blank lines are skipped. The error channel receives at most one
// scanner error and is closed with the item channel.
func (p *Parser) Read(ctx context.Context, r io.Reader) (<-chan Item, <-chan error) {
	out := make(chan Item)
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		defer close(out)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), MaxLineBytes)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			for _, it := range p.Parse(line) {
				select {
				case <-ctx.Done():
					return
				case out <- it:
				}
			}
		}
		if err := scanner.Err(); err != nil {
			errs <- err
		}
	}()
	return out, errs
}

// PositionValue wraps an accepted sample as a navigation.position value.
func PositionValue(s fix.Sample) Value {
	raw, _ := json.Marshal(s.Point)
	return Value{
		Source:    s.SourceID,
		Path:      PositionPath,
		Timestamp: s.Time().UTC().Format(time.RFC3339Nano),
		Value:     raw,
	}
}

// ValueOf returns the value an accepted sample is forwarded as: v itself
// when the sample arrived in a Signal K delta, which keeps its context,
// altitude and timestamp as received, or PositionValue(s) for flat input.
func ValueOf(s fix.Sample, v Value) Value {
	if v.Path != "" {
		return v
	}
	return PositionValue(s)
}

type delta struct {
	Context string        `json:"context,omitempty"`
	Updates []deltaUpdate `json:"updates"`
}

type deltaUpdate struct {
	Source    string       `json:"$source,omitempty"`
	Timestamp string       `json:"timestamp,omitempty"`
	Values    []deltaValue `json:"values"`
}

type deltaValue struct {
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value"`
}

// EncodeDelta encodes v as a single-value Signal K delta.
func EncodeDelta(v Value) ([]byte, error) {
	val := v.Value
	if len(val) == 0 {
		val = json.RawMessage("null")
	}
	return json.Marshal(delta{
		Context: v.Context,
		Updates: []deltaUpdate{{
			Source:    v.Source.String(),
			Timestamp: v.Timestamp,
			Values:    []deltaValue{{Path: v.Path, Value: val}},
		}},
	})
}
