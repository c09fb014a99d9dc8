// Package app connects transports to the engine: it dispatches parsed items
// to the guarded engine and forwards everything the engine does not gate.
package app

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rotblauer/fixguard/engine"
	"github.com/rotblauer/fixguard/ingest"
	"github.com/rotblauer/fixguard/types/fix"
)

// Forwarder receives accepted candidates and pass-through values.
type Forwarder interface {
	// Accept receives an accepted candidate together with the value it
	// arrived in. v.Path is empty for flat input.
	Accept(s fix.Sample, v ingest.Value) error
	Pass(v ingest.Value) error
}

// Forwarders fans out to each forwarder, in order. All are tried;
// the first error is returned.
type Forwarders []Forwarder

func (fs Forwarders) Accept(s fix.Sample, v ingest.Value) error {
	var first error
	for _, f := range fs {
		if err := f.Accept(s, v); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (fs Forwarders) Pass(v ingest.Value) error {
	var first error
	for _, f := range fs {
		if err := f.Pass(v); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Outcome reports what happened to one item.
type Outcome struct {
	Kind     string           `json:"kind"`
	Source   string           `json:"source,omitempty"`
	Path     string           `json:"path,omitempty"`
	Decision *engine.Decision `json:"decision,omitempty"`
	Error    string           `json:"error,omitempty"`
	Sample   *fix.Sample      `json:"sample,omitempty"`
}

// Host is the collaborator around the engine.
// It is safe for concurrent use; the Guard serializes decisions.
type Host struct {
	Guard *engine.Guard

	// Out receives accepted candidates in the form they arrived in, and
	// pass-through values, including candidates from sources outside the
	// target scope.
	Out Forwarder

	// Dedupe, when set, drops candidates it returns false for before they
	// reach the engine. Dropped duplicates are not counted.
	Dedupe func(fix.Sample) bool

	dedupeMu sync.Mutex
	logger   *slog.Logger
}

func NewHost(g *engine.Guard, out Forwarder) *Host {
	return &Host{Guard: g, Out: out, logger: slog.With("d", "host")}
}

// Dispatch handles one item.
func (h *Host) Dispatch(it ingest.Item) Outcome {
	o := Outcome{Kind: it.Kind.String(), Path: it.Value.Path}
	switch it.Kind {
	case ingest.PassThrough:
		o.Source = it.Value.Source.String()
		h.pass(it.Value)
	case ingest.Malformed:
		o.Source = it.Sample.SourceID.String()
		d := h.Guard.RejectMalformed(it.Sample, it.Err)
		o.Decision = &d
		if it.Err != nil {
			o.Error = it.Err.Error()
		}
	case ingest.Candidate:
		o.Source = it.Sample.SourceID.String()
		s := it.Sample
		o.Sample = &s
		if h.duplicate(s) {
			o.Kind = "duplicate"
			return o
		}
		d := h.Guard.DecideTo(s, acceptSink{out: h.Out, value: it.Value})
		o.Decision = &d
		if d.Reason == fix.ReasonOutOfScope {
			h.pass(ingest.ValueOf(s, it.Value))
		}
	}
	return o
}

// DispatchAll handles every item of a message, in order.
func (h *Host) DispatchAll(items []ingest.Item) []Outcome {
	out := make([]Outcome, 0, len(items))
	for _, it := range items {
		out = append(out, h.Dispatch(it))
	}
	return out
}

// Run dispatches items until the channel closes or ctx is done.
func (h *Host) Run(ctx context.Context, items <-chan ingest.Item) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case it, ok := <-items:
			if !ok {
				return nil
			}
			h.Dispatch(it)
		}
	}
}

// acceptSink hands the engine's accepted candidate to the forwarder
// with its original value. It runs under the Guard lock, so output
// order follows decision order.
type acceptSink struct {
	out   Forwarder
	value ingest.Value
}

func (a acceptSink) Forward(s fix.Sample) error {
	if a.out == nil {
		return nil
	}
	return a.out.Accept(s, a.value)
}

func (h *Host) duplicate(s fix.Sample) bool {
	if h.Dedupe == nil {
		return false
	}
	h.dedupeMu.Lock()
	defer h.dedupeMu.Unlock()
	return !h.Dedupe(s)
}

func (h *Host) pass(v ingest.Value) {
	if h.Out == nil {
		return
	}
	if err := h.Out.Pass(v); err != nil {
		h.logger.Error("Failed to pass through value", "path", v.Path, "source", v.Source, "error", err)
	}
}
