package app

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/rotblauer/fixguard/ingest"
	"github.com/rotblauer/fixguard/types/fix"
)

// WriterForwarder writes accepted candidates and pass-through values as
// newline-delimited JSON. A candidate that arrived in a Signal K delta is
// written back as that delta, unchanged.
type WriterForwarder struct {
	mu  sync.Mutex
	w   io.Writer
	enc *json.Encoder

	// Delta writes flat candidates as Signal K deltas instead of flat samples.
	Delta bool
}

func NewWriterForwarder(w io.Writer, delta bool) *WriterForwarder {
	return &WriterForwarder{w: w, enc: json.NewEncoder(w), Delta: delta}
}

func (f *WriterForwarder) Accept(s fix.Sample, v ingest.Value) error {
	if v.Path != "" || f.Delta {
		return f.Pass(ingest.ValueOf(s, v))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enc.Encode(s)
}

func (f *WriterForwarder) Pass(v ingest.Value) error {
	b, err := ingest.EncodeDelta(v)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.w.Write(append(b, '\n')); err != nil {
		return err
	}
	return nil
}

// Close closes the underlying writer if it is a Closer.
func (f *WriterForwarder) Close() error {
	if c, ok := f.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
