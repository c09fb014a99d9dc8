package webd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/paulmach/orb/geojson"
	"github.com/rotblauer/fixguard/conceptual"
	"github.com/rotblauer/fixguard/engine"
	"github.com/rotblauer/fixguard/ingest"
	"github.com/rotblauer/fixguard/stream"
	"github.com/tidwall/gjson"
)

const (
	// DefaultRejectedLimit is how many journal records /rejected returns by default.
	DefaultRejectedLimit = 100

	// MaxRejectedLimit caps ?n= on /rejected.
	MaxRejectedLimit = 1000
)

var errInvalidLimit = errors.New("invalid n")

// rejectedLimit parses ?n=, clamped to MaxRejectedLimit.
func rejectedLimit(v string) (int, error) {
	if v == "" {
		return DefaultRejectedLimit, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, errInvalidLimit
	}
	return min(n, MaxRejectedLimit), nil
}

func pingPong(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

type statsReport struct {
	engine.Snapshot
	Fingerprint string    `json:"fingerprint,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
	Uptime      string    `json:"uptime"`
	LastAccept  string    `json:"lastAccept,omitempty"`
	WSConns     int       `json:"wsConns"`
}

func (s *WebDaemon) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := s.host.Guard.Snapshot(false)
	st := statsReport{
		Snapshot:    snap,
		Fingerprint: s.Fingerprint,
		StartedAt:   s.started,
		Uptime:      time.Since(s.started).Round(time.Second).String(),
	}
	if t := snap.Stats.LastAcceptedAt(); !t.IsZero() {
		st.LastAccept = humanize.Time(t)
	}
	if s.melodyInstance != nil {
		st.WSConns = s.melodyInstance.Len()
	}
	s.writeJSON(w, st)
}

// handleHistory returns the accepted history, oldest first.
// With ?format=geojson it is a FeatureCollection of Points.
func (s *WebDaemon) handleHistory(w http.ResponseWriter, r *http.Request) {
	snap := s.host.Guard.Snapshot(true)
	if r.URL.Query().Get("format") != "geojson" {
		s.writeJSON(w, snap)
		return
	}
	fc := geojson.NewFeatureCollection()
	for _, sample := range snap.History {
		f := geojson.NewFeature(sample.Point.OrbPoint())
		f.Properties["source"] = sample.SourceID.String()
		f.Properties["timestamp"] = sample.TimestampMillis
		fc.Append(f)
	}
	w.Header().Set("Content-Type", "application/geo+json")
	s.writeJSON(w, fc)
}

// handleLast returns the last accepted fix of every recent source,
// or of one source with ?source=.
func (s *WebDaemon) handleLast(w http.ResponseWriter, r *http.Request) {
	if s.sources == nil {
		http.Error(w, "Source cache disabled", http.StatusNotFound)
		return
	}
	if id := conceptual.SourceID(r.URL.Query().Get("source")); !id.Empty() {
		last, ok := s.sources.LastAcceptedFor(id)
		if !ok {
			http.Error(w, "No recent fix for source", http.StatusNotFound)
			return
		}
		s.writeJSON(w, last)
		return
	}
	s.writeJSON(w, s.sources.LastAccepted())
}

func (s *WebDaemon) handleSources(w http.ResponseWriter, r *http.Request) {
	if s.sources == nil {
		http.Error(w, "Source cache disabled", http.StatusNotFound)
		return
	}
	type sourceReport struct {
		Tallies  any    `json:"tallies"`
		Scope    string `json:"scope"`
		Instance string `json:"instance"`
	}
	e := s.host.Guard.Engine()
	s.writeJSON(w, sourceReport{
		Tallies:  s.sources.Tallies(),
		Scope:    e.Config().TargetSource.String(),
		Instance: e.Instance,
	})
}

func (s *WebDaemon) handleRejected(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		http.Error(w, "Journal disabled", http.StatusNotFound)
		return
	}
	n, err := rejectedLimit(r.URL.Query().Get("n"))
	if err != nil {
		http.Error(w, "Invalid n", http.StatusBadRequest)
		return
	}
	records, err := s.journal.Recent(n)
	if err != nil {
		s.logger.Error("Failed to read journal", "error", err)
		http.Error(w, "Failed to read journal", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, records)
}

// handlePositions decides every candidate in the body and returns one
// outcome per item. The body is a JSON array of messages, or one or more
// newline-delimited messages, each a flat candidate or a Signal K delta.
func (s *WebDaemon) handlePositions(w http.ResponseWriter, r *http.Request) {
	if r.Body == nil {
		http.Error(w, "Please send a request body", http.StatusBadRequest)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.Config.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		s.logger.Error("Failed to read request body", "error", err)
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	items, err := s.parseBody(r.Context(), body)
	if err != nil {
		s.logger.Warn("Failed to scan request body", "error", err)
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	s.writeJSON(w, s.host.DispatchAll(items))
}

func (s *WebDaemon) handleReset(w http.ResponseWriter, r *http.Request) {
	s.host.Guard.Reset()
	s.writeJSON(w, s.host.Guard.Snapshot(false))
}

func (s *WebDaemon) parseBody(ctx context.Context, body []byte) ([]ingest.Item, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' && gjson.ValidBytes(trimmed) {
		var items []ingest.Item
		gjson.ParseBytes(trimmed).ForEach(func(_, msg gjson.Result) bool {
			items = append(items, s.parser.Parse([]byte(msg.Raw))...)
			return true
		})
		return items, nil
	}
	ch, errs := s.parser.Read(ctx, bytes.NewReader(trimmed))
	items := stream.Collect(ctx, ch)
	return items, <-errs
}

func (s *WebDaemon) writeJSON(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}
