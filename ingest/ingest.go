// Package ingest turns raw JSON messages into typed candidates.
// It is the only place loosely structured payloads are read: everything
// downstream sees either a fix.Sample, a pass-through Value, or a
// Malformed item carrying ErrMalformed.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rotblauer/fixguard/conceptual"
	"github.com/rotblauer/fixguard/types/fix"
	"github.com/tidwall/gjson"
)

// PositionPath is the Signal K path carrying {latitude, longitude}.
const PositionPath = "navigation.position"

var (
	ErrMalformed = errors.New("malformed input")
	ErrNotJSON   = fmt.Errorf("%w: not a JSON object", ErrMalformed)
)

type Kind int

const (
	// Candidate items carry a position for the engine.
	Candidate Kind = iota

	// PassThrough items are values the engine never inspects.
	PassThrough

	// Malformed items could not be read. Err wraps ErrMalformed.
	Malformed
)

func (k Kind) String() string {
	switch k {
	case Candidate:
		return "candidate"
	case PassThrough:
		return "pass-through"
	case Malformed:
		return "malformed"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Value is one path/value pair of a delta, as received.
type Value struct {
	Context    string              `json:"context,omitempty"`
	Source     conceptual.SourceID `json:"source,omitempty"`
	SourceType string              `json:"sourceType,omitempty"`
	Path       string              `json:"path"`
	Timestamp  string              `json:"timestamp,omitempty"`
	Value      json.RawMessage     `json:"value"`
}

// Item is one parsed unit of a message.
type Item struct {
	Kind Kind

	// Sample is set for candidates. For malformed items only SourceID
	// and TimestampMillis may be set.
	Sample fix.Sample

	// Value is the original value for Signal K items.
	Value Value

	Err error
}

// Parser reads flat candidate objects and Signal K delta messages.
type Parser struct {
	// Now stamps candidates that carry no timestamp.
	Now func() time.Time
}

func NewParser() *Parser {
	return &Parser{Now: time.Now}
}

// Parse reads one message. It never fails: unreadable input comes back
// as a single Malformed item.
func (p *Parser) Parse(data []byte) []Item {
	if !gjson.ValidBytes(data) {
		return []Item{{Kind: Malformed, Err: ErrNotJSON}}
	}
	msg := gjson.ParseBytes(data)
	if !msg.IsObject() {
		return []Item{{Kind: Malformed, Err: ErrNotJSON}}
	}
	if updates := msg.Get("updates"); updates.Exists() {
		return p.parseDelta(msg, updates)
	}
	return []Item{p.parseFlat(msg)}
}

// parseFlat reads {"source", "timestamp", "latitude", "longitude"}, with the
// coordinates either at the top level or under "position".
func (p *Parser) parseFlat(msg gjson.Result) Item {
	src := conceptual.SourceID(msg.Get("source").String())
	pos := msg
	if nested := msg.Get("position"); nested.IsObject() {
		pos = nested
	}
	ts, err := p.timestamp(msg.Get("timestamp"))
	if err != nil {
		return malformed(src, 0, err)
	}
	pt, err := point(pos)
	if err != nil {
		return malformed(src, ts, err)
	}
	return Item{
		Kind:   Candidate,
		Sample: fix.Sample{Point: pt, TimestampMillis: ts, SourceID: src},
	}
}

func (p *Parser) parseDelta(msg, updates gjson.Result) []Item {
	if !updates.IsArray() {
		return []Item{{Kind: Malformed, Err: fmt.Errorf("%w: updates is not an array", ErrMalformed)}}
	}
	context := msg.Get("context").String()
	var items []Item
	updates.ForEach(func(_, u gjson.Result) bool {
		src, srcType := SourceOf(u)
		tsRaw := u.Get("timestamp")
		ts, tsErr := p.timestamp(tsRaw)
		u.Get("values").ForEach(func(_, v gjson.Result) bool {
			val := Value{
				Context:    context,
				Source:     src,
				SourceType: srcType,
				Path:       v.Get("path").String(),
				Timestamp:  tsRaw.String(),
				Value:      json.RawMessage(v.Get("value").Raw),
			}
			if val.Path != PositionPath {
				items = append(items, Item{Kind: PassThrough, Value: val})
				return true
			}
			if tsErr != nil {
				it := malformed(src, 0, tsErr)
				it.Value = val
				items = append(items, it)
				return true
			}
			pt, err := point(v.Get("value"))
			if err != nil {
				it := malformed(src, ts, err)
				it.Value = val
				items = append(items, it)
				return true
			}
			items = append(items, Item{
				Kind:   Candidate,
				Sample: fix.Sample{Point: pt, TimestampMillis: ts, SourceID: src},
				Value:  val,
			})
			return true
		})
		return true
	})
	return items
}

// SourceOf resolves the source id of a Signal K update: "$source" when
// present, else "label.src" (or "label.talker"), else the label alone.
func SourceOf(update gjson.Result) (id conceptual.SourceID, sourceType string) {
	s := update.Get("source")
	sourceType = s.Get("type").String()
	if ref := update.Get("$source"); ref.Type == gjson.String && ref.Str != "" {
		return conceptual.SourceID(ref.Str), sourceType
	}
	label := s.Get("label").String()
	for _, k := range []string{"src", "talker"} {
		if v := s.Get(k).String(); v != "" && label != "" {
			return conceptual.SourceID(label + "." + v), sourceType
		}
	}
	return conceptual.SourceID(label), sourceType
}

// IsNMEA2000 reports whether a source looks like an NMEA 2000 bus.
// It is informational; targeting works on the id alone.
func IsNMEA2000(id conceptual.SourceID, sourceType string) bool {
	if strings.EqualFold(sourceType, "NMEA2000") {
		return true
	}
	lower := strings.ToLower(id.String())
	return strings.Contains(lower, "n2k") || strings.Contains(lower, "nmea2000")
}

// timestamp accepts epoch millis or an ISO-8601 string.
// A missing timestamp is stamped with the receive time.
func (p *Parser) timestamp(r gjson.Result) (int64, error) {
	switch r.Type {
	case gjson.Null:
		if r.Exists() {
			return 0, fmt.Errorf("%w: null timestamp", ErrMalformed)
		}
		return p.now().UnixMilli(), nil
	case gjson.Number:
		if math.IsNaN(r.Num) || math.IsInf(r.Num, 0) {
			return 0, fmt.Errorf("%w: timestamp %s", ErrMalformed, r.Raw)
		}
		return int64(r.Num), nil
	case gjson.String:
		t, err := time.Parse(time.RFC3339Nano, r.Str)
		if err != nil {
			return 0, fmt.Errorf("%w: timestamp %q: %v", ErrMalformed, r.Str, err)
		}
		return t.UnixMilli(), nil
	}
	return 0, fmt.Errorf("%w: timestamp %s", ErrMalformed, r.Raw)
}

func (p *Parser) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

// point requires numeric, in-range latitude and longitude.
func point(v gjson.Result) (fix.GeoPoint, error) {
	if !v.IsObject() {
		return fix.GeoPoint{}, fmt.Errorf("%w: position is not an object", ErrMalformed)
	}
	lat, lon := v.Get("latitude"), v.Get("longitude")
	for _, f := range []struct {
		name string
		r    gjson.Result
	}{{"latitude", lat}, {"longitude", lon}} {
		if f.r.Type != gjson.Number {
			if !f.r.Exists() {
				return fix.GeoPoint{}, fmt.Errorf("%w: missing %s", ErrMalformed, f.name)
			}
			return fix.GeoPoint{}, fmt.Errorf("%w: %s %s is not a number", ErrMalformed, f.name, f.r.Raw)
		}
	}
	pt := fix.GeoPoint{Lat: lat.Num, Lon: lon.Num}
	if !pt.Valid() {
		return fix.GeoPoint{}, fmt.Errorf("%w: position %v out of range", ErrMalformed, pt)
	}
	return pt, nil
}

func malformed(src conceptual.SourceID, ts int64, err error) Item {
	return Item{
		Kind:   Malformed,
		Sample: fix.Sample{SourceID: src, TimestampMillis: ts},
		Err:    err,
	}
}
