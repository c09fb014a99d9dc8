// Package state keeps the rejection journal.
// Accepted history is never persisted; the journal is write-only from the
// engine's point of view and exists for operators.
package state

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotblauer/fixguard/engine"
	"github.com/rotblauer/fixguard/params"
	"github.com/rotblauer/fixguard/types/fix"
	"go.etcd.io/bbolt"
)

var rejectedBucket = []byte("rejected")

var ErrClosed = errors.New("journal closed")

// Record is one journaled rejection.
type Record struct {
	Seq       uint64          `json:"seq"`
	At        time.Time       `json:"at"`
	Instance  string          `json:"instance"`
	Candidate fix.Sample      `json:"candidate"`
	Decision  engine.Decision `json:"decision"`
	Error     string          `json:"error,omitempty"`
}

// Journal appends rejected decisions to a bbolt bucket keyed by a
// big-endian sequence, so cursor order is insertion order.
type Journal struct {
	DB      *bbolt.DB
	Waiting sync.WaitGroup

	queue  chan Record
	once   sync.Once
	logger *slog.Logger
}

// OpenJournal opens or creates the journal at path. Opening a writable
// bbolt file blocks other writers with a file lock.
func OpenJournal(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0770); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rejectedBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	j := &Journal{
		DB:     db,
		queue:  make(chan Record, params.DefaultFeedBuffer),
		logger: slog.With("d", "journal", "path", path),
	}
	j.Waiting.Add(1)
	go j.run()
	return j, nil
}

// Observe satisfies engine.Observer. Accepts are ignored.
// Writes happen off the deciding goroutine; when the queue is full
// the record is dropped and logged.
func (j *Journal) Observe(ev engine.Event) {
	if ev.Decision.Accepted {
		return
	}
	r := Record{
		At:        ev.At,
		Instance:  ev.Instance,
		Candidate: ev.Candidate,
		Decision:  ev.Decision,
	}
	if ev.Err != nil {
		r.Error = ev.Err.Error()
	}
	select {
	case j.queue <- r:
	default:
		j.logger.Warn("Journal queue full, dropping record", "source", r.Candidate.SourceID, "reason", r.Decision.Reason)
	}
}

func (j *Journal) run() {
	defer j.Waiting.Done()
	for r := range j.queue {
		if err := j.Append(r); err != nil {
			j.logger.Error("Failed to journal rejection", "error", err)
		}
	}
}

// Append writes r, assigning its sequence number.
func (j *Journal) Append(r Record) error {
	return j.DB.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(rejectedBucket)
		if b == nil {
			return ErrClosed
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		r.Seq = seq
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		return b.Put(seqKey(seq), data)
	})
}

// Recent returns up to n records, newest first. Callers bound n; the
// result grows with the records read, not with n.
func (j *Journal) Recent(n int) ([]Record, error) {
	out := []Record{}
	err := j.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(rejectedBucket)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil && len(out) < n; k, v = c.Prev() {
			var r Record
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("record %d: %w", binary.BigEndian.Uint64(k), err)
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// Count returns the number of journaled records.
func (j *Journal) Count() (int, error) {
	var n int
	err := j.DB.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket(rejectedBucket); b != nil {
			n = b.Stats().KeyN
		}
		return nil
	})
	return n, err
}

// Wait blocks until queued records are written. It is only meaningful after Close.
func (j *Journal) Wait() {
	j.Waiting.Wait()
}

// Close stops accepting records, flushes the queue, and closes the DB.
// Observe must not be called after Close.
func (j *Journal) Close() error {
	j.once.Do(func() { close(j.queue) })
	j.Wait()
	return j.DB.Close()
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}
