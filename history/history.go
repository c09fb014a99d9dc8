// Package history keeps the bounded, time-ordered record of accepted positions
// that the speed checks use as references.
package history

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/rotblauer/fixguard/common"
	"github.com/rotblauer/fixguard/types/fix"
)

// MinSize is the smallest history that can support a speed check.
const MinSize = 2

var ErrSize = errors.New("invalid history size")

// Store is a FIFO of accepted samples, oldest first.
// It performs no validation of the samples it is given;
// timestamp ordering is the caller's policy.
// It is not safe for concurrent use.
type Store struct {
	ring *common.RingBuffer[fix.Sample]
}

// New returns an empty store holding at most size samples.
func New(size int) (*Store, error) {
	if size < MinSize {
		return nil, fmt.Errorf("%w: %d < %d", ErrSize, size, MinSize)
	}
	return &Store{ring: common.NewRingBuffer[fix.Sample](size)}, nil
}

// Append pushes s to the tail, evicting the oldest sample when full.
func (st *Store) Append(s fix.Sample) {
	st.ring.Add(s)
}

// Latest returns the most recently appended sample.
func (st *Store) Latest() (fix.Sample, bool) {
	return st.ring.Last()
}

// Recent returns the last min(n, Len()) samples, most recent last.
func (st *Store) Recent(n int) []fix.Sample {
	return st.ring.Tail(n)
}

// Samples returns a copy of all stored samples, oldest first.
func (st *Store) Samples() []fix.Sample {
	return st.ring.Get()
}

// Centroid returns the arithmetic mean latitude and longitude of the stored samples.
// This is a planar mean. It is wrong near the poles and across the antimeridian,
// which is tolerated because references are always local.
func (st *Store) Centroid() (fix.GeoPoint, bool) {
	if st.ring.Len() == 0 {
		return fix.GeoPoint{}, false
	}
	mp := make(orb.MultiPoint, 0, st.ring.Len())
	st.ring.Scan(func(s fix.Sample) bool {
		mp = append(mp, s.Point.OrbPoint())
		return true
	})
	c, _ := planar.CentroidArea(mp)
	return fix.FromOrb(c), true
}

// Len returns the number of stored samples.
func (st *Store) Len() int {
	return st.ring.Len()
}

// Cap returns the configured capacity.
func (st *Store) Cap() int {
	return st.ring.Cap()
}

// Clear empties the store.
func (st *Store) Clear() {
	st.ring.Clear()
}
