// Package stream holds small channel pipeline helpers and the periodic
// heartbeat that reports engine throughput.
package stream

import (
	"context"
)

// Filter passes on the elements for which keep returns true.
// keep is called from a single goroutine.
func Filter[T any](ctx context.Context, keep func(T) bool, in <-chan T) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for element := range in {
			if keep(element) && !send(ctx, out, element) {
				return
			}
		}
	}()
	return out
}

// Transform maps each element through fn.
func Transform[I any, O any](ctx context.Context, fn func(I) O, in <-chan I) <-chan O {
	out := make(chan O)
	go func() {
		defer close(out)
		for element := range in {
			if !send(ctx, out, fn(element)) {
				return
			}
		}
	}()
	return out
}

// Tee calls fn with each element before passing it on. Once the returned
// channel is closed, every call to fn has returned.
func Tee[T any](ctx context.Context, fn func(T), in <-chan T) <-chan T {
	return Transform(ctx, func(element T) T {
		fn(element)
		return element
	}, in)
}

// Collect drains in into a slice, stopping early when ctx is done.
func Collect[T any](ctx context.Context, in <-chan T) []T {
	var out []T
	for element := range in {
		if ctx.Err() != nil {
			return out
		}
		out = append(out, element)
	}
	return out
}

func send[T any](ctx context.Context, out chan<- T, element T) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- element:
		return true
	}
}
