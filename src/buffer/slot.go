package buffer

import (
	"context"
)

// Slot is a buffer that holds at most one value. Producers never block:
// Offer drops the new value when the slot is taken, Replace evicts the
// value that is waiting.
type Slot[T any] struct {
	ch chan T
}

func NewSlot[T any]() *Slot[T] {
	return &Slot[T]{ch: make(chan T, 1)}
}

// Offer stores v if the slot is empty and reports whether it did.
func (s *Slot[T]) Offer(v T) bool {
	select {
	case s.ch <- v:
		return true
	default:
		return false
	}
}

// Replace stores v, discarding a value that was not consumed yet. It
// reports whether a value was discarded.
func (s *Slot[T]) Replace(v T) (evicted bool) {
	for {
		select {
		case s.ch <- v:
			return evicted
		default:
			select {
			case <-s.ch:
				evicted = true
			default:
			}
		}
	}
}

// Take waits for a value or for the context to be done.
func (s *Slot[T]) Take(ctx context.Context) (T, error) {
	select {
	case v := <-s.ch:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (s *Slot[T]) TryTake() (T, bool) {
	select {
	case v := <-s.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// C exposes the receive side for use in a select.
func (s *Slot[T]) C() <-chan T {
	return s.ch
}

func (s *Slot[T]) Len() int {
	return len(s.ch)
}
