package utils

import (
	"encoding/json"
	"iter"
)

// Bound is an optional element count for MaybeSkip and MaybeTake.
type Bound struct {
	n  int
	ok bool
}

// Unbounded applies no bound.
var Unbounded = Bound{}

// Bounded returns a bound of n elements. Negative n is treated as zero.
func Bounded(n int) Bound {
	return Bound{n: max(n, 0), ok: true}
}

// Get returns the count and whether the bound is set.
func (b Bound) Get() (int, bool) {
	return b.n, b.ok
}

// MarshalJSON encodes an unbounded value as null.
func (b Bound) MarshalJSON() ([]byte, error) {
	if !b.ok {
		return []byte("null"), nil
	}
	return json.Marshal(b.n)
}

// UnmarshalJSON accepts null or an integer.
func (b *Bound) UnmarshalJSON(data []byte) error {
	var n *int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if n == nil {
		*b = Unbounded
		return nil
	}
	*b = Bounded(*n)
	return nil
}

// MaybeSkip drops the first n elements of seq when b is set and returns seq
// itself otherwise.
func MaybeSkip[T any](seq iter.Seq[T], b Bound) iter.Seq[T] {
	n, ok := b.Get()
	if !ok {
		return seq
	}
	return func(yield func(T) bool) {
		skipped := 0
		for v := range seq {
			if skipped < n {
				skipped++
				continue
			}
			if !yield(v) {
				return
			}
		}
	}
}

// MaybeTake yields at most n elements of seq when b is set and returns seq
// itself otherwise. A zero bound never pulls from seq.
func MaybeTake[T any](seq iter.Seq[T], b Bound) iter.Seq[T] {
	n, ok := b.Get()
	if !ok {
		return seq
	}
	return func(yield func(T) bool) {
		if n == 0 {
			return
		}
		taken := 0
		for v := range seq {
			if !yield(v) {
				return
			}
			taken++
			if taken == n {
				return
			}
		}
	}
}

// MaybeRange skips then takes.
func MaybeRange[T any](seq iter.Seq[T], skip, take Bound) iter.Seq[T] {
	return MaybeTake(MaybeSkip(seq, skip), take)
}
