package sequence

import (
	"iter"
	"sort"
)

// Iterator is a generic, chainable iterator over T.
type Iterator[T any] struct {
	seq iter.Seq[T]
}

// From creates a new Iterator from a slice of T.
func From[T any](data []T) *Iterator[T] {
	return &Iterator[T]{
		seq: func(yield func(T) bool) {
			for _, v := range data {
				if !yield(v) {
					return
				}
			}
		},
	}
}

// FromSeq wraps an existing sequence.
func FromSeq[T any](seq iter.Seq[T]) *Iterator[T] {
	return &Iterator[T]{seq: seq}
}

// Collect exhausts the iterator and returns a slice of all elements.
func (i *Iterator[T]) Collect() []T {
	var out []T
	i.seq(func(v T) bool {
		out = append(out, v)
		return true
	})
	return out
}

// Sort returns a new Iterator with elements stably sorted by less.
func (i *Iterator[T]) Sort(less func(a, b T) bool) *Iterator[T] {
	data := i.Collect()
	sort.SliceStable(data, func(a, b int) bool {
		return less(data[a], data[b])
	})
	return From(data)
}

// Filter returns a new Iterator containing only elements that satisfy the predicate.
func (i *Iterator[T]) Filter(pred func(T) bool) *Iterator[T] {
	return &Iterator[T]{
		seq: func(yield func(T) bool) {
			i.seq(func(v T) bool {
				if pred(v) {
					return yield(v)
				}
				return true
			})
		},
	}
}

// ToArray maps every element through callback.
func ToArray[T any, S any](it *Iterator[T], callback func(T) S) []S {
	arr := make([]S, 0)
	it.seq(func(v T) bool {
		arr = append(arr, callback(v))
		return true
	})
	return arr
}

// ToMap builds a map from the iterator using key and value selector functions.
func ToMap[T any, K comparable, V any](it *Iterator[T], keyFn func(T) K, valFn func(T) V) map[K]V {
	m := make(map[K]V)
	it.seq(func(v T) bool {
		m[keyFn(v)] = valFn(v)
		return true
	})
	return m
}
