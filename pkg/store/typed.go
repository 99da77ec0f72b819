package store

import (
	"encoding/binary"
)

// Cell is a persistent single value.
type Cell[T any] struct {
	backend Backend
	bucket  string
	initial T
}

// cellKey is the only key a Cell bucket holds.
var cellKey = []byte("v")

// NewCell creates a typed cell view over bucket. When the bucket is empty
// the cell reads as initial.
func NewCell[T any](b Backend, bucket string, initial T) *Cell[T] {
	return &Cell[T]{backend: b, bucket: bucket, initial: initial}
}

// Get returns the current value, or the initial value when never set.
func (c *Cell[T]) Get() T {
	raw, ok, err := c.backend.Get(c.bucket, cellKey)
	if err != nil {
		fail(c.bucket, "get", err)
	}
	if !ok {
		return c.initial
	}
	var v T
	if err := Decode(raw, &v); err != nil {
		fail(c.bucket, "decode", err)
	}
	return v
}

// Set overwrites the current value.
func (c *Cell[T]) Set(v T) {
	raw, err := Encode(v)
	if err != nil {
		fail(c.bucket, "encode", err)
	}
	if err := c.backend.Set(c.bucket, cellKey, raw); err != nil {
		fail(c.bucket, "set", err)
	}
}

// Map is a persistent ordered map keyed by a typed string ID.
type Map[K ~string, V any] struct {
	backend Backend
	bucket  string
}

// NewMap creates a typed map view over bucket.
func NewMap[K ~string, V any](b Backend, bucket string) *Map[K, V] {
	return &Map[K, V]{backend: b, bucket: bucket}
}

// Get returns the value for k, or ok=false when absent.
func (m *Map[K, V]) Get(k K) (V, bool) {
	var v V
	raw, ok, err := m.backend.Get(m.bucket, []byte(k))
	if err != nil {
		fail(m.bucket, "get", err)
	}
	if !ok {
		return v, false
	}
	if err := Decode(raw, &v); err != nil {
		fail(m.bucket, "decode", err)
	}
	return v, true
}

// Insert writes v under k, overwriting any previous value.
func (m *Map[K, V]) Insert(k K, v V) {
	raw, err := Encode(v)
	if err != nil {
		fail(m.bucket, "encode", err)
	}
	if err := m.backend.Set(m.bucket, []byte(k), raw); err != nil {
		fail(m.bucket, "set", err)
	}
}

// Remove deletes k and reports whether it was present.
func (m *Map[K, V]) Remove(k K) bool {
	present := m.Contains(k)
	if err := m.backend.Delete(m.bucket, []byte(k)); err != nil {
		fail(m.bucket, "delete", err)
	}
	return present
}

// Contains reports whether k is present.
func (m *Map[K, V]) Contains(k K) bool {
	_, ok, err := m.backend.Get(m.bucket, []byte(k))
	if err != nil {
		fail(m.bucket, "get", err)
	}
	return ok
}

// Update mutates the value under k in place and reports whether k existed.
// The mutation is written back before Update returns.
func (m *Map[K, V]) Update(k K, fn func(v *V)) bool {
	v, ok := m.Get(k)
	if !ok {
		return false
	}
	fn(&v)
	m.Insert(k, v)
	return true
}

// Upsert mutates the value under k, starting from the zero value when k is
// absent, and writes the result back.
func (m *Map[K, V]) Upsert(k K, fn func(v *V)) {
	v, _ := m.Get(k)
	fn(&v)
	m.Insert(k, v)
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int {
	n, err := m.backend.Len(m.bucket)
	if err != nil {
		fail(m.bucket, "len", err)
	}
	return n
}

// Keys returns every key in ascending byte order.
func (m *Map[K, V]) Keys() []K {
	keys := make([]K, 0, m.Len())
	err := m.backend.Scan(m.bucket, func(k, _ []byte) error {
		keys = append(keys, K(k))
		return nil
	})
	if err != nil {
		fail(m.bucket, "scan", err)
	}
	return keys
}

// Each calls fn for every entry in ascending key order.
func (m *Map[K, V]) Each(fn func(k K, v V)) {
	err := m.backend.Scan(m.bucket, func(k, raw []byte) error {
		var v V
		if err := Decode(raw, &v); err != nil {
			return err
		}
		fn(K(k), v)
		return nil
	})
	if err != nil {
		fail(m.bucket, "scan", err)
	}
}

// Clear removes every entry.
func (m *Map[K, V]) Clear() {
	if err := m.backend.Clear(m.bucket); err != nil {
		fail(m.bucket, "clear", err)
	}
}

// Log is a persistent append-only list. Entries are keyed by their position
// encoded as a big-endian uint64 so that scan order equals append order.
type Log[T any] struct {
	backend Backend
	bucket  string
}

// NewLog creates a typed log view over bucket.
func NewLog[T any](b Backend, bucket string) *Log[T] {
	return &Log[T]{backend: b, bucket: bucket}
}

func logKey(i int) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], uint64(i))
	return k[:]
}

// Append adds v at the end of the log.
func (l *Log[T]) Append(v T) {
	raw, err := Encode(v)
	if err != nil {
		fail(l.bucket, "encode", err)
	}
	if err := l.backend.Set(l.bucket, logKey(l.Len()), raw); err != nil {
		fail(l.bucket, "set", err)
	}
}

// Get returns the entry at position i, or ok=false when out of range.
func (l *Log[T]) Get(i int) (T, bool) {
	var v T
	if i < 0 {
		return v, false
	}
	raw, ok, err := l.backend.Get(l.bucket, logKey(i))
	if err != nil {
		fail(l.bucket, "get", err)
	}
	if !ok {
		return v, false
	}
	if err := Decode(raw, &v); err != nil {
		fail(l.bucket, "decode", err)
	}
	return v, true
}

// Len returns the number of entries.
func (l *Log[T]) Len() int {
	n, err := l.backend.Len(l.bucket)
	if err != nil {
		fail(l.bucket, "len", err)
	}
	return n
}

// Items returns every entry in append order.
func (l *Log[T]) Items() []T {
	items := make([]T, 0, l.Len())
	err := l.backend.Scan(l.bucket, func(_, raw []byte) error {
		var v T
		if err := Decode(raw, &v); err != nil {
			return err
		}
		items = append(items, v)
		return nil
	})
	if err != nil {
		fail(l.bucket, "scan", err)
	}
	return items
}

// Replace swaps the whole log contents for items.
func (l *Log[T]) Replace(items []T) {
	if err := l.backend.Clear(l.bucket); err != nil {
		fail(l.bucket, "clear", err)
	}
	for _, v := range items {
		l.Append(v)
	}
}

// Retain keeps only the entries for which keep returns true, preserving
// relative order.
func (l *Log[T]) Retain(keep func(v T) bool) {
	kept := make([]T, 0, l.Len())
	for _, v := range l.Items() {
		if keep(v) {
			kept = append(kept, v)
		}
	}
	l.Replace(kept)
}
