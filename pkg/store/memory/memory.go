// Package memory implements an in-memory store backend.
//
// All buckets live in ordinary Go maps protected by a single read-write
// mutex. Scans sort keys on every call, which is acceptable for the table
// sizes this backend is meant for (tests, development, and deployments that
// rely on snapshot export for durability).
package memory

import (
	"sort"
	"sync"
)

// Backend is an in-memory store backend.
//
// It is safe for concurrent use. Values are copied on the way in and out so
// callers can never alias the stored bytes.
type Backend struct {
	mu      sync.RWMutex
	buckets map[string]map[string][]byte
}

// New creates an empty in-memory backend.
func New() *Backend {
	return &Backend{buckets: make(map[string]map[string][]byte)}
}

func (b *Backend) bucket(name string) map[string][]byte {
	m, ok := b.buckets[name]
	if !ok {
		m = make(map[string][]byte)
		b.buckets[name] = m
	}
	return m
}

// Get returns the value stored under key in bucket.
func (b *Backend) Get(bucket string, key []byte) ([]byte, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	m, ok := b.buckets[bucket]
	if !ok {
		return nil, false, nil
	}
	v, ok := m[string(key)]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

// Set stores value under key in bucket.
func (b *Backend) Set(bucket string, key, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	v := make([]byte, len(value))
	copy(v, value)
	b.bucket(bucket)[string(key)] = v
	return nil
}

// Delete removes key from bucket. Deleting an absent key is not an error.
func (b *Backend) Delete(bucket string, key []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if m, ok := b.buckets[bucket]; ok {
		delete(m, string(key))
	}
	return nil
}

// Scan calls fn for every entry in bucket in ascending byte order of keys.
func (b *Backend) Scan(bucket string, fn func(key, value []byte) error) error {
	b.mu.RLock()
	m, ok := b.buckets[bucket]
	if !ok {
		b.mu.RUnlock()
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	// Copy entries out so fn can mutate the store without deadlocking.
	type entry struct {
		key   []byte
		value []byte
	}
	entries := make([]entry, 0, len(keys))
	for _, k := range keys {
		v := m[k]
		vc := make([]byte, len(v))
		copy(vc, v)
		entries = append(entries, entry{key: []byte(k), value: vc})
	}
	b.mu.RUnlock()

	for _, e := range entries {
		if err := fn(e.key, e.value); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of entries in bucket.
func (b *Backend) Len(bucket string) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.buckets[bucket]), nil
}

// Clear removes every entry from bucket.
func (b *Backend) Clear(bucket string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.buckets, bucket)
	return nil
}

// Close releases the backend. In-memory state is discarded.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buckets = make(map[string]map[string][]byte)
	return nil
}
