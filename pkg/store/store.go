// Package store provides the persistence contract for the tenant state
// engine: persistent cells, ordered maps, and append-only logs with
// byte-stable keys and self-describing binary values.
//
// Design:
//
// Every entity table in the engine is a Map keyed by a typed string ID,
// optionally paired with a Log that records insertion order for cursor
// pagination. Singletons (owner ID, state checksum, nonce counters) live in
// Cells. All three are thin typed views over a Backend, which is the only
// thing a storage implementation has to provide.
//
// Two backends ship with the repository:
//   - memory: plain in-process buckets; state survives restarts only through
//     the engine's snapshot blob.
//   - badger: BadgerDB-backed buckets with synchronous writes; state
//     survives restarts natively.
//
// Values are encoded with CBOR (RFC 8949), a self-describing binary format,
// so a value written under one backend round-trips identically under the
// other. Keys are raw UTF-8 bytes of the string key; scans are in ascending
// byte order, which makes whole-state serialization deterministic.
//
// Failure model:
//
// The engine processes each request to completion on a single goroutine and
// treats a storage fault mid-mutation as a violated invariant: typed views
// panic with a *Failure, the request bracket recovers it, drops the prestate
// handle, and surfaces an internal error. Backends that cannot fail (memory)
// never panic.
package store

// Backend is the byte-level contract a storage implementation provides.
//
// A bucket is an independent ordered key space, named by the store that owns
// it. Implementations must keep scans in ascending byte order of keys and
// must persist writes before returning (where the backend is persistent at
// all).
type Backend interface {
	// Get returns the value bytes for key in bucket, or ok=false when the
	// key is absent.
	Get(bucket string, key []byte) (value []byte, ok bool, err error)

	// Set writes the value bytes for key in bucket, overwriting any
	// previous value.
	Set(bucket string, key, value []byte) error

	// Delete removes key from bucket. Deleting an absent key is a no-op.
	Delete(bucket string, key []byte) error

	// Scan calls fn for every key in bucket in ascending byte order.
	// Returning an error from fn stops the scan and is returned as-is.
	Scan(bucket string, fn func(key, value []byte) error) error

	// Len returns the number of keys in bucket.
	Len(bucket string) (int, error)

	// Clear removes every key in bucket.
	Clear(bucket string) error

	// Close releases backend resources. The backend must not be used
	// afterwards.
	Close() error
}

// Failure is the panic payload raised by typed views when the backend
// reports an error. The request bracket recovers it and converts it into an
// internal error response.
type Failure struct {
	Bucket string
	Op     string
	Err    error
}

func (f *Failure) Error() string {
	return "store failure in bucket " + f.Bucket + " during " + f.Op + ": " + f.Err.Error()
}

func (f *Failure) Unwrap() error { return f.Err }

func fail(bucket, op string, err error) {
	panic(&Failure{Bucket: bucket, Op: op, Err: err})
}
