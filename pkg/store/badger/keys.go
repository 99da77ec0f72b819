package badger

// Database Key Namespace Design
// ==============================
//
// BadgerDB is a flat key-value store, so logical buckets are carved out with
// key prefixes. Every entry for bucket B with key K is stored under:
//
//	b:<bucket>\x00<key>
//
// The NUL separator cannot appear in bucket names (they are fixed ASCII
// identifiers chosen at compile time), so prefixes never collide: bucket
// "files" can never shadow bucket "files_index".
//
// Because Badger keeps keys in ascending byte order, iterating a bucket
// prefix yields entries sorted by their raw key bytes. The typed views
// above this backend rely on that ordering for stable pagination cursors
// and for append-order log replay.

const bucketMarker = "b:"

// bucketPrefix returns the key prefix holding every entry of bucket.
func bucketPrefix(bucket string) []byte {
	p := make([]byte, 0, len(bucketMarker)+len(bucket)+1)
	p = append(p, bucketMarker...)
	p = append(p, bucket...)
	p = append(p, 0)
	return p
}

// entryKey returns the full database key for key within bucket.
func entryKey(bucket string, key []byte) []byte {
	p := bucketPrefix(bucket)
	return append(p, key...)
}
