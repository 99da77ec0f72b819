// Package badger implements a persistent store backend on BadgerDB.
//
// Each logical bucket maps to a key prefix in a single Badger database (see
// keys.go for the key layout). BadgerDB keeps keys sorted, so bucket scans
// are prefix iterations and come back in ascending byte order for free.
package badger

import (
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

// Backend is a store backend persisted in a BadgerDB database.
//
// BadgerDB transactions give each operation atomicity; the backend itself
// adds no locking because Badger is safe for concurrent use.
type Backend struct {
	db *badger.DB
}

// Config contains configuration for opening a Badger backend.
type Config struct {
	// Path is the directory where the database files live.
	Path string

	// SyncWrites forces an fsync after every write. Slower but loses no
	// acknowledged mutation on a crash.
	SyncWrites bool

	// ValueLogGC enables the periodic value-log garbage collection loop.
	ValueLogGC bool
}

// Open opens (or creates) a Badger backend at config.Path.
func Open(config Config) (*Backend, error) {
	opts := badger.DefaultOptions(config.Path).
		WithSyncWrites(config.SyncWrites).
		WithCompression(options.ZSTD).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger database at %s: %w", config.Path, err)
	}

	b := &Backend{db: db}
	if config.ValueLogGC {
		go b.runValueLogGC()
	}
	return b, nil
}

// runValueLogGC periodically reclaims value-log space. Badger returns
// ErrNoRewrite when there is nothing to collect, which is not a failure.
func (b *Backend) runValueLogGC() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		for {
			if err := b.db.RunValueLogGC(0.5); err != nil {
				break
			}
		}
	}
}

// Get returns the value stored under key in bucket.
func (b *Backend) Get(bucket string, key []byte) ([]byte, bool, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(entryKey(bucket, key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("badger get %s: %w", bucket, err)
	}
	return value, true, nil
}

// Set stores value under key in bucket.
func (b *Backend) Set(bucket string, key, value []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(bucket, key), value)
	})
	if err != nil {
		return fmt.Errorf("badger set %s: %w", bucket, err)
	}
	return nil
}

// Delete removes key from bucket. Deleting an absent key is not an error.
func (b *Backend) Delete(bucket string, key []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(entryKey(bucket, key))
	})
	if err != nil {
		return fmt.Errorf("badger delete %s: %w", bucket, err)
	}
	return nil
}

// Scan calls fn for every entry in bucket in ascending byte order of keys.
func (b *Backend) Scan(bucket string, fn func(key, value []byte) error) error {
	prefix := bucketPrefix(bucket)
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)[len(prefix):]
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(key, value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badger scan %s: %w", bucket, err)
	}
	return nil
}

// Len returns the number of entries in bucket.
func (b *Backend) Len(bucket string) (int, error) {
	prefix := bucketPrefix(bucket)
	count := 0
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("badger len %s: %w", bucket, err)
	}
	return count, nil
}

// Clear removes every entry from bucket.
func (b *Backend) Clear(bucket string) error {
	prefix := bucketPrefix(bucket)
	// Collect first, then delete in batches: Badger forbids writes while an
	// iterator from the same transaction is open.
	var keys [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badger clear %s: %w", bucket, err)
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return fmt.Errorf("badger clear %s: %w", bucket, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("badger clear %s: %w", bucket, err)
	}
	return nil
}

// Close flushes and closes the underlying database.
func (b *Backend) Close() error {
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("closing badger database: %w", err)
	}
	return nil
}
