// Package indexcache caches recovered offset tables between runs.
//
// Opening an unfinalized container costs a linear scan of the whole
// file. The cache keeps the scan result in a bolt database keyed by
// path, guarded by file size and modification time, so reopening the
// same crashed file is as cheap as a finalized one.
package indexcache

import (
	"encoding/binary"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const apiVersion = "1"

const defaultMaxKeys = 10000

// Cache is a persistent recovered-index cache.
type Cache struct {
	db      *bolt.DB
	maxKeys int
}

// Open opens or creates the cache database at dbPath.
func Open(dbPath string) (*Cache, error) {
	dbOpts := &bolt.Options{
		Timeout: 1 * time.Second,
	}

	db, err := bolt.Open(dbPath, 0o600, dbOpts)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w: %v", err, dbPath)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(apiVersion))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create bucket: %v, %w", apiVersion, err)
	}

	return &Cache{db: db, maxKeys: defaultMaxKeys}, nil
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the cached offset table blob for the container at path.
// A record made for a different size or modification time is stale and
// reported as missing.
func (c *Cache) Get(path string, size int64, modTime time.Time) ([]byte, bool) {
	var blob []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket([]byte(apiVersion)).Get([]byte(path))
		if value == nil {
			return nil
		}

		stamp, cached := decodeValue(value)
		if stamp != encodeStamp(size, modTime) {
			return nil
		}

		// The slice is only valid inside the transaction.
		blob = make([]byte, len(cached))
		copy(blob, cached)
		return nil
	})
	if err != nil || blob == nil {
		return nil, false
	}
	return blob, true
}

// Put stores the offset table blob for the container at path,
// replacing any previous record.
func (c *Cache) Put(path string, size int64, modTime time.Time, blob []byte) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(apiVersion))

		if b.Stats().KeyN >= c.maxKeys {
			if err := deleteFirstKey(b); err != nil {
				return fmt.Errorf("delete first key: %w", err)
			}
		}

		return b.Put([]byte(path), encodeValue(size, modTime, blob))
	})
}

func deleteFirstKey(b *bolt.Bucket) error {
	key, _ := b.Cursor().First()
	return b.Delete(key)
}

type stamp [16]byte

func encodeStamp(size int64, modTime time.Time) stamp {
	var s stamp
	binary.BigEndian.PutUint64(s[0:8], uint64(size))
	binary.BigEndian.PutUint64(s[8:16], uint64(modTime.UnixNano()))
	return s
}

func encodeValue(size int64, modTime time.Time, blob []byte) []byte {
	s := encodeStamp(size, modTime)
	value := make([]byte, 16+len(blob))
	copy(value[0:16], s[:])
	copy(value[16:], blob)
	return value
}

func decodeValue(value []byte) (stamp, []byte) {
	var s stamp
	if len(value) < 16 {
		return s, nil
	}
	copy(s[:], value[0:16])
	return s, value[16:]
}
