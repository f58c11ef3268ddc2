package store

import (
	"context"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

const bboltBucket = "guardian"

// Bbolt is a Backend over an embedded bbolt database.
type Bbolt struct {
	db *bolt.DB
}

// OpenBbolt opens (or creates) the database at path and ensures the bucket
// exists.
func OpenBbolt(path string) (*Bbolt, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open bbolt store %q: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bboltBucket))
		return err
	}); err != nil {
		db.Close() //nolint:errcheck // best-effort close on init failure
		return nil, fmt.Errorf("create bbolt bucket: %w", err)
	}
	return &Bbolt{db: db}, nil
}

func (b *Bbolt) Get(_ context.Context, key string) ([]byte, bool, error) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		bk := tx.Bucket([]byte(bboltBucket))
		if bk == nil {
			return nil
		}
		if v := bk.Get([]byte(key)); v != nil {
			// v is only valid inside the transaction.
			out = append([]byte{}, v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("bbolt get %s: %w", key, err)
	}
	return out, out != nil, nil
}

func (b *Bbolt) Put(_ context.Context, key string, value []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket([]byte(bboltBucket))
		if bk == nil {
			return fmt.Errorf("bucket %q not found", bboltBucket)
		}
		return bk.Put([]byte(key), value)
	})
}

func (b *Bbolt) Close() error { return b.db.Close() }
