package storage

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

// BoltDBOptions configures BoltDBStore.
type BoltDBOptions struct {
	FilePath string
	ReadOnly bool
}

var bucket = []byte("DB")

// BoltDBStore is a Store backed by BoltDB.
type BoltDBStore struct {
	db *bbolt.DB
}

// NewBoltDBStore opens (creating if needed) BoltDB database file.
func NewBoltDBStore(cfg BoltDBOptions) (*BoltDBStore, error) {
	if !cfg.ReadOnly {
		err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0700)
		if err != nil {
			return nil, fmt.Errorf("create BoltDB directory: %w", err)
		}
	}

	db, err := bbolt.Open(cfg.FilePath, 0600, &bbolt.Options{
		Timeout:  time.Second,
		ReadOnly: cfg.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("open BoltDB at '%s': %w", cfg.FilePath, err)
	}

	if !cfg.ReadOnly {
		err = db.Update(func(tx *bbolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(bucket)
			return err
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create BoltDB bucket: %w", err)
		}
	}

	return &BoltDBStore{db: db}, nil
}

// Get implements Store.
func (s *BoltDBStore) Get(key []byte) ([]byte, error) {
	var val []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return ErrKeyNotFound
		}
		v := b.Get(key)
		if v == nil {
			return ErrKeyNotFound
		}
		val = bytes.Clone(v)
		return nil
	})
	return val, err
}

// Seek implements Store.
func (s *BoltDBStore) Seek(prefix []byte, backwards bool, f func(k, v []byte) bool) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		c := b.Cursor()

		var k, v []byte
		if backwards {
			end := prefixUpperBound(prefix)
			if end == nil {
				k, v = c.Last()
			} else if k, v = c.Seek(end); k == nil {
				k, v = c.Last()
			} else {
				k, v = c.Prev()
			}
			for ; k != nil && bytes.HasPrefix(k, prefix); k, v = c.Prev() {
				if !f(bytes.Clone(k), bytes.Clone(v)) {
					break
				}
			}
			return nil
		}

		for k, v = c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if !f(bytes.Clone(k), bytes.Clone(v)) {
				break
			}
		}
		return nil
	})
}

// PutBatch implements Store.
func (s *BoltDBStore) PutBatch(batch *Batch) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		for k := range batch.Deletes {
			if err := b.Delete([]byte(k)); err != nil {
				return err
			}
		}
		for k, v := range batch.Puts {
			if err := b.Put([]byte(k), v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close implements Store.
func (s *BoltDBStore) Close() error {
	return s.db.Close()
}
