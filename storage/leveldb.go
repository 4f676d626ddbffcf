package storage

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	lvlerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	lvlutil "github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDBOptions configures LevelDBStore.
type LevelDBOptions struct {
	DataDirectoryPath string
	ReadOnly          bool
}

// LevelDBStore is a Store backed by LevelDB.
type LevelDBStore struct {
	db *leveldb.DB
}

// NewLevelDBStore opens (creating if needed) LevelDB database.
func NewLevelDBStore(cfg LevelDBOptions) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(cfg.DataDirectoryPath, &opt.Options{ReadOnly: cfg.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("open LevelDB at '%s': %w", cfg.DataDirectoryPath, err)
	}
	return &LevelDBStore{db: db}, nil
}

// Get implements Store.
func (s *LevelDBStore) Get(key []byte) ([]byte, error) {
	v, err := s.db.Get(key, nil)
	if errors.Is(err, lvlerrors.ErrNotFound) {
		return nil, ErrKeyNotFound
	}
	return v, err
}

// Seek implements Store.
func (s *LevelDBStore) Seek(prefix []byte, backwards bool, f func(k, v []byte) bool) error {
	iter := s.db.NewIterator(lvlutil.BytesPrefix(prefix), nil)
	defer iter.Release()

	var (
		ok   bool
		next func() bool
	)
	if backwards {
		ok, next = iter.Last(), iter.Prev
	} else {
		ok, next = iter.First(), iter.Next
	}
	for ; ok; ok = next() {
		if !f(bytes.Clone(iter.Key()), bytes.Clone(iter.Value())) {
			break
		}
	}
	return iter.Error()
}

// PutBatch implements Store.
func (s *LevelDBStore) PutBatch(b *Batch) error {
	batch := new(leveldb.Batch)
	for k := range b.Deletes {
		batch.Delete([]byte(k))
	}
	for k, v := range b.Puts {
		batch.Put([]byte(k), v)
	}
	return s.db.Write(batch, nil)
}

// Close implements Store.
func (s *LevelDBStore) Close() error {
	return s.db.Close()
}
