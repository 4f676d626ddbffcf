/*
Package storage provides the key-value substrate of contract storage: keys and
items, persistent Store backends and copy-on-write Snapshot layers used by
nested execution contexts.
*/
package storage

import (
	"bytes"
	"errors"
	"slices"
	"sync"
)

// ErrKeyNotFound is returned by Store.Get for missing keys.
var ErrKeyNotFound = errors.New("key not found")

// Batch is a set of changes applied to the Store atomically. Deleted keys are
// stored as nil values in Puts or in Deletes.
type Batch struct {
	Puts    map[string][]byte
	Deletes map[string]struct{}
}

// NewBatch creates empty Batch.
func NewBatch() *Batch {
	return &Batch{
		Puts:    make(map[string][]byte),
		Deletes: make(map[string]struct{}),
	}
}

// Put adds key-value pair to the batch.
func (b *Batch) Put(k, v []byte) {
	delete(b.Deletes, string(k))
	b.Puts[string(k)] = bytes.Clone(v)
}

// Delete adds key removal to the batch.
func (b *Batch) Delete(k []byte) {
	delete(b.Puts, string(k))
	b.Deletes[string(k)] = struct{}{}
}

// Store is a persistent key-value storage. Implementations must be safe for
// concurrent use.
type Store interface {
	// Get returns value by key or ErrKeyNotFound.
	Get(key []byte) ([]byte, error)
	// Seek calls f for every pair with the key starting with prefix in
	// ascending (or descending if backwards is set) order of keys until f
	// returns false.
	Seek(prefix []byte, backwards bool, f func(k, v []byte) bool) error
	// PutBatch applies changes atomically.
	PutBatch(b *Batch) error
	// Close releases resources of the Store.
	Close() error
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mtx sync.RWMutex
	mem map[string][]byte
}

// NewMemoryStore creates empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{mem: make(map[string][]byte)}
}

// Get implements Store.
func (s *MemoryStore) Get(key []byte) ([]byte, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	v, ok := s.mem[string(key)]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return bytes.Clone(v), nil
}

// Seek implements Store.
func (s *MemoryStore) Seek(prefix []byte, backwards bool, f func(k, v []byte) bool) error {
	type kv struct{ k, v []byte }

	s.mtx.RLock()
	var res []kv
	for k, v := range s.mem {
		if bytes.HasPrefix([]byte(k), prefix) {
			res = append(res, kv{[]byte(k), bytes.Clone(v)})
		}
	}
	s.mtx.RUnlock()

	slices.SortFunc(res, func(a, b kv) int {
		if backwards {
			return bytes.Compare(b.k, a.k)
		}
		return bytes.Compare(a.k, b.k)
	})
	for i := range res {
		if !f(res[i].k, res[i].v) {
			break
		}
	}
	return nil
}

// PutBatch implements Store.
func (s *MemoryStore) PutBatch(b *Batch) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	for k := range b.Deletes {
		delete(s.mem, k)
	}
	for k, v := range b.Puts {
		s.mem[k] = bytes.Clone(v)
	}
	return nil
}

// Put stores single key-value pair.
func (s *MemoryStore) Put(k, v []byte) error {
	b := NewBatch()
	b.Put(k, v)
	return s.PutBatch(b)
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mtx.Lock()
	clear(s.mem)
	s.mtx.Unlock()
	return nil
}

// prefixUpperBound returns the smallest key greater than all keys starting
// with prefix, nil if there is no such key.
func prefixUpperBound(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
