package storage

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
)

// ErrExists is returned on attempt to add already existing item.
var ErrExists = errors.New("item already exists")

// TrackState describes the change of a cached item relative to the parent.
type TrackState byte

// Track states.
const (
	// None means item is read from the parent and isn't changed.
	None TrackState = iota
	// Added means item is absent in the parent.
	Added
	// Changed means item exists in the parent and is modified.
	Changed
	// Deleted means item exists in the parent and is removed.
	Deleted
	// NotFound means item is absent both here and in the parent.
	NotFound
)

type trackable struct {
	item  *Item
	state TrackState
}

// KeyValue is a storage pair returned by Snapshot.Find.
type KeyValue struct {
	Key  Key
	Item *Item
}

type parent interface {
	get(k []byte) (*Item, error)
	find(prefix []byte) (map[string]*Item, error)
}

// Snapshot is a copy-on-write layer over either a Store or another Snapshot.
// Reads fall through to the parent and are cached, writes stay local until
// Commit. A Snapshot isn't safe for concurrent use.
type Snapshot struct {
	parent  parent
	entries map[string]*trackable
}

// NewSnapshot creates Snapshot over the Store.
func NewSnapshot(s Store) *Snapshot {
	return &Snapshot{
		parent:  storeParent{s},
		entries: make(map[string]*trackable),
	}
}

// Clone creates a child Snapshot layered over s.
func (s *Snapshot) Clone() *Snapshot {
	return &Snapshot{
		parent:  s,
		entries: make(map[string]*trackable),
	}
}

func (s *Snapshot) load(k []byte) (*trackable, error) {
	if t, ok := s.entries[string(k)]; ok {
		return t, nil
	}
	it, err := s.parent.get(k)
	if err != nil {
		return nil, err
	}
	t := &trackable{item: it, state: None}
	if it == nil {
		t.state = NotFound
	}
	s.entries[string(k)] = t
	return t, nil
}

func (s *Snapshot) get(k []byte) (*Item, error) {
	t, err := s.load(k)
	if err != nil || t.state == Deleted || t.state == NotFound {
		return nil, err
	}
	return t.item.Clone(), nil
}

// TryGet returns the item by key, nil if it doesn't exist. The returned item
// must not be modified, use GetAndChange for that.
func (s *Snapshot) TryGet(k Key) (*Item, error) {
	t, err := s.load(k.Bytes())
	if err != nil || t.state == Deleted || t.state == NotFound {
		return nil, err
	}
	return t.item, nil
}

// GetAndChange returns the item by key marking it as changed. If there is no
// such item and factory isn't nil, a new item created by factory is added.
// Otherwise nil is returned.
func (s *Snapshot) GetAndChange(k Key, factory func() *Item) (*Item, error) {
	t, err := s.load(k.Bytes())
	if err != nil {
		return nil, err
	}

	switch t.state {
	case None:
		t.state = Changed
	case Deleted, NotFound:
		if factory == nil {
			return nil, nil
		}
		t.item = factory()
		if t.state == Deleted {
			t.state = Changed
		} else {
			t.state = Added
		}
	}
	return t.item, nil
}

// Add adds new item, it fails with ErrExists if the key is present.
func (s *Snapshot) Add(k Key, it *Item) error {
	t, err := s.load(k.Bytes())
	if err != nil {
		return err
	}

	switch t.state {
	case Deleted:
		t.item, t.state = it, Changed
	case NotFound:
		t.item, t.state = it, Added
	default:
		return fmt.Errorf("%w: %s", ErrExists, k)
	}
	return nil
}

// Put adds or replaces the item.
func (s *Snapshot) Put(k Key, it *Item) error {
	t, err := s.load(k.Bytes())
	if err != nil {
		return err
	}

	switch t.state {
	case NotFound:
		t.state = Added
	case None, Deleted:
		t.state = Changed
	}
	t.item = it
	return nil
}

// Delete removes the item, missing keys are ignored.
func (s *Snapshot) Delete(k Key) error {
	t, err := s.load(k.Bytes())
	if err != nil {
		return err
	}

	switch t.state {
	case Added:
		t.item, t.state = nil, NotFound
	case None, Changed:
		t.item, t.state = nil, Deleted
	}
	return nil
}

func (s *Snapshot) find(prefix []byte) (map[string]*Item, error) {
	res, err := s.parent.find(prefix)
	if err != nil {
		return nil, err
	}
	for k, t := range s.entries {
		if !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		switch t.state {
		case Deleted, NotFound:
			delete(res, k)
		default:
			res[k] = t.item
		}
	}
	return res, nil
}

// Find returns all items with the key starting with the given prefix of the
// contract ordered by key ascending or descending.
func (s *Snapshot) Find(id int32, prefix []byte, backwards bool) ([]KeyValue, error) {
	items, err := s.find(CreateSearchPrefix(id, prefix))
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	if backwards {
		slices.Reverse(keys)
	}

	res := make([]KeyValue, 0, len(keys))
	for _, k := range keys {
		key, err := KeyFromBytes([]byte(k))
		if err != nil {
			return nil, err
		}
		res = append(res, KeyValue{Key: key, Item: items[k]})
	}
	return res, nil
}

// Changes returns number of changed keys.
func (s *Snapshot) Changes() int {
	var n int
	for _, t := range s.entries {
		if t.state != None && t.state != NotFound {
			n++
		}
	}
	return n
}

// Commit writes all changes into the parent. Items are sealed before being
// persisted into the Store. The Snapshot is empty after successful commit.
func (s *Snapshot) Commit() error {
	switch p := s.parent.(type) {
	case *Snapshot:
		for k, t := range s.entries {
			key, err := KeyFromBytes([]byte(k))
			if err != nil {
				return err
			}
			switch t.state {
			case Added, Changed:
				err = p.Put(key, t.item)
			case Deleted:
				err = p.Delete(key)
			}
			if err != nil {
				return err
			}
		}
	case storeParent:
		b := NewBatch()
		for k, t := range s.entries {
			switch t.state {
			case Added, Changed:
				if err := t.item.Seal(); err != nil {
					return fmt.Errorf("seal item %x: %w", k, err)
				}
				v, err := t.item.Bytes()
				if err != nil {
					return err
				}
				b.Put([]byte(k), v)
			case Deleted:
				b.Delete([]byte(k))
			}
		}
		if err := p.s.PutBatch(b); err != nil {
			return fmt.Errorf("write batch: %w", err)
		}
	}
	clear(s.entries)
	return nil
}

type storeParent struct {
	s Store
}

func (p storeParent) get(k []byte) (*Item, error) {
	v, err := p.s.Get(k)
	if errors.Is(err, ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return NewItem(v), nil
}

func (p storeParent) find(prefix []byte) (map[string]*Item, error) {
	res := make(map[string]*Item)
	err := p.s.Seek(prefix, false, func(k, v []byte) bool {
		res[string(k)] = NewItem(v)
		return true
	})
	return res, err
}
