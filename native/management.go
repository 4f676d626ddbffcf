package native

import (
	"encoding/binary"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"github.com/nspcc-dev/neo-go/pkg/crypto/hash"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neoexec/codec"
	"github.com/nspcc-dev/neoexec/state"
	"github.com/nspcc-dev/neoexec/storage"
)

const (
	prefixContract     = 8
	prefixContractHash = 12
)

// Management provides contracts deployed into the storage. Decoded contracts
// are cached by the digest of their serialized form, so different snapshots
// never share stale records.
type Management struct {
	cache *lru.Cache
}

// NewManagement creates Management with the cache of the given size.
func NewManagement(cacheSize int) (*Management, error) {
	c, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("contract cache: %w", err)
	}
	return &Management{cache: c}, nil
}

func contractKey(h util.Uint160) storage.Key {
	return key(ManagementID, prefixContract, h.BytesBE())
}

func contractIDKey(id int32) storage.Key {
	return key(ManagementID, prefixContractHash, binary.BigEndian.AppendUint32(nil, uint32(id)))
}

// GetContract implements engine.Management.
func (m *Management) GetContract(s *storage.Snapshot, h util.Uint160) (*state.Contract, error) {
	raw, err := getBytes(s, contractKey(h))
	if err != nil || raw == nil {
		return nil, err
	}
	digest := hash.Sha256(raw)
	if c, ok := m.cache.Get(digest); ok {
		return c.(*state.Contract), nil
	}
	item, err := codec.Deserialize(raw)
	if err != nil {
		return nil, fmt.Errorf("decode contract %s: %w", h.StringLE(), err)
	}
	c := new(state.Contract)
	if err := c.FromStackItem(item); err != nil {
		return nil, fmt.Errorf("decode contract %s: %w", h.StringLE(), err)
	}
	m.cache.Add(digest, c)
	return c, nil
}

// GetContractByID returns the contract by its ID, nil if there is none.
func (m *Management) GetContractByID(s *storage.Snapshot, id int32) (*state.Contract, error) {
	raw, err := getBytes(s, contractIDKey(id))
	if err != nil || raw == nil {
		return nil, err
	}
	h, err := util.Uint160DecodeBytesBE(raw)
	if err != nil {
		return nil, fmt.Errorf("contract %d: %w", id, err)
	}
	return m.GetContract(s, h)
}

// PutContract stores the contract record and its ID index.
func (m *Management) PutContract(s *storage.Snapshot, c *state.Contract) error {
	item, err := c.ToStackItem()
	if err != nil {
		return err
	}
	raw, err := codec.Serialize(item)
	if err != nil {
		return fmt.Errorf("encode contract %s: %w", c.Hash.StringLE(), err)
	}
	if err := s.Put(contractKey(c.Hash), storage.NewItem(raw)); err != nil {
		return err
	}
	return s.Put(contractIDKey(c.ID), storage.NewItem(c.Hash.BytesBE()))
}

// DeleteContract removes the contract record and its ID index.
func (m *Management) DeleteContract(s *storage.Snapshot, h util.Uint160) error {
	c, err := m.GetContract(s, h)
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("%w: contract %s", ErrNotFound, h.StringLE())
	}
	if err := s.Delete(contractKey(h)); err != nil {
		return err
	}
	return s.Delete(contractIDKey(c.ID))
}

// ListContracts returns all deployed contracts ordered by ID.
func (m *Management) ListContracts(s *storage.Snapshot) ([]*state.Contract, error) {
	kvs, err := s.Find(ManagementID, []byte{prefixContractHash}, false)
	if err != nil {
		return nil, err
	}
	res := make([]*state.Contract, 0, len(kvs))
	for _, kv := range kvs {
		raw, err := kv.Item.Bytes()
		if err != nil {
			return nil, err
		}
		h, err := util.Uint160DecodeBytesBE(raw)
		if err != nil {
			return nil, fmt.Errorf("contract index %s: %w", kv.Key, err)
		}
		c, err := m.GetContract(s, h)
		if err != nil {
			return nil, err
		}
		if c != nil {
			res = append(res, c)
		}
	}
	return res, nil
}
