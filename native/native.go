/*
Package native implements the queries of native contracts used by the engine
over contract storage. Records use the native storage layout: contract ID and
a single-byte prefix followed by the record key.
*/
package native

import (
	"errors"

	"github.com/nspcc-dev/neoexec/engine"
	"github.com/nspcc-dev/neoexec/state"
	"github.com/nspcc-dev/neoexec/storage"
)

// Native contract IDs.
const (
	ManagementID int32 = -1
	LedgerID     int32 = -4
	PolicyID     int32 = -7
	OracleID     int32 = -9
)

// Native contract names.
const (
	ManagementName = "ContractManagement"
	LedgerName     = "LedgerContract"
	PolicyName     = "PolicyContract"
	OracleName     = "OracleContract"
)

// Hashes of native contracts.
var (
	ManagementHash = state.CreateNativeContractHash(ManagementName)
	LedgerHash     = state.CreateNativeContractHash(LedgerName)
	PolicyHash     = state.CreateNativeContractHash(PolicyName)
	OracleHash     = state.CreateNativeContractHash(OracleName)
)

// ErrNotFound is returned by native queries for missing records.
var ErrNotFound = errors.New("record not found")

// Contracts is a set of storage-backed natives.
type Contracts struct {
	Management *Management
	Ledger     *Ledger
	Policy     *Policy
	Oracle     *Oracle
}

// New creates the natives. Management caches up to cacheSize decoded
// contracts.
func New(cacheSize int) (*Contracts, error) {
	m, err := NewManagement(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Contracts{
		Management: m,
		Ledger:     &Ledger{},
		Policy:     &Policy{},
		Oracle:     &Oracle{},
	}, nil
}

// Natives returns the engine view of the contracts.
func (c *Contracts) Natives() engine.Natives {
	return engine.Natives{
		Policy:     c.Policy,
		Management: c.Management,
		Ledger:     c.Ledger,
		Oracle:     c.Oracle,
	}
}

func key(id int32, prefix byte, rest ...[]byte) storage.Key {
	k := []byte{prefix}
	for _, r := range rest {
		k = append(k, r...)
	}
	return storage.Key{ID: id, Key: k}
}

func getBytes(s *storage.Snapshot, k storage.Key) ([]byte, error) {
	it, err := s.TryGet(k)
	if err != nil || it == nil {
		return nil, err
	}
	return it.Bytes()
}
