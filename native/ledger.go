package native

import (
	"fmt"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/neoexec/codec"
	"github.com/nspcc-dev/neoexec/storage"
)

const prefixTransaction = 11

// Ledger provides persisted transactions.
type Ledger struct{}

func transactionKey(h util.Uint256) storage.Key {
	return key(LedgerID, prefixTransaction, h.BytesBE())
}

// GetTransaction implements engine.Ledger.
func (l *Ledger) GetTransaction(s *storage.Snapshot, h util.Uint256) (*transaction.Transaction, error) {
	tx, _, err := l.GetTransactionWithHeight(s, h)
	return tx, err
}

// GetTransactionWithHeight returns the transaction and the index of its
// block, nil if there is no such transaction.
func (l *Ledger) GetTransactionWithHeight(s *storage.Snapshot, h util.Uint256) (*transaction.Transaction, uint32, error) {
	raw, err := getBytes(s, transactionKey(h))
	if err != nil || raw == nil {
		return nil, 0, err
	}
	item, err := codec.Deserialize(raw)
	if err != nil {
		return nil, 0, fmt.Errorf("decode transaction %s: %w", h.StringLE(), err)
	}
	arr, ok := item.Value().([]stackitem.Item)
	if !ok || len(arr) != 2 {
		return nil, 0, fmt.Errorf("decode transaction %s: invalid record", h.StringLE())
	}
	height, err := arr[0].TryInteger()
	if err != nil || !height.IsUint64() || height.Uint64() > 0xffffffff {
		return nil, 0, fmt.Errorf("decode transaction %s: invalid height", h.StringLE())
	}
	b, err := arr[1].TryBytes()
	if err != nil {
		return nil, 0, fmt.Errorf("decode transaction %s: %w", h.StringLE(), err)
	}
	tx, err := transaction.NewTransactionFromBytes(b)
	if err != nil {
		return nil, 0, fmt.Errorf("decode transaction %s: %w", h.StringLE(), err)
	}
	return tx, uint32(height.Uint64()), nil
}

// PutTransaction stores the transaction included into the block.
func (l *Ledger) PutTransaction(s *storage.Snapshot, tx *transaction.Transaction, height uint32) error {
	raw, err := codec.Serialize(stackitem.NewStruct([]stackitem.Item{
		stackitem.NewBigInteger(big.NewInt(int64(height))),
		stackitem.NewByteArray(tx.Bytes()),
	}))
	if err != nil {
		return err
	}
	return s.Put(transactionKey(tx.Hash()), storage.NewItem(raw))
}
