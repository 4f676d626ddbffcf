package witness

import (
	"errors"
	"fmt"
	"strings"

	json "github.com/nspcc-dev/go-ordered-json"
	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// TransactionType is the container type name of transactions in the JSON
// form of the context.
const TransactionType = "Neo.Network.P2P.Payloads.Transaction"

var (
	errUnsupportedType = errors.New("unsupported container type")
	errHashMismatch    = errors.New("container hash mismatch")
)

// Transaction is a transaction verified by accounts of its signers.
type Transaction struct {
	*transaction.Transaction
}

// ScriptHashes returns accounts of the signers.
func (t Transaction) ScriptHashes() []util.Uint160 {
	res := make([]util.Uint160, len(t.Signers))
	for i := range t.Signers {
		res[i] = t.Signers[i].Account
	}
	return res
}

// unsignedBytes encodes the transaction with empty witnesses.
func (t Transaction) unsignedBytes() []byte {
	tx := *t.Transaction
	tx.Scripts = make([]transaction.Witness, len(tx.Signers))
	return tx.Bytes()
}

type (
	contextJSON struct {
		Type    string              `json:"type"`
		Hash    string              `json:"hash"`
		Data    []byte              `json:"data"`
		Items   map[string]itemJSON `json:"items"`
		Network uint32              `json:"network"`
	}

	itemJSON struct {
		Script     []byte                    `json:"script"`
		Parameters []smartcontract.Parameter `json:"parameters"`
		Signatures map[string][]byte         `json:"signatures"`
	}
)

// MarshalJSON implements json.Marshaler. Only transaction contexts can be
// encoded.
func (c *ParametersContext) MarshalJSON() ([]byte, error) {
	tx, ok := c.Verifiable.(Transaction)
	if !ok {
		return nil, fmt.Errorf("%w: %T", errUnsupportedType, c.Verifiable)
	}
	v := contextJSON{
		Type:    TransactionType,
		Hash:    "0x" + tx.Hash().StringLE(),
		Data:    tx.unsignedBytes(),
		Items:   make(map[string]itemJSON, len(c.Items)),
		Network: c.Network,
	}
	for h, it := range c.Items {
		v.Items["0x"+h.StringLE()] = itemJSON{
			Script:     it.Script,
			Parameters: it.Parameters,
			Signatures: it.Signatures,
		}
	}
	return json.Marshal(v)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *ParametersContext) UnmarshalJSON(data []byte) error {
	var v contextJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v.Type != TransactionType {
		return fmt.Errorf("%w: %s", errUnsupportedType, v.Type)
	}
	tx, err := transaction.NewTransactionFromBytes(v.Data)
	if err != nil {
		return fmt.Errorf("decode transaction: %w", err)
	}
	if v.Hash != "" {
		h, err := util.Uint256DecodeStringLE(strings.TrimPrefix(v.Hash, "0x"))
		if err != nil {
			return fmt.Errorf("decode hash: %w", err)
		}
		if !h.Equals(tx.Hash()) {
			return fmt.Errorf("%w: %s", errHashMismatch, v.Hash)
		}
	}
	items := make(map[util.Uint160]*Item, len(v.Items))
	for k, it := range v.Items {
		h, err := util.Uint160DecodeStringLE(strings.TrimPrefix(k, "0x"))
		if err != nil {
			return fmt.Errorf("decode script hash %q: %w", k, err)
		}
		sigs := it.Signatures
		if sigs == nil {
			sigs = make(map[string][]byte)
		}
		items[h] = &Item{
			Script:     it.Script,
			Parameters: it.Parameters,
			Signatures: sigs,
		}
	}
	c.Network = v.Network
	c.Verifiable = Transaction{tx}
	c.Items = items
	return nil
}
