/*
Package state contains records of deployed contracts kept in the contract
management storage.
*/
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/crypto/hash"
	"github.com/nspcc-dev/neo-go/pkg/io"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/manifest"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/emit"
	"github.com/nspcc-dev/neo-go/pkg/vm/opcode"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/neoexec/nef"
)

// Contract holds information about a deployed smart contract.
type Contract struct {
	ID            int32             `json:"id"`
	UpdateCounter uint16            `json:"updatecounter"`
	Hash          util.Uint160      `json:"hash"`
	NEF           nef.File          `json:"nef"`
	Manifest      manifest.Manifest `json:"manifest"`
}

var errInvalidContract = errors.New("invalid contract stack item")

// ToStackItem implements stackitem.Convertible. Manifest is stored in its
// JSON form.
func (c *Contract) ToStackItem() (stackitem.Item, error) {
	rawNef, err := c.NEF.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encode NEF: %w", err)
	}
	rawManifest, err := json.Marshal(c.Manifest)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return stackitem.NewStruct([]stackitem.Item{
		stackitem.NewBigInteger(big.NewInt(int64(c.ID))),
		stackitem.NewBigInteger(big.NewInt(int64(c.UpdateCounter))),
		stackitem.NewByteArray(c.Hash.BytesBE()),
		stackitem.NewByteArray(rawNef),
		stackitem.NewByteArray(rawManifest),
	}), nil
}

// FromStackItem implements stackitem.Convertible.
func (c *Contract) FromStackItem(item stackitem.Item) error {
	arr, ok := item.Value().([]stackitem.Item)
	if !ok || len(arr) != 5 {
		return errInvalidContract
	}

	id, err := arr[0].TryInteger()
	if err != nil || !id.IsInt64() || id.Int64() < math.MinInt32 || id.Int64() > math.MaxInt32 {
		return fmt.Errorf("%w: invalid id", errInvalidContract)
	}
	cnt, err := arr[1].TryInteger()
	if err != nil || !cnt.IsInt64() || cnt.Int64() < 0 || cnt.Int64() > math.MaxUint16 {
		return fmt.Errorf("%w: invalid update counter", errInvalidContract)
	}
	rawHash, err := arr[2].TryBytes()
	if err != nil {
		return fmt.Errorf("%w: %w", errInvalidContract, err)
	}
	h, err := util.Uint160DecodeBytesBE(rawHash)
	if err != nil {
		return fmt.Errorf("%w: %w", errInvalidContract, err)
	}
	rawNef, err := arr[3].TryBytes()
	if err != nil {
		return fmt.Errorf("%w: %w", errInvalidContract, err)
	}
	f, err := nef.FileFromBytes(rawNef)
	if err != nil {
		return fmt.Errorf("decode NEF: %w", err)
	}
	rawManifest, err := arr[4].TryBytes()
	if err != nil {
		return fmt.Errorf("%w: %w", errInvalidContract, err)
	}
	var m manifest.Manifest
	err = json.Unmarshal(rawManifest, &m)
	if err != nil {
		return fmt.Errorf("decode manifest: %w", err)
	}

	c.ID = int32(id.Int64())
	c.UpdateCounter = uint16(cnt.Int64())
	c.Hash = h
	c.NEF = f
	c.Manifest = m
	return nil
}

// CreateContractHash creates deployed contract hash from transaction sender,
// NEF checksum and contract name.
func CreateContractHash(sender util.Uint160, checksum uint32, name string) util.Uint160 {
	w := io.NewBufBinWriter()
	emit.Opcodes(w.BinWriter, opcode.ABORT)
	emit.Bytes(w.BinWriter, sender.BytesBE())
	emit.Int(w.BinWriter, int64(checksum))
	emit.String(w.BinWriter, name)
	if w.Err != nil {
		panic(w.Err)
	}
	return hash.Hash160(w.Bytes())
}

// CreateNativeContractHash calculates the hash for the native contract with
// the given name.
func CreateNativeContractHash(name string) util.Uint160 {
	return CreateContractHash(util.Uint160{}, 0, name)
}
