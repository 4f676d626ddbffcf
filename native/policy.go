package native

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neoexec/fee"
	"github.com/nspcc-dev/neoexec/storage"
)

const (
	prefixBlockedAccount = 15
	prefixWhitelistFee   = 16
	prefixExecFeeFactor  = 18
	prefixStoragePrice   = 19
)

// Policy limits.
const (
	MaxExecFeeFactor = 100
	MaxStoragePrice  = 10000000
)

// Policy provides network policy values. Absent values are the defaults.
type Policy struct{}

var (
	execFeeFactorKey = key(PolicyID, prefixExecFeeFactor)
	storagePriceKey  = key(PolicyID, prefixStoragePrice)
)

func blockedKey(h util.Uint160) storage.Key {
	return key(PolicyID, prefixBlockedAccount, h.BytesBE())
}

func whitelistKey(h util.Uint160, method string, params int) storage.Key {
	return key(PolicyID, prefixWhitelistFee, h.BytesBE(),
		binary.BigEndian.AppendUint32(nil, uint32(params)), []byte(method))
}

func getUint32(s *storage.Snapshot, k storage.Key, def uint32) (uint32, error) {
	it, err := s.TryGet(k)
	if err != nil || it == nil {
		return def, err
	}
	n, err := it.Int()
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() || n.Uint64() > 0xffffffff {
		return 0, fmt.Errorf("policy value %s is out of range", n)
	}
	return uint32(n.Uint64()), nil
}

func setBounded(s *storage.Snapshot, k storage.Key, v, maxV uint32) error {
	if v == 0 || v > maxV {
		return fmt.Errorf("value %d is out of range [1, %d]", v, maxV)
	}
	return s.Put(k, storage.NewIntItem(big.NewInt(int64(v))))
}

// GetExecFeeFactor implements engine.Policy.
func (p *Policy) GetExecFeeFactor(s *storage.Snapshot) (uint32, error) {
	return getUint32(s, execFeeFactorKey, fee.DefaultExecFeeFactor)
}

// SetExecFeeFactor stores execution fee factor.
func (p *Policy) SetExecFeeFactor(s *storage.Snapshot, v uint32) error {
	return setBounded(s, execFeeFactorKey, v, MaxExecFeeFactor)
}

// GetStoragePrice implements engine.Policy.
func (p *Policy) GetStoragePrice(s *storage.Snapshot) (uint32, error) {
	return getUint32(s, storagePriceKey, fee.DefaultStoragePrice)
}

// SetStoragePrice stores the price of a storage byte.
func (p *Policy) SetStoragePrice(s *storage.Snapshot, v uint32) error {
	return setBounded(s, storagePriceKey, v, MaxStoragePrice)
}

// IsBlocked implements engine.Policy.
func (p *Policy) IsBlocked(s *storage.Snapshot, h util.Uint160) (bool, error) {
	it, err := s.TryGet(blockedKey(h))
	return it != nil, err
}

// BlockAccount adds the account to the block list.
func (p *Policy) BlockAccount(s *storage.Snapshot, h util.Uint160) error {
	return s.Put(blockedKey(h), storage.NewItem(nil))
}

// UnblockAccount removes the account from the block list.
func (p *Policy) UnblockAccount(s *storage.Snapshot, h util.Uint160) error {
	return s.Delete(blockedKey(h))
}

// GetWhitelistFee implements engine.Policy.
func (p *Policy) GetWhitelistFee(s *storage.Snapshot, h util.Uint160, method string, params int) (int64, bool, error) {
	it, err := s.TryGet(whitelistKey(h, method, params))
	if err != nil || it == nil {
		return 0, false, err
	}
	n, err := it.Int()
	if err != nil {
		return 0, false, err
	}
	if !n.IsInt64() {
		return 0, false, fmt.Errorf("whitelist fee %s is out of range", n)
	}
	return n.Int64(), true, nil
}

// SetWhitelistFee fixes the fee of the contract method call. Execution of
// the method itself is not charged then.
func (p *Policy) SetWhitelistFee(s *storage.Snapshot, h util.Uint160, method string, params int, datoshi int64) error {
	if datoshi < 0 {
		return fmt.Errorf("negative whitelist fee %d", datoshi)
	}
	return s.Put(whitelistKey(h, method, params), storage.NewIntItem(big.NewInt(datoshi)))
}

// RemoveWhitelistFee removes the fixed fee of the method.
func (p *Policy) RemoveWhitelistFee(s *storage.Snapshot, h util.Uint160, method string, params int) error {
	return s.Delete(whitelistKey(h, method, params))
}
