/*
Package fee contains the fee model of the execution engine: static opcode
prices, fee units and resource costs.

Fees are accumulated in pico-GAS, a unit FeeFactor times finer than datoshi
which is the unit visible to callers. Conversion to datoshi rounds consumed
amounts up and remaining amounts down.
*/
package fee

import (
	"errors"
	"math"
	"math/bits"
)

// FeeFactor is the number of pico-GAS units in one datoshi.
const FeeFactor = 10000

// GASFactor is the number of datoshi in one GAS.
const GASFactor = 100000000

const (
	// DefaultExecFeeFactor is the genesis execution fee factor.
	DefaultExecFeeFactor = 30
	// DefaultStoragePrice is the genesis price of one storage byte in datoshi.
	DefaultStoragePrice = 100000
	// DefaultMemoryFeeFactor is the genesis price of one byte of memory in
	// datoshi.
	DefaultMemoryFeeFactor = 0
	// CheckSigPrice is the price of a single signature check in execution fee
	// factor units.
	CheckSigPrice = 1 << 15
)

// ErrOverflow is returned when fee arithmetic doesn't fit into 64 bits.
var ErrOverflow = errors.New("fee overflow")

// ToDatoshi converts pico-GAS amount into datoshi rounding up.
func ToDatoshi(pico int64) int64 {
	if pico <= 0 {
		return pico / FeeFactor
	}
	return (pico + FeeFactor - 1) / FeeFactor
}

// ToDatoshiFloor converts pico-GAS amount into datoshi rounding down.
func ToDatoshiFloor(pico int64) int64 {
	return pico / FeeFactor
}

// FromDatoshi converts datoshi amount into pico-GAS. It fails if the result
// doesn't fit into int64.
func FromDatoshi(datoshi int64) (int64, error) {
	if datoshi > math.MaxInt64/FeeFactor || datoshi < math.MinInt64/FeeFactor {
		return 0, ErrOverflow
	}
	return datoshi * FeeFactor, nil
}

// ResourceCost is a generic amount of resources consumed by some operation.
type ResourceCost struct {
	// CPU is measured in execution fee factor units.
	CPU uint64
	// Memory is measured in bytes.
	Memory uint64
	// Storage is measured in bytes.
	Storage uint64
}

// Add returns the sum of two costs. It fails on any component overflow.
func (c ResourceCost) Add(other ResourceCost) (ResourceCost, error) {
	var (
		res   ResourceCost
		carry uint64
		ovf   uint64
	)
	res.CPU, carry = bits.Add64(c.CPU, other.CPU, 0)
	ovf |= carry
	res.Memory, carry = bits.Add64(c.Memory, other.Memory, 0)
	ovf |= carry
	res.Storage, carry = bits.Add64(c.Storage, other.Storage, 0)
	ovf |= carry
	if ovf != 0 {
		return ResourceCost{}, ErrOverflow
	}
	return res, nil
}

// Datoshi converts the cost into datoshi using given factors.
func (c ResourceCost) Datoshi(execFeeFactor, memoryFeeFactor, storagePrice uint64) (int64, error) {
	var total uint64
	for _, p := range [...][2]uint64{
		{c.CPU, execFeeFactor},
		{c.Memory, memoryFeeFactor},
		{c.Storage, storagePrice},
	} {
		hi, lo := bits.Mul64(p[0], p[1])
		if hi != 0 {
			return 0, ErrOverflow
		}
		var carry uint64
		total, carry = bits.Add64(total, lo, 0)
		if carry != 0 {
			return 0, ErrOverflow
		}
	}
	if total > math.MaxInt64 {
		return 0, ErrOverflow
	}
	return int64(total), nil
}

// StorageWriteCost returns the number of storage bytes to be paid for
// replacing oldValue with newValue. isNew marks keys absent before the write.
func StorageWriteCost(keyLen int, oldValue []byte, isNew bool, newValue []byte) int64 {
	var (
		oldLen = int64(len(oldValue))
		newLen = int64(len(newValue))
	)
	switch {
	case isNew:
		return int64(keyLen) + newLen
	case newLen == 0:
		return 0
	case newLen <= oldLen:
		return (newLen-1)/4 + 1
	case oldLen == 0:
		return newLen
	default:
		return (oldLen-1)/4 + 1 + newLen - oldLen
	}
}
