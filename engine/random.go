package engine

import (
	"encoding/binary"
	"math/big"
	"slices"

	"github.com/nspcc-dev/neoexec/config"
	"github.com/twmb/murmur3"
)

// Prices of System.Runtime.GetRandom in execution fee factor units.
const (
	randomPrice       = 1 << 13
	legacyRandomPrice = 1 << 4
)

// initNonce derives the execution nonce from the container hash and the
// persisting block nonce.
func (e *Engine) initNonce() {
	if e.container != nil {
		h := e.container.Hash()
		copy(e.nonce[:], h.BytesBE())
	}
	if e.block != nil {
		n := binary.LittleEndian.Uint64(e.nonce[:8]) ^ e.block.Nonce
		binary.LittleEndian.PutUint64(e.nonce[:8], n)
	}
}

func murmur128(data []byte, seed uint32) []byte {
	h1, h2 := murmur3.SeedSum128(uint64(seed), uint64(seed), data)
	res := make([]byte, 16)
	binary.LittleEndian.PutUint64(res, h1)
	binary.LittleEndian.PutUint64(res[8:], h2)
	return res
}

// GetRandom returns the next pseudo-random number of the execution and
// charges for it. The sequence is determined by the container, the block and
// the network.
func (e *Engine) GetRandom() (*big.Int, error) {
	var (
		buf   []byte
		price int64
	)
	network := uint32(e.settings.Magic)
	if e.IsHardforkEnabled(config.HFAspidochelone) {
		buf = murmur128(e.nonce[:], network+e.randomTimes)
		e.randomTimes++
		price = randomPrice
	} else {
		buf = murmur128(e.nonce[:], network)
		copy(e.nonce[:], buf)
		price = legacyRandomPrice
	}
	if err := e.AddFee(price * e.execFeeFactor); err != nil {
		return nil, err
	}
	slices.Reverse(buf)
	return new(big.Int).SetBytes(buf), nil
}
