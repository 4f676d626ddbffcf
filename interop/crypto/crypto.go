/*
Package crypto provides System.Crypto.* interop services.
*/
package crypto

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/crypto/hash"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/neoexec/crypto"
	"github.com/nspcc-dev/neoexec/engine"
	"github.com/nspcc-dev/neoexec/fee"
	"github.com/nspcc-dev/neoexec/scripts"
)

// ErrInvalidMultisig is returned for empty key or signature lists and for
// more signatures than keys.
var ErrInvalidMultisig = errors.New("invalid multisig parameters")

// SignData returns the data signed by witnesses of the container: network
// magic followed by the container hash.
func SignData(e *engine.Engine) []byte {
	c := e.Container()
	if c == nil {
		return nil
	}
	h := c.Hash()
	res := make([]byte, 4, 4+len(h))
	binary.LittleEndian.PutUint32(res, uint32(e.Settings().Magic))
	return append(res, h.BytesBE()...)
}

// SignDigest returns the hash of SignData made with h. SHA256 digest is the
// network-specific container hash.
func SignDigest(e *engine.Engine, h crypto.Hash) ([]byte, error) {
	c := e.Container()
	if c == nil {
		return nil, errors.New("no script container")
	}
	if h == crypto.SHA256 {
		d := hash.NetSha256(uint32(e.Settings().Magic), c)
		return d.BytesBE(), nil
	}
	return h.Digest(SignData(e))
}

func selectors(curveItem, hashItem stackitem.Item) (crypto.Curve, crypto.Hash, bool) {
	c, err1 := engine.ToInt64(curveItem)
	h, err2 := engine.ToInt64(hashItem)
	if err1 != nil || err2 != nil || c < 0 || c > 0xff || h < 0 || h > 0xff {
		return 0, 0, false
	}
	curve, hf := crypto.Curve(c), crypto.Hash(h)
	return curve, hf, curve.Valid() && hf.Valid()
}

func checkSig(e *engine.Engine, pubItem, sigItem stackitem.Item, c crypto.Curve, h crypto.Hash) (stackitem.Item, error) {
	pub, err := engine.ToBytes(pubItem)
	if err != nil {
		return stackitem.NewBool(false), nil
	}
	sig, err := engine.ToBytes(sigItem)
	if err != nil {
		return stackitem.NewBool(false), nil
	}
	digest, err := SignDigest(e, h)
	if err != nil {
		return stackitem.NewBool(false), nil
	}
	return stackitem.NewBool(crypto.VerifyDigest(digest, sig, pub, c)), nil
}

// CheckSig verifies secp256r1 signature of the container.
func CheckSig(e *engine.Engine, args []stackitem.Item) (stackitem.Item, error) {
	return checkSig(e, args[0], args[1], crypto.Secp256r1, crypto.SHA256)
}

// CheckSigV2 verifies signature of the container made on the selected curve
// with the selected hash function.
func CheckSigV2(e *engine.Engine, args []stackitem.Item) (stackitem.Item, error) {
	c, h, ok := selectors(args[0], args[1])
	if !ok {
		return stackitem.NewBool(false), nil
	}
	return checkSig(e, args[2], args[3], c, h)
}

func toBytesList(item stackitem.Item) ([][]byte, error) {
	arr, err := engine.ToArray(item)
	if err != nil {
		return nil, err
	}
	res := make([][]byte, len(arr))
	for i := range arr {
		if res[i], err = engine.ToBytes(arr[i]); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func checkMultisig(e *engine.Engine, pubItem, sigItem stackitem.Item, c crypto.Curve, h crypto.Hash, valid bool) (stackitem.Item, error) {
	pubs, err := toBytesList(pubItem)
	if err != nil {
		return nil, err
	}
	sigs, err := toBytesList(sigItem)
	if err != nil {
		return nil, err
	}
	n, m := len(pubs), len(sigs)
	if n == 0 || m == 0 || m > n {
		return nil, fmt.Errorf("%w: %d of %d", ErrInvalidMultisig, m, n)
	}
	if err := e.AddFee(fee.CheckSigPrice * int64(n) * e.ExecFeeFactor()); err != nil {
		return nil, err
	}
	if !valid {
		return stackitem.NewBool(false), nil
	}
	digest, err := SignDigest(e, h)
	if err != nil {
		return stackitem.NewBool(false), nil
	}
	ok := scripts.VerifyOrdered(pubs, sigs, func(pub, sig []byte) bool {
		return crypto.VerifyDigest(digest, sig, pub, c)
	})
	return stackitem.NewBool(ok), nil
}

// CheckMultisig verifies m-of-n secp256r1 signatures of the container.
// Signatures must follow the order of keys.
func CheckMultisig(e *engine.Engine, args []stackitem.Item) (stackitem.Item, error) {
	return checkMultisig(e, args[0], args[1], crypto.Secp256r1, crypto.SHA256, true)
}

// CheckMultisigV2 is CheckMultisig with curve and hash selectors.
func CheckMultisigV2(e *engine.Engine, args []stackitem.Item) (stackitem.Item, error) {
	c, h, ok := selectors(args[0], args[1])
	return checkMultisig(e, args[2], args[3], c, h, ok)
}
