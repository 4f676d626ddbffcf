/*
Package contract provides System.Contract.* interop services.
*/
package contract

import (
	"fmt"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/crypto/hash"
	"github.com/nspcc-dev/neo-go/pkg/crypto/keys"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/callflag"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/neoexec/config"
	"github.com/nspcc-dev/neoexec/crypto"
	"github.com/nspcc-dev/neoexec/engine"
	"github.com/nspcc-dev/neoexec/fee"
	"github.com/nspcc-dev/neoexec/scripts"
)

// legacyAccountPrice is charged for account creation before Aspidochelone.
const legacyAccountPrice = 1 << 8

// Call calls a public method of the deployed contract. The result is left
// on the caller stack when the callee returns.
func Call(e *engine.Engine, args []stackitem.Item) (stackitem.Item, error) {
	h, err := engine.ToUint160(args[0])
	if err != nil {
		return nil, err
	}
	method, err := engine.ToString(args[1])
	if err != nil {
		return nil, err
	}
	f, err := engine.ToInt64(args[2])
	if err != nil {
		return nil, err
	}
	if f < 0 || f > 0xff {
		return nil, fmt.Errorf("%w: %d", engine.ErrInvalidCallFlags, f)
	}
	params, err := engine.ToArray(args[3])
	if err != nil {
		return nil, err
	}
	return nil, e.CallContract(h, method, callflag.CallFlag(f), params)
}

// GetCallFlags returns call flags of the executing context.
func GetCallFlags(e *engine.Engine, _ []stackitem.Item) (stackitem.Item, error) {
	return stackitem.NewBigInteger(big.NewInt(int64(e.CurrentState().CallFlags))), nil
}

func accountPrice(e *engine.Engine, n int) int64 {
	if !e.IsHardforkEnabled(config.HFAspidochelone) {
		return legacyAccountPrice
	}
	return fee.CheckSigPrice * int64(n)
}

// CreateStandardAccount returns the hash of the signature contract of the
// key.
func CreateStandardAccount(e *engine.Engine, args []stackitem.Item) (stackitem.Item, error) {
	if err := e.AddFee(accountPrice(e, 1) * e.ExecFeeFactor()); err != nil {
		return nil, err
	}
	pub, err := engine.ToBytes(args[0])
	if err != nil {
		return nil, err
	}
	if _, err := crypto.DecodePublicKey(pub, crypto.Secp256r1); err != nil {
		return nil, fmt.Errorf("%w: %w", engine.ErrInvalidArgument, err)
	}
	return stackitem.NewByteArray(scripts.SignatureScriptHash(pub).BytesBE()), nil
}

// CreateMultisigAccount returns the hash of the m-of-n multisig contract of
// the keys.
func CreateMultisigAccount(e *engine.Engine, args []stackitem.Item) (stackitem.Item, error) {
	m, err := engine.ToInt64(args[0])
	if err != nil {
		return nil, err
	}
	arr, err := engine.ToArray(args[1])
	if err != nil {
		return nil, err
	}
	if err := e.AddFee(accountPrice(e, len(arr)) * e.ExecFeeFactor()); err != nil {
		return nil, err
	}
	pubs := make(keys.PublicKeys, len(arr))
	for i := range arr {
		b, err := engine.ToBytes(arr[i])
		if err != nil {
			return nil, err
		}
		if pubs[i], err = crypto.DecodePublicKey(b, crypto.Secp256r1); err != nil {
			return nil, fmt.Errorf("%w: key %d: %w", engine.ErrInvalidArgument, i, err)
		}
	}
	if m < 1 || m > int64(len(pubs)) {
		return nil, fmt.Errorf("%w: %d of %d", engine.ErrInvalidArgument, m, len(pubs))
	}
	script, err := scripts.MultisigRedeemScript(int(m), pubs)
	if err != nil {
		return nil, err
	}
	return stackitem.NewByteArray(hash.Hash160(script).BytesBE()), nil
}
