/*
Package runtime provides System.Runtime.* interop services.
*/
package runtime

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/callflag"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/neoexec/crypto"
	"github.com/nspcc-dev/neoexec/engine"
	"github.com/nspcc-dev/neoexec/scripts"
)

// Platform is the value returned by System.Runtime.Platform.
const Platform = "NEO"

// Errors returned by runtime services.
var (
	ErrNoBlock          = errors.New("no persisting block")
	ErrInvalidContainer = errors.New("script container can't be converted")
	ErrInvalidWitness   = errors.New("hash or public key expected")
	ErrInvalidGas       = errors.New("GAS must be positive")
)

// Convertible containers provide their own stack item representation.
type Convertible interface {
	ToStackItem() (stackitem.Item, error)
}

// GetPlatform returns the platform name.
func GetPlatform(_ *engine.Engine, _ []stackitem.Item) (stackitem.Item, error) {
	return stackitem.NewByteArray([]byte(Platform)), nil
}

// GetNetwork returns the network magic.
func GetNetwork(e *engine.Engine, _ []stackitem.Item) (stackitem.Item, error) {
	return stackitem.NewBigInteger(big.NewInt(int64(e.Settings().Magic))), nil
}

// GetAddressVersion returns the address version byte.
func GetAddressVersion(e *engine.Engine, _ []stackitem.Item) (stackitem.Item, error) {
	return stackitem.NewBigInteger(big.NewInt(int64(e.Settings().AddressVersion))), nil
}

// GetTrigger returns the execution trigger.
func GetTrigger(e *engine.Engine, _ []stackitem.Item) (stackitem.Item, error) {
	return stackitem.NewBigInteger(big.NewInt(int64(e.Trigger()))), nil
}

// GetTime returns the timestamp of the persisting block in milliseconds.
func GetTime(e *engine.Engine, _ []stackitem.Item) (stackitem.Item, error) {
	b := e.PersistingBlock()
	if b == nil {
		return nil, ErrNoBlock
	}
	return stackitem.NewBigInteger(new(big.Int).SetUint64(b.Timestamp)), nil
}

// GetScriptContainer returns the script container representation.
func GetScriptContainer(e *engine.Engine, _ []stackitem.Item) (stackitem.Item, error) {
	switch c := e.Container().(type) {
	case *transaction.Transaction:
		return transactionToStackItem(c), nil
	case Convertible:
		return c.ToStackItem()
	default:
		return nil, ErrInvalidContainer
	}
}

func transactionToStackItem(tx *transaction.Transaction) stackitem.Item {
	return stackitem.NewArray([]stackitem.Item{
		stackitem.NewByteArray(tx.Hash().BytesBE()),
		stackitem.NewBigInteger(big.NewInt(int64(tx.Version))),
		stackitem.NewBigInteger(big.NewInt(int64(tx.Nonce))),
		stackitem.NewByteArray(tx.Sender().BytesBE()),
		stackitem.NewBigInteger(big.NewInt(tx.SystemFee)),
		stackitem.NewBigInteger(big.NewInt(tx.NetworkFee)),
		stackitem.NewBigInteger(big.NewInt(int64(tx.ValidUntilBlock))),
		stackitem.NewByteArray(tx.Script),
	})
}

// GetExecutingScriptHash returns the hash of the executing script.
func GetExecutingScriptHash(e *engine.Engine, _ []stackitem.Item) (stackitem.Item, error) {
	return hashItem(e.CurrentScriptHash()), nil
}

// GetCallingScriptHash returns the hash of the calling script, Null for the
// entry script.
func GetCallingScriptHash(e *engine.Engine, _ []stackitem.Item) (stackitem.Item, error) {
	h := e.CallingScriptHash()
	if h.Equals(util.Uint160{}) {
		return stackitem.Null{}, nil
	}
	return hashItem(h), nil
}

// GetEntryScriptHash returns the hash of the entry script.
func GetEntryScriptHash(e *engine.Engine, _ []stackitem.Item) (stackitem.Item, error) {
	return hashItem(e.EntryScriptHash()), nil
}

// GetInvocationCounter returns the number of calls of the executing script.
func GetInvocationCounter(e *engine.Engine, _ []stackitem.Item) (stackitem.Item, error) {
	return stackitem.NewBigInteger(big.NewInt(int64(e.InvocationCounter(e.CurrentScriptHash())))), nil
}

// GasLeft returns the remaining GAS, -1 if the execution is not limited.
func GasLeft(e *engine.Engine, _ []stackitem.Item) (stackitem.Item, error) {
	return stackitem.NewBigInteger(big.NewInt(e.GasLeft())), nil
}

// BurnGas charges the given amount of GAS.
func BurnGas(e *engine.Engine, args []stackitem.Item) (stackitem.Item, error) {
	gas, err := engine.ToInt64(args[0])
	if err != nil {
		return nil, err
	}
	if gas <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidGas, gas)
	}
	return nil, e.AddFee(gas)
}

// GetRandom returns the next random number. It charges the fee itself.
func GetRandom(e *engine.Engine, _ []stackitem.Item) (stackitem.Item, error) {
	n, err := e.GetRandom()
	if err != nil {
		return nil, err
	}
	return stackitem.NewBigInteger(n), nil
}

// CheckWitness checks the witness of the 20-byte account hash or 33-byte
// public key.
func CheckWitness(e *engine.Engine, args []stackitem.Item) (stackitem.Item, error) {
	b, err := engine.ToBytes(args[0])
	if err != nil {
		return nil, err
	}
	var h util.Uint160
	switch len(b) {
	case util.Uint160Size:
		h, _ = util.Uint160DecodeBytesBE(b)
	case 33:
		if _, err := crypto.DecodePublicKey(b, crypto.Secp256r1); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidWitness, err)
		}
		h = scripts.SignatureScriptHash(b)
	default:
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidWitness, len(b))
	}
	ok, err := e.CheckWitness(h)
	if err != nil {
		return nil, err
	}
	return stackitem.NewBool(ok), nil
}

// CurrentSigners returns signers of the transaction, Null for other
// containers.
func CurrentSigners(e *engine.Engine, _ []stackitem.Item) (stackitem.Item, error) {
	tx, ok := e.Container().(*transaction.Transaction)
	if !ok {
		return stackitem.Null{}, nil
	}
	res := make([]stackitem.Item, len(tx.Signers))
	for i := range tx.Signers {
		res[i] = signerToStackItem(&tx.Signers[i])
	}
	return stackitem.NewArray(res), nil
}

func signerToStackItem(s *transaction.Signer) stackitem.Item {
	contracts := make([]stackitem.Item, len(s.AllowedContracts))
	for i := range s.AllowedContracts {
		contracts[i] = hashItem(s.AllowedContracts[i])
	}
	groups := make([]stackitem.Item, len(s.AllowedGroups))
	for i := range s.AllowedGroups {
		groups[i] = stackitem.NewByteArray(s.AllowedGroups[i].Bytes())
	}
	rules := make([]stackitem.Item, len(s.Rules))
	for i := range s.Rules {
		rules[i] = s.Rules[i].ToStackItem()
	}
	return stackitem.NewArray([]stackitem.Item{
		hashItem(s.Account),
		stackitem.NewBigInteger(big.NewInt(int64(s.Scopes))),
		stackitem.NewArray(contracts),
		stackitem.NewArray(groups),
		stackitem.NewArray(rules),
	})
}

// LoadScript loads the script as a dynamic call with arguments. Its call
// flags can't exceed the flags of the caller and ReadOnly.
func LoadScript(e *engine.Engine, args []stackitem.Item) (stackitem.Item, error) {
	script, err := engine.ToBytes(args[0])
	if err != nil {
		return nil, err
	}
	f, err := engine.ToInt64(args[1])
	if err != nil {
		return nil, err
	}
	flags := callflag.CallFlag(f)
	if f < 0 || f > 0xff || flags&^callflag.All != 0 {
		return nil, fmt.Errorf("%w: %d", engine.ErrInvalidCallFlags, f)
	}
	params, err := engine.ToArray(args[2])
	if err != nil {
		return nil, err
	}
	caller := e.CurrentContext()
	callerFlags := e.CurrentState().CallFlags
	ctx, err := e.LoadScript(script, -1, 0, func(cs *engine.ContextState) {
		cs.CallingContext = caller
		cs.CallFlags = flags & callerFlags & callflag.ReadOnly
		cs.IsDynamicCall = true
	})
	if err != nil {
		return nil, err
	}
	for i := len(params) - 1; i >= 0; i-- {
		ctx.Estack().Push(params[i])
	}
	return nil, nil
}

func hashItem(h util.Uint160) stackitem.Item {
	return stackitem.NewByteArray(h.BytesBE())
}
