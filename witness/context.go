/*
Package witness aggregates signatures and other parameters of verification
scripts into witnesses of a container.

A ParametersContext is created for a container and the list of accounts it
must be witnessed by. Parameters are added per verification script. For
multisignature scripts signatures are collected until the threshold is
reached and then laid out in the order CheckMultisig expects. The context
can be passed between signers in its JSON form.
*/
package witness

import (
	"errors"
	"fmt"
	"math/big"
	"slices"

	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/crypto/hash"
	"github.com/nspcc-dev/neo-go/pkg/crypto/keys"
	"github.com/nspcc-dev/neo-go/pkg/io"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/emit"
	"github.com/nspcc-dev/neo-go/pkg/vm/opcode"
	"github.com/nspcc-dev/neoexec/scripts"
)

// Errors returned by the context.
var (
	ErrUnknownScript      = errors.New("script is not verified for the container")
	ErrUnknownKey         = errors.New("key is not listed in the multisig script")
	ErrNotSupported       = errors.New("script has more than one signature parameter")
	ErrNoSignatureParam   = errors.New("script has no signature parameter")
	ErrDuplicateSignature = errors.New("signature of the key is already added")
	ErrAlreadyCompleted   = errors.New("all script parameters are already set")
	ErrNotCompleted       = errors.New("context is not completed")
	ErrInvalidIndex       = errors.New("invalid parameter index")
)

// Verifiable is a container with a set of accounts to be witnessed.
type Verifiable interface {
	Hash() util.Uint256
	ScriptHashes() []util.Uint160
}

// Contract is a verification script with types of its parameters.
type Contract struct {
	Script     []byte
	Parameters []smartcontract.ParamType
}

// ScriptHash returns the account of the contract.
func (c Contract) ScriptHash() util.Uint160 {
	return hash.Hash160(c.Script)
}

// SignatureContract returns the standard signature contract of the key.
func SignatureContract(pub *keys.PublicKey) Contract {
	return Contract{
		Script:     scripts.SignatureRedeemScript(pub.Bytes()),
		Parameters: []smartcontract.ParamType{smartcontract.SignatureType},
	}
}

// MultisigContract returns the standard m-out-of-len(pubs) contract.
func MultisigContract(m int, pubs keys.PublicKeys) (Contract, error) {
	script, err := scripts.MultisigRedeemScript(m, pubs)
	if err != nil {
		return Contract{}, err
	}
	params := make([]smartcontract.ParamType, m)
	for i := range params {
		params[i] = smartcontract.SignatureType
	}
	return Contract{Script: script, Parameters: params}, nil
}

// Item holds parameters collected for a single verification script.
type Item struct {
	Script     []byte
	Parameters []smartcontract.Parameter
	// Signatures are keyed by hex-encoded compressed public keys.
	Signatures map[string][]byte
}

func newItem(c Contract) *Item {
	params := make([]smartcontract.Parameter, len(c.Parameters))
	for i, t := range c.Parameters {
		params[i].Type = t
	}
	return &Item{
		Script:     c.Script,
		Parameters: params,
		Signatures: make(map[string][]byte),
	}
}

func (it *Item) completed() bool {
	for i := range it.Parameters {
		if it.Parameters[i].Value == nil {
			return false
		}
	}
	return true
}

// ParametersContext collects verification script parameters of the
// container. It is not safe for concurrent use.
type ParametersContext struct {
	Network    uint32
	Verifiable Verifiable
	Items      map[util.Uint160]*Item
}

// NewParametersContext creates an empty context of the container.
func NewParametersContext(network uint32, v Verifiable) *ParametersContext {
	return &ParametersContext{
		Network:    network,
		Verifiable: v,
		Items:      make(map[util.Uint160]*Item),
	}
}

func (c *ParametersContext) item(ct Contract) (*Item, error) {
	h := ct.ScriptHash()
	if it, ok := c.Items[h]; ok {
		return it, nil
	}
	if !slices.Contains(c.Verifiable.ScriptHashes(), h) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScript, h.StringLE())
	}
	it := newItem(ct)
	c.Items[h] = it
	return it, nil
}

// Add sets the value of the contract parameter.
func (c *ParametersContext) Add(ct Contract, index int, value any) error {
	it, err := c.item(ct)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(it.Parameters) {
		return fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}
	it.Parameters[index].Value = value
	return nil
}

// AddSignature adds the signature made by the key. Signatures of a
// multisignature contract are written into parameters when all of them are
// collected, ordered by the descending position of their keys in the
// script.
func (c *ParametersContext) AddSignature(ct Contract, pub *keys.PublicKey, sig []byte) error {
	raw := pub.Bytes()
	if _, points, ok := scripts.ParseMultisigContract(ct.Script); ok {
		pos := slices.IndexFunc(points, func(p []byte) bool { return slices.Equal(p, raw) })
		if pos < 0 {
			return ErrUnknownKey
		}
		it, err := c.item(ct)
		if err != nil {
			return err
		}
		if it.completed() {
			return ErrAlreadyCompleted
		}
		if err := addSignature(it, pub, sig); err != nil {
			return err
		}
		if len(it.Signatures) != len(ct.Parameters) {
			return nil
		}
		type indexed struct {
			pos int
			sig []byte
		}
		sigs := make([]indexed, 0, len(it.Signatures))
		for i, p := range points {
			if s, ok := it.Signatures[keyString(p)]; ok {
				sigs = append(sigs, indexed{pos: i, sig: s})
			}
		}
		slices.SortFunc(sigs, func(a, b indexed) int { return b.pos - a.pos })
		for i := range sigs {
			it.Parameters[i].Value = sigs[i].sig
		}
		return nil
	}

	index := -1
	for i, t := range ct.Parameters {
		if t != smartcontract.SignatureType {
			continue
		}
		if index >= 0 {
			return ErrNotSupported
		}
		index = i
	}
	if index < 0 {
		return ErrNoSignatureParam
	}
	it, err := c.item(ct)
	if err != nil {
		return err
	}
	if err := addSignature(it, pub, sig); err != nil {
		return err
	}
	it.Parameters[index].Value = sig
	return nil
}

func addSignature(it *Item, pub *keys.PublicKey, sig []byte) error {
	k := keyString(pub.Bytes())
	if _, ok := it.Signatures[k]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSignature, k)
	}
	it.Signatures[k] = sig
	return nil
}

func keyString(pub []byte) string {
	return fmt.Sprintf("%x", pub)
}

// Completed checks whether every account of the container has all script
// parameters set.
func (c *ParametersContext) Completed() bool {
	hashes := c.Verifiable.ScriptHashes()
	if len(c.Items) < len(hashes) {
		return false
	}
	for _, h := range hashes {
		it, ok := c.Items[h]
		if !ok || !it.completed() {
			return false
		}
	}
	return true
}

// GetParameter returns the parameter of the script, nil if the script or
// the index is unknown.
func (c *ParametersContext) GetParameter(h util.Uint160, index int) *smartcontract.Parameter {
	it, ok := c.Items[h]
	if !ok || index < 0 || index >= len(it.Parameters) {
		return nil
	}
	return &it.Parameters[index]
}

// GetSignatures returns signatures collected for the script, nil if the
// script is unknown.
func (c *ParametersContext) GetSignatures(h util.Uint160) map[string][]byte {
	it, ok := c.Items[h]
	if !ok {
		return nil
	}
	return it.Signatures
}

// GetWitnesses returns witnesses of the container in the order of its
// accounts.
func (c *ParametersContext) GetWitnesses() ([]transaction.Witness, error) {
	if !c.Completed() {
		return nil, ErrNotCompleted
	}
	hashes := c.Verifiable.ScriptHashes()
	res := make([]transaction.Witness, len(hashes))
	for i, h := range hashes {
		it := c.Items[h]
		w := io.NewBufBinWriter()
		for j := len(it.Parameters) - 1; j >= 0; j-- {
			if err := emitParameter(w.BinWriter, &it.Parameters[j]); err != nil {
				return nil, fmt.Errorf("witness %s: parameter %d: %w", h.StringLE(), j, err)
			}
		}
		if w.Err != nil {
			return nil, w.Err
		}
		res[i] = transaction.Witness{
			InvocationScript:   w.Bytes(),
			VerificationScript: slices.Clone(it.Script),
		}
	}
	return res, nil
}

func emitParameter(w *io.BinWriter, p *smartcontract.Parameter) error {
	switch v := p.Value.(type) {
	case nil:
		emit.Opcodes(w, opcode.PUSHNULL)
	case []byte:
		emit.Bytes(w, v)
	case string:
		emit.String(w, v)
	case bool:
		emit.Bool(w, v)
	case *big.Int:
		emit.BigInt(w, v)
	case int64:
		emit.Int(w, v)
	case int:
		emit.Int(w, int64(v))
	case util.Uint160:
		emit.Bytes(w, v.BytesBE())
	case util.Uint256:
		emit.Bytes(w, v.BytesBE())
	case *keys.PublicKey:
		emit.Bytes(w, v.Bytes())
	default:
		return fmt.Errorf("unsupported %s value %T", p.Type, v)
	}
	return nil
}
