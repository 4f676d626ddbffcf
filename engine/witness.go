package engine

import (
	"fmt"
	"slices"

	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/crypto/keys"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/callflag"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// CheckWitness checks whether the account has witnessed the execution.
func (e *Engine) CheckWitness(h util.Uint160) (bool, error) {
	if h == e.CurrentScriptHash() {
		return true, nil
	}
	switch c := e.container.(type) {
	case nil:
		return false, nil
	case *transaction.Transaction:
		signers, err := e.signersOf(c)
		if err != nil {
			return false, err
		}
		for i := range signers {
			if signers[i].Account == h {
				return e.checkSigner(&signers[i])
			}
		}
		return false, nil
	case Verifiable:
		cs := e.CurrentState()
		if cs == nil || !cs.CallFlags.Has(callflag.ReadStates) {
			return false, fmt.Errorf("%w: ReadStates is required", ErrCapabilityDenied)
		}
		return slices.Contains(c.ScriptHashes(), h), nil
	default:
		return false, nil
	}
}

// signersOf returns signers of the transaction, for oracle responses these
// are the signers of the request transaction.
func (e *Engine) signersOf(tx *transaction.Transaction) ([]transaction.Signer, error) {
	attrs := tx.GetAttributes(transaction.OracleResponseT)
	if len(attrs) == 0 {
		return tx.Signers, nil
	}
	resp, ok := attrs[0].Value.(*transaction.OracleResponse)
	if !ok || e.natives.Oracle == nil || e.natives.Ledger == nil {
		return nil, fmt.Errorf("%w: oracle response can't be resolved", ErrInvalidArgument)
	}
	txid, err := e.natives.Oracle.GetRequestTxID(e.Snapshot(), resp.ID)
	if err != nil {
		return nil, fmt.Errorf("get oracle request %d: %w", resp.ID, err)
	}
	orig, err := e.natives.Ledger.GetTransaction(e.Snapshot(), txid)
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", txid.StringLE(), err)
	}
	if orig == nil {
		return nil, fmt.Errorf("%w: request transaction %s", ErrInvalidArgument, txid.StringLE())
	}
	return orig.Signers, nil
}

// checkSigner evaluates signer scopes in the order: global, called by entry,
// custom contracts, custom groups and rules. The first matching one allows
// or denies the witness.
func (e *Engine) checkSigner(s *transaction.Signer) (bool, error) {
	if s.Scopes == transaction.Global {
		return true, nil
	}
	if s.Scopes&transaction.CalledByEntry != 0 && e.IsCalledByEntry() {
		return true, nil
	}
	if s.Scopes&transaction.CustomContracts != 0 && slices.Contains(s.AllowedContracts, e.CurrentScriptHash()) {
		return true, nil
	}
	if s.Scopes&transaction.CustomGroups != 0 {
		for _, g := range s.AllowedGroups {
			ok, err := e.CurrentScriptHasGroup(g)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
	}
	if s.Scopes&transaction.Rules != 0 {
		for _, r := range s.Rules {
			ok, err := r.Condition.Match(e)
			if err != nil {
				return false, fmt.Errorf("match witness rule: %w", err)
			}
			if ok {
				return r.Action == transaction.WitnessAllow, nil
			}
		}
	}
	return false, nil
}

// GetCallingScriptHash implements transaction.MatchContext.
func (e *Engine) GetCallingScriptHash() util.Uint160 {
	return e.CallingScriptHash()
}

// GetCurrentScriptHash implements transaction.MatchContext.
func (e *Engine) GetCurrentScriptHash() util.Uint160 {
	return e.CurrentScriptHash()
}

// IsCalledByEntry implements transaction.MatchContext. It's true for the
// entry context and contexts loaded directly by it.
func (e *Engine) IsCalledByEntry() bool {
	cs := e.CurrentState()
	if cs == nil || cs.CallingContext == nil {
		return true
	}
	caller := StateOf(cs.CallingContext)
	return caller == nil || caller.CallingContext == nil
}

// CallingScriptHasGroup implements transaction.MatchContext.
func (e *Engine) CallingScriptHasGroup(k *keys.PublicKey) (bool, error) {
	return e.hasGroup(e.CallingScriptHash(), k)
}

// CurrentScriptHasGroup implements transaction.MatchContext.
func (e *Engine) CurrentScriptHasGroup(k *keys.PublicKey) (bool, error) {
	return e.hasGroup(e.CurrentScriptHash(), k)
}

func (e *Engine) hasGroup(h util.Uint160, k *keys.PublicKey) (bool, error) {
	if e.natives.Management == nil {
		return false, nil
	}
	c, err := e.natives.Management.GetContract(e.Snapshot(), h)
	if err != nil || c == nil {
		return false, err
	}
	for _, g := range c.Manifest.Groups {
		if g.PublicKey.Equal(k) {
			return true, nil
		}
	}
	return false, nil
}
