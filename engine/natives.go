package engine

import (
	"github.com/nspcc-dev/neo-go/pkg/core/transaction"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neoexec/state"
	"github.com/nspcc-dev/neoexec/storage"
)

// Policy provides network policy values stored by the policy contract.
type Policy interface {
	GetExecFeeFactor(s *storage.Snapshot) (uint32, error)
	GetStoragePrice(s *storage.Snapshot) (uint32, error)
	IsBlocked(s *storage.Snapshot, h util.Uint160) (bool, error)
	// GetWhitelistFee returns a fixed fee (datoshi) replacing execution fees
	// of the method if it's whitelisted.
	GetWhitelistFee(s *storage.Snapshot, h util.Uint160, method string, params int) (int64, bool, error)
}

// Management provides deployed contracts.
type Management interface {
	// GetContract returns nil without an error if there is no such contract.
	GetContract(s *storage.Snapshot, h util.Uint160) (*state.Contract, error)
}

// Ledger provides persisted transactions.
type Ledger interface {
	// GetTransaction returns nil without an error if there is no such
	// transaction.
	GetTransaction(s *storage.Snapshot, h util.Uint256) (*transaction.Transaction, error)
}

// Oracle provides pending oracle requests.
type Oracle interface {
	// GetRequestTxID returns the hash of the transaction that issued the
	// request.
	GetRequestTxID(s *storage.Snapshot, id uint64) (util.Uint256, error)
}

// Natives groups native contract queries used by the engine. Any of them
// may be nil meaning the contract is absent.
type Natives struct {
	Policy     Policy
	Management Management
	Ledger     Ledger
	Oracle     Oracle
}
