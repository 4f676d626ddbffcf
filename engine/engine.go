/*
Package engine implements the application engine executing contract scripts.

Engine drives a vm.VM: it prices every instruction, dispatches SYSCALL
instructions to the interop Registry, loads contracts for CALLT and dynamic
calls, keeps an isolated storage snapshot per execution context and collects
notifications emitted by contracts.

Engine is single-threaded, an instance must not be used from multiple
goroutines. Registry and jump tables are immutable and can be shared.
*/
package engine

import (
	"fmt"
	"math"

	"github.com/nspcc-dev/neo-go/pkg/core/block"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/trigger"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/opcode"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
	"github.com/nspcc-dev/neoexec/config"
	"github.com/nspcc-dev/neoexec/fee"
	"github.com/nspcc-dev/neoexec/storage"
	"github.com/nspcc-dev/neoexec/vm"
	"go.uber.org/zap"
)

// Container is an entity executed scripts belong to, a transaction or a
// block.
type Container interface {
	Hash() util.Uint256
}

// Verifiable is a non-transaction container with its own set of witnessed
// accounts.
type Verifiable interface {
	Container
	// ScriptHashes returns accounts verified by the container witnesses.
	ScriptHashes() []util.Uint160
}

// Prm groups parameters of New.
type Prm struct {
	// Trigger defines the execution purpose.
	Trigger trigger.Type
	// Container is an optional script container.
	Container Container
	// Snapshot is the storage view the execution reads and writes. Changes
	// are committed into it on successful unload of the entry context, it
	// is up to the caller to persist them further. Required.
	Snapshot *storage.Snapshot
	// PersistingBlock is an optional block being processed.
	PersistingBlock *block.Header
	// Settings are protocol parameters.
	Settings config.ProtocolSettings
	// GasLimit is in datoshi, negative value means no limit.
	GasLimit int64
	// Diagnostics is an optional execution observer.
	Diagnostics Diagnostics
	// Natives provide native contract data.
	Natives Natives
	// Registry contains interop services. No services are available if nil.
	Registry *Registry
	// Logger is an optional logger, nop logger is used if nil.
	Logger *zap.Logger
}

// Engine is an application engine instance created for a single execution.
type Engine struct {
	vm        *vm.VM
	log       *zap.Logger
	trigger   trigger.Type
	container Container
	snapshot  *storage.Snapshot
	block     *block.Header
	settings  config.ProtocolSettings
	natives   Natives
	registry  *Registry
	diag      Diagnostics

	execFeeFactor int64
	storagePrice  int64
	feeLimit      int64
	feeConsumed   int64

	nonce       [16]byte
	randomTimes uint32

	invocations   map[util.Uint160]int
	notifications []NotifyEvent
	logs          []LogEvent
	continuations map[*vm.Context]Continuation
}

// Continuation receives the result of a contract called by a native
// service, result is nil for void methods.
type Continuation func(result stackitem.Item) error

// New creates an Engine.
func New(prm Prm) (*Engine, error) {
	if prm.Snapshot == nil {
		return nil, ErrNoSnapshot
	}
	e := &Engine{
		log:           prm.Logger,
		trigger:       prm.Trigger,
		container:     prm.Container,
		snapshot:      prm.Snapshot,
		block:         prm.PersistingBlock,
		settings:      prm.Settings,
		natives:       prm.Natives,
		registry:      prm.Registry,
		diag:          prm.Diagnostics,
		feeLimit:      -1,
		invocations:   make(map[util.Uint160]int),
		continuations: make(map[*vm.Context]Continuation),
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	if e.registry == nil {
		e.registry = emptyRegistry
	}
	if prm.GasLimit >= 0 {
		limit, err := fee.FromDatoshi(prm.GasLimit)
		if err != nil {
			return nil, fmt.Errorf("gas limit: %w", err)
		}
		e.feeLimit = limit
	}

	e.execFeeFactor = int64(prm.Settings.ExecFeeFactor)
	e.storagePrice = int64(prm.Settings.StoragePrice)
	if e.natives.Policy != nil && (e.block == nil || e.block.Index != 0) {
		f, err := e.natives.Policy.GetExecFeeFactor(e.snapshot)
		if err != nil {
			return nil, fmt.Errorf("get exec fee factor: %w", err)
		}
		p, err := e.natives.Policy.GetStoragePrice(e.snapshot)
		if err != nil {
			return nil, fmt.Errorf("get storage price: %w", err)
		}
		e.execFeeFactor, e.storagePrice = int64(f), int64(p)
	}

	e.initNonce()
	e.vm = vm.New(e.jumpTable(), e)
	if e.diag != nil {
		e.diag.Initialized(e)
	}
	return e, nil
}

func (e *Engine) jumpTable() *vm.JumpTable {
	switch {
	case !e.IsHardforkEnabled(config.HFBasilisk):
		return vm.NotBasiliskTable
	case !e.IsHardforkEnabled(config.HFEchidna):
		return vm.NotEchidnaTable
	default:
		return vm.DefaultTable
	}
}

// VM returns the underlying VM.
func (e *Engine) VM() *vm.VM {
	return e.vm
}

// Logger returns the engine logger.
func (e *Engine) Logger() *zap.Logger {
	return e.log
}

// Trigger returns the execution trigger.
func (e *Engine) Trigger() trigger.Type {
	return e.trigger
}

// Container returns the script container, nil if there is none.
func (e *Engine) Container() Container {
	return e.container
}

// PersistingBlock returns the block being persisted, nil if there is none.
func (e *Engine) PersistingBlock() *block.Header {
	return e.block
}

// Settings returns protocol settings.
func (e *Engine) Settings() config.ProtocolSettings {
	return e.settings
}

// Natives returns native contract queries.
func (e *Engine) Natives() Natives {
	return e.natives
}

// Registry returns interop services available to the engine.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// ExecFeeFactor returns the execution fee factor in effect.
func (e *Engine) ExecFeeFactor() int64 {
	return e.execFeeFactor
}

// StoragePrice returns the price of one storage byte in datoshi.
func (e *Engine) StoragePrice() int64 {
	return e.storagePrice
}

// IsHardforkEnabled checks whether the hardfork is active at the height of
// the persisting block. All hardforks are enabled without a block.
func (e *Engine) IsHardforkEnabled(h config.Hardfork) bool {
	if e.block == nil {
		return true
	}
	return e.settings.IsHardforkEnabled(h, e.block.Index)
}

// Snapshot returns the storage snapshot of the current context, the
// engine-level snapshot if nothing is loaded.
func (e *Engine) Snapshot() *storage.Snapshot {
	if cs := e.CurrentState(); cs != nil {
		return cs.Snapshot
	}
	return e.snapshot
}

// Execute runs loaded scripts and returns the final state.
func (e *Engine) Execute() vmstate.State {
	st := e.vm.Run()
	if st == vmstate.Fault {
		e.log.Debug("execution faulted",
			zap.Int64("gas", e.FeeConsumed()),
			zap.Error(e.vm.FaultException()))
	}
	return st
}

// State returns the VM state.
func (e *Engine) State() vmstate.State {
	return e.vm.State()
}

// FaultException returns the error which caused the fault, nil otherwise.
func (e *Engine) FaultException() error {
	return e.vm.FaultException()
}

// ResultStack returns the items left by the entry context.
func (e *Engine) ResultStack() []stackitem.Item {
	return e.vm.Results().Items()
}

// FeeConsumed returns the consumed fee in datoshi rounded up.
func (e *Engine) FeeConsumed() int64 {
	return fee.ToDatoshi(e.feeConsumed)
}

// FeeConsumedPico returns the consumed fee in pico-GAS.
func (e *Engine) FeeConsumedPico() int64 {
	return e.feeConsumed
}

// GasLeft returns the remaining gas in datoshi rounded down, -1 if the
// execution is not limited.
func (e *Engine) GasLeft() int64 {
	if e.feeLimit < 0 {
		return -1
	}
	return fee.ToDatoshiFloor(e.feeLimit - e.feeConsumed)
}

// AddFee charges datoshi amount.
func (e *Engine) AddFee(datoshi int64) error {
	pico, err := fee.FromDatoshi(datoshi)
	if err != nil {
		return err
	}
	return e.addFeePico(pico)
}

func (e *Engine) addFeePico(pico int64) error {
	if e.vm.State() == vmstate.Fault {
		return fmt.Errorf("%w: execution is faulted", ErrOutOfGas)
	}
	if cs := e.CurrentState(); cs != nil && cs.Whitelisted {
		return nil
	}
	if pico < 0 {
		return fmt.Errorf("%w: negative fee %d", ErrInvalidArgument, pico)
	}
	if pico > math.MaxInt64-e.feeConsumed {
		return fee.ErrOverflow
	}
	consumed := e.feeConsumed + pico
	if e.feeLimit >= 0 && consumed > e.feeLimit {
		return fmt.Errorf("%w: %d of %d datoshi", ErrOutOfGas,
			fee.ToDatoshi(consumed), fee.ToDatoshi(e.feeLimit))
	}
	e.feeConsumed = consumed
	return nil
}

// AddResourceCost charges execution, memory and storage resources with the
// current factors.
func (e *Engine) AddResourceCost(c fee.ResourceCost) error {
	datoshi, err := c.Datoshi(uint64(e.execFeeFactor),
		uint64(e.settings.MemoryFeeFactor), uint64(e.storagePrice))
	if err != nil {
		return err
	}
	return e.AddFee(datoshi)
}

// PreExecuteInstruction implements vm.Host.
func (e *Engine) PreExecuteInstruction(_ *vm.Context, op opcode.Opcode) error {
	if e.diag != nil {
		e.diag.PreExecuteInstruction(op)
	}
	return e.AddFee(e.execFeeFactor * fee.OpcodePrice(op))
}
