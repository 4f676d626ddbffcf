package engine

import (
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/smartcontract"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/callflag"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/manifest"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/neoexec/state"
	"github.com/nspcc-dev/neoexec/storage"
	"github.com/nspcc-dev/neoexec/vm"
	"go.uber.org/zap"
)

// ContextState is the engine data attached to every execution context.
type ContextState struct {
	// ScriptHash identifies the executing script, the contract hash for
	// contracts and Hash160 of the script otherwise.
	ScriptHash util.Uint160
	// CallingContext is the context that loaded this one.
	CallingContext *vm.Context
	// NativeCallingScriptHash overrides the calling script hash for contexts
	// loaded by native services.
	NativeCallingScriptHash *util.Uint160
	// Contract is set for contract contexts.
	Contract *state.Contract
	// CallFlags restrict available services.
	CallFlags callflag.CallFlag
	// Snapshot is the private storage view of the context.
	Snapshot *storage.Snapshot
	// NotificationCount is the number of notifications emitted by the
	// context and its committed callees.
	NotificationCount int
	// IsDynamicCall marks contexts loaded by System.Contract.Call and
	// System.Runtime.LoadScript.
	IsDynamicCall bool
	// Whitelisted contexts are not charged for execution.
	Whitelisted bool
}

// StateOf returns the engine state of the context.
func StateOf(ctx *vm.Context) *ContextState {
	if ctx == nil {
		return nil
	}
	cs, _ := ctx.State.(*ContextState)
	return cs
}

// CurrentContext returns the executing context, nil if nothing is loaded.
func (e *Engine) CurrentContext() *vm.Context {
	return e.vm.Context()
}

// CurrentState returns the state of the executing context.
func (e *Engine) CurrentState() *ContextState {
	return StateOf(e.vm.Context())
}

// CurrentScriptHash returns the hash of the executing script.
func (e *Engine) CurrentScriptHash() util.Uint160 {
	if cs := e.CurrentState(); cs != nil {
		return cs.ScriptHash
	}
	return util.Uint160{}
}

// CallingScriptHash returns the hash of the script that loaded the
// executing one, zero hash for the entry script.
func (e *Engine) CallingScriptHash() util.Uint160 {
	cs := e.CurrentState()
	if cs == nil {
		return util.Uint160{}
	}
	if cs.NativeCallingScriptHash != nil {
		return *cs.NativeCallingScriptHash
	}
	if caller := StateOf(cs.CallingContext); caller != nil {
		return caller.ScriptHash
	}
	return util.Uint160{}
}

// EntryScriptHash returns the hash of the bottom script.
func (e *Engine) EntryScriptHash() util.Uint160 {
	if cs := StateOf(e.vm.EntryContext()); cs != nil {
		return cs.ScriptHash
	}
	return util.Uint160{}
}

// InvocationCounter returns the number of times the script was invoked,
// it's 1 for scripts that haven't been counted yet.
func (e *Engine) InvocationCounter(h util.Uint160) int {
	if n, ok := e.invocations[h]; ok {
		return n
	}
	e.invocations[h] = 1
	return 1
}

// LoadScript loads the script as a new context starting at the offset.
// Negative rvcount means any number of return values. The configurator is
// applied to the state after defaults are set.
func (e *Engine) LoadScript(script []byte, rvcount int, offset int, configure func(*ContextState)) (*vm.Context, error) {
	parent := e.Snapshot()
	ctx, err := e.vm.LoadScript(script, rvcount, offset)
	if err != nil {
		return nil, err
	}
	cs := &ContextState{
		ScriptHash: ctx.ScriptHash(),
		CallFlags:  callflag.All,
		Snapshot:   parent.Clone(),
	}
	if configure != nil {
		configure(cs)
	}
	ctx.State = cs
	if _, ok := e.invocations[cs.ScriptHash]; !ok {
		e.invocations[cs.ScriptHash] = 1
	}
	if e.diag != nil {
		e.diag.ContextLoaded(ctx)
	}
	return ctx, nil
}

// LoadContract loads the method of the contract. Contract initializer is
// executed first if defined.
func (e *Engine) LoadContract(c *state.Contract, md *manifest.Method, flags callflag.CallFlag) (*vm.Context, error) {
	rvcount := 1
	if md.ReturnType == smartcontract.VoidType {
		rvcount = 0
	}
	ctx, err := e.LoadScript(c.NEF.Script, rvcount, md.Offset, func(cs *ContextState) {
		cs.CallFlags = flags
		cs.ScriptHash = c.Hash
		cs.Contract = c
	})
	if err != nil {
		return nil, err
	}
	if init := c.Manifest.ABI.GetMethod(manifest.MethodInit, 0); init != nil {
		if _, err := e.vm.LoadClone(ctx, init.Offset); err != nil {
			return nil, err
		}
	}
	return ctx, nil
}

// ContextUnloaded implements vm.Host.
func (e *Engine) ContextUnloaded(ctx *vm.Context) error {
	cs := StateOf(ctx)
	resume, hasResume := e.continuations[ctx]
	delete(e.continuations, ctx)
	if e.diag != nil {
		e.diag.ContextUnloaded(ctx)
	}
	if cs == nil {
		return nil
	}

	if e.vm.HasException() {
		n := min(cs.NotificationCount, len(e.notifications))
		e.notifications = e.notifications[:len(e.notifications)-n]
		if hasResume {
			return fmt.Errorf("%w: %s", ErrNativeCallFailed, cs.ScriptHash.StringLE())
		}
		return nil
	}

	if err := cs.Snapshot.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	parent := e.vm.Context()
	dst := e.vm.Results()
	if parent != nil {
		dst = parent.Estack()
		if ps := StateOf(parent); ps != nil {
			ps.NotificationCount += cs.NotificationCount
		}
	}
	if cs.IsDynamicCall {
		switch ctx.Estack().Len() {
		case 0:
			dst.Push(stackitem.Null{})
		case 1:
		default:
			return ErrMultipleReturnValues
		}
	}
	if hasResume {
		var result stackitem.Item
		if ctx.RVCount() != 0 {
			var err error
			if result, err = dst.Pop(); err != nil {
				return err
			}
		}
		if err := resume(result); err != nil {
			e.log.Debug("native continuation failed",
				zap.Stringer("contract", cs.ScriptHash), zap.Error(err))
			return err
		}
	}
	return nil
}
