package engine

import (
	"fmt"
	"strings"

	"github.com/nspcc-dev/neo-go/pkg/smartcontract"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/callflag"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/manifest"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/neoexec/config"
	"github.com/nspcc-dev/neoexec/state"
	"github.com/nspcc-dev/neoexec/vm"
)

// GetContract returns the deployed contract.
func (e *Engine) GetContract(h util.Uint160) (*state.Contract, error) {
	if e.natives.Management == nil {
		return nil, fmt.Errorf("%w: %s", ErrContractNotFound, h.StringLE())
	}
	c, err := e.natives.Management.GetContract(e.Snapshot(), h)
	if err != nil {
		return nil, fmt.Errorf("get contract %s: %w", h.StringLE(), err)
	}
	if c == nil {
		return nil, fmt.Errorf("%w: %s", ErrContractNotFound, h.StringLE())
	}
	return c, nil
}

func (e *Engine) getMethod(c *state.Contract, method string, params int) (*manifest.Method, error) {
	md := c.Manifest.ABI.GetMethod(method, params)
	if md == nil {
		return nil, fmt.Errorf("%w: %s/%d in %s", ErrMethodNotFound, method, params, c.Hash.StringLE())
	}
	return md, nil
}

// CallContract performs a dynamic call of the contract method. Public
// methods only can be called this way.
func (e *Engine) CallContract(h util.Uint160, method string, flags callflag.CallFlag, args []stackitem.Item) error {
	if strings.HasPrefix(method, "_") {
		return fmt.Errorf("%w: %s is private", ErrMethodNotFound, method)
	}
	if flags&^callflag.All != 0 {
		return fmt.Errorf("%w: 0x%x", ErrInvalidCallFlags, byte(flags))
	}
	c, err := e.GetContract(h)
	if err != nil {
		return err
	}
	md, err := e.getMethod(c, method, len(args))
	if err != nil {
		return err
	}
	ctx, err := e.callContractInternal(c, md, flags, md.ReturnType != smartcontract.VoidType, args)
	if err != nil {
		return err
	}
	StateOf(ctx).IsDynamicCall = true
	return nil
}

// CallFromNative calls the contract method on behalf of the native service
// identified by caller. The method is executed with all call flags, resume
// is invoked when it returns successfully.
func (e *Engine) CallFromNative(caller util.Uint160, h util.Uint160, method string, args []stackitem.Item, hasReturn bool, resume Continuation) error {
	c, err := e.GetContract(h)
	if err != nil {
		return err
	}
	md, err := e.getMethod(c, method, len(args))
	if err != nil {
		return err
	}
	ctx, err := e.callContractInternal(c, md, callflag.All, hasReturn, args)
	if err != nil {
		return err
	}
	StateOf(ctx).NativeCallingScriptHash = &caller
	if resume != nil {
		e.continuations[ctx] = resume
	}
	return nil
}

func (e *Engine) callContractInternal(c *state.Contract, md *manifest.Method, flags callflag.CallFlag, hasReturn bool, args []stackitem.Item) (*vm.Context, error) {
	if e.natives.Policy != nil {
		blocked, err := e.natives.Policy.IsBlocked(e.Snapshot(), c.Hash)
		if err != nil {
			return nil, fmt.Errorf("check blocked: %w", err)
		}
		if blocked {
			return nil, fmt.Errorf("%w: %s", ErrContractBlocked, c.Hash.StringLE())
		}
	}

	current := e.CurrentContext()
	cs := StateOf(current)
	if md.Safe {
		flags &^= callflag.WriteStates | callflag.AllowNotify
	} else if cs != nil {
		executing := cs.Contract
		if !e.IsHardforkEnabled(config.HFDomovoi) {
			executing = nil
			if found, err := e.GetContract(cs.ScriptHash); err == nil {
				executing = found
			}
		}
		if executing != nil && !executing.Manifest.CanCall(c.Hash, &c.Manifest, md.Name) {
			return nil, fmt.Errorf("%w: %s of %s from %s", ErrCallNotAllowed,
				md.Name, c.Hash.StringLE(), executing.Hash.StringLE())
		}
	}

	callingFlags := callflag.All
	if cs != nil {
		callingFlags = cs.CallFlags
	}
	if len(args) != len(md.Parameters) {
		return nil, fmt.Errorf("%w: %s expects %d arguments, got %d", ErrInvalidArgument,
			md.Name, len(md.Parameters), len(args))
	}
	if hasReturn != (md.ReturnType != smartcontract.VoidType) {
		return nil, fmt.Errorf("%w: %s", ErrReturnTypeMismatch, md.Name)
	}

	var whitelisted bool
	if e.natives.Policy != nil {
		fixed, ok, err := e.natives.Policy.GetWhitelistFee(e.Snapshot(), c.Hash, md.Name, len(md.Parameters))
		if err != nil {
			return nil, fmt.Errorf("check whitelist: %w", err)
		}
		if ok {
			if err := e.AddFee(fixed); err != nil {
				return nil, err
			}
			whitelisted = true
		}
	}

	e.invocations[c.Hash]++

	ctx, err := e.LoadContract(c, md, flags&callingFlags)
	if err != nil {
		return nil, err
	}
	ns := StateOf(ctx)
	ns.CallingContext = current
	ns.Whitelisted = whitelisted
	for i := len(args) - 1; i >= 0; i-- {
		ctx.Estack().Push(args[i])
	}
	return ctx, nil
}

// LoadToken implements vm.Host, it calls the method described by the
// contract method token.
func (e *Engine) LoadToken(token uint16) error {
	cs := e.CurrentState()
	if cs == nil {
		return ErrNoContext
	}
	if !cs.CallFlags.Has(callflag.ReadStates | callflag.AllowCall) {
		return fmt.Errorf("%w: CALLT requires ReadStates and AllowCall", ErrCapabilityDenied)
	}
	if cs.Contract == nil || int(token) >= len(cs.Contract.NEF.Tokens) {
		return fmt.Errorf("%w: %d", ErrInvalidToken, token)
	}
	tok := cs.Contract.NEF.Tokens[token]
	estack := e.CurrentContext().Estack()
	if int(tok.ParamCount) > estack.Len() {
		return fmt.Errorf("%w: %d arguments expected", ErrInvalidToken, tok.ParamCount)
	}
	args := make([]stackitem.Item, tok.ParamCount)
	for i := range args {
		var err error
		if args[i], err = estack.Pop(); err != nil {
			return err
		}
	}
	c, err := e.GetContract(tok.Hash)
	if err != nil {
		return err
	}
	md, err := e.getMethod(c, tok.Method, len(args))
	if err != nil {
		return err
	}
	_, err = e.callContractInternal(c, md, tok.CallFlag, tok.HasReturn, args)
	return err
}
