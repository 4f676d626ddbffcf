// Package vm implements the stack machine executing contract scripts.
//
// The VM itself is not aware of fees, storage or contracts: all of those
// are provided by a Host which receives SYSCALL and CALLT instructions,
// pre-execution notifications and context unload events. Instruction
// semantics are defined by a JumpTable, so hosts can pick a table matching
// the protocol version in effect.
package vm

import (
	"errors"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/vm/opcode"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/neo-go/pkg/vm/vmstate"
)

// Execution limits.
const (
	MaxStackSize           = 2048
	MaxItemSize            = 1024 * 1024
	MaxInvocationStackSize = 1024
	MaxShift               = 256
	MaxIntegerSize         = 32
)

// Host handles instructions the VM cannot execute by itself.
type Host interface {
	// PreExecuteInstruction is called before every instruction.
	PreExecuteInstruction(ctx *Context, op opcode.Opcode) error
	// OnSysCall handles SYSCALL with the given service ID.
	OnSysCall(id uint32) error
	// LoadToken handles CALLT with the given method token index.
	LoadToken(token uint16) error
	// ContextUnloaded is called for every non-clone context leaving the
	// invocation stack, including contexts dropped by an exception.
	ContextUnloaded(ctx *Context) error
}

// VM is a stack machine instance. It is not safe for concurrent use.
type VM struct {
	table    *JumpTable
	host     Host
	istack   []*Context
	results  *Stack
	refs     refCounter
	state    vmstate.State
	fault    error
	uncaught stackitem.Item
}

// New creates a VM using the table (DefaultTable if nil) and the host (may
// be nil for plain scripts).
func New(table *JumpTable, host Host) *VM {
	if table == nil {
		table = DefaultTable
	}
	v := &VM{
		table: table,
		host:  host,
		state: vmstate.None,
	}
	v.results = newStack(&v.refs)
	return v
}

// State returns the VM state.
func (v *VM) State() vmstate.State {
	return v.state
}

// FaultException returns the error which caused the fault.
func (v *VM) FaultException() error {
	return v.fault
}

// Results returns the result stack.
func (v *VM) Results() *Stack {
	return v.results
}

// HasException reports whether the VM is faulted or is unwinding a thrown
// exception.
func (v *VM) HasException() bool {
	return v.state == vmstate.Fault || v.uncaught != nil
}

// Context returns the current context, nil if nothing is loaded.
func (v *VM) Context() *Context {
	if len(v.istack) == 0 {
		return nil
	}
	return v.istack[len(v.istack)-1]
}

// EntryContext returns the bottom context of the invocation stack.
func (v *VM) EntryContext() *Context {
	if len(v.istack) == 0 {
		return nil
	}
	return v.istack[0]
}

// Contexts returns invocation stack from the bottom to the top. The slice
// must not be modified.
func (v *VM) Contexts() []*Context {
	return v.istack
}

// LoadScript pushes a new context executing the script from the offset.
// Negative rvcount means any number of return values.
func (v *VM) LoadScript(script []byte, rvcount int, offset int) (*Context, error) {
	if offset < 0 || offset > len(script) {
		return nil, fmt.Errorf("%w: offset %d", ErrInvalidJump, offset)
	}
	ctx := &Context{
		script:  script,
		ip:      offset,
		nextip:  offset,
		rvcount: rvcount,
		estack:  newStack(&v.refs),
		shared:  new(sharedSlots),
		refs:    &v.refs,
	}
	return ctx, v.push(ctx)
}

// LoadClone pushes a clone of ctx starting at the offset. The clone shares
// script, evaluation stack, static fields and State with ctx.
func (v *VM) LoadClone(ctx *Context, offset int) (*Context, error) {
	if offset < 0 || offset > len(ctx.script) {
		return nil, fmt.Errorf("%w: offset %d", ErrInvalidJump, offset)
	}
	c := ctx.clone(offset)
	return c, v.push(c)
}

func (v *VM) push(ctx *Context) error {
	if len(v.istack) >= MaxInvocationStackSize {
		return ErrInvocationOverflow
	}
	v.istack = append(v.istack, ctx)
	return nil
}

// Run executes loaded scripts until the VM halts or faults.
func (v *VM) Run() vmstate.State {
	if v.state == vmstate.Fault || v.state == vmstate.Halt {
		return v.state
	}
	v.state = vmstate.None
	for v.state == vmstate.None {
		v.Step()
	}
	return v.state
}

// Step executes a single instruction.
func (v *VM) Step() {
	ctx := v.Context()
	if ctx == nil {
		v.state = vmstate.Halt
		return
	}
	if err := v.execute(ctx); err != nil {
		v.faultWith(err)
		return
	}
	if len(v.istack) == 0 {
		v.state = vmstate.Halt
	}
}

func (v *VM) execute(ctx *Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic at %d: %v", ctx.ip, r)
		}
	}()
	instr, err := decodeInstruction(ctx.script, ctx.ip)
	if err != nil {
		return err
	}
	if v.host != nil {
		if err := v.host.PreExecuteInstruction(ctx, instr.Op); err != nil {
			return err
		}
	}
	h := v.table[instr.Op]
	if h == nil {
		return fmt.Errorf("%w: 0x%02x at %d", ErrInvalidOpcode, byte(instr.Op), ctx.ip)
	}
	ctx.nextip = ctx.ip + instr.Size
	if err := h(v, ctx, instr); err != nil {
		var ce *CatchableError
		if !errors.As(err, &ce) {
			return fmt.Errorf("%s at %d: %w", instr.Op, ctx.ip, err)
		}
		if err := v.throwError(ce.Err); err != nil {
			return fmt.Errorf("%s at %d: %w", instr.Op, ctx.ip, err)
		}
	}
	ctx.ip = ctx.nextip
	if v.refs > MaxStackSize {
		return ErrStackOverflow
	}
	return nil
}

func (v *VM) faultWith(err error) {
	v.state = vmstate.Fault
	v.fault = err
	for len(v.istack) > 0 {
		ctx := v.pop()
		_ = v.unloaded(ctx)
	}
}

func (v *VM) pop() *Context {
	ctx := v.istack[len(v.istack)-1]
	v.istack[len(v.istack)-1] = nil
	v.istack = v.istack[:len(v.istack)-1]
	return ctx
}

// ret unloads the current context moving its results to the caller.
func (v *VM) ret() error {
	ctx := v.pop()
	dst := v.results
	if parent := v.Context(); parent != nil {
		dst = parent.estack
	}
	if ctx.estack != dst {
		if ctx.rvcount >= 0 && ctx.estack.Len() != ctx.rvcount {
			return fmt.Errorf("%w: expected %d, got %d", ErrRVCount, ctx.rvcount, ctx.estack.Len())
		}
		for _, item := range ctx.estack.items {
			dst.Push(item)
		}
	}
	return v.unloaded(ctx)
}

func (v *VM) unloaded(ctx *Context) error {
	var err error
	if !ctx.cloned && v.host != nil {
		err = v.host.ContextUnloaded(ctx)
	}
	if !ctx.cloned {
		ctx.estack.Clear()
	}
	ctx.releaseSlots(v.Context())
	return err
}

// throw starts exception unwinding looking for the nearest handler.
func (v *VM) throw(item stackitem.Item) error {
	v.uncaught = item
	pop := 0
	for i := len(v.istack) - 1; i >= 0; i-- {
		c := v.istack[i]
		for len(c.tries) > 0 {
			h := &c.tries[len(c.tries)-1]
			if h.state == finallyBlock || (h.state == catchBlock && !h.hasFinally()) {
				c.tries = c.tries[:len(c.tries)-1]
				continue
			}
			for range pop {
				if err := v.unloaded(v.pop()); err != nil {
					return err
				}
			}
			if h.state == tryBlock && h.hasCatch() {
				h.state = catchBlock
				c.estack.Push(v.uncaught)
				c.ip, c.nextip = h.catchPtr, h.catchPtr
				v.uncaught = nil
			} else {
				h.state = finallyBlock
				c.ip, c.nextip = h.finallyPtr, h.finallyPtr
			}
			return nil
		}
		pop++
	}
	return &UnhandledError{Message: exceptionMessage(item)}
}

// throwError raises the instruction failure as an exception with the error
// message as the thrown item.
func (v *VM) throwError(cause error) error {
	err := v.throw(stackitem.NewByteArray([]byte(cause.Error())))
	var uerr *UnhandledError
	if errors.As(err, &uerr) {
		uerr.Err = cause
	}
	return err
}

func exceptionMessage(item stackitem.Item) string {
	if item == nil {
		return ""
	}
	switch item.Type() {
	case stackitem.ByteArrayT, stackitem.BufferT, stackitem.IntegerT, stackitem.BooleanT:
		b, err := item.TryBytes()
		if err == nil {
			return string(b)
		}
	}
	return item.Type().String()
}
