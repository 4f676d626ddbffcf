package vm

import (
	"github.com/nspcc-dev/neo-go/pkg/crypto/hash"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/opcode"
)

// MaxTryNestingDepth is the maximum number of nested TRY blocks per context.
const MaxTryNestingDepth = 16

type tryState byte

const (
	tryBlock tryState = iota
	catchBlock
	finallyBlock
)

// exceptionHandler describes a single TRY block.
type exceptionHandler struct {
	catchPtr   int
	finallyPtr int
	endPtr     int
	state      tryState
}

func (h *exceptionHandler) hasCatch() bool   { return h.catchPtr >= 0 }
func (h *exceptionHandler) hasFinally() bool { return h.finallyPtr >= 0 }

// sharedSlots holds static fields shared by a context and its clones.
type sharedSlots struct {
	static *slot
}

// Context is a single frame of the invocation stack.
type Context struct {
	script     []byte
	scriptHash *util.Uint160
	ip         int
	nextip     int
	rvcount    int

	estack *Stack
	shared *sharedSlots
	local  *slot
	args   *slot
	tries  []exceptionHandler
	cloned bool
	refs   *refCounter

	// State is an arbitrary value attached by the host. Contexts created by
	// CALL share the State of their parent.
	State any
}

// Script returns the executed script.
func (c *Context) Script() []byte {
	return c.script
}

// ScriptHash returns Hash160 of the script.
func (c *Context) ScriptHash() util.Uint160 {
	if c.scriptHash == nil {
		h := hash.Hash160(c.script)
		c.scriptHash = &h
	}
	return *c.scriptHash
}

// IP returns the position of the current instruction.
func (c *Context) IP() int {
	return c.ip
}

// NextIP returns the position of the instruction to be executed next.
func (c *Context) NextIP() int {
	return c.nextip
}

// Jump sets the position of the next instruction.
func (c *Context) Jump(pos int) error {
	if pos < 0 || pos > len(c.script) {
		return ErrInvalidJump
	}
	c.nextip = pos
	return nil
}

// RVCount returns the number of values expected to be returned, -1 means
// any number.
func (c *Context) RVCount() int {
	return c.rvcount
}

// Estack returns the evaluation stack of the context.
func (c *Context) Estack() *Stack {
	return c.estack
}

// IsClone reports whether the context was created by CALL family
// instructions or LoadClone and shares its script with the parent.
func (c *Context) IsClone() bool {
	return c.cloned
}

// CurrentOpcode returns the opcode at the instruction pointer.
func (c *Context) CurrentOpcode() opcode.Opcode {
	if c.ip >= len(c.script) {
		return opcode.RET
	}
	return opcode.Opcode(c.script[c.ip])
}

func (c *Context) clone(pos int) *Context {
	return &Context{
		script:     c.script,
		scriptHash: c.scriptHash,
		ip:         pos,
		nextip:     pos,
		estack:     c.estack,
		shared:     c.shared,
		cloned:     true,
		refs:       c.refs,
		State:      c.State,
	}
}

func (c *Context) releaseSlots(parent *Context) {
	c.local.release()
	c.args.release()
	if parent == nil || parent.shared != c.shared {
		c.shared.static.release()
		c.shared.static = nil
	}
}
