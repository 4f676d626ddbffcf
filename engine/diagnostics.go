package engine

import (
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/opcode"
	"github.com/nspcc-dev/neoexec/vm"
)

// Diagnostics observes an execution.
type Diagnostics interface {
	Initialized(e *Engine)
	ContextLoaded(ctx *vm.Context)
	ContextUnloaded(ctx *vm.Context)
	PreExecuteInstruction(op opcode.Opcode)
}

// InvocationNode is a script invocation with its nested calls.
type InvocationNode struct {
	Hash     util.Uint160
	Children []*InvocationNode

	parent *InvocationNode
}

// InvocationTree records the tree of script invocations and the number of
// executed instructions.
type InvocationTree struct {
	Roots        []*InvocationNode
	Instructions int

	current *InvocationNode
}

// Initialized implements Diagnostics.
func (t *InvocationTree) Initialized(*Engine) {}

// ContextLoaded implements Diagnostics.
func (t *InvocationTree) ContextLoaded(ctx *vm.Context) {
	n := &InvocationNode{Hash: ctx.ScriptHash(), parent: t.current}
	if cs := StateOf(ctx); cs != nil {
		n.Hash = cs.ScriptHash
	}
	if t.current == nil {
		t.Roots = append(t.Roots, n)
	} else {
		t.current.Children = append(t.current.Children, n)
	}
	t.current = n
}

// ContextUnloaded implements Diagnostics.
func (t *InvocationTree) ContextUnloaded(*vm.Context) {
	if t.current != nil {
		t.current = t.current.parent
	}
}

// PreExecuteInstruction implements Diagnostics.
func (t *InvocationTree) PreExecuteInstruction(opcode.Opcode) {
	t.Instructions++
}

// MultiDiagnostics passes events to all of the observers in order.
type MultiDiagnostics []Diagnostics

// Initialized implements Diagnostics.
func (m MultiDiagnostics) Initialized(e *Engine) {
	for _, d := range m {
		d.Initialized(e)
	}
}

// ContextLoaded implements Diagnostics.
func (m MultiDiagnostics) ContextLoaded(ctx *vm.Context) {
	for _, d := range m {
		d.ContextLoaded(ctx)
	}
}

// ContextUnloaded implements Diagnostics.
func (m MultiDiagnostics) ContextUnloaded(ctx *vm.Context) {
	for _, d := range m {
		d.ContextUnloaded(ctx)
	}
}

// PreExecuteInstruction implements Diagnostics.
func (m MultiDiagnostics) PreExecuteInstruction(op opcode.Opcode) {
	for _, d := range m {
		d.PreExecuteInstruction(op)
	}
}
