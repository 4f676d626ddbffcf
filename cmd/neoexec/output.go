package main

import (
	"fmt"
	"io"

	"github.com/nspcc-dev/neo-go/pkg/encoding/fixedn"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/neoexec/codec"
	"github.com/nspcc-dev/neoexec/engine"
	"github.com/nspcc-dev/neoexec/scripts"
	"github.com/xlab/treeprint"
)

func address(version byte, h util.Uint160) string {
	return scripts.AddressFromHash(version, h)
}

// itemString returns JSON representation of the item, typed neo-go JSON is
// used for items the codec can't represent.
func itemString(item stackitem.Item) string {
	if b, err := codec.ToJSON(item); err == nil {
		return string(b)
	}
	b, err := stackitem.ToJSONWithTypes(item)
	if err != nil {
		return fmt.Sprintf("<%s>", item.Type())
	}
	return string(b)
}

func printResult(w io.Writer, e *engine.Engine, version byte) {
	fmt.Fprintf(w, "State:     %s\n", e.State())
	fmt.Fprintf(w, "GAS:       %s\n", fixedn.Fixed8(e.FeeConsumed()))
	if err := e.FaultException(); err != nil {
		fmt.Fprintf(w, "Exception: %s\n", err)
	}
	res := e.ResultStack()
	fmt.Fprintf(w, "Stack:     %d item(s)\n", len(res))
	for i, item := range res {
		fmt.Fprintf(w, "  %d: %s\n", i, itemString(item))
	}
	if ns := e.Notifications(); len(ns) != 0 {
		fmt.Fprintln(w, "Notifications:")
		for _, n := range ns {
			fmt.Fprintf(w, "  %s %s %s\n", address(version, n.ScriptHash), n.Name, itemString(n.Item))
		}
	}
	if ls := e.Logs(); len(ls) != 0 {
		fmt.Fprintln(w, "Logs:")
		for _, l := range ls {
			fmt.Fprintf(w, "  %s %q\n", address(version, l.ScriptHash), l.Message)
		}
	}
}

func renderTree(t *engine.InvocationTree) string {
	tree := treeprint.New()
	tree.SetValue(fmt.Sprintf("%d instruction(s)", t.Instructions))
	for _, n := range t.Roots {
		addTreeNode(tree, n)
	}
	return tree.String()
}

func addTreeNode(b treeprint.Tree, n *engine.InvocationNode) {
	br := b.AddBranch("0x" + n.Hash.StringLE())
	for _, c := range n.Children {
		addTreeNode(br, c)
	}
}
