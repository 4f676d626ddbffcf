package engine

import (
	"fmt"
	"slices"
	"unicode/utf8"

	"github.com/nspcc-dev/neo-go/pkg/smartcontract"
	"github.com/nspcc-dev/neo-go/pkg/smartcontract/callflag"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/neoexec/config"
	"github.com/nspcc-dev/neoexec/interop/interopnames"
	"github.com/nspcc-dev/neoexec/vm"
)

// Func is an interop service handler. It receives arguments converted
// according to Descriptor.Params, the first parameter is the first
// argument. The result is pushed unless Descriptor.Returns is VoidType.
type Func func(e *Engine, args []stackitem.Item) (stackitem.Item, error)

// Descriptor describes an interop service.
type Descriptor struct {
	Name string
	// ID is calculated from Name by NewRegistry if zero.
	ID   uint32
	Func Func
	// Price is in execution fee factor units.
	Price         int64
	RequiredFlags callflag.CallFlag
	// Hardfork makes the service available since the given hardfork only.
	Hardfork config.Hardfork
	Params   []smartcontract.ParamType
	Returns  smartcontract.ParamType
}

// Registry is an immutable set of interop services.
type Registry struct {
	byID   map[uint32]*Descriptor
	sorted []*Descriptor
}

var emptyRegistry = &Registry{byID: map[uint32]*Descriptor{}}

// NewRegistry creates a Registry. Services must have unique IDs.
func NewRegistry(descs ...Descriptor) (*Registry, error) {
	r := &Registry{byID: make(map[uint32]*Descriptor, len(descs))}
	for i := range descs {
		d := descs[i]
		if d.ID == 0 {
			d.ID = interopnames.ToID([]byte(d.Name))
		}
		if d.Func == nil {
			return nil, fmt.Errorf("%w: %s has no handler", ErrInvalidArgument, d.Name)
		}
		if prev, ok := r.byID[d.ID]; ok {
			return nil, fmt.Errorf("%w: %s and %s have ID 0x%08x", ErrDuplicateService, prev.Name, d.Name, d.ID)
		}
		r.byID[d.ID] = &d
		r.sorted = append(r.sorted, &d)
	}
	slices.SortFunc(r.sorted, func(a, b *Descriptor) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return r, nil
}

// Get returns the service by ID, nil if there is no such service.
func (r *Registry) Get(id uint32) *Descriptor {
	return r.byID[id]
}

// Descriptors returns all services sorted by name.
func (r *Registry) Descriptors() []Descriptor {
	res := make([]Descriptor, len(r.sorted))
	for i := range r.sorted {
		res[i] = *r.sorted[i]
	}
	return res
}

// OnSysCall implements vm.Host.
func (e *Engine) OnSysCall(id uint32) error {
	d := e.registry.Get(id)
	if d == nil || (d.Hardfork != config.HFDefault && !e.IsHardforkEnabled(d.Hardfork)) {
		return fmt.Errorf("%w: 0x%08x", ErrUnknownService, id)
	}
	cs := e.CurrentState()
	if cs == nil {
		return ErrNoContext
	}
	if !cs.CallFlags.Has(d.RequiredFlags) {
		return fmt.Errorf("%w: %s requires %s, have %s", ErrCapabilityDenied, d.Name, d.RequiredFlags, cs.CallFlags)
	}
	if err := e.AddFee(d.Price * e.execFeeFactor); err != nil {
		return err
	}

	estack := e.CurrentContext().Estack()
	args := make([]stackitem.Item, len(d.Params))
	for i, typ := range d.Params {
		item, err := estack.Pop()
		if err != nil {
			return fmt.Errorf("%s: %w", d.Name, err)
		}
		if typ == smartcontract.ArrayType && item.Type() == stackitem.IntegerT {
			if item, err = popCounted(estack, item); err != nil {
				return fmt.Errorf("%s: argument %d: %w", d.Name, i, err)
			}
		}
		if args[i], err = convertParameter(item, typ); err != nil {
			return fmt.Errorf("%s: argument %d: %w", d.Name, i, err)
		}
	}
	res, err := d.Func(e, args)
	if err != nil {
		return fmt.Errorf("%s: %w", d.Name, err)
	}
	if d.Returns == smartcontract.VoidType {
		return nil
	}
	if res == nil {
		res = stackitem.Null{}
	}
	// The handler may have loaded a new context, the result belongs to the
	// caller's stack.
	estack.Push(res)
	return nil
}

// convertParameter checks that the item can be used as a parameter of the
// given type.
func convertParameter(item stackitem.Item, typ smartcontract.ParamType) (stackitem.Item, error) {
	var err error
	switch typ {
	case smartcontract.AnyType:
		return item, nil
	case smartcontract.BoolType:
		_, err = item.TryBool()
	case smartcontract.IntegerType:
		_, err = item.TryInteger()
	case smartcontract.ByteArrayType, smartcontract.SignatureType:
		if isNull(item) {
			return item, nil
		}
		_, err = item.TryBytes()
	case smartcontract.StringType:
		var b []byte
		if b, err = item.TryBytes(); err == nil && !utf8.Valid(b) {
			err = fmt.Errorf("invalid UTF-8 string")
		}
	case smartcontract.Hash160Type:
		err = checkLength(item, 20)
	case smartcontract.Hash256Type:
		err = checkLength(item, 32)
	case smartcontract.PublicKeyType:
		err = checkLength(item, 33)
	case smartcontract.ArrayType:
		switch item.(type) {
		case *stackitem.Array, *stackitem.Struct:
		default:
			err = fmt.Errorf("array expected, got %s", item.Type())
		}
	case smartcontract.MapType:
		if _, ok := item.(*stackitem.Map); !ok {
			err = fmt.Errorf("map expected, got %s", item.Type())
		}
	case smartcontract.InteropInterfaceType:
		if _, ok := item.(*stackitem.Interop); !ok {
			err = fmt.Errorf("interop interface expected, got %s", item.Type())
		}
	default:
		err = fmt.Errorf("unsupported parameter type %s", typ)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return item, nil
}

// popCounted collects an array passed as a count followed by its elements,
// the topmost element goes first.
func popCounted(estack *vm.Stack, count stackitem.Item) (stackitem.Item, error) {
	n, err := count.TryInteger()
	if err != nil {
		return nil, err
	}
	if !n.IsInt64() || n.Sign() < 0 || n.Int64() > int64(estack.Len()) {
		return nil, fmt.Errorf("%w: invalid element count %s", ErrInvalidArgument, n)
	}
	items := make([]stackitem.Item, n.Int64())
	for i := range items {
		if items[i], err = estack.Pop(); err != nil {
			return nil, err
		}
	}
	return stackitem.NewArray(items), nil
}

func isNull(item stackitem.Item) bool {
	_, ok := item.(stackitem.Null)
	return ok
}

func checkLength(item stackitem.Item, n int) error {
	b, err := item.TryBytes()
	if err != nil {
		return err
	}
	if len(b) != n {
		return fmt.Errorf("expected %d bytes, got %d", n, len(b))
	}
	return nil
}
