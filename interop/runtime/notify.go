package runtime

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/nspcc-dev/neo-go/pkg/smartcontract"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/neoexec/codec"
	"github.com/nspcc-dev/neoexec/config"
	"github.com/nspcc-dev/neoexec/engine"
	"github.com/nspcc-dev/neoexec/vm"
)

// Notification limits.
const (
	MaxEventNameLen     = 32
	MaxNotificationSize = 1024
)

// Errors returned by notification services.
var (
	ErrInvalidEvent       = errors.New("invalid event")
	ErrMessageTooLong     = errors.New("message is too long")
	ErrInvalidUTF8        = errors.New("invalid UTF-8 string")
	ErrTooManyResults     = errors.New("too many notifications to return")
	ErrDynamicScriptEvent = errors.New("notifications are not allowed in dynamic scripts")
)

// Log emits a log message of the executing script.
func Log(e *engine.Engine, args []stackitem.Item) (stackitem.Item, error) {
	msg, err := engine.ToBytes(args[0])
	if err != nil {
		return nil, err
	}
	if len(msg) > MaxNotificationSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLong, len(msg))
	}
	if !utf8.Valid(msg) {
		return nil, ErrInvalidUTF8
	}
	e.AddLog(e.CurrentScriptHash(), string(msg))
	return nil, nil
}

// Notify emits a notification of the executing script. Since Basilisk
// the event must be declared in the contract ABI with matching arguments.
func Notify(e *engine.Engine, args []stackitem.Item) (stackitem.Item, error) {
	name, err := engine.ToBytes(args[0])
	if err != nil {
		return nil, err
	}
	if len(name) > MaxEventNameLen {
		return nil, fmt.Errorf("%w: name is longer than %d bytes", ErrInvalidEvent, MaxEventNameLen)
	}
	if !utf8.Valid(name) {
		return nil, ErrInvalidUTF8
	}
	var state *stackitem.Array
	switch t := args[1].(type) {
	case *stackitem.Array:
		state = t
	case *stackitem.Struct:
		state = stackitem.NewArray(t.Value().([]stackitem.Item))
	default:
		return nil, fmt.Errorf("%w: array expected, got %s", engine.ErrInvalidArgument, args[1].Type())
	}
	if e.IsHardforkEnabled(config.HFBasilisk) {
		if err := checkEvent(e, string(name), state.Value().([]stackitem.Item)); err != nil {
			return nil, err
		}
	}
	if _, err := codec.SerializeLimited(state, codec.Limits{MaxSize: MaxNotificationSize, MaxItems: vm.MaxStackSize}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	return nil, e.AddNotification(e.CurrentScriptHash(), string(name), state)
}

func checkEvent(e *engine.Engine, name string, items []stackitem.Item) error {
	c := e.CurrentState().Contract
	if c == nil {
		return ErrDynamicScriptEvent
	}
	ev := c.Manifest.ABI.GetEvent(name)
	if ev == nil {
		return fmt.Errorf("%w: event %q does not exist", ErrInvalidEvent, name)
	}
	if len(ev.Parameters) != len(items) {
		return fmt.Errorf("%w: %q expects %d arguments, got %d", ErrInvalidEvent,
			name, len(ev.Parameters), len(items))
	}
	for i, p := range ev.Parameters {
		if !CheckItemType(items[i], p.Type) {
			return fmt.Errorf("%w: argument %q of %q is not %s", ErrInvalidEvent, p.Name, name, p.Type)
		}
	}
	return nil
}

// CheckItemType checks whether the item conforms to the parameter type.
func CheckItemType(item stackitem.Item, typ smartcontract.ParamType) bool {
	t := item.Type()
	if t == stackitem.PointerT {
		return false
	}
	sized := func(n int) bool {
		if t == stackitem.AnyT {
			return true
		}
		if t != stackitem.ByteArrayT && t != stackitem.BufferT {
			return false
		}
		b, err := item.TryBytes()
		return err == nil && len(b) == n
	}
	switch typ {
	case smartcontract.AnyType:
		return true
	case smartcontract.BoolType:
		return t == stackitem.BooleanT
	case smartcontract.IntegerType:
		return t == stackitem.IntegerT
	case smartcontract.ByteArrayType, smartcontract.StringType:
		return t == stackitem.AnyT || t == stackitem.ByteArrayT || t == stackitem.BufferT
	case smartcontract.Hash160Type:
		return sized(util.Uint160Size)
	case smartcontract.Hash256Type:
		return sized(util.Uint256Size)
	case smartcontract.PublicKeyType:
		return sized(33)
	case smartcontract.SignatureType:
		return sized(64)
	case smartcontract.ArrayType:
		return t == stackitem.AnyT || t == stackitem.ArrayT || t == stackitem.StructT
	case smartcontract.MapType:
		return t == stackitem.AnyT || t == stackitem.MapT
	case smartcontract.InteropInterfaceType:
		return t == stackitem.AnyT || t == stackitem.InteropT
	default:
		return false
	}
}

// GetNotifications returns notifications of the given script or all of
// them if the hash is Null. Event arguments are copied, so recorded events
// can't be changed by the caller.
func GetNotifications(e *engine.Engine, args []stackitem.Item) (stackitem.Item, error) {
	var filter *util.Uint160
	if _, ok := args[0].(stackitem.Null); !ok {
		h, err := engine.ToUint160(args[0])
		if err != nil {
			return nil, err
		}
		filter = &h
	}
	events := e.NotificationsOf(filter)
	if len(events) > vm.MaxStackSize {
		return nil, fmt.Errorf("%w: %d", ErrTooManyResults, len(events))
	}
	res := make([]stackitem.Item, len(events))
	for i, ev := range events {
		res[i] = stackitem.NewArray([]stackitem.Item{
			hashItem(ev.ScriptHash),
			stackitem.NewByteArray([]byte(ev.Name)),
			engine.CopyItem(ev.Item),
		})
	}
	return stackitem.NewArray(res), nil
}
