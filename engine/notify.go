package engine

import (
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"go.uber.org/zap"
)

// MaxNotificationCount is the maximum number of notifications per execution.
const MaxNotificationCount = 512

// NotifyEvent is a notification emitted by a contract.
type NotifyEvent struct {
	Container  util.Uint256
	ScriptHash util.Uint160
	Name       string
	Item       *stackitem.Array
}

// LogEvent is a message emitted by System.Runtime.Log.
type LogEvent struct {
	Container  util.Uint256
	ScriptHash util.Uint160
	Message    string
}

func (e *Engine) containerHash() util.Uint256 {
	if e.container == nil {
		return util.Uint256{}
	}
	return e.container.Hash()
}

// AddNotification appends a notification emitted by the current context.
// Arguments are copied.
func (e *Engine) AddNotification(h util.Uint160, name string, args *stackitem.Array) error {
	if len(e.notifications) >= MaxNotificationCount {
		return fmt.Errorf("%w: %d", ErrTooManyNotifications, MaxNotificationCount)
	}
	cs := e.CurrentState()
	if cs == nil {
		return ErrNoContext
	}
	cp := CopyItem(args).(*stackitem.Array)
	e.notifications = append(e.notifications, NotifyEvent{
		Container:  e.containerHash(),
		ScriptHash: h,
		Name:       name,
		Item:       cp,
	})
	cs.NotificationCount++
	return nil
}

// Notifications returns notifications emitted by committed contexts and the
// ones still executing.
func (e *Engine) Notifications() []NotifyEvent {
	return e.notifications
}

// NotificationsOf returns notifications of the contract, all notifications
// if h is nil.
func (e *Engine) NotificationsOf(h *util.Uint160) []NotifyEvent {
	if h == nil {
		return e.notifications
	}
	var res []NotifyEvent
	for _, n := range e.notifications {
		if n.ScriptHash == *h {
			res = append(res, n)
		}
	}
	return res
}

// AddLog records a log message of the contract.
func (e *Engine) AddLog(h util.Uint160, msg string) {
	e.logs = append(e.logs, LogEvent{
		Container:  e.containerHash(),
		ScriptHash: h,
		Message:    msg,
	})
	e.log.Debug("runtime log",
		zap.Stringer("contract", h),
		zap.String("message", msg))
}

// Logs returns messages logged by contracts.
func (e *Engine) Logs() []LogEvent {
	return e.logs
}

// CopyItem returns a deep copy of the item. Recorded notification arguments
// are only handed out to scripts as copies.
func CopyItem(item stackitem.Item) stackitem.Item {
	return deepCopy(item, make(map[stackitem.Item]stackitem.Item))
}

// deepCopy copies compound items preserving shared references, buffers are
// converted to byte strings.
func deepCopy(item stackitem.Item, seen map[stackitem.Item]stackitem.Item) stackitem.Item {
	if c, ok := seen[item]; ok {
		return c
	}
	switch t := item.(type) {
	case *stackitem.Array:
		res := stackitem.NewArray(nil)
		seen[item] = res
		for _, elem := range t.Value().([]stackitem.Item) {
			res.Append(deepCopy(elem, seen))
		}
		return res
	case *stackitem.Struct:
		res := stackitem.NewStruct(nil)
		seen[item] = res
		for _, elem := range t.Value().([]stackitem.Item) {
			res.Append(deepCopy(elem, seen))
		}
		return res
	case *stackitem.Map:
		res := stackitem.NewMap()
		seen[item] = res
		for _, elem := range t.Value().([]stackitem.MapElement) {
			res.Add(elem.Key, deepCopy(elem.Value, seen))
		}
		return res
	case *stackitem.Buffer:
		return stackitem.NewByteArray(append([]byte{}, t.Value().([]byte)...))
	}
	return item
}
