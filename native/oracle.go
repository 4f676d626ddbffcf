package native

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"github.com/nspcc-dev/neoexec/codec"
	"github.com/nspcc-dev/neoexec/storage"
)

const prefixRequest = 7

// Oracle provides pending oracle requests.
type Oracle struct{}

// Request is a pending oracle request.
type Request struct {
	OriginalTxID     util.Uint256
	GasForResponse   uint64
	URL              string
	Filter           *string
	CallbackContract util.Uint160
	CallbackMethod   string
	UserData         []byte
}

func requestKey(id uint64) storage.Key {
	return key(OracleID, prefixRequest, binary.BigEndian.AppendUint64(nil, id))
}

// ToStackItem implements stackitem.Convertible.
func (r *Request) ToStackItem() (stackitem.Item, error) {
	var filter stackitem.Item = stackitem.Null{}
	if r.Filter != nil {
		filter = stackitem.NewByteArray([]byte(*r.Filter))
	}
	return stackitem.NewArray([]stackitem.Item{
		stackitem.NewByteArray(r.OriginalTxID.BytesBE()),
		stackitem.NewBigInteger(new(big.Int).SetUint64(r.GasForResponse)),
		stackitem.NewByteArray([]byte(r.URL)),
		filter,
		stackitem.NewByteArray(r.CallbackContract.BytesBE()),
		stackitem.NewByteArray([]byte(r.CallbackMethod)),
		stackitem.NewByteArray(r.UserData),
	}), nil
}

// FromStackItem implements stackitem.Convertible.
func (r *Request) FromStackItem(item stackitem.Item) error {
	arr, ok := item.Value().([]stackitem.Item)
	if !ok || len(arr) != 7 {
		return fmt.Errorf("invalid oracle request")
	}
	raw, err := arr[0].TryBytes()
	if err != nil {
		return err
	}
	if r.OriginalTxID, err = util.Uint256DecodeBytesBE(raw); err != nil {
		return err
	}
	gas, err := arr[1].TryInteger()
	if err != nil || !gas.IsUint64() {
		return fmt.Errorf("invalid oracle request gas")
	}
	r.GasForResponse = gas.Uint64()
	url, err := arr[2].TryBytes()
	if err != nil {
		return err
	}
	r.URL = string(url)
	r.Filter = nil
	if _, isNull := arr[3].(stackitem.Null); !isNull {
		f, err := arr[3].TryBytes()
		if err != nil {
			return err
		}
		s := string(f)
		r.Filter = &s
	}
	if raw, err = arr[4].TryBytes(); err != nil {
		return err
	}
	if r.CallbackContract, err = util.Uint160DecodeBytesBE(raw); err != nil {
		return err
	}
	method, err := arr[5].TryBytes()
	if err != nil {
		return err
	}
	r.CallbackMethod = string(method)
	r.UserData, err = arr[6].TryBytes()
	return err
}

// GetRequest returns the request, nil if there is no such request.
func (o *Oracle) GetRequest(s *storage.Snapshot, id uint64) (*Request, error) {
	it, err := s.TryGet(requestKey(id))
	if err != nil || it == nil {
		return nil, err
	}
	r := new(Request)
	if err := it.Convertible(r); err != nil {
		return nil, fmt.Errorf("oracle request %d: %w", id, err)
	}
	return r, nil
}

// GetRequestTxID implements engine.Oracle.
func (o *Oracle) GetRequestTxID(s *storage.Snapshot, id uint64) (util.Uint256, error) {
	r, err := o.GetRequest(s, id)
	if err != nil {
		return util.Uint256{}, err
	}
	if r == nil {
		return util.Uint256{}, fmt.Errorf("%w: oracle request %d", ErrNotFound, id)
	}
	return r.OriginalTxID, nil
}

// PutRequest stores the request.
func (o *Oracle) PutRequest(s *storage.Snapshot, id uint64, r *Request) error {
	item, err := r.ToStackItem()
	if err != nil {
		return err
	}
	raw, err := codec.Serialize(item)
	if err != nil {
		return err
	}
	return s.Put(requestKey(id), storage.NewItem(raw))
}
