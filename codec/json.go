package codec

import (
	"bytes"
	"errors"
	"fmt"
	gio "io"
	"math/big"
	"unicode/utf8"

	json "github.com/nspcc-dev/go-ordered-json"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
)

// MaxJSONDepth is the maximum nesting level accepted by FromJSON.
const MaxJSONDepth = 10

// ErrNumberOutOfRange is returned for integers that can't be represented
// exactly as IEEE-754 double.
var ErrNumberOutOfRange = errors.New("number out of range")

var (
	maxSafeInteger = big.NewInt(1<<53 - 1)
	minSafeInteger = new(big.Int).Neg(maxSafeInteger)
)

// ToJSON encodes item as JSON. Byte strings must be valid UTF-8 and map keys
// must be byte strings.
func ToJSON(item stackitem.Item) ([]byte, error) {
	return ToJSONLimited(item, DefaultLimits)
}

// ToJSONLimited is the same as ToJSON but with custom limits, only MaxSize is
// used.
func ToJSONLimited(item stackitem.Item, l Limits) ([]byte, error) {
	var (
		buf     bytes.Buffer
		visited = make(map[stackitem.Item]struct{})
	)

	err := toJSON(&buf, item, visited, l.MaxSize)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toJSON(buf *bytes.Buffer, item stackitem.Item, visited map[stackitem.Item]struct{}, maxSize int) error {
	if buf.Len() > maxSize {
		return ErrTooLarge
	}

	switch t := item.(type) {
	case *stackitem.Array, *stackitem.Struct:
		if _, ok := visited[item]; ok {
			return ErrCircularReference
		}
		visited[item] = struct{}{}

		buf.WriteByte('[')
		for i, e := range item.Value().([]stackitem.Item) {
			if i != 0 {
				buf.WriteByte(',')
			}
			if err := toJSON(buf, e, visited, maxSize); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		delete(visited, item)
	case *stackitem.Map:
		if _, ok := visited[item]; ok {
			return ErrCircularReference
		}
		visited[item] = struct{}{}

		buf.WriteByte('{')
		for i, e := range t.Value().([]stackitem.MapElement) {
			k, ok := e.Key.(*stackitem.ByteArray)
			if !ok {
				return fmt.Errorf("%w: %s", ErrInvalidMapKey, e.Key.Type())
			}
			if i != 0 {
				buf.WriteByte(',')
			}
			if err := writeJSONString(buf, k.Value().([]byte)); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := toJSON(buf, e.Value, visited, maxSize); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		delete(visited, item)
	case *stackitem.ByteArray, *stackitem.Buffer:
		return writeJSONString(buf, item.Value().([]byte))
	case *stackitem.BigInteger:
		n := t.Value().(*big.Int)
		if n.CmpAbs(maxSafeInteger) > 0 {
			return ErrNumberOutOfRange
		}
		buf.WriteString(n.String())
	case stackitem.Bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case stackitem.Null:
		buf.WriteString("null")
	default:
		return fmt.Errorf("%w: %s", ErrUnserializable, item.Type())
	}

	if buf.Len() > maxSize {
		return ErrTooLarge
	}
	return nil
}

func writeJSONString(buf *bytes.Buffer, b []byte) error {
	if !utf8.Valid(b) {
		return fmt.Errorf("%w: invalid UTF-8 string", ErrInvalidFormat)
	}
	data, err := json.Marshal(string(b))
	if err != nil {
		return err
	}
	buf.Write(data)
	return nil
}

// FromJSON decodes JSON data into stack item. Objects become maps with byte
// string keys, numbers must be integers within the safe range.
func FromJSON(data []byte, maxItems int) (stackitem.Item, error) {
	d := json.NewDecoder(bytes.NewReader(data))
	d.UseNumber()

	count := maxItems
	item, err := fromJSON(d, &count, 0)
	if err != nil {
		return nil, err
	}
	if _, err = d.Token(); !errors.Is(err, gio.EOF) {
		return nil, fmt.Errorf("%w: unexpected data after the value", ErrInvalidFormat)
	}
	return item, nil
}

func fromJSON(d *json.Decoder, count *int, depth int) (stackitem.Item, error) {
	if depth > MaxJSONDepth {
		return nil, fmt.Errorf("%w: too deep", ErrInvalidFormat)
	}
	*count--
	if *count < 0 {
		return nil, ErrTooManyItems
	}

	tok, err := d.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}
	return fromJSONToken(d, tok, count, depth)
}

func fromJSONToken(d *json.Decoder, tok json.Token, count *int, depth int) (stackitem.Item, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '[':
			var elems []stackitem.Item
			for d.More() {
				e, err := fromJSON(d, count, depth+1)
				if err != nil {
					return nil, err
				}
				elems = append(elems, e)
			}
			if _, err := d.Token(); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
			}
			return stackitem.NewArray(elems), nil
		case '{':
			m := stackitem.NewMap()
			for d.More() {
				ktok, err := d.Token()
				if err != nil {
					return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
				}
				k := stackitem.NewByteArray([]byte(ktok.(string)))
				if err := CheckMapKey(k); err != nil {
					return nil, err
				}
				v, err := fromJSON(d, count, depth+1)
				if err != nil {
					return nil, err
				}
				m.Add(k, v)
			}
			if _, err := d.Token(); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
			}
			return m, nil
		default:
			return nil, fmt.Errorf("%w: unexpected delimiter %s", ErrInvalidFormat, t)
		}
	case json.Number:
		n, ok := new(big.Int).SetString(string(t), 10)
		if !ok {
			f, _, err := big.ParseFloat(string(t), 10, 128, big.ToNearestEven)
			if err != nil || !f.IsInt() {
				return nil, fmt.Errorf("%w: not an integer %s", ErrInvalidFormat, t)
			}
			n, _ = f.Int(nil)
		}
		if n.Cmp(maxSafeInteger) > 0 || n.Cmp(minSafeInteger) < 0 {
			return nil, ErrNumberOutOfRange
		}
		return stackitem.NewBigInteger(n), nil
	case string:
		return stackitem.NewByteArray([]byte(t)), nil
	case bool:
		return stackitem.NewBool(t), nil
	case nil:
		return stackitem.Null{}, nil
	default:
		return nil, fmt.Errorf("%w: unexpected token %v", ErrInvalidFormat, t)
	}
}
