package connection

import (
	"fmt"
	"strconv"

	"github.com/buger/jsonparser"

	"github.com/litwallet/litclient.go/pkg/constants"
)

// FrameKind says which branch of dispatch an inbound frame takes.
type FrameKind int

const (
	// FrameReply carries a result for a request id.
	FrameReply FrameKind = iota
	// FrameError carries a non-null error. Its result is ignored.
	FrameError
	// FrameNotification has a null or missing id and no error.
	FrameNotification
)

func (k FrameKind) String() string {
	switch k {
	case FrameReply:
		return "reply"
	case FrameError:
		return "error"
	case FrameNotification:
		return "notification"
	default:
		return fmt.Sprintf("FrameKind(%d)", int(k))
	}
}

// RawFrame is an inbound frame that is classified without decoding the
// result, which may be large and is only ever handed on as raw JSON.
type RawFrame struct {
	Data []byte

	parsed bool
	kind   FrameKind
	key    Key
	result []byte
	errVal []byte
}

// ParseFrame classifies data. It fails only when the frame is not a JSON
// object or its id is neither null nor a non-negative integer.
func ParseFrame(data []byte) (*RawFrame, error) {
	f := &RawFrame{Data: data}
	if err := f.parse(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RawFrame) parse() error {
	if f.parsed {
		return nil
	}

	if len(f.Data) == 0 {
		return fmt.Errorf("%w: empty frame", constants.ErrInvalidFrame)
	}

	// jsonparser happily walks arrays and scalars, so check the shape first.
	if _, dataType, _, err := jsonparser.Get(f.Data); err != nil || dataType != jsonparser.Object {
		return fmt.Errorf("%w: not a json object", constants.ErrInvalidFrame)
	}

	var err error
	f.key, err = frameKey(f.Data)
	if err != nil {
		return err
	}

	f.errVal, err = rawField(f.Data, "error")
	if err != nil {
		return err
	}
	// A non-null error wins; the result of an error frame is never read.
	if f.errVal == nil {
		f.result, err = rawField(f.Data, "result")
		if err != nil {
			return err
		}
	}

	switch {
	case f.errVal != nil:
		f.kind = FrameError
	case f.key.IsNotification():
		f.kind = FrameNotification
	default:
		f.kind = FrameReply
	}

	f.parsed = true
	return nil
}

func frameKey(data []byte) (Key, error) {
	value, dataType, _, err := jsonparser.Get(data, "id")
	switch {
	case dataType == jsonparser.NotExist, dataType == jsonparser.Null:
		return NotificationKey, nil
	case err != nil:
		return Key{}, fmt.Errorf("%w: %v", constants.ErrInvalidFrame, err)
	case dataType != jsonparser.Number:
		return Key{}, fmt.Errorf("%w: id is a %s", constants.ErrInvalidFrame, dataType)
	}

	id, err := strconv.ParseUint(string(value), 10, 64)
	if err != nil {
		return Key{}, fmt.Errorf("%w: id %s is not a request id", constants.ErrInvalidFrame, value)
	}
	return RequestKey(id), nil
}

// rawField returns the field as standalone JSON, or nil when it is missing
// or null.
func rawField(data []byte, name string) ([]byte, error) {
	value, dataType, _, err := jsonparser.Get(data, name)
	switch {
	case dataType == jsonparser.NotExist, dataType == jsonparser.Null:
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("%w: %s: %v", constants.ErrInvalidFrame, name, err)
	case dataType == jsonparser.String:
		// jsonparser strips the quotes but leaves escapes alone.
		quoted := make([]byte, 0, len(value)+2)
		quoted = append(quoted, '"')
		quoted = append(quoted, value...)
		return append(quoted, '"'), nil
	default:
		return value, nil
	}
}

func (f *RawFrame) Kind() FrameKind {
	return f.kind
}

func (f *RawFrame) Key() Key {
	return f.key
}

// Result is the raw result, or nil when it was null or missing.
func (f *RawFrame) Result() []byte {
	return f.result
}

// Err returns the frame's error payload as an *RPCError, or nil.
func (f *RawFrame) Err() error {
	if f.errVal == nil {
		return nil
	}
	return &RPCError{Payload: f.errVal}
}
