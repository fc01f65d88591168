package connection

import (
	"encoding/json"
	"fmt"
	"strconv"

	gojson "github.com/goccy/go-json"

	"github.com/litwallet/litclient.go/pkg/constants"
)

// Key identifies who a reply frame belongs to. It is either the integer
// correlation id of a request, or the reserved NotificationKey that matches
// frames the daemon pushes with a null id.
//
// The zero value is request id 0, not the notification key.
type Key struct {
	id     uint64
	notify bool
}

// NotificationKey matches every frame whose id is null or missing.
var NotificationKey = Key{notify: true}

// RequestKey is the key of the request with the given correlation id.
func RequestKey(id uint64) Key {
	return Key{id: id}
}

// IsNotification reports whether k is the reserved notification key.
func (k Key) IsNotification() bool {
	return k.notify
}

// ID returns the correlation id. It is meaningless for NotificationKey.
func (k Key) ID() uint64 {
	return k.id
}

func (k Key) String() string {
	if k.notify {
		return "null"
	}
	return strconv.FormatUint(k.id, 10)
}

// RPCRequest is the frame sent for every call.
//
// Params is always encoded as an array, even when the method takes nothing,
// because the daemon's jsonrpc codec rejects a missing params field.
type RPCRequest struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
	ID     uint64 `json:"id"`
}

// RPCResponse is a decoded reply or notification frame.
// ID is nil for notifications.
type RPCResponse struct {
	ID     *uint64         `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
}

// RPCError carries the daemon's error payload verbatim.
//
// The lit daemon serves net/rpc/jsonrpc, so the payload is almost always a
// JSON string, but any JSON value is kept as-is.
type RPCError struct {
	Payload json.RawMessage
}

func (r *RPCError) Error() string {
	if msg, ok := r.Message(); ok {
		return msg
	}
	return string(r.Payload)
}

// Message returns the payload as a Go string when it is a JSON string.
func (r *RPCError) Message() (string, bool) {
	var msg string
	if err := gojson.Unmarshal(r.Payload, &msg); err != nil {
		return "", false
	}
	return msg, true
}

func (r *RPCError) Is(target error) bool {
	if target == nil {
		return r == nil
	}

	_, ok := target.(*RPCError)
	return ok
}

// ConnectionError reports that the transport failed or was closed,
// so the call never got (or never will get) its reply.
type ConnectionError struct {
	// Op is what the connection was doing: "dial", "read", "write" or "close".
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("lit connection %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Is makes every ConnectionError match constants.ErrConnectionClosed.
func (e *ConnectionError) Is(target error) bool {
	return target == constants.ErrConnectionClosed
}
