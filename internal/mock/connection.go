// Package mock provides an in-process connection.Connection that answers
// calls from canned replies, for tests and benchmarks that need no socket.
//
// Replies still travel as JSON frames through connection.Toolkit.Dispatch,
// so correlation and error handling are the real ones. Handlers run with
// the connection locked and must not call back into it.
package mock

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/litwallet/litclient.go/internal/codec"
	"github.com/litwallet/litclient.go/pkg/connection"
	"github.com/litwallet/litclient.go/pkg/constants"
	"github.com/litwallet/litclient.go/pkg/logger"
)

type reply struct {
	result json.RawMessage
	err    json.RawMessage
	// hold keeps the call pending until Release.
	hold bool
}

type Connection struct {
	connection.Toolkit

	// mu serializes answering so frames are dispatched one at a time.
	mu      sync.Mutex
	replies map[string]reply
	held    []*connection.Call
}

var _ connection.Connection = (*Connection)(nil)

func New() *Connection {
	c := codec.JSON{}
	return &Connection{
		Toolkit: connection.Toolkit{
			Endpoint:    "mock://lit",
			Marshaler:   c,
			Unmarshaler: c,
			Logger:      logger.Nop(),
		},
		replies: make(map[string]reply),
	}
}

func (c *Connection) mustMarshal(v any) json.RawMessage {
	data, err := c.Marshaler.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

// Reply makes method answer with result.
func (c *Connection) Reply(method string, result any) *Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies[method] = reply{result: c.mustMarshal(result)}
	return c
}

// ReplyError makes method answer with an error carrying payload.
func (c *Connection) ReplyError(method string, payload any) *Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies[method] = reply{err: c.mustMarshal(payload)}
	return c
}

// Hold makes calls to method wait until Release.
func (c *Connection) Hold(method string, result any) *Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies[method] = reply{result: c.mustMarshal(result), hold: true}
	return c
}

// Release answers held calls, newest first, so replies arrive out of order.
func (c *Connection) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(c.held) - 1; i >= 0; i-- {
		call := c.held[i]
		c.answer(call, c.replies[call.Method])
	}
	c.held = nil
}

// Push delivers result as a notification frame.
func (c *Connection) Push(result any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dispatch(connection.RPCResponse{Result: c.mustMarshal(result)})
}

func (c *Connection) Connect(ctx context.Context) error {
	return c.PreConnectionChecks()
}

func (c *Connection) Start(ctx context.Context) {}

func (c *Connection) Close(ctx context.Context) error {
	c.Fail(&connection.ConnectionError{Op: "close", Err: constants.ErrConnectionClosed})
	return nil
}

func (c *Connection) Go(method string, params ...any) *connection.Call {
	call := c.Enqueue(method, params)

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, queued := range c.TakeOutbox() {
		r, ok := c.replies[queued.Method]
		switch {
		case !ok:
			c.answer(queued, reply{err: c.mustMarshal("rpc: can't find method " + queued.Method)})
		case r.hold:
			c.held = append(c.held, queued)
		default:
			c.answer(queued, r)
		}
	}

	return call
}

func (c *Connection) Send(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	call := c.Go(method, params...)
	select {
	case <-call.Done():
		return call.Result()
	case <-ctx.Done():
		c.Abandon(call, ctx.Err())
		return call.Result()
	}
}

func (c *Connection) GetUnmarshaler() codec.Unmarshaler {
	return c.Unmarshaler
}

func (c *Connection) answer(call *connection.Call, r reply) {
	id := call.ID
	c.dispatch(connection.RPCResponse{ID: &id, Result: r.result, Error: r.err})
}

func (c *Connection) dispatch(frame connection.RPCResponse) {
	if frame.Result == nil {
		frame.Result = json.RawMessage("null")
	}
	if frame.Error == nil {
		frame.Error = json.RawMessage("null")
	}
	c.Dispatch(c.mustMarshal(frame))
}
