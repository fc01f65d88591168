package connection

import (
	"context"
	"encoding/json"
	"sync"
)

// Call is one outstanding request: the future side of Go.
//
// A Call settles exactly once, either with the reply's result or with an
// error (*RPCError, *ConnectionError, or whatever the caller gave up with).
type Call struct {
	ID     uint64
	Method string
	Params []any

	once   sync.Once
	done   chan struct{}
	result json.RawMessage
	err    error
}

func newCall(id uint64, method string, params []any) *Call {
	return &Call{
		ID:     id,
		Method: method,
		Params: params,
		done:   make(chan struct{}),
	}
}

// failedCall is a Call that settled before it ever got an id.
func failedCall(method string, params []any, err error) *Call {
	c := newCall(0, method, params)
	c.settle(nil, err)
	return c
}

// settle reports whether this was the settling call.
func (c *Call) settle(result json.RawMessage, err error) bool {
	settled := false
	c.once.Do(func() {
		c.result = result
		c.err = err
		close(c.done)
		settled = true
	})
	return settled
}

// Done is closed once the call has settled.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Result returns the outcome. It must only be called after Done is closed.
func (c *Call) Result() (json.RawMessage, error) {
	return c.result, c.err
}

// Await blocks until the call settles or ctx is done. Giving up does not
// settle the call; use Connection.Send to also drop the pending entry.
func (c *Call) Await(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-c.done:
		return c.result, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
