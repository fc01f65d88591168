package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/litwallet/litclient.go/internal/codec"
	"github.com/litwallet/litclient.go/pkg/constants"
	"github.com/litwallet/litclient.go/pkg/logger"
)

// Connection is the surface callers and the litclient facade rely on.
type Connection interface {
	Connect(ctx context.Context) error
	Start(ctx context.Context)
	Close(ctx context.Context) error
	// Go issues a call without waiting for it.
	Go(method string, params ...any) *Call
	// Send issues a call and waits for its result.
	Send(ctx context.Context, method string, params ...any) (json.RawMessage, error)
	Register(key Key, handler Handler)
	Unregister(key Key)
	GetUnmarshaler() codec.Unmarshaler
}

// Handler receives the result of every frame routed to the key it was
// registered under. It runs on the connection's read goroutine, so it must
// not wait on replies from the same connection.
type Handler func(result json.RawMessage)

// Toolkit is the transport-independent half of a connection: id
// allocation, the table of pending calls, registered handlers, the ordered
// outbox of frames waiting to be written, and inbound dispatch.
//
// All of it is owned by one connection. The zero value is ready to use once
// the exported fields are set.
type Toolkit struct {
	Endpoint    string
	Marshaler   codec.Marshaler
	Unmarshaler codec.Unmarshaler
	Logger      logger.Logger

	mu       sync.Mutex
	nextID   uint64
	pending  map[uint64]*Call
	handlers map[Key]Handler
	outbox   []*Call
	wake     chan struct{}
	// failure is set once; after that no call is accepted.
	failure error
}

func (tk *Toolkit) log() logger.Logger {
	if tk.Logger == nil {
		return logger.Nop()
	}
	return tk.Logger
}

// PreConnectionChecks validates the fields a transport needs.
func (tk *Toolkit) PreConnectionChecks() error {
	if tk.Endpoint == "" {
		return constants.ErrNoEndpoint
	}

	if tk.Marshaler == nil {
		return constants.ErrNoMarshaler
	}

	if tk.Unmarshaler == nil {
		return constants.ErrNoUnmarshaler
	}

	return nil
}

// Wake is signalled whenever the outbox gains a call.
func (tk *Toolkit) Wake() <-chan struct{} {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	return tk.wakeLocked()
}

func (tk *Toolkit) wakeLocked() chan struct{} {
	if tk.wake == nil {
		tk.wake = make(chan struct{}, 1)
	}
	return tk.wake
}

// Enqueue allocates the next id, records the call as pending and appends it
// to the outbox. Allocation and queueing share one lock, so the outbox is
// always in id order.
func (tk *Toolkit) Enqueue(method string, params []any) *Call {
	if params == nil {
		params = []any{}
	}
	if method == "" {
		return failedCall(method, params, constants.ErrEmptyMethod)
	}

	tk.mu.Lock()
	defer tk.mu.Unlock()

	if tk.failure != nil {
		return failedCall(method, params, tk.failure)
	}

	if tk.pending == nil {
		tk.pending = make(map[uint64]*Call)
	}

	call := newCall(tk.nextID, method, params)
	tk.nextID++
	tk.pending[call.ID] = call
	tk.outbox = append(tk.outbox, call)

	select {
	case tk.wakeLocked() <- struct{}{}:
	default:
	}

	return call
}

// TakeOutbox removes and returns every queued call, oldest first.
func (tk *Toolkit) TakeOutbox() []*Call {
	tk.mu.Lock()
	defer tk.mu.Unlock()

	calls := tk.outbox
	tk.outbox = nil
	return calls
}

// IsPending reports whether id still waits for its reply.
func (tk *Toolkit) IsPending(id uint64) bool {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	_, ok := tk.pending[id]
	return ok
}

// Pending is the number of calls waiting for a reply.
func (tk *Toolkit) Pending() int {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	return len(tk.pending)
}

func (tk *Toolkit) take(id uint64) (*Call, bool) {
	tk.mu.Lock()
	defer tk.mu.Unlock()

	call, ok := tk.pending[id]
	if ok {
		delete(tk.pending, id)
	}
	return call, ok
}

// Resolve settles call id with result and drops it from the table.
func (tk *Toolkit) Resolve(id uint64, result json.RawMessage) bool {
	call, ok := tk.take(id)
	if !ok {
		return false
	}
	return call.settle(result, nil)
}

// Reject settles call id with err and drops it from the table.
func (tk *Toolkit) Reject(id uint64, err error) bool {
	call, ok := tk.take(id)
	if !ok {
		return false
	}
	return call.settle(nil, err)
}

// Abandon drops call from the table and settles it with err, unless a reply
// settled it first.
func (tk *Toolkit) Abandon(call *Call, err error) {
	tk.mu.Lock()
	if cur, ok := tk.pending[call.ID]; ok && cur == call {
		delete(tk.pending, call.ID)
	}
	tk.mu.Unlock()

	call.settle(nil, err)
}

// Fail rejects every pending call with err and makes every later Enqueue
// fail with it too. Only the first failure is kept.
func (tk *Toolkit) Fail(err error) int {
	tk.mu.Lock()
	if tk.failure == nil {
		tk.failure = err
	}
	err = tk.failure
	calls := tk.pending
	tk.pending = nil
	tk.outbox = nil
	tk.mu.Unlock()

	for _, call := range calls {
		call.settle(nil, err)
	}
	return len(calls)
}

// Failure is the error the toolkit failed with, or nil.
func (tk *Toolkit) Failure() error {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	return tk.failure
}

// Register installs handler under key, replacing any earlier one.
func (tk *Toolkit) Register(key Key, handler Handler) {
	tk.mu.Lock()
	defer tk.mu.Unlock()

	if tk.handlers == nil {
		tk.handlers = make(map[Key]Handler)
	}

	if _, ok := tk.handlers[key]; ok {
		tk.log().Debug("replacing handler", "key", key.String())
	}
	tk.handlers[key] = handler
}

// Unregister removes the handler under key, if any. Later frames for key
// are handled as if it had never been registered.
func (tk *Toolkit) Unregister(key Key) {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	delete(tk.handlers, key)
}

func (tk *Toolkit) handler(key Key) (Handler, bool) {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	h, ok := tk.handlers[key]
	return h, ok && h != nil
}

// Dispatch routes one inbound frame. Frames must be dispatched one at a
// time, in arrival order.
func (tk *Toolkit) Dispatch(data []byte) {
	frame, err := ParseFrame(data)
	if err != nil {
		tk.log().Error("failed to parse reply frame", "error", err, "frame", string(data))
		return
	}

	key := frame.Key()

	switch frame.Kind() {
	case FrameError:
		// An error without an id cannot be matched to anything; treating it as
		// a notification would hand the error to the push handler as a result.
		if key.IsNotification() {
			tk.log().Error(fmt.Sprintf("error in response: %v", frame.Err()))
			return
		}
		if !tk.Reject(key.ID(), frame.Err()) {
			tk.log().Warn("error reply for unknown request", "id", key.ID(), "error", frame.Err())
		}
	case FrameNotification:
		h, ok := tk.handler(NotificationKey)
		if !ok {
			tk.log().Debug("dropping notification, no handler registered")
			return
		}
		h(frame.Result())
	default:
		if tk.Resolve(key.ID(), frame.Result()) {
			return
		}
		if h, ok := tk.handler(key); ok {
			h(frame.Result())
			return
		}
		tk.log().Warn("reply for unknown request", "id", key.ID())
	}
}
