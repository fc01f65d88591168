package gorillaws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	gorilla "github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/litwallet/litclient.go/internal/codec"
	"github.com/litwallet/litclient.go/pkg/connection"
	"github.com/litwallet/litclient.go/pkg/constants"
	"github.com/litwallet/litclient.go/pkg/logger"
)

// DefaultDialer is the default gorilla dialer used by Connection.
//
// It is gorilla's default dialer as of gorilla/websocket v1.5.0 with
// EnableCompression set to true.
var DefaultDialer = &gorilla.Dialer{
	Proxy:             gorilla.DefaultDialer.Proxy,
	HandshakeTimeout:  gorilla.DefaultDialer.HandshakeTimeout,
	EnableCompression: true,
}

// Option runs against the freshly dialed socket, before any call goes out.
// An error aborts the dial.
type Option func(ws *Connection) error

const (
	// StateUnknown is the zero value, so a Connection that was not built with
	// New is easy to spot.
	StateUnknown State = iota
	// StatePending is the state before Connect or Start. Calls made now are
	// queued.
	StatePending
	// StateConnecting means the dial is in flight. Calls are still queued.
	StateConnecting
	// StateConnected means the socket is open and queued calls are flowing.
	StateConnected
	// StateDisconnecting means Close is sending the close frame.
	StateDisconnecting
	// StateDisconnected is terminal. Every call fails with a ConnectionError.
	StateDisconnected
)

// State represents the state of the connection.
//
// The only valid transitions are:
//
//	StatePending       -> StateConnecting, StateDisconnected (Close before Connect)
//	StateConnecting    -> StateConnected, StateDisconnected (dial failed or Close)
//	StateConnected     -> StateDisconnecting (Close), StateDisconnected (read/write failure)
//	StateDisconnecting -> StateDisconnected
//
// There is no way back from StateDisconnected; build a new Connection.
type State int

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Connection multiplexes calls to one lit daemon over one websocket.
type Connection struct {
	connection.Toolkit

	Conn *gorilla.Conn
	// connLock serializes writes to Conn and guards swapping it.
	connLock sync.Mutex

	stateLock sync.RWMutex
	state     State
	// open is the socket once connected. It is guarded by stateLock rather
	// than connLock so stop can close it while a write is blocked.
	open *gorilla.Conn

	// Timeout is the timeout for receiving the reply to a Send.
	//
	// If the timeout is reached, Send returns an error wrapping
	// constants.ErrTimeout. Set it to 0 to rely on the caller's context alone.
	Timeout time.Duration

	// CloseTimeout bounds the close handshake when Close gets a context
	// without a deadline.
	CloseTimeout time.Duration

	Dialer *gorilla.Dialer
	Option []Option

	limiter *rate.Limiter

	// done is cancelled once the connection is shut down. It stops the write
	// loop and any wait on the limiter.
	done     context.Context
	shutdown context.CancelFunc
	stopOnce sync.Once
}

var _ connection.Connection = (*Connection)(nil)

func New(p *connection.Config) *Connection {
	l := p.Logger
	if l == nil {
		l = logger.Nop()
	}

	done, shutdown := context.WithCancel(context.Background())

	dialer := *DefaultDialer
	dialer.EnableCompression = p.Compression

	ws := &Connection{
		Toolkit: connection.Toolkit{
			Endpoint: p.Endpoint(),

			Marshaler:   p.Marshaler,
			Unmarshaler: p.Unmarshaler,
		},
		CloseTimeout: constants.DefaultTimeout,
		Dialer:       &dialer,
		limiter:      p.Limiter(),
		state:        StatePending,
		done:         done,
		shutdown:     shutdown,
	}

	return ws.SetTimeOut(p.Timeout).SetLogger(l).SetCompression(p.Compression)
}

// State returns the current connection state.
func (ws *Connection) State() State {
	ws.stateLock.RLock()
	defer ws.stateLock.RUnlock()

	return ws.state
}

// IsClosed reports whether the connection reached its terminal state.
func (ws *Connection) IsClosed() bool {
	return ws.State() == StateDisconnected
}

func (ws *Connection) transitionToConnecting() error {
	ws.stateLock.Lock()
	defer ws.stateLock.Unlock()

	switch ws.state {
	case StatePending:
		ws.Logger.Debug("connection is pending, trying to connect", "endpoint", ws.Endpoint)
	case StateConnecting, StateConnected:
		return constants.ErrAlreadyConnected
	case StateDisconnecting, StateDisconnected:
		return &connection.ConnectionError{Op: "dial", Err: constants.ErrConnectionClosed}
	default:
		ws.Logger.Warn("BUG: connection is in an unknown state, trying to connect anyway",
			"state", ws.state.String(),
		)
	}

	ws.state = StateConnecting

	return nil
}

// Connect dials the daemon and blocks until the socket is open or the dial
// fails. Calls made before Connect are queued and go out once it succeeds,
// in the order they were made. If the dial fails, every queued call fails
// with a ConnectionError and the connection is closed for good.
func (ws *Connection) Connect(ctx context.Context) error {
	if err := ws.PreConnectionChecks(); err != nil {
		return err
	}

	if err := ws.transitionToConnecting(); err != nil {
		return err
	}

	if err := ws.connect(ctx); err != nil {
		ws.Logger.Error("failed to connect", "endpoint", ws.Endpoint, "error", err)
		ws.stop(err)
		return err
	}

	ws.Logger.Debug("connection is connected", "endpoint", ws.Endpoint)

	return nil
}

// Start begins connecting in the background and returns at once. The
// outcome shows up in the calls: they either go out or fail with a
// ConnectionError. ctx only bounds the dial.
func (ws *Connection) Start(ctx context.Context) {
	go func() {
		_ = ws.Connect(ctx)
	}()
}

// connect must only be called after transitionToConnecting succeeded.
func (ws *Connection) connect(ctx context.Context) error {
	conn, res, err := ws.Dialer.DialContext(ctx, ws.Endpoint, nil)
	if err != nil {
		return &connection.ConnectionError{Op: "dial", Err: err}
	}
	defer res.Body.Close()

	ws.connLock.Lock()
	ws.Conn = conn
	for _, option := range ws.Option {
		if err := option(ws); err != nil {
			ws.connLock.Unlock()
			conn.Close()
			return &connection.ConnectionError{Op: "dial", Err: err}
		}
	}
	ws.connLock.Unlock()

	ws.stateLock.Lock()
	if ws.state != StateConnecting {
		// Close won the race while we were dialing.
		ws.stateLock.Unlock()
		conn.Close()
		return &connection.ConnectionError{Op: "dial", Err: constants.ErrConnectionClosed}
	}
	ws.state = StateConnected
	ws.open = conn
	ws.stateLock.Unlock()

	go ws.readLoop(conn)
	go ws.writeLoop()

	return nil
}

// SetTimeOut sets how long Send waits for a reply. Call it before Connect.
func (ws *Connection) SetTimeOut(timeout time.Duration) *Connection {
	ws.Timeout = timeout
	return ws
}

// SetLogger replaces the logger. Call it before Connect.
func (ws *Connection) SetLogger(logData logger.Logger) *Connection {
	ws.Logger = logData
	return ws
}

// SetCompression turns compression of outbound frames on or off once the
// socket is open. It only takes effect when the handshake negotiated
// permessage-deflate.
func (ws *Connection) SetCompression(compress bool) *Connection {
	ws.Option = append(ws.Option, func(ws *Connection) error {
		ws.Conn.EnableWriteCompression(compress)
		return nil
	})
	return ws
}

func (ws *Connection) GetUnmarshaler() codec.Unmarshaler {
	return ws.Unmarshaler
}

// Close sends a close frame, closes the socket, and fails every call still
// waiting with a ConnectionError wrapping constants.ErrConnectionClosed.
//
// ctx bounds how long we try to deliver the close frame, or CloseTimeout
// when ctx has no deadline; the socket is closed locally either way.
// Closing twice is a no-op.
func (ws *Connection) Close(ctx context.Context) error {
	closeErr := &connection.ConnectionError{Op: "close", Err: constants.ErrConnectionClosed}

	ws.stateLock.Lock()
	conn := ws.open
	switch ws.state {
	case StateConnected:
		ws.state = StateDisconnecting
	case StateDisconnecting, StateDisconnected:
		ws.stateLock.Unlock()
		return nil
	default:
		// Nothing is open yet; connect notices the state change if a dial is
		// in flight.
		ws.state = StateDisconnected
		ws.stateLock.Unlock()
		ws.stop(closeErr)
		return nil
	}
	ws.stateLock.Unlock()

	if _, ok := ctx.Deadline(); !ok && ws.CloseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ws.CloseTimeout)
		defer cancel()
	}

	writeErr := make(chan error, 1)

	go func() {
		ws.connLock.Lock()
		defer ws.connLock.Unlock()

		if deadline, ok := ctx.Deadline(); ok {
			if err := conn.SetWriteDeadline(deadline); err != nil {
				writeErr <- fmt.Errorf("BUG: Connection.Close: failed to set write deadline: %w", err)
				return
			}
		}

		writeErr <- conn.WriteMessage(gorilla.CloseMessage, gorilla.FormatCloseMessage(constants.CloseMessageCode, ""))
	}()

	select {
	case err := <-writeErr:
		if err != nil {
			// We still close locally below.
			ws.Logger.Error("failed to write close message", "error", err)
		}
	case <-ctx.Done():
	}

	ws.stop(closeErr)

	return nil
}

// stop is the single exit path: it marks the connection disconnected,
// stops the loops, closes the socket and fails every outstanding call.
func (ws *Connection) stop(err error) {
	ws.stopOnce.Do(func() {
		ws.stateLock.Lock()
		ws.state = StateDisconnected
		conn := ws.open
		ws.stateLock.Unlock()

		ws.shutdown()

		// Closing the socket without connLock makes a write blocked on a dead
		// peer fail instead of blocking us.
		if conn != nil {
			if cerr := conn.Close(); cerr != nil {
				ws.Logger.Debug("closing socket", "error", cerr)
			}
		}

		if n := ws.Fail(err); n > 0 {
			ws.Logger.Warn("failed outstanding calls", "count", n, "error", err)
		}
	})
}

// Go queues a call and returns at once. The returned Call settles when the
// reply arrives, when the connection fails, or immediately if the
// connection is already closed or method is empty.
func (ws *Connection) Go(method string, params ...any) *connection.Call {
	return ws.Enqueue(method, params)
}

// Send calls method and waits for the reply.
//
// The reply's result is returned raw. A reply carrying an error yields an
// *connection.RPCError with the daemon's payload; a broken or closed
// connection yields a *connection.ConnectionError. If ctx ends first (or
// Timeout elapses) the call is dropped, and a late reply is ignored.
func (ws *Connection) Send(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	withTimeout := false
	if ws.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ws.Timeout)
		defer cancel()
		withTimeout = true
	}

	call := ws.Go(method, params...)

	select {
	case <-call.Done():
		return call.Result()
	case <-ctx.Done():
		err := ctx.Err()
		if withTimeout && errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %s (id %d): %w", constants.ErrTimeout, method, call.ID, err)
		}
		ws.Abandon(call, err)
		// A reply that raced the deadline wins.
		return call.Result()
	}
}

func (ws *Connection) writeLoop() {
	for {
		select {
		case <-ws.done.Done():
			return
		case <-ws.Wake():
		}

		for _, call := range ws.TakeOutbox() {
			if !ws.IsPending(call.ID) {
				// Abandoned before it went out.
				continue
			}

			if ws.limiter != nil {
				if err := ws.limiter.Wait(ws.done); err != nil {
					return
				}
			}

			if err := ws.write(call); err != nil {
				ws.Logger.Error("failed to write request", "id", call.ID, "method", call.Method, "error", err)
				ws.stop(&connection.ConnectionError{Op: "write", Err: err})
				return
			}
		}
	}
}

// write sends one request frame. A request that cannot be encoded fails on
// its own and does not bring the connection down.
func (ws *Connection) write(call *connection.Call) error {
	data, err := ws.Marshaler.Marshal(&connection.RPCRequest{
		Method: call.Method,
		Params: call.Params,
		ID:     call.ID,
	})
	if err != nil {
		ws.Reject(call.ID, fmt.Errorf("encoding %s request: %w", call.Method, err))
		return nil
	}

	ws.connLock.Lock()
	defer ws.connLock.Unlock()

	if ws.Conn == nil {
		return constants.ErrConnectionClosed
	}
	return ws.Conn.WriteMessage(gorilla.TextMessage, data)
}

// readLoop dispatches frames one at a time, in arrival order, until the
// socket fails.
func (ws *Connection) readLoop(conn *gorilla.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			ws.handleReadError(err)
			return
		}
		ws.Dispatch(data)
	}
}

func (ws *Connection) handleReadError(err error) {
	switch ws.State() {
	case StateDisconnecting, StateDisconnected:
		ws.stop(&connection.ConnectionError{Op: "close", Err: constants.ErrConnectionClosed})
		return
	}

	if gorilla.IsCloseError(err, gorilla.CloseNormalClosure, gorilla.CloseGoingAway) {
		ws.Logger.Info("daemon closed the connection", "error", err)
	} else {
		ws.Logger.Error("connection lost", "error", err)
	}
	ws.stop(&connection.ConnectionError{Op: "read", Err: err})
}
