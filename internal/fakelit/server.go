// Package fakelit provides a fake lit daemon for testing purposes.
// It speaks the daemon's JSON-RPC over WebSocket protocol, the way
// net/rpc/jsonrpc frames it, and includes a few failure injection
// capabilities.
//
// The WebSocket server is a net/http server upgrading connections with the
// `gws` library, so the client under test and the server share no
// websocket code.
//
// To flexibly inject failures, you can configure stub responses that match
// specific RPC methods and parameters, along with failure configurations that
// specify how it fails (e.g., delays, duplicated replies, dropped connections).
package fakelit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/lxzan/gws"

	"github.com/litwallet/litclient.go/internal/codec"
)

// FailureType represents the type of failure to inject during request processing
type FailureType string

const (
	// FailureResponseDelay sends the response after a delay, in the background,
	// so later requests can be answered first
	FailureResponseDelay FailureType = "response_delay"
	// FailureNoResponse swallows the request
	FailureNoResponse FailureType = "no_response"
	// FailureDuplicateResponse sends the response twice
	FailureDuplicateResponse FailureType = "duplicate_response"
	// FailureWebSocketClose sends WebSocket close frame with configurable code/reason
	FailureWebSocketClose FailureType = "websocket_close"
	// FailureDropConnection immediately closes the underlying network connection
	FailureDropConnection FailureType = "drop_connection"
)

// Request is a request frame as the server received it.
type Request struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	ID     *uint64         `json:"id"`
}

// RequestMatcher defines criteria for matching incoming RPC requests.
// It can match by method name and optionally by parameter values.
type RequestMatcher struct {
	// Method is the RPC method name to match
	Method string
	// Matcher is an optional function to match based on the raw params array.
	// If nil, only the method name is used for matching.
	Matcher func(params json.RawMessage) bool
}

// StubResponse defines a pre-configured RPC response for matching requests.
type StubResponse struct {
	Matcher RequestMatcher
	// Result is the successful result to return (ignored when Error is set)
	Result any
	// Error is the error payload to return. The daemon always sends a string.
	Error any
	// Failures defines failure injection configurations for this response
	Failures []FailureConfig
}

// FailureConfig defines how a specific failure is injected
type FailureConfig struct {
	Type FailureType
	// Delay is used by FailureResponseDelay
	Delay time.Duration
	// CloseCode is the WebSocket close code for FailureWebSocketClose
	CloseCode uint16
	// CloseReason is the WebSocket close reason for FailureWebSocketClose
	CloseReason string
}

type response struct {
	ID     *uint64 `json:"id"`
	Result any     `json:"result"`
	Error  any     `json:"error"`
}

// Server is a fake lit daemon that answers requests from stubs.
type Server struct {
	addr          string
	listener      net.Listener
	upgrader      *gws.Upgrader
	httpServer    *http.Server
	mu            sync.RWMutex
	stubResponses []StubResponse
	connections   map[*gws.Conn]bool
	requests      []Request
	extensions    []string
	received      chan struct{}
	marshaler     codec.Marshaler
	unmarshaler   codec.Unmarshaler
}

// Handler implements the gws.Handler interface for WebSocket connections
type Handler struct {
	server *Server
}

// NewServer creates a new fake lit daemon.
// Use "127.0.0.1:0" to bind to a random available port.
func NewServer(addr string) *Server {
	c := codec.JSON{}

	s := &Server{
		addr:        addr,
		connections: make(map[*gws.Conn]bool),
		received:    make(chan struct{}, 1),
		marshaler:   c,
		unmarshaler: c,
	}

	s.upgrader = gws.NewUpgrader(&Handler{server: s}, &gws.ServerOption{})
	s.httpServer = &http.Server{
		Handler:           http.HandlerFunc(s.serveWebSocket),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.extensions = append(s.extensions, r.Header.Get("Sec-WebSocket-Extensions"))
	s.mu.Unlock()

	socket, err := s.upgrader.Upgrade(w, r)
	if err != nil {
		log.Printf("fakelit: upgrade failed: %v", err)
		return
	}
	go socket.ReadLoop()
}

// AddStubResponse adds a stub response configuration to the server.
// Stub responses are matched in the order they were added.
func (s *Server) AddStubResponse(stub StubResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stubResponses = append(s.stubResponses, stub)
}

// Start starts the server and begins accepting WebSocket connections.
func (s *Server) Start() error {
	var lc net.ListenConfig
	listener, err := lc.Listen(context.Background(), "tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("fakelit: server error: %v", err)
		}
	}()

	return nil
}

// Stop closes the listener and every open connection. Stopping twice is fine.
func (s *Server) Stop() error {
	s.mu.Lock()
	for socket := range s.connections {
		socket.NetConn().Close()
	}
	s.mu.Unlock()

	// Close also closes the listener, which ends Serve.
	if err := s.httpServer.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// OfferedExtensions returns the Sec-WebSocket-Extensions header of every
// handshake so far, in order. The server never accepts any of them.
func (s *Server) OfferedExtensions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.extensions...)
}

// Address returns the actual address the server is listening on.
func (s *Server) Address() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// HostPort splits Address for connection.NewConfig.
func (s *Server) HostPort() (string, uint16) {
	host, port, err := net.SplitHostPort(s.Address())
	if err != nil {
		return s.Address(), 0
	}
	p, _ := strconv.ParseUint(port, 10, 16)
	return host, uint16(p)
}

// Requests returns a copy of every request received so far, in arrival order.
func (s *Server) Requests() []Request {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Request(nil), s.requests...)
}

// WaitForRequests waits until at least n requests arrived.
func (s *Server) WaitForRequests(n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		s.mu.RLock()
		got := len(s.requests)
		s.mu.RUnlock()
		if got >= n {
			return true
		}
		select {
		case <-s.received:
		case <-deadline:
			return false
		}
	}
}

// Connections is the number of open client connections.
func (s *Server) Connections() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
}

// Notify pushes result to every connection as an unsolicited frame
// with a null id.
func (s *Server) Notify(result any) error {
	data, err := s.marshaler.Marshal(response{Result: result})
	if err != nil {
		return err
	}
	return s.Broadcast(data)
}

// Broadcast writes a raw frame to every connection.
func (s *Server) Broadcast(data []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var errs []error
	for socket := range s.connections {
		if err := socket.WriteMessage(gws.OpcodeText, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *Handler) OnOpen(socket *gws.Conn) {
	h.server.mu.Lock()
	h.server.connections[socket] = true
	h.server.mu.Unlock()
}

func (h *Handler) OnClose(socket *gws.Conn, err error) {
	h.server.mu.Lock()
	delete(h.server.connections, socket)
	h.server.mu.Unlock()
}

func (h *Handler) OnPing(socket *gws.Conn, payload []byte) {
	if err := socket.WritePong(payload); err != nil {
		log.Printf("fakelit: error writing pong: %v", err)
	}
}

func (h *Handler) OnPong(socket *gws.Conn, payload []byte) {
}

func (h *Handler) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()

	var req Request
	if err := h.server.unmarshaler.Unmarshal(message.Bytes(), &req); err != nil {
		h.send(socket, response{Error: fmt.Sprintf("parse error: %v", err)})
		return
	}

	h.server.mu.Lock()
	h.server.requests = append(h.server.requests, req)
	var matchedStub *StubResponse
	for i := range h.server.stubResponses {
		stub := h.server.stubResponses[i]
		if stub.Matcher.Method == req.Method &&
			(stub.Matcher.Matcher == nil || stub.Matcher.Matcher(req.Params)) {
			matchedStub = &stub
			break
		}
	}
	h.server.mu.Unlock()

	select {
	case h.server.received <- struct{}{}:
	default:
	}

	// net/rpc/jsonrpc answers unknown methods with a plain string error.
	if matchedStub == nil {
		h.send(socket, response{ID: req.ID, Error: "rpc: can't find method " + req.Method})
		return
	}

	resp := response{ID: req.ID, Result: matchedStub.Result}
	if matchedStub.Error != nil {
		resp = response{ID: req.ID, Error: matchedStub.Error}
	}

	for _, failure := range matchedStub.Failures {
		if done := h.applyFailure(socket, failure, resp); done {
			return
		}
	}

	h.send(socket, resp)
}

// applyFailure reports whether the failure took care of (or suppressed) the
// response.
func (h *Handler) applyFailure(socket *gws.Conn, failure FailureConfig, resp response) bool {
	switch failure.Type {
	case FailureResponseDelay:
		go func() {
			time.Sleep(failure.Delay)
			h.send(socket, resp)
		}()
		return true

	case FailureNoResponse:
		return true

	case FailureDuplicateResponse:
		h.send(socket, resp)
		h.send(socket, resp)
		return true

	case FailureWebSocketClose:
		code := failure.CloseCode
		if code == 0 {
			code = 1001
		}
		reason := failure.CloseReason
		if reason == "" {
			reason = "failure injection"
		}
		socket.WriteClose(code, []byte(reason))
		return true

	case FailureDropConnection:
		socket.NetConn().Close()
		return true
	}

	return false
}

func (h *Handler) send(socket *gws.Conn, resp response) {
	data, err := h.server.marshaler.Marshal(resp)
	if err != nil {
		log.Printf("fakelit: failed to marshal response: %v", err)
		return
	}

	if err := socket.WriteMessage(gws.OpcodeText, data); err != nil {
		log.Printf("fakelit: error writing response: %v", err)
	}
}

// MatchMethod creates a RequestMatcher that matches only by method name
func MatchMethod(method string) RequestMatcher {
	return RequestMatcher{Method: method}
}

// SimpleStubResponse creates a basic stub response for a method without failure injection
func SimpleStubResponse(method string, result any) StubResponse {
	return StubResponse{
		Matcher: MatchMethod(method),
		Result:  result,
	}
}

// ErrorStubResponse creates a stub response that returns an RPC error
func ErrorStubResponse(method string, payload any) StubResponse {
	return StubResponse{
		Matcher: MatchMethod(method),
		Error:   payload,
	}
}
