package constants

import "time"

const (
	// CloseMessageCode identifier the message id for a close request
	CloseMessageCode = 1000
	// DefaultTimeout is how long Send waits for a reply unless told otherwise
	DefaultTimeout = 30 * time.Second
	// DefaultPort is the lit daemon's default RPC port
	DefaultPort = 8001
	// DefaultHost is where a local lit daemon listens
	DefaultHost = "127.0.0.1"
	// DefaultPath is the path the daemon serves its JSON-RPC websocket on
	DefaultPath = "/ws"
)

var (
	WebsocketScheme       = "ws"
	SecureWebsocketScheme = "wss"
)
