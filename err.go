package litclient

import (
	"github.com/litwallet/litclient.go/pkg/connection"
	"github.com/litwallet/litclient.go/pkg/constants"
)

type (
	// RPCError is an error reply from the daemon.
	RPCError = connection.RPCError
	// ConnectionError means the socket failed or was closed before the
	// reply arrived.
	ConnectionError = connection.ConnectionError
)

var (
	ErrConnectionClosed = constants.ErrConnectionClosed
	ErrTimeout          = constants.ErrTimeout
	ErrEmptyMethod      = constants.ErrEmptyMethod
)
