package constants

import "errors"

// Errors
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrTimeout          = errors.New("timeout")
	ErrEmptyMethod      = errors.New("method name is empty")
	ErrNoEndpoint       = errors.New("endpoint url not set")
	ErrNoMarshaler      = errors.New("marshaler is not set")
	ErrNoUnmarshaler    = errors.New("unmarshaler is not set")
	ErrAlreadyConnected = errors.New("connection already started")
	ErrInvalidFrame     = errors.New("invalid reply frame")
)
