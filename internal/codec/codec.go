// Package codec defines how lit JSON-RPC frames are encoded and decoded.
// JSON, built on goccy/go-json, is the only implementation; connections
// take the interfaces so tests can swap it out.
package codec

import "io"

type Encoder interface {
	Encode(v any) error
}

type Decoder interface {
	Decode(v any) error
}

type Marshaler interface {
	Marshal(v any) ([]byte, error)
	NewEncoder(w io.Writer) Encoder
}

type Unmarshaler interface {
	Unmarshal(data []byte, dst any) error
	NewDecoder(r io.Reader) Decoder
}
