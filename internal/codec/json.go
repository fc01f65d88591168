package codec

import (
	"io"

	json "github.com/goccy/go-json"
)

// JSON is the codec spoken by the lit daemon's net/rpc/jsonrpc endpoint.
type JSON struct{}

var (
	_ Marshaler   = JSON{}
	_ Unmarshaler = JSON{}
)

func (JSON) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSON) NewEncoder(w io.Writer) Encoder {
	return json.NewEncoder(w)
}

func (JSON) Unmarshal(data []byte, dst any) error {
	return json.Unmarshal(data, dst)
}

// NewDecoder returns a decoder that keeps numbers as json.Number so that
// large satoshi amounts survive a round trip through any.
func (JSON) NewDecoder(r io.Reader) Decoder {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return dec
}
