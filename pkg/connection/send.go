package connection

import (
	"bytes"
	"context"
	"fmt"
)

// Send calls method and decodes its result into res.
// A nil res discards the result; a null result leaves res untouched.
// The connection's decoder keeps numbers bound to an any as json.Number.
func Send[Result any](ctx context.Context, c Connection, res *Result, method string, params ...any) error {
	raw, err := c.Send(ctx, method, params...)
	if err != nil {
		return err
	}

	if res == nil || raw == nil {
		return nil
	}

	if err := c.GetUnmarshaler().NewDecoder(bytes.NewReader(raw)).Decode(res); err != nil {
		return fmt.Errorf("Send: error unmarshaling result of %s: %w", method, err)
	}

	return nil
}
