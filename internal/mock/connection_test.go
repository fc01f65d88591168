package mock

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litwallet/litclient.go/pkg/connection"
	"github.com/litwallet/litclient.go/pkg/constants"
)

func TestReply(t *testing.T) {
	con := New().
		Reply("LitRPC.SyncHeight", 1450).
		ReplyError("LitRPC.Send", "insufficient funds")

	res, err := con.Send(context.Background(), "LitRPC.SyncHeight")
	require.NoError(t, err)
	assert.JSONEq(t, `1450`, string(res))

	_, err = con.Send(context.Background(), "LitRPC.Send")
	var rpcErr *connection.RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, "insufficient funds", rpcErr.Error())

	_, err = con.Send(context.Background(), "LitRPC.Nope")
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, "rpc: can't find method LitRPC.Nope", rpcErr.Error())
}

func TestSendKeepsLargeAmounts(t *testing.T) {
	// 2^53 + 1 does not fit a float64.
	con := New().Reply("LitRPC.Balance", map[string]uint64{"TxoTotal": 9007199254740993})

	var res any
	require.NoError(t, connection.Send(context.Background(), con, &res, "LitRPC.Balance"))
	assert.Equal(t, map[string]any{"TxoTotal": json.Number("9007199254740993")}, res)

	var typed struct{ TxoTotal uint64 }
	require.NoError(t, connection.Send(context.Background(), con, &typed, "LitRPC.Balance"))
	assert.Equal(t, uint64(9007199254740993), typed.TxoTotal)
}

func TestHoldRelease(t *testing.T) {
	con := New().Hold("LitRPC.ChannelList", []string{"chan"})

	first := con.Go("LitRPC.ChannelList")
	second := con.Go("LitRPC.ChannelList")
	assert.Equal(t, 2, con.Pending())

	con.Release()

	for _, call := range []*connection.Call{first, second} {
		<-call.Done()
		res, err := call.Result()
		require.NoError(t, err)
		assert.JSONEq(t, `["chan"]`, string(res))
	}
	assert.Zero(t, con.Pending())
}

func TestPush(t *testing.T) {
	con := New()

	var got []string
	con.Register(connection.NotificationKey, func(result json.RawMessage) {
		got = append(got, string(result))
	})
	con.Push("one")
	con.Push(map[string]int{"n": 2})

	assert.Equal(t, []string{`"one"`, `{"n":2}`}, got)
}

func TestClose(t *testing.T) {
	con := New().Hold("LitRPC.GetMessages", nil)
	held := con.Go("LitRPC.GetMessages")

	require.NoError(t, con.Close(context.Background()))

	<-held.Done()
	_, err := held.Result()
	assert.ErrorIs(t, err, constants.ErrConnectionClosed)

	_, err = con.Send(context.Background(), "LitRPC.GetMessages")
	assert.ErrorIs(t, err, constants.ErrConnectionClosed)
}
