package benchmark_test

import (
	"context"
	"fmt"
	"testing"

	litclient "github.com/litwallet/litclient.go"
	"github.com/litwallet/litclient.go/internal/fakelit"
	"github.com/litwallet/litclient.go/internal/mock"
	"github.com/litwallet/litclient.go/pkg/connection"
)

type balance struct {
	CoinType  uint32
	ChanTotal int64
	TxoTotal  int64
}

type balanceReply struct {
	Balances []balance
}

var reply = balanceReply{Balances: []balance{{CoinType: 257, ChanTotal: 100000, TxoTotal: 50000}}}

func SetupMockClient() *litclient.Client {
	return litclient.FromConnection(mock.New().Reply("LitRPC.Balance", reply))
}

// BenchmarkSendMock measures correlation and decoding without a socket.
func BenchmarkSendMock(b *testing.B) {
	client := SetupMockClient()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := litclient.Send[balanceReply](context.Background(), client, "LitRPC.Balance"); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkSendWebsocket measures a full round trip through the fake daemon.
func BenchmarkSendWebsocket(b *testing.B) {
	server := fakelit.NewServer("127.0.0.1:0")
	server.AddStubResponse(fakelit.SimpleStubResponse("LitRPC.Balance", reply))
	if err := server.Start(); err != nil {
		b.Fatal(err)
	}
	defer server.Stop() //nolint:errcheck

	host, port := server.HostPort()
	client, err := litclient.Dial(context.Background(), host, port)
	if err != nil {
		b.Fatal(err)
	}
	defer client.Close(context.Background()) //nolint:errcheck

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := client.Send(context.Background(), "LitRPC.Balance"); err != nil {
				b.Error(err)
				return
			}
		}
	})
}

// BenchmarkDispatch measures routing one reply frame to its pending call.
func BenchmarkDispatch(b *testing.B) {
	var tk connection.Toolkit
	frames := make([][]byte, b.N)
	for i := range frames {
		tk.Enqueue("LitRPC.Balance", nil)
		frames[i] = []byte(fmt.Sprintf(`{"id":%d,"result":{"Balances":[]},"error":null}`, i))
	}
	tk.TakeOutbox()

	b.ResetTimer()
	for _, frame := range frames {
		tk.Dispatch(frame)
	}
}
