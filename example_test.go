package litclient_test

import (
	"context"
	"errors"
	"fmt"

	litclient "github.com/litwallet/litclient.go"
	"github.com/litwallet/litclient.go/internal/fakelit"
)

type PeerInfo struct {
	PeerNumber uint32
	RemoteHost string
	Nickname   string
}

type ListConnectionsReply struct {
	Connections []PeerInfo
	MyPKH       string
}

func ExampleSend() {
	daemon := fakelit.NewServer("127.0.0.1:0")
	daemon.AddStubResponse(fakelit.SimpleStubResponse("LitRPC.ListConnections", ListConnectionsReply{
		Connections: []PeerInfo{{PeerNumber: 1, RemoteHost: "10.0.0.2:2448", Nickname: "alice"}},
		MyPKH:       "ln1pkh",
	}))
	if err := daemon.Start(); err != nil {
		panic(err)
	}
	defer daemon.Stop()

	host, port := daemon.HostPort()
	client, err := litclient.New(context.Background(), host, port)
	if err != nil {
		panic(err)
	}
	defer client.Close(context.Background())

	reply, err := litclient.Send[ListConnectionsReply](context.Background(), client, "LitRPC.ListConnections")
	if err != nil {
		panic(err)
	}
	for _, peer := range reply.Connections {
		fmt.Printf("peer %d: %s at %s\n", peer.PeerNumber, peer.Nickname, peer.RemoteHost)
	}

	// Output:
	// peer 1: alice at 10.0.0.2:2448
}

func ExampleClient_Send_error() {
	daemon := fakelit.NewServer("127.0.0.1:0")
	daemon.AddStubResponse(fakelit.ErrorStubResponse("LitRPC.Send", "insufficient funds"))
	if err := daemon.Start(); err != nil {
		panic(err)
	}
	defer daemon.Stop()

	host, port := daemon.HostPort()
	client, err := litclient.New(context.Background(), host, port)
	if err != nil {
		panic(err)
	}
	defer client.Close(context.Background())

	_, err = client.Send(context.Background(), "LitRPC.Send", map[string]any{
		"DestAddrs": []string{"ln1destination"},
		"Amts":      []int64{500},
	})

	var rpcErr *litclient.RPCError
	if errors.As(err, &rpcErr) {
		fmt.Println("daemon said:", rpcErr.Error())
	}

	// Output:
	// daemon said: insufficient funds
}
