package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litwallet/litclient.go/internal/config"
	"github.com/litwallet/litclient.go/internal/fakelit"
)

func startDaemon(t *testing.T) *fakelit.Server {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv(config.EnvHost, "")
	t.Setenv(config.EnvPort, "")

	server := fakelit.NewServer("127.0.0.1:0")
	server.AddStubResponse(fakelit.SimpleStubResponse("LitRPC.Balance", map[string]any{
		"Balances": []map[string]any{{"CoinType": 257, "TxoTotal": 50000}},
	}))
	server.AddStubResponse(fakelit.ErrorStubResponse("LitRPC.Send", "insufficient funds"))
	server.AddStubResponse(fakelit.SimpleStubResponse("LitRPC.Echo", "pong"))
	require.NoError(t, server.Start())
	t.Cleanup(func() {
		require.NoError(t, server.Stop())
	})
	return server
}

// run executes litws against server. It is safe to call from another
// goroutine.
func run(t *testing.T, server *fakelit.Server, args ...string) (string, error) {
	t.Helper()

	host, port := server.HostPort()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--host", host, "--port", strconv.Itoa(int(port))}, args...))

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCallPrintsResult(t *testing.T) {
	server := startDaemon(t)

	out, err := run(t, server, "call", "LitRPC.Balance")
	require.NoError(t, err)
	assert.JSONEq(t, `{"Balances":[{"CoinType":257,"TxoTotal":50000}]}`, out)

	out, err = run(t, server, "call", "--compact", "LitRPC.Echo", `{"Text":"ping"}`, `7`)
	require.NoError(t, err)
	assert.Equal(t, "\"pong\"\n", out)

	reqs := server.Requests()
	require.Len(t, reqs, 2)
	assert.JSONEq(t, `[{"Text":"ping"},7]`, string(reqs[1].Params))
}

func TestCallCompressionFlag(t *testing.T) {
	server := startDaemon(t)

	_, err := run(t, server, "call", "LitRPC.Echo")
	require.NoError(t, err)
	_, err = run(t, server, "--compression=false", "call", "LitRPC.Echo")
	require.NoError(t, err)

	offered := server.OfferedExtensions()
	require.Len(t, offered, 2)
	assert.Contains(t, offered[0], "permessage-deflate")
	assert.Empty(t, offered[1])
}

func TestCallRPCError(t *testing.T) {
	server := startDaemon(t)

	_, err := run(t, server, "call", "LitRPC.Send", `{"DestAddrs":["addr1"],"Amts":[500]}`)
	require.Error(t, err)
	assert.Equal(t, "LitRPC.Send: insufficient funds", err.Error())
}

func TestCallBadParam(t *testing.T) {
	server := startDaemon(t)

	_, err := run(t, server, "call", "LitRPC.Send", `{not json`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "param 1 is not valid JSON")
	assert.Empty(t, server.Requests())
}

func TestCallDaemonDown(t *testing.T) {
	server := startDaemon(t)
	require.NoError(t, server.Stop())

	_, err := run(t, server, "call", "LitRPC.Balance")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lit connection dial")
}

func TestWatchPrintsNotifications(t *testing.T) {
	server := startDaemon(t)

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := run(t, server, "watch", "--for", "500ms")
		done <- result{out, err}
	}()

	require.Eventually(t, func() bool { return server.Connections() == 1 }, 2*time.Second, 10*time.Millisecond)
	// Give the command a moment to install its handler after the dial.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, server.Notify(map[string]any{"Peer": 2, "Text": "hi"}))
	require.NoError(t, server.Notify("second"))

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, "{\"Peer\":2,\"Text\":\"hi\"}\n\"second\"\n", r.out)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestConfigInitAndShow(t *testing.T) {
	server := startDaemon(t)
	path := filepath.Join(t.TempDir(), "litws", "config.toml")

	out, err := run(t, server, "--config", path, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.SampleConfig(), string(data))

	_, err = run(t, server, "--config", path, "config", "init")
	assert.ErrorContains(t, err, "already exists")

	out, err = run(t, server, "--config", path, "--timeout", "5s", "config", "show")
	require.NoError(t, err)
	assert.Regexp(t, `timeout = ['"]5s['"]`, out)
	assert.Contains(t, out, "port = "+strconv.Itoa(int(mustPort(server))))
}

func mustPort(server *fakelit.Server) uint16 {
	_, port := server.HostPort()
	return port
}
