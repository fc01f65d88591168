// Package litclient talks to a lit daemon over its JSON-RPC websocket
// endpoint, ws://<host>:<port>/ws.
//
// # One socket, many calls
//
// A [Client] owns a single websocket. Every call gets the next integer id
// of that connection, and replies are matched back to their call by id, in
// whatever order the daemon sends them. Calls made while the socket is
// still opening are queued and go out once it opens, in the order they
// were made.
//
// [New] starts connecting in the background and returns at once, so a
// daemon that is down shows up as a [ConnectionError] on the calls rather
// than as an error from New. Use [Dial] to wait for the socket instead.
//
// # Use Send for typed results
//
// [Client.Send] returns the raw result. [Send] decodes it into a Go value:
//
//	type balances struct {
//		Balances []struct {
//			CoinType  uint32
//			ChanTotal int64
//			TxoTotal  int64
//		}
//	}
//
//	bal, err := litclient.Send[balances](ctx, client, "LitRPC.Balance")
//
// An error reply from the daemon is an [*RPCError] carrying the daemon's
// error payload as-is. A broken or closed socket is a [*ConnectionError],
// which also matches [ErrConnectionClosed] with errors.Is.
//
// # Notifications
//
// Frames the daemon pushes with a null id go to the handler installed with
// [Client.OnNotification]. The handler stays installed until replaced or
// removed.
//
// The method set is open: the client does not know which methods the
// daemon serves. The lit daemon names them "LitRPC.<Name>".
package litclient
