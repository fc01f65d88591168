// Command litws talks to a lit daemon over its websocket RPC endpoint.
//
//	litws call LitRPC.Balance
//	litws call LitRPC.Send '{"DestAddrs":["ln1..."],"Amts":[500]}'
//	litws watch
//
// Settings come from ~/.config/litws/config.toml (see "litws config init"),
// then LITWS_HOST and LITWS_PORT, then flags.
package main
