package server

import (
	"github.com/ValentinKolb/dQL/lib/mvcc"
	"github.com/ValentinKolb/dQL/rpc/common"
)

// IRPCServerAdapter handles the requests of one message type.
// It takes the request Message and the server's storage engine and
// returns a response Message. Failures are reported inside the
// response, never as a panic.
type IRPCServerAdapter interface {
	Handle(req *common.Message, store *mvcc.Store) (resp *common.Message)
}
