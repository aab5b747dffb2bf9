package transport

import (
	"github.com/ValentinKolb/dQL/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests.
// It is called by a server transport with the raw request bytes and
// returns the raw response bytes.
type ServerHandleFunc func(req []byte) (resp []byte)

// IRPCServerTransport is the interface for the server side of the RPC
// transport layer
type IRPCServerTransport interface {
	// RegisterHandler registers the handler that is called for every
	// received request. It must be called before Listen.
	RegisterHandler(handler ServerHandleFunc)
	// Listen starts the transport layer and serves incoming requests
	// until Close is called
	Listen(config common.ServerConfig) error
	// Close stops the listener. In-flight requests are still answered.
	Close() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send sends a request to the server and returns the response
	Send(req []byte) (resp []byte, err error)
	// Close closes the transport connection
	Close() error
}
