package client

import (
	"github.com/ValentinKolb/dQL/lib/cop"
	"github.com/ValentinKolb/dQL/lib/mvcc"
	"github.com/ValentinKolb/dQL/rpc/common"
	"github.com/ValentinKolb/dQL/rpc/serializer"
	"github.com/ValentinKolb/dQL/rpc/transport"
)

// RPCClient is a typed client for the query server. It submits
// coprocessor queries and transaction operations over a configured
// transport.
//
// Thread-safe: all methods may be called concurrently.
type RPCClient struct {
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// NewRPCClient creates a client and connects its transport.
//
// Usage:
//
//	c, err := client.NewRPCClient(
//		config,
//		tcp.NewTCPClientTransport(),
//		serializer.NewBinarySerializer(),
//	)
func NewRPCClient(
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (*RPCClient, error) {
	if err := transport.Connect(config); err != nil {
		return nil, err
	}
	Logger.Infof("Created RPC client")
	return &RPCClient{
		config:     config,
		transport:  transport,
		serializer: serializer,
	}, nil
}

// Query executes one coprocessor request and returns its response. A
// lock conflict or an execution failure is reported inside the returned
// response (Locked or OtherError), not as a Go error; the error return
// covers transport and encoding failures only.
func (c *RPCClient) Query(req *cop.Request) (*cop.Response, error) {
	msg, err := common.NewQueryRequest(req)
	if err != nil {
		return nil, err
	}

	resp, err := invokeRPCRequest(msg, c.transport, c.serializer)
	if err != nil {
		return nil, err
	}

	return resp.DecodeQueryResponse()
}

// Info returns the server's storage statistics.
func (c *RPCClient) Info() (*mvcc.StoreInfo, error) {
	resp, err := invokeRPCRequest(common.NewInfoRequest(), c.transport, c.serializer)
	if err != nil {
		return nil, err
	}

	return resp.DecodeInfo()
}

// Prewrite stages the mutations of one transaction on the server.
func (c *RPCClient) Prewrite(mutations []mvcc.Mutation, primary []byte, startTS uint64) error {
	msg, err := common.NewPrewriteRequest(mutations, primary, startTS)
	if err != nil {
		return err
	}

	_, err = invokeRPCRequest(msg, c.transport, c.serializer)
	return err
}

// Commit makes prewritten mutations visible at commitTS.
func (c *RPCClient) Commit(startTS, commitTS uint64, keys [][]byte) error {
	msg, err := common.NewCommitRequest(startTS, commitTS, keys)
	if err != nil {
		return err
	}

	_, err = invokeRPCRequest(msg, c.transport, c.serializer)
	return err
}

// Rollback removes the prewritten locks of an abandoned transaction.
func (c *RPCClient) Rollback(startTS uint64, keys [][]byte) error {
	msg, err := common.NewRollbackRequest(startTS, keys)
	if err != nil {
		return err
	}

	_, err = invokeRPCRequest(msg, c.transport, c.serializer)
	return err
}

// Close closes the underlying transport.
func (c *RPCClient) Close() error {
	return c.transport.Close()
}
