// Package base implements the transport-independent core of the RPC
// transport layer. It handles framing, per-connection worker limits on
// the server and connection pooling, request multiplexing and retries
// on the client.
//
// Concrete transports (tcp, unix) plug in via the IServerConnector and
// IClientConnector interfaces, which only create and tune raw
// connections.
//
// Wire format: every request and response is one frame, consisting of
// an 8 byte request id, a 4 byte payload length and the payload. The
// request id lets a client multiplex many in-flight requests over a
// single connection; the server echoes it unchanged.
package base
