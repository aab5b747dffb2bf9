// Package transport defines the byte-level transport contracts used by
// the RPC client and server. A transport moves opaque, framed byte
// slices; it knows nothing about message contents or serialization.
//
// The base subpackage implements the shared framing, connection
// handling and request multiplexing. The tcp and unix subpackages bind
// it to their respective socket types.
package transport
