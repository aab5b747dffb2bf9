// Package rpc provides the remote access layer of the query service.
// It exposes the coprocessor endpoint and the transactional storage
// engine over the network.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures shared by client and server: the
//     Message envelope with its payload bodies, configuration
//     structures and logging.
//
//   - transport: Framed byte transports with pluggable implementations
//     (TCP, Unix sockets).
//
//   - serializer: Message serialization with multiple format options
//     (Binary, JSON, GOB) for converting between Message objects and
//     byte arrays.
//
//   - client: A typed RPC client for submitting queries, transactional
//     writes and statistics requests.
//
//   - server: The RPC server wiring the storage engine and the query
//     scheduler behind a transport, with one adapter per message type.
package rpc
