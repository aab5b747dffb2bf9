// Package common contains the types shared by the RPC client and
// server: the Message envelope with its payload bodies, the message
// type enumeration, the server and client configurations and the
// logging setup.
//
// The Message envelope is transport and serializer agnostic. A request
// is built with one of the New*Request factories, carried as opaque
// bytes by a transport and decoded on the other side with the matching
// Decode* method. Responses mirror the request's message type; server
// failures travel as MsgTError with the reason in Err.
package common
