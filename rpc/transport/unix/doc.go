// Package unix binds the base RPC transport to Unix domain sockets. It
// avoids the TCP stack entirely and is the fastest option when client
// and server share a host. The configured endpoint is the socket path;
// a stale socket file is removed before listening.
package unix
