// Package tcp binds the base RPC transport to TCP sockets. It is the
// transport of choice for cross-host deployments. Connections can be
// tuned via the TCPConf and SocketConf sections of the configuration
// (no-delay, keep-alive, linger, socket buffer sizes).
package tcp
