package common

import (
	"fmt"
	"strings"
)

// --------------------------------------------------------------------------
// Shared transport settings
// --------------------------------------------------------------------------

// SocketConf holds socket buffer settings shared by all stream
// transports. A zero value leaves the operating system default in place.
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds settings that only apply to TCP connections.
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
}

// --------------------------------------------------------------------------
// Server configuration
// --------------------------------------------------------------------------

// ServerTransportConfig holds the transport settings of the server.
type ServerTransportConfig struct {
	SocketConf
	TCPConf

	// MaxWorkersPerConn caps the number of requests one connection may
	// have in flight on the server. Zero means one.
	MaxWorkersPerConn int
}

// ServerConfig is the complete configuration of a query server.
type ServerConfig struct {
	// Endpoint is the address to listen on. Its format depends on the
	// transport: "host:port" for tcp, a socket path for unix.
	Endpoint string

	// Workers is the size of the scheduler's worker pool.
	Workers int

	// TimeoutSecond is the per-operation read/write deadline on server
	// connections. Zero disables deadlines.
	TimeoutSecond int64

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	Transport ServerTransportConfig
}

// String returns a formatted multi-line dump of the configuration.
func (c ServerConfig) String() string {
	var sb strings.Builder

	addSection := func(name string) {
		sb.WriteString(fmt.Sprintf("\n%s\n%s\n", name, strings.Repeat("-", len(name))))
	}
	addField := func(name string, value interface{}) {
		sb.WriteString(fmt.Sprintf("  %-22s: %v\n", name, value))
	}

	sb.WriteString("Server Configuration")
	sb.WriteString("\n====================\n")

	addSection("General")
	addField("Endpoint", c.Endpoint)
	addField("Workers", c.Workers)
	addField("TimeoutSecond", c.TimeoutSecond)
	addField("LogLevel", c.LogLevel)

	addSection("Transport")
	addField("MaxWorkersPerConn", c.Transport.MaxWorkersPerConn)
	addField("WriteBufferSize", c.Transport.WriteBufferSize)
	addField("ReadBufferSize", c.Transport.ReadBufferSize)
	addField("TCPNoDelay", c.Transport.TCPNoDelay)
	addField("TCPKeepAliveSec", c.Transport.TCPKeepAliveSec)
	addField("TCPLingerSec", c.Transport.TCPLingerSec)

	return sb.String()
}

// --------------------------------------------------------------------------
// Client configuration
// --------------------------------------------------------------------------

// ClientTransportConfig holds the transport settings of the client.
type ClientTransportConfig struct {
	SocketConf
	TCPConf

	// Endpoints lists the server addresses to connect to. Requests are
	// distributed over all endpoints round robin.
	Endpoints []string

	// RetryCount is how often a failed request is retried on another
	// connection. Zero means a single attempt.
	RetryCount int

	// ConnectionsPerEndpoint is the number of parallel connections
	// opened to each endpoint. Zero means one.
	ConnectionsPerEndpoint int
}

// ClientConfig is the complete configuration of a query client.
type ClientConfig struct {
	// TimeoutSecond is the per-request deadline. Zero disables it.
	TimeoutSecond int

	Transport ClientTransportConfig
}

// String returns a formatted multi-line dump of the configuration.
func (c ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(name string) {
		sb.WriteString(fmt.Sprintf("\n%s\n%s\n", name, strings.Repeat("-", len(name))))
	}
	addField := func(name string, value interface{}) {
		sb.WriteString(fmt.Sprintf("  %-22s: %v\n", name, value))
	}

	sb.WriteString("Client Configuration")
	sb.WriteString("\n====================\n")

	addSection("General")
	addField("TimeoutSecond", c.TimeoutSecond)

	addSection("Transport")
	addField("Endpoints", strings.Join(c.Transport.Endpoints, ", "))
	addField("RetryCount", c.Transport.RetryCount)
	addField("ConnectionsPerEndpoint", c.Transport.ConnectionsPerEndpoint)
	addField("WriteBufferSize", c.Transport.WriteBufferSize)
	addField("ReadBufferSize", c.Transport.ReadBufferSize)
	addField("TCPNoDelay", c.Transport.TCPNoDelay)
	addField("TCPKeepAliveSec", c.Transport.TCPKeepAliveSec)
	addField("TCPLingerSec", c.Transport.TCPLingerSec)

	return sb.String()
}
