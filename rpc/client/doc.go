// Package client implements the RPC client for the query server. It
// wraps a transport and a serializer behind a typed API: coprocessor
// queries, transactional writes (prewrite, commit, rollback) and
// storage statistics.
//
// Usage Example:
//
//	// Configure the client
//	config := common.ClientConfig{
//		TimeoutSecond: 5,
//		Transport: common.ClientTransportConfig{
//			Endpoints:              []string{"localhost:5000"},
//			RetryCount:             3,
//			ConnectionsPerEndpoint: 1,
//		},
//	}
//
//	// Create the client
//	c, _ := client.NewRPCClient(config, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
//	defer c.Close()
//
//	// Run a query
//	resp, _ := c.Query(req)
//
// Performance Considerations:
//
//   - For applications that frequently send large payloads, increasing
//     ConnectionsPerEndpoint can improve throughput by allowing parallel
//     requests.
//
//   - For small messages, a single connection per endpoint is often more
//     efficient due to reduced connection overhead.
//
//   - The choice of serializer significantly affects performance. The
//     binary serializer provides the best performance and smallest
//     payload size.
//
// Thread Safety:
//
//	The client is thread-safe and can be used concurrently from
//	multiple goroutines without additional synchronization.
package client
