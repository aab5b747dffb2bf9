// Package server implements the RPC server of the query service. It
// owns the storage engine and the request scheduler and exposes them
// over a pluggable transport and serializer.
//
// Every received frame is deserialized into a common.Message and
// dispatched by message type to a registered adapter:
//
//   - MsgTQuery runs a coprocessor query through the scheduler's
//     worker pool.
//   - MsgTPrewrite, MsgTCommit and MsgTRollback apply transactional
//     writes to the storage engine.
//   - MsgTInfo reports storage statistics.
//
// Usage Example:
//
//	config := common.ServerConfig{
//		Endpoint:      "0.0.0.0:5000",
//		Workers:       8,
//		TimeoutSecond: 5,
//		LogLevel:      "info",
//	}
//
//	s := server.NewRPCServer(
//		config,
//		tcp.NewTCPDefaultServerTransport(),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
package server
