package server

import (
	"fmt"

	"github.com/ValentinKolb/dQL/lib/cop/endpoint"
	"github.com/ValentinKolb/dQL/lib/mvcc"
	"github.com/ValentinKolb/dQL/lib/sched"
	"github.com/ValentinKolb/dQL/rpc/common"
	"github.com/ValentinKolb/dQL/rpc/serializer"
	"github.com/ValentinKolb/dQL/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

// NewRPCServer creates a new RPC server around a fresh storage engine.
// It takes a config, transport and serializer as parameters.
//
// Usage:
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
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) rpcServer {
	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	return rpcServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		adapters:   xsync.NewMapOf[common.MessageType, IRPCServerAdapter](),
	}
}

type rpcServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	store      *mvcc.Store
	scheduler  *sched.Scheduler
	adapters   *xsync.MapOf[common.MessageType, IRPCServerAdapter]
}

// Store exposes the server's storage engine. It is meant for embedding
// servers that load data in-process instead of over the wire.
func (s *rpcServer) Store() *mvcc.Store {
	return s.store
}

// registerTransportHandler wires the deserialize/dispatch/serialize
// pipeline into the transport.
func (s *rpcServer) registerTransportHandler() {
	s.transport.RegisterHandler(func(req []byte) []byte {
		var msg common.Message
		var respMsg *common.Message

		// Decode the request
		if err := s.serializer.Deserialize(req, &msg); err != nil {
			respMsg = common.NewErrorResponse("failed to deserialize request: %s", err)
		} else if adapter, ok := s.adapters.Load(msg.MsgType); !ok {
			// Case no adapter for this message type -> error
			respMsg = common.NewErrorResponse("unsupported message type: %s", msg.MsgType)
		} else {
			// Let the adapter handle the request
			respMsg = adapter.Handle(&msg, s.store)
		}

		// Return result
		val, err := s.serializer.Serialize(*respMsg)
		if err != nil {
			Logger.Errorf("failed to serialize response: %s", err)
			val, _ = s.serializer.Serialize(*common.NewErrorResponse("failed to serialize response: %s", err))
		}
		return val
	})
}

// init creates the storage engine and the scheduler and registers the
// message adapters.
func (s *rpcServer) init() error {
	// Init loggers
	common.InitLoggers(s.config)

	// Create the storage engine and the query pipeline on top of it
	s.store = mvcc.NewStore()
	s.scheduler = sched.New(endpoint.NewHandler(s.store), s.config.Workers)

	// Register the adapters
	s.adapters.Store(common.MsgTQuery, NewQueryServerAdapter(s.scheduler))
	s.adapters.Store(common.MsgTInfo, NewInfoServerAdapter())

	txn := NewTxnServerAdapter()
	s.adapters.Store(common.MsgTPrewrite, txn)
	s.adapters.Store(common.MsgTCommit, txn)
	s.adapters.Store(common.MsgTRollback, txn)

	Logger.Infof("dQL setup completed successfully")

	// Configure the transport layer
	s.registerTransportHandler()

	return nil
}

// Serve starts the RPC server. This function initializes the storage
// engine and the scheduler and then blocks serving the transport layer
// until Close is called.
func (s *rpcServer) Serve() error {
	if err := s.init(); err != nil {
		return err
	}
	return s.transport.Listen(s.config)
}

// Close stops the transport and drains the scheduler. Queued queries
// still complete before Close returns.
func (s *rpcServer) Close() error {
	if err := s.transport.Close(); err != nil {
		return fmt.Errorf("failed to close transport: %w", err)
	}
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	return nil
}
