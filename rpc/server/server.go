package server

import (
	"fmt"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/ValentinKolb/dLock/lib/storage"
	"github.com/ValentinKolb/dLock/lib/storage/memstore"
	"github.com/ValentinKolb/dLock/rpc/common"
	"github.com/ValentinKolb/dLock/rpc/serializer"
	"github.com/ValentinKolb/dLock/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/puzpuzpuz/xsync/v3"
)

var logger = common.GetLogger("rpc")

// serverTable is a struct that represents one hosted table in the RPC server
// It contains the store it encapsulates and the adapter that handles
// requests for the store
type serverTable struct {
	Store   storage.IWideStore
	Adapter IRPCServerAdapter
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		http.NewHttpServerTransport(),
//		serializer.NewJSONSerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) rpcServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	// Create tables map
	tableMap := xsync.NewMapOf[uint64, serverTable]()

	logger.Info().Msg("Created RPC Server")
	logger.Info().Msg(config.String())

	// Create the RPC server
	return rpcServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		tables:     tableMap,
	}
}

type rpcServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	tables     *xsync.MapOf[uint64, serverTable]
}

func (s *rpcServer) registerTransportHandler() {
	s.transport.RegisterHandler(func(tableID uint64, req []byte) []byte {
		var msg common.Message
		var respMsg common.Message

		start := time.Now()

		// Get appropriate table
		table, ok := s.tables.Load(tableID)

		// Case table does not exist -> error
		if !ok {
			respMsg = common.Message{
				MsgType: common.MsgTError,
				Err:     "table not found",
			}
		} else {
			// Decode the request
			err := s.serializer.Deserialize(req, &msg)

			if err != nil {
				respMsg = common.Message{
					MsgType: common.MsgTError,
					Err:     fmt.Sprintf("failed to deserialize request: %s", err),
				}
			} else {
				// Let the adapter handle the request
				respMsg = *table.Adapter.Handle(&msg, table.Store)
			}
		}

		// Record request metrics per table and message type
		observeRequest(tableID, msg.MsgType, respMsg.MsgType == common.MsgTError, start)

		// Return result
		val, err := s.serializer.Serialize(respMsg)
		if err != nil {
			logger.Error().Msgf("failed to serialize response for table %d: %v", tableID, err)
			respMsg = common.Message{
				MsgType: common.MsgTError,
				Err:     fmt.Sprintf("failed to serialize response: %s", err),
			}
			// The fallback message only carries primitive fields, so a second
			// failure means the serializer itself is broken.
			if val, err = s.serializer.Serialize(respMsg); err != nil {
				logger.Error().Msgf("failed to serialize error response: %v", err)
				return nil
			}
		}
		return val
	})
}

func (s *rpcServer) init() error {

	// Init logger
	if err := common.InitLoggers(s.config); err != nil {
		return err
	}

	if len(s.config.Tables) == 0 {
		return fmt.Errorf("no tables configured")
	}

	// CREATE TABLES

	/*
		Note: A single RPC Server can host any number of tables. Each table
		is an independent in-memory wide-column store with its own adapter.
		The following loop creates all the tables and stores them for the
		RPC server.
	*/

	for _, tableID := range s.config.Tables {
		s.tables.Store(tableID, serverTable{
			Store:   memstore.NewMemStore(memstore.DefaultOptions()),
			Adapter: NewWideStoreServerAdapter(),
		})
		logger.Info().Msgf("created memstore for table %d", tableID)
	}

	logger.Info().Msg("dLock setup completed successfully")

	// Start the metrics endpoint if configured
	if s.config.MetricsEndpoint != "" {
		go s.serveMetrics()
	}

	// Configure the transport layer
	s.registerTransportHandler()

	return nil
}

// Serve starts the RPC server
// This function will also initialize the server plus the tables and start the transport layer
func (s *rpcServer) Serve() error {
	err := s.init()
	if err != nil {
		return err
	}
	return s.transport.Listen(s.config)
}

// --------------------------------------------------------------------------
// Metrics
// --------------------------------------------------------------------------

// observeRequest updates the request counter and latency histogram for one
// handled request
func observeRequest(tableID uint64, msgType common.MessageType, isErr bool, start time.Time) {
	counterName := fmt.Sprintf(`rpc_requests_total{table="%d",type=%q,error="%t"}`, tableID, msgType.String(), isErr)
	metrics.GetOrCreateCounter(counterName).Inc()

	histName := fmt.Sprintf(`rpc_request_duration_seconds{table="%d",type=%q}`, tableID, msgType.String())
	metrics.GetOrCreateHistogram(histName).UpdateDuration(start)
}

// serveMetrics exposes all collected metrics in Prometheus text format
func (s *rpcServer) serveMetrics() {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w, true)
	})

	logger.Info().Msgf("Starting metrics server on %s", s.config.MetricsEndpoint)
	if err := http.ListenAndServe(s.config.MetricsEndpoint, mux); err != nil {
		logger.Error().Msgf("Metrics server error: %v", err)
	}
}
