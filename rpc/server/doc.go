// Package server implements the RPC server for the distributed row lock system.
// It provides an adapter for handling RPC requests against the wide-column store,
// along with the core server implementation that manages tables and request routing.
//
// The package focuses on:
//   - Server-side RPC request handling for wide-column storage operations
//   - Adapter pattern to decouple application logic from RPC mechanisms
//   - Hosting multiple independent tables within a single server
//   - Request metrics per table and operation type
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server adapters,
//     with the Handle method that processes incoming requests against a
//     storage.IWideStore.
//
//   - NewWideStoreServerAdapter: Factory function creating an adapter for
//     wide-column store operations, translating RPC requests to storage.IWideStore
//     method calls.
//
//   - NewRPCServer: Factory function creating a configured server with the specified
//     transport and serializer mechanisms.
//
// Usage Example:
//
//	// Create server configuration
//	config := common.ServerConfig{
//	  Tables: []uint64{100, 200},
//	  TimeoutSecond: 5,
//	  Transport: common.ServerTransportConfig{
//	    Endpoint: "0.0.0.0:8080",
//	  },
//	  LogLevel: "info",
//	}
//
//	// Create and start the server
//	s := server.NewRPCServer(
//	  config,
//	  tcp.NewTCPDefaultServerTransport(),
//	  serializer.NewBinarySerializer(),
//	)
//
//	// Start the server
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Each configured table is backed by its own in-memory wide-column store.
// Tables are fully independent: a row key in one table is unrelated to the
// same row key in another table.
//
// Metrics:
//
//	When MetricsEndpoint is set in the server configuration, the server exposes
//	request counters and latency histograms in Prometheus text format under
//	/metrics on that address.
//
// Thread Safety:
//
//	The server implementation is thread-safe and can handle concurrent requests
//	across multiple connections. Each request is processed independently.
//	The Serve method is not thread-safe and should be called only once.
package server
