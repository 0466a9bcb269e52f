// Package client implements the RPC client for the distributed row lock system.
// It provides an implementation of the storage.IWideStore interface that
// communicates with remote servers via RPC.
//
// The package focuses on:
//   - Transparent RPC access to remote wide-column stores
//   - Integration with the transport and serialization layers
//   - Error handling and conversion between RPC and domain errors
//
// Key Components:
//
//   - NewRPCWideStore: Factory function that creates a client implementing the
//     storage.IWideStore interface. This client forwards all operations to remote
//     servers via the configured transport layer. Mutation batches created with
//     NewBatch accumulate locally and are shipped to the server in a single
//     request on Execute.
//
// Usage Example:
//
//	// Configure the client
//	config := common.ClientConfig{
//	  TimeoutSecond: 5,
//	  Transport: common.ClientTransportConfig{
//	    Endpoints:              []string{"localhost:5000"},
//	    RetryCount:             3,
//	    ConnectionsPerEndpoint: 1,
//	  },
//	}
//
//	// Create a serializer
//	serializer := serializer.NewBinarySerializer()
//
//	// Create store client
//	store, _ := client.NewRPCWideStore(1, config, tcp.NewTCPClientTransport(), serializer)
//
//	// Use the store as the backend of a row lock
//	lock, _ := rowlock.NewRowLock(store, "my-row", rowlock.DefaultLockOptions())
//	if err := lock.Acquire(); err == nil {
//	  defer lock.Release()
//	  // critical section
//	}
//
// Performance Considerations:
//
//   - For applications that frequently send large payloads, increasing ConnectionsPerEndpoint
//     can improve throughput by allowing parallel requests.
//
//   - For small messages, a single connection per endpoint is often more efficient due to
//     reduced connection overhead.
//
//   - The choice of serializer significantly affects performance. The binary serializer
//     provides the best performance and smallest payload size.
//
// Thread Safety:
//
//	The store client is thread-safe and can be used concurrently from multiple
//	goroutines without additional synchronization. Mutation batches are not
//	thread-safe and must be confined to one goroutine.
package client
