// Package testing provides a standardized contract test suite for
// storage.IWideStore implementations.
//
//   - RunWideStoreTests: Runs the full suite against a factory-provided
//     store, covering write/read round trips, range scan ordering and
//     bounds, overwrites, batched deletes, mutation batches, row isolation
//     and concurrent writers.
//
// Every implementation in this repository (memstore, the RPC client backed
// by a server-side memstore) is expected to pass this suite unchanged.
package testing
