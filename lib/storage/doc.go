// Package storage defines the contract between the row lock protocol and the
// wide-column storage engine it coordinates through. It specifies the
// IWideStore interface for single-cell writes, ordered prefix range reads and
// batched deletes, plus the IMutationBatch accumulator for bundling lock
// mutations with caller-owned data mutations.
//
// The package focuses on:
//   - A unified interface for wide-column row/cell operations
//   - Explicit consistency-level selection on every operation
//   - A mutation batch abstraction for multi-cell round trips
//   - A standardized error type with return codes
//
// Key Components:
//
//   - IWideStore Interface: The core interface all storage backends must
//     satisfy. One IWideStore value represents one named collection ("table")
//     within the engine; rows within the table are addressed by opaque keys
//     and hold lexicographically sorted named cells.
//
//   - ConsistencyLevel: The replica-agreement strength for a single
//     operation. The lock protocol requires quorum-class levels on both the
//     write and read side for read-after-write visibility; the storage
//     package only transports the choice, it never hard-codes it.
//
//   - Cell: A (name, value, optional TTL) triple. A value of 0 is a
//     permanent marker; any other value is an absolute expiration timestamp
//     in microseconds. The TTL is enforced by the engine itself and is
//     independent of the value-encoded expiration.
//
// Deliberately absent from the contract: compare-and-swap, multi-cell
// transactions and any locking primitive. Engines that happen to offer more
// must not be relied upon by code written against this interface.
//
// Related Packages:
//
// The memstore package (github.com/ValentinKolb/dLock/lib/storage/memstore)
// provides a single-node in-memory implementation used by the RPC server and
// the test suites. The rpc/client package provides an IWideStore
// implementation that proxies operations to a remote server.
//
// The testing package (github.com/ValentinKolb/dLock/lib/storage/testing)
// provides a standardized contract test suite for IWideStore
// implementations.
package storage
