// Package memstore provides a single-node, in-memory implementation of the
// storage.IWideStore interface.
//
// Architecture:
//   - Rows live in an xsync.MapOf, which shards keys internally and allows
//     lock-free concurrent access to independent rows.
//   - Each row keeps its cells in a slice sorted by name, so range reads are
//     a binary search plus a contiguous scan and naturally return cells in
//     lexicographic order as the interface requires.
//   - Storage-side TTLs are enforced twice: lazily on read (an expired cell
//     is never returned, even if still physically present) and physically by
//     a background garbage collection loop.
//
// Consistency levels are accepted and ignored: with a single node there are
// no replicas to agree, so every level trivially provides read-after-write
// visibility. Code written against this store at quorum level behaves
// identically against a real replicated engine configured correctly.
//
// Thread Safety:
//
//	All methods of MemStore are safe for concurrent use. Batch values
//	returned by NewBatch are not; a batch is owned by one goroutine from
//	creation to Execute.
package memstore
