// Package rowlock implements a distributed mutual-exclusion lock over a
// single row of a wide-column store that offers no native locking primitive.
// The lock is cooperative: correctness depends on every participant obeying
// the protocol, since the store provides only atomic single-cell writes,
// ordered range reads and batched deletes - no compare-and-swap, no
// cross-cell transactions.
//
// Implementation Approach:
//
//	The protocol derives mutual exclusion from write-then-verify:
//
//	- Token Generation: Each attempt names its lock cell prefix+token with a
//	  unique, time-ordered token, so cell names never collide across
//	  concurrent attempts on any host.
//
//	- Acquisition: The attempt writes its own cell (value = now + staleness
//	  window in micros, optional storage TTL), then reads back every cell
//	  under the prefix at the same consistency level and verifies the set.
//	  The own cell name is recorded for deletion before the write is issued,
//	  so a failure at any later point still cleans up what may have been
//	  written.
//
//	- Verification: Each observed cell is classified as stale (nonzero value
//	  in the past - reclaimed, or failed on if FailOnStaleLock is set),
//	  foreign-live (fails with *BusyLockError) or the expected
//	  self-observation. A value of 0 marks a permanent cell and is never
//	  treated as expired.
//
//	- Duels: If two attempts race, each observes the other's live cell and
//	  both fail; both clean up their own cell on the error path. The
//	  protocol guarantees at most one success per contention round but no
//	  liveness - callers retry with randomized backoff.
//
//	- Release: One batched delete of the attempt's own cell plus any stale
//	  cells collected during verification. Maintenance operations
//	  (ReleaseExpiredLocks, ReleaseAllLocks) sweep the row independently of
//	  any attempt and return the pre-deletion snapshot.
//
// Consistency Requirements:
//
//	The write and the read-back must both run at a quorum-class level so the
//	read observes the attempt's own write and the writes of true concurrent
//	peers. Weaker levels make the protocol unsound: an attempt could observe
//	an empty cell set while a peer's write is still replicating.
//
// Concurrency Model:
//
//	A lock value represents one attempt and is not goroutine-safe; all real
//	concurrency is distributed, across independent callers contending for
//	the same row. Acquire performs no internal retries or waiting - at most
//	two storage round trips plus one cleanup round trip.
//
// Usage Example:
//
//	lock, err := rowlock.NewRowLock(store, "account:42", nil)
//	if err != nil {
//	    // Handle error
//	}
//
//	if err := lock.Acquire(); err != nil {
//	    // Lock not held. Busy and stale conditions are typed:
//	    var busy *rowlock.BusyLockError
//	    if errors.As(err, &busy) {
//	        // retry later with backoff
//	    }
//	    return err
//	}
//	defer lock.Release()
//
//	// ... mutate the row exclusively ...
package rowlock
