package rowlock

import "github.com/ValentinKolb/dLock/lib/storage"

// ILock defines the interface for a distributed lock over a single row of a
// wide-column store.
type ILock interface {
	// Acquire attempts to take the lock: it writes the attempt's own lock
	// cell, reads back the full lock cell set under the prefix and verifies
	// that no live foreign cell exists. On success the caller holds the lock
	// and must eventually call Release. On any error the attempt's own cell
	// (and any stale cells collected so far) have already been scheduled and
	// best-effort deleted; the caller must treat the error as "lock not
	// held" and retry with its own backoff policy if desired.
	Acquire() (err error)

	// Release deletes all cells collected for deletion (the attempt's own
	// cell plus any stale cells discovered during verification) in one batch.
	// Calling Release with nothing collected is a no-op without a storage
	// round trip.
	Release() (err error)

	// Verify classifies the current lock cell set against the given wall
	// clock time in microseconds. It returns a *BusyLockError if a live
	// foreign cell exists, a *StaleLockError if a stale cell exists and the
	// lock is configured to fail on stale locks, and nil if the attempt's own
	// cell is the only live cell.
	Verify(nowMicros int64) (err error)

	// ReadLockCells returns the current lock cell set as a mapping of cell
	// name to expiration timestamp (micros, 0 = permanent marker).
	ReadLockCells() (cells map[string]int64, err error)

	// ReleaseLocks deletes lock cells of the row: all of them if force is
	// true, only time-expired ones otherwise. It returns the pre-deletion
	// snapshot of the lock cell set for inspection.
	ReleaseLocks(force bool) (snapshot map[string]int64, err error)

	// ReleaseAllLocks unconditionally deletes every lock cell of the row,
	// including cells of live holders and permanent markers. This is an
	// administrative override, not part of the normal acquire/release flow.
	ReleaseAllLocks() (snapshot map[string]int64, err error)

	// ReleaseExpiredLocks deletes only lock cells whose expiration is
	// nonzero and already in the past. Live and permanent-marker cells are
	// untouched.
	ReleaseExpiredLocks() (snapshot map[string]int64, err error)

	// FillLockMutation merges this lock's cell write into an externally
	// managed batch. A nil time writes a permanent marker cell (value 0)
	// instead of a time-bounded one. The cell is recorded for deletion on
	// Release regardless. Returns the cell name that will be written.
	FillLockMutation(b storage.IMutationBatch, time *int64, ttl uint64) (cellName string)

	// FillReleaseMutation merges this lock's pending deletions into an
	// externally managed batch and clears the pending set.
	FillReleaseMutation(b storage.IMutationBatch)

	// ConsistencyLevel returns the consistency level the lock operates at.
	ConsistencyLevel() (cl storage.ConsistencyLevel)

	// LockCell returns the attempt's own cell name (prefix + token).
	LockCell() (name string)

	// Store returns the bound storage handle.
	Store() (store storage.IWideStore)
}
