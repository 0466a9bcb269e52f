package rowlock

import "fmt"

// BusyLockError is returned when a live, non-expired cell owned by another
// attempt was observed during verification. It is never retried internally.
type BusyLockError struct {
	Cell string // name of the offending foreign cell
}

func (e *BusyLockError) Error() string {
	return fmt.Sprintf("lock already acquired by %s", e.Cell)
}

// StaleLockError is returned when a stale cell was observed and the lock is
// configured with FailOnStaleLock. The stale cell is deliberately left in
// place for manual inspection.
type StaleLockError struct {
	Row string // key of the locked row
}

func (e *StaleLockError) Error() string {
	return fmt.Sprintf("stale lock on row %s, manual cleanup required", e.Row)
}
