package rowlock

import (
	"time"

	"github.com/ValentinKolb/dLock/lib/storage"
)

// Constants for default lock behavior
const (
	DefaultLockPrefix      = "_lock_"
	DefaultStalenessWindow = 60 * time.Minute
)

// --------------------------------------------------------------------------
// Clock
// --------------------------------------------------------------------------

// Clock provides the wall clock time used by the lock protocol. Injecting it
// makes staleness and duel scenarios deterministically testable.
type Clock interface {
	// NowMicros returns the current wall clock time in microseconds.
	NowMicros() (micros int64)
}

// systemClock reads the system wall clock.
type systemClock struct{}

func (systemClock) NowMicros() int64 {
	return time.Now().UnixMicro()
}

// SystemClock returns a Clock backed by the system wall clock.
func SystemClock() Clock {
	return systemClock{}
}

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// LockOptions configures a lock attempt. The options value is copied on
// construction; a lock in flight can not be reconfigured.
type LockOptions struct {
	// Prefix distinguishes lock cells from data cells of the row.
	Prefix string

	// Consistency is the level used for every storage operation of the lock.
	// It must be a quorum-class level for the protocol to be sound: weaker
	// levels allow an attempt to miss a true peer's cell and believe it holds
	// an uncontested lock.
	Consistency storage.ConsistencyLevel

	// StalenessWindow is the duration after which an unreleased lock cell
	// becomes reclaimable by others. It is not an operation timeout; it only
	// protects against holders that crash or hang without calling Release.
	StalenessWindow time.Duration

	// FailOnStaleLock makes Acquire fail with a *StaleLockError instead of
	// reclaiming stale cells, preserving them for manual inspection.
	FailOnStaleLock bool

	// TTL is an optional storage-side expiration for the lock cell in
	// seconds (0 = none), independent of the staleness bookkeeping.
	TTL uint64

	// LockCell overrides the autogenerated cell name. Leave empty to have a
	// unique, time-ordered token generated on construction.
	LockCell string

	// Clock is the time source for the protocol (nil = system wall clock).
	Clock Clock
}

// DefaultLockOptions returns the default lock options
func DefaultLockOptions() *LockOptions {
	return &LockOptions{
		Prefix:          DefaultLockPrefix,
		Consistency:     storage.ConsistencyQuorum,
		StalenessWindow: DefaultStalenessWindow,
		Clock:           SystemClock(),
	}
}
