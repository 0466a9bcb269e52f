package rowlock

import (
	"errors"

	"github.com/ValentinKolb/dLock/lib/storage"
)

type lockImpl struct {
	store         storage.IWideStore
	rowKey        string
	opts          LockOptions
	lockCell      string
	locksToDelete map[string]struct{}
}

// NewRowLock creates a lock bound to one row of the given table handle, with
// the specified options (optional).
//
// Thread-safety: The returned lock represents a single attempt and must not
// be shared between goroutines. Distributed contention is handled by the
// protocol itself; in-process sharing is not.
func NewRowLock(store storage.IWideStore, rowKey string, opts *LockOptions) (ILock, error) {
	if opts == nil {
		opts = DefaultLockOptions()
	}

	// Copy the options so the attempt can not be reconfigured in flight.
	o := *opts
	if o.Prefix == "" {
		o.Prefix = DefaultLockPrefix
	}
	if o.StalenessWindow <= 0 {
		o.StalenessWindow = DefaultStalenessWindow
	}
	if o.Clock == nil {
		o.Clock = SystemClock()
	}

	lockCell := o.LockCell
	if lockCell == "" {
		token, err := generateToken()
		if err != nil {
			return nil, err
		}
		lockCell = o.Prefix + token
	}

	return &lockImpl{
		store:         store,
		rowKey:        rowKey,
		opts:          o,
		lockCell:      lockCell,
		locksToDelete: make(map[string]struct{}),
	}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see rowlock/interface.go)
// --------------------------------------------------------------------------

func (l *lockImpl) Acquire() error {
	now := l.opts.Clock.NowMicros()

	err := l.writeLockCell(now)
	if err == nil {
		err = l.Verify(now)
		if err == nil {
			return nil
		}
	}

	// Best-effort cleanup of whatever may have been written, then propagate
	// the original cause. A failing cleanup is chained, never masked.
	if relErr := l.Release(); relErr != nil {
		return errors.Join(err, relErr)
	}
	return err
}

func (l *lockImpl) Verify(nowMicros int64) error {
	cells, err := l.ReadLockCells()
	if err != nil {
		return err
	}

	for name, expiration := range cells {
		// A stale lock that was never cleaned up. A value of 0 is a
		// permanent marker and never counts as expired.
		if expiration != 0 && nowMicros > expiration {
			if l.opts.FailOnStaleLock {
				return &StaleLockError{Row: l.rowKey}
			}
			l.locksToDelete[name] = struct{}{}
			continue
		}

		// Lock already taken, and not by us.
		if name != l.lockCell {
			return &BusyLockError{Cell: name}
		}
	}

	return nil
}

func (l *lockImpl) Release() error {
	if len(l.locksToDelete) == 0 {
		return nil
	}

	b := l.store.NewBatch(l.opts.Consistency)
	l.FillReleaseMutation(b)
	return b.Execute()
}

func (l *lockImpl) ReadLockCells() (map[string]int64, error) {
	cells, err := l.store.RangeRead(
		l.rowKey,
		l.opts.Prefix+"\x00",
		l.opts.Prefix+"\uffff",
		l.opts.Consistency,
	)
	if err != nil {
		return nil, err
	}

	result := make(map[string]int64, len(cells))
	for _, c := range cells {
		result[c.Name] = c.Value
	}
	return result, nil
}

func (l *lockImpl) ReleaseAllLocks() (map[string]int64, error) {
	return l.ReleaseLocks(true)
}

func (l *lockImpl) ReleaseExpiredLocks() (map[string]int64, error) {
	return l.ReleaseLocks(false)
}

func (l *lockImpl) ReleaseLocks(force bool) (map[string]int64, error) {
	snapshot, err := l.ReadLockCells()
	if err != nil {
		return nil, err
	}

	// Flush any deletions already pending from a previous attempt.
	if err := l.Release(); err != nil {
		return nil, err
	}

	b := l.store.NewBatch(l.opts.Consistency)
	now := l.opts.Clock.NowMicros()
	for name, expiration := range snapshot {
		if force || (expiration > 0 && expiration < now) {
			b.Delete(l.rowKey, name)
		}
	}
	if err := b.Execute(); err != nil {
		return nil, err
	}

	return snapshot, nil
}

func (l *lockImpl) FillLockMutation(b storage.IMutationBatch, time *int64, ttl uint64) string {
	l.locksToDelete[l.lockCell] = struct{}{}

	var value int64
	if time != nil {
		value = *time + l.opts.StalenessWindow.Microseconds()
	}
	b.Put(l.rowKey, storage.Cell{Name: l.lockCell, Value: value, TTL: ttl})

	return l.lockCell
}

func (l *lockImpl) FillReleaseMutation(b storage.IMutationBatch) {
	for name := range l.locksToDelete {
		b.Delete(l.rowKey, name)
	}
	l.locksToDelete = make(map[string]struct{})
}

func (l *lockImpl) ConsistencyLevel() storage.ConsistencyLevel {
	return l.opts.Consistency
}

func (l *lockImpl) LockCell() string {
	return l.lockCell
}

func (l *lockImpl) Store() storage.IWideStore {
	return l.store
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// writeLockCell writes the attempt's own lock cell for the given time. The
// cell name is recorded for deletion before the write is issued, so a failed
// or half-applied write still gets cleaned up.
func (l *lockImpl) writeLockCell(nowMicros int64) error {
	b := l.store.NewBatch(l.opts.Consistency)
	l.FillLockMutation(b, &nowMicros, l.opts.TTL)
	return b.Execute()
}
