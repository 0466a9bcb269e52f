package rowlock

import (
	"errors"
	"testing"
	"time"

	"github.com/ValentinKolb/dLock/lib/storage"
	"github.com/ValentinKolb/dLock/lib/storage/memstore"
)

// --------------------------------------------------------------------------
// Test helpers
// --------------------------------------------------------------------------

// fakeClock is a manually advanced time source.
type fakeClock struct {
	micros int64
}

func (c *fakeClock) NowMicros() int64 {
	return c.micros
}

// countingStore wraps an IWideStore and counts executed mutation batches.
type countingStore struct {
	storage.IWideStore
	executes int
}

func (s *countingStore) NewBatch(cl storage.ConsistencyLevel) storage.IMutationBatch {
	return &countingBatch{IMutationBatch: s.IWideStore.NewBatch(cl), store: s}
}

type countingBatch struct {
	storage.IMutationBatch
	store *countingStore
}

func (b *countingBatch) Execute() error {
	b.store.executes++
	return b.IMutationBatch.Execute()
}

// faultStore wraps an IWideStore and injects failures into range reads and
// batch executions. allowExecutes batches succeed before executeErr kicks in,
// so a write can be let through while the later cleanup fails.
type faultStore struct {
	storage.IWideStore
	readErr       error
	executeErr    error
	allowExecutes int
}

func (s *faultStore) RangeRead(rowKey, start, end string, cl storage.ConsistencyLevel) ([]storage.Cell, error) {
	if s.readErr != nil {
		return nil, s.readErr
	}
	return s.IWideStore.RangeRead(rowKey, start, end, cl)
}

func (s *faultStore) NewBatch(cl storage.ConsistencyLevel) storage.IMutationBatch {
	return &faultBatch{IMutationBatch: s.IWideStore.NewBatch(cl), store: s}
}

type faultBatch struct {
	storage.IMutationBatch
	store *faultStore
}

func (b *faultBatch) Execute() error {
	if b.store.executeErr != nil {
		if b.store.allowExecutes == 0 {
			return b.store.executeErr
		}
		b.store.allowExecutes--
	}
	return b.IMutationBatch.Execute()
}

func newTestLock(t *testing.T, store storage.IWideStore, rowKey string, opts *LockOptions) ILock {
	t.Helper()
	lock, err := NewRowLock(store, rowKey, opts)
	if err != nil {
		t.Fatalf("NewRowLock failed: %v", err)
	}
	return lock
}

func testOptions(clock Clock) *LockOptions {
	opts := DefaultLockOptions()
	opts.StalenessWindow = time.Minute
	opts.Clock = clock
	return opts
}

func lockCells(t *testing.T, lock ILock) map[string]int64 {
	t.Helper()
	cells, err := lock.ReadLockCells()
	if err != nil {
		t.Fatalf("ReadLockCells failed: %v", err)
	}
	return cells
}

// seedCell writes a lock cell directly into the store, bypassing a lock
// attempt (simulating a cell left behind by another process).
func seedCell(t *testing.T, store storage.IWideStore, rowKey, name string, value int64) {
	t.Helper()
	if err := store.Write(rowKey, storage.Cell{Name: name, Value: value}, storage.ConsistencyQuorum); err != nil {
		t.Fatalf("Seeding cell %q failed: %v", name, err)
	}
}

// --------------------------------------------------------------------------
// Acquisition
// --------------------------------------------------------------------------

func TestAcquireUncontested(t *testing.T) {
	store := memstore.NewMemStore(nil)
	defer store.Close()
	clock := &fakeClock{micros: 1_000_000}

	lock := newTestLock(t, store, "row-1", testOptions(clock))

	if err := lock.Acquire(); err != nil {
		t.Fatalf("Uncontested Acquire failed: %v", err)
	}

	cells := lockCells(t, lock)
	if len(cells) != 1 {
		t.Fatalf("Expected exactly the own cell, got %v", cells)
	}

	expiration, ok := cells[lock.LockCell()]
	if !ok {
		t.Fatalf("Own cell %q not found in %v", lock.LockCell(), cells)
	}
	wantExpiration := clock.micros + time.Minute.Microseconds()
	if expiration != wantExpiration {
		t.Errorf("Expected expiration %d, got %d", wantExpiration, expiration)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if cells := lockCells(t, lock); len(cells) != 0 {
		t.Errorf("Expected no cells after release, got %v", cells)
	}
}

func TestVerifyIsSelfTolerant(t *testing.T) {
	store := memstore.NewMemStore(nil)
	defer store.Close()
	clock := &fakeClock{micros: 1_000_000}

	lock := newTestLock(t, store, "row-1", testOptions(clock))
	if err := lock.Acquire(); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	// The attempt's own cell must never read as foreign, no matter how often
	// verification runs.
	for i := 0; i < 5; i++ {
		if err := lock.Verify(clock.NowMicros()); err != nil {
			t.Fatalf("Verify run %d failed: %v", i, err)
		}
	}
}

func TestAcquireBusy(t *testing.T) {
	store := memstore.NewMemStore(nil)
	defer store.Close()
	clock := &fakeClock{micros: 1_000_000}
	opts := testOptions(clock)

	foreign := opts.Prefix + "00000000-aaaa-bbbb-cccc-000000000001"
	seedCell(t, store, "row-1", foreign, clock.micros+time.Hour.Microseconds())

	lock := newTestLock(t, store, "row-1", opts)
	err := lock.Acquire()

	var busy *BusyLockError
	if !errors.As(err, &busy) {
		t.Fatalf("Expected BusyLockError, got %v", err)
	}
	if busy.Cell != foreign {
		t.Errorf("Expected offending cell %q, got %q", foreign, busy.Cell)
	}

	// The failed attempt cleaned up its own cell; the holder's cell remains.
	cells := lockCells(t, lock)
	if len(cells) != 1 {
		t.Fatalf("Expected only the foreign cell to remain, got %v", cells)
	}
	if _, ok := cells[foreign]; !ok {
		t.Errorf("Foreign cell missing after failed acquire: %v", cells)
	}
}

func TestPermanentMarkerIsNeverStale(t *testing.T) {
	store := memstore.NewMemStore(nil)
	defer store.Close()
	clock := &fakeClock{micros: 1_000_000_000}
	opts := testOptions(clock)

	// A value of 0 is a marker, not an expired lock - even though 0 is far
	// in the past as a timestamp, it must read as busy rather than stale.
	seedCell(t, store, "row-1", opts.Prefix+"marker", 0)

	lock := newTestLock(t, store, "row-1", opts)
	err := lock.Acquire()

	var busy *BusyLockError
	if !errors.As(err, &busy) {
		t.Fatalf("Expected BusyLockError for permanent marker, got %v", err)
	}
}

func TestAcquireReadFailureCleansUp(t *testing.T) {
	inner := memstore.NewMemStore(nil)
	defer inner.Close()
	readErr := errors.New("range read failure")
	store := &faultStore{IWideStore: inner, readErr: readErr}
	clock := &fakeClock{micros: 1_000_000}

	lock := newTestLock(t, store, "row-1", testOptions(clock))

	// The write succeeds, the verification read fails. The original cause
	// must surface and the attempt's own cell must be gone.
	if err := lock.Acquire(); !errors.Is(err, readErr) {
		t.Fatalf("Expected the read failure as cause, got %v", err)
	}

	store.readErr = nil
	if cells := lockCells(t, lock); len(cells) != 0 {
		t.Errorf("Expected own cell removed after failed acquire, got %v", cells)
	}
}

func TestAcquireCleanupFailureChainsErrors(t *testing.T) {
	inner := memstore.NewMemStore(nil)
	defer inner.Close()
	readErr := errors.New("range read failure")
	execErr := errors.New("batch execute failure")
	store := &faultStore{
		IWideStore:    inner,
		readErr:       readErr,
		executeErr:    execErr,
		allowExecutes: 1, // the lock cell write goes through, the cleanup fails
	}
	clock := &fakeClock{micros: 1_000_000}

	lock := newTestLock(t, store, "row-1", testOptions(clock))
	err := lock.Acquire()

	// Both the original cause and the cleanup failure must be visible, the
	// cleanup error never masks the cause.
	if !errors.Is(err, readErr) {
		t.Errorf("Original cause not in error chain: %v", err)
	}
	if !errors.Is(err, execErr) {
		t.Errorf("Cleanup failure not in error chain: %v", err)
	}
}

// --------------------------------------------------------------------------
// Stale lock handling
// --------------------------------------------------------------------------

func TestStaleReclaim(t *testing.T) {
	store := memstore.NewMemStore(nil)
	defer store.Close()
	clock := &fakeClock{micros: 10_000_000}
	opts := testOptions(clock)

	stale := opts.Prefix + "stale-token"
	seedCell(t, store, "row-1", stale, clock.micros-1)

	lock := newTestLock(t, store, "row-1", opts)
	if err := lock.Acquire(); err != nil {
		t.Fatalf("Acquire over stale cell failed: %v", err)
	}

	// The stale cell is still present until release, then both are gone.
	cells := lockCells(t, lock)
	if len(cells) != 2 {
		t.Fatalf("Expected own + stale cell before release, got %v", cells)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if cells := lockCells(t, lock); len(cells) != 0 {
		t.Errorf("Expected stale cell reclaimed on release, got %v", cells)
	}
}

func TestStaleFailsWhenConfigured(t *testing.T) {
	store := memstore.NewMemStore(nil)
	defer store.Close()
	clock := &fakeClock{micros: 10_000_000}
	opts := testOptions(clock)
	opts.FailOnStaleLock = true

	stale := opts.Prefix + "stale-token"
	seedCell(t, store, "row-1", stale, clock.micros-1)

	lock := newTestLock(t, store, "row-1", opts)
	err := lock.Acquire()

	var staleErr *StaleLockError
	if !errors.As(err, &staleErr) {
		t.Fatalf("Expected StaleLockError, got %v", err)
	}
	if staleErr.Row != "row-1" {
		t.Errorf("Expected row %q in error, got %q", "row-1", staleErr.Row)
	}

	// The stale cell is preserved for manual inspection; only the attempt's
	// own cell was removed by the cleanup.
	cells := lockCells(t, lock)
	if len(cells) != 1 {
		t.Fatalf("Expected only the stale cell to remain, got %v", cells)
	}
	if _, ok := cells[stale]; !ok {
		t.Errorf("Stale cell was removed despite FailOnStaleLock: %v", cells)
	}
}

// --------------------------------------------------------------------------
// Duel
// --------------------------------------------------------------------------

func TestDuel(t *testing.T) {
	store := memstore.NewMemStore(nil)
	defer store.Close()
	clock := &fakeClock{micros: 1_000_000}
	opts := testOptions(clock)

	lock1 := newTestLock(t, store, "row-1", opts)
	lock2 := newTestLock(t, store, "row-1", opts)

	// Both attempts write before either reads back.
	now := clock.NowMicros()
	for _, lock := range []ILock{lock1, lock2} {
		b := store.NewBatch(storage.ConsistencyQuorum)
		lock.FillLockMutation(b, &now, 0)
		if err := b.Execute(); err != nil {
			t.Fatalf("Writing duel cell failed: %v", err)
		}
	}

	// Each observes the other as foreign-live.
	var busy *BusyLockError
	if err := lock1.Verify(now); !errors.As(err, &busy) {
		t.Errorf("Expected BusyLockError for attempt 1, got %v", err)
	}
	if err := lock2.Verify(now); !errors.As(err, &busy) {
		t.Errorf("Expected BusyLockError for attempt 2, got %v", err)
	}

	// After both clean up, the round leaves zero cells.
	if err := lock1.Release(); err != nil {
		t.Fatalf("Release of attempt 1 failed: %v", err)
	}
	if err := lock2.Release(); err != nil {
		t.Fatalf("Release of attempt 2 failed: %v", err)
	}
	if cells := lockCells(t, lock1); len(cells) != 0 {
		t.Errorf("Expected empty row after duel cleanup, got %v", cells)
	}
}

// --------------------------------------------------------------------------
// Release and maintenance
// --------------------------------------------------------------------------

func TestReleaseIsIdempotent(t *testing.T) {
	inner := memstore.NewMemStore(nil)
	defer inner.Close()
	store := &countingStore{IWideStore: inner}
	clock := &fakeClock{micros: 1_000_000}

	lock := newTestLock(t, store, "row-1", testOptions(clock))
	if err := lock.Acquire(); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("First release failed: %v", err)
	}

	// The second release has nothing to delete and must not touch storage.
	before := store.executes
	if err := lock.Release(); err != nil {
		t.Fatalf("Second release failed: %v", err)
	}
	if store.executes != before {
		t.Errorf("Second release performed %d storage operations", store.executes-before)
	}
}

func TestForceVsExpiredRelease(t *testing.T) {
	store := memstore.NewMemStore(nil)
	defer store.Close()
	clock := &fakeClock{micros: 1_000_000}
	opts := testOptions(clock)

	seedCell(t, store, "row-1", opts.Prefix+"a", clock.micros-100) // expired
	seedCell(t, store, "row-1", opts.Prefix+"b", clock.micros+100) // live
	seedCell(t, store, "row-1", opts.Prefix+"c", 0)                // permanent marker

	lock := newTestLock(t, store, "row-1", opts)

	snapshot, err := lock.ReleaseExpiredLocks()
	if err != nil {
		t.Fatalf("ReleaseExpiredLocks failed: %v", err)
	}
	if len(snapshot) != 3 {
		t.Errorf("Expected pre-deletion snapshot of 3 cells, got %v", snapshot)
	}

	cells := lockCells(t, lock)
	if len(cells) != 2 {
		t.Fatalf("Expected live + marker cell to survive, got %v", cells)
	}
	if _, ok := cells[opts.Prefix+"a"]; ok {
		t.Errorf("Expired cell survived ReleaseExpiredLocks: %v", cells)
	}

	snapshot, err = lock.ReleaseAllLocks()
	if err != nil {
		t.Fatalf("ReleaseAllLocks failed: %v", err)
	}
	if len(snapshot) != 2 {
		t.Errorf("Expected pre-deletion snapshot of 2 cells, got %v", snapshot)
	}
	if cells := lockCells(t, lock); len(cells) != 0 {
		t.Errorf("Expected empty row after ReleaseAllLocks, got %v", cells)
	}
}

// --------------------------------------------------------------------------
// External mutation batches
// --------------------------------------------------------------------------

func TestFillLockMutationPermanentMarker(t *testing.T) {
	store := memstore.NewMemStore(nil)
	defer store.Close()
	clock := &fakeClock{micros: 1_000_000}

	lock := newTestLock(t, store, "row-1", testOptions(clock))

	// time == nil writes a permanent marker cell (value 0).
	b := store.NewBatch(storage.ConsistencyQuorum)
	name := lock.FillLockMutation(b, nil, 0)
	if name != lock.LockCell() {
		t.Errorf("FillLockMutation returned %q, want %q", name, lock.LockCell())
	}
	if err := b.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	cells := lockCells(t, lock)
	if got := cells[lock.LockCell()]; got != 0 {
		t.Errorf("Expected permanent marker value 0, got %d", got)
	}

	// The marker is still tracked for release.
	if err := lock.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if cells := lockCells(t, lock); len(cells) != 0 {
		t.Errorf("Expected marker removed on release, got %v", cells)
	}
}

func TestFillReleaseMutationBundling(t *testing.T) {
	store := memstore.NewMemStore(nil)
	defer store.Close()
	clock := &fakeClock{micros: 1_000_000}

	lock := newTestLock(t, store, "row-1", testOptions(clock))
	if err := lock.Acquire(); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	// Bundle the release with a caller-owned data mutation.
	b := store.NewBatch(storage.ConsistencyQuorum)
	b.Put("row-1", storage.Cell{Name: "balance", Value: 42})
	lock.FillReleaseMutation(b)
	if err := b.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if cells := lockCells(t, lock); len(cells) != 0 {
		t.Errorf("Expected lock cells removed via external batch, got %v", cells)
	}

	data, err := store.RangeRead("row-1", "balance", "balance", storage.ConsistencyQuorum)
	if err != nil {
		t.Fatalf("RangeRead failed: %v", err)
	}
	if len(data) != 1 || data[0].Value != 42 {
		t.Errorf("Data mutation missing after bundled batch: %v", data)
	}
}

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

func TestLockCellOverride(t *testing.T) {
	store := memstore.NewMemStore(nil)
	defer store.Close()
	clock := &fakeClock{micros: 1_000_000}
	opts := testOptions(clock)
	opts.LockCell = "_lock_pinned"

	lock := newTestLock(t, store, "row-1", opts)
	if lock.LockCell() != "_lock_pinned" {
		t.Errorf("Expected overridden cell name, got %q", lock.LockCell())
	}

	if err := lock.Acquire(); err != nil {
		t.Fatalf("Acquire with overridden cell failed: %v", err)
	}
	cells := lockCells(t, lock)
	if _, ok := cells["_lock_pinned"]; !ok {
		t.Errorf("Overridden cell not written: %v", cells)
	}
}

func TestAccessors(t *testing.T) {
	store := memstore.NewMemStore(nil)
	defer store.Close()
	opts := testOptions(&fakeClock{})
	opts.Consistency = storage.ConsistencyLocalQuorum

	lock := newTestLock(t, store, "row-1", opts)
	if lock.ConsistencyLevel() != storage.ConsistencyLocalQuorum {
		t.Errorf("Unexpected consistency level: %v", lock.ConsistencyLevel())
	}
	if lock.Store() != storage.IWideStore(store) {
		t.Error("Store accessor does not return the bound store")
	}
}
