package memstore

import (
	"sort"
	"sync"
	"time"

	"github.com/ValentinKolb/dLock/lib/storage"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	defaultGCInterval = 100 * time.Millisecond // Default interval between GC runs
)

// --------------------------------------------------------------------------
// Core store structure
// --------------------------------------------------------------------------

// MemStore implements storage.IWideStore with an in-memory row map.
// It is a single-node engine: the consistency level passed to its methods is
// accepted and ignored since there are no replicas to agree.
//
// Storage-side TTLs are enforced lazily on read and by a background GC loop
// that physically removes expired cells.
type MemStore struct {
	rows *xsync.MapOf[string, *row]

	// garbage collection
	gcInterval time.Duration
	gcStop     chan struct{}
	gcOnce     sync.Once
}

// row holds the sorted cell set of one row. Cells are kept ordered by name
// so range reads are a contiguous slice scan.
type row struct {
	mu    sync.RWMutex
	cells []cellEntry
}

// cellEntry is a stored cell plus its absolute TTL deadline.
// expireAt is a unix timestamp in microseconds, 0 = no storage-side TTL.
type cellEntry struct {
	name     string
	value    int64
	ttl      uint64
	expireAt int64
}

// StoreOptions configures the MemStore behavior during initialization
type StoreOptions struct {
	GCInterval time.Duration // Time between GC runs (0 = use default)
}

// DefaultOptions returns the default MemStore options
func DefaultOptions() *StoreOptions {
	return &StoreOptions{
		GCInterval: defaultGCInterval,
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMemStore creates a new in-memory wide-column store with the specified
// options (optional).
//
// Thread-safety: This function is not thread-safe and should only be called
// once during initialization. All methods of the returned store are safe for
// concurrent use.
func NewMemStore(opts *StoreOptions) *MemStore {
	if opts == nil {
		opts = DefaultOptions()
	}

	gcInterval := opts.GCInterval
	if gcInterval <= 0 {
		gcInterval = defaultGCInterval
	}

	s := &MemStore{
		rows:       xsync.NewMapOf[string, *row](),
		gcInterval: gcInterval,
		gcStop:     make(chan struct{}),
	}

	// start garbage collection
	go s.runGC()

	return s
}

// Close stops the background garbage collector. The store remains usable,
// TTLs are then only enforced lazily on read.
func (s *MemStore) Close() error {
	s.gcOnce.Do(func() { close(s.gcStop) })
	return nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see storage/interface.go)
// --------------------------------------------------------------------------

func (s *MemStore) Write(rowKey string, cell storage.Cell, _ storage.ConsistencyLevel) error {
	if cell.Name == "" {
		return storage.NewError(storage.RetCInvalidOperation, "cell name must not be empty")
	}

	r := s.loadOrCreateRow(rowKey)
	r.mu.Lock()
	defer r.mu.Unlock()

	r.put(cellEntry{
		name:     cell.Name,
		value:    cell.Value,
		ttl:      cell.TTL,
		expireAt: ttlDeadline(cell.TTL),
	})
	return nil
}

func (s *MemStore) RangeRead(rowKey, start, end string, _ storage.ConsistencyLevel) ([]storage.Cell, error) {
	r, ok := s.rows.Load(rowKey)
	if !ok {
		return nil, nil
	}

	now := nowMicros()

	r.mu.RLock()
	defer r.mu.RUnlock()

	// Find the first cell >= start, then scan until a name passes end.
	idx := sort.Search(len(r.cells), func(i int) bool { return r.cells[i].name >= start })

	var result []storage.Cell
	for ; idx < len(r.cells); idx++ {
		c := r.cells[idx]
		if c.name > end {
			break
		}
		// Lazy TTL enforcement: a cell past its deadline is invisible even if
		// the GC has not collected it yet.
		if c.expireAt != 0 && now >= c.expireAt {
			continue
		}
		result = append(result, storage.Cell{Name: c.name, Value: c.value, TTL: c.ttl})
	}
	return result, nil
}

func (s *MemStore) BatchDelete(rowKey string, names []string, _ storage.ConsistencyLevel) error {
	if len(names) == 0 {
		return nil
	}

	r, ok := s.rows.Load(rowKey)
	if !ok {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range names {
		r.remove(name)
	}
	return nil
}

func (s *MemStore) NewBatch(cl storage.ConsistencyLevel) storage.IMutationBatch {
	return &memBatch{store: s, cl: cl}
}

// --------------------------------------------------------------------------
// Mutation Batch
// --------------------------------------------------------------------------

// batchOp is a single queued mutation. put==false means delete.
type batchOp struct {
	put    bool
	rowKey string
	cell   storage.Cell
}

type memBatch struct {
	store *MemStore
	cl    storage.ConsistencyLevel
	ops   []batchOp
}

func (b *memBatch) Put(rowKey string, cell storage.Cell) {
	b.ops = append(b.ops, batchOp{put: true, rowKey: rowKey, cell: cell})
}

func (b *memBatch) Delete(rowKey string, name string) {
	b.ops = append(b.ops, batchOp{put: false, rowKey: rowKey, cell: storage.Cell{Name: name}})
}

func (b *memBatch) Size() int {
	return len(b.ops)
}

// Execute applies the queued mutations grouped per row, holding each row's
// lock across that row's mutations. This gives per-row atomicity, nothing
// more - exactly the guarantee storage.IMutationBatch promises.
func (b *memBatch) Execute() error {
	// Group ops per row, preserving their relative order.
	perRow := make(map[string][]batchOp)
	for _, op := range b.ops {
		if op.cell.Name == "" {
			return storage.NewError(storage.RetCInvalidOperation, "cell name must not be empty")
		}
		perRow[op.rowKey] = append(perRow[op.rowKey], op)
	}

	for rowKey, ops := range perRow {
		r := b.store.loadOrCreateRow(rowKey)
		r.mu.Lock()
		for _, op := range ops {
			if op.put {
				r.put(cellEntry{
					name:     op.cell.Name,
					value:    op.cell.Value,
					ttl:      op.cell.TTL,
					expireAt: ttlDeadline(op.cell.TTL),
				})
			} else {
				r.remove(op.cell.Name)
			}
		}
		r.mu.Unlock()
	}

	b.ops = nil
	return nil
}

// --------------------------------------------------------------------------
// Row Helpers
// --------------------------------------------------------------------------

func (s *MemStore) loadOrCreateRow(rowKey string) *row {
	r, _ := s.rows.LoadOrCompute(rowKey, func() *row { return &row{} })
	return r
}

// put inserts or updates a cell, keeping the slice sorted by name.
// Caller must hold the row write lock.
func (r *row) put(e cellEntry) {
	idx := sort.Search(len(r.cells), func(i int) bool { return r.cells[i].name >= e.name })
	if idx < len(r.cells) && r.cells[idx].name == e.name {
		r.cells[idx] = e
		return
	}
	r.cells = append(r.cells, cellEntry{})
	copy(r.cells[idx+1:], r.cells[idx:])
	r.cells[idx] = e
}

// remove deletes a cell by name if present.
// Caller must hold the row write lock.
func (r *row) remove(name string) {
	idx := sort.Search(len(r.cells), func(i int) bool { return r.cells[i].name >= name })
	if idx < len(r.cells) && r.cells[idx].name == name {
		r.cells = append(r.cells[:idx], r.cells[idx+1:]...)
	}
}

// --------------------------------------------------------------------------
// Garbage Collection
// --------------------------------------------------------------------------

// runGC periodically removes cells whose storage-side TTL has elapsed.
func (s *MemStore) runGC() {
	ticker := time.NewTicker(s.gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.gcStop:
			return
		case <-ticker.C:
			now := nowMicros()
			s.rows.Range(func(_ string, r *row) bool {
				r.mu.Lock()
				kept := r.cells[:0]
				for _, c := range r.cells {
					if c.expireAt == 0 || now < c.expireAt {
						kept = append(kept, c)
					}
				}
				r.cells = kept
				r.mu.Unlock()
				return true
			})
		}
	}
}

// --------------------------------------------------------------------------
// Time Helpers
// --------------------------------------------------------------------------

func nowMicros() int64 {
	return time.Now().UnixMicro()
}

// ttlDeadline converts a TTL in seconds to an absolute deadline in
// microseconds. 0 means no TTL.
func ttlDeadline(ttl uint64) int64 {
	if ttl == 0 {
		return 0
	}
	return nowMicros() + int64(ttl)*int64(time.Second/time.Microsecond)
}
