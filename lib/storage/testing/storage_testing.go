package testing

import (
	"fmt"
	"sync"
	"testing"

	"github.com/ValentinKolb/dLock/lib/storage"
)

// StoreFactory is a function that creates a new instance of an IWideStore
// implementation. Each sub-test receives a fresh store.
type StoreFactory func() storage.IWideStore

// RunWideStoreTests runs a standardized contract test suite for an IWideStore
// implementation.
func RunWideStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Write&RangeRead", func(t *testing.T) {
			testWriteRangeRead(t, factory())
		})

		t.Run("RangeReadOrdering", func(t *testing.T) {
			testRangeReadOrdering(t, factory())
		})

		t.Run("RangeReadBounds", func(t *testing.T) {
			testRangeReadBounds(t, factory())
		})

		t.Run("Overwrite", func(t *testing.T) {
			testOverwrite(t, factory())
		})

		t.Run("BatchDelete", func(t *testing.T) {
			testBatchDelete(t, factory())
		})

		t.Run("MutationBatch", func(t *testing.T) {
			testMutationBatch(t, factory())
		})

		t.Run("RowIsolation", func(t *testing.T) {
			testRowIsolation(t, factory())
		})

		t.Run("ConcurrentWriters", func(t *testing.T) {
			testConcurrentWriters(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

const testCL = storage.ConsistencyQuorum

func mustWrite(t testing.TB, s storage.IWideStore, rowKey string, cell storage.Cell) {
	t.Helper()
	if err := s.Write(rowKey, cell, testCL); err != nil {
		t.Fatalf("Write(%q, %q) failed: %v", rowKey, cell.Name, err)
	}
}

func readAll(t testing.TB, s storage.IWideStore, rowKey string) []storage.Cell {
	t.Helper()
	cells, err := s.RangeRead(rowKey, "\x00", "\uffff", testCL)
	if err != nil {
		t.Fatalf("RangeRead(%q) failed: %v", rowKey, err)
	}
	return cells
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testWriteRangeRead(t *testing.T, s storage.IWideStore) {
	rowKey := "row-1"

	mustWrite(t, s, rowKey, storage.Cell{Name: "_lock_a", Value: 100})

	cells := readAll(t, s, rowKey)
	if len(cells) != 1 {
		t.Fatalf("Expected 1 cell, got %d", len(cells))
	}
	if cells[0].Name != "_lock_a" || cells[0].Value != 100 {
		t.Errorf("Unexpected cell: %+v", cells[0])
	}

	// A row that was never written reads back empty without error.
	if got := readAll(t, s, "no-such-row"); len(got) != 0 {
		t.Errorf("Expected empty result for unknown row, got %v", got)
	}
}

func testRangeReadOrdering(t *testing.T, s storage.IWideStore) {
	rowKey := "row-ordering"

	// Insert deliberately out of order.
	for _, name := range []string{"_lock_c", "_lock_a", "_lock_d", "_lock_b"} {
		mustWrite(t, s, rowKey, storage.Cell{Name: name, Value: 1})
	}

	cells := readAll(t, s, rowKey)
	if len(cells) != 4 {
		t.Fatalf("Expected 4 cells, got %d", len(cells))
	}
	for i := 1; i < len(cells); i++ {
		if cells[i-1].Name >= cells[i].Name {
			t.Errorf("Cells not in lexicographic order: %q before %q", cells[i-1].Name, cells[i].Name)
		}
	}
}

func testRangeReadBounds(t *testing.T, s storage.IWideStore) {
	rowKey := "row-bounds"

	mustWrite(t, s, rowKey, storage.Cell{Name: "data-col", Value: 7})
	mustWrite(t, s, rowKey, storage.Cell{Name: "_lock_x", Value: 1})
	mustWrite(t, s, rowKey, storage.Cell{Name: "_lock_y", Value: 2})
	mustWrite(t, s, rowKey, storage.Cell{Name: "zzz", Value: 9})

	// A prefix-bounded scan must only see the lock cells.
	cells, err := s.RangeRead(rowKey, "_lock_\x00", "_lock_\uffff", testCL)
	if err != nil {
		t.Fatalf("RangeRead failed: %v", err)
	}
	if len(cells) != 2 {
		t.Fatalf("Expected 2 cells in prefix range, got %d: %v", len(cells), cells)
	}
	if cells[0].Name != "_lock_x" || cells[1].Name != "_lock_y" {
		t.Errorf("Unexpected cells in prefix range: %v", cells)
	}
}

func testOverwrite(t *testing.T, s storage.IWideStore) {
	rowKey := "row-overwrite"

	mustWrite(t, s, rowKey, storage.Cell{Name: "_lock_a", Value: 1})
	mustWrite(t, s, rowKey, storage.Cell{Name: "_lock_a", Value: 2})

	cells := readAll(t, s, rowKey)
	if len(cells) != 1 {
		t.Fatalf("Expected 1 cell after overwrite, got %d", len(cells))
	}
	if cells[0].Value != 2 {
		t.Errorf("Expected overwritten value 2, got %d", cells[0].Value)
	}
}

func testBatchDelete(t *testing.T, s storage.IWideStore) {
	rowKey := "row-delete"

	mustWrite(t, s, rowKey, storage.Cell{Name: "_lock_a", Value: 1})
	mustWrite(t, s, rowKey, storage.Cell{Name: "_lock_b", Value: 2})
	mustWrite(t, s, rowKey, storage.Cell{Name: "_lock_c", Value: 3})

	// Deleting existing and non-existing cells in one call must succeed.
	if err := s.BatchDelete(rowKey, []string{"_lock_a", "_lock_c", "_lock_nope"}, testCL); err != nil {
		t.Fatalf("BatchDelete failed: %v", err)
	}

	cells := readAll(t, s, rowKey)
	if len(cells) != 1 || cells[0].Name != "_lock_b" {
		t.Errorf("Expected only _lock_b to remain, got %v", cells)
	}

	// Empty delete is a no-op.
	if err := s.BatchDelete(rowKey, nil, testCL); err != nil {
		t.Errorf("Empty BatchDelete failed: %v", err)
	}
}

func testMutationBatch(t *testing.T, s storage.IWideStore) {
	mustWrite(t, s, "row-a", storage.Cell{Name: "_lock_old", Value: 1})

	b := s.NewBatch(testCL)
	b.Put("row-a", storage.Cell{Name: "_lock_new", Value: 2})
	b.Put("row-b", storage.Cell{Name: "_lock_other", Value: 3})
	b.Delete("row-a", "_lock_old")

	if b.Size() != 3 {
		t.Errorf("Expected batch size 3, got %d", b.Size())
	}

	// Nothing is applied before Execute.
	if cells := readAll(t, s, "row-b"); len(cells) != 0 {
		t.Errorf("Batch mutations visible before Execute: %v", cells)
	}

	if err := b.Execute(); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	cellsA := readAll(t, s, "row-a")
	if len(cellsA) != 1 || cellsA[0].Name != "_lock_new" {
		t.Errorf("Unexpected cells in row-a after batch: %v", cellsA)
	}
	cellsB := readAll(t, s, "row-b")
	if len(cellsB) != 1 || cellsB[0].Name != "_lock_other" {
		t.Errorf("Unexpected cells in row-b after batch: %v", cellsB)
	}

	if b.Size() != 0 {
		t.Errorf("Expected empty batch after Execute, got size %d", b.Size())
	}
}

func testRowIsolation(t *testing.T, s storage.IWideStore) {
	mustWrite(t, s, "row-1", storage.Cell{Name: "_lock_a", Value: 1})
	mustWrite(t, s, "row-2", storage.Cell{Name: "_lock_b", Value: 2})

	if err := s.BatchDelete("row-1", []string{"_lock_a"}, testCL); err != nil {
		t.Fatalf("BatchDelete failed: %v", err)
	}

	if cells := readAll(t, s, "row-2"); len(cells) != 1 {
		t.Errorf("Delete on row-1 affected row-2: %v", cells)
	}
}

func testConcurrentWriters(t *testing.T, s storage.IWideStore) {
	const (
		writers       = 8
		cellsPerActor = 50
	)

	rowKey := "row-concurrent"

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < cellsPerActor; i++ {
				name := fmt.Sprintf("_lock_%02d_%03d", w, i)
				if err := s.Write(rowKey, storage.Cell{Name: name, Value: int64(i)}, testCL); err != nil {
					t.Errorf("Concurrent write failed: %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	cells := readAll(t, s, rowKey)
	if len(cells) != writers*cellsPerActor {
		t.Errorf("Expected %d cells, got %d", writers*cellsPerActor, len(cells))
	}
	for i := 1; i < len(cells); i++ {
		if cells[i-1].Name >= cells[i].Name {
			t.Errorf("Order violated after concurrent writes: %q before %q", cells[i-1].Name, cells[i].Name)
			break
		}
	}
}
