package server

import (
	"testing"

	"github.com/ValentinKolb/dLock/lib/storage"
	"github.com/ValentinKolb/dLock/lib/storage/memstore"
	"github.com/ValentinKolb/dLock/rpc/common"
)

func newTestStore(t *testing.T) *memstore.MemStore {
	t.Helper()
	s := memstore.NewMemStore(memstore.DefaultOptions())
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAdapterWriteAndRangeRead(t *testing.T) {
	adapter := NewWideStoreServerAdapter()
	store := newTestStore(t)

	// Write two cells
	for _, name := range []string{"_lock_b", "_lock_a"} {
		resp := adapter.Handle(common.NewWriteRequest("row", common.CellData{
			Name:  name,
			Value: 42,
		}, uint8(storage.ConsistencyQuorum)), store)
		if resp.Err != "" {
			t.Fatalf("write failed: %s", resp.Err)
		}
	}

	// Read them back in order
	resp := adapter.Handle(common.NewRangeReadRequest("row", "_lock_ ", "_lock_\uffff", uint8(storage.ConsistencyQuorum)), store)
	if resp.Err != "" {
		t.Fatalf("range read failed: %s", resp.Err)
	}
	if len(resp.Cells) != 2 {
		t.Fatalf("expected 2 cells, got %d", len(resp.Cells))
	}
	if resp.Cells[0].Name != "_lock_a" || resp.Cells[1].Name != "_lock_b" {
		t.Errorf("cells not ordered by name: %v", resp.Cells)
	}
}

func TestAdapterBatchDelete(t *testing.T) {
	adapter := NewWideStoreServerAdapter()
	store := newTestStore(t)

	for _, name := range []string{"a", "b", "c"} {
		adapter.Handle(common.NewWriteRequest("row", common.CellData{Name: name, Value: 1}, 0), store)
	}

	resp := adapter.Handle(common.NewBatchDeleteRequest("row", []string{"a", "c"}, 0), store)
	if resp.Err != "" {
		t.Fatalf("batch delete failed: %s", resp.Err)
	}

	read := adapter.Handle(common.NewRangeReadRequest("row", "a", "z", 0), store)
	if len(read.Cells) != 1 || read.Cells[0].Name != "b" {
		t.Errorf("expected only cell b to remain, got %v", read.Cells)
	}
}

func TestAdapterBatchExec(t *testing.T) {
	adapter := NewWideStoreServerAdapter()
	store := newTestStore(t)

	adapter.Handle(common.NewWriteRequest("r1", common.CellData{Name: "old", Value: 1}, 0), store)

	resp := adapter.Handle(common.NewBatchExecRequest([]common.BatchOp{
		{Op: common.BatchOpPut, RowKey: "r1", Name: "new", Value: 2},
		{Op: common.BatchOpDelete, RowKey: "r1", Name: "old"},
		{Op: common.BatchOpPut, RowKey: "r2", Name: "other", Value: 3},
	}, 0), store)
	if resp.Err != "" {
		t.Fatalf("batch exec failed: %s", resp.Err)
	}

	r1 := adapter.Handle(common.NewRangeReadRequest("r1", "a", "z", 0), store)
	if len(r1.Cells) != 1 || r1.Cells[0].Name != "new" {
		t.Errorf("expected only cell new in r1, got %v", r1.Cells)
	}

	r2 := adapter.Handle(common.NewRangeReadRequest("r2", "a", "z", 0), store)
	if len(r2.Cells) != 1 || r2.Cells[0].Value != 3 {
		t.Errorf("expected cell other=3 in r2, got %v", r2.Cells)
	}
}

func TestAdapterErrors(t *testing.T) {
	adapter := NewWideStoreServerAdapter()
	store := newTestStore(t)

	// Nil store
	resp := adapter.Handle(common.NewWriteRequest("row", common.CellData{Name: "a"}, 0), nil)
	if resp.MsgType != common.MsgTError {
		t.Errorf("expected error response for nil store, got %s", resp.MsgType)
	}

	// Unknown message type
	resp = adapter.Handle(&common.Message{MsgType: common.MsgTCustom}, store)
	if resp.MsgType != common.MsgTError {
		t.Errorf("expected error response for unknown message type, got %s", resp.MsgType)
	}

	// Unknown batch op
	resp = adapter.Handle(common.NewBatchExecRequest([]common.BatchOp{{Op: 99, RowKey: "r", Name: "n"}}, 0), store)
	if resp.MsgType != common.MsgTError {
		t.Errorf("expected error response for unknown batch op, got %s", resp.MsgType)
	}

	// Empty cell name is rejected by the store and surfaced in the response
	resp = adapter.Handle(common.NewWriteRequest("row", common.CellData{Name: ""}, 0), store)
	if resp.Err == "" {
		t.Errorf("expected error for empty cell name")
	}
}
