package server

import (
	"fmt"

	"github.com/ValentinKolb/dLock/lib/storage"
	"github.com/ValentinKolb/dLock/rpc/common"
)

func NewWideStoreServerAdapter() IRPCServerAdapter {
	return &wideStoreServerAdapterImpl{}
}

type wideStoreServerAdapterImpl struct{}

func (adapter *wideStoreServerAdapterImpl) Handle(req *common.Message, store storage.IWideStore) *common.Message {
	// Check for nil store
	if store == nil {
		return common.NewErrorResponse("handler: store is nil")
	}

	cl := storage.ConsistencyLevel(req.Consistency)

	// Handle different message types
	switch req.MsgType {
	case common.MsgTWrite:
		err := store.Write(req.RowKey, storage.Cell{
			Name:  req.Name,
			Value: req.Value,
			TTL:   req.TTL,
		}, cl)
		return common.NewWriteResponse(err)
	case common.MsgTRangeRead:
		cells, err := store.RangeRead(req.RowKey, req.Start, req.End, cl)
		return common.NewRangeReadResponse(toCellData(cells), err)
	case common.MsgTBatchDelete:
		err := store.BatchDelete(req.RowKey, req.Names, cl)
		return common.NewBatchDeleteResponse(err)
	case common.MsgTBatchExec:
		batch := store.NewBatch(cl)
		for _, op := range req.Ops {
			switch op.Op {
			case common.BatchOpPut:
				batch.Put(op.RowKey, storage.Cell{
					Name:  op.Name,
					Value: op.Value,
					TTL:   op.TTL,
				})
			case common.BatchOpDelete:
				batch.Delete(op.RowKey, op.Name)
			default:
				return common.NewErrorResponse(fmt.Sprintf("handler: unknown batch op: %d", op.Op))
			}
		}
		return common.NewBatchExecResponse(batch.Execute())
	default:
		return common.NewErrorResponse(fmt.Sprintf("handler: unknown message type: %s", req.MsgType))
	}
}

// toCellData converts storage cells to their wire representation
func toCellData(cells []storage.Cell) []common.CellData {
	if cells == nil {
		return nil
	}
	out := make([]common.CellData, len(cells))
	for i, c := range cells {
		out[i] = common.CellData{
			Name:  c.Name,
			Value: c.Value,
			TTL:   c.TTL,
		}
	}
	return out
}
