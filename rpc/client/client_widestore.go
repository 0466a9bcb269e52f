package client

import (
	"github.com/ValentinKolb/dLock/lib/storage"
	"github.com/ValentinKolb/dLock/rpc/common"
	"github.com/ValentinKolb/dLock/rpc/serializer"
	"github.com/ValentinKolb/dLock/rpc/transport"
)

// NewRPCWideStore creates a new RPC wide-column store client
// The function takes a table ID, a config, a transport and a serializer as parameters
// It returns a storage.IWideStore and an error
func NewRPCWideStore(
	tableID uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (storage.IWideStore, error) {

	// Connect the transport
	err := transport.Connect(config)
	if err != nil {
		return nil, err
	}

	// Create a new RPC store
	s := rpcWideStore{
		rpcClientAdapter{
			tableID:    tableID,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}

	// Return the RPC store
	return &s, nil
}

type rpcWideStore struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the storage package in interface.go)
// --------------------------------------------------------------------------

func (i *rpcWideStore) Write(rowKey string, cell storage.Cell, cl storage.ConsistencyLevel) (err error) {
	req := common.NewWriteRequest(rowKey, common.CellData{
		Name:  cell.Name,
		Value: cell.Value,
		TTL:   cell.TTL,
	}, uint8(cl))
	_, err = invokeRPCRequest(i.tableID, req, i.transport, i.serializer)
	return err
}

func (i *rpcWideStore) RangeRead(rowKey, start, end string, cl storage.ConsistencyLevel) (cells []storage.Cell, err error) {
	req := common.NewRangeReadRequest(rowKey, start, end, uint8(cl))
	resp, err := invokeRPCRequest(i.tableID, req, i.transport, i.serializer)
	if err != nil {
		return nil, err
	}

	cells = make([]storage.Cell, len(resp.Cells))
	for j, c := range resp.Cells {
		cells[j] = storage.Cell{
			Name:  c.Name,
			Value: c.Value,
			TTL:   c.TTL,
		}
	}
	return cells, nil
}

func (i *rpcWideStore) BatchDelete(rowKey string, names []string, cl storage.ConsistencyLevel) (err error) {
	req := common.NewBatchDeleteRequest(rowKey, names, uint8(cl))
	_, err = invokeRPCRequest(i.tableID, req, i.transport, i.serializer)
	return err
}

func (i *rpcWideStore) NewBatch(cl storage.ConsistencyLevel) storage.IMutationBatch {
	return &rpcMutationBatch{
		store: i,
		cl:    cl,
	}
}

// --------------------------------------------------------------------------
// Mutation Batch
// --------------------------------------------------------------------------

// rpcMutationBatch accumulates mutations locally and ships them to the
// server as one batch exec request on Execute
type rpcMutationBatch struct {
	store *rpcWideStore
	cl    storage.ConsistencyLevel
	ops   []common.BatchOp
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the storage package in interface.go)
// --------------------------------------------------------------------------

func (b *rpcMutationBatch) Put(rowKey string, cell storage.Cell) {
	b.ops = append(b.ops, common.BatchOp{
		Op:     common.BatchOpPut,
		RowKey: rowKey,
		Name:   cell.Name,
		Value:  cell.Value,
		TTL:    cell.TTL,
	})
}

func (b *rpcMutationBatch) Delete(rowKey string, name string) {
	b.ops = append(b.ops, common.BatchOp{
		Op:     common.BatchOpDelete,
		RowKey: rowKey,
		Name:   name,
	})
}

func (b *rpcMutationBatch) Size() (n int) {
	return len(b.ops)
}

func (b *rpcMutationBatch) Execute() (err error) {
	if len(b.ops) == 0 {
		return nil
	}

	req := common.NewBatchExecRequest(b.ops, uint8(b.cl))
	_, err = invokeRPCRequest(b.store.tableID, req, b.store.transport, b.store.serializer)
	if err != nil {
		return err
	}

	// Empty the batch after successful execution
	b.ops = nil
	return nil
}
