package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Wire Cell and Batch Operation
// --------------------------------------------------------------------------

// CellData is the wire representation of a stored cell.
type CellData struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
	TTL   uint64 `json:"ttl,omitempty"`
}

// Batch operation kinds
const (
	BatchOpPut    uint8 = iota // write a cell
	BatchOpDelete              // delete a cell by name
)

// BatchOp is a single mutation inside a batch-execute request.
type BatchOp struct {
	Op     uint8  `json:"op"`
	RowKey string `json:"row_key"`
	Name   string `json:"name"`
	Value  int64  `json:"value,omitempty"`
	TTL    uint64 `json:"ttl,omitempty"`
}

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	RowKey      string `json:"row_key,omitempty"`     // Used for: Write, RangeRead, BatchDelete
	Name        string `json:"name,omitempty"`        // Used for: Write (cell name)
	Value       int64  `json:"value,omitempty"`       // Used for: Write (cell value)
	TTL         uint64 `json:"ttl,omitempty"`         // Used for: Write (cell ttl)
	Start       string `json:"start,omitempty"`       // Used for: RangeRead (inclusive lower bound)
	End         string `json:"end,omitempty"`         // Used for: RangeRead (inclusive upper bound)
	Consistency uint8  `json:"consistency,omitempty"` // Used for: all storage requests

	// List fields
	Names []string   `json:"names,omitempty"` // Used for: BatchDelete (request)
	Cells []CellData `json:"cells,omitempty"` // Used for: RangeRead (response)
	Ops   []BatchOp  `json:"ops,omitempty"`   // Used for: BatchExec (request)

	// Response only fields
	Ok  bool   `json:"ok,omitempty"`  // Used for: success indication
	Err string `json:"err,omitempty"` // Empty if no error, otherwise contains the error message

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Unused, can be used for additional adapters
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewWriteRequest creates a new Write request
func NewWriteRequest(rowKey string, cell CellData, consistency uint8) *Message {
	return &Message{
		MsgType:     MsgTWrite,
		RowKey:      rowKey,
		Name:        cell.Name,
		Value:       cell.Value,
		TTL:         cell.TTL,
		Consistency: consistency,
	}
}

// NewWriteResponse creates a new Write response
func NewWriteResponse(err error) *Message {
	msg := &Message{
		MsgType: MsgTWrite,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewRangeReadRequest creates a new RangeRead request
func NewRangeReadRequest(rowKey, start, end string, consistency uint8) *Message {
	return &Message{
		MsgType:     MsgTRangeRead,
		RowKey:      rowKey,
		Start:       start,
		End:         end,
		Consistency: consistency,
	}
}

// NewRangeReadResponse creates a new RangeRead response
func NewRangeReadResponse(cells []CellData, err error) *Message {
	msg := &Message{
		MsgType: MsgTRangeRead,
		Cells:   cells,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewBatchDeleteRequest creates a new BatchDelete request
func NewBatchDeleteRequest(rowKey string, names []string, consistency uint8) *Message {
	return &Message{
		MsgType:     MsgTBatchDelete,
		RowKey:      rowKey,
		Names:       names,
		Consistency: consistency,
	}
}

// NewBatchDeleteResponse creates a new BatchDelete response
func NewBatchDeleteResponse(err error) *Message {
	msg := &Message{
		MsgType: MsgTBatchDelete,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewBatchExecRequest creates a new BatchExec request
func NewBatchExecRequest(ops []BatchOp, consistency uint8) *Message {
	return &Message{
		MsgType:     MsgTBatchExec,
		Ops:         ops,
		Consistency: consistency,
	}
}

// NewBatchExecResponse creates a new BatchExec response
func NewBatchExecResponse(err error) *Message {
	msg := &Message{
		MsgType: MsgTBatchExec,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewCustomRequest creates a new Custom request
func NewCustomRequest(meta []byte) *Message {
	return &Message{
		MsgType: MsgTCustom,
		Meta:    meta,
	}
}

// NewCustomResponse creates a new Custom response
func NewCustomResponse(meta []byte, err error) *Message {
	msg := &Message{
		MsgType: MsgTCustom,
		Meta:    meta,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTWrite:
		return "write"
	case MsgTRangeRead:
		return "rangeRead"
	case MsgTBatchDelete:
		return "batchDelete"
	case MsgTBatchExec:
		return "batchExec"
	case MsgTCustom:
		return "custom"
	case MsgTError:
		return "error"
	case MsgTSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	// Convert string back to MessageType
	switch s {
	case "write":
		*t = MsgTWrite
	case "rangeRead":
		*t = MsgTRangeRead
	case "batchDelete":
		*t = MsgTBatchDelete
	case "batchExec":
		*t = MsgTBatchExec
	case "custom":
		*t = MsgTCustom
	case "error":
		*t = MsgTError
	case "success":
		*t = MsgTSuccess
	default:
		return fmt.Errorf("unknown message type: %s", s)
	}

	return nil
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// IWideStore operations

	MsgTWrite       // Write a single cell
	MsgTRangeRead   // Ordered range read of cells within a row
	MsgTBatchDelete // Delete named cells of a row
	MsgTBatchExec   // Execute an accumulated mutation batch

	// Custom operations

	MsgTCustom // Custom operation type
)
