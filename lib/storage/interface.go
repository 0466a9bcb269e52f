package storage

import "fmt"

// --------------------------------------------------------------------------
// Consistency Levels
// --------------------------------------------------------------------------

// ConsistencyLevel is the replica-agreement strength requested for a single
// storage operation. For the row lock protocol to be sound, the write and the
// subsequent range read must both be performed at a quorum-class level so the
// read observes the write (and the writes of true concurrent peers).
//
// Single-node store implementations may accept and ignore the level, but must
// document that they do so.
type ConsistencyLevel uint8

const (
	ConsistencyOne         ConsistencyLevel = iota // one replica acks
	ConsistencyQuorum                              // majority of replicas (default)
	ConsistencyLocalQuorum                         // majority within the local datacenter
	ConsistencyEachQuorum                          // majority within every datacenter
	ConsistencyAll                                 // all replicas
)

func (cl ConsistencyLevel) String() string {
	switch cl {
	case ConsistencyOne:
		return "one"
	case ConsistencyQuorum:
		return "quorum"
	case ConsistencyLocalQuorum:
		return "local-quorum"
	case ConsistencyEachQuorum:
		return "each-quorum"
	case ConsistencyAll:
		return "all"
	default:
		return "unknown"
	}
}

// ParseConsistencyLevel converts a string representation (as used by CLI
// flags and config files) to a ConsistencyLevel.
func ParseConsistencyLevel(s string) (ConsistencyLevel, error) {
	switch s {
	case "one":
		return ConsistencyOne, nil
	case "quorum":
		return ConsistencyQuorum, nil
	case "local-quorum":
		return ConsistencyLocalQuorum, nil
	case "each-quorum":
		return ConsistencyEachQuorum, nil
	case "all":
		return ConsistencyAll, nil
	default:
		return ConsistencyQuorum, fmt.Errorf("invalid consistency level: %s. must be one of one, quorum, local-quorum, each-quorum, all", s)
	}
}

// --------------------------------------------------------------------------
// Cell Type
// --------------------------------------------------------------------------

// Cell is a named, valued slot stored under a row.
//
// Value is either 0 (a permanent marker not subject to time-based
// reclamation) or an absolute expiration timestamp in microseconds.
// TTL is an optional storage-side expiration in seconds (0 = none); the
// engine removes the cell on its own once the TTL elapses, independent of
// any bookkeeping done by the caller.
type Cell struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
	TTL   uint64 `json:"ttl,omitempty"`
}

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IWideStore is the generic interface for interacting with one named
// collection ("table") of a wide-column store. Rows are identified by an
// opaque key and hold individually named cells which sort lexicographically
// by name, enabling contiguous range scans bounded by a name prefix.
//
// The store offers only atomic single-cell writes, ordered range reads and
// batched deletes. It has no compare-and-swap and no cross-cell transactions;
// any coordination built on top of it (such as the rowlock package) must
// derive its guarantees from exactly these primitives.
type IWideStore interface {
	// Write inserts or updates a single cell under the given row at the
	// requested consistency level.
	Write(rowKey string, cell Cell, cl ConsistencyLevel) (err error)

	// RangeRead returns all cells of the row whose name n satisfies
	// start <= n <= end, ordered lexicographically by name.
	RangeRead(rowKey, start, end string, cl ConsistencyLevel) (cells []Cell, err error)

	// BatchDelete removes the named cells from the row in one round trip.
	// Deleting a cell that does not exist is not an error.
	BatchDelete(rowKey string, names []string, cl ConsistencyLevel) (err error)

	// NewBatch begins a multi-cell mutation accumulator. Puts and deletes may
	// span rows; Execute applies them atomically per row only to the extent
	// the engine guarantees.
	NewBatch(cl ConsistencyLevel) (batch IMutationBatch)
}

// IMutationBatch accumulates put and delete mutations for later execution.
// It allows an external caller to bundle a lock release (or lock write) with
// its own data mutations in a single storage round trip.
type IMutationBatch interface {
	// Put adds a cell write to the batch.
	Put(rowKey string, cell Cell)
	// Delete adds a cell deletion to the batch.
	Delete(rowKey string, name string)
	// Size returns the number of mutations currently queued.
	Size() (n int)
	// Execute applies all queued mutations and empties the batch.
	Execute() (err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	errorCode := ""
	switch e.Code {
	case RetCInternalError:
		errorCode = "InternalError"
	case RetCUnsupportedOperation:
		errorCode = "UnsupportedOperation"
	case RetCInvalidOperation:
		errorCode = "InvalidOperation"
	default:
		errorCode = "Unknown"
	}

	return fmt.Sprintf("WideStoreError (code %s): %s", errorCode, e.Msg)
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by the underlying engine.
	RetCInvalidOperation                    // 3: Invalid operation.
)
