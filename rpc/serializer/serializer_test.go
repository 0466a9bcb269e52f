package serializer

import (
	"reflect"
	"testing"

	"github.com/ValentinKolb/dLock/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTSuccess},

		// Write request
		{
			MsgType:     common.MsgTWrite,
			RowKey:      "test-row",
			Name:        "_lock_abc",
			Value:       1234567890,
			TTL:         60,
			Consistency: 2,
		},

		// Range read request
		{
			MsgType:     common.MsgTRangeRead,
			RowKey:      "test-row",
			Start:       "_lock_ ",
			End:         "_lock_\uffff",
			Consistency: 1,
		},

		// Range read response
		{
			MsgType: common.MsgTRangeRead,
			Ok:      true,
			Cells: []common.CellData{
				{Name: "_lock_a", Value: 100, TTL: 60},
				{Name: "_lock_b", Value: 0},
			},
		},

		// Batch delete request
		{
			MsgType: common.MsgTBatchDelete,
			RowKey:  "test-row",
			Names:   []string{"_lock_a", "_lock_b", "_lock_c"},
		},

		// Batch exec request
		{
			MsgType: common.MsgTBatchExec,
			Ops: []common.BatchOp{
				{Op: common.BatchOpPut, RowKey: "r1", Name: "c1", Value: 42, TTL: 10},
				{Op: common.BatchOpDelete, RowKey: "r2", Name: "c2"},
			},
		},

		// Error response
		{
			MsgType: common.MsgTError,
			Err:     "test error message",
		},

		// Message with all fields filled
		{
			MsgType:     common.MsgTCustom,
			RowKey:      "test-row",
			Name:        "test-cell",
			Value:       -99,
			TTL:         300,
			Start:       "a",
			End:         "z",
			Consistency: 4,
			Names:       []string{"n1"},
			Cells:       []common.CellData{{Name: "c", Value: 1, TTL: 2}},
			Ops:         []common.BatchOp{{Op: common.BatchOpPut, RowKey: "r", Name: "n", Value: 3, TTL: 4}},
			Ok:          true,
			Err:         "non-fatal",
			Meta:        []byte("test-meta-data"),
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				// Compare
				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, msg, result)
				}
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			// Test each message type (don't test for MsgTUnknown since this should raise an error)
			for msgType := common.MsgTSuccess; msgType <= common.MsgTCustom; msgType++ {
				msg := common.Message{MsgType: msgType}

				// Serialize
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType.String(), err)
					continue
				}

				// Deserialize
				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType.String(), err)
					continue
				}

				// Check type
				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: Expected %s, got %s",
						msgType.String(), result.MsgType.String())
				}
			}
		})
	}
}

// TestBinarySerializerSpecific tests specific edge cases for the binary serializer
func TestBinarySerializerSpecific(t *testing.T) {
	serializer := NewBinarySerializer()

	// Test cases for empty or zero values
	testCases := []struct {
		name string
		msg  common.Message
	}{
		{
			name: "Empty message",
			msg:  common.Message{},
		},
		{
			name: "Message with empty strings and zero values",
			msg: common.Message{
				MsgType: common.MsgTWrite,
				RowKey:  "",
				Value:   0,
				TTL:     0,
				Ok:      false,
				Err:     "",
			},
		},
		{
			name: "Message with empty strings but Ok=true",
			msg: common.Message{
				MsgType: common.MsgTRangeRead,
				RowKey:  "",
				Ok:      true,
			},
		},
		{
			name: "Message with negative value",
			msg: common.Message{
				MsgType: common.MsgTWrite,
				RowKey:  "row",
				Name:    "cell",
				Value:   -1,
			},
		},
		{
			name: "Message with empty meta slice but not nil",
			msg: common.Message{
				MsgType: common.MsgTCustom,
				Meta:    []byte{},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Serialize
			data, err := serializer.Serialize(tc.msg)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			// Deserialize
			var result common.Message
			err = serializer.Deserialize(data, &result)
			if err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			if tc.msg.RowKey != result.RowKey {
				t.Errorf("RowKey mismatch: expected '%s', got '%s'", tc.msg.RowKey, result.RowKey)
			}
			if tc.msg.Name != result.Name {
				t.Errorf("Name mismatch: expected '%s', got '%s'", tc.msg.Name, result.Name)
			}
			if tc.msg.Value != result.Value {
				t.Errorf("Value mismatch: expected %d, got %d", tc.msg.Value, result.Value)
			}
			if tc.msg.TTL != result.TTL {
				t.Errorf("TTL mismatch: expected %d, got %d", tc.msg.TTL, result.TTL)
			}
			if tc.msg.Ok != result.Ok {
				t.Errorf("Ok mismatch: expected %v, got %v", tc.msg.Ok, result.Ok)
			}
			if tc.msg.Err != result.Err {
				t.Errorf("Err mismatch: expected '%s', got '%s'", tc.msg.Err, result.Err)
			}
			if tc.msg.MsgType != result.MsgType {
				t.Errorf("MsgType mismatch: expected %v, got %v", tc.msg.MsgType, result.MsgType)
			}

			// Special handling for byte slices that may be nil or empty
			if (tc.msg.Meta == nil) != (result.Meta == nil) {
				t.Errorf("Meta nil/non-nil mismatch: expected %v, got %v", tc.msg.Meta, result.Meta)
			} else if len(tc.msg.Meta) != len(result.Meta) {
				t.Errorf("Meta length mismatch: expected %d, got %d", len(tc.msg.Meta), len(result.Meta))
			}
		})
	}
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectError: true,
		},
		{
			name:        "Too short header",
			data:        []byte{1, 0}, // Message type and consistency, no flags
			expectError: true,
		},
		{
			name:        "Valid header only",
			data:        []byte{1, 0, 0, 0}, // Message type 1, no flags
			expectError: false,
		},
		{
			name:        "Invalid length for row key",
			data:        []byte{1, 0, 0, 1, 0, 0, 0, 5, 'a', 'b', 'c'}, // Claims length 5 but only 3 bytes provided
			expectError: true,
		},
		{
			name:        "Invalid length for error string",
			data:        []byte{1, 0, 0x04, 0x00, 0, 0, 0, 10}, // Claims error length 10 but no bytes provided
			expectError: true,
		},
		{
			name:        "Huge claimed name count",
			data:        []byte{1, 0, 0x00, 0x40, 0xff, 0xff, 0xff, 0xff}, // Claims 4294967295 names with no bytes left
			expectError: true,
		},
		{
			name:        "Huge claimed cell count",
			data:        []byte{1, 0, 0x00, 0x80, 0xff, 0xff, 0xff, 0xff}, // Claims 4294967295 cells with no bytes left
			expectError: true,
		},
		{
			name:        "Huge claimed op count",
			data:        []byte{5, 0, 0x01, 0x00, 0xff, 0xff, 0xff, 0xff}, // Claims 4294967295 batch ops with no bytes left
			expectError: true,
		},
		{
			name:        "Name count matching remaining bytes",
			data:        []byte{1, 0, 0x00, 0x40, 0, 0, 0, 1, 0, 0, 0, 0}, // One empty name, exactly enough bytes
			expectError: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}
