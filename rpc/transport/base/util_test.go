package base

import (
	"bytes"
	"encoding/binary"
	"net"
	"testing"
)

// frameResult carries the output of a readFrame call across goroutines.
type frameResult struct {
	tableID   uint64
	requestID uint64
	data      []byte
	err       error
}

// roundTripFrame writes a frame into one end of an in-memory pipe and reads
// it back from the other end using the given read buffer.
func roundTripFrame(t *testing.T, tableID, requestID uint64, data, readBuf []byte) frameResult {
	t.Helper()

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	resultCh := make(chan frameResult, 1)
	go func() {
		tid, rid, payload, err := readFrame(server, readBuf)
		// The payload may alias the read buffer, copy before handing it over.
		resultCh <- frameResult{tid, rid, append([]byte(nil), payload...), err}
	}()

	if err := writeFrame(client, tableID, requestID, data); err != nil {
		t.Fatalf("writeFrame failed: %v", err)
	}
	return <-resultCh
}

func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"SmallPayload", []byte("hello")},
		{"EmptyPayload", []byte{}},
		{"BinaryPayload", []byte{0x00, 0xff, 0x10, 0x00, 0x7f}},
		{"LargePayload", bytes.Repeat([]byte("x"), 1<<16)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := roundTripFrame(t, 100, 42, tt.data, make([]byte, 512))
			if result.err != nil {
				t.Fatalf("readFrame failed: %v", result.err)
			}
			if result.tableID != 100 {
				t.Errorf("Expected tableID 100, got %d", result.tableID)
			}
			if result.requestID != 42 {
				t.Errorf("Expected requestID 42, got %d", result.requestID)
			}
			if !bytes.Equal(result.data, tt.data) {
				t.Errorf("Payload mismatch: got %d bytes, want %d bytes", len(result.data), len(tt.data))
			}
		})
	}
}

func TestFrameNilBuffer(t *testing.T) {
	// A nil read buffer must not panic, readFrame allocates as needed.
	result := roundTripFrame(t, 7, 1, []byte("payload"), nil)
	if result.err != nil {
		t.Fatalf("readFrame with nil buffer failed: %v", result.err)
	}
	if string(result.data) != "payload" {
		t.Errorf("Expected payload %q, got %q", "payload", result.data)
	}
}

func TestFrameOversizedPayloadRejected(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	resultCh := make(chan frameResult, 1)
	go func() {
		tid, rid, payload, err := readFrame(server, nil)
		resultCh <- frameResult{tid, rid, payload, err}
	}()

	// A header claiming a payload beyond the frame limit must be rejected
	// before any allocation of that size, no payload bytes follow.
	frame := make([]byte, 20)
	binary.BigEndian.PutUint64(frame[:8], 1)
	binary.BigEndian.PutUint64(frame[8:16], 1)
	binary.BigEndian.PutUint32(frame[16:20], maxFrameSize+1)
	if _, err := client.Write(frame); err != nil {
		t.Fatalf("Writing oversized header failed: %v", err)
	}

	if result := <-resultCh; result.err == nil {
		t.Error("Expected error for oversized payload, got nil")
	}

	// The write side enforces the same limit.
	if err := writeFrame(client, 1, 1, make([]byte, maxFrameSize+1)); err == nil {
		t.Error("Expected error for oversized write, got nil")
	}
}

func TestFrameTruncatedHeader(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	resultCh := make(chan frameResult, 1)
	go func() {
		tid, rid, payload, err := readFrame(server, nil)
		resultCh <- frameResult{tid, rid, payload, err}
	}()

	// Write half a header, then close the connection.
	if _, err := client.Write(make([]byte, 10)); err != nil {
		t.Fatalf("Writing partial header failed: %v", err)
	}
	client.Close()

	if result := <-resultCh; result.err == nil {
		t.Error("Expected error for truncated header, got nil")
	}
}

func TestFrameTruncatedPayload(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	resultCh := make(chan frameResult, 1)
	go func() {
		tid, rid, payload, err := readFrame(server, nil)
		resultCh <- frameResult{tid, rid, payload, err}
	}()

	// A hand-built header announcing 100 bytes of payload, followed by only
	// 10 bytes and a close.
	frame := make([]byte, 30)
	binary.BigEndian.PutUint64(frame[:8], 1)
	binary.BigEndian.PutUint64(frame[8:16], 1)
	binary.BigEndian.PutUint32(frame[16:20], 100)
	if _, err := client.Write(frame); err != nil {
		t.Fatalf("Writing truncated frame failed: %v", err)
	}
	client.Close()

	if result := <-resultCh; result.err == nil {
		t.Error("Expected error for truncated payload, got nil")
	}
}
