package server

import (
	"fmt"
	"strings"
	"testing"

	"github.com/ValentinKolb/dLock/rpc/common"
	"github.com/ValentinKolb/dLock/rpc/serializer"
	"github.com/ValentinKolb/dLock/rpc/transport"
	"github.com/puzpuzpuz/xsync/v3"
)

// captureTransport records the handler registered by the server so tests can
// invoke it directly without a network.
type captureTransport struct {
	handler transport.ServerHandleFunc
}

func (t *captureTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.handler = handler
}

func (t *captureTransport) Listen(common.ServerConfig) error { return nil }

// failingSerializer wraps a real serializer and fails the first `failures`
// Serialize calls.
type failingSerializer struct {
	serializer.IRPCSerializer
	failures int
}

func (s *failingSerializer) Serialize(msg common.Message) ([]byte, error) {
	if s.failures > 0 {
		s.failures--
		return nil, fmt.Errorf("serialize failure")
	}
	return s.IRPCSerializer.Serialize(msg)
}

// newHandlerUnderTest builds an rpcServer with one memstore table and returns
// the transport handler it registers.
func newHandlerUnderTest(t *testing.T, ser serializer.IRPCSerializer) transport.ServerHandleFunc {
	t.Helper()

	tr := &captureTransport{}
	s := &rpcServer{
		config:     common.ServerConfig{Tables: []uint64{1}},
		transport:  tr,
		serializer: ser,
		tables:     xsync.NewMapOf[uint64, serverTable](),
	}
	s.tables.Store(1, serverTable{
		Store:   newTestStore(t),
		Adapter: NewWideStoreServerAdapter(),
	})
	s.registerTransportHandler()

	if tr.handler == nil {
		t.Fatal("No handler registered")
	}
	return tr.handler
}

func TestHandlerUnknownTable(t *testing.T) {
	js := serializer.NewJSONSerializer()
	handler := newHandlerUnderTest(t, js)

	req, err := js.Serialize(*common.NewRangeReadRequest("row", "a", "z", 1))
	if err != nil {
		t.Fatalf("Serializing request failed: %v", err)
	}

	var resp common.Message
	if err := js.Deserialize(handler(99, req), &resp); err != nil {
		t.Fatalf("Deserializing response failed: %v", err)
	}
	if resp.MsgType != common.MsgTError || !strings.Contains(resp.Err, "table not found") {
		t.Errorf("Expected table-not-found error, got %+v", resp)
	}
}

func TestHandlerSerializeFallback(t *testing.T) {
	js := serializer.NewJSONSerializer()
	flaky := &failingSerializer{IRPCSerializer: js, failures: 1}
	handler := newHandlerUnderTest(t, flaky)

	req, err := js.Serialize(*common.NewRangeReadRequest("row", "a", "z", 1))
	if err != nil {
		t.Fatalf("Serializing request failed: %v", err)
	}

	// The response serialization fails once; the client must still receive a
	// decodable error frame, not an empty one.
	raw := handler(1, req)
	if len(raw) == 0 {
		t.Fatal("Expected a fallback error frame, got empty response")
	}

	var resp common.Message
	if err := js.Deserialize(raw, &resp); err != nil {
		t.Fatalf("Deserializing fallback response failed: %v", err)
	}
	if resp.MsgType != common.MsgTError || !strings.Contains(resp.Err, "failed to serialize response") {
		t.Errorf("Expected serialize-failure error message, got %+v", resp)
	}
}

func TestHandlerSerializeTotalFailure(t *testing.T) {
	js := serializer.NewJSONSerializer()
	broken := &failingSerializer{IRPCSerializer: js, failures: 2}
	handler := newHandlerUnderTest(t, broken)

	req, err := js.Serialize(*common.NewRangeReadRequest("row", "a", "z", 1))
	if err != nil {
		t.Fatalf("Serializing request failed: %v", err)
	}

	// When even the fallback can not be serialized there is nothing useful
	// to send.
	if raw := handler(1, req); raw != nil {
		t.Errorf("Expected nil response when serializer is fully broken, got %d bytes", len(raw))
	}
}
