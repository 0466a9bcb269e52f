package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/dLock/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasRowKey uint16 = 1 << 0
	hasName   uint16 = 1 << 1
	hasValue  uint16 = 1 << 2
	hasTTL    uint16 = 1 << 3
	hasStart  uint16 = 1 << 4
	hasEnd    uint16 = 1 << 5
	hasNames  uint16 = 1 << 6
	hasCells  uint16 = 1 << 7
	hasOps    uint16 = 1 << 8
	hasOk     uint16 = 1 << 9
	hasErr    uint16 = 1 << 10
	hasMeta   uint16 = 1 << 11
)

// Fixed layout: MsgType (1 byte), Consistency (1 byte), flags (2 bytes),
// then the flagged fields in flag order. Strings and byte slices are length
// prefixed with uint32, lists with a uint32 element count.
const headerSize = 4

// Smallest possible encodings of one list element, used to validate claimed
// element counts against the remaining buffer before allocating.
const (
	minNameSize = 4                 // length prefix of an empty string
	minCellSize = 4 + 8 + 8         // empty name + value + ttl
	minOpSize   = 1 + 4 + 4 + 8 + 8 // op byte + two string prefixes + value + ttl
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	w := &binWriter{buf: make([]byte, headerSize, b.sizeBytes(msg))}
	w.buf[0] = byte(msg.MsgType)
	w.buf[1] = msg.Consistency

	var flags uint16

	if msg.RowKey != "" {
		flags |= hasRowKey
		w.writeString(msg.RowKey)
	}
	if msg.Name != "" {
		flags |= hasName
		w.writeString(msg.Name)
	}
	if msg.Value != 0 {
		flags |= hasValue
		w.writeUint64(uint64(msg.Value))
	}
	if msg.TTL != 0 {
		flags |= hasTTL
		w.writeUint64(msg.TTL)
	}
	if msg.Start != "" {
		flags |= hasStart
		w.writeString(msg.Start)
	}
	if msg.End != "" {
		flags |= hasEnd
		w.writeString(msg.End)
	}
	if len(msg.Names) > 0 {
		flags |= hasNames
		w.writeUint32(uint32(len(msg.Names)))
		for _, name := range msg.Names {
			w.writeString(name)
		}
	}
	if len(msg.Cells) > 0 {
		flags |= hasCells
		w.writeUint32(uint32(len(msg.Cells)))
		for _, c := range msg.Cells {
			w.writeString(c.Name)
			w.writeUint64(uint64(c.Value))
			w.writeUint64(c.TTL)
		}
	}
	if len(msg.Ops) > 0 {
		flags |= hasOps
		w.writeUint32(uint32(len(msg.Ops)))
		for _, op := range msg.Ops {
			w.writeByte(op.Op)
			w.writeString(op.RowKey)
			w.writeString(op.Name)
			w.writeUint64(uint64(op.Value))
			w.writeUint64(op.TTL)
		}
	}
	if msg.Ok {
		flags |= hasOk
		w.writeByte(1)
	}
	if msg.Err != "" {
		flags |= hasErr
		w.writeString(msg.Err)
	}
	if msg.Meta != nil {
		flags |= hasMeta
		w.writeBytes(msg.Meta)
	}

	binary.BigEndian.PutUint16(w.buf[2:4], flags)
	return w.buf, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	if len(data) < headerSize {
		return fmt.Errorf("binary message too short: %d bytes", len(data))
	}

	*msg = common.Message{
		MsgType:     common.MessageType(data[0]),
		Consistency: data[1],
	}
	flags := binary.BigEndian.Uint16(data[2:4])
	r := &binReader{buf: data, pos: headerSize}

	if flags&hasRowKey != 0 {
		msg.RowKey = r.readString()
	}
	if flags&hasName != 0 {
		msg.Name = r.readString()
	}
	if flags&hasValue != 0 {
		msg.Value = int64(r.readUint64())
	}
	if flags&hasTTL != 0 {
		msg.TTL = r.readUint64()
	}
	if flags&hasStart != 0 {
		msg.Start = r.readString()
	}
	if flags&hasEnd != 0 {
		msg.End = r.readString()
	}
	if flags&hasNames != 0 {
		n := r.readCount(minNameSize)
		msg.Names = make([]string, 0, n)
		for i := uint32(0); i < n && r.err == nil; i++ {
			msg.Names = append(msg.Names, r.readString())
		}
	}
	if flags&hasCells != 0 {
		n := r.readCount(minCellSize)
		msg.Cells = make([]common.CellData, 0, n)
		for i := uint32(0); i < n && r.err == nil; i++ {
			msg.Cells = append(msg.Cells, common.CellData{
				Name:  r.readString(),
				Value: int64(r.readUint64()),
				TTL:   r.readUint64(),
			})
		}
	}
	if flags&hasOps != 0 {
		n := r.readCount(minOpSize)
		msg.Ops = make([]common.BatchOp, 0, n)
		for i := uint32(0); i < n && r.err == nil; i++ {
			msg.Ops = append(msg.Ops, common.BatchOp{
				Op:     r.readByte(),
				RowKey: r.readString(),
				Name:   r.readString(),
				Value:  int64(r.readUint64()),
				TTL:    r.readUint64(),
			})
		}
	}
	if flags&hasOk != 0 {
		msg.Ok = r.readByte() == 1
	}
	if flags&hasErr != 0 {
		msg.Err = r.readString()
	}
	if flags&hasMeta != 0 {
		msg.Meta = r.readBytes()
	}

	return r.err
}

// --------------------------------------------------------------------------
// Size Calculation
// --------------------------------------------------------------------------

// sizeBytes computes the exact serialized size of a message, used to
// allocate the output buffer once.
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := headerSize

	if msg.RowKey != "" {
		size += 4 + len(msg.RowKey)
	}
	if msg.Name != "" {
		size += 4 + len(msg.Name)
	}
	if msg.Value != 0 {
		size += 8
	}
	if msg.TTL != 0 {
		size += 8
	}
	if msg.Start != "" {
		size += 4 + len(msg.Start)
	}
	if msg.End != "" {
		size += 4 + len(msg.End)
	}
	if len(msg.Names) > 0 {
		size += 4
		for _, name := range msg.Names {
			size += 4 + len(name)
		}
	}
	if len(msg.Cells) > 0 {
		size += 4
		for _, c := range msg.Cells {
			size += 4 + len(c.Name) + 16
		}
	}
	if len(msg.Ops) > 0 {
		size += 4
		for _, op := range msg.Ops {
			size += 1 + 4 + len(op.RowKey) + 4 + len(op.Name) + 16
		}
	}
	if msg.Ok {
		size += 1
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}
	if msg.Meta != nil {
		size += 4 + len(msg.Meta)
	}

	return size
}

// --------------------------------------------------------------------------
// Encoding Helpers
// --------------------------------------------------------------------------

type binWriter struct {
	buf []byte
}

func (w *binWriter) writeByte(v byte) {
	w.buf = append(w.buf, v)
}

func (w *binWriter) writeUint32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

func (w *binWriter) writeUint64(v uint64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
}

func (w *binWriter) writeString(s string) {
	w.writeUint32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *binWriter) writeBytes(b []byte) {
	w.writeUint32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

type binReader struct {
	buf []byte
	pos int
	err error
}

// take advances the reader by n bytes, recording the first out-of-bounds
// access instead of panicking.
func (r *binReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.pos+n > len(r.buf) {
		r.err = fmt.Errorf("truncated binary message at offset %d", r.pos)
		return nil
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b
}

// readCount reads a list element count and validates it against the bytes
// remaining in the buffer. A count that could not possibly be satisfied even
// by minimal elements is rejected before any allocation sized by it.
func (r *binReader) readCount(minElemSize int) uint32 {
	n := r.readUint32()
	if r.err != nil {
		return 0
	}
	if remaining := len(r.buf) - r.pos; int(n) > remaining/minElemSize {
		r.err = fmt.Errorf("binary message claims %d elements with %d bytes remaining", n, remaining)
		return 0
	}
	return n
}

func (r *binReader) readByte() byte {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *binReader) readUint32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *binReader) readUint64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (r *binReader) readString() string {
	n := r.readUint32()
	b := r.take(int(n))
	if b == nil {
		return ""
	}
	return string(b)
}

func (r *binReader) readBytes() []byte {
	n := r.readUint32()
	b := r.take(int(n))
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}
