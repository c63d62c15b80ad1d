// Package codec implements the binary framing used to persist table rows
// and schemas. Every frame carries a CRC32 checksum over its header and
// payload so corruption surfaces as an error on load, not as garbage
// values.
//
// Row frame layout:
//
//	[CRC32(4)][RowID(8)][ColumnCount(2)][columns...]
//
// Each column is [type(1)][null(1)][payload], where the payload encoding
// depends on the column type. All integers are little-endian.
package codec

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"
	"time"

	"github.com/ssargent/verdandi/pkg/engine"
)

const rowHeaderSize = 4 + 8 + 2

// RowCodec serializes table rows for the persistence layer
type RowCodec struct{}

// NewRowCodec creates a row codec instance
func NewRowCodec() *RowCodec {
	return &RowCodec{}
}

// EncodeRow serializes a row ID and its column values into a checksummed
// frame
func (c *RowCodec) EncodeRow(id engine.RowID, vals []engine.Value) ([]byte, error) {
	if len(vals) > int(^uint16(0)) {
		return nil, fmt.Errorf("too many columns: %d", len(vals))
	}
	buf := make([]byte, rowHeaderSize, rowHeaderSize+16*len(vals))
	binary.LittleEndian.PutUint64(buf[4:], uint64(id))
	binary.LittleEndian.PutUint16(buf[12:], uint16(len(vals)))

	var err error
	for i, v := range vals {
		if buf, err = appendValue(buf, v); err != nil {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}
	}
	binary.LittleEndian.PutUint32(buf[0:], crc32.ChecksumIEEE(buf[4:]))
	return buf, nil
}

// DecodeRow deserializes a frame produced by EncodeRow, validating its
// checksum
func (c *RowCodec) DecodeRow(data []byte) (engine.RowID, []engine.Value, error) {
	if len(data) < rowHeaderSize {
		return 0, nil, fmt.Errorf("frame too short for row header: %d bytes", len(data))
	}
	if sum := crc32.ChecksumIEEE(data[4:]); sum != binary.LittleEndian.Uint32(data[0:4]) {
		return 0, nil, fmt.Errorf("row frame checksum mismatch: %d != %d",
			binary.LittleEndian.Uint32(data[0:4]), sum)
	}
	id := engine.RowID(binary.LittleEndian.Uint64(data[4:12]))
	n := int(binary.LittleEndian.Uint16(data[12:14]))

	vals := make([]engine.Value, 0, n)
	rest := data[rowHeaderSize:]
	for i := 0; i < n; i++ {
		v, tail, err := readValue(rest)
		if err != nil {
			return 0, nil, fmt.Errorf("column %d: %w", i, err)
		}
		vals = append(vals, v)
		rest = tail
	}
	return id, vals, nil
}

func appendValue(buf []byte, v engine.Value) ([]byte, error) {
	buf = append(buf, byte(v.Type))
	if v.Null {
		return append(buf, 1), nil
	}
	buf = append(buf, 0)
	switch v.Type {
	case engine.TypeInt, engine.TypeBool:
		buf = binary.LittleEndian.AppendUint64(buf, uint64(v.Int))
	case engine.TypeFloat, engine.TypeDouble:
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v.Float))
	case engine.TypeString:
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(v.Str)))
		buf = append(buf, v.Str...)
	case engine.TypeBinary:
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(v.Bytes)))
		buf = append(buf, v.Bytes...)
	case engine.TypeTimestamp:
		buf = binary.LittleEndian.AppendUint64(buf, uint64(v.Time.UnixNano()))
	case engine.TypeLink:
		buf = binary.LittleEndian.AppendUint64(buf, uint64(v.Link))
	default:
		return nil, fmt.Errorf("unencodable column type: %s", v.Type)
	}
	return buf, nil
}

func readValue(data []byte) (engine.Value, []byte, error) {
	if len(data) < 2 {
		return engine.Value{}, nil, fmt.Errorf("frame truncated in column header")
	}
	typ := engine.ColumnType(data[0])
	if data[1] == 1 {
		return engine.NullValue(typ), data[2:], nil
	}
	rest := data[2:]

	need := func(n int) error {
		if len(rest) < n {
			return fmt.Errorf("frame truncated in %s payload", typ)
		}
		return nil
	}
	switch typ {
	case engine.TypeInt, engine.TypeBool:
		if err := need(8); err != nil {
			return engine.Value{}, nil, err
		}
		v := engine.Value{Type: typ, Int: int64(binary.LittleEndian.Uint64(rest))}
		return v, rest[8:], nil
	case engine.TypeFloat, engine.TypeDouble:
		if err := need(8); err != nil {
			return engine.Value{}, nil, err
		}
		v := engine.Value{Type: typ, Float: math.Float64frombits(binary.LittleEndian.Uint64(rest))}
		return v, rest[8:], nil
	case engine.TypeString:
		if err := need(4); err != nil {
			return engine.Value{}, nil, err
		}
		n := int(binary.LittleEndian.Uint32(rest))
		if err := need(4 + n); err != nil {
			return engine.Value{}, nil, err
		}
		return engine.StringValue(string(rest[4 : 4+n])), rest[4+n:], nil
	case engine.TypeBinary:
		if err := need(4); err != nil {
			return engine.Value{}, nil, err
		}
		n := int(binary.LittleEndian.Uint32(rest))
		if err := need(4 + n); err != nil {
			return engine.Value{}, nil, err
		}
		return engine.BinaryValue(append([]byte(nil), rest[4:4+n]...)), rest[4+n:], nil
	case engine.TypeTimestamp:
		if err := need(8); err != nil {
			return engine.Value{}, nil, err
		}
		ns := int64(binary.LittleEndian.Uint64(rest))
		return engine.TimestampValue(time.Unix(0, ns).UTC()), rest[8:], nil
	case engine.TypeLink:
		if err := need(8); err != nil {
			return engine.Value{}, nil, err
		}
		return engine.LinkValue(engine.RowID(binary.LittleEndian.Uint64(rest))), rest[8:], nil
	}
	return engine.Value{}, nil, fmt.Errorf("unknown column type marker: %d", typ)
}
