package codec

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/ssargent/verdandi/pkg/engine"
)

// Schema frame layout:
//
//	[CRC32(4)][ColumnCount(2)][columns...]
//
// Each column is [type(1)][nullable(1)][nameLen(2)][name].

// EncodeSchema serializes a table schema into a checksummed frame
func (c *RowCodec) EncodeSchema(s engine.Schema) ([]byte, error) {
	if len(s) > int(^uint16(0)) {
		return nil, fmt.Errorf("too many columns: %d", len(s))
	}
	buf := make([]byte, 6)
	binary.LittleEndian.PutUint16(buf[4:], uint16(len(s)))
	for _, col := range s {
		if len(col.Name) > int(^uint16(0)) {
			return nil, fmt.Errorf("column name too long: %q", col.Name)
		}
		buf = append(buf, byte(col.Type))
		if col.Nullable {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(col.Name)))
		buf = append(buf, col.Name...)
	}
	binary.LittleEndian.PutUint32(buf[0:], crc32.ChecksumIEEE(buf[4:]))
	return buf, nil
}

// DecodeSchema deserializes a frame produced by EncodeSchema, validating
// its checksum
func (c *RowCodec) DecodeSchema(data []byte) (engine.Schema, error) {
	if len(data) < 6 {
		return nil, fmt.Errorf("frame too short for schema header: %d bytes", len(data))
	}
	if sum := crc32.ChecksumIEEE(data[4:]); sum != binary.LittleEndian.Uint32(data[0:4]) {
		return nil, fmt.Errorf("schema frame checksum mismatch")
	}
	n := int(binary.LittleEndian.Uint16(data[4:6]))
	rest := data[6:]

	schema := make(engine.Schema, 0, n)
	for i := 0; i < n; i++ {
		if len(rest) < 4 {
			return nil, fmt.Errorf("frame truncated in column %d header", i)
		}
		col := engine.Column{
			Type:     engine.ColumnType(rest[0]),
			Nullable: rest[1] == 1,
		}
		nameLen := int(binary.LittleEndian.Uint16(rest[2:4]))
		if len(rest) < 4+nameLen {
			return nil, fmt.Errorf("frame truncated in column %d name", i)
		}
		col.Name = string(rest[4 : 4+nameLen])
		schema = append(schema, col)
		rest = rest[4+nameLen:]
	}
	return schema, nil
}
