package engine

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

// ColumnType enumerates the scalar and reference types a column can hold.
type ColumnType int

const (
	TypeInt ColumnType = iota
	TypeBool
	TypeFloat
	TypeDouble
	TypeString
	TypeBinary
	TypeTimestamp
	TypeLink
)

// String returns the lowercase name used in error messages and the API
func (t ColumnType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeBool:
		return "bool"
	case TypeFloat:
		return "float"
	case TypeDouble:
		return "double"
	case TypeString:
		return "string"
	case TypeBinary:
		return "binary"
	case TypeTimestamp:
		return "timestamp"
	case TypeLink:
		return "link"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// Value is a tagged scalar value. Exactly one payload field is meaningful,
// selected by Type. Booleans are stored in Int as 0/1 so they compare and
// index through their integer representation.
type Value struct {
	Type  ColumnType
	Null  bool
	Int   int64
	Float float64
	Str   string
	Bytes []byte
	Time  time.Time
	Link  RowID
}

// IntValue creates an int value
func IntValue(v int64) Value {
	return Value{Type: TypeInt, Int: v}
}

// BoolValue creates a bool value backed by integer storage
func BoolValue(v bool) Value {
	var i int64
	if v {
		i = 1
	}
	return Value{Type: TypeBool, Int: i}
}

// FloatValue creates a single-precision float value
func FloatValue(v float32) Value {
	return Value{Type: TypeFloat, Float: float64(v)}
}

// DoubleValue creates a double-precision float value
func DoubleValue(v float64) Value {
	return Value{Type: TypeDouble, Float: v}
}

// StringValue creates a string value
func StringValue(v string) Value {
	return Value{Type: TypeString, Str: v}
}

// BinaryValue creates a binary value
func BinaryValue(v []byte) Value {
	return Value{Type: TypeBinary, Bytes: v}
}

// TimestampValue creates a timestamp value
func TimestampValue(v time.Time) Value {
	return Value{Type: TypeTimestamp, Time: v}
}

// LinkValue creates a row-reference value
func LinkValue(id RowID) Value {
	return Value{Type: TypeLink, Link: id}
}

// NullValue creates a null value of the given type
func NullValue(t ColumnType) Value {
	return Value{Type: t, Null: true}
}

// IsNull reports whether the value is null
func (v Value) IsNull() bool {
	return v.Null
}

// Bool interprets the integer storage as a boolean
func (v Value) Bool() bool {
	return v.Int != 0
}

// Equal compares two values. Nulls are equal only to nulls of any type;
// bools compare through their integer storage.
func (v Value) Equal(o Value) bool {
	if v.Null || o.Null {
		return v.Null && o.Null
	}
	if v.Type != o.Type {
		// Bool and Int share storage and are comparable.
		if !(v.Type == TypeBool && o.Type == TypeInt) && !(v.Type == TypeInt && o.Type == TypeBool) {
			return false
		}
	}
	switch v.Type {
	case TypeInt, TypeBool:
		return v.Int == o.Int
	case TypeFloat, TypeDouble:
		return v.Float == o.Float
	case TypeString:
		return v.Str == o.Str
	case TypeBinary:
		return bytes.Equal(v.Bytes, o.Bytes)
	case TypeTimestamp:
		return v.Time.Equal(o.Time)
	case TypeLink:
		return v.Link == o.Link
	}
	return false
}

// Less orders two non-null values of the same type. Nulls sort first.
func (v Value) Less(o Value) bool {
	if v.Null != o.Null {
		return v.Null
	}
	if v.Null {
		return false
	}
	switch v.Type {
	case TypeInt, TypeBool:
		return v.Int < o.Int
	case TypeFloat, TypeDouble:
		return v.Float < o.Float
	case TypeString:
		return v.Str < o.Str
	case TypeBinary:
		return bytes.Compare(v.Bytes, o.Bytes) < 0
	case TypeTimestamp:
		return v.Time.Before(o.Time)
	case TypeLink:
		return v.Link < o.Link
	}
	return false
}

// encodeKey serializes the value into a self-delimiting byte key suitable
// for equality index lookups. Layout mirrors the per-type marker scheme the
// column indexes use.
func (v Value) encodeKey() []byte {
	var buf bytes.Buffer
	if v.Null {
		buf.WriteByte(0xff)
		return buf.Bytes()
	}
	switch v.Type {
	case TypeInt, TypeBool:
		buf.WriteByte(0)
		binary.Write(&buf, binary.BigEndian, v.Int)
	case TypeFloat, TypeDouble:
		buf.WriteByte(1)
		binary.Write(&buf, binary.BigEndian, v.Float)
	case TypeString:
		buf.WriteByte(2)
		buf.WriteString(v.Str)
		buf.WriteByte(0)
	case TypeBinary:
		buf.WriteByte(3)
		buf.Write(v.Bytes)
	case TypeTimestamp:
		buf.WriteByte(4)
		binary.Write(&buf, binary.BigEndian, v.Time.UnixNano())
	case TypeLink:
		buf.WriteByte(5)
		binary.Write(&buf, binary.BigEndian, uint64(v.Link))
	}
	return buf.Bytes()
}
