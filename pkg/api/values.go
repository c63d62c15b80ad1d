package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/ssargent/verdandi/pkg/engine"
)

// columnTypeFromString maps the wire name of a column type to the engine's
func columnTypeFromString(s string) (engine.ColumnType, error) {
	switch strings.ToLower(s) {
	case "int":
		return engine.TypeInt, nil
	case "bool":
		return engine.TypeBool, nil
	case "float":
		return engine.TypeFloat, nil
	case "double":
		return engine.TypeDouble, nil
	case "string":
		return engine.TypeString, nil
	case "timestamp":
		return engine.TypeTimestamp, nil
	default:
		return 0, fmt.Errorf("unknown column type: %q", s)
	}
}

// parseValue converts a decoded JSON value into an engine value for a
// column. JSON numbers arrive as float64; timestamps as RFC 3339 strings.
func parseValue(col engine.Column, raw interface{}) (engine.Value, error) {
	if raw == nil {
		return engine.NullValue(col.Type), nil
	}
	switch col.Type {
	case engine.TypeInt:
		n, ok := raw.(float64)
		if !ok {
			return engine.Value{}, fmt.Errorf("column %q expects a number", col.Name)
		}
		return engine.IntValue(int64(n)), nil
	case engine.TypeBool:
		b, ok := raw.(bool)
		if !ok {
			return engine.Value{}, fmt.Errorf("column %q expects a boolean", col.Name)
		}
		return engine.BoolValue(b), nil
	case engine.TypeFloat:
		n, ok := raw.(float64)
		if !ok {
			return engine.Value{}, fmt.Errorf("column %q expects a number", col.Name)
		}
		return engine.FloatValue(float32(n)), nil
	case engine.TypeDouble:
		n, ok := raw.(float64)
		if !ok {
			return engine.Value{}, fmt.Errorf("column %q expects a number", col.Name)
		}
		return engine.DoubleValue(n), nil
	case engine.TypeString:
		s, ok := raw.(string)
		if !ok {
			return engine.Value{}, fmt.Errorf("column %q expects a string", col.Name)
		}
		return engine.StringValue(s), nil
	case engine.TypeTimestamp:
		s, ok := raw.(string)
		if !ok {
			return engine.Value{}, fmt.Errorf("column %q expects an RFC 3339 timestamp", col.Name)
		}
		ts, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return engine.Value{}, fmt.Errorf("column %q: %w", col.Name, err)
		}
		return engine.TimestampValue(ts), nil
	default:
		return engine.Value{}, fmt.Errorf("column %q has a type not settable over the API", col.Name)
	}
}

// renderValue converts an engine value into its JSON representation
func renderValue(v engine.Value) interface{} {
	if v.IsNull() {
		return nil
	}
	switch v.Type {
	case engine.TypeInt:
		return v.Int
	case engine.TypeBool:
		return v.Bool()
	case engine.TypeFloat, engine.TypeDouble:
		return v.Float
	case engine.TypeString:
		return v.Str
	case engine.TypeBinary:
		return v.Bytes
	case engine.TypeTimestamp:
		return v.Time.Format(time.RFC3339Nano)
	case engine.TypeLink:
		return uint64(v.Link)
	default:
		return nil
	}
}

func (c ColumnSpec) toColumn() (engine.Column, error) {
	if c.Name == "" {
		return engine.Column{}, fmt.Errorf("column name is required")
	}
	typ, err := columnTypeFromString(c.Type)
	if err != nil {
		return engine.Column{}, err
	}
	return engine.Column{Name: c.Name, Type: typ, Nullable: c.Nullable}, nil
}

func columnSpecs(s engine.Schema) []ColumnSpec {
	specs := make([]ColumnSpec, 0, len(s))
	for _, col := range s {
		specs = append(specs, ColumnSpec{
			Name:     col.Name,
			Type:     col.Type.String(),
			Nullable: col.Nullable,
		})
	}
	return specs
}
