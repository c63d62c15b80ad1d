package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func personSchema() Schema {
	return Schema{
		{Name: "age", Type: TypeInt},
		{Name: "name", Type: TypeString},
		{Name: "score", Type: TypeDouble, Nullable: true},
	}
}

func TestTable_AddRow(t *testing.T) {
	db := NewDB()
	tbl, err := db.CreateTable("people", personSchema())
	require.NoError(t, err)

	ref, err := tbl.AddRow(IntValue(30), StringValue("ada"), DoubleValue(9.5))
	require.NoError(t, err)
	assert.True(t, ref.IsAttached())
	assert.Equal(t, 1, tbl.Size())
	assert.Equal(t, int64(30), ref.Value(0).Int)

	_, err = tbl.AddRow(IntValue(1))
	assert.Error(t, err, "wrong arity must be rejected")

	_, err = tbl.AddRow(StringValue("oops"), StringValue("x"), DoubleValue(0))
	assert.Error(t, err, "type mismatch must be rejected")
}

func TestTable_NullableColumns(t *testing.T) {
	db := NewDB()
	tbl, err := db.CreateTable("people", personSchema())
	require.NoError(t, err)

	_, err = tbl.AddRow(IntValue(1), StringValue("a"), NullValue(TypeDouble))
	assert.NoError(t, err)

	_, err = tbl.AddRow(NullValue(TypeInt), StringValue("b"), DoubleValue(1))
	assert.Error(t, err, "null into non-nullable column must be rejected")
}

func TestTable_DeleteRowShiftsPositions(t *testing.T) {
	db := NewDB()
	tbl, err := db.CreateTable("people", personSchema())
	require.NoError(t, err)

	a, _ := tbl.AddRow(IntValue(1), StringValue("a"), DoubleValue(0))
	b, _ := tbl.AddRow(IntValue(2), StringValue("b"), DoubleValue(0))
	c, _ := tbl.AddRow(IntValue(3), StringValue("c"), DoubleValue(0))

	tbl.DeleteRow(b.ID())

	assert.Equal(t, 2, tbl.Size())
	assert.Equal(t, 0, tbl.PositionOf(a.ID()))
	assert.Equal(t, 1, tbl.PositionOf(c.ID()))
	assert.Equal(t, -1, tbl.PositionOf(b.ID()))
	assert.False(t, b.IsAttached())
	assert.True(t, b.Value(0).IsNull(), "detached rows read as null")
}

func TestTable_RowIDsNeverReused(t *testing.T) {
	db := NewDB()
	tbl, err := db.CreateTable("people", personSchema())
	require.NoError(t, err)

	a, _ := tbl.AddRow(IntValue(1), StringValue("a"), DoubleValue(0))
	tbl.DeleteRow(a.ID())
	b, _ := tbl.AddRow(IntValue(2), StringValue("b"), DoubleValue(0))
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestTable_FindFirst(t *testing.T) {
	db := NewDB()
	tbl, err := db.CreateTable("t", Schema{
		{Name: "v", Type: TypeInt, Nullable: true},
		{Name: "flag", Type: TypeBool},
	})
	require.NoError(t, err)

	tbl.AddRow(IntValue(1), BoolValue(false))
	tbl.AddRow(NullValue(TypeInt), BoolValue(true))
	tbl.AddRow(IntValue(3), BoolValue(true))

	tests := []struct {
		name string
		col  int
		val  Value
		want int
	}{
		{"match int", 0, IntValue(3), 2},
		{"no match", 0, IntValue(99), -1},
		{"explicit null search", 0, NullValue(TypeInt), 1},
		{"bool via integer storage", 1, IntValue(1), 1},
		{"bool direct", 1, BoolValue(true), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tbl.FindFirst(tt.col, tt.val))
		})
	}
}

func TestTable_ClearRemovesEverything(t *testing.T) {
	db := NewDB()
	tbl, err := db.CreateTable("people", personSchema())
	require.NoError(t, err)

	ref, _ := tbl.AddRow(IntValue(1), StringValue("a"), DoubleValue(0))
	tbl.AddRow(IntValue(2), StringValue("b"), DoubleValue(0))
	tbl.Clear()

	assert.Equal(t, 0, tbl.Size())
	assert.False(t, ref.IsAttached())
}

func TestValue_Equal(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"ints equal", IntValue(5), IntValue(5), true},
		{"ints differ", IntValue(5), IntValue(6), false},
		{"null equals null across types", NullValue(TypeInt), NullValue(TypeString), true},
		{"null never equals value", NullValue(TypeInt), IntValue(0), false},
		{"bool matches int storage", BoolValue(true), IntValue(1), true},
		{"string vs int", StringValue("1"), IntValue(1), false},
		{"timestamps equal", TimestampValue(now), TimestampValue(now), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Equal(tt.b))
		})
	}
}

func TestValue_LessNullsFirst(t *testing.T) {
	assert.True(t, NullValue(TypeInt).Less(IntValue(-100)))
	assert.False(t, IntValue(-100).Less(NullValue(TypeInt)))
	assert.True(t, IntValue(1).Less(IntValue(2)))
	assert.True(t, StringValue("a").Less(StringValue("b")))
}
