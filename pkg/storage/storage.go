// Package storage persists tables to a pebble key-value store. Schemas and
// rows are framed by the codec package; row keys order by big-endian row ID
// so a load replays rows in insertion order.
package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/ssargent/verdandi/pkg/codec"
	"github.com/ssargent/verdandi/pkg/engine"
)

// Store is a pebble-backed persistence layer for tables
type Store struct {
	db    *pebble.DB
	codec *codec.RowCodec
}

// Open opens (or creates) a store at the given path
func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", path, err)
	}
	return &Store{db: db, codec: codec.NewRowCodec()}, nil
}

// Close closes the underlying store
func (s *Store) Close() error {
	return s.db.Close()
}

func schemaKey(table string) []byte {
	return []byte("schema/" + table)
}

func rowKey(table string, id engine.RowID) []byte {
	key := make([]byte, 0, len("row/")+len(table)+1+8)
	key = append(key, "row/"...)
	key = append(key, table...)
	key = append(key, '/')
	return binary.BigEndian.AppendUint64(key, uint64(id))
}

func rowBounds(table string) (lower, upper []byte) {
	prefix := "row/" + table + "/"
	return []byte(prefix), append([]byte(prefix[:len(prefix)-1]), '0')
}

// SaveTable writes a table's schema and every row, replacing whatever was
// previously stored under its name
func (s *Store) SaveTable(t *engine.Table) error {
	schemaFrame, err := s.codec.EncodeSchema(t.Schema())
	if err != nil {
		return fmt.Errorf("failed to encode schema for %q: %w", t.Name(), err)
	}

	b := s.db.NewBatch()
	defer b.Close()

	lower, upper := rowBounds(t.Name())
	if err := b.DeleteRange(lower, upper, nil); err != nil {
		return fmt.Errorf("failed to clear rows for %q: %w", t.Name(), err)
	}
	if err := b.Set(schemaKey(t.Name()), schemaFrame, nil); err != nil {
		return fmt.Errorf("failed to write schema for %q: %w", t.Name(), err)
	}

	for pos := 0; pos < t.Size(); pos++ {
		id, _ := t.RowAt(pos)
		vals := make([]engine.Value, t.ColumnCount())
		for col := range vals {
			vals[col] = t.ValueAt(pos, col)
		}
		frame, err := s.codec.EncodeRow(id, vals)
		if err != nil {
			return fmt.Errorf("failed to encode row %d of %q: %w", id, t.Name(), err)
		}
		if err := b.Set(rowKey(t.Name(), id), frame, nil); err != nil {
			return fmt.Errorf("failed to write row %d of %q: %w", id, t.Name(), err)
		}
	}
	if err := s.db.Apply(b, pebble.Sync); err != nil {
		return fmt.Errorf("failed to commit table %q: %w", t.Name(), err)
	}
	return nil
}

// LoadTable reads a stored table into a DB, preserving row identities and
// insertion order
func (s *Store) LoadTable(db *engine.DB, name string) (*engine.Table, error) {
	frame, closer, err := s.db.Get(schemaKey(name))
	if err != nil {
		return nil, fmt.Errorf("failed to read schema for %q: %w", name, err)
	}
	schema, err := s.codec.DecodeSchema(frame)
	closer.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to decode schema for %q: %w", name, err)
	}

	t, err := db.CreateTable(name, schema)
	if err != nil {
		return nil, err
	}

	lower, upper := rowBounds(name)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate rows for %q: %w", name, err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		id, vals, err := s.codec.DecodeRow(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("failed to decode row for %q: %w", name, err)
		}
		if _, err := t.RestoreRow(id, vals); err != nil {
			return nil, fmt.Errorf("failed to restore row %d of %q: %w", id, name, err)
		}
	}
	return t, iter.Error()
}

// DeleteTable removes a stored table and its rows
func (s *Store) DeleteTable(name string) error {
	b := s.db.NewBatch()
	defer b.Close()

	lower, upper := rowBounds(name)
	if err := b.DeleteRange(lower, upper, nil); err != nil {
		return err
	}
	if err := b.Delete(schemaKey(name), nil); err != nil {
		return err
	}
	return s.db.Apply(b, pebble.Sync)
}

// TableNames returns the names of every stored table
func (s *Store) TableNames() ([]string, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("schema/"),
		UpperBound: []byte("schema0"),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var names []string
	for iter.First(); iter.Valid(); iter.Next() {
		names = append(names, string(iter.Key()[len("schema/"):]))
	}
	return names, iter.Error()
}

// SaveAll persists every table of a DB
func (s *Store) SaveAll(db *engine.DB) error {
	for _, name := range db.TableNames() {
		t, ok := db.Table(name)
		if !ok {
			continue
		}
		if err := s.SaveTable(t); err != nil {
			return err
		}
	}
	return nil
}

// LoadAll reads every stored table into a DB
func (s *Store) LoadAll(db *engine.DB) error {
	names, err := s.TableNames()
	if err != nil {
		return err
	}
	for _, name := range names {
		if _, err := s.LoadTable(db, name); err != nil {
			return err
		}
	}
	return nil
}
