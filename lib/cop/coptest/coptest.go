// Package coptest provides reusable fixtures for endpoint tests: a
// schema builder, a writing store wrapper and fluent request builders
// for both request shapes.
package coptest

import (
	"fmt"
	"sync/atomic"

	"github.com/ValentinKolb/dQL/lib/codec"
	"github.com/ValentinKolb/dQL/lib/cop"
	"github.com/ValentinKolb/dQL/lib/mvcc"
)

// --------------------------------------------------------------------------
// ID generation
// --------------------------------------------------------------------------

var globalID atomic.Int64

// NextID returns a process-wide monotonically increasing id, used for
// table ids, column ids and timestamps.
func NextID() int64 {
	return globalID.Add(1)
}

// NextTS returns a fresh timestamp.
func NextTS() uint64 {
	return uint64(NextID())
}

// --------------------------------------------------------------------------
// Schema builder
// --------------------------------------------------------------------------

// Column is one column of a fixture table.
type Column struct {
	ID      int64
	Tp      cop.ColType
	Index   int64 // 0 = primary key, > 0 = secondary index id
	Default []byte
}

// Table is a fixture table: a handle column plus columns, some indexed.
type Table struct {
	ID       int64
	HandleID int64
	Columns  map[string]*Column
	colOrder []string
	// Idxs maps index id to the indexed column ids. Every secondary
	// index carries the handle id as its trailing component.
	Idxs map[int64][]int64
}

// TableBuilder assembles a fixture table.
type TableBuilder struct {
	table *Table
}

// NewTableBuilder creates an empty builder with a fresh table id.
func NewTableBuilder() *TableBuilder {
	return &TableBuilder{table: &Table{
		ID:      NextID(),
		Columns: make(map[string]*Column),
		Idxs:    make(map[int64][]int64),
	}}
}

// AddColumn adds a column. index 0 marks the primary-key handle column,
// a positive index creates a secondary index over the column.
func (b *TableBuilder) AddColumn(name string, tp cop.ColType, index int64) *TableBuilder {
	col := &Column{ID: NextID(), Tp: tp, Index: index}
	b.table.Columns[name] = col
	b.table.colOrder = append(b.table.colOrder, name)
	return b
}

// Build finalizes the table: resolves the handle column and appends the
// handle to every secondary index's column list.
func (b *TableBuilder) Build() *Table {
	t := b.table
	for _, name := range t.colOrder {
		col := t.Columns[name]
		if col.Index == 0 {
			t.HandleID = col.ID
		} else {
			t.Idxs[col.Index] = []int64{col.ID}
		}
	}
	for idx := range t.Idxs {
		t.Idxs[idx] = append(t.Idxs[idx], t.HandleID)
	}
	return t
}

// Col returns the column id of name.
func (t *Table) Col(name string) int64 {
	col, ok := t.Columns[name]
	if !ok {
		panic(fmt.Sprintf("no column %q", name))
	}
	return col.ID
}

// Index returns the index id of the index over the named column.
func (t *Table) Index(name string) int64 {
	return t.Columns[name].Index
}

// columnInfo builds the wire descriptor of one column.
func (t *Table) columnInfo(col *Column) cop.ColumnInfo {
	return cop.ColumnInfo{
		ID:       col.ID,
		Tp:       col.Tp,
		PKHandle: col.ID == t.HandleID,
		Default:  col.Default,
	}
}

// TableInfo builds the wire descriptor of the table with its columns in
// declaration order.
func (t *Table) TableInfo() *cop.TableInfo {
	info := &cop.TableInfo{ID: t.ID}
	for _, name := range t.colOrder {
		info.Columns = append(info.Columns, t.columnInfo(t.Columns[name]))
	}
	return info
}

// IndexInfo builds the wire descriptor of one secondary index, handle
// column included as the trailing entry.
func (t *Table) IndexInfo(indexID int64) *cop.IndexInfo {
	info := &cop.IndexInfo{TableID: t.ID, IndexID: indexID}
	for _, colID := range t.Idxs[indexID] {
		for _, name := range t.colOrder {
			if col := t.Columns[name]; col.ID == colID {
				info.Columns = append(info.Columns, t.columnInfo(col))
			}
		}
	}
	return info
}

// FullRange covers the table's whole primary keyspace.
func (t *Table) FullRange() []cop.KeyRange {
	maxSuffix := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	return []cop.KeyRange{{
		Start: codec.EncodeRowKey(t.ID, -1<<63),
		End:   codec.EncodeRowKeyWithSuffix(t.ID, maxSuffix),
	}}
}

// FullIndexRange covers one index's whole keyspace.
func (t *Table) FullIndexRange(indexID int64) []cop.KeyRange {
	maxSuffix := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	return []cop.KeyRange{{
		Start: codec.EncodeIndexSeekKey(t.ID, indexID, nil),
		End:   codec.EncodeIndexSeekKey(t.ID, indexID, maxSuffix),
	}}
}

// ProductTable is the standard fixture: id (pk), name (indexed, may be
// null), count (indexed).
func ProductTable() *Table {
	return NewTableBuilder().
		AddColumn("id", cop.ColTypeInt, 0).
		AddColumn("name", cop.ColTypeBytes, NextID()).
		AddColumn("count", cop.ColTypeInt, NextID()).
		Build()
}

// --------------------------------------------------------------------------
// Writing store wrapper
// --------------------------------------------------------------------------

// Store wraps the MVCC store with row-level insert/delete helpers. All
// writes of one Begin/Commit window form a single transaction.
type Store struct {
	MVCC *mvcc.Store

	startTS uint64
	muts    []mvcc.Mutation
}

// NewStore creates a fixture store over a fresh MVCC engine.
func NewStore() *Store {
	return &Store{MVCC: mvcc.NewStore()}
}

// Begin opens a write transaction at a fresh timestamp.
func (s *Store) Begin() {
	s.startTS = NextTS()
	s.muts = nil
}

// rowMutations builds the primary row and index entry keys of one row.
func rowMutations(t *Table, handle int64, values map[int64]codec.Datum, op mvcc.Op) ([]mvcc.Mutation, error) {
	var ids []int64
	var vals []codec.Datum
	for id, v := range values {
		if id == t.HandleID {
			continue
		}
		ids = append(ids, id)
		vals = append(vals, v)
	}
	rowData, err := codec.EncodeRow(vals, ids)
	if err != nil {
		return nil, err
	}

	muts := []mvcc.Mutation{{Op: op, Key: codec.EncodeRowKey(t.ID, handle), Value: rowData}}
	for indexID, colIDs := range t.Idxs {
		var keyVals []codec.Datum
		for _, colID := range colIDs {
			if colID == t.HandleID {
				keyVals = append(keyVals, codec.NewIntDatum(handle))
				continue
			}
			keyVals = append(keyVals, values[colID])
		}
		encoded, err := codec.EncodeKey(nil, keyVals...)
		if err != nil {
			return nil, err
		}
		muts = append(muts, mvcc.Mutation{
			Op:    op,
			Key:   codec.EncodeIndexSeekKey(t.ID, indexID, encoded),
			Value: []byte{0},
		})
	}
	if op == mvcc.OpDelete {
		for i := range muts {
			muts[i].Value = nil
		}
	}
	return muts, nil
}

// Insert stages one row and its index entries.
func (s *Store) Insert(t *Table, handle int64, values map[int64]codec.Datum) error {
	muts, err := rowMutations(t, handle, values, mvcc.OpPut)
	if err != nil {
		return err
	}
	s.muts = append(s.muts, muts...)
	return nil
}

// Delete stages the removal of one row and its index entries.
func (s *Store) Delete(t *Table, handle int64, values map[int64]codec.Datum) error {
	muts, err := rowMutations(t, handle, values, mvcc.OpDelete)
	if err != nil {
		return err
	}
	s.muts = append(s.muts, muts...)
	return nil
}

// Commit prewrites and commits the staged mutations.
func (s *Store) Commit() error {
	if len(s.muts) == 0 {
		return nil
	}
	primary := s.muts[0].Key
	if err := s.MVCC.Prewrite(s.muts, primary, s.startTS); err != nil {
		return err
	}
	keys := make([][]byte, len(s.muts))
	for i, m := range s.muts {
		keys[i] = m.Key
	}
	commitTS := NextTS()
	return s.MVCC.Commit(s.startTS, commitTS, keys)
}

// Leave prewrites the staged mutations without committing, leaving their
// locks in place.
func (s *Store) Leave() error {
	if len(s.muts) == 0 {
		return nil
	}
	return s.MVCC.Prewrite(s.muts, s.muts[0].Key, s.startTS)
}
