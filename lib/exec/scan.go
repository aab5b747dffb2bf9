package exec

import (
	"github.com/ValentinKolb/dQL/lib/codec"
	"github.com/ValentinKolb/dQL/lib/cop"
	"github.com/ValentinKolb/dQL/lib/mvcc"
)

// --------------------------------------------------------------------------
// Table scan
// --------------------------------------------------------------------------

// TableScanExec reads primary rows from the snapshot over the request's
// key ranges, in handle order (reversed when desc is set). A lock inside
// a range stops the scan and surfaces as the iterator's error.
type TableScanExec struct {
	snap    *mvcc.Snapshot
	ranges  []cop.KeyRange
	columns []cop.ColumnInfo
	desc    bool

	rangeIdx int
	iter     *mvcc.Iterator
	done     bool
}

// NewTableScan creates a table scan over the given ranges.
func NewTableScan(snap *mvcc.Snapshot, ranges []cop.KeyRange, columns []cop.ColumnInfo, desc bool) *TableScanExec {
	if desc {
		// process ranges back to front so emission stays globally ordered
		reversed := make([]cop.KeyRange, len(ranges))
		for i, r := range ranges {
			reversed[len(ranges)-1-i] = r
		}
		ranges = reversed
	}
	return &TableScanExec{snap: snap, ranges: ranges, columns: columns, desc: desc}
}

func (e *TableScanExec) Next() (*Row, error) {
	for !e.done {
		if e.iter == nil {
			if e.rangeIdx >= len(e.ranges) {
				e.done = true
				return nil, nil
			}
			r := e.ranges[e.rangeIdx]
			e.rangeIdx++
			if e.desc {
				e.iter = e.snap.ScanReverse(r.Start, r.End)
			} else {
				e.iter = e.snap.Scan(r.Start, r.End)
			}
		}

		pair, err := e.iter.Next()
		if err != nil {
			e.done = true
			return nil, err
		}
		if pair == nil {
			e.iter = nil
			continue
		}

		row, err := decodeTableRow(pair, e.columns)
		if err != nil {
			e.done = true
			return nil, err
		}
		return row, nil
	}
	return nil, nil
}

// decodeTableRow turns one stored key-value pair into a Row carrying the
// requested columns. Missing columns fall back to the declared default,
// the handle for the primary-key column, or null.
func decodeTableRow(pair *mvcc.Pair, columns []cop.ColumnInfo) (*Row, error) {
	handle, err := codec.DecodeRowKey(pair.Key)
	if err != nil {
		return nil, err
	}

	wanted := make(map[int64]struct{}, len(columns))
	for _, col := range columns {
		wanted[col.ID] = struct{}{}
	}
	values, err := codec.DecodeRow(pair.Value, wanted)
	if err != nil {
		return nil, err
	}

	row := &Row{Handle: handle, Data: make(map[int64]codec.Datum, len(columns))}
	for _, col := range columns {
		if v, ok := values[col.ID]; ok {
			row.Data[col.ID] = v
			continue
		}
		switch {
		case col.PKHandle:
			row.Data[col.ID] = codec.NewIntDatum(handle)
		case col.Default != nil:
			_, v, err := codec.DecodeOne(col.Default)
			if err != nil {
				return nil, err
			}
			row.Data[col.ID] = v
		default:
			row.Data[col.ID] = codec.Datum{}
		}
	}
	return row, nil
}

// --------------------------------------------------------------------------
// Index scan
// --------------------------------------------------------------------------

// IndexScanExec reads secondary index entries over the request's key
// ranges. Every entry carries the row handle as its trailing key
// component; the scan exposes it both as Row.Handle and as the value of
// the trailing handle column so order-by-handle works on index data.
type IndexScanExec struct {
	snap    *mvcc.Snapshot
	ranges  []cop.KeyRange
	columns []cop.ColumnInfo
	desc    bool

	rangeIdx int
	iter     *mvcc.Iterator
	done     bool
}

// NewIndexScan creates an index scan over the given ranges.
func NewIndexScan(snap *mvcc.Snapshot, ranges []cop.KeyRange, columns []cop.ColumnInfo, desc bool) *IndexScanExec {
	if desc {
		reversed := make([]cop.KeyRange, len(ranges))
		for i, r := range ranges {
			reversed[len(ranges)-1-i] = r
		}
		ranges = reversed
	}
	return &IndexScanExec{snap: snap, ranges: ranges, columns: columns, desc: desc}
}

func (e *IndexScanExec) Next() (*Row, error) {
	for !e.done {
		if e.iter == nil {
			if e.rangeIdx >= len(e.ranges) {
				e.done = true
				return nil, nil
			}
			r := e.ranges[e.rangeIdx]
			e.rangeIdx++
			if e.desc {
				e.iter = e.snap.ScanReverse(r.Start, r.End)
			} else {
				e.iter = e.snap.Scan(r.Start, r.End)
			}
		}

		pair, err := e.iter.Next()
		if err != nil {
			e.done = true
			return nil, err
		}
		if pair == nil {
			e.iter = nil
			continue
		}

		row, err := decodeIndexRow(pair.Key, e.columns)
		if err != nil {
			e.done = true
			return nil, err
		}
		return row, nil
	}
	return nil, nil
}

// decodeIndexRow decodes the column values and the trailing handle out
// of one index key.
func decodeIndexRow(key []byte, columns []cop.ColumnInfo) (*Row, error) {
	encoded, err := codec.CutIndexKey(key)
	if err != nil {
		return nil, err
	}
	datums, err := codec.DecodeAll(encoded)
	if err != nil {
		return nil, err
	}
	if len(datums) == 0 {
		return nil, codec.NewDecodeError("index key %q carries no values", key)
	}

	last := datums[len(datums)-1]
	if last.Kind() != codec.KindInt64 {
		return nil, codec.NewDecodeError("index key %q has a non-integer handle", key)
	}
	handle := last.Int64()

	row := &Row{Handle: handle, Data: make(map[int64]codec.Datum, len(columns))}
	for i, col := range columns {
		if i >= len(datums) {
			return nil, codec.NewDecodeError("index key %q is short: %d values for %d columns", key, len(datums), len(columns))
		}
		row.Data[col.ID] = datums[i]
	}
	return row, nil
}
