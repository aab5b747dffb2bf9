package codec

import (
	"bytes"
)

// --------------------------------------------------------------------------
// Key layout
// --------------------------------------------------------------------------

/*
	All table data lives in one ordered keyspace:

	  row key:    t{tableID}_r{handle}
	  index key:  t{tableID}_i{indexID}{encoded column values}{handle}

	tableID, indexID and handle use the comparable integer encoding, so a
	byte-range scan over a table or index visits entries in logical order.
*/

var (
	tablePrefix  = []byte{'t'}
	rowPrefixSep = []byte("_r")
	idxPrefixSep = []byte("_i")
)

// recordPrefixLen is the length of "t{tableID}_r".
const recordPrefixLen = 1 + 8 + 2

// EncodeRowKey builds the storage key of the row identified by handle.
func EncodeRowKey(tableID, handle int64) []byte {
	b := make([]byte, 0, recordPrefixLen+8)
	b = appendTableRecordPrefix(b, tableID)
	return EncodeComparableInt(b, handle)
}

// EncodeRowKeyWithSuffix builds a row-range boundary key from an already
// encoded handle suffix. Used to build scan ranges from sentinel handles.
func EncodeRowKeyWithSuffix(tableID int64, suffix []byte) []byte {
	b := make([]byte, 0, recordPrefixLen+len(suffix))
	b = appendTableRecordPrefix(b, tableID)
	return append(b, suffix...)
}

// EncodeIndexSeekKey builds an index key or index-range boundary from the
// encoded values of the indexed columns (possibly followed by a handle).
func EncodeIndexSeekKey(tableID, indexID int64, encodedValues []byte) []byte {
	b := make([]byte, 0, 1+8+2+8+len(encodedValues))
	b = append(b, tablePrefix...)
	b = EncodeComparableInt(b, tableID)
	b = append(b, idxPrefixSep...)
	b = EncodeComparableInt(b, indexID)
	return append(b, encodedValues...)
}

func appendTableRecordPrefix(b []byte, tableID int64) []byte {
	b = append(b, tablePrefix...)
	b = EncodeComparableInt(b, tableID)
	return append(b, rowPrefixSep...)
}

// DecodeRowKey extracts the handle from a row key.
func DecodeRowKey(key []byte) (int64, error) {
	if len(key) != recordPrefixLen+8 || !bytes.HasPrefix(key, tablePrefix) {
		return 0, NewDecodeError("invalid row key %q", key)
	}
	_, handle, err := DecodeComparableInt(key[recordPrefixLen:])
	return handle, err
}

// CutIndexKey strips the table/index prefix from an index key and returns
// the encoded column values (including the trailing handle component).
func CutIndexKey(key []byte) ([]byte, error) {
	prefixLen := 1 + 8 + 2 + 8
	if len(key) < prefixLen || !bytes.HasPrefix(key, tablePrefix) {
		return nil, NewDecodeError("invalid index key %q", key)
	}
	return key[prefixLen:], nil
}

// --------------------------------------------------------------------------
// Row values
// --------------------------------------------------------------------------

// EncodeRow encodes the column values as interleaved (column id, value)
// pairs. ids and values must be parallel slices.
func EncodeRow(values []Datum, ids []int64) ([]byte, error) {
	if len(values) != len(ids) {
		return nil, NewDecodeError("row has %d values but %d column ids", len(values), len(ids))
	}
	var b []byte
	var err error
	for i, v := range values {
		if b, err = EncodeValue(b, NewIntDatum(ids[i])); err != nil {
			return nil, err
		}
		if b, err = EncodeValue(b, v); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// DecodeRow decodes the wanted columns from an encoded row. Columns not
// present in the buffer are simply absent from the result map.
func DecodeRow(b []byte, wanted map[int64]struct{}) (map[int64]Datum, error) {
	row := make(map[int64]Datum, len(wanted))
	for len(b) > 0 {
		rest, idDatum, err := DecodeOne(b)
		if err != nil {
			return nil, err
		}
		if idDatum.Kind() != KindInt64 {
			return nil, NewDecodeError("row column id has class %s", idDatum.Kind())
		}
		rest, value, err := DecodeOne(rest)
		if err != nil {
			return nil, err
		}
		if _, ok := wanted[idDatum.Int64()]; ok {
			row[idDatum.Int64()] = value
		}
		b = rest
	}
	return row, nil
}
