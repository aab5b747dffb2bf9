package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// --------------------------------------------------------------------------
// Datum
// --------------------------------------------------------------------------

// DatumKind identifies the class of a Datum.
type DatumKind uint8

const (
	KindNull DatumKind = iota
	KindInt64
	KindUint64
	KindBytes
	KindDecimal
)

func (k DatumKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt64:
		return "int64"
	case KindUint64:
		return "uint64"
	case KindBytes:
		return "bytes"
	case KindDecimal:
		return "decimal"
	default:
		return "unknown"
	}
}

// Datum is a single dynamically typed column value.
// The zero value is the null datum.
type Datum struct {
	kind DatumKind
	i    int64
	b    []byte
	dec  decimal.Decimal
}

// NewIntDatum creates an int64 datum.
func NewIntDatum(v int64) Datum { return Datum{kind: KindInt64, i: v} }

// NewUintDatum creates a uint64 datum.
func NewUintDatum(v uint64) Datum { return Datum{kind: KindUint64, i: int64(v)} }

// NewBytesDatum creates a byte-string datum. The slice is not copied.
func NewBytesDatum(v []byte) Datum { return Datum{kind: KindBytes, b: v} }

// NewStringDatum creates a byte-string datum from a string.
func NewStringDatum(v string) Datum { return Datum{kind: KindBytes, b: []byte(v)} }

// NewDecimalDatum creates a decimal datum.
func NewDecimalDatum(v decimal.Decimal) Datum { return Datum{kind: KindDecimal, dec: v} }

// Kind returns the datum class.
func (d Datum) Kind() DatumKind { return d.kind }

// IsNull reports whether the datum is null.
func (d Datum) IsNull() bool { return d.kind == KindNull }

// Int64 returns the int64 payload. Only valid for KindInt64.
func (d Datum) Int64() int64 { return d.i }

// Uint64 returns the uint64 payload. Only valid for KindUint64.
func (d Datum) Uint64() uint64 { return uint64(d.i) }

// Bytes returns the byte-string payload. Only valid for KindBytes.
func (d Datum) Bytes() []byte { return d.b }

// Decimal returns the decimal payload. Only valid for KindDecimal.
func (d Datum) Decimal() decimal.Decimal { return d.dec }

func (d Datum) String() string {
	switch d.kind {
	case KindNull:
		return "NULL"
	case KindInt64:
		return fmt.Sprintf("%d", d.i)
	case KindUint64:
		return fmt.Sprintf("%d", uint64(d.i))
	case KindBytes:
		return fmt.Sprintf("%q", d.b)
	case KindDecimal:
		return d.dec.String()
	default:
		return "?"
	}
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

// DecodeError reports a malformed buffer, payload or column reference.
// It is fatal for the request it occurs in.
type DecodeError struct {
	Msg string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error: %s", e.Msg)
}

// NewDecodeError creates a DecodeError with a formatted message.
func NewDecodeError(format string, args ...interface{}) *DecodeError {
	return &DecodeError{Msg: fmt.Sprintf(format, args...)}
}

// --------------------------------------------------------------------------
// Flag bytes
// --------------------------------------------------------------------------

// Every encoded datum starts with one of these flag bytes. The numeric
// values of the key-encoding flags are chosen so that NULL sorts before
// every other class.
const (
	nilFlag          byte = 0x00
	bytesFlag        byte = 0x01
	compactBytesFlag byte = 0x02
	intFlag          byte = 0x03
	uintFlag         byte = 0x04
	decimalFlag      byte = 0x06
	varintFlag       byte = 0x08
	uvarintFlag      byte = 0x09
)

// --------------------------------------------------------------------------
// Comparable integer encoding
// --------------------------------------------------------------------------

const signMask uint64 = 0x8000000000000000

// EncodeComparableInt appends the fixed-width, order-preserving encoding of
// v to b: big-endian two's complement with the sign bit flipped, so that
// negative values sort before positive ones byte-wise.
func EncodeComparableInt(b []byte, v int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v)^signMask)
	return append(b, buf[:]...)
}

// DecodeComparableInt decodes an integer written by EncodeComparableInt and
// returns the remaining buffer.
func DecodeComparableInt(b []byte) ([]byte, int64, error) {
	if len(b) < 8 {
		return b, 0, NewDecodeError("insufficient bytes for comparable int: %d", len(b))
	}
	v := int64(binary.BigEndian.Uint64(b[:8]) ^ signMask)
	return b[8:], v, nil
}

// EncodeComparableUint appends the big-endian encoding of v to b.
func EncodeComparableUint(b []byte, v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return append(b, buf[:]...)
}

// DecodeComparableUint decodes an unsigned integer written by
// EncodeComparableUint and returns the remaining buffer.
func DecodeComparableUint(b []byte) ([]byte, uint64, error) {
	if len(b) < 8 {
		return b, 0, NewDecodeError("insufficient bytes for comparable uint: %d", len(b))
	}
	return b[8:], binary.BigEndian.Uint64(b[:8]), nil
}

// --------------------------------------------------------------------------
// Comparable bytes encoding
// --------------------------------------------------------------------------

/*
	The escape scheme preserves prefix ordering: each 0x00 in the input is
	written as 0x00 0xFF, and the sequence is terminated with 0x00 0x01.
	The terminator sorts below any escaped payload byte, so a proper prefix
	sorts before every extension of it.
*/

// EncodeComparableBytes appends the order-preserving encoding of v to b.
func EncodeComparableBytes(b, v []byte) []byte {
	for _, c := range v {
		if c == 0x00 {
			b = append(b, 0x00, 0xFF)
		} else {
			b = append(b, c)
		}
	}
	return append(b, 0x00, 0x01)
}

// DecodeComparableBytes decodes a byte string written by
// EncodeComparableBytes and returns the remaining buffer.
func DecodeComparableBytes(b []byte) ([]byte, []byte, error) {
	var out []byte
	for i := 0; i < len(b); i++ {
		if b[i] != 0x00 {
			out = append(out, b[i])
			continue
		}
		if i+1 >= len(b) {
			return b, nil, NewDecodeError("truncated escaped bytes")
		}
		switch b[i+1] {
		case 0xFF:
			out = append(out, 0x00)
			i++
		case 0x01:
			return b[i+2:], out, nil
		default:
			return b, nil, NewDecodeError("invalid escape byte 0x%02x", b[i+1])
		}
	}
	return b, nil, NewDecodeError("unterminated escaped bytes")
}

// --------------------------------------------------------------------------
// Varint helpers (value encoding only)
// --------------------------------------------------------------------------

func encodeVarint(b []byte, v int64) []byte {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutVarint(buf[:], v)
	return append(b, buf[:n]...)
}

func decodeVarint(b []byte) ([]byte, int64, error) {
	v, n := binary.Varint(b)
	if n <= 0 {
		return b, 0, NewDecodeError("invalid varint")
	}
	return b[n:], v, nil
}

func encodeUvarint(b []byte, v uint64) []byte {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	return append(b, buf[:n]...)
}

func decodeUvarint(b []byte) ([]byte, uint64, error) {
	v, n := binary.Uvarint(b)
	if n <= 0 {
		return b, 0, NewDecodeError("invalid uvarint")
	}
	return b[n:], v, nil
}

// --------------------------------------------------------------------------
// Datum encoding
// --------------------------------------------------------------------------

// EncodeKey appends the byte-comparable encoding of the datums to b.
// Only null, integer and byte-string datums may appear in keys.
func EncodeKey(b []byte, datums ...Datum) ([]byte, error) {
	for _, d := range datums {
		switch d.kind {
		case KindNull:
			b = append(b, nilFlag)
		case KindInt64:
			b = append(b, intFlag)
			b = EncodeComparableInt(b, d.i)
		case KindUint64:
			b = append(b, uintFlag)
			b = EncodeComparableUint(b, uint64(d.i))
		case KindBytes:
			b = append(b, bytesFlag)
			b = EncodeComparableBytes(b, d.b)
		default:
			return nil, NewDecodeError("datum class %s is not key-encodable", d.kind)
		}
	}
	return b, nil
}

// EncodeValue appends the compact value encoding of the datums to b.
func EncodeValue(b []byte, datums ...Datum) ([]byte, error) {
	for _, d := range datums {
		switch d.kind {
		case KindNull:
			b = append(b, nilFlag)
		case KindInt64:
			b = append(b, varintFlag)
			b = encodeVarint(b, d.i)
		case KindUint64:
			b = append(b, uvarintFlag)
			b = encodeUvarint(b, uint64(d.i))
		case KindBytes:
			b = append(b, compactBytesFlag)
			b = encodeUvarint(b, uint64(len(d.b)))
			b = append(b, d.b...)
		case KindDecimal:
			s := d.dec.String()
			b = append(b, decimalFlag)
			b = encodeUvarint(b, uint64(len(s)))
			b = append(b, s...)
		default:
			return nil, NewDecodeError("unknown datum class %d", d.kind)
		}
	}
	return b, nil
}

// DecodeOne decodes a single datum from b, accepting both the key and the
// value encoding, and returns the remaining buffer.
func DecodeOne(b []byte) ([]byte, Datum, error) {
	if len(b) == 0 {
		return b, Datum{}, NewDecodeError("empty buffer")
	}
	flag := b[0]
	b = b[1:]
	switch flag {
	case nilFlag:
		return b, Datum{}, nil
	case intFlag:
		rest, v, err := DecodeComparableInt(b)
		return rest, NewIntDatum(v), err
	case uintFlag:
		rest, v, err := DecodeComparableUint(b)
		return rest, NewUintDatum(v), err
	case bytesFlag:
		rest, v, err := DecodeComparableBytes(b)
		return rest, NewBytesDatum(v), err
	case varintFlag:
		rest, v, err := decodeVarint(b)
		return rest, NewIntDatum(v), err
	case uvarintFlag:
		rest, v, err := decodeUvarint(b)
		return rest, NewUintDatum(v), err
	case compactBytesFlag:
		rest, n, err := decodeUvarint(b)
		if err != nil {
			return b, Datum{}, err
		}
		if uint64(len(rest)) < n {
			return b, Datum{}, NewDecodeError("bytes payload truncated: want %d, have %d", n, len(rest))
		}
		return rest[n:], NewBytesDatum(rest[:n]), nil
	case decimalFlag:
		rest, n, err := decodeUvarint(b)
		if err != nil {
			return b, Datum{}, err
		}
		if uint64(len(rest)) < n {
			return b, Datum{}, NewDecodeError("decimal payload truncated")
		}
		dec, err := decimal.NewFromString(string(rest[:n]))
		if err != nil {
			return b, Datum{}, NewDecodeError("invalid decimal %q", rest[:n])
		}
		return rest[n:], NewDecimalDatum(dec), nil
	default:
		return b, Datum{}, NewDecodeError("unknown datum flag 0x%02x", flag)
	}
}

// DecodeAll decodes every datum in b.
func DecodeAll(b []byte) ([]Datum, error) {
	var out []Datum
	for len(b) > 0 {
		rest, d, err := DecodeOne(b)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
		b = rest
	}
	return out, nil
}

// --------------------------------------------------------------------------
// Datum comparison
// --------------------------------------------------------------------------

// Compare orders two datums. Null sorts before everything else. Mixed
// numeric classes are compared numerically; bytes against a numeric class
// compares the decimal representations.
func (d Datum) Compare(other Datum) int {
	if d.kind == KindNull || other.kind == KindNull {
		if d.kind == other.kind {
			return 0
		}
		if d.kind == KindNull {
			return -1
		}
		return 1
	}
	if d.kind == KindBytes && other.kind == KindBytes {
		return bytes.Compare(d.b, other.b)
	}
	ld, lok := d.toDecimal()
	rd, rok := other.toDecimal()
	if lok && rok {
		return ld.Cmp(rd)
	}
	// fall back to a stable ordering between incomparable values
	if d.kind != other.kind {
		return int(d.kind) - int(other.kind)
	}
	return bytes.Compare(d.b, other.b)
}

// toDecimal converts any numeric-convertible datum to a decimal.
func (d Datum) toDecimal() (decimal.Decimal, bool) {
	switch d.kind {
	case KindInt64:
		return decimal.NewFromInt(d.i), true
	case KindUint64:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(d.i)), 0), true
	case KindDecimal:
		return d.dec, true
	case KindBytes:
		dec, err := decimal.NewFromString(string(d.b))
		if err != nil {
			return decimal.Decimal{}, false
		}
		return dec, true
	default:
		return decimal.Decimal{}, false
	}
}
