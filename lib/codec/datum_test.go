package codec

import (
	"bytes"
	"sort"
	"testing"

	"github.com/shopspring/decimal"
)

func TestDatumRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		d    Datum
	}{
		{"null", Datum{}},
		{"int zero", NewIntDatum(0)},
		{"int negative", NewIntDatum(-42)},
		{"int min", NewIntDatum(-9223372036854775808)},
		{"int max", NewIntDatum(9223372036854775807)},
		{"uint", NewUintDatum(18446744073709551615)},
		{"bytes empty", NewBytesDatum([]byte{})},
		{"bytes with zeros", NewBytesDatum([]byte{0x00, 0x01, 0x00, 0x00, 0xFF})},
		{"string", NewStringDatum("hello world")},
		{"decimal", NewDecimalDatum(decimal.RequireFromString("-12.345"))},
	}

	for _, tc := range cases {
		t.Run("value/"+tc.name, func(t *testing.T) {
			enc, err := EncodeValue(nil, tc.d)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			rest, got, err := DecodeOne(enc)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(rest) != 0 {
				t.Fatalf("expected empty remainder, got %d bytes", len(rest))
			}
			if got.Compare(tc.d) != 0 || got.Kind() != tc.d.Kind() {
				t.Fatalf("round trip changed datum: %s -> %s", tc.d, got)
			}
		})
	}

	for _, tc := range cases {
		if tc.d.Kind() == KindDecimal {
			continue // decimals are not key-encodable
		}
		t.Run("key/"+tc.name, func(t *testing.T) {
			enc, err := EncodeKey(nil, tc.d)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			_, got, err := DecodeOne(enc)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.Compare(tc.d) != 0 {
				t.Fatalf("round trip changed datum: %s -> %s", tc.d, got)
			}
		})
	}
}

func TestKeyEncodingPreservesOrder(t *testing.T) {
	t.Run("ints", func(t *testing.T) {
		vals := []int64{-9223372036854775808, -1000, -1, 0, 1, 255, 256, 1000, 9223372036854775807}
		var encoded [][]byte
		for _, v := range vals {
			b, err := EncodeKey(nil, NewIntDatum(v))
			if err != nil {
				t.Fatal(err)
			}
			encoded = append(encoded, b)
		}
		if !sort.SliceIsSorted(encoded, func(i, j int) bool {
			return bytes.Compare(encoded[i], encoded[j]) < 0
		}) {
			t.Fatal("encoded ints are not byte-ordered")
		}
	})

	t.Run("bytes", func(t *testing.T) {
		vals := [][]byte{
			{},
			{0x00},
			{0x00, 0x00},
			{0x00, 0x01},
			{0x01},
			{0x01, 0x00},
			[]byte("abc"),
			[]byte("abcd"),
			[]byte("abd"),
			{0xFF},
		}
		var encoded [][]byte
		for _, v := range vals {
			b, err := EncodeKey(nil, NewBytesDatum(v))
			if err != nil {
				t.Fatal(err)
			}
			encoded = append(encoded, b)
		}
		for i := 1; i < len(encoded); i++ {
			if bytes.Compare(encoded[i-1], encoded[i]) >= 0 {
				t.Fatalf("encoding of %v does not sort before %v", vals[i-1], vals[i])
			}
		}
	})

	t.Run("null sorts first", func(t *testing.T) {
		null, _ := EncodeKey(nil, Datum{})
		intKey, _ := EncodeKey(nil, NewIntDatum(-9223372036854775808))
		bytesKey, _ := EncodeKey(nil, NewBytesDatum(nil))
		if bytes.Compare(null, intKey) >= 0 || bytes.Compare(null, bytesKey) >= 0 {
			t.Fatal("null key does not sort before other classes")
		}
	})

	t.Run("tuple prefix", func(t *testing.T) {
		// (1, "a") < (1, "b") < (2, "a")
		a, _ := EncodeKey(nil, NewIntDatum(1), NewStringDatum("a"))
		b, _ := EncodeKey(nil, NewIntDatum(1), NewStringDatum("b"))
		c, _ := EncodeKey(nil, NewIntDatum(2), NewStringDatum("a"))
		if bytes.Compare(a, b) >= 0 || bytes.Compare(b, c) >= 0 {
			t.Fatal("tuple encoding does not preserve lexicographic order")
		}
	})
}

func TestDecodeMalformed(t *testing.T) {
	cases := []struct {
		name string
		b    []byte
	}{
		{"empty", nil},
		{"unknown flag", []byte{0xAB}},
		{"truncated int", []byte{intFlag, 0x01, 0x02}},
		{"unterminated bytes", []byte{bytesFlag, 'a', 'b'}},
		{"invalid escape", []byte{bytesFlag, 0x00, 0x02}},
		{"truncated compact bytes", []byte{compactBytesFlag, 0x0A, 'x'}},
		{"bad varint", []byte{varintFlag, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80}},
		{"bad decimal payload", []byte{decimalFlag, 0x03, 'x', 'y', 'z'}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := DecodeOne(tc.b)
			if err == nil {
				t.Fatal("expected a decode error")
			}
			if _, ok := err.(*DecodeError); !ok {
				t.Fatalf("expected *DecodeError, got %T", err)
			}
		})
	}
}

func TestDatumCompareAcrossClasses(t *testing.T) {
	t.Run("int vs uint", func(t *testing.T) {
		if NewIntDatum(-1).Compare(NewUintDatum(0)) != -1 {
			t.Fatal("-1 should sort before uint 0")
		}
		if NewIntDatum(5).Compare(NewUintDatum(5)) != 0 {
			t.Fatal("int 5 and uint 5 should compare equal")
		}
	})
	t.Run("numeric string vs int", func(t *testing.T) {
		if NewStringDatum("3").Compare(NewIntDatum(4)) != -1 {
			t.Fatal(`"3" should compare numerically below 4`)
		}
	})
	t.Run("decimal vs int", func(t *testing.T) {
		d := NewDecimalDatum(decimal.RequireFromString("3.5"))
		if d.Compare(NewIntDatum(3)) != 1 || d.Compare(NewIntDatum(4)) != -1 {
			t.Fatal("decimal 3.5 should sort between 3 and 4")
		}
	})
}
