// Package codec implements the ordered, comparison-preserving encoding used
// for table rows, index keys and query results.
//
// Two encodings exist for every datum:
//
//   - The key encoding (EncodeKey) is byte-comparable: for two datums a < b
//     of the same class, EncodeKey(a) < EncodeKey(b) under bytes.Compare.
//     It is used for row keys, index keys and scan-range boundaries.
//
//   - The value encoding (EncodeValue) is compact and round-trippable but
//     not ordered. It is used for stored row payloads, group keys and
//     response rows.
//
// Both encodings are self-describing: every datum is prefixed with a flag
// byte, so a buffer can be decoded without external schema knowledge.
// Malformed buffers yield a *DecodeError, never a panic.
package codec
