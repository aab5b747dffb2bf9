package expr

import (
	"fmt"

	"github.com/ValentinKolb/dQL/lib/codec"
	"github.com/shopspring/decimal"
)

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

// TruncationError reports a lossy value conversion during evaluation.
// It fails the whole request unless the ignore-truncation flag is set.
type TruncationError struct {
	Msg string
}

func (e *TruncationError) Error() string {
	return fmt.Sprintf("truncation error: %s", e.Msg)
}

// --------------------------------------------------------------------------
// Evaluator
// --------------------------------------------------------------------------

// Evaluator computes expressions against one row at a time. The
// ignore-truncation flag is fixed per request and threaded through every
// conversion the evaluator performs.
//
// Thread-safety: an Evaluator is owned by a single request pipeline and
// must not be shared between goroutines.
type Evaluator struct {
	// Row maps column id to the current row's value. The caller replaces
	// it before each evaluation.
	Row map[int64]codec.Datum

	// IgnoreTruncate coerces lossy conversions to their best-effort value
	// instead of failing.
	IgnoreTruncate bool
}

// Eval computes the expression against the current row.
func (e *Evaluator) Eval(x Expr) (codec.Datum, error) {
	switch n := x.(type) {
	case *Literal:
		return n.Value, nil
	case *ColumnRef:
		v, ok := e.Row[n.ID]
		if !ok {
			return codec.Datum{}, codec.NewDecodeError("column %d is not in the current row", n.ID)
		}
		return v, nil
	case *BinaryOp:
		return e.evalBinary(n)
	case *UnaryOp:
		return e.evalUnary(n)
	case *AggExpr:
		return codec.Datum{}, codec.NewDecodeError("aggregate %s in scalar context", n.Fn)
	default:
		return codec.Datum{}, codec.NewDecodeError("unknown expression node %T", x)
	}
}

// EvalBool computes the expression and reduces it to truthiness:
// null, zero and the empty string are false, everything else is true.
func (e *Evaluator) EvalBool(x Expr) (bool, error) {
	v, err := e.Eval(x)
	if err != nil {
		return false, err
	}
	return truthy(v), nil
}

func truthy(d codec.Datum) bool {
	switch d.Kind() {
	case codec.KindNull:
		return false
	case codec.KindInt64:
		return d.Int64() != 0
	case codec.KindUint64:
		return d.Uint64() != 0
	case codec.KindBytes:
		return len(d.Bytes()) != 0
	case codec.KindDecimal:
		return !d.Decimal().IsZero()
	default:
		return false
	}
}

func (e *Evaluator) evalBinary(n *BinaryOp) (codec.Datum, error) {
	switch n.Op {
	case OpAnd, OpOr:
		return e.evalLogic(n)
	}

	l, err := e.Eval(n.L)
	if err != nil {
		return codec.Datum{}, err
	}
	r, err := e.Eval(n.R)
	if err != nil {
		return codec.Datum{}, err
	}

	switch n.Op {
	case OpLT, OpLE, OpEQ, OpNE, OpGE, OpGT:
		return e.compare(n.Op, l, r)
	case OpPlus:
		return e.plus(l, r)
	default:
		return codec.Datum{}, codec.NewDecodeError("operator %s is not binary", n.Op)
	}
}

// evalLogic implements three-valued AND/OR: null propagates unless the
// other operand already decides the result.
func (e *Evaluator) evalLogic(n *BinaryOp) (codec.Datum, error) {
	l, err := e.Eval(n.L)
	if err != nil {
		return codec.Datum{}, err
	}
	r, err := e.Eval(n.R)
	if err != nil {
		return codec.Datum{}, err
	}

	lNull, rNull := l.IsNull(), r.IsNull()
	lTrue, rTrue := truthy(l), truthy(r)

	if n.Op == OpAnd {
		if (!lNull && !lTrue) || (!rNull && !rTrue) {
			return codec.NewIntDatum(0), nil
		}
		if lNull || rNull {
			return codec.Datum{}, nil
		}
		return codec.NewIntDatum(1), nil
	}
	// OpOr
	if lTrue || rTrue {
		return codec.NewIntDatum(1), nil
	}
	if lNull || rNull {
		return codec.Datum{}, nil
	}
	return codec.NewIntDatum(0), nil
}

func (e *Evaluator) evalUnary(n *UnaryOp) (codec.Datum, error) {
	if n.Op != OpNot {
		return codec.Datum{}, codec.NewDecodeError("operator %s is not unary", n.Op)
	}
	v, err := e.Eval(n.X)
	if err != nil {
		return codec.Datum{}, err
	}
	if v.IsNull() {
		return codec.Datum{}, nil
	}
	if truthy(v) {
		return codec.NewIntDatum(0), nil
	}
	return codec.NewIntDatum(1), nil
}

// compare evaluates an ordering operator. Comparing anything with null
// yields null.
func (e *Evaluator) compare(op Op, l, r codec.Datum) (codec.Datum, error) {
	if l.IsNull() || r.IsNull() {
		return codec.Datum{}, nil
	}
	l, r, err := e.coercePair(l, r)
	if err != nil {
		return codec.Datum{}, err
	}
	c := l.Compare(r)
	var result bool
	switch op {
	case OpLT:
		result = c < 0
	case OpLE:
		result = c <= 0
	case OpEQ:
		result = c == 0
	case OpNE:
		result = c != 0
	case OpGE:
		result = c >= 0
	case OpGT:
		result = c > 0
	}
	if result {
		return codec.NewIntDatum(1), nil
	}
	return codec.NewIntDatum(0), nil
}

func (e *Evaluator) plus(l, r codec.Datum) (codec.Datum, error) {
	if l.IsNull() || r.IsNull() {
		return codec.Datum{}, nil
	}
	if l.Kind() == codec.KindInt64 && r.Kind() == codec.KindInt64 {
		return codec.NewIntDatum(l.Int64() + r.Int64()), nil
	}
	ld, err := e.ToDecimal(l)
	if err != nil {
		return codec.Datum{}, err
	}
	rd, err := e.ToDecimal(r)
	if err != nil {
		return codec.Datum{}, err
	}
	return codec.NewDecimalDatum(ld.Add(rd)), nil
}

// coercePair converts a bytes operand to a numeric value when the other
// side is numeric, applying the truncation policy.
func (e *Evaluator) coercePair(l, r codec.Datum) (codec.Datum, codec.Datum, error) {
	numeric := func(d codec.Datum) bool {
		k := d.Kind()
		return k == codec.KindInt64 || k == codec.KindUint64 || k == codec.KindDecimal
	}
	var err error
	if l.Kind() == codec.KindBytes && numeric(r) {
		l, err = e.bytesToDecimal(l)
		if err != nil {
			return l, r, err
		}
	}
	if r.Kind() == codec.KindBytes && numeric(l) {
		r, err = e.bytesToDecimal(r)
		if err != nil {
			return l, r, err
		}
	}
	return l, r, nil
}

// ToDecimal converts a datum to a decimal under the evaluator's
// truncation policy.
func (e *Evaluator) ToDecimal(d codec.Datum) (decimal.Decimal, error) {
	switch d.Kind() {
	case codec.KindInt64:
		return decimal.NewFromInt(d.Int64()), nil
	case codec.KindUint64:
		return decimal.NewFromInt(int64(d.Uint64())), nil
	case codec.KindDecimal:
		return d.Decimal(), nil
	case codec.KindBytes:
		v, err := e.bytesToDecimal(d)
		if err != nil {
			return decimal.Decimal{}, err
		}
		return v.Decimal(), nil
	default:
		return decimal.Decimal{}, codec.NewDecodeError("class %s is not numeric", d.Kind())
	}
}

// bytesToDecimal parses a byte string as a number. A trailing non-numeric
// suffix is a lossy conversion: fatal by default, best-effort prefix parse
// when truncation is ignored.
func (e *Evaluator) bytesToDecimal(d codec.Datum) (codec.Datum, error) {
	s := string(d.Bytes())
	if v, err := decimal.NewFromString(s); err == nil {
		return codec.NewDecimalDatum(v), nil
	}
	prefix := numericPrefix(s)
	if !e.IgnoreTruncate {
		return codec.Datum{}, &TruncationError{Msg: fmt.Sprintf("cannot convert %q to a number", s)}
	}
	if prefix == "" {
		return codec.NewDecimalDatum(decimal.Zero), nil
	}
	v, err := decimal.NewFromString(prefix)
	if err != nil {
		return codec.NewDecimalDatum(decimal.Zero), nil
	}
	return codec.NewDecimalDatum(v), nil
}

// numericPrefix returns the longest leading substring of s that parses as
// a decimal number.
func numericPrefix(s string) string {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
			digits++
		}
	}
	if digits == 0 {
		return ""
	}
	return s[:i]
}
