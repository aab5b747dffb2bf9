package exec

import (
	"math/big"

	"github.com/ValentinKolb/dQL/lib/codec"
	"github.com/ValentinKolb/dQL/lib/cop"
	"github.com/ValentinKolb/dQL/lib/expr"
	"github.com/shopspring/decimal"
)

// --------------------------------------------------------------------------
// Aggregate state
// --------------------------------------------------------------------------

// aggState is the accumulator of one aggregate function in one group.
type aggState struct {
	fn expr.AggKind

	count uint64 // Count: all rows. Sum/Avg: non-null inputs.

	sum    decimal.Decimal
	hasSum bool

	first    codec.Datum
	hasFirst bool

	extreme    codec.Datum
	hasExtreme bool
}

// update feeds one row's argument value into the accumulator.
func (s *aggState) update(ev *expr.Evaluator, arg codec.Datum) error {
	switch s.fn {
	case expr.AggCount:
		// counts every row, nulls included
		s.count++
	case expr.AggFirst:
		if !s.hasFirst {
			s.first = arg
			s.hasFirst = true
		}
	case expr.AggSum, expr.AggAvg:
		if arg.IsNull() {
			return nil
		}
		v, err := ev.ToDecimal(arg)
		if err != nil {
			return err
		}
		if !s.hasSum {
			s.sum = v
			s.hasSum = true
		} else {
			s.sum = s.sum.Add(v)
		}
		s.count++
	case expr.AggMax:
		if arg.IsNull() {
			return nil
		}
		if !s.hasExtreme || arg.Compare(s.extreme) > 0 {
			s.extreme = arg
			s.hasExtreme = true
		}
	case expr.AggMin:
		if arg.IsNull() {
			return nil
		}
		if !s.hasExtreme || arg.Compare(s.extreme) < 0 {
			s.extreme = arg
			s.hasExtreme = true
		}
	}
	return nil
}

// results projects the accumulator into its output datums. Avg emits the
// (count, sum) pair, everything else one datum.
func (s *aggState) results() []codec.Datum {
	switch s.fn {
	case expr.AggCount:
		return []codec.Datum{codec.NewUintDatum(s.count)}
	case expr.AggFirst:
		if !s.hasFirst {
			return []codec.Datum{{}}
		}
		return []codec.Datum{s.first}
	case expr.AggSum:
		if !s.hasSum {
			return []codec.Datum{{}}
		}
		return []codec.Datum{codec.NewDecimalDatum(s.sum)}
	case expr.AggAvg:
		if !s.hasSum {
			return []codec.Datum{codec.NewUintDatum(0), {}}
		}
		return []codec.Datum{codec.NewUintDatum(s.count), codec.NewDecimalDatum(s.sum)}
	case expr.AggMax, expr.AggMin:
		if !s.hasExtreme {
			return []codec.Datum{{}}
		}
		return []codec.Datum{s.extreme}
	default:
		return []codec.Datum{{}}
	}
}

// --------------------------------------------------------------------------
// Aggregation executor
// --------------------------------------------------------------------------

// aggGroup is the state of one distinct group key.
type aggGroup struct {
	key       []byte
	groupVals []codec.Datum
	states    []*aggState
}

// AggExec groups its child's rows by the byte encoding of the group-by
// values and runs the aggregate functions per group. Groups are emitted
// in the order their key was first seen. Without a group-by clause all
// rows fall into the single sentinel group.
//
// Output row shape: (group key, results...) in the flat request shape,
// (results..., group-by values...) in the DAG shape.
type AggExec struct {
	child   Executor
	groupBy []expr.Expr
	aggs    []*expr.AggExpr
	ev      *expr.Evaluator

	// DAGOutput switches the output row shape.
	DAGOutput bool

	executed bool
	groups   map[string]*aggGroup
	order    []string
	emitIdx  int
}

// NewAggregation creates an aggregation over child.
func NewAggregation(child Executor, groupBy []expr.Expr, aggs []*expr.AggExpr, ev *expr.Evaluator) *AggExec {
	return &AggExec{
		child:   child,
		groupBy: groupBy,
		aggs:    aggs,
		ev:      ev,
		groups:  make(map[string]*aggGroup),
	}
}

// consume drains the child and builds all group states.
func (e *AggExec) consume() error {
	for {
		row, err := e.child.Next()
		if err != nil {
			return err
		}
		if row == nil {
			return nil
		}

		e.ev.Row = row.Data
		key, groupVals, err := e.groupKey()
		if err != nil {
			return err
		}

		group, ok := e.groups[string(key)]
		if !ok {
			group = &aggGroup{key: key, groupVals: groupVals}
			for _, agg := range e.aggs {
				group.states = append(group.states, &aggState{fn: agg.Fn})
			}
			e.groups[string(key)] = group
			e.order = append(e.order, string(key))
		}

		for i, agg := range e.aggs {
			var arg codec.Datum
			if len(agg.Args) > 0 {
				arg, err = e.ev.Eval(agg.Args[0])
				if err != nil {
					return err
				}
			}
			if err := group.states[i].update(e.ev, arg); err != nil {
				return err
			}
		}
	}
}

// normalizeGroupVal strips the representational exponent from decimal
// group values. "1.0" and "1" compare equal but render differently, so
// without this they would encode into distinct group keys.
func normalizeGroupVal(v codec.Datum) codec.Datum {
	if v.Kind() != codec.KindDecimal {
		return v
	}
	d := v.Decimal()
	coeff := d.Coefficient()
	if coeff.Sign() == 0 {
		return codec.NewDecimalDatum(decimal.New(0, 0))
	}
	exp := d.Exponent()
	ten := big.NewInt(10)
	q, r := new(big.Int), new(big.Int)
	for {
		q.QuoRem(coeff, ten, r)
		if r.Sign() != 0 {
			break
		}
		coeff.Set(q)
		exp++
	}
	return codec.NewDecimalDatum(decimal.NewFromBigInt(coeff, exp))
}

// groupKey computes the byte identity of the current row's group. Equal
// group-by tuples must encode byte-identically.
func (e *AggExec) groupKey() ([]byte, []codec.Datum, error) {
	if len(e.groupBy) == 0 {
		return cop.SingleGroup, nil, nil
	}
	vals := make([]codec.Datum, len(e.groupBy))
	for i, g := range e.groupBy {
		v, err := e.ev.Eval(g)
		if err != nil {
			return nil, nil, err
		}
		vals[i] = normalizeGroupVal(v)
	}
	key, err := codec.EncodeValue(nil, vals...)
	if err != nil {
		return nil, nil, err
	}
	return key, vals, nil
}

func (e *AggExec) Next() (*Row, error) {
	if !e.executed {
		if err := e.consume(); err != nil {
			return nil, err
		}
		e.executed = true
	}

	if e.emitIdx >= len(e.order) {
		return nil, nil
	}
	group := e.groups[e.order[e.emitIdx]]
	e.emitIdx++

	var out []codec.Datum
	if e.DAGOutput {
		for _, s := range group.states {
			out = append(out, s.results()...)
		}
		out = append(out, group.groupVals...)
	} else {
		out = append(out, codec.NewBytesDatum(group.key))
		for _, s := range group.states {
			out = append(out, s.results()...)
		}
	}
	return &Row{Output: out}, nil
}
