package plan

import (
	"github.com/ValentinKolb/dQL/lib/codec"
	"github.com/ValentinKolb/dQL/lib/cop"
	"github.com/ValentinKolb/dQL/lib/exec"
	"github.com/ValentinKolb/dQL/lib/expr"
)

// resolver maps a wire column reference (absolute id or scan offset) to
// the referenced column id.
type resolver func(ref int64) (int64, error)

// convertScalar converts a wire expression tree into an evaluable one.
// Aggregate nodes are rejected; they only appear inside an aggregation
// descriptor.
func convertScalar(e *cop.Expr, resolve resolver) (expr.Expr, error) {
	if e == nil {
		return nil, codec.NewDecodeError("nil expression node")
	}
	switch e.Tp {
	case cop.ExprValue:
		_, d, err := codec.DecodeOne(e.Val)
		if err != nil {
			return nil, err
		}
		return &expr.Literal{Value: d}, nil

	case cop.ExprColumnRef:
		_, d, err := codec.DecodeOne(e.Val)
		if err != nil {
			return nil, err
		}
		if d.Kind() != codec.KindInt64 {
			return nil, codec.NewDecodeError("column reference payload has class %s", d.Kind())
		}
		id, err := resolve(d.Int64())
		if err != nil {
			return nil, err
		}
		return expr.Col(id), nil

	case cop.ExprLT, cop.ExprLE, cop.ExprEQ, cop.ExprNE, cop.ExprGE, cop.ExprGT, cop.ExprPlus, cop.ExprAnd, cop.ExprOr:
		if len(e.Children) != 2 {
			return nil, codec.NewDecodeError("operator %d expects 2 children, got %d", e.Tp, len(e.Children))
		}
		l, err := convertScalar(e.Children[0], resolve)
		if err != nil {
			return nil, err
		}
		r, err := convertScalar(e.Children[1], resolve)
		if err != nil {
			return nil, err
		}
		return expr.Bin(scalarOp(e.Tp), l, r), nil

	case cop.ExprNot:
		if len(e.Children) != 1 {
			return nil, codec.NewDecodeError("NOT expects 1 child, got %d", len(e.Children))
		}
		x, err := convertScalar(e.Children[0], resolve)
		if err != nil {
			return nil, err
		}
		return &expr.UnaryOp{Op: expr.OpNot, X: x}, nil

	case cop.ExprCount, cop.ExprFirst, cop.ExprSum, cop.ExprAvg, cop.ExprMax, cop.ExprMin:
		return nil, codec.NewDecodeError("aggregate expression %d outside an aggregation", e.Tp)

	default:
		return nil, codec.NewDecodeError("unknown expression type %d", e.Tp)
	}
}

func scalarOp(tp cop.ExprType) expr.Op {
	switch tp {
	case cop.ExprLT:
		return expr.OpLT
	case cop.ExprLE:
		return expr.OpLE
	case cop.ExprEQ:
		return expr.OpEQ
	case cop.ExprNE:
		return expr.OpNE
	case cop.ExprGE:
		return expr.OpGE
	case cop.ExprGT:
		return expr.OpGT
	case cop.ExprPlus:
		return expr.OpPlus
	case cop.ExprAnd:
		return expr.OpAnd
	default:
		return expr.OpOr
	}
}

// convertAgg converts one aggregate function node.
func convertAgg(e *cop.Expr, resolve resolver) (*expr.AggExpr, error) {
	var fn expr.AggKind
	switch e.Tp {
	case cop.ExprCount:
		fn = expr.AggCount
	case cop.ExprFirst:
		fn = expr.AggFirst
	case cop.ExprSum:
		fn = expr.AggSum
	case cop.ExprAvg:
		fn = expr.AggAvg
	case cop.ExprMax:
		fn = expr.AggMax
	case cop.ExprMin:
		fn = expr.AggMin
	default:
		return nil, codec.NewDecodeError("expression type %d is not an aggregate function", e.Tp)
	}

	var args []expr.Expr
	for _, c := range e.Children {
		arg, err := convertScalar(c, resolve)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return &expr.AggExpr{Fn: fn, Args: args}, nil
}

// convertAggregation converts an aggregation descriptor's clauses.
func convertAggregation(groupBy, aggFuncs []*cop.Expr, resolve resolver) ([]expr.Expr, []*expr.AggExpr, error) {
	var groups []expr.Expr
	for _, g := range groupBy {
		conv, err := convertScalar(g, resolve)
		if err != nil {
			return nil, nil, err
		}
		groups = append(groups, conv)
	}
	var aggs []*expr.AggExpr
	for _, a := range aggFuncs {
		conv, err := convertAgg(a, resolve)
		if err != nil {
			return nil, nil, err
		}
		aggs = append(aggs, conv)
	}
	return groups, aggs, nil
}

// convertOrder converts order-by items. A nil item expression orders by
// the row handle.
func convertOrder(items []cop.ByItem, resolve resolver) ([]exec.OrderItem, error) {
	var order []exec.OrderItem
	for _, item := range items {
		oi := exec.OrderItem{Desc: item.Desc}
		if item.Expr != nil {
			conv, err := convertScalar(item.Expr, resolve)
			if err != nil {
				return nil, err
			}
			oi.Expr = conv
		}
		order = append(order, oi)
	}
	return order, nil
}
