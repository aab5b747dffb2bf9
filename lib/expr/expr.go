// Package expr defines the closed expression-node set used by pushdown
// requests and the evaluator that computes them against a decoded row.
package expr

import (
	"fmt"

	"github.com/ValentinKolb/dQL/lib/codec"
)

// --------------------------------------------------------------------------
// Node set
// --------------------------------------------------------------------------

// Expr is a node in a pushed-down expression tree. The node set is closed:
// column references, literals, unary/binary operators and aggregate markers.
type Expr interface {
	String() string
}

// ColumnRef references a column of the current row by its column id.
// The pipeline builder rewrites offset-based references into this form.
type ColumnRef struct {
	ID int64
}

func (c *ColumnRef) String() string { return fmt.Sprintf("col(%d)", c.ID) }

// Literal is a constant datum.
type Literal struct {
	Value codec.Datum
}

func (l *Literal) String() string { return l.Value.String() }

// Op identifies a scalar operator.
type Op uint8

const (
	OpLT Op = iota
	OpLE
	OpEQ
	OpNE
	OpGE
	OpGT
	OpPlus
	OpAnd
	OpOr
	OpNot
)

func (o Op) String() string {
	switch o {
	case OpLT:
		return "<"
	case OpLE:
		return "<="
	case OpEQ:
		return "="
	case OpNE:
		return "!="
	case OpGE:
		return ">="
	case OpGT:
		return ">"
	case OpPlus:
		return "+"
	case OpAnd:
		return "AND"
	case OpOr:
		return "OR"
	case OpNot:
		return "NOT"
	default:
		return "?"
	}
}

// BinaryOp applies Op to two operands.
type BinaryOp struct {
	Op   Op
	L, R Expr
}

func (b *BinaryOp) String() string {
	return fmt.Sprintf("(%s %s %s)", b.L, b.Op, b.R)
}

// UnaryOp applies Op to one operand.
type UnaryOp struct {
	Op Op
	X  Expr
}

func (u *UnaryOp) String() string { return fmt.Sprintf("(%s %s)", u.Op, u.X) }

// AggKind identifies an aggregate function.
type AggKind uint8

const (
	AggCount AggKind = iota
	AggFirst
	AggSum
	AggAvg
	AggMax
	AggMin
)

func (k AggKind) String() string {
	switch k {
	case AggCount:
		return "count"
	case AggFirst:
		return "first"
	case AggSum:
		return "sum"
	case AggAvg:
		return "avg"
	case AggMax:
		return "max"
	case AggMin:
		return "min"
	default:
		return "?"
	}
}

// AggExpr marks an aggregate function call. It is consumed by the
// aggregation operator; evaluating it as a scalar is an error.
type AggExpr struct {
	Fn   AggKind
	Args []Expr
}

func (a *AggExpr) String() string {
	if len(a.Args) == 0 {
		return fmt.Sprintf("%s(*)", a.Fn)
	}
	return fmt.Sprintf("%s(%s)", a.Fn, a.Args[0])
}

// --------------------------------------------------------------------------
// Convenience constructors
// --------------------------------------------------------------------------

// Col builds a column reference.
func Col(id int64) Expr { return &ColumnRef{ID: id} }

// Int builds an int64 literal.
func Int(v int64) Expr { return &Literal{Value: codec.NewIntDatum(v)} }

// Str builds a byte-string literal.
func Str(v string) Expr { return &Literal{Value: codec.NewStringDatum(v)} }

// Null builds the null literal.
func Null() Expr { return &Literal{Value: codec.Datum{}} }

// Bin builds a binary operator node.
func Bin(op Op, l, r Expr) Expr { return &BinaryOp{Op: op, L: l, R: r} }

// Agg builds an aggregate marker.
func Agg(fn AggKind, args ...Expr) *AggExpr { return &AggExpr{Fn: fn, Args: args} }
