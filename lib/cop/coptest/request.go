package coptest

import (
	"github.com/ValentinKolb/dQL/lib/codec"
	"github.com/ValentinKolb/dQL/lib/cop"
)

// --------------------------------------------------------------------------
// Expression helpers
// --------------------------------------------------------------------------

// IntLit builds an int64 literal node.
func IntLit(v int64) *cop.Expr {
	e, err := cop.ValueExpr(codec.NewIntDatum(v))
	if err != nil {
		panic(err)
	}
	return e
}

// StrLit builds a byte-string literal node.
func StrLit(s string) *cop.Expr {
	e, err := cop.ValueExpr(codec.NewStringDatum(s))
	if err != nil {
		panic(err)
	}
	return e
}

// BinOp builds a binary operator node.
func BinOp(tp cop.ExprType, l, r *cop.Expr) *cop.Expr {
	return &cop.Expr{Tp: tp, Children: []*cop.Expr{l, r}}
}

// AggFn builds an aggregate function node.
func AggFn(tp cop.ExprType, args ...*cop.Expr) *cop.Expr {
	return &cop.Expr{Tp: tp, Children: args}
}

// --------------------------------------------------------------------------
// Flat request builder
// --------------------------------------------------------------------------

// SelectBuilder assembles a flat-shape request field by field.
type SelectBuilder struct {
	table   *Table
	indexID int64
	tp      cop.RequestType
	sel     *cop.SelectRequest
}

// Select starts a flat table-scan request over t.
func Select(t *Table) *SelectBuilder {
	return &SelectBuilder{
		table: t,
		tp:    cop.ReqTypeSelect,
		sel:   &cop.SelectRequest{StartTS: NextTS(), TableInfo: t.TableInfo()},
	}
}

// IndexSelect starts a flat index-scan request over one index of t.
func IndexSelect(t *Table, indexID int64) *SelectBuilder {
	return &SelectBuilder{
		table:   t,
		indexID: indexID,
		tp:      cop.ReqTypeIndex,
		sel:     &cop.SelectRequest{StartTS: NextTS(), IndexInfo: t.IndexInfo(indexID)},
	}
}

// At overrides the request's read timestamp.
func (b *SelectBuilder) At(ts uint64) *SelectBuilder {
	b.sel.StartTS = ts
	return b
}

// Where sets the filter expression.
func (b *SelectBuilder) Where(e *cop.Expr) *SelectBuilder {
	b.sel.Where = e
	return b
}

// GroupBy groups by the named columns.
func (b *SelectBuilder) GroupBy(names ...string) *SelectBuilder {
	for _, name := range names {
		b.sel.GroupBy = append(b.sel.GroupBy, cop.ColumnRefExpr(b.table.Col(name)))
	}
	return b
}

// Aggr adds one aggregate function over the named column.
func (b *SelectBuilder) Aggr(tp cop.ExprType, name string) *SelectBuilder {
	b.sel.Aggregates = append(b.sel.Aggregates,
		AggFn(tp, cop.ColumnRefExpr(b.table.Col(name))))
	return b
}

// OrderBy appends an order-by item over the named column.
func (b *SelectBuilder) OrderBy(name string, desc bool) *SelectBuilder {
	b.sel.OrderBy = append(b.sel.OrderBy, cop.ByItem{
		Expr: cop.ColumnRefExpr(b.table.Col(name)),
		Desc: desc,
	})
	return b
}

// OrderByPK appends an order-by item over the row handle.
func (b *SelectBuilder) OrderByPK(desc bool) *SelectBuilder {
	b.sel.OrderBy = append(b.sel.OrderBy, cop.ByItem{Desc: desc})
	return b
}

// Limit caps the number of returned rows.
func (b *SelectBuilder) Limit(n int64) *SelectBuilder {
	b.sel.Limit = &n
	return b
}

// Desc reverses the scan direction.
func (b *SelectBuilder) Desc() *SelectBuilder {
	b.sel.Desc = true
	return b
}

// IgnoreTruncate sets the ignore-truncation flag.
func (b *SelectBuilder) IgnoreTruncate() *SelectBuilder {
	b.sel.Flags |= cop.FlagIgnoreTruncate
	return b
}

// Build finalizes the request with full key ranges.
func (b *SelectBuilder) Build() *cop.Request {
	ranges := b.table.FullRange()
	if b.tp == cop.ReqTypeIndex {
		ranges = b.table.FullIndexRange(b.indexID)
	}
	return &cop.Request{Tp: b.tp, Select: b.sel, Ranges: ranges}
}

// --------------------------------------------------------------------------
// DAG request builder
// --------------------------------------------------------------------------

// DAGBuilder assembles a chained-executor request. Column references use
// offsets into the scan's column list.
type DAGBuilder struct {
	table   *Table
	indexID int64
	scanTp  cop.ExecType
	desc    bool
	execs   []cop.Executor
	outputs []uint32
}

// DAGSelect starts a DAG request with a table scan over all of t's
// columns.
func DAGSelect(t *Table) *DAGBuilder {
	return &DAGBuilder{table: t, scanTp: cop.ExecTypeTableScan}
}

// DAGIndexSelect starts a DAG request with an index scan.
func DAGIndexSelect(t *Table, indexID int64) *DAGBuilder {
	return &DAGBuilder{table: t, indexID: indexID, scanTp: cop.ExecTypeIndexScan}
}

// ColOffset returns the offset of the named column in the scan's column
// list.
func (b *DAGBuilder) ColOffset(name string) int64 {
	if b.scanTp == cop.ExecTypeIndexScan {
		target := b.table.Col(name)
		for i, id := range b.table.Idxs[b.indexID] {
			if id == target {
				return int64(i)
			}
		}
		panic("column " + name + " is not part of the index")
	}
	info := b.table.TableInfo()
	for i, col := range info.Columns {
		if col.ID == b.table.Col(name) {
			return int64(i)
		}
	}
	panic("unknown column " + name)
}

// ColRef builds an offset-based reference to the named column.
func (b *DAGBuilder) ColRef(name string) *cop.Expr {
	return cop.ColumnRefExpr(b.ColOffset(name))
}

// Desc reverses the scan direction.
func (b *DAGBuilder) Desc() *DAGBuilder {
	b.desc = true
	return b
}

// Where appends a selection executor with one condition.
func (b *DAGBuilder) Where(cond *cop.Expr) *DAGBuilder {
	b.execs = append(b.execs, cop.Executor{
		Tp:        cop.ExecTypeSelection,
		Selection: &cop.Selection{Conditions: []*cop.Expr{cond}},
	})
	return b
}

// Aggr appends (or extends) the aggregation executor.
func (b *DAGBuilder) Aggr(tp cop.ExprType, name string) *DAGBuilder {
	agg := b.aggregation()
	agg.AggFuncs = append(agg.AggFuncs, AggFn(tp, b.ColRef(name)))
	return b
}

// GroupBy adds group-by columns to the aggregation executor.
func (b *DAGBuilder) GroupBy(names ...string) *DAGBuilder {
	agg := b.aggregation()
	for _, name := range names {
		agg.GroupBy = append(agg.GroupBy, b.ColRef(name))
	}
	return b
}

func (b *DAGBuilder) aggregation() *cop.Aggregation {
	if n := len(b.execs); n > 0 && b.execs[n-1].Tp == cop.ExecTypeAggregation {
		return b.execs[n-1].Aggregation
	}
	b.execs = append(b.execs, cop.Executor{
		Tp:          cop.ExecTypeAggregation,
		Aggregation: &cop.Aggregation{},
	})
	return b.execs[len(b.execs)-1].Aggregation
}

// TopN appends a top-N executor ordered by the named column.
func (b *DAGBuilder) TopN(name string, desc bool, limit uint64) *DAGBuilder {
	b.execs = append(b.execs, cop.Executor{
		Tp: cop.ExecTypeTopN,
		TopN: &cop.TopN{
			OrderBy: []cop.ByItem{{Expr: b.ColRef(name), Desc: desc}},
			Limit:   limit,
		},
	})
	return b
}

// TopNOffset appends a top-N executor ordered by an explicit offset.
// After an aggregation the offset addresses the aggregated output row.
func (b *DAGBuilder) TopNOffset(offset int64, desc bool, limit uint64) *DAGBuilder {
	b.execs = append(b.execs, cop.Executor{
		Tp: cop.ExecTypeTopN,
		TopN: &cop.TopN{
			OrderBy: []cop.ByItem{{Expr: cop.ColumnRefExpr(offset), Desc: desc}},
			Limit:   limit,
		},
	})
	return b
}

// Limit appends a limit executor.
func (b *DAGBuilder) Limit(n uint64) *DAGBuilder {
	b.execs = append(b.execs, cop.Executor{
		Tp:    cop.ExecTypeLimit,
		Limit: &cop.Limit{Limit: n},
	})
	return b
}

// Output sets the explicit output offsets.
func (b *DAGBuilder) Output(offsets ...uint32) *DAGBuilder {
	b.outputs = offsets
	return b
}

// Build finalizes the request. Without explicit output offsets every
// scan column is returned in order.
func (b *DAGBuilder) Build() *cop.Request {
	var scan cop.Executor
	var ranges []cop.KeyRange
	if b.scanTp == cop.ExecTypeIndexScan {
		scan = cop.Executor{
			Tp: cop.ExecTypeIndexScan,
			IdxScan: &cop.IndexScan{
				TableID: b.table.ID,
				IndexID: b.indexID,
				Columns: b.table.IndexInfo(b.indexID).Columns,
				Desc:    b.desc,
			},
		}
		ranges = b.table.FullIndexRange(b.indexID)
	} else {
		scan = cop.Executor{
			Tp: cop.ExecTypeTableScan,
			TblScan: &cop.TableScan{
				TableID: b.table.ID,
				Columns: b.table.TableInfo().Columns,
				Desc:    b.desc,
			},
		}
		ranges = b.table.FullRange()
	}

	outputs := b.outputs
	if outputs == nil {
		var n int
		if b.scanTp == cop.ExecTypeIndexScan {
			n = len(b.table.Idxs[b.indexID])
		} else {
			n = len(b.table.TableInfo().Columns)
		}
		for i := 0; i < n; i++ {
			outputs = append(outputs, uint32(i))
		}
	}

	return &cop.Request{
		Tp: cop.ReqTypeDAG,
		DAG: &cop.DAGRequest{
			StartTS:       NextTS(),
			Executors:     append([]cop.Executor{scan}, b.execs...),
			OutputOffsets: outputs,
		},
		Ranges: ranges,
	}
}

// IgnoreTruncate sets the ignore-truncation flag on the built request.
func (b *DAGBuilder) buildWithFlags(flags uint64) *cop.Request {
	req := b.Build()
	req.DAG.Flags |= flags
	return req
}

// BuildIgnoreTruncate finalizes the request with the ignore-truncation
// flag set.
func (b *DAGBuilder) BuildIgnoreTruncate() *cop.Request {
	return b.buildWithFlags(cop.FlagIgnoreTruncate)
}
