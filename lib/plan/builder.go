// Package plan translates inbound requests into executable operator
// chains. It resolves column references, clamps limits and produces the
// output projection the endpoint encodes rows with.
package plan

import (
	"github.com/ValentinKolb/dQL/lib/codec"
	"github.com/ValentinKolb/dQL/lib/cop"
	"github.com/ValentinKolb/dQL/lib/exec"
	"github.com/ValentinKolb/dQL/lib/expr"
	"github.com/ValentinKolb/dQL/lib/mvcc"
)

// MaxLimit is the resource ceiling for limits and top-N bounds. Larger
// requested values are clamped instead of allocating unbounded memory.
const MaxLimit = 1 << 20

// --------------------------------------------------------------------------
// Plan
// --------------------------------------------------------------------------

// Plan is a built pipeline: the operator chain root plus the output
// projection applied to every emitted row.
type Plan struct {
	Root exec.Executor

	// flat shape: columns to encode from row data, in request order
	outputColumns []cop.ColumnInfo
	// DAG shape: offsets into the scan column list or aggregation output
	outputOffsets []uint32
	scanColumns   []cop.ColumnInfo

	aggregate bool
	dag       bool
}

// EncodeRow projects one emitted row into its response encoding.
func (p *Plan) EncodeRow(row *exec.Row) (int64, []byte, error) {
	var datums []codec.Datum
	switch {
	case p.aggregate && !p.dag:
		datums = row.Output
	case p.aggregate && p.dag:
		for _, off := range p.outputOffsets {
			datums = append(datums, row.Output[off])
		}
	case p.dag:
		for _, off := range p.outputOffsets {
			datums = append(datums, row.Data[p.scanColumns[off].ID])
		}
	default:
		for _, col := range p.outputColumns {
			datums = append(datums, row.Data[col.ID])
		}
	}

	data, err := codec.EncodeValue(nil, datums...)
	if err != nil {
		return 0, nil, err
	}
	return row.Handle, data, nil
}

// --------------------------------------------------------------------------
// Building
// --------------------------------------------------------------------------

// Build translates a request into a plan over the given snapshot.
func Build(req *cop.Request, snap *mvcc.Snapshot) (*Plan, error) {
	switch req.Tp {
	case cop.ReqTypeSelect, cop.ReqTypeIndex:
		if req.Select == nil {
			return nil, codec.NewDecodeError("request type %d carries no select payload", req.Tp)
		}
		return buildFlat(req, snap)
	case cop.ReqTypeDAG:
		if req.DAG == nil {
			return nil, codec.NewDecodeError("request type %d carries no executor list", req.Tp)
		}
		return buildDAG(req, snap)
	default:
		return nil, codec.NewDecodeError("unknown request type %d", req.Tp)
	}
}

// clampLimit applies the resource ceiling.
func clampLimit(limit uint64) uint64 {
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// --------------------------------------------------------------------------
// Flat shape
// --------------------------------------------------------------------------

func buildFlat(req *cop.Request, snap *mvcc.Snapshot) (*Plan, error) {
	sel := req.Select
	ev := &expr.Evaluator{IgnoreTruncate: sel.Flags&cop.FlagIgnoreTruncate != 0}

	// flat column references carry absolute column ids
	resolve := func(ref int64) (int64, error) { return ref, nil }

	var chain exec.Executor
	var columns []cop.ColumnInfo
	switch req.Tp {
	case cop.ReqTypeSelect:
		if sel.TableInfo == nil {
			return nil, codec.NewDecodeError("flat select carries no table info")
		}
		columns = sel.TableInfo.Columns
		chain = exec.NewTableScan(snap, req.Ranges, columns, sel.Desc)
	case cop.ReqTypeIndex:
		if sel.IndexInfo == nil {
			return nil, codec.NewDecodeError("flat index select carries no index info")
		}
		columns = sel.IndexInfo.Columns
		chain = exec.NewIndexScan(snap, req.Ranges, columns, sel.Desc)
	}

	if sel.Where != nil {
		cond, err := convertScalar(sel.Where, resolve)
		if err != nil {
			return nil, err
		}
		chain = exec.NewSelection(chain, []expr.Expr{cond}, ev)
	}

	plan := &Plan{outputColumns: columns}

	if len(sel.Aggregates) > 0 || len(sel.GroupBy) > 0 {
		if len(sel.OrderBy) > 0 {
			return nil, codec.NewDecodeError("order by cannot be combined with aggregation in the flat shape")
		}
		groupBy, aggs, err := convertAggregation(sel.GroupBy, sel.Aggregates, resolve)
		if err != nil {
			return nil, err
		}
		chain = exec.NewAggregation(chain, groupBy, aggs, ev)
		plan.aggregate = true
		if sel.Limit != nil {
			chain = exec.NewLimit(chain, clampLimit(uint64(*sel.Limit)))
		}
		plan.Root = chain
		return plan, nil
	}

	if len(sel.OrderBy) > 0 {
		order, err := convertOrder(sel.OrderBy, resolve)
		if err != nil {
			return nil, err
		}
		limit := int64(-1) // full sort when no limit accompanies the order
		if sel.Limit != nil {
			limit = int64(clampLimit(uint64(*sel.Limit)))
		}
		chain = exec.NewTopN(chain, order, limit, ev)
	} else if sel.Limit != nil {
		chain = exec.NewLimit(chain, clampLimit(uint64(*sel.Limit)))
	}

	plan.Root = chain
	return plan, nil
}

// --------------------------------------------------------------------------
// DAG shape
// --------------------------------------------------------------------------

func buildDAG(req *cop.Request, snap *mvcc.Snapshot) (*Plan, error) {
	dag := req.DAG
	if len(dag.Executors) == 0 {
		return nil, codec.NewDecodeError("empty executor list")
	}
	ev := &expr.Evaluator{IgnoreTruncate: dag.Flags&cop.FlagIgnoreTruncate != 0}

	var chain exec.Executor
	var scanColumns []cop.ColumnInfo
	switch first := dag.Executors[0]; first.Tp {
	case cop.ExecTypeTableScan:
		if first.TblScan == nil {
			return nil, codec.NewDecodeError("table scan executor carries no configuration")
		}
		scanColumns = first.TblScan.Columns
		chain = exec.NewTableScan(snap, req.Ranges, scanColumns, first.TblScan.Desc)
	case cop.ExecTypeIndexScan:
		if first.IdxScan == nil {
			return nil, codec.NewDecodeError("index scan executor carries no configuration")
		}
		scanColumns = first.IdxScan.Columns
		chain = exec.NewIndexScan(snap, req.Ranges, scanColumns, first.IdxScan.Desc)
	default:
		return nil, codec.NewDecodeError("executor chain must start with a scan, got type %d", first.Tp)
	}

	// DAG column references are offsets into the scan's column list
	resolve := func(ref int64) (int64, error) {
		if ref < 0 || ref >= int64(len(scanColumns)) {
			return 0, codec.NewDecodeError("column offset %d out of range (%d scan columns)", ref, len(scanColumns))
		}
		return scanColumns[ref].ID, nil
	}

	plan := &Plan{dag: true, scanColumns: scanColumns}
	outputWidth := len(scanColumns)

	for _, desc := range dag.Executors[1:] {
		switch desc.Tp {
		case cop.ExecTypeSelection:
			if desc.Selection == nil {
				return nil, codec.NewDecodeError("selection executor carries no configuration")
			}
			var conds []expr.Expr
			for _, c := range desc.Selection.Conditions {
				cond, err := convertScalar(c, resolve)
				if err != nil {
					return nil, err
				}
				conds = append(conds, cond)
			}
			chain = exec.NewSelection(chain, conds, ev)

		case cop.ExecTypeAggregation:
			if desc.Aggregation == nil {
				return nil, codec.NewDecodeError("aggregation executor carries no configuration")
			}
			groupBy, aggs, err := convertAggregation(desc.Aggregation.GroupBy, desc.Aggregation.AggFuncs, resolve)
			if err != nil {
				return nil, err
			}
			agg := exec.NewAggregation(chain, groupBy, aggs, ev)
			agg.DAGOutput = true
			chain = agg
			plan.aggregate = true

			// output becomes (agg results..., group-by values...)
			outputWidth = len(groupBy)
			for _, a := range aggs {
				if a.Fn == expr.AggAvg {
					outputWidth += 2
				} else {
					outputWidth++
				}
			}

		case cop.ExecTypeTopN:
			if desc.TopN == nil {
				return nil, codec.NewDecodeError("top-n executor carries no configuration")
			}
			// after an aggregation the order refs address the
			// aggregated output row, not the scan columns
			orderResolve := resolve
			if plan.aggregate {
				width := outputWidth
				orderResolve = func(ref int64) (int64, error) {
					if ref < 0 || ref >= int64(width) {
						return 0, codec.NewDecodeError("order-by offset %d out of range (width %d)", ref, width)
					}
					return ref, nil
				}
			}
			order, err := convertOrder(desc.TopN.OrderBy, orderResolve)
			if err != nil {
				return nil, err
			}
			topn := exec.NewTopN(chain, order, int64(clampLimit(desc.TopN.Limit)), ev)
			topn.ByOutput = plan.aggregate
			chain = topn

		case cop.ExecTypeLimit:
			if desc.Limit == nil {
				return nil, codec.NewDecodeError("limit executor carries no configuration")
			}
			chain = exec.NewLimit(chain, clampLimit(desc.Limit.Limit))

		default:
			return nil, codec.NewDecodeError("unknown executor type %d", desc.Tp)
		}
	}

	for _, off := range dag.OutputOffsets {
		if int(off) >= outputWidth {
			return nil, codec.NewDecodeError("output offset %d out of range (width %d)", off, outputWidth)
		}
	}
	plan.outputOffsets = dag.OutputOffsets
	plan.Root = chain
	return plan, nil
}
